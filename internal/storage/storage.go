package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"vidshare/internal/models"
	"vidshare/internal/observability/logging"
	"vidshare/internal/observability/metrics"
	"vidshare/internal/ranking"
)

const defaultPersistTimeout = 10 * time.Second

// CommentNotifier is told about every durably created comment so it can be
// pushed to the video's room.
type CommentNotifier interface {
	NotifyNewComment(comment models.Comment, author models.User)
}

// Storage is the single owner of every collection. Reads take a shared lock
// on the current dataset; writes go through mutate, which clones the dataset,
// applies the change, persists the clone and swaps it in.
type Storage struct {
	mu        sync.RWMutex
	persister Persister
	data      dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(Snapshot) error

	logger         *slog.Logger
	metrics        *metrics.Recorder
	now            func() time.Time
	notifier       CommentNotifier
	scoreModel     ranking.ScoreModel
	persistTimeout time.Duration
}

// Tx is the view of the dataset handed to a Mutate callback. Changes made
// through it become visible to other callers only if the callback returns nil.
type Tx struct {
	*dataset
	now         time.Time
	model       ranking.ScoreModel
	afterCommit []func()
}

// Now is the timestamp shared by every row written in this transaction.
func (tx *Tx) Now() time.Time {
	return tx.now
}

func (tx *Tx) onCommit(fn func()) {
	tx.afterCommit = append(tx.afterCommit, fn)
}

func NewStorage(persister Persister, opts ...Option) (*Storage, error) {
	if persister == nil {
		return nil, fmt.Errorf("persister is required")
	}
	store := &Storage{
		persister:      persister,
		logger:         slog.Default(),
		metrics:        metrics.Default(),
		now:            time.Now,
		scoreModel:     ranking.DefaultScoreModel(),
		persistTimeout: defaultPersistTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyStore(store)
		}
	}
	store.logger = logging.WithComponent(store.logger, "store")
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewJSONRepository opens the file-backed store at path.
func NewJSONRepository(path string, opts ...Option) (Repository, error) {
	persister, err := NewFilePersister(path)
	if err != nil {
		return nil, err
	}
	return NewStorage(persister, opts...)
}

// NewPostgresRepository opens a store whose snapshot lives in Postgres.
func NewPostgresRepository(ctx context.Context, dsn string, opts ...Option) (Repository, error) {
	persister, err := NewPostgresPersister(ctx, newPostgresConfig(dsn, opts...))
	if err != nil {
		return nil, err
	}
	store, err := NewStorage(persister, opts...)
	if err != nil {
		persister.Close()
		return nil, err
	}
	return store, nil
}

type quarantiner interface {
	Quarantine(ctx context.Context) (string, error)
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	now := s.now().UTC()
	raw, err := s.persister.Load(ctx)
	if errors.Is(err, ErrSnapshotMissing) {
		s.data = seededDataset(now)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	snapshot, err := decodeSnapshot(raw)
	if err == nil {
		var data dataset
		if data, err = snapshot.dataset(); err == nil {
			s.data = data
			return nil
		}
	}

	attrs := []any{"error", err}
	if q, ok := s.persister.(quarantiner); ok {
		if moved, qErr := q.Quarantine(ctx); qErr != nil {
			attrs = append(attrs, "quarantine_error", qErr)
		} else {
			attrs = append(attrs, "quarantined_to", moved)
		}
	}
	s.logger.Error("snapshot unreadable, starting from an empty store", attrs...)
	s.data = seededDataset(now)
	return nil
}

// Mutate runs fn against a private copy of the dataset. If fn fails nothing
// changes. Otherwise the copy is persisted and becomes the current state; a
// failed persist still installs the copy and returns an error wrapping
// ErrPersistence.
func (s *Storage) Mutate(fn func(*Tx) error) error {
	return s.mutate("custom", fn)
}

func (s *Storage) mutate(op string, fn func(*Tx) error) error {
	s.mu.Lock()
	next := cloneDataset(s.data)
	tx := &Tx{dataset: &next, now: s.now().UTC(), model: s.scoreModel}
	if err := fn(tx); err != nil {
		s.mu.Unlock()
		s.metrics.StoreMutation(op, "rejected")
		return err
	}
	persistErr := s.persistDataset(next)
	s.data = next
	s.mu.Unlock()

	if persistErr != nil {
		s.metrics.StoreMutation(op, "persist_failed")
		s.logger.Error("persist snapshot", "op", op, "error", persistErr)
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, persistErr)
	}
	s.metrics.StoreMutation(op, "ok")
	for _, hook := range tx.afterCommit {
		hook()
	}
	return nil
}

// View runs fn with a read-only view of the current dataset. fn must not
// write through tx or retain it.
func (s *Storage) View(fn func(*Tx)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&Tx{dataset: &s.data, now: s.now().UTC(), model: s.scoreModel})
}

func (s *Storage) persistDataset(data dataset) error {
	snapshot := snapshotFromDataset(data)
	if s.persistOverride != nil {
		if err := s.persistOverride(snapshot); err != nil {
			return err
		}
	}
	document, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	start := time.Now()
	err = s.persister.Save(ctx, document)
	s.metrics.ObservePersist(time.Since(start))
	return err
}

// Ping reports whether the backing persister is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if pinger, ok := s.persister.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// Close releases the persister's resources.
func (s *Storage) Close() {
	if closer, ok := s.persister.(interface{ Close() }); ok {
		closer.Close()
	}
}

func newID() string {
	return uuid.NewString()
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// getRow runs a locked lookup against one table.
func getRow[T any](s *Storage, table func(*dataset) Table[T], id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return table(&s.data).Get(id)
}

// queryRows runs a locked predicate scan against one table.
func queryRows[T any](s *Storage, table func(*dataset) Table[T], pred func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return table(&s.data).Filter(pred)
}
