package storage

import (
	"log/slog"
	"strings"
	"time"

	"vidshare/internal/observability/metrics"
	"vidshare/internal/ranking"
)

// Option configures a Storage and, for Postgres-specific settings, the
// persister that backs it.
type Option interface {
	applyStore(*Storage)
	applyPostgres(*PostgresConfig)
}

type optionAdapter struct {
	store func(*Storage)
	pg    func(*PostgresConfig)
}

func (o optionAdapter) applyStore(store *Storage) {
	if o.store != nil && store != nil {
		o.store(store)
	}
}

func (o optionAdapter) applyPostgres(cfg *PostgresConfig) {
	if o.pg != nil && cfg != nil {
		o.pg(cfg)
	}
}

func storeOption(fn func(*Storage)) Option {
	return optionAdapter{store: fn}
}

func postgresOnlyOption(pg func(*PostgresConfig)) Option {
	return optionAdapter{pg: pg}
}

func WithLogger(logger *slog.Logger) Option {
	return storeOption(func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	})
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return storeOption(func(s *Storage) {
		if recorder != nil {
			s.metrics = recorder
		}
	})
}

// WithClock overrides the time source used to stamp rows.
func WithClock(now func() time.Time) Option {
	return storeOption(func(s *Storage) {
		if now != nil {
			s.now = now
		}
	})
}

// WithCommentNotifier installs the hook invoked after a comment is created.
func WithCommentNotifier(notifier CommentNotifier) Option {
	return storeOption(func(s *Storage) {
		s.notifier = notifier
	})
}

func WithScoreModel(model ranking.ScoreModel) Option {
	return storeOption(func(s *Storage) {
		s.scoreModel = model
	})
}

// WithPersistTimeout bounds each snapshot write.
func WithPersistTimeout(timeout time.Duration) Option {
	return storeOption(func(s *Storage) {
		if timeout > 0 {
			s.persistTimeout = timeout
		}
	})
}

func WithPostgresPoolLimits(maxConns, minConns int32) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if maxConns > 0 {
			cfg.MaxConnections = maxConns
		}
		if minConns >= 0 {
			cfg.MinConnections = minConns
		}
	})
}

// WithPostgresAcquireTimeout bounds how long connecting to Postgres may take.
func WithPostgresAcquireTimeout(timeout time.Duration) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if timeout > 0 {
			cfg.AcquireTimeout = timeout
		}
	})
}

func WithPostgresPoolDurations(maxLifetime, maxIdle, healthInterval time.Duration) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if maxLifetime > 0 {
			cfg.MaxConnLifetime = maxLifetime
		}
		if maxIdle > 0 {
			cfg.MaxConnIdleTime = maxIdle
		}
		if healthInterval > 0 {
			cfg.HealthCheckInterval = healthInterval
		}
	})
}

func WithPostgresApplicationName(name string) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.ApplicationName = trimmed
		}
	})
}

// WithPostgresSnapshotKey selects which snapshot row the persister owns, so
// several deployments can share one database.
func WithPostgresSnapshotKey(key string) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			cfg.SnapshotKey = trimmed
		}
	})
}
