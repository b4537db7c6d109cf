package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"vidshare/internal/models"
)

const snapshotVersion = 1

// Snapshot is the durable document: one array per collection, each row
// referencing others by id. Rows are ordered by creation time then id.
type Snapshot struct {
	Version       int                    `json:"version"`
	Users         []models.User          `json:"users"`
	Videos        []models.Video         `json:"videos"`
	Comments      []models.Comment       `json:"comments"`
	Reactions     []models.Reaction      `json:"reactions"`
	Subscriptions []models.Subscription  `json:"subscriptions"`
	Notifications []models.Notification  `json:"notifications"`
	Categories    []models.Category      `json:"categories"`
	Playlists     []models.Playlist      `json:"playlists"`
	Progress      []models.VideoProgress `json:"progress"`
}

// SnapshotCounts summarises the size of each collection in a Snapshot.
type SnapshotCounts struct {
	Users         int
	Videos        int
	Comments      int
	Reactions     int
	Subscriptions int
	Notifications int
	Categories    int
	Playlists     int
	Progress      int
}

func (s *Snapshot) Counts() SnapshotCounts {
	if s == nil {
		return SnapshotCounts{}
	}
	return SnapshotCounts{
		Users:         len(s.Users),
		Videos:        len(s.Videos),
		Comments:      len(s.Comments),
		Reactions:     len(s.Reactions),
		Subscriptions: len(s.Subscriptions),
		Notifications: len(s.Notifications),
		Categories:    len(s.Categories),
		Playlists:     len(s.Playlists),
		Progress:      len(s.Progress),
	}
}

func snapshotFromDataset(data dataset) Snapshot {
	return Snapshot{
		Version:       snapshotVersion,
		Users:         sortedRows(data.Users, func(u models.User) time.Time { return u.CreatedAt }, func(u models.User) string { return u.ID }),
		Videos:        sortedRows(data.Videos, func(v models.Video) time.Time { return v.CreatedAt }, func(v models.Video) string { return v.ID }),
		Comments:      sortedRows(data.Comments, func(c models.Comment) time.Time { return c.CreatedAt }, func(c models.Comment) string { return c.ID }),
		Reactions:     sortedRows(data.Reactions, func(r models.Reaction) time.Time { return r.CreatedAt }, func(r models.Reaction) string { return r.ID }),
		Subscriptions: sortedRows(data.Subscriptions, func(s models.Subscription) time.Time { return s.CreatedAt }, func(s models.Subscription) string { return s.ID }),
		Notifications: sortedRows(data.Notifications, func(n models.Notification) time.Time { return n.CreatedAt }, func(n models.Notification) string { return n.ID }),
		Categories:    sortedRows(data.Categories, func(c models.Category) time.Time { return c.CreatedAt }, func(c models.Category) string { return c.ID }),
		Playlists:     sortedRows(data.Playlists, func(p models.Playlist) time.Time { return p.CreatedAt }, func(p models.Playlist) string { return p.ID }),
		Progress:      sortedRows(data.Progress, func(p models.VideoProgress) time.Time { return p.UpdatedAt }, func(p models.VideoProgress) string { return p.ID }),
	}
}

// dataset rebuilds the keyed tables, rejecting rows without ids, duplicate
// ids and detail rows that break the one-per-pair rules.
func (s Snapshot) dataset() (dataset, error) {
	if s.Version > snapshotVersion {
		return dataset{}, fmt.Errorf("snapshot version %d is newer than supported version %d", s.Version, snapshotVersion)
	}
	data := newDataset()
	if err := fill(data.Users, "user", s.Users, func(u models.User) string { return u.ID }); err != nil {
		return dataset{}, err
	}
	if err := fill(data.Videos, "video", s.Videos, func(v models.Video) string { return v.ID }); err != nil {
		return dataset{}, err
	}
	if err := fill(data.Comments, "comment", s.Comments, func(c models.Comment) string { return c.ID }); err != nil {
		return dataset{}, err
	}
	if err := fill(data.Reactions, "reaction", s.Reactions, func(r models.Reaction) string { return r.ID }); err != nil {
		return dataset{}, err
	}
	if err := fill(data.Subscriptions, "subscription", s.Subscriptions, func(r models.Subscription) string { return r.ID }); err != nil {
		return dataset{}, err
	}
	if err := fill(data.Notifications, "notification", s.Notifications, func(n models.Notification) string { return n.ID }); err != nil {
		return dataset{}, err
	}
	if err := fill(data.Categories, "category", s.Categories, func(c models.Category) string { return c.ID }); err != nil {
		return dataset{}, err
	}
	if err := fill(data.Playlists, "playlist", s.Playlists, func(p models.Playlist) string { return p.ID }); err != nil {
		return dataset{}, err
	}
	if err := fill(data.Progress, "progress", s.Progress, func(p models.VideoProgress) string { return p.ID }); err != nil {
		return dataset{}, err
	}
	if err := checkReactions(s.Reactions); err != nil {
		return dataset{}, err
	}
	if err := checkSubscriptions(s.Subscriptions); err != nil {
		return dataset{}, err
	}
	return data, nil
}

// checkReactions requires exactly one target per reaction, a known type and
// at most one reaction per user and target.
func checkReactions(rows []models.Reaction) error {
	seen := make(map[string]string, len(rows))
	for _, r := range rows {
		if (r.VideoID == "") == (r.CommentID == "") {
			return fmt.Errorf("reaction %s must target exactly one of a video or a comment", r.ID)
		}
		if !r.Type.Valid() {
			return fmt.Errorf("reaction %s has unknown type %q", r.ID, r.Type)
		}
		target := r.Target()
		key := r.UserID + "|" + string(target.Kind) + "|" + target.ID
		if other, dup := seen[key]; dup {
			return fmt.Errorf("reactions %s and %s share user %s and %s %s", other, r.ID, r.UserID, target.Kind, target.ID)
		}
		seen[key] = r.ID
	}
	return nil
}

// checkSubscriptions allows one subscription per subscriber and channel and
// none to oneself.
func checkSubscriptions(rows []models.Subscription) error {
	seen := make(map[[2]string]string, len(rows))
	for _, sub := range rows {
		if sub.SubscriberID == sub.ChannelID {
			return fmt.Errorf("subscription %s subscribes %s to itself", sub.ID, sub.SubscriberID)
		}
		key := [2]string{sub.SubscriberID, sub.ChannelID}
		if other, dup := seen[key]; dup {
			return fmt.Errorf("subscriptions %s and %s share subscriber %s and channel %s", other, sub.ID, sub.SubscriberID, sub.ChannelID)
		}
		seen[key] = sub.ID
	}
	return nil
}

func fill[T any](table Table[T], kind string, rows []T, id func(T) string) error {
	for _, row := range rows {
		key := id(row)
		if key == "" {
			return fmt.Errorf("%s row without id", kind)
		}
		if _, exists := table[key]; exists {
			return fmt.Errorf("duplicate %s id %s", kind, key)
		}
		table[key] = row
	}
	return nil
}

func encodeSnapshot(snapshot Snapshot) ([]byte, error) {
	document, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return document, nil
}

func decodeSnapshot(raw []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

// LoadSnapshotFromJSON reads a snapshot file written by the file persister.
func LoadSnapshotFromJSON(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	snapshot, err := decodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	if _, err := snapshot.dataset(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return &snapshot, nil
}

// WriteSnapshot stores snapshot through persister without opening a Storage,
// for offline copies between backends.
func WriteSnapshot(ctx context.Context, persister Persister, snapshot *Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot is required")
	}
	data, err := snapshot.dataset()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	document, err := encodeSnapshot(snapshotFromDataset(data))
	if err != nil {
		return err
	}
	if err := persister.Save(ctx, document); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Snapshot exports the current state.
func (s *Storage) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromDataset(cloneDataset(s.data))
}

// Restore replaces the whole dataset with snapshot and recomputes every
// derived counter from the restored detail rows.
func (s *Storage) Restore(snapshot Snapshot) error {
	data, err := snapshot.dataset()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.mutate("snapshot.restore", func(tx *Tx) error {
		*tx.dataset = data
		recomputeCounters(tx)
		return nil
	})
}
