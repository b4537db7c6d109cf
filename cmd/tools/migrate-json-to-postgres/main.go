// Command migrate-json-to-postgres copies a JSON datastore snapshot into the
// Postgres snapshot table and verifies the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"vidshare/internal/observability/logging"
	"vidshare/internal/storage"
)

func main() {
	jsonPath := flag.String("json", "data/vidshare.json", "path to the JSON datastore to migrate")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	snapshotKey := flag.String("snapshot-key", "default", "snapshot row to write")
	timeout := flag.Duration("timeout", time.Minute, "overall migration timeout")
	flag.Parse()

	logger := logging.New(logging.Config{Level: "info", Format: "text"})

	dsn := firstNonEmpty(*postgresDSN, os.Getenv("VIDSHARE_STORAGE__POSTGRES__DSN"), os.Getenv("DATABASE_URL"))
	if dsn == "" {
		logger.Error("postgres DSN required", "hint", "set --postgres-dsn, VIDSHARE_STORAGE__POSTGRES__DSN, or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := migrate(ctx, logger, *jsonPath, dsn, *snapshotKey); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func migrate(ctx context.Context, logger *slog.Logger, jsonPath, dsn, key string) error {
	snapshot, err := storage.LoadSnapshotFromJSON(jsonPath)
	if err != nil {
		return err
	}
	counts := snapshot.Counts()
	logger.Info("loaded JSON snapshot", "path", jsonPath, "users", counts.Users, "videos", counts.Videos, "comments", counts.Comments)

	persister, err := storage.NewPostgresPersister(ctx, storage.PostgresConfig{
		DSN:             dsn,
		ApplicationName: "vidshare-migrate",
		SnapshotKey:     key,
	})
	if err != nil {
		return fmt.Errorf("open postgres persister: %w", err)
	}
	defer persister.Close()

	if err := storage.WriteSnapshot(ctx, persister, snapshot); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	repo, err := storage.NewPostgresRepository(ctx, dsn,
		storage.WithPostgresSnapshotKey(key),
		storage.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("reopen postgres repository: %w", err)
	}
	defer repo.Close()

	migrated := repo.Snapshot()
	if err := verifyCounts(counts, migrated.Counts()); err != nil {
		return err
	}
	logger.Info("migration completed", "users", counts.Users, "videos", counts.Videos, "comments", counts.Comments, "playlists", counts.Playlists)
	return nil
}

func verifyCounts(want, got storage.SnapshotCounts) error {
	checks := []struct {
		name      string
		want, got int
	}{
		{"users", want.Users, got.Users},
		{"videos", want.Videos, got.Videos},
		{"comments", want.Comments, got.Comments},
		{"reactions", want.Reactions, got.Reactions},
		{"subscriptions", want.Subscriptions, got.Subscriptions},
		{"notifications", want.Notifications, got.Notifications},
		{"categories", want.Categories, got.Categories},
		{"playlists", want.Playlists, got.Playlists},
		{"progress", want.Progress, got.Progress},
	}
	for _, check := range checks {
		if check.want != check.got {
			return fmt.Errorf("mismatch for %s: expected %d, got %d", check.name, check.want, check.got)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
