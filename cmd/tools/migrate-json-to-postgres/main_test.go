package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"vidshare/internal/observability/logging"
	"vidshare/internal/storage"
)

func TestVerifyCounts(t *testing.T) {
	want := storage.SnapshotCounts{Users: 2, Videos: 3, Categories: 10}
	if err := verifyCounts(want, want); err != nil {
		t.Fatalf("expected equal counts to verify: %v", err)
	}
	got := want
	got.Videos = 2
	err := verifyCounts(want, got)
	if err == nil || !strings.Contains(err.Error(), "videos") {
		t.Fatalf("expected videos mismatch, got %v", err)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", " dsn "); got != "dsn" {
		t.Fatalf("unexpected value %q", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestMigrateFailsForMissingSnapshot(t *testing.T) {
	err := migrate(context.Background(), logging.Discard(), filepath.Join(t.TempDir(), "missing.json"), "postgres://unused", "default")
	if err == nil {
		t.Fatal("expected error for a missing JSON snapshot")
	}
}
