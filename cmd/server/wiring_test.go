package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidshare/internal/config"
	"vidshare/internal/observability/logging"
	"vidshare/internal/observability/metrics"
	"vidshare/internal/realtime"
)

func TestStoreLogsCarryOneComponent(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DataPath = filepath.Join(t.TempDir(), "vidshare.json")
	if err := os.WriteFile(cfg.Storage.DataPath, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt snapshot: %v", err)
	}

	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "debug", Writer: &buf})
	notifier := realtime.NewNotifier(realtime.NewHub(realtime.HubConfig{Logger: logger, Metrics: metrics.New()}), nil, realtime.NotifierConfig{Logger: logger})

	store, err := openStore(t.Context(), cfg.Storage, storeOptions(cfg, logger, metrics.New(), notifier))
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	t.Cleanup(store.Close)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	tagged := 0
	for _, line := range lines {
		if n := strings.Count(line, `"component"`); n > 1 {
			t.Fatalf("expected one component key, got %d in %s", n, line)
		}
		if strings.Contains(line, `"component":"store"`) {
			tagged++
		}
	}
	if tagged == 0 {
		t.Fatalf("expected the corrupt snapshot to be logged by the store, got %q", buf.String())
	}
}
