package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vidshare/internal/models"
	"vidshare/internal/storage"
)

type maintenanceStore interface {
	PublishDueVideos(now time.Time) ([]models.Video, error)
	AuditCounters() storage.CounterReport
	RepairCounters() (storage.CounterReport, error)
}

type tokenPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type maintenanceTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) maintenanceTicker

func newTimeTicker(d time.Duration) maintenanceTicker {
	return timeTicker{ticker: time.NewTicker(d)}
}

// maintenance runs the periodic housekeeping pass: scheduled publishing,
// counter audit and repair, and purging expired token revocations.
type maintenance struct {
	store     maintenanceStore
	tokens    tokenPurger
	logger    *slog.Logger
	now       func() time.Time
	repair    bool
	newTicker tickerFactory
}

func (m *maintenance) runOnce(ctx context.Context) error {
	var errs []error

	published, err := m.store.PublishDueVideos(m.now().UTC())
	if err != nil {
		errs = append(errs, fmt.Errorf("publish scheduled videos: %w", err))
	}
	for _, video := range published {
		m.logger.Info("scheduled video published", "video_id", video.ID, "owner_id", video.OwnerID)
	}

	report := m.store.AuditCounters()
	if !report.Clean() {
		if m.repair {
			repaired, err := m.store.RepairCounters()
			if err != nil {
				errs = append(errs, fmt.Errorf("repair counters: %w", err))
			} else {
				m.logger.Warn("counter drift repaired", "drifts", len(repaired.Drifts), "by_counter", repaired.ByCounter())
			}
		} else {
			m.logger.Warn("counter drift detected", "drifts", len(report.Drifts), "by_counter", report.ByCounter())
		}
	}

	if m.tokens != nil {
		purged, err := m.tokens.PurgeExpired(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge token revocations: %w", err))
		} else if purged > 0 {
			m.logger.Debug("expired token revocations purged", "count", purged)
		}
	}
	return errors.Join(errs...)
}

// run repeats runOnce every interval until ctx is done. Failed passes are
// logged and retried on the next tick.
func (m *maintenance) run(ctx context.Context, interval time.Duration, runOnStartup bool) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	newTicker := m.newTicker
	if newTicker == nil {
		newTicker = newTimeTicker
	}
	pass := func() {
		if err := m.runOnce(ctx); err != nil {
			m.logger.Error("maintenance pass failed", "error", err)
		}
	}
	if runOnStartup {
		pass()
	}

	ticker := newTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			pass()
		}
	}
}
