package core

// scheduler.go runs background maintenance for the import history.
//
// The pruner deletes history entries older than the retention window. It
// runs once on start and then on every tick until the context is cancelled.
// A failed run is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// PruneConfig holds configuration for the history pruner.
// Zero values use the defaults.
type PruneConfig struct {
	Retention     time.Duration // Age after which entries are deleted (default: 180 days)
	CheckInterval time.Duration // How often to run (default: 24h)
}

const (
	defaultHistoryRetention = 180 * 24 * time.Hour
	defaultPruneInterval    = 24 * time.Hour
)

func (c PruneConfig) withDefaults() PruneConfig {
	if c.Retention <= 0 {
		c.Retention = defaultHistoryRetention
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultPruneInterval
	}
	return c
}

// StartHistoryPruner blocks, periodically deleting old import history, until
// ctx is cancelled. It returns immediately when the configured history
// cannot delete entries.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg PruneConfig) {
	purger, ok := s.history.(HistoryPurger)
	if !ok {
		slog.Debug("history pruner disabled: history store cannot purge")
		return
	}
	cfg = cfg.withDefaults()

	slog.Info("history pruner started",
		"retention", cfg.Retention.String(),
		"interval", cfg.CheckInterval.String(),
	)

	// Run immediately on startup
	s.pruneHistory(ctx, purger, cfg.Retention)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.pruneHistory(ctx, purger, cfg.Retention)
		}
	}
}

// pruneHistory performs one purge cycle.
func (s *Service) pruneHistory(ctx context.Context, purger HistoryPurger, retention time.Duration) int64 {
	start := time.Now()
	purged, err := purger.PurgeImports(ctx, start.Add(-retention))
	if err != nil {
		slog.Error("history purge failed", "error", err)
		return 0
	}
	slog.Info("purged import history",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return purged
}
