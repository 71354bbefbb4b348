package core

// scheduler.go runs background maintenance for the session store.
//
// Sessions expire after the configured TTL without writes. Stores that keep
// expired records around until asked (memory, postgres) implement
// store.Sweeper; badger expires entries itself and uses the sweep to run
// value log GC. The sweeper is long-running and context-aware for graceful
// shutdown. A failed sweep is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/datacleaner/internal/logging"
	"github.com/JonMunkholm/datacleaner/internal/store"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = 10 * time.Minute

// StartSessionSweeper periodically removes expired sessions until ctx is
// cancelled. It returns immediately if the store needs no sweeping.
func (s *Service) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	log := logging.Component("session_sweeper")

	sweeper, ok := s.store.(store.Sweeper)
	if !ok {
		log.Info("session store expires entries itself, sweeper not started")
		return
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	log.Info("session sweeper started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx, sweeper, log)
		}
	}
}

// runSweep performs one sweep cycle.
func (s *Service) runSweep(ctx context.Context, sweeper store.Sweeper, log *slog.Logger) {
	start := time.Now()

	removed, err := sweeper.Sweep(ctx)
	if err != nil {
		log.Error("session sweep failed", "error", err)
		return
	}

	s.metrics.SessionsExpired(removed)
	log.Debug("session sweep completed",
		"sessions_removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
