// Package scheduler promotes active targets into pending scrape jobs on a
// fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pricehound/pricehound/internal/observability"
	"github.com/pricehound/pricehound/internal/store"
)

// Scheduler runs the periodic promotion loop.
type Scheduler struct {
	store    store.Store
	interval time.Duration
	logger   *slog.Logger
}

// New creates a scheduler over the given store.
func New(st store.Store, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    st,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// RunOnce executes a single cycle: read the active targets and upsert a
// pending job for each. It returns the number of targets seen. Per-target
// upsert failures are logged and skipped so one bad row cannot starve the
// rest of the fleet.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	targets, err := s.store.ActiveTargets(ctx)
	if err != nil {
		return 0, fmt.Errorf("op=scheduler.cycle: %w", err)
	}

	queued := 0
	for _, t := range targets {
		if t.ID == "" {
			s.logger.Warn("skipping target with empty id", "url", t.URL)
			continue
		}
		if err := s.store.UpsertPendingJob(ctx, t.ID); err != nil {
			s.logger.Error("upsert failed", "target", t.ID, "error", err)
			continue
		}
		queued++
	}

	observability.SchedulerCycles.Inc()
	observability.SchedulerLastTargets.Set(float64(len(targets)))

	s.logger.Info("cycle complete", "targets", len(targets), "queued", queued)
	return len(targets), nil
}

// Run loops RunOnce until the context is cancelled. Cycle errors are logged;
// the loop always sleeps the full interval before the next cycle.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler starting", "interval", s.interval)
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-time.After(s.interval):
		}
	}
}
