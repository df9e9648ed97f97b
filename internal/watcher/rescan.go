package watcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Scanner is what the scheduler triggers on settled changes.
// *scanner.MediaScanner satisfies it via a small adapter in cmd.
type Scanner interface {
	TriggerScan(ctx context.Context) error
}

// Scheduler connects settled watcher changes to library rescans, rate
// limited so a busy copy session cannot stack scans back to back.
type Scheduler struct {
	logger  *slog.Logger
	watcher *Watcher
	scanner Scanner
	limiter *rate.Limiter
}

// NewScheduler creates a scheduler. minInterval is the minimum spacing
// between watcher-triggered scans; 0 disables limiting.
func NewScheduler(logger *slog.Logger, w *Watcher, s Scanner, minInterval time.Duration) *Scheduler {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Scheduler{
		logger:  logger,
		watcher: w,
		scanner: s,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run consumes changes until the context is cancelled. Changes arriving
// while the limiter blocks are coalesced into the next scan; a scan always
// sees the latest state of the tree anyway.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.watcher.Errors():
			s.logger.Error("watch error", "error", err)
		case change := <-s.watcher.Changes():
			s.logger.Info("library changed", "dir", change.Dir)
			s.drain()
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			s.drain()
			if err := s.scanner.TriggerScan(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("triggered scan failed", "error", err)
			}
		}
	}
}

// drain discards queued changes; they are covered by the scan about to run.
func (s *Scheduler) drain() {
	for {
		select {
		case <-s.watcher.Changes():
		default:
			return
		}
	}
}
