package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/invoicer/internal/domain/pipeline"
)

// BatchRunner runs one invoicing batch.
type BatchRunner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// Scheduler runs a batch on every tick. A tick that finds a batch already
// running, e.g. one triggered over HTTP, is skipped.
type Scheduler struct {
	runner   BatchRunner
	interval time.Duration
	lg       *zap.Logger

	lastTick atomic.Int64
}

// NewScheduler creates a Scheduler ticking every interval.
func NewScheduler(runner BatchRunner, interval time.Duration, lg *zap.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, lg: lg}
}

// Run ticks until ctx is done. It always returns nil; batch errors are
// logged and the next tick tries again.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.lg.Info("Scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.lg.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() { s.lastTick.Store(time.Now().UnixNano()) }()

	report, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrBatchInProgress):
		s.lg.Info("Batch already in progress, skipping tick")
	case ctx.Err() != nil:
		// Shutting down.
	case err != nil:
		s.lg.Error("Scheduled batch failed", zap.Error(err))
	default:
		s.lg.Info("Scheduled batch done",
			zap.Int("total", report.TotalOrders),
			zap.Int("invoices", len(report.Invoices)),
		)
	}
}

// LastTick returns when the last tick finished, or the zero time.
func (s *Scheduler) LastTick() time.Time {
	ns := s.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
