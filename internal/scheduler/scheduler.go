// Package scheduler re-runs the pipeline on a fixed interval for watch
// mode. The default invocation is a single run without it.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"upload_monitor/internal/domain"
)

// Runner executes one pipeline run against a resolved configuration.
type Runner interface {
	Run(ctx context.Context, run domain.RunConfig) (*domain.RunStats, error)
}

type Scheduler struct {
	runner   Runner
	resolve  func(now time.Time) domain.RunConfig
	interval time.Duration
	logger   *slog.Logger
}

func New(runner Runner, resolve func(now time.Time) domain.RunConfig, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		resolve:  resolve,
		interval: interval,
		logger:   logger,
	}
}

// Start runs immediately, then on every interval tick until the context
// is cancelled. Each tick resolves a fresh run configuration so the
// daily/weekly mode and the fixed "now" are per run, not per process.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 15*time.Minute)
	defer cancel()

	if _, err := s.runner.Run(runCtx, s.resolve(time.Now())); err != nil {
		s.logger.Error("run failed", "error", err)
	}
}
