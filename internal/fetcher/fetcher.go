// Package fetcher coordinates concurrent, rate-limit-aware upload listing
// across all monitored accounts.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"upload_monitor/internal/domain"
)

// Source lists recent uploads for accounts of one platform.
type Source interface {
	Platform() domain.Platform
	Recent(ctx context.Context, account domain.Account) ([]domain.Item, error)
	// IsThrottle reports whether an error from Recent is a rate-limit
	// signal that should be retried with backoff.
	IsThrottle(err error) bool
}

// Result is the outcome of fetching one account. Err is set when the
// account contributed nothing; the run continues regardless.
type Result struct {
	Account domain.Account
	Items   []domain.Item
	Err     error
}

// Config holds fetch pacing configuration.
type Config struct {
	Concurrency int           // admission gate size shared across all accounts
	MaxAttempts int           // total attempts per account, throttle retries included
	BackoffBase time.Duration // sleep attempt×base between throttled attempts
	Cooldown    time.Duration // post-success sleep before releasing the slot
}

// Fetcher fans out account fetches over a bounded worker gate.
type Fetcher struct {
	sources map[domain.Platform]Source
	cfg     Config
	logger  *slog.Logger
}

// New creates a Fetcher dispatching to the given platform sources.
func New(sources []Source, cfg Config, logger *slog.Logger) *Fetcher {
	byPlatform := make(map[domain.Platform]Source, len(sources))
	for _, src := range sources {
		byPlatform[src.Platform()] = src
	}
	return &Fetcher{
		sources: byPlatform,
		cfg:     cfg,
		logger:  logger,
	}
}

// FetchAll fetches every account concurrently, at most cfg.Concurrency
// in flight at a time. The returned slice is index-aligned with accounts;
// goroutines never touch each other's slot, so no locking is needed.
func (f *Fetcher) FetchAll(ctx context.Context, accounts []domain.Account) []Result {
	results := make([]Result, len(accounts))

	g := new(errgroup.Group)
	g.SetLimit(f.cfg.Concurrency)

	for i, account := range accounts {
		g.Go(func() error {
			items, err := f.fetchOne(ctx, account)
			results[i] = Result{Account: account, Items: items, Err: err}
			return nil
		})
	}

	// Workers report failures through their Result slot, never as a
	// group error.
	_ = g.Wait()

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, account domain.Account) ([]domain.Item, error) {
	src, ok := f.sources[account.Platform]
	if !ok {
		return nil, fmt.Errorf("no source for platform %q", account.Platform)
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		items, err := src.Recent(ctx, account)
		if err == nil {
			// Cooldown before the slot is released keeps the aggregate
			// call rate smooth regardless of upstream latency.
			_ = f.sleep(ctx, f.cfg.Cooldown)
			return items, nil
		}

		lastErr = err

		if !src.IsThrottle(err) {
			f.logger.Warn("fetch failed",
				"account", account.Name,
				"ref", account.Ref(),
				"error", err,
			)
			return nil, err
		}

		if attempt == f.cfg.MaxAttempts {
			break
		}

		backoff := time.Duration(attempt) * f.cfg.BackoffBase
		f.logger.Warn("throttled, retrying",
			"account", account.Name,
			"attempt", attempt,
			"backoff", backoff,
		)

		if err := f.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", f.cfg.MaxAttempts, lastErr)
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
