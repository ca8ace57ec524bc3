package service

import (
	"context"
	"log/slog"
	"time"

	"upload_monitor/internal/digest"
	"upload_monitor/internal/domain"
	"upload_monitor/internal/filter"
)

// RunService executes one fetch/filter/dedupe/notify pass over the
// configured roster.
type RunService struct {
	fetcher   Fetcher
	ledger    Ledger
	notifiers []Notifier
	accounts  []domain.Account
	keywords  []string
	retention time.Duration
	location  *time.Location
	logger    *slog.Logger
}

// NewRunService wires the pipeline. An empty notifier list is allowed;
// the run then executes fully but reports delivery as failed.
func NewRunService(
	fetcher Fetcher,
	ledger Ledger,
	notifiers []Notifier,
	accounts []domain.Account,
	keywords []string,
	retention time.Duration,
	location *time.Location,
	logger *slog.Logger,
) *RunService {
	return &RunService{
		fetcher:   fetcher,
		ledger:    ledger,
		notifiers: notifiers,
		accounts:  accounts,
		keywords:  keywords,
		retention: retention,
		location:  location,
		logger:    logger,
	}
}

// Run executes the pipeline once. Individual account failures reduce the
// digest but never abort the run, and the ledger is persisted on every
// exit path once fetching has begun — delivery failures included, so
// accepted items are not re-queued on a later run. The returned error is
// only non-nil when that final persistence failed.
func (s *RunService) Run(ctx context.Context, run domain.RunConfig) (*domain.RunStats, error) {
	start := time.Now()
	stats := &domain.RunStats{}

	s.logger.Info("starting run",
		"title", run.Title,
		"window_hours", float64(run.Window)/3600,
		"accounts", len(s.accounts),
	)

	results := s.fetcher.FetchAll(ctx, s.accounts)

	// Ledger mutation happens only here, on the orchestrating goroutine,
	// after the concurrent fetches have been collected.
	var accepted []domain.Item
	for _, res := range results {
		if res.Err != nil {
			stats.AccountsFailed++
			continue
		}
		stats.AccountsOK++

		for _, item := range res.Items {
			stats.Fetched++

			if s.ledger.IsProcessed(item.LedgerKey()) {
				stats.SkippedByLedger++
				continue
			}

			switch filter.Evaluate(item, run, s.keywords) {
			case filter.TooOld:
				stats.SkippedByWindow++
			case filter.NoKeyword:
				stats.SkippedByKeyword++
			case filter.Accepted:
				stats.Accepted++
				accepted = append(accepted, item)
				s.ledger.Mark(item.LedgerKey())
				s.logger.Info("new upload",
					"account", item.Account.Name,
					"platform", item.Platform,
					"title", item.Title,
				)
			}
		}
	}

	if len(accepted) > 0 {
		stats.Delivered = s.deliver(ctx, run, accepted)
	} else {
		s.logger.Info("no new uploads in window")
	}

	persistErr := s.ledger.PersistAndEvict(s.retention)
	if persistErr != nil {
		s.logger.Error("persist ledger", "error", persistErr)
	} else {
		s.logger.Info("ledger persisted", "entries", s.ledger.Len())
	}

	stats.Duration = time.Since(start)

	s.logger.Info("run completed",
		"accounts_ok", stats.AccountsOK,
		"accounts_failed", stats.AccountsFailed,
		"fetched", stats.Fetched,
		"accepted", stats.Accepted,
		"skipped_ledger", stats.SkippedByLedger,
		"skipped_window", stats.SkippedByWindow,
		"skipped_keyword", stats.SkippedByKeyword,
		"delivered", stats.Delivered,
		"duration", stats.Duration,
	)

	return stats, persistErr
}

// deliver sends the digest over every configured transport and reports
// whether all of them succeeded. Transport errors are logged, never
// propagated.
func (s *RunService) deliver(ctx context.Context, run domain.RunConfig, accepted []domain.Item) bool {
	d := digest.Build(run.Title, accepted, s.location)

	if len(s.notifiers) == 0 {
		s.logger.Warn("no notifier configured, delivery skipped", "entries", len(d.Entries))
		return false
	}

	ok := true
	for _, n := range s.notifiers {
		if err := n.Deliver(ctx, d, run.Title); err != nil {
			s.logger.Error("delivery failed", "notifier", n.Name(), "error", err)
			ok = false
			continue
		}
		s.logger.Info("digest delivered", "notifier", n.Name(), "entries", len(d.Entries))
	}
	return ok
}
