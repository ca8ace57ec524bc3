package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"upload_monitor/internal/digest"
	"upload_monitor/internal/domain"
	"upload_monitor/internal/fetcher"
)

// Fetcher fans out account fetches under the shared admission gate.
type Fetcher interface {
	FetchAll(ctx context.Context, accounts []domain.Account) []fetcher.Result
}

// Ledger is the persisted at-most-once delivery record.
type Ledger interface {
	IsProcessed(key string) bool
	Mark(key string)
	Len() int
	PersistAndEvict(retention time.Duration) error
}

// Notifier delivers a rendered digest over one transport.
type Notifier interface {
	Name() string
	Deliver(ctx context.Context, d digest.Digest, subject string) error
}
