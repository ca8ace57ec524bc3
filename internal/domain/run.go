package domain

import "time"

// RunConfig is resolved exactly once per invocation. Now is fixed at run
// start so every filter evaluation sees the same reference time, no
// matter how long the concurrent fetches take.
type RunConfig struct {
	Title  string
	Window int64 // seconds of history the run covers
	Now    int64 // epoch seconds at run start
}

// RunStats holds statistics about a single pipeline run.
type RunStats struct {
	AccountsOK       int
	AccountsFailed   int
	Fetched          int
	Accepted         int
	SkippedByLedger  int
	SkippedByWindow  int
	SkippedByKeyword int
	Delivered        bool
	Duration         time.Duration
}
