// Package filter classifies fetched items against the run's time window
// and keyword allow-list.
package filter

import (
	"strings"

	"upload_monitor/internal/domain"
)

// Decision is the outcome of evaluating one item.
type Decision int

const (
	Accepted Decision = iota
	TooOld
	NoKeyword
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case TooOld:
		return "too_old"
	case NoKeyword:
		return "no_keyword"
	}
	return "unknown"
}

// Evaluate classifies an item. Checks run cheapest first: the window
// test, the account's bypass flag, then the substring scan. An item
// published exactly Window seconds before Now is still in scope; one
// second older is not.
//
// Keyword matching is a case-insensitive substring test over the
// concatenated title and description. It deliberately matches inside
// longer words (broad recall is the product behavior); do not tighten
// to whole-word matching.
func Evaluate(item domain.Item, run domain.RunConfig, keywords []string) Decision {
	if run.Now-item.Published > run.Window {
		return TooOld
	}

	if item.Account.NoFilter {
		return Accepted
	}

	text := strings.ToLower(item.Title + item.Description)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return Accepted
		}
	}

	return NoKeyword
}
