// Package digest aggregates accepted items into a single ordered report
// with per-transport renderings.
package digest

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"upload_monitor/internal/domain"
)

// Entry is one rendered line of the digest.
type Entry struct {
	Date   string // MM-DD label in the digest timezone
	Glyph  string
	Author string
	Title  string
	URL    string
}

// Digest is the aggregated set of newly-accepted items for one run.
// It is transport-agnostic; notifiers pick the rendering they need.
type Digest struct {
	Title   string
	Entries []Entry
}

// Build sorts items most-recent-first (stable, so same-timestamp items
// keep their encounter order) and flattens them into entries.
func Build(title string, items []domain.Item, loc *time.Location) Digest {
	sorted := make([]domain.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Published > sorted[j].Published
	})

	entries := make([]Entry, 0, len(sorted))
	for _, item := range sorted {
		entries = append(entries, Entry{
			Date:   time.Unix(item.Published, 0).In(loc).Format("01-02"),
			Glyph:  item.Platform.Glyph(),
			Author: item.Account.Name,
			Title:  item.Title,
			URL:    item.URL(),
		})
	}

	return Digest{Title: title, Entries: entries}
}

// Empty reports whether the digest has nothing to deliver.
func (d Digest) Empty() bool {
	return len(d.Entries) == 0
}

// Markdown renders the webhook body, one list entry per item.
func (d Digest) Markdown() string {
	var b strings.Builder
	for _, e := range d.Entries {
		fmt.Fprintf(&b, "- [%s] %s **%s**: [%s](%s)\n",
			e.Date, e.Glyph, e.Author, e.Title, e.URL)
	}
	return b.String()
}

// HTML renders the email body as an unordered list.
func (d Digest) HTML() string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, e := range d.Entries {
		fmt.Fprintf(&b, "<li style='margin-bottom:8px'>[%s] %s <b>%s</b>: <a href='%s'>%s</a></li>",
			e.Date, e.Glyph, html.EscapeString(e.Author), e.URL, html.EscapeString(e.Title))
	}
	b.WriteString("</ul>")
	return b.String()
}

// Text renders a plain preview, used as the email's text alternative.
func (d Digest) Text() string {
	var b strings.Builder
	for _, e := range d.Entries {
		fmt.Fprintf(&b, "  - [%s] %s %s: %s (%s)\n",
			e.Date, e.Glyph, e.Author, e.Title, e.URL)
	}
	return b.String()
}
