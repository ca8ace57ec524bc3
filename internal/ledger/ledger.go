// Package ledger persists the set of already-delivered item identifiers.
// Presence of a key means "delivered, do not re-deliver" until the entry
// ages out of the retention window.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Ledger is a flat persisted map from namespaced item identifier to the
// epoch second the entry was inserted. It is owned by the orchestrating
// goroutine for the run's duration; no internal locking.
type Ledger struct {
	path    string
	entries map[string]int64
	logger  *slog.Logger
	now     func() int64
}

// Load reads the ledger file at path. A missing, unreadable or malformed
// file yields an empty ledger: duplicate delivery after corruption is an
// accepted cost, blocking the run is not.
func Load(path string, logger *slog.Logger) *Ledger {
	l := &Ledger{
		path:    path,
		entries: make(map[string]int64),
		logger:  logger,
		now:     func() int64 { return time.Now().Unix() },
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("ledger unreadable, starting empty", "path", path, "error", err)
		}
		return l
	}

	if err := json.Unmarshal(data, &l.entries); err != nil {
		logger.Warn("ledger corrupt, starting empty", "path", path, "error", err)
		l.entries = make(map[string]int64)
	}

	return l
}

// IsProcessed reports whether the key has already been delivered.
// Pure lookup, no mutation.
func (l *Ledger) IsProcessed(key string) bool {
	_, ok := l.entries[key]
	return ok
}

// Mark records the key with the current timestamp. Marking an existing
// key refreshes its timestamp; doing so twice is harmless.
func (l *Ledger) Mark(key string) {
	l.entries[key] = l.now()
}

// Len returns the number of live entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// PersistAndEvict drops every entry at or past the retention cutoff and
// writes the survivors back to disk. The write goes to a temp file which
// then replaces the ledger, so a crash mid-write cannot truncate it.
func (l *Ledger) PersistAndEvict(retention time.Duration) error {
	cutoff := l.now() - int64(retention.Seconds())
	for key, ts := range l.entries {
		if ts <= cutoff {
			delete(l.entries, key)
		}
	}

	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}

	l.logger.Debug("ledger persisted", "path", l.path, "entries", len(l.entries))
	return nil
}
