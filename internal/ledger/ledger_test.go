package ledger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	l := Load(path, testLogger())

	assert.Equal(t, 0, l.Len())
	assert.False(t, l.IsProcessed("BV1xx411c7mD"))
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	l := Load(path, testLogger())

	assert.Equal(t, 0, l.Len())
}

func TestMarkAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	l := Load(path, testLogger())

	l.Mark("BV1xx411c7mD")

	assert.True(t, l.IsProcessed("BV1xx411c7mD"))
	assert.False(t, l.IsProcessed("yt:dQw4w9WgXcQ"))

	// Marking twice is harmless.
	l.Mark("BV1xx411c7mD")
	assert.Equal(t, 1, l.Len())
}

func TestNamespaceIsolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	l := Load(path, testLogger())

	l.Mark("123")

	assert.True(t, l.IsProcessed("123"))
	assert.False(t, l.IsProcessed("yt:123"))
}

func TestPersistAndEvict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	l := Load(path, testLogger())

	now := int64(1_700_000_000)
	retention := 14 * 24 * time.Hour
	retentionSecs := int64(retention.Seconds())
	l.now = func() int64 { return now }

	l.entries["expired"] = now - retentionSecs - 1
	l.entries["boundary"] = now - retentionSecs
	l.entries["survivor"] = now - retentionSecs + 1
	l.entries["fresh"] = now - 60

	require.NoError(t, l.PersistAndEvict(retention))

	assert.False(t, l.IsProcessed("expired"))
	assert.False(t, l.IsProcessed("boundary"))
	assert.True(t, l.IsProcessed("survivor"))
	assert.True(t, l.IsProcessed("fresh"))

	var onDisk map[string]int64
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, map[string]int64{
		"survivor": now - retentionSecs + 1,
		"fresh":    now - 60,
	}, onDisk)
}

func TestPersistThenReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	l := Load(path, testLogger())
	l.Mark("BV1xx411c7mD")
	l.Mark("yt:dQw4w9WgXcQ")
	require.NoError(t, l.PersistAndEvict(14*24*time.Hour))

	reloaded := Load(path, testLogger())
	assert.True(t, reloaded.IsProcessed("BV1xx411c7mD"))
	assert.True(t, reloaded.IsProcessed("yt:dQw4w9WgXcQ"))
	assert.Equal(t, 2, reloaded.Len())
}

func TestPersistReplacesNotTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	l := Load(path, testLogger())
	l.Mark("a")
	require.NoError(t, l.PersistAndEvict(time.Hour))

	// No temp file left behind after the rename.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
