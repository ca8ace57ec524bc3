package bilibili

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upload_monitor/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, PageSize: 10, Timeout: 5 * time.Second}, testLogger())
}

func account() domain.Account {
	return domain.Account{Platform: domain.PlatformBilibili, UID: 12345, Name: "up-a"}
}

func TestRecent(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12345", r.URL.Query().Get("mid"))
		assert.Equal(t, "10", r.URL.Query().Get("ps"))
		w.Write([]byte(`{
			"code": 0,
			"message": "0",
			"data": {"list": {"vlist": [
				{"bvid": "BV1xx411c7mD", "title": "ComfyUI tips", "description": "workflow walkthrough", "author": "up-a", "created": 1700000000},
				{"bvid": "", "title": "broken entry", "created": 1700000100},
				{"bvid": "BV1yy411c7mE", "title": "daily vlog", "created": 1700000200}
			]}}
		}`))
	})

	items, err := src.Recent(context.Background(), account())
	require.NoError(t, err)

	require.Len(t, items, 2, "entries without a bvid are skipped")
	assert.Equal(t, "BV1xx411c7mD", items[0].ID)
	assert.Equal(t, "ComfyUI tips", items[0].Title)
	assert.Equal(t, "workflow walkthrough", items[0].Description)
	assert.Equal(t, int64(1700000000), items[0].Published)
	assert.Equal(t, domain.PlatformBilibili, items[0].Platform)
	assert.Equal(t, "up-a", items[0].Account.Name)
}

func TestRecentAPIError(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": -404, "message": "not found"}`))
	})

	_, err := src.Recent(context.Background(), account())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, -404, apiErr.Code)
	assert.False(t, src.IsThrottle(err))
}

func TestRecentHTTP429MapsToThrottle(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := src.Recent(context.Background(), account())

	require.Error(t, err)
	assert.True(t, src.IsThrottle(err))
}

func TestIsThrottle(t *testing.T) {
	src := New(Config{}, testLogger())

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"anti-crawler code", &APIError{Code: -412, Message: "request was intercepted"}, true},
		{"too fast code", &APIError{Code: -799, Message: "请求过于频繁"}, true},
		{"throttle marker in message", &APIError{Code: -509, Message: "too many requests"}, true},
		{"chinese throttle marker", &APIError{Code: -509, Message: "操作频繁"}, true},
		{"plain api failure", &APIError{Code: -404, Message: "not found"}, false},
		{"non-api error", errors.New("dial tcp: lookup failed"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, src.IsThrottle(tt.err))
		})
	}
}

func TestRecentMalformedBody(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>blocked</html>"))
	})

	_, err := src.Recent(context.Background(), account())
	assert.Error(t, err)
}
