package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"upload_monitor/internal/domain"
)

// HTTPError is a non-200 response from the feed endpoint.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("youtube feed status %d", e.Status)
}

// Config holds YouTube source configuration.
type Config struct {
	FeedURL  string // base feed endpoint, channel_id appended as a query param
	PageSize int
	Timeout  time.Duration
}

// Source lists recent uploads for a YouTube channel via its public RSS feed.
type Source struct {
	httpClient *http.Client
	feedURL    string
	pageSize   int
	logger     *slog.Logger
}

// New creates a new YouTube source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		feedURL:  cfg.FeedURL,
		pageSize: cfg.PageSize,
		logger:   logger.With("source", domain.PlatformYouTube),
	}
}

// Platform returns the platform tag this source serves.
func (s *Source) Platform() domain.Platform {
	return domain.PlatformYouTube
}

// Recent fetches the channel feed and returns up to the configured page
// size of uploads, newest first as the feed orders them.
func (s *Source) Recent(ctx context.Context, account domain.Account) ([]domain.Item, error) {
	url := fmt.Sprintf("%s?channel_id=%s", s.feedURL, account.ChannelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", "UploadMonitor/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return s.transform(account, feed), nil
}

// IsThrottle reports whether err is a rate-limit signal worth retrying.
// The feed endpoint has no envelope code, so only HTTP 429 qualifies.
func (s *Source) IsThrottle(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusTooManyRequests
}

func (s *Source) transform(account domain.Account, feed *gofeed.Feed) []domain.Item {
	items := make([]domain.Item, 0, len(feed.Items))

	for _, entry := range feed.Items {
		if len(items) >= s.pageSize {
			break
		}

		id := videoID(entry)
		if id == "" {
			s.logger.Warn("skipping entry without video id", "channel", account.ChannelID, "title", entry.Title)
			continue
		}
		if entry.PublishedParsed == nil {
			s.logger.Warn("skipping entry without publish time", "channel", account.ChannelID, "video_id", id)
			continue
		}

		items = append(items, domain.Item{
			ID:          id,
			Title:       entry.Title,
			Description: entry.Description,
			Published:   entry.PublishedParsed.Unix(),
			Account:     account,
			Platform:    domain.PlatformYouTube,
		})
	}

	return items
}

// videoID extracts the native video ID from a feed entry, preferring the
// yt:videoId extension and falling back to the "yt:video:<id>" GUID form.
func videoID(entry *gofeed.Item) string {
	if ext, ok := entry.Extensions["yt"]["videoId"]; ok && len(ext) > 0 {
		return ext[0].Value
	}
	if strings.HasPrefix(entry.GUID, "yt:video:") {
		return strings.TrimPrefix(entry.GUID, "yt:video:")
	}
	return ""
}
