package bilibili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"upload_monitor/internal/domain"
)

// Throttle responses the upload listing endpoint is known to return.
// -412 is the anti-crawler interception code, -799 the explicit
// request-too-fast code.
var throttleCodes = map[int]bool{
	-412: true,
	-799: true,
}

var throttleMarkers = []string{
	"too fast",
	"too many requests",
	"频繁",
}

// APIError is a non-zero code returned in the response envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bilibili api code %d: %s", e.Code, e.Message)
}

// Config holds Bilibili source configuration.
type Config struct {
	BaseURL  string
	PageSize int
	Timeout  time.Duration
}

// Source lists recent uploads for a Bilibili creator UID.
type Source struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
	logger     *slog.Logger
}

// New creates a new Bilibili source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  cfg.BaseURL,
		pageSize: cfg.PageSize,
		logger:   logger.With("source", domain.PlatformBilibili),
	}
}

// Platform returns the platform tag this source serves.
func (s *Source) Platform() domain.Platform {
	return domain.PlatformBilibili
}

// Recent fetches the account's most recent uploads, capped at the
// configured page size. Temporal scope is enforced downstream by the
// window filter, not here.
func (s *Source) Recent(ctx context.Context, account domain.Account) ([]domain.Item, error) {
	url := fmt.Sprintf("%s?mid=%d&ps=%d&pn=1", s.baseURL, account.UID, s.pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "UploadMonitor/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &APIError{Code: -799, Message: "too many requests"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, &APIError{Code: apiResp.Code, Message: apiResp.Message}
	}

	return s.transform(account, apiResp.Data.List.VList), nil
}

// IsThrottle reports whether err is a rate-limit signal worth retrying.
func (s *Source) IsThrottle(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if throttleCodes[apiErr.Code] {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	for _, marker := range throttleMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (s *Source) transform(account domain.Account, videos []apiVideo) []domain.Item {
	items := make([]domain.Item, 0, len(videos))

	for _, v := range videos {
		if v.BVID == "" {
			s.logger.Warn("skipping video without bvid", "uid", account.UID, "title", v.Title)
			continue
		}
		items = append(items, domain.Item{
			ID:          v.BVID,
			Title:       v.Title,
			Description: v.Description,
			Published:   v.Created,
			Account:     account,
			Platform:    domain.PlatformBilibili,
		})
	}

	return items
}
