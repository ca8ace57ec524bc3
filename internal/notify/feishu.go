// Package notify delivers rendered digests over the configured transports.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"upload_monitor/internal/digest"
)

// Feishu posts the digest to a Feishu group webhook.
type Feishu struct {
	webhookURL string
	preamble   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFeishu creates the webhook transport. The preamble line is prefixed
// to every message so bots configured with a keyword security filter
// accept the delivery.
func NewFeishu(webhookURL, preamble string, timeout time.Duration, logger *slog.Logger) *Feishu {
	return &Feishu{
		webhookURL: webhookURL,
		preamble:   preamble,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("notifier", "feishu"),
	}
}

type feishuMessage struct {
	MsgType string        `json:"msg_type"`
	Content feishuContent `json:"content"`
}

type feishuContent struct {
	Text string `json:"text"`
}

type feishuResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Name identifies the transport in logs and stats.
func (f *Feishu) Name() string {
	return "feishu"
}

// Deliver posts the markdown rendering. Success requires both an HTTP 2xx
// and code 0 in the response body; anything else is surfaced with the
// upstream code and message.
func (f *Feishu) Deliver(ctx context.Context, d digest.Digest, subject string) error {
	text := fmt.Sprintf("**%s**\n\n%s\n\n%s", subject, f.preamble, d.Markdown())

	body, err := json.Marshal(feishuMessage{
		MsgType: "markdown",
		Content: feishuContent{Text: text},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	var fr feishuResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d: code %d: %s", resp.StatusCode, fr.Code, fr.Msg)
	}
	if fr.Code != 0 {
		return fmt.Errorf("webhook rejected message: code %d: %s", fr.Code, fr.Msg)
	}

	f.logger.Debug("webhook delivered", "entries", len(d.Entries))
	return nil
}
