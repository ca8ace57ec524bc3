package notify

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"

	"upload_monitor/internal/digest"
)

// SMTPSettings holds the mail transport configuration.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SMTP sends the digest as a multipart/alternative mail with plain-text
// and HTML parts.
type SMTP struct {
	settings SMTPSettings
	logger   *slog.Logger
	// send is swappable in tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP creates the mail transport.
func NewSMTP(settings SMTPSettings, logger *slog.Logger) *SMTP {
	return &SMTP{
		settings: settings,
		logger:   logger.With("notifier", "smtp"),
		send:     smtp.SendMail,
	}
}

// Name identifies the transport in logs and stats.
func (s *SMTP) Name() string {
	return "smtp"
}

// Deliver sends the digest. net/smtp has no context support; the ctx
// parameter only guards the pre-send check, which is acceptable for a
// short batch run.
func (s *SMTP) Deliver(ctx context.Context, d digest.Digest, subject string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.settings.From, s.settings.To, subject, d.Text(), d.HTML())

	addr := fmt.Sprintf("%s:%d", s.settings.Host, s.settings.Port)
	var auth smtp.Auth
	if s.settings.Username != "" {
		auth = smtp.PlainAuth("", s.settings.Username, s.settings.Password, s.settings.Host)
	}

	if err := s.send(addr, auth, s.settings.From, s.settings.To, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	s.logger.Debug("mail delivered", "to", len(s.settings.To), "entries", len(d.Entries))
	return nil
}

const mimeBoundary = "upload-monitor-alt"

func buildMessage(from string, to []string, subject, textBody, htmlBody string) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", mimeBoundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)

	return []byte(b.String())
}
