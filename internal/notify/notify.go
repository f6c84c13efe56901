package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"os"
	"path/filepath"
	"time"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/logger"
)

// Mailer sends plain-text reports with file attachments over SMTPS.
type Mailer struct {
	host        string
	port        int
	from        string
	password    string
	to          string
	maxAttempts int
	retryDelay  time.Duration

	send  func(addr string, from, to, msg string) error
	sleep func(context.Context, time.Duration) error
}

var _ interfaces.Notifier = (*Mailer)(nil)

type MailerOpts struct {
	Host        string
	Port        int
	From        string
	Password    string
	To          string
	MaxAttempts int
	RetryDelay  time.Duration
}

func NewMailer(opts MailerOpts) *Mailer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 30 * time.Second
	}
	m := &Mailer{
		host:        opts.Host,
		port:        opts.Port,
		from:        opts.From,
		password:    opts.Password,
		to:          opts.To,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		sleep:       sleepCtx,
	}
	m.send = m.sendTLS
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Send delivers the message, retrying transient failures until the attempt
// budget runs out. Mail is a reporting channel; the caller never blocks
// trading on it.
func (m *Mailer) Send(ctx context.Context, subject, body string, attachments []string) error {
	msg, err := buildMessage(m.from, m.to, subject, body, attachments)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := m.sleep(ctx, m.retryDelay); err != nil {
				return err
			}
		}
		if lastErr = m.send(addr, m.from, m.to, msg); lastErr == nil {
			logger.Info(ctx, "Report mail sent", "subject", subject, "attempt", attempt)
			return nil
		}
		logger.Warn(ctx, "Report mail attempt failed",
			"subject", subject, "attempt", attempt, "error", lastErr.Error())
	}
	return fmt.Errorf("mail delivery failed after %d attempts: %w", m.maxAttempts, lastErr)
}

// sendTLS speaks SMTPS: implicit TLS from the first byte, as used on port
// 465.
func (m *Mailer) sendTLS(addr, from, to, msg string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.host})
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if m.password != "" {
		auth := smtp.PlainAuth("", from, m.password, m.host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	return w.Close()
}

const boundary = "robot-report-boundary"

// buildMessage assembles a multipart MIME message with base64 attachments.
func buildMessage(from, to, subject, body string, attachments []string) (string, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", boundary)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")

	for _, path := range attachments {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read attachment %s: %w", path, err)
		}
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: application/octet-stream\r\n")
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", filepath.Base(path))

		encoded := base64.StdEncoding.EncodeToString(data)
		for len(encoded) > 76 {
			buf.WriteString(encoded[:76])
			buf.WriteString("\r\n")
			encoded = encoded[76:]
		}
		buf.WriteString(encoded)
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.String(), nil
}
