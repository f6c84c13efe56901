package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestMailer(maxAttempts int, send func(addr, from, to, msg string) error) *Mailer {
	m := NewMailer(MailerOpts{
		Host:        "smtp.example.com",
		Port:        465,
		From:        "robot@example.com",
		To:          "owner@example.com",
		MaxAttempts: maxAttempts,
	})
	m.send = send
	m.sleep = func(context.Context, time.Duration) error { return nil }
	return m
}

func TestSendSucceedsFirstAttempt(t *testing.T) {
	var got string
	m := newTestMailer(3, func(addr, from, to, msg string) error {
		got = msg
		return nil
	})

	if err := m.Send(context.Background(), "Daily report", "all good", nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(got, "Subject: Daily report") {
		t.Error("Expected subject header in message")
	}
	if !strings.Contains(got, "all good") {
		t.Error("Expected body in message")
	}
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	m := newTestMailer(5, func(addr, from, to, msg string) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	if err := m.Send(context.Background(), "report", "body", nil); err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestSendExhaustsRetryBudget(t *testing.T) {
	attempts := 0
	m := newTestMailer(4, func(addr, from, to, msg string) error {
		attempts++
		return errors.New("connection reset")
	})

	err := m.Send(context.Background(), "report", "body", nil)
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if attempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", attempts)
	}
}

func TestSendStopsOnCancelledContext(t *testing.T) {
	attempts := 0
	m := newTestMailer(10, func(addr, from, to, msg string) error {
		attempts++
		return errors.New("connection reset")
	})
	m.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	err := m.Send(context.Background(), "report", "body", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected retries to stop after cancellation, got %d attempts", attempts)
	}
}

func TestBuildMessageWithAttachment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PortfolioHistory.csv")
	if err := os.WriteFile(path, []byte("time,equity\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	msg, err := buildMessage("a@x.com", "b@x.com", "subject", "body", []string{path})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(msg, `filename="PortfolioHistory.csv"`) {
		t.Error("Expected attachment filename in message")
	}
	if !strings.Contains(msg, "Content-Transfer-Encoding: base64") {
		t.Error("Expected base64 encoded attachment")
	}
	if !strings.Contains(msg, "multipart/mixed") {
		t.Error("Expected multipart content type")
	}
}

func TestBuildMessageMissingAttachment(t *testing.T) {
	if _, err := buildMessage("a@x.com", "b@x.com", "s", "b", []string{"/does/not/exist.csv"}); err == nil {
		t.Error("Expected error for unreadable attachment")
	}
}
