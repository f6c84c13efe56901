package interfaces

import "context"

// Notifier delivers fire-and-forget reports. Implementations retry
// internally; a returned error means the retry budget is exhausted.
type Notifier interface {
	Send(ctx context.Context, subject, body string, attachments []string) error
}
