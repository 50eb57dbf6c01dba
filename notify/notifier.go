package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Message is one outcome notification. Attachment is an optional file path,
// normally the run's log file.
type Message struct {
	Subject    string
	Body       string
	Attachment string
}

// Notifier delivers outcome notifications.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NotificationError reports that a notification could not be delivered.
type NotificationError struct {
	Subject string
	Cause   error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to send notification '%s': %v", e.Subject, e.Cause)
}

func (e *NotificationError) Unwrap() error {
	return e.Cause
}

// BestEffort sends msg and logs, rather than returns, any failure. It is used
// on error paths where the error being reported must not be replaced by a
// delivery failure.
func BestEffort(ctx context.Context, n Notifier, logger *slog.Logger, msg Message) {
	if n == nil {
		logger.Warn("No notifier configured, skipping notification", "subject", msg.Subject)
		return
	}
	if err := n.Notify(ctx, msg); err != nil {
		logger.Error("Failed to send notification", "subject", msg.Subject, "error", err)
	}
}
