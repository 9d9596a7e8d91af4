// Package notify abstracts outbound reminder delivery so that services
// stay decoupled from the queue transport.
package notify

import (
	"context"
	"log/slog"
)

// Dispatcher delivers overdue reminders to a recipient. Implementations
// must be safe for concurrent use.
type Dispatcher interface {
	SendReminder(ctx context.Context, payableID int64, recipient, message string) error
}

// LogDispatcher writes reminders to the structured log. It backs local
// development and tests where no queue is running.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher constructs a LogDispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// SendReminder logs the reminder instead of delivering it.
func (d *LogDispatcher) SendReminder(ctx context.Context, payableID int64, recipient, message string) error {
	d.logger.Info("payable reminder",
		slog.Int64("payable_id", payableID),
		slog.String("recipient", recipient),
		slog.String("message", message))
	return nil
}
