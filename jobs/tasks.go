package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypePayableReminder delivers a single overdue reminder.
	TaskTypePayableReminder = "notify:payable_reminder"
	// TaskTypeReminderScan walks overdue payables and fans out reminders.
	TaskTypeReminderScan = "notify:reminder_scan"
)

// PayableReminderPayload describes one overdue reminder to deliver.
type PayableReminderPayload struct {
	PayableID int64  `json:"payable_id"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// NewPayableReminderTask constructs an Asynq task for one reminder.
func NewPayableReminderTask(payload PayableReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePayableReminder, data), nil
}

// NewReminderScanTask constructs the periodic scan task. It carries no
// payload; the scanner resolves targets at execution time.
func NewReminderScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeReminderScan, nil)
}

// ReminderSink consumes delivered reminders. Satisfied by
// notify.Dispatcher implementations.
type ReminderSink interface {
	SendReminder(ctx context.Context, payableID int64, recipient, message string) error
}

// NewPayableReminderHandler adapts a sink into an Asynq handler.
func NewPayableReminderHandler(sink ReminderSink) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PayableReminderPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return sink.SendReminder(ctx, payload.PayableID, payload.Recipient, payload.Message)
	}
}
