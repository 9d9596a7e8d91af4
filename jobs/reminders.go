package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-fin/meridian/internal/payable"
	"github.com/meridian-fin/meridian/internal/shared"
)

// reminderDedupTTL keeps the per-day dedup key alive long enough that a
// rescheduled scan within the same day stays silent.
const reminderDedupTTL = 48 * time.Hour

// OverdueSource lists payables past due with a balance outstanding.
type OverdueSource interface {
	ListOverdue(ctx context.Context) ([]payable.Payable, error)
}

// ReminderScanner turns the overdue payable list into reminder tasks,
// at most one per payable per calendar day.
type ReminderScanner struct {
	source    OverdueSource
	sink      ReminderSink
	redis     *redis.Client
	clock     shared.Clock
	recipient string
	logger    *slog.Logger
	printer   *message.Printer
}

// NewReminderScanner constructs a ReminderScanner.
func NewReminderScanner(source OverdueSource, sink ReminderSink, rdb *redis.Client, clock shared.Clock, recipient string, logger *slog.Logger) *ReminderScanner {
	return &ReminderScanner{
		source:    source,
		sink:      sink,
		redis:     rdb,
		clock:     clock,
		recipient: recipient,
		logger:    logger,
		printer:   message.NewPrinter(language.English),
	}
}

// HandleScan processes TaskTypeReminderScan tasks.
func (s *ReminderScanner) HandleScan(ctx context.Context, _ *asynq.Task) error {
	return s.Scan(ctx)
}

// Scan dispatches one reminder per overdue payable. Duplicate
// suppression is best effort: when redis is unreachable the reminder is
// still sent.
func (s *ReminderScanner) Scan(ctx context.Context) error {
	overdue, err := s.source.ListOverdue(ctx)
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	day := now.Format("2006-01-02")

	sent := 0
	for _, p := range overdue {
		if s.redis != nil {
			ok, err := s.redis.SetNX(ctx, shared.ReminderDedupKey(p.ID, day), 1, reminderDedupTTL).Result()
			if err != nil {
				s.logger.Warn("reminder dedup", slog.Int64("payable_id", p.ID), slog.Any("error", err))
			} else if !ok {
				continue
			}
		}
		msg := s.printer.Sprintf("Invoice %s from vendor %d is %d days overdue with %.2f outstanding.",
			p.InvoiceNumber, p.VendorID, daysOverdue(p.DueDate, now), p.OutstandingAmount)
		if err := s.sink.SendReminder(ctx, p.ID, s.recipient, msg); err != nil {
			s.logger.Warn("send reminder", slog.Int64("payable_id", p.ID), slog.Any("error", err))
			continue
		}
		sent++
	}
	s.logger.Info("reminder scan complete", slog.Int("overdue", len(overdue)), slog.Int("sent", sent))
	return nil
}

func daysOverdue(due, now time.Time) int {
	d := int(now.Sub(due).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
