package shared

import "fmt"

// PayableLockKey builds redis keys for per-payable critical sections.
func PayableLockKey(payableID int64) string {
	return fmt.Sprintf("payable:%d:lock", payableID)
}

// ReminderDedupKey builds redis keys that throttle overdue reminders to
// one per payable per calendar day.
func ReminderDedupKey(payableID int64, day string) string {
	return fmt.Sprintf("payable:%d:reminder:%s", payableID, day)
}
