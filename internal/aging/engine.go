// Package aging buckets outstanding exposure by days past due. The
// computation is a pure function of the supplied items and instant; it
// is the single derivation path used by reports, exports and API reads
// so displayed and authoritative numbers cannot diverge.
package aging

import "time"

// Bucket boundary constants in whole days past due.
const (
	bucketCurrentMax = 30
	bucket60Max      = 60
	bucket90Max      = 90
)

// OutstandingItem is one outstanding amount with its due date.
type OutstandingItem struct {
	Amount  float64
	DueDate time.Time
}

// Buckets holds the aging totals for one subject. Current covers items
// not yet due and up to 30 days past due; TotalOverdue is everything
// older than that.
type Buckets struct {
	Current      float64 `json:"bucket_0_30"`
	Days31to60   float64 `json:"bucket_31_60"`
	Days61to90   float64 `json:"bucket_61_90"`
	Over90       float64 `json:"bucket_90_plus"`
	Total        float64 `json:"total"`
	TotalOverdue float64 `json:"total_overdue"`
}

// Report pairs the buckets with the subject they were computed for.
type Report struct {
	SubjectID int64   `json:"subject_id"`
	AsOf      string  `json:"as_of"`
	Buckets   Buckets `json:"buckets"`
}

// AgeDays returns the whole days an item is past due at now, floored
// at zero. Items due in the future age zero.
func AgeDays(dueDate, now time.Time) int {
	days := int(now.Sub(dueDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Compute buckets the items by age at now. It carries no state between
// calls: identical inputs always produce identical totals, and the
// bucket sum always equals Total.
func Compute(items []OutstandingItem, now time.Time) Buckets {
	var b Buckets
	for _, item := range items {
		age := AgeDays(item.DueDate, now)
		switch {
		case age <= bucketCurrentMax:
			b.Current += item.Amount
		case age <= bucket60Max:
			b.Days31to60 += item.Amount
		case age <= bucket90Max:
			b.Days61to90 += item.Amount
		default:
			b.Over90 += item.Amount
		}
		b.Total += item.Amount
	}
	b.TotalOverdue = b.Total - b.Current
	return b
}
