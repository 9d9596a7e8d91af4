package payable

import (
	"time"
)

// Status enumerates payable statuses.
type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	// StatusOverdue is a view property: due date passed with balance
	// outstanding. It is computed at read time, never stored.
	StatusOverdue Status = "overdue"
)

// Payable models an obligation owed to a vendor. Amount is immutable
// after creation; OutstandingAmount shrinks only through settlements.
type Payable struct {
	ID                int64
	VendorID          int64
	InvoiceNumber     string
	Description       string
	Amount            float64
	OutstandingAmount float64
	DueDate           time.Time
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EffectiveStatus derives the display status at a point in time.
// Overdue overrides pending/approved/partially_paid while a balance
// remains past due; stored statuses are never mutated into overdue.
func (p Payable) EffectiveStatus(now time.Time) Status {
	if p.OutstandingAmount > 0 && p.DueDate.Before(now) {
		return StatusOverdue
	}
	return p.Status
}

// OutstandingView is the read-model returned by GetOutstanding.
type OutstandingView struct {
	PayableID         int64
	OutstandingAmount float64
	Status            Status
}

// OutstandingItem is an (amount, due date) pair feeding the aging
// report.
type OutstandingItem struct {
	PayableID int64
	Amount    float64
	DueDate   time.Time
}

// CreateInput carries the fields an external caller supplies when
// registering a payable.
type CreateInput struct {
	VendorID      int64
	InvoiceNumber string
	Description   string
	Amount        float64
	DueDate       time.Time
}

// ListRequest filters payable listings.
type ListRequest struct {
	Status   Status
	VendorID int64
	Limit    int
	Offset   int
}
