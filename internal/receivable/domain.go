package receivable

import "time"

// Status enumerates receivable invoice statuses.
type Status string

const (
	StatusOpen          Status = "open"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
)

// Invoice models money a client owes. It exists so the aging report
// can cover the receivable side; full invoicing (lines, taxes,
// delivery links) stays with the caller layer.
type Invoice struct {
	ID                int64
	ClientID          int64
	Number            string
	Amount            float64
	OutstandingAmount float64
	DueDate           time.Time
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateInput carries the fields supplied when registering a
// receivable invoice.
type CreateInput struct {
	ClientID int64
	Number   string
	Amount   float64
	DueDate  time.Time
}

// ReceiptInput records money received against an invoice.
type ReceiptInput struct {
	InvoiceID int64
	Amount    float64
	Reference string
}
