package payreq

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus enumerates payment request statuses.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	StatusPaid     RequestStatus = "paid"
)

// PaymentType enumerates how the requested amount relates to the
// payable's outstanding balance.
type PaymentType string

const (
	// PaymentFull requests the entire outstanding balance at
	// submission time.
	PaymentFull PaymentType = "full"
	// PaymentPartial requests any positive amount up to the
	// outstanding balance.
	PaymentPartial PaymentType = "partial"
)

// UrgencyLevel is an informational priority tag with no effect on
// workflow legality.
type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyNormal UrgencyLevel = "normal"
	UrgencyHigh   UrgencyLevel = "high"
	UrgencyUrgent UrgencyLevel = "urgent"
)

// ValidUrgency reports whether the level is one of the recognised
// values.
func ValidUrgency(level UrgencyLevel) bool {
	switch level {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

// PaymentRequest models a staff-initiated request to disburse funds
// against one payable.
type PaymentRequest struct {
	ID               int64
	PublicID         uuid.UUID
	PayableID        int64
	PaymentType      PaymentType
	RequestedAmount  float64
	PaymentChannel   string
	UrgencyLevel     UrgencyLevel
	RequestReason    string
	Status           RequestStatus
	RejectionReason  string
	PaymentReference string
	PaymentNotes     string
	RequestedBy      int64
	DecidedBy        *int64
	DecidedAt        *time.Time
	SettledBy        *int64
	SettledAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SubmitInput carries the submission fields. For full-type requests
// RequestedAmount may be omitted; when supplied it must equal the
// payable's current outstanding balance.
type SubmitInput struct {
	PayableID       int64
	PaymentType     PaymentType
	RequestedAmount float64
	PaymentChannel  string
	UrgencyLevel    UrgencyLevel
	RequestReason   string
}

// SettleInput carries optional settlement metadata. Empty reference
// and notes are permitted; the caller layer decides whether to require
// them.
type SettleInput struct {
	RequestID        int64
	PaymentReference string
	PaymentNotes     string
}

// ListRequest filters payment request listings.
type ListRequest struct {
	PayableID int64
	Status    RequestStatus
	Limit     int
	Offset    int
}
