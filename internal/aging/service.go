package aging

import (
	"context"
	"time"

	"github.com/meridian-fin/meridian/internal/shared"
)

// ItemSource supplies the outstanding items for one subject. The
// payable ledger backs the vendor side and the receivable registry
// backs the client side; the service does not care which.
type ItemSource func(ctx context.Context, subjectID int64) ([]OutstandingItem, error)

// Service runs the engine over stored amounts and dates. It always
// recomputes from current data, never from cached totals.
type Service struct {
	payables    ItemSource
	receivables ItemSource
	clock       shared.Clock
}

// NewService builds a Service.
func NewService(payables, receivables ItemSource, clock shared.Clock) *Service {
	return &Service{payables: payables, receivables: receivables, clock: clock}
}

// VendorAging reports payable exposure for one vendor.
func (s *Service) VendorAging(ctx context.Context, vendorID int64) (Report, error) {
	return s.report(ctx, s.payables, vendorID)
}

// ClientAging reports receivable exposure for one client.
func (s *Service) ClientAging(ctx context.Context, clientID int64) (Report, error) {
	return s.report(ctx, s.receivables, clientID)
}

func (s *Service) report(ctx context.Context, source ItemSource, subjectID int64) (Report, error) {
	if source == nil {
		return Report{}, shared.NotFoundf("aging source not configured")
	}
	if subjectID <= 0 {
		return Report{}, shared.Validationf("subject id required")
	}
	items, err := source(ctx, subjectID)
	if err != nil {
		return Report{}, err
	}
	now := s.clock.Now()
	return Report{
		SubjectID: subjectID,
		AsOf:      now.Format(time.RFC3339),
		Buckets:   Compute(items, now),
	}, nil
}
