package payreq

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-fin/meridian/internal/payable"
	"github.com/meridian-fin/meridian/internal/shared"
)

type memoryStore struct {
	mu       sync.Mutex
	requests map[int64]PaymentRequest
	payables map[int64]payable.Payable
	nextID   int64
}

type memoryTx struct {
	store *memoryStore
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		requests: make(map[int64]PaymentRequest),
		payables: make(map[int64]payable.Payable),
	}
}

func (s *memoryStore) addPayable(p payable.Payable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payables[p.ID] = p
}

// WithTx serializes callers the way the row locks do in postgres.
func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &memoryTx{store: s})
}

func (s *memoryStore) Create(ctx context.Context, req PaymentRequest) (PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	req.ID = s.nextID
	s.requests[req.ID] = req
	return req, nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return PaymentRequest{}, shared.NotFoundf("payment request %d", id)
	}
	return req, nil
}

func (s *memoryStore) List(ctx context.Context, req ListRequest) ([]PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []PaymentRequest
	for _, r := range s.requests {
		if req.PayableID > 0 && r.PayableID != req.PayableID {
			continue
		}
		if req.Status != "" && r.Status != req.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// GetOutstanding makes the store double as the workflow's ledger port.
func (s *memoryStore) GetOutstanding(ctx context.Context, payableID int64) (payable.OutstandingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payables[payableID]
	if !ok {
		return payable.OutstandingView{}, shared.NotFoundf("payable %d", payableID)
	}
	return payable.OutstandingView{PayableID: p.ID, OutstandingAmount: p.OutstandingAmount, Status: p.Status}, nil
}

func (t *memoryTx) GetRequestForUpdate(ctx context.Context, id int64) (PaymentRequest, error) {
	req, ok := t.store.requests[id]
	if !ok {
		return PaymentRequest{}, shared.NotFoundf("payment request %d", id)
	}
	return req, nil
}

func (t *memoryTx) UpdateDecision(ctx context.Context, id int64, status RequestStatus, rejectionReason string, actorID int64, at time.Time) error {
	req, ok := t.store.requests[id]
	if !ok {
		return shared.NotFoundf("payment request %d", id)
	}
	req.Status = status
	req.RejectionReason = rejectionReason
	if actorID > 0 {
		req.DecidedBy = &actorID
	}
	req.DecidedAt = &at
	req.UpdatedAt = at
	t.store.requests[id] = req
	return nil
}

func (t *memoryTx) MarkPaid(ctx context.Context, id int64, reference, notes string, actorID int64, at time.Time) error {
	req, ok := t.store.requests[id]
	if !ok {
		return shared.NotFoundf("payment request %d", id)
	}
	req.Status = StatusPaid
	req.PaymentReference = reference
	req.PaymentNotes = notes
	if actorID > 0 {
		req.SettledBy = &actorID
	}
	req.SettledAt = &at
	req.UpdatedAt = at
	t.store.requests[id] = req
	return nil
}

func (t *memoryTx) GetPayableForUpdate(ctx context.Context, payableID int64) (payable.Payable, error) {
	p, ok := t.store.payables[payableID]
	if !ok {
		return payable.Payable{}, shared.NotFoundf("payable %d", payableID)
	}
	return p, nil
}

func (t *memoryTx) UpdatePayableBalance(ctx context.Context, payableID int64, outstanding float64, status payable.Status) error {
	p, ok := t.store.payables[payableID]
	if !ok {
		return shared.NotFoundf("payable %d", payableID)
	}
	p.OutstandingAmount = outstanding
	p.Status = status
	t.store.payables[payableID] = p
	return nil
}

func newTestWorkflow(store *memoryStore, at time.Time) *Workflow {
	return NewWorkflow(store, store, shared.FixedClock{At: at}, slog.Default(), nil)
}

func seedPayable(store *memoryStore, id int64, outstanding float64, due time.Time) {
	store.addPayable(payable.Payable{
		ID:                id,
		VendorID:          1,
		InvoiceNumber:     "INV-1",
		Amount:            outstanding,
		OutstandingAmount: outstanding,
		DueDate:           due,
		Status:            payable.StatusPending,
	})
}

func TestSubmitPartialRequest(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	seedPayable(store, 1, 100000, now.AddDate(0, 0, 30))
	wf := newTestWorkflow(store, now)
	ctx := context.Background()

	created, err := wf.Submit(ctx, SubmitInput{
		PayableID:       1,
		PaymentType:     PaymentPartial,
		RequestedAmount: 40000,
		PaymentChannel:  "bank_transfer",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, created.Status)
	require.Equal(t, UrgencyNormal, created.UrgencyLevel)
	require.NotEqual(t, created.PublicID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestSubmitFullResolvesToOutstanding(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	seedPayable(store, 1, 75000, now.AddDate(0, 0, 30))
	wf := newTestWorkflow(store, now)
	ctx := context.Background()

	created, err := wf.Submit(ctx, SubmitInput{
		PayableID:      1,
		PaymentType:    PaymentFull,
		PaymentChannel: "bank_transfer",
	})
	require.NoError(t, err)
	require.InDelta(t, 75000, created.RequestedAmount, 1e-9)

	// A full request naming a stale amount is rejected, not shrunk.
	_, err = wf.Submit(ctx, SubmitInput{
		PayableID:       1,
		PaymentType:     PaymentFull,
		RequestedAmount: 50000,
		PaymentChannel:  "bank_transfer",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSubmitValidation(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	seedPayable(store, 1, 1000, now.AddDate(0, 0, 30))
	wf := newTestWorkflow(store, now)
	ctx := context.Background()

	cases := []SubmitInput{
		{PayableID: 0, PaymentType: PaymentPartial, RequestedAmount: 10, PaymentChannel: "bank_transfer"},
		{PayableID: 1, PaymentType: "installment", RequestedAmount: 10, PaymentChannel: "bank_transfer"},
		{PayableID: 1, PaymentType: PaymentPartial, RequestedAmount: 10},
		{PayableID: 1, PaymentType: PaymentPartial, RequestedAmount: 0, PaymentChannel: "bank_transfer"},
		{PayableID: 1, PaymentType: PaymentPartial, RequestedAmount: 1001, PaymentChannel: "bank_transfer"},
		{PayableID: 1, PaymentType: PaymentPartial, RequestedAmount: 10, PaymentChannel: "bank_transfer", UrgencyLevel: "whenever"},
	}
	for _, input := range cases {
		_, err := wf.Submit(ctx, input)
		require.ErrorIs(t, err, shared.ErrValidation)
	}

	_, err := wf.Submit(ctx, SubmitInput{PayableID: 99, PaymentType: PaymentPartial, RequestedAmount: 10, PaymentChannel: "bank_transfer"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApproveThenSettle(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	seedPayable(store, 1, 100000, now.AddDate(0, 0, 30))
	wf := newTestWorkflow(store, now)
	ctx := shared.ContextWithActor(context.Background(), 42)

	created, err := wf.Submit(ctx, SubmitInput{
		PayableID:       1,
		PaymentType:     PaymentPartial,
		RequestedAmount: 40000,
		PaymentChannel:  "bank_transfer",
	})
	require.NoError(t, err)

	approved, err := wf.Approve(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.DecidedBy)
	require.Equal(t, int64(42), *approved.DecidedBy)

	settled, err := wf.Settle(ctx, SettleInput{RequestID: created.ID, PaymentReference: "TRX-1"})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, settled.Status)
	require.Equal(t, "TRX-1", settled.PaymentReference)

	p := store.payables[1]
	require.InDelta(t, 60000, p.OutstandingAmount, 1e-9)
	require.Equal(t, payable.StatusPartiallyPaid, p.Status)
}

func TestStateMachineRejectsInvalidTransitions(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	seedPayable(store, 1, 100000, now.AddDate(0, 0, 30))
	wf := newTestWorkflow(store, now)
	ctx := context.Background()

	created, err := wf.Submit(ctx, SubmitInput{
		PayableID:       1,
		PaymentType:     PaymentPartial,
		RequestedAmount: 10000,
		PaymentChannel:  "bank_transfer",
	})
	require.NoError(t, err)

	// Settle before approval.
	_, err = wf.Settle(ctx, SettleInput{RequestID: created.ID})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = wf.Approve(ctx, created.ID)
	require.NoError(t, err)

	// Double approve, reject after approve.
	_, err = wf.Approve(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	_, err = wf.Reject(ctx, created.ID, "changed mind")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = wf.Settle(ctx, SettleInput{RequestID: created.ID})
	require.NoError(t, err)

	// Double settle.
	_, err = wf.Settle(ctx, SettleInput{RequestID: created.ID})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestRejectHasNoLedgerEffect(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	seedPayable(store, 1, 100000, now.AddDate(0, 0, 30))
	wf := newTestWorkflow(store, now)
	ctx := context.Background()

	created, err := wf.Submit(ctx, SubmitInput{
		PayableID:       1,
		PaymentType:     PaymentPartial,
		RequestedAmount: 40000,
		PaymentChannel:  "bank_transfer",
	})
	require.NoError(t, err)

	_, err = wf.Reject(ctx, created.ID, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	rejected, err := wf.Reject(ctx, created.ID, "duplicate request")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "duplicate request", rejected.RejectionReason)

	p := store.payables[1]
	require.InDelta(t, 100000, p.OutstandingAmount, 1e-9)
	require.Equal(t, payable.StatusPending, p.Status)
}

func TestSettleRechecksBalance(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	seedPayable(store, 1, 100000, now.AddDate(0, 0, 30))
	wf := newTestWorkflow(store, now)
	ctx := context.Background()

	submit := func(amount float64) PaymentRequest {
		req, err := wf.Submit(ctx, SubmitInput{
			PayableID:       1,
			PaymentType:     PaymentPartial,
			RequestedAmount: amount,
			PaymentChannel:  "bank_transfer",
		})
		require.NoError(t, err)
		_, err = wf.Approve(ctx, req.ID)
		require.NoError(t, err)
		return req
	}

	first := submit(60000)
	second := submit(60000)

	_, err := wf.Settle(ctx, SettleInput{RequestID: first.ID})
	require.NoError(t, err)

	// The second request was valid at submission but the balance no
	// longer covers it. It stays approved.
	_, err = wf.Settle(ctx, SettleInput{RequestID: second.ID})
	require.ErrorIs(t, err, shared.ErrInsufficientBalance)

	stuck, err := wf.Get(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, stuck.Status)

	p := store.payables[1]
	require.InDelta(t, 40000, p.OutstandingAmount, 1e-9)
}

func TestConcurrentSettleExactlyOneWins(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	seedPayable(store, 1, 100000, now.AddDate(0, 0, 30))
	wf := newTestWorkflow(store, now)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 2; i++ {
		req, err := wf.Submit(ctx, SubmitInput{
			PayableID:       1,
			PaymentType:     PaymentPartial,
			RequestedAmount: 60000,
			PaymentChannel:  "bank_transfer",
		})
		require.NoError(t, err)
		_, err = wf.Approve(ctx, req.ID)
		require.NoError(t, err)
		ids = append(ids, req.ID)
	}

	errs := make(chan error, len(ids))
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(requestID int64) {
			defer wg.Done()
			_, err := wf.Settle(ctx, SettleInput{RequestID: requestID})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	var succeeded, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, shared.ErrInsufficientBalance)
			insufficient++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, insufficient)

	p := store.payables[1]
	require.InDelta(t, 40000, p.OutstandingAmount, 1e-9)
	require.Equal(t, payable.StatusPartiallyPaid, p.Status)
}
