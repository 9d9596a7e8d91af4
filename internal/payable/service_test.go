package payable

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-fin/meridian/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	payables map[int64]Payable
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{payables: make(map[int64]Payable)}
}

// WithTx serializes callers the way the row lock does in postgres.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Create(ctx context.Context, input CreateInput) (Payable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p := Payable{
		ID:                r.nextID,
		VendorID:          input.VendorID,
		InvoiceNumber:     input.InvoiceNumber,
		Description:       input.Description,
		Amount:            input.Amount,
		OutstandingAmount: input.Amount,
		DueDate:           input.DueDate,
		Status:            StatusPending,
	}
	r.payables[p.ID] = p
	return p, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Payable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payables[id]
	if !ok {
		return Payable{}, shared.NotFoundf("payable %d", id)
	}
	return p, nil
}

func (r *memoryRepo) ExistsByVendorInvoice(ctx context.Context, vendorID int64, invoiceNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payables {
		if p.VendorID == vendorID && p.InvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListRequest, asOf time.Time) ([]Payable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payable
	for _, p := range r.payables {
		if req.VendorID > 0 && p.VendorID != req.VendorID {
			continue
		}
		if req.Status == StatusOverdue {
			if p.OutstandingAmount <= 0 || !p.DueDate.Before(asOf) {
				continue
			}
		} else if req.Status != "" && p.Status != req.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) ListOutstandingByVendor(ctx context.Context, vendorID int64) ([]OutstandingItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []OutstandingItem
	for _, p := range r.payables {
		if p.VendorID == vendorID && p.OutstandingAmount > 0 {
			out = append(out, OutstandingItem{PayableID: p.ID, Amount: p.OutstandingAmount, DueDate: p.DueDate})
		}
	}
	return out, nil
}

func (r *memoryRepo) ListOverdue(ctx context.Context, asOf time.Time) ([]Payable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payable
	for _, p := range r.payables {
		if p.OutstandingAmount > 0 && p.DueDate.Before(asOf) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Payable, error) {
	p, ok := t.repo.payables[id]
	if !ok {
		return Payable{}, shared.NotFoundf("payable %d", id)
	}
	return p, nil
}

func (t *memoryTx) UpdateBalance(ctx context.Context, id int64, outstanding float64, status Status) error {
	p, ok := t.repo.payables[id]
	if !ok {
		return shared.NotFoundf("payable %d", id)
	}
	p.OutstandingAmount = outstanding
	p.Status = status
	t.repo.payables[id] = p
	return nil
}

func newTestLedger(repo Repository, at time.Time) *Ledger {
	return NewLedger(repo, shared.FixedClock{At: at}, slog.Default(), nil)
}

func TestCreatePayable(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger := newTestLedger(repo, now)
	ctx := context.Background()

	created, err := ledger.Create(ctx, CreateInput{
		VendorID:      7,
		InvoiceNumber: "INV-100",
		Amount:        100000,
		DueDate:       now.AddDate(0, 0, 30),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, created.Status)
	require.Equal(t, created.Amount, created.OutstandingAmount)

	_, err = ledger.Create(ctx, CreateInput{
		VendorID:      7,
		InvoiceNumber: "INV-100",
		Amount:        500,
		DueDate:       now.AddDate(0, 0, 10),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreatePayableRejectsBadInput(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger := newTestLedger(repo, now)
	ctx := context.Background()

	cases := []CreateInput{
		{VendorID: 0, InvoiceNumber: "X", Amount: 10, DueDate: now},
		{VendorID: 1, InvoiceNumber: "", Amount: 10, DueDate: now},
		{VendorID: 1, InvoiceNumber: "X", Amount: 0, DueDate: now},
		{VendorID: 1, InvoiceNumber: "X", Amount: -5, DueDate: now},
		{VendorID: 1, InvoiceNumber: "X", Amount: 10},
	}
	for _, input := range cases {
		_, err := ledger.Create(ctx, input)
		require.ErrorIs(t, err, shared.ErrValidation)
	}
}

func TestApplySettlementPartialThenFull(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger := newTestLedger(repo, now)
	ctx := context.Background()

	created, err := ledger.Create(ctx, CreateInput{
		VendorID:      1,
		InvoiceNumber: "INV-1",
		Amount:        100000,
		DueDate:       now.AddDate(0, 0, 30),
	})
	require.NoError(t, err)

	partial, err := ledger.ApplySettlement(ctx, created.ID, 40000)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, partial.Status)
	require.InDelta(t, 60000, partial.OutstandingAmount, 1e-9)

	full, err := ledger.ApplySettlement(ctx, created.ID, 60000)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, full.Status)
	require.Zero(t, full.OutstandingAmount)

	_, err = ledger.ApplySettlement(ctx, created.ID, 1)
	require.ErrorIs(t, err, shared.ErrInsufficientBalance)
}

func TestApplySettlementRejectsOverdraw(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger := newTestLedger(repo, now)
	ctx := context.Background()

	created, err := ledger.Create(ctx, CreateInput{
		VendorID:      1,
		InvoiceNumber: "INV-2",
		Amount:        500,
		DueDate:       now.AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	_, err = ledger.ApplySettlement(ctx, created.ID, 500.01)
	require.ErrorIs(t, err, shared.ErrInsufficientBalance)

	_, err = ledger.ApplySettlement(ctx, created.ID, 0)
	require.ErrorIs(t, err, shared.ErrValidation)

	unchanged, err := ledger.Get(ctx, created.ID)
	require.NoError(t, err)
	require.InDelta(t, 500, unchanged.OutstandingAmount, 1e-9)
	require.Equal(t, StatusPending, unchanged.Status)
}

func TestSettleCollapsesRoundingResidue(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := Payable{ID: 1, Amount: 0.3, OutstandingAmount: 0.1 + 0.2, Status: StatusPending}

	updated, err := Settle(p, 0.3, now)
	require.NoError(t, err)
	require.Zero(t, updated.OutstandingAmount)
	require.Equal(t, StatusPaid, updated.Status)
}

func TestEffectiveStatusDerivedNotStored(t *testing.T) {
	repo := newMemoryRepo()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger := newTestLedger(repo, created)
	ctx := context.Background()

	p, err := ledger.Create(ctx, CreateInput{
		VendorID:      3,
		InvoiceNumber: "INV-3",
		Amount:        1000,
		DueDate:       created.AddDate(0, 0, 5),
	})
	require.NoError(t, err)

	// Before the due date the stored status shows through.
	got, err := ledger.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)

	// Past the due date the same row reads as overdue without any write.
	later := newTestLedger(repo, created.AddDate(0, 0, 10))
	got, err = later.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, got.Status)
	require.Equal(t, StatusPending, repo.payables[p.ID].Status)

	// Settling in full clears the overdue view.
	_, err = later.ApplySettlement(ctx, p.ID, 1000)
	require.NoError(t, err)
	got, err = later.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, got.Status)
}

func TestListOverdueFilter(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger := newTestLedger(repo, now)
	ctx := context.Background()

	_, err := ledger.Create(ctx, CreateInput{VendorID: 1, InvoiceNumber: "A", Amount: 100, DueDate: now.AddDate(0, 0, -1)})
	require.NoError(t, err)
	fresh, err := ledger.Create(ctx, CreateInput{VendorID: 1, InvoiceNumber: "B", Amount: 100, DueDate: now.AddDate(0, 0, 1)})
	require.NoError(t, err)

	overdue, err := ledger.List(ctx, ListRequest{Status: StatusOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, StatusOverdue, overdue[0].Status)
	require.NotEqual(t, fresh.ID, overdue[0].ID)

	scan, err := ledger.ListOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, scan, 1)
}
