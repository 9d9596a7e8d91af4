package payable

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/meridian-fin/meridian/internal/shared"
)

// Balances below this are rounding residue and collapse to zero so the
// paid ⇔ outstanding=0 invariant holds for float arithmetic.
const balanceEpsilon = 1e-9

// Repository defines payable data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Create(ctx context.Context, input CreateInput) (Payable, error)
	Get(ctx context.Context, id int64) (Payable, error)
	ExistsByVendorInvoice(ctx context.Context, vendorID int64, invoiceNumber string) (bool, error)
	List(ctx context.Context, req ListRequest, asOf time.Time) ([]Payable, error)
	ListOutstandingByVendor(ctx context.Context, vendorID int64) ([]OutstandingItem, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]Payable, error)
}

// TxRepository defines operations that run under the per-payable row
// lock.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Payable, error)
	UpdateBalance(ctx context.Context, id int64, outstanding float64, status Status) error
}

// Ledger is the single source of truth for a payable's outstanding
// balance and derived status.
type Ledger struct {
	repo   Repository
	clock  shared.Clock
	logger *slog.Logger
	audit  *shared.AuditLogger
}

// NewLedger builds a Ledger. The audit logger may be nil.
func NewLedger(repo Repository, clock shared.Clock, logger *slog.Logger, audit *shared.AuditLogger) *Ledger {
	return &Ledger{repo: repo, clock: clock, logger: logger, audit: audit}
}

// Create registers a new payable with outstanding = amount and status
// pending.
func (l *Ledger) Create(ctx context.Context, input CreateInput) (Payable, error) {
	if input.VendorID <= 0 {
		return Payable{}, shared.Validationf("vendor id required")
	}
	if input.InvoiceNumber == "" {
		return Payable{}, shared.Validationf("invoice number required")
	}
	if input.Amount <= 0 {
		return Payable{}, shared.Validationf("amount must be positive")
	}
	if input.DueDate.IsZero() {
		return Payable{}, shared.Validationf("due date required")
	}

	exists, err := l.repo.ExistsByVendorInvoice(ctx, input.VendorID, input.InvoiceNumber)
	if err != nil {
		return Payable{}, err
	}
	if exists {
		return Payable{}, shared.Validationf("invoice %s already exists for vendor %d", input.InvoiceNumber, input.VendorID)
	}

	// The unique index on (vendor_id, invoice_number) backstops the
	// pre-check under races; the repository classifies 23505.
	created, err := l.repo.Create(ctx, input)
	if err != nil {
		return Payable{}, err
	}

	if l.audit != nil {
		if err := l.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorFromContext(ctx),
			Action:   "payable.create",
			Entity:   "payable",
			EntityID: strconv.FormatInt(created.ID, 10),
			Meta:     map[string]any{"vendor_id": created.VendorID, "amount": created.Amount},
		}); err != nil {
			l.logger.Warn("audit payable create", slog.Any("error", err))
		}
	}

	return created, nil
}

// Get returns a payable with its effective status derived against the
// clock.
func (l *Ledger) Get(ctx context.Context, id int64) (Payable, error) {
	p, err := l.repo.Get(ctx, id)
	if err != nil {
		return Payable{}, err
	}
	p.Status = p.EffectiveStatus(l.clock.Now())
	return p, nil
}

// GetOutstanding returns the current outstanding amount and status,
// with overdue computed at read time.
func (l *Ledger) GetOutstanding(ctx context.Context, id int64) (OutstandingView, error) {
	p, err := l.repo.Get(ctx, id)
	if err != nil {
		return OutstandingView{}, err
	}
	return OutstandingView{
		PayableID:         p.ID,
		OutstandingAmount: p.OutstandingAmount,
		Status:            p.EffectiveStatus(l.clock.Now()),
	}, nil
}

// List returns payables matching the filter. Effective statuses are
// derived against the clock so listings never show stale overdue state.
func (l *Ledger) List(ctx context.Context, req ListRequest) ([]Payable, error) {
	now := l.clock.Now()
	payables, err := l.repo.List(ctx, req, now)
	if err != nil {
		return nil, err
	}
	for i := range payables {
		payables[i].Status = payables[i].EffectiveStatus(now)
	}
	return payables, nil
}

// OutstandingByVendor returns the (amount, due date) pairs feeding the
// vendor aging report.
func (l *Ledger) OutstandingByVendor(ctx context.Context, vendorID int64) ([]OutstandingItem, error) {
	if vendorID <= 0 {
		return nil, shared.Validationf("vendor id required")
	}
	return l.repo.ListOutstandingByVendor(ctx, vendorID)
}

// ListOverdue returns payables past due with a balance outstanding, as
// of the clock. Used by the reminder scan.
func (l *Ledger) ListOverdue(ctx context.Context) ([]Payable, error) {
	now := l.clock.Now()
	payables, err := l.repo.ListOverdue(ctx, now)
	if err != nil {
		return nil, err
	}
	for i := range payables {
		payables[i].Status = payables[i].EffectiveStatus(now)
	}
	return payables, nil
}

// ApplySettlement atomically decrements the outstanding balance. It is
// the only mutation path for outstanding after creation. The payable
// row is locked for the duration of the transaction, so concurrent
// settlements against the same payable serialize.
func (l *Ledger) ApplySettlement(ctx context.Context, payableID int64, amount float64) (Payable, error) {
	var settled Payable
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetForUpdate(ctx, payableID)
		if err != nil {
			return err
		}
		updated, err := Settle(locked, amount, l.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, updated.ID, updated.OutstandingAmount, updated.Status); err != nil {
			return err
		}
		settled = updated
		return nil
	})
	if err != nil {
		return Payable{}, err
	}
	return settled, nil
}

// Settle applies the settlement rule to a locked payable snapshot and
// returns the updated record. It never mutates stored state itself;
// callers persist the result inside the same transaction that locked
// the row.
func Settle(p Payable, amount float64, now time.Time) (Payable, error) {
	if amount <= 0 {
		return Payable{}, shared.Validationf("settlement amount must be positive")
	}
	if amount > p.OutstandingAmount {
		return Payable{}, fmt.Errorf("%w: settlement %.2f exceeds outstanding %.2f on payable %d",
			shared.ErrInsufficientBalance, amount, p.OutstandingAmount, p.ID)
	}

	remaining := p.OutstandingAmount - amount
	if math.Abs(remaining) < balanceEpsilon {
		remaining = 0
	}

	p.OutstandingAmount = remaining
	if remaining == 0 {
		p.Status = StatusPaid
	} else {
		p.Status = StatusPartiallyPaid
	}
	p.UpdatedAt = now
	return p, nil
}
