package receivable

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/meridian-fin/meridian/internal/aging"
	"github.com/meridian-fin/meridian/internal/shared"
)

const balanceEpsilon = 1e-9

// Repository defines receivable data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Create(ctx context.Context, input CreateInput) (Invoice, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	ExistsByClientNumber(ctx context.Context, clientID int64, number string) (bool, error)
	ListOutstandingByClient(ctx context.Context, clientID int64) ([]aging.OutstandingItem, error)
}

// TxRepository defines operations under the per-invoice row lock.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Invoice, error)
	UpdateBalance(ctx context.Context, id int64, outstanding float64, status Status) error
	InsertReceipt(ctx context.Context, input ReceiptInput) error
}

// Registry owns receivable invoices and their receipts.
type Registry struct {
	repo   Repository
	clock  shared.Clock
	logger *slog.Logger
	audit  *shared.AuditLogger
}

// NewRegistry builds a Registry. The audit logger may be nil.
func NewRegistry(repo Repository, clock shared.Clock, logger *slog.Logger, audit *shared.AuditLogger) *Registry {
	return &Registry{repo: repo, clock: clock, logger: logger, audit: audit}
}

// Create registers a receivable invoice with outstanding = amount.
func (r *Registry) Create(ctx context.Context, input CreateInput) (Invoice, error) {
	if input.ClientID <= 0 {
		return Invoice{}, shared.Validationf("client id required")
	}
	if input.Number == "" {
		return Invoice{}, shared.Validationf("invoice number required")
	}
	if input.Amount <= 0 {
		return Invoice{}, shared.Validationf("amount must be positive")
	}
	if input.DueDate.IsZero() {
		return Invoice{}, shared.Validationf("due date required")
	}

	exists, err := r.repo.ExistsByClientNumber(ctx, input.ClientID, input.Number)
	if err != nil {
		return Invoice{}, err
	}
	if exists {
		return Invoice{}, shared.Validationf("invoice %s already exists for client %d", input.Number, input.ClientID)
	}

	return r.repo.Create(ctx, input)
}

// Get returns an invoice by id.
func (r *Registry) Get(ctx context.Context, id int64) (Invoice, error) {
	return r.repo.Get(ctx, id)
}

// RegisterReceipt atomically reduces an invoice's outstanding balance
// under the row lock, mirroring the settlement rule on the payable
// side.
func (r *Registry) RegisterReceipt(ctx context.Context, input ReceiptInput) (Invoice, error) {
	if input.Amount <= 0 {
		return Invoice{}, shared.Validationf("receipt amount must be positive")
	}

	var receipted Invoice
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if input.Amount > locked.OutstandingAmount {
			return fmt.Errorf("%w: receipt %.2f exceeds outstanding %.2f on invoice %d",
				shared.ErrInsufficientBalance, input.Amount, locked.OutstandingAmount, locked.ID)
		}

		remaining := locked.OutstandingAmount - input.Amount
		if math.Abs(remaining) < balanceEpsilon {
			remaining = 0
		}
		status := StatusPartiallyPaid
		if remaining == 0 {
			status = StatusPaid
		}

		if err := tx.UpdateBalance(ctx, locked.ID, remaining, status); err != nil {
			return err
		}
		if err := tx.InsertReceipt(ctx, input); err != nil {
			return err
		}

		locked.OutstandingAmount = remaining
		locked.Status = status
		locked.UpdatedAt = r.clock.Now()
		receipted = locked
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	if r.audit != nil {
		if err := r.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorFromContext(ctx),
			Action:   "receivable.receipt",
			Entity:   "receivable_invoice",
			EntityID: strconv.FormatInt(receipted.ID, 10),
			Meta:     map[string]any{"amount": input.Amount, "reference": input.Reference},
		}); err != nil {
			r.logger.Warn("audit receivable receipt", slog.Any("error", err))
		}
	}

	return receipted, nil
}

// OutstandingByClient returns the (amount, due date) pairs feeding the
// client aging report.
func (r *Registry) OutstandingByClient(ctx context.Context, clientID int64) ([]aging.OutstandingItem, error) {
	if clientID <= 0 {
		return nil, shared.Validationf("client id required")
	}
	return r.repo.ListOutstandingByClient(ctx, clientID)
}
