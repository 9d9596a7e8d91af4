package receivable

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fin/meridian/internal/aging"
	"github.com/meridian-fin/meridian/internal/platform/db"
	"github.com/meridian-fin/meridian/internal/shared"
)

// Ensure implementation
var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const invoiceColumns = `id, client_id, number, amount, outstanding_amount, due_date, status, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.ClientID, &inv.Number, &inv.Amount,
		&inv.OutstandingAmount, &inv.DueDate, &inv.Status,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFoundf("receivable invoice")
	}
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *pgRepository) Create(ctx context.Context, input CreateInput) (Invoice, error) {
	query := `
		INSERT INTO receivable_invoices (
			client_id, number, amount, outstanding_amount, due_date, status, created_at, updated_at
		) VALUES ($1, $2, $3, $3, $4, 'open', NOW(), NOW())
		RETURNING ` + invoiceColumns

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query,
		input.ClientID,
		input.Number,
		input.Amount,
		input.DueDate,
	))
	if err != nil {
		return Invoice{}, db.ClassifyError(err)
	}
	return inv, nil
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM receivable_invoices WHERE id = $1`
	return scanInvoice(r.pool.QueryRow(ctx, query, id))
}

func (r *pgRepository) ExistsByClientNumber(ctx context.Context, clientID int64, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM receivable_invoices WHERE client_id = $1 AND number = $2)`,
		clientID, number,
	).Scan(&exists)
	return exists, err
}

func (r *pgRepository) ListOutstandingByClient(ctx context.Context, clientID int64) ([]aging.OutstandingItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT outstanding_amount, due_date FROM receivable_invoices
		 WHERE client_id = $1 AND outstanding_amount > 0
		 ORDER BY due_date ASC`,
		clientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []aging.OutstandingItem
	for rows.Next() {
		var item aging.OutstandingItem
		if err := rows.Scan(&item.Amount, &item.DueDate); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// WithTx wraps fn in a RepeatableRead transaction.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (t *pgTxRepository) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM receivable_invoices WHERE id = $1 FOR UPDATE`
	return scanInvoice(t.tx.QueryRow(ctx, query, id))
}

func (t *pgTxRepository) UpdateBalance(ctx context.Context, id int64, outstanding float64, status Status) error {
	result, err := t.tx.Exec(ctx,
		`UPDATE receivable_invoices SET outstanding_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, outstanding, string(status),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundf("receivable invoice %d", id)
	}
	return nil
}

func (t *pgTxRepository) InsertReceipt(ctx context.Context, input ReceiptInput) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO receivable_receipts (invoice_id, amount, reference, received_at)
		 VALUES ($1, $2, $3, NOW())`,
		input.InvoiceID, input.Amount, input.Reference,
	)
	return err
}
