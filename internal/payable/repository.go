package payable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const payableColumns = `id, vendor_id, invoice_number, description, amount, outstanding_amount, due_date, status, created_at, updated_at`

func scanPayable(row pgx.Row) (Payable, error) {
	var p Payable
	err := row.Scan(
		&p.ID, &p.VendorID, &p.InvoiceNumber, &p.Description,
		&p.Amount, &p.OutstandingAmount, &p.DueDate, &p.Status,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payable{}, shared.NotFoundf("payable")
	}
	if err != nil {
		return Payable{}, err
	}
	return p, nil
}

func (r *pgRepository) Create(ctx context.Context, input CreateInput) (Payable, error) {
	query := `
		INSERT INTO payables (
			vendor_id, invoice_number, description, amount,
			outstanding_amount, due_date, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $4, $5, 'pending', NOW(), NOW())
		RETURNING ` + payableColumns

	p, err := scanPayable(r.pool.QueryRow(ctx, query,
		input.VendorID,
		input.InvoiceNumber,
		input.Description,
		input.Amount,
		input.DueDate,
	))
	if err != nil {
		return Payable{}, db.ClassifyError(err)
	}
	return p, nil
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Payable, error) {
	query := `SELECT ` + payableColumns + ` FROM payables WHERE id = $1`
	return scanPayable(r.pool.QueryRow(ctx, query, id))
}

func (r *pgRepository) ExistsByVendorInvoice(ctx context.Context, vendorID int64, invoiceNumber string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payables WHERE vendor_id = $1 AND invoice_number = $2)`,
		vendorID, invoiceNumber,
	).Scan(&exists)
	return exists, err
}

func (r *pgRepository) List(ctx context.Context, req ListRequest, asOf time.Time) ([]Payable, error) {
	query := `SELECT ` + payableColumns + ` FROM payables WHERE 1=1`

	args := []any{}
	argNum := 1

	switch {
	case req.Status == StatusOverdue:
		// Overdue is derived, not stored.
		query += fmt.Sprintf(" AND outstanding_amount > 0 AND due_date < $%d", argNum)
		args = append(args, asOf)
		argNum++
	case req.Status != "":
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}
	if req.VendorID > 0 {
		query += fmt.Sprintf(" AND vendor_id = $%d", argNum)
		args = append(args, req.VendorID)
		argNum++
	}

	query += " ORDER BY due_date ASC, id ASC"

	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, req.Limit)
		argNum++
	}
	if req.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payables []Payable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		payables = append(payables, p)
	}
	return payables, rows.Err()
}

func (r *pgRepository) ListOutstandingByVendor(ctx context.Context, vendorID int64) ([]OutstandingItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, outstanding_amount, due_date FROM payables
		 WHERE vendor_id = $1 AND outstanding_amount > 0
		 ORDER BY due_date ASC`,
		vendorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OutstandingItem
	for rows.Next() {
		var item OutstandingItem
		if err := rows.Scan(&item.PayableID, &item.Amount, &item.DueDate); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *pgRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]Payable, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+payableColumns+` FROM payables
		 WHERE outstanding_amount > 0 AND due_date < $1
		 ORDER BY due_date ASC`,
		asOf,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payables []Payable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		payables = append(payables, p)
	}
	return payables, rows.Err()
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

// GetForUpdate locks the payable row for the remainder of the
// transaction.
func (t *pgTxRepository) GetForUpdate(ctx context.Context, id int64) (Payable, error) {
	query := `SELECT ` + payableColumns + ` FROM payables WHERE id = $1 FOR UPDATE`
	return scanPayable(t.tx.QueryRow(ctx, query, id))
}

func (t *pgTxRepository) UpdateBalance(ctx context.Context, id int64, outstanding float64, status Status) error {
	result, err := t.tx.Exec(ctx,
		`UPDATE payables SET outstanding_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, outstanding, string(status),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundf("payable %d", id)
	}
	return nil
}
