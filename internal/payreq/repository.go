package payreq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fin/meridian/internal/payable"
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

const requestColumns = `id, public_id, payable_id, payment_type, requested_amount, payment_channel,
	urgency_level, request_reason, status, rejection_reason, payment_reference, payment_notes,
	requested_by, decided_by, decided_at, settled_by, settled_at, created_at, updated_at`

func scanRequest(row pgx.Row) (PaymentRequest, error) {
	var req PaymentRequest
	var decidedBy, settledBy pgtype.Int8
	var decidedAt, settledAt pgtype.Timestamptz

	err := row.Scan(
		&req.ID, &req.PublicID, &req.PayableID, &req.PaymentType, &req.RequestedAmount, &req.PaymentChannel,
		&req.UrgencyLevel, &req.RequestReason, &req.Status, &req.RejectionReason, &req.PaymentReference, &req.PaymentNotes,
		&req.RequestedBy, &decidedBy, &decidedAt, &settledBy, &settledAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentRequest{}, shared.NotFoundf("payment request")
	}
	if err != nil {
		return PaymentRequest{}, err
	}

	if decidedBy.Valid {
		req.DecidedBy = &decidedBy.Int64
	}
	if decidedAt.Valid {
		req.DecidedAt = &decidedAt.Time
	}
	if settledBy.Valid {
		req.SettledBy = &settledBy.Int64
	}
	if settledAt.Valid {
		req.SettledAt = &settledAt.Time
	}
	return req, nil
}

func (r *pgRepository) Create(ctx context.Context, req PaymentRequest) (PaymentRequest, error) {
	query := `
		INSERT INTO payment_requests (
			public_id, payable_id, payment_type, requested_amount, payment_channel,
			urgency_level, request_reason, status, requested_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var requestedBy pgtype.Int8
	if req.RequestedBy > 0 {
		requestedBy = pgtype.Int8{Int64: req.RequestedBy, Valid: true}
	}

	err := r.pool.QueryRow(ctx, query,
		req.PublicID,
		req.PayableID,
		string(req.PaymentType),
		req.RequestedAmount,
		req.PaymentChannel,
		string(req.UrgencyLevel),
		req.RequestReason,
		string(req.Status),
		requestedBy,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return PaymentRequest{}, db.ClassifyError(err)
	}
	return req, nil
}

func (r *pgRepository) Get(ctx context.Context, id int64) (PaymentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM payment_requests WHERE id = $1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

func (r *pgRepository) List(ctx context.Context, req ListRequest) ([]PaymentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM payment_requests WHERE 1=1`

	args := []any{}
	argNum := 1

	if req.PayableID > 0 {
		query += fmt.Sprintf(" AND payable_id = $%d", argNum)
		args = append(args, req.PayableID)
		argNum++
	}
	if req.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}

	query += " ORDER BY created_at DESC, id DESC"

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

	var requests []PaymentRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
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

// GetRequestForUpdate locks the request row. Requests are always
// locked before their payable so the two settle paths cannot deadlock.
func (t *pgTxRepository) GetRequestForUpdate(ctx context.Context, id int64) (PaymentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM payment_requests WHERE id = $1 FOR UPDATE`
	return scanRequest(t.tx.QueryRow(ctx, query, id))
}

func (t *pgTxRepository) UpdateDecision(ctx context.Context, id int64, status RequestStatus, rejectionReason string, actorID int64, at time.Time) error {
	var decidedBy pgtype.Int8
	if actorID > 0 {
		decidedBy = pgtype.Int8{Int64: actorID, Valid: true}
	}
	result, err := t.tx.Exec(ctx,
		`UPDATE payment_requests
		 SET status = $2, rejection_reason = $3, decided_by = $4, decided_at = $5, updated_at = $5
		 WHERE id = $1`,
		id, string(status), rejectionReason, decidedBy, at,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundf("payment request %d", id)
	}
	return nil
}

func (t *pgTxRepository) MarkPaid(ctx context.Context, id int64, reference, notes string, actorID int64, at time.Time) error {
	var settledBy pgtype.Int8
	if actorID > 0 {
		settledBy = pgtype.Int8{Int64: actorID, Valid: true}
	}
	result, err := t.tx.Exec(ctx,
		`UPDATE payment_requests
		 SET status = 'paid', payment_reference = $2, payment_notes = $3, settled_by = $4, settled_at = $5, updated_at = $5
		 WHERE id = $1`,
		id, reference, notes, settledBy, at,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundf("payment request %d", id)
	}
	return nil
}

func (t *pgTxRepository) GetPayableForUpdate(ctx context.Context, payableID int64) (payable.Payable, error) {
	var p payable.Payable
	err := t.tx.QueryRow(ctx,
		`SELECT id, vendor_id, invoice_number, description, amount, outstanding_amount, due_date, status, created_at, updated_at
		 FROM payables WHERE id = $1 FOR UPDATE`,
		payableID,
	).Scan(
		&p.ID, &p.VendorID, &p.InvoiceNumber, &p.Description,
		&p.Amount, &p.OutstandingAmount, &p.DueDate, &p.Status,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return payable.Payable{}, shared.NotFoundf("payable %d", payableID)
	}
	if err != nil {
		return payable.Payable{}, err
	}
	return p, nil
}

func (t *pgTxRepository) UpdatePayableBalance(ctx context.Context, payableID int64, outstanding float64, status payable.Status) error {
	result, err := t.tx.Exec(ctx,
		`UPDATE payables SET outstanding_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		payableID, outstanding, string(status),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.NotFoundf("payable %d", payableID)
	}
	return nil
}
