package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fin/meridian/internal/shared"
)

// WithTx executes fn within a RepeatableRead transaction. Serialization
// failures surface as shared.ErrConcurrencyConflict so callers can
// retry from fresh state.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return ClassifyError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", ClassifyError(err))
	}

	return nil
}

// ClassifyError maps Postgres error codes onto the shared taxonomy.
// 23505 (unique_violation) becomes a validation failure, 40001
// (serialization_failure) and 40P01 (deadlock_detected) become
// concurrency conflicts. Other errors pass through unchanged.
func ClassifyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", shared.ErrValidation, pgErr.ConstraintName)
	case "40001", "40P01":
		return fmt.Errorf("%w: %s", shared.ErrConcurrencyConflict, pgErr.Message)
	default:
		return err
	}
}
