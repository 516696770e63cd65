package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/db"
)

const incrementSQL = `INSERT INTO sequence_counters (document_type, fiscal_year_id, current_value, updated_at)
VALUES ($1, $2, 1, NOW())
ON CONFLICT (document_type, fiscal_year_id)
DO UPDATE SET current_value = sequence_counters.current_value + 1, updated_at = NOW()
RETURNING current_value`

// Increment runs the counter upsert on any pgx transaction. The row lock taken by
// the upsert serializes concurrent callers for the same pair.
func Increment(ctx context.Context, tx pgx.Tx, docType DocumentType, fiscalYearID int64) (int64, error) {
	var n int64
	if err := tx.QueryRow(ctx, incrementSQL, string(docType), fiscalYearID).Scan(&n); err != nil {
		if db.IsSerializationFailure(err) {
			return 0, fmt.Errorf("sequence %s/%d: %w", docType, fiscalYearID, shared.ErrConcurrencyConflict)
		}
		return 0, err
	}
	return n, nil
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres backed Store.
func NewRepository(db *pgxpool.Pool) Store {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	err := db.WithTx(ctx, r.db, pgx.Serializable, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if db.IsSerializationFailure(err) {
		return fmt.Errorf("sequence: %w", shared.ErrConcurrencyConflict)
	}
	return err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) IncrementSequence(ctx context.Context, docType DocumentType, fiscalYearID int64) (int64, error) {
	return Increment(ctx, r.tx, docType, fiscalYearID)
}

func (r *txRepository) FiscalYearNumber(ctx context.Context, fiscalYearID int64) (int, error) {
	var year int
	err := r.tx.QueryRow(ctx, `SELECT year FROM fiscal_years WHERE id = $1`, fiscalYearID).Scan(&year)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrYearNotFound
		}
		return 0, err
	}
	return year, nil
}
