package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/db"
)

// Repository exposes fiscal calendar reads and a transactional entry point.
type Repository interface {
	ListFiscalYears(ctx context.Context) ([]FiscalYear, error)
	GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error)
	GetActiveFiscalYear(ctx context.Context) (FiscalYear, error)
	FindFiscalYearByDate(ctx context.Context, date time.Time) (FiscalYear, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertFiscalYear(ctx context.Context, fy FiscalYear) (FiscalYear, error)
	// AcquireActivationGuard serializes every check-then-act on the single active year.
	AcquireActivationGuard(ctx context.Context) error
	FindActiveFiscalYear(ctx context.Context) (FiscalYear, bool, error)
	GetFiscalYearForUpdate(ctx context.Context, id int64) (FiscalYear, error)
	GetFiscalYearByPeriodForUpdate(ctx context.Context, periodID int64) (FiscalYear, error)
	UpdateFiscalYear(ctx context.Context, fy FiscalYear) error
	UpdatePeriod(ctx context.Context, p FiscalPeriod) error
	CountDrafts(ctx context.Context, from, to time.Time) (int, error)
	PostedTotals(ctx context.Context, fiscalYearID int64) (decimal.Decimal, decimal.Decimal, error)
}

// activationLockKey is the advisory lock id guarding fiscal year activation.
const activationLockKey int64 = 0x6f647973_66790001

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const yearColumns = `id, year, start_date, end_date, status, activated_at, closed_at, COALESCE(closed_by, ''), created_by, version, created_at, updated_at`

const periodColumns = `id, fiscal_year_id, year, number, start_date, end_date, status, locked_at, COALESCE(locked_by, ''), unlock_reason, version, created_at, updated_at`

func scanYear(row pgx.Row) (FiscalYear, error) {
	var fy FiscalYear
	err := row.Scan(&fy.ID, &fy.Year, &fy.StartDate, &fy.EndDate, &fy.Status, &fy.ActivatedAt, &fy.ClosedAt, &fy.ClosedBy, &fy.CreatedBy, &fy.Version, &fy.CreatedAt, &fy.UpdatedAt)
	return fy, err
}

func scanPeriod(row pgx.Row) (FiscalPeriod, error) {
	var p FiscalPeriod
	err := row.Scan(&p.ID, &p.FiscalYearID, &p.Year, &p.Number, &p.StartDate, &p.EndDate, &p.Status, &p.LockedAt, &p.LockedBy, &p.UnlockReason, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadYear(ctx context.Context, q querier, query string, lockPeriods bool, args ...any) (FiscalYear, error) {
	fy, err := scanYear(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, shared.ErrYearNotFound
		}
		return FiscalYear{}, err
	}
	periodQuery := `SELECT ` + periodColumns + ` FROM fiscal_periods WHERE fiscal_year_id = $1 ORDER BY number`
	if lockPeriods {
		periodQuery += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, periodQuery, fy.ID)
	if err != nil {
		return FiscalYear{}, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return FiscalYear{}, err
		}
		fy.Periods = append(fy.Periods, p)
	}
	return fy, rows.Err()
}

func (r *repository) ListFiscalYears(ctx context.Context) ([]FiscalYear, error) {
	rows, err := r.db.Query(ctx, `SELECT `+yearColumns+` FROM fiscal_years ORDER BY year DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []FiscalYear
	for rows.Next() {
		fy, err := scanYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, fy)
	}
	return years, rows.Err()
}

func (r *repository) GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error) {
	return loadYear(ctx, r.db, `SELECT `+yearColumns+` FROM fiscal_years WHERE id = $1`, false, id)
}

func (r *repository) GetActiveFiscalYear(ctx context.Context) (FiscalYear, error) {
	return loadYear(ctx, r.db, `SELECT `+yearColumns+` FROM fiscal_years WHERE status = 'ACTIVE'`, false)
}

// FindFiscalYearByDate returns the year whose range covers the supplied date.
func (r *repository) FindFiscalYearByDate(ctx context.Context, date time.Time) (FiscalYear, error) {
	return loadYear(ctx, r.db, `SELECT `+yearColumns+` FROM fiscal_years WHERE $1::date BETWEEN start_date AND end_date`, false, shared.DateOf(date))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.db, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if db.IsSerializationFailure(err) {
		return fmt.Errorf("fiscal calendar: %w", shared.ErrConcurrencyConflict)
	}
	return err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertFiscalYear(ctx context.Context, fy FiscalYear) (FiscalYear, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO fiscal_years (year, start_date, end_date, status, created_by, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,1,$6,$6) RETURNING id`, fy.Year, fy.StartDate, fy.EndDate, fy.Status, fy.CreatedBy, fy.CreatedAt).Scan(&fy.ID)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok && constraint == "uq_fiscal_years_year" {
			return FiscalYear{}, fmt.Errorf("year %d: %w", fy.Year, shared.ErrDuplicateYear)
		}
		return FiscalYear{}, err
	}
	for i := range fy.Periods {
		p := &fy.Periods[i]
		p.FiscalYearID = fy.ID
		if err := r.tx.QueryRow(ctx, `INSERT INTO fiscal_periods (fiscal_year_id, year, number, start_date, end_date, status, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,1,$7,$7) RETURNING id`, fy.ID, p.Year, p.Number, p.StartDate, p.EndDate, p.Status, p.CreatedAt).Scan(&p.ID); err != nil {
			return FiscalYear{}, err
		}
	}
	return fy, nil
}

func (r *txRepository) AcquireActivationGuard(ctx context.Context) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, activationLockKey)
	return err
}

func (r *txRepository) FindActiveFiscalYear(ctx context.Context) (FiscalYear, bool, error) {
	fy, err := scanYear(r.tx.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE status = 'ACTIVE' FOR UPDATE`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, false, nil
		}
		return FiscalYear{}, false, err
	}
	return fy, true, nil
}

func (r *txRepository) GetFiscalYearForUpdate(ctx context.Context, id int64) (FiscalYear, error) {
	return loadYear(ctx, r.tx, `SELECT `+yearColumns+` FROM fiscal_years WHERE id = $1 FOR UPDATE`, true, id)
}

// GetFiscalYearByPeriodForUpdate locks the parent year and all its periods so
// unlock ordering is evaluated over a stable set.
func (r *txRepository) GetFiscalYearByPeriodForUpdate(ctx context.Context, periodID int64) (FiscalYear, error) {
	fy, err := loadYear(ctx, r.tx, `SELECT `+yearColumns+` FROM fiscal_years
WHERE id = (SELECT fiscal_year_id FROM fiscal_periods WHERE id = $1) FOR UPDATE`, true, periodID)
	if errors.Is(err, shared.ErrYearNotFound) {
		return FiscalYear{}, shared.ErrPeriodNotFound
	}
	return fy, err
}

func (r *txRepository) UpdateFiscalYear(ctx context.Context, fy FiscalYear) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET status=$3, activated_at=$4, closed_at=$5, closed_by=NULLIF($6,''), version=version+1, updated_at=$7
WHERE id=$1 AND version=$2`, fy.ID, fy.Version, fy.Status, fy.ActivatedAt, fy.ClosedAt, fy.ClosedBy, fy.UpdatedAt)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok && constraint == "uq_fiscal_years_single_active" {
			return shared.ErrAnotherYearActive
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("fiscal year %d: %w", fy.ID, shared.ErrConcurrencyConflict)
	}
	return nil
}

func (r *txRepository) UpdatePeriod(ctx context.Context, p FiscalPeriod) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_periods SET status=$3, locked_at=$4, locked_by=NULLIF($5,''), unlock_reason=$6, version=version+1, updated_at=$7
WHERE id=$1 AND version=$2`, p.ID, p.Version, p.Status, p.LockedAt, p.LockedBy, p.UnlockReason, p.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("fiscal period %d: %w", p.ID, shared.ErrConcurrencyConflict)
	}
	return nil
}

// CountDrafts counts live drafts dated within [from, to].
func (r *txRepository) CountDrafts(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries
WHERE status = 'DRAFT' AND deleted_at IS NULL AND journal_date BETWEEN $1::date AND $2::date`, from, to).Scan(&n)
	return n, err
}

// PostedTotals sums debits and credits of on-book entries in the year.
func (r *txRepository) PostedTotals(ctx context.Context, fiscalYearID int64) (decimal.Decimal, decimal.Decimal, error) {
	var debitText, creditText string
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(total_debit),0)::text, COALESCE(SUM(total_credit),0)::text
FROM journal_entries WHERE fiscal_year_id = $1 AND status IN ('POSTED','REVERSED')`, fiscalYearID).Scan(&debitText, &creditText)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	debit, err := decimal.NewFromString(debitText)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	credit, err := decimal.NewFromString(creditText)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}
