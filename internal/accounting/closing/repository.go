package closing

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
)

// AccountNet is the on-book debit and credit total of an account within a year.
type AccountNet struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Net returns debit minus credit.
func (n AccountNet) Net() decimal.Decimal {
	return n.Debit.Sub(n.Credit)
}

// Repository reads what the closing engine needs.
type Repository interface {
	GetFiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error)
	// ClosingEntryExists reports a posted, unreversed closing entry in the year.
	ClosingEntryExists(ctx context.Context, fiscalYearID int64) (bool, error)
	NetBalances(ctx context.Context, fiscalYearID int64) ([]AccountNet, error)
	// ClosingDrafts lists undeleted closing drafts dated within [from, to].
	ClosingDrafts(ctx context.Context, from, to time.Time) ([]int64, error)
}

type repository struct {
	db    *pgxpool.Pool
	years periods.Repository
}

// NewRepository reuses the calendar repository for year lookups.
func NewRepository(db *pgxpool.Pool, years periods.Repository) Repository {
	return &repository{db: db, years: years}
}

func (r *repository) GetFiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error) {
	return r.years.GetFiscalYear(ctx, id)
}

func (r *repository) ClosingEntryExists(ctx context.Context, fiscalYearID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries
WHERE fiscal_year_id = $1 AND source_type = 'CLOSING' AND status = 'POSTED' AND reversed_entry_id IS NULL)`, fiscalYearID).Scan(&exists)
	return exists, err
}

func (r *repository) NetBalances(ctx context.Context, fiscalYearID int64) ([]AccountNet, error) {
	rows, err := r.db.Query(ctx, `SELECT l.account_id, SUM(l.debit)::text, SUM(l.credit)::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.fiscal_year_id = $1 AND e.status IN ('POSTED','REVERSED')
GROUP BY l.account_id
ORDER BY l.account_id`, fiscalYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountNet
	for rows.Next() {
		var (
			n             AccountNet
			debit, credit string
		)
		if err := rows.Scan(&n.AccountID, &debit, &credit); err != nil {
			return nil, err
		}
		if n.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if n.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *repository) ClosingDrafts(ctx context.Context, from, to time.Time) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM journal_entries
WHERE source_type = 'CLOSING' AND status = 'DRAFT' AND deleted_at IS NULL
  AND journal_date BETWEEN $1::date AND $2::date
ORDER BY id`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
