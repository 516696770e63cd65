package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Activity is the on-book debit and credit of one account within a date range.
type Activity struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// ActivityQuery selects on-book lines by journal date. A zero From leaves the range open.
type ActivityQuery struct {
	From time.Time
	To   time.Time
	// ExcludeClosing drops year-end closing entries and their reversals.
	ExcludeClosing bool
}

// Repository reads posted ledger activity.
type Repository interface {
	// Activity sums lines of posted and reversed entries matching q per account.
	Activity(ctx context.Context, q ActivityQuery) ([]Activity, error)
	// AccountLines lists one account's on-book lines matching q, ordered by
	// journal date then journal number. Balance is left zero.
	AccountLines(ctx context.Context, accountID int64, q ActivityQuery) ([]StatementLine, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Activity(ctx context.Context, q ActivityQuery) ([]Activity, error) {
	var lower *time.Time
	if !q.From.IsZero() {
		lower = &q.From
	}
	rows, err := r.db.Query(ctx, `SELECT l.account_id, SUM(l.debit)::text, SUM(l.credit)::text
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.status IN ('POSTED','REVERSED')
  AND ($1::date IS NULL OR e.journal_date >= $1::date)
  AND e.journal_date <= $2::date
  AND (NOT $3 OR e.source_type <> 'CLOSING')
GROUP BY l.account_id ORDER BY l.account_id`, lower, q.To, q.ExcludeClosing)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Activity, error) {
		var (
			a    Activity
			d, c string
		)
		if err := row.Scan(&a.AccountID, &d, &c); err != nil {
			return a, err
		}
		var err error
		if a.Debit, err = decimal.NewFromString(d); err != nil {
			return a, err
		}
		a.Credit, err = decimal.NewFromString(c)
		return a, err
	})
}

func (r *repository) AccountLines(ctx context.Context, accountID int64, q ActivityQuery) ([]StatementLine, error) {
	var lower *time.Time
	if !q.From.IsZero() {
		lower = &q.From
	}
	rows, err := r.db.Query(ctx, `SELECT e.id, COALESCE(e.journal_number, e.draft_code), e.journal_date,
       COALESCE(NULLIF(l.description, ''), e.description), e.source_type, l.debit::text, l.credit::text
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id = $1
  AND e.status IN ('POSTED','REVERSED')
  AND ($2::date IS NULL OR e.journal_date >= $2::date)
  AND e.journal_date <= $3::date
  AND (NOT $4 OR e.source_type <> 'CLOSING')
ORDER BY e.journal_date, e.journal_number, l.line_number`, accountID, lower, q.To, q.ExcludeClosing)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StatementLine, error) {
		var (
			l    StatementLine
			d, c string
		)
		if err := row.Scan(&l.EntryID, &l.JournalNumber, &l.JournalDate, &l.Description, &l.SourceType, &d, &c); err != nil {
			return l, err
		}
		var err error
		if l.Debit, err = decimal.NewFromString(d); err != nil {
			return l, err
		}
		l.Credit, err = decimal.NewFromString(c)
		return l, err
	})
}
