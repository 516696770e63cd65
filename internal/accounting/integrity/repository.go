package integrity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// EntryTotals carries the stored header totals and recomputed line sums of an entry.
type EntryTotals struct {
	EntryID       int64
	JournalNumber string
	HeaderDebit   decimal.Decimal
	HeaderCredit  decimal.Decimal
	LineDebit     decimal.Decimal
	LineCredit    decimal.Decimal
}

// PeriodBalance is a debit and credit total for one account within one period.
type PeriodBalance struct {
	AccountID      int64
	FiscalPeriodID int64
	Debit          decimal.Decimal
	Credit         decimal.Decimal
}

// Repository is read-only.
type Repository interface {
	AccountTotals(ctx context.Context) ([]AccountSubtotal, error)
	EntryTotals(ctx context.Context) ([]EntryTotals, error)
	StoredBalances(ctx context.Context) ([]PeriodBalance, error)
	LedgerBalances(ctx context.Context) ([]PeriodBalance, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func parseAmounts(dst []*decimal.Decimal, src []string) error {
	for i := range src {
		v, err := decimal.NewFromString(src[i])
		if err != nil {
			return err
		}
		*dst[i] = v
	}
	return nil
}

func (r *repository) AccountTotals(ctx context.Context) ([]AccountSubtotal, error) {
	rows, err := r.db.Query(ctx, `SELECT l.account_id, SUM(l.debit)::text, SUM(l.credit)::text
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.status IN ('POSTED','REVERSED')
GROUP BY l.account_id ORDER BY l.account_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AccountSubtotal, error) {
		var (
			s    AccountSubtotal
			d, c string
		)
		if err := row.Scan(&s.AccountID, &d, &c); err != nil {
			return s, err
		}
		return s, parseAmounts([]*decimal.Decimal{&s.Debit, &s.Credit}, []string{d, c})
	})
}

func (r *repository) EntryTotals(ctx context.Context) ([]EntryTotals, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, COALESCE(e.journal_number, ''), e.total_debit::text, e.total_credit::text,
COALESCE(SUM(l.debit), 0)::text, COALESCE(SUM(l.credit), 0)::text
FROM journal_entries e LEFT JOIN journal_lines l ON l.entry_id = e.id
WHERE e.status IN ('POSTED','REVERSED')
GROUP BY e.id ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (EntryTotals, error) {
		var (
			t      EntryTotals
			hd, hc string
			ld, lc string
		)
		if err := row.Scan(&t.EntryID, &t.JournalNumber, &hd, &hc, &ld, &lc); err != nil {
			return t, err
		}
		return t, parseAmounts(
			[]*decimal.Decimal{&t.HeaderDebit, &t.HeaderCredit, &t.LineDebit, &t.LineCredit},
			[]string{hd, hc, ld, lc},
		)
	})
}

func (r *repository) StoredBalances(ctx context.Context) ([]PeriodBalance, error) {
	return r.balances(ctx, `SELECT account_id, fiscal_period_id, debit_total::text, credit_total::text
FROM account_balances ORDER BY account_id, fiscal_period_id`)
}

func (r *repository) LedgerBalances(ctx context.Context) ([]PeriodBalance, error) {
	return r.balances(ctx, `SELECT l.account_id, e.fiscal_period_id, SUM(l.debit)::text, SUM(l.credit)::text
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.status IN ('POSTED','REVERSED')
GROUP BY l.account_id, e.fiscal_period_id ORDER BY l.account_id, e.fiscal_period_id`)
}

func (r *repository) balances(ctx context.Context, query string) ([]PeriodBalance, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PeriodBalance, error) {
		var (
			b    PeriodBalance
			d, c string
		)
		if err := row.Scan(&b.AccountID, &b.FiscalPeriodID, &d, &c); err != nil {
			return b, err
		}
		return b, parseAmounts([]*decimal.Decimal{&b.Debit, &b.Credit}, []string{d, c})
	})
}
