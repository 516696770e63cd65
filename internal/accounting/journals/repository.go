package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/db"
)

// Repository encapsulates journal reads and the posting transaction.
type Repository interface {
	ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error)
	GetEntry(ctx context.Context, id int64) (Entry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a journal transaction.
type TxRepository interface {
	sequence.Counter
	periods.YearFinder
	GetEntryForUpdate(ctx context.Context, id int64) (Entry, error)
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	// UpdateEntry writes header fields when the stored version matches e.Version.
	UpdateEntry(ctx context.Context, e Entry) error
	ReplaceEntryLines(ctx context.Context, entryID int64, lines []Line) error
	// ApplyBalances adds posted line amounts to the running per-period account balances.
	ApplyBalances(ctx context.Context, fiscalPeriodID int64, lines []Line) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, draft_code, COALESCE(journal_number, ''), status, journal_date, description, reference_number,
source_type, source_id, document_type, fiscal_year_id, fiscal_period_id, cost_center_id,
reversed_entry_id, reversal_entry_id, adjusted_entry_id, reversal_reason,
total_debit::text, total_credit::text, COALESCE(posted_by, ''), posted_at, created_by, deleted_at, version, created_at, updated_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e             Entry
		debit, credit string
	)
	err := row.Scan(&e.ID, &e.DraftCode, &e.JournalNumber, &e.Status, &e.JournalDate, &e.Description, &e.ReferenceNumber,
		&e.SourceType, &e.SourceID, &e.DocumentType, &e.FiscalYearID, &e.FiscalPeriodID, &e.CostCenterID,
		&e.ReversedEntryID, &e.ReversalEntryID, &e.AdjustedEntryID, &e.ReversalReason,
		&debit, &credit, &e.PostedBy, &e.PostedAt, &e.CreatedBy, &e.DeletedAt, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	if e.TotalDebit, err = decimal.NewFromString(debit); err != nil {
		return Entry{}, err
	}
	if e.TotalCredit, err = decimal.NewFromString(credit); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func loadLines(ctx context.Context, q querier, entryID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT line_number, account_id, debit::text, credit::text, description, cost_center_id, warehouse_id
FROM journal_lines WHERE entry_id = $1 ORDER BY line_number`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var (
			l             Line
			debit, credit string
		)
		if err := rows.Scan(&l.LineNumber, &l.AccountID, &debit, &credit, &l.Description, &l.CostCenterID, &l.WarehouseID); err != nil {
			return nil, err
		}
		if l.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if l.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func loadEntry(ctx context.Context, q querier, query string, id int64) (Entry, error) {
	e, err := scanEntry(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("entry %d: %w", id, shared.ErrJournalNotFound)
		}
		return Entry{}, err
	}
	if e.Lines, err = loadLines(ctx, q, e.ID); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ListEntries returns entry headers matching filter, newest first.
func (r *repository) ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error) {
	var (
		conds = []string{"deleted_at IS NULL"}
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.FiscalPeriodID != 0 {
		add("fiscal_period_id = $%d", filter.FiscalPeriodID)
	}
	if filter.From != nil {
		add("journal_date >= $%d::date", *filter.From)
	}
	if filter.To != nil {
		add("journal_date <= $%d::date", *filter.To)
	}
	if filter.SourceType != "" {
		add("source_type = $%d", filter.SourceType)
	}
	if filter.SourceID != nil {
		add("source_id = $%d", *filter.SourceID)
	}
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM journal_entries WHERE %s ORDER BY journal_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		entryColumns, strings.Join(conds, " AND "), len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return loadEntry(ctx, r.db, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1 AND deleted_at IS NULL`, id)
}

// WithTx runs fn in a serializable transaction so numbering and the status
// transition commit together.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.db, pgx.Serializable, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if db.IsSerializationFailure(err) {
		return fmt.Errorf("journals: %w", shared.ErrConcurrencyConflict)
	}
	return err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) IncrementSequence(ctx context.Context, docType sequence.DocumentType, fiscalYearID int64) (int64, error) {
	return sequence.Increment(ctx, r.tx, docType, fiscalYearID)
}

// FindFiscalYearByDate share-locks the covering year and its periods so a
// concurrent lock or close waits for the posting to finish.
func (r *txRepository) FindFiscalYearByDate(ctx context.Context, date time.Time) (periods.FiscalYear, error) {
	var (
		fy periods.FiscalYear
		d  = shared.DateOf(date)
	)
	err := r.tx.QueryRow(ctx, `SELECT id, year, start_date, end_date, status, version FROM fiscal_years
WHERE $1::date BETWEEN start_date AND end_date FOR SHARE`, d).
		Scan(&fy.ID, &fy.Year, &fy.StartDate, &fy.EndDate, &fy.Status, &fy.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.FiscalYear{}, shared.ErrYearNotFound
		}
		return periods.FiscalYear{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, fiscal_year_id, year, number, start_date, end_date, status, version
FROM fiscal_periods WHERE fiscal_year_id = $1 ORDER BY number FOR SHARE`, fy.ID)
	if err != nil {
		return periods.FiscalYear{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p periods.FiscalPeriod
		if err := rows.Scan(&p.ID, &p.FiscalYearID, &p.Year, &p.Number, &p.StartDate, &p.EndDate, &p.Status, &p.Version); err != nil {
			return periods.FiscalYear{}, err
		}
		fy.Periods = append(fy.Periods, p)
	}
	return fy, rows.Err()
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (Entry, error) {
	return loadEntry(ctx, r.tx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (draft_code, status, journal_date, description, reference_number,
source_type, source_id, document_type, cost_center_id, reversed_entry_id, adjusted_entry_id, reversal_reason,
total_debit, total_credit, created_by, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1,$16,$16) RETURNING id`,
		e.DraftCode, e.Status, e.JournalDate, e.Description, e.ReferenceNumber,
		e.SourceType, e.SourceID, e.DocumentType, e.CostCenterID, e.ReversedEntryID, e.AdjustedEntryID, e.ReversalReason,
		e.TotalDebit, e.TotalCredit, e.CreatedBy, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok && constraint == "uq_journal_entries_source" {
			return Entry{}, fmt.Errorf("%s %s: %w", e.SourceType, e.SourceID, shared.ErrSourceAlreadyLinked)
		}
		return Entry{}, err
	}
	e.Version = 1
	if err := r.ReplaceEntryLines(ctx, e.ID, e.Lines); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) UpdateEntry(ctx context.Context, e Entry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET journal_number=NULLIF($3,''), status=$4, journal_date=$5, description=$6,
reference_number=$7, fiscal_year_id=$8, fiscal_period_id=$9, cost_center_id=$10, reversal_entry_id=$11,
total_debit=$12, total_credit=$13, posted_by=NULLIF($14,''), posted_at=$15, deleted_at=$16, version=version+1, updated_at=$17
WHERE id=$1 AND version=$2`,
		e.ID, e.Version, e.JournalNumber, e.Status, e.JournalDate, e.Description,
		e.ReferenceNumber, e.FiscalYearID, e.FiscalPeriodID, e.CostCenterID, e.ReversalEntryID,
		e.TotalDebit, e.TotalCredit, e.PostedBy, e.PostedAt, e.DeletedAt, e.UpdatedAt)
	if err != nil {
		if db.IsSerializationFailure(err) {
			return fmt.Errorf("entry %d: %w", e.ID, shared.ErrConcurrencyConflict)
		}
		if constraint, ok := db.UniqueViolation(err); ok && constraint == "uq_journal_entries_closing" {
			return fmt.Errorf("entry %d: %w", e.ID, shared.ErrClosingAlreadyPosted)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("entry %d: %w", e.ID, shared.ErrConcurrencyConflict)
	}
	return nil
}

func (r *txRepository) ReplaceEntryLines(ctx context.Context, entryID int64, lines []Line) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id = $1`, entryID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO journal_lines (entry_id, line_number, account_id, debit, credit, description, cost_center_id, warehouse_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, entryID, l.LineNumber, l.AccountID, l.Debit, l.Credit, l.Description, l.CostCenterID, l.WarehouseID)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) ApplyBalances(ctx context.Context, fiscalPeriodID int64, lines []Line) error {
	totals := make(map[int64][2]decimal.Decimal)
	for _, l := range lines {
		t := totals[l.AccountID]
		t[0] = t[0].Add(l.Debit)
		t[1] = t[1].Add(l.Credit)
		totals[l.AccountID] = t
	}
	batch := &pgx.Batch{}
	for accountID, t := range totals {
		batch.Queue(`INSERT INTO account_balances (account_id, fiscal_period_id, debit_total, credit_total, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (account_id, fiscal_period_id)
DO UPDATE SET debit_total = account_balances.debit_total + EXCLUDED.debit_total,
credit_total = account_balances.credit_total + EXCLUDED.credit_total, updated_at = NOW()`, accountID, fiscalPeriodID, t[0], t[1])
	}
	return r.tx.SendBatch(ctx, batch).Close()
}
