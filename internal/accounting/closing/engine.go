// Package closing generates the year-end entry that moves temporary account
// balances into retained earnings.
package closing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-gl/internal/shared"
)

// DefaultRetainedEarningsCode is the account receiving the year's net income.
const DefaultRetainedEarningsCode = "3121"

// AccountDirectory supplies account types and the retained earnings account.
type AccountDirectory interface {
	Lookup(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	FindByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Poster is the journal workflow used to record the closing entry.
type Poster interface {
	CreateDraft(ctx context.Context, in journals.DraftInput) (journals.Entry, error)
	Post(ctx context.Context, id int64, actor string) (journals.PostResult, error)
	DeleteDraft(ctx context.Context, id int64, actor string) error
}

// AuditPort records closing runs.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Result summarises a generated closing entry.
type Result struct {
	journals.PostResult
	FiscalYear     int
	ClosedAccounts int
	NetIncome      decimal.Decimal
}

// Engine builds and posts closing entries.
type Engine struct {
	repo         Repository
	accounts     AccountDirectory
	poster       Poster
	audit        AuditPort
	logger       *slog.Logger
	retainedCode string
	now          func() time.Time
}

func NewEngine(repo Repository, accounts AccountDirectory, poster Poster, audit AuditPort, logger *slog.Logger, retainedEarningsCode string) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if retainedEarningsCode == "" {
		retainedEarningsCode = DefaultRetainedEarningsCode
	}
	return &Engine{
		repo:         repo,
		accounts:     accounts,
		poster:       poster,
		audit:        audit,
		logger:       logger,
		retainedCode: retainedEarningsCode,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// GenerateClosingEntry zeroes every temporary account of an active year into
// retained earnings with one entry dated the year's last day.
func (e *Engine) GenerateClosingEntry(ctx context.Context, fiscalYearID int64, actor string) (Result, error) {
	fy, err := e.repo.GetFiscalYear(ctx, fiscalYearID)
	if err != nil {
		return Result{}, err
	}
	if fy.Status != periods.YearStatusActive {
		return Result{}, fmt.Errorf("close %d in %s: %w", fy.Year, fy.Status, shared.ErrYearNotActive)
	}
	exists, err := e.repo.ClosingEntryExists(ctx, fy.ID)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{}, fmt.Errorf("year %d: %w", fy.Year, shared.ErrClosingAlreadyPosted)
	}
	retained, err := e.accounts.FindByCode(ctx, e.retainedCode)
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			return Result{}, fmt.Errorf("code %s: %w", e.retainedCode, shared.ErrRetainedEarningsMissing)
		}
		return Result{}, err
	}

	// A run that stopped between drafting and posting leaves its draft behind,
	// which would block locking December.
	stale, err := e.repo.ClosingDrafts(ctx, fy.StartDate, fy.EndDate)
	if err != nil {
		return Result{}, err
	}
	for _, id := range stale {
		if err := e.poster.DeleteDraft(ctx, id, actor); err != nil {
			return Result{}, fmt.Errorf("discard stale closing draft %d: %w", id, err)
		}
		e.logger.Warn("stale closing draft discarded", slog.Int("year", fy.Year), slog.Int64("entry_id", id))
	}

	lines, netIncome, err := e.closingLines(ctx, fy.ID, retained.ID)
	if err != nil {
		return Result{}, err
	}
	if len(lines) == 0 {
		return Result{}, fmt.Errorf("year %d: %w", fy.Year, shared.ErrNoTemporaryBalances)
	}
	closed := len(lines)
	if !netIncome.IsZero() {
		closed--
	}

	draft, err := e.poster.CreateDraft(ctx, journals.DraftInput{
		JournalDate: fy.EndDate,
		Description: fmt.Sprintf("Year-end closing %d: income and expense to retained earnings", fy.Year),
		SourceType:  journals.SourceClosing,
		Lines:       lines,
		Actor:       actor,
	})
	if err != nil {
		return Result{}, err
	}
	// Postings that landed while drafting would survive the close; re-read and
	// give up instead of leaving a residual.
	recheck, _, err := e.closingLines(ctx, fy.ID, retained.ID)
	if err == nil && !sameLines(lines, recheck) {
		err = fmt.Errorf("year %d balances moved while closing: %w", fy.Year, shared.ErrConcurrencyConflict)
	}
	var posted journals.PostResult
	if err == nil {
		posted, err = e.poster.Post(ctx, draft.ID, actor)
	}
	if err != nil {
		if delErr := e.poster.DeleteDraft(ctx, draft.ID, actor); delErr != nil {
			e.logger.Error("discard closing draft", slog.String("draft_code", draft.DraftCode), slog.Any("error", delErr))
		}
		return Result{}, err
	}

	res := Result{PostResult: posted, FiscalYear: fy.Year, ClosedAccounts: closed, NetIncome: netIncome}
	e.logger.Info("closing entry posted",
		slog.Int("year", fy.Year),
		slog.String("journal_number", posted.JournalNumber),
		slog.Int("accounts", closed),
		slog.String("net_income", netIncome.StringFixed(2)),
	)
	if e.audit != nil {
		if err := e.audit.Record(ctx, internalShared.AuditLog{
			Actor:    actor,
			Action:   "fiscal_year.closing_entry",
			Entity:   "fiscal_year",
			EntityID: strconv.FormatInt(fy.ID, 10),
			Meta: map[string]any{
				"journal_number": posted.JournalNumber,
				"net_income":     netIncome.StringFixed(2),
			},
			At: e.now(),
		}); err != nil {
			e.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
	return res, nil
}

// BuildClosingLines returns one line per temporary account with a non-zero net
// balance, plus the retained earnings line carrying the difference. Net income
// is positive for a profit.
func BuildClosingLines(nets []AccountNet, directory map[int64]accounts.Account, retainedEarningsID int64) ([]journals.LineInput, decimal.Decimal) {
	sorted := append([]AccountNet(nil), nets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AccountID < sorted[j].AccountID })

	var (
		lines         []journals.LineInput
		debit, credit = decimal.Zero, decimal.Zero
	)
	for _, n := range sorted {
		acc, ok := directory[n.AccountID]
		if !ok || !acc.Type.IsTemporary() {
			continue
		}
		net := n.Net()
		switch {
		case net.IsPositive():
			lines = append(lines, journals.LineInput{AccountID: n.AccountID, Credit: net, Description: "Year-end closing"})
			credit = credit.Add(net)
		case net.IsNegative():
			lines = append(lines, journals.LineInput{AccountID: n.AccountID, Debit: net.Neg(), Description: "Year-end closing"})
			debit = debit.Add(net.Neg())
		}
	}
	if len(lines) == 0 {
		return nil, decimal.Zero
	}
	diff := debit.Sub(credit)
	switch {
	case diff.IsPositive():
		lines = append(lines, journals.LineInput{AccountID: retainedEarningsID, Credit: diff, Description: "Net income for the year"})
	case diff.IsNegative():
		lines = append(lines, journals.LineInput{AccountID: retainedEarningsID, Debit: diff.Neg(), Description: "Net loss for the year"})
	}
	return lines, diff
}

func (e *Engine) closingLines(ctx context.Context, fiscalYearID, retainedID int64) ([]journals.LineInput, decimal.Decimal, error) {
	nets, err := e.repo.NetBalances(ctx, fiscalYearID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	ids := make([]int64, 0, len(nets))
	for _, n := range nets {
		ids = append(ids, n.AccountID)
	}
	directory, err := e.accounts.Lookup(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}
	lines, netIncome := BuildClosingLines(nets, directory, retainedID)
	return lines, netIncome, nil
}

func sameLines(a, b []journals.LineInput) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].AccountID != b[i].AccountID || !a[i].Debit.Equal(b[i].Debit) || !a[i].Credit.Equal(b[i].Credit) {
			return false
		}
	}
	return true
}
