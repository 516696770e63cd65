package closing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-gl/internal/shared"
)

type stubRepo struct {
	year   periods.FiscalYear
	exists bool
	nets   []AccountNet
	// moved replaces nets from the second read on.
	moved    []AccountNet
	netReads int
	stale    []int64
}

func (s *stubRepo) GetFiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error) {
	if id != s.year.ID {
		return periods.FiscalYear{}, shared.ErrYearNotFound
	}
	return s.year, nil
}

func (s *stubRepo) ClosingEntryExists(context.Context, int64) (bool, error) { return s.exists, nil }

func (s *stubRepo) NetBalances(context.Context, int64) ([]AccountNet, error) {
	s.netReads++
	if s.moved != nil && s.netReads > 1 {
		return s.moved, nil
	}
	return s.nets, nil
}

func (s *stubRepo) ClosingDrafts(ctx context.Context, from, to time.Time) ([]int64, error) {
	return s.stale, nil
}

type stubDirectory struct {
	accounts map[int64]accounts.Account
}

func (d stubDirectory) Lookup(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if a, ok := d.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (d stubDirectory) FindByCode(ctx context.Context, code string) (accounts.Account, error) {
	for _, a := range d.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return accounts.Account{}, shared.ErrAccountNotFound
}

type stubPoster struct {
	draft   journals.DraftInput
	postErr error
	posted  bool
	deleted []int64
}

func (p *stubPoster) CreateDraft(ctx context.Context, in journals.DraftInput) (journals.Entry, error) {
	p.draft = in
	return journals.Entry{ID: 42, DraftCode: "DRAFT-CLOSE"}, nil
}

func (p *stubPoster) Post(ctx context.Context, id int64, actor string) (journals.PostResult, error) {
	if p.postErr != nil {
		return journals.PostResult{}, p.postErr
	}
	p.posted = true
	return journals.PostResult{EntryID: id, JournalNumber: "JV-2026-00099"}, nil
}

func (p *stubPoster) DeleteDraft(ctx context.Context, id int64, actor string) error {
	p.deleted = append(p.deleted, id)
	return nil
}

type memoryAudit struct {
	logs []internalShared.AuditLog
}

func (m *memoryAudit) Record(ctx context.Context, log internalShared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func chart() stubDirectory {
	return stubDirectory{accounts: map[int64]accounts.Account{
		1:  {ID: 1, Code: "1110", Type: accounts.AccountTypeAsset},
		10: {ID: 10, Code: "3121", Type: accounts.AccountTypeEquity},
		20: {ID: 20, Code: "4100", Type: accounts.AccountTypeRevenue},
		21: {ID: 21, Code: "4900", Type: accounts.AccountTypeOtherIncome},
		30: {ID: 30, Code: "5100", Type: accounts.AccountTypeCOGS},
		31: {ID: 31, Code: "6100", Type: accounts.AccountTypeExpense},
	}}
}

func activeYear() periods.FiscalYear {
	return periods.FiscalYear{
		ID:        7,
		Year:      2026,
		Status:    periods.YearStatusActive,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildClosingLinesProfit(t *testing.T) {
	nets := []AccountNet{
		{AccountID: 31, Debit: dec("300"), Credit: dec("0")},
		{AccountID: 1, Debit: dec("5000"), Credit: dec("0")},
		{AccountID: 20, Debit: dec("0"), Credit: dec("1000")},
		{AccountID: 30, Debit: dec("400"), Credit: dec("0")},
	}
	lines, netIncome := BuildClosingLines(nets, chart().accounts, 10)

	require.Len(t, lines, 4)
	require.Equal(t, int64(20), lines[0].AccountID)
	require.True(t, lines[0].Debit.Equal(dec("1000")))
	require.Equal(t, int64(30), lines[1].AccountID)
	require.True(t, lines[1].Credit.Equal(dec("400")))
	require.Equal(t, int64(31), lines[2].AccountID)
	require.True(t, lines[2].Credit.Equal(dec("300")))

	re := lines[3]
	require.Equal(t, int64(10), re.AccountID)
	require.True(t, re.Credit.Equal(dec("300")))
	require.True(t, netIncome.Equal(dec("300")))

	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	require.True(t, debit.Equal(credit))
}

func TestBuildClosingLinesLoss(t *testing.T) {
	nets := []AccountNet{
		{AccountID: 20, Debit: dec("0"), Credit: dec("200")},
		{AccountID: 31, Debit: dec("450"), Credit: dec("0")},
	}
	lines, netIncome := BuildClosingLines(nets, chart().accounts, 10)
	require.Len(t, lines, 3)
	require.True(t, lines[2].Debit.Equal(dec("250")))
	require.True(t, netIncome.Equal(dec("-250")))
}

func TestBuildClosingLinesBreakEvenSkipsRetainedEarnings(t *testing.T) {
	nets := []AccountNet{
		{AccountID: 21, Debit: dec("0"), Credit: dec("80")},
		{AccountID: 31, Debit: dec("80"), Credit: dec("0")},
		{AccountID: 30, Debit: dec("10"), Credit: dec("10")},
	}
	lines, netIncome := BuildClosingLines(nets, chart().accounts, 10)
	require.Len(t, lines, 2)
	require.True(t, netIncome.IsZero())
}

func TestGenerateClosingEntry(t *testing.T) {
	repo := &stubRepo{year: activeYear(), nets: []AccountNet{
		{AccountID: 20, Debit: dec("0"), Credit: dec("1000")},
		{AccountID: 31, Debit: dec("600"), Credit: dec("0")},
	}}
	poster := &stubPoster{}
	audit := &memoryAudit{}
	engine := NewEngine(repo, chart(), poster, audit, nil, "")

	res, err := engine.GenerateClosingEntry(context.Background(), 7, "controller")
	require.NoError(t, err)
	require.Equal(t, "JV-2026-00099", res.JournalNumber)
	require.Equal(t, 2026, res.FiscalYear)
	require.Equal(t, 2, res.ClosedAccounts)
	require.True(t, res.NetIncome.Equal(dec("400")))

	require.Equal(t, journals.SourceClosing, poster.draft.SourceType)
	require.Equal(t, repo.year.EndDate, poster.draft.JournalDate)
	require.Len(t, poster.draft.Lines, 3)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "fiscal_year.closing_entry", audit.logs[0].Action)
	require.Equal(t, 2, repo.netReads)
	require.Empty(t, poster.deleted)
}

func TestGenerateClosingEntryGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("year not active", func(t *testing.T) {
		fy := activeYear()
		fy.Status = periods.YearStatusSetup
		engine := NewEngine(&stubRepo{year: fy}, chart(), &stubPoster{}, nil, nil, "")
		_, err := engine.GenerateClosingEntry(ctx, 7, "controller")
		require.ErrorIs(t, err, shared.ErrYearNotActive)
	})

	t.Run("already closed", func(t *testing.T) {
		engine := NewEngine(&stubRepo{year: activeYear(), exists: true}, chart(), &stubPoster{}, nil, nil, "")
		_, err := engine.GenerateClosingEntry(ctx, 7, "controller")
		require.ErrorIs(t, err, shared.ErrClosingAlreadyPosted)
	})

	t.Run("retained earnings missing", func(t *testing.T) {
		engine := NewEngine(&stubRepo{year: activeYear()}, chart(), &stubPoster{}, nil, nil, "3999")
		_, err := engine.GenerateClosingEntry(ctx, 7, "controller")
		require.ErrorIs(t, err, shared.ErrRetainedEarningsMissing)
	})

	t.Run("nothing to close", func(t *testing.T) {
		repo := &stubRepo{year: activeYear(), nets: []AccountNet{
			{AccountID: 1, Debit: dec("100"), Credit: dec("0")},
			{AccountID: 20, Debit: dec("50"), Credit: dec("50")},
		}}
		engine := NewEngine(repo, chart(), &stubPoster{}, nil, nil, "")
		_, err := engine.GenerateClosingEntry(ctx, 7, "controller")
		require.ErrorIs(t, err, shared.ErrNoTemporaryBalances)
	})

	t.Run("post failure discards draft", func(t *testing.T) {
		repo := &stubRepo{year: activeYear(), nets: []AccountNet{{AccountID: 20, Debit: dec("0"), Credit: dec("10")}}}
		poster := &stubPoster{postErr: errors.New("period locked")}
		engine := NewEngine(repo, chart(), poster, nil, nil, "")
		_, err := engine.GenerateClosingEntry(ctx, 7, "controller")
		require.ErrorContains(t, err, "period locked")
		require.Equal(t, []int64{42}, poster.deleted)
	})

	t.Run("concurrent closing loses at posting", func(t *testing.T) {
		repo := &stubRepo{year: activeYear(), nets: []AccountNet{{AccountID: 20, Debit: dec("0"), Credit: dec("10")}}}
		poster := &stubPoster{postErr: fmt.Errorf("entry 42: %w", shared.ErrClosingAlreadyPosted)}
		engine := NewEngine(repo, chart(), poster, nil, nil, "")
		_, err := engine.GenerateClosingEntry(ctx, 7, "controller")
		require.ErrorIs(t, err, shared.ErrClosingAlreadyPosted)
		require.Equal(t, []int64{42}, poster.deleted)
	})

	t.Run("balances moved before posting", func(t *testing.T) {
		repo := &stubRepo{
			year:  activeYear(),
			nets:  []AccountNet{{AccountID: 20, Debit: dec("0"), Credit: dec("10")}},
			moved: []AccountNet{{AccountID: 20, Debit: dec("0"), Credit: dec("15")}},
		}
		poster := &stubPoster{}
		engine := NewEngine(repo, chart(), poster, nil, nil, "")
		_, err := engine.GenerateClosingEntry(ctx, 7, "controller")
		require.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		require.False(t, poster.posted)
		require.Equal(t, []int64{42}, poster.deleted)
	})

	t.Run("stale drafts discarded first", func(t *testing.T) {
		repo := &stubRepo{year: activeYear(), stale: []int64{5, 9}, nets: []AccountNet{{AccountID: 20, Debit: dec("0"), Credit: dec("10")}}}
		poster := &stubPoster{}
		engine := NewEngine(repo, chart(), poster, nil, nil, "")
		_, err := engine.GenerateClosingEntry(ctx, 7, "controller")
		require.NoError(t, err)
		require.True(t, poster.posted)
		require.Equal(t, []int64{5, 9}, poster.deleted)
	})
}
