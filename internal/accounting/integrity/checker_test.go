package integrity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	accounts []AccountSubtotal
	entries  []EntryTotals
	stored   []PeriodBalance
	ledger   []PeriodBalance
	err      error
}

func (s *stubRepo) AccountTotals(context.Context) ([]AccountSubtotal, error) {
	return s.accounts, s.err
}

func (s *stubRepo) EntryTotals(context.Context) ([]EntryTotals, error) {
	return s.entries, nil
}

func (s *stubRepo) StoredBalances(context.Context) ([]PeriodBalance, error) {
	return s.stored, nil
}

func (s *stubRepo) LedgerBalances(context.Context) ([]PeriodBalance, error) {
	return s.ledger, nil
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func healthyRepo() *stubRepo {
	return &stubRepo{
		accounts: []AccountSubtotal{
			{AccountID: 1, Debit: d("1000"), Credit: d("0")},
			{AccountID: 2, Debit: d("0"), Credit: d("1000")},
		},
		entries: []EntryTotals{
			{EntryID: 1, JournalNumber: "JV-2026-00001", HeaderDebit: d("1000"), HeaderCredit: d("1000"), LineDebit: d("1000"), LineCredit: d("1000")},
		},
		stored: []PeriodBalance{
			{AccountID: 1, FiscalPeriodID: 3, Debit: d("1000"), Credit: d("0")},
			{AccountID: 2, FiscalPeriodID: 3, Debit: d("0"), Credit: d("1000")},
		},
		ledger: []PeriodBalance{
			{AccountID: 1, FiscalPeriodID: 3, Debit: d("1000"), Credit: d("0")},
			{AccountID: 2, FiscalPeriodID: 3, Debit: d("0"), Credit: d("1000")},
		},
	}
}

func TestRunHealthyLedger(t *testing.T) {
	checker := NewChecker(healthyRepo(), nil)
	at := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	checker.WithNow(func() time.Time { return at })

	report, err := checker.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Healthy)
	require.Empty(t, report.Findings)
	require.Equal(t, at, report.CheckedAt)
	require.True(t, report.TrialBalance.Balanced)
	require.Nil(t, report.TrialBalance.Subtotals)
	require.Equal(t, 2, report.TrialBalance.Accounts)
	require.Equal(t, 1, report.JournalBalance.EntriesChecked)
	require.Equal(t, 2, report.DerivedBalances.BalancesChecked)
}

func TestRunReportsEveryBreach(t *testing.T) {
	repo := healthyRepo()
	repo.accounts[0].Debit = d("1000.50")
	repo.entries = append(repo.entries, EntryTotals{
		EntryID: 7, JournalNumber: "JV-2026-00007",
		HeaderDebit: d("50"), HeaderCredit: d("50"), LineDebit: d("50.5"), LineCredit: d("50"),
	})
	repo.stored[1].Credit = d("900")

	report, err := NewChecker(repo, nil).Run(context.Background())
	require.NoError(t, err)
	require.False(t, report.Healthy)
	require.Len(t, report.Findings, 3)
	require.Equal(t, 1, report.Critical())

	tb := report.TrialBalance
	require.False(t, tb.Balanced)
	require.True(t, tb.Delta.Equal(d("0.5")))
	require.Len(t, tb.Subtotals, 2)

	require.Len(t, report.JournalBalance.Mismatches, 1)
	mismatch := report.JournalBalance.Mismatches[0]
	require.Equal(t, int64(7), mismatch.EntryID)
	require.True(t, mismatch.Delta.Equal(d("0.5")))

	require.Len(t, report.DerivedBalances.Mismatches, 1)
	derived := report.DerivedBalances.Mismatches[0]
	require.Equal(t, int64(2), derived.AccountID)
	require.True(t, derived.Delta.Equal(d("100")))

	severities := map[Check]Severity{}
	for _, f := range report.Findings {
		severities[f.Check] = f.Severity
	}
	require.Equal(t, SeverityCritical, severities[CheckTrialBalance])
	require.Equal(t, SeverityHigh, severities[CheckJournalBalance])
	require.Equal(t, SeverityMedium, severities[CheckDerivedBalances])
}

func TestJournalBalanceFlagsHeaderDrift(t *testing.T) {
	repo := &stubRepo{entries: []EntryTotals{
		{EntryID: 3, HeaderDebit: d("90"), HeaderCredit: d("90"), LineDebit: d("100"), LineCredit: d("100")},
	}}
	res, err := NewChecker(repo, nil).JournalBalance(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Mismatches, 1)
	require.True(t, res.Mismatches[0].Delta.Equal(d("-10")))
}

func TestDerivedBalancesFlagsMissingStoredRow(t *testing.T) {
	repo := &stubRepo{ledger: []PeriodBalance{{AccountID: 4, FiscalPeriodID: 1, Debit: d("25"), Credit: d("0")}}}
	res, err := NewChecker(repo, nil).DerivedBalances(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.BalancesChecked)
	require.Len(t, res.Mismatches, 1)
	require.True(t, res.Mismatches[0].Delta.Equal(d("-25")))
}

func TestRunReturnsInfrastructureErrors(t *testing.T) {
	repo := healthyRepo()
	repo.err = errors.New("connection reset")
	_, err := NewChecker(repo, nil).Run(context.Background())
	require.ErrorContains(t, err, "connection reset")
}

func TestReportCacheInvalidatesOnBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewReportCache(client, time.Minute)
	ctx := context.Background()

	runs := 0
	loader := func(context.Context) (Report, error) {
		runs++
		return Report{Healthy: true, Findings: []Finding{}}, nil
	}

	_, cached, err := cache.Fetch(ctx, loader)
	require.NoError(t, err)
	require.False(t, cached)

	report, cached, err := cache.Fetch(ctx, loader)
	require.NoError(t, err)
	require.True(t, cached)
	require.True(t, report.Healthy)
	require.Equal(t, 1, runs)

	require.NoError(t, cache.Bump(ctx))
	_, ok, err := cache.Last(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	_, cached, err = cache.Fetch(ctx, loader)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 2, runs)
}

func TestNilReportCacheRunsLoader(t *testing.T) {
	var cache *ReportCache
	report, cached, err := cache.Fetch(context.Background(), func(context.Context) (Report, error) {
		return Report{Healthy: true}, nil
	})
	require.NoError(t, err)
	require.False(t, cached)
	require.True(t, report.Healthy)
	require.NoError(t, cache.Bump(context.Background()))
}
