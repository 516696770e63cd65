package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestBuildTrialBalance(t *testing.T) {
	balances := []AccountBalance{
		{Code: "1110", Name: "Cash", Type: accounts.AccountTypeAsset, Opening: dec("1000"), Debit: dec("200"), Credit: dec("150")},
		{Code: "1120", Name: "Bank", Type: accounts.AccountTypeAsset, Opening: dec("500"), Debit: dec("100"), Credit: dec("50")},
		{Code: "2110", Name: "Accounts payable", Type: accounts.AccountTypeLiability, Opening: dec("-1500"), Debit: dec("10"), Credit: dec("110")},
		{Code: "6100", Name: "Dormant", Type: accounts.AccountTypeExpense},
	}

	tb := BuildTrialBalance(balances)
	require.Len(t, tb.Groups, 2)
	require.Equal(t, "11", tb.Groups[0].Key)
	require.True(t, tb.TotalDebit.Equal(dec("310")))
	require.True(t, tb.TotalCredit.Equal(dec("310")))
	require.True(t, tb.TotalOpening.IsZero())
	require.True(t, tb.TotalClosing.IsZero())
	require.True(t, tb.Balanced)
	require.True(t, tb.Groups[0].Closing.Equal(dec("1600")))

	balances[0].Debit = dec("201")
	require.False(t, BuildTrialBalance(balances).Balanced)
}

func TestBuildProfitAndLoss(t *testing.T) {
	balances := []AccountBalance{
		{Code: "4100", Name: "Sales", Type: accounts.AccountTypeRevenue, Credit: dec("1200")},
		{Code: "4900", Name: "Other income", Type: accounts.AccountTypeOtherIncome, Credit: dec("50")},
		{Code: "5100", Name: "COGS", Type: accounts.AccountTypeCOGS, Debit: dec("300")},
		{Code: "6100", Name: "Marketing", Type: accounts.AccountTypeExpense, Debit: dec("200")},
		{Code: "1110", Name: "Cash", Type: accounts.AccountTypeAsset, Debit: dec("750")},
	}

	pl := BuildProfitAndLoss(balances)
	require.True(t, pl.Revenue.Total.Equal(dec("1250")))
	require.True(t, pl.Expense.Total.Equal(dec("500")))
	require.True(t, pl.NetIncome.Equal(dec("750")))
	require.Len(t, pl.Expense.Accounts, 2)
}

func TestBuildBalanceSheet(t *testing.T) {
	balances := []AccountBalance{
		{Code: "1110", Name: "Cash", Type: accounts.AccountTypeAsset, Debit: dec("600"), Credit: dec("20")},
		{Code: "2110", Name: "AP", Type: accounts.AccountTypeLiability, Debit: dec("10"), Credit: dec("40")},
		{Code: "3110", Name: "Capital", Type: accounts.AccountTypeEquity, Credit: dec("500")},
		{Code: "4100", Name: "Sales", Type: accounts.AccountTypeRevenue, Credit: dec("100")},
		{Code: "6100", Name: "Rent", Type: accounts.AccountTypeExpense, Debit: dec("50")},
	}

	bs := BuildBalanceSheet(balances)
	require.True(t, bs.Assets.Total.Equal(dec("580")))
	require.True(t, bs.Liabilities.Total.Equal(dec("30")))
	require.True(t, bs.CurrentEarnings.Equal(dec("50")))
	require.True(t, bs.Equity.Total.Equal(dec("550")))
	require.True(t, bs.TotalLiabilitiesAndEquity.Equal(dec("580")))
	require.True(t, bs.Balanced)
}

type stubRepo struct {
	calls []ActivityQuery
	data  map[bool][]Activity
	lines []StatementLine
}

func (s *stubRepo) AccountLines(ctx context.Context, accountID int64, q ActivityQuery) ([]StatementLine, error) {
	s.calls = append(s.calls, q)
	return s.lines, nil
}

func (s *stubRepo) Activity(ctx context.Context, q ActivityQuery) ([]Activity, error) {
	s.calls = append(s.calls, q)
	return s.data[q.From.IsZero()], nil
}

type stubChart []accounts.Account

func (c stubChart) List(context.Context) ([]accounts.Account, error) { return c, nil }

func TestServiceBalancesSplitsOpening(t *testing.T) {
	repo := &stubRepo{data: map[bool][]Activity{
		true:  {{AccountID: 1, Debit: dec("100")}, {AccountID: 2, Credit: dec("100")}},
		false: {{AccountID: 1, Debit: dec("40")}, {AccountID: 3, Credit: dec("40")}, {AccountID: 99, Debit: dec("1")}},
	}}
	chart := stubChart{
		{ID: 1, Code: "1110", Type: accounts.AccountTypeAsset},
		{ID: 2, Code: "3110", Type: accounts.AccountTypeEquity},
		{ID: 3, Code: "4100", Type: accounts.AccountTypeRevenue},
	}
	svc := NewService(repo, chart)

	from := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	balances, err := svc.Balances(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, balances, 3)
	require.True(t, balances[0].Opening.Equal(dec("100")))
	require.True(t, balances[0].Debit.Equal(dec("40")))
	require.True(t, balances[1].Opening.Equal(dec("-100")))
	require.True(t, balances[2].Credit.Equal(dec("40")))

	require.Len(t, repo.calls, 2)
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), repo.calls[0].From)
	require.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), repo.calls[1].To)
	require.False(t, repo.calls[0].ExcludeClosing)

	_, err = svc.ProfitAndLoss(context.Background(), from, to)
	require.NoError(t, err)
	require.True(t, repo.calls[2].ExcludeClosing)

	_, err = svc.Balances(context.Background(), to, from)
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)
	_, err = svc.BalanceSheet(context.Background(), time.Time{})
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)
}

func TestAccountStatementRunningBalance(t *testing.T) {
	march := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	repo := &stubRepo{
		data: map[bool][]Activity{
			true: {{AccountID: 1, Debit: dec("500"), Credit: dec("200")}, {AccountID: 3, Credit: dec("900")}},
		},
		lines: []StatementLine{
			{EntryID: 4, JournalNumber: "JV-2026-00004", JournalDate: march(2), Debit: dec("100")},
			{EntryID: 5, JournalNumber: "JV-2026-00005", JournalDate: march(9), Credit: dec("250")},
			{EntryID: 6, JournalNumber: "JV-2026-00006", JournalDate: march(20), Debit: dec("40")},
		},
	}
	chart := stubChart{
		{ID: 1, Code: "1110", Name: "Cash", Type: accounts.AccountTypeAsset},
		{ID: 3, Code: "4100", Name: "Sales", Type: accounts.AccountTypeRevenue},
	}
	svc := NewService(repo, chart)

	st, err := svc.AccountStatement(context.Background(), 1, march(1), march(31))
	require.NoError(t, err)
	require.Equal(t, "1110", st.Code)
	require.True(t, st.Opening.Equal(dec("300")))
	require.Len(t, st.Lines, 3)
	require.True(t, st.Lines[0].Balance.Equal(dec("400")))
	require.True(t, st.Lines[1].Balance.Equal(dec("150")))
	require.True(t, st.Lines[2].Balance.Equal(dec("190")))
	require.True(t, st.TotalDebit.Equal(dec("140")))
	require.True(t, st.TotalCredit.Equal(dec("250")))
	require.True(t, st.Closing.Equal(st.Opening.Add(st.TotalDebit).Sub(st.TotalCredit)))
	require.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), repo.calls[0].To)
	require.Equal(t, march(1), repo.calls[1].From)

	// Credit-normal accounts run positive on the credit side.
	repo.lines = []StatementLine{{EntryID: 7, JournalDate: march(3), Credit: dec("100")}}
	st, err = svc.AccountStatement(context.Background(), 3, march(1), march(31))
	require.NoError(t, err)
	require.True(t, st.Opening.Equal(dec("900")))
	require.True(t, st.Closing.Equal(dec("1000")))

	_, err = svc.AccountStatement(context.Background(), 42, march(1), march(31))
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
	_, err = svc.AccountStatement(context.Background(), 1, march(31), march(1))
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)
}
