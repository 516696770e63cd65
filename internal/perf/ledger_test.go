package perf

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
)

type ledger struct {
	store    *memstore.Store
	journals *journals.Service
	checker  *integrity.Checker
	year     periods.FiscalYear

	cash, sales accounts.Account
}

func newLedger(tb testing.TB) *ledger {
	tb.Helper()
	store := memstore.New()
	leaf := func(code, name string, typ accounts.AccountType) accounts.Account {
		return store.AddAccount(accounts.Account{Code: code, Name: name, Type: typ, IsLeaf: true, IsActive: true, AllowPosting: true})
	}
	l := &ledger{store: store}
	l.cash = leaf("1110", "Cash", accounts.AccountTypeAsset)
	l.sales = leaf("4100", "Sales", accounts.AccountTypeRevenue)

	ctx := context.Background()
	calendar := periods.NewService(store.Periods(), nil, nil)
	fy, err := calendar.CreateFiscalYear(ctx, 2026, "perf")
	if err != nil {
		tb.Fatalf("create fiscal year: %v", err)
	}
	if l.year, err = calendar.ActivateFiscalYear(ctx, fy.ID, "perf"); err != nil {
		tb.Fatalf("activate fiscal year: %v", err)
	}
	l.journals = journals.NewService(store.Journals(), accounts.NewService(store.Accounts()), nil, nil)
	l.checker = integrity.NewChecker(store.Integrity(), nil)
	return l
}

// post drafts and posts a two-line sale, spreading dates across the year.
func (l *ledger) post(tb testing.TB, i int) journals.PostResult {
	tb.Helper()
	ctx := context.Background()
	v := decimal.NewFromInt(int64(100 + i))
	draft, err := l.journals.CreateDraft(ctx, journals.DraftInput{
		JournalDate: l.year.StartDate.AddDate(0, 0, i%365),
		Description: "Cash sale",
		Lines: []journals.LineInput{
			{AccountID: l.cash.ID, Debit: v},
			{AccountID: l.sales.ID, Credit: v},
		},
		Actor: "alice",
	})
	if err != nil {
		tb.Fatalf("create draft: %v", err)
	}
	res, err := l.journals.Post(ctx, draft.ID, "bob")
	if err != nil {
		tb.Fatalf("post entry: %v", err)
	}
	return res
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
