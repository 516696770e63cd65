package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/closing"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/reports"
)

// Closing returns the read side used by the year-end engine.
func (s *Store) Closing() closing.Repository {
	return closingView{s}
}

type closingView struct{ s *Store }

func (v closingView) GetFiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error) {
	return periodView(v).GetFiscalYear(ctx, id)
}

func (v closingView) ClosingEntryExists(ctx context.Context, fiscalYearID int64) (bool, error) {
	found := false
	v.s.read(func(st *state) {
		for _, e := range st.entries {
			if e.SourceType == journals.SourceClosing && e.Status == journals.StatusPosted &&
				e.ReversedEntryID == nil && inYear(e, fiscalYearID) {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (v closingView) NetBalances(ctx context.Context, fiscalYearID int64) ([]closing.AccountNet, error) {
	totals := make(map[int64]closing.AccountNet)
	v.s.read(func(st *state) {
		for _, e := range st.entries {
			if !e.Status.OnBook() || !inYear(e, fiscalYearID) {
				continue
			}
			for _, l := range e.Lines {
				n := totals[l.AccountID]
				n.AccountID = l.AccountID
				n.Debit = n.Debit.Add(l.Debit)
				n.Credit = n.Credit.Add(l.Credit)
				totals[l.AccountID] = n
			}
		}
	})
	out := make([]closing.AccountNet, 0, len(totals))
	for _, n := range totals {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (v closingView) ClosingDrafts(ctx context.Context, from, to time.Time) ([]int64, error) {
	var ids []int64
	v.s.read(func(st *state) {
		for _, e := range st.entries {
			if e.SourceType == journals.SourceClosing && e.Status == journals.StatusDraft && e.DeletedAt == nil &&
				!e.JournalDate.Before(from) && !e.JournalDate.After(to) {
				ids = append(ids, e.ID)
			}
		}
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func inYear(e journals.Entry, fiscalYearID int64) bool {
	return e.FiscalYearID != nil && *e.FiscalYearID == fiscalYearID
}

// Integrity returns the read side used by the integrity checker.
func (s *Store) Integrity() integrity.Repository {
	return integrityView{s}
}

type integrityView struct{ s *Store }

func (v integrityView) AccountTotals(ctx context.Context) ([]integrity.AccountSubtotal, error) {
	totals := make(map[int64]integrity.AccountSubtotal)
	v.s.read(func(st *state) {
		for _, e := range st.entries {
			if !e.Status.OnBook() {
				continue
			}
			for _, l := range e.Lines {
				t := totals[l.AccountID]
				t.AccountID = l.AccountID
				t.Debit = t.Debit.Add(l.Debit)
				t.Credit = t.Credit.Add(l.Credit)
				totals[l.AccountID] = t
			}
		}
	})
	out := make([]integrity.AccountSubtotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (v integrityView) EntryTotals(ctx context.Context) ([]integrity.EntryTotals, error) {
	var out []integrity.EntryTotals
	v.s.read(func(st *state) {
		for _, e := range st.entries {
			if !e.Status.OnBook() {
				continue
			}
			t := integrity.EntryTotals{
				EntryID:       e.ID,
				JournalNumber: e.JournalNumber,
				HeaderDebit:   e.TotalDebit,
				HeaderCredit:  e.TotalCredit,
				LineDebit:     decimal.Zero,
				LineCredit:    decimal.Zero,
			}
			for _, l := range e.Lines {
				t.LineDebit = t.LineDebit.Add(l.Debit)
				t.LineCredit = t.LineCredit.Add(l.Credit)
			}
			out = append(out, t)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

func (v integrityView) StoredBalances(ctx context.Context) ([]integrity.PeriodBalance, error) {
	var out []integrity.PeriodBalance
	v.s.read(func(st *state) {
		for k, b := range st.balances {
			out = append(out, integrity.PeriodBalance{AccountID: k.accountID, FiscalPeriodID: k.fiscalPeriodID, Debit: b.debit, Credit: b.credit})
		}
	})
	sortBalances(out)
	return out, nil
}

func (v integrityView) LedgerBalances(ctx context.Context) ([]integrity.PeriodBalance, error) {
	totals := make(map[balanceKey]balance)
	v.s.read(func(st *state) {
		for _, e := range st.entries {
			if !e.Status.OnBook() || e.FiscalPeriodID == nil {
				continue
			}
			for _, l := range e.Lines {
				k := balanceKey{accountID: l.AccountID, fiscalPeriodID: *e.FiscalPeriodID}
				b := totals[k]
				b.debit = b.debit.Add(l.Debit)
				b.credit = b.credit.Add(l.Credit)
				totals[k] = b
			}
		}
	})
	out := make([]integrity.PeriodBalance, 0, len(totals))
	for k, b := range totals {
		out = append(out, integrity.PeriodBalance{AccountID: k.accountID, FiscalPeriodID: k.fiscalPeriodID, Debit: b.debit, Credit: b.credit})
	}
	sortBalances(out)
	return out, nil
}

func sortBalances(b []integrity.PeriodBalance) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].AccountID != b[j].AccountID {
			return b[i].AccountID < b[j].AccountID
		}
		return b[i].FiscalPeriodID < b[j].FiscalPeriodID
	})
}

// Reports returns the read side used by financial statements.
func (s *Store) Reports() reports.Repository {
	return reportsView{s}
}

type reportsView struct{ s *Store }

func (v reportsView) Activity(ctx context.Context, q reports.ActivityQuery) ([]reports.Activity, error) {
	totals := make(map[int64]reports.Activity)
	v.s.read(func(st *state) {
		for _, e := range st.entries {
			if !e.Status.OnBook() || e.JournalDate.After(q.To) || (!q.From.IsZero() && e.JournalDate.Before(q.From)) {
				continue
			}
			if q.ExcludeClosing && e.SourceType == journals.SourceClosing {
				continue
			}
			for _, l := range e.Lines {
				a := totals[l.AccountID]
				a.AccountID = l.AccountID
				a.Debit = a.Debit.Add(l.Debit)
				a.Credit = a.Credit.Add(l.Credit)
				totals[l.AccountID] = a
			}
		}
	})
	out := make([]reports.Activity, 0, len(totals))
	for _, a := range totals {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (v reportsView) AccountLines(ctx context.Context, accountID int64, q reports.ActivityQuery) ([]reports.StatementLine, error) {
	var out []reports.StatementLine
	v.s.read(func(st *state) {
		for _, e := range st.entries {
			if !e.Status.OnBook() || e.JournalDate.After(q.To) || (!q.From.IsZero() && e.JournalDate.Before(q.From)) {
				continue
			}
			if q.ExcludeClosing && e.SourceType == journals.SourceClosing {
				continue
			}
			for _, l := range e.Lines {
				if l.AccountID != accountID {
					continue
				}
				desc := l.Description
				if desc == "" {
					desc = e.Description
				}
				out = append(out, reports.StatementLine{
					EntryID:       e.ID,
					JournalNumber: e.Reference(),
					JournalDate:   e.JournalDate,
					Description:   desc,
					SourceType:    string(e.SourceType),
					Debit:         l.Debit,
					Credit:        l.Credit,
				})
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].JournalDate.Equal(out[j].JournalDate) {
			return out[i].JournalDate.Before(out[j].JournalDate)
		}
		if out[i].JournalNumber != out[j].JournalNumber {
			return out[i].JournalNumber < out[j].JournalNumber
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out, nil
}
