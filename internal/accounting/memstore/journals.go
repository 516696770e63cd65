package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

// Journals returns the journal repository.
func (s *Store) Journals() journals.Repository {
	return journalView{s}
}

type journalView struct{ s *Store }

func matches(e journals.Entry, f journals.ListFilter) bool {
	if e.DeletedAt != nil {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.FiscalPeriodID != 0 && (e.FiscalPeriodID == nil || *e.FiscalPeriodID != f.FiscalPeriodID) {
		return false
	}
	if f.From != nil && e.JournalDate.Before(shared.DateOf(*f.From)) {
		return false
	}
	if f.To != nil && e.JournalDate.After(shared.DateOf(*f.To)) {
		return false
	}
	if f.SourceType != "" && e.SourceType != f.SourceType {
		return false
	}
	if f.SourceID != nil && (e.SourceID == nil || *e.SourceID != *f.SourceID) {
		return false
	}
	return true
}

// ListEntries returns headers without lines, newest first.
func (v journalView) ListEntries(ctx context.Context, filter journals.ListFilter) ([]journals.Entry, error) {
	var out []journals.Entry
	v.s.read(func(st *state) {
		for _, e := range st.entries {
			if matches(e, filter) {
				e.Lines = nil
				out = append(out, e)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JournalDate.Equal(out[j].JournalDate) {
			return out[i].JournalDate.After(out[j].JournalDate)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (v journalView) GetEntry(ctx context.Context, id int64) (journals.Entry, error) {
	var (
		e   journals.Entry
		err error
	)
	v.s.read(func(st *state) { e, err = st.liveEntry(id) })
	return e, err
}

func (v journalView) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return v.s.tx(ctx, func(st *state) error {
		return fn(ctx, journalTx{st})
	})
}

func (st *state) liveEntry(id int64) (journals.Entry, error) {
	e, ok := st.entries[id]
	if !ok || e.DeletedAt != nil {
		return journals.Entry{}, fmt.Errorf("entry %d: %w", id, shared.ErrJournalNotFound)
	}
	return cloneEntry(e), nil
}

type journalTx struct{ st *state }

func (t journalTx) IncrementSequence(ctx context.Context, docType sequence.DocumentType, fiscalYearID int64) (int64, error) {
	return t.st.increment(docType, fiscalYearID), nil
}

func (st *state) increment(docType sequence.DocumentType, fiscalYearID int64) int64 {
	k := counterKey{docType: docType, fiscalYearID: fiscalYearID}
	st.counters[k]++
	return st.counters[k]
}

func (t journalTx) FindFiscalYearByDate(ctx context.Context, date time.Time) (periods.FiscalYear, error) {
	return t.st.yearByDate(date)
}

func (t journalTx) GetEntryForUpdate(ctx context.Context, id int64) (journals.Entry, error) {
	return t.st.liveEntry(id)
}

func (t journalTx) InsertEntry(ctx context.Context, e journals.Entry) (journals.Entry, error) {
	if e.SourceID != nil && e.ReversedEntryID == nil {
		for _, existing := range t.st.entries {
			if existing.DeletedAt != nil || existing.ReversedEntryID != nil || existing.SourceID == nil {
				continue
			}
			if existing.SourceType == e.SourceType && *existing.SourceID == *e.SourceID {
				return journals.Entry{}, fmt.Errorf("%s %s: %w", e.SourceType, e.SourceID, shared.ErrSourceAlreadyLinked)
			}
		}
	}
	t.st.nextEntryID++
	e.ID = t.st.nextEntryID
	e.Version = 1
	e = cloneEntry(e)
	t.st.entries[e.ID] = e
	return cloneEntry(e), nil
}

// UpdateEntry writes the header and keeps the stored lines.
func (t journalTx) UpdateEntry(ctx context.Context, e journals.Entry) error {
	stored, ok := t.st.entries[e.ID]
	if !ok || stored.Version != e.Version {
		return fmt.Errorf("entry %d: %w", e.ID, shared.ErrConcurrencyConflict)
	}
	if e.IsStandingClosing() && e.FiscalYearID != nil {
		for id, other := range t.st.entries {
			if id != e.ID && other.IsStandingClosing() && inYear(other, *e.FiscalYearID) {
				return fmt.Errorf("entry %d: %w", e.ID, shared.ErrClosingAlreadyPosted)
			}
		}
	}
	lines := stored.Lines
	stored = e
	stored.Lines = lines
	stored.Version++
	t.st.entries[e.ID] = stored
	return nil
}

func (t journalTx) ReplaceEntryLines(ctx context.Context, entryID int64, lines []journals.Line) error {
	stored, ok := t.st.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %d: %w", entryID, shared.ErrJournalNotFound)
	}
	stored.Lines = append([]journals.Line(nil), lines...)
	t.st.entries[entryID] = stored
	return nil
}

func (t journalTx) ApplyBalances(ctx context.Context, fiscalPeriodID int64, lines []journals.Line) error {
	for _, l := range lines {
		k := balanceKey{accountID: l.AccountID, fiscalPeriodID: fiscalPeriodID}
		b := t.st.balances[k]
		b.debit = b.debit.Add(l.Debit)
		b.credit = b.credit.Add(l.Credit)
		t.st.balances[k] = b
	}
	return nil
}

// Sequences returns the standalone counter store.
func (s *Store) Sequences() sequence.Store {
	return sequenceView{s}
}

type sequenceView struct{ s *Store }

func (v sequenceView) WithTx(ctx context.Context, fn func(context.Context, sequence.Tx) error) error {
	return v.s.tx(ctx, func(st *state) error {
		return fn(ctx, sequenceTx{st})
	})
}

type sequenceTx struct{ st *state }

func (t sequenceTx) IncrementSequence(ctx context.Context, docType sequence.DocumentType, fiscalYearID int64) (int64, error) {
	return t.st.increment(docType, fiscalYearID), nil
}

func (t sequenceTx) FiscalYearNumber(ctx context.Context, fiscalYearID int64) (int, error) {
	fy, ok := t.st.years[fiscalYearID]
	if !ok {
		return 0, fmt.Errorf("fiscal year %d: %w", fiscalYearID, shared.ErrYearNotFound)
	}
	return fy.Year, nil
}
