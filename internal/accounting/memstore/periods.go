package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

// Periods returns the fiscal calendar repository.
func (s *Store) Periods() periods.Repository {
	return periodView{s}
}

type periodView struct{ s *Store }

func (v periodView) ListFiscalYears(ctx context.Context) ([]periods.FiscalYear, error) {
	var out []periods.FiscalYear
	v.s.read(func(st *state) {
		for _, fy := range st.years {
			out = append(out, cloneYear(fy))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (v periodView) GetFiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error) {
	var (
		fy periods.FiscalYear
		ok bool
	)
	v.s.read(func(st *state) {
		fy, ok = st.years[id]
		fy = cloneYear(fy)
	})
	if !ok {
		return periods.FiscalYear{}, shared.ErrYearNotFound
	}
	return fy, nil
}

func (v periodView) GetActiveFiscalYear(ctx context.Context) (periods.FiscalYear, error) {
	var (
		fy periods.FiscalYear
		ok bool
	)
	v.s.read(func(st *state) { fy, ok = st.activeYear() })
	if !ok {
		return periods.FiscalYear{}, shared.ErrYearNotFound
	}
	return fy, nil
}

func (v periodView) FindFiscalYearByDate(ctx context.Context, date time.Time) (periods.FiscalYear, error) {
	var (
		fy  periods.FiscalYear
		err error
	)
	v.s.read(func(st *state) { fy, err = st.yearByDate(date) })
	return fy, err
}

func (v periodView) WithTx(ctx context.Context, fn func(context.Context, periods.TxRepository) error) error {
	return v.s.tx(ctx, func(st *state) error {
		return fn(ctx, periodTx{st})
	})
}

func (st *state) activeYear() (periods.FiscalYear, bool) {
	for _, fy := range st.years {
		if fy.Status == periods.YearStatusActive {
			return cloneYear(fy), true
		}
	}
	return periods.FiscalYear{}, false
}

func (st *state) yearByDate(date time.Time) (periods.FiscalYear, error) {
	for _, fy := range st.years {
		if shared.WithinDates(date, fy.StartDate, fy.EndDate) {
			return cloneYear(fy), nil
		}
	}
	return periods.FiscalYear{}, shared.ErrYearNotFound
}

type periodTx struct{ st *state }

func (t periodTx) InsertFiscalYear(ctx context.Context, fy periods.FiscalYear) (periods.FiscalYear, error) {
	for _, existing := range t.st.years {
		if existing.Year == fy.Year {
			return periods.FiscalYear{}, fmt.Errorf("year %d: %w", fy.Year, shared.ErrDuplicateYear)
		}
	}
	t.st.nextYearID++
	fy.ID = t.st.nextYearID
	fy.Version = 1
	fy.Periods = append([]periods.FiscalPeriod(nil), fy.Periods...)
	for i := range fy.Periods {
		t.st.nextPerID++
		fy.Periods[i].ID = t.st.nextPerID
		fy.Periods[i].FiscalYearID = fy.ID
		fy.Periods[i].Version = 1
	}
	t.st.years[fy.ID] = cloneYear(fy)
	return fy, nil
}

// AcquireActivationGuard is a no-op: the store lock already serializes transactions.
func (t periodTx) AcquireActivationGuard(ctx context.Context) error { return nil }

func (t periodTx) FindActiveFiscalYear(ctx context.Context) (periods.FiscalYear, bool, error) {
	fy, ok := t.st.activeYear()
	return fy, ok, nil
}

func (t periodTx) GetFiscalYearForUpdate(ctx context.Context, id int64) (periods.FiscalYear, error) {
	fy, ok := t.st.years[id]
	if !ok {
		return periods.FiscalYear{}, shared.ErrYearNotFound
	}
	return cloneYear(fy), nil
}

func (t periodTx) GetFiscalYearByPeriodForUpdate(ctx context.Context, periodID int64) (periods.FiscalYear, error) {
	for _, fy := range t.st.years {
		if _, ok := fy.PeriodByID(periodID); ok {
			return cloneYear(fy), nil
		}
	}
	return periods.FiscalYear{}, shared.ErrPeriodNotFound
}

func (t periodTx) UpdateFiscalYear(ctx context.Context, fy periods.FiscalYear) error {
	stored, ok := t.st.years[fy.ID]
	if !ok || stored.Version != fy.Version {
		return fmt.Errorf("fiscal year %d: %w", fy.ID, shared.ErrConcurrencyConflict)
	}
	if fy.Status == periods.YearStatusActive {
		if active, found := t.st.activeYear(); found && active.ID != fy.ID {
			return shared.ErrAnotherYearActive
		}
	}
	periodsOfYear := stored.Periods
	stored = fy
	stored.Periods = periodsOfYear
	stored.Version++
	t.st.years[fy.ID] = stored
	return nil
}

func (t periodTx) UpdatePeriod(ctx context.Context, p periods.FiscalPeriod) error {
	fy, ok := t.st.years[p.FiscalYearID]
	if !ok {
		return shared.ErrPeriodNotFound
	}
	fy = cloneYear(fy)
	for i := range fy.Periods {
		if fy.Periods[i].ID != p.ID {
			continue
		}
		if fy.Periods[i].Version != p.Version {
			return fmt.Errorf("fiscal period %d: %w", p.ID, shared.ErrConcurrencyConflict)
		}
		p.Version++
		fy.Periods[i] = p
		t.st.years[fy.ID] = fy
		return nil
	}
	return shared.ErrPeriodNotFound
}

func (t periodTx) CountDrafts(ctx context.Context, from, to time.Time) (int, error) {
	n := 0
	for _, e := range t.st.entries {
		if e.Status == journals.StatusDraft && e.DeletedAt == nil && shared.WithinDates(e.JournalDate, from, to) {
			n++
		}
	}
	return n, nil
}

func (t periodTx) PostedTotals(ctx context.Context, fiscalYearID int64) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range t.st.entries {
		if e.Status.OnBook() && e.FiscalYearID != nil && *e.FiscalYearID == fiscalYearID {
			debit = debit.Add(e.TotalDebit)
			credit = credit.Add(e.TotalCredit)
		}
	}
	return debit, credit, nil
}
