package periods

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

const (
	MinYear = 2000
	MaxYear = 2100
)

// NewFiscalYear builds a SETUP year spanning Jan 1..Dec 31 with twelve open monthly periods.
func NewFiscalYear(year int, actor string, now time.Time) (FiscalYear, error) {
	if year < MinYear || year > MaxYear {
		return FiscalYear{}, fmt.Errorf("year %d: %w", year, shared.ErrYearOutOfRange)
	}
	fy := FiscalYear{
		Year:      year,
		StartDate: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		Status:    YearStatusSetup,
		CreatedBy: actor,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fy.Periods = make([]FiscalPeriod, 0, 12)
	for m := 1; m <= 12; m++ {
		start := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		fy.Periods = append(fy.Periods, FiscalPeriod{
			Year:      year,
			Number:    m,
			StartDate: start,
			EndDate:   start.AddDate(0, 1, -1),
			Status:    PeriodStatusOpen,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return fy, nil
}

func noOpenPeriod(date time.Time, cause error) error {
	return fmt.Errorf("%w on %s: %w", shared.ErrNoOpenPeriod, date.Format(time.DateOnly), cause)
}

// Resolve finds the open period of year containing date. The error always wraps
// ErrNoOpenPeriod together with the specific cause.
func Resolve(year FiscalYear, date time.Time) (FiscalPeriod, error) {
	if !shared.WithinDates(date, year.StartDate, year.EndDate) {
		return FiscalPeriod{}, noOpenPeriod(date, shared.ErrDateOutOfRange)
	}
	if year.Status != YearStatusActive {
		return FiscalPeriod{}, noOpenPeriod(date, shared.ErrYearNotActive)
	}
	for _, p := range year.Periods {
		if !shared.WithinDates(date, p.StartDate, p.EndDate) {
			continue
		}
		if !p.IsOpen() {
			return FiscalPeriod{}, noOpenPeriod(date, fmt.Errorf("period %s: %w", p.Code(), shared.ErrPeriodNotOpen))
		}
		return p, nil
	}
	return FiscalPeriod{}, noOpenPeriod(date, shared.ErrDateOutOfRange)
}

// YearFinder looks up the fiscal year whose range covers a date.
type YearFinder interface {
	FindFiscalYearByDate(ctx context.Context, date time.Time) (FiscalYear, error)
}

// ResolveDate loads the year covering date through find and resolves its open period.
func ResolveDate(ctx context.Context, find YearFinder, date time.Time) (FiscalYear, FiscalPeriod, error) {
	fy, err := find.FindFiscalYearByDate(ctx, date)
	if err != nil {
		if errors.Is(err, shared.ErrYearNotFound) {
			return FiscalYear{}, FiscalPeriod{}, noOpenPeriod(date, shared.ErrDateOutOfRange)
		}
		return FiscalYear{}, FiscalPeriod{}, err
	}
	p, err := Resolve(fy, date)
	if err != nil {
		return FiscalYear{}, FiscalPeriod{}, err
	}
	return fy, p, nil
}

// Activate moves the year from SETUP to ACTIVE. Uniqueness of the active year is
// checked by the caller under the activation guard.
func (y *FiscalYear) Activate(now time.Time) error {
	if y.Status != YearStatusSetup {
		return fmt.Errorf("activate %d from %s: %w", y.Year, y.Status, shared.ErrInvalidYearStatus)
	}
	y.Status = YearStatusActive
	y.ActivatedAt = &now
	y.UpdatedAt = now
	return nil
}

// Close moves the year from ACTIVE to CLOSED once every period is locked.
func (y *FiscalYear) Close(actor string, now time.Time) error {
	switch y.Status {
	case YearStatusClosed:
		return fmt.Errorf("close %d: %w", y.Year, shared.ErrYearClosed)
	case YearStatusActive:
	default:
		return fmt.Errorf("close %d: %w", y.Year, shared.ErrYearNotActive)
	}
	var open []string
	for _, p := range y.Periods {
		if p.IsOpen() {
			open = append(open, p.Code())
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("open periods %s: %w", strings.Join(open, ","), shared.ErrPeriodsNotAllLocked)
	}
	y.Status = YearStatusClosed
	y.ClosedAt = &now
	y.ClosedBy = actor
	y.UpdatedAt = now
	return nil
}

// LockPeriod locks the period with the given number and returns its new state.
// Any open period may lock regardless of order.
func (y *FiscalYear) LockPeriod(number int, actor string, now time.Time) (FiscalPeriod, error) {
	if y.Status == YearStatusClosed {
		return FiscalPeriod{}, fmt.Errorf("lock period of %d: %w", y.Year, shared.ErrYearClosed)
	}
	idx := y.periodIndex(number)
	if idx < 0 {
		return FiscalPeriod{}, shared.ErrPeriodNotFound
	}
	p := &y.Periods[idx]
	if p.Status == PeriodStatusLocked {
		return FiscalPeriod{}, fmt.Errorf("period %s: %w", p.Code(), shared.ErrPeriodAlreadyLocked)
	}
	p.Status = PeriodStatusLocked
	p.LockedAt = &now
	p.LockedBy = actor
	p.UnlockReason = ""
	p.UpdatedAt = now
	return *p, nil
}

// UnlockPeriod reopens the most recently locked period of an active year.
func (y *FiscalYear) UnlockPeriod(number int, reason string, now time.Time) (FiscalPeriod, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return FiscalPeriod{}, shared.ErrReasonRequired
	}
	if y.Status == YearStatusClosed {
		return FiscalPeriod{}, fmt.Errorf("unlock period of %d: %w", y.Year, shared.ErrYearClosed)
	}
	if y.Status != YearStatusActive {
		return FiscalPeriod{}, fmt.Errorf("unlock period of %d: %w", y.Year, shared.ErrYearNotActive)
	}
	idx := y.periodIndex(number)
	if idx < 0 {
		return FiscalPeriod{}, shared.ErrPeriodNotFound
	}
	p := &y.Periods[idx]
	if p.Status != PeriodStatusLocked {
		return FiscalPeriod{}, fmt.Errorf("period %s: %w", p.Code(), shared.ErrPeriodNotLocked)
	}
	if latest := y.mostRecentLocked(); latest != number {
		return FiscalPeriod{}, fmt.Errorf("period %s while %04d-%02d is locked: %w", p.Code(), y.Year, latest, shared.ErrNotMostRecentLock)
	}
	p.Status = PeriodStatusOpen
	p.LockedAt = nil
	p.LockedBy = ""
	p.UnlockReason = reason
	p.UpdatedAt = now
	return *p, nil
}

// mostRecentLocked returns the highest locked period number, or 0.
func (y FiscalYear) mostRecentLocked() int {
	latest := 0
	for _, p := range y.Periods {
		if p.Status == PeriodStatusLocked && p.Number > latest {
			latest = p.Number
		}
	}
	return latest
}

func (y FiscalYear) periodIndex(number int) int {
	for i, p := range y.Periods {
		if p.Number == number {
			return i
		}
	}
	return -1
}
