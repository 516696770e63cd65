package periods

import (
	"fmt"
	"time"
)

// YearStatus enumerates fiscal year lifecycle values.
type YearStatus string

const (
	YearStatusSetup  YearStatus = "SETUP"
	YearStatusActive YearStatus = "ACTIVE"
	YearStatusClosed YearStatus = "CLOSED"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusLocked PeriodStatus = "LOCKED"
)

// FiscalYear is a calendar year with its twelve monthly periods.
type FiscalYear struct {
	ID          int64
	Year        int
	StartDate   time.Time
	EndDate     time.Time
	Status      YearStatus
	ActivatedAt *time.Time
	ClosedAt    *time.Time
	ClosedBy    string
	CreatedBy   string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Periods     []FiscalPeriod
}

// FiscalPeriod represents a fiscal period window.
type FiscalPeriod struct {
	ID           int64
	FiscalYearID int64
	Year         int
	Number       int
	StartDate    time.Time
	EndDate      time.Time
	Status       PeriodStatus
	LockedAt     *time.Time
	LockedBy     string
	UnlockReason string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Code renders the period as YYYY-MM.
func (p FiscalPeriod) Code() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Number)
}

// IsOpen reports whether postings are accepted.
func (p FiscalPeriod) IsOpen() bool {
	return p.Status == PeriodStatusOpen
}

// Period returns the period with the given number.
func (y FiscalYear) Period(number int) (FiscalPeriod, bool) {
	for _, p := range y.Periods {
		if p.Number == number {
			return p, true
		}
	}
	return FiscalPeriod{}, false
}

// PeriodByID returns the period with the given id.
func (y FiscalYear) PeriodByID(id int64) (FiscalPeriod, bool) {
	for _, p := range y.Periods {
		if p.ID == id {
			return p, true
		}
	}
	return FiscalPeriod{}, false
}

// LastPeriod returns period 12.
func (y FiscalYear) LastPeriod() (FiscalPeriod, bool) {
	return y.Period(12)
}
