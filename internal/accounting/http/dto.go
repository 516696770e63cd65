package ledgerhttp

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/closing"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

type createYearRequest struct {
	Year int `json:"year" validate:"required,gte=2000,lte=2100"`
}

type unlockRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type lineRequest struct {
	AccountID    int64           `json:"account_id" validate:"required,gt=0"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Description  string          `json:"description" validate:"max=255"`
	CostCenterID *int64          `json:"cost_center_id,omitempty"`
	WarehouseID  *int64          `json:"warehouse_id,omitempty"`
}

func (l lineRequest) input() journals.LineInput {
	return journals.LineInput{
		AccountID:    l.AccountID,
		Debit:        l.Debit,
		Credit:       l.Credit,
		Description:  l.Description,
		CostCenterID: l.CostCenterID,
		WarehouseID:  l.WarehouseID,
	}
}

func lineInputs(lines []lineRequest) []journals.LineInput {
	out := make([]journals.LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.input())
	}
	return out
}

type draftRequest struct {
	JournalDate     string        `json:"journal_date" validate:"required,datetime=2006-01-02"`
	Description     string        `json:"description" validate:"required,max=500"`
	ReferenceNumber string        `json:"reference_number" validate:"max=100"`
	SourceType      string        `json:"source_type" validate:"omitempty,max=40"`
	SourceID        *uuid.UUID    `json:"source_id,omitempty"`
	DocumentType    string        `json:"document_type" validate:"omitempty,len=2"`
	CostCenterID    *int64        `json:"cost_center_id,omitempty"`
	Lines           []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (d draftRequest) input(actor string) (journals.DraftInput, error) {
	date, err := parseDate(d.JournalDate)
	if err != nil {
		return journals.DraftInput{}, err
	}
	return journals.DraftInput{
		JournalDate:     date,
		Description:     d.Description,
		ReferenceNumber: d.ReferenceNumber,
		SourceType:      journals.SourceType(d.SourceType),
		SourceID:        d.SourceID,
		DocumentType:    sequence.DocumentType(d.DocumentType),
		CostCenterID:    d.CostCenterID,
		Lines:           lineInputs(d.Lines),
		Actor:           actor,
	}, nil
}

type headerRequest struct {
	JournalDate     string `json:"journal_date" validate:"required,datetime=2006-01-02"`
	Description     string `json:"description" validate:"required,max=500"`
	ReferenceNumber string `json:"reference_number" validate:"max=100"`
	CostCenterID    *int64 `json:"cost_center_id,omitempty"`
}

type replaceLinesRequest struct {
	Lines []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reverseRequest struct {
	Reason       string `json:"reason" validate:"required,max=500"`
	ReversalDate string `json:"reversal_date" validate:"omitempty,datetime=2006-01-02"`
}

type nextCodeRequest struct {
	FiscalYearID int64 `json:"fiscal_year_id" validate:"required,gt=0"`
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, httpx.ErrValidation)
	}
	return t, nil
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

type periodView struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Number       int    `json:"number"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Status       string `json:"status"`
	LockedBy     string `json:"locked_by,omitempty"`
	UnlockReason string `json:"unlock_reason,omitempty"`
	Version      int64  `json:"version"`
}

func newPeriodView(p periods.FiscalPeriod) periodView {
	return periodView{
		ID:           p.ID,
		Code:         p.Code(),
		Number:       p.Number,
		StartDate:    p.StartDate.Format(dateLayout),
		EndDate:      p.EndDate.Format(dateLayout),
		Status:       string(p.Status),
		LockedBy:     p.LockedBy,
		UnlockReason: p.UnlockReason,
		Version:      p.Version,
	}
}

type yearView struct {
	ID        int64        `json:"id"`
	Year      int          `json:"year"`
	StartDate string       `json:"start_date"`
	EndDate   string       `json:"end_date"`
	Status    string       `json:"status"`
	ClosedBy  string       `json:"closed_by,omitempty"`
	Version   int64        `json:"version"`
	Periods   []periodView `json:"periods"`
}

func newYearView(fy periods.FiscalYear) yearView {
	view := yearView{
		ID:        fy.ID,
		Year:      fy.Year,
		StartDate: fy.StartDate.Format(dateLayout),
		EndDate:   fy.EndDate.Format(dateLayout),
		Status:    string(fy.Status),
		ClosedBy:  fy.ClosedBy,
		Version:   fy.Version,
		Periods:   make([]periodView, 0, len(fy.Periods)),
	}
	for _, p := range fy.Periods {
		view.Periods = append(view.Periods, newPeriodView(p))
	}
	return view
}

type lineView struct {
	LineNumber   int             `json:"line_number"`
	AccountID    int64           `json:"account_id"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Description  string          `json:"description,omitempty"`
	CostCenterID *int64          `json:"cost_center_id,omitempty"`
	WarehouseID  *int64          `json:"warehouse_id,omitempty"`
}

type entryView struct {
	ID              int64           `json:"id"`
	DraftCode       string          `json:"draft_code"`
	JournalNumber   string          `json:"journal_number,omitempty"`
	Status          string          `json:"status"`
	JournalDate     string          `json:"journal_date"`
	Description     string          `json:"description"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	SourceType      string          `json:"source_type"`
	SourceID        *uuid.UUID      `json:"source_id,omitempty"`
	DocumentType    string          `json:"document_type"`
	FiscalPeriodID  *int64          `json:"fiscal_period_id,omitempty"`
	ReversedEntryID *int64          `json:"reversed_entry_id,omitempty"`
	ReversalEntryID *int64          `json:"reversal_entry_id,omitempty"`
	AdjustedEntryID *int64          `json:"adjusted_entry_id,omitempty"`
	ReversalReason  string          `json:"reversal_reason,omitempty"`
	TotalDebit      decimal.Decimal `json:"total_debit"`
	TotalCredit     decimal.Decimal `json:"total_credit"`
	PostedBy        string          `json:"posted_by,omitempty"`
	PostedAt        *time.Time      `json:"posted_at,omitempty"`
	CreatedBy       string          `json:"created_by"`
	Version         int64           `json:"version"`
	Lines           []lineView      `json:"lines,omitempty"`
}

func newEntryView(e journals.Entry) entryView {
	view := entryView{
		ID:              e.ID,
		DraftCode:       e.DraftCode,
		JournalNumber:   e.JournalNumber,
		Status:          string(e.Status),
		JournalDate:     formatDate(&e.JournalDate),
		Description:     e.Description,
		ReferenceNumber: e.ReferenceNumber,
		SourceType:      string(e.SourceType),
		SourceID:        e.SourceID,
		DocumentType:    string(e.DocumentType),
		FiscalPeriodID:  e.FiscalPeriodID,
		ReversedEntryID: e.ReversedEntryID,
		ReversalEntryID: e.ReversalEntryID,
		AdjustedEntryID: e.AdjustedEntryID,
		ReversalReason:  e.ReversalReason,
		TotalDebit:      e.TotalDebit,
		TotalCredit:     e.TotalCredit,
		PostedBy:        e.PostedBy,
		PostedAt:        e.PostedAt,
		CreatedBy:       e.CreatedBy,
		Version:         e.Version,
	}
	for _, l := range e.Lines {
		view.Lines = append(view.Lines, lineView{
			LineNumber:   l.LineNumber,
			AccountID:    l.AccountID,
			Debit:        l.Debit,
			Credit:       l.Credit,
			Description:  l.Description,
			CostCenterID: l.CostCenterID,
			WarehouseID:  l.WarehouseID,
		})
	}
	return view
}

type postView struct {
	EntryID       int64     `json:"entry_id"`
	JournalNumber string    `json:"journal_number"`
	PostedAt      time.Time `json:"posted_at"`
}

func newPostView(res journals.PostResult) postView {
	return postView{EntryID: res.EntryID, JournalNumber: res.JournalNumber, PostedAt: res.PostedAt}
}

type closingView struct {
	postView
	FiscalYear     int             `json:"fiscal_year"`
	ClosedAccounts int             `json:"closed_accounts"`
	NetIncome      decimal.Decimal `json:"net_income"`
}

func newClosingView(res closing.Result) closingView {
	return closingView{
		postView:       newPostView(res.PostResult),
		FiscalYear:     res.FiscalYear,
		ClosedAccounts: res.ClosedAccounts,
		NetIncome:      res.NetIncome,
	}
}
