package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
)

// LineInput describes a journal line supplied by a caller.
type LineInput struct {
	AccountID    int64
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Description  string
	CostCenterID *int64
	WarehouseID  *int64
}

// DraftInput groups the fields required to create a draft entry.
type DraftInput struct {
	JournalDate     time.Time
	Description     string
	ReferenceNumber string
	SourceType      SourceType
	SourceID        *uuid.UUID
	// DocumentType overrides the prefix derived from SourceType.
	DocumentType sequence.DocumentType
	CostCenterID *int64
	Lines        []LineInput
	Actor        string
}

// HeaderInput carries editable draft header fields.
type HeaderInput struct {
	JournalDate     time.Time
	Description     string
	ReferenceNumber string
	CostCenterID    *int64
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID      int64
	Reason       string
	ReversalDate time.Time
	Actor        string
}

// ListFilter narrows entry queries. Zero values do not filter.
type ListFilter struct {
	Status         Status
	FiscalPeriodID int64
	From           *time.Time
	To             *time.Time
	SourceType     SourceType
	SourceID       *uuid.UUID
	Limit          int
	Offset         int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Normalize clamps paging values.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
