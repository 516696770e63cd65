package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
)

// Status enumerates journal lifecycle values.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusReversed Status = "REVERSED"
)

// OnBook reports whether entries in this status count toward balances.
func (s Status) OnBook() bool {
	return s == StatusPosted || s == StatusReversed
}

// SourceType identifies the module or process that originated an entry.
type SourceType string

const (
	SourceManual              SourceType = "MANUAL"
	SourceOpening             SourceType = "OPENING"
	SourceClosing             SourceType = "CLOSING"
	SourceAdjustment          SourceType = "ADJUSTMENT"
	SourceSalesInvoice        SourceType = "SALES_INVOICE"
	SourcePurchaseInvoice     SourceType = "PURCHASE_INVOICE"
	SourceCashReceipt         SourceType = "CASH_RECEIPT"
	SourceCashPayment         SourceType = "CASH_PAYMENT"
	SourceCashTransfer        SourceType = "CASH_TRANSFER"
	SourceSalesReturn         SourceType = "SALES_RETURN"
	SourcePurchaseReturn      SourceType = "PURCHASE_RETURN"
	SourceInventoryAdjustment SourceType = "INVENTORY_ADJUSTMENT"
)

var sourceDocuments = map[SourceType]sequence.DocumentType{
	SourceManual:              sequence.DocJournalVoucher,
	SourceOpening:             sequence.DocJournalVoucher,
	SourceClosing:             sequence.DocJournalVoucher,
	SourceAdjustment:          sequence.DocJournalVoucher,
	SourceSalesInvoice:        sequence.DocSalesInvoice,
	SourcePurchaseInvoice:     sequence.DocPurchaseInvoice,
	SourceCashReceipt:         sequence.DocCashReceipt,
	SourceCashPayment:         sequence.DocCashPayment,
	SourceCashTransfer:        sequence.DocCashTransfer,
	SourceSalesReturn:         sequence.DocSalesReturn,
	SourcePurchaseReturn:      sequence.DocPurchaseReturn,
	SourceInventoryAdjustment: sequence.DocInventoryAdjustment,
}

// Valid reports whether s is a known source.
func (s SourceType) Valid() bool {
	_, ok := sourceDocuments[s]
	return ok
}

// DocumentType returns the numbering prefix used when posting entries of this source.
func (s SourceType) DocumentType() sequence.DocumentType {
	if doc, ok := sourceDocuments[s]; ok {
		return doc
	}
	return sequence.DocJournalVoucher
}

// Entry is the journal entry aggregate.
type Entry struct {
	ID              int64
	DraftCode       string
	JournalNumber   string
	Status          Status
	JournalDate     time.Time
	Description     string
	ReferenceNumber string
	SourceType      SourceType
	SourceID        *uuid.UUID
	DocumentType    sequence.DocumentType
	FiscalYearID    *int64
	FiscalPeriodID  *int64
	CostCenterID    *int64
	ReversedEntryID *int64
	ReversalEntryID *int64
	AdjustedEntryID *int64
	ReversalReason  string
	TotalDebit      decimal.Decimal
	TotalCredit     decimal.Decimal
	PostedBy        string
	PostedAt        *time.Time
	CreatedBy       string
	DeletedAt       *time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []Line
}

// Line stores a debit or credit amount for an account.
type Line struct {
	LineNumber   int
	AccountID    int64
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Description  string
	CostCenterID *int64
	WarehouseID  *int64
}

// Net returns debit minus credit.
func (l Line) Net() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// PostResult is returned by posting and reversal.
type PostResult struct {
	EntryID       int64
	JournalNumber string
	PostedAt      time.Time
}
