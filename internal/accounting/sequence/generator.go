// Package sequence issues per document type, per fiscal year document numbers.
package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

// DocumentType is the prefix of an issued number.
type DocumentType string

const (
	DocJournalVoucher      DocumentType = "JV"
	DocSalesInvoice        DocumentType = "SI"
	DocPurchaseInvoice     DocumentType = "PI"
	DocCashReceipt         DocumentType = "CR"
	DocCashPayment         DocumentType = "CP"
	DocCashTransfer        DocumentType = "CT"
	DocSalesReturn         DocumentType = "SR"
	DocPurchaseReturn      DocumentType = "PR"
	DocInventoryAdjustment DocumentType = "IA"
)

// DocumentTypes lists every supported prefix.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocJournalVoucher, DocSalesInvoice, DocPurchaseInvoice, DocCashReceipt, DocCashPayment,
		DocCashTransfer, DocSalesReturn, DocPurchaseReturn, DocInventoryAdjustment,
	}
}

// Valid reports whether t is a known prefix.
func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes() {
		if t == known {
			return true
		}
	}
	return false
}

const counterWidth = 5

// Format renders a code such as JV-2026-00001.
func Format(docType DocumentType, year int, n int64) string {
	return fmt.Sprintf("%s-%04d-%0*d", docType, year, counterWidth, n)
}

// Counter increments the (document type, fiscal year) counter inside the caller's transaction.
// It returns the new value, starting at 1 for a fresh pair.
type Counter interface {
	IncrementSequence(ctx context.Context, docType DocumentType, fiscalYearID int64) (int64, error)
}

// Next increments the counter and formats the resulting code.
func Next(ctx context.Context, c Counter, docType DocumentType, fiscalYearID int64, year int) (string, error) {
	if !docType.Valid() {
		return "", fmt.Errorf("sequence: %q: %w", docType, shared.ErrUnknownDocument)
	}
	n, err := c.IncrementSequence(ctx, docType, fiscalYearID)
	if err != nil {
		return "", err
	}
	return Format(docType, year, n), nil
}

// Store runs counter increments in their own serializable transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}

// Tx is the transactional view used by the standalone generator.
type Tx interface {
	Counter
	FiscalYearNumber(ctx context.Context, fiscalYearID int64) (int, error)
}

// Generator issues codes for callers outside a posting transaction, such as
// invoices numbered by their own modules.
type Generator struct {
	store  Store
	retry  shared.RetryPolicy
	logger *slog.Logger
}

// NewGenerator builds a Generator. A zero policy falls back to shared.DefaultRetryPolicy.
func NewGenerator(store Store, retry shared.RetryPolicy, logger *slog.Logger) *Generator {
	if retry.MaxTries == 0 {
		retry = shared.DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: store, retry: retry, logger: logger}
}

// NextCode returns the next code for the pair, retrying serialization conflicts
// a bounded number of times.
func (g *Generator) NextCode(ctx context.Context, docType DocumentType, fiscalYearID int64) (string, error) {
	var code string
	policy := g.retry
	policy.OnRetry = func(err error, wait time.Duration) {
		g.logger.Debug("sequence conflict, retrying", slog.String("document_type", string(docType)), slog.Int64("fiscal_year_id", fiscalYearID), slog.Duration("wait", wait))
	}
	err := shared.RetryOnConflict(ctx, policy, func() error {
		return g.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			year, err := tx.FiscalYearNumber(ctx, fiscalYearID)
			if err != nil {
				return err
			}
			next, err := Next(ctx, tx, docType, fiscalYearID, year)
			if err != nil {
				return err
			}
			code = next
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return code, nil
}
