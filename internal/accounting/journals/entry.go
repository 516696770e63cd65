package journals

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

const draftCodePrefix = "DRAFT-"

// Amounts are stored as NUMERIC(20,4).
const amountScale = 4

var maxAmount = decimal.New(1, 16)

// NewDraftCode returns a code such as DRAFT-1A2B3C4D.
func NewDraftCode() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return draftCodePrefix + strings.ToUpper(hex[:8])
}

// NewDraft builds a draft entry. Calendar and account checks are left to the service.
func NewDraft(in DraftInput, draftCode string, now time.Time) (Entry, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return Entry{}, shared.ErrDescriptionRequired
	}
	lines, err := buildLines(in.Lines)
	if err != nil {
		return Entry{}, err
	}
	source := in.SourceType
	if source == "" {
		source = SourceManual
	}
	if !source.Valid() {
		return Entry{}, fmt.Errorf("journals: source type %q: %w", source, shared.ErrUnknownDocument)
	}
	doc := in.DocumentType
	if doc == "" {
		doc = source.DocumentType()
	}
	if !doc.Valid() {
		return Entry{}, fmt.Errorf("journals: document type %q: %w", doc, shared.ErrUnknownDocument)
	}
	e := Entry{
		DraftCode:       draftCode,
		Status:          StatusDraft,
		JournalDate:     shared.DateOf(in.JournalDate),
		Description:     description,
		ReferenceNumber: strings.TrimSpace(in.ReferenceNumber),
		SourceType:      source,
		SourceID:        in.SourceID,
		DocumentType:    doc,
		CostCenterID:    in.CostCenterID,
		CreatedBy:       in.Actor,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		Lines:           lines,
	}
	e.recalculate()
	return e, nil
}

func validateLine(l LineInput) error {
	if l.AccountID == 0 {
		return shared.ErrAccountRequired
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return shared.ErrNegativeAmount
	}
	if l.Debit.IsPositive() == l.Credit.IsPositive() {
		return shared.ErrUnbalancedLine
	}
	for _, v := range []decimal.Decimal{l.Debit, l.Credit} {
		if !v.Equal(v.Truncate(amountScale)) || v.GreaterThanOrEqual(maxAmount) {
			return fmt.Errorf("%s: %w", v, shared.ErrAmountPrecision)
		}
	}
	return nil
}

func buildLines(inputs []LineInput) ([]Line, error) {
	if len(inputs) < 2 {
		return nil, shared.ErrTooFewLines
	}
	lines := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		if err := validateLine(in); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		lines = append(lines, toLine(in))
	}
	return lines, nil
}

func toLine(in LineInput) Line {
	return Line{
		AccountID:    in.AccountID,
		Debit:        in.Debit,
		Credit:       in.Credit,
		Description:  strings.TrimSpace(in.Description),
		CostCenterID: in.CostCenterID,
		WarehouseID:  in.WarehouseID,
	}
}

// recalculate renumbers lines 1..n and refreshes the totals.
func (e *Entry) recalculate() {
	for i := range e.Lines {
		e.Lines[i].LineNumber = i + 1
	}
	e.TotalDebit, e.TotalCredit = sumLines(e.Lines)
}

func sumLines(lines []Line) (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Balanced reports whether total debits equal total credits.
func (e Entry) Balanced() bool {
	return e.TotalDebit.Equal(e.TotalCredit)
}

// IsDraft reports whether the entry can still be edited.
func (e Entry) IsDraft() bool {
	return e.Status == StatusDraft
}

// EnsureDraft fails with ErrEntryNotDraft unless the entry is a draft.
func (e Entry) EnsureDraft() error {
	if e.Status != StatusDraft {
		return fmt.Errorf("%s is %s: %w", e.Reference(), e.Status, shared.ErrEntryNotDraft)
	}
	return nil
}

// ensurePostable names the blocking status: a second post gets ErrAlreadyPosted,
// a reversed entry gets ErrEntryNotDraft.
func (e Entry) ensurePostable() error {
	if e.Status == StatusPosted {
		return fmt.Errorf("%s: %w", e.Reference(), shared.ErrAlreadyPosted)
	}
	return e.EnsureDraft()
}

// IsStandingClosing reports a posted, unreversed closing entry. A fiscal year
// holds at most one.
func (e Entry) IsStandingClosing() bool {
	return e.SourceType == SourceClosing && e.Status == StatusPosted && e.ReversedEntryID == nil && e.DeletedAt == nil
}

// Reference returns the journal number once posted, otherwise the draft code.
func (e Entry) Reference() string {
	if e.JournalNumber != "" {
		return e.JournalNumber
	}
	return e.DraftCode
}

// AccountIDs lists the distinct accounts referenced by the lines.
func (e Entry) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(e.Lines))
	ids := make([]int64, 0, len(e.Lines))
	for _, l := range e.Lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	return ids
}

// AddLine appends a line to a draft.
func (e *Entry) AddLine(in LineInput, now time.Time) error {
	if err := e.EnsureDraft(); err != nil {
		return err
	}
	if err := validateLine(in); err != nil {
		return err
	}
	e.Lines = append(e.Lines, toLine(in))
	e.recalculate()
	e.UpdatedAt = now
	return nil
}

// RemoveLine drops the line with the given number and renumbers the rest.
func (e *Entry) RemoveLine(lineNumber int, now time.Time) error {
	if err := e.EnsureDraft(); err != nil {
		return err
	}
	for i, l := range e.Lines {
		if l.LineNumber != lineNumber {
			continue
		}
		e.Lines = append(e.Lines[:i:i], e.Lines[i+1:]...)
		e.recalculate()
		e.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("line %d of %s: %w", lineNumber, e.DraftCode, shared.ErrLineNotFound)
}

// ReplaceLines swaps every line of a draft.
func (e *Entry) ReplaceLines(inputs []LineInput, now time.Time) error {
	if err := e.EnsureDraft(); err != nil {
		return err
	}
	lines, err := buildLines(inputs)
	if err != nil {
		return err
	}
	e.Lines = lines
	e.recalculate()
	e.UpdatedAt = now
	return nil
}

// UpdateHeader edits the descriptive fields of a draft.
func (e *Entry) UpdateHeader(in HeaderInput, now time.Time) error {
	if err := e.EnsureDraft(); err != nil {
		return err
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return shared.ErrDescriptionRequired
	}
	if !in.JournalDate.IsZero() {
		e.JournalDate = shared.DateOf(in.JournalDate)
	}
	e.Description = description
	e.ReferenceNumber = strings.TrimSpace(in.ReferenceNumber)
	e.CostCenterID = in.CostCenterID
	e.UpdatedAt = now
	return nil
}

// Validate applies the full structural rule set required before posting.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return shared.ErrDescriptionRequired
	}
	if len(e.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	for _, l := range e.Lines {
		if err := validateLine(LineInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit}); err != nil {
			return fmt.Errorf("line %d: %w", l.LineNumber, err)
		}
	}
	debit, credit := sumLines(e.Lines)
	if !debit.Equal(credit) {
		return fmt.Errorf("%s debit %s credit %s: %w", e.Reference(), debit.StringFixed(2), credit.StringFixed(2), shared.ErrUnbalanced)
	}
	return nil
}

// MarkPosted assigns the journal number and calendar identifiers.
func (e *Entry) MarkPosted(number string, fiscalYearID, fiscalPeriodID int64, postedBy string, at time.Time) error {
	if err := e.ensurePostable(); err != nil {
		return err
	}
	e.recalculate()
	if !e.Balanced() {
		return fmt.Errorf("%s: %w", e.DraftCode, shared.ErrUnbalanced)
	}
	e.Status = StatusPosted
	e.JournalNumber = number
	e.FiscalYearID = &fiscalYearID
	e.FiscalPeriodID = &fiscalPeriodID
	e.PostedBy = postedBy
	e.PostedAt = &at
	e.UpdatedAt = at
	return nil
}

// MarkReversed links the reversal entry and flips the status.
func (e *Entry) MarkReversed(reversalEntryID int64, now time.Time) error {
	if e.ReversalEntryID != nil {
		return fmt.Errorf("%s: %w", e.Reference(), shared.ErrAlreadyReversed)
	}
	if e.Status != StatusPosted {
		return fmt.Errorf("%s is %s: %w", e.Reference(), e.Status, shared.ErrNotPosted)
	}
	e.ReversalEntryID = &reversalEntryID
	e.Status = StatusReversed
	e.UpdatedAt = now
	return nil
}

// EnsureReversible fails unless the entry is posted and has no reversal yet.
func (e Entry) EnsureReversible() error {
	if e.ReversalEntryID != nil || e.Status == StatusReversed {
		return fmt.Errorf("%s: %w", e.Reference(), shared.ErrAlreadyReversed)
	}
	if e.Status != StatusPosted {
		return fmt.Errorf("%s is %s: %w", e.Reference(), e.Status, shared.ErrNotPosted)
	}
	return nil
}

// BuildReversal returns a draft mirroring e with debit and credit swapped.
func (e Entry) BuildReversal(reason string, date time.Time, draftCode, actor string, now time.Time) (Entry, error) {
	if err := e.EnsureReversible(); err != nil {
		return Entry{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Entry{}, shared.ErrReasonRequired
	}
	lines := make([]Line, 0, len(e.Lines))
	for _, l := range e.Lines {
		desc := "Reversal"
		if l.Description != "" {
			desc = "Reversal: " + l.Description
		}
		lines = append(lines, Line{
			AccountID:    l.AccountID,
			Debit:        l.Credit,
			Credit:       l.Debit,
			Description:  desc,
			CostCenterID: l.CostCenterID,
			WarehouseID:  l.WarehouseID,
		})
	}
	sourceID := e.ID
	rev := Entry{
		DraftCode:       draftCode,
		Status:          StatusDraft,
		JournalDate:     shared.DateOf(date),
		Description:     fmt.Sprintf("Reversal of %s: %s (%s)", e.JournalNumber, e.Description, reason),
		ReferenceNumber: e.ReferenceNumber,
		SourceType:      e.SourceType,
		SourceID:        e.SourceID,
		DocumentType:    e.DocumentType,
		CostCenterID:    e.CostCenterID,
		ReversedEntryID: &sourceID,
		ReversalReason:  reason,
		CreatedBy:       actor,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		Lines:           lines,
	}
	rev.recalculate()
	return rev, nil
}

// documentType returns the prefix used for numbering, falling back to the source mapping.
func (e Entry) documentType() sequence.DocumentType {
	if e.DocumentType != "" {
		return e.DocumentType
	}
	return e.SourceType.DocumentType()
}
