// Package integrity verifies ledger invariants without mutating the ledger.
package integrity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity ranks findings.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
)

// Check names an integrity check.
type Check string

const (
	CheckTrialBalance    Check = "trial_balance"
	CheckJournalBalance  Check = "journal_balance"
	CheckDerivedBalances Check = "derived_balances"
)

// Finding is one reportable breach.
type Finding struct {
	Check    Check           `json:"check"`
	Severity Severity        `json:"severity"`
	Message  string          `json:"message"`
	EntityID int64           `json:"entity_id,omitempty"`
	Delta    decimal.Decimal `json:"delta"`
}

// AccountSubtotal is the on-book debit and credit of one account.
type AccountSubtotal struct {
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// TrialBalanceResult is the global debit and credit comparison.
type TrialBalanceResult struct {
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
	Delta       decimal.Decimal   `json:"delta"`
	Balanced    bool              `json:"balanced"`
	Accounts    int               `json:"accounts"`
	Subtotals   []AccountSubtotal `json:"subtotals,omitempty"`
}

// EntryMismatch is an on-book entry whose lines or header do not balance.
type EntryMismatch struct {
	EntryID       int64           `json:"entry_id"`
	JournalNumber string          `json:"journal_number"`
	LineDebit     decimal.Decimal `json:"line_debit"`
	LineCredit    decimal.Decimal `json:"line_credit"`
	HeaderDebit   decimal.Decimal `json:"header_debit"`
	HeaderCredit  decimal.Decimal `json:"header_credit"`
	Delta         decimal.Decimal `json:"delta"`
}

// JournalBalanceResult lists unbalanced entries.
type JournalBalanceResult struct {
	EntriesChecked int             `json:"entries_checked"`
	Mismatches     []EntryMismatch `json:"mismatches,omitempty"`
}

// BalanceMismatch is a stored running balance that disagrees with the lines.
type BalanceMismatch struct {
	AccountID      int64           `json:"account_id"`
	FiscalPeriodID int64           `json:"fiscal_period_id"`
	StoredDebit    decimal.Decimal `json:"stored_debit"`
	StoredCredit   decimal.Decimal `json:"stored_credit"`
	LedgerDebit    decimal.Decimal `json:"ledger_debit"`
	LedgerCredit   decimal.Decimal `json:"ledger_credit"`
	Delta          decimal.Decimal `json:"delta"`
}

// DerivedBalanceResult compares running balances against the line history.
type DerivedBalanceResult struct {
	BalancesChecked int               `json:"balances_checked"`
	Mismatches      []BalanceMismatch `json:"mismatches,omitempty"`
}

// Report is the outcome of a full integrity run.
type Report struct {
	CheckedAt       time.Time            `json:"checked_at"`
	Healthy         bool                 `json:"healthy"`
	TrialBalance    TrialBalanceResult   `json:"trial_balance"`
	JournalBalance  JournalBalanceResult `json:"journal_balance"`
	DerivedBalances DerivedBalanceResult `json:"derived_balances"`
	Findings        []Finding            `json:"findings"`
}

// Critical counts critical findings.
func (r Report) Critical() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			n++
		}
	}
	return n
}
