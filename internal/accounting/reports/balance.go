// Package reports derives trial balance, profit and loss, and balance sheet
// views from posted ledger activity.
package reports

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
)

// AccountBalance models a general ledger account with aggregated balances.
// Opening is debit-positive; Debit and Credit are the movements inside the range.
type AccountBalance struct {
	AccountID int64
	Code      string
	Name      string
	Type      accounts.AccountType
	Opening   decimal.Decimal
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Closing computes the debit-positive closing balance for the account.
func (a AccountBalance) Closing() decimal.Decimal {
	return a.Opening.Add(a.Debit).Sub(a.Credit)
}

// DebitNormal reports whether the account normally carries a debit balance.
func DebitNormal(t accounts.AccountType) bool {
	switch t {
	case accounts.AccountTypeAsset, accounts.AccountTypeCOGS, accounts.AccountTypeExpense, accounts.AccountTypeOtherExpense:
		return true
	default:
		return false
	}
}

// NormalClosing is the closing balance signed so the account's normal side is positive.
func (a AccountBalance) NormalClosing() decimal.Decimal {
	if DebitNormal(a.Type) {
		return a.Closing()
	}
	return a.Closing().Neg()
}

// GroupKey returns a key used for grouping trial balance rows.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}
