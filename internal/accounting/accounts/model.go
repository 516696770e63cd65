package accounts

import "time"

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset        AccountType = "ASSET"
	AccountTypeLiability    AccountType = "LIABILITY"
	AccountTypeEquity       AccountType = "EQUITY"
	AccountTypeRevenue      AccountType = "REVENUE"
	AccountTypeCOGS         AccountType = "COGS"
	AccountTypeExpense      AccountType = "EXPENSE"
	AccountTypeOtherIncome  AccountType = "OTHER_INCOME"
	AccountTypeOtherExpense AccountType = "OTHER_EXPENSE"
)

// TemporaryTypes lists the account types zeroed by year-end closing.
func TemporaryTypes() []AccountType {
	return []AccountType{
		AccountTypeRevenue,
		AccountTypeCOGS,
		AccountTypeExpense,
		AccountTypeOtherIncome,
		AccountTypeOtherExpense,
	}
}

// IsTemporary reports whether balances of this type are closed into retained earnings.
func (t AccountType) IsTemporary() bool {
	for _, tmp := range TemporaryTypes() {
		if t == tmp {
			return true
		}
	}
	return false
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity:
		return true
	}
	return t.IsTemporary()
}

// Account models a chart of accounts node.
type Account struct {
	ID           int64
	Code         string
	Name         string
	Type         AccountType
	ParentID     *int64
	IsLeaf       bool
	IsActive     bool
	AllowPosting bool
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanReceivePostings reports whether journal lines may reference the account.
func (a Account) CanReceivePostings() bool {
	return a.IsActive && a.IsLeaf && a.AllowPosting && a.DeletedAt == nil
}
