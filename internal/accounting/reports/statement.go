package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

// StatementLine is one on-book line of an account within a statement range.
type StatementLine struct {
	EntryID       int64           `json:"entry_id"`
	JournalNumber string          `json:"journal_number"`
	JournalDate   time.Time       `json:"journal_date"`
	Description   string          `json:"description"`
	SourceType    string          `json:"source_type"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	// Balance is the running balance after this line, signed to the account's normal side.
	Balance decimal.Decimal `json:"balance"`
}

// AccountStatement is the ledger of a single account over [From, To].
type AccountStatement struct {
	AccountID   int64                `json:"account_id"`
	Code        string               `json:"code"`
	Name        string               `json:"name"`
	Type        accounts.AccountType `json:"type"`
	From        time.Time            `json:"from"`
	To          time.Time            `json:"to"`
	Opening     decimal.Decimal      `json:"opening"`
	TotalDebit  decimal.Decimal      `json:"total_debit"`
	TotalCredit decimal.Decimal      `json:"total_credit"`
	Closing     decimal.Decimal      `json:"closing"`
	Lines       []StatementLine      `json:"lines"`
}

// AccountStatement lists the account's posted lines in [from, to] in journal
// order, with the opening balance before from and a running balance. A zero
// from starts the statement at the first posting.
func (s *Service) AccountStatement(ctx context.Context, accountID int64, from, to time.Time) (AccountStatement, error) {
	from, to = dateOnly(from), dateOnly(to)
	if to.IsZero() || (!from.IsZero() && to.Before(from)) {
		return AccountStatement{}, fmt.Errorf("reports: %s to %s: %w", from.Format(time.DateOnly), to.Format(time.DateOnly), shared.ErrInvalidDateRange)
	}
	chart, err := s.accounts.List(ctx)
	if err != nil {
		return AccountStatement{}, err
	}
	var acc *accounts.Account
	for i := range chart {
		if chart[i].ID == accountID {
			acc = &chart[i]
			break
		}
	}
	if acc == nil {
		return AccountStatement{}, fmt.Errorf("reports: account %d: %w", accountID, shared.ErrAccountNotFound)
	}

	st := AccountStatement{
		AccountID: acc.ID,
		Code:      acc.Code,
		Name:      acc.Name,
		Type:      acc.Type,
		From:      from,
		To:        to,
		Lines:     []StatementLine{},
	}
	sign := func(debit, credit decimal.Decimal) decimal.Decimal {
		if DebitNormal(acc.Type) {
			return debit.Sub(credit)
		}
		return credit.Sub(debit)
	}
	if !from.IsZero() {
		opening, err := s.repo.Activity(ctx, ActivityQuery{To: from.AddDate(0, 0, -1)})
		if err != nil {
			return AccountStatement{}, err
		}
		for _, a := range opening {
			if a.AccountID == accountID {
				st.Opening = st.Opening.Add(sign(a.Debit, a.Credit))
			}
		}
	}
	lines, err := s.repo.AccountLines(ctx, accountID, ActivityQuery{From: from, To: to})
	if err != nil {
		return AccountStatement{}, err
	}
	running := st.Opening
	for _, l := range lines {
		running = running.Add(sign(l.Debit, l.Credit))
		l.Balance = running
		st.TotalDebit = st.TotalDebit.Add(l.Debit)
		st.TotalCredit = st.TotalCredit.Add(l.Credit)
		st.Lines = append(st.Lines, l)
	}
	st.Closing = running
	return st, nil
}
