package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

// AccountLister supplies the chart of accounts.
type AccountLister interface {
	List(ctx context.Context) ([]accounts.Account, error)
}

// Service builds financial statements from posted activity.
type Service struct {
	repo     Repository
	accounts AccountLister
}

func NewService(repo Repository, accounts AccountLister) *Service {
	return &Service{repo: repo, accounts: accounts}
}

// Balances returns per-account opening balances before from and movements within [from, to].
func (s *Service) Balances(ctx context.Context, from, to time.Time) ([]AccountBalance, error) {
	return s.balances(ctx, from, to, false)
}

func (s *Service) balances(ctx context.Context, from, to time.Time, excludeClosing bool) ([]AccountBalance, error) {
	from, to = dateOnly(from), dateOnly(to)
	if to.IsZero() || (!from.IsZero() && to.Before(from)) {
		return nil, fmt.Errorf("reports: %s to %s: %w", from.Format(time.DateOnly), to.Format(time.DateOnly), shared.ErrInvalidDateRange)
	}
	chart, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	movements, err := s.repo.Activity(ctx, ActivityQuery{From: from, To: to, ExcludeClosing: excludeClosing})
	if err != nil {
		return nil, err
	}
	var opening []Activity
	if !from.IsZero() {
		q := ActivityQuery{To: from.AddDate(0, 0, -1), ExcludeClosing: excludeClosing}
		if opening, err = s.repo.Activity(ctx, q); err != nil {
			return nil, err
		}
	}

	index := make(map[int64]*AccountBalance, len(chart))
	out := make([]AccountBalance, len(chart))
	for i, acc := range chart {
		out[i] = AccountBalance{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Type: acc.Type}
		index[acc.ID] = &out[i]
	}
	for _, a := range opening {
		if b, ok := index[a.AccountID]; ok {
			b.Opening = b.Opening.Add(a.Debit).Sub(a.Credit)
		}
	}
	for _, a := range movements {
		if b, ok := index[a.AccountID]; ok {
			b.Debit = b.Debit.Add(a.Debit)
			b.Credit = b.Credit.Add(a.Credit)
		}
	}
	return out, nil
}

// TrialBalance reports opening, movement, and closing per account over [from, to].
func (s *Service) TrialBalance(ctx context.Context, from, to time.Time) (TrialBalance, error) {
	balances, err := s.Balances(ctx, from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(balances), nil
}

// ProfitAndLoss reports income and expense movements over [from, to]. Closing
// entries are left out so a closed year still shows its result.
func (s *Service) ProfitAndLoss(ctx context.Context, from, to time.Time) (ProfitAndLoss, error) {
	balances, err := s.balances(ctx, from, to, true)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(balances), nil
}

// BalanceSheet reports cumulative balances as of the given date.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	balances, err := s.Balances(ctx, time.Time{}, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(balances), nil
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
