package memstore

import (
	"context"
	"sort"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

// AddAccount seeds the account master and returns the stored account.
// A zero ID is assigned.
func (s *Store) AddAccount(a accounts.Account) accounts.Account {
	s.accMu.Lock()
	defer s.accMu.Unlock()
	if a.ID == 0 {
		s.nextAcc++
		a.ID = s.nextAcc
	} else if a.ID > s.nextAcc {
		s.nextAcc = a.ID
	}
	s.accounts[a.ID] = a
	return a
}

// Accounts returns the read view of the account master.
func (s *Store) Accounts() accounts.Repository {
	return accountView{s}
}

type accountView struct{ s *Store }

func (v accountView) List(ctx context.Context) ([]accounts.Account, error) {
	v.s.accMu.RLock()
	defer v.s.accMu.RUnlock()
	out := make([]accounts.Account, 0, len(v.s.accounts))
	for _, a := range v.s.accounts {
		if a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (v accountView) FindByIDs(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	v.s.accMu.RLock()
	defer v.s.accMu.RUnlock()
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if a, ok := v.s.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (v accountView) FindByCode(ctx context.Context, code string) (accounts.Account, error) {
	v.s.accMu.RLock()
	defer v.s.accMu.RUnlock()
	for _, a := range v.s.accounts {
		if a.Code == code && a.DeletedAt == nil {
			return a, nil
		}
	}
	return accounts.Account{}, shared.ErrAccountNotFound
}
