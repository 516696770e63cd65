package accounts

import (
	"context"
	"fmt"
	"sort"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

// Service answers account-master questions asked by the ledger core.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// Lookup returns the accounts for ids, failing when any is missing.
func (s *Service) Lookup(ctx context.Context, ids []int64) (map[int64]Account, error) {
	found, err := s.repo.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, fmt.Errorf("account %d: %w", id, shared.ErrAccountNotFound)
		}
	}
	return found, nil
}

// EnsurePostable fails with ErrAccountNotPostable naming the first account that
// is inactive, non-leaf, blocked for posting or deleted.
func (s *Service) EnsurePostable(ctx context.Context, ids []int64) error {
	found, err := s.Lookup(ctx, ids)
	if err != nil {
		return err
	}
	ordered := uniqueIDs(ids)
	for _, id := range ordered {
		acc := found[id]
		if !acc.CanReceivePostings() {
			return fmt.Errorf("account %s: %w", acc.Code, shared.ErrAccountNotPostable)
		}
	}
	return nil
}

// FindByCode returns the account with the given code.
func (s *Service) FindByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.FindByCode(ctx, code)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
