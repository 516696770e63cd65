package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

type memoryRepo struct {
	accounts map[int64]Account
}

func (r memoryRepo) List(ctx context.Context) ([]Account, error) {
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r memoryRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]Account, error) {
	out := make(map[int64]Account)
	for _, id := range ids {
		if a, ok := r.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r memoryRepo) FindByCode(ctx context.Context, code string) (Account, error) {
	for _, a := range r.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func TestEnsurePostable(t *testing.T) {
	deleted := time.Now()
	repo := memoryRepo{accounts: map[int64]Account{
		1: {ID: 1, Code: "1111", Type: AccountTypeAsset, IsLeaf: true, IsActive: true, AllowPosting: true},
		2: {ID: 2, Code: "4111", Type: AccountTypeRevenue, IsLeaf: true, IsActive: true, AllowPosting: true},
		3: {ID: 3, Code: "1100", Type: AccountTypeAsset, IsLeaf: false, IsActive: true, AllowPosting: true},
		4: {ID: 4, Code: "5999", Type: AccountTypeExpense, IsLeaf: true, IsActive: true, AllowPosting: true, DeletedAt: &deleted},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.EnsurePostable(ctx, []int64{1, 2, 1}))
	require.ErrorIs(t, svc.EnsurePostable(ctx, []int64{1, 3}), shared.ErrAccountNotPostable)
	require.ErrorIs(t, svc.EnsurePostable(ctx, []int64{4}), shared.ErrAccountNotPostable)
	require.ErrorIs(t, svc.EnsurePostable(ctx, []int64{99}), shared.ErrAccountNotFound)
}

func TestTemporaryTypes(t *testing.T) {
	require.True(t, AccountTypeRevenue.IsTemporary())
	require.True(t, AccountTypeCOGS.IsTemporary())
	require.True(t, AccountTypeOtherExpense.IsTemporary())
	require.False(t, AccountTypeAsset.IsTemporary())
	require.False(t, AccountTypeEquity.IsTemporary())
}

func TestAccountTypeValid(t *testing.T) {
	require.True(t, AccountTypeLiability.Valid())
	require.True(t, AccountTypeOtherIncome.Valid())
	require.False(t, AccountType("CONTRA").Valid())
	require.False(t, AccountType("").Valid())
}
