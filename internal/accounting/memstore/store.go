// Package memstore keeps the whole ledger in memory. It backs the memory
// store driver and the service level tests, and follows the same rules as the
// Postgres repositories: version checks, source uniqueness and snapshot
// rollback on error.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
)

type counterKey struct {
	docType      sequence.DocumentType
	fiscalYearID int64
}

type balanceKey struct {
	accountID      int64
	fiscalPeriodID int64
}

type balance struct {
	debit  decimal.Decimal
	credit decimal.Decimal
}

type state struct {
	years       map[int64]periods.FiscalYear
	entries     map[int64]journals.Entry
	counters    map[counterKey]int64
	balances    map[balanceKey]balance
	nextYearID  int64
	nextPerID   int64
	nextEntryID int64
}

func newState() state {
	return state{
		years:    make(map[int64]periods.FiscalYear),
		entries:  make(map[int64]journals.Entry),
		counters: make(map[counterKey]int64),
		balances: make(map[balanceKey]balance),
	}
}

func cloneYear(fy periods.FiscalYear) periods.FiscalYear {
	fy.Periods = append([]periods.FiscalPeriod(nil), fy.Periods...)
	return fy
}

func cloneEntry(e journals.Entry) journals.Entry {
	e.Lines = append([]journals.Line(nil), e.Lines...)
	return e
}

func (s state) clone() state {
	out := state{
		years:       make(map[int64]periods.FiscalYear, len(s.years)),
		entries:     make(map[int64]journals.Entry, len(s.entries)),
		counters:    make(map[counterKey]int64, len(s.counters)),
		balances:    make(map[balanceKey]balance, len(s.balances)),
		nextYearID:  s.nextYearID,
		nextPerID:   s.nextPerID,
		nextEntryID: s.nextEntryID,
	}
	for id, fy := range s.years {
		out.years[id] = cloneYear(fy)
	}
	for id, e := range s.entries {
		out.entries[id] = cloneEntry(e)
	}
	for k, v := range s.counters {
		out.counters[k] = v
	}
	for k, v := range s.balances {
		out.balances[k] = v
	}
	return out
}

// Store is a single ledger shared by every repository view.
type Store struct {
	mu        sync.Mutex
	st        state
	conflicts int

	// Accounts sit behind their own lock: posting consults the account master
	// while a ledger transaction holds mu.
	accMu    sync.RWMutex
	accounts map[int64]accounts.Account
	nextAcc  int64
}

func New() *Store {
	return &Store{st: newState(), accounts: make(map[int64]accounts.Account)}
}

// InjectConflicts makes the next n committing transactions fail with
// ErrConcurrencyConflict after their work is rolled back.
func (s *Store) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

// tx runs fn against the live state and restores the snapshot on error.
func (s *Store) tx(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&s.st); err != nil {
		s.st = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.st = snapshot
		return err
	}
	if s.conflicts > 0 {
		s.conflicts--
		s.st = snapshot
		return fmt.Errorf("memstore: %w", shared.ErrConcurrencyConflict)
	}
	return nil
}

func (s *Store) read(fn func(*state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

// SetStoredBalance overwrites a running balance, bypassing posting.
func (s *Store) SetStoredBalance(accountID, fiscalPeriodID int64, debit, credit decimal.Decimal) {
	s.read(func(st *state) {
		st.balances[balanceKey{accountID, fiscalPeriodID}] = balance{debit: debit, credit: credit}
	})
}
