package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Checker runs the read-only ledger checks. Errors are returned only for
// infrastructure failures; breaches are reported as findings.
type Checker struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewChecker(repo Repository, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (c *Checker) WithNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Run executes the three checks concurrently and assembles the report.
func (c *Checker) Run(ctx context.Context) (Report, error) {
	var (
		tb      TrialBalanceResult
		jb      JournalBalanceResult
		derived DerivedBalanceResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tb, err = c.TrialBalance(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		jb, err = c.JournalBalance(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		derived, err = c.DerivedBalances(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("integrity: %w", err)
	}

	report := Report{
		CheckedAt:       c.now(),
		TrialBalance:    tb,
		JournalBalance:  jb,
		DerivedBalances: derived,
		Findings:        []Finding{},
	}
	if !tb.Balanced {
		report.Findings = append(report.Findings, Finding{
			Check:    CheckTrialBalance,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("total debit %s differs from total credit %s", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2)),
			Delta:    tb.Delta,
		})
	}
	for _, m := range jb.Mismatches {
		report.Findings = append(report.Findings, Finding{
			Check:    CheckJournalBalance,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("entry %s does not balance", entryLabel(m)),
			EntityID: m.EntryID,
			Delta:    m.Delta,
		})
	}
	for _, m := range derived.Mismatches {
		report.Findings = append(report.Findings, Finding{
			Check:    CheckDerivedBalances,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("stored balance of account %d in period %d differs from ledger", m.AccountID, m.FiscalPeriodID),
			EntityID: m.AccountID,
			Delta:    m.Delta,
		})
	}
	report.Healthy = len(report.Findings) == 0
	if !report.Healthy {
		c.logger.Warn("ledger integrity findings", slog.Int("findings", len(report.Findings)), slog.Int("critical", report.Critical()))
	}
	return report, nil
}

// TrialBalance compares global debits and credits. Per-account subtotals are
// attached only when the ledger is out of balance.
func (c *Checker) TrialBalance(ctx context.Context) (TrialBalanceResult, error) {
	subtotals, err := c.repo.AccountTotals(ctx)
	if err != nil {
		return TrialBalanceResult{}, err
	}
	res := TrialBalanceResult{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero, Accounts: len(subtotals)}
	for _, s := range subtotals {
		res.TotalDebit = res.TotalDebit.Add(s.Debit)
		res.TotalCredit = res.TotalCredit.Add(s.Credit)
	}
	res.Delta = res.TotalDebit.Sub(res.TotalCredit)
	res.Balanced = res.Delta.IsZero()
	if !res.Balanced {
		res.Subtotals = subtotals
	}
	return res, nil
}

// JournalBalance flags on-book entries whose lines do not balance or disagree
// with the stored header totals.
func (c *Checker) JournalBalance(ctx context.Context) (JournalBalanceResult, error) {
	totals, err := c.repo.EntryTotals(ctx)
	if err != nil {
		return JournalBalanceResult{}, err
	}
	res := JournalBalanceResult{EntriesChecked: len(totals)}
	for _, t := range totals {
		lineDelta := t.LineDebit.Sub(t.LineCredit)
		headerOK := t.HeaderDebit.Equal(t.LineDebit) && t.HeaderCredit.Equal(t.LineCredit)
		if lineDelta.IsZero() && headerOK {
			continue
		}
		delta := lineDelta
		if delta.IsZero() {
			delta = t.HeaderDebit.Sub(t.LineDebit)
		}
		res.Mismatches = append(res.Mismatches, EntryMismatch{
			EntryID:       t.EntryID,
			JournalNumber: t.JournalNumber,
			LineDebit:     t.LineDebit,
			LineCredit:    t.LineCredit,
			HeaderDebit:   t.HeaderDebit,
			HeaderCredit:  t.HeaderCredit,
			Delta:         delta,
		})
	}
	return res, nil
}

type balanceKey struct {
	account int64
	period  int64
}

// DerivedBalances reconciles stored running balances with a recomputation
// from the journal lines.
func (c *Checker) DerivedBalances(ctx context.Context) (DerivedBalanceResult, error) {
	stored, err := c.repo.StoredBalances(ctx)
	if err != nil {
		return DerivedBalanceResult{}, err
	}
	ledger, err := c.repo.LedgerBalances(ctx)
	if err != nil {
		return DerivedBalanceResult{}, err
	}
	expected := make(map[balanceKey]PeriodBalance, len(ledger))
	for _, b := range ledger {
		expected[balanceKey{b.AccountID, b.FiscalPeriodID}] = b
	}
	res := DerivedBalanceResult{}
	seen := make(map[balanceKey]struct{}, len(stored))
	compare := func(k balanceKey, s, l PeriodBalance) {
		res.BalancesChecked++
		if s.Debit.Equal(l.Debit) && s.Credit.Equal(l.Credit) {
			return
		}
		res.Mismatches = append(res.Mismatches, BalanceMismatch{
			AccountID:      k.account,
			FiscalPeriodID: k.period,
			StoredDebit:    s.Debit,
			StoredCredit:   s.Credit,
			LedgerDebit:    l.Debit,
			LedgerCredit:   l.Credit,
			Delta:          s.Debit.Sub(s.Credit).Sub(l.Debit.Sub(l.Credit)),
		})
	}
	for _, s := range stored {
		k := balanceKey{s.AccountID, s.FiscalPeriodID}
		seen[k] = struct{}{}
		compare(k, s, expected[k])
	}
	for _, l := range ledger {
		k := balanceKey{l.AccountID, l.FiscalPeriodID}
		if _, ok := seen[k]; ok {
			continue
		}
		compare(k, PeriodBalance{AccountID: l.AccountID, FiscalPeriodID: l.FiscalPeriodID}, l)
	}
	return res, nil
}

func entryLabel(m EntryMismatch) string {
	if m.JournalNumber != "" {
		return m.JournalNumber
	}
	return fmt.Sprintf("#%d", m.EntryID)
}
