package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/integrity"
)

// Exit codes of the integrity command.
const (
	ExitHealthy  = 0
	ExitFailed   = 1
	ExitFindings = 10
)

type integrityRunner interface {
	Run(ctx context.Context) (integrity.Report, error)
}

// IntegrityCLI runs the ledger integrity checks from the command line.
type IntegrityCLI struct {
	checker integrityRunner
}

// NewIntegrityCLI constructs the helper.
func NewIntegrityCLI(checker integrityRunner) (*IntegrityCLI, error) {
	if checker == nil {
		return nil, errors.New("integrity cli: checker required")
	}
	return &IntegrityCLI{checker: checker}, nil
}

// IntegrityOptions defines the flags of the ledger check command.
type IntegrityOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// CheckCommand runs every check and prints the report. Findings exit with ExitFindings.
func (c *IntegrityCLI) CheckCommand(ctx context.Context, opts IntegrityOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	report, err := c.checker.Run(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "ledger check: %v\n", err)
		return ExitFailed
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(report); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "ledger check: encode json: %v\n", err)
			return ExitFailed
		}
	} else {
		renderReportHuman(opts.Stdout, report)
	}
	if !report.Healthy {
		return ExitFindings
	}
	return ExitHealthy
}

func renderReportHuman(out io.Writer, report integrity.Report) {
	_, _ = fmt.Fprintf(out, "Ledger integrity at %s\n", report.CheckedAt.Format("2006-01-02 15:04:05Z07:00"))
	tb := report.TrialBalance
	_, _ = fmt.Fprintf(out, "Trial balance: debit %s, credit %s over %d account(s)\n",
		tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2), tb.Accounts)
	_, _ = fmt.Fprintf(out, "Entries checked: %d, balances checked: %d\n",
		report.JournalBalance.EntriesChecked, report.DerivedBalances.BalancesChecked)
	if len(report.Findings) == 0 {
		_, _ = fmt.Fprintln(out, "No findings.")
		return
	}
	findings := append([]integrity.Finding(nil), report.Findings...)
	sort.SliceStable(findings, func(i, j int) bool {
		return severityRank(findings[i].Severity) < severityRank(findings[j].Severity)
	})
	_, _ = fmt.Fprintf(out, "%d finding(s):\n", len(findings))
	for _, f := range findings {
		_, _ = fmt.Fprintf(out, " - [%s] %s: %s (delta %s)\n", f.Severity, f.Check, f.Message, f.Delta.StringFixed(2))
	}
	for _, m := range report.JournalBalance.Mismatches {
		_, _ = fmt.Fprintf(out, "   entry %d %s off by %s\n", m.EntryID, m.JournalNumber, m.Delta.StringFixed(2))
	}
	for _, m := range report.DerivedBalances.Mismatches {
		_, _ = fmt.Fprintf(out, "   account %d period %d off by %s\n", m.AccountID, m.FiscalPeriodID, m.Delta.StringFixed(2))
	}
}

func severityRank(s integrity.Severity) int {
	switch s {
	case integrity.SeverityCritical:
		return 0
	case integrity.SeverityHigh:
		return 1
	default:
		return 2
	}
}
