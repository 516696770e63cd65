package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/closing"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
	"github.com/odyssey-erp/odyssey-gl/internal/observability"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/db"
	"github.com/odyssey-erp/odyssey-gl/internal/rbac"
	"github.com/odyssey-erp/odyssey-gl/internal/shared"
)

// auditRecorder is satisfied by both the postgres audit logger and the slog auditor.
type auditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Ledger bundles the wired ledger components for one process.
type Ledger struct {
	Calendar   *periods.Service
	Journals   *journals.Service
	Sequences  *sequence.Generator
	Closing    *closing.Engine
	Integrity  *integrity.Checker
	Statements *reports.Service
	Reports    *integrity.ReportCache
	Grants     *rbac.Service

	// Memory is set only for the memory driver.
	Memory *memstore.Store
	Pool   *pgxpool.Pool
	Redis  *redis.Client
}

type ledgerRepos struct {
	accounts  accounts.Repository
	periods   periods.Repository
	journals  journals.Repository
	sequences sequence.Store
	closing   closing.Repository
	integrity integrity.Repository
	reports   reports.Repository
	grants    rbac.Store
	audit     auditRecorder
}

// OpenLedger connects the configured store driver and wires every ledger service.
// Redis is optional: without it integrity reports are not cached.
func OpenLedger(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Ledger, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{}

	var repos ledgerRepos
	switch cfg.StoreDriver {
	case StoreDriverMemory:
		l.Memory = memstore.New()
		SeedChart(l.Memory)
		grants := rbac.NewMemoryStore()
		grants.Grant(rbac.ParseGrants(cfg.LedgerGrants, shared.FinanceScopes())...)
		repos = ledgerRepos{
			accounts:  l.Memory.Accounts(),
			periods:   l.Memory.Periods(),
			journals:  l.Memory.Journals(),
			sequences: l.Memory.Sequences(),
			closing:   l.Memory.Closing(),
			integrity: l.Memory.Integrity(),
			reports:   l.Memory.Reports(),
			grants:    grants,
			audit:     shared.SlogAuditor{Logger: logger},
		}
		logger.Warn("ledger running on the in-memory store; data is lost on exit")
	default:
		if cfg.MigrateOnStart {
			if err := db.Migrate(cfg.PGDSN, logger); err != nil {
				return nil, err
			}
		}
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		l.Pool = pool
		grants := rbac.NewPostgresStore(pool)
		if seed := rbac.ParseGrants(cfg.LedgerGrants, shared.FinanceScopes()); len(seed) > 0 {
			if err := grants.Grant(ctx, seed...); err != nil {
				pool.Close()
				return nil, fmt.Errorf("app: seed grants: %w", err)
			}
		}
		periodRepo := periods.NewRepository(pool)
		repos = ledgerRepos{
			accounts:  accounts.NewRepository(pool),
			periods:   periodRepo,
			journals:  journals.NewRepository(pool),
			sequences: sequence.NewRepository(pool),
			closing:   closing.NewRepository(pool, periodRepo),
			integrity: integrity.NewRepository(pool),
			reports:   reports.NewRepository(pool),
			grants:    grants,
			audit:     shared.NewAuditLogger(pool),
		}
	}

	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("integrity report cache disabled", slog.Any("error", err))
		} else {
			l.Redis = client
			l.Reports = integrity.NewReportCache(client, cfg.IntegrityCacheTTL)
		}
	}

	policy := cfg.RetryPolicy()
	directory := accounts.NewService(repos.accounts)

	l.Calendar = periods.NewService(repos.periods, repos.audit, logger)
	l.Journals = journals.NewService(repos.journals, directory, repos.audit, logger)
	l.Journals.WithRetryPolicy(policy)
	l.Journals.WithObserver(ledgerObserver{metrics: metrics, reports: l.Reports, logger: logger})
	l.Sequences = sequence.NewGenerator(repos.sequences, policy, logger)
	l.Closing = closing.NewEngine(repos.closing, directory, l.Journals, repos.audit, logger, cfg.RetainedEarningsCode)
	l.Integrity = integrity.NewChecker(repos.integrity, logger)
	l.Statements = reports.NewService(repos.reports, directory)
	l.Grants = rbac.NewService(repos.grants)
	return l, nil
}

// Ping reports whether the backing stores are reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	if l == nil {
		return errors.New("app: ledger not initialised")
	}
	if l.Pool != nil {
		if err := l.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if l.Redis != nil {
		if err := l.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases connections held by the ledger.
func (l *Ledger) Close() {
	if l == nil {
		return
	}
	if l.Redis != nil {
		_ = l.Redis.Close()
	}
	if l.Pool != nil {
		l.Pool.Close()
	}
}

// DefaultChart is the minimal chart of accounts installed by SeedChart and the seed script.
func DefaultChart() []accounts.Account {
	leaf := func(code, name string, typ accounts.AccountType) accounts.Account {
		return accounts.Account{Code: code, Name: name, Type: typ, IsLeaf: true, IsActive: true, AllowPosting: true}
	}
	return []accounts.Account{
		leaf("1110", "Cash on hand", accounts.AccountTypeAsset),
		leaf("1120", "Bank", accounts.AccountTypeAsset),
		leaf("1130", "Accounts receivable", accounts.AccountTypeAsset),
		leaf("2110", "Accounts payable", accounts.AccountTypeLiability),
		leaf("3110", "Share capital", accounts.AccountTypeEquity),
		leaf("3121", "Retained earnings", accounts.AccountTypeEquity),
		leaf("4100", "Sales", accounts.AccountTypeRevenue),
		leaf("4900", "Other income", accounts.AccountTypeOtherIncome),
		leaf("5100", "Cost of goods sold", accounts.AccountTypeCOGS),
		leaf("6100", "Rent expense", accounts.AccountTypeExpense),
		leaf("6200", "Salaries expense", accounts.AccountTypeExpense),
		leaf("7100", "Other expense", accounts.AccountTypeOtherExpense),
	}
}

// SeedChart installs DefaultChart into an empty memory store.
func SeedChart(store *memstore.Store) {
	for _, a := range DefaultChart() {
		store.AddAccount(a)
	}
}

// ledgerObserver meters postings and invalidates the cached integrity report.
type ledgerObserver struct {
	metrics *observability.Metrics
	reports *integrity.ReportCache
	logger  *slog.Logger
}

func (o ledgerObserver) EntryPosted(docType sequence.DocumentType) {
	o.metrics.EntryPosted(docType)
	o.bump()
}

func (o ledgerObserver) EntryReversed() {
	o.metrics.EntryReversed()
	o.bump()
}

func (o ledgerObserver) ConflictRetried(operation string) {
	o.metrics.ConflictRetried(operation)
}

func (o ledgerObserver) bump() {
	if o.reports == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.reports.Bump(ctx); err != nil && o.logger != nil {
		o.logger.Warn("bump integrity report version", slog.Any("error", err))
	}
}
