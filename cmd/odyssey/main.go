package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-gl/cmd/odyssey/cli"
	ledgerhttp "github.com/odyssey-erp/odyssey-gl/internal/accounting/http"
	"github.com/odyssey-erp/odyssey-gl/internal/app"
	"github.com/odyssey-erp/odyssey-gl/internal/observability"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-gl/internal/rbac"
	"github.com/odyssey-erp/odyssey-gl/jobs"
)

const usage = `usage:
  odyssey                        serve the ledger HTTP API
  odyssey ledger check [-json]   run the integrity checks once
  odyssey jobs trigger <task>    enqueue a background task (gl:integrity)
  odyssey jobs stats             show default queue statistics
`

func main() {
	if app.InTestMode() {
		slog.Default().Info(app.SkipReason("odyssey"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	if len(args) == 0 || args[0] == "serve" {
		os.Exit(serve(ctx, cfg, logger))
	}
	switch args[0] {
	case "ledger":
		os.Exit(ledgerCommand(ctx, cfg, logger, args[1:]))
	case "jobs":
		os.Exit(jobsCommand(ctx, cfg, args[1:]))
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	metrics := observability.NewMetrics()
	ledger, err := app.OpenLedger(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("open ledger", slog.Any("error", err))
		return 1
	}
	defer ledger.Close()

	rbacMiddleware := rbac.Middleware{Service: ledger.Grants, Logger: logger, Header: cfg.ActorHeader}
	ledgerHandler := ledgerhttp.NewHandler(logger, ledgerhttp.Services{
		Calendar:   ledger.Calendar,
		Journals:   ledger.Journals,
		Sequences:  ledger.Sequences,
		Closing:    ledger.Closing,
		Integrity:  ledger.Integrity,
		Statements: ledger.Statements,
		Reports:    ledger.Reports,
	}, rbacMiddleware)

	var inspector *asynq.Inspector
	if redisOpts, err := cache.QueueOpt(cfg.RedisAddr); err == nil && ledger.Redis != nil {
		inspector = asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		LedgerHandler:      ledgerHandler,
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		Ready:              ledger.Ping,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			cancelServe()
		}
	}()

	<-serveCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	return 0
}

func ledgerCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	if len(args) == 0 || args[0] != "check" {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	fs := flag.NewFlagSet("ledger check", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	ledger, err := app.OpenLedger(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("open ledger", slog.Any("error", err))
		return 1
	}
	defer ledger.Close()

	checker, err := cli.NewIntegrityCLI(ledger.Integrity)
	if err != nil {
		logger.Error("integrity cli", slog.Any("error", err))
		return 1
	}
	return checker.CheckCommand(ctx, cli.IntegrityOptions{JSONOutput: *asJSON})
}

func jobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		scheduled, err := jobsCLI.ListScheduled(ctx, 10)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		for _, t := range scheduled {
			fmt.Printf("scheduled %s %s at %s\n", t.Type, t.ID, t.NextProcessAt.Format(time.RFC3339))
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	return 0
}
