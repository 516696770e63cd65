// Package ledgerhttp exposes the general ledger over a JSON API.
package ledgerhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/closing"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
	ledger "github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-gl/internal/rbac"
	"github.com/odyssey-erp/odyssey-gl/internal/shared"
)

type calendarService interface {
	CreateFiscalYear(ctx context.Context, year int, actor string) (periods.FiscalYear, error)
	ActivateFiscalYear(ctx context.Context, id int64, actor string) (periods.FiscalYear, error)
	CloseFiscalYear(ctx context.Context, id int64, actor string) (periods.FiscalYear, error)
	LockPeriod(ctx context.Context, periodID int64, actor string) (periods.FiscalPeriod, error)
	UnlockPeriod(ctx context.Context, periodID int64, reason, actor string) (periods.FiscalPeriod, error)
	ListFiscalYears(ctx context.Context) ([]periods.FiscalYear, error)
	GetFiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error)
	GetActiveFiscalYear(ctx context.Context) (periods.FiscalYear, error)
}

type journalService interface {
	CreateDraft(ctx context.Context, in journals.DraftInput) (journals.Entry, error)
	CreateOpeningDraft(ctx context.Context, in journals.DraftInput) (journals.Entry, error)
	CreateAdjustmentDraft(ctx context.Context, adjustedEntryID int64, in journals.DraftInput) (journals.Entry, error)
	UpdateDraft(ctx context.Context, id int64, in journals.HeaderInput, actor string) (journals.Entry, error)
	AddLine(ctx context.Context, id int64, in journals.LineInput, actor string) (journals.Entry, error)
	RemoveLine(ctx context.Context, id int64, lineNumber int, actor string) (journals.Entry, error)
	ReplaceLines(ctx context.Context, id int64, lines []journals.LineInput, actor string) (journals.Entry, error)
	DeleteDraft(ctx context.Context, id int64, actor string) error
	Post(ctx context.Context, id int64, actor string) (journals.PostResult, error)
	Reverse(ctx context.Context, in journals.ReverseInput) (journals.PostResult, error)
	ListEntries(ctx context.Context, filter journals.ListFilter) ([]journals.Entry, error)
	GetEntry(ctx context.Context, id int64) (journals.Entry, error)
}

type sequenceService interface {
	NextCode(ctx context.Context, docType sequence.DocumentType, fiscalYearID int64) (string, error)
}

type closingService interface {
	GenerateClosingEntry(ctx context.Context, fiscalYearID int64, actor string) (closing.Result, error)
}

type statementService interface {
	TrialBalance(ctx context.Context, from, to time.Time) (reports.TrialBalance, error)
	ProfitAndLoss(ctx context.Context, from, to time.Time) (reports.ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, asOf time.Time) (reports.BalanceSheet, error)
	AccountStatement(ctx context.Context, accountID int64, from, to time.Time) (reports.AccountStatement, error)
}

type integrityService interface {
	Run(ctx context.Context) (integrity.Report, error)
}

// Services groups the ledger components served over HTTP.
type Services struct {
	Calendar  calendarService
	Journals  journalService
	Sequences sequenceService
	Closing   closingService
	Integrity integrityService
	// Statements is optional; nil leaves the report routes unmounted.
	Statements statementService
	// Reports caches integrity reports. Nil disables caching.
	Reports *integrity.ReportCache
}

// Handler wires HTTP endpoints for the general ledger.
type Handler struct {
	logger    *slog.Logger
	services  Services
	rbac      rbac.Middleware
	validator *validator.Validate
	runs      singleflight.Group
}

// NewHandler constructs a ledger HTTP handler.
func NewHandler(logger *slog.Logger, services Services, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		services:  services,
		rbac:      rbac,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/api/ledger", func(r chi.Router) {
		r.Route("/fiscal-years", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.rbac.RequireAll(shared.PermFinanceGLView))
				r.Get("/", h.listYears)
				r.Get("/active", h.activeYear)
				r.Get("/{id}", h.getYear)
			})
			r.Group(func(r chi.Router) {
				r.Use(h.rbac.RequireAll(shared.PermFinanceYearManage))
				r.Post("/", h.createYear)
				r.Post("/{id}/activate", h.activateYear)
			})
			r.Group(func(r chi.Router) {
				r.Use(h.rbac.RequireAll(shared.PermFinanceYearClose))
				r.Post("/{id}/closing-entry", h.generateClosing)
				r.Post("/{id}/close", h.closeYear)
			})
		})
		r.Route("/periods", func(r chi.Router) {
			r.Use(h.rbac.RequireAll(shared.PermFinancePeriodClose))
			r.Post("/{id}/lock", h.lockPeriod)
			r.Post("/{id}/unlock", h.unlockPeriod)
		})
		r.Route("/entries", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.rbac.RequireAll(shared.PermFinanceGLView))
				r.Get("/", h.listEntries)
				r.Get("/{id}", h.getEntry)
			})
			r.Group(func(r chi.Router) {
				r.Use(h.rbac.RequireAll(shared.PermFinanceGLEdit))
				r.Post("/", h.createDraft)
				r.Post("/opening", h.createOpeningDraft)
				r.Post("/{id}/adjustments", h.createAdjustmentDraft)
				r.Patch("/{id}", h.updateDraft)
				r.Delete("/{id}", h.deleteDraft)
				r.Post("/{id}/lines", h.addLine)
				r.Put("/{id}/lines", h.replaceLines)
				r.Delete("/{id}/lines/{line}", h.removeLine)
			})
			r.With(h.rbac.RequireAll(shared.PermFinanceGLPost)).Post("/{id}/post", h.postEntry)
			r.With(h.rbac.RequireAll(shared.PermFinanceGLReverse)).Post("/{id}/reverse", h.reverseEntry)
		})
		r.With(h.rbac.RequireAll(shared.PermFinanceSequence)).Post("/sequences/{docType}/next", h.nextCode)
		r.Route("/integrity", func(r chi.Router) {
			r.Use(h.rbac.RequireAll(shared.PermFinanceGLView))
			r.Get("/", h.integrityReport)
			r.Post("/run", h.runIntegrity)
		})
		if h.services.Statements != nil {
			r.Route("/reports", func(r chi.Router) {
				r.Use(h.rbac.RequireAll(shared.PermFinanceGLView))
				r.Get("/trial-balance", h.trialBalance)
				r.Get("/profit-and-loss", h.profitAndLoss)
				r.Get("/balance-sheet", h.balanceSheet)
			})
			r.With(h.rbac.RequireAll(shared.PermFinanceGLView)).Get("/statements/accounts/{id}", h.accountStatement)
		}
	})
}

func (h *Handler) actor(r *http.Request) string {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor.Username
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, httpx.ErrValidation)
	}
	return h.validator.Struct(target)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer: %w", name, httpx.ErrValidation)
	}
	return id, nil
}

// fail logs and writes the problem response. Business rule rejections log at warn level.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	attrs := []any{slog.String("op", op), slog.String("actor", h.actor(r)), slog.Any("error", err)}
	switch {
	case ledger.IsBusinessRule(err), errors.Is(err, httpx.ErrValidation):
		h.logger.Warn("ledger request rejected", attrs...)
	default:
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			h.logger.Warn("ledger request rejected", attrs...)
		} else {
			h.logger.Error("ledger request failed", attrs...)
		}
	}
	httpx.RespondError(w, err)
}
