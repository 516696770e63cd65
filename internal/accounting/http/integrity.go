package ledgerhttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/httpx"
)

const integrityRunKey = "integrity"

type integrityView struct {
	Cached bool `json:"cached"`
	integrity.Report
}

// run coalesces concurrent checker runs into one.
func (h *Handler) run(ctx context.Context) (integrity.Report, error) {
	v, err, _ := h.runs.Do(integrityRunKey, func() (any, error) {
		return h.services.Integrity.Run(context.WithoutCancel(ctx))
	})
	if err != nil {
		return integrity.Report{}, err
	}
	return v.(integrity.Report), nil
}

func (h *Handler) integrityReport(w http.ResponseWriter, r *http.Request) {
	report, cached, err := h.services.Reports.Fetch(r.Context(), h.run)
	if err != nil {
		h.logger.Warn("integrity report cache", slog.Any("error", err))
		if report.CheckedAt.IsZero() {
			if report, err = h.run(r.Context()); err != nil {
				h.fail(w, r, "integrity report", err)
				return
			}
		}
	}
	httpx.JSON(w, http.StatusOK, integrityView{Cached: cached, Report: report})
}

func (h *Handler) runIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.run(r.Context())
	if err != nil {
		h.fail(w, r, "integrity run", err)
		return
	}
	if err := h.services.Reports.Store(r.Context(), report); err != nil {
		h.logger.Warn("integrity report cache", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, integrityView{Report: report})
}
