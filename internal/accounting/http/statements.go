package ledgerhttp

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-gl/internal/platform/httpx"
)

// rangeQuery reads from and to. A missing to means today; a missing from leaves the range open.
func (h *Handler) rangeQuery(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	var from, to time.Time
	var err error
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		if from, err = parseDate(raw); err != nil {
			return from, to, err
		}
	}
	to = time.Now().UTC()
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		if to, err = parseDate(raw); err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.rangeQuery(r)
	if err != nil {
		h.fail(w, r, "trial balance", err)
		return
	}
	report, err := h.services.Statements.TrialBalance(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.rangeQuery(r)
	if err != nil {
		h.fail(w, r, "profit and loss", err)
		return
	}
	if from.IsZero() {
		h.fail(w, r, "profit and loss", fmt.Errorf("from is required: %w", httpx.ErrValidation))
		return
	}
	report, err := h.services.Statements.ProfitAndLoss(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, "profit and loss", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		var err error
		if asOf, err = parseDate(raw); err != nil {
			h.fail(w, r, "balance sheet", err)
			return
		}
	}
	report, err := h.services.Statements.BalanceSheet(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, "balance sheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) accountStatement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "account statement", err)
		return
	}
	from, to, err := h.rangeQuery(r)
	if err != nil {
		h.fail(w, r, "account statement", err)
		return
	}
	report, err := h.services.Statements.AccountStatement(r.Context(), id, from, to)
	if err != nil {
		h.fail(w, r, "account statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
