package ledgerhttp

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-gl/internal/platform/httpx"
)

func (h *Handler) listYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.services.Calendar.ListFiscalYears(r.Context())
	if err != nil {
		h.fail(w, r, "list fiscal years", err)
		return
	}
	views := make([]yearView, 0, len(years))
	for _, fy := range years {
		views = append(views, newYearView(fy))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) activeYear(w http.ResponseWriter, r *http.Request) {
	fy, err := h.services.Calendar.GetActiveFiscalYear(r.Context())
	if err != nil {
		h.fail(w, r, "active fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newYearView(fy))
}

func (h *Handler) getYear(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "get fiscal year", err)
		return
	}
	fy, err := h.services.Calendar.GetFiscalYear(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newYearView(fy))
}

func (h *Handler) createYear(w http.ResponseWriter, r *http.Request) {
	var req createYearRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "create fiscal year", err)
		return
	}
	fy, err := h.services.Calendar.CreateFiscalYear(r.Context(), req.Year, h.actor(r))
	if err != nil {
		h.fail(w, r, "create fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newYearView(fy))
}

func (h *Handler) activateYear(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "activate fiscal year", err)
		return
	}
	fy, err := h.services.Calendar.ActivateFiscalYear(r.Context(), id, h.actor(r))
	if err != nil {
		h.fail(w, r, "activate fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newYearView(fy))
}

func (h *Handler) closeYear(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "close fiscal year", err)
		return
	}
	fy, err := h.services.Calendar.CloseFiscalYear(r.Context(), id, h.actor(r))
	if err != nil {
		h.fail(w, r, "close fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newYearView(fy))
}

func (h *Handler) generateClosing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "closing entry", err)
		return
	}
	res, err := h.services.Closing.GenerateClosingEntry(r.Context(), id, h.actor(r))
	if err != nil {
		h.fail(w, r, "closing entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newClosingView(res))
}

func (h *Handler) lockPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "lock period", err)
		return
	}
	p, err := h.services.Calendar.LockPeriod(r.Context(), id, h.actor(r))
	if err != nil {
		h.fail(w, r, "lock period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPeriodView(p))
}

func (h *Handler) unlockPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "unlock period", err)
		return
	}
	var req unlockRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "unlock period", err)
		return
	}
	p, err := h.services.Calendar.UnlockPeriod(r.Context(), id, req.Reason, h.actor(r))
	if err != nil {
		h.fail(w, r, "unlock period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPeriodView(p))
}
