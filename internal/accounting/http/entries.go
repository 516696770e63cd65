package ledgerhttp

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/httpx"
)

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, "list entries", err)
		return
	}
	entries, err := h.services.Journals.ListEntries(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list entries", err)
		return
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func parseListFilter(r *http.Request) (journals.ListFilter, error) {
	q := r.URL.Query()
	filter := journals.ListFilter{
		Status:     journals.Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		SourceType: journals.SourceType(strings.ToUpper(strings.TrimSpace(q.Get("source_type")))),
	}
	ints := []struct {
		key string
		dst *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}}
	for _, p := range ints {
		if raw := q.Get(p.key); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return filter, fmt.Errorf("%s: %w", p.key, httpx.ErrValidation)
			}
			*p.dst = v
		}
	}
	if raw := q.Get("period_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("period_id: %w", httpx.ErrValidation)
		}
		filter.FiscalPeriodID = v
	}
	dates := []struct {
		key string
		dst **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}}
	for _, p := range dates {
		if raw := q.Get(p.key); raw != "" {
			t, err := parseDate(raw)
			if err != nil {
				return filter, err
			}
			*p.dst = &t
		}
	}
	if raw := q.Get("source_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, fmt.Errorf("source_id: %w", httpx.ErrValidation)
		}
		filter.SourceID = &id
	}
	return filter.Normalize(), nil
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "get entry", err)
		return
	}
	e, err := h.services.Journals.GetEntry(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newEntryView(e))
}

func (h *Handler) decodeDraft(r *http.Request) (journals.DraftInput, error) {
	var req draftRequest
	if err := h.decode(r, &req); err != nil {
		return journals.DraftInput{}, err
	}
	return req.input(h.actor(r))
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeDraft(r)
	if err != nil {
		h.fail(w, r, "create draft", err)
		return
	}
	e, err := h.services.Journals.CreateDraft(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newEntryView(e))
}

func (h *Handler) createOpeningDraft(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeDraft(r)
	if err != nil {
		h.fail(w, r, "create opening draft", err)
		return
	}
	e, err := h.services.Journals.CreateOpeningDraft(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create opening draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newEntryView(e))
}

func (h *Handler) createAdjustmentDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "create adjustment draft", err)
		return
	}
	in, err := h.decodeDraft(r)
	if err != nil {
		h.fail(w, r, "create adjustment draft", err)
		return
	}
	e, err := h.services.Journals.CreateAdjustmentDraft(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "create adjustment draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newEntryView(e))
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "update draft", err)
		return
	}
	var req headerRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "update draft", err)
		return
	}
	date, err := parseDate(req.JournalDate)
	if err != nil {
		h.fail(w, r, "update draft", err)
		return
	}
	e, err := h.services.Journals.UpdateDraft(r.Context(), id, journals.HeaderInput{
		JournalDate:     date,
		Description:     req.Description,
		ReferenceNumber: req.ReferenceNumber,
		CostCenterID:    req.CostCenterID,
	}, h.actor(r))
	if err != nil {
		h.fail(w, r, "update draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newEntryView(e))
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "delete draft", err)
		return
	}
	if err := h.services.Journals.DeleteDraft(r.Context(), id, h.actor(r)); err != nil {
		h.fail(w, r, "delete draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "add line", err)
		return
	}
	var req lineRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "add line", err)
		return
	}
	e, err := h.services.Journals.AddLine(r.Context(), id, req.input(), h.actor(r))
	if err != nil {
		h.fail(w, r, "add line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newEntryView(e))
}

func (h *Handler) replaceLines(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "replace lines", err)
		return
	}
	var req replaceLinesRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "replace lines", err)
		return
	}
	e, err := h.services.Journals.ReplaceLines(r.Context(), id, lineInputs(req.Lines), h.actor(r))
	if err != nil {
		h.fail(w, r, "replace lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newEntryView(e))
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "remove line", err)
		return
	}
	line, err := pathID(r, "line")
	if err != nil {
		h.fail(w, r, "remove line", err)
		return
	}
	e, err := h.services.Journals.RemoveLine(r.Context(), id, int(line), h.actor(r))
	if err != nil {
		h.fail(w, r, "remove line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newEntryView(e))
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "post entry", err)
		return
	}
	res, err := h.services.Journals.Post(r.Context(), id, h.actor(r))
	if err != nil {
		h.fail(w, r, "post entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPostView(res))
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, "reverse entry", err)
		return
	}
	var req reverseRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "reverse entry", err)
		return
	}
	in := journals.ReverseInput{EntryID: id, Reason: req.Reason, Actor: h.actor(r)}
	if req.ReversalDate != "" {
		if in.ReversalDate, err = parseDate(req.ReversalDate); err != nil {
			h.fail(w, r, "reverse entry", err)
			return
		}
	}
	res, err := h.services.Journals.Reverse(r.Context(), in)
	if err != nil {
		h.fail(w, r, "reverse entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newPostView(res))
}

func (h *Handler) nextCode(w http.ResponseWriter, r *http.Request) {
	var req nextCodeRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "next code", err)
		return
	}
	docType := sequence.DocumentType(strings.ToUpper(chi.URLParam(r, "docType")))
	code, err := h.services.Sequences.NextCode(r.Context(), docType, req.FiscalYearID)
	if err != nil {
		h.fail(w, r, "next code", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"code": code})
}
