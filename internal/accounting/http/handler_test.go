package ledgerhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/closing"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
	acctshared "github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-gl/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-gl/internal/rbac"
	"github.com/odyssey-erp/odyssey-gl/internal/shared"
)

type testServer struct {
	router      http.Handler
	cash, sales accounts.Account
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	leaf := func(code, name string, typ accounts.AccountType) accounts.Account {
		return store.AddAccount(accounts.Account{Code: code, Name: name, Type: typ, IsLeaf: true, IsActive: true, AllowPosting: true})
	}
	ts := &testServer{
		cash:  leaf("1110", "Cash", accounts.AccountTypeAsset),
		sales: leaf("4100", "Sales", accounts.AccountTypeRevenue),
	}
	leaf("3121", "Retained earnings", accounts.AccountTypeEquity)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	directory := accounts.NewService(store.Accounts())
	journalSvc := journals.NewService(store.Journals(), directory, nil, nil)
	services := Services{
		Calendar:   periods.NewService(store.Periods(), nil, nil),
		Journals:   journalSvc,
		Sequences:  sequence.NewGenerator(store.Sequences(), acctshared.RetryPolicy{}, nil),
		Closing:    closing.NewEngine(store.Closing(), directory, journalSvc, nil, nil, closing.DefaultRetainedEarningsCode),
		Integrity:  integrity.NewChecker(store.Integrity(), nil),
		Statements: reports.NewService(store.Reports(), directory),
		Reports:    integrity.NewReportCache(client, 0),
	}

	grants := rbac.NewMemoryStore()
	grants.Grant(rbac.ParseGrants("alice=*;viewer=finance.gl.view", shared.FinanceScopes())...)
	mw := rbac.Middleware{Service: rbac.NewService(grants)}

	r := chi.NewRouter()
	r.Use(mw.Identify)
	NewHandler(nil, services, mw).MountRoutes(r)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, actor, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req.Header.Set(rbac.DefaultActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (ts *testServer) openYear(t *testing.T) yearView {
	t.Helper()
	var fy yearView
	require.Equal(t, http.StatusCreated, ts.do(t, "alice", http.MethodPost, "/api/ledger/fiscal-years", map[string]int{"year": 2026}, &fy))
	require.Len(t, fy.Periods, 12)
	require.Equal(t, http.StatusOK, ts.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/ledger/fiscal-years/%d/activate", fy.ID), nil, &fy))
	require.Equal(t, "ACTIVE", fy.Status)
	return fy
}

func (ts *testServer) sale(amount, creditAmount string) map[string]any {
	return map[string]any{
		"journal_date": "2026-03-10",
		"description":  "Cash sale",
		"lines": []map[string]any{
			{"account_id": ts.cash.ID, "debit": amount},
			{"account_id": ts.sales.ID, "credit": creditAmount},
		},
	}
}

func TestDraftPostReverseFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.openYear(t)

	var draft entryView
	require.Equal(t, http.StatusCreated, ts.do(t, "alice", http.MethodPost, "/api/ledger/entries", ts.sale("1000", "1000"), &draft))
	require.Equal(t, "DRAFT", draft.Status)
	require.Len(t, draft.Lines, 2)

	var posted postView
	require.Equal(t, http.StatusOK, ts.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/ledger/entries/%d/post", draft.ID), nil, &posted))
	require.Equal(t, "JV-2026-00001", posted.JournalNumber)

	var got entryView
	require.Equal(t, http.StatusOK, ts.do(t, "viewer", http.MethodGet, fmt.Sprintf("/api/ledger/entries/%d", draft.ID), nil, &got))
	require.Equal(t, "POSTED", got.Status)
	require.Equal(t, "alice", got.PostedBy)

	var reversal postView
	require.Equal(t, http.StatusCreated, ts.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/ledger/entries/%d/reverse", draft.ID),
		map[string]string{"reason": "duplicate", "reversal_date": "2026-03-11"}, &reversal))
	require.Equal(t, "JV-2026-00002", reversal.JournalNumber)

	var problem httpx.ProblemDetail
	require.Equal(t, http.StatusConflict, ts.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/ledger/entries/%d/reverse", draft.ID),
		map[string]string{"reason": "again", "reversal_date": "2026-03-12"}, &problem))
	require.Equal(t, "urn:odyssey-gl:problem:state", problem.Type)

	var list []entryView
	require.Equal(t, http.StatusOK, ts.do(t, "viewer", http.MethodGet, "/api/ledger/entries?status=reversed", nil, &list))
	require.Len(t, list, 1)
	require.Equal(t, draft.ID, list[0].ID)
}

func TestDraftEditingRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.openYear(t)

	var draft entryView
	require.Equal(t, http.StatusCreated, ts.do(t, "alice", http.MethodPost, "/api/ledger/entries", ts.sale("100", "60"), &draft))

	var problem httpx.ProblemDetail
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/ledger/entries/%d/post", draft.ID), nil, &problem))
	require.Contains(t, problem.Detail, "balance")

	var edited entryView
	require.Equal(t, http.StatusOK, ts.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/ledger/entries/%d/lines", draft.ID),
		map[string]any{"account_id": ts.sales.ID, "credit": "40"}, &edited))
	require.Len(t, edited.Lines, 3)
	require.True(t, edited.TotalCredit.Equal(edited.TotalDebit))

	require.Equal(t, http.StatusOK, ts.do(t, "alice", http.MethodDelete, fmt.Sprintf("/api/ledger/entries/%d/lines/3", draft.ID), nil, &edited))
	require.Len(t, edited.Lines, 2)

	require.Equal(t, http.StatusOK, ts.do(t, "alice", http.MethodPatch, fmt.Sprintf("/api/ledger/entries/%d", draft.ID),
		map[string]string{"journal_date": "2026-03-12", "description": "Corrected sale"}, &edited))
	require.Equal(t, "Corrected sale", edited.Description)

	require.Equal(t, http.StatusNoContent, ts.do(t, "alice", http.MethodDelete, fmt.Sprintf("/api/ledger/entries/%d", draft.ID), nil, nil))
	require.Equal(t, http.StatusNotFound, ts.do(t, "alice", http.MethodGet, fmt.Sprintf("/api/ledger/entries/%d", draft.ID), nil, &problem))
}

func TestAuthorizationAndValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.openYear(t)

	require.Equal(t, http.StatusUnauthorized, ts.do(t, "", http.MethodGet, "/api/ledger/entries", nil, nil))
	require.Equal(t, http.StatusForbidden, ts.do(t, "viewer", http.MethodPost, "/api/ledger/entries", ts.sale("1", "1"), nil))
	require.Equal(t, http.StatusForbidden, ts.do(t, "viewer", http.MethodPost, "/api/ledger/fiscal-years", map[string]int{"year": 2027}, nil))

	var problem httpx.ProblemDetail
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(t, "alice", http.MethodPost, "/api/ledger/fiscal-years", map[string]int{"year": 1999}, &problem))
	require.Contains(t, problem.Detail, "Year")

	bad := ts.sale("1", "1")
	bad["journal_date"] = "10/03/2026"
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(t, "alice", http.MethodPost, "/api/ledger/entries", bad, &problem))

	require.Equal(t, http.StatusUnprocessableEntity, ts.do(t, "alice", http.MethodPost, "/api/ledger/periods/1/unlock", map[string]string{}, &problem))
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(t, "alice", http.MethodGet, "/api/ledger/entries/abc", nil, &problem))
	require.Equal(t, http.StatusNotFound, ts.do(t, "alice", http.MethodGet, "/api/ledger/fiscal-years/99", nil, &problem))

	outside := ts.sale("1", "1")
	outside["journal_date"] = "2031-01-01"
	require.Equal(t, http.StatusConflict, ts.do(t, "alice", http.MethodPost, "/api/ledger/entries", outside, &problem))
}

func TestPeriodAndSequenceRoutes(t *testing.T) {
	ts := newTestServer(t)
	fy := ts.openYear(t)

	var period periodView
	path := fmt.Sprintf("/api/ledger/periods/%d", fy.Periods[0].ID)
	require.Equal(t, http.StatusOK, ts.do(t, "alice", http.MethodPost, path+"/lock", nil, &period))
	require.Equal(t, "LOCKED", period.Status)
	require.Equal(t, http.StatusOK, ts.do(t, "alice", http.MethodPost, path+"/unlock", map[string]string{"reason": "late invoice"}, &period))
	require.Equal(t, "OPEN", period.Status)
	require.Equal(t, "late invoice", period.UnlockReason)

	var code map[string]string
	require.Equal(t, http.StatusOK, ts.do(t, "alice", http.MethodPost, "/api/ledger/sequences/si/next", map[string]int64{"fiscal_year_id": fy.ID}, &code))
	require.Equal(t, "SI-2026-00001", code["code"])

	var problem httpx.ProblemDetail
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(t, "alice", http.MethodPost, "/api/ledger/sequences/zz/next", map[string]int64{"fiscal_year_id": fy.ID}, &problem))
}

func TestIntegrityReportIsCached(t *testing.T) {
	ts := newTestServer(t)
	ts.openYear(t)

	var report integrityView
	require.Equal(t, http.StatusOK, ts.do(t, "viewer", http.MethodGet, "/api/ledger/integrity", nil, &report))
	require.True(t, report.Healthy)
	require.False(t, report.Cached)

	require.Equal(t, http.StatusOK, ts.do(t, "viewer", http.MethodGet, "/api/ledger/integrity", nil, &report))
	require.True(t, report.Cached)

	require.Equal(t, http.StatusOK, ts.do(t, "viewer", http.MethodPost, "/api/ledger/integrity/run", nil, &report))
	require.False(t, report.Cached)
	require.Empty(t, report.Findings)
}

func TestClosingRoute(t *testing.T) {
	ts := newTestServer(t)
	fy := ts.openYear(t)

	var draft entryView
	require.Equal(t, http.StatusCreated, ts.do(t, "alice", http.MethodPost, "/api/ledger/entries", ts.sale("250", "250"), &draft))
	require.Equal(t, http.StatusOK, ts.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/ledger/entries/%d/post", draft.ID), nil, nil))

	var res closingView
	path := fmt.Sprintf("/api/ledger/fiscal-years/%d/closing-entry", fy.ID)
	require.Equal(t, http.StatusCreated, ts.do(t, "alice", http.MethodPost, path, nil, &res))
	require.Equal(t, "JV-2026-00002", res.JournalNumber)
	require.Equal(t, 1, res.ClosedAccounts)
	require.Equal(t, "250", res.NetIncome.String())

	var problem httpx.ProblemDetail
	require.Equal(t, http.StatusConflict, ts.do(t, "alice", http.MethodPost, path, nil, &problem))
	require.Equal(t, http.StatusConflict, ts.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/ledger/fiscal-years/%d/close", fy.ID), nil, &problem))
}

func TestStatementRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.openYear(t)

	var draft entryView
	require.Equal(t, http.StatusCreated, ts.do(t, "alice", http.MethodPost, "/api/ledger/entries", ts.sale("400", "400"), &draft))
	require.Equal(t, http.StatusOK, ts.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/ledger/entries/%d/post", draft.ID), nil, nil))

	var tb reports.TrialBalance
	require.Equal(t, http.StatusOK, ts.do(t, "viewer", http.MethodGet, "/api/ledger/reports/trial-balance?from=2026-03-01&to=2026-03-31", nil, &tb))
	require.True(t, tb.Balanced)
	require.Equal(t, "400", tb.TotalDebit.String())

	var pl reports.ProfitAndLoss
	require.Equal(t, http.StatusOK, ts.do(t, "viewer", http.MethodGet, "/api/ledger/reports/profit-and-loss?from=2026-01-01&to=2026-12-31", nil, &pl))
	require.Equal(t, "400", pl.NetIncome.String())

	var bs reports.BalanceSheet
	require.Equal(t, http.StatusOK, ts.do(t, "viewer", http.MethodGet, "/api/ledger/reports/balance-sheet?as_of=2026-12-31", nil, &bs))
	require.True(t, bs.Balanced)
	require.Equal(t, "400", bs.CurrentEarnings.String())

	var st reports.AccountStatement
	require.Equal(t, http.StatusOK, ts.do(t, "viewer", http.MethodGet,
		fmt.Sprintf("/api/ledger/statements/accounts/%d?from=2026-03-01&to=2026-03-31", ts.cash.ID), nil, &st))
	require.Equal(t, "1110", st.Code)
	require.True(t, st.Opening.IsZero())
	require.Len(t, st.Lines, 1)
	require.Equal(t, "JV-2026-00001", st.Lines[0].JournalNumber)
	require.Equal(t, "400", st.Closing.String())

	var problem httpx.ProblemDetail
	require.Equal(t, http.StatusNotFound, ts.do(t, "viewer", http.MethodGet, "/api/ledger/statements/accounts/999?to=2026-03-31", nil, &problem))
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(t, "viewer", http.MethodGet, "/api/ledger/reports/trial-balance?from=2026-04-01&to=2026-03-01", nil, &problem))
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(t, "viewer", http.MethodGet, "/api/ledger/reports/profit-and-loss", nil, &problem))
	require.Equal(t, http.StatusUnprocessableEntity, ts.do(t, "viewer", http.MethodGet, "/api/ledger/reports/balance-sheet?as_of=yesterday", nil, &problem))
}
