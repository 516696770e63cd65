package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	ledgerhttp "github.com/odyssey-erp/odyssey-gl/internal/accounting/http"
	"github.com/odyssey-erp/odyssey-gl/internal/observability"
	"github.com/odyssey-erp/odyssey-gl/internal/rbac"
	"github.com/odyssey-erp/odyssey-gl/jobs"
)

func memoryConfig() *Config {
	return &Config{
		StoreDriver:          StoreDriverMemory,
		ActorHeader:          "X-Actor",
		LedgerGrants:         "alice=*;viewer=finance.gl.view",
		RetainedEarningsCode: "3121",
		ConflictRetries:      3,
		RateLimitPerMinute:   1000,
	}
}

func newTestRouter(t *testing.T, ready func(context.Context) error) (http.Handler, *Ledger) {
	t.Helper()
	cfg := memoryConfig()
	metrics := observability.NewMetrics()
	ledger, err := OpenLedger(context.Background(), cfg, nil, metrics)
	require.NoError(t, err)
	t.Cleanup(ledger.Close)

	mw := rbac.Middleware{Service: ledger.Grants, Header: cfg.ActorHeader}
	if ready == nil {
		ready = ledger.Ping
	}
	return NewRouter(RouterParams{
		Config:         cfg,
		RBACMiddleware: mw,
		LedgerHandler: ledgerhttp.NewHandler(nil, ledgerhttp.Services{
			Calendar:   ledger.Calendar,
			Journals:   ledger.Journals,
			Sequences:  ledger.Sequences,
			Closing:    ledger.Closing,
			Integrity:  ledger.Integrity,
			Statements: ledger.Statements,
			Reports:    ledger.Reports,
		}, mw),
		PermissionsHandler: rbac.NewPermissionsHandler(nil, mw),
		JobHandler:         jobs.NewHandler(nil, nil),
		Metrics:            metrics,
		Ready:              ready,
	}), ledger
}

func call(t *testing.T, h http.Handler, actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req.Header.Set("X-Actor", actor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterProbes(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := call(t, h, "", http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Frame-Options"))

	rec = call(t, h, "", http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, "", http.MethodGet, "/jobs/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	down, _ := newTestRouter(t, func(context.Context) error { return errors.New("postgres down") })
	rec = call(t, down, "", http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouterServesSeededLedger(t *testing.T) {
	h, ledger := newTestRouter(t, nil)

	rec := call(t, h, "alice", http.MethodPost, "/api/ledger/fiscal-years", map[string]any{"year": 2026})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var year struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &year))

	rec = call(t, h, "viewer", http.MethodPost, "/api/ledger/fiscal-years", map[string]any{"year": 2027})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, "", http.MethodGet, "/api/ledger/fiscal-years", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h, "viewer", http.MethodGet, "/permissions/me/permissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "finance.gl.view")

	cash, err := ledger.Memory.Accounts().FindByCode(context.Background(), "1110")
	require.NoError(t, err)
	require.True(t, cash.CanReceivePostings())

	rec = call(t, h, "", http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "odyssey_http_requests_total"))
}
