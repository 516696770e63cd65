package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-gl/internal/shared"
)

type failingStore struct{}

func (failingStore) Permissions(context.Context, string) ([]string, error) {
	return nil, errors.New("store down")
}

func newTestRouter(store Store, guard func(Middleware) func(http.Handler) http.Handler) http.Handler {
	mw := Middleware{Service: NewService(store)}
	r := chi.NewRouter()
	r.Use(mw.Identify)
	r.With(guard(mw)).Get("/", func(w http.ResponseWriter, r *http.Request) {
		actor, _ := shared.ActorFromContext(r.Context())
		_, _ = w.Write([]byte(actor.Username))
	})
	return r
}

func serve(h http.Handler, actor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor != "" {
		req.Header.Set(DefaultActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAll(t *testing.T) {
	store := NewMemoryStore()
	store.Grant(
		Grant{Actor: "alice", Permission: shared.PermFinanceGLView},
		Grant{Actor: "alice", Permission: "FINANCE.GL.POST"},
		Grant{Actor: "bob", Permission: shared.PermFinanceGLView},
	)
	h := newTestRouter(store, func(m Middleware) func(http.Handler) http.Handler {
		return m.RequireAll(shared.PermFinanceGLView, shared.PermFinanceGLPost)
	})

	rec := serve(h, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", rec.Body.String())

	require.Equal(t, http.StatusForbidden, serve(h, "bob").Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
}

func TestRequireAny(t *testing.T) {
	store := NewMemoryStore()
	store.Grant(Grant{Actor: "carol", Permission: shared.PermFinanceYearClose})
	h := newTestRouter(store, func(m Middleware) func(http.Handler) http.Handler {
		return m.RequireAny(shared.PermFinanceYearManage, shared.PermFinanceYearClose)
	})
	require.Equal(t, http.StatusOK, serve(h, "carol").Code)
	require.Equal(t, http.StatusForbidden, serve(h, "dave").Code)
}

func TestIdentifyStoreFailure(t *testing.T) {
	h := newTestRouter(failingStore{}, func(m Middleware) func(http.Handler) http.Handler {
		return m.RequireAny(shared.PermFinanceGLView)
	})
	require.Equal(t, http.StatusInternalServerError, serve(h, "alice").Code)
}

func TestParseGrants(t *testing.T) {
	grants := ParseGrants("alice=*; bob=finance.gl.view|finance.gl.edit ;=orphan;eve", []string{"a", "b"})
	require.Equal(t, []Grant{
		{Actor: "alice", Permission: "a"},
		{Actor: "alice", Permission: "b"},
		{Actor: "bob", Permission: "finance.gl.view"},
		{Actor: "bob", Permission: "finance.gl.edit"},
	}, grants)
}

func TestEffectivePermissionsNormalizes(t *testing.T) {
	store := NewMemoryStore()
	store.Grant(Grant{Actor: "alice", Permission: " Finance.GL.View "}, Grant{Actor: "alice", Permission: "finance.gl.view"})
	perms, err := NewService(store).EffectivePermissions(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"finance.gl.view"}, perms)

	_, err = NewService(store).EffectivePermissions(context.Background(), " ")
	require.ErrorIs(t, err, ErrNotFound)
}
