package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalog-console/catalog-console/internal/view"
)

func stateFor(user *Identity) State {
	return Reduce(InitialState(), Hydrated{User: user})
}

func TestEvaluate(t *testing.T) {
	admin := NewIdentity("admin", RoleAdmin, RoleUser)
	alice := NewIdentity("alice", RoleUser)

	cases := []struct {
		name  string
		state State
		role  string
		want  Verdict
	}{
		{"hydrating", InitialState(), "", VerdictLoading},
		{"anonymous", stateFor(nil), "", VerdictLogin},
		{"anonymous admin route", stateFor(nil), RoleAdmin, VerdictLogin},
		{"user any route", stateFor(&alice), "", VerdictAllow},
		{"user admin route", stateFor(&alice), RoleAdmin, VerdictUnauthorized},
		{"admin admin route", stateFor(&admin), RoleAdmin, VerdictAllow},
		{"admin user route", stateFor(&admin), RoleUser, VerdictAllow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.state, tc.role))
		})
	}
}

func newGuardedRequest(t *testing.T, user *Identity, hydrate bool) *http.Request {
	t.Helper()
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()
	if user != nil {
		require.NoError(t, svc.Persist(ctx, *user, EncodeCredential(user.Username, "pw")))
	}
	m := NewMachine(svc)
	if hydrate {
		require.NoError(t, m.Hydrate(ctx))
	}
	req := httptest.NewRequest(http.MethodGet, "/products/new", nil)
	return req.WithContext(ContextWithMachine(req.Context(), m))
}

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)
	return NewGuard(engine, nil)
}

func TestGuardRedirectsUserWithoutRole(t *testing.T) {
	guard := newTestGuard(t)
	alice := NewIdentity("alice", RoleUser)
	called := false
	h := guard.Require(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, _ = w.Write([]byte("secret"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newGuardedRequest(t, &alice, true))

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, []string{UnauthorizedPath}, rr.Header().Values("Location"))
	assert.Empty(t, rr.Body.String())
}

func TestGuardRedirectsAnonymousToLogin(t *testing.T) {
	guard := newTestGuard(t)
	called := false
	h := guard.Authenticated()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newGuardedRequest(t, nil, true))

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, []string{LoginPath}, rr.Header().Values("Location"))
	assert.Empty(t, rr.Body.String())
}

func TestGuardServesAuthorizedViewer(t *testing.T) {
	guard := newTestGuard(t)
	admin := NewIdentity("admin", RoleAdmin, RoleUser)
	h := guard.Require(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("form"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newGuardedRequest(t, &admin, true))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "form", rr.Body.String())
	assert.Empty(t, rr.Header().Get("Location"))
}

func TestGuardShowsPlaceholderWhileHydrating(t *testing.T) {
	guard := newTestGuard(t)
	admin := NewIdentity("admin", RoleAdmin, RoleUser)
	called := false
	h := guard.Require(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newGuardedRequest(t, &admin, false))

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Empty(t, rr.Header().Get("Location"))
	assert.Contains(t, rr.Body.String(), "Please wait while we verify your access.")
}
