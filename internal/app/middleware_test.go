package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalog-console/catalog-console/internal/auth"
	"github.com/catalog-console/catalog-console/internal/credstore"
	"github.com/catalog-console/catalog-console/internal/shared"
)

func newStackRouter(t *testing.T, provider *auth.Provider, handler http.HandlerFunc) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := chi.NewRouter()
	r.Use(MiddlewareStack(MiddlewareConfig{
		Logger:         slog.New(slog.DiscardHandler),
		Config:         &Config{AppEnv: "test", AppRequestTimeout: 2 * time.Second},
		SessionManager: shared.NewSessionManager(client, "catalog_session", "secret", time.Hour, false),
		CSRFManager:    shared.NewCSRFManager("csrf-secret"),
		AuthProvider:   provider,
	})...)
	r.Get("/", handler)
	return r
}

func TestAuthProviderRunsInsideRecoverer(t *testing.T) {
	// A provider without a store panics while hydrating.
	router := newStackRouter(t, auth.NewProvider(auth.ProviderConfig{}), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestAuthProviderRunsUnderRequestTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var (
		hasDeadline bool
		hydrated    bool
	)
	provider := auth.NewProvider(auth.ProviderConfig{
		Store: credstore.NewRedis(client, "credentials"),
		Listeners: []auth.ListenerFactory{func(r *http.Request) auth.Listener {
			_, hasDeadline = r.Context().Deadline()
			return func(from, to auth.State, cause auth.Event) {
				if _, ok := cause.(auth.Hydrated); ok {
					hydrated = true
				}
			}
		}},
	})
	router := newStackRouter(t, provider, func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, auth.StateFromContext(r.Context()).IsLoading)
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, hasDeadline)
	assert.True(t, hydrated)
}
