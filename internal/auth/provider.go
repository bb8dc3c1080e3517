package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/catalog-console/catalog-console/internal/credstore"
	"github.com/catalog-console/catalog-console/internal/shared"
)

// ListenerFactory builds a transition listener bound to one request.
type ListenerFactory func(r *http.Request) Listener

// ProviderConfig collects the dependencies of Provider.
type ProviderConfig struct {
	Store     *credstore.Redis
	Sessions  *shared.SessionManager
	Verifier  Verifier
	TTL       time.Duration
	Logger    *slog.Logger
	Listeners []ListenerFactory
}

// Provider attaches a hydrated Machine to every request. It must run after
// the browser session middleware.
type Provider struct {
	cfg ProviderConfig
}

// NewProvider constructs a Provider.
func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{cfg: cfg}
}

// Middleware builds the Machine for the request's browser session and
// hydrates it. With a session manager configured, a successful login moves
// the browser session to a fresh id.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			p.cfg.Logger.Error("auth provider: no browser session in context")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		service := NewService(p.cfg.Store.ForSession(sess.ID), p.cfg.Verifier, p.cfg.TTL, p.cfg.Logger)
		machine := NewMachine(service)
		for _, factory := range p.cfg.Listeners {
			if l := factory(r); l != nil {
				machine.Subscribe(l)
			}
		}
		if p.cfg.Sessions != nil {
			machine.RenewOnLogin(p.renewer(sess))
		}
		if err := machine.Hydrate(r.Context()); err != nil {
			p.cfg.Logger.Warn("hydrate auth state", slog.String("path", r.URL.Path), slog.Any("error", err))
		}

		next.ServeHTTP(w, r.WithContext(ContextWithMachine(r.Context(), machine)))
	})
}

func (p *Provider) renewer(sess *shared.Session) Renewer {
	return func(ctx context.Context) (credstore.Store, error) {
		id := p.cfg.Sessions.NewSessionID()
		if err := p.cfg.Store.Move(ctx, sess.ID, id); err != nil {
			return nil, err
		}
		if err := p.cfg.Sessions.Renew(ctx, sess, id); err != nil {
			p.cfg.Logger.Warn("drop previous browser session", slog.Any("error", err))
		}
		return p.cfg.Store.ForSession(id), nil
	}
}
