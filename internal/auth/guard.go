package auth

import (
	"log/slog"
	"net/http"

	"github.com/catalog-console/catalog-console/internal/view"
)

// Paths the guard redirects to.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Verdict is the outcome of evaluating a route's requirements against a state.
type Verdict int

const (
	// VerdictAllow serves the protected handler.
	VerdictAllow Verdict = iota
	// VerdictLoading shows the neutral placeholder while state is being resolved.
	VerdictLoading
	// VerdictLogin redirects to the login page.
	VerdictLogin
	// VerdictUnauthorized redirects to the access denied page.
	VerdictUnauthorized
)

// Evaluate decides what a viewer in state s sees for a route that requires role.
// An empty role only requires authentication.
func Evaluate(s State, role string) Verdict {
	switch {
	case s.IsLoading:
		return VerdictLoading
	case !s.IsAuthenticated || s.User == nil:
		return VerdictLogin
	case role != "" && !s.User.HasRole(role):
		return VerdictUnauthorized
	default:
		return VerdictAllow
	}
}

// Guard protects routes based on the request's auth state.
type Guard struct {
	templates *view.Engine
	logger    *slog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(templates *view.Engine, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guard{templates: templates, logger: logger}
}

// Authenticated requires a signed-in viewer.
func (g *Guard) Authenticated() func(http.Handler) http.Handler {
	return g.Require("")
}

// Require requires a signed-in viewer carrying role.
func (g *Guard) Require(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch Evaluate(StateFromContext(r.Context()), role) {
			case VerdictAllow:
				next.ServeHTTP(w, r)
			case VerdictLogin:
				Redirect(w, LoginPath)
			case VerdictUnauthorized:
				Redirect(w, UnauthorizedPath)
			default:
				g.Loading(w, r)
			}
		})
	}
}

// Loading writes the placeholder shown while auth state is unresolved.
func (g *Guard) Loading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	data := view.TemplateData{Title: "Loading", CurrentPath: r.URL.Path}
	if err := g.templates.RenderStatus(w, http.StatusServiceUnavailable, "pages/loading.html", data); err != nil {
		g.logger.Error("render loading", slog.Any("error", err))
		http.Error(w, "Loading...", http.StatusServiceUnavailable)
	}
}

// Redirect sends a single 303 to target with an empty body.
func Redirect(w http.ResponseWriter, target string) {
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusSeeOther)
}
