package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/catalog-console/catalog-console/internal/shared"
	"github.com/catalog-console/catalog-console/internal/view"
)

const loginFailedMessage = "Failed to login. Please check your credentials."

// HomePath is where signed-in viewers land.
const HomePath = "/products"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	guard       *Guard
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, guard *Guard) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		logger:      logger,
		templates:   templates,
		csrfManager: csrf,
		guard:       guard,
		validator:   validator.New(),
	}
}

// MountRoutes registers auth routes on provided router. loginLimit, when not
// nil, wraps the login submission.
func (h *Handler) MountRoutes(r chi.Router, loginLimit func(http.Handler) http.Handler) {
	r.Get("/", h.home)
	r.Get(LoginPath, h.showLogin)
	if loginLimit != nil {
		r.With(loginLimit).Post(LoginPath, h.handleLogin)
	} else {
		r.Post(LoginPath, h.handleLogin)
	}
	r.Post("/logout", h.handleLogout)
	r.Get(UnauthorizedPath, h.unauthorized)
}

type loginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
	Error  string
}

// PageData assembles the values every page template expects.
func PageData(r *http.Request, csrf *shared.CSRFManager, title string, data any) view.TemplateData {
	ctx := r.Context()
	var token string
	if sess := shared.SessionFromContext(ctx); sess != nil && csrf != nil {
		token, _ = csrf.EnsureToken(ctx, sess)
	}
	return view.TemplateData{
		Title:       title,
		CSRFToken:   token,
		Flash:       shared.PopFlash(ctx),
		CurrentPath: r.URL.Path,
		Viewer:      ViewerFor(StateFromContext(ctx)),
		Data:        data,
	}
}

// ViewerFor maps a state to the header's viewer.
func ViewerFor(s State) view.Viewer {
	if !s.IsAuthenticated || s.User == nil {
		return view.Viewer{}
	}
	return view.Viewer{Username: s.User.Username, Authenticated: true, Admin: s.User.IsAdmin()}
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	switch state := StateFromContext(r.Context()); {
	case state.IsLoading:
		h.guard.Loading(w, r)
	case state.IsAuthenticated:
		Redirect(w, HomePath)
	default:
		Redirect(w, LoginPath)
	}
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if StateFromContext(r.Context()).IsAuthenticated {
		Redirect(w, HomePath)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				fieldErrors[fe.Field()] = fe.Field() + " is required"
			}
		}
	}
	if len(fieldErrors) > 0 {
		h.renderLogin(w, r, http.StatusBadRequest, loginPageData{Form: loginForm{Username: form.Username}, Errors: fieldErrors})
		return
	}

	machine := MachineFromContext(r.Context())
	if machine == nil {
		h.logger.Error("auth machine missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	identity, err := machine.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, ErrNotHydrated) {
			h.guard.Loading(w, r)
			return
		}
		if errors.Is(err, ErrSuperseded) {
			// A newer attempt or a logout decides the outcome.
			Redirect(w, "/")
			return
		}
		if !errors.Is(err, shared.ErrAuthentication) {
			h.logger.Warn("login", slog.String("username", form.Username), slog.Any("error", err))
		}
		h.renderLogin(w, r, http.StatusBadRequest, loginPageData{Form: loginForm{Username: form.Username}, Error: loginFailedMessage})
		return
	}
	h.logger.Info("login", slog.String("username", identity.Username), slog.Any("roles", identity.Roles))
	Redirect(w, HomePath)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if machine := MachineFromContext(r.Context()); machine != nil {
		machine.Logout(r.Context())
	}
	Redirect(w, LoginPath)
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	data := PageData(r, h.csrfManager, "Access Denied", nil)
	if err := h.templates.RenderStatus(w, http.StatusForbidden, "pages/unauthorized.html", data); err != nil {
		h.logger.Error("render unauthorized", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	if data.Error == "" {
		data.Error = StateFromContext(r.Context()).Error
	}
	viewData := PageData(r, h.csrfManager, "Login", data)
	if err := h.templates.RenderStatus(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
