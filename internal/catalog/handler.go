// Package catalog serves the product screens of the console.
package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/catalog-console/catalog-console/internal/auth"
	"github.com/catalog-console/catalog-console/internal/gateway"
	"github.com/catalog-console/catalog-console/internal/shared"
	"github.com/catalog-console/catalog-console/internal/view"
)

const (
	msgLoadFailed    = "Failed to load products. Please try again later."
	msgLoadOne       = "Failed to load product. It might not exist or you may not have permission to view it."
	msgCreateFailed  = "Failed to create product. Please try again."
	msgUpdateFailed  = "Failed to update product. Please try again."
	msgToggleFailed  = "Failed to update product status."
	msgDeleteFailed  = "Failed to delete product. It might be in use or have stock."
	msgNotDeletable  = "Product must be disabled and have 0 stock to be deleted"
	msgSessionExpiry = "Your session has expired. Please log in again."
)

// Handler wires HTTP endpoints for the product screens.
type Handler struct {
	logger      *slog.Logger
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	gateway     *gateway.Client
	guard       *auth.Guard
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, client *gateway.Client, guard *auth.Guard) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		logger:      logger,
		templates:   templates,
		csrfManager: csrf,
		gateway:     client,
		guard:       guard,
		validator:   validator.New(),
	}
}

// MountRoutes registers product routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.Authenticated()).Get("/", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(auth.RoleAdmin))
		r.Get("/new", h.showCreate)
		r.Post("/new", h.create)
		r.Get("/{sku}/edit", h.showEdit)
		r.Post("/{sku}/edit", h.update)
		r.Post("/{sku}/enable", h.enable)
		r.Post("/{sku}/disable", h.disable)
		r.Post("/{sku}/delete", h.delete)
	})
}

type listPageData struct {
	Products []gateway.Product
	Error    string
}

type formPageData struct {
	Editing bool
	Action  string
	Product *gateway.Product
	Form    productForm
	Errors  map[string]string
	Error   string
}

func (h *Handler) products(r *http.Request) *gateway.Products {
	if m := auth.MachineFromContext(r.Context()); m != nil {
		return h.gateway.For(m)
	}
	return h.gateway.For(nil)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.products(r).List(r.Context())
	if h.expired(w, r, err) {
		return
	}
	data := listPageData{Products: products}
	if err != nil {
		h.logger.Warn("list products", slog.Any("error", err))
		data = listPageData{Error: msgLoadFailed}
	}
	h.render(w, r, http.StatusOK, "pages/products_list.html", "Products", data)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/product_form.html", "Add New Product", formPageData{Action: "/products/new"})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := formFromValues(r.PostForm)
	data := formPageData{Action: "/products/new", Form: form}
	req, fieldErrors := form.request(h.validator, true)
	if fieldErrors != nil {
		data.Errors = fieldErrors
		h.render(w, r, http.StatusBadRequest, "pages/product_form.html", "Add New Product", data)
		return
	}

	product, err := h.products(r).Create(r.Context(), req)
	if h.expired(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Warn("create product", slog.String("name", req.Name), slog.Any("error", err))
		data.Error = msgCreateFailed
		h.render(w, r, http.StatusBadGateway, "pages/product_form.html", "Add New Product", data)
		return
	}
	shared.AddFlash(r.Context(), "success", "Product "+product.Name+" created.")
	auth.Redirect(w, auth.HomePath)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	data := formPageData{Editing: true, Action: "/products/" + sku + "/edit"}
	product, err := h.products(r).Get(r.Context(), sku)
	if h.expired(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Warn("load product", slog.String("sku", sku), slog.Any("error", err))
		data.Error = msgLoadOne
		h.render(w, r, loadStatus(err), "pages/product_form.html", "Edit Product", data)
		return
	}
	data.Product = &product
	data.Form = formFromProduct(product)
	h.render(w, r, http.StatusOK, "pages/product_form.html", "Edit Product", data)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sku := chi.URLParam(r, "sku")
	products := h.products(r)
	data := formPageData{Editing: true, Action: "/products/" + sku + "/edit", Form: formFromValues(r.PostForm)}

	product, err := products.Get(r.Context(), sku)
	if h.expired(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Warn("load product", slog.String("sku", sku), slog.Any("error", err))
		data.Error = msgLoadOne
		h.render(w, r, loadStatus(err), "pages/product_form.html", "Edit Product", data)
		return
	}
	data.Product = &product

	req, fieldErrors := data.Form.request(h.validator, false)
	if fieldErrors != nil {
		data.Errors = fieldErrors
		h.render(w, r, http.StatusBadRequest, "pages/product_form.html", "Edit Product", data)
		return
	}
	updated, err := products.Update(r.Context(), sku, req)
	if h.expired(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Warn("update product", slog.String("sku", sku), slog.Any("error", err))
		data.Error = msgUpdateFailed
		h.render(w, r, http.StatusBadGateway, "pages/product_form.html", "Edit Product", data)
		return
	}
	shared.AddFlash(r.Context(), "success", "Product "+updated.Name+" updated.")
	auth.Redirect(w, auth.HomePath)
}

func (h *Handler) enable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, enable bool) {
	sku := chi.URLParam(r, "sku")
	products := h.products(r)
	var (
		product gateway.Product
		err     error
	)
	if enable {
		product, err = products.Enable(r.Context(), sku)
	} else {
		product, err = products.Disable(r.Context(), sku)
	}
	if h.expired(w, r, err) {
		return
	}
	switch {
	case err != nil:
		h.logger.Warn("toggle product", slog.String("sku", sku), slog.Bool("enable", enable), slog.Any("error", err))
		shared.AddFlash(r.Context(), "error", msgToggleFailed)
	case product.Enabled:
		shared.AddFlash(r.Context(), "success", "Product "+product.Name+" enabled.")
	default:
		shared.AddFlash(r.Context(), "success", "Product "+product.Name+" disabled.")
	}
	auth.Redirect(w, auth.HomePath)
}

// delete re-reads the product and only calls the API when it can be deleted.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	products := h.products(r)

	product, err := products.Get(r.Context(), sku)
	if h.expired(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Warn("load product for delete", slog.String("sku", sku), slog.Any("error", err))
		shared.AddFlash(r.Context(), "error", msgDeleteFailed)
		auth.Redirect(w, auth.HomePath)
		return
	}
	if !product.CanDelete() {
		shared.AddFlash(r.Context(), "error", msgNotDeletable)
		auth.Redirect(w, auth.HomePath)
		return
	}

	err = products.Delete(r.Context(), sku)
	if h.expired(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Warn("delete product", slog.String("sku", sku), slog.Any("error", err))
		msg := msgDeleteFailed
		if reqErr, ok := gateway.IsRequestError(err); ok && reqErr.Message != "" {
			msg += " " + reqErr.Message
		}
		shared.AddFlash(r.Context(), "error", msg)
		auth.Redirect(w, auth.HomePath)
		return
	}
	shared.AddFlash(r.Context(), "success", "Product "+product.Name+" deleted.")
	auth.Redirect(w, auth.HomePath)
}

// expired handles a credential the catalog API rejected. The gateway has
// already cleared the session; the viewer is sent back to the login page.
func (h *Handler) expired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, shared.ErrAuthorization) {
		return false
	}
	shared.AddFlash(r.Context(), "info", msgSessionExpiry)
	auth.Redirect(w, auth.LoginPath)
	return true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := auth.PageData(r, h.csrfManager, title, data)
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render "+name, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func loadStatus(err error) int {
	if errors.Is(err, shared.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
