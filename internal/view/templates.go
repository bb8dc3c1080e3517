package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/catalog-console/catalog-console/internal/shared"
	"github.com/catalog-console/catalog-console/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// Viewer describes the signed-in user for the page header.
type Viewer struct {
	Username      string
	Authenticated bool
	Admin         bool
}

// RoleLabel is shown next to the username in the header.
func (v Viewer) RoleLabel() string {
	if v.Admin {
		return "Admin"
	}
	return "User"
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Viewer      Viewer
	Data        any
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatPrice renders an amount as dollars with two decimals and grouping.
func FormatPrice(amount float64) string {
	return printer.Sprintf("$%.2f", amount)
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatPrice": FormatPrice,
		"cardData": func(product any, admin bool, csrfToken string) map[string]any {
			return map[string]any{"Product": product, "Admin": admin, "CSRFToken": csrfToken}
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes a named template and writes it with status.
// Nothing is written when execution fails, so callers can still send an error response.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
