package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/coastalkoffix/webapp/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		logger.ErrorContext(r.Context(), "Failed to render template", "template", name, "error", err)
	}
}
