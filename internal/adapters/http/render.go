package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/csrf"

	"cellule/internal/adapters/http/middleware"
	"cellule/internal/domain/errs"
)

// timeNow is a variable for testability.
var timeNow = time.Now

//go:embed templates/*.html
var templateFS embed.FS

// Connectivity message shown when the store or the upload service cannot be reached.
const connectivityMessage = "Erreur de connexion à la base de données. Veuillez réessayer."

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func isHTMLRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json_encode_failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// errorStatus maps an error kind to the HTTP status and the message shown to the user.
// The second result is false for unexpected errors, which are reported as 500 without detail.
func errorStatus(err error) (int, string, bool) {
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message, true
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "Élément introuvable", true
	case errors.Is(err, errs.ErrUpload):
		return http.StatusBadGateway, "Erreur lors de l'envoi du fichier: " + uploadMessage(err), true
	case errors.Is(err, errs.ErrConnectivity):
		return http.StatusServiceUnavailable, connectivityMessage, true
	default:
		return http.StatusInternalServerError, "", false
	}
}

func uploadMessage(err error) string {
	var ue *errs.UploadError
	if errors.As(err, &ue) && ue.Message != "" && !errors.Is(err, errs.ErrConnectivity) {
		return ue.Message
	}
	return "service indisponible"
}

// writeError reports err as JSON, or falls back to internalError for unexpected kinds.
func writeError(w http.ResponseWriter, err error) {
	status, msg, ok := errorStatus(err)
	if !ok {
		internalError(w, err)
		return
	}
	slog.Info("request_failed", "status", status, "error", err.Error())
	writeJSONError(w, status, msg)
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	renderTemplateStatus(w, r, http.StatusOK, templateName, data)
}

// renderTemplateStatus renders into a buffer first so a failed render never sends a partial page.
func renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, templateName string, data any) {
	_, isAdmin := middleware.AdminFromContext(r.Context())

	funcMap := template.FuncMap{
		"csrfToken": func() string { return csrf.Token(r) },
		"isAdmin":   func() bool { return isAdmin },
		"year":      func() int { return timeNow().Year() },
		"list":      func(items ...string) []string { return items },
		"add":       func(a, b int) int { return a + b },
		"sub":       func(a, b int) int { return a - b },
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+templateName)
	if err != nil {
		http.Error(w, "Template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		http.Error(w, "Render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
