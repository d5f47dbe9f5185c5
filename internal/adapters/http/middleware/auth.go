package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"cellule/internal/application/session"
)

type contextKey string

const adminContextKey contextKey = "admin"

// SessionCookieName is the admin session cookie.
const SessionCookieName = "cellule_admin"

// SecureCookies marks the session cookie Secure. Set in production.
var SecureCookies = false

// Admin is the authenticated admin attached to a request.
type Admin struct {
	Token   string
	Session *session.Session
}

// Auth resolves the session cookie and puts the admin in the request context.
// It does not block anonymous requests; use RequireAdmin for that.
func Auth(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				if sess, ok := sessions.Get(cookie.Value); ok {
					r = r.WithContext(ContextWithAdmin(r.Context(), Admin{Token: cookie.Value, Session: sess}))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin blocks requests without an admin session.
// API and JSON callers get 401, browsers are sent to the login page.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AdminFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") || !strings.Contains(r.Header.Get("Accept"), "text/html") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "authentification requise"})
			return
		}
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	})
}

// AdminFromContext returns the admin attached by Auth.
func AdminFromContext(ctx context.Context) (Admin, bool) {
	a, ok := ctx.Value(adminContextKey).(Admin)
	return a, ok
}

// ContextWithAdmin attaches an admin to ctx. Used by Auth and tests.
func ContextWithAdmin(ctx context.Context, a Admin) context.Context {
	return context.WithValue(ctx, adminContextKey, a)
}

// SetSessionCookie sets the admin session cookie.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   maxAge,
	})
}

// ClearSessionCookie removes the admin session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
