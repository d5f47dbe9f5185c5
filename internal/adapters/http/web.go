package web

import (
	"net/http"
	"time"

	"cellule/internal/adapters/email"
	"cellule/internal/adapters/http/live"
	"cellule/internal/adapters/http/middleware"
	"cellule/internal/adapters/http/perf"
	"cellule/internal/adapters/storage"
	"cellule/internal/adapters/upload"
	"cellule/internal/application/collections"
	"cellule/internal/application/orchestrators"
	"cellule/internal/application/session"
	"cellule/internal/metrics"
)

// Deps holds everything the HTTP layer needs.
type Deps struct {
	Store      storage.Store
	Records    collections.Set
	Sessions   *session.Manager
	Hub        *live.Hub
	Uploader   upload.Uploader
	Sender     email.Sender // optional
	AdminEmail string
	Metrics    *metrics.Metrics // optional
	Collector  *perf.Collector  // optional
	Limiter    *middleware.RateLimiter

	StaticDir string
	MediaDir  string // empty when uploads go to the hosted service
	MaxWidth  int
	MaxUpload int64 // per-file upload cap; 0 uses the middleware default body cap

	CSRFKey        []byte // nil disables CSRF protection
	Secure         bool
	TrustedOrigins []string
	SessionTTL     time.Duration
}

// Global dependencies (set by NewMux)
var (
	store         storage.Store
	records       collections.Set
	sessions      *session.Manager
	liveHub       *live.Hub
	mediaDeps     orchestrators.MediaDeps
	perfCollector *perf.Collector
	appMetrics    *metrics.Metrics
	sessionTTL    time.Duration
)

// Global email sender instance (set by NewMux)
var emailSender email.Sender

// Notification recipient for new registrations
var adminEmail string

// NewMux wires HTTP handlers for the app.
func NewMux(d Deps) http.Handler {
	store = d.Store
	records = d.Records
	sessions = d.Sessions
	liveHub = d.Hub
	mediaDeps = orchestrators.MediaDeps{Uploader: d.Uploader, MaxWidth: d.MaxWidth}
	perfCollector = d.Collector
	appMetrics = d.Metrics
	emailSender = d.Sender
	adminEmail = d.AdminEmail
	sessionTTL = d.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = session.DefaultTTL
	}
	middleware.SecureCookies = d.Secure

	mux := http.NewServeMux()
	if d.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(d.StaticDir))))
	}
	if d.MediaDir != "" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(d.MediaDir))))
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}
	registerRoutes(mux)

	var observe middleware.RequestObserver
	if d.Metrics != nil {
		observe = d.Metrics.ObserveRequest
	}

	// Applied innermost first: Auth -> CSRF -> SecurityHeaders -> LimitBody -> RateLimit -> Timing
	chain := []func(http.Handler) http.Handler{middleware.Auth(d.Sessions)}
	if d.CSRFKey != nil {
		chain = append(chain, middleware.CSRF(d.CSRFKey, d.Secure, d.TrustedOrigins))
	}
	chain = append(chain, middleware.SecurityHeaders)
	var uploadBody int64
	if d.MaxUpload > 0 {
		// A record form carries at most a photo and a video.
		uploadBody = 2*d.MaxUpload + 1<<20
	}
	chain = append(chain, middleware.LimitBody(middleware.DefaultMaxBody, uploadBody))
	if d.Limiter != nil {
		chain = append(chain, middleware.RateLimit(d.Limiter))
	}
	chain = append(chain, middleware.Timing(d.Collector, observe, middleware.DefaultSlowRequest))
	return middleware.Chain(mux, chain...)
}

// routes registers handlers and labels each request with its pattern for metrics.
type routes struct {
	mux *http.ServeMux
}

func (rt routes) handle(pattern string, h http.HandlerFunc) {
	rt.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.SetRoute(r.Context(), pattern)
		h(w, r)
	}))
}

func (rt routes) admin(pattern string, h http.HandlerFunc) {
	rt.handle(pattern, middleware.RequireAdmin(h).ServeHTTP)
}

func registerRoutes(mux *http.ServeMux) {
	rt := routes{mux: mux}

	// Public site
	rt.handle("GET /{$}", handleIndex)
	rt.handle("POST /register", handleRegister)
	rt.handle("GET /healthz", handleHealthz)

	// Admin pages
	rt.handle("GET /admin", handleAdmin)
	rt.handle("GET /admin.html", handleAdmin)
	rt.handle("POST /admin/login", handleAdminLogin)
	rt.handle("POST /admin/logout", handleAdminLogout)
	rt.admin("POST /admin/password", handleChangePassword)
	rt.admin("GET /admin/export.csv", handleExportRegistrations)
	rt.admin("GET /admin/live", handleLive)
	rt.admin("GET /admin/perf", handlePerf)

	// Registrations
	rt.admin("GET /api/registrations", handleListRegistrations)
	rt.admin("POST /api/registrations/{id}/validate", handleToggleRegistration)
	rt.admin("DELETE /api/registrations/{id}", handleDeleteRegistration)

	// Events and members
	rt.handle("GET /api/events", handleListEvents)
	rt.admin("POST /api/events", handleCreateEvent)
	rt.admin("PUT /api/events/{id}", handleUpdateEvent)
	rt.admin("DELETE /api/events/{id}", handleDeleteEvent)
	rt.handle("GET /api/members", handleListMembers)
	rt.admin("POST /api/members", handleCreateMember)
	rt.admin("PUT /api/members/{id}", handleUpdateMember)
	rt.admin("DELETE /api/members/{id}", handleDeleteMember)
}
