package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cellule/internal/adapters/email"
	web "cellule/internal/adapters/http"
	"cellule/internal/adapters/http/live"
	"cellule/internal/adapters/http/middleware"
	"cellule/internal/adapters/http/perf"
	"cellule/internal/adapters/storage"
	"cellule/internal/adapters/upload"
	"cellule/internal/application/collections"
	"cellule/internal/application/session"
	"cellule/internal/config"
	"cellule/internal/metrics"
	"cellule/internal/supervisor"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := perf.NewCollector(perf.DefaultRingSize)
	m := metrics.New()

	backend, err := openStore(ctx, cfg.Store, collector)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	st := storage.Instrument(backend, m.ObserveStore)
	defer st.Close()

	// An unreachable store is reported but does not stop the server; pages show the connectivity message.
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := storage.Ping(pingCtx, st); err != nil {
		slog.Warn("store_unreachable", "backend", cfg.Store.Backend, "error", err)
	} else {
		slog.Info("store_ready", "backend", cfg.Store.Backend)
	}
	cancelPing()

	rawUploader, err := openUploader(cfg.Upload)
	if err != nil {
		log.Fatalf("failed to configure uploads: %v", err)
	}
	uploader := upload.Instrument(rawUploader, func(op string, elapsed time.Duration, err error) {
		m.ObserveUpload(op, elapsed, err)
		collector.ObserveUpload(op, elapsed, err)
	})

	var sender email.Sender = email.NewNoopSender()
	if cfg.Notify.ResendKey != "" {
		sender = email.NewResendSender(cfg.Notify.ResendKey, cfg.Notify.From)
		slog.Info("email_configured", "provider", "resend", "admin", cfg.Notify.AdminEmail)
	} else if cfg.IsProduction() {
		slog.Warn("email_disabled", "reason", "CELLULE_RESEND_KEY is not set")
	}

	set := collections.NewSet(st, uploader)
	hub := live.NewHub(func(n int) { m.LiveClients.Set(float64(n)) })
	sessions := session.NewManager(session.DepsFor(st, set), hub.Publish, cfg.Server.SessionTTL)
	sessions.OnExpire(hub.Disconnect)
	defer sessions.Close()
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)

	csrfKey, err := loadCSRFKey(cfg)
	if err != nil {
		log.Fatalf("csrf key: %v", err)
	}

	deps := web.Deps{
		Store:          st,
		Records:        set,
		Sessions:       sessions,
		Hub:            hub,
		Uploader:       uploader,
		Sender:         sender,
		AdminEmail:     cfg.Notify.AdminEmail,
		Metrics:        m,
		Collector:      collector,
		Limiter:        limiter,
		StaticDir:      "static",
		MaxWidth:       cfg.Upload.MaxWidth,
		MaxUpload:      cfg.Upload.MaxBytes,
		CSRFKey:        csrfKey,
		Secure:         cfg.IsProduction(),
		TrustedOrigins: cfg.Server.TrustedOrigins,
		SessionTTL:     cfg.Server.SessionTTL,
	}
	if cfg.Upload.Backend == config.UploadLocal {
		deps.MediaDir = cfg.Upload.LocalDir
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           web.NewMux(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logger, supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	tree.AddLiveService(supervisor.NewRunnerService("live-hub", hub))
	tree.AddAPIService(supervisor.NewRunnerService("rate-limiter", limiter))
	tree.AddAPIService(supervisor.NewRunnerService("session-reaper", sessions))
	tree.AddAPIService(supervisor.NewHTTPService(srv, cfg.Server.ShutdownTimeout))

	slog.Info("server_starting",
		"version", version,
		"addr", cfg.Server.Addr,
		"env", cfg.Server.Env,
		"store", cfg.Store.Backend,
		"upload", cfg.Upload.Backend,
	)
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		slog.Error("server_stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server_stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore builds the backend named in cfg. SQLite goes through TimedDB so slow queries reach the collector.
func openStore(ctx context.Context, cfg config.StoreConfig, collector *perf.Collector) (storage.Store, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	case config.StoreSQLite:
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return storage.NewSQLiteStore(storage.NewTimedDB(db, collector, cfg.SlowQuery), db.Close), nil
	case config.StoreBadger:
		db, err := storage.OpenBadger(cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		return storage.NewBadgerStore(db), nil
	case config.StoreFirebase:
		fc := storage.FirebaseConfig{URL: cfg.FirebaseURL, Secret: cfg.FirebaseSecret, Collector: collector}
		if cfg.CredentialsFile != "" {
			client, err := storage.NewFirebaseClient(ctx, cfg.CredentialsFile)
			if err != nil {
				return nil, err
			}
			client.Timeout = cfg.Timeout
			fc.Client = client
			fc.Secret = ""
		} else if cfg.Timeout > 0 {
			fc.Client = &http.Client{Timeout: cfg.Timeout}
		}
		return storage.NewFirebaseStore(fc)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func openUploader(cfg config.UploadConfig) (upload.Uploader, error) {
	switch cfg.Backend {
	case config.UploadCloudinary:
		return upload.NewCloudinaryUploader(upload.CloudinaryConfig{
			CloudName:    cfg.CloudName,
			UploadPreset: cfg.UploadPreset,
			APIKey:       cfg.APIKey,
			APISecret:    cfg.APISecret,
		})
	case config.UploadLocal:
		return upload.NewLocalUploader(cfg.LocalDir, cfg.PublicPrefix, cfg.MaxBytes)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Backend)
	}
}

// loadCSRFKey returns the configured 32-byte key. Outside production a missing key is replaced
// by a random one, which invalidates open forms on every restart.
func loadCSRFKey(cfg config.Config) ([]byte, error) {
	if len(cfg.Server.CSRFKey) == 32 {
		return []byte(cfg.Server.CSRFKey), nil
	}
	if cfg.IsProduction() {
		return nil, fmt.Errorf("CELLULE_CSRF_KEY must be 32 bytes, got %d", len(cfg.Server.CSRFKey))
	}
	if cfg.Server.CSRFKey != "" {
		slog.Warn("csrf_key_ignored", "reason", "key is not 32 bytes", "length", len(cfg.Server.CSRFKey))
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	slog.Warn("csrf_key_generated", "reason", "CELLULE_CSRF_KEY not set")
	return key, nil
}
