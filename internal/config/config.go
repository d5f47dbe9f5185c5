// Package config loads the server configuration in layers: built-in defaults, an optional YAML
// file, then CELLULE_* environment variables (a local .env file is read first when present).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CELLULE_CONFIG"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{"config.yaml", "config.yml"}

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreBadger   = "badger"
	StoreFirebase = "firebase"
)

// Upload backends.
const (
	UploadLocal      = "local"
	UploadCloudinary = "cloudinary"
)

// Config is the full server configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Store  StoreConfig  `koanf:"store"`
	Upload UploadConfig `koanf:"upload"`
	Notify NotifyConfig `koanf:"notify"`
	Log    LogConfig    `koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	Env             string        `koanf:"env"`
	CSRFKey         string        `koanf:"csrf_key"`
	TrustedOrigins  []string      `koanf:"trusted_origins"`
	RateLimit       float64       `koanf:"rate_limit"` // requests per second per client
	RateBurst       int           `koanf:"rate_burst"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	SessionTTL      time.Duration `koanf:"session_ttl"`
}

// StoreConfig selects and configures the realtime store backend.
type StoreConfig struct {
	Backend         string        `koanf:"backend"`
	SQLitePath      string        `koanf:"sqlite_path"`
	BadgerDir       string        `koanf:"badger_dir"`
	FirebaseURL     string        `koanf:"firebase_url"`
	FirebaseSecret  string        `koanf:"firebase_secret"`
	CredentialsFile string        `koanf:"credentials_file"`
	Timeout         time.Duration `koanf:"timeout"`
	SlowQuery       time.Duration `koanf:"slow_query"`
}

// UploadConfig selects and configures the media upload backend.
type UploadConfig struct {
	Backend      string `koanf:"backend"`
	CloudName    string `koanf:"cloud_name"`
	UploadPreset string `koanf:"upload_preset"`
	APIKey       string `koanf:"api_key"`
	APISecret    string `koanf:"api_secret"`
	LocalDir     string `koanf:"local_dir"`
	PublicPrefix string `koanf:"public_prefix"`
	MaxBytes     int64  `koanf:"max_bytes"`
	MaxWidth     int    `koanf:"max_width"`
}

// NotifyConfig configures the new-registration email.
type NotifyConfig struct {
	ResendKey  string `koanf:"resend_key"`
	From       string `koanf:"from"`
	AdminEmail string `koanf:"admin_email"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Env:             "development",
			TrustedOrigins:  []string{"localhost:8080", "127.0.0.1:8080"},
			RateLimit:       5,
			RateBurst:       20,
			ShutdownTimeout: 10 * time.Second,
			SessionTTL:      24 * time.Hour,
		},
		Store: StoreConfig{
			Backend:    StoreSQLite,
			SQLitePath: "cellule.db",
			BadgerDir:  "data/badger",
			Timeout:    15 * time.Second,
			SlowQuery:  50 * time.Millisecond,
		},
		Upload: UploadConfig{
			Backend:      UploadLocal,
			LocalDir:     "media",
			PublicPrefix: "/media/",
			MaxBytes:     50 << 20,
			MaxWidth:     1600,
		},
		Notify: NotifyConfig{
			From: "Cellule <noreply@cellule.ma>",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// envKeys maps CELLULE_* variables (prefix stripped, lower-cased) to config keys.
// Unlisted variables are ignored.
var envKeys = map[string]string{
	"addr":             "server.addr",
	"env":              "server.env",
	"csrf_key":         "server.csrf_key",
	"trusted_origins":  "server.trusted_origins",
	"rate_limit":       "server.rate_limit",
	"rate_burst":       "server.rate_burst",
	"shutdown_timeout": "server.shutdown_timeout",
	"session_ttl":      "server.session_ttl",

	"store_backend":    "store.backend",
	"sqlite_path":      "store.sqlite_path",
	"badger_dir":       "store.badger_dir",
	"firebase_url":     "store.firebase_url",
	"firebase_secret":  "store.firebase_secret",
	"credentials_file": "store.credentials_file",
	"store_timeout":    "store.timeout",
	"slow_query":       "store.slow_query",

	"upload_backend":           "upload.backend",
	"cloudinary_cloud_name":    "upload.cloud_name",
	"cloudinary_upload_preset": "upload.upload_preset",
	"cloudinary_api_key":       "upload.api_key",
	"cloudinary_api_secret":    "upload.api_secret",
	"media_dir":                "upload.local_dir",
	"media_prefix":             "upload.public_prefix",
	"upload_max_bytes":         "upload.max_bytes",
	"image_max_width":          "upload.max_width",

	"resend_key":  "notify.resend_key",
	"resend_from": "notify.from",
	"admin_email": "notify.admin_email",

	"log_level":  "log.level",
	"log_format": "log.format",
}

func envKey(name string) string {
	return envKeys[strings.ToLower(strings.TrimPrefix(name, "CELLULE_"))]
}

// Load reads .env, the config file and the environment, then validates the result.
// PRE: none
// POST: Returns a validated Config or an error naming the failing layer
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFile(findFile())
}

// LoadFile is Load without .env handling and with an explicit config file ("" for none).
func LoadFile(path string) (Config, error) {
	k := koanf.New(".")
	defaults := Defaults()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("CELLULE_", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}
	// Lists arrive from the environment as comma-separated strings.
	if raw, ok := k.Get("server.trusted_origins").(string); ok {
		k.Set("server.trusted_origins", splitList(raw))
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction reports whether the server runs with production settings.
func (c Config) IsProduction() bool {
	return c.Server.Env == "production"
}
