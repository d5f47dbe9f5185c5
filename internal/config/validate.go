package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks backend names and the settings each backend requires.
// POST: Returns every problem found, joined
func (c Config) Validate() error {
	var problems []error

	if c.Server.Addr == "" {
		problems = append(problems, errors.New("server.addr is required"))
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		problems = append(problems, errors.New("server.rate_limit and server.rate_burst must be positive"))
	}
	if c.IsProduction() && len(c.Server.CSRFKey) != 32 {
		problems = append(problems, errors.New("server.csrf_key must be 32 bytes in production"))
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			problems = append(problems, errors.New("store.sqlite_path is required for the sqlite backend"))
		}
	case StoreBadger:
	case StoreFirebase:
		u, err := url.Parse(c.Store.FirebaseURL)
		if c.Store.FirebaseURL == "" || err != nil || u.Scheme != "https" {
			problems = append(problems, errors.New("store.firebase_url must be an https URL for the firebase backend"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}

	switch c.Upload.Backend {
	case UploadLocal:
		if c.Upload.LocalDir == "" {
			problems = append(problems, errors.New("upload.local_dir is required for the local backend"))
		}
		if !strings.HasPrefix(c.Upload.PublicPrefix, "/") || !strings.HasSuffix(c.Upload.PublicPrefix, "/") {
			problems = append(problems, errors.New("upload.public_prefix must start and end with /"))
		}
	case UploadCloudinary:
		if c.Upload.CloudName == "" || c.Upload.UploadPreset == "" {
			problems = append(problems, errors.New("upload.cloud_name and upload.upload_preset are required for cloudinary"))
		}
		if (c.Upload.APIKey == "") != (c.Upload.APISecret == "") {
			problems = append(problems, errors.New("upload.api_key and upload.api_secret must be set together"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown upload.backend %q", c.Upload.Backend))
	}
	if c.Upload.MaxWidth < 0 || c.Upload.MaxBytes < 0 {
		problems = append(problems, errors.New("upload limits must not be negative"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		problems = append(problems, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	return errors.Join(problems...)
}
