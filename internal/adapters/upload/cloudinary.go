package upload

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"cellule/internal/domain/errs"
)

// DefaultCloudinaryAPI is the public upload API base.
const DefaultCloudinaryAPI = "https://api.cloudinary.com/v1_1"

// CloudinaryConfig configures unsigned preset uploads and optional signed deletes.
type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
	APIKey       string // optional, enables Remove
	APISecret    string // optional, enables Remove
	BaseURL      string // DefaultCloudinaryAPI when empty
	Client       *http.Client
}

// CloudinaryUploader uploads with an unsigned preset and deletes through the signed destroy API.
type CloudinaryUploader struct {
	cfg    CloudinaryConfig
	client *http.Client
	now    func() time.Time
}

var _ Uploader = (*CloudinaryUploader)(nil)

// NewCloudinaryUploader builds an uploader for cfg.
// PRE: cfg.CloudName and cfg.UploadPreset are set
func NewCloudinaryUploader(cfg CloudinaryConfig) (*CloudinaryUploader, error) {
	if cfg.CloudName == "" || cfg.UploadPreset == "" {
		return nil, fmt.Errorf("cloudinary: cloud name and upload preset are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCloudinaryAPI
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	client := cfg.Client
	if client == nil {
		// Video uploads can be slow; the request context bounds them instead.
		client = &http.Client{}
	}
	return &CloudinaryUploader{cfg: cfg, client: client, now: time.Now}, nil
}

func (c *CloudinaryUploader) endpoint(kind Kind, action string) string {
	if kind == "" {
		kind = "auto"
	}
	return fmt.Sprintf("%s/%s/%s/%s", c.cfg.BaseURL, url.PathEscape(c.cfg.CloudName), kind, action)
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	Result    string `json:"result"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload streams f as multipart form data and returns the secure URL.
// POST: onProgress saw 100 when err is nil
func (c *CloudinaryUploader) Upload(ctx context.Context, f File, onProgress Progress) (string, error) {
	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			if err := mw.WriteField("upload_preset", c.cfg.UploadPreset); err != nil {
				return err
			}
			name := f.Name
			if name == "" {
				name = "upload"
			}
			part, err := mw.CreateFormFile("file", name)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, newProgressReader(f.Body, f.Size, onProgress)); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(f.Kind, "upload"), pr)
	if err != nil {
		return "", &errs.UploadError{Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &errs.UploadError{Err: errs.Connectivity("cloudinary upload", err)}
	}
	defer resp.Body.Close()

	body, err := decodeCloudinary(resp)
	if err != nil {
		return "", err
	}
	if body.SecureURL == "" {
		return "", &errs.UploadError{Status: resp.StatusCode, Message: "response has no secure_url"}
	}
	if onProgress != nil {
		onProgress(100)
	}
	slog.Info("upload_event", "event", "uploaded", "backend", "cloudinary", "kind", string(f.Kind), "url", body.SecureURL)
	return body.SecureURL, nil
}

func decodeCloudinary(resp *http.Response) (cloudinaryResponse, error) {
	var body cloudinaryResponse
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return body, &errs.UploadError{Status: resp.StatusCode, Err: errs.Connectivity("cloudinary read", err)}
	}
	decodeErr := json.Unmarshal(raw, &body)
	if body.Error != nil && body.Error.Message != "" {
		return body, &errs.UploadError{Status: resp.StatusCode, Message: body.Error.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &errs.UploadError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if decodeErr != nil {
		return body, &errs.UploadError{Status: resp.StatusCode, Message: "invalid response", Err: decodeErr}
	}
	return body, nil
}

// Remove destroys the asset behind rawURL. Without API credentials it only logs.
func (c *CloudinaryUploader) Remove(ctx context.Context, rawURL string) error {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		slog.Warn("upload_event", "event", "remove_skipped", "reason", "no api credentials", "url", rawURL)
		return nil
	}
	kind, publicID, err := ParsePublicID(rawURL)
	if err != nil {
		return err
	}

	ts := strconv.FormatInt(c.now().Unix(), 10)
	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("timestamp", ts)
	form.Set("api_key", c.cfg.APIKey)
	form.Set("signature", Sign(map[string]string{"public_id": publicID, "timestamp": ts}, c.cfg.APISecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(kind, "destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return &errs.UploadError{Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return &errs.UploadError{Err: errs.Connectivity("cloudinary destroy", err)}
	}
	defer resp.Body.Close()

	body, err := decodeCloudinary(resp)
	if err != nil {
		return err
	}
	if body.Result != "ok" && body.Result != "not found" {
		return &errs.UploadError{Status: resp.StatusCode, Message: "destroy result: " + body.Result}
	}
	slog.Info("upload_event", "event", "removed", "backend", "cloudinary", "public_id", publicID)
	return nil
}

// Sign computes the API signature: sorted key=value pairs joined by '&', secret appended, SHA-1 hex.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

// ParsePublicID extracts the resource kind and public id from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712345/folder/name.jpg → (image, folder/name).
func ParsePublicID(rawURL string) (Kind, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse asset url: %w", err)
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := -1
	for i, s := range segs {
		if s == "upload" && i > 0 {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(segs) {
		return "", "", fmt.Errorf("not a cloudinary delivery url: %s", rawURL)
	}
	kind := Kind(segs[idx-1])
	rest := segs[idx+1:]
	if len(rest) > 1 && isVersion(rest[0]) {
		rest = rest[1:]
	}
	id := strings.Join(rest, "/")
	id = strings.TrimSuffix(id, path.Ext(id))
	if id == "" {
		return "", "", fmt.Errorf("not a cloudinary delivery url: %s", rawURL)
	}
	return kind, id, nil
}

func isVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.ParseUint(s[1:], 10, 64)
	return err == nil
}
