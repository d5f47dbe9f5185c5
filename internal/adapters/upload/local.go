package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"cellule/internal/domain/errs"
)

// DefaultMaxBytes caps a single local upload.
const DefaultMaxBytes = 50 << 20

// LocalUploader writes media into a directory served by the web server.
type LocalUploader struct {
	dir      string
	prefix   string
	maxBytes int64
}

var _ Uploader = (*LocalUploader)(nil)

// NewLocalUploader stores files in dir and builds URLs as prefix + "/" + name.
// PRE: prefix is the public URL of dir, e.g. "/media" or "https://club.example/media"
// POST: dir exists
func NewLocalUploader(dir, prefix string, maxBytes int64) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &LocalUploader{dir: dir, prefix: strings.TrimRight(prefix, "/"), maxBytes: maxBytes}, nil
}

// Dir returns the media directory.
func (l *LocalUploader) Dir() string { return l.dir }

// Upload sniffs the content type, rejects anything that is not an image or video and writes the file.
func (l *LocalUploader) Upload(ctx context.Context, f File, onProgress Progress) (string, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(newProgressReader(f.Body, f.Size, onProgress), l.maxBytes+1))
	if err != nil {
		return "", &errs.UploadError{Message: "read upload", Err: err}
	}
	if n > l.maxBytes {
		return "", &errs.UploadError{Status: 413, Message: "file too large"}
	}
	if err := ctx.Err(); err != nil {
		return "", &errs.UploadError{Err: err}
	}

	mt := mimetype.Detect(buf.Bytes())
	if !allowed(mt, f.Kind) {
		return "", &errs.UploadError{Status: 415, Message: "unsupported media type " + mt.String()}
	}

	name := uuid.NewString() + mt.Extension()
	if err := os.WriteFile(filepath.Join(l.dir, name), buf.Bytes(), 0o644); err != nil {
		return "", &errs.UploadError{Message: "write file", Err: err}
	}
	if onProgress != nil {
		onProgress(100)
	}
	url := l.prefix + "/" + name
	slog.Info("upload_event", "event", "uploaded", "backend", "local", "mime", mt.String(), "url", url)
	return url, nil
}

// allowed accepts images for KindImage, videos for KindVideo and either when kind is unset.
func allowed(mt *mimetype.MIME, kind Kind) bool {
	isImage, isVideo := false, false
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			isImage = true
		case strings.HasPrefix(m.String(), "video/"):
			isVideo = true
		}
	}
	switch kind {
	case KindImage:
		return isImage
	case KindVideo:
		return isVideo
	default:
		return isImage || isVideo
	}
}

// Remove deletes the file behind url. URLs outside the prefix are ignored.
func (l *LocalUploader) Remove(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, l.prefix+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) {
		slog.Warn("upload_event", "event", "remove_skipped", "reason", "foreign url", "url", url)
		return nil
	}
	if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
