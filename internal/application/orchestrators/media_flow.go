package orchestrators

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"cellule/internal/adapters/upload"
	"cellule/internal/domain/media"
)

// ImageInput is a user-selected image and the crop chosen for it.
type ImageInput struct {
	Name string
	Body io.Reader
	Crop *media.Rect // nil crops the largest centered area
}

// VideoInput is a user-selected video, uploaded unchanged.
type VideoInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// StageProgress reports upload progress per stage ("photo" or "video").
type StageProgress func(stage string, percent int)

// MediaDeps holds the collaborators shared by the event and member flows.
type MediaDeps struct {
	Uploader upload.Uploader
	MaxWidth int // 0 uses media.DefaultMaxWidth
}

// uploadImage crops, re-encodes and uploads an image.
func uploadImage(ctx context.Context, in *ImageInput, aspect media.Aspect, deps MediaDeps, onProgress StageProgress) (string, error) {
	jpeg, err := media.Crop(in.Body, media.Options{Aspect: aspect, Rect: in.Crop, MaxWidth: deps.MaxWidth})
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(path.Base(in.Name), path.Ext(in.Name)) + ".jpg"
	return deps.Uploader.Upload(ctx, upload.File{
		Name:        name,
		ContentType: "image/jpeg",
		Kind:        upload.KindImage,
		Size:        int64(len(jpeg)),
		Body:        bytes.NewReader(jpeg),
	}, stage(onProgress, "photo"))
}

// uploadVideo uploads a video as is.
func uploadVideo(ctx context.Context, in *VideoInput, deps MediaDeps, onProgress StageProgress) (string, error) {
	return deps.Uploader.Upload(ctx, upload.File{
		Name:        path.Base(in.Name),
		ContentType: in.ContentType,
		Kind:        upload.KindVideo,
		Size:        in.Size,
		Body:        in.Body,
	}, stage(onProgress, "video"))
}

func stage(fn StageProgress, name string) upload.Progress {
	if fn == nil {
		return nil
	}
	return func(pct int) { fn(name, pct) }
}

// discardAssets removes uploaded assets best-effort. Used when the record write fails
// after an upload, and for assets replaced by an update.
func discardAssets(ctx context.Context, u upload.Uploader, reason string, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := u.Remove(ctx, url); err != nil {
			slog.Warn("asset_remove_failed", "reason", reason, "url", url, "error", err)
		}
	}
}

// setIfPresent copies an optional form value into an update field map.
func setIfPresent(fields map[string]any, key string, v *string) {
	if v != nil {
		fields[key] = *v
	}
}
