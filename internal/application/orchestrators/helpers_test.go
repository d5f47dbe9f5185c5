package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"

	"cellule/internal/adapters/email"
	"cellule/internal/adapters/upload"
)

// mockUploader records uploads and removals.
type mockUploader struct {
	mu        sync.Mutex
	uploads   []upload.File
	removed   []string
	failKind  upload.Kind
	removeErr error
}

func (m *mockUploader) Upload(_ context.Context, f upload.File, onProgress upload.Progress) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.Kind == m.failKind {
		return "", errors.New("upload rejected")
	}
	io.Copy(io.Discard, f.Body)
	m.uploads = append(m.uploads, f)
	if onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	return fmt.Sprintf("https://cdn.example/%s/%d", f.Kind, len(m.uploads)), nil
}

func (m *mockUploader) Remove(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, url)
	return m.removeErr
}

// mockSender records sent emails.
type mockSender struct {
	sent []email.Message
	err  error
}

func (m *mockSender) Send(_ context.Context, msg email.Message) (email.Receipt, error) {
	m.sent = append(m.sent, msg)
	return email.Receipt{ID: "m1"}, m.err
}

// testImage returns PNG bytes of the given size.
func testImage(t *testing.T, w, h int) *ImageInput {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return &ImageInput{Name: "photo.png", Body: &buf}
}

func bytesReader(s string) io.Reader { return bytes.NewReader([]byte(s)) }
