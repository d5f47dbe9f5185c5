// Package upload sends media to a hosting service and returns public URLs.
package upload

import (
	"context"
	"io"
	"sync"
	"time"
)

// Kind selects the hosting service's resource family.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// File is a payload to upload. Size may be 0 when unknown; progress is then only reported at the end.
type File struct {
	Name        string
	ContentType string
	Kind        Kind
	Size        int64
	Body        io.Reader
}

// Progress receives the completed percentage, 0 to 100, never decreasing.
type Progress func(percent int)

// Uploader stores media and removes it by URL.
type Uploader interface {
	// Upload stores f and returns its public URL. Failures are *errs.UploadError.
	Upload(ctx context.Context, f File, onProgress Progress) (string, error)
	// Remove deletes the asset behind url. Callers treat failures as best-effort.
	Remove(ctx context.Context, url string) error
}

// progressReader reports read progress against a known total.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	mu     sync.Mutex
	onStep Progress
}

func newProgressReader(r io.Reader, total int64, fn Progress) *progressReader {
	return &progressReader{r: r, total: total, last: -1, onStep: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 && p.onStep != nil {
		p.mu.Lock()
		p.read += int64(n)
		pct := int(p.read * 100 / p.total)
		if pct > 99 {
			// 100 is reserved for a confirmed upload.
			pct = 99
		}
		report := pct > p.last
		if report {
			p.last = pct
		}
		p.mu.Unlock()
		if report {
			p.onStep(pct)
		}
	}
	return n, err
}

// Observer receives the outcome of each upload operation.
type Observer func(op string, elapsed time.Duration, err error)

// Instrument wraps u so each Upload and Remove is reported to observe.
func Instrument(u Uploader, observe Observer) Uploader {
	if observe == nil {
		return u
	}
	return &instrumented{next: u, observe: observe}
}

type instrumented struct {
	next    Uploader
	observe Observer
}

func (i *instrumented) Upload(ctx context.Context, f File, onProgress Progress) (string, error) {
	start := time.Now()
	url, err := i.next.Upload(ctx, f, onProgress)
	i.observe("upload", time.Since(start), err)
	return url, err
}

func (i *instrumented) Remove(ctx context.Context, url string) error {
	start := time.Now()
	err := i.next.Remove(ctx, url)
	i.observe("remove", time.Since(start), err)
	return err
}
