// Package collections exposes the club's record sets as typed views over a storage.Store.
package collections

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"cellule/internal/adapters/storage"
	"cellule/internal/adapters/upload"
	"cellule/internal/domain/errs"
)

// Record is implemented by every stored record type.
type Record[T any] interface {
	RecordID() string
	RecordTime() int64
	Validate() error
	Stamp(id string, at time.Time) T
}

// assetHolder is implemented by records that reference uploaded media.
type assetHolder interface {
	AssetURLs() []string
}

// Order is the default display order of a collection.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

// immutableFields cannot be changed through Update.
var immutableFields = map[string]bool{"id": true, "timestamp": true}

// Collection is a typed set of records stored under one child path.
type Collection[T Record[T]] struct {
	path     string
	store    storage.Store
	order    Order
	uploader upload.Uploader
	now      func() time.Time
	newID    func() (string, error)
}

// New builds a collection at path. uploader may be nil when records carry no media.
func New[T Record[T]](store storage.Store, path string, order Order, uploader upload.Uploader) *Collection[T] {
	return &Collection[T]{
		path:     path,
		store:    store,
		order:    order,
		uploader: uploader,
		now:      time.Now,
		newID:    newRecordID,
	}
}

// newRecordID returns a time-ordered UUIDv7.
func newRecordID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Path returns the store path of the collection.
func (c *Collection[T]) Path() string { return c.path }

func (c *Collection[T]) recordPath(id string) string {
	return storage.JoinPath(c.path, id)
}

// List returns every record in the collection's default order.
// POST: Absent collection yields an empty slice, never nil
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	v, err := c.store.Read(ctx, c.path)
	if err != nil {
		return nil, err
	}
	return c.decode(v)
}

func (c *Collection[T]) decode(v storage.Value) ([]T, error) {
	children, err := v.Children()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.path, err)
	}
	out := make([]T, 0, len(children))
	for key, raw := range children {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			// One malformed child must not hide the rest.
			slog.Warn("record_decode_failed", "path", c.path, "id", key, "error", err)
			continue
		}
		out = append(out, rec)
	}
	c.sort(out)
	return out, nil
}

func (c *Collection[T]) sort(recs []T) {
	sort.SliceStable(recs, func(i, j int) bool {
		ti, tj := recs[i].RecordTime(), recs[j].RecordTime()
		if ti == tj {
			return recs[i].RecordID() < recs[j].RecordID()
		}
		if c.order == NewestFirst {
			return ti > tj
		}
		return ti < tj
	})
}

// Get returns the record with id.
// POST: errs.ErrNotFound when absent
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	if id == "" {
		return rec, errs.NotFound(c.path + "/")
	}
	v, err := c.store.Read(ctx, c.recordPath(id))
	if err != nil {
		return rec, err
	}
	if !v.Exists() {
		return rec, errs.NotFound(c.recordPath(id))
	}
	if err := v.Decode(&rec); err != nil {
		return rec, fmt.Errorf("decode %s: %w", c.recordPath(id), err)
	}
	return rec, nil
}

// Create assigns an id and timestamp, validates and stores rec.
// PRE: rec carries the submitted field values
// POST: Returns the stored record; nothing is written when validation fails
func (c *Collection[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	id, err := c.newID()
	if err != nil {
		return zero, fmt.Errorf("generate id: %w", err)
	}
	stored := rec.Stamp(id, c.now())
	if err := stored.Validate(); err != nil {
		return zero, err
	}
	if err := c.store.Write(ctx, c.recordPath(id), stored); err != nil {
		return zero, err
	}
	slog.Info("record_event", "event", "created", "path", c.path, "id", id)
	return stored, nil
}

// Update merges fields (keyed by json name) into the record with id. A nil value clears the field.
// PRE: id exists
// POST: errs.ErrNotFound when absent; id and timestamp are never changed
func (c *Collection[T]) Update(ctx context.Context, id string, fields map[string]any) (T, error) {
	var zero T
	v, err := c.store.Read(ctx, c.recordPath(id))
	if err != nil {
		return zero, err
	}
	if !v.Exists() {
		return zero, errs.NotFound(c.recordPath(id))
	}
	current := make(map[string]any)
	if err := v.Decode(&current); err != nil {
		return zero, fmt.Errorf("decode %s: %w", c.recordPath(id), err)
	}
	for k, val := range fields {
		if immutableFields[k] {
			continue
		}
		if val == nil {
			delete(current, k)
		} else {
			current[k] = val
		}
	}
	raw, err := json.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", c.recordPath(id), err)
	}
	var next T
	if err := json.Unmarshal(raw, &next); err != nil {
		return zero, errs.Invalid("", "valeur invalide: "+err.Error())
	}
	if err := next.Validate(); err != nil {
		return zero, err
	}
	if err := c.store.Write(ctx, c.recordPath(id), next); err != nil {
		return zero, err
	}
	slog.Info("record_event", "event", "updated", "path", c.path, "id", id)
	return next, nil
}

// Remove deletes the record with id after a best-effort removal of its uploaded assets.
// POST: errs.ErrNotFound when absent; asset removal failures are logged, never returned
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	rec, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if holder, ok := any(rec).(assetHolder); ok && c.uploader != nil {
		for _, url := range holder.AssetURLs() {
			if url == "" {
				continue
			}
			if err := c.uploader.Remove(ctx, url); err != nil {
				slog.Warn("asset_remove_failed", "path", c.path, "id", id, "url", url, "error", err)
			}
		}
	}
	if err := c.store.Delete(ctx, c.recordPath(id)); err != nil {
		return err
	}
	slog.Info("record_event", "event", "deleted", "path", c.path, "id", id)
	return nil
}

// Watch calls onChange with a fresh List after every change under the collection path,
// starting with the current contents. Each watcher re-lists independently.
// POST: The returned subscription stops delivery when cancelled or when ctx is done
func (c *Collection[T]) Watch(ctx context.Context, onChange func([]T)) (storage.Subscription, error) {
	return c.store.Subscribe(ctx, c.path, func(storage.Value) {
		recs, err := c.List(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("watch_relist_failed", "path", c.path, "error", err)
			}
			return
		}
		onChange(recs)
	})
}
