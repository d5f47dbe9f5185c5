package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// Value is a snapshot of the data at a path, held as JSON.
type Value struct {
	raw []byte
}

// ValueOf wraps raw JSON. "null" and empty input are absent values.
func ValueOf(raw []byte) Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Value{}
	}
	return Value{raw: trimmed}
}

func valueOfTree(node any) (Value, error) {
	if node == nil {
		return Value{}, nil
	}
	raw, err := json.Marshal(node)
	if err != nil {
		return Value{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return Value{raw: raw}, nil
}

// Exists reports whether anything is stored at the path.
func (v Value) Exists() bool {
	return v.raw != nil
}

// Raw returns the JSON encoding, "null" when absent.
func (v Value) Raw() []byte {
	if v.raw == nil {
		return []byte("null")
	}
	return v.raw
}

// Decode unmarshals the value into dst. Absent values leave dst untouched.
func (v Value) Decode(dst any) error {
	if v.raw == nil {
		return nil
	}
	return json.Unmarshal(v.raw, dst)
}

// Children decodes an object value into its raw children. Absent values yield an empty map.
func (v Value) Children() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	if v.raw == nil {
		return out, nil
	}
	if err := json.Unmarshal(v.raw, &out); err != nil {
		return nil, fmt.Errorf("value is not an object: %w", err)
	}
	return out, nil
}

// String returns the value as a string when it is a JSON string.
func (v Value) String() (string, bool) {
	var s string
	if v.raw == nil || json.Unmarshal(v.raw, &s) != nil {
		return "", false
	}
	return s, true
}

// Listener receives the current value at a subscribed path.
type Listener func(Value)

// Subscription is a cancellable handle returned by Subscribe.
type Subscription interface {
	Cancel()
}

// Store is a path-addressed realtime key-value store.
// Every operation may fail with errs.ErrConnectivity.
type Store interface {
	// Read returns the current value at path; an absent value is not an error.
	Read(ctx context.Context, path string) (Value, error)
	// Write replaces the value at path. Writing nil deletes.
	Write(ctx context.Context, path string, value any) error
	// Update merges fields into the value at path. A nil field deletes that child.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the value at path and all of its children.
	Delete(ctx context.Context, path string) error
	// Subscribe calls fn with the current value, then again after every change touching path,
	// until the subscription is cancelled or ctx is done.
	Subscribe(ctx context.Context, path string, fn Listener) (Subscription, error)
	// Close releases the backend.
	Close() error
}

// Ping reads the probe node to check the store answers. Absence of the node is fine.
func Ping(ctx context.Context, s Store) error {
	_, err := s.Read(ctx, "test")
	return err
}
