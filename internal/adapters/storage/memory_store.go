package storage

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
)

// memoryDocs keeps encoded documents in a map. Documents are stored as JSON so callers
// never share mutable trees with the backend.
type memoryDocs struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty in-process Store. Used for development and tests.
func NewMemoryStore() Store {
	return newLocalStore(&memoryDocs{data: make(map[string][]byte)})
}

func (m *memoryDocs) load(_ context.Context, key string) (any, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeTree(raw)
}

func (m *memoryDocs) save(_ context.Context, key string, doc any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc == nil {
		delete(m.data, key)
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memoryDocs) keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	return out, nil
}

func (m *memoryDocs) close() error { return nil }
