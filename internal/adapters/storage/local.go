package storage

import (
	"context"
	"errors"
	"sync"

	"cellule/internal/domain/errs"
)

// documents persists one JSON document per root child ("registrations", "events", ...).
type documents interface {
	load(ctx context.Context, key string) (any, error)
	save(ctx context.Context, key string, doc any) error // nil doc deletes
	keys(ctx context.Context) ([]string, error)
	close() error
}

// localStore implements Store over a documents backend and an in-process notifier.
// Writes and the notifications they cause are serialized by mu, so every subscriber
// observes changes in write order.
type localStore struct {
	mu     sync.Mutex
	docs   documents
	notify *notifier
	closed bool
}

var errClosed = errs.Connectivity("store", errors.New("store is closed"))

func newLocalStore(docs documents) *localStore {
	return &localStore{docs: docs, notify: newNotifier()}
}

// snapshot reads the subtree at segs. Caller holds mu.
func (s *localStore) snapshot(ctx context.Context, segs []string) (any, error) {
	if len(segs) == 0 {
		keys, err := s.docs.keys(ctx)
		if err != nil {
			return nil, err
		}
		root := make(map[string]any, len(keys))
		for _, k := range keys {
			doc, err := s.docs.load(ctx, k)
			if err != nil {
				return nil, err
			}
			if doc != nil {
				root[k] = doc
			}
		}
		if len(root) == 0 {
			return nil, nil
		}
		return root, nil
	}
	doc, err := s.docs.load(ctx, segs[0])
	if err != nil {
		return nil, err
	}
	return getAt(doc, segs[1:]), nil
}

// Read returns the value at path.
// PRE: path uses '/' separators
// POST: Returns an absent Value when nothing is stored
func (s *localStore) Read(ctx context.Context, path string) (Value, error) {
	segs := SplitPath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Value{}, errClosed
	}
	node, err := s.snapshot(ctx, segs)
	if err != nil {
		return Value{}, err
	}
	return valueOfTree(node)
}

// Write replaces the value at path and notifies related subscribers.
func (s *localStore) Write(ctx context.Context, path string, value any) error {
	segs := SplitPath(path)
	if err := checkSegments(segs); err != nil {
		return err
	}
	node, err := normalize(value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, segs, func(doc any, rest []string) any {
		return setAt(doc, rest, node)
	}, node)
}

// Update merges fields into the value at path and notifies related subscribers.
func (s *localStore) Update(ctx context.Context, path string, fields map[string]any) error {
	segs := SplitPath(path)
	if err := checkSegments(segs); err != nil {
		return err
	}
	normalized := make(map[string]any, len(fields))
	for k, v := range fields {
		if err := checkSegments(SplitPath(k)); err != nil {
			return err
		}
		n, err := normalize(v)
		if err != nil {
			return err
		}
		normalized[k] = n
	}
	if len(segs) == 0 {
		// Root updates may span several documents.
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return errClosed
		}
		for k, v := range normalized {
			sub := SplitPath(k)
			if len(sub) == 0 {
				continue
			}
			doc, err := s.docs.load(ctx, sub[0])
			if err != nil {
				return err
			}
			if err := s.docs.save(ctx, sub[0], setAt(doc, sub[1:], v)); err != nil {
				return err
			}
		}
		return s.publishLocked(ctx, nil)
	}
	return s.mutate(ctx, segs, func(doc any, rest []string) any {
		return mergeAt(doc, rest, normalized)
	}, nil)
}

// Delete removes the value at path and its children.
func (s *localStore) Delete(ctx context.Context, path string) error {
	segs := SplitPath(path)
	return s.mutate(ctx, segs, func(doc any, rest []string) any {
		return setAt(doc, rest, nil)
	}, nil)
}

// mutate applies fn to the document owning segs, persists it and publishes the change.
// rootValue is the replacement for a root-level Write.
func (s *localStore) mutate(ctx context.Context, segs []string, fn func(doc any, rest []string) any, rootValue any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	if len(segs) == 0 {
		keys, err := s.docs.keys(ctx)
		if err != nil {
			return err
		}
		next, _ := fn(nil, nil).(map[string]any)
		if rootValue == nil {
			next = nil
		}
		for _, k := range keys {
			if _, keep := next[k]; !keep {
				if err := s.docs.save(ctx, k, nil); err != nil {
					return err
				}
			}
		}
		for k, v := range next {
			if err := s.docs.save(ctx, k, v); err != nil {
				return err
			}
		}
		return s.publishLocked(ctx, segs)
	}

	doc, err := s.docs.load(ctx, segs[0])
	if err != nil {
		return err
	}
	if err := s.docs.save(ctx, segs[0], fn(doc, segs[1:])); err != nil {
		return err
	}
	return s.publishLocked(ctx, segs)
}

// publishLocked pushes fresh snapshots to every subscriber related to changed. Caller holds mu.
func (s *localStore) publishLocked(ctx context.Context, changed []string) error {
	for _, sub := range s.notify.affected(changed) {
		node, err := s.snapshot(ctx, sub.path)
		if err != nil {
			return err
		}
		v, err := valueOfTree(node)
		if err != nil {
			return err
		}
		sub.push(v)
	}
	return nil
}

// Subscribe registers fn on path and delivers the current value first.
func (s *localStore) Subscribe(ctx context.Context, path string, fn Listener) (Subscription, error) {
	segs := SplitPath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	node, err := s.snapshot(ctx, segs)
	if err != nil {
		return nil, err
	}
	v, err := valueOfTree(node)
	if err != nil {
		return nil, err
	}
	sub := s.notify.add(segs, fn)
	sub.push(v)
	sub.run(ctx)
	return sub, nil
}

// SubscriberCount returns the number of live subscriptions.
func (s *localStore) SubscriberCount() int {
	return s.notify.count()
}

// Close cancels subscriptions and closes the backend.
func (s *localStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.notify.closeAll()
	return s.docs.close()
}
