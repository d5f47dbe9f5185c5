package storage

import (
	"context"
	"sync"
)

// subscription delivers values to one listener, serially and in push order.
// The queue is unbounded so writers never block on slow listeners.
type subscription struct {
	id     uint64
	path   []string
	fn     Listener
	mu     sync.Mutex
	queue  []Value
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
	onStop func()
}

func newSubscription(id uint64, path []string, fn Listener) *subscription {
	return &subscription{
		id:   id,
		path: path,
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *subscription) push(v Value) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run delivers queued values until cancelled. Also stops when ctx is done.
func (s *subscription) run(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.done:
		}
	}()
	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-s.wake:
			}
			for {
				s.mu.Lock()
				if len(s.queue) == 0 {
					s.mu.Unlock()
					break
				}
				v := s.queue[0]
				s.queue = s.queue[1:]
				s.mu.Unlock()

				select {
				case <-s.done:
					return
				default:
				}
				s.fn(v)
			}
		}
	}()
}

// Cancel stops delivery. Safe to call more than once.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		if s.onStop != nil {
			s.onStop()
		}
	})
}

// notifier tracks the subscriptions of a local store.
type notifier struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscription
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[uint64]*subscription)}
}

func (n *notifier) add(path []string, fn Listener) *subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	sub := newSubscription(n.next, path, fn)
	sub.onStop = func() { n.remove(sub.id) }
	n.subs[sub.id] = sub
	return sub
}

func (n *notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// affected returns the subscriptions whose path is related to changed.
func (n *notifier) affected(changed []string) []*subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*subscription
	for _, s := range n.subs {
		if related(s.path, changed) {
			out = append(out, s)
		}
	}
	return out
}

// count returns the number of live subscriptions.
func (n *notifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// closeAll cancels every subscription.
func (n *notifier) closeAll() {
	n.mu.Lock()
	subs := make([]*subscription, 0, len(n.subs))
	for _, s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.Unlock()
	for _, s := range subs {
		s.Cancel()
	}
}
