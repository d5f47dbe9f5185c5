package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"cellule/internal/adapters/storage"
	"cellule/internal/application/collections"
)

// DefaultTTL is how long an admin session stays valid after login.
const DefaultTTL = 24 * time.Hour

// DepsFor wires a session to the site's collections.
func DepsFor(store storage.Store, set collections.Set) Deps {
	return Deps{Store: store, Registrations: set.Registrations, Events: set.Events, Members: set.Members}
}

// TokenListener receives the snapshots of the session identified by token.
type TokenListener func(token string, snap Snapshot)

type entry struct {
	session   *Session
	createdAt time.Time
}

// Manager keeps one Session per admin cookie token.
type Manager struct {
	deps     Deps
	listener TokenListener
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]entry
	onExpire func(token string)
}

// NewManager creates a manager. listener may be nil; ttl <= 0 uses DefaultTTL.
func NewManager(deps Deps, listener TokenListener, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{deps: deps, listener: listener, ttl: ttl, now: time.Now, sessions: make(map[string]entry)}
}

// Login opens a new session and returns its token.
// PRE: none
// POST: On success the returned token maps to a LoggedIn session
// INVARIANT: Nothing is stored when the secret is wrong
func (m *Manager) Login(ctx context.Context, password string) (string, *Session, error) {
	token, err := generateToken()
	if err != nil {
		return "", nil, err
	}
	var listener Listener
	if m.listener != nil {
		listener = func(snap Snapshot) { m.listener(token, snap) }
	}
	sess := New(m.deps, listener)
	if err := sess.Login(ctx, password); err != nil {
		return "", nil, err
	}
	m.mu.Lock()
	m.sessions[token] = entry{session: sess, createdAt: m.now()}
	m.mu.Unlock()
	return token, sess, nil
}

// Get returns the live session for token.
// POST: Expired sessions are logged out and forgotten
func (m *Manager) Get(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	m.mu.RLock()
	e, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.expired(e, m.now()) {
		m.expire(token)
		return nil, false
	}
	return e.session, true
}

// OnExpire registers fn to be called with each token the manager expires.
// Used to drop live connections still attached to the token.
func (m *Manager) OnExpire(fn func(token string)) {
	m.mu.Lock()
	m.onExpire = fn
	m.mu.Unlock()
}

// Prune logs out every session older than the TTL at now and returns how many it removed.
// POST: No expired session keeps a watcher registered on the store
func (m *Manager) Prune(now time.Time) int {
	m.mu.RLock()
	var stale []string
	for token, e := range m.sessions {
		if m.expired(e, now) {
			stale = append(stale, token)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, token := range stale {
		if m.expire(token) {
			n++
		}
	}
	return n
}

// Run prunes expired sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.pruneInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := m.Prune(m.now()); n > 0 {
				slog.Info("session_event", "event", "pruned", "count", n, "open", m.Count())
			}
		}
	}
}

func (m *Manager) pruneInterval() time.Duration {
	d := m.ttl / 2
	if d > time.Minute {
		d = time.Minute
	}
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	return d
}

func (m *Manager) expired(e entry, now time.Time) bool {
	return now.Sub(e.createdAt) > m.ttl
}

// expire removes token and tears its session down. It reports false when another caller got there first.
func (m *Manager) expire(token string) bool {
	m.mu.Lock()
	e, ok := m.sessions[token]
	delete(m.sessions, token)
	hook := m.onExpire
	m.mu.Unlock()
	if !ok {
		return false
	}
	e.session.Logout()
	slog.Info("session_event", "event", "expired")
	if hook != nil {
		hook(token)
	}
	return true
}

// Logout ends the session for token. Unknown tokens are ignored.
func (m *Manager) Logout(token string) {
	m.mu.Lock()
	e, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()
	if ok {
		e.session.Logout()
	}
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close logs every session out.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]entry)
	m.mu.Unlock()
	for _, e := range all {
		e.session.Logout()
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
