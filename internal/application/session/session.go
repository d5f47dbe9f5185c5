// Package session holds the admin session: the logged-in state, the live collection watchers
// started at login and the listener receiving their snapshots.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"cellule/internal/adapters/storage"
	"cellule/internal/application/orchestrators"
	"cellule/internal/domain/adminsecret"
	"cellule/internal/domain/event"
	"cellule/internal/domain/member"
	"cellule/internal/domain/registration"
)

// State is the admin session state.
type State int

const (
	LoggedOut State = iota
	LoggedIn
)

// String returns the state name used in logs.
func (s State) String() string {
	if s == LoggedIn {
		return "logged_in"
	}
	return "logged_out"
}

// Snapshot kinds, one per watched collection.
const (
	KindRegistrations = "registrations"
	KindEvents        = "events"
	KindMembers       = "members"
)

// Errors returned by Session.
var (
	ErrInvalidPassword = adminsecret.ErrWrongSecret
	ErrLoggedOut       = errors.New("session is logged out")
)

// Snapshot is the full ordered contents of one collection.
type Snapshot struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Listener receives every snapshot produced by the session's watchers.
// Calls for the same kind are serial.
type Listener func(Snapshot)

// Feed is the part of a record collection the session needs.
type Feed[T any] interface {
	List(ctx context.Context) ([]T, error)
	Watch(ctx context.Context, onChange func([]T)) (storage.Subscription, error)
}

// Deps holds the collaborators of a session.
type Deps struct {
	Store         storage.Store
	Registrations Feed[registration.Registration]
	Events        Feed[event.Event]
	Members       Feed[member.Member]
}

// Session is one admin's logged-in context. It is safe for concurrent use.
type Session struct {
	deps     Deps
	listener Listener

	mu       sync.Mutex
	state    State
	registry []storage.Subscription
	cancel   context.CancelFunc
	latest   map[string]Snapshot
	gen      uint64 // bumped on every login and logout; stale watchers are ignored
}

// New creates a logged-out session. listener may be nil.
func New(deps Deps, listener Listener) *Session {
	return &Session{deps: deps, listener: listener, latest: make(map[string]Snapshot)}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watching returns the number of live watch handles.
func (s *Session) Watching() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registry)
}

// Login checks the secret, then loads and watches the three collections.
// PRE: none
// POST: On success the session is LoggedIn with one watch per collection in the registry
// INVARIANT: A wrong secret leaves the session LoggedOut and writes nothing
func (s *Session) Login(ctx context.Context, password string) error {
	if s.State() == LoggedIn {
		return nil
	}
	if err := orchestrators.ExecuteAdminLogin(ctx, orchestrators.AdminLoginInput{Password: password},
		orchestrators.AdminLoginDeps{Store: s.deps.Store}); err != nil {
		return err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	// Watches outlive the login request, so they hang off their own context.
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := s.loadInitial(ctx, gen); err != nil {
		cancel()
		return err
	}
	handles, err := s.watchAll(watchCtx, gen)
	if err != nil {
		cancel()
		for _, h := range handles {
			h.Cancel()
		}
		return err
	}

	s.mu.Lock()
	s.state = LoggedIn
	s.registry = handles
	s.cancel = cancel
	s.mu.Unlock()
	slog.Info("session_event", "event", "logged_in", "watchers", len(handles))
	return nil
}

func (s *Session) loadInitial(ctx context.Context, gen uint64) error {
	var (
		regs    []registration.Registration
		events  []event.Event
		members []member.Member
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { regs, err = s.deps.Registrations.List(gctx); return err })
	g.Go(func() (err error) { events, err = s.deps.Events.List(gctx); return err })
	g.Go(func() (err error) { members, err = s.deps.Members.List(gctx); return err })
	if err := g.Wait(); err != nil {
		slog.Warn("session_initial_load_failed", "error", err)
		return err
	}
	s.publish(gen, Snapshot{Type: KindRegistrations, Data: regs})
	s.publish(gen, Snapshot{Type: KindEvents, Data: events})
	s.publish(gen, Snapshot{Type: KindMembers, Data: members})
	return nil
}

func (s *Session) watchAll(ctx context.Context, gen uint64) ([]storage.Subscription, error) {
	var handles []storage.Subscription
	h, err := s.deps.Registrations.Watch(ctx, func(v []registration.Registration) {
		s.publish(gen, Snapshot{Type: KindRegistrations, Data: v})
	})
	if err != nil {
		return handles, err
	}
	handles = append(handles, h)
	h, err = s.deps.Events.Watch(ctx, func(v []event.Event) {
		s.publish(gen, Snapshot{Type: KindEvents, Data: v})
	})
	if err != nil {
		return handles, err
	}
	handles = append(handles, h)
	h, err = s.deps.Members.Watch(ctx, func(v []member.Member) {
		s.publish(gen, Snapshot{Type: KindMembers, Data: v})
	})
	if err != nil {
		return handles, err
	}
	return append(handles, h), nil
}

func (s *Session) publish(gen uint64, snap Snapshot) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.latest[snap.Type] = snap
	s.mu.Unlock()
	if s.listener != nil {
		s.listener(snap)
	}
}

// Snapshots returns the latest snapshot of each collection, registrations first.
func (s *Session) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.latest))
	for _, kind := range []string{KindRegistrations, KindEvents, KindMembers} {
		if snap, ok := s.latest[kind]; ok {
			out = append(out, snap)
		}
	}
	return out
}

// Logout cancels every watch in the registry and returns to LoggedOut.
// POST: The registry is empty and no further snapshots reach the listener
func (s *Session) Logout() {
	s.mu.Lock()
	handles := s.registry
	cancel := s.cancel
	wasIn := s.state == LoggedIn
	s.registry = nil
	s.cancel = nil
	s.state = LoggedOut
	s.latest = make(map[string]Snapshot)
	s.gen++
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	if cancel != nil {
		cancel()
	}
	if wasIn {
		slog.Info("session_event", "event", "logged_out", "watchers_cancelled", len(handles))
	}
}

// ChangePassword rotates the shared admin secret.
// PRE: The session is LoggedIn
// POST: Returns ErrLoggedOut, ErrInvalidPassword or a validation error without writing
func (s *Session) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if s.State() != LoggedIn {
		return ErrLoggedOut
	}
	return orchestrators.ExecuteChangePassword(ctx, orchestrators.ChangePasswordInput{
		CurrentPassword: current,
		NewPassword:     next,
		ConfirmPassword: confirm,
	}, orchestrators.ChangePasswordDeps{Store: s.deps.Store})
}
