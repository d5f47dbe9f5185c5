// Package live pushes collection snapshots to admin dashboards over websockets.
// Each connection belongs to one admin session token and only receives that session's snapshots.
package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"cellule/internal/application/session"
)

// Message is the frame sent to dashboards: a collection kind and its ordered records.
type Message = session.Snapshot

// ErrStopped is returned by Serve once the hub has stopped.
var ErrStopped = errors.New("live hub stopped")

type outgoing struct {
	token string
	msg   Message
}

// Hub tracks connected dashboards and fans snapshots out to them.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	publish    chan outgoing
	kick       chan string
	done       chan struct{}
	stopOnce   sync.Once

	mu      sync.RWMutex
	clients map[*Client]bool

	upgrader websocket.Upgrader
	onCount  func(int)
}

// NewHub creates a hub. onCount, when set, is called with the client count after each change.
func NewHub(onCount func(int)) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan outgoing, 256),
		kick:       make(chan string, 16),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		onCount: onCount,
	}
}

// Run processes registrations and snapshots until ctx is done, then closes every client.
// Lifecycle events are handled before snapshots so a new client never misses one published after it registered.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return h.stop(ctx)
		default:
		}

		select {
		case c := <-h.register:
			h.add(c)
			continue
		case c := <-h.unregister:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return h.stop(ctx)
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case token := <-h.kick:
			h.disconnect(token)
		case out := <-h.publish:
			h.deliver(out)
		}
	}
}

func (h *Hub) stop(ctx context.Context) error {
	n := h.closeAll()
	h.stopOnce.Do(func() { close(h.done) })
	slog.Info("live_hub_stopped", "clients_closed", n)
	return ctx.Err()
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("live_event", "event", "client_connected", "clients", n)
	h.count(n)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("live_event", "event", "client_disconnected", "clients", n)
	h.count(n)
}

func (h *Hub) disconnect(token string) {
	h.mu.Lock()
	for c := range h.clients {
		if c.token == token {
			delete(h.clients, c)
			close(c.send)
		}
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.count(n)
}

func (h *Hub) deliver(out outgoing) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.token != out.token {
			continue
		}
		select {
		case c.send <- out.msg:
		default:
			// A client that cannot keep up is dropped; it reconnects and gets fresh snapshots.
			delete(h.clients, c)
			close(c.send)
			slog.Warn("live_client_dropped", "reason", "send buffer full")
		}
	}
}

func (h *Hub) closeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.clients)
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.count(0)
	return n
}

func (h *Hub) count(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues a snapshot for the dashboards of token. Its signature matches session.TokenListener.
func (h *Hub) Publish(token string, snap session.Snapshot) {
	select {
	case h.publish <- outgoing{token: token, msg: snap}:
	default:
		slog.Warn("live_publish_dropped", "type", snap.Type)
	}
}

// Disconnect closes every dashboard of token, used on logout.
func (h *Hub) Disconnect(token string) {
	select {
	case h.kick <- token:
	default:
		slog.Warn("live_disconnect_dropped")
	}
}

// Serve upgrades the request and streams snapshots of token, starting with initial.
// PRE: The caller has authenticated token
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, token string, initial []session.Snapshot) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := newClient(h, conn, token)
	for _, snap := range initial {
		c.send <- snap
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return ErrStopped
	}
	c.start()
	return nil
}
