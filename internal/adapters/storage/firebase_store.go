package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"cellule/internal/adapters/http/perf"
	"cellule/internal/domain/errs"
)

// FirebaseConfig locates a Firebase Realtime Database.
type FirebaseConfig struct {
	URL       string          // e.g. https://club-default-rtdb.firebaseio.com
	Secret    string          // legacy database secret, sent as ?auth=; empty when Client carries OAuth
	Client    *http.Client    // nil uses a client with a request timeout
	Collector *perf.Collector // optional request timing
}

// FirebaseStore implements Store over the Realtime Database REST API.
// Subscriptions use the server-sent event stream the API exposes for GET requests.
type FirebaseStore struct {
	base      string
	secret    string
	client    *http.Client
	stream    *http.Client
	collector *perf.Collector
	subs      *notifier
}

var _ Store = (*FirebaseStore)(nil)

// NewFirebaseStore builds a store for cfg.
// PRE: cfg.URL is an absolute http(s) URL
// POST: No request is made until the first operation
func NewFirebaseStore(cfg FirebaseConfig) (*FirebaseStore, error) {
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid firebase url %q", cfg.URL)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	// Streams stay open indefinitely, so they cannot share the request timeout.
	stream := &http.Client{Transport: client.Transport, Jar: client.Jar, CheckRedirect: client.CheckRedirect}
	return &FirebaseStore{
		base:      u.String(),
		secret:    cfg.Secret,
		client:    client,
		stream:    stream,
		collector: cfg.Collector,
		subs:      newNotifier(),
	}, nil
}

func (f *FirebaseStore) endpoint(path string) string {
	segs := SplitPath(path)
	escaped := make([]string, len(segs))
	for i, s := range segs {
		escaped[i] = url.PathEscape(s)
	}
	u := f.base + "/" + strings.Join(escaped, "/") + ".json"
	if f.secret != "" {
		u += "?auth=" + url.QueryEscape(f.secret)
	}
	return u
}

func (f *FirebaseStore) record(method, path string, start time.Time) {
	if f.collector == nil {
		return
	}
	root := "/"
	if segs := SplitPath(path); len(segs) > 0 {
		root = segs[0]
	}
	f.collector.Record(perf.Entry{
		Kind:       perf.KindStore,
		Path:       "firebase." + method + " " + root,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:  start,
	})
}

// do sends one REST request and returns the response body.
func (f *FirebaseStore) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.endpoint(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	f.record(method, path, start)
	if err != nil {
		return nil, errs.Connectivity(method+" "+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Connectivity(method+" "+path, err)
	}
	if resp.StatusCode >= 300 {
		return nil, statusError(method, path, resp.StatusCode, raw)
	}
	return raw, nil
}

// statusError maps a REST failure. 5xx and 429 are treated as the service being unavailable.
func statusError(method, path string, status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(status)
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if status >= 500 || status == http.StatusTooManyRequests {
		return errs.Connectivity(method+" "+path, fmt.Errorf("status %d: %s", status, msg))
	}
	return fmt.Errorf("%s %s: status %d: %s", method, path, status, msg)
}

// Read fetches the value at path.
func (f *FirebaseStore) Read(ctx context.Context, path string) (Value, error) {
	raw, err := f.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Value{}, err
	}
	return ValueOf(raw), nil
}

// Write replaces the value at path. nil deletes.
func (f *FirebaseStore) Write(ctx context.Context, path string, value any) error {
	if err := checkSegments(SplitPath(path)); err != nil {
		return err
	}
	if value == nil {
		return f.Delete(ctx, path)
	}
	_, err := f.do(ctx, http.MethodPut, path, value)
	return err
}

// Update merges fields into the value at path.
func (f *FirebaseStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := checkSegments(SplitPath(path)); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	_, err := f.do(ctx, http.MethodPatch, path, fields)
	return err
}

// Delete removes the value at path.
func (f *FirebaseStore) Delete(ctx context.Context, path string) error {
	_, err := f.do(ctx, http.MethodDelete, path, nil)
	return err
}

// Subscribe opens the event stream for path. The first "put" event carries the current value.
// PRE: ctx bounds the stream lifetime
// POST: The stream is open and authorized when err is nil
func (f *FirebaseStore) Subscribe(ctx context.Context, path string, fn Listener) (Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, f.endpoint(path), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := f.stream.Do(req)
	if err != nil {
		cancel()
		return nil, errs.Connectivity("subscribe "+path, err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, statusError("subscribe", path, resp.StatusCode, raw)
	}

	sub := f.subs.add(SplitPath(path), fn)
	detach := sub.onStop
	sub.onStop = func() {
		cancel()
		detach()
	}
	sub.run(streamCtx)

	go f.consume(streamCtx, path, resp.Body, sub)
	return sub, nil
}

// consume applies stream events to a local snapshot and pushes the result after each change.
func (f *FirebaseStore) consume(ctx context.Context, path string, body io.ReadCloser, sub *subscription) {
	defer body.Close()
	var tree any

	err := readEvents(body, func(ev sseEvent) bool {
		switch ev.name {
		case "put", "patch":
			var msg struct {
				Path string          `json:"path"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(ev.data, &msg); err != nil {
				slog.Warn("store_stream_bad_event", "path", path, "event", ev.name, "error", err)
				return true
			}
			data, err := decodeTree(msg.Data)
			if err != nil {
				slog.Warn("store_stream_bad_event", "path", path, "event", ev.name, "error", err)
				return true
			}
			if ev.name == "put" {
				tree = setAt(tree, SplitPath(msg.Path), data)
			} else if fields, ok := data.(map[string]any); ok {
				tree = mergeAt(tree, SplitPath(msg.Path), fields)
			}
			v, err := valueOfTree(tree)
			if err != nil {
				slog.Warn("store_stream_bad_event", "path", path, "error", err)
				return true
			}
			sub.push(v)
		case "keep-alive":
		case "cancel", "auth_revoked":
			slog.Warn("store_stream_revoked", "path", path, "event", ev.name, "data", string(ev.data))
			return false
		}
		return true
	})

	if ctx.Err() == nil {
		if err != nil {
			slog.Warn("store_stream_closed", "path", path, "error", err)
		} else {
			slog.Warn("store_stream_closed", "path", path)
		}
	}
	sub.Cancel()
}

// SubscriberCount returns the number of open streams.
func (f *FirebaseStore) SubscriberCount() int {
	return f.subs.count()
}

// Close cancels every open stream.
func (f *FirebaseStore) Close() error {
	f.subs.closeAll()
	f.client.CloseIdleConnections()
	return nil
}

type sseEvent struct {
	name string
	data []byte
}

// readEvents parses a text/event-stream body and calls fn per dispatched event until fn
// returns false or the body ends.
func readEvents(r io.Reader, fn func(sseEvent) bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var ev sseEvent
	var data [][]byte
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			if ev.name != "" || len(data) > 0 {
				ev.data = bytes.Join(data, []byte("\n"))
				if !fn(ev) {
					return nil
				}
			}
			ev, data = sseEvent{}, nil
			continue
		}
		if line[0] == ':' {
			continue
		}
		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "event":
			ev.name = string(value)
		case "data":
			data = append(data, append([]byte(nil), value...))
		}
	}
	return sc.Err()
}
