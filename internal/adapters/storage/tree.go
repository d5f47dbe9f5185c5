package storage

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// SplitPath turns "registrations/123/" into ["registrations", "123"]. The root is an empty slice.
func SplitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// JoinPath is the inverse of SplitPath.
func JoinPath(segs ...string) string {
	return strings.Join(SplitPath(strings.Join(segs, "/")), "/")
}

// checkSegments rejects keys the realtime database refuses.
func checkSegments(segs []string) error {
	for _, s := range segs {
		if strings.ContainsAny(s, ".#$[]") {
			return fmt.Errorf("invalid path segment %q", s)
		}
	}
	return nil
}

// normalize converts an arbitrary Go value (structs included) into the generic JSON tree form:
// map[string]any, []any, string, float64, bool or nil.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return decodeTree(raw)
}

func decodeTree(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return prune(out), nil
}

// getAt returns the subtree at segs.
func getAt(node any, segs []string) any {
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[s]
	}
	return node
}

// setAt replaces the subtree at segs and returns the new root. A nil value deletes.
// Empty objects left behind are removed, matching realtime database semantics.
func setAt(node any, segs []string, value any) any {
	if len(segs) == 0 {
		return prune(value)
	}
	m, ok := node.(map[string]any)
	if !ok {
		if value == nil {
			return node
		}
		m = make(map[string]any)
	}
	child := setAt(m[segs[0]], segs[1:], value)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// mergeAt applies each field below segs. Field keys may themselves be slash paths.
func mergeAt(node any, segs []string, fields map[string]any) any {
	for k, v := range fields {
		full := append(append([]string{}, segs...), SplitPath(k)...)
		node = setAt(node, full, v)
	}
	return node
}

// prune drops empty objects and nil children recursively.
func prune(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		if c := prune(child); c == nil {
			delete(m, k)
		} else {
			m[k] = c
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// related reports whether a change at changed affects a subscriber at watched:
// one path is a prefix of the other.
func related(watched, changed []string) bool {
	n := len(watched)
	if len(changed) < n {
		n = len(changed)
	}
	for i := 0; i < n; i++ {
		if watched[i] != changed[i] {
			return false
		}
	}
	return true
}
