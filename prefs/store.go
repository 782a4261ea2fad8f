package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrClosed is returned by a Store after Close.
var ErrClosed = errors.New("prefs: store closed")

// Change is the old and new value of one key. A nil New means the key was
// removed; a nil Old means it was created.
type Change struct {
	Old json.RawMessage
	New json.RawMessage
}

// ChangeSet maps changed keys to their change.
type ChangeSet map[string]Change

// Has reports whether key changed.
func (c ChangeSet) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Keys returns the changed keys sorted.
func (c ChangeSet) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// Store persists preference values and broadcasts their changes.
//
// Subscribers are invoked synchronously by the goroutine that made (or
// detected) the change, one ChangeSet at a time and in commit order. They
// must not block; page sessions hand the change to their own loop.
type Store interface {
	// Get returns the stored values for keys; absent keys are omitted.
	// No keys means every key.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	// Set stores each value as JSON.
	Set(ctx context.Context, values map[string]any) error
	// Remove deletes keys.
	Remove(ctx context.Context, keys ...string) error
	// Subscribe registers fn and returns a function that unregisters it.
	Subscribe(fn func(ChangeSet)) (cancel func())
	Close() error
}

// Load reads every key and decodes it.
func Load(ctx context.Context, s Store) (Preferences, error) {
	raw, err := s.Get(ctx)
	if err != nil {
		return Preferences{}, err
	}
	return Decode(raw), nil
}

// encodeValues marshals every value of a Set call.
func encodeValues(values map[string]any) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		if raw, ok := v.(json.RawMessage); ok {
			out[k] = raw
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("prefs: encode %s: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}

// diff compares current with next for the given keys. Only keys whose JSON
// actually differs are reported. A nil value in next means removal.
func diff(current, next map[string]json.RawMessage) ChangeSet {
	cs := ChangeSet{}
	for k, nv := range next {
		ov, had := current[k]
		switch {
		case nv == nil && !had:
		case nv == nil:
			cs[k] = Change{Old: ov}
		case !had:
			cs[k] = Change{New: nv}
		case !jsonEqual(ov, nv):
			cs[k] = Change{Old: ov, New: nv}
		}
	}
	return cs
}

func jsonEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

// hub fans change sets out to subscribers in order.
type hub struct {
	mu     sync.Mutex
	notify sync.Mutex
	next   int
	subs   map[int]func(ChangeSet)
}

func (h *hub) subscribe(fn func(ChangeSet)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func(ChangeSet))
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (h *hub) publish(cs ChangeSet) {
	if len(cs) == 0 {
		return
	}
	h.mu.Lock()
	ids := slices.Sorted(maps.Keys(h.subs))
	fns := make([]func(ChangeSet), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(cs)
	}
}
