package prefs

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	hub
	mu     sync.Mutex
	data   map[string]json.RawMessage
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]json.RawMessage)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, keys ...string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return pick(m.data, keys), nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, values map[string]any) error {
	enc, err := encodeValues(values)
	if err != nil {
		return err
	}
	return m.apply(enc)
}

// Remove implements Store.
func (m *MemoryStore) Remove(_ context.Context, keys ...string) error {
	next := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		next[k] = nil
	}
	return m.apply(next)
}

func (m *MemoryStore) apply(next map[string]json.RawMessage) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	cs := diff(m.data, next)
	for k, c := range cs {
		if c.New == nil {
			delete(m.data, k)
		} else {
			m.data[k] = c.New
		}
	}
	m.notify.Lock()
	m.mu.Unlock()
	defer m.notify.Unlock()
	m.publish(cs)
	return nil
}

// Subscribe implements Store.
func (m *MemoryStore) Subscribe(fn func(ChangeSet)) func() { return m.subscribe(fn) }

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func pick(data map[string]json.RawMessage, keys []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	if len(keys) == 0 {
		for k, v := range data {
			out[k] = v
		}
		return out
	}
	for _, k := range keys {
		if v, ok := data[k]; ok {
			out[k] = v
		}
	}
	return out
}
