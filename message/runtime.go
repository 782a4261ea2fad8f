package message

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrContextInvalidated is returned once the runtime has been torn
	// down under a still-running page.
	ErrContextInvalidated = errors.New("message: extension context invalidated")
	// ErrNoHandler is returned when nobody receives the message.
	ErrNoHandler = errors.New("message: no handler")
)

// Sender identifies the page a message came from.
type Sender struct {
	TabID string
	URL   string
}

// Handler processes a message sent by a page.
type Handler func(ctx context.Context, m Message, from Sender) (Response, error)

// TabReceiver processes a message sent to a page.
type TabReceiver func(m Message) Response

// Runtime connects page sessions to the background. It is safe for
// concurrent use.
type Runtime struct {
	invalid atomic.Bool

	mu      sync.RWMutex
	handler Handler
	tabs    map[string]TabReceiver
}

// NewRuntime creates a valid runtime without a background handler.
func NewRuntime() *Runtime {
	return &Runtime{tabs: make(map[string]TabReceiver)}
}

// Valid reports whether the runtime can still be used.
func (r *Runtime) Valid() bool { return !r.invalid.Load() }

// Invalidate tears the runtime down. Every later Send fails with
// ErrContextInvalidated.
func (r *Runtime) Invalidate() { r.invalid.Store(true) }

// SetHandler installs the background handler.
func (r *Runtime) SetHandler(h Handler) {
	r.mu.Lock()
	r.handler = h
	r.mu.Unlock()
}

// Send delivers m from a page to the background.
func (r *Runtime) Send(ctx context.Context, from Sender, m Message) (Response, error) {
	if !r.Valid() {
		return Response{}, ErrContextInvalidated
	}
	r.mu.RLock()
	h := r.handler
	r.mu.RUnlock()
	if h == nil {
		return Response{}, ErrNoHandler
	}
	resp, err := h(ctx, m, from)
	if err != nil {
		return resp, fmt.Errorf("message: send %s: %w", m.Type(), err)
	}
	return resp, nil
}

// RegisterTab makes a page reachable through SendToTab. The returned
// function unregisters it.
func (r *Runtime) RegisterTab(tabID string, recv TabReceiver) func() {
	r.mu.Lock()
	r.tabs[tabID] = recv
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.tabs, tabID)
		r.mu.Unlock()
	}
}

// SendToTab delivers m from the background to a page.
func (r *Runtime) SendToTab(tabID string, m Message) (Response, error) {
	if !r.Valid() {
		return Response{}, ErrContextInvalidated
	}
	r.mu.RLock()
	recv, ok := r.tabs[tabID]
	r.mu.RUnlock()
	if !ok {
		return Response{}, fmt.Errorf("%w: tab %s", ErrNoHandler, tabID)
	}
	return recv(m), nil
}

// Tabs lists the registered tab ids.
func (r *Runtime) Tabs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tabs))
	for id := range r.tabs {
		out = append(out, id)
	}
	return out
}
