// Package background is the privileged side of swissutil. It writes the
// install defaults, answers page messages and runs custom scripts in a
// page's main world.
package background

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hazyhaar/swissutil/message"
	"github.com/hazyhaar/swissutil/prefs"
)

// World runs code in a page's main world.
type World interface {
	// Execute starts code and must not block. done reports whether the
	// script loaded and ran; a policy refusal and a thrown error are both
	// false.
	Execute(code string, done func(ok bool))
}

// Tab is a page the background can reach.
type Tab struct {
	ID        string
	World     World
	Broadcast *message.Broadcast
}

// Service handles the background side of the runtime.
type Service struct {
	rt    *message.Runtime
	store prefs.Store
	log   *slog.Logger

	mu   sync.RWMutex
	tabs map[string]Tab
}

// New creates a Service and installs it as rt's handler.
func New(rt *message.Runtime, store prefs.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{rt: rt, store: store, log: logger, tabs: make(map[string]Tab)}
	rt.SetHandler(s.Handle)
	return s
}

// Install writes the default preferences when the store is new.
func (s *Service) Install(ctx context.Context) error {
	wrote, err := prefs.Install(ctx, s.store)
	if err != nil {
		return fmt.Errorf("background: install: %w", err)
	}
	if wrote {
		s.log.Info("background: installed defaults")
	}
	return nil
}

// AttachTab makes t's main world available. The returned function
// detaches it.
func (s *Service) AttachTab(t Tab) func() {
	s.mu.Lock()
	s.tabs[t.ID] = t
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.tabs, t.ID)
		s.mu.Unlock()
	}
}

func (s *Service) tab(id string) (Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[id]
	return t, ok
}

// Handle answers a page message.
func (s *Service) Handle(_ context.Context, m message.Message, from message.Sender) (message.Response, error) {
	switch msg := m.(type) {
	case message.ContentReady:
		s.log.Info("background: content script ready", "tab", from.TabID, "url", msg.URL)
		return message.Response{OK: true}, nil
	case message.ApplyCustomJS:
		return s.applyCustomJS(msg, from), nil
	case message.TogglePanel, message.CustomJSResult:
	}
	return message.Response{OK: false}, nil
}

func (s *Service) applyCustomJS(msg message.ApplyCustomJS, from message.Sender) message.Response {
	t, ok := s.tab(from.TabID)
	if !ok || t.World == nil || strings.TrimSpace(msg.Code) == "" {
		s.log.Debug("background: custom script refused", "tab", from.TabID, "known_tab", ok)
		return message.Response{OK: false}
	}
	job := msg.JobID
	t.World.Execute(msg.Code, func(ok bool) {
		s.log.Info("background: custom script finished", "tab", t.ID, "job", job, "ok", ok)
		if t.Broadcast != nil {
			t.Broadcast.Post(message.CustomJSResult{Source: message.Source, JobID: job, OK: ok})
		}
	})
	return message.Response{OK: true}
}

// ActionClicked is the toolbar action: it asks the tab to toggle its
// panel.
func (s *Service) ActionClicked(tabID string) error {
	resp, err := s.rt.SendToTab(tabID, message.TogglePanel{})
	if err != nil {
		return fmt.Errorf("background: toggle panel: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("background: toggle panel: tab %s refused", tabID)
	}
	return nil
}
