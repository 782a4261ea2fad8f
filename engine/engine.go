// Package engine opens pages for swissutil: it acquires the HTML over HTTP
// or through Chrome, builds the in-memory page on its own loop, and wires
// the page session, the background and the main world together.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/swissutil/background"
	"github.com/hazyhaar/swissutil/browser"
	"github.com/hazyhaar/swissutil/fetcher"
	"github.com/hazyhaar/swissutil/message"
	"github.com/hazyhaar/swissutil/prefs"
	"github.com/hazyhaar/swissutil/reader"
)

// ErrNoBrowser is returned when a page needs Chrome and none is configured.
var ErrNoBrowser = errors.New("engine: no browser configured")

// Acquire selects how a page is loaded.
type Acquire int

const (
	// Auto fetches over HTTP and escalates to Chrome when the HTML is a
	// script-rendered shell.
	Auto Acquire = iota
	// HTTP never starts Chrome.
	HTTP
	// Browser always loads the page in Chrome.
	Browser
)

// ParseAcquire accepts "auto", "http" or "browser".
func ParseAcquire(s string) (Acquire, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "http":
		return HTTP, nil
	case "browser", "chrome":
		return Browser, nil
	}
	return Auto, fmt.Errorf("engine: unknown acquisition mode %q", s)
}

// Config wires an Engine.
type Config struct {
	Store   prefs.Store
	Fetcher *fetcher.Fetcher
	// Browser enables Chrome acquisition and live pages. Nil disables both.
	Browser *browser.Manager

	Reader    reader.Config
	SaveDelay time.Duration
	// MirrorDebounce is the quiet period of live pages. Default: 250ms.
	MirrorDebounce time.Duration
	Logger         *slog.Logger
}

func (c *Config) defaults() {
	if c.Store == nil {
		c.Store = prefs.NewMemoryStore()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Fetcher == nil {
		c.Fetcher = fetcher.New(fetcher.WithLogger(c.Logger))
	}
	if c.MirrorDebounce <= 0 {
		c.MirrorDebounce = 250 * time.Millisecond
	}
}

// Engine is the background process shared by every open page.
type Engine struct {
	cfg Config
	rt  *message.Runtime
	bg  *background.Service
	log *slog.Logger
}

// New creates an Engine.
func New(cfg Config) *Engine {
	cfg.defaults()
	rt := message.NewRuntime()
	return &Engine{
		cfg: cfg,
		rt:  rt,
		bg:  background.New(rt, cfg.Store, cfg.Logger),
		log: cfg.Logger,
	}
}

// Install writes the install defaults if the store is new.
func (e *Engine) Install(ctx context.Context) error {
	return e.bg.Install(ctx)
}

// Store returns the preference store.
func (e *Engine) Store() prefs.Store { return e.cfg.Store }

// Background returns the background service.
func (e *Engine) Background() *background.Service { return e.bg }

// Runtime returns the message runtime.
func (e *Engine) Runtime() *message.Runtime { return e.rt }

// TogglePanel is the toolbar action for p.
func (e *Engine) TogglePanel(p *Page) error {
	return e.bg.ActionClicked(p.tabID)
}

// Close shuts the runtime down. Open pages must be closed first.
func (e *Engine) Close() error {
	e.rt.Invalidate()
	if e.cfg.Browser != nil {
		return e.cfg.Browser.Close()
	}
	return nil
}
