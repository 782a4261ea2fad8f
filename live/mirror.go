// Package live mirrors a Chrome tab into an in-memory page.
//
// An injected MutationObserver sends the tab's body, debounced, through a
// CDP binding. Each payload replaces the body of the in-memory document on
// its loop, so utilities observing that document (the reader's
// auto-rebuild) react to the real page as it changes. Elements the
// in-memory page owns, such as the reader container and the panel host,
// survive replacement.
package live

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/swissutil/dom"
)

//go:embed mirror.js
var mirrorJS string

// BindingName is the CDP binding the injected script calls.
const BindingName = "__swissutil_live"

// Update is one body snapshot sent by the tab.
type Update struct {
	Seq   uint64 `json:"seq"`
	URL   string `json:"url"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// Config configures a Mirror.
type Config struct {
	// Debounce is the quiet period the tab waits before sending. Default: 250ms.
	Debounce time.Duration
	// Keep lists ids of body children that are never replaced.
	Keep   []string
	Logger *slog.Logger
	// OnUpdate is called on the loop after each applied update.
	OnUpdate func(Update)
}

func (c *Config) defaults() {
	if c.Debounce <= 0 {
		c.Debounce = 250 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Mirror replays one tab's body into doc.
type Mirror struct {
	page *rod.Page
	doc  *dom.Document
	cfg  Config

	mu      sync.Mutex
	lastSeq uint64
	cancel  context.CancelFunc
}

// New creates a Mirror. page may be nil when updates are fed through
// Receive only.
func New(page *rod.Page, doc *dom.Document, cfg Config) *Mirror {
	cfg.defaults()
	return &Mirror{page: page, doc: doc, cfg: cfg}
}

// Start installs the binding and the observer script, then listens until
// ctx is cancelled or Stop is called.
func (m *Mirror) Start(ctx context.Context) error {
	if m.page == nil {
		return fmt.Errorf("live: no page")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(m.page); err != nil {
		m.cfg.Logger.Warn("live: addBinding failed (may already exist)", "error", err)
	}

	wait := m.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != BindingName {
			return
		}
		if err := m.Receive(e.Payload); err != nil {
			m.cfg.Logger.Warn("live: payload", "error", err)
		}
	})
	go wait()

	if _, err := m.page.Context(ctx).Eval(mirrorJS, m.cfg.Debounce.Milliseconds()); err != nil {
		cancel()
		return fmt.Errorf("live: inject mirror.js: %w", err)
	}
	m.cfg.Logger.Debug("live: mirroring", "url", m.doc.URL())
	return nil
}

// Stop stops listening. Updates already posted still apply.
func (m *Mirror) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Receive decodes a binding payload and posts it to the page loop. Stale
// and duplicate sequence numbers are dropped. Safe from any goroutine.
func (m *Mirror) Receive(payload string) error {
	var u Update
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return fmt.Errorf("live: decode: %w", err)
	}
	m.mu.Lock()
	if u.Seq != 0 && u.Seq <= m.lastSeq {
		m.mu.Unlock()
		return nil
	}
	m.lastSeq = u.Seq
	m.mu.Unlock()

	m.doc.Scheduler().Post(func() { m.apply(u) })
	return nil
}

// apply runs on the loop.
func (m *Mirror) apply(u Update) {
	body := m.doc.Body()
	if body == nil {
		return
	}
	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(u.HTML), ctxNode)
	if err != nil {
		m.cfg.Logger.Warn("live: parse body", "error", err)
		return
	}

	var first *html.Node
	for c := body.FirstChild; c != nil; {
		next := c.NextSibling
		if m.kept(c) {
			if first == nil {
				first = c
			}
		} else {
			m.doc.Remove(c)
		}
		c = next
	}
	for _, n := range nodes {
		if m.kept(n) {
			continue
		}
		m.doc.InsertBefore(body, n, first)
	}

	m.cfg.Logger.Debug("live: body replaced", "url", u.URL, "seq", u.Seq, "nodes", len(nodes))
	if m.cfg.OnUpdate != nil {
		m.cfg.OnUpdate(u)
	}
}

func (m *Mirror) kept(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	id := dom.Attr(n, "id")
	for _, k := range m.cfg.Keep {
		if id == k {
			return true
		}
	}
	return false
}
