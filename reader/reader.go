// Package reader turns a page into a simplified reading view.
//
// The view is a container appended to the body holding a cleaned clone of
// the page's main content. The source element is picked by a fixed
// heuristic: the longest match of a small selector list, provided it has
// enough rendered text. While the view is on, an observer rebuilds it after
// the page changes, debounced and rate limited.
package reader

import (
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/swissutil/dom"
	"github.com/hazyhaar/swissutil/loop"
	"github.com/hazyhaar/swissutil/prefs"
)

const (
	ContainerID = "swiss-utility-reader"
	StyleID     = "swiss-utility-reading-style"

	ClassReadingMode = "reading-mode"
	ClassReady       = "reader-ready"
	ClassHideImages  = "reader-hide-images"
)

// Selectors are tried in order when picking the reading source.
var Selectors = []string{
	"article",
	"main",
	"[role='main']",
	"#content",
	".content",
	".article",
	".post",
	".entry-content",
}

// Text length thresholds, in characters of trimmed rendered text.
const (
	MinCandidateText = 200 // a candidate needs more than this
	MinSourceText    = 400 // the winner needs at least this
	MinCloneText     = 200 // the cleaned clone needs at least this
)

// stripped are removed from the clone before display.
const stripped = "script, style, nav, footer, header"

// Status texts shown by the panel.
const (
	StatusDisabled  = "Disabled"
	StatusNoContent = "No content detected"
	StatusActive    = "Active"
)

// Config tunes a Mode.
type Config struct {
	// Quiet is the debounce window of auto-rebuild. Default: 500ms.
	Quiet time.Duration
	// MinInterval drops scheduled rebuilds closer than this to the
	// previous one. Default: 800ms.
	MinInterval time.Duration
	// PanelID is the id of the control panel host, whose subtree is never
	// a source and never triggers a rebuild.
	PanelID string
	Logger  *slog.Logger
	// OnRebuild is called after every rebuild.
	OnRebuild func(RebuildEvent)
}

func (c *Config) defaults() {
	if c.Quiet <= 0 {
		c.Quiet = 500 * time.Millisecond
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 800 * time.Millisecond
	}
	if c.PanelID == "" {
		c.PanelID = "swiss-utility-panel"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RebuildEvent describes one rebuild.
type RebuildEvent struct {
	Host      string    `json:"host"`
	URL       string    `json:"url"`
	Ready     bool      `json:"ready"`
	TextChars int       `json:"text_chars"`
	Source    string    `json:"source,omitempty"`
	At        time.Time `json:"at"`
	Scheduled bool      `json:"scheduled"`
}

// Mode owns the reading view of one page.
type Mode struct {
	doc   *dom.Document
	sched loop.Scheduler
	cfg   Config

	settings    prefs.ReaderSettings
	enabled     bool
	ready       bool
	style       *html.Node
	observer    *dom.Observer
	timer       loop.Timer
	lastRebuild time.Time
}

// New creates a disabled Mode with default settings.
func New(doc *dom.Document, cfg Config) *Mode {
	cfg.defaults()
	return &Mode{
		doc:      doc,
		sched:    doc.Scheduler(),
		cfg:      cfg,
		settings: prefs.DefaultReaderSettings(),
	}
}

// Enabled reports whether reading mode is applied.
func (m *Mode) Enabled() bool { return m.enabled }

// Ready reports whether the container currently shows content.
func (m *Mode) Ready() bool { return m.ready }

// Settings returns the applied settings.
func (m *Mode) Settings() prefs.ReaderSettings { return m.settings }

// Container returns the reader container, or nil.
func (m *Mode) Container() *html.Node { return m.doc.GetElementByID(ContainerID) }

// Status is the panel status text.
func (m *Mode) Status() string {
	switch {
	case !m.enabled:
		return StatusDisabled
	case !m.ready:
		return StatusNoContent
	}
	return StatusActive
}

// SetEnabled applies or removes reading mode.
func (m *Mode) SetEnabled(on bool) {
	m.enabled = on
	root := m.doc.DocumentElement()
	if on {
		m.applySettings()
		m.Rebuild()
		m.doc.AddClass(root, ClassReadingMode)
		m.addStyle()
		if m.settings.AutoRebuild {
			m.startObserver()
		}
		m.cfg.Logger.Debug("reader: enabled", "host", m.doc.Hostname(), "ready", m.ready)
		return
	}
	m.doc.RemoveClass(root, ClassReadingMode)
	m.doc.RemoveClass(root, ClassReady)
	m.ready = false
	m.removeStyle()
	if c := m.Container(); c != nil {
		m.doc.Remove(c)
	}
	m.stopObserver()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.cfg.Logger.Debug("reader: disabled", "host", m.doc.Hostname())
}

// SetSettings replaces the settings and re-applies the style variables.
// It does not touch the observer or schedule anything.
func (m *Mode) SetSettings(rs prefs.ReaderSettings) {
	m.settings = rs
	m.applySettings()
}

// UpdateSettings is SetSettings plus, when enabled, starting or stopping
// the observer per AutoRebuild and scheduling a rebuild.
func (m *Mode) UpdateSettings(rs prefs.ReaderSettings) {
	m.SetSettings(rs)
	if !m.enabled {
		return
	}
	if rs.AutoRebuild {
		m.startObserver()
	} else {
		m.stopObserver()
	}
	m.ScheduleRebuild()
}

func (m *Mode) applySettings() {
	root := m.doc.DocumentElement()
	if root == nil {
		return
	}
	rs := m.settings
	theme := prefs.ThemeFor(rs.Theme)
	font := rs.FontFamilyCSS()
	vars := [][2]string{
		{"--su-reader-bg", theme.Background},
		{"--su-reader-text", theme.Text},
		{"--su-reader-link", theme.Link},
		{"--su-reader-font", font},
		{"--su-reader-font-family", font},
		{"--su-reader-size", formatNumber(rs.FontSize) + "px"},
		{"--su-reader-line", formatNumber(rs.LineHeight)},
		{"--su-reader-width", formatNumber(rs.MaxWidth) + "px"},
	}
	for _, v := range vars {
		m.doc.SetStyleProperty(root, v[0], v[1])
	}
	m.doc.ToggleClass(root, ClassHideImages, rs.HideImages)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// PickSource returns the element the reading view is built from, or nil
// when no candidate has enough text. Elements inside any of exclude are
// never candidates.
func PickSource(doc *dom.Document, exclude ...*html.Node) *html.Node {
	var best *html.Node
	bestLen := 0
	for _, sel := range Selectors {
		for _, el := range dom.QuerySelectorAll(doc.Node(), sel) {
			if excluded(el, exclude) {
				continue
			}
			n := dom.TextLength(el)
			if n <= MinCandidateText {
				continue
			}
			if best == nil || n > bestLen {
				best, bestLen = el, n
			}
		}
	}
	if best == nil || bestLen < MinSourceText {
		return nil
	}
	return best
}

func excluded(n *html.Node, roots []*html.Node) bool {
	for _, r := range roots {
		if r != nil && dom.Contains(r, n) {
			return true
		}
	}
	return false
}

// Rebuild rebuilds the container from the page now. It reports whether
// content was found.
func (m *Mode) Rebuild() bool {
	return m.rebuild(false)
}

func (m *Mode) rebuild(scheduled bool) bool {
	body := m.doc.Body()
	if body == nil {
		return false
	}
	var src *html.Node
	textChars := 0
	build := func() {
		container := m.ensureContainer(body)
		m.doc.ReplaceChildren(container)
		root := m.doc.DocumentElement()

		src = PickSource(m.doc, container, m.doc.GetElementByID(m.cfg.PanelID))
		var clone *html.Node
		if src != nil {
			clone = dom.Clone(src)
			for _, el := range dom.QuerySelectorAll(clone, stripped) {
				el.Parent.RemoveChild(el)
			}
			textChars = dom.TextLength(clone)
		}
		if clone == nil || textChars < MinCloneText {
			m.ready = false
			m.doc.RemoveClass(root, ClassReady)
			m.doc.SetStyleProperty(container, "display", "none")
			return
		}
		m.doc.AppendChild(container, clone)
		m.doc.SetStyleProperty(container, "display", "block")
		m.doc.AddClass(root, ClassReady)
		m.ready = true
	}
	if m.observer != nil {
		m.observer.Suppress(build)
	} else {
		build()
	}

	ev := RebuildEvent{
		Host:      m.doc.Hostname(),
		URL:       m.doc.URL(),
		Ready:     m.ready,
		At:        m.sched.Now(),
		Scheduled: scheduled,
	}
	if m.ready {
		ev.TextChars = textChars
		ev.Source = describe(src)
	}
	m.cfg.Logger.Debug("reader: rebuilt", "host", ev.Host, "ready", ev.Ready, "chars", ev.TextChars)
	if m.cfg.OnRebuild != nil {
		m.cfg.OnRebuild(ev)
	}
	return m.ready
}

func (m *Mode) ensureContainer(body *html.Node) *html.Node {
	if c := m.Container(); c != nil {
		return c
	}
	c := m.doc.CreateElement("div")
	m.doc.SetAttr(c, "id", ContainerID)
	m.doc.AppendChild(body, c)
	return c
}

// describe names an element the way a selector would.
func describe(n *html.Node) string {
	if n == nil {
		return ""
	}
	s := n.Data
	if id := dom.Attr(n, "id"); id != "" {
		s += "#" + id
	}
	return s
}

// ScheduleRebuild (re)starts the quiet-period timer. When it fires the
// rebuild is postponed while the user has a selection in the reader and
// dropped when the previous scheduled rebuild is too recent.
func (m *Mode) ScheduleRebuild() {
	if !m.enabled {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.sched.AfterFunc(m.cfg.Quiet, m.fire)
}

func (m *Mode) fire() {
	m.timer = nil
	if !m.enabled {
		return
	}
	if m.selectionInReader() {
		m.ScheduleRebuild()
		return
	}
	now := m.sched.Now()
	if !m.lastRebuild.IsZero() && now.Sub(m.lastRebuild) < m.cfg.MinInterval {
		return
	}
	m.lastRebuild = now
	m.rebuild(true)
}

func (m *Mode) selectionInReader() bool {
	c := m.Container()
	sel := m.doc.Selection()
	if c == nil || sel == nil || sel.Collapsed() {
		return false
	}
	return dom.Contains(c, sel.Anchor) || dom.Contains(c, sel.Focus)
}

// Observing reports whether the auto-rebuild observer is running.
func (m *Mode) Observing() bool { return m.observer != nil }

func (m *Mode) startObserver() {
	if m.observer != nil {
		return
	}
	m.observer = m.doc.NewObserver(func(recs []*dom.Record, _ *dom.Observer) {
		if m.ignorable(recs) {
			return
		}
		m.ScheduleRebuild()
	})
	m.observer.Observe(m.doc.Body(), dom.ObserveOptions{ChildList: true, Subtree: true})
}

func (m *Mode) stopObserver() {
	if m.observer == nil {
		return
	}
	m.observer.Disconnect()
	m.observer = nil
}

// ignorable reports whether every record happened inside the reader
// container or the panel host.
func (m *Mode) ignorable(recs []*dom.Record) bool {
	container := m.Container()
	panel := m.doc.GetElementByID(m.cfg.PanelID)
	for _, r := range recs {
		if !excluded(r.Target, []*html.Node{container, panel}) {
			return false
		}
	}
	return true
}
