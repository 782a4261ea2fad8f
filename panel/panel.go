// Package panel renders the floating control panel: a host element in the
// page body carrying an open shadow root with one card per utility.
//
// The panel holds no preference state of its own. User edits go to an
// Actions implementation; the owner pushes the resulting state back with
// Refresh.
package panel

import (
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/swissutil/custom"
	"github.com/hazyhaar/swissutil/dom"
	"github.com/hazyhaar/swissutil/loop"
	"github.com/hazyhaar/swissutil/prefs"
)

//go:embed panel.css
var stylesheet string

//go:embed panel.tmpl
var markupSrc string

var markup = template.Must(template.New("panel").Parse(markupSrc))

// HostID is the id of the panel host element.
const HostID = "swiss-utility-panel"

// Card ids, as carried by data-utility.
const (
	CardSelection = "selection"
	CardReading   = "reading"
	CardCustom    = "custom"
)

const classMinimized = "su-minimized"

// Actions receives the user's edits.
type Actions interface {
	// SetSite overrides a utility for the current host.
	SetSite(u prefs.Utility, on bool)
	// SetCustomEnabled flips the custom utility for the current host.
	SetCustomEnabled(on bool)
	// SaveCustom stores the edited stylesheet and script.
	SaveCustom(css, js string)
	// UpdateReader merges an edit into the reader settings.
	UpdateReader(edit func(*prefs.ReaderSettings))
	// RebuildReader rebuilds the reading view immediately.
	RebuildReader()
}

// State is everything the panel displays.
type State struct {
	Selection   bool
	Reading     bool
	ReaderReady bool
	Custom      prefs.CustomState
	JSStatus    custom.JSStatus
	JSMessage   string
	Reader      prefs.ReaderSettings
}

// Option is a select entry.
type Option struct {
	Label string
	Value string
}

// Fonts lists the font choices of the reading card.
var Fonts = []Option{
	{"Site default", ""},
	{"Georgia", "Georgia, 'Times New Roman', serif"},
	{"Charter", "Charter, 'Georgia', serif"},
	{"Merriweather", "'Merriweather', Georgia, serif"},
	{"Source Serif", "'Source Serif Pro', Georgia, serif"},
	{"Times New Roman", "'Times New Roman', serif"},
}

type card struct {
	ID, Title, Description, Note string
}

var cards = []card{
	{CardSelection, "Right-click & Select", "Enable right-click menu and text selection/copy on this page.", "No refresh required."},
	{CardReading, "Reading Mode", "Simplify layout and improve readability on this page.", "No refresh required."},
	{CardCustom, "Custom CSS / JS", "Inject custom CSS and JS on this site.", "Applies automatically on this site when enabled."},
}

type rangeControl struct {
	Key, Label     string
	Min, Max, Step string
}

var ranges = []rangeControl{
	{"fontSize", "Font size", "14", "24", "1"},
	{"lineHeight", "Line height", "1.3", "2", "0.05"},
	{"maxWidth", "Max width", "560", "980", "20"},
}

// Config wires a Panel.
type Config struct {
	Actions Actions
	// SaveDelay debounces textarea edits. Default: 500ms.
	SaveDelay time.Duration
	Logger    *slog.Logger
}

// Panel is the control panel of one page.
type Panel struct {
	doc   *dom.Document
	sched loop.Scheduler
	cfg   Config

	host   *html.Node
	shadow *dom.ShadowRoot
	root   *html.Node

	visible   bool
	state     State
	saveTimer loop.Timer
	retry     loop.Timer
}

// New creates a panel. Nothing is inserted until Ensure.
func New(doc *dom.Document, cfg Config) *Panel {
	if cfg.SaveDelay <= 0 {
		cfg.SaveDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Panel{
		doc:   doc,
		sched: doc.Scheduler(),
		cfg:   cfg,
		state: State{Reader: prefs.DefaultReaderSettings()},
	}
}

// Host returns the host element, or nil before Ensure succeeds.
func (p *Panel) Host() *html.Node { return p.host }

// Shadow returns the panel's shadow root, or nil.
func (p *Panel) Shadow() *dom.ShadowRoot { return p.shadow }

// Visible reports whether the panel is shown.
func (p *Panel) Visible() bool { return p.visible }

// Ensure inserts the panel once. Without a body it retries every 50ms and
// reports false.
func (p *Panel) Ensure() bool {
	if p.host != nil {
		return true
	}
	body := p.doc.Body()
	if body == nil {
		if p.retry == nil {
			p.retry = p.sched.AfterFunc(50*time.Millisecond, func() {
				p.retry = nil
				p.Ensure()
			})
		}
		return false
	}
	if err := p.build(body); err != nil {
		p.cfg.Logger.Error("panel: build failed", "error", err)
		return false
	}
	return true
}

func (p *Panel) build(body *html.Node) error {
	var sb strings.Builder
	err := markup.Execute(&sb, map[string]any{
		"Cards":  cards,
		"Fonts":  Fonts,
		"Ranges": ranges,
		"Themes": themeOptions(),
	})
	if err != nil {
		return fmt.Errorf("panel: render markup: %w", err)
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(sb.String()), ctx)
	if err != nil {
		return fmt.Errorf("panel: parse markup: %w", err)
	}

	host := p.doc.CreateElement("div")
	p.doc.SetAttr(host, "id", HostID)
	sr := p.doc.AttachShadow(host)
	style := p.doc.CreateElement("style")
	p.doc.SetText(style, stylesheet)
	p.doc.AppendChild(sr.Root, style)
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			p.doc.AppendChild(sr.Root, n)
		}
	}
	p.host, p.shadow = host, sr
	p.root = sr.QuerySelector(".su-panel")
	p.wire()
	p.render()
	p.SetOpen(CardSelection)
	if !p.visible {
		p.doc.SetStyleProperty(host, "display", "none")
	}
	p.doc.AppendChild(body, host)
	return nil
}

func themeOptions() []Option {
	out := make([]Option, 0, len(prefs.ThemeNames))
	for _, name := range prefs.ThemeNames {
		out = append(out, Option{Label: strings.ToUpper(name[:1]) + name[1:], Value: name})
	}
	return out
}

// SetVisible shows or hides the panel.
func (p *Panel) SetVisible(on bool) {
	p.visible = on
	if !p.Ensure() {
		return
	}
	display := "none"
	if on {
		display = "block"
	}
	p.doc.SetStyleProperty(p.host, "display", display)
}

// Toggle flips visibility.
func (p *Panel) Toggle() { p.SetVisible(!p.visible) }

// Minimized reports whether the panel is collapsed to its header.
func (p *Panel) Minimized() bool { return p.root != nil && dom.HasClass(p.root, classMinimized) }

// ToggleMinimized collapses or expands the panel.
func (p *Panel) ToggleMinimized() {
	if p.root == nil {
		return
	}
	p.doc.ToggleClass(p.root, classMinimized, !p.Minimized())
	btn := p.shadow.QuerySelector(".su-minimize")
	if btn == nil {
		return
	}
	if p.Minimized() {
		p.doc.SetText(btn, "+")
		p.doc.SetAttr(btn, "aria-label", "Expand panel")
	} else {
		p.doc.SetText(btn, "-")
		p.doc.SetAttr(btn, "aria-label", "Minimize panel")
	}
}

// OpenCard returns the id of the open card, or "".
func (p *Panel) OpenCard() string {
	if p.shadow == nil {
		return ""
	}
	if c := p.shadow.QuerySelector(".su-utility.is-open"); c != nil {
		return dom.Attr(c, "data-utility")
	}
	return ""
}

// SetOpen acts like a click on a card header: the open card closes, any
// other card opens alone.
func (p *Panel) SetOpen(id string) {
	if p.shadow == nil {
		return
	}
	closing := p.OpenCard() == id
	for _, c := range p.shadow.QuerySelectorAll(".su-utility") {
		p.doc.ToggleClass(c, "is-open", !closing && dom.Attr(c, "data-utility") == id)
	}
	for _, icon := range p.shadow.QuerySelectorAll(".su-collapse-icon") {
		sign := "+"
		if c := dom.Closest(icon, ".su-utility"); c != nil && dom.HasClass(c, "is-open") {
			sign = "-"
		}
		p.doc.SetText(icon, sign)
	}
}

// Card returns the card element with the given id.
func (p *Panel) Card(id string) *html.Node {
	if p.shadow == nil {
		return nil
	}
	return p.shadow.QuerySelector(".su-utility[data-utility='" + id + "']")
}

// Control returns a reader control by its data-control key.
func (p *Panel) Control(key string) *html.Node {
	if p.shadow == nil {
		return nil
	}
	return p.shadow.QuerySelector("[data-control='" + key + "']")
}

// Find returns the first element matching sel inside the panel.
func (p *Panel) Find(sel string) *html.Node {
	if p.shadow == nil {
		return nil
	}
	return p.shadow.QuerySelector(sel)
}

// StatusText returns the status line of a card.
func (p *Panel) StatusText(id string) string {
	c := p.Card(id)
	if c == nil {
		return ""
	}
	return dom.TextContent(dom.QuerySelector(c, ".su-status"))
}

// Refresh displays st. A focused textarea keeps what the user typed.
func (p *Panel) Refresh(st State) {
	p.state = st
	p.render()
}

func (p *Panel) render() {
	if p.shadow == nil {
		return
	}
	st := p.state

	p.setCard(CardSelection, st.Selection, onOff(st.Selection))
	readingStatus := "Disabled"
	switch {
	case st.Reading && !st.ReaderReady:
		readingStatus = "No content detected"
	case st.Reading:
		readingStatus = "Active"
	}
	p.setCard(CardReading, st.Reading, readingStatus)
	p.setCard(CardCustom, st.Custom.Enabled, onOff(st.Custom.Enabled))

	if el := p.Find(".su-js-status"); el != nil {
		p.setText(el, st.JSMessage)
		p.doc.ToggleClass(el, "su-off", st.JSStatus == custom.StatusError)
	}
	active := p.shadow.ActiveElement()
	if el := p.Find(".su-css"); el != nil && el != active {
		p.doc.SetValue(el, st.Custom.CSS)
	}
	if el := p.Find(".su-js"); el != nil && el != active {
		p.doc.SetValue(el, st.Custom.JS)
	}
	p.renderReader(st.Reader)
}

func onOff(on bool) string {
	if on {
		return "Active"
	}
	return "Disabled"
}

func (p *Panel) setCard(id string, on bool, status string) {
	c := p.Card(id)
	if c == nil {
		return
	}
	if in := dom.QuerySelector(c, ".su-toggle"); in != nil {
		p.doc.SetChecked(in, on)
	}
	if el := dom.QuerySelector(c, ".su-status"); el != nil {
		p.setText(el, status)
		p.doc.ToggleClass(el, "su-off", status != "Active")
	}
}

func (p *Panel) setText(n *html.Node, s string) {
	if dom.TextContent(n) != s {
		p.doc.SetText(n, s)
	}
}

func (p *Panel) renderReader(rs prefs.ReaderSettings) {
	set := func(key, v string) {
		if el := p.Control(key); el != nil {
			p.doc.SetValue(el, v)
		}
	}
	label := func(key, v string) {
		if el := p.Find("[data-value='" + key + "']"); el != nil {
			p.setText(el, v)
		}
	}
	set("fontFamily", rs.FontFamily)
	set("fontSize", num(rs.FontSize))
	label("fontSize", num(rs.FontSize)+"px")
	set("lineHeight", num(rs.LineHeight))
	label("lineHeight", strconv.FormatFloat(rs.LineHeight, 'f', 2, 64))
	set("maxWidth", num(rs.MaxWidth))
	label("maxWidth", num(rs.MaxWidth)+"px")
	set("theme", rs.Theme)
	if el := p.Control("hideImages"); el != nil {
		p.doc.SetChecked(el, rs.HideImages)
	}
	if el := p.Control("autoRebuild"); el != nil {
		p.doc.SetChecked(el, rs.AutoRebuild)
	}
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
