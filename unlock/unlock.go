// Package unlock restores text selection, copying and the context menu on
// pages that block them.
package unlock

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/swissutil/dom"
)

// StyleID is the id of the injected user-select stylesheet.
const StyleID = "swiss-utility-unlock-style"

// InlineAttrs are the inline handler attributes pages use to block
// selection. They are stripped and kept stripped while enabled.
var InlineAttrs = []string{
	"oncontextmenu",
	"onselectstart",
	"oncopy",
	"oncut",
	"ondragstart",
	"onmousedown",
	"onmouseup",
	"onkeydown",
	"onkeyup",
}

const styleText = `
* {
  -webkit-user-select: text !important;
  -moz-user-select: text !important;
  -ms-user-select: text !important;
  user-select: text !important;
  -webkit-touch-callout: default !important;
}
`

// Unlocker owns the selection utility's state on one page.
type Unlocker struct {
	doc    *dom.Document
	logger *slog.Logger

	enabled   bool
	style     *html.Node
	listeners []*dom.Listener
	observer  *dom.Observer
}

// Option configures an Unlocker.
type Option func(*Unlocker)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(u *Unlocker) { u.logger = l } }

// New creates a disabled Unlocker for doc.
func New(doc *dom.Document, opts ...Option) *Unlocker {
	u := &Unlocker{doc: doc, logger: slog.Default()}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Enabled reports the applied state.
func (u *Unlocker) Enabled() bool { return u.enabled }

// SetEnabled applies or removes the utility. Calling it with the current
// state again is harmless.
func (u *Unlocker) SetEnabled(on bool) {
	u.enabled = on
	if on {
		u.addStyle()
		u.addListeners()
		u.clearHandlerProperties()
		u.stripTree(u.doc.DocumentElement())
		u.startObserver()
		u.logger.Debug("unlock: enabled", "host", u.doc.Hostname())
		return
	}
	u.removeListeners()
	u.removeStyle()
	u.stopObserver()
	u.logger.Debug("unlock: disabled", "host", u.doc.Hostname())
}

func (u *Unlocker) addStyle() {
	if u.style != nil {
		return
	}
	el := u.doc.CreateElement("style")
	u.doc.SetAttr(el, "id", StyleID)
	u.doc.SetText(el, styleText)
	target := u.doc.Head()
	if target == nil {
		target = u.doc.DocumentElement()
	}
	u.doc.AppendChild(target, el)
	u.style = el
}

func (u *Unlocker) removeStyle() {
	if u.style == nil {
		return
	}
	u.doc.Remove(u.style)
	u.style = nil
}

func (u *Unlocker) addListeners() {
	if len(u.listeners) > 0 {
		return
	}
	stop := func(e *dom.Event) { e.StopImmediatePropagation() }
	for _, typ := range []string{"contextmenu", "selectstart", "copy", "cut", "dragstart"} {
		u.listeners = append(u.listeners, u.doc.AddEventListener(u.doc.Node(), typ, true, stop))
	}
	u.listeners = append(u.listeners,
		u.doc.AddEventListener(u.doc.Node(), "mousedown", true, func(e *dom.Event) {
			if e.Button == 0 {
				e.StopImmediatePropagation()
			}
		}),
		u.doc.AddEventListener(u.doc.Node(), "keydown", true, func(e *dom.Event) {
			if !e.Ctrl && !e.Meta {
				return
			}
			switch strings.ToLower(e.Key) {
			case "c", "x", "a":
				e.StopImmediatePropagation()
			}
		}),
	)
}

func (u *Unlocker) removeListeners() {
	for _, l := range u.listeners {
		u.doc.RemoveEventListener(l)
	}
	u.listeners = nil
}

// clearHandlerProperties nulls the on* properties of the document, the
// window, the root element and the body. Read-only properties are skipped.
func (u *Unlocker) clearHandlerProperties() {
	bags := []*dom.HandlerBag{u.doc.DocumentHandlers(), u.doc.WindowHandlers()}
	for _, n := range []*html.Node{u.doc.DocumentElement(), u.doc.Body()} {
		if n != nil {
			bags = append(bags, u.doc.ElementHandlers(n))
		}
	}
	for _, bag := range bags {
		for _, name := range InlineAttrs {
			if err := bag.Set(name, nil); err != nil {
				u.logger.Debug("unlock: handler property not cleared", "name", name, "error", err)
			}
		}
	}
}

// stripTree removes the inline attributes from root and its descendants.
func (u *Unlocker) stripTree(root *html.Node) {
	if root == nil || root.Type != html.ElementNode {
		return
	}
	dom.Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			for _, attr := range InlineAttrs {
				u.doc.RemoveAttr(n, attr)
			}
		}
		return true
	})
}

func (u *Unlocker) startObserver() {
	if u.observer != nil {
		return
	}
	u.observer = u.doc.NewObserver(func(recs []*dom.Record, _ *dom.Observer) {
		for _, r := range recs {
			if r.Type == dom.Attributes {
				u.doc.RemoveAttr(r.Target, r.AttributeName)
				continue
			}
			for _, n := range r.AddedNodes {
				u.stripTree(n)
			}
		}
	})
	u.observer.Observe(u.doc.DocumentElement(), dom.ObserveOptions{
		ChildList:       true,
		Subtree:         true,
		Attributes:      true,
		AttributeFilter: InlineAttrs,
	})
}

func (u *Unlocker) stopObserver() {
	if u.observer == nil {
		return
	}
	u.observer.Disconnect()
	u.observer = nil
}
