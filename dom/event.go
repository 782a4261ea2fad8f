package dom

import (
	"errors"
	"slices"

	"golang.org/x/net/html"
)

// ErrReadOnly is returned when assigning a read-only handler property.
var ErrReadOnly = errors.New("dom: property is read-only")

// Event is a dispatched DOM event.
type Event struct {
	Type   string
	Target *html.Node
	// CurrentTarget is the node whose listener is running.
	CurrentTarget *html.Node

	Button int
	Key    string
	Ctrl   bool
	Meta   bool

	stopped   bool
	immediate bool
	prevented bool
}

// StopPropagation stops dispatch after the current node's listeners.
func (e *Event) StopPropagation() { e.stopped = true }

// StopImmediatePropagation stops dispatch right after the current listener.
func (e *Event) StopImmediatePropagation() {
	e.stopped = true
	e.immediate = true
}

// PreventDefault cancels the event's default action.
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.prevented }

// Listener is a registered event listener.
type Listener struct {
	node    *html.Node
	typ     string
	capture bool
	fn      func(*Event)
	removed bool
}

// AddEventListener registers fn on target for typ. The document node
// (Document.Node) is a valid target.
func (d *Document) AddEventListener(target *html.Node, typ string, capture bool, fn func(*Event)) *Listener {
	l := &Listener{node: target, typ: typ, capture: capture, fn: fn}
	d.listeners[target] = append(d.listeners[target], l)
	return l
}

// RemoveEventListener unregisters l. Removing twice is a no-op.
func (d *Document) RemoveEventListener(l *Listener) {
	if l == nil || l.removed {
		return
	}
	l.removed = true
	list := slices.DeleteFunc(d.listeners[l.node], func(x *Listener) bool { return x == l })
	if len(list) == 0 {
		delete(d.listeners, l.node)
	} else {
		d.listeners[l.node] = list
	}
}

// Handler is a handler property value such as document.oncopy.
type Handler func(*Event)

// HandlerBag holds the on* handler properties of the document, the window
// or an element.
type HandlerBag struct {
	values   map[string]Handler
	readOnly map[string]bool
}

func newHandlerBag() *HandlerBag {
	return &HandlerBag{values: make(map[string]Handler), readOnly: make(map[string]bool)}
}

// Get returns the handler stored under name.
func (b *HandlerBag) Get(name string) Handler { return b.values[name] }

// Set assigns name. A nil handler clears it.
func (b *HandlerBag) Set(name string, h Handler) error {
	if b.readOnly[name] {
		return ErrReadOnly
	}
	if h == nil {
		delete(b.values, name)
		return nil
	}
	b.values[name] = h
	return nil
}

// Freeze makes name read-only with its current value.
func (b *HandlerBag) Freeze(name string) { b.readOnly[name] = true }

// DocumentHandlers returns the document's handler properties.
func (d *Document) DocumentHandlers() *HandlerBag { return d.docHandlers }

// WindowHandlers returns the window's handler properties.
func (d *Document) WindowHandlers() *HandlerBag { return d.winHandlers }

// ElementHandlers returns the handler properties of element n, creating
// the bag on first use.
func (d *Document) ElementHandlers(n *html.Node) *HandlerBag {
	b, ok := d.elemHandlers[n]
	if !ok {
		b = newHandlerBag()
		d.elemHandlers[n] = b
	}
	return b
}

type hop struct {
	node   *html.Node
	target *html.Node
}

// eventPath walks from target up to the document node, crossing shadow
// roots into their hosts. Nodes outside a shadow tree see the host as the
// event target.
func (d *Document) eventPath(target *html.Node) []hop {
	var path []hop
	seen := target
	for n := target; n != nil; {
		path = append(path, hop{node: n, target: seen})
		if n.Parent != nil {
			n = n.Parent
			continue
		}
		sr, ok := d.frags[n]
		if !ok {
			break
		}
		n = sr.Host
		seen = sr.Host
	}
	return path
}

// Dispatch runs e through capture, target and bubble phases. Inline on*
// attributes and handler properties behave as handlers that cancel the
// event. It reports false when the default action was prevented.
func (d *Document) Dispatch(e *Event) bool {
	orig := e.Target
	path := d.eventPath(orig)

	for i := len(path) - 1; i > 0 && !e.stopped; i-- {
		d.invoke(e, path[i], true, false)
	}
	if !e.stopped && len(path) > 0 {
		d.invoke(e, path[0], true, true)
	}
	for i := 1; i < len(path) && !e.stopped; i++ {
		d.invoke(e, path[i], false, false)
	}
	if !e.stopped {
		e.CurrentTarget = nil
		if h := d.winHandlers.Get("on" + e.Type); h != nil {
			h(e)
		}
	}
	e.Target = orig
	e.CurrentTarget = nil
	return !e.prevented
}

func (d *Document) invoke(e *Event, h hop, capture, atTarget bool) {
	e.Target = h.target
	e.CurrentTarget = h.node
	if !capture || atTarget {
		if h.node.Type == html.ElementNode && HasAttr(h.node, "on"+e.Type) {
			e.PreventDefault()
		}
		var bag *HandlerBag
		if h.node == d.root {
			bag = d.docHandlers
		} else {
			bag = d.elemHandlers[h.node]
		}
		if bag != nil {
			if fn := bag.Get("on" + e.Type); fn != nil {
				fn(e)
				if e.immediate {
					return
				}
			}
		}
	}
	for _, l := range slices.Clone(d.listeners[h.node]) {
		if l.removed || l.typ != e.Type {
			continue
		}
		if !atTarget && l.capture != capture {
			continue
		}
		l.fn(e)
		if e.immediate {
			return
		}
	}
}
