// Package jsvm is a headless main world: a goja runtime whose window and
// document operate on an in-memory page.
//
// A World is bound to one page and must only be used on that page's loop.
package jsvm

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/hazyhaar/swissutil/dom"
)

// ErrBlockedByCSP is returned when the page's policy forbids injected
// scripts.
var ErrBlockedByCSP = errors.New("jsvm: script blocked by content security policy")

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger receiving console output.
func WithLogger(l *slog.Logger) Option { return func(w *World) { w.log = l } }

// WithCSPHeader sets the Content-Security-Policy response header of the
// page.
func WithCSPHeader(h string) Option { return func(w *World) { w.cspHeader = h } }

// World runs scripts against a page.
type World struct {
	doc       *dom.Document
	vm        *goja.Runtime
	log       *slog.Logger
	cspHeader string

	nodes map[*html.Node]*goja.Object
}

// New creates a World for doc.
func New(doc *dom.Document, opts ...Option) *World {
	w := &World{
		doc:   doc,
		vm:    goja.New(),
		log:   slog.Default(),
		nodes: make(map[*html.Node]*goja.Object),
	}
	for _, o := range opts {
		o(w)
	}
	w.install()
	return w
}

// Blocked reports whether injected scripts are forbidden on the page.
func (w *World) Blocked() bool {
	return ScriptBlocked(Policies(w.doc, w.cspHeader))
}

// Run evaluates code now. It must be called on the page loop.
func (w *World) Run(code string) error {
	if w.Blocked() {
		return ErrBlockedByCSP
	}
	if _, err := w.vm.RunString(code); err != nil {
		var exc *goja.Exception
		if errors.As(err, &exc) {
			return fmt.Errorf("jsvm: script threw: %s", exc.Value())
		}
		return fmt.Errorf("jsvm: script: %w", err)
	}
	return nil
}

// Execute runs code as a later task on the page loop and reports through
// done whether it loaded and completed.
func (w *World) Execute(code string, done func(ok bool)) {
	w.doc.Scheduler().Post(func() {
		err := w.Run(code)
		if err != nil {
			w.log.Debug("jsvm: script failed", "url", w.doc.URL(), "error", err)
		}
		done(err == nil)
	})
}

// Eval evaluates an expression and exports its value.
func (w *World) Eval(expr string) (any, error) {
	v, err := w.vm.RunString(expr)
	if err != nil {
		return nil, fmt.Errorf("jsvm: eval: %w", err)
	}
	return v.Export(), nil
}

func (w *World) install() {
	global := w.vm.GlobalObject()
	_ = global.Set("window", global)
	_ = global.Set("self", global)

	console := w.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		lvl := level
		_ = console.Set(lvl, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			w.log.Debug("jsvm: console", "level", lvl, "url", w.doc.URL(), "text", strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	_ = global.Set("console", console)
	_ = global.Set("alert", func(call goja.FunctionCall) goja.Value {
		w.log.Info("jsvm: alert", "url", w.doc.URL(), "text", call.Argument(0).String())
		return goja.Undefined()
	})

	loc := w.vm.NewObject()
	_ = loc.Set("href", w.doc.URL())
	_ = loc.Set("hostname", w.doc.Hostname())
	_ = global.Set("location", loc)

	_ = global.Set("document", w.document())
}

func (w *World) document() *goja.Object {
	d := w.vm.NewObject()
	_ = d.Set("getElementById", func(id string) goja.Value {
		return w.wrap(w.doc.GetElementByID(id))
	})
	_ = d.Set("querySelector", func(sel string) goja.Value {
		return w.wrap(dom.QuerySelector(w.doc.Node(), sel))
	})
	_ = d.Set("querySelectorAll", func(sel string) goja.Value {
		return w.wrapAll(dom.QuerySelectorAll(w.doc.Node(), sel))
	})
	_ = d.Set("createElement", func(tag string) goja.Value {
		return w.wrap(w.doc.CreateElement(strings.ToLower(tag)))
	})
	_ = d.Set("createTextNode", func(s string) goja.Value {
		return w.wrap(w.doc.CreateText(s))
	})
	w.getter(d, "documentElement", func() goja.Value { return w.wrap(w.doc.DocumentElement()) })
	w.getter(d, "head", func() goja.Value { return w.wrap(w.doc.Head()) })
	w.getter(d, "body", func() goja.Value { return w.wrap(w.doc.Body()) })
	w.getter(d, "title", func() goja.Value {
		t := dom.QuerySelector(w.doc.Node(), "title")
		if t == nil {
			return w.vm.ToValue("")
		}
		return w.vm.ToValue(strings.TrimSpace(dom.TextContent(t)))
	})
	return d
}

func (w *World) getter(o *goja.Object, name string, get func() goja.Value) {
	_ = o.DefineAccessorProperty(name, w.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() }),
		goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (w *World) accessor(o *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	_ = o.DefineAccessorProperty(name,
		w.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() }),
		w.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (w *World) wrapAll(nodes []*html.Node) goja.Value {
	vals := make([]any, len(nodes))
	for i, n := range nodes {
		vals[i] = w.wrap(n)
	}
	return w.vm.NewArray(vals...)
}
