package jsvm

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/swissutil/dom"
)

const nodeKey = "__swissutil_node__"

// wrap returns the script object for n. The same node always maps to the
// same object.
func (w *World) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if o, ok := w.nodes[n]; ok {
		return o
	}
	o := w.vm.NewObject()
	w.nodes[n] = o
	_ = o.DefineDataProperty(nodeKey, w.vm.ToValue(n), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)

	_ = o.Set("nodeType", nodeType(n))
	w.getter(o, "parentNode", func() goja.Value { return w.wrap(n.Parent) })
	w.getter(o, "firstChild", func() goja.Value { return w.wrap(n.FirstChild) })
	w.getter(o, "nextSibling", func() goja.Value { return w.wrap(n.NextSibling) })
	w.accessor(o, "textContent",
		func() goja.Value { return w.vm.ToValue(dom.TextContent(n)) },
		func(v goja.Value) { w.doc.SetText(n, v.String()) })
	_ = o.Set("remove", func() {
		if n.Parent != nil {
			w.doc.Remove(n)
		}
	})
	_ = o.Set("appendChild", func(child goja.Value) goja.Value {
		c := w.unwrap(child)
		if c == nil {
			panic(w.vm.NewTypeError("appendChild: argument is not a node"))
		}
		if c.Parent != nil {
			w.doc.Remove(c)
		}
		w.doc.AppendChild(n, c)
		return child
	})
	_ = o.Set("removeChild", func(child goja.Value) goja.Value {
		c := w.unwrap(child)
		if c == nil || c.Parent != n {
			panic(w.vm.NewTypeError("removeChild: not a child"))
		}
		w.doc.Remove(c)
		return child
	})

	if n.Type != html.ElementNode {
		return o
	}
	_ = o.Set("tagName", strings.ToUpper(n.Data))
	w.accessor(o, "id",
		func() goja.Value { return w.vm.ToValue(dom.Attr(n, "id")) },
		func(v goja.Value) { w.doc.SetAttr(n, "id", v.String()) })
	w.accessor(o, "className",
		func() goja.Value { return w.vm.ToValue(dom.Attr(n, "class")) },
		func(v goja.Value) { w.doc.SetAttr(n, "class", v.String()) })
	w.accessor(o, "innerHTML",
		func() goja.Value { return w.vm.ToValue(dom.InnerHTML(n)) },
		func(v goja.Value) { w.setInnerHTML(n, v.String()) })
	w.getter(o, "outerHTML", func() goja.Value { return w.vm.ToValue(dom.OuterHTML(n)) })
	w.getter(o, "innerText", func() goja.Value { return w.vm.ToValue(dom.InnerText(n)) })
	w.getter(o, "children", func() goja.Value {
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				kids = append(kids, c)
			}
		}
		return w.wrapAll(kids)
	})

	_ = o.Set("getAttribute", func(name string) goja.Value {
		if !dom.HasAttr(n, name) {
			return goja.Null()
		}
		return w.vm.ToValue(dom.Attr(n, name))
	})
	_ = o.Set("setAttribute", func(name, val string) { w.doc.SetAttr(n, strings.ToLower(name), val) })
	_ = o.Set("removeAttribute", func(name string) { w.doc.RemoveAttr(n, strings.ToLower(name)) })
	_ = o.Set("hasAttribute", func(name string) bool { return dom.HasAttr(n, name) })
	_ = o.Set("querySelector", func(sel string) goja.Value { return w.wrap(dom.QuerySelector(n, sel)) })
	_ = o.Set("querySelectorAll", func(sel string) goja.Value { return w.wrapAll(dom.QuerySelectorAll(n, sel)) })
	_ = o.Set("matches", func(sel string) bool { return dom.Matches(n, sel) })
	_ = o.Set("closest", func(sel string) goja.Value { return w.wrap(dom.Closest(n, sel)) })
	_ = o.Set("click", func() { w.doc.Click(n) })

	classList := w.vm.NewObject()
	_ = classList.Set("add", func(names ...string) {
		for _, c := range names {
			w.doc.AddClass(n, c)
		}
	})
	_ = classList.Set("remove", func(names ...string) {
		for _, c := range names {
			w.doc.RemoveClass(n, c)
		}
	})
	_ = classList.Set("contains", func(name string) bool { return dom.HasClass(n, name) })
	_ = classList.Set("toggle", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		on := !dom.HasClass(n, name)
		if f := call.Argument(1); !goja.IsUndefined(f) {
			on = f.ToBoolean()
		}
		w.doc.ToggleClass(n, name, on)
		return w.vm.ToValue(on)
	})
	_ = o.Set("classList", classList)

	style := w.vm.NewObject()
	_ = style.Set("setProperty", func(prop, val string) { w.doc.SetStyleProperty(n, prop, val) })
	_ = style.Set("getPropertyValue", func(prop string) string { return dom.StyleProperty(n, prop) })
	_ = style.Set("removeProperty", func(prop string) { w.doc.SetStyleProperty(n, prop, "") })
	_ = o.Set("style", style)
	return o
}

func (w *World) unwrap(v goja.Value) *html.Node {
	o, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	ref := o.Get(nodeKey)
	if ref == nil {
		return nil
	}
	n, _ := ref.Export().(*html.Node)
	return n
}

func (w *World) setInnerHTML(n *html.Node, src string) {
	ctx := &html.Node{Type: html.ElementNode, Data: n.Data, DataAtom: n.DataAtom}
	if ctx.DataAtom == 0 {
		ctx.Data, ctx.DataAtom = "div", atom.Div
	}
	nodes, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		panic(w.vm.NewGoError(err))
	}
	w.doc.ReplaceChildren(n, nodes...)
}

func nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return 1
	case html.TextNode:
		return 3
	case html.CommentNode:
		return 8
	case html.DocumentNode:
		return 9
	}
	return 0
}
