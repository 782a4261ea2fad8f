// Package dom is an in-memory page document built on golang.org/x/net/html.
//
// It adds the pieces of a browser document the page mutators rely on:
// mutation observers delivered as microtasks, capture/bubble event dispatch,
// handler property bags, a selection, focus, open shadow roots and form
// values. A Document is owned by the loop goroutine of its page and must
// only be touched from tasks running on that loop.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/swissutil/loop"
)

// Document is a parsed page plus its browser-side state.
type Document struct {
	root  *html.Node
	url   *url.URL
	sched loop.Scheduler

	listeners map[*html.Node][]*Listener
	observers []*Observer

	shadows map[*html.Node]*ShadowRoot // by host
	frags   map[*html.Node]*ShadowRoot // by shadow root node

	docHandlers  *HandlerBag
	winHandlers  *HandlerBag
	elemHandlers map[*html.Node]*HandlerBag

	selection *Selection
	active    *html.Node
	values    map[*html.Node]string
	checked   map[*html.Node]bool
}

// Parse reads an HTML page served from pageURL. The scheduler receives
// mutation record deliveries as microtasks.
func Parse(r io.Reader, pageURL string, sched loop.Scheduler) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("dom: parse url %q: %w", pageURL, err)
	}
	return &Document{
		root:         root,
		url:          u,
		sched:        sched,
		listeners:    make(map[*html.Node][]*Listener),
		shadows:      make(map[*html.Node]*ShadowRoot),
		frags:        make(map[*html.Node]*ShadowRoot),
		docHandlers:  newHandlerBag(),
		winHandlers:  newHandlerBag(),
		elemHandlers: make(map[*html.Node]*HandlerBag),
		values:       make(map[*html.Node]string),
		checked:      make(map[*html.Node]bool),
	}, nil
}

// ParseString is Parse over a string.
func ParseString(src, pageURL string, sched loop.Scheduler) (*Document, error) {
	return Parse(strings.NewReader(src), pageURL, sched)
}

// URL returns the page URL.
func (d *Document) URL() string { return d.url.String() }

// Hostname returns the lowercased host of the page URL without port.
func (d *Document) Hostname() string { return strings.ToLower(d.url.Hostname()) }

// Scheduler returns the loop the document belongs to.
func (d *Document) Scheduler() loop.Scheduler { return d.sched }

// Node returns the document node.
func (d *Document) Node() *html.Node { return d.root }

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Head returns the <head> element, or nil.
func (d *Document) Head() *html.Node { return d.rootChild(atom.Head) }

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node { return d.rootChild(atom.Body) }

func (d *Document) rootChild(a atom.Atom) *html.Node {
	de := d.DocumentElement()
	if de == nil {
		return nil
	}
	for c := de.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

// GetElementByID returns the first element in the light tree with the id.
func (d *Document) GetElementByID(id string) *html.Node {
	return findByID(d.root, id)
}

func findByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && Attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// CreateText returns a detached text node.
func (d *Document) CreateText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// AppendChild moves child to the end of parent's children.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child before ref (append when ref is nil).
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if child.Parent != nil {
		d.Remove(child)
	}
	parent.InsertBefore(child, ref)
	d.queueRecord(&Record{Type: ChildList, Target: parent, AddedNodes: []*html.Node{child}})
}

// Remove detaches n from its parent. Detached nodes are left alone.
func (d *Document) Remove(n *html.Node) {
	p := n.Parent
	if p == nil {
		return
	}
	d.forgetFocus(n)
	p.RemoveChild(n)
	d.queueRecord(&Record{Type: ChildList, Target: p, RemovedNodes: []*html.Node{n}})
}

// ReplaceChildren removes every child of parent and appends nodes.
func (d *Document) ReplaceChildren(parent *html.Node, nodes ...*html.Node) {
	var removed []*html.Node
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		d.forgetFocus(c)
		parent.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	for _, n := range nodes {
		if n.Parent != nil {
			d.Remove(n)
		}
		parent.AppendChild(n)
	}
	if len(removed) == 0 && len(nodes) == 0 {
		return
	}
	d.queueRecord(&Record{Type: ChildList, Target: parent, AddedNodes: nodes, RemovedNodes: removed})
}

// SetText replaces the children of n with a single text node.
func (d *Document) SetText(n *html.Node, s string) {
	if s == "" {
		d.ReplaceChildren(n)
		return
	}
	d.ReplaceChildren(n, d.CreateText(s))
}

// Attr returns the value of attribute key, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether n carries attribute key.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			return true
		}
	}
	return false
}

// SetAttr sets attribute key on n.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	key = strings.ToLower(key)
	old, had := "", false
	for i, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			old, had = a.Val, true
			n.Attr[i].Val = val
			break
		}
	}
	if !had {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	}
	d.queueRecord(&Record{Type: Attributes, Target: n, AttributeName: key, OldValue: old})
}

// RemoveAttr removes attribute key from n. Removing a missing attribute
// produces no mutation record.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.queueRecord(&Record{Type: Attributes, Target: n, AttributeName: key, OldValue: a.Val})
			return
		}
	}
}

// HasClass reports whether n's class list contains name.
func HasClass(n *html.Node, name string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == name {
			return true
		}
	}
	return false
}

// AddClass adds name to n's class list.
func (d *Document) AddClass(n *html.Node, name string) {
	if HasClass(n, name) {
		return
	}
	classes := append(strings.Fields(Attr(n, "class")), name)
	d.SetAttr(n, "class", strings.Join(classes, " "))
}

// RemoveClass removes name from n's class list.
func (d *Document) RemoveClass(n *html.Node, name string) {
	if !HasClass(n, name) {
		return
	}
	var kept []string
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c != name {
			kept = append(kept, c)
		}
	}
	d.SetAttr(n, "class", strings.Join(kept, " "))
}

// ToggleClass adds or removes name depending on on.
func (d *Document) ToggleClass(n *html.Node, name string, on bool) {
	if on {
		d.AddClass(n, name)
	} else {
		d.RemoveClass(n, name)
	}
}

// Contains reports whether other is n or a light-tree descendant of n.
func Contains(n, other *html.Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// Clone returns a detached deep copy of n.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(Clone(ch))
	}
	return c
}

// OuterHTML serialises n and its subtree.
func OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	html.Render(&buf, n)
	return buf.String()
}

// InnerHTML serialises the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}
	return buf.String()
}

// walk visits n and its light-tree descendants in document order. Returning
// false from fn skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// Walk is the exported form of the document-order traversal.
func Walk(n *html.Node, fn func(*html.Node) bool) { walk(n, fn) }
