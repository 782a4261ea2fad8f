package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ShadowRoot is an open shadow tree attached to a host element. Its nodes
// hang off Root, which has no parent; events leaving Root continue at Host.
type ShadowRoot struct {
	Host *html.Node
	Root *html.Node
	d    *Document
}

// AttachShadow attaches an open shadow root to host, or returns the existing
// one.
func (d *Document) AttachShadow(host *html.Node) *ShadowRoot {
	if sr, ok := d.shadows[host]; ok {
		return sr
	}
	sr := &ShadowRoot{Host: host, Root: &html.Node{Type: html.DocumentNode}, d: d}
	d.shadows[host] = sr
	d.frags[sr.Root] = sr
	return sr
}

// ShadowRootOf returns the shadow root attached to host, or nil.
func (d *Document) ShadowRootOf(host *html.Node) *ShadowRoot { return d.shadows[host] }

// GetElementByID searches the shadow tree.
func (sr *ShadowRoot) GetElementByID(id string) *html.Node { return findByID(sr.Root, id) }

// QuerySelector searches the shadow tree.
func (sr *ShadowRoot) QuerySelector(sel string) *html.Node { return QuerySelector(sr.Root, sel) }

// QuerySelectorAll searches the shadow tree.
func (sr *ShadowRoot) QuerySelectorAll(sel string) []*html.Node { return QuerySelectorAll(sr.Root, sel) }

// ActiveElement returns the focused element when it lives in this shadow
// tree.
func (sr *ShadowRoot) ActiveElement() *html.Node {
	if sr.d.active != nil && Contains(sr.Root, sr.d.active) {
		return sr.d.active
	}
	return nil
}

// treeRoot returns the topmost light-tree ancestor of n.
func treeRoot(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// Connected reports whether n is reachable from the document, shadow trees
// included.
func (d *Document) Connected(n *html.Node) bool {
	for {
		r := treeRoot(n)
		if r == d.root {
			return true
		}
		sr, ok := d.frags[r]
		if !ok {
			return false
		}
		n = sr.Host
	}
}

// Focus moves focus to n.
func (d *Document) Focus(n *html.Node) {
	if n != nil && !d.Connected(n) {
		return
	}
	d.active = n
}

// Blur clears focus.
func (d *Document) Blur() { d.active = nil }

// ActiveElement returns the focused element as the document sees it: a
// node inside a shadow tree is reported as its outermost host.
func (d *Document) ActiveElement() *html.Node {
	n := d.active
	if n == nil {
		return d.Body()
	}
	for {
		sr, ok := d.frags[treeRoot(n)]
		if !ok {
			return n
		}
		n = sr.Host
	}
}

func (d *Document) forgetFocus(removed *html.Node) {
	if d.active == nil {
		return
	}
	for n := d.active; n != nil; {
		if n == removed {
			d.active = nil
			return
		}
		if n.Parent != nil {
			n = n.Parent
			continue
		}
		sr, ok := d.frags[n]
		if !ok {
			return
		}
		n = sr.Host
	}
}

// Render writes the document as HTML. Shadow roots are serialised as
// declarative <template shadowrootmode="open"> children of their hosts.
func (d *Document) Render(w io.Writer) error {
	var inserted []*html.Node
	for host, sr := range d.shadows {
		if !d.Connected(host) {
			continue
		}
		tpl := &html.Node{
			Type:     html.ElementNode,
			Data:     "template",
			DataAtom: atom.Template,
			Attr:     []html.Attribute{{Key: "shadowrootmode", Val: "open"}},
		}
		for c := sr.Root.FirstChild; c != nil; c = c.NextSibling {
			tpl.AppendChild(Clone(c))
		}
		host.InsertBefore(tpl, host.FirstChild)
		inserted = append(inserted, tpl)
	}
	err := html.Render(w, d.root)
	for _, tpl := range inserted {
		tpl.Parent.RemoveChild(tpl)
	}
	if err != nil {
		return fmt.Errorf("dom: render: %w", err)
	}
	return nil
}

// String renders the document, ignoring errors.
func (d *Document) String() string {
	var sb strings.Builder
	_ = d.Render(&sb)
	return sb.String()
}
