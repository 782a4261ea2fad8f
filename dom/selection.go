package dom

import "golang.org/x/net/html"

// Selection is the document's current range selection.
type Selection struct {
	Anchor       *html.Node
	AnchorOffset int
	Focus        *html.Node
	FocusOffset  int
}

// Collapsed reports whether the selection is a caret.
func (s *Selection) Collapsed() bool {
	return s.Anchor == s.Focus && s.AnchorOffset == s.FocusOffset
}

// Select sets the selection from anchor to focus.
func (d *Document) Select(anchor *html.Node, anchorOffset int, focus *html.Node, focusOffset int) {
	d.selection = &Selection{Anchor: anchor, AnchorOffset: anchorOffset, Focus: focus, FocusOffset: focusOffset}
}

// SelectNodeContents selects everything inside n.
func (d *Document) SelectNodeContents(n *html.Node) {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	d.Select(n, 0, n, count)
}

// ClearSelection removes the selection.
func (d *Document) ClearSelection() { d.selection = nil }

// Selection returns the current selection, or nil when there is none.
func (d *Document) Selection() *Selection { return d.selection }
