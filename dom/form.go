package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Value returns the current value of a form control. A value set through
// SetValue wins over the markup default.
func (d *Document) Value(n *html.Node) string {
	if v, ok := d.values[n]; ok {
		return v
	}
	switch n.DataAtom {
	case atom.Textarea:
		return TextContent(n)
	case atom.Select:
		var first *html.Node
		for _, opt := range QuerySelectorAll(n, "option") {
			if first == nil {
				first = opt
			}
			if HasAttr(opt, "selected") {
				return optionValue(opt)
			}
		}
		if first != nil {
			return optionValue(first)
		}
		return ""
	}
	return Attr(n, "value")
}

func optionValue(opt *html.Node) string {
	if HasAttr(opt, "value") {
		return Attr(opt, "value")
	}
	return TextContent(opt)
}

// SetValue sets the current value of a form control without touching the
// markup.
func (d *Document) SetValue(n *html.Node, v string) { d.values[n] = v }

// Checked returns the checkedness of a checkbox.
func (d *Document) Checked(n *html.Node) bool {
	if c, ok := d.checked[n]; ok {
		return c
	}
	return HasAttr(n, "checked")
}

// SetChecked sets the checkedness of a checkbox.
func (d *Document) SetChecked(n *html.Node, on bool) { d.checked[n] = on }

// Click dispatches a primary-button click on n.
func (d *Document) Click(n *html.Node) bool {
	return d.Dispatch(&Event{Type: "click", Target: n})
}

// Type sets a control's value as a user would and fires input.
func (d *Document) Type(n *html.Node, v string) {
	d.SetValue(n, v)
	d.Dispatch(&Event{Type: "input", Target: n})
}

// Choose sets a control's value and fires change.
func (d *Document) Choose(n *html.Node, v string) {
	d.SetValue(n, v)
	d.Dispatch(&Event{Type: "change", Target: n})
}

// Toggle sets a checkbox and fires change.
func (d *Document) Toggle(n *html.Node, on bool) {
	d.SetChecked(n, on)
	d.Dispatch(&Event{Type: "change", Target: n})
}
