package dom

import (
	"strings"

	"golang.org/x/net/html"
)

type declaration struct {
	prop, val string
}

func parseStyle(s string) []declaration {
	var out []declaration
	for _, part := range strings.Split(s, ";") {
		prop, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		out = append(out, declaration{prop: prop, val: strings.TrimSpace(val)})
	}
	return out
}

func formatStyle(decls []declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.prop+": "+d.val+";")
	}
	return strings.Join(parts, " ")
}

// StyleProperty returns the inline style value of prop on n.
func StyleProperty(n *html.Node, prop string) string {
	prop = strings.ToLower(prop)
	for _, d := range parseStyle(Attr(n, "style")) {
		if d.prop == prop {
			return d.val
		}
	}
	return ""
}

// SetStyleProperty sets prop in n's inline style. An empty value removes it.
func (d *Document) SetStyleProperty(n *html.Node, prop, val string) {
	prop = strings.ToLower(prop)
	decls := parseStyle(Attr(n, "style"))
	out := decls[:0]
	replaced := false
	for _, decl := range decls {
		if decl.prop == prop {
			if val != "" && !replaced {
				out = append(out, declaration{prop: prop, val: val})
				replaced = true
			}
			continue
		}
		out = append(out, decl)
	}
	if val != "" && !replaced {
		out = append(out, declaration{prop: prop, val: val})
	}
	next := formatStyle(out)
	if next == Attr(n, "style") {
		return
	}
	if next == "" {
		d.RemoveAttr(n, "style")
		return
	}
	d.SetAttr(n, "style", next)
}

// Hidden reports whether n is hidden through its own inline display or the
// hidden attribute.
func Hidden(n *html.Node) bool {
	return HasAttr(n, "hidden") || StyleProperty(n, "display") == "none"
}
