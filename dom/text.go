package dom

import (
	"strings"
	"unicode"
	"unicode/utf16"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TextContent concatenates every text node under n, script included.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// InnerText approximates the rendered text of n: script, style, noscript
// and template are skipped, descendants hidden inline are skipped, runs of
// whitespace collapse to one space and block boundaries become newlines.
func InnerText(n *html.Node) string {
	var sb strings.Builder
	pendingSpace, pendingBreak := false, false

	emit := func(s string) {
		for _, r := range s {
			if unicode.IsSpace(r) {
				pendingSpace = true
				continue
			}
			if sb.Len() > 0 {
				switch {
				case pendingBreak:
					sb.WriteByte('\n')
				case pendingSpace:
					sb.WriteByte(' ')
				}
			}
			pendingSpace, pendingBreak = false, false
			sb.WriteRune(r)
		}
	}

	var f func(c *html.Node, top bool)
	f = func(c *html.Node, top bool) {
		switch c.Type {
		case html.TextNode:
			emit(c.Data)
			return
		case html.ElementNode:
			switch c.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.Br:
				pendingBreak = true
				return
			}
			if !top && Hidden(c) {
				return
			}
		}
		block := c.Type == html.ElementNode && isBlock(c.DataAtom)
		if block {
			pendingBreak = true
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			f(ch, false)
		}
		if block {
			pendingBreak = true
		}
	}
	f(n, true)
	return sb.String()
}

// TextLength is the length of n's trimmed InnerText in UTF-16 code units,
// the unit page scripts measure strings in.
func TextLength(n *html.Node) int {
	l := 0
	for _, r := range strings.TrimSpace(InnerText(n)) {
		l += utf16.RuneLen(r)
	}
	return l
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.Address, atom.Article, atom.Aside, atom.Blockquote, atom.Body,
		atom.Dd, atom.Details, atom.Dialog, atom.Div, atom.Dl, atom.Dt,
		atom.Fieldset, atom.Figcaption, atom.Figure, atom.Footer, atom.Form,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Header,
		atom.Hr, atom.Li, atom.Main, atom.Nav, atom.Ol, atom.P, atom.Pre,
		atom.Section, atom.Summary, atom.Table, atom.Tr, atom.Ul, atom.Html:
		return true
	}
	return false
}
