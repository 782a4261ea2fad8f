package reader

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/swissutil/dom"
)

const styleText = `
html.reading-mode,
html.reading-mode body {
  background: var(--su-reader-bg) !important;
}
html.reading-mode body {
  color: var(--su-reader-text) !important;
}
html.reading-mode #swiss-utility-reader {
  display: block !important;
  max-width: var(--su-reader-width);
  margin: 32px auto;
  padding: 0 24px 48px;
  font-family: var(--su-reader-font) !important;
  font-size: var(--su-reader-size) !important;
  line-height: var(--su-reader-line) !important;
  color: var(--su-reader-text) !important;
}
html.reading-mode #swiss-utility-reader * {
  font-family: inherit !important;
  font-size: inherit !important;
  line-height: inherit !important;
}
html.reading-mode #swiss-utility-reader :is(h1, h2, h3, h4, h5, h6) {
  line-height: 1.2 !important;
}
html.reading-mode #swiss-utility-reader a {
  color: var(--su-reader-link) !important;
}
html.reading-mode #swiss-utility-reader :is(img, video, iframe, canvas) {
  max-width: 100% !important;
  height: auto !important;
}
html.reading-mode.reader-hide-images #swiss-utility-reader :is(img, video, iframe, canvas) {
  display: none !important;
}
html.reading-mode.reader-ready body > *:not(#swiss-utility-reader):not(#swiss-utility-panel) {
  display: none !important;
}
`

func (m *Mode) addStyle() {
	if m.style != nil {
		return
	}
	el := m.doc.CreateElement("style")
	m.doc.SetAttr(el, "id", StyleID)
	m.doc.SetText(el, styleText)
	target := m.doc.Head()
	if target == nil {
		target = m.doc.DocumentElement()
	}
	m.doc.AppendChild(target, el)
	m.style = el
}

func (m *Mode) removeStyle() {
	if m.style == nil {
		return
	}
	m.doc.Remove(m.style)
	m.style = nil
}

// Hidden reports whether the immersive rule currently hides the body
// child n.
func (m *Mode) Hidden(n *html.Node) bool {
	root := m.doc.DocumentElement()
	if m.style == nil || !dom.HasClass(root, ClassReadingMode) || !dom.HasClass(root, ClassReady) {
		return false
	}
	if n.Parent != m.doc.Body() || n.Type != html.ElementNode {
		return false
	}
	id := dom.Attr(n, "id")
	return id != ContainerID && id != m.cfg.PanelID
}
