package reader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/swissutil/dom"
)

// ErrNotReady is returned by Export when the view holds no content.
var ErrNotReady = errors.New("reader: no content detected")

// Article is the exported reading view.
type Article struct {
	URL      string `json:"url"`
	Host     string `json:"host"`
	Title    string `json:"title"`
	Chars    int    `json:"chars"`
	Text     string `json:"text"`
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
}

var (
	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// Export converts the current view to text, sanitised HTML and Markdown.
func (m *Mode) Export() (*Article, error) {
	c := m.Container()
	if !m.ready || c == nil {
		return nil, ErrNotReady
	}
	raw := dom.InnerHTML(c)
	md, err := mdConverter.ConvertString(raw, converter.WithDomain(m.doc.URL()))
	if err != nil {
		return nil, fmt.Errorf("reader: markdown: %w", err)
	}
	return &Article{
		URL:      m.doc.URL(),
		Host:     m.doc.Hostname(),
		Title:    Title(m.doc),
		Chars:    dom.TextLength(c),
		Text:     dom.InnerText(c),
		HTML:     sanitizer.Sanitize(raw),
		Markdown: strings.TrimSpace(md),
	}, nil
}

// Title returns the page title, falling back to the first heading of the
// reading view.
func Title(doc *dom.Document) string {
	q := goquery.NewDocumentFromNode(doc.Node())
	if t := strings.TrimSpace(q.Find("head title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(q.Find("#" + ContainerID + " h1").First().Text())
}
