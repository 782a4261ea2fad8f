package fetcher

import (
	"bytes"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Sufficiency thresholds.
const (
	MinHTMLBytes = 256
	MinTextChars = 200
	MinTextRatio = 0.10
)

// spaIndicators mark an HTML shell whose content is rendered by script.
var spaIndicators = [][]byte{
	[]byte(`<div id="root"></div>`),
	[]byte(`<div id="app"></div>`),
	[]byte(`<div id="__next"></div>`),
	[]byte("<noscript>you need to enable javascript"),
	[]byte("<noscript>enable javascript"),
}

// IsSufficient reports whether body has enough visible text relative to
// markup to be used without a browser.
func IsSufficient(body []byte) bool {
	if len(body) < MinHTMLBytes {
		return false
	}
	text, markup := textMarkupRatio(body)
	total := text + markup
	if total == 0 || text < MinTextChars {
		return false
	}
	if float64(text)/float64(total) < MinTextRatio {
		return false
	}
	lower := bytes.ToLower(body)
	for _, ind := range spaIndicators {
		if bytes.Contains(lower, ind) {
			return false
		}
	}
	return true
}

// textMarkupRatio counts visible non-space characters against the bytes of
// tags, comments, scripts and styles.
func textMarkupRatio(body []byte) (text, markup int) {
	z := html.NewTokenizer(bytes.NewReader(body))
	raw := 0 // inside script or style
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return text, markup
		case html.TextToken:
			b := z.Raw()
			if raw > 0 {
				markup += len(b)
				continue
			}
			for len(b) > 0 {
				r, size := utf8.DecodeRune(b)
				if !unicode.IsSpace(r) {
					text++
				}
				b = b[size:]
			}
		case html.StartTagToken, html.EndTagToken:
			markup += len(z.Raw())
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				if tt == html.StartTagToken {
					raw++
				} else if raw > 0 {
					raw--
				}
			}
		default:
			markup += len(z.Raw())
		}
	}
}
