package dom

import (
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var selectorCache sync.Map // string → cascadia.Sel or error

func compile(sel string) (cascadia.Sel, error) {
	if v, ok := selectorCache.Load(sel); ok {
		if err, isErr := v.(error); isErr {
			return nil, err
		}
		return v.(cascadia.Sel), nil
	}
	s, err := cascadia.Parse(sel)
	if err != nil {
		selectorCache.Store(sel, err)
		return nil, err
	}
	selectorCache.Store(sel, s)
	return s, nil
}

// QuerySelectorAll returns the descendants of scope matching sel in
// document order. scope itself is never part of the result and shadow trees
// are not entered. An invalid selector matches nothing.
func QuerySelectorAll(scope *html.Node, sel string) []*html.Node {
	s, err := compile(sel)
	if err != nil {
		return nil
	}
	return cascadia.QueryAll(scope, s)
}

// QuerySelector returns the first match of sel under scope, or nil.
func QuerySelector(scope *html.Node, sel string) *html.Node {
	s, err := compile(sel)
	if err != nil {
		return nil
	}
	return cascadia.Query(scope, s)
}

// Matches reports whether n matches sel.
func Matches(n *html.Node, sel string) bool {
	s, err := compile(sel)
	if err != nil {
		return false
	}
	return s.Match(n)
}

// Closest returns the nearest inclusive ancestor of n matching sel.
func Closest(n *html.Node, sel string) *html.Node {
	s, err := compile(sel)
	if err != nil {
		return nil
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && s.Match(p) {
			return p
		}
	}
	return nil
}
