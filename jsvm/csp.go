package jsvm

import (
	"strings"

	"github.com/hazyhaar/swissutil/dom"
)

// Policies collects the Content-Security-Policy values that apply to doc:
// the response header, when known, and every meta http-equiv policy.
func Policies(doc *dom.Document, header string) []string {
	var out []string
	if strings.TrimSpace(header) != "" {
		out = append(out, header)
	}
	for _, m := range dom.QuerySelectorAll(doc.Node(), "meta[http-equiv]") {
		if strings.EqualFold(dom.Attr(m, "http-equiv"), "content-security-policy") {
			if c := strings.TrimSpace(dom.Attr(m, "content")); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

// ScriptBlocked reports whether any policy forbids an injected script.
// script-src is checked, falling back to default-src; a directive that
// allows neither 'unsafe-inline' nor blob: blocks.
func ScriptBlocked(policies []string) bool {
	for _, p := range policies {
		directives := parsePolicy(p)
		sources, ok := directives["script-src"]
		if !ok {
			sources, ok = directives["default-src"]
		}
		if !ok {
			continue
		}
		allowed := false
		for _, s := range sources {
			if s == "'unsafe-inline'" || s == "blob:" {
				allowed = true
				break
			}
		}
		if !allowed {
			return true
		}
	}
	return false
}

func parsePolicy(p string) map[string][]string {
	out := make(map[string][]string)
	for _, d := range strings.Split(p, ";") {
		fields := strings.Fields(strings.ToLower(d))
		if len(fields) == 0 {
			continue
		}
		if _, dup := out[fields[0]]; dup {
			continue
		}
		out[fields[0]] = fields[1:]
	}
	return out
}
