package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is one Chrome page opened by a Manager.
type Tab struct {
	Page *rod.Page
	URL  string
	// CSP is the Content-Security-Policy header of the main document, when
	// the navigation response carried one.
	CSP string

	router *rod.HijackRouter
}

// Open creates a tab, navigates to pageURL and waits for the load event.
// A load timeout is logged, not returned: the page is usable as is.
func (m *Manager) Open(ctx context.Context, pageURL string) (*Tab, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if *m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{Page: page, URL: pageURL}
	if len(m.cfg.ResourceBlocking) > 0 {
		t.router = blockResources(page, m.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigateTimeout)
	defer cancel()

	csp := t.captureCSP(navCtx)
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	t.CSP = csp()
	m.cfg.Logger.Debug("browser: tab opened", "url", pageURL, "csp", t.CSP != "")
	return t, nil
}

// captureCSP listens for the main document response. The returned func
// reports the header seen so far.
func (t *Tab) captureCSP(ctx context.Context) func() string {
	var csp string
	done := make(chan struct{})
	wait := t.Page.Context(ctx).EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		for k, v := range e.Response.Headers {
			if strings.EqualFold(k, "content-security-policy") {
				csp = v.Str()
			}
		}
		return true
	})
	go func() {
		wait()
		close(done)
	}()
	return func() string {
		select {
		case <-done:
			return csp
		default:
			return ""
		}
	}
}

// HTML serialises the live DOM as outer HTML.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		_ = t.router.Stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
