package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/swissutil/custom"
	"github.com/hazyhaar/swissutil/dom"
	"github.com/hazyhaar/swissutil/live"
	"github.com/hazyhaar/swissutil/prefs"
	"github.com/hazyhaar/swissutil/reader"
)

var articleBody = strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)

const shell = `<!DOCTYPE html><html><head><title>App</title></head><body><div id="root"></div><script src="/app.js"></script></body></html>`

func serve(t *testing.T, pages map[string]string, headers map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hostOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u.Hostname()
}

func articlePage() string {
	return `<!DOCTYPE html><html><head><title>Fox</title></head><body>` +
		`<nav>menu</nav><article><h1>Fox</h1><p>` + articleBody + `</p></article></body></html>`
}

func open(t *testing.T, e *Engine, u string, opts OpenOptions) *Page {
	t.Helper()
	p, err := e.Open(context.Background(), u, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// eventually polls cond on the page loop.
func eventually(t *testing.T, p *Page, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var ok bool
		if err := p.Do(context.Background(), func() { ok = cond() }); err != nil {
			t.Fatal(err)
		}
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestReadExportsArticle(t *testing.T) {
	srv := serve(t, map[string]string{"/fox": articlePage()}, nil)
	e := New(Config{})
	p := open(t, e, srv.URL+"/fox", OpenOptions{})

	if p.Source() != SourceHTTP {
		t.Errorf("source: got %q, want %q", p.Source(), SourceHTTP)
	}
	art, err := p.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if art.Title != "Fox" {
		t.Errorf("title: got %q, want %q", art.Title, "Fox")
	}
	if !strings.Contains(art.Markdown, "# Fox") || !strings.Contains(art.Markdown, "quick brown fox") {
		t.Errorf("markdown: %q", art.Markdown)
	}
	if strings.Contains(art.Text, "menu") {
		t.Error("nav leaked into reading view")
	}

	stored, _ := prefs.Load(context.Background(), e.Store())
	if stored.SiteReading[p.Session().Host()] {
		t.Error("Read must not persist the reading toggle")
	}
}

func TestStoredDefaultsApplyOnOpen(t *testing.T) {
	srv := serve(t, map[string]string{"/fox": articlePage()}, nil)
	ctx := context.Background()
	e := New(Config{})
	if err := e.Install(ctx); err != nil {
		t.Fatal(err)
	}
	if err := prefs.SetDefault(ctx, e.Store(), prefs.Reading, true); err != nil {
		t.Fatal(err)
	}

	var events []reader.RebuildEvent
	sink := live.Callback{OnRebuild: func(ev reader.RebuildEvent) { events = append(events, ev) }}
	p := open(t, e, srv.URL+"/fox", OpenOptions{Sink: sink})

	eventually(t, p, func() bool {
		return p.Session().Reader().Ready() && p.Session().Panel().Visible()
	})
	var n int
	p.Do(ctx, func() { n = len(events) })
	if n == 0 {
		t.Error("sink saw no rebuild")
	}
}

func TestCustomScriptRunsInHeadlessWorld(t *testing.T) {
	srv := serve(t, map[string]string{"/fox": articlePage()}, nil)
	ctx := context.Background()
	e := New(Config{})
	host := hostOf(t, srv.URL)
	err := prefs.SetSiteCustom(ctx, e.Store(), host, prefs.CustomState{
		Enabled: true,
		JS:      `document.body.setAttribute("data-seen", "1")`,
	})
	if err != nil {
		t.Fatal(err)
	}

	p := open(t, e, srv.URL+"/fox", OpenOptions{Acquire: HTTP})
	eventually(t, p, func() bool {
		st, _ := p.Session().Custom().JSStatus()
		return st == custom.StatusSuccess
	})
	p.Do(ctx, func() {
		if dom.Attr(p.Document().Body(), "data-seen") != "1" {
			t.Error("script did not run")
		}
	})
}

func TestCustomScriptBlockedByHeaderCSP(t *testing.T) {
	srv := serve(t, map[string]string{"/fox": articlePage()}, map[string]string{
		"Content-Security-Policy": "default-src 'self'",
	})
	ctx := context.Background()
	e := New(Config{})
	host := hostOf(t, srv.URL)
	prefs.SetSiteCustom(ctx, e.Store(), host, prefs.CustomState{Enabled: true, JS: `alert(1)`})

	p := open(t, e, srv.URL+"/fox", OpenOptions{})
	eventually(t, p, func() bool {
		st, msg := p.Session().Custom().JSStatus()
		return st == custom.StatusError && msg == custom.MsgBlocked
	})
}

func TestShellWithoutBrowserFallsBackToHTTP(t *testing.T) {
	srv := serve(t, map[string]string{"/app": shell}, nil)
	e := New(Config{})
	p := open(t, e, srv.URL+"/app", OpenOptions{})
	if p.Source() != SourceHTTP {
		t.Errorf("source: got %q", p.Source())
	}
	if _, err := p.Read(context.Background()); !errors.Is(err, reader.ErrNotReady) {
		t.Errorf("got %v, want ErrNotReady", err)
	}
}

func TestBrowserModeNeedsBrowser(t *testing.T) {
	e := New(Config{})
	_, err := e.Open(context.Background(), "http://unused.example/", OpenOptions{Acquire: Browser})
	if !errors.Is(err, ErrNoBrowser) {
		t.Fatalf("got %v, want ErrNoBrowser", err)
	}
	_, err = e.Open(context.Background(), "http://unused.example/", OpenOptions{Live: true})
	if !errors.Is(err, ErrNoBrowser) {
		t.Fatalf("live: got %v, want ErrNoBrowser", err)
	}
}

func TestTogglePanel(t *testing.T) {
	srv := serve(t, map[string]string{"/fox": articlePage()}, nil)
	e := New(Config{})
	p := open(t, e, srv.URL+"/fox", OpenOptions{})
	if err := e.TogglePanel(p); err != nil {
		t.Fatal(err)
	}
	eventually(t, p, func() bool { return p.Session().Panel().Visible() })
}

func TestParseAcquire(t *testing.T) {
	for in, want := range map[string]Acquire{"": Auto, "auto": Auto, "http": HTTP, "browser": Browser} {
		got, err := ParseAcquire(in)
		if err != nil || got != want {
			t.Errorf("%q: got %v %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseAcquire("ftp"); err == nil {
		t.Error("expected error")
	}
}
