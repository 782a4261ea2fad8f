package engine

import (
	"context"
	"fmt"

	"github.com/hazyhaar/swissutil/background"
	"github.com/hazyhaar/swissutil/browser"
	"github.com/hazyhaar/swissutil/content"
	"github.com/hazyhaar/swissutil/dom"
	"github.com/hazyhaar/swissutil/idgen"
	"github.com/hazyhaar/swissutil/jsvm"
	"github.com/hazyhaar/swissutil/live"
	"github.com/hazyhaar/swissutil/loop"
	"github.com/hazyhaar/swissutil/message"
	"github.com/hazyhaar/swissutil/panel"
	"github.com/hazyhaar/swissutil/reader"
)

// OpenOptions tune one Open call.
type OpenOptions struct {
	Acquire Acquire
	// Live keeps mirroring the Chrome tab into the page. It implies
	// Browser acquisition.
	Live bool
	// Sink receives rebuild events, and mirror updates of live pages.
	Sink live.Sink
}

// Source says where the page HTML came from.
type Source string

const (
	SourceHTTP    Source = "http"
	SourceBrowser Source = "browser"
)

// Page is one open page with its session.
type Page struct {
	url    string
	source Source
	tabID  string

	lp      *loop.Loop
	doc     *dom.Document
	session *content.Session
	tab     *browser.Tab
	mirror  *live.Mirror
	detach  func()
	cancel  context.CancelFunc
}

// URL returns the page URL after redirects.
func (p *Page) URL() string { return p.url }

// Source reports how the page was acquired.
func (p *Page) Source() Source { return p.source }

// TabID is the id the page is registered under.
func (p *Page) TabID() string { return p.tabID }

// Session returns the page session. Use it from Do only.
func (p *Page) Session() *content.Session { return p.session }

// Document returns the page. Use it from Do only.
func (p *Page) Document() *dom.Document { return p.doc }

// Do runs fn on the page loop and waits for it.
func (p *Page) Do(ctx context.Context, fn func()) error {
	return p.lp.Do(ctx, fn)
}

// Done is closed once the page loop has stopped.
func (p *Page) Done() <-chan struct{} { return p.lp.Done() }

// Open acquires pageURL and initialises its session.
func (e *Engine) Open(ctx context.Context, pageURL string, opts OpenOptions) (*Page, error) {
	if opts.Live {
		opts.Acquire = Browser
	}
	src, err := e.acquire(ctx, pageURL, opts.Acquire)
	if err != nil {
		return nil, err
	}

	pageCtx, cancel := context.WithCancel(context.Background())
	lp := loop.New(loop.WithLogger(e.log))
	go lp.Run(pageCtx)

	p := &Page{url: src.url, source: src.source, tabID: idgen.New(), lp: lp, tab: src.tab, cancel: cancel}
	fail := func(err error) (*Page, error) {
		p.Close()
		return nil, err
	}

	doc, err := dom.ParseString(src.html, src.url, lp)
	if err != nil {
		return fail(fmt.Errorf("engine: parse %s: %w", src.url, err))
	}
	p.doc = doc

	var world background.World
	if src.tab != nil {
		world = browser.NewMainWorld(src.tab, 0, e.log)
	} else {
		world = jsvm.New(doc, jsvm.WithCSPHeader(src.csp), jsvm.WithLogger(e.log))
	}
	bc := message.NewBroadcast(lp)
	p.detach = e.bg.AttachTab(background.Tab{ID: p.tabID, World: world, Broadcast: bc})

	rc := e.cfg.Reader
	if opts.Sink != nil {
		sink := opts.Sink
		prev := rc.OnRebuild
		rc.OnRebuild = func(ev reader.RebuildEvent) {
			if prev != nil {
				prev(ev)
			}
			if err := sink.Rebuild(ev); err != nil {
				e.log.Warn("engine: sink rebuild", "error", err)
			}
		}
	}
	p.session = content.New(doc, content.Config{
		Store:     e.cfg.Store,
		Runtime:   e.rt,
		Broadcast: bc,
		TabID:     p.tabID,
		Reader:    rc,
		SaveDelay: e.cfg.SaveDelay,
		Logger:    e.log.With("source", string(src.source)),
	})

	var initErr error
	if err := lp.Do(ctx, func() { initErr = p.session.Init(ctx) }); err != nil {
		return fail(err)
	}
	if initErr != nil {
		return fail(fmt.Errorf("engine: init session: %w", initErr))
	}

	if opts.Live {
		mc := live.Config{
			Debounce: e.cfg.MirrorDebounce,
			Keep:     []string{reader.ContainerID, panel.HostID},
			Logger:   e.log,
		}
		if opts.Sink != nil {
			sink := opts.Sink
			mc.OnUpdate = func(u live.Update) {
				if err := sink.Update(u); err != nil {
					e.log.Warn("engine: sink update", "error", err)
				}
			}
		}
		p.mirror = live.New(src.tab.Page, doc, mc)
		if err := p.mirror.Start(pageCtx); err != nil {
			return fail(err)
		}
	}

	e.log.Info("engine: page open", "url", src.url, "source", src.source, "tab", p.tabID)
	return p, nil
}

// Read forces the reading view on for this page, without touching the
// stored preferences, and exports it.
func (p *Page) Read(ctx context.Context) (*reader.Article, error) {
	var (
		art *reader.Article
		err error
	)
	if derr := p.Do(ctx, func() {
		r := p.session.Reader()
		if !r.Enabled() {
			r.SetEnabled(true)
		}
		art, err = r.Export()
	}); derr != nil {
		return nil, derr
	}
	return art, err
}

// Close stops mirroring, tears the session down and closes the tab.
func (p *Page) Close() error {
	if p.mirror != nil {
		p.mirror.Stop()
	}
	if p.session != nil {
		_ = p.lp.Do(context.Background(), p.session.Close)
	}
	if p.detach != nil {
		p.detach()
	}
	p.lp.Close()
	p.cancel()
	<-p.lp.Done()
	if p.tab != nil {
		return p.tab.Close()
	}
	return nil
}

type acquired struct {
	url    string
	html   string
	csp    string
	source Source
	tab    *browser.Tab
}

func (e *Engine) acquire(ctx context.Context, pageURL string, mode Acquire) (*acquired, error) {
	if err := e.cfg.Fetcher.Check(pageURL); err != nil {
		return nil, err
	}
	if mode != Browser {
		fp, err := e.cfg.Fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		src := &acquired{url: fp.FinalURL, html: string(fp.HTML), csp: fp.CSP, source: SourceHTTP}
		if fp.Sufficient || mode == HTTP {
			return src, nil
		}
		if e.cfg.Browser == nil {
			e.log.Warn("engine: page looks script-rendered, no browser to escalate to", "url", pageURL)
			return src, nil
		}
		e.log.Info("engine: escalating to browser", "url", pageURL)
	}
	return e.openTab(ctx, pageURL)
}

func (e *Engine) openTab(ctx context.Context, pageURL string) (*acquired, error) {
	if e.cfg.Browser == nil {
		return nil, ErrNoBrowser
	}
	if err := e.cfg.Browser.Start(ctx); err != nil {
		return nil, err
	}
	tab, err := e.cfg.Browser.Open(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	src, err := tab.HTML(ctx)
	if err != nil {
		tab.Close()
		return nil, err
	}
	u := pageURL
	if info, err := tab.Page.Info(); err == nil && info.URL != "" {
		u = info.URL
	}
	return &acquired{url: u, html: src, csp: tab.CSP, source: SourceBrowser, tab: tab}, nil
}
