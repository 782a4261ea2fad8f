// Package content runs the per-page side of swissutil: it reads the stored
// preferences, resolves them for the page's hostname and keeps the three
// page mutators and the control panel in line with them.
//
// Every Session method must run on the page loop. Store notifications and
// messages from the background arrive on other goroutines and are posted
// to the loop.
package content

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/hazyhaar/swissutil/custom"
	"github.com/hazyhaar/swissutil/dom"
	"github.com/hazyhaar/swissutil/idgen"
	"github.com/hazyhaar/swissutil/loop"
	"github.com/hazyhaar/swissutil/message"
	"github.com/hazyhaar/swissutil/panel"
	"github.com/hazyhaar/swissutil/prefs"
	"github.com/hazyhaar/swissutil/reader"
	"github.com/hazyhaar/swissutil/unlock"
)

// Config wires a Session.
type Config struct {
	Store   prefs.Store
	Runtime *message.Runtime
	// Broadcast is the page's window channel. Nil creates one.
	Broadcast *message.Broadcast
	// TabID registers the page for background messages. Empty generates one.
	TabID string

	Reader    reader.Config
	SaveDelay time.Duration
	NewJobID  idgen.Generator
	Logger    *slog.Logger
}

// Session binds one page to the preferences.
type Session struct {
	doc   *dom.Document
	sched loop.Scheduler
	cfg   Config
	log   *slog.Logger
	host  string

	unlock *unlock.Unlocker
	reader *reader.Mode
	custom *custom.Injector
	panel  *panel.Panel

	prefs  prefs.Preferences
	unsubs []func()
	closed bool
}

// New creates a Session. Nothing touches the page until Init.
func New(doc *dom.Document, cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store == nil {
		cfg.Store = prefs.NewMemoryStore()
	}
	if cfg.Runtime == nil {
		cfg.Runtime = message.NewRuntime()
	}
	if cfg.Broadcast == nil {
		cfg.Broadcast = message.NewBroadcast(doc.Scheduler())
	}
	if cfg.TabID == "" {
		cfg.TabID = idgen.New()
	}
	s := &Session{
		doc:   doc,
		sched: doc.Scheduler(),
		cfg:   cfg,
		host:  doc.Hostname(),
		prefs: prefs.Decode(nil),
	}
	s.log = cfg.Logger.With("host", s.host, "tab", cfg.TabID)

	s.unlock = unlock.New(doc, unlock.WithLogger(s.log))

	rc := cfg.Reader
	rc.Logger = s.log
	rc.PanelID = panel.HostID
	onRebuild := rc.OnRebuild
	rc.OnRebuild = func(ev reader.RebuildEvent) {
		if onRebuild != nil {
			onRebuild(ev)
		}
		s.refreshPanel()
	}
	s.reader = reader.New(doc, rc)

	s.custom = custom.New(doc, custom.Config{
		Runtime:  cfg.Runtime,
		Sender:   s.sender(),
		Store:    cfg.Store,
		NewJobID: cfg.NewJobID,
		Logger:   s.log,
		OnChange: s.refreshPanel,
	})
	s.panel = panel.New(doc, panel.Config{Actions: s, SaveDelay: cfg.SaveDelay, Logger: s.log})
	return s
}

func (s *Session) sender() message.Sender {
	return message.Sender{TabID: s.cfg.TabID, URL: s.doc.URL()}
}

// Document returns the page.
func (s *Session) Document() *dom.Document { return s.doc }

// Host returns the page hostname.
func (s *Session) Host() string { return s.host }

// TabID returns the id the page is registered under.
func (s *Session) TabID() string { return s.cfg.TabID }

// Unlocker returns the selection mutator.
func (s *Session) Unlocker() *unlock.Unlocker { return s.unlock }

// Reader returns the reading mode mutator.
func (s *Session) Reader() *reader.Mode { return s.reader }

// Custom returns the custom CSS/JS mutator.
func (s *Session) Custom() *custom.Injector { return s.custom }

// Panel returns the control panel.
func (s *Session) Panel() *panel.Panel { return s.panel }

// Broadcast returns the page's window channel.
func (s *Session) Broadcast() *message.Broadcast { return s.cfg.Broadcast }

// Preferences returns the session's view of the store, legacy seed
// included.
func (s *Session) Preferences() prefs.Preferences { return s.prefs.Clone() }

// Effective returns the settings resolved for the page.
func (s *Session) Effective() prefs.Effective { return s.prefs.Resolve(s.host) }

// Init inserts the panel, applies the stored state and starts listening
// for store changes, results and background messages.
func (s *Session) Init(ctx context.Context) error {
	s.panel.Ensure()
	if err := s.loadState(ctx); err != nil {
		return err
	}

	s.unsubs = append(s.unsubs,
		s.cfg.Broadcast.Subscribe(s.custom.HandleResult),
		s.cfg.Store.Subscribe(func(cs prefs.ChangeSet) {
			s.sched.Post(func() { s.onStoreChange(cs) })
		}),
		s.cfg.Runtime.RegisterTab(s.cfg.TabID, s.receive),
	)

	if _, err := s.cfg.Runtime.Send(ctx, s.sender(), message.ContentReady{URL: s.doc.URL()}); err != nil {
		s.log.Debug("session: content_ready not delivered", "error", err)
	}
	return nil
}

func (s *Session) loadState(ctx context.Context) error {
	if !s.cfg.Runtime.Valid() {
		return nil
	}
	p, err := prefs.Load(ctx, s.cfg.Store)
	if err != nil {
		if errors.Is(err, prefs.ErrClosed) {
			return nil
		}
		return err
	}
	p.SeedLegacy(s.host)
	s.prefs = p
	s.reader.SetSettings(p.Reader)
	s.applyStored()
	return nil
}

// applyStored re-applies every mutator from the current preferences.
func (s *Session) applyStored() {
	eff := s.prefs.Resolve(s.host)
	cs := s.custom.State()
	if eff.Custom != nil {
		cs = *eff.Custom
	}
	if eff.Selection || eff.Reading || cs.Enabled {
		s.panel.SetVisible(true)
	}
	s.unlock.SetEnabled(eff.Selection)
	s.reader.SetEnabled(eff.Reading)
	s.custom.Apply(cs)
	s.refreshPanel()
	s.log.Info("session: state applied",
		"selection", eff.Selection, "reading", eff.Reading, "custom", cs.Enabled)
}

func (s *Session) onStoreChange(cs prefs.ChangeSet) {
	if s.closed || !s.cfg.Runtime.Valid() {
		return
	}
	apply := false
	if c, ok := cs[prefs.KeyDefaultSelection]; ok {
		s.prefs.DefaultSelection = prefs.DecodeFlag(c.New)
		apply = true
	}
	if c, ok := cs[prefs.KeyDefaultReading]; ok {
		s.prefs.DefaultReading = prefs.DecodeFlag(c.New)
		apply = true
	}
	if c, ok := cs[prefs.KeySiteSelection]; ok {
		s.prefs.SiteSelection = prefs.DecodeFlagMap(c.New)
		apply = true
	}
	if c, ok := cs[prefs.KeySiteReading]; ok {
		s.prefs.SiteReading = prefs.DecodeFlagMap(c.New)
		apply = true
	}
	if c, ok := cs[prefs.KeySiteCustom]; ok {
		s.prefs.SiteCustom = prefs.DecodeCustomMap(c.New)
		next := s.custom.State()
		if st, ok := s.prefs.SiteCustom[s.host]; ok {
			next = st
		}
		s.custom.Apply(next)
	}
	if c, ok := cs[prefs.KeyReaderSettings]; ok {
		s.prefs.Reader = prefs.MergeReaderSettings(c.New)
		s.reader.UpdateSettings(s.prefs.Reader)
		s.refreshPanel()
	}
	if apply {
		s.applyStored()
	}
}

// receive handles messages from the background. It runs on the caller's
// goroutine and hands the work to the loop.
func (s *Session) receive(m message.Message) message.Response {
	switch m.(type) {
	case message.TogglePanel:
		s.sched.Post(s.TogglePanel)
		return message.Response{OK: true}
	case message.ContentReady, message.ApplyCustomJS, message.CustomJSResult:
	}
	return message.Response{OK: false}
}

// TogglePanel flips the panel's visibility.
func (s *Session) TogglePanel() {
	s.panel.Toggle()
	s.log.Debug("session: panel toggled", "visible", s.panel.Visible())
}

func (s *Session) refreshPanel() {
	status, msg := s.custom.JSStatus()
	s.panel.Refresh(panel.State{
		Selection:   s.unlock.Enabled(),
		Reading:     s.reader.Enabled(),
		ReaderReady: s.reader.Ready(),
		Custom:      s.custom.State(),
		JSStatus:    status,
		JSMessage:   msg,
		Reader:      s.reader.Settings(),
	})
}

// Close stops listening. The page keeps its current state.
func (s *Session) Close() {
	s.closed = true
	for _, u := range s.unsubs {
		u()
	}
	s.unsubs = nil
}

// SetSite implements panel.Actions. The change applies when the store
// notifies it back.
func (s *Session) SetSite(u prefs.Utility, on bool) {
	m := s.prefs.SiteSelection
	if u == prefs.Reading {
		m = s.prefs.SiteReading
	}
	next := maps.Clone(m)
	next[s.host] = on
	s.write(map[string]any{u.SiteKey(): next})
}

// SetCustomEnabled implements panel.Actions.
func (s *Session) SetCustomEnabled(on bool) {
	next := s.custom.State()
	next.Enabled = on
	s.storeCustom(next)
	s.custom.Apply(next)
}

// SaveCustom implements panel.Actions.
func (s *Session) SaveCustom(css, js string) {
	next := prefs.CustomState{Enabled: s.custom.Enabled(), CSS: css, JS: js}
	s.storeCustom(next)
	if next.Enabled {
		s.custom.Apply(next)
	}
}

func (s *Session) storeCustom(st prefs.CustomState) {
	s.prefs.SiteCustom = maps.Clone(s.prefs.SiteCustom)
	s.prefs.SiteCustom[s.host] = st
	s.write(map[string]any{prefs.KeySiteCustom: s.prefs.SiteCustom})
}

// UpdateReader implements panel.Actions.
func (s *Session) UpdateReader(edit func(*prefs.ReaderSettings)) {
	rs := s.prefs.Reader
	edit(&rs)
	s.prefs.Reader = rs
	s.write(map[string]any{prefs.KeyReaderSettings: rs})
	s.reader.UpdateSettings(rs)
	s.refreshPanel()
}

// RebuildReader implements panel.Actions.
func (s *Session) RebuildReader() {
	if !s.reader.Enabled() {
		return
	}
	s.reader.Rebuild()
}

func (s *Session) write(values map[string]any) {
	if !s.cfg.Runtime.Valid() {
		return
	}
	if err := s.cfg.Store.Set(context.Background(), values); err != nil {
		s.log.Warn("session: store write failed", "error", err)
	}
}
