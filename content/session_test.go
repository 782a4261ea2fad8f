package content

import (
	"context"
	"strings"
	"testing"
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

const article = `<header>site</header><main><h1>Title</h1><p>%s</p></main><footer>f</footer>`

type fixture struct {
	sched *loop.Manual
	doc   *dom.Document
	store *prefs.MemoryStore
	rt    *message.Runtime
	sent  []message.Message
	s     *Session
}

func newFixture(t *testing.T, body string, values map[string]any) *fixture {
	t.Helper()
	f := &fixture{sched: loop.NewManual(time.Unix(1_700_000_000, 0))}
	doc, err := dom.ParseString("<html><head></head><body>"+body+"</body></html>", "https://news.example/story", f.sched)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	f.doc = doc
	f.store = prefs.NewMemoryStore()
	if values != nil {
		if err := f.store.Set(context.Background(), values); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	f.rt = message.NewRuntime()
	f.rt.SetHandler(func(_ context.Context, m message.Message, _ message.Sender) (message.Response, error) {
		f.sent = append(f.sent, m)
		return message.Response{OK: true}, nil
	})
	f.s = New(doc, Config{
		Store:    f.store,
		Runtime:  f.rt,
		TabID:    "tab-1",
		NewJobID: idgen.Sequence("job-"),
	})
	return f
}

func (f *fixture) init(t *testing.T) {
	t.Helper()
	var err error
	f.sched.Post(func() { err = f.s.Init(context.Background()) })
	f.sched.Flush()
	if err != nil {
		t.Fatalf("init: %v", err)
	}
}

func (f *fixture) set(t *testing.T, values map[string]any) {
	t.Helper()
	if err := f.store.Set(context.Background(), values); err != nil {
		t.Fatalf("set: %v", err)
	}
	f.sched.Flush()
}

func words(n int) string { return strings.Repeat("x", n) }

func TestInitDefaultsOff(t *testing.T) {
	f := newFixture(t, "<p>hello</p>", prefs.InstallDefaults())
	f.init(t)

	if f.s.Unlocker().Enabled() || f.s.Reader().Enabled() || f.s.Custom().Enabled() {
		t.Error("nothing should be enabled with install defaults")
	}
	if f.s.Panel().Host() == nil {
		t.Fatal("panel should be inserted")
	}
	if f.s.Panel().Visible() {
		t.Error("panel should stay hidden")
	}
	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sent))
	}
	if cr, ok := f.sent[0].(message.ContentReady); !ok || cr.URL != "https://news.example/story" {
		t.Errorf("got %#v, want content_ready", f.sent[0])
	}
}

func TestMainScenario(t *testing.T) {
	body := strings.Replace(article, "%s", words(600), 1)
	f := newFixture(t, body, map[string]any{prefs.KeyDefaultReading: true})
	f.init(t)

	r := f.s.Reader()
	if !r.Enabled() || !r.Ready() {
		t.Fatalf("reader enabled=%v ready=%v", r.Enabled(), r.Ready())
	}
	root := f.doc.DocumentElement()
	for _, c := range []string{reader.ClassReadingMode, reader.ClassReady} {
		if !dom.HasClass(root, c) {
			t.Errorf("root missing class %s", c)
		}
	}
	container := r.Container()
	if dom.QuerySelector(container, "main") == nil {
		t.Error("container should hold the main clone")
	}
	if dom.QuerySelector(container, "header, footer") != nil {
		t.Error("header and footer should be stripped")
	}
	if !f.s.Panel().Visible() {
		t.Error("panel should auto-show")
	}
	if got := f.s.Panel().StatusText(panel.CardReading); got != "Active" {
		t.Errorf("reading status = %q, want Active", got)
	}
}

func TestSiteOverrideWins(t *testing.T) {
	f := newFixture(t, "<p>x</p>", map[string]any{
		prefs.KeyDefaultSelection: true,
		prefs.KeySiteSelection:    map[string]bool{"news.example": false},
	})
	f.init(t)
	if f.s.Unlocker().Enabled() {
		t.Error("site entry false should beat default true")
	}

	f.set(t, map[string]any{prefs.KeySiteSelection: map[string]bool{}})
	if !f.s.Unlocker().Enabled() {
		t.Error("removing the entry should fall back to the default")
	}
	if f.doc.GetElementByID(unlock.StyleID) == nil {
		t.Error("unlock style missing")
	}
}

func TestLegacySeed(t *testing.T) {
	f := newFixture(t, "<p>x</p>", map[string]any{prefs.KeyEnabled: true})
	f.init(t)
	if !f.s.Unlocker().Enabled() {
		t.Fatal("legacy global toggle should enable selection for this host")
	}
	raw, _ := f.store.Get(context.Background(), prefs.KeySiteSelection)
	if _, ok := raw[prefs.KeySiteSelection]; ok {
		t.Error("legacy seed must not be written back")
	}
}

func TestPanelToggleWritesStore(t *testing.T) {
	f := newFixture(t, "<p>x</p>", nil)
	f.init(t)

	f.sched.Post(func() {
		toggle := dom.QuerySelector(f.s.Panel().Card(panel.CardSelection), ".su-toggle")
		f.doc.Toggle(toggle, true)
	})
	f.sched.Flush()

	p, err := prefs.Load(context.Background(), f.store)
	if err != nil {
		t.Fatal(err)
	}
	if !p.SiteSelection["news.example"] {
		t.Errorf("site selection = %v", p.SiteSelection)
	}
	if !f.s.Unlocker().Enabled() {
		t.Error("store notification should have enabled selection")
	}
	if got := f.s.Panel().StatusText(panel.CardSelection); got != "Active" {
		t.Errorf("status = %q, want Active", got)
	}
}

func TestCustomScriptSentOnce(t *testing.T) {
	f := newFixture(t, "<p>x</p>", map[string]any{
		prefs.KeySiteCustom: map[string]prefs.CustomState{"news.example": {Enabled: true, JS: "alert(1)"}},
	})
	f.init(t)

	f.set(t, map[string]any{prefs.KeySiteCustom: map[string]prefs.CustomState{"news.example": {Enabled: false, JS: "alert(1)"}}})
	f.set(t, map[string]any{prefs.KeySiteCustom: map[string]prefs.CustomState{"news.example": {Enabled: true, JS: "alert(1)"}}})

	n := 0
	for _, m := range f.sent {
		if a, ok := m.(message.ApplyCustomJS); ok {
			n++
			if a.Code != "alert(1)" {
				t.Errorf("code = %q", a.Code)
			}
		}
	}
	if n != 1 {
		t.Errorf("sent %d scripts, want 1", n)
	}
}

func TestCustomResultThroughBroadcast(t *testing.T) {
	f := newFixture(t, "<p>x</p>", map[string]any{
		prefs.KeySiteCustom: map[string]prefs.CustomState{"news.example": {Enabled: true, JS: "go()"}},
	})
	f.init(t)

	f.s.Broadcast().Post(message.CustomJSResult{Source: message.Source, JobID: "job-1", OK: true})
	f.sched.Flush()
	if st, msg := f.s.Custom().JSStatus(); st != custom.StatusSuccess || msg != custom.MsgSuccess {
		t.Errorf("got %s %q", st, msg)
	}
	if got := dom.TextContent(f.s.Panel().Find(".su-js-status")); got != custom.MsgSuccess {
		t.Errorf("panel status line = %q", got)
	}
}

func TestTogglePanelMessage(t *testing.T) {
	f := newFixture(t, "<p>x</p>", nil)
	f.init(t)

	resp, err := f.rt.SendToTab("tab-1", message.TogglePanel{})
	if err != nil || !resp.OK {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
	f.sched.Flush()
	if !f.s.Panel().Visible() {
		t.Error("panel should be visible after toggle")
	}
}

func TestReaderSettingsChange(t *testing.T) {
	body := strings.Replace(article, "%s", words(600), 1)
	f := newFixture(t, body, map[string]any{prefs.KeyDefaultReading: true})
	f.init(t)

	f.set(t, map[string]any{prefs.KeyReaderSettings: map[string]any{"theme": "night", "fontSize": 20}})
	root := f.doc.DocumentElement()
	if got := dom.StyleProperty(root, "--su-reader-bg"); got != "#141414" {
		t.Errorf("bg = %q, want #141414", got)
	}
	if got := dom.StyleProperty(root, "--su-reader-size"); got != "20px" {
		t.Errorf("size = %q, want 20px", got)
	}
	if rs := f.s.Reader().Settings(); rs.LineHeight != 1.7 {
		t.Errorf("missing keys should keep defaults, got %+v", rs)
	}
}

func TestInvalidatedContext(t *testing.T) {
	f := newFixture(t, "<p>x</p>", nil)
	f.init(t)
	f.rt.Invalidate()

	f.sched.Post(func() { f.s.SetSite(prefs.Selection, true) })
	f.sched.Flush()
	raw, _ := f.store.Get(context.Background())
	if len(raw) != 0 {
		t.Errorf("store written after invalidation: %v", raw)
	}

	f.set(t, map[string]any{prefs.KeyDefaultSelection: true})
	if f.s.Unlocker().Enabled() {
		t.Error("changes must be ignored after invalidation")
	}
}

func TestCloseStopsListening(t *testing.T) {
	f := newFixture(t, "<p>x</p>", nil)
	f.init(t)
	f.s.Close()
	f.set(t, map[string]any{prefs.KeyDefaultSelection: true})
	if f.s.Unlocker().Enabled() {
		t.Error("closed session should not react")
	}
	if _, err := f.rt.SendToTab("tab-1", message.TogglePanel{}); err == nil {
		t.Error("tab should be unregistered")
	}
}
