package custom

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/swissutil/dom"
	"github.com/hazyhaar/swissutil/idgen"
	"github.com/hazyhaar/swissutil/loop"
	"github.com/hazyhaar/swissutil/message"
	"github.com/hazyhaar/swissutil/prefs"
)

type harness struct {
	doc   *dom.Document
	sched *loop.Manual
	rt    *message.Runtime
	store *prefs.MemoryStore
	sent  []message.ApplyCustomJS
	inj   *Injector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{sched: loop.NewManual(time.Unix(1700000000, 0))}
	doc, err := dom.ParseString(`<html><head></head><body><p>page</p></body></html>`, "https://example.com/", h.sched)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	h.doc = doc
	h.rt = message.NewRuntime()
	h.rt.SetHandler(func(_ context.Context, m message.Message, _ message.Sender) (message.Response, error) {
		if a, ok := m.(message.ApplyCustomJS); ok {
			h.sent = append(h.sent, a)
		}
		return message.Response{OK: true}, nil
	})
	h.store = prefs.NewMemoryStore()
	h.inj = New(doc, Config{
		Runtime:  h.rt,
		Sender:   message.Sender{TabID: "t1", URL: doc.URL()},
		Store:    h.store,
		NewJobID: idgen.Sequence("job-"),
	})
	return h
}

func TestApplyCSSOnly(t *testing.T) {
	h := newHarness(t)
	h.inj.Apply(prefs.CustomState{Enabled: true, CSS: "body{color:red}"})

	el := h.inj.Style()
	if el == nil {
		t.Fatal("style element missing")
	}
	if el.Parent != h.doc.DocumentElement() {
		t.Error("style should be a child of the document element")
	}
	if got := dom.TextContent(el); got != "body{color:red}" {
		t.Errorf("got %q, want %q", got, "body{color:red}")
	}
	if len(h.sent) != 0 {
		t.Errorf("sent %d scripts, want 0", len(h.sent))
	}
	if st, _ := h.inj.JSStatus(); st != StatusIdle {
		t.Errorf("status = %s, want idle", st)
	}
}

func TestApplyWhitespaceCSSRemovesStyle(t *testing.T) {
	h := newHarness(t)
	h.inj.Apply(prefs.CustomState{Enabled: true, CSS: "p{}"})
	h.inj.Apply(prefs.CustomState{Enabled: true, CSS: "  \n"})
	if h.inj.Style() != nil {
		t.Error("blank css should remove the style element")
	}
}

func TestScriptSentOnce(t *testing.T) {
	h := newHarness(t)
	st := prefs.CustomState{Enabled: true, JS: "alert(1)"}

	h.inj.Apply(st)
	if len(h.sent) != 1 {
		t.Fatalf("sent %d, want 1", len(h.sent))
	}
	if h.sent[0].Code != "alert(1)" || h.sent[0].JobID != "job-1" {
		t.Errorf("got %+v", h.sent[0])
	}
	if s, msg := h.inj.JSStatus(); s != StatusPending || msg != MsgPending {
		t.Errorf("got %s %q, want pending %q", s, msg, MsgPending)
	}
	raw, _ := h.store.Get(context.Background(), prefs.KeyCustomJob)
	if string(raw[prefs.KeyCustomJob]) != `"job-1"` {
		t.Errorf("job marker = %s", raw[prefs.KeyCustomJob])
	}

	h.inj.Apply(prefs.CustomState{Enabled: false, JS: "alert(1)"})
	h.inj.Apply(st)
	h.inj.Apply(prefs.CustomState{Enabled: true, JS: "  alert(1)  "})
	if len(h.sent) != 1 {
		t.Errorf("sent %d after toggling, want 1", len(h.sent))
	}

	h.inj.Apply(prefs.CustomState{Enabled: true, JS: "alert(2)"})
	if len(h.sent) != 2 || h.sent[1].JobID != "job-2" {
		t.Errorf("changed script not sent: %+v", h.sent)
	}
}

func TestHandleResult(t *testing.T) {
	h := newHarness(t)
	h.inj.Apply(prefs.CustomState{Enabled: true, JS: "x()"})

	for _, m := range []message.Message{
		message.CustomJSResult{Source: "other", JobID: "job-1", OK: true},
		message.CustomJSResult{Source: message.Source, JobID: "job-9", OK: true},
		message.CustomJSResult{Source: message.Source, JobID: "", OK: true},
		message.TogglePanel{},
	} {
		h.inj.HandleResult(m)
		if s, _ := h.inj.JSStatus(); s != StatusPending {
			t.Fatalf("%+v changed status to %s", m, s)
		}
	}

	h.inj.HandleResult(message.CustomJSResult{Source: message.Source, JobID: "job-1", OK: false})
	if s, msg := h.inj.JSStatus(); s != StatusError || msg != MsgBlocked {
		t.Errorf("got %s %q, want error %q", s, msg, MsgBlocked)
	}
	h.inj.HandleResult(message.CustomJSResult{Source: message.Source, JobID: "job-1", OK: true})
	if s, msg := h.inj.JSStatus(); s != StatusSuccess || msg != MsgSuccess {
		t.Errorf("got %s %q, want success %q", s, msg, MsgSuccess)
	}
}

func TestDisableResetsStatus(t *testing.T) {
	h := newHarness(t)
	h.inj.Apply(prefs.CustomState{Enabled: true, CSS: "a{}", JS: "x()"})
	h.inj.Apply(prefs.CustomState{Enabled: false, CSS: "a{}", JS: "x()"})
	if h.inj.Style() != nil {
		t.Error("style should be removed")
	}
	if s, msg := h.inj.JSStatus(); s != StatusIdle || msg != "" {
		t.Errorf("got %s %q, want idle", s, msg)
	}
}

func TestInvalidatedRuntime(t *testing.T) {
	h := newHarness(t)
	h.rt.Invalidate()
	h.inj.Apply(prefs.CustomState{Enabled: true, JS: "x()"})
	if len(h.sent) != 0 {
		t.Error("nothing should reach the background")
	}
	raw, _ := h.store.Get(context.Background(), prefs.KeyCustomJob)
	if _, ok := raw[prefs.KeyCustomJob]; ok {
		t.Error("job marker should not be written")
	}
}

func TestOnChange(t *testing.T) {
	h := newHarness(t)
	calls := 0
	h.inj.cfg.OnChange = func() { calls++ }
	h.inj.Apply(prefs.CustomState{Enabled: true, JS: "x()"})
	h.inj.HandleResult(message.CustomJSResult{Source: message.Source, JobID: "job-1", OK: true})
	if calls != 2 {
		t.Errorf("got %d calls, want 2", calls)
	}
}
