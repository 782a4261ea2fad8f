package live

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/swissutil/dom"
	"github.com/hazyhaar/swissutil/loop"
	"github.com/hazyhaar/swissutil/reader"
)

func payload(t *testing.T, u Update) string {
	t.Helper()
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func setup(t *testing.T, body string) (*dom.Document, *loop.Manual) {
	t.Helper()
	m := loop.NewManual(time.Unix(1_700_000_000, 0))
	d, err := dom.ParseString("<html><head></head><body>"+body+"</body></html>", "https://app.example/feed", m)
	if err != nil {
		t.Fatal(err)
	}
	return d, m
}

func TestReceiveReplacesBodyKeepingOwnNodes(t *testing.T) {
	d, m := setup(t, `<p id="old">old</p><div id="keep-me">panel</div>`)
	var got []Update
	mr := New(nil, d, Config{Keep: []string{"keep-me"}, OnUpdate: func(u Update) { got = append(got, u) }})

	if err := mr.Receive(payload(t, Update{Seq: 1, HTML: `<p id="new">new</p><div id="keep-me">page copy</div>`})); err != nil {
		t.Fatal(err)
	}
	m.Flush()

	if d.GetElementByID("old") != nil {
		t.Error("old content still present")
	}
	if d.GetElementByID("new") == nil {
		t.Error("new content missing")
	}
	keep := d.GetElementByID("keep-me")
	if keep == nil || dom.TextContent(keep) != "panel" {
		t.Errorf("kept node replaced: %v", keep)
	}
	if first := d.Body().FirstChild; dom.Attr(first, "id") != "new" {
		t.Errorf("new content should precede kept nodes, first is %q", dom.Attr(first, "id"))
	}
	if len(got) != 1 {
		t.Errorf("updates: got %d, want 1", len(got))
	}
}

func TestReceiveDropsStaleSeq(t *testing.T) {
	d, m := setup(t, `<p>start</p>`)
	mr := New(nil, d, Config{})
	mr.Receive(payload(t, Update{Seq: 2, HTML: `<p id="two">two</p>`}))
	mr.Receive(payload(t, Update{Seq: 1, HTML: `<p id="one">one</p>`}))
	m.Flush()
	if d.GetElementByID("two") == nil || d.GetElementByID("one") != nil {
		t.Errorf("body = %q", dom.InnerHTML(d.Body()))
	}
}

func TestReceiveBadPayload(t *testing.T) {
	d, _ := setup(t, "")
	if err := New(nil, d, Config{}).Receive("{"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestUpdateDrivesReaderRebuild(t *testing.T) {
	d, m := setup(t, `<div id="spinner">loading</div>`)
	var events []reader.RebuildEvent
	mode := reader.New(d, reader.Config{OnRebuild: func(ev reader.RebuildEvent) { events = append(events, ev) }})
	m.Post(func() { mode.SetEnabled(true) })
	m.Flush()
	if mode.Ready() {
		t.Fatal("spinner page should have no content")
	}

	mr := New(nil, d, Config{Keep: []string{reader.ContainerID}})
	mr.Receive(payload(t, Update{Seq: 1, HTML: `<article>` + strings.Repeat("word ", 120) + `</article>`}))
	m.Flush()
	m.Advance(time.Second)

	if !mode.Ready() {
		t.Fatal("reader did not pick up mirrored content")
	}
	last := events[len(events)-1]
	if !last.Scheduled || last.Source != "article" {
		t.Errorf("last rebuild = %+v", last)
	}
	if d.GetElementByID(reader.ContainerID) == nil {
		t.Error("reader container lost")
	}
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLines(&buf)
	s.Update(Update{Seq: 3, URL: "https://a.example/", HTML: "<p>x</p>"})
	s.Rebuild(reader.RebuildEvent{Host: "a.example", Ready: true, TextChars: 420})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(lines))
	}
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "update" || !strings.Contains(string(env.Data), `"bytes":8`) {
		t.Errorf("line 0 = %s", lines[0])
	}
	if err := json.Unmarshal([]byte(lines[1]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "rebuild" || !strings.Contains(string(env.Data), `"text_chars":420`) {
		t.Errorf("line 1 = %s", lines[1])
	}
}
