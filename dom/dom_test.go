package dom

import (
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/swissutil/loop"
)

func newDoc(t *testing.T, src string) (*Document, *loop.Manual) {
	t.Helper()
	m := loop.NewManual(time.Unix(0, 0))
	d, err := ParseString(src, "https://Example.com:8080/a/b", m)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d, m
}

func TestHostname(t *testing.T) {
	d, _ := newDoc(t, "<p>x</p>")
	if got := d.Hostname(); got != "example.com" {
		t.Errorf("got %q, want %q", got, "example.com")
	}
}

func TestInnerText(t *testing.T) {
	d, _ := newDoc(t, `<div id="x">  Hello   <b>big</b>
		world<script>var a = 1;</script><p>para</p><span style="display:none">gone</span>tail</div>`)
	got := InnerText(d.GetElementByID("x"))
	want := "Hello big world\npara\ntail"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if n := TextLength(d.GetElementByID("x")); n != len([]rune(want)) {
		t.Errorf("length = %d, want %d", n, len([]rune(want)))
	}
}

func TestTextLengthCountsUTF16Units(t *testing.T) {
	d, _ := newDoc(t, `<p id="p">ééé</p><p id="e"> a😀b </p>`)
	if n := TextLength(d.GetElementByID("p")); n != 3 {
		t.Errorf("got %d, want 3", n)
	}
	if n := TextLength(d.GetElementByID("e")); n != 4 {
		t.Errorf("astral rune: got %d, want 4", n)
	}
}

func TestQuerySelectorAllExcludesScope(t *testing.T) {
	d, _ := newDoc(t, `<div class="content" id="outer"><div class="content" id="inner"></div></div>`)
	outer := d.GetElementByID("outer")
	got := QuerySelectorAll(outer, ".content")
	if len(got) != 1 || Attr(got[0], "id") != "inner" {
		t.Fatalf("got %d matches, want only #inner", len(got))
	}
	all := QuerySelectorAll(d.Node(), "[role='main'], .content")
	if len(all) != 2 {
		t.Errorf("got %d, want 2", len(all))
	}
	if QuerySelectorAll(d.Node(), "a[[") != nil {
		t.Error("invalid selector should match nothing")
	}
}

func TestObserverBatchesOnMicrotask(t *testing.T) {
	d, m := newDoc(t, `<div id="root"></div>`)
	root := d.GetElementByID("root")

	var batches [][]*Record
	obs := d.NewObserver(func(recs []*Record, _ *Observer) { batches = append(batches, recs) })
	obs.Observe(d.Body(), ObserveOptions{ChildList: true, Subtree: true})

	m.Post(func() {
		d.AppendChild(root, d.CreateElement("p"))
		d.AppendChild(root, d.CreateElement("p"))
		d.SetAttr(root, "data-x", "1")
	})
	m.Flush()

	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Errorf("got %d records, want 2 (attributes not observed)", len(batches[0]))
	}
}

func TestObserverAttributeFilter(t *testing.T) {
	d, m := newDoc(t, `<div id="root"></div>`)
	root := d.GetElementByID("root")

	var names []string
	obs := d.NewObserver(func(recs []*Record, _ *Observer) {
		for _, r := range recs {
			names = append(names, r.AttributeName)
		}
	})
	obs.Observe(d.DocumentElement(), ObserveOptions{Attributes: true, Subtree: true, AttributeFilter: []string{"oncopy"}})

	m.Post(func() {
		d.SetAttr(root, "class", "a")
		d.SetAttr(root, "oncopy", "return false")
		d.RemoveAttr(root, "missing")
	})
	m.Flush()
	if strings.Join(names, ",") != "oncopy" {
		t.Errorf("got %v, want [oncopy]", names)
	}
}

func TestObserverSuppress(t *testing.T) {
	d, m := newDoc(t, `<div id="root"></div>`)
	root := d.GetElementByID("root")

	calls := 0
	obs := d.NewObserver(func([]*Record, *Observer) { calls++ })
	obs.Observe(d.Body(), ObserveOptions{ChildList: true, Subtree: true})

	m.Post(func() {
		obs.Suppress(func() { d.AppendChild(root, d.CreateElement("p")) })
	})
	m.Flush()
	if calls != 0 {
		t.Errorf("suppressed mutation delivered %d times", calls)
	}
}

func TestObserverIgnoresShadowTree(t *testing.T) {
	d, m := newDoc(t, `<div id="host"></div>`)
	sr := d.AttachShadow(d.GetElementByID("host"))

	calls := 0
	obs := d.NewObserver(func([]*Record, *Observer) { calls++ })
	obs.Observe(d.Body(), ObserveOptions{ChildList: true, Subtree: true})
	m.Post(func() { d.AppendChild(sr.Root, d.CreateElement("p")) })
	m.Flush()
	if calls != 0 {
		t.Errorf("shadow mutation reached light observer")
	}
}

func TestDispatchCaptureStopsInlineHandler(t *testing.T) {
	d, _ := newDoc(t, `<p id="p" oncopy="return false">x</p>`)
	p := d.GetElementByID("p")

	if d.Dispatch(&Event{Type: "copy", Target: p}) {
		t.Fatal("inline handler should cancel the event")
	}

	d.AddEventListener(d.Node(), "copy", true, func(e *Event) { e.StopImmediatePropagation() })
	if !d.Dispatch(&Event{Type: "copy", Target: p}) {
		t.Error("capture listener should keep the inline handler from running")
	}
}

func TestDispatchOrderAndRemove(t *testing.T) {
	d, _ := newDoc(t, `<div id="a"><span id="b">x</span></div>`)
	a, b := d.GetElementByID("a"), d.GetElementByID("b")

	var order []string
	d.AddEventListener(d.Node(), "click", true, func(*Event) { order = append(order, "doc-capture") })
	d.AddEventListener(a, "click", false, func(*Event) { order = append(order, "a-bubble") })
	l := d.AddEventListener(b, "click", false, func(*Event) { order = append(order, "b") })
	d.AddEventListener(d.Node(), "click", false, func(*Event) { order = append(order, "doc-bubble") })

	d.Click(b)
	if got := strings.Join(order, ","); got != "doc-capture,b,a-bubble,doc-bubble" {
		t.Errorf("got %q", got)
	}

	order = nil
	d.RemoveEventListener(l)
	d.RemoveEventListener(l)
	d.Click(b)
	if got := strings.Join(order, ","); got != "doc-capture,a-bubble,doc-bubble" {
		t.Errorf("after remove got %q", got)
	}
}

func TestHandlerBagReadOnly(t *testing.T) {
	d, _ := newDoc(t, `<p>x</p>`)
	bag := d.WindowHandlers()
	if err := bag.Set("oncopy", func(e *Event) { e.PreventDefault() }); err != nil {
		t.Fatalf("set: %v", err)
	}
	bag.Freeze("oncopy")
	if err := bag.Set("oncopy", nil); err != ErrReadOnly {
		t.Errorf("got %v, want ErrReadOnly", err)
	}
	if d.Dispatch(&Event{Type: "copy", Target: d.Body()}) {
		t.Error("window handler should cancel")
	}
}

func TestShadowEventsRetargetAndFocus(t *testing.T) {
	d, _ := newDoc(t, `<div id="host"></div>`)
	host := d.GetElementByID("host")
	sr := d.AttachShadow(host)
	btn := d.CreateElement("button")
	d.AppendChild(sr.Root, btn)

	var seen *Event
	var seenTarget bool
	d.AddEventListener(d.Node(), "click", false, func(e *Event) {
		seen = e
		seenTarget = e.Target == host
	})
	d.Click(btn)
	if seen == nil || !seenTarget {
		t.Error("document listener should see the host as target")
	}

	ta := d.CreateElement("textarea")
	d.AppendChild(sr.Root, ta)
	d.Focus(ta)
	if d.ActiveElement() != host {
		t.Error("document active element should be the host")
	}
	if sr.ActiveElement() != ta {
		t.Error("shadow active element should be the textarea")
	}
	d.Remove(ta)
	if sr.ActiveElement() != nil {
		t.Error("removing the focused node should clear focus")
	}
}

func TestRenderShadowDeclarative(t *testing.T) {
	d, _ := newDoc(t, `<div id="host"></div>`)
	sr := d.AttachShadow(d.GetElementByID("host"))
	p := d.CreateElement("p")
	d.SetText(p, "inside")
	d.AppendChild(sr.Root, p)

	out := d.String()
	if !strings.Contains(out, `<div id="host"><template shadowrootmode="open"><p>inside</p></template></div>`) {
		t.Errorf("unexpected render: %s", out)
	}
	if d.GetElementByID("host").FirstChild != nil {
		t.Error("render must not leave the template in the tree")
	}
}

func TestStyleProperty(t *testing.T) {
	d, _ := newDoc(t, `<p id="p" style="color: red">x</p>`)
	p := d.GetElementByID("p")
	d.SetStyleProperty(p, "--su-reader-size", "18px")
	d.SetStyleProperty(p, "color", "")
	if got := Attr(p, "style"); got != "--su-reader-size: 18px;" {
		t.Errorf("got %q", got)
	}
	if StyleProperty(p, "--su-reader-size") != "18px" {
		t.Error("property not readable")
	}
}

func TestFormValues(t *testing.T) {
	d, _ := newDoc(t, `<textarea id="t">default</textarea>
		<select id="s"><option value="a">A</option><option value="b" selected>B</option></select>
		<input id="c" type="checkbox" checked>`)
	if got := d.Value(d.GetElementByID("t")); got != "default" {
		t.Errorf("textarea got %q", got)
	}
	if got := d.Value(d.GetElementByID("s")); got != "b" {
		t.Errorf("select got %q", got)
	}
	d.SetValue(d.GetElementByID("t"), "typed")
	if got := d.Value(d.GetElementByID("t")); got != "typed" {
		t.Errorf("textarea after set got %q", got)
	}
	if !d.Checked(d.GetElementByID("c")) {
		t.Error("checkbox should start checked")
	}
}

func TestSelectionCollapsed(t *testing.T) {
	d, _ := newDoc(t, `<p id="p">hello</p>`)
	p := d.GetElementByID("p")
	d.Select(p.FirstChild, 2, p.FirstChild, 2)
	if !d.Selection().Collapsed() {
		t.Error("caret should be collapsed")
	}
	d.SelectNodeContents(p)
	if d.Selection().Collapsed() {
		t.Error("node contents selection should not be collapsed")
	}
	d.ClearSelection()
	if d.Selection() != nil {
		t.Error("selection should be cleared")
	}
}

func TestClone(t *testing.T) {
	d, _ := newDoc(t, `<div id="a" class="x"><p>one</p></div>`)
	a := d.GetElementByID("a")
	c := Clone(a)
	if c.Parent != nil {
		t.Error("clone should be detached")
	}
	if OuterHTML(c) != OuterHTML(a) {
		t.Errorf("got %q, want %q", OuterHTML(c), OuterHTML(a))
	}
	c.Attr[0].Val = "changed"
	if Attr(a, "id") != "a" {
		t.Error("clone shares attribute storage")
	}
}
