package panel

import (
	"math"
	"strconv"

	"golang.org/x/net/html"

	"github.com/hazyhaar/swissutil/dom"
	"github.com/hazyhaar/swissutil/prefs"
)

func (p *Panel) on(n *html.Node, typ string, fn func(*dom.Event)) {
	if n != nil {
		p.doc.AddEventListener(n, typ, false, fn)
	}
}

func (p *Panel) wire() {
	p.on(p.Find(".su-minimize"), "click", func(e *dom.Event) {
		e.StopPropagation()
		p.ToggleMinimized()
	})
	p.on(p.root, "click", func(e *dom.Event) {
		if !p.Minimized() || dom.Closest(e.Target, ".su-minimize") != nil {
			return
		}
		p.ToggleMinimized()
	})

	for _, c := range p.shadow.QuerySelectorAll(".su-utility") {
		id := dom.Attr(c, "data-utility")
		p.on(dom.QuerySelector(c, ".su-utility-header"), "click", func(*dom.Event) { p.SetOpen(id) })
		toggle := dom.QuerySelector(c, ".su-toggle")
		p.on(toggle, "change", func(*dom.Event) { p.toggled(id, p.doc.Checked(toggle)) })
	}

	p.wireReader()

	for _, sel := range []string{".su-css", ".su-js"} {
		p.on(p.Find(sel), "input", func(*dom.Event) { p.scheduleSave() })
	}
	p.on(p.Find(".su-apply"), "click", func(*dom.Event) {
		if p.saveTimer != nil {
			p.saveTimer.Stop()
			p.saveTimer = nil
		}
		p.saveCustom()
	})
}

func (p *Panel) toggled(id string, on bool) {
	a := p.cfg.Actions
	if a == nil {
		return
	}
	switch id {
	case CardSelection:
		a.SetSite(prefs.Selection, on)
	case CardReading:
		a.SetSite(prefs.Reading, on)
	case CardCustom:
		a.SetCustomEnabled(on)
	}
}

func (p *Panel) wireReader() {
	update := func(edit func(*prefs.ReaderSettings)) {
		if p.cfg.Actions != nil {
			p.cfg.Actions.UpdateReader(edit)
		}
	}
	selectCtl := func(key string, apply func(*prefs.ReaderSettings, string)) {
		el := p.Control(key)
		p.on(el, "change", func(*dom.Event) {
			v := p.doc.Value(el)
			update(func(rs *prefs.ReaderSettings) { apply(rs, v) })
		})
	}
	rangeCtl := func(key string, r prefs.Range, apply func(*prefs.ReaderSettings, float64)) {
		el := p.Control(key)
		p.on(el, "input", func(*dom.Event) {
			f, err := strconv.ParseFloat(p.doc.Value(el), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return
			}
			f = r.Clamp(f)
			update(func(rs *prefs.ReaderSettings) { apply(rs, f) })
		})
	}
	toggleCtl := func(key string, apply func(*prefs.ReaderSettings, bool)) {
		el := p.Control(key)
		p.on(el, "change", func(*dom.Event) {
			on := p.doc.Checked(el)
			update(func(rs *prefs.ReaderSettings) { apply(rs, on) })
		})
	}

	selectCtl("fontFamily", func(rs *prefs.ReaderSettings, v string) { rs.FontFamily = v })
	selectCtl("theme", func(rs *prefs.ReaderSettings, v string) { rs.Theme = v })
	rangeCtl("fontSize", prefs.FontSizeRange, func(rs *prefs.ReaderSettings, f float64) { rs.FontSize = f })
	rangeCtl("lineHeight", prefs.LineHeightRange, func(rs *prefs.ReaderSettings, f float64) { rs.LineHeight = math.Round(f*100) / 100 })
	rangeCtl("maxWidth", prefs.MaxWidthRange, func(rs *prefs.ReaderSettings, f float64) { rs.MaxWidth = f })
	toggleCtl("hideImages", func(rs *prefs.ReaderSettings, on bool) { rs.HideImages = on })
	toggleCtl("autoRebuild", func(rs *prefs.ReaderSettings, on bool) { rs.AutoRebuild = on })

	p.on(p.Find(".su-rebuild"), "click", func(*dom.Event) {
		if p.cfg.Actions != nil {
			p.cfg.Actions.RebuildReader()
		}
	})
}

// scheduleSave restarts the textarea debounce.
func (p *Panel) scheduleSave() {
	if p.saveTimer != nil {
		p.saveTimer.Stop()
	}
	p.saveTimer = p.sched.AfterFunc(p.cfg.SaveDelay, func() {
		p.saveTimer = nil
		p.saveCustom()
	})
}

func (p *Panel) saveCustom() {
	css, js := p.Find(".su-css"), p.Find(".su-js")
	if css == nil || js == nil || p.cfg.Actions == nil {
		return
	}
	p.cfg.Actions.SaveCustom(p.doc.Value(css), p.doc.Value(js))
}
