package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hazyhaar/swissutil/prefs"
)

// theme holds the styles of the prefs output.
type theme struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Subtle  lipgloss.Style
	On      lipgloss.Style
	Off     lipgloss.Style
	Inherit lipgloss.Style
	Box     lipgloss.Style
}

func newTheme() *theme {
	var (
		text   = lipgloss.Color("#ffffff")
		muted  = lipgloss.Color("#909090")
		accent = lipgloss.Color("#4ade80")
		errc   = lipgloss.Color("#f87171")
		border = lipgloss.Color("#333333")
	)
	badge := lipgloss.NewStyle().Padding(0, 1).Bold(true)
	return &theme{
		Title:   lipgloss.NewStyle().Foreground(accent).Bold(true),
		Label:   lipgloss.NewStyle().Foreground(text).Width(18),
		Subtle:  lipgloss.NewStyle().Foreground(muted),
		On:      badge.Foreground(lipgloss.Color("#0a0a0b")).Background(accent),
		Off:     badge.Foreground(text).Background(errc),
		Inherit: badge.Foreground(muted).Background(lipgloss.Color("#2d2d2d")),
		Box:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1),
	}
}

func (t *theme) flag(on bool) string {
	if on {
		return t.On.Render("on")
	}
	return t.Off.Render("off")
}

// override renders a site entry, or "default" when the host has none.
func (t *theme) override(m map[string]bool, host string) string {
	v, ok := m[host]
	if !ok {
		return t.Inherit.Render("default")
	}
	return t.flag(v)
}

func (t *theme) row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, t.Label.Render(label), value)
}

func (t *theme) renderPrefs(p prefs.Preferences) string {
	var b strings.Builder

	b.WriteString(t.Title.Render("Defaults") + "\n")
	b.WriteString(t.Box.Render(strings.Join([]string{
		t.row("selection", t.flag(p.DefaultSelection)),
		t.row("reading", t.flag(p.DefaultReading)),
	}, "\n")) + "\n")

	b.WriteString(t.Title.Render("Sites") + "\n")
	hosts := siteHosts(p)
	if len(hosts) == 0 {
		b.WriteString(t.Subtle.Render("  no site overrides") + "\n")
	} else {
		rows := make([]string, 0, len(hosts)+1)
		rows = append(rows, t.Subtle.Render(fmt.Sprintf("%-18s%-12s%-12s%s", "host", "selection", "reading", "custom")))
		for _, h := range hosts {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
				t.Label.Render(h),
				lipgloss.NewStyle().Width(12).Render(t.override(p.SiteSelection, h)),
				lipgloss.NewStyle().Width(12).Render(t.override(p.SiteReading, h)),
				t.custom(p.SiteCustom, h),
			))
		}
		b.WriteString(t.Box.Render(strings.Join(rows, "\n")) + "\n")
	}

	b.WriteString(t.renderReader(p.Reader))
	return b.String()
}

func (t *theme) custom(m map[string]prefs.CustomState, host string) string {
	cs, ok := m[host]
	if !ok {
		return t.Subtle.Render("-")
	}
	info := t.Subtle.Render(fmt.Sprintf(" css %dB, js %dB", len(cs.CSS), len(cs.JS)))
	return t.flag(cs.Enabled) + info
}

func (t *theme) renderReader(rs prefs.ReaderSettings) string {
	num := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	family := rs.FontFamily
	if strings.TrimSpace(family) == "" {
		family = "inherit"
	}
	return t.Title.Render("Reader") + "\n" + t.Box.Render(strings.Join([]string{
		t.row("font", family+" "+num(rs.FontSize)+"px"),
		t.row("line height", num(rs.LineHeight)),
		t.row("max width", num(rs.MaxWidth)+"px"),
		t.row("theme", prefs.ThemeFor(rs.Theme).Name),
		t.row("hide images", t.flag(rs.HideImages)),
		t.row("auto rebuild", t.flag(rs.AutoRebuild)),
	}, "\n")) + "\n"
}

func (t *theme) renderEffective(host string, eff prefs.Effective) string {
	rows := []string{
		t.row("selection", t.flag(eff.Selection)),
		t.row("reading", t.flag(eff.Reading)),
	}
	if eff.Custom != nil {
		rows = append(rows, t.row("custom", t.custom(map[string]prefs.CustomState{host: *eff.Custom}, host)))
	} else {
		rows = append(rows, t.row("custom", t.Subtle.Render("-")))
	}
	return t.Title.Render(host) + "\n" + t.Box.Render(strings.Join(rows, "\n")) + "\n"
}

// siteHosts lists every host with any site entry, sorted.
func siteHosts(p prefs.Preferences) []string {
	set := make(map[string]struct{})
	for h := range p.SiteSelection {
		set[h] = struct{}{}
	}
	for h := range p.SiteReading {
		set[h] = struct{}{}
	}
	for h := range p.SiteCustom {
		set[h] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}
