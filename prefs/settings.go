package prefs

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ReaderSettings controls the reading view typography and palette.
type ReaderSettings struct {
	FontFamily  string  `json:"fontFamily"`
	FontSize    float64 `json:"fontSize"`
	LineHeight  float64 `json:"lineHeight"`
	MaxWidth    float64 `json:"maxWidth"`
	Theme       string  `json:"theme"`
	HideImages  bool    `json:"hideImages"`
	AutoRebuild bool    `json:"autoRebuild"`
}

// DefaultReaderSettings returns the settings used for absent keys.
func DefaultReaderSettings() ReaderSettings {
	return ReaderSettings{
		FontFamily:  "Georgia",
		FontSize:    18,
		LineHeight:  1.7,
		MaxWidth:    820,
		Theme:       "paper",
		HideImages:  false,
		AutoRebuild: true,
	}
}

// MergeReaderSettings overlays a stored settings object on the defaults key
// by key. Keys with an unusable value keep their default.
func MergeReaderSettings(raw json.RawMessage) ReaderSettings {
	rs := DefaultReaderSettings()
	if len(raw) == 0 {
		return rs
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return rs
	}
	str := func(key string, dst *string) {
		if v, ok := fields[key]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil {
				*dst = s
			}
		}
	}
	num := func(key string, dst *float64) {
		if v, ok := fields[key]; ok {
			if f, ok := parseNumber(v); ok {
				*dst = f
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := fields[key]; ok {
			var b bool
			if json.Unmarshal(v, &b) == nil {
				*dst = b
			}
		}
	}
	str("fontFamily", &rs.FontFamily)
	num("fontSize", &rs.FontSize)
	num("lineHeight", &rs.LineHeight)
	num("maxWidth", &rs.MaxWidth)
	str("theme", &rs.Theme)
	flag("hideImages", &rs.HideImages)
	flag("autoRebuild", &rs.AutoRebuild)
	return rs
}

// parseNumber accepts a JSON number or a numeric string, the two forms
// a range input can leave behind.
func parseNumber(v json.RawMessage) (float64, bool) {
	var f float64
	if json.Unmarshal(v, &f) == nil {
		return f, true
	}
	var s string
	if json.Unmarshal(v, &s) != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

// Theme is a reading palette.
type Theme struct {
	Name       string
	Background string
	Text       string
	Link       string
}

// Themes lists the known palettes.
var Themes = map[string]Theme{
	"paper": {Name: "paper", Background: "#f6f0e6", Text: "#1c1b1a", Link: "#8a5a2b"},
	"warm":  {Name: "warm", Background: "#f3eadc", Text: "#2b241d", Link: "#7a4e2a"},
	"sepia": {Name: "sepia", Background: "#f2e3c5", Text: "#3b2f1f", Link: "#7f5a35"},
	"night": {Name: "night", Background: "#141414", Text: "#e6e6e6", Link: "#9dc3ff"},
}

// ThemeNames is the display order of Themes.
var ThemeNames = []string{"paper", "warm", "sepia", "night"}

// ThemeFor returns the palette called name, falling back to paper.
func ThemeFor(name string) Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Themes["paper"]
}

// FontFamilyCSS is the font-family value for the settings: an empty family
// inherits the page font.
func (rs ReaderSettings) FontFamilyCSS() string {
	if strings.TrimSpace(rs.FontFamily) == "" {
		return "inherit"
	}
	return rs.FontFamily
}

// Range bounds a numeric reader setting.
type Range struct{ Min, Max float64 }

// Contains reports whether f lies within r.
func (r Range) Contains(f float64) bool { return f >= r.Min && f <= r.Max }

// Clamp pulls f into r.
func (r Range) Clamp(f float64) float64 { return math.Min(math.Max(f, r.Min), r.Max) }

// The ranges the panel offers.
var (
	FontSizeRange   = Range{Min: 14, Max: 24}
	LineHeightRange = Range{Min: 1.3, Max: 2.0}
	MaxWidthRange   = Range{Min: 560, Max: 980}
)

// Validate checks the numeric ranges the panel offers.
func (rs ReaderSettings) Validate() error {
	switch {
	case !FontSizeRange.Contains(rs.FontSize):
		return fmt.Errorf("prefs: font size %v out of range 14-24", rs.FontSize)
	case !LineHeightRange.Contains(rs.LineHeight):
		return fmt.Errorf("prefs: line height %v out of range 1.3-2.0", rs.LineHeight)
	case !MaxWidthRange.Contains(rs.MaxWidth):
		return fmt.Errorf("prefs: max width %v out of range 560-980", rs.MaxWidth)
	}
	return nil
}

// CustomState is the per-site custom CSS/JS entry.
type CustomState struct {
	Enabled bool   `json:"enabled"`
	CSS     string `json:"css"`
	JS      string `json:"js"`
}
