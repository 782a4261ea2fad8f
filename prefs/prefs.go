// Package prefs holds the persisted preferences of swissutil: global
// defaults, per-site overrides, custom CSS/JS entries and reader settings.
//
// Preferences are stored as a flat map of JSON values under fixed key names
// (see keys.go). A Store persists that map and notifies subscribers of every
// change; Preferences is the decoded, typed view of it.
package prefs

import (
	"encoding/json"
	"maps"
)

// Preferences is a decoded snapshot of the store.
type Preferences struct {
	Enabled          bool                   `json:"enabled"`
	ReadingMode      bool                   `json:"reading_mode"`
	PanelVisible     bool                   `json:"panel_visible"`
	DefaultSelection bool                   `json:"default_selection"`
	DefaultReading   bool                   `json:"default_reading"`
	SiteSelection    map[string]bool        `json:"site_selection"`
	SiteReading      map[string]bool        `json:"site_reading"`
	SiteCustom       map[string]CustomState `json:"site_custom"`
	Reader           ReaderSettings         `json:"reader"`
	CustomJob        string                 `json:"custom_job,omitempty"`
}

// Effective is what applies to one hostname after resolution.
type Effective struct {
	Selection bool `json:"selection"`
	Reading   bool `json:"reading"`
	// Custom is nil when the host has no entry.
	Custom *CustomState   `json:"custom"`
	Reader ReaderSettings `json:"reader"`
}

// Decode builds Preferences from raw store values. Missing or malformed
// values decode to their zero value; maps are never nil.
func Decode(raw map[string]json.RawMessage) Preferences {
	p := Preferences{
		SiteSelection: map[string]bool{},
		SiteReading:   map[string]bool{},
		SiteCustom:    map[string]CustomState{},
		Reader:        MergeReaderSettings(raw[KeyReaderSettings]),
	}
	p.Enabled = decodeTrue(raw[KeyEnabled])
	p.ReadingMode = decodeTrue(raw[KeyReadingMode])
	p.PanelVisible = decodeTrue(raw[KeyPanelVisible])
	p.DefaultSelection = decodeTrue(raw[KeyDefaultSelection])
	p.DefaultReading = decodeTrue(raw[KeyDefaultReading])
	p.SiteSelection = DecodeFlagMap(raw[KeySiteSelection])
	p.SiteReading = DecodeFlagMap(raw[KeySiteReading])
	p.SiteCustom = DecodeCustomMap(raw[KeySiteCustom])
	if v, ok := raw[KeyCustomJob]; ok {
		_ = json.Unmarshal(v, &p.CustomJob)
	}
	return p
}

// decodeTrue is strict: only a JSON true counts.
func decodeTrue(v json.RawMessage) bool {
	var b bool
	if len(v) == 0 || json.Unmarshal(v, &b) != nil {
		return false
	}
	return b
}

// DecodeFlag decodes a boolean value strictly.
func DecodeFlag(v json.RawMessage) bool { return decodeTrue(v) }

// DecodeFlagMap decodes a hostname → bool map. Entries that are not
// booleans are kept as false, so presence still overrides the default.
func DecodeFlagMap(v json.RawMessage) map[string]bool {
	out := map[string]bool{}
	var raw map[string]json.RawMessage
	if len(v) == 0 || json.Unmarshal(v, &raw) != nil {
		return out
	}
	for host, val := range raw {
		out[host] = decodeTrue(val)
	}
	return out
}

// DecodeCustomMap decodes a hostname → CustomState map.
func DecodeCustomMap(v json.RawMessage) map[string]CustomState {
	out := map[string]CustomState{}
	var raw map[string]json.RawMessage
	if len(v) == 0 || json.Unmarshal(v, &raw) != nil {
		return out
	}
	for host, val := range raw {
		var cs CustomState
		if json.Unmarshal(val, &cs) == nil {
			out[host] = cs
		}
	}
	return out
}

// SeedLegacy applies the legacy global flags for host: an empty selection
// map with the global toggle on (or an empty reading map with the global
// reading flag on) gains a true entry for host. It changes p only.
func (p *Preferences) SeedLegacy(host string) {
	if len(p.SiteSelection) == 0 && p.Enabled {
		p.SiteSelection[host] = true
	}
	if len(p.SiteReading) == 0 && p.ReadingMode {
		p.SiteReading[host] = true
	}
}

// Resolve returns the effective settings for host. A site entry, when
// present, always wins over the default.
func (p Preferences) Resolve(host string) Effective {
	eff := Effective{Selection: p.DefaultSelection, Reading: p.DefaultReading, Reader: p.Reader}
	if v, ok := p.SiteSelection[host]; ok {
		eff.Selection = v
	}
	if v, ok := p.SiteReading[host]; ok {
		eff.Reading = v
	}
	if cs, ok := p.SiteCustom[host]; ok {
		eff.Custom = &cs
	}
	return eff
}

// AnyEnabled reports whether at least one utility is on.
func (e Effective) AnyEnabled() bool {
	return e.Selection || e.Reading || (e.Custom != nil && e.Custom.Enabled)
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	p.SiteSelection = maps.Clone(p.SiteSelection)
	p.SiteReading = maps.Clone(p.SiteReading)
	p.SiteCustom = maps.Clone(p.SiteCustom)
	return p
}

// Encode returns the store values for p. The custom job marker is only
// included when set.
func (p Preferences) Encode() map[string]any {
	out := map[string]any{
		KeyEnabled:          p.Enabled,
		KeyReadingMode:      p.ReadingMode,
		KeyPanelVisible:     p.PanelVisible,
		KeyDefaultSelection: p.DefaultSelection,
		KeyDefaultReading:   p.DefaultReading,
		KeySiteSelection:    p.SiteSelection,
		KeySiteReading:      p.SiteReading,
		KeySiteCustom:       p.SiteCustom,
		KeyReaderSettings:   p.Reader,
	}
	if p.CustomJob != "" {
		out[KeyCustomJob] = p.CustomJob
	}
	return out
}
