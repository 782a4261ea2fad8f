package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Utility names a per-site toggle.
type Utility string

const (
	Selection Utility = "selection"
	Reading   Utility = "reading"
)

// ParseUtility accepts "selection" or "reading".
func ParseUtility(s string) (Utility, error) {
	switch Utility(strings.ToLower(strings.TrimSpace(s))) {
	case Selection:
		return Selection, nil
	case Reading:
		return Reading, nil
	}
	return "", fmt.Errorf("prefs: unknown utility %q (want selection or reading)", s)
}

func (u Utility) defaultKey() string {
	if u == Reading {
		return KeyDefaultReading
	}
	return KeyDefaultSelection
}

// SiteKey is the store key of the utility's per-site map.
func (u Utility) SiteKey() string {
	if u == Reading {
		return KeySiteReading
	}
	return KeySiteSelection
}

// Install writes the install defaults when the store has never been
// initialised. It reports whether it wrote anything.
func Install(ctx context.Context, s Store) (bool, error) {
	raw, err := s.Get(ctx, KeyDefaultSelection)
	if err != nil {
		return false, err
	}
	if _, ok := raw[KeyDefaultSelection]; ok {
		return false, nil
	}
	if err := s.Set(ctx, InstallDefaults()); err != nil {
		return false, err
	}
	return true, nil
}

// SetGlobal sets the legacy global toggle.
func SetGlobal(ctx context.Context, s Store, on bool) error {
	return s.Set(ctx, map[string]any{KeyEnabled: on})
}

// SetDefault sets the default of a utility.
func SetDefault(ctx context.Context, s Store, u Utility, on bool) error {
	return s.Set(ctx, map[string]any{u.defaultKey(): on})
}

// SetSite overrides a utility for host.
func SetSite(ctx context.Context, s Store, u Utility, host string, on bool) error {
	m, err := flagMap(ctx, s, u.SiteKey())
	if err != nil {
		return err
	}
	m[host] = on
	return s.Set(ctx, map[string]any{u.SiteKey(): m})
}

// ClearSite removes host's override so the default applies again.
func ClearSite(ctx context.Context, s Store, u Utility, host string) error {
	m, err := flagMap(ctx, s, u.SiteKey())
	if err != nil {
		return err
	}
	if _, ok := m[host]; !ok {
		return nil
	}
	delete(m, host)
	return s.Set(ctx, map[string]any{u.SiteKey(): m})
}

// SetSiteCustom stores the custom entry for host.
func SetSiteCustom(ctx context.Context, s Store, host string, cs CustomState) error {
	m, err := customMap(ctx, s)
	if err != nil {
		return err
	}
	m[host] = cs
	return s.Set(ctx, map[string]any{KeySiteCustom: m})
}

// ClearSiteCustom removes host's custom entry.
func ClearSiteCustom(ctx context.Context, s Store, host string) error {
	m, err := customMap(ctx, s)
	if err != nil {
		return err
	}
	if _, ok := m[host]; !ok {
		return nil
	}
	delete(m, host)
	return s.Set(ctx, map[string]any{KeySiteCustom: m})
}

// SetReader stores reader settings.
func SetReader(ctx context.Context, s Store, rs ReaderSettings) error {
	return s.Set(ctx, map[string]any{KeyReaderSettings: rs})
}

// Reset removes every key.
func Reset(ctx context.Context, s Store) error {
	return s.Remove(ctx, AllKeys...)
}

func flagMap(ctx context.Context, s Store, key string) (map[string]bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return DecodeFlagMap(raw[key]), nil
}

func customMap(ctx context.Context, s Store) (map[string]CustomState, error) {
	raw, err := s.Get(ctx, KeySiteCustom)
	if err != nil {
		return nil, err
	}
	return DecodeCustomMap(raw[KeySiteCustom]), nil
}

// Raw marshals v for callers that build ChangeSets by hand.
func Raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
