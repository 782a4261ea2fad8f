package prefs

// Persisted key names. They are shared with every tool that reads the
// store, so they never change.
const (
	KeyEnabled          = "swiss_utility_enabled"
	KeyReadingMode      = "swiss_utility_reading_mode"
	KeyPanelVisible     = "swiss_utility_panel_visible"
	KeyDefaultSelection = "swiss_utility_default_selection"
	KeyDefaultReading   = "swiss_utility_default_reading"
	KeySiteSelection    = "swiss_utility_site_selection"
	KeySiteReading      = "swiss_utility_site_reading"
	KeySiteCustom       = "swiss_utility_site_custom"
	KeyReaderSettings   = "swiss_utility_reader_settings"
	KeyCustomJob        = "swiss_utility_custom_job"
)

// AllKeys lists every key in a stable order.
var AllKeys = []string{
	KeyEnabled,
	KeyReadingMode,
	KeyPanelVisible,
	KeyDefaultSelection,
	KeyDefaultReading,
	KeySiteSelection,
	KeySiteReading,
	KeySiteCustom,
	KeyReaderSettings,
	KeyCustomJob,
}

// InstallDefaults are the values written on first install.
func InstallDefaults() map[string]any {
	return map[string]any{
		KeyEnabled:          false,
		KeyReadingMode:      false,
		KeyPanelVisible:     false,
		KeyDefaultSelection: false,
		KeyDefaultReading:   false,
		KeySiteSelection:    map[string]bool{},
		KeySiteReading:      map[string]bool{},
		KeySiteCustom:       map[string]CustomState{},
	}
}
