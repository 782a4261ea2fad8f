// Package config loads swissutil settings from a YAML file with
// SWISSUTIL_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: SWISSUTIL_SERVER__ADDR sets server.addr.
const EnvPrefix = "SWISSUTIL_"

// Config is the top-level swissutil configuration.
type Config struct {
	DBPath    string        `yaml:"db_path" koanf:"db_path"`
	LogLevel  string        `yaml:"log_level" koanf:"log_level"`
	LogFormat string        `yaml:"log_format" koanf:"log_format"`
	Reader    ReaderConfig  `yaml:"reader" koanf:"reader"`
	Custom    CustomConfig  `yaml:"custom" koanf:"custom"`
	Fetch     FetchConfig   `yaml:"fetch" koanf:"fetch"`
	Browser   BrowserConfig `yaml:"browser" koanf:"browser"`
	Server    ServerConfig  `yaml:"server" koanf:"server"`
	Watch     WatchConfig   `yaml:"watch" koanf:"watch"`
}

// ReaderConfig tunes auto-rebuild.
type ReaderConfig struct {
	RebuildQuiet       time.Duration `yaml:"rebuild_quiet" koanf:"rebuild_quiet"`
	RebuildMinInterval time.Duration `yaml:"rebuild_min_interval" koanf:"rebuild_min_interval"`
}

func (c *ReaderConfig) defaults() {
	if c.RebuildQuiet <= 0 {
		c.RebuildQuiet = 500 * time.Millisecond
	}
	if c.RebuildMinInterval <= 0 {
		c.RebuildMinInterval = 800 * time.Millisecond
	}
}

// CustomConfig tunes the panel editors.
type CustomConfig struct {
	SaveDebounce time.Duration `yaml:"save_debounce" koanf:"save_debounce"`
}

func (c *CustomConfig) defaults() {
	if c.SaveDebounce <= 0 {
		c.SaveDebounce = 500 * time.Millisecond
	}
}

// FetchConfig controls HTTP acquisition.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout" koanf:"timeout"`
	UserAgent string        `yaml:"user_agent" koanf:"user_agent"`
	MaxBytes  int64         `yaml:"max_bytes" koanf:"max_bytes"`
	// BlockPrivate refuses loopback and private targets in serve and mcp,
	// where URLs come from clients.
	BlockPrivate bool `yaml:"block_private" koanf:"block_private"`
}

func (c *FetchConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	// Remote is a DevTools WebSocket URL. Empty launches a local Chrome.
	Remote           string   `yaml:"remote" koanf:"remote"`
	Headless         *bool    `yaml:"headless" koanf:"headless"`
	Stealth          *bool    `yaml:"stealth" koanf:"stealth"`
	ResourceBlocking []string `yaml:"resource_blocking" koanf:"resource_blocking"`
	// Disabled never starts Chrome; pages are fetched over HTTP only.
	Disabled bool `yaml:"disabled" koanf:"disabled"`
}

func (c *BrowserConfig) defaults() {
	if c.Headless == nil {
		t := true
		c.Headless = &t
	}
	if c.Stealth == nil {
		t := true
		c.Stealth = &t
	}
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" koanf:"addr"`
}

func (c *ServerConfig) defaults() {
	if c.Addr == "" {
		c.Addr = ":8791"
	}
}

// WatchConfig controls how writes by other processes are picked up.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval" koanf:"interval"`
	Debounce time.Duration `yaml:"debounce" koanf:"debounce"`
}

func (c *WatchConfig) defaults() {
	if c.Interval <= 0 {
		c.Interval = 200 * time.Millisecond
	}
}

// DefaultDBPath is the preference database under the user config dir.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "swissutil", "prefs.db")
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "swissutil.yaml"
	}
	return filepath.Join(dir, "swissutil", "config.yaml")
}

// Default returns a Config with every default filled in.
func Default() *Config {
	c := &Config{}
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	c.Reader.defaults()
	c.Custom.defaults()
	c.Fetch.defaults()
	c.Browser.defaults()
	c.Server.defaults()
	c.Watch.defaults()
}

// Load reads path if it exists, overlays SWISSUTIL_* variables and fills
// defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: access %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q: must be one of debug, info, warn, error", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: invalid log_format %q: must be json or text", c.LogFormat)
	}
	for _, r := range c.Browser.ResourceBlocking {
		switch r {
		case "images", "fonts", "media", "stylesheets":
		default:
			return fmt.Errorf("config: invalid resource_blocking entry %q", r)
		}
	}
	return nil
}

// Save writes the configuration as YAML, creating the directory.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
