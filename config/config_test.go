package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.Reader.RebuildQuiet != 500*time.Millisecond {
		t.Errorf("rebuild_quiet: got %v, want 500ms", c.Reader.RebuildQuiet)
	}
	if c.Reader.RebuildMinInterval != 800*time.Millisecond {
		t.Errorf("rebuild_min_interval: got %v, want 800ms", c.Reader.RebuildMinInterval)
	}
	if c.Custom.SaveDebounce != 500*time.Millisecond {
		t.Errorf("save_debounce: got %v", c.Custom.SaveDebounce)
	}
	if c.Fetch.MaxBytes != 10<<20 || c.Fetch.Timeout != 30*time.Second {
		t.Errorf("fetch: got %+v", c.Fetch)
	}
	if !*c.Browser.Headless || !*c.Browser.Stealth {
		t.Error("browser headless and stealth should default to true")
	}
	if c.Server.Addr != ":8791" {
		t.Errorf("addr: got %q, want %q", c.Server.Addr, ":8791")
	}
	if c.Watch.Interval != 200*time.Millisecond || c.Watch.Debounce != 0 {
		t.Errorf("watch: got %+v", c.Watch)
	}
}

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if c.LogLevel != "info" || c.LogFormat != "json" {
		t.Errorf("got %q %q", c.LogLevel, c.LogFormat)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	src := `db_path: /tmp/p.db
log_level: debug
reader:
  rebuild_quiet: 1s
browser:
  headless: false
  resource_blocking: [images, fonts]
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.DBPath != "/tmp/p.db" {
		t.Errorf("db_path: got %q", c.DBPath)
	}
	if c.Reader.RebuildQuiet != time.Second {
		t.Errorf("rebuild_quiet: got %v, want 1s", c.Reader.RebuildQuiet)
	}
	if c.Reader.RebuildMinInterval != 800*time.Millisecond {
		t.Errorf("unset field lost its default: %v", c.Reader.RebuildMinInterval)
	}
	if *c.Browser.Headless {
		t.Error("headless: explicit false overwritten")
	}
	if len(c.Browser.ResourceBlocking) != 2 {
		t.Errorf("resource_blocking: got %v", c.Browser.ResourceBlocking)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWISSUTIL_LOG_FORMAT", "text")
	t.Setenv("SWISSUTIL_SERVER__ADDR", "127.0.0.1:9000")
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.LogFormat != "text" {
		t.Errorf("log_format: got %q, want text", c.LogFormat)
	}
	if c.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("server.addr: got %q", c.Server.Addr)
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	c.LogLevel = "verbose"
	if err := c.Validate(); err == nil {
		t.Error("expected log_level error")
	}
	c = Default()
	c.Browser.ResourceBlocking = []string{"scripts"}
	if err := c.Validate(); err == nil {
		t.Error("expected resource_blocking error")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	orig := Default()
	orig.DBPath = "/data/prefs.db"
	orig.Fetch.UserAgent = "agent/2"
	orig.Watch.Debounce = 50 * time.Millisecond
	if err := orig.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.DBPath != orig.DBPath || got.Fetch.UserAgent != orig.Fetch.UserAgent {
		t.Errorf("got %q %q", got.DBPath, got.Fetch.UserAgent)
	}
	if got.Watch.Debounce != 50*time.Millisecond {
		t.Errorf("watch.debounce: got %v", got.Watch.Debounce)
	}
}
