package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/swissutil/prefs"
)

// runCLI executes the root command against a config and database in dir.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errb bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errb)
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--db", filepath.Join(dir, "prefs.db"),
		"--log-level", "error",
	}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func effective(t *testing.T, dir, host string) prefs.Effective {
	t.Helper()
	out, err := runCLI(t, dir, "prefs", "show", "--json", "--host", host)
	if err != nil {
		t.Fatalf("prefs show: %v", err)
	}
	var eff prefs.Effective
	if err := json.Unmarshal([]byte(out), &eff); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return eff
}

func TestPrefsSiteOverride(t *testing.T) {
	dir := t.TempDir()

	if _, err := runCLI(t, dir, "prefs", "defaults", "--selection", "on"); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if _, err := runCLI(t, dir, "prefs", "site", "Example.COM", "selection", "off"); err != nil {
		t.Fatalf("site: %v", err)
	}
	if _, err := runCLI(t, dir, "prefs", "site", "example.com", "reading", "on"); err != nil {
		t.Fatalf("site: %v", err)
	}

	eff := effective(t, dir, "example.com")
	if eff.Selection {
		t.Error("selection: got on, want the site override off")
	}
	if !eff.Reading {
		t.Error("reading: got off, want on")
	}
	if other := effective(t, dir, "other.org"); !other.Selection || other.Reading {
		t.Errorf("other.org: got %+v, want the defaults", other)
	}

	if _, err := runCLI(t, dir, "prefs", "site", "example.com", "selection", "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if eff := effective(t, dir, "example.com"); !eff.Selection {
		t.Error("selection after clear: got off, want the default on")
	}
}

func TestPrefsArgumentErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"bad utility", []string{"prefs", "site", "a.com", "images", "on"}},
		{"bad switch", []string{"prefs", "site", "a.com", "reading", "maybe"}},
		{"no defaults", []string{"prefs", "defaults"}},
		{"reset unconfirmed", []string{"prefs", "reset"}},
		{"font too small", []string{"prefs", "reader", "--font-size", "10"}},
		{"follow without files", []string{"prefs", "custom", "set", "a.com", "--css", "x", "--follow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, dir, tt.args...); err == nil {
				t.Errorf("%v: got nil error", tt.args)
			}
		})
	}
}

func TestPrefsReader(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, dir, "prefs", "reader", "--font-size", "20", "--theme", "night", "--auto-rebuild=false")
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	if !strings.Contains(out, "20px") || !strings.Contains(out, "night") {
		t.Errorf("output %q lacks the new settings", out)
	}

	eff := effective(t, dir, "a.com")
	if eff.Reader.FontSize != 20 {
		t.Errorf("font size: got %v, want 20", eff.Reader.FontSize)
	}
	if eff.Reader.Theme != "night" {
		t.Errorf("theme: got %q, want night", eff.Reader.Theme)
	}
	if eff.Reader.AutoRebuild {
		t.Error("auto rebuild: got true, want false")
	}
	if eff.Reader.LineHeight != prefs.DefaultReaderSettings().LineHeight {
		t.Errorf("line height: got %v, want the default", eff.Reader.LineHeight)
	}
}

func TestPrefsCustomFromFile(t *testing.T) {
	dir := t.TempDir()
	css := filepath.Join(dir, "site.css")
	if err := os.WriteFile(css, []byte("body { color: red }"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, dir, "prefs", "custom", "set", "a.com", "--css-file", css, "--js", "alert(1)"); err != nil {
		t.Fatalf("custom set: %v", err)
	}
	eff := effective(t, dir, "a.com")
	if eff.Custom == nil {
		t.Fatal("custom: got nil entry")
	}
	want := prefs.CustomState{Enabled: true, CSS: "body { color: red }", JS: "alert(1)"}
	if *eff.Custom != want {
		t.Errorf("custom: got %+v, want %+v", *eff.Custom, want)
	}

	if _, err := runCLI(t, dir, "prefs", "custom", "clear", "a.com"); err != nil {
		t.Fatalf("custom clear: %v", err)
	}
	if eff := effective(t, dir, "a.com"); eff.Custom != nil {
		t.Errorf("custom after clear: got %+v, want nil", *eff.Custom)
	}
}

func TestPrefsShowTable(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCLI(t, dir, "prefs", "site", "news.example", "reading", "on"); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, dir, "prefs", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Defaults", "Sites", "news.example", "Reader"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output lacks %q:\n%s", want, out)
		}
	}
}

func TestPrefsReset(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCLI(t, dir, "prefs", "defaults", "--reading", "on"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, dir, "prefs", "reset", "--yes"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if eff := effective(t, dir, "a.com"); eff.Reading {
		t.Error("reading after reset: got on, want off")
	}
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, dir, "config", "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if strings.TrimSpace(out) != path {
		t.Errorf("got %q, want %q", strings.TrimSpace(out), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := runCLI(t, dir, "config", "init"); err == nil {
		t.Error("second init: got nil error, want exists error")
	}
	show, err := runCLI(t, dir, "config", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(show, "8791") {
		t.Errorf("config show lacks the server address:\n%s", show)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--config", filepath.Join(dir, "c.yaml"), "--log-level", "loud", "prefs", "show"})
	if err := cmd.ExecuteContext(t.Context()); err == nil {
		t.Error("got nil error for an invalid log level")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "text")
	log.Info("hidden")
	log.Warn("shown", "k", "v")
	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("info logged at warn level: %q", got)
	}
	if !strings.Contains(got, "msg=shown") || !strings.Contains(got, "k=v") {
		t.Errorf("got %q, want a text record", got)
	}

	buf.Reset()
	newLogger(&buf, "debug", "json").Debug("x")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("got %q, want JSON", buf.String())
	}
}

func TestRead(t *testing.T) {
	body := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Fox</title></head><body>
<nav>menu</nav><article><h1>Fox</h1><p>%s</p><script>var x = 1;</script></article></body></html>`, body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := "browser:\n  disabled: true\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, dir, "read", srv.URL, "--format", "text", "--acquire", "http")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(out, "quick brown fox") {
		t.Errorf("got %q, want the article text", out)
	}
	if strings.Contains(out, "var x") {
		t.Errorf("got %q, want scripts stripped", out)
	}

	if _, err := runCLI(t, dir, "read", srv.URL, "--format", "pdf"); err == nil {
		t.Error("got nil error for an unknown format")
	}
	// Read does not persist the reading view.
	if eff := effective(t, dir, "127.0.0.1"); eff.Reading {
		t.Error("reading: got on after read, want the stored default")
	}
}

func TestFollowFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.js")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	var saves atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- followFiles(ctx, []string{path}, 20*time.Millisecond, slog.New(slog.DiscardHandler), func() error {
			saves.Add(1)
			return nil
		})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for saves.Load() == 0 && time.Now().Before(deadline) {
		// The watcher may not be registered yet; keep writing.
		if err := os.WriteFile(path, []byte(time.Now().String()), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("follow: %v", err)
	}
	if saves.Load() == 0 {
		t.Error("save never called after the file changed")
	}
}

func TestFollowIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.css")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()
	var saves atomic.Int32
	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "other.txt"), []byte("b"), 0o644)
	}()
	err := followFiles(ctx, []string{path}, 10*time.Millisecond, slog.New(slog.DiscardHandler), func() error {
		saves.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if n := saves.Load(); n != 0 {
		t.Errorf("saves: got %d, want 0", n)
	}
}

func TestParseSwitch(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "OFF": false, "true": true, "0": false} {
		got, err := parseSwitch(in)
		if err != nil || got != want {
			t.Errorf("parseSwitch(%q): got %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := parseSwitch("sometimes"); err == nil {
		t.Error("got nil error")
	}
}
