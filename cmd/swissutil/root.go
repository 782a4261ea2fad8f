package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/swissutil/browser"
	"github.com/hazyhaar/swissutil/config"
	"github.com/hazyhaar/swissutil/engine"
	"github.com/hazyhaar/swissutil/fetcher"
	"github.com/hazyhaar/swissutil/prefs"
	"github.com/hazyhaar/swissutil/reader"
)

// app carries the persistent flags and what PersistentPreRunE builds from
// them.
type app struct {
	cfgPath   string
	dbPath    string
	logLevel  string
	logFormat string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "swissutil",
		Short: "Selection unlock, reading view and custom CSS/JS for web pages",
		Long: `swissutil restores text selection on pages that block it, extracts a
clean reading view, and runs per-site custom CSS and JavaScript. Preferences
live in a SQLite database shared by every swissutil process.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", config.DefaultPath(), "config file path")
	pf.StringVar(&a.dbPath, "db", "", "preference database (overrides db_path)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: json or text")

	root.AddCommand(
		newReadCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newPrefsCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(a.log)
	return nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// openStore opens the preference database. Long-running commands poll it
// for writes made by other processes.
func (a *app) openStore(ctx context.Context, poll bool) (*prefs.SQLiteStore, error) {
	sc := prefs.SQLiteConfig{Logger: a.log}
	if poll {
		sc.PollInterval = a.cfg.Watch.Interval
		sc.PollDebounce = a.cfg.Watch.Debounce
	}
	s, err := prefs.OpenSQLite(ctx, a.cfg.DBPath, sc)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.cfg.DBPath, err)
	}
	return s, nil
}

// newEngine wires an engine over store. Chrome is started lazily on the
// first page that needs it. remote marks engines whose URLs come from
// network clients.
func (a *app) newEngine(ctx context.Context, store prefs.Store, remote bool) (*engine.Engine, error) {
	c := a.cfg
	fopts := []fetcher.Option{
		fetcher.WithTimeout(c.Fetch.Timeout),
		fetcher.WithUserAgent(c.Fetch.UserAgent),
		fetcher.WithMaxBytes(c.Fetch.MaxBytes),
		fetcher.WithLogger(a.log),
	}
	if remote && c.Fetch.BlockPrivate {
		fopts = append(fopts, fetcher.WithPrivateHostsBlocked())
	}
	ec := engine.Config{
		Store:   store,
		Fetcher: fetcher.New(fopts...),
		Reader: reader.Config{
			Quiet:       c.Reader.RebuildQuiet,
			MinInterval: c.Reader.RebuildMinInterval,
		},
		SaveDelay: c.Custom.SaveDebounce,
		Logger:    a.log,
	}
	if !c.Browser.Disabled {
		ec.Browser = browser.NewManager(browser.Config{
			RemoteURL:        c.Browser.Remote,
			Headless:         c.Browser.Headless,
			Stealth:          c.Browser.Stealth,
			ResourceBlocking: c.Browser.ResourceBlocking,
			Logger:           a.log,
		})
	}
	eng := engine.New(ec)
	if err := eng.Install(ctx); err != nil {
		eng.Close()
		return nil, err
	}
	return eng, nil
}

// withEngine opens the store and an engine, runs fn and closes both.
func (a *app) withEngine(ctx context.Context, poll, remote bool, fn func(*engine.Engine) error) error {
	store, err := a.openStore(ctx, poll)
	if err != nil {
		return err
	}
	defer store.Close()
	eng, err := a.newEngine(ctx, store, remote)
	if err != nil {
		return err
	}
	defer eng.Close()
	return fn(eng)
}
