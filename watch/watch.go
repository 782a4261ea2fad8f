// Package watch polls a SQLite database for a version token and runs an
// action when it moves. The preference store uses it to notice writes made
// by other swissutil processes sharing the same database file.
//
//	w := watch.New(db, watch.Options{Interval: 200 * time.Millisecond, Detector: watch.MaxColumnDetector("kv", "rev")})
//	go w.OnChange(ctx, store.reload)
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// ChangeDetector reads a version token. Two different values mean
// something changed.
type ChangeDetector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes the watcher.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period between detecting a change and running
	// the action. Further changes restart it. Default: 0 (fire at once).
	Debounce time.Duration
	// Detector defaults to PragmaDataVersion.
	Detector ChangeDetector
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = PragmaDataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls one database. It is safe for concurrent use.
type Watcher struct {
	db   *sql.DB
	opts Options

	version atomic.Int64
	seeded  atomic.Bool
	checks  atomic.Int64
	fires   atomic.Int64
	errors  atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks int64 `json:"checks"`
	Fires  int64 `json:"fires"`
	Errors int64 `json:"errors"`
}

// New creates a Watcher. Call OnChange to start polling.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{Checks: w.checks.Load(), Fires: w.fires.Load(), Errors: w.errors.Load()}
}

// Version returns the last version the action accepted.
func (w *Watcher) Version() int64 { return w.version.Load() }

// Seed sets the version considered current, so a change the caller already
// knows about does not fire. A seeded watcher skips its initial read and
// fires for any commit made after v, even one landing before OnChange starts.
func (w *Watcher) Seed(v int64) {
	w.version.Store(v)
	w.seeded.Store(true)
}

// OnChange polls until ctx is cancelled. When the token differs from the
// current version and the debounce window passes quietly, action runs. A
// failing action leaves the version unchanged so the next poll retries.
func (w *Watcher) OnChange(ctx context.Context, action func(context.Context) error) {
	log := w.opts.Logger
	if !w.seeded.Load() {
		if v, err := w.opts.Detector(ctx, w.db); err != nil {
			log.Warn("watch: initial version check failed", "error", err)
		} else {
			w.version.Store(v)
			w.seeded.Store(true)
		}
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	pending := int64(-1)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.errors.Add(1)
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(ctx, action, pending)
				pending = -1
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.opts.Debounce)
			debounceCh = debounce.C

		case <-debounceCh:
			debounceCh = nil
			if pending >= 0 {
				w.fire(ctx, action, pending)
				pending = -1
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, action func(context.Context) error, ver int64) {
	if err := action(ctx); err != nil {
		w.errors.Add(1)
		w.opts.Logger.Error("watch: action failed", "error", err, "version", ver)
		return
	}
	w.fires.Add(1)
	w.version.Store(ver)
	w.opts.Logger.Debug("watch: change applied", "version", ver)
}

// PragmaDataVersion reads PRAGMA data_version, which moves when another
// connection commits to the same file.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// MaxColumnDetector polls MAX(column) on table. Identifiers are quoted.
func MaxColumnDetector(table, column string) ChangeDetector {
	query := "SELECT COALESCE(MAX(" + quoteIdent(column) + "), 0) FROM " + quoteIdent(table)
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query).Scan(&v)
		return v, err
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
