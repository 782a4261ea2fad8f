package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/swissutil/dbopen"
	"github.com/hazyhaar/swissutil/watch"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	rev   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS kv_meta (
	id  INTEGER PRIMARY KEY CHECK (id = 1),
	rev INTEGER NOT NULL
);
INSERT OR IGNORE INTO kv_meta (id, rev) VALUES (1, 0);`

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	// PollInterval is how often writes from other processes are looked
	// for. Zero disables the poller.
	PollInterval time.Duration
	// PollDebounce delays reloads while foreign writes keep coming.
	PollDebounce time.Duration
	Logger       *slog.Logger
}

func (c *SQLiteConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// SQLiteStore persists preferences in a kv table. Every write bumps a
// global revision; a watcher polls that revision to pick up writes from
// other processes and publishes them like local ones.
type SQLiteStore struct {
	hub
	db     *sql.DB
	cfg    SQLiteConfig
	logger *slog.Logger

	mu     sync.Mutex
	cache  map[string]json.RawMessage
	rev    int64
	closed bool

	cancel context.CancelFunc
	done   chan struct{}
}

// OpenSQLite opens (and migrates) the store at path.
func OpenSQLite(ctx context.Context, path string, cfg SQLiteConfig) (*SQLiteStore, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("prefs: open: %w", err)
	}
	s, err := NewSQLite(ctx, db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an open database, creating the schema if needed. The
// store takes ownership of db.
func NewSQLite(ctx context.Context, db *sql.DB, cfg SQLiteConfig) (*SQLiteStore, error) {
	cfg.defaults()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("prefs: migrate: %w", err)
	}
	s := &SQLiteStore{db: db, cfg: cfg, logger: cfg.Logger, done: make(chan struct{})}
	cache, rev, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	s.cache, s.rev = cache, rev

	wctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if cfg.PollInterval > 0 {
		w := watch.New(db, watch.Options{
			Interval: cfg.PollInterval,
			Debounce: cfg.PollDebounce,
			Detector: watch.MaxColumnDetector("kv_meta", "rev"),
			Logger:   cfg.Logger,
		})
		w.Seed(rev)
		go func() {
			defer close(s.done)
			w.OnChange(wctx, s.reload)
		}()
	} else {
		close(s.done)
	}
	return s, nil
}

func (s *SQLiteStore) readAll(ctx context.Context) (map[string]json.RawMessage, int64, error) {
	var rev int64
	out := make(map[string]json.RawMessage)
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT rev FROM kv_meta WHERE id = 1").Scan(&rev); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, "SELECT key, value FROM kv")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			out[k] = json.RawMessage(v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("prefs: read: %w", err)
	}
	return out, rev, nil
}

// Get implements Store. Values come from the cache, which tracks local
// writes immediately and foreign writes at the next poll.
func (s *SQLiteStore) Get(_ context.Context, keys ...string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return pick(s.cache, keys), nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, values map[string]any) error {
	enc, err := encodeValues(values)
	if err != nil {
		return err
	}
	return s.write(ctx, enc)
}

// Remove implements Store.
func (s *SQLiteStore) Remove(ctx context.Context, keys ...string) error {
	next := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		next[k] = nil
	}
	return s.write(ctx, next)
}

func (s *SQLiteStore) write(ctx context.Context, next map[string]json.RawMessage) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	cs := diff(s.cache, next)
	if len(cs) == 0 {
		s.mu.Unlock()
		return nil
	}
	var rev int64
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "UPDATE kv_meta SET rev = rev + 1 WHERE id = 1 RETURNING rev").Scan(&rev); err != nil {
			return err
		}
		for k, c := range cs {
			if c.New == nil {
				if _, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", k); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO kv (key, value, rev) VALUES (?, ?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value, rev = excluded.rev`,
				k, string(c.New), rev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("prefs: write %s: %w", strings.Join(cs.Keys(), ","), err)
	}
	for k, c := range cs {
		if c.New == nil {
			delete(s.cache, k)
		} else {
			s.cache[k] = c.New
		}
	}
	s.rev = rev
	s.notify.Lock()
	s.mu.Unlock()
	defer s.notify.Unlock()
	s.publish(cs)
	return nil
}

// reload re-reads the table after a foreign write and publishes the
// difference against the cache.
func (s *SQLiteStore) reload(ctx context.Context) error {
	fresh, rev, err := s.readAll(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed || rev <= s.rev {
		s.mu.Unlock()
		return nil
	}
	next := make(map[string]json.RawMessage, len(fresh)+len(s.cache))
	for k := range s.cache {
		next[k] = nil
	}
	for k, v := range fresh {
		next[k] = v
	}
	cs := diff(s.cache, next)
	s.cache, s.rev = fresh, rev
	s.notify.Lock()
	s.mu.Unlock()
	defer s.notify.Unlock()
	if len(cs) > 0 {
		s.logger.Debug("prefs: foreign change", "keys", cs.Keys(), "rev", rev)
	}
	s.publish(cs)
	return nil
}

// Subscribe implements Store.
func (s *SQLiteStore) Subscribe(fn func(ChangeSet)) func() { return s.subscribe(fn) }

// Close stops the poller and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("prefs: close: %w", err)
	}
	return nil
}
