package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/swissutil/dbopen"
)

func TestMaxColumnDetector(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema("CREATE TABLE kv (key TEXT PRIMARY KEY, rev INTEGER)"))
	ctx := context.Background()

	det := MaxColumnDetector("kv", "rev")
	v, err := det(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Fatalf("empty table version = %d, want 0", v)
	}
	if _, err := db.Exec("INSERT INTO kv VALUES ('a', 7)"); err != nil {
		t.Fatal(err)
	}
	if v, _ = det(ctx, db); v != 7 {
		t.Fatalf("version = %d, want 7", v)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("got %q, want %q", got, `"we""ird"`)
	}
}

func TestOnChangeFiresOnce(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema("CREATE TABLE kv (key TEXT PRIMARY KEY, rev INTEGER)"))
	w := New(db, Options{Interval: 10 * time.Millisecond, Detector: MaxColumnDetector("kv", "rev")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.OnChange(ctx, func(context.Context) error {
			fired.Add(1)
			return nil
		})
	}()

	time.Sleep(30 * time.Millisecond)
	if _, err := db.Exec("INSERT INTO kv VALUES ('a', 1)"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if got := fired.Load(); got != 1 {
		t.Fatalf("fired = %d, want 1", got)
	}
	if w.Version() != 1 {
		t.Fatalf("version = %d, want 1", w.Version())
	}
}

func TestSeedSuppressesKnownVersion(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema("CREATE TABLE kv (key TEXT PRIMARY KEY, rev INTEGER)"))
	if _, err := db.Exec("INSERT INTO kv VALUES ('a', 3)"); err != nil {
		t.Fatal(err)
	}
	w := New(db, Options{Interval: 10 * time.Millisecond, Detector: MaxColumnDetector("kv", "rev")})
	w.Seed(3)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	w.OnChange(ctx, func(context.Context) error {
		t.Error("action should not run for the seeded version")
		return nil
	})
	if w.Stats().Checks == 0 {
		t.Error("expected at least one poll")
	}
}

func TestSeedZeroFiresForEarlyCommit(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema("CREATE TABLE kv (key TEXT PRIMARY KEY, rev INTEGER)"))
	w := New(db, Options{Interval: 10 * time.Millisecond, Detector: MaxColumnDetector("kv", "rev")})
	w.Seed(0)
	// Lands between Seed and OnChange.
	if _, err := db.Exec("INSERT INTO kv VALUES ('a', 1)"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fired := make(chan struct{}, 1)
	go w.OnChange(ctx, func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("commit made before polling started was never reported")
	}
}
