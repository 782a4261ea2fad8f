package loop

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLoop_MicrotasksRunBeforeNextTask(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var order []string
	err := l.Do(ctx, func() {
		l.Post(func() { order = append(order, "task2") })
		l.Defer(func() { order = append(order, "micro") })
		order = append(order, "task1")
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("do: %v", err)
	}
	got := strings.Join(order, ",")
	if got != "task1,micro,task2" {
		t.Errorf("got %q, want %q", got, "task1,micro,task2")
	}
}

func TestLoop_PanicDoesNotStopLoop(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Post(func() { panic("boom") })
	ran := false
	if err := l.Do(ctx, func() { ran = true }); err != nil {
		t.Fatalf("do: %v", err)
	}
	if !ran {
		t.Error("task after panic did not run")
	}
}

func TestLoop_AfterFunc(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestLoop_CloseDrainsAndStops(t *testing.T) {
	l := New()
	ran := 0
	l.Post(func() { ran++ })
	l.Post(func() { ran++ })
	l.Close()
	l.Run(context.Background())
	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}
	l.Post(func() { ran++ })
	if ran != 2 {
		t.Error("post after close should be dropped")
	}
}

func TestManual_AdvanceOrdersTimers(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var order []string
	m.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	m.AfterFunc(100*time.Millisecond, func() {
		order = append(order, "a")
		m.Defer(func() { order = append(order, "a-micro") })
	})
	m.AfterFunc(100*time.Millisecond, func() { order = append(order, "b") })

	m.Advance(200 * time.Millisecond)
	if got := strings.Join(order, ","); got != "a,a-micro,b" {
		t.Errorf("got %q, want %q", got, "a,a-micro,b")
	}
	m.Advance(100 * time.Millisecond)
	if got := strings.Join(order, ","); got != "a,a-micro,b,c" {
		t.Errorf("got %q, want %q", got, "a,a-micro,b,c")
	}
	if want := time.Unix(0, 0).Add(300 * time.Millisecond); !m.Now().Equal(want) {
		t.Errorf("now = %v, want %v", m.Now(), want)
	}
}

func TestManual_NowDuringTimerIsDeadline(t *testing.T) {
	start := time.Unix(100, 0)
	m := NewManual(start)
	var seen time.Time
	m.AfterFunc(250*time.Millisecond, func() { seen = m.Now() })
	m.Advance(time.Second)
	if want := start.Add(250 * time.Millisecond); !seen.Equal(want) {
		t.Errorf("seen = %v, want %v", seen, want)
	}
}

func TestManual_Stop(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	fired := false
	tm := m.AfterFunc(time.Millisecond, func() { fired = true })
	if !tm.Stop() {
		t.Error("first Stop should report true")
	}
	if tm.Stop() {
		t.Error("second Stop should report false")
	}
	m.Advance(time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if m.Pending() != 0 {
		t.Errorf("pending = %d, want 0", m.Pending())
	}
}

func TestManual_FlushRunsPostedAndZeroDelay(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var order []string
	m.AfterFunc(0, func() { order = append(order, "timer") })
	m.Post(func() {
		order = append(order, "task")
		m.Defer(func() { order = append(order, "micro") })
	})
	m.Flush()
	if got := strings.Join(order, ","); got != "task,micro,timer" {
		t.Errorf("got %q, want %q", got, "task,micro,timer")
	}
}
