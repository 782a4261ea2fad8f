// Package loop provides the single-threaded page event loop that every DOM
// access, mutator and timer callback of one page runs on.
//
// Two schedulers share the Scheduler interface: Loop, backed by a goroutine
// and wall-clock timers, and Manual, a virtual-time scheduler for tests and
// one-shot batch runs. Callers outside the loop goroutine hand work in via
// Post; everything else (Defer, AfterFunc, Now) must be called from a task.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped it
	// before it ran.
	Stop() bool
}

// Scheduler runs tasks one at a time.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time
	// AfterFunc runs f as a task once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
	// Defer queues f as a microtask: it runs after the current task and
	// before any timer or posted task.
	Defer(f func())
	// Post queues f as a task. Safe to call from any goroutine.
	Post(f func())
}

// Loop is the production Scheduler: one goroutine drains a task queue.
type Loop struct {
	micro  []func()
	logger *slog.Logger

	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report recovered task panics.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// New creates a Loop. Call Run to start draining it.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Run drains tasks until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		f, closed := l.next()
		if f != nil {
			l.runTask(f)
			continue
		}
		if closed {
			return
		}
		select {
		case <-ctx.Done():
			l.Close()
			return
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, l.closed
	}
	f := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return f, l.closed
}

// Close stops accepting tasks and lets Run return once the queue drains.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Now returns wall-clock time.
func (l *Loop) Now() time.Time { return time.Now() }

// AfterFunc schedules f on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { l.Post(f) })
}

// Defer queues a microtask. Must be called from a loop task.
func (l *Loop) Defer(f func()) {
	l.micro = append(l.micro, f)
}

// Post queues a task. Posting to a closed loop drops the task.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()
	l.signal()
}

// Do runs f on the loop and waits for it to finish. It returns ctx.Err()
// when ctx ends first or the loop is closed.
func (l *Loop) Do(ctx context.Context, f func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		f()
	})
	select {
	case <-done:
		return nil
	case <-l.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) runTask(f func()) {
	l.safe(f)
	for len(l.micro) > 0 {
		m := l.micro[0]
		l.micro = l.micro[1:]
		l.safe(m)
	}
}

func (l *Loop) safe(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop: task panicked", "panic", r)
		}
	}()
	f()
}
