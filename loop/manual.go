package loop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a virtual-time Scheduler. Nothing runs until Flush or Advance
// is called; timers fire in deadline order (ties in scheduling order).
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	tasks  []func()
	micro  []func()
	timers []*manualTimer
}

type manualTimer struct {
	m       *Manual
	at      time.Time
	seq     uint64
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewManual creates a Manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc registers f to run once virtual time reaches Now()+d.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{m: m, at: m.now.Add(d), seq: m.seq, f: f}
	m.timers = append(m.timers, t)
	return t
}

// Defer queues a microtask.
func (m *Manual) Defer(f func()) {
	m.mu.Lock()
	m.micro = append(m.micro, f)
	m.mu.Unlock()
}

// Post queues a task.
func (m *Manual) Post(f func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, f)
	m.mu.Unlock()
}

// Flush runs queued tasks, microtasks and timers that are already due,
// until nothing runnable is left at the current virtual time.
func (m *Manual) Flush() {
	for m.step(m.Now()) {
	}
}

// Advance moves virtual time forward by d, running everything that
// becomes due on the way, in order.
func (m *Manual) Advance(d time.Duration) {
	target := m.Now().Add(d)
	for {
		m.Flush()
		next, ok := m.nextDeadline()
		if !ok || next.After(target) {
			break
		}
		m.mu.Lock()
		m.now = next
		m.mu.Unlock()
	}
	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
	m.Flush()
}

// Pending reports the number of live timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (m *Manual) nextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next time.Time
	found := false
	for _, t := range m.timers {
		if t.stopped || t.fired {
			continue
		}
		if !found || t.at.Before(next) {
			next = t.at
			found = true
		}
	}
	return next, found
}

// step runs one unit of work due at now. It reports whether anything ran.
func (m *Manual) step(now time.Time) bool {
	m.mu.Lock()
	if len(m.micro) > 0 {
		f := m.micro[0]
		m.micro = m.micro[1:]
		m.mu.Unlock()
		f()
		return true
	}
	if len(m.tasks) > 0 {
		f := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.mu.Unlock()
		f()
		return true
	}
	m.compact()
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at.Before(m.timers[j].at)
	})
	for _, t := range m.timers {
		if t.at.After(now) {
			break
		}
		t.fired = true
		m.mu.Unlock()
		t.f()
		return true
	}
	m.mu.Unlock()
	return false
}

// compact drops fired and stopped timers. Caller holds mu.
func (m *Manual) compact() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.timers = live
}
