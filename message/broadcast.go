package message

import (
	"slices"
	"sync"

	"github.com/hazyhaar/swissutil/loop"
)

// Broadcast is a page's window message channel: anything posted is
// delivered to every listener as a later task on the page loop, whoever
// posted it. Listeners must validate what they receive.
type Broadcast struct {
	sched loop.Scheduler

	mu   sync.Mutex
	next int
	subs []subscriber
}

type subscriber struct {
	id int
	fn func(Message)
}

// NewBroadcast creates a channel delivering on sched.
func NewBroadcast(sched loop.Scheduler) *Broadcast {
	return &Broadcast{sched: sched}
}

// Post queues m for delivery. Safe from any goroutine.
func (b *Broadcast) Post(m Message) {
	b.sched.Post(func() {
		b.mu.Lock()
		subs := slices.Clone(b.subs)
		b.mu.Unlock()
		for _, s := range subs {
			s.fn(m)
		}
	})
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broadcast) Subscribe(fn func(Message)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscriber) bool { return s.id == id })
	}
}
