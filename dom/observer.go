package dom

import (
	"slices"

	"golang.org/x/net/html"
)

// RecordType distinguishes mutation records.
type RecordType string

const (
	ChildList  RecordType = "childList"
	Attributes RecordType = "attributes"
)

// Record describes one mutation.
type Record struct {
	Type          RecordType
	Target        *html.Node
	AddedNodes    []*html.Node
	RemovedNodes  []*html.Node
	AttributeName string
	OldValue      string
}

// ObserveOptions selects which mutations an observation reports.
type ObserveOptions struct {
	ChildList       bool
	Attributes      bool
	Subtree         bool
	AttributeFilter []string
}

type observation struct {
	target *html.Node
	opts   ObserveOptions
}

// Observer is a mutation observer. Records are queued as mutations happen
// and delivered to the callback in one batch on a microtask.
type Observer struct {
	d         *Document
	cb        func([]*Record, *Observer)
	obs       []observation
	queue     []*Record
	scheduled bool
}

// NewObserver creates an observer that is inactive until Observe.
func (d *Document) NewObserver(cb func([]*Record, *Observer)) *Observer {
	return &Observer{d: d, cb: cb}
}

// Observe starts (or replaces) the observation of target.
func (o *Observer) Observe(target *html.Node, opts ObserveOptions) {
	for i := range o.obs {
		if o.obs[i].target == target {
			o.obs[i].opts = opts
			return
		}
	}
	o.obs = append(o.obs, observation{target: target, opts: opts})
	if !slices.Contains(o.d.observers, o) {
		o.d.observers = append(o.d.observers, o)
	}
}

// Disconnect stops every observation and drops queued records.
func (o *Observer) Disconnect() {
	o.obs = nil
	o.queue = nil
	o.d.observers = slices.DeleteFunc(o.d.observers, func(x *Observer) bool { return x == o })
}

// TakeRecords returns and clears the queued records.
func (o *Observer) TakeRecords() []*Record {
	q := o.queue
	o.queue = nil
	return q
}

// Suppress runs fn and discards every record fn's mutations queued for
// this observer.
func (o *Observer) Suppress(fn func()) {
	before := len(o.queue)
	fn()
	if len(o.queue) > before {
		o.queue = o.queue[:before]
	}
}

// Active reports whether the observer has at least one observation.
func (o *Observer) Active() bool { return len(o.obs) > 0 }

func (o *Observer) interested(r *Record) bool {
	for _, ob := range o.obs {
		if ob.target != r.Target && !(ob.opts.Subtree && Contains(ob.target, r.Target)) {
			continue
		}
		switch r.Type {
		case ChildList:
			if ob.opts.ChildList {
				return true
			}
		case Attributes:
			if !ob.opts.Attributes {
				continue
			}
			if len(ob.opts.AttributeFilter) == 0 || slices.Contains(ob.opts.AttributeFilter, r.AttributeName) {
				return true
			}
		}
	}
	return false
}

func (o *Observer) deliver() {
	o.scheduled = false
	recs := o.TakeRecords()
	if len(recs) == 0 || o.cb == nil {
		return
	}
	o.cb(recs, o)
}

func (d *Document) queueRecord(r *Record) {
	for _, o := range d.observers {
		if !o.interested(r) {
			continue
		}
		o.queue = append(o.queue, r)
		if !o.scheduled {
			o.scheduled = true
			d.sched.Defer(o.deliver)
		}
	}
}
