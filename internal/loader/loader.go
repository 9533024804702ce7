// Package loader tracks in-flight work for the page loading indicator.
package loader

import (
	"sync"
	"time"
)

// DefaultShowDelay keeps the indicator hidden for loads that finish quickly.
const DefaultShowDelay = 150 * time.Millisecond

// State is a point-in-time view of a Tracker.
type State struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}

// Tracker is a reference-counted loading indicator. Nested Show/Hide pairs
// keep it visible until the count returns to zero. Becoming visible is
// delayed by the show delay; a pending show is cancelled when the count
// drops to zero first.
type Tracker struct {
	mu       sync.Mutex
	count    int
	visible  bool
	delay    time.Duration
	timer    *time.Timer
	gen      uint64
	onChange func(visible bool)

	// seq numbers visibility flips; notifyMu and delivered drop a
	// notification that arrives after a newer one was delivered.
	seq       uint64
	notifyMu  sync.Mutex
	delivered uint64
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithShowDelay overrides DefaultShowDelay. Zero shows immediately.
func WithShowDelay(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.delay = d
		}
	}
}

// OnChange registers fn to be called whenever visibility flips. fn runs
// without the tracker lock held. Calls are serialised and never go back in
// time: under concurrent Show/Hide a superseded flip may be skipped, but the
// last call always carries the latest visibility.
func OnChange(fn func(visible bool)) Option {
	return func(t *Tracker) { t.onChange = fn }
}

// New builds a Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{delay: DefaultShowDelay}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Show increments the count.
func (t *Tracker) Show() {
	t.mu.Lock()
	t.count++
	if t.count > 1 || t.visible {
		t.mu.Unlock()
		return
	}
	t.stopTimerLocked()
	if t.delay == 0 {
		notify := t.setVisibleLocked(true)
		t.mu.Unlock()
		notify()
		return
	}
	gen := t.gen
	t.timer = time.AfterFunc(t.delay, func() { t.fire(gen) })
	t.mu.Unlock()
}

// Hide decrements the count; extra calls are ignored.
func (t *Tracker) Hide() {
	t.mu.Lock()
	if t.count > 0 {
		t.count--
	}
	if t.count > 0 {
		t.mu.Unlock()
		return
	}
	t.stopTimerLocked()
	notify := t.setVisibleLocked(false)
	t.mu.Unlock()
	notify()
}

// Track shows the indicator for the duration of fn.
func (t *Tracker) Track(fn func() error) error {
	t.Show()
	defer t.Hide()
	return fn()
}

// State reports the current visibility and count.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{Active: t.visible, Count: t.count}
}

func (t *Tracker) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.count == 0 {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	notify := t.setVisibleLocked(true)
	t.mu.Unlock()
	notify()
}

// stopTimerLocked cancels a pending show. The generation bump also voids a
// callback that already fired and is waiting on the lock.
func (t *Tracker) stopTimerLocked() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Tracker) setVisibleLocked(v bool) func() {
	if t.visible == v {
		return func() {}
	}
	t.visible = v
	t.seq++
	fn, seq := t.onChange, t.seq
	if fn == nil {
		return func() {}
	}
	return func() { t.deliver(seq, v, fn) }
}

func (t *Tracker) deliver(seq uint64, v bool, fn func(bool)) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	if seq <= t.delivered {
		return
	}
	t.delivered = seq
	fn(v)
}
