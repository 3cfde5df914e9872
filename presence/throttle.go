package presence

import (
	"sync"
	"time"
)

// DefaultThrottleInterval is the minimum time between two presence publishes
const DefaultThrottleInterval = 64 * time.Millisecond

// Timer is the part of *time.Timer the throttler uses
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type throttleConfig struct {
	now       func() time.Time
	afterFunc AfterFunc
}

// ThrottleOption configures a Throttler
type ThrottleOption func(*throttleConfig)

// WithThrottleClock sets the clock used to measure the window
func WithThrottleClock(now func() time.Time) ThrottleOption {
	return func(c *throttleConfig) {
		c.now = now
	}
}

// WithAfterFunc sets how the trailing publish is scheduled
func WithAfterFunc(fn AfterFunc) ThrottleOption {
	return func(c *throttleConfig) {
		c.afterFunc = fn
	}
}

// Throttler is a trailing-edge throttle around a publish function.
//
// A call outside the current window publishes immediately and opens a new
// window. Calls inside the window replace the pending value; the last one is
// published once when the window closes. Never more than one publish per
// interval, except through Flush.
type Throttler[T any] struct {
	interval  time.Duration
	publish   func(T)
	now       func() time.Time
	afterFunc AfterFunc

	mu         sync.Mutex
	last       time.Time
	published  bool
	pending    T
	hasPending bool
	timer      Timer
	gen        uint64
	stopped    bool
}

// NewThrottler wraps publish. An interval <= 0 uses DefaultThrottleInterval.
func NewThrottler[T any](interval time.Duration, publish func(T), opts ...ThrottleOption) *Throttler[T] {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	cfg := throttleConfig{
		now:       time.Now,
		afterFunc: realAfterFunc,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Throttler[T]{
		interval:  interval,
		publish:   publish,
		now:       cfg.now,
		afterFunc: cfg.afterFunc,
	}
}

// Call offers v for publishing
func (t *Throttler[T]) Call(v T) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	now := t.now()
	elapsed := now.Sub(t.last)
	if !t.published || elapsed >= t.interval {
		t.cancelLocked()
		t.last = now
		t.published = true
		t.mu.Unlock()
		t.publish(v)
		return
	}

	t.pending = v
	t.hasPending = true
	if t.timer == nil {
		gen := t.gen
		t.timer = t.afterFunc(t.interval-elapsed, func() { t.fire(gen) })
	}
	t.mu.Unlock()
}

// Flush publishes the pending value now, if any
func (t *Throttler[T]) Flush() {
	t.mu.Lock()
	if t.stopped || !t.hasPending {
		t.mu.Unlock()
		return
	}
	v := t.pending
	t.cancelLocked()
	t.last = t.now()
	t.mu.Unlock()
	t.publish(v)
}

// Stop cancels the pending publish. Later calls are ignored.
func (t *Throttler[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.cancelLocked()
}

// Pending reports whether a trailing publish is scheduled
func (t *Throttler[T]) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasPending
}

func (t *Throttler[T]) fire(gen uint64) {
	t.mu.Lock()
	// A stale timer may fire after Stop or a leading publish replaced it
	if t.stopped || gen != t.gen || !t.hasPending {
		t.mu.Unlock()
		return
	}
	v := t.pending
	var zero T
	t.pending = zero
	t.hasPending = false
	t.timer = nil
	t.gen++
	t.last = t.now()
	t.mu.Unlock()
	t.publish(v)
}

// cancelLocked drops the pending value and invalidates any scheduled fire
func (t *Throttler[T]) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	var zero T
	t.pending = zero
	t.hasPending = false
	t.gen++
}
