package memstore

import (
	"sync"
	"sync/atomic"
)

// dispatcher runs persistence and subscriber notifications of one flow in
// mutation order. Jobs are enqueued while the state lock is held; whichever
// goroutine finds the queue idle drains it, so a writer never waits on a
// subscriber running for another writer, and a subscriber that writes back
// into the flow has its own notification delivered once it returns.
type dispatcher struct {
	mu      sync.Mutex // protects the fields below
	queue   []func()
	running bool
}

// enqueue adds job to the end of the queue. Callers hold the state lock of
// the flow or feed the job belongs to.
func (d *dispatcher) enqueue(job func()) {
	d.mu.Lock()
	d.queue = append(d.queue, job)
	d.mu.Unlock()
}

// drain runs queued jobs until the queue is empty. Returns at once when
// another goroutine is already draining.
func (d *dispatcher) drain() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	for len(d.queue) > 0 {
		jobs := d.queue
		d.queue = nil
		d.mu.Unlock()
		for _, job := range jobs {
			job()
		}
		d.mu.Lock()
	}
	d.running = false
	d.mu.Unlock()
}

// subscriber is a registered callback. removed is set on unsubscribe so jobs
// queued before the removal skip it.
type subscriber[T any] struct {
	fn      func(T)
	removed atomic.Bool
}

func (s *subscriber[T]) deliver(v T) {
	if !s.removed.Load() {
		s.fn(v)
	}
}

func collectSubscribers[T any](subs map[int]*subscriber[T]) []*subscriber[T] {
	out := make([]*subscriber[T], 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	return out
}
