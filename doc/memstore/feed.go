package memstore

import (
	"sync"

	"github.com/teranos/coflow/doc"
)

// feedHistory is how many entries per author are kept in memory.
// Only the latest entry of each author is ever read.
const feedHistory = 32

type feed struct {
	flow *flow
	name string

	mu      sync.Mutex // protects the fields below
	entries doc.FeedSnapshot
	subs    map[int]*subscriber[doc.FeedSnapshot]
	nextSub int
}

func newFeed(f *flow, name string, initial doc.FeedSnapshot) *feed {
	entries := make(doc.FeedSnapshot, len(initial))
	for author, list := range initial {
		entries[author] = trimHistory(list)
	}
	return &feed{
		flow:    f,
		name:    name,
		entries: entries,
		subs:    make(map[int]*subscriber[doc.FeedSnapshot]),
	}
}

func trimHistory(list []doc.FeedEntry) []doc.FeedEntry {
	if len(list) > feedHistory {
		list = list[len(list)-feedHistory:]
	}
	out := make([]doc.FeedEntry, len(list))
	copy(out, list)
	return out
}

func (fd *feed) append(author, value string) {
	fd.mu.Lock()
	entry := doc.FeedEntry{
		Author: author,
		MadeAt: fd.flow.hub.now(),
		Value:  value,
	}
	next := make(doc.FeedSnapshot, len(fd.entries)+1)
	for a, list := range fd.entries {
		next[a] = list
	}
	next[author] = trimHistory(append(append([]doc.FeedEntry(nil), fd.entries[author]...), entry))
	fd.entries = next

	subs := collectSubscribers(fd.subs)
	fd.flow.dispatch.enqueue(func() {
		fd.flow.hub.persistFeedEntry(fd.flow.id, fd.name, entry)
		for _, sub := range subs {
			sub.deliver(next)
		}
	})
	fd.mu.Unlock()
	fd.flow.dispatch.drain()
}

func (fd *feed) snapshot() doc.FeedSnapshot {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.entries
}

func (fd *feed) subscribe(fn func(doc.FeedSnapshot)) func() {
	sub := &subscriber[doc.FeedSnapshot]{fn: fn}

	fd.mu.Lock()
	id := fd.nextSub
	fd.nextSub++
	fd.subs[id] = sub
	current := fd.entries
	fd.flow.dispatch.enqueue(func() { sub.deliver(current) })
	fd.mu.Unlock()
	fd.flow.dispatch.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.removed.Store(true)
			fd.mu.Lock()
			delete(fd.subs, id)
			fd.mu.Unlock()
		})
	}
}

// feedHandle tags appends with the account that opened the document
type feedHandle struct {
	feed    *feed
	account string
}

func (h *feedHandle) Append(value string) {
	h.feed.append(h.account, value)
}

func (h *feedHandle) Snapshot() doc.FeedSnapshot {
	return h.feed.snapshot()
}

func (h *feedHandle) Subscribe(fn func(doc.FeedSnapshot)) func() {
	return h.feed.subscribe(fn)
}
