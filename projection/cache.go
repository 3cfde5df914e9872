// Package projection maps a shared ordered list of records to view items
// while keeping view item identity stable across snapshots.
//
// Record identity is pointer identity. The cache is only correct on top of a
// store that replaces a record pointer whenever the record changes, which is
// the contract of doc.Document. A store that mutates records in place would
// need a per-record version counter instead.
package projection

// Stats counts what the last Project call did
type Stats struct {
	Reused  int
	Rebuilt int
	Purged  int
}

type entry[R, V any] struct {
	record *R
	view   *V
}

// Cache is an identity-preserving projection from *R to *V.
// It is not safe for concurrent use; the owner serializes access.
type Cache[R, V any] struct {
	key     func(*R) string
	build   func(rec *R, prev *V) *V
	entries map[string]*entry[R, V]
	stats   Stats
}

// New creates a cache. key returns a record's stable id. build derives a view
// item from rec, merging over prev (the previous view item for the same id,
// nil on first sight) so that view-local fields survive record changes. build
// must return a fresh pointer.
func New[R, V any](key func(*R) string, build func(rec *R, prev *V) *V) *Cache[R, V] {
	return &Cache[R, V]{
		key:     key,
		build:   build,
		entries: make(map[string]*entry[R, V]),
	}
}

// Project returns view items in record order. A record whose pointer has not
// changed since the previous call yields the very same view item pointer.
// Ids absent from records are purged.
func (c *Cache[R, V]) Project(records []*R) []*V {
	stale := make(map[string]struct{}, len(c.entries))
	for id := range c.entries {
		stale[id] = struct{}{}
	}

	var stats Stats
	views := make([]*V, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		id := c.key(rec)
		delete(stale, id)

		e, ok := c.entries[id]
		if ok && e.record == rec {
			stats.Reused++
			views = append(views, e.view)
			continue
		}

		var prev *V
		if ok {
			prev = e.view
		}
		view := c.build(rec, prev)
		c.entries[id] = &entry[R, V]{record: rec, view: view}
		stats.Rebuilt++
		views = append(views, view)
	}

	for id := range stale {
		delete(c.entries, id)
		stats.Purged++
	}

	c.stats = stats
	return views
}

// Get returns the current view item for id
func (c *Cache[R, V]) Get(id string) (*V, bool) {
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return e.view, true
}

// Update replaces the view item for id with fn applied to a copy of it.
// The record is left alone, so the new view item is what the next Project
// returns for an unchanged record. Returns false for an unknown id.
func (c *Cache[R, V]) Update(id string, fn func(V) V) bool {
	e, ok := c.entries[id]
	if !ok {
		return false
	}
	next := fn(*e.view)
	e.view = &next
	return true
}

// Delete drops the entry for id. Returns false for an unknown id.
func (c *Cache[R, V]) Delete(id string) bool {
	if _, ok := c.entries[id]; !ok {
		return false
	}
	delete(c.entries, id)
	return true
}

// Reset drops every entry
func (c *Cache[R, V]) Reset() {
	c.entries = make(map[string]*entry[R, V])
	c.stats = Stats{}
}

// Len returns the number of cached entries
func (c *Cache[R, V]) Len() int {
	return len(c.entries)
}

// Stats returns the counts of the last Project call
func (c *Cache[R, V]) Stats() Stats {
	return c.stats
}
