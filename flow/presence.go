package flow

import (
	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/metrics"
	"github.com/teranos/coflow/presence"
)

// UpdateCursor publishes the local cursor, throttled
func (s *Session) UpdateCursor(c presence.Cursor) {
	if !s.active("update_cursor") {
		return
	}
	s.cursorThrottle.Call(c)
}

// UpdateConnection publishes the local connection drag, throttled.
// nil publishes the cleared sentinel.
func (s *Session) UpdateConnection(c *presence.Connection) {
	if !s.active("update_connection") {
		return
	}
	if c == nil {
		s.connectionThrottle.Call(presence.ClearedConnection())
		return
	}
	s.connectionThrottle.Call(*c)
}

// FlushPresence publishes pending throttled values immediately
func (s *Session) FlushPresence() {
	s.cursorThrottle.Flush()
	s.connectionThrottle.Flush()
}

// Cursors returns the live remote cursors
func (s *Session) Cursors() []presence.Live[presence.Cursor] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors
}

// Connections returns the live remote connection drags
func (s *Session) Connections() []presence.Live[presence.Connection] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// RefreshPresence recollects both feeds so that entries which went stale
// since the last append are dropped
func (s *Session) RefreshPresence() {
	s.onCursorFeed(s.document.CursorFeed().Snapshot())
	s.onConnectionFeed(s.document.ConnectionFeed().Snapshot())
}

func (s *Session) publishCursor(c presence.Cursor) {
	s.document.CursorFeed().Append(presence.EncodeCursor(c))
	s.metrics.RecordPresencePublish(metrics.KindCursor)
}

func (s *Session) publishConnection(c presence.Connection) {
	s.document.ConnectionFeed().Append(presence.EncodeConnection(c))
	s.metrics.RecordPresencePublish(metrics.KindConnection)
}

func (s *Session) onCursorFeed(feed doc.FeedSnapshot) {
	live := s.cursorCollector.Collect(feed)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cursors = live
	update, listeners := s.presenceLocked()
	s.mu.Unlock()

	s.metrics.RecordSnapshot(doc.FeedCursors)
	s.metrics.SetLivePresence(metrics.KindCursor, len(live))
	for _, fn := range listeners {
		fn(update)
	}
}

func (s *Session) onConnectionFeed(feed doc.FeedSnapshot) {
	live := s.connectionCollector.Collect(feed)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.connections = live
	update, listeners := s.presenceLocked()
	s.mu.Unlock()

	s.metrics.RecordSnapshot(doc.FeedConnections)
	s.metrics.SetLivePresence(metrics.KindConnection, len(live))
	for _, fn := range listeners {
		fn(update)
	}
}

func (s *Session) presenceLocked() (Presence, []func(Presence)) {
	listeners := make([]func(Presence), 0, len(s.presenceListeners))
	for _, fn := range s.presenceListeners {
		listeners = append(listeners, fn)
	}
	return Presence{Cursors: s.cursors, Connections: s.connections}, listeners
}
