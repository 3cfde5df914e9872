// Package flow binds a shared flow document to a render-friendly view model.
//
// A Session subscribes to one doc.Document and its two presence feeds. Every
// document snapshot is projected through identity-preserving caches into a
// View; change batches from the rendering surface are written back to the
// document (shared fields) or into the caches (local fields). Presence input
// is throttled, encoded and appended to the feeds, and feed snapshots are
// collected into live remote presence.
//
// Listeners are called on the goroutine that caused the update, with no
// session lock held, so they may call back into the session.
package flow

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/errors"
	"github.com/teranos/coflow/logger"
	"github.com/teranos/coflow/metrics"
	"github.com/teranos/coflow/presence"
	"github.com/teranos/coflow/projection"
)

// Session is one collaborator's live binding to a flow
type Session struct {
	document doc.Document
	author   string
	logger   *zap.SugaredLogger
	metrics  *metrics.Registry

	cursorCollector     *presence.Collector[presence.Cursor]
	connectionCollector *presence.Collector[presence.Connection]
	cursorThrottle      *presence.Throttler[presence.Cursor]
	connectionThrottle  *presence.Throttler[presence.Connection]

	mu                sync.Mutex // protects the fields below
	closed            bool
	snapshot          *doc.Snapshot
	nodes             *projection.Cache[doc.NodeRecord, ViewNode]
	edges             *projection.Cache[doc.EdgeRecord, ViewEdge]
	view              View
	cursors           []presence.Live[presence.Cursor]
	connections       []presence.Live[presence.Connection]
	viewListeners     map[int]func(View)
	presenceListeners map[int]func(Presence)
	nextListener      int
	unsubscribe       []func()

	closeOnce sync.Once
}

// Presence is the live presence of every remote collaborator
type Presence struct {
	Cursors     []presence.Live[presence.Cursor]
	Connections []presence.Live[presence.Connection]
}

// Open binds a session to document on behalf of author. palette is shared by
// the session's collectors and may outlive the session.
func Open(document doc.Document, author string, palette *presence.Palette, opts ...Option) *Session {
	o := options{
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) presence.Timer { return time.AfterFunc(d, f) },
		logger:    logger.ComponentLogger("flow"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if palette == nil {
		palette = presence.NewPalette()
	}

	s := &Session{
		document:          document,
		author:            author,
		logger:            logger.ChildLogger(o.logger, logger.FieldFlowID, document.ID(), logger.FieldAuthor, author),
		metrics:           o.metrics,
		nodes:             projection.New(nodeKey, buildNode),
		edges:             projection.New(edgeKey, buildEdge),
		viewListeners:     make(map[int]func(View)),
		presenceListeners: make(map[int]func(Presence)),
	}

	collectorOpts := []presence.CollectorOption{
		presence.WithCollectorClock(o.now),
		presence.WithStrictDecode(o.strictDecode),
		presence.WithCollectorLogger(s.logger),
	}
	s.cursorCollector = presence.NewCursorCollector(author, o.cursorFreshness, palette, collectorOpts...)
	s.connectionCollector = presence.NewConnectionCollector(author, o.connectionFreshness, palette, collectorOpts...)

	throttleOpts := []presence.ThrottleOption{
		presence.WithThrottleClock(o.now),
		presence.WithAfterFunc(o.afterFunc),
	}
	s.cursorThrottle = presence.NewThrottler(o.throttleInterval, s.publishCursor, throttleOpts...)
	s.connectionThrottle = presence.NewThrottler(o.throttleInterval, s.publishConnection, throttleOpts...)

	// Each subscription delivers the current value immediately
	unsubs := []func(){
		document.Subscribe(s.onSnapshot),
		document.CursorFeed().Subscribe(s.onCursorFeed),
		document.ConnectionFeed().Subscribe(s.onConnectionFeed),
	}
	s.mu.Lock()
	s.unsubscribe = unsubs
	s.mu.Unlock()

	s.metrics.SessionOpened()
	s.logger.Debugw("Flow session opened")
	return s
}

// ID returns the flow id
func (s *Session) ID() string {
	return s.document.ID()
}

// Name returns the flow name
func (s *Session) Name() string {
	return s.document.Name()
}

// Author returns the identity the session writes presence as
func (s *Session) Author() string {
	return s.author
}

// Close releases every subscription and cancels pending presence publishes.
// Derived state is dropped; calling Close again does nothing.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		unsubs := s.unsubscribe
		s.unsubscribe = nil
		s.viewListeners = map[int]func(View){}
		s.presenceListeners = map[int]func(Presence){}
		s.nodes.Reset()
		s.edges.Reset()
		s.view = View{}
		s.cursors = nil
		s.connections = nil
		s.mu.Unlock()

		s.cursorThrottle.Stop()
		s.connectionThrottle.Stop()
		for _, unsubscribe := range unsubs {
			unsubscribe()
		}

		s.metrics.SessionClosed()
		s.logger.Debugw("Flow session closed")
	})
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// View returns the latest view
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Snapshot returns the document snapshot the current view was projected from
func (s *Session) Snapshot() *doc.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// OnView registers fn for every new view. Returns a function removing it.
func (s *Session) OnView(fn func(View)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.viewListeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.viewListeners, id)
	}
}

// OnPresence registers fn for every presence recomputation. Returns a function removing it.
func (s *Session) OnPresence(fn func(Presence)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.presenceListeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.presenceListeners, id)
	}
}

func (s *Session) onSnapshot(snap *doc.Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.snapshot = snap
	view, listeners := s.reprojectLocked()
	s.mu.Unlock()

	s.metrics.RecordSnapshot("document")
	for _, fn := range listeners {
		fn(view)
	}
}

// reprojectLocked derives the view from the current snapshot. Caller holds s.mu.
func (s *Session) reprojectLocked() (View, []func(View)) {
	if s.snapshot == nil {
		return s.view, nil
	}
	s.view = View{
		Nodes: s.nodes.Project(s.snapshot.Nodes),
		Edges: s.edges.Project(s.snapshot.Edges),
	}

	ns, es := s.nodes.Stats(), s.edges.Stats()
	s.metrics.RecordProjection(metrics.CollectionNodes, ns.Reused, ns.Rebuilt, ns.Purged)
	s.metrics.RecordProjection(metrics.CollectionEdges, es.Reused, es.Rebuilt, es.Purged)

	listeners := make([]func(View), 0, len(s.viewListeners))
	for _, fn := range s.viewListeners {
		listeners = append(listeners, fn)
	}
	return s.view, listeners
}

// emitView re-projects after a local-only change and notifies listeners
func (s *Session) emitView() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	view, listeners := s.reprojectLocked()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}

// active logs and reports false when the session is closed
func (s *Session) active(operation string) bool {
	if !s.Closed() {
		return true
	}
	s.logger.Debugw("Ignoring operation without active flow",
		logger.FieldOperation, operation,
		logger.FieldError, errors.ErrNoActiveFlow,
	)
	return false
}
