package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/doc/memstore"
	"github.com/teranos/coflow/metrics"
	"github.com/teranos/coflow/presence"
)

// manualClock is a settable clock whose timers only fire on RunTimers
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) presence.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// RunTimers fires every scheduled, unstopped timer
func (c *manualClock) RunTimers() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

type fixture struct {
	clock *manualClock
	hub   *memstore.Hub
	doc   doc.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newManualClock()
	hub := memstore.NewHub(memstore.WithClock(clock.Now))
	d, err := hub.Connect("alice").Create(context.Background(), "")
	require.NoError(t, err)
	return &fixture{clock: clock, hub: hub, doc: d}
}

// open joins the fixture flow as author
func (f *fixture) open(t *testing.T, author string, palette *presence.Palette, opts ...Option) *Session {
	t.Helper()
	d, err := f.hub.Connect(author).Load(context.Background(), f.doc.ID())
	require.NoError(t, err)
	opts = append([]Option{WithClock(f.clock.Now), WithAfterFunc(f.clock.AfterFunc)}, opts...)
	s := Open(d, author, palette, opts...)
	t.Cleanup(s.Close)
	return s
}

func nodeIDs(v View) []string {
	ids := make([]string, 0, len(v.Nodes))
	for _, n := range v.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestSession_Scenario(t *testing.T) {
	f := newFixture(t)
	alice := f.open(t, "alice", presence.NewPalette())

	first := alice.AddNode(NodeInput{Type: "text", Position: doc.Position{X: 10, Y: 20}, Data: map[string]any{}})
	require.NotEmpty(t, first)

	view := alice.View()
	require.Len(t, view.Nodes, 1)
	assert.Equal(t, first, view.Nodes[0].ID)
	assert.Equal(t, "text", view.Nodes[0].Type)
	assert.Equal(t, doc.Position{X: 10, Y: 20}, view.Nodes[0].Position)

	second := alice.AddNode(NodeInput{Position: doc.Position{X: 100, Y: 100}})
	before := alice.View()
	require.Len(t, before.Nodes, 2)

	alice.ApplyNodeChanges([]Change{Move{ID: first, Position: doc.Position{X: 50, Y: 50}}})
	assert.Equal(t, doc.Position{X: 50, Y: 50}, f.doc.Snapshot().Nodes[0].Position)
	after := alice.View()
	assert.Equal(t, doc.Position{X: 50, Y: 50}, after.Nodes[0].Position)
	assert.NotSame(t, before.Nodes[0], after.Nodes[0])
	assert.Same(t, before.Nodes[1], after.Nodes[1], "untouched node keeps its view item")

	alice.ApplyNodeChanges([]Change{Remove{ID: first}})
	assert.Equal(t, []string{second}, nodeIDs(alice.View()))
	alice.ApplyNodeChanges([]Change{Remove{ID: second}})
	assert.Empty(t, alice.View().Nodes)

	// Presence: alice never sees herself, bob sees alice in his palette's colour
	alice.UpdateCursor(presence.Cursor{Position: doc.Position{X: 1, Y: 1}})
	assert.Empty(t, alice.Cursors())

	bobPalette := presence.NewPalette()
	bob := f.open(t, "bob", bobPalette)
	cursors := bob.Cursors()
	require.Len(t, cursors, 1)
	assert.Equal(t, "alice", cursors[0].Author)
	assert.Equal(t, bobPalette.Color("alice"), cursors[0].Color)
	assert.Equal(t, presence.Cursor{Position: doc.Position{X: 1, Y: 1}}, cursors[0].Payload)
}

func TestSession_LocalFieldIsolation(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "alice", nil)
	id := s.AddNode(NodeInput{Position: doc.Position{X: 1, Y: 2}})

	shared := f.doc.Snapshot()
	before := s.View().Nodes[0]

	views := 0
	s.OnView(func(View) { views++ })

	s.ApplyNodeChanges([]Change{
		Select{ID: id, Selected: true},
		Resize{ID: id, Dimensions: Dimensions{Width: 150, Height: 40}},
	})

	assert.Same(t, shared, f.doc.Snapshot(), "local changes never write to the document")
	assert.Same(t, shared.Nodes[0], f.doc.Snapshot().Nodes[0])

	after := s.View().Nodes[0]
	assert.NotSame(t, before, after, "resize replaces the view item")
	assert.True(t, after.Selected)
	require.NotNil(t, after.Measured)
	assert.Equal(t, Dimensions{Width: 150, Height: 40}, *after.Measured)
	assert.False(t, before.Selected)
	assert.Equal(t, 1, views, "one view per batch")

	// Local fields survive a shared change to the same node
	s.ApplyNodeChanges([]Change{Move{ID: id, Position: doc.Position{X: 9, Y: 9}}})
	moved := s.View().Nodes[0]
	assert.True(t, moved.Selected)
	assert.Equal(t, doc.Position{X: 9, Y: 9}, moved.Position)
	require.NotNil(t, moved.Measured)
}

func TestSession_UnknownIdsAreNoops(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "alice", nil)
	id := s.AddNode(NodeInput{})
	snap := f.doc.Snapshot()

	s.ApplyNodeChanges([]Change{
		Move{ID: "ghost", Position: doc.Position{X: 5}},
		Select{ID: "ghost", Selected: true},
		Resize{ID: "ghost"},
		Remove{ID: "ghost"},
	})
	assert.Same(t, snap, f.doc.Snapshot())

	s.ApplyNodeChanges([]Change{Remove{ID: id}, Remove{ID: id}, Select{ID: id, Selected: true}})
	assert.Empty(t, f.doc.Snapshot().Nodes)
	assert.Empty(t, s.View().Nodes)
}

func TestSession_EdgeChanges(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "alice", nil)
	a := s.AddNode(NodeInput{})
	b := s.AddNode(NodeInput{})

	assert.Empty(t, s.Connect(a, "", "", ""), "connect needs a target")
	assert.Empty(t, s.Connect("", "", b, ""), "connect needs a source")

	edge := s.Connect(a, "out", b, "")
	require.NotEmpty(t, edge)
	view := s.View()
	require.Len(t, view.Edges, 1)
	assert.Equal(t, doc.DefaultEdgeType, view.Edges[0].Type)
	assert.Equal(t, "out", view.Edges[0].SourceHandle)
	assert.Empty(t, view.Edges[0].TargetHandle)

	shared := f.doc.Snapshot()
	s.ApplyEdgeChanges([]Change{
		Select{ID: edge, Selected: true},
		Move{ID: edge, Position: doc.Position{X: 1}},
		Resize{ID: edge},
	})
	assert.Same(t, shared, f.doc.Snapshot())
	assert.True(t, s.View().Edges[0].Selected)

	s.ApplyEdgeChanges([]Change{Remove{ID: edge}, Remove{ID: edge}})
	assert.Empty(t, f.doc.Snapshot().Edges)
	assert.Empty(t, s.View().Edges)
}

func TestSession_GraphActions(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "alice", nil)

	id := s.AddNode(NodeInput{})
	rec := f.doc.Snapshot().Nodes[0]
	assert.Equal(t, doc.DefaultNodeType, rec.Type)
	assert.Equal(t, map[string]any{"label": DefaultNodeLabel}, rec.Data)

	require.True(t, s.UpdateNodeData(id, map[string]any{"value": "hello"}))
	assert.Equal(t, map[string]any{"label": DefaultNodeLabel, "value": "hello"}, f.doc.Snapshot().Nodes[0].Data)
	assert.Equal(t, "hello", s.View().Nodes[0].Data["value"])
	assert.False(t, s.UpdateNodeData("ghost", map[string]any{"x": 1}))

	checkbox := s.AddNode(CheckboxNode(doc.Position{X: 3, Y: 4}))
	require.NotEmpty(t, checkbox)
	last := f.doc.Snapshot().Nodes[1]
	assert.Equal(t, "checkbox", last.Type)
	assert.Equal(t, false, last.Data["checked"])

	edge := s.AddEdge(EdgeInput{Source: id, Target: checkbox})
	assert.Equal(t, doc.DefaultEdgeType, f.doc.Snapshot().Edges[0].Type)
	assert.Equal(t, edge, s.View().Edges[0].ID)
}

func TestSession_SeesOtherWriters(t *testing.T) {
	f := newFixture(t)
	alice := f.open(t, "alice", nil)
	bob := f.open(t, "bob", nil)

	a := alice.AddNode(NodeInput{})
	alice.AddNode(NodeInput{})
	require.Len(t, bob.View().Nodes, 2)
	untouched := alice.View().Nodes[1]

	bob.ApplyNodeChanges([]Change{Move{ID: a, Position: doc.Position{X: 7, Y: 7}}})
	assert.Equal(t, doc.Position{X: 7, Y: 7}, alice.View().Nodes[0].Position)
	assert.Same(t, untouched, alice.View().Nodes[1])

	// Selection is per session
	bob.ApplyNodeChanges([]Change{Select{ID: a, Selected: true}})
	assert.True(t, bob.View().Nodes[0].Selected)
	assert.False(t, alice.View().Nodes[0].Selected)
}

func TestSession_ConnectionPresence(t *testing.T) {
	f := newFixture(t)
	alice := f.open(t, "alice", nil)
	bob := f.open(t, "bob", nil)

	var updates []Presence
	bob.OnPresence(func(p Presence) { updates = append(updates, p) })

	alice.UpdateConnection(&presence.Connection{
		Source:     "n1",
		SourceRole: presence.RoleSource,
		Position:   doc.Position{X: 4, Y: 5},
	})
	require.Len(t, bob.Connections(), 1)
	assert.True(t, bob.Connections()[0].Payload.Active())
	require.NotEmpty(t, updates)

	// Next publish is inside the window: it waits for the trailing timer
	alice.UpdateConnection(nil)
	assert.True(t, bob.Connections()[0].Payload.Active())
	f.clock.RunTimers()
	require.Len(t, bob.Connections(), 1)
	assert.False(t, bob.Connections()[0].Payload.Active())
}

func TestSession_PresenceThrottleAndFlush(t *testing.T) {
	f := newFixture(t)
	alice := f.open(t, "alice", nil)

	for i := 0; i < 5; i++ {
		alice.UpdateCursor(presence.Cursor{Position: doc.Position{X: float64(i)}})
	}
	entries := f.doc.CursorFeed().Snapshot()["alice"]
	require.Len(t, entries, 1, "only the leading call is published inside the window")

	alice.FlushPresence()
	entries = f.doc.CursorFeed().Snapshot()["alice"]
	require.Len(t, entries, 2)
	assert.Equal(t, "4/0/0", entries[1].Value)

	f.clock.RunTimers()
	assert.Len(t, f.doc.CursorFeed().Snapshot()["alice"], 2, "flushed value is not published again")
}

func TestSession_RefreshPresenceDropsStaleEntries(t *testing.T) {
	f := newFixture(t)
	alice := f.open(t, "alice", nil)
	bob := f.open(t, "bob", nil)

	alice.UpdateCursor(presence.Cursor{Position: doc.Position{X: 1, Y: 1}})
	require.Len(t, bob.Cursors(), 1)

	f.clock.Advance(presence.DefaultCursorFreshness + time.Second)
	bob.RefreshPresence()
	assert.Empty(t, bob.Cursors())
}

func TestSession_Close(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "alice", nil)
	other := f.open(t, "bob", nil)

	views := 0
	s.OnView(func(View) { views++ })
	s.UpdateCursor(presence.Cursor{})
	s.UpdateCursor(presence.Cursor{Position: doc.Position{X: 1}})

	s.Close()
	s.Close()
	assert.True(t, s.Closed())
	assert.Empty(t, s.View().Nodes)

	other.AddNode(NodeInput{})
	assert.Equal(t, 0, views, "no notifications after close")
	assert.Empty(t, s.View().Nodes)

	f.clock.RunTimers()
	assert.Len(t, f.doc.CursorFeed().Snapshot()["alice"], 1, "pending publish is cancelled")

	assert.Empty(t, s.AddNode(NodeInput{}))
	assert.Empty(t, s.AddEdge(EdgeInput{Source: "a", Target: "b"}))
	assert.False(t, s.UpdateNodeData("x", nil))
	s.ApplyNodeChanges([]Change{Remove{ID: other.View().Nodes[0].ID}})
	assert.Len(t, f.doc.Snapshot().Nodes, 1)
}

func TestSession_Metrics(t *testing.T) {
	f := newFixture(t)
	reg := metrics.NewRegistry()
	s := f.open(t, "alice", nil, WithMetrics(reg))

	id := s.AddNode(NodeInput{})
	s.ApplyNodeChanges([]Change{Select{ID: id, Selected: true}, Move{ID: id}, Remove{ID: "ghost"}})
	s.UpdateCursor(presence.Cursor{})

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ChangesAppliedTotal.WithLabelValues(metrics.CollectionNodes, "select")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ChangesAppliedTotal.WithLabelValues(metrics.CollectionNodes, "move")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.ChangesAppliedTotal.WithLabelValues(metrics.CollectionNodes, "remove")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.PresencePublishesTotal.WithLabelValues(metrics.KindCursor)))

	s.Close()
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.ActiveSessions))
}

// interleavedDoc runs a concurrent write right before each removal reaches the engine
type interleavedDoc struct {
	doc.Document
	before func()
}

func (d *interleavedDoc) RemoveNode(id string) bool {
	if d.before != nil {
		d.before()
	}
	return d.Document.RemoveNode(id)
}

func (d *interleavedDoc) RemoveEdge(id string) bool {
	if d.before != nil {
		d.before()
	}
	return d.Document.RemoveEdge(id)
}

func TestSession_RemoveAfterConcurrentSplice(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c"} {
		f.doc.AppendNode(doc.NodeRecord{ID: id})
	}
	f.doc.AppendEdge(doc.EdgeRecord{ID: "e1", Source: "a", Target: "b"})
	f.doc.AppendEdge(doc.EdgeRecord{ID: "e2", Source: "b", Target: "c"})

	bobDoc, err := f.hub.Connect("bob").Load(context.Background(), f.doc.ID())
	require.NoError(t, err)
	aliceDoc, err := f.hub.Connect("alice").Load(context.Background(), f.doc.ID())
	require.NoError(t, err)

	wrapped := &interleavedDoc{Document: aliceDoc}
	alice := Open(wrapped, "alice", nil, WithClock(f.clock.Now), WithAfterFunc(f.clock.AfterFunc))
	t.Cleanup(alice.Close)
	require.Equal(t, []string{"a", "b", "c"}, nodeIDs(alice.View()))

	// Bob drops the first node and edge between alice's read and her removal
	wrapped.before = func() {
		bobDoc.SpliceNodes(0, 1)
		bobDoc.SpliceEdges(0, 1)
		wrapped.before = nil
	}
	alice.ApplyNodeChanges([]Change{Remove{ID: "b"}})
	assert.Equal(t, []string{"c"}, nodeIDs(alice.View()))
	assert.Equal(t, []string{"c"}, nodeIDs(f.open(t, "carol", nil).View()))

	// Removing an id another writer already removed leaves the rest alone
	wrapped.before = func() {
		bobDoc.RemoveEdge("e2")
		wrapped.before = nil
	}
	alice.ApplyEdgeChanges([]Change{Remove{ID: "e2"}})
	assert.Empty(t, f.doc.Snapshot().Edges)
	assert.Equal(t, []string{"c"}, nodeIDs(alice.View()))
}
