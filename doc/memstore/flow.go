package memstore

import (
	"sync"

	"github.com/teranos/coflow/doc"
)

type flow struct {
	hub  *Hub
	id   string
	name string

	// dispatch orders notifications and persistence of the flow and its feeds
	dispatch dispatcher

	mu      sync.Mutex // protects the fields below
	snap    *doc.Snapshot
	subs    map[int]*subscriber[*doc.Snapshot]
	nextSub int
	feeds   map[string]*feed
}

func newFlow(h *Hub, id, name string) *flow {
	f := &flow{
		hub:  h,
		id:   id,
		name: name,
		snap: &doc.Snapshot{
			Nodes: []*doc.NodeRecord{},
			Edges: []*doc.EdgeRecord{},
		},
		subs: make(map[int]*subscriber[*doc.Snapshot]),
	}
	f.feeds = map[string]*feed{
		doc.FeedCursors:     newFeed(f, doc.FeedCursors, nil),
		doc.FeedConnections: newFeed(f, doc.FeedConnections, nil),
	}
	return f
}

func hydrateFlow(h *Hub, state *doc.FlowState) *flow {
	f := newFlow(h, state.ID, state.Name)
	if state.Nodes != nil {
		f.snap.Nodes = state.Nodes
	}
	if state.Edges != nil {
		f.snap.Edges = state.Edges
	}
	f.feeds[doc.FeedCursors] = newFeed(f, doc.FeedCursors, state.Cursors)
	f.feeds[doc.FeedConnections] = newFeed(f, doc.FeedConnections, state.Connections)
	return f
}

// state returns the durable form of the graph. Caller must not hold f.mu.
func (f *flow) state() *doc.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *flow) stateLocked() *doc.FlowState {
	return &doc.FlowState{
		ID:    f.id,
		Name:  f.name,
		Nodes: f.snap.Nodes,
		Edges: f.snap.Edges,
	}
}

func (f *flow) subscribe(fn func(*doc.Snapshot)) func() {
	sub := &subscriber[*doc.Snapshot]{fn: fn}

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = sub
	current := f.snap
	f.dispatch.enqueue(func() { sub.deliver(current) })
	f.mu.Unlock()
	f.dispatch.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.removed.Store(true)
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// commit installs next as the current snapshot, then persists it and
// notifies subscribers in mutation order. Caller must hold f.mu; commit
// releases it.
func (f *flow) commit(next *doc.Snapshot) {
	f.snap = next
	subs := collectSubscribers(f.subs)
	state := f.stateLocked()
	f.dispatch.enqueue(func() {
		f.hub.persistFlow(state)
		for _, sub := range subs {
			sub.deliver(next)
		}
	})
	f.mu.Unlock()
	f.dispatch.drain()
}

func (f *flow) appendNode(n doc.NodeRecord) *doc.NodeRecord {
	rec := n.Clone()
	if rec.ID == "" {
		rec.ID = doc.NewRecordID()
	}
	if rec.Type == "" {
		rec.Type = doc.DefaultNodeType
	}

	f.mu.Lock()
	nodes := make([]*doc.NodeRecord, 0, len(f.snap.Nodes)+1)
	nodes = append(nodes, f.snap.Nodes...)
	nodes = append(nodes, rec)
	f.commit(&doc.Snapshot{Nodes: nodes, Edges: f.snap.Edges})
	return rec
}

func (f *flow) updateNode(id string, mutate func(*doc.NodeRecord)) bool {
	f.mu.Lock()
	idx := doc.IndexOfNode(f.snap.Nodes, id)
	if idx < 0 {
		f.mu.Unlock()
		return false
	}

	rec := f.snap.Nodes[idx].Clone()
	mutate(rec)
	rec.ID = id

	nodes := make([]*doc.NodeRecord, len(f.snap.Nodes))
	copy(nodes, f.snap.Nodes)
	nodes[idx] = rec
	f.commit(&doc.Snapshot{Nodes: nodes, Edges: f.snap.Edges})
	return true
}

func (f *flow) spliceNodes(start, deleteCount int) {
	f.mu.Lock()
	start, end := clampRange(len(f.snap.Nodes), start, deleteCount)
	if start == end {
		f.mu.Unlock()
		return
	}
	nodes := make([]*doc.NodeRecord, 0, len(f.snap.Nodes)-(end-start))
	nodes = append(nodes, f.snap.Nodes[:start]...)
	nodes = append(nodes, f.snap.Nodes[end:]...)
	f.commit(&doc.Snapshot{Nodes: nodes, Edges: f.snap.Edges})
}

func (f *flow) appendEdge(e doc.EdgeRecord) *doc.EdgeRecord {
	rec := e.Clone()
	if rec.ID == "" {
		rec.ID = doc.NewRecordID()
	}
	if rec.Type == "" {
		rec.Type = doc.DefaultEdgeType
	}

	f.mu.Lock()
	edges := make([]*doc.EdgeRecord, 0, len(f.snap.Edges)+1)
	edges = append(edges, f.snap.Edges...)
	edges = append(edges, rec)
	f.commit(&doc.Snapshot{Nodes: f.snap.Nodes, Edges: edges})
	return rec
}

func (f *flow) spliceEdges(start, deleteCount int) {
	f.mu.Lock()
	start, end := clampRange(len(f.snap.Edges), start, deleteCount)
	if start == end {
		f.mu.Unlock()
		return
	}
	edges := make([]*doc.EdgeRecord, 0, len(f.snap.Edges)-(end-start))
	edges = append(edges, f.snap.Edges[:start]...)
	edges = append(edges, f.snap.Edges[end:]...)
	f.commit(&doc.Snapshot{Nodes: f.snap.Nodes, Edges: edges})
}

func (f *flow) removeNode(id string) bool {
	f.mu.Lock()
	idx := doc.IndexOfNode(f.snap.Nodes, id)
	if idx < 0 {
		f.mu.Unlock()
		return false
	}
	nodes := make([]*doc.NodeRecord, 0, len(f.snap.Nodes)-1)
	nodes = append(nodes, f.snap.Nodes[:idx]...)
	nodes = append(nodes, f.snap.Nodes[idx+1:]...)
	f.commit(&doc.Snapshot{Nodes: nodes, Edges: f.snap.Edges})
	return true
}

func (f *flow) removeEdge(id string) bool {
	f.mu.Lock()
	idx := doc.IndexOfEdge(f.snap.Edges, id)
	if idx < 0 {
		f.mu.Unlock()
		return false
	}
	edges := make([]*doc.EdgeRecord, 0, len(f.snap.Edges)-1)
	edges = append(edges, f.snap.Edges[:idx]...)
	edges = append(edges, f.snap.Edges[idx+1:]...)
	f.commit(&doc.Snapshot{Nodes: f.snap.Nodes, Edges: edges})
	return true
}

// clampRange turns a splice (start, deleteCount) into a valid [start, end)
func clampRange(length, start, deleteCount int) (int, int) {
	if start < 0 {
		start = 0
	}
	if start > length {
		start = length
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	end := start + deleteCount
	if end > length {
		end = length
	}
	return start, end
}

// document is one account's handle on a flow
type document struct {
	flow    *flow
	account string
}

func (d *document) ID() string   { return d.flow.id }
func (d *document) Name() string { return d.flow.name }

func (d *document) Snapshot() *doc.Snapshot {
	d.flow.mu.Lock()
	defer d.flow.mu.Unlock()
	return d.flow.snap
}

func (d *document) Subscribe(fn func(*doc.Snapshot)) func() {
	return d.flow.subscribe(fn)
}

func (d *document) AppendNode(n doc.NodeRecord) *doc.NodeRecord {
	return d.flow.appendNode(n)
}

func (d *document) UpdateNode(id string, mutate func(*doc.NodeRecord)) bool {
	return d.flow.updateNode(id, mutate)
}

func (d *document) SpliceNodes(start, deleteCount int) {
	d.flow.spliceNodes(start, deleteCount)
}

func (d *document) RemoveNode(id string) bool {
	return d.flow.removeNode(id)
}

func (d *document) AppendEdge(e doc.EdgeRecord) *doc.EdgeRecord {
	return d.flow.appendEdge(e)
}

func (d *document) SpliceEdges(start, deleteCount int) {
	d.flow.spliceEdges(start, deleteCount)
}

func (d *document) RemoveEdge(id string) bool {
	return d.flow.removeEdge(id)
}

func (d *document) CursorFeed() doc.Feed {
	return &feedHandle{feed: d.flow.feeds[doc.FeedCursors], account: d.account}
}

func (d *document) ConnectionFeed() doc.Feed {
	return &feedHandle{feed: d.flow.feeds[doc.FeedConnections], account: d.account}
}
