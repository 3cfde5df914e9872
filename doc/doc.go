// Package doc defines the shared flow document: the graph of nodes and edges
// and the two presence feeds that every collaborator writes to.
//
// The document engine owns conflict resolution, persistence and transport.
// Consumers only see immutable snapshots and write through the Document
// methods. Every mutation produces a new Snapshot; records that did not change
// keep their pointer and records that did change are replaced by a fresh
// pointer. Consumers such as the projection cache rely on that contract for
// change detection, so any Store implementation must honour it.
package doc

import (
	"context"
	"time"
)

// Default values used when creating records and flows
const (
	DefaultFlowName = "New Flow"
	DefaultNodeType = "text"
	DefaultEdgeType = "default"
)

// Feed names
const (
	FeedCursors     = "cursors"
	FeedConnections = "connections"
)

// Position is a point in canvas coordinates
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeRecord is a node of the shared graph.
// Insertion order in the node list is z-order.
type NodeRecord struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

// Clone returns a copy of the record with its own data map
func (n *NodeRecord) Clone() *NodeRecord {
	c := *n
	c.Data = make(map[string]any, len(n.Data))
	for k, v := range n.Data {
		c.Data[k] = v
	}
	return &c
}

// EdgeRecord connects two nodes. Empty handles are absent.
type EdgeRecord struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// Clone returns a copy of the record
func (e *EdgeRecord) Clone() *EdgeRecord {
	c := *e
	return &c
}

// Snapshot is an immutable view of the graph at one point in time
type Snapshot struct {
	Nodes []*NodeRecord
	Edges []*EdgeRecord
}

// FeedEntry is one append to a presence feed
type FeedEntry struct {
	Author string    `json:"author"`
	MadeAt time.Time `json:"made_at"` // server timestamp
	Value  string    `json:"value"`
}

// FeedSnapshot is a feed read as one ordered sub-stream per author,
// oldest entry first.
type FeedSnapshot map[string][]FeedEntry

// Latest returns the most recent entry of each author
func (f FeedSnapshot) Latest() map[string]FeedEntry {
	latest := make(map[string]FeedEntry, len(f))
	for author, entries := range f {
		if len(entries) == 0 {
			continue
		}
		latest[author] = entries[len(entries)-1]
	}
	return latest
}

// Store resolves and creates flow documents on behalf of one account
type Store interface {
	// Account is the identity every feed append made through this store is tagged with
	Account() string

	// Create makes a new, empty, publicly writable flow
	Create(ctx context.Context, name string) (Document, error)

	// Load resolves a flow by its share code. Returns an error wrapping
	// errors.ErrNotFound when the code does not resolve; any other error
	// is a transport failure.
	Load(ctx context.Context, id string) (Document, error)
}

// Document is a handle on one shared flow
type Document interface {
	ID() string
	Name() string

	// Snapshot returns the current graph
	Snapshot() *Snapshot

	// Subscribe registers fn for every new snapshot, delivered in mutation
	// order. fn is called once with the current snapshot before any later
	// one. The returned function removes the subscription and is safe to
	// call more than once.
	Subscribe(fn func(*Snapshot)) (unsubscribe func())

	// AppendNode adds a node at the top of the z-order. An empty ID is
	// replaced by a freshly generated one. Returns the stored record.
	AppendNode(n NodeRecord) *NodeRecord

	// UpdateNode replaces the node with a mutated copy. Returns false
	// when no node has the id.
	UpdateNode(id string, mutate func(*NodeRecord)) bool

	// SpliceNodes removes deleteCount nodes starting at index start.
	// Out of range arguments are clamped.
	SpliceNodes(start, deleteCount int)

	// RemoveNode removes the node with id. The lookup and the removal are one
	// mutation, so concurrent splices cannot shift it onto another node.
	// Returns false when no node has the id.
	RemoveNode(id string) bool

	AppendEdge(e EdgeRecord) *EdgeRecord
	SpliceEdges(start, deleteCount int)
	RemoveEdge(id string) bool

	CursorFeed() Feed
	ConnectionFeed() Feed
}

// Feed is an append-only multi-author log
type Feed interface {
	// Append adds value to the calling account's sub-stream
	Append(value string)

	Snapshot() FeedSnapshot

	// Subscribe registers fn for every new feed snapshot, in append order,
	// starting with the current one
	Subscribe(fn func(FeedSnapshot)) (unsubscribe func())
}

// FlowState is the durable form of a flow
type FlowState struct {
	ID          string
	Name        string
	Nodes       []*NodeRecord
	Edges       []*EdgeRecord
	Cursors     FeedSnapshot
	Connections FeedSnapshot
}

// Persister stores flows beyond the lifetime of the in-process engine
type Persister interface {
	// SaveFlow writes name, nodes (in order) and edges of a flow, replacing
	// what was stored before. Feeds are written separately.
	SaveFlow(ctx context.Context, state *FlowState) error

	// AppendFeedEntry records one feed append
	AppendFeedEntry(ctx context.Context, flowID, feed string, entry FeedEntry) error

	// LoadFlow reads a flow. Returns an error wrapping errors.ErrNotFound when absent.
	LoadFlow(ctx context.Context, id string) (*FlowState, error)
}

// IndexOfNode returns the index of the node with id, or -1
func IndexOfNode(nodes []*NodeRecord, id string) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// IndexOfEdge returns the index of the edge with id, or -1
func IndexOfEdge(edges []*EdgeRecord, id string) int {
	for i, e := range edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}
