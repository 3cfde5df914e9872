package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/errors"
)

type fakePersister struct {
	mu       sync.Mutex
	flows    map[string]*doc.FlowState
	entries  []doc.FeedEntry
	loadErr  error
	saveErr  error
	saves    int
	loadHits int
}

func newFakePersister() *fakePersister {
	return &fakePersister{flows: make(map[string]*doc.FlowState)}
}

func (p *fakePersister) SaveFlow(_ context.Context, state *doc.FlowState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.flows[state.ID] = state
	return nil
}

func (p *fakePersister) AppendFeedEntry(_ context.Context, _, _ string, entry doc.FeedEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
	return nil
}

func (p *fakePersister) LoadFlow(_ context.Context, id string) (*doc.FlowState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadHits++
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	state, ok := p.flows[id]
	if !ok {
		return nil, errors.NewNotFoundError("flow %s not found", id)
	}
	return state, nil
}

func TestHub_WritesThrough(t *testing.T) {
	p := newFakePersister()
	hub := NewHub(WithPersister(p))

	d, err := hub.Connect("alice").Create(context.Background(), "Flow")
	require.NoError(t, err)
	d.AppendNode(doc.NodeRecord{Type: "text"})
	d.CursorFeed().Append("1/2/0")

	require.Contains(t, p.flows, d.ID())
	assert.Len(t, p.flows[d.ID()].Nodes, 1)
	assert.Equal(t, 2, p.saves)
	require.Len(t, p.entries, 1)
	assert.Equal(t, "alice", p.entries[0].Author)
}

func TestHub_HydratesFromPersister(t *testing.T) {
	p := newFakePersister()
	p.flows["co_zstored"] = &doc.FlowState{
		ID:    "co_zstored",
		Name:  "Stored",
		Nodes: []*doc.NodeRecord{{ID: "n1", Type: "text"}},
		Cursors: doc.FeedSnapshot{
			"bob": {{Author: "bob", Value: "3/4/1"}},
		},
	}
	hub := NewHub(WithPersister(p))

	d, err := hub.Connect("alice").Load(context.Background(), "co_zstored")
	require.NoError(t, err)
	assert.Equal(t, "Stored", d.Name())
	require.Len(t, d.Snapshot().Nodes, 1)
	assert.Equal(t, "3/4/1", d.CursorFeed().Snapshot().Latest()["bob"].Value)

	// Second load is served from memory
	_, err = hub.Connect("carol").Load(context.Background(), "co_zstored")
	require.NoError(t, err)
	assert.Equal(t, 1, p.loadHits)
}

func TestHub_LoadErrors(t *testing.T) {
	p := newFakePersister()
	hub := NewHub(WithPersister(p))

	_, err := hub.Connect("alice").Load(context.Background(), "co_zmissing")
	assert.True(t, errors.IsNotFoundError(err))

	p.loadErr = errors.New("disk I/O error")
	_, err = hub.Connect("alice").Load(context.Background(), "co_zmissing")
	assert.True(t, errors.IsTransportError(err))
	assert.False(t, errors.IsNotFoundError(err))
}

func TestHub_CreateFailsWhenPersistFails(t *testing.T) {
	p := newFakePersister()
	p.saveErr = errors.New("read-only database")
	hub := NewHub(WithPersister(p))

	_, err := hub.Connect("alice").Create(context.Background(), "Flow")
	require.Error(t, err)
	assert.True(t, errors.IsTransportError(err))
	assert.Equal(t, 0, hub.FlowCount())
}

func TestHub_PersistFailureDoesNotBlockWriters(t *testing.T) {
	p := newFakePersister()
	hub := NewHub(WithPersister(p))
	d, err := hub.Connect("alice").Create(context.Background(), "Flow")
	require.NoError(t, err)

	p.saveErr = errors.New("database is locked")
	d.AppendNode(doc.NodeRecord{})
	assert.Len(t, d.Snapshot().Nodes, 1)
}
