// Package memstore is an in-process multi-writer flow engine.
//
// A Hub holds every open flow. Each collaborator connects to the hub with its
// own account and receives a doc.Store; all stores connected to the same hub
// observe each other's writes. Records are copy-on-write, so snapshots handed
// to subscribers are never mutated afterwards.
//
// Persistence and subscriber notifications of a flow run in mutation order,
// outside the flow lock. An uncontended write delivers them on the writing
// goroutine before returning. When another goroutine is already delivering,
// the write is queued behind it and delivered by that goroutine; the same
// applies to a subscriber writing back into the document from its callback.
package memstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/errors"
	"github.com/teranos/coflow/logger"
)

// Hub is the shared engine behind every connected store
type Hub struct {
	mu        sync.Mutex
	flows     map[string]*flow
	persister doc.Persister
	now       func() time.Time
	logger    *zap.SugaredLogger
}

// Option configures a Hub
type Option func(*Hub)

// WithPersister makes the hub write every mutation through to p and resolve
// unknown flow ids with p.LoadFlow.
func WithPersister(p doc.Persister) Option {
	return func(h *Hub) {
		h.persister = p
	}
}

// WithClock sets the clock used for feed timestamps
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

// WithLogger sets the hub logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// NewHub creates an empty engine
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		flows:  make(map[string]*flow),
		now:    time.Now,
		logger: logger.ComponentLogger("memstore"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect returns a store acting as account
func (h *Hub) Connect(account string) doc.Store {
	return &store{hub: h, account: account}
}

// FlowCount returns the number of flows currently held in memory
func (h *Hub) FlowCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.flows)
}

func (h *Hub) create(ctx context.Context, name string) (*flow, error) {
	f := newFlow(h, doc.NewFlowID(), name)

	if h.persister != nil {
		if err := h.persister.SaveFlow(ctx, f.state()); err != nil {
			return nil, errors.WrapTransport(err, "failed to persist new flow")
		}
	}

	h.mu.Lock()
	h.flows[f.id] = f
	h.mu.Unlock()

	h.logger.Infow("Flow created", logger.FieldFlowID, f.id)
	return f, nil
}

func (h *Hub) load(ctx context.Context, id string) (*flow, error) {
	h.mu.Lock()
	f, ok := h.flows[id]
	h.mu.Unlock()
	if ok {
		return f, nil
	}

	if h.persister == nil {
		return nil, errors.NewNotFoundError("flow %s not found", id)
	}

	state, err := h.persister.LoadFlow(ctx, id)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil, err
		}
		return nil, errors.WrapTransport(err, "failed to load flow")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// Another caller may have hydrated the flow while we were loading
	if existing, ok := h.flows[id]; ok {
		return existing, nil
	}
	f = hydrateFlow(h, state)
	h.flows[id] = f

	h.logger.Infow("Flow loaded",
		logger.FieldFlowID, id,
		logger.FieldNodes, len(state.Nodes),
		logger.FieldEdges, len(state.Edges),
	)
	return f, nil
}

// persistFlow writes the graph part of a flow. Failures are logged only:
// writers keep working against the in-memory state.
func (h *Hub) persistFlow(state *doc.FlowState) {
	if h.persister == nil {
		return
	}
	if err := h.persister.SaveFlow(context.Background(), state); err != nil {
		h.logger.Warnw("Failed to persist flow",
			logger.FieldFlowID, state.ID,
			logger.FieldError, err,
		)
	}
}

func (h *Hub) persistFeedEntry(flowID, feed string, entry doc.FeedEntry) {
	if h.persister == nil {
		return
	}
	if err := h.persister.AppendFeedEntry(context.Background(), flowID, feed, entry); err != nil {
		h.logger.Warnw("Failed to persist feed entry",
			logger.FieldFlowID, flowID,
			logger.FieldFeed, feed,
			logger.FieldError, err,
		)
	}
}

type store struct {
	hub     *Hub
	account string
}

func (s *store) Account() string {
	return s.account
}

func (s *store) Create(ctx context.Context, name string) (doc.Document, error) {
	if name == "" {
		name = doc.DefaultFlowName
	}
	f, err := s.hub.create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &document{flow: f, account: s.account}, nil
}

func (s *store) Load(ctx context.Context, id string) (doc.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapTransport(err, "load cancelled")
	}
	f, err := s.hub.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &document{flow: f, account: s.account}, nil
}
