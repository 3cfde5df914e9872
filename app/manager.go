// Package app manages which flow a client is working on: creating a new
// flow, joining one by its share code, exiting, and sharing the code.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/errors"
	"github.com/teranos/coflow/flow"
	"github.com/teranos/coflow/logger"
	"github.com/teranos/coflow/metrics"
	"github.com/teranos/coflow/presence"
)

// Manager owns the active flow session of one client.
//
// Joins are sequence numbered: a join applies its result only if no create,
// join or exit was started after it. A superseded lookup still runs to
// completion; its result is discarded.
type Manager struct {
	store       doc.Store
	palette     *presence.Palette
	sessionOpts []flow.Option
	clipboard   Clipboard
	notifier    Notifier
	metrics     *metrics.Registry
	logger      *zap.SugaredLogger
	now         func() time.Time

	mu        sync.Mutex // protects the fields below
	state     State
	errMsg    string
	session   *flow.Session
	seq       uint64
	listeners map[int]func(Status)
	nextID    int
}

// Option configures a Manager
type Option func(*Manager)

// WithPalette sets the collaborator palette shared by every session
func WithPalette(p *presence.Palette) Option {
	return func(m *Manager) {
		m.palette = p
	}
}

// WithSessionOptions sets the options every opened session gets
func WithSessionOptions(opts ...flow.Option) Option {
	return func(m *Manager) {
		m.sessionOpts = append(m.sessionOpts, opts...)
	}
}

// WithClipboard sets where Share writes the flow id
func WithClipboard(c Clipboard) Option {
	return func(m *Manager) {
		m.clipboard = c
	}
}

// WithNotifier sets where Share reports its outcome
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithMetrics records lifecycle operations in r. Sessions opened by the
// manager record into r as well.
func WithMetrics(r *metrics.Registry) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// WithLogger sets the manager logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager acting through store. It starts with no active flow.
func NewManager(store doc.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		clipboard: SystemClipboard{},
		notifier:  LogNotifier{},
		logger:    logger.ComponentLogger("app"),
		now:       time.Now,
		state:     NoActiveFlow,
		listeners: make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.palette == nil {
		m.palette = presence.NewPalette()
	}
	if m.metrics != nil {
		m.sessionOpts = append(m.sessionOpts, flow.WithMetrics(m.metrics))
	}
	return m
}

// Status returns the current lifecycle status
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	return m.Status().State
}

// Session returns the active session, or nil
func (m *Manager) Session() *flow.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Palette returns the palette shared by the manager's sessions
func (m *Manager) Palette() *presence.Palette {
	return m.palette
}

// OnState registers fn for every status change. Returns a function removing it.
func (m *Manager) OnState(fn func(Status)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// CreateFlow creates an empty flow and makes it active
func (m *Manager) CreateFlow(ctx context.Context) (*flow.Session, error) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	document, err := m.store.Create(ctx, doc.DefaultFlowName)
	if err != nil {
		m.metrics.RecordFlowOperation("create", metrics.ResultFailed)
		m.fail(seq, MsgCreateFailed)
		return nil, errors.Wrap(err, "failed to create flow")
	}

	session, ok := m.activate(seq, document)
	if !ok {
		return nil, errors.New("flow creation superseded")
	}
	m.metrics.RecordFlowOperation("create", metrics.ResultOK)
	m.logger.Infow("Flow created", logger.FieldFlowID, document.ID())
	return session, nil
}

// JoinFlow makes the flow with the given share code active. Returns true on
// success. An empty code returns false without any state change.
func (m *Manager) JoinFlow(ctx context.Context, code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}

	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.state = Loading
	m.errMsg = ""
	status, listeners := m.snapshotLocked()
	m.mu.Unlock()
	notify(listeners, status)

	start := m.now()
	document, err := m.store.Load(ctx, code)
	elapsed := m.now().Sub(start)

	if err != nil {
		result, msg := metrics.ResultTransport, MsgJoinFailed
		if errors.IsNotFoundError(err) {
			result, msg = metrics.ResultNotFound, MsgInvalidFlowCode
		}
		if !m.fail(seq, msg) {
			result = metrics.ResultStale
		}
		m.metrics.RecordJoin(result, elapsed)
		m.logger.Infow("Failed to join flow",
			logger.FieldFlowID, code,
			logger.FieldSeq, seq,
			logger.FieldError, err,
		)
		return false
	}

	if _, ok := m.activate(seq, document); !ok {
		m.metrics.RecordJoin(metrics.ResultStale, elapsed)
		return false
	}
	m.metrics.RecordJoin(metrics.ResultOK, elapsed)
	m.logger.Infow("Flow joined", logger.FieldFlowID, document.ID(), logger.FieldSeq, seq)
	return true
}

// ExitFlow closes the active session and returns to NoActiveFlow. The flow
// itself is left untouched for other collaborators.
func (m *Manager) ExitFlow() {
	m.mu.Lock()
	m.seq++
	previous := m.session
	m.session = nil
	m.state = NoActiveFlow
	m.errMsg = ""
	status, listeners := m.snapshotLocked()
	m.mu.Unlock()

	if previous != nil {
		previous.Close()
		m.metrics.RecordFlowOperation("exit", metrics.ResultOK)
		m.logger.Infow("Flow exited", logger.FieldFlowID, previous.ID())
	}
	notify(listeners, status)
}

// Close exits the active flow
func (m *Manager) Close() {
	m.ExitFlow()
}

// activate opens a session on document and makes it active if seq is still
// the latest operation. The previous session is closed.
func (m *Manager) activate(seq uint64, document doc.Document) (*flow.Session, bool) {
	session := flow.Open(document, m.store.Account(), m.palette, m.sessionOpts...)

	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		session.Close()
		m.logger.Debugw("Discarding superseded flow", logger.FieldFlowID, document.ID(), logger.FieldSeq, seq)
		return nil, false
	}
	previous := m.session
	m.session = session
	m.state = Active
	m.errMsg = ""
	status, listeners := m.snapshotLocked()
	m.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	notify(listeners, status)
	return session, true
}

// fail moves to the Error state if seq is still the latest operation.
// The active session, if any, is kept.
func (m *Manager) fail(seq uint64, msg string) bool {
	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		return false
	}
	m.state = Error
	m.errMsg = msg
	status, listeners := m.snapshotLocked()
	m.mu.Unlock()

	notify(listeners, status)
	return true
}

func (m *Manager) statusLocked() Status {
	s := Status{State: m.state, Error: m.errMsg}
	if m.session != nil {
		s.FlowID = m.session.ID()
	}
	return s
}

func (m *Manager) snapshotLocked() (Status, []func(Status)) {
	listeners := make([]func(Status), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	return m.statusLocked(), listeners
}

func notify(listeners []func(Status), status Status) {
	for _, fn := range listeners {
		fn(status)
	}
}
