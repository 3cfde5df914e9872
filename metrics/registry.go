// Package metrics exposes prometheus counters for flow sync and presence.
//
// The core never serves /metrics itself. Embedding applications register
// Registry.Gatherer with their own handler; the CLI prints WriteText output.
// A nil *Registry is valid and records nothing.
package metrics

import (
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/teranos/coflow/errors"
)

// Label values
const (
	KindCursor     = "cursor"
	KindConnection = "connection"

	CollectionNodes = "nodes"
	CollectionEdges = "edges"

	ResultOK        = "ok"
	ResultNotFound  = "not_found"
	ResultTransport = "transport"
	ResultStale     = "stale"
	ResultFailed    = "failed"
)

// Registry holds all coflow metrics
type Registry struct {
	// Flow lifecycle
	FlowOperationsTotal *prometheus.CounterVec
	JoinDuration        prometheus.Histogram
	ActiveSessions      prometheus.Gauge

	// Document sync
	SnapshotsTotal       *prometheus.CounterVec
	ProjectionItemsTotal *prometheus.CounterVec
	ChangesAppliedTotal  *prometheus.CounterVec

	// Presence
	PresencePublishesTotal *prometheus.CounterVec
	PresenceLive           *prometheus.GaugeVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with every metric initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}
	r.initFlowMetrics()
	r.initSyncMetrics()
	r.initPresenceMetrics()
	return r
}

// Gatherer returns the underlying prometheus registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteText writes every metric in the prometheus text exposition format
func (r *Registry) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return errors.Wrap(err, "failed to gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrapf(err, "failed to write metric %s", mf.GetName())
		}
	}
	return nil
}
