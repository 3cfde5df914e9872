package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initFlowMetrics() {
	r.FlowOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coflow_flow_operations_total",
			Help: "Total number of flow lifecycle operations",
		},
		[]string{"operation", "result"}, // create, join, exit, share
	)

	r.JoinDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coflow_join_duration_seconds",
			Help:    "Time to resolve a share code",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	r.ActiveSessions = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "coflow_active_sessions",
			Help: "Number of open flow sessions",
		},
	)
}

func (r *Registry) initSyncMetrics() {
	r.SnapshotsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coflow_snapshots_total",
			Help: "Total number of document and feed snapshots received",
		},
		[]string{"source"}, // document, cursors, connections
	)

	r.ProjectionItemsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coflow_projection_items_total",
			Help: "View items produced by projection, by outcome",
		},
		[]string{"collection", "outcome"}, // reused, rebuilt, purged
	)

	r.ChangesAppliedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coflow_changes_applied_total",
			Help: "Change events applied from the rendering surface",
		},
		[]string{"collection", "kind"},
	)
}

func (r *Registry) initPresenceMetrics() {
	r.PresencePublishesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coflow_presence_publishes_total",
			Help: "Presence entries appended to feeds after throttling",
		},
		[]string{"kind"},
	)

	r.PresenceLive = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coflow_presence_live",
			Help: "Remote collaborators with fresh presence",
		},
		[]string{"kind"},
	)
}
