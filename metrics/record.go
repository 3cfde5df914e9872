package metrics

import "time"

// RecordFlowOperation counts a lifecycle operation
func (r *Registry) RecordFlowOperation(operation, result string) {
	if r == nil {
		return
	}
	r.FlowOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordJoin counts a join and observes how long it took
func (r *Registry) RecordJoin(result string, duration time.Duration) {
	if r == nil {
		return
	}
	r.FlowOperationsTotal.WithLabelValues("join", result).Inc()
	r.JoinDuration.Observe(duration.Seconds())
}

// SessionOpened tracks an opened session
func (r *Registry) SessionOpened() {
	if r == nil {
		return
	}
	r.ActiveSessions.Inc()
}

// SessionClosed tracks a closed session
func (r *Registry) SessionClosed() {
	if r == nil {
		return
	}
	r.ActiveSessions.Dec()
}

// RecordSnapshot counts a snapshot received from source
func (r *Registry) RecordSnapshot(source string) {
	if r == nil {
		return
	}
	r.SnapshotsTotal.WithLabelValues(source).Inc()
}

// RecordProjection adds the outcome counts of one projection
func (r *Registry) RecordProjection(collection string, reused, rebuilt, purged int) {
	if r == nil {
		return
	}
	r.ProjectionItemsTotal.WithLabelValues(collection, "reused").Add(float64(reused))
	r.ProjectionItemsTotal.WithLabelValues(collection, "rebuilt").Add(float64(rebuilt))
	r.ProjectionItemsTotal.WithLabelValues(collection, "purged").Add(float64(purged))
}

// RecordChange counts one applied change event
func (r *Registry) RecordChange(collection, kind string) {
	if r == nil {
		return
	}
	r.ChangesAppliedTotal.WithLabelValues(collection, kind).Inc()
}

// RecordPresencePublish counts a presence append
func (r *Registry) RecordPresencePublish(kind string) {
	if r == nil {
		return
	}
	r.PresencePublishesTotal.WithLabelValues(kind).Inc()
}

// SetLivePresence sets the number of remote collaborators with fresh presence
func (r *Registry) SetLivePresence(kind string, n int) {
	if r == nil {
		return
	}
	r.PresenceLive.WithLabelValues(kind).Set(float64(n))
}
