// Package metrics exposes optional Prometheus instrumentation for the
// engine: lock contention, append throughput, and snapshot cadence. A nil
// *Metrics is always safe to call methods on — instrumentation is never
// required for the engine to function.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters/histograms a caller may register against its
// own prometheus.Registerer.
type Metrics struct {
	LockWaitSeconds   prometheus.Histogram
	LockContentions   prometheus.Counter
	EventsAppended    prometheus.Counter
	SnapshotsWritten  prometheus.Counter
	RepairOrphansSeen prometheus.Counter
}

// New constructs and registers the engine's metrics against reg. Pass nil
// to get an unregistered, purely in-memory instance (useful for tests).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "tasque_lock_wait_seconds",
			Help: "Time spent waiting to acquire the write lock.",
		}),
		LockContentions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasque_lock_contentions_total",
			Help: "Number of times a lock acquisition observed the lock already held.",
		}),
		EventsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasque_events_appended_total",
			Help: "Number of events appended to the log.",
		}),
		SnapshotsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasque_snapshots_written_total",
			Help: "Number of snapshot files written.",
		}),
		RepairOrphansSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasque_repair_orphans_total",
			Help: "Number of orphaned edges found by repair/doctor.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.LockWaitSeconds, m.LockContentions, m.EventsAppended, m.SnapshotsWritten, m.RepairOrphansSeen)
	}
	return m
}

// IncLockContention is nil-safe.
func (m *Metrics) IncLockContention() {
	if m != nil {
		m.LockContentions.Inc()
	}
}

// AddEventsAppended is nil-safe.
func (m *Metrics) AddEventsAppended(n int) {
	if m != nil {
		m.EventsAppended.Add(float64(n))
	}
}

// IncSnapshotWritten is nil-safe.
func (m *Metrics) IncSnapshotWritten() {
	if m != nil {
		m.SnapshotsWritten.Inc()
	}
}

// AddRepairOrphans is nil-safe.
func (m *Metrics) AddRepairOrphans(n int) {
	if m != nil {
		m.RepairOrphansSeen.Add(float64(n))
	}
}
