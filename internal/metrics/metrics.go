// Package metrics exposes Prometheus instrumentation for the sync queue.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "syncqueue"

// Failure reasons recorded on JobsFailed.
const (
	ReasonRetriesExhausted = "retries_exhausted"
	ReasonTimedOut         = "timed_out"
)

type Metrics struct {
	JobsEnqueued       *prometheus.CounterVec
	AdmissionConflicts *prometheus.CounterVec
	JobsClaimed        prometheus.Counter
	JobsCompleted      prometheus.Counter
	JobsRetried        prometheus.Counter
	JobsFailed         *prometheus.CounterVec
	JobsCleaned        prometheus.Counter
	SyncDuration       prometheus.Histogram
}

// New registers the queue metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		JobsEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Sync jobs admitted to the queue.",
		}, []string{"sync_type"}),
		AdmissionConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_conflicts_total",
			Help:      "Enqueue requests dropped because the slot already had an active job.",
		}, []string{"sync_type"}),
		JobsClaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_claimed_total",
			Help:      "Pending sync jobs handed to a worker.",
		}),
		JobsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Sync jobs that finished successfully.",
		}),
		JobsRetried: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_retried_total",
			Help:      "Failed sync attempts rescheduled with backoff.",
		}),
		JobsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Sync jobs that reached the failed state.",
		}, []string{"reason"}),
		JobsCleaned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_cleaned_total",
			Help:      "Terminal sync jobs removed by retention cleanup.",
		}),
		SyncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time between claim and completion of successful syncs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
	}
}

func (m *Metrics) ObserveSyncDuration(ms int64) {
	m.SyncDuration.Observe((time.Duration(ms) * time.Millisecond).Seconds())
}
