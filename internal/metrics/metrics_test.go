package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.JobsEnqueued.WithLabelValues("manual").Inc()
	m.AdmissionConflicts.WithLabelValues("scheduled").Add(2)
	m.JobsFailed.WithLabelValues(ReasonTimedOut).Inc()
	m.ObserveSyncDuration(1500)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsEnqueued.WithLabelValues("manual")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AdmissionConflicts.WithLabelValues("scheduled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFailed.WithLabelValues(ReasonTimedOut)))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["syncqueue_jobs_enqueued_total"])
	assert.True(t, names["syncqueue_sync_duration_seconds"])
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) })
}
