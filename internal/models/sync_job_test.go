package models

import (
	"testing"

	"github.com/joshu-sajeev/syncqueue/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncJob_Transition(t *testing.T) {
	job := &SyncJob{ID: "job-1", Status: config.SyncStatusPending}

	require.NoError(t, job.Transition(config.SyncStatusRunning))
	assert.Equal(t, config.SyncStatusRunning, job.Status)

	require.NoError(t, job.Transition(config.SyncStatusCompleted))

	err := job.Transition(config.SyncStatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "cannot move from completed to pending")
	assert.Equal(t, config.SyncStatusCompleted, job.Status)
}

func TestSyncJob_Stats(t *testing.T) {
	job := &SyncJob{ID: "job-1"}

	stats, err := job.StatsData()
	require.NoError(t, err)
	assert.Nil(t, stats)

	in := SyncStats{Processed: 10, Created: 2, Updated: 7, ConflictsDetected: 1, ConflictsResolved: 1, DurationMs: 1500}
	require.NoError(t, job.SetStats(in))
	assert.JSONEq(t,
		`{"processed":10,"created":2,"updated":7,"conflictsDetected":1,"conflictsResolved":1,"durationMs":1500}`,
		string(job.Stats))

	out, err := job.StatsData()
	require.NoError(t, err)
	assert.Equal(t, in, *out)

	job.Stats = []byte("{not json")
	_, err = job.StatsData()
	assert.Error(t, err)
}

func TestSyncJob_BeforeCreate(t *testing.T) {
	job := &SyncJob{}
	require.NoError(t, job.BeforeCreate(nil))
	assert.Len(t, job.ID, 36)

	kept := &SyncJob{ID: "fixed"}
	require.NoError(t, kept.BeforeCreate(nil))
	assert.Equal(t, "fixed", kept.ID)
}

func TestSlot_String(t *testing.T) {
	job := &SyncJob{TenantID: "acme", ConnectorID: "hubspot"}
	assert.Equal(t, "acme/hubspot", job.Slot().String())
}
