package dto

import (
	"time"

	"github.com/joshu-sajeev/syncqueue/internal/config"
	"github.com/joshu-sajeev/syncqueue/internal/models"
)

type EnqueueSyncJobDTO struct {
	TenantID         string          `json:"tenant_id" validate:"required,max=255"`
	ConnectorID      string          `json:"connector_id" validate:"required,max=255"`
	SyncType         config.SyncType `json:"sync_type" validate:"required,oneof=scheduled manual webhook"`
	RelatedSessionID *string         `json:"related_session_id,omitempty" validate:"omitempty,max=255"`
}

type EnqueueSyncJobResponseDTO struct {
	ID     *string `json:"id"`
	Queued bool    `json:"queued"`
}

type ClaimSyncJobDTO struct {
	TenantID    string `json:"tenant_id" validate:"required"`
	ConnectorID string `json:"connector_id" validate:"required"`
}

type CompleteSyncJobDTO struct {
	Processed         int `json:"processed" validate:"gte=0"`
	Created           int `json:"created" validate:"gte=0"`
	Updated           int `json:"updated" validate:"gte=0"`
	ConflictsDetected int `json:"conflicts_detected" validate:"gte=0"`
	ConflictsResolved int `json:"conflicts_resolved" validate:"gte=0"`
}

func (d CompleteSyncJobDTO) Stats() models.SyncStats {
	return models.SyncStats{
		Processed:         d.Processed,
		Created:           d.Created,
		Updated:           d.Updated,
		ConflictsDetected: d.ConflictsDetected,
		ConflictsResolved: d.ConflictsResolved,
	}
}

type FailSyncJobDTO struct {
	Error string `json:"error" validate:"required"`
}

type SyncJobResponseDTO struct {
	ID               string                `json:"id"`
	TenantID         string                `json:"tenant_id"`
	ConnectorID      string                `json:"connector_id"`
	Status           config.SyncStatus     `json:"status"`
	SyncType         config.SyncType       `json:"sync_type"`
	QueuedAt         time.Time             `json:"queued_at"`
	StartedAt        *time.Time            `json:"started_at,omitempty"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
	Error            *string               `json:"error,omitempty"`
	Stats            *SyncStatsResponseDTO `json:"stats,omitempty"`
	RetryCount       int                   `json:"retry_count"`
	MaxRetries       int                   `json:"max_retries"`
	NextRetryAt      *time.Time            `json:"next_retry_at,omitempty"`
	RelatedSessionID *string               `json:"related_session_id,omitempty"`
}

type SyncStatsResponseDTO struct {
	Processed         int   `json:"processed"`
	Created           int   `json:"created"`
	Updated           int   `json:"updated"`
	ConflictsDetected int   `json:"conflicts_detected"`
	ConflictsResolved int   `json:"conflicts_resolved"`
	DurationMs        int64 `json:"duration_ms"`
}

func newSyncStatsResponse(stats *models.SyncStats) *SyncStatsResponseDTO {
	if stats == nil {
		return nil
	}
	return &SyncStatsResponseDTO{
		Processed:         stats.Processed,
		Created:           stats.Created,
		Updated:           stats.Updated,
		ConflictsDetected: stats.ConflictsDetected,
		ConflictsResolved: stats.ConflictsResolved,
		DurationMs:        stats.DurationMs,
	}
}

// NewSyncJobResponse projects a stored job for API consumers. Undecodable
// stats are dropped rather than failing the whole read.
func NewSyncJobResponse(job *models.SyncJob) SyncJobResponseDTO {
	stats, _ := job.StatsData()
	return SyncJobResponseDTO{
		ID:               job.ID,
		TenantID:         job.TenantID,
		ConnectorID:      job.ConnectorID,
		Status:           job.Status,
		SyncType:         job.SyncType,
		QueuedAt:         job.QueuedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
		Error:            job.Error,
		Stats:            newSyncStatsResponse(stats),
		RetryCount:       job.RetryCount,
		MaxRetries:       job.MaxRetries,
		NextRetryAt:      job.NextRetryAt,
		RelatedSessionID: job.RelatedSessionID,
	}
}

type CountResponseDTO struct {
	Count int64 `json:"count"`
}
