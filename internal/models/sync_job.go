package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/syncqueue/internal/config"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncStats are the aggregate counters a finished sync reports.
type SyncStats struct {
	Processed         int   `json:"processed"`
	Created           int   `json:"created"`
	Updated           int   `json:"updated"`
	ConflictsDetected int   `json:"conflictsDetected"`
	ConflictsResolved int   `json:"conflictsResolved"`
	DurationMs        int64 `json:"durationMs"`
}

// Slot identifies the tenant/connector pair a job synchronises.
type Slot struct {
	TenantID    string
	ConnectorID string
}

func (s Slot) String() string {
	return s.TenantID + "/" + s.ConnectorID
}

// SyncJob is one attempt chain to synchronise a connector for a tenant.
type SyncJob struct {
	ID               string            `gorm:"type:varchar(36);primaryKey"`
	TenantID         string            `gorm:"type:varchar(255);not null;index:idx_sync_jobs_slot,priority:1"`
	ConnectorID      string            `gorm:"type:varchar(255);not null;index:idx_sync_jobs_slot,priority:2"`
	Status           config.SyncStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	SyncType         config.SyncType   `gorm:"type:varchar(20);not null"`
	QueuedAt         time.Time         `gorm:"not null"`
	StartedAt        *time.Time
	CompletedAt      *time.Time
	Error            *string        `gorm:"type:text"`
	Stats            datatypes.JSON `gorm:"type:jsonb"`
	RetryCount       int            `gorm:"not null;default:0"`
	MaxRetries       int            `gorm:"not null"`
	NextRetryAt      *time.Time     `gorm:"index"`
	RelatedSessionID *string        `gorm:"type:varchar(255)"`
}

func (SyncJob) TableName() string {
	return "sync_jobs"
}

// BeforeCreate assigns a UUID when the caller has not set one.
func (j *SyncJob) BeforeCreate(_ *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

func (j *SyncJob) Slot() Slot {
	return Slot{TenantID: j.TenantID, ConnectorID: j.ConnectorID}
}

// StatsData decodes the stats column. A job without stats yields nil.
func (j *SyncJob) StatsData() (*SyncStats, error) {
	if len(j.Stats) == 0 {
		return nil, nil
	}

	var stats SyncStats
	if err := json.Unmarshal(j.Stats, &stats); err != nil {
		return nil, fmt.Errorf("decode stats for job %s: %w", j.ID, err)
	}
	return &stats, nil
}

func (j *SyncJob) SetStats(stats SyncStats) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats for job %s: %w", j.ID, err)
	}
	j.Stats = datatypes.JSON(b)
	return nil
}

// Transition moves the job to next, rejecting edges the state machine does not allow.
func (j *SyncJob) Transition(next config.SyncStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: job %s cannot move from %s to %s", ErrInvalidTransition, j.ID, j.Status, next)
	}
	j.Status = next
	return nil
}
