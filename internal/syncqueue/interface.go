package syncqueue

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/syncqueue/internal/dto"
	"github.com/joshu-sajeev/syncqueue/internal/models"
)

// SyncJobRepoInterface defines the transactional store operations of the queue.
// Every mutating method runs as one atomic transaction.
type SyncJobRepoInterface interface {
	// Enqueue inserts job as pending unless its slot already holds an active
	// job, in which case it reports false and inserts nothing.
	Enqueue(ctx context.Context, job *models.SyncJob) (bool, error)
	Claim(ctx context.Context, slot models.Slot) (*models.SyncJob, error)
	Complete(ctx context.Context, id string, stats models.SyncStats) (*models.SyncJob, error)
	Fail(ctx context.Context, id string, errMsg string, backoffBase time.Duration) (*models.SyncJob, error)
	FailStuck(ctx context.Context, timeout time.Duration) ([]models.SyncJob, error)
	DeleteTerminalOlderThan(ctx context.Context, olderThanDays int) (int64, error)
	ReadyForRetry(ctx context.Context) ([]models.SyncJob, error)
	ClaimableSlots(ctx context.Context, limit int) ([]models.Slot, error)
	List(ctx context.Context, tenantID string, connectorID *string) ([]models.SyncJob, error)
	Get(ctx context.Context, id string) (*models.SyncJob, error)
}

// SyncJobServiceInterface defines the queue operations exposed to triggers,
// workers and maintenance tasks.
type SyncJobServiceInterface interface {
	EnqueueSyncJob(ctx context.Context, req *dto.EnqueueSyncJobDTO) (*string, error)
	ClaimSyncJob(ctx context.Context, tenantID, connectorID string) (*dto.SyncJobResponseDTO, error)
	CompleteSyncJob(ctx context.Context, id string, stats models.SyncStats) error
	FailSyncJob(ctx context.Context, id string, errMsg string) error
	FailStuckJobs(ctx context.Context, timeout time.Duration) (int, error)
	CleanupOldSyncJobs(ctx context.Context, olderThanDays int) (int64, error)
	GetJobsReadyForRetry(ctx context.Context) ([]dto.SyncJobResponseDTO, error)
	ClaimableSlots(ctx context.Context, limit int) ([]models.Slot, error)
	GetSyncQueueStatus(ctx context.Context, tenantID string, connectorID *string) ([]dto.SyncJobResponseDTO, error)
	GetSyncJob(ctx context.Context, id string) (*dto.SyncJobResponseDTO, error)
}

// SyncJobHandlerInterface defines the contract for HTTP request handlers.
type SyncJobHandlerInterface interface {
	Enqueue(c *gin.Context)
	Claim(c *gin.Context)
	Complete(c *gin.Context)
	Fail(c *gin.Context)
	Get(c *gin.Context)
	Status(c *gin.Context)
	ReadyForRetry(c *gin.Context)
	Reap(c *gin.Context)
	Cleanup(c *gin.Context)
}
