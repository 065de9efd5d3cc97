package worker

import (
	"context"
	"log/slog"

	"github.com/joshu-sajeev/syncqueue/internal/dto"
	"github.com/joshu-sajeev/syncqueue/internal/models"
)

// Executor performs the external sync for a claimed job. It must be safe to
// run again for the same slot: a reaped or retried job is executed anew.
type Executor interface {
	Execute(ctx context.Context, job *dto.SyncJobResponseDTO) (models.SyncStats, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, job *dto.SyncJobResponseDTO) (models.SyncStats, error)

func (f ExecutorFunc) Execute(ctx context.Context, job *dto.SyncJobResponseDTO) (models.SyncStats, error) {
	return f(ctx, job)
}

// LogExecutor only logs the job. It stands in until a connector-specific
// executor is plugged in.
var LogExecutor = ExecutorFunc(func(ctx context.Context, job *dto.SyncJobResponseDTO) (models.SyncStats, error) {
	slog.Info("executing sync",
		"job_id", job.ID,
		"tenant_id", job.TenantID,
		"connector_id", job.ConnectorID,
		"sync_type", job.SyncType,
		"attempt", job.RetryCount+1,
	)
	return models.SyncStats{}, nil
})
