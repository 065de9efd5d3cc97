package syncqueue

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joshu-sajeev/syncqueue/common"
	"github.com/joshu-sajeev/syncqueue/internal/config"
	"github.com/joshu-sajeev/syncqueue/internal/dto"
	"github.com/joshu-sajeev/syncqueue/internal/metrics"
	"github.com/joshu-sajeev/syncqueue/internal/models"
	"github.com/joshu-sajeev/syncqueue/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultClaimableSlotsLimit = 100

type SyncJobService struct {
	repo    SyncJobRepoInterface
	cfg     config.QueueConfig
	metrics *metrics.Metrics
}

// NewSyncJobService wires the queue operations to repo. A nil m records into
// a private registry.
func NewSyncJobService(repo SyncJobRepoInterface, cfg config.QueueConfig, m *metrics.Metrics) *SyncJobService {
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &SyncJobService{repo: repo, cfg: cfg, metrics: m}
}

var _ SyncJobServiceInterface = (*SyncJobService)(nil)

// EnqueueSyncJob admits a new pending job for the request's slot and returns
// its id. It returns nil, nil when the slot already has a pending or running
// job; that is an expected outcome, not an error.
func (s *SyncJobService) EnqueueSyncJob(ctx context.Context, req *dto.EnqueueSyncJobDTO) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(http.StatusRequestTimeout, err, "request canceled or timed out")
	}

	if err := middleware.ValidateStruct(req); err != nil {
		return nil, err
	}

	job := &models.SyncJob{
		TenantID:         req.TenantID,
		ConnectorID:      req.ConnectorID,
		SyncType:         req.SyncType,
		MaxRetries:       s.cfg.MaxRetries,
		RelatedSessionID: req.RelatedSessionID,
	}

	created, err := s.repo.Enqueue(ctx, job)
	if err != nil {
		return nil, mapRepoError(err, "failed to enqueue sync job")
	}

	if !created {
		s.metrics.AdmissionConflicts.WithLabelValues(string(req.SyncType)).Inc()
		return nil, nil
	}

	s.metrics.JobsEnqueued.WithLabelValues(string(req.SyncType)).Inc()
	slog.Info("sync job queued",
		"job_id", job.ID,
		"tenant_id", job.TenantID,
		"connector_id", job.ConnectorID,
		"sync_type", job.SyncType,
	)

	id := job.ID
	return &id, nil
}

// ClaimSyncJob hands the oldest claimable pending job of the slot to the
// caller and marks it running. It returns nil, nil when there is nothing to
// claim or the slot is already running.
func (s *SyncJobService) ClaimSyncJob(ctx context.Context, tenantID, connectorID string) (*dto.SyncJobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	if err := requireSlot(tenantID, connectorID); err != nil {
		return nil, err
	}

	job, err := s.repo.Claim(ctx, models.Slot{TenantID: tenantID, ConnectorID: connectorID})
	if err != nil {
		return nil, mapRepoError(err, "failed to claim sync job")
	}
	if job == nil {
		return nil, nil
	}

	s.metrics.JobsClaimed.Inc()
	slog.Info("sync job claimed", "job_id", job.ID, "tenant_id", tenantID, "connector_id", connectorID, "retry_count", job.RetryCount)

	resp := dto.NewSyncJobResponse(job)
	return &resp, nil
}

// CompleteSyncJob marks a running job completed with the given stats. An
// unknown id is an error.
func (s *SyncJobService) CompleteSyncJob(ctx context.Context, id string, stats models.SyncStats) error {
	if err := ctx.Err(); err != nil {
		return common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	if strings.TrimSpace(id) == "" {
		return common.Errf(http.StatusBadRequest, "job id is required")
	}

	job, err := s.repo.Complete(ctx, id, stats)
	if err != nil {
		return mapRepoError(err, "failed to complete sync job")
	}

	s.metrics.JobsCompleted.Inc()
	if data, _ := job.StatsData(); data != nil {
		s.metrics.ObserveSyncDuration(data.DurationMs)
		slog.Info("sync job completed", "job_id", job.ID, "duration_ms", data.DurationMs, "processed", data.Processed)
	}

	return nil
}

// FailSyncJob records a failed attempt. The job is rescheduled with
// exponential backoff while retries remain, otherwise it fails permanently.
func (s *SyncJobService) FailSyncJob(ctx context.Context, id string, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	if strings.TrimSpace(id) == "" {
		return common.Errf(http.StatusBadRequest, "job id is required")
	}

	job, err := s.repo.Fail(ctx, id, errMsg, s.cfg.BackoffBase)
	if err != nil {
		return mapRepoError(err, "failed to record sync job failure")
	}

	if job.Status == config.SyncStatusPending {
		s.metrics.JobsRetried.Inc()
		slog.Warn("sync job failed, retry scheduled",
			"job_id", job.ID,
			"attempt", job.RetryCount,
			"max_retries", job.MaxRetries,
			"next_retry_at", job.NextRetryAt,
			"error", errMsg,
		)
		return nil
	}

	s.metrics.JobsFailed.WithLabelValues(metrics.ReasonRetriesExhausted).Inc()
	slog.Error("sync job permanently failed",
		"job_id", job.ID,
		"retries", job.RetryCount,
		"error", errMsg,
	)
	return nil
}

// FailStuckJobs fails running jobs started more than timeout ago and returns
// how many it changed. A non-positive timeout uses the configured one.
func (s *SyncJobService) FailStuckJobs(ctx context.Context, timeout time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	if timeout <= 0 {
		timeout = s.cfg.StuckTimeout
	}

	jobs, err := s.repo.FailStuck(ctx, timeout)
	if err != nil {
		return 0, mapRepoError(err, "failed to reap stuck sync jobs")
	}

	if len(jobs) > 0 {
		s.metrics.JobsFailed.WithLabelValues(metrics.ReasonTimedOut).Add(float64(len(jobs)))
		for _, job := range jobs {
			slog.Warn("stuck sync job failed", "job_id", job.ID, "tenant_id", job.TenantID, "connector_id", job.ConnectorID, "started_at", job.StartedAt)
		}
	}

	return len(jobs), nil
}

// CleanupOldSyncJobs deletes completed and failed jobs finished more than
// olderThanDays days ago.
func (s *SyncJobService) CleanupOldSyncJobs(ctx context.Context, olderThanDays int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	if olderThanDays < 0 {
		return 0, common.NewAPIError(
			http.StatusBadRequest,
			"older_than_days must not be negative",
			map[string]any{"provided": olderThanDays},
		)
	}

	deleted, err := s.repo.DeleteTerminalOlderThan(ctx, olderThanDays)
	if err != nil {
		return 0, mapRepoError(err, "failed to clean up sync jobs")
	}

	s.metrics.JobsCleaned.Add(float64(deleted))
	slog.Info("cleaned up old sync jobs", "deleted", deleted, "older_than_days", olderThanDays)

	return deleted, nil
}

// GetJobsReadyForRetry lists pending jobs whose backoff has elapsed. It
// changes nothing.
func (s *SyncJobService) GetJobsReadyForRetry(ctx context.Context) ([]dto.SyncJobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	jobs, err := s.repo.ReadyForRetry(ctx)
	if err != nil {
		return nil, mapRepoError(err, "failed to list jobs ready for retry")
	}

	return toResponses(jobs), nil
}

// ClaimableSlots lists slots a worker can claim from right now.
func (s *SyncJobService) ClaimableSlots(ctx context.Context, limit int) ([]models.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	if limit <= 0 {
		limit = defaultClaimableSlotsLimit
	}

	slots, err := s.repo.ClaimableSlots(ctx, limit)
	if err != nil {
		return nil, mapRepoError(err, "failed to list claimable slots")
	}
	return slots, nil
}

// GetSyncQueueStatus returns a tenant's jobs in queue order, optionally
// limited to one connector.
func (s *SyncJobService) GetSyncQueueStatus(ctx context.Context, tenantID string, connectorID *string) ([]dto.SyncJobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	if strings.TrimSpace(tenantID) == "" {
		return nil, common.Errf(http.StatusBadRequest, "tenant_id is required")
	}

	jobs, err := s.repo.List(ctx, tenantID, connectorID)
	if err != nil {
		return nil, mapRepoError(err, "failed to list sync jobs")
	}

	return toResponses(jobs), nil
}

func (s *SyncJobService) GetSyncJob(ctx context.Context, id string) (*dto.SyncJobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "failed to get sync job")
	}

	resp := dto.NewSyncJobResponse(job)
	return &resp, nil
}

func requireSlot(tenantID, connectorID string) error {
	fields := map[string]any{}
	if strings.TrimSpace(tenantID) == "" {
		fields["tenant_id"] = "failed required"
	}
	if strings.TrimSpace(connectorID) == "" {
		fields["connector_id"] = "failed required"
	}
	if len(fields) > 0 {
		return common.NewAPIError(http.StatusBadRequest, "validation failed", fields)
	}
	return nil
}

// mapRepoError converts repository failures to API errors while keeping the
// original error as the cause.
func mapRepoError(err error, message string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	case errors.Is(err, models.ErrSyncJobNotFound):
		return common.Wrap(http.StatusNotFound, err, "sync job not found")
	case errors.Is(err, models.ErrInvalidTransition):
		return common.Wrap(http.StatusConflict, err, err.Error())
	default:
		slog.Error(message, "error", err)
		return common.Wrap(http.StatusInternalServerError, err, message)
	}
}

func toResponses(jobs []models.SyncJob) []dto.SyncJobResponseDTO {
	resp := make([]dto.SyncJobResponseDTO, len(jobs))
	for i := range jobs {
		resp[i] = dto.NewSyncJobResponse(&jobs[i])
	}
	return resp
}
