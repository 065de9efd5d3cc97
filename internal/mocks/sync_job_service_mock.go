package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/syncqueue/internal/dto"
	"github.com/joshu-sajeev/syncqueue/internal/models"
	"github.com/stretchr/testify/mock"
)

type SyncJobServiceMock struct {
	mock.Mock
}

func (m *SyncJobServiceMock) EnqueueSyncJob(ctx context.Context, req *dto.EnqueueSyncJobDTO) (*string, error) {
	args := m.Called(ctx, req)

	id, _ := args.Get(0).(*string)
	return id, args.Error(1)
}

func (m *SyncJobServiceMock) ClaimSyncJob(ctx context.Context, tenantID, connectorID string) (*dto.SyncJobResponseDTO, error) {
	args := m.Called(ctx, tenantID, connectorID)

	job, _ := args.Get(0).(*dto.SyncJobResponseDTO)
	return job, args.Error(1)
}

func (m *SyncJobServiceMock) CompleteSyncJob(ctx context.Context, id string, stats models.SyncStats) error {
	args := m.Called(ctx, id, stats)
	return args.Error(0)
}

func (m *SyncJobServiceMock) FailSyncJob(ctx context.Context, id string, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *SyncJobServiceMock) FailStuckJobs(ctx context.Context, timeout time.Duration) (int, error) {
	args := m.Called(ctx, timeout)
	return args.Int(0), args.Error(1)
}

func (m *SyncJobServiceMock) CleanupOldSyncJobs(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SyncJobServiceMock) GetJobsReadyForRetry(ctx context.Context) ([]dto.SyncJobResponseDTO, error) {
	args := m.Called(ctx)

	jobs, _ := args.Get(0).([]dto.SyncJobResponseDTO)
	return jobs, args.Error(1)
}

func (m *SyncJobServiceMock) ClaimableSlots(ctx context.Context, limit int) ([]models.Slot, error) {
	args := m.Called(ctx, limit)

	slots, _ := args.Get(0).([]models.Slot)
	return slots, args.Error(1)
}

func (m *SyncJobServiceMock) GetSyncQueueStatus(ctx context.Context, tenantID string, connectorID *string) ([]dto.SyncJobResponseDTO, error) {
	args := m.Called(ctx, tenantID, connectorID)

	jobs, _ := args.Get(0).([]dto.SyncJobResponseDTO)
	return jobs, args.Error(1)
}

func (m *SyncJobServiceMock) GetSyncJob(ctx context.Context, id string) (*dto.SyncJobResponseDTO, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*dto.SyncJobResponseDTO)
	return job, args.Error(1)
}
