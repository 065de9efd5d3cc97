package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/syncqueue/internal/models"
	"github.com/stretchr/testify/mock"
)

type SyncJobRepoMock struct {
	mock.Mock
}

func (m *SyncJobRepoMock) Enqueue(ctx context.Context, job *models.SyncJob) (bool, error) {
	args := m.Called(ctx, job)
	return args.Bool(0), args.Error(1)
}

func (m *SyncJobRepoMock) Claim(ctx context.Context, slot models.Slot) (*models.SyncJob, error) {
	args := m.Called(ctx, slot)

	job, _ := args.Get(0).(*models.SyncJob)
	return job, args.Error(1)
}

func (m *SyncJobRepoMock) Complete(ctx context.Context, id string, stats models.SyncStats) (*models.SyncJob, error) {
	args := m.Called(ctx, id, stats)

	job, _ := args.Get(0).(*models.SyncJob)
	return job, args.Error(1)
}

func (m *SyncJobRepoMock) Fail(ctx context.Context, id string, errMsg string, backoffBase time.Duration) (*models.SyncJob, error) {
	args := m.Called(ctx, id, errMsg, backoffBase)

	job, _ := args.Get(0).(*models.SyncJob)
	return job, args.Error(1)
}

func (m *SyncJobRepoMock) FailStuck(ctx context.Context, timeout time.Duration) ([]models.SyncJob, error) {
	args := m.Called(ctx, timeout)

	jobs, _ := args.Get(0).([]models.SyncJob)
	return jobs, args.Error(1)
}

func (m *SyncJobRepoMock) DeleteTerminalOlderThan(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SyncJobRepoMock) ReadyForRetry(ctx context.Context) ([]models.SyncJob, error) {
	args := m.Called(ctx)

	jobs, _ := args.Get(0).([]models.SyncJob)
	return jobs, args.Error(1)
}

func (m *SyncJobRepoMock) ClaimableSlots(ctx context.Context, limit int) ([]models.Slot, error) {
	args := m.Called(ctx, limit)

	slots, _ := args.Get(0).([]models.Slot)
	return slots, args.Error(1)
}

func (m *SyncJobRepoMock) List(ctx context.Context, tenantID string, connectorID *string) ([]models.SyncJob, error) {
	args := m.Called(ctx, tenantID, connectorID)

	jobs, _ := args.Get(0).([]models.SyncJob)
	return jobs, args.Error(1)
}

func (m *SyncJobRepoMock) Get(ctx context.Context, id string) (*models.SyncJob, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.SyncJob)
	return job, args.Error(1)
}
