// Package scheduler runs the queue's recurring work on cron expressions:
// the stuck-job reaper, retention cleanup, and scheduled sync triggers.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshu-sajeev/syncqueue/internal/config"
	"github.com/joshu-sajeev/syncqueue/internal/dto"
	"github.com/robfig/cron/v3"
)

const runTimeout = 2 * time.Minute

// Queue is the part of the sync queue the scheduler drives.
type Queue interface {
	EnqueueSyncJob(ctx context.Context, req *dto.EnqueueSyncJobDTO) (*string, error)
	FailStuckJobs(ctx context.Context, timeout time.Duration) (int, error)
	CleanupOldSyncJobs(ctx context.Context, olderThanDays int) (int64, error)
}

type Scheduler struct {
	cron  *cron.Cron
	queue Queue
	cfg   config.QueueConfig
}

// New registers the reaper, the cleaner and every configured sync schedule.
// It fails on the first invalid cron expression.
func New(queue Queue, cfg config.QueueConfig) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	logger := slogLogger{}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		cron.WithLogger(logger),
	)

	s := &Scheduler{cron: c, queue: queue, cfg: cfg}

	if _, err := c.AddFunc(cfg.ReaperSchedule, func() { s.RunReaper(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", cfg.ReaperSchedule, err)
	}

	if _, err := c.AddFunc(cfg.CleanupSchedule, func() { s.RunCleanup(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.CleanupSchedule, err)
	}

	schedules, err := cfg.ParseSchedules()
	if err != nil {
		return nil, err
	}
	for _, sched := range schedules {
		if _, err := c.AddFunc(sched.Spec, func() { s.Trigger(context.Background(), sched) }); err != nil {
			return nil, fmt.Errorf("invalid schedule %q for %s:%s: %w", sched.Spec, sched.TenantID, sched.ConnectorID, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "entries", len(s.cron.Entries()))
}

// Stop stops the cron loop and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunReaper fails jobs stuck in running past the configured timeout.
func (s *Scheduler) RunReaper(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	n, err := s.queue.FailStuckJobs(ctx, s.cfg.StuckTimeout)
	if err != nil {
		slog.Error("stuck job reaper failed", "error", err)
		return
	}
	if n > 0 {
		slog.Warn("marked stuck sync jobs as failed", "count", n, "timeout", s.cfg.StuckTimeout)
	}
}

// RunCleanup deletes terminal jobs older than the retention window.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	if _, err := s.queue.CleanupOldSyncJobs(ctx, s.cfg.RetentionDays); err != nil {
		slog.Error("sync job cleanup failed", "error", err)
	}
}

// Trigger enqueues a scheduled sync for one slot. An occupied slot is logged
// and skipped.
func (s *Scheduler) Trigger(ctx context.Context, sched config.SyncSchedule) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	id, err := s.queue.EnqueueSyncJob(ctx, &dto.EnqueueSyncJobDTO{
		TenantID:    sched.TenantID,
		ConnectorID: sched.ConnectorID,
		SyncType:    config.SyncTypeScheduled,
	})
	if err != nil {
		slog.Error("scheduled sync enqueue failed", "tenant_id", sched.TenantID, "connector_id", sched.ConnectorID, "error", err)
		return
	}
	if id == nil {
		slog.Info("scheduled sync skipped, slot busy", "tenant_id", sched.TenantID, "connector_id", sched.ConnectorID)
	}
}

// slogLogger adapts slog to cron.Logger.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
