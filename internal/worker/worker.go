package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshu-sajeev/syncqueue/internal/dto"
	"github.com/joshu-sajeev/syncqueue/internal/models"
)

const (
	slotsPerPoll  = 10
	reportTimeout = 10 * time.Second
)

// Queue is the part of the sync queue a worker talks to.
type Queue interface {
	ClaimableSlots(ctx context.Context, limit int) ([]models.Slot, error)
	ClaimSyncJob(ctx context.Context, tenantID, connectorID string) (*dto.SyncJobResponseDTO, error)
	CompleteSyncJob(ctx context.Context, id string, stats models.SyncStats) error
	FailSyncJob(ctx context.Context, id string, errMsg string) error
}

type Options struct {
	PollInterval     time.Duration
	MaxPollInterval  time.Duration
	ExecutionTimeout time.Duration
}

type Worker struct {
	ID       int
	queue    Queue
	executor Executor
	opts     Options
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

func NewWorker(id int, queue Queue, executor Executor, opts Options) *Worker {
	return &Worker{
		ID:       id,
		queue:    queue,
		executor: executor,
		opts:     opts,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start polls for work until Stop is called or ctx ends. Idle polls double
// the wait up to MaxPollInterval; finding work resets it.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(w.done)

		currentDelay := w.opts.PollInterval

		for {
			worked, err := w.RunOnce(ctx)
			if err != nil {
				slog.Error("worker poll failed", "worker", w.ID, "error", err)
			}

			if worked {
				currentDelay = w.opts.PollInterval
			} else {
				currentDelay = min(currentDelay*2, w.opts.MaxPollInterval)
			}

			select {
			case <-time.After(currentDelay):
			case <-w.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RunOnce claims at most one job and runs it to a reported outcome.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.pullJob(ctx)
	if err != nil || job == nil {
		return false, err
	}

	w.process(ctx, job)
	return true, nil
}

func (w *Worker) pullJob(ctx context.Context) (*dto.SyncJobResponseDTO, error) {
	slots, err := w.queue.ClaimableSlots(ctx, slotsPerPoll)
	if err != nil {
		return nil, fmt.Errorf("list claimable slots: %w", err)
	}

	for _, slot := range slots {
		job, err := w.queue.ClaimSyncJob(ctx, slot.TenantID, slot.ConnectorID)
		if err != nil {
			slog.Warn("claim failed", "worker", w.ID, "slot", slot.String(), "error", err)
			continue
		}
		if job != nil {
			return job, nil
		}
	}
	return nil, nil
}

func (w *Worker) process(ctx context.Context, job *dto.SyncJobResponseDTO) {
	stats, err := w.execute(ctx, job)

	// The outcome must reach the store even if the worker is shutting down.
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if err != nil {
		if ferr := w.queue.FailSyncJob(reportCtx, job.ID, err.Error()); ferr != nil {
			slog.Error("failed to report sync failure", "worker", w.ID, "job_id", job.ID, "error", ferr)
		}
		return
	}

	if cerr := w.queue.CompleteSyncJob(reportCtx, job.ID, stats); cerr != nil {
		slog.Error("failed to report sync completion", "worker", w.ID, "job_id", job.ID, "error", cerr)
	}
}

func (w *Worker) execute(ctx context.Context, job *dto.SyncJobResponseDTO) (stats models.SyncStats, err error) {
	if w.opts.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.ExecutionTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync executor panicked: %v", r)
		}
	}()

	return w.executor.Execute(ctx, job)
}

// Stop ends the poll loop and waits for an in-flight job to be reported.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	if w.started.Load() {
		<-w.done
	}
}
