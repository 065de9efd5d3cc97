package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshu-sajeev/syncqueue/internal/config"
	"github.com/joshu-sajeev/syncqueue/internal/models"
	"github.com/joshu-sajeev/syncqueue/internal/syncqueue"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SyncJobRepository struct {
	db            *gorm.DB
	now           func() time.Time
	txOptions     *sql.TxOptions
	maxTxAttempts int
}

type Option func(*SyncJobRepository)

// WithClock replaces the wall clock used for every timestamp the repository writes.
func WithClock(now func() time.Time) Option {
	return func(r *SyncJobRepository) { r.now = now }
}

// WithTxOptions overrides the isolation level chosen for the dialect.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(r *SyncJobRepository) { r.txOptions = opts }
}

func WithMaxTxAttempts(n int) Option {
	return func(r *SyncJobRepository) {
		if n > 0 {
			r.maxTxAttempts = n
		}
	}
}

// NewSyncJobRepository builds a repository on db. PostgreSQL transactions run
// SERIALIZABLE; SQLite already serialises writers on the database lock.
func NewSyncJobRepository(db *gorm.DB, opts ...Option) *SyncJobRepository {
	r := &SyncJobRepository{
		db:            db,
		now:           time.Now,
		maxTxAttempts: defaultMaxTxAttempts,
	}
	if db.Dialector.Name() == DriverPostgres {
		r.txOptions = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ syncqueue.SyncJobRepoInterface = (*SyncJobRepository)(nil)

// timestamp matches the microsecond precision PostgreSQL stores.
func (r *SyncJobRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func slotScope(slot models.Slot) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ? AND connector_id = ?", slot.TenantID, slot.ConnectorID)
	}
}

// Enqueue inserts job as a fresh pending job unless its slot is occupied by
// a pending or running job. The second return value reports whether a row
// was inserted; an occupied slot is not an error.
func (r *SyncJobRepository) Enqueue(ctx context.Context, job *models.SyncJob) (bool, error) {
	created := false
	err := r.inTx(ctx, func(tx *gorm.DB) error {
		created = false

		var active models.SyncJob
		res := tx.Scopes(slotScope(job.Slot())).
			Where("status IN ?", config.ActiveStatuses).
			Limit(1).
			Find(&active)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			slog.Warn("sync job already active for slot",
				"tenant_id", job.TenantID,
				"connector_id", job.ConnectorID,
				"existing_id", active.ID,
				"existing_status", active.Status,
			)
			return nil
		}

		job.ID = ""
		job.Status = config.SyncStatusPending
		job.QueuedAt = r.timestamp()
		job.RetryCount = 0
		job.StartedAt = nil
		job.CompletedAt = nil
		job.NextRetryAt = nil
		job.Error = nil
		job.Stats = nil

		if err := tx.Create(job).Error; err != nil {
			return err
		}
		created = true
		return nil
	})

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		// Lost the race for the slot to a concurrent insert.
		slog.Warn("sync job already active for slot", "tenant_id", job.TenantID, "connector_id", job.ConnectorID)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("enqueue sync job: %w", err)
	}
	return created, nil
}

// Claim moves the oldest claimable pending job of slot to running. A pending
// job is claimable once its next_retry_at, if any, has passed. It returns
// nil when the slot already has a running job or nothing is claimable.
func (r *SyncJobRepository) Claim(ctx context.Context, slot models.Slot) (*models.SyncJob, error) {
	var claimed *models.SyncJob
	err := r.inTx(ctx, func(tx *gorm.DB) error {
		claimed = nil
		now := r.timestamp()

		var running int64
		if err := tx.Model(&models.SyncJob{}).
			Scopes(slotScope(slot)).
			Where("status = ?", config.SyncStatusRunning).
			Count(&running).Error; err != nil {
			return err
		}
		if running > 0 {
			slog.Warn("cannot claim sync job, slot already running",
				"tenant_id", slot.TenantID,
				"connector_id", slot.ConnectorID,
			)
			return nil
		}

		var job models.SyncJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(slotScope(slot)).
			Where("status = ?", config.SyncStatusPending).
			Where("(next_retry_at IS NULL OR next_retry_at <= ?)", now).
			Order("queued_at ASC, id ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := job.Transition(config.SyncStatusRunning); err != nil {
			return err
		}
		job.StartedAt = &now

		res := tx.Model(&models.SyncJob{}).
			Where("id = ? AND status = ?", job.ID, config.SyncStatusPending).
			Updates(map[string]any{
				"status":     job.Status,
				"started_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		claimed = &job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim sync job: %w", err)
	}
	return claimed, nil
}

// lockJob loads the job for update inside tx.
func lockJob(tx *gorm.DB, id string) (*models.SyncJob, error) {
	var job models.SyncJob
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrSyncJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Complete marks a running job completed. stats.DurationMs is always
// replaced by completed_at - started_at.
func (r *SyncJobRepository) Complete(ctx context.Context, id string, stats models.SyncStats) (*models.SyncJob, error) {
	var done *models.SyncJob
	err := r.inTx(ctx, func(tx *gorm.DB) error {
		job, err := lockJob(tx, id)
		if err != nil {
			return err
		}

		if err := job.Transition(config.SyncStatusCompleted); err != nil {
			return err
		}

		completedAt := r.timestamp()
		stats.DurationMs = 0
		if job.StartedAt != nil {
			stats.DurationMs = completedAt.Sub(*job.StartedAt).Milliseconds()
		}
		if err := job.SetStats(stats); err != nil {
			return err
		}
		job.CompletedAt = &completedAt

		if err := tx.Model(&models.SyncJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{
				"status":       job.Status,
				"completed_at": completedAt,
				"stats":        job.Stats,
			}).Error; err != nil {
			return err
		}

		done = job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete sync job: %w", err)
	}
	return done, nil
}

// Fail records a failed attempt of a running job. While retries remain the
// job returns to pending with next_retry_at = now + RetryDelay(backoffBase,
// retryCount); once retry_count reaches max_retries it becomes failed.
func (r *SyncJobRepository) Fail(ctx context.Context, id string, errMsg string, backoffBase time.Duration) (*models.SyncJob, error) {
	var failed *models.SyncJob
	err := r.inTx(ctx, func(tx *gorm.DB) error {
		job, err := lockJob(tx, id)
		if err != nil {
			return err
		}

		now := r.timestamp()
		job.RetryCount++
		job.Error = &errMsg

		var updates map[string]any
		if job.RetryCount < job.MaxRetries {
			if err := job.Transition(config.SyncStatusPending); err != nil {
				return err
			}
			nextRetryAt := now.Add(models.RetryDelay(backoffBase, job.RetryCount))
			job.NextRetryAt = &nextRetryAt
			job.StartedAt = nil
			job.CompletedAt = nil

			updates = map[string]any{
				"status":        job.Status,
				"error":         errMsg,
				"retry_count":   job.RetryCount,
				"next_retry_at": nextRetryAt,
				"started_at":    nil,
				"completed_at":  nil,
			}
		} else {
			if err := job.Transition(config.SyncStatusFailed); err != nil {
				return err
			}
			job.CompletedAt = &now
			job.NextRetryAt = nil

			updates = map[string]any{
				"status":        job.Status,
				"error":         errMsg,
				"retry_count":   job.RetryCount,
				"completed_at":  now,
				"next_retry_at": nil,
			}
		}

		if err := tx.Model(&models.SyncJob{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
			return err
		}

		failed = job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fail sync job: %w", err)
	}
	return failed, nil
}

// FailStuck fails every running job whose started_at is older than timeout
// and returns the jobs it changed.
func (r *SyncJobRepository) FailStuck(ctx context.Context, timeout time.Duration) ([]models.SyncJob, error) {
	var stuck []models.SyncJob
	err := r.inTx(ctx, func(tx *gorm.DB) error {
		stuck = nil
		now := r.timestamp()
		cutoff := now.Add(-timeout)

		var jobs []models.SyncJob
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND started_at < ?", config.SyncStatusRunning, cutoff).
			Find(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}

		errMsg := "Job timed out after " + FormatTimeout(timeout)
		ids := make([]string, 0, len(jobs))
		for i := range jobs {
			if err := jobs[i].Transition(config.SyncStatusFailed); err != nil {
				return err
			}
			jobs[i].Error = &errMsg
			jobs[i].CompletedAt = &now
			ids = append(ids, jobs[i].ID)
		}

		if err := tx.Model(&models.SyncJob{}).
			Where("id IN ? AND status = ?", ids, config.SyncStatusRunning).
			Updates(map[string]any{
				"status":       config.SyncStatusFailed,
				"error":        errMsg,
				"completed_at": now,
			}).Error; err != nil {
			return err
		}

		stuck = jobs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fail stuck sync jobs: %w", err)
	}
	return stuck, nil
}

// DeleteTerminalOlderThan removes completed and failed jobs whose
// completed_at is more than olderThanDays days ago.
func (r *SyncJobRepository) DeleteTerminalOlderThan(ctx context.Context, olderThanDays int) (int64, error) {
	var deleted int64
	err := r.inTx(ctx, func(tx *gorm.DB) error {
		cutoff := r.timestamp().AddDate(0, 0, -olderThanDays)

		res := tx.Where("status IN ? AND completed_at IS NOT NULL AND completed_at < ?", config.TerminalStatuses, cutoff).
			Delete(&models.SyncJob{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup sync jobs: %w", err)
	}
	return deleted, nil
}

// ReadyForRetry lists pending jobs whose backoff has elapsed.
func (r *SyncJobRepository) ReadyForRetry(ctx context.Context) ([]models.SyncJob, error) {
	var jobs []models.SyncJob
	if err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", config.SyncStatusPending, r.timestamp()).
		Order("next_retry_at ASC, id ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs ready for retry: %w", err)
	}
	return jobs, nil
}

// ClaimableSlots lists up to limit slots holding a pending job that Claim
// would hand out now, oldest first.
func (r *SyncJobRepository) ClaimableSlots(ctx context.Context, limit int) ([]models.Slot, error) {
	var slots []models.Slot
	if err := r.db.WithContext(ctx).
		Model(&models.SyncJob{}).
		Select("tenant_id, connector_id").
		Where("status = ?", config.SyncStatusPending).
		Where("(next_retry_at IS NULL OR next_retry_at <= ?)", r.timestamp()).
		Order("queued_at ASC, id ASC").
		Limit(limit).
		Scan(&slots).Error; err != nil {
		return nil, fmt.Errorf("list claimable slots: %w", err)
	}
	return slots, nil
}

// List returns a tenant's jobs, optionally narrowed to one connector, in queue order.
func (r *SyncJobRepository) List(ctx context.Context, tenantID string, connectorID *string) ([]models.SyncJob, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if connectorID != nil {
		q = q.Where("connector_id = ?", *connectorID)
	}

	var jobs []models.SyncJob
	if err := q.Order("queued_at ASC, id ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list sync jobs: %w", err)
	}
	return jobs, nil
}

func (r *SyncJobRepository) Get(ctx context.Context, id string) (*models.SyncJob, error) {
	var job models.SyncJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get sync job: %w: %s", models.ErrSyncJobNotFound, id)
		}
		return nil, fmt.Errorf("get sync job: %w", err)
	}
	return &job, nil
}

// FormatTimeout renders whole-minute timeouts as "30 minutes" and anything
// else in time.Duration notation.
func FormatTimeout(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		minutes := int64(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}
