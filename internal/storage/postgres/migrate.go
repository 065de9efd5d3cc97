package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshu-sajeev/syncqueue/internal/models"
	"github.com/joshu-sajeev/syncqueue/migrations"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

const createActiveSlotIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_jobs_active_slot
ON sync_jobs (tenant_id, connector_id)
WHERE status IN ('pending', 'running')`

// Migrate brings the schema up to date. PostgreSQL runs the embedded goose
// migrations; other dialects fall back to AutoMigrate.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if db.Dialector.Name() != DriverPostgres {
		return MigrateModels(db, &models.SyncJob{})
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	slog.Info("database migration completed", "driver", DriverPostgres)
	return nil
}

// MigrateModels auto-migrates the provided models and adds the partial
// unique index that backs the one-active-job-per-slot rule.
func MigrateModels(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	if err := db.Exec(createActiveSlotIndex).Error; err != nil {
		return fmt.Errorf("create active slot index: %w", err)
	}
	slog.Info("database migration completed", "driver", db.Dialector.Name())
	return nil
}
