// Package app wires configuration, storage and the queue service shared by
// the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/joshu-sajeev/syncqueue/internal/config"
	"github.com/joshu-sajeev/syncqueue/internal/metrics"
	"github.com/joshu-sajeev/syncqueue/internal/storage/postgres"
	"github.com/joshu-sajeev/syncqueue/internal/syncqueue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.QueueConfig
	DB       *gorm.DB
	Registry *prometheus.Registry
	Service  *syncqueue.SyncJobService
}

// to help with testing
var migrate = postgres.Migrate

// SetupLogging installs a JSON slog handler at the level named by LOG_LEVEL.
func SetupLogging() {
	level := slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// New loads .env and the environment, connects and migrates the database,
// and builds the queue service.
func New(ctx context.Context) (*App, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.LoadQueueConfigFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queue config: %w", err)
	}

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}

	db, err := postgres.ConnectDB(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo := postgres.NewSyncJobRepository(db)
	svc := syncqueue.NewSyncJobService(repo, *cfg, metrics.New(reg))

	return &App{Config: cfg, DB: db, Registry: reg, Service: svc}, nil
}

func (a *App) Close() {
	closeDB(a.DB)
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		slog.Warn("closing database", "error", err)
	}
}
