//go:build integration

package integration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/joshu-sajeev/syncqueue/internal/storage/postgres"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	testDB   *sql.DB
	testDSN  string
	testPort string
)

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct pool: %s", err)
	}

	pool.MaxWait = 60 * time.Second

	if err := pool.Client.Ping(); err != nil {
		log.Fatalf("Could not connect to Docker: %s", err)
	}

	pg, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "17-alpine",
		Env: []string{
			"POSTGRES_USER=testuser",
			"POSTGRES_PASSWORD=testpass",
			"POSTGRES_DB=syncdb",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start postgres container: %s", err)
	}

	testPort = pg.GetPort("5432/tcp")
	testDSN = fmt.Sprintf(
		"host=localhost user=testuser password=testpass dbname=syncdb port=%s sslmode=disable TimeZone=UTC",
		testPort,
	)

	if err := pool.Retry(func() error {
		var err error
		testDB, err = sql.Open("postgres", testDSN)
		if err != nil {
			return err
		}

		testDB.SetMaxOpenConns(10)
		testDB.SetMaxIdleConns(5)
		testDB.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := testDB.PingContext(ctx); err != nil {
			testDB.Close()
			return err
		}

		if err := runMigrations(testDB); err != nil {
			log.Printf("Failed to run migrations: %v", err)
			testDB.Close()
			return err
		}

		return nil
	}); err != nil {
		log.Fatalf("Could not connect to postgres: %s", err)
	}

	os.Setenv("DB_DRIVER", "postgres")
	os.Setenv("POSTGRES_USER", "testuser")
	os.Setenv("POSTGRES_PASSWORD", "testpass")
	os.Setenv("POSTGRES_DB", "syncdb")
	os.Setenv("POSTGRES_HOST", "localhost")
	os.Setenv("POSTGRES_PORT", testPort)
	os.Setenv("DB_MAX_RETRIES", "3")
	os.Setenv("DB_RETRY_DELAY", "100ms")
	os.Setenv("DB_LOG_LEVEL", "silent")

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}

	if err := pool.Purge(pg); err != nil {
		log.Fatalf("Could not purge postgres container: %s", err)
	}

	os.Exit(code)
}

// runMigrations applies the SQL files from disk, the way an operator would
// with the goose CLI.
func runMigrations(db *sql.DB) error {
	_, filename, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(filename), "../..", "migrations")

	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", migrationsDir)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	return nil
}

func TestConnectDB(t *testing.T) {
	tests := []struct {
		name        string
		config      *postgres.Config
		setupEnv    func()
		cleanupEnv  func()
		wantErr     bool
		errContains string
		validate    func(t *testing.T, db *gorm.DB)
	}{
		{
			name:   "config loaded from environment",
			config: nil,
			validate: func(t *testing.T, db *gorm.DB) {
				sqlDB, err := db.DB()
				require.NoError(t, err)
				assert.NoError(t, sqlDB.Ping())

				var dbName string
				require.NoError(t, db.Raw("SELECT current_database()").Scan(&dbName).Error)
				assert.Equal(t, "syncdb", dbName)

				assert.Equal(t, 50, sqlDB.Stats().MaxOpenConnections)
			},
		},
		{
			name: "explicit config",
			config: &postgres.Config{
				Driver:     postgres.DriverPostgres,
				User:       "testuser",
				Password:   "testpass",
				Host:       "localhost",
				Port:       testPort,
				Database:   "syncdb",
				MaxRetries: 3,
				RetryDelay: 100 * time.Millisecond,
				LogLevel:   logger.Silent,
			},
			validate: func(t *testing.T, db *gorm.DB) {
				assert.Equal(t, postgres.DriverPostgres, db.Dialector.Name())

				tx := db.Begin()
				require.NoError(t, tx.Error)
				assert.NoError(t, tx.Rollback().Error)
			},
		},
		{
			name:   "invalid environment",
			config: nil,
			setupEnv: func() {
				os.Setenv("POSTGRES_PORT", "not-a-port")
			},
			cleanupEnv: func() {
				os.Setenv("POSTGRES_PORT", testPort)
			},
			wantErr:     true,
			errContains: "config validation failed",
		},
		{
			name: "connection refused",
			config: &postgres.Config{
				User:           "testuser",
				Password:       "testpass",
				Host:           "localhost",
				Port:           "19999",
				Database:       "syncdb",
				MaxRetries:     2,
				RetryDelay:     5 * time.Millisecond,
				LogLevel:       logger.Silent,
				ConnectTimeout: 1,
			},
			wantErr:     true,
			errContains: "database connection failed after 2 attempts",
		},
		{
			name: "invalid credentials",
			config: &postgres.Config{
				User:           "testuser",
				Password:       "wrongpass",
				Host:           "localhost",
				Port:           testPort,
				Database:       "syncdb",
				MaxRetries:     2,
				RetryDelay:     5 * time.Millisecond,
				LogLevel:       logger.Silent,
				ConnectTimeout: 1,
			},
			wantErr:     true,
			errContains: "database connection failed after 2 attempts",
		},
		{
			name: "zero retries",
			config: &postgres.Config{
				User:       "testuser",
				Password:   "testpass",
				Host:       "localhost",
				Port:       testPort,
				Database:   "syncdb",
				MaxRetries: 0,
				RetryDelay: 100 * time.Millisecond,
				LogLevel:   logger.Silent,
			},
			wantErr:     true,
			errContains: "database connection failed after 0 attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if tt.setupEnv != nil {
				tt.setupEnv()
			}
			if tt.cleanupEnv != nil {
				defer tt.cleanupEnv()
			}

			db, err := postgres.ConnectDB(ctx, tt.config)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				assert.Nil(t, db)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, db)
			defer closeTestDB(db)

			if tt.validate != nil {
				tt.validate(t, db)
			}
		})
	}
}

func TestMigrate_EmbeddedIsIdempotent(t *testing.T) {
	db, ctx := setupTestDB(t)

	// TestMain already applied the files from disk; the embedded copy must agree.
	require.NoError(t, postgres.Migrate(ctx, db))

	var indexDef string
	require.NoError(t, db.Raw(
		"SELECT indexdef FROM pg_indexes WHERE tablename = 'sync_jobs' AND indexname = 'idx_sync_jobs_active_slot'",
	).Scan(&indexDef).Error)
	assert.Contains(t, indexDef, "UNIQUE")
	assert.Contains(t, indexDef, "pending")
	assert.Contains(t, indexDef, "running")
}

// setupTestDB returns a fresh connection with an empty sync_jobs table.
func setupTestDB(tb testing.TB) (*gorm.DB, context.Context) {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	tb.Cleanup(cancel)

	testConfig := &postgres.Config{
		Driver:     postgres.DriverPostgres,
		User:       "testuser",
		Password:   "testpass",
		Host:       "localhost",
		Port:       testPort,
		Database:   "syncdb",
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		LogLevel:   logger.Silent,
	}

	db, err := postgres.ConnectDB(ctx, testConfig)
	require.NoError(tb, err)

	if err := db.Exec("DELETE FROM sync_jobs").Error; err != nil {
		tb.Logf("Warning: Failed to clean sync_jobs table: %v", err)
	}

	tb.Cleanup(func() {
		closeTestDB(db)
	})

	return db, ctx
}

func closeTestDB(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	sqlDB.Close()
}
