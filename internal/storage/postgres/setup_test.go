package postgres

import (
	"sync"
	"testing"
	"time"

	"github.com/joshu-sajeev/syncqueue/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // Disable logs during tests
		TranslateError: true,
	})
	require.NoError(t, err)

	// Every connection to ":memory:" is its own database; keep exactly one.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = MigrateModels(db, &models.SyncJob{})
	require.NoError(t, err)

	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupRepo(t *testing.T) (*SyncJobRepository, *gorm.DB, *testClock) {
	db := SetupTestDB(t)
	clock := newTestClock()
	return NewSyncJobRepository(db, WithClock(clock.Now)), db, clock
}
