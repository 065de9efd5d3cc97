//go:build integration

package integration

import (
	"fmt"
	"testing"

	"github.com/joshu-sajeev/syncqueue/internal/models"
	"github.com/joshu-sajeev/syncqueue/internal/storage/postgres"
)

// BenchmarkSyncJobRepository_Enqueue admits one job per fresh slot.
func BenchmarkSyncJobRepository_Enqueue(b *testing.B) {
	db, ctx := setupTestDB(b)
	repo := postgres.NewSyncJobRepository(db)

	for i := 0; b.Loop(); i++ {
		slot := models.Slot{TenantID: "bench", ConnectorID: fmt.Sprintf("connector-%d", i)}
		_, _ = repo.Enqueue(ctx, newJob(slot))
	}
}

// BenchmarkSyncJobRepository_EnqueueConflict measures the occupied-slot path.
func BenchmarkSyncJobRepository_EnqueueConflict(b *testing.B) {
	db, ctx := setupTestDB(b)
	repo := postgres.NewSyncJobRepository(db)

	slot := models.Slot{TenantID: "bench", ConnectorID: "busy"}
	_, _ = repo.Enqueue(ctx, newJob(slot))

	for b.Loop() {
		_, _ = repo.Enqueue(ctx, newJob(slot))
	}
}

// BenchmarkSyncJobRepository_ClaimComplete runs a full enqueue, claim and
// complete cycle on one slot.
func BenchmarkSyncJobRepository_ClaimComplete(b *testing.B) {
	db, ctx := setupTestDB(b)
	repo := postgres.NewSyncJobRepository(db)

	slot := models.Slot{TenantID: "bench", ConnectorID: "cycle"}

	for b.Loop() {
		job := newJob(slot)
		if _, err := repo.Enqueue(ctx, job); err != nil {
			b.Fatal(err)
		}
		if _, err := repo.Claim(ctx, slot); err != nil {
			b.Fatal(err)
		}
		if _, err := repo.Complete(ctx, job.ID, models.SyncStats{Processed: 1}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSyncJobRepository_List reads a tenant with many jobs.
func BenchmarkSyncJobRepository_List(b *testing.B) {
	db, ctx := setupTestDB(b)
	repo := postgres.NewSyncJobRepository(db)

	for i := range 100 {
		_, _ = repo.Enqueue(ctx, newJob(models.Slot{TenantID: "bench_list", ConnectorID: fmt.Sprintf("c-%d", i)}))
	}

	for b.Loop() {
		_, _ = repo.List(ctx, "bench_list", nil)
	}
}
