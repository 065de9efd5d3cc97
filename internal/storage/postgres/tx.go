package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	defaultMaxTxAttempts = 5
	txRetryDelay         = 10 * time.Millisecond
)

// SQLSTATE codes PostgreSQL raises when a serializable transaction loses a conflict.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// inTx runs fn in one transaction at the repository's isolation level.
// Transactions aborted by a serialization conflict are re-run from scratch,
// up to maxTxAttempts times; every other error is returned as is.
func (r *SyncJobRepository) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var opts []*sql.TxOptions
	if r.txOptions != nil {
		opts = append(opts, r.txOptions)
	}

	var err error
	for attempt := 1; attempt <= r.maxTxAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(fn, opts...)
		if err == nil || !isSerializationFailure(err) {
			return err
		}

		slog.Debug("transaction conflict, retrying", "attempt", attempt, "error", err)

		select {
		case <-time.After(time.Duration(attempt) * txRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("transaction still conflicting after %d attempts: %w", r.maxTxAttempts, err)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
