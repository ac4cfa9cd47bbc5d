package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const retentionSweepLockKey int64 = 0x7261646172737770 // "radarswp"

// acquireRetentionSweepLock serializes the stuck-work recovery sweep across
// concurrent Supervisor instances, so two processes never reset the same
// stuck row back to pending at once.
func (s *PostgresStore) acquireRetentionSweepLock(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, retentionSweepLockKey); err != nil {
		return fmt.Errorf("store: acquire retention sweep lock: %w", err)
	}
	return nil
}
