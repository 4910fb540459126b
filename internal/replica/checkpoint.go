package replica

import (
	"context"
	"database/sql"
	"fmt"
)

// Checkpoint returns the tenant's last successful sync timestamp in
// milliseconds, or 0 (epoch) if no cycle has ever completed.
func (s *Store) Checkpoint(ctx context.Context, tenantID string) (int64, error) {
	var ts int64
	query := `SELECT last_sync FROM sync_checkpoints WHERE tenant_id = ?`
	err := s.conn.QueryRowContext(ctx, query, tenantID).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sync checkpoint: %w", err)
	}
	return ts, nil
}

// AdvanceCheckpoint moves the tenant's checkpoint forward to ts. The
// checkpoint only moves forward: a stale ts (a replayed cycle that
// started before the recorded one finished) leaves it untouched.
func (s *Store) AdvanceCheckpoint(ctx context.Context, tenantID string, ts int64) error {
	query := `
	INSERT INTO sync_checkpoints (tenant_id, last_sync)
	VALUES (?, ?)
	ON CONFLICT(tenant_id) DO UPDATE SET
		last_sync = MAX(last_sync, excluded.last_sync)
	`
	if _, err := s.conn.ExecContext(ctx, query, tenantID, ts); err != nil {
		return fmt.Errorf("failed to advance sync checkpoint: %w", err)
	}
	return nil
}
