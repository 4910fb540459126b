package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/credisync/credisync/internal/observability"
)

// Stats is a read-only snapshot of a tenant's sync position.
type Stats struct {
	// LastSync is the last successfully completed cycle's start time;
	// zero if no cycle has ever completed.
	LastSync time.Time

	// Pending maps table name to rows awaiting upload.
	Pending map[string]int

	// Conflicts is the total number of resolved conflicts on record.
	Conflicts int
}

// Stats reports the tenant's sync position purely by querying the
// replica. No side effects beyond refreshing the pending gauges.
func (e *Engine) Stats(ctx context.Context, tenantID string) (*Stats, error) {
	stats := &Stats{Pending: make(map[string]int, len(e.config.Tables))}

	checkpoint, err := e.store.Checkpoint(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if checkpoint > 0 {
		stats.LastSync = time.UnixMilli(checkpoint)
	}

	for _, table := range e.config.Tables {
		pending, err := e.store.PendingCount(ctx, table, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to count pending %s rows: %w", table, err)
		}
		stats.Pending[table] = pending
		observability.RecordPending(table, pending)
	}

	conflicts, err := e.store.ConflictCount(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count conflicts: %w", err)
	}
	stats.Conflicts = conflicts

	return stats, nil
}
