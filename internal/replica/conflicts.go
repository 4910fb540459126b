package replica

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/credisync/credisync/internal/schema"
)

// AppendConflict records one resolved write-write conflict in the audit
// log. Entries are retained indefinitely; nothing ever rewrites the
// snapshots or the winner.
func (s *Store) AppendConflict(ctx context.Context, entry *schema.ConflictLogEntry) error {
	localJSON, err := json.Marshal(entry.LocalSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal local snapshot: %w", err)
	}
	remoteJSON, err := json.Marshal(entry.RemoteSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal remote snapshot: %w", err)
	}

	query := `
	INSERT INTO conflict_log (
		tenant_id, table_name, record_id, action,
		local_snapshot, remote_snapshot, winner, resolved_at, acknowledged
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`
	res, err := s.conn.ExecContext(ctx, query,
		entry.TenantID,
		entry.Table,
		entry.RecordID,
		entry.Action,
		string(localJSON),
		string(remoteJSON),
		entry.Winner,
		entry.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append conflict log entry: %w", err)
	}

	entry.ID, _ = res.LastInsertId()
	return nil
}

// UnacknowledgedConflicts returns the conflict entries not yet surfaced
// to the application, oldest first.
func (s *Store) UnacknowledgedConflicts(ctx context.Context, tenantID string) ([]*schema.ConflictLogEntry, error) {
	query := `
	SELECT id, tenant_id, table_name, record_id, action,
	       local_snapshot, remote_snapshot, winner, resolved_at, acknowledged
	FROM conflict_log
	WHERE tenant_id = ? AND acknowledged = 0
	ORDER BY resolved_at ASC, id ASC
	`
	rows, err := s.conn.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflict log: %w", err)
	}
	defer rows.Close()

	var entries []*schema.ConflictLogEntry
	for rows.Next() {
		var (
			entry                 schema.ConflictLogEntry
			localJSON, remoteJSON string
			acknowledged          int
		)
		err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.Table,
			&entry.RecordID,
			&entry.Action,
			&localJSON,
			&remoteJSON,
			&entry.Winner,
			&entry.ResolvedAt,
			&acknowledged,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict log entry: %w", err)
		}
		entry.Acknowledged = acknowledged != 0
		if err := json.Unmarshal([]byte(localJSON), &entry.LocalSnapshot); err != nil {
			return nil, fmt.Errorf("corrupt local snapshot for conflict %d: %w", entry.ID, err)
		}
		if err := json.Unmarshal([]byte(remoteJSON), &entry.RemoteSnapshot); err != nil {
			return nil, fmt.Errorf("corrupt remote snapshot for conflict %d: %w", entry.ID, err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conflict log: %w", err)
	}
	return entries, nil
}

// AcknowledgeConflicts flips the acknowledged flag on the given
// entries. This is the only mutation the conflict log admits.
func (s *Store) AcknowledgeConflicts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	query := `UPDATE conflict_log SET acknowledged = 1 WHERE id IN (` + placeholders + `)`
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to acknowledge conflicts: %w", err)
	}
	return nil
}

// ConflictCount returns the total number of resolved conflicts recorded
// for a tenant, acknowledged or not.
func (s *Store) ConflictCount(ctx context.Context, tenantID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM conflict_log WHERE tenant_id = ? AND action = ?`
	if err := s.conn.QueryRowContext(ctx, query, tenantID, schema.ActionConflictResolved).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conflicts: %w", err)
	}
	return count, nil
}
