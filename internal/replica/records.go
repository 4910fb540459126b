package replica

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/credisync/credisync/internal/identity"
	"github.com/credisync/credisync/internal/schema"
)

// Create persists a new record in table, stamping all ownership and
// sync metadata from the principal.
//
// The payload carries business fields only; any envelope keys it
// contains (tenant_id, created_by, ...) are discarded so a caller can
// never spoof another tenant or owner through the write payload. The
// one exception is "id": a client-generated id is honored when present
// so a device can refer to the record before its first sync, otherwise
// a fresh UUID is stamped.
func (s *Store) Create(ctx context.Context, table string, payload map[string]any, p *identity.Principal) (*schema.Record, error) {
	rec := &schema.Record{
		TenantID:     p.TenantID,
		CreatedBy:    p.UserID,
		SupervisorID: p.SupervisorID,
		CreatedAt:    schema.NowMillis(),
		UpdatedAt:    schema.NowMillis(),
		Synced:       false,
		Fields:       make(map[string]any, len(payload)),
	}
	for k, v := range payload {
		if k == "id" {
			if id, ok := v.(string); ok {
				rec.ID = id
			}
			continue
		}
		if schema.MetadataKey(k) {
			continue
		}
		rec.Fields[k] = v
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if err := rec.Validate(table); err != nil {
		return nil, err
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	query := `
	INSERT INTO records (
		tbl, id, tenant_id, created_by, supervisor_id,
		created_at, updated_at, synced, conflict_resolved, fields
	) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?)
	`
	_, err = s.conn.ExecContext(ctx, query,
		table,
		rec.ID,
		rec.TenantID,
		rec.CreatedBy,
		nullString(rec.SupervisorID),
		rec.CreatedAt,
		rec.UpdatedAt,
		string(fieldsJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s record: %w", table, err)
	}

	return rec, nil
}

// Get returns the record with the given id, or schema.ErrNotFound.
func (s *Store) Get(ctx context.Context, table, id string) (*schema.Record, error) {
	row := s.conn.QueryRowContext(ctx, selectColumns+` FROM records WHERE tbl = ? AND id = ?`, table, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, schema.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record %s: %w", table, id, err)
	}
	return rec, nil
}

// Update merges a patch of business fields into an existing record,
// bumps updated_at, and marks it unsynced.
//
// Envelope keys in the patch are ignored: tenant_id and created_by are
// set exactly once, at creation, and update cannot change them.
// Returns schema.ErrNotFound if the id is absent.
func (s *Store) Update(ctx context.Context, table, id string, patch map[string]any) (*schema.Record, error) {
	rec, err := s.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}

	for k, v := range patch {
		if schema.MetadataKey(k) || k == "id" {
			continue
		}
		rec.Fields[k] = v
	}
	rec.UpdatedAt = schema.NowMillis()
	rec.Synced = false

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	query := `
	UPDATE records SET fields = ?, updated_at = ?, synced = 0
	WHERE tbl = ? AND id = ?
	`
	if _, err := s.conn.ExecContext(ctx, query, string(fieldsJSON), rec.UpdatedAt, table, id); err != nil {
		return nil, fmt.Errorf("failed to update %s record %s: %w", table, id, err)
	}

	return rec, nil
}

// Delete physically removes a record. There is no soft delete.
// Authorization happens in the data service before this is called.
// Returns schema.ErrNotFound if the id is absent.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM records WHERE tbl = ? AND id = ?`, table, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record %s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s record %s: %w", table, id, err)
	}
	if n == 0 {
		return schema.ErrNotFound
	}
	return nil
}

// ListByTenant returns every record of a table within one tenant.
func (s *Store) ListByTenant(ctx context.Context, table, tenantID string) ([]*schema.Record, error) {
	return s.list(ctx, `tbl = ? AND tenant_id = ?`, table, tenantID)
}

// ListByCreator returns the records a single user created within a tenant.
func (s *Store) ListByCreator(ctx context.Context, table, tenantID, createdBy string) ([]*schema.Record, error) {
	return s.list(ctx, `tbl = ? AND tenant_id = ? AND created_by = ?`, table, tenantID, createdBy)
}

// ListAll returns every record of a table across tenants. Reserved for
// global-admin scope.
func (s *Store) ListAll(ctx context.Context, table string) ([]*schema.Record, error) {
	return s.list(ctx, `tbl = ?`, table)
}

// QueryUnsynced returns the rows with local changes not yet confirmed
// by the remote store, oldest first. Used only by the sync engine's
// upload phase.
func (s *Store) QueryUnsynced(ctx context.Context, table, tenantID string) ([]*schema.Record, error) {
	return s.list(ctx, `tbl = ? AND tenant_id = ? AND synced = 0`, table, tenantID)
}

// MarkSynced flags the given ids as confirmed by the remote store.
// Called by the sync engine after a successful batch upload.
func (s *Store) MarkSynced(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, table)
	for _, id := range ids {
		args = append(args, id)
	}

	query := `UPDATE records SET synced = 1 WHERE tbl = ? AND id IN (` + placeholders + `)`
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark %s records synced: %w", table, err)
	}
	return nil
}

// UpsertFromRemote inserts or overwrites a record with the remote
// version, always marking it synced. Used only by the sync engine's
// merge step; idempotent, so replaying the same remote row is a no-op.
func (s *Store) UpsertFromRemote(ctx context.Context, table string, rec *schema.Record) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	query := `
	INSERT INTO records (
		tbl, id, tenant_id, created_by, supervisor_id,
		created_at, updated_at, synced, conflict_resolved, fields
	) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(tbl, id) DO UPDATE SET
		tenant_id = excluded.tenant_id,
		created_by = excluded.created_by,
		supervisor_id = excluded.supervisor_id,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		synced = 1,
		conflict_resolved = excluded.conflict_resolved,
		fields = excluded.fields
	`
	_, err = s.conn.ExecContext(ctx, query,
		table,
		rec.ID,
		rec.TenantID,
		rec.CreatedBy,
		nullString(rec.SupervisorID),
		rec.CreatedAt,
		rec.UpdatedAt,
		boolToInt(rec.ConflictResolved),
		string(fieldsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s record %s: %w", table, rec.ID, err)
	}
	return nil
}

// PendingCount returns how many rows of a table still await upload.
func (s *Store) PendingCount(ctx context.Context, table, tenantID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM records WHERE tbl = ? AND tenant_id = ? AND synced = 0`
	if err := s.conn.QueryRowContext(ctx, query, table, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending %s records: %w", table, err)
	}
	return count, nil
}

// DeleteByCreator removes every record a user created within a tenant.
func (s *Store) DeleteByCreator(ctx context.Context, table, tenantID, createdBy string) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM records WHERE tbl = ? AND tenant_id = ? AND created_by = ?`,
		table, tenantID, createdBy)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s records for user %s: %w", table, createdBy, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteByTenant removes every record of a table within a tenant.
func (s *Store) DeleteByTenant(ctx context.Context, table, tenantID string) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM records WHERE tbl = ? AND tenant_id = ?`, table, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s records for tenant %s: %w", table, tenantID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

const selectColumns = `
	SELECT id, tenant_id, created_by, supervisor_id,
	       created_at, updated_at, synced, conflict_resolved, fields`

func (s *Store) list(ctx context.Context, where string, args ...any) ([]*schema.Record, error) {
	query := selectColumns + ` FROM records WHERE ` + where + ` ORDER BY updated_at ASC, id ASC`
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*schema.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*schema.Record, error) {
	var (
		rec              schema.Record
		supervisorID     sql.NullString
		synced, resolved int
		fieldsJSON       string
	)
	err := sc.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.CreatedBy,
		&supervisorID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&synced,
		&resolved,
		&fieldsJSON,
	)
	if err != nil {
		return nil, err
	}

	rec.SupervisorID = supervisorID.String
	rec.Synced = synced != 0
	rec.ConflictResolved = resolved != 0

	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, fmt.Errorf("corrupt fields JSON for record %s: %w", rec.ID, err)
	}
	if rec.Fields == nil {
		rec.Fields = make(map[string]any)
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
