// Package replica implements the on-device replica of tenant data.
//
// The replica is an embedded SQLite database (WAL mode for concurrent
// reads) holding every managed business table plus the conflict audit
// log and the per-tenant sync checkpoint.
//
// The store is the multi-tenant isolation boundary: Create is the one
// place tenant and owner metadata is attached to a row, always from the
// authenticated principal and never from caller-supplied payload data.
// No other component writes storage directly; the sync engine and the
// scope resolver both go through this package.
//
// Access control does not live here. Application code reaches the
// replica through the data service, which filters reads and authorizes
// mutations against the caller's scope predicate. The engine-facing
// methods (QueryUnsynced, MarkSynced, UpsertFromRemote) are reserved
// for the sync engine.
package replica

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with replica-specific functionality.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a replica database at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent
// reads. If it doesn't exist it is created; call InitSchema before
// first use. The caller MUST call Close when done.
//
// Example:
//
//	store, err := replica.Open(".credisync/replica.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	if err := store.InitSchema(ctx); err != nil {
//	    return err
//	}
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return s, nil
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the replica schema if it doesn't exist.
//
// All managed tables share one physical row store keyed (tbl, id); the
// secondary indexes back the tenant, ownership, and unsynced scans so
// neither the upload phase nor scope-filtered reads need a full-table
// scan. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS records (
		tbl TEXT NOT NULL,
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		supervisor_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0,
		conflict_resolved INTEGER NOT NULL DEFAULT 0,
		fields TEXT NOT NULL DEFAULT '{}',  -- JSON object of business columns
		PRIMARY KEY (tbl, id)
	);

	CREATE TABLE IF NOT EXISTS conflict_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		action TEXT NOT NULL,
		local_snapshot TEXT NOT NULL,   -- JSON
		remote_snapshot TEXT NOT NULL,  -- JSON
		winner TEXT NOT NULL,
		resolved_at INTEGER NOT NULL,
		acknowledged INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sync_checkpoints (
		tenant_id TEXT PRIMARY KEY,
		last_sync INTEGER NOT NULL DEFAULT 0
	);

	-- Indexes for scoped reads and the upload scan
	CREATE INDEX IF NOT EXISTS idx_records_tenant
	    ON records(tbl, tenant_id);
	CREATE INDEX IF NOT EXISTS idx_records_creator
	    ON records(tbl, tenant_id, created_by);
	CREATE INDEX IF NOT EXISTS idx_records_unsynced
	    ON records(tbl, tenant_id, synced);

	CREATE INDEX IF NOT EXISTS idx_conflicts_tenant
	    ON conflict_log(tenant_id, acknowledged);
	`

	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// RawDB returns the underlying sql.DB connection.
// This is useful for integrating with other libraries that expect *sql.DB.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}
