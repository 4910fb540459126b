// Package remote defines the contract of the central data endpoint the
// sync engine reconciles against, plus an HTTP client speaking the
// PostgREST-style REST dialect the server exposes.
package remote

import (
	"context"
	"fmt"

	"github.com/credisync/credisync/internal/schema"
)

// Endpoint is the remote data store as the sync engine sees it.
//
// Upsert has on-conflict-by-id semantics: posting a row whose id
// already exists merges it, it is never an insert-only call. Query
// returns the tenant's rows with updated_at strictly greater than
// sinceMillis, ordered by updated_at ascending; an empty result is a
// normal answer, not an error.
type Endpoint interface {
	Upsert(ctx context.Context, table string, rows []*schema.Record) error
	Query(ctx context.Context, table, tenantID string, sinceMillis int64) ([]*schema.Record, error)
}

// Error reports a failed remote call. The sync engine treats it as
// "remote unavailable": the batch or table is skipped and logged, the
// cycle continues, and the checkpoint is withheld.
type Error struct {
	Op     string // "upsert" or "query"
	Table  string
	Status int // HTTP status, 0 for transport errors
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s on %s failed: status %d: %v", e.Op, e.Table, e.Status, e.Err)
	}
	return fmt.Sprintf("remote %s on %s failed: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
