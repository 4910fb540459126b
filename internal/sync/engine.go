package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/credisync/credisync/internal/observability"
	"github.com/credisync/credisync/internal/remote"
	"github.com/credisync/credisync/internal/replica"
	"github.com/credisync/credisync/internal/schema"
)

// State is the engine's position in the sync cycle.
type State int

const (
	// StateIdle means no cycle is running.
	StateIdle State = iota
	// StateUploading means local changes are being pushed.
	StateUploading
	// StateDownloading means remote deltas are being fetched.
	StateDownloading
	// StateMerging means remote deltas are being applied.
	StateMerging
	// StateFailed means the current cycle hit an unrecoverable step.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateDownloading:
		return "downloading"
	case StateMerging:
		return "merging"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrSyncInProgress is returned when FullSync is called while a cycle
// is already running. The caller is told, never queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// Config holds engine tuning knobs.
type Config struct {
	// Tables to sync, in order. Defaults to the managed tables.
	Tables []string

	// BatchSize bounds upload request size. Defaults to 50 rows.
	BatchSize int

	// BatchTimeout bounds each remote call. A timed-out batch counts
	// as a batch failure. Defaults to 30 seconds.
	BatchTimeout time.Duration

	// Logger for sync activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Tables:       schema.Tables(),
		BatchSize:    50,
		BatchTimeout: 30 * time.Second,
		Logger:       log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Result summarizes one sync cycle.
type Result struct {
	StartedAt  time.Time
	Duration   time.Duration
	Uploaded   int // rows confirmed by the remote store
	Downloaded int // remote rows merged locally
	Conflicts  int // write-write conflicts resolved during merge

	FailedBatches int // upload batches left for the next cycle
	FailedTables  int // download tables skipped this cycle

	ConflictsAcknowledged int

	// Partial is true when any batch or table failed. The checkpoint
	// is withheld so the next cycle re-covers the window.
	Partial bool
}

// Engine orchestrates upload, download, and merge for one device.
type Engine struct {
	store    *replica.Store
	endpoint remote.Endpoint
	config   *Config

	mu    sync.Mutex
	state State
}

// New creates an Engine. If config is nil, DefaultConfig is used;
// a nil config.Logger falls back to stderr.
func New(store *replica.Store, endpoint remote.Endpoint, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if len(config.Tables) == 0 {
		config.Tables = schema.Tables()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = 30 * time.Second
	}
	return &Engine{
		store:    store,
		endpoint: endpoint,
		config:   config,
		state:    StateIdle,
	}
}

// State returns the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// FullSync runs one complete cycle for the tenant: upload, download,
// merge, conflict sweep, checkpoint. Returns ErrSyncInProgress
// without starting a second cycle if one is already in flight.
//
// Remote failures inside the cycle are contained per batch and per
// table; the returned Result reports them via Partial rather than an
// error. An error return means the cycle could not make local progress
// at all (replica unavailable).
func (e *Engine) FullSync(ctx context.Context, tenantID string) (*Result, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		observability.RecordCycle("rejected")
		return nil, ErrSyncInProgress
	}
	e.state = StateUploading
	e.mu.Unlock()

	defer e.setState(StateIdle)

	start := time.Now()
	result := &Result{StartedAt: start}
	e.config.Logger.Printf("Starting full sync for tenant %s", tenantID)

	// Upload phase
	if err := e.uploadLocalChanges(ctx, tenantID, result); err != nil {
		e.setState(StateFailed)
		observability.RecordCycle("failed")
		return nil, fmt.Errorf("upload phase failed: %w", err)
	}

	// Download + merge phase
	e.setState(StateDownloading)
	if err := e.downloadRemoteChanges(ctx, tenantID, result); err != nil {
		e.setState(StateFailed)
		observability.RecordCycle("failed")
		return nil, fmt.Errorf("download phase failed: %w", err)
	}

	// Sweep freshly resolved conflicts so the application sees an
	// accurate unacknowledged count next time it asks.
	if err := e.acknowledgeResolvedConflicts(ctx, tenantID, result); err != nil {
		e.config.Logger.Printf("Warning: conflict sweep failed: %v", err)
	}

	result.Duration = time.Since(start)

	// The checkpoint only advances after a clean cycle; a partial
	// cycle re-covers the same window next time (at-least-once).
	if result.Partial {
		observability.RecordCycle("partial")
		e.config.Logger.Printf("Sync partial for tenant %s: uploaded=%d downloaded=%d conflicts=%d failed_batches=%d failed_tables=%d",
			tenantID, result.Uploaded, result.Downloaded, result.Conflicts, result.FailedBatches, result.FailedTables)
		return result, nil
	}

	if err := e.store.AdvanceCheckpoint(ctx, tenantID, start.UnixMilli()); err != nil {
		e.setState(StateFailed)
		observability.RecordCycle("failed")
		return nil, fmt.Errorf("failed to advance checkpoint: %w", err)
	}

	observability.RecordCycle("success")
	observability.RecordSyncSuccess(start)
	e.config.Logger.Printf("Sync complete for tenant %s in %v: uploaded=%d downloaded=%d conflicts=%d",
		tenantID, result.Duration.Round(time.Millisecond), result.Uploaded, result.Downloaded, result.Conflicts)

	return result, nil
}

// uploadLocalChanges pushes unsynced rows table by table in fixed-size
// batches. One bad batch does not abort the table or the cycle.
func (e *Engine) uploadLocalChanges(ctx context.Context, tenantID string, result *Result) error {
	for _, table := range e.config.Tables {
		rows, err := e.store.QueryUnsynced(ctx, table, tenantID)
		if err != nil {
			return fmt.Errorf("failed to scan unsynced %s rows: %w", table, err)
		}
		if len(rows) == 0 {
			continue
		}

		e.config.Logger.Printf("Uploading %d %s rows", len(rows), table)

		for offset := 0; offset < len(rows); offset += e.config.BatchSize {
			end := offset + e.config.BatchSize
			if end > len(rows) {
				end = len(rows)
			}
			batch := rows[offset:end]

			if err := e.uploadBatch(ctx, table, batch); err != nil {
				e.config.Logger.Printf("Warning: failed to upload %s batch of %d: %v", table, len(batch), err)
				result.FailedBatches++
				result.Partial = true
				observability.RecordBatchFailure()
				continue
			}

			ids := make([]string, len(batch))
			for i, rec := range batch {
				ids[i] = rec.ID
			}
			if err := e.store.MarkSynced(ctx, table, ids); err != nil {
				return fmt.Errorf("failed to mark %s batch synced: %w", table, err)
			}
			result.Uploaded += len(batch)
			observability.RecordUploaded(len(batch))
		}
	}
	return nil
}

// uploadBatch pushes one batch under its own deadline. A timeout is a
// batch failure like any other remote error.
func (e *Engine) uploadBatch(ctx context.Context, table string, batch []*schema.Record) error {
	bctx, cancel := context.WithTimeout(ctx, e.config.BatchTimeout)
	defer cancel()
	return e.endpoint.Upsert(bctx, table, batch)
}

// downloadRemoteChanges pulls each table's deltas since the checkpoint
// and merges them. A failing table is skipped; the others continue.
func (e *Engine) downloadRemoteChanges(ctx context.Context, tenantID string, result *Result) error {
	since, err := e.store.Checkpoint(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	for _, table := range e.config.Tables {
		rows, err := e.queryRemote(ctx, table, tenantID, since)
		if err != nil {
			e.config.Logger.Printf("Warning: failed to download %s: %v", table, err)
			result.FailedTables++
			result.Partial = true
			continue
		}
		if len(rows) == 0 {
			continue
		}

		e.config.Logger.Printf("Downloading %d %s rows", len(rows), table)

		// The server orders ascending already; re-sort locally so
		// last-write-wins stays deterministic even against a remote
		// that doesn't honor the ordering contract.
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].UpdatedAt < rows[j].UpdatedAt
		})

		e.setState(StateMerging)
		for _, rec := range rows {
			conflicted, err := e.mergeRemoteRecord(ctx, table, rec)
			if err != nil {
				return fmt.Errorf("failed to merge %s record %s: %w", table, rec.ID, err)
			}
			result.Downloaded++
			observability.RecordDownloaded(1)
			if conflicted {
				result.Conflicts++
				observability.RecordConflict()
			}
		}
		e.setState(StateDownloading)
	}
	return nil
}

// queryRemote fetches one table's deltas under the batch deadline.
func (e *Engine) queryRemote(ctx context.Context, table, tenantID string, since int64) ([]*schema.Record, error) {
	qctx, cancel := context.WithTimeout(ctx, e.config.BatchTimeout)
	defer cancel()
	return e.endpoint.Query(qctx, table, tenantID, since)
}

// mergeRemoteRecord applies one remote row to the replica, resolving a
// write-write conflict when the local row has newer unsynced changes.
// Reports whether a conflict was detected and resolved.
//
// Re-applying an identical remote row is a no-op, which makes the
// download phase safe to replay after a withheld checkpoint.
func (e *Engine) mergeRemoteRecord(ctx context.Context, table string, remoteRec *schema.Record) (bool, error) {
	local, err := e.store.Get(ctx, table, remoteRec.ID)
	if errors.Is(err, schema.ErrNotFound) {
		// New to this device; no conflict possible.
		return false, e.store.UpsertFromRemote(ctx, table, remoteRec)
	}
	if err != nil {
		return false, err
	}

	if !local.Synced {
		// Divergent unsynced local state: both sides modified the row
		// since the last sync. Resolve last-write-wins on updated_at;
		// only a strictly greater local timestamp keeps the local
		// values, ties converge on the remote copy. Either way the
		// divergence is recorded for audit before the winner lands.
		winner := remoteRec.Clone()
		winnerName := schema.WinnerRemote
		if local.UpdatedAt > remoteRec.UpdatedAt {
			winner = local.Clone()
			winnerName = schema.WinnerLocal
		}

		entry := &schema.ConflictLogEntry{
			TenantID:       local.TenantID,
			Table:          table,
			RecordID:       local.ID,
			Action:         schema.ActionConflictResolved,
			LocalSnapshot:  local.Clone(),
			RemoteSnapshot: remoteRec.Clone(),
			Winner:         winnerName,
			ResolvedAt:     schema.NowMillis(),
		}
		if err := e.store.AppendConflict(ctx, entry); err != nil {
			return false, fmt.Errorf("failed to log conflict: %w", err)
		}

		winner.ConflictResolved = true
		if err := e.store.UpsertFromRemote(ctx, table, winner); err != nil {
			return false, err
		}

		e.config.Logger.Printf("Conflict on %s/%s resolved: winner=%s (local=%d remote=%d)",
			table, local.ID, winnerName, local.UpdatedAt, remoteRec.UpdatedAt)
		return true, nil
	}

	// Local row already confirmed by the remote store: the remote
	// value supersedes unconditionally. Replays of an identical row
	// land here and change nothing.
	return false, e.store.UpsertFromRemote(ctx, table, remoteRec)
}

// acknowledgeResolvedConflicts flips freshly written conflict entries
// to acknowledged once the cycle that produced them completes.
func (e *Engine) acknowledgeResolvedConflicts(ctx context.Context, tenantID string, result *Result) error {
	entries, err := e.store.UnacknowledgedConflicts(ctx, tenantID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	ids := make([]int64, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	if err := e.store.AcknowledgeConflicts(ctx, ids); err != nil {
		return err
	}
	result.ConflictsAcknowledged = len(ids)
	return nil
}
