// Package sync reconciles the local replica with the central store.
//
// A full sync cycle walks a fixed state machine:
//
//	Idle -> Uploading -> Downloading -> Merging -> Idle
//
// with any unrecoverable step short-circuiting through Failed back to
// Idle. At most one cycle runs per process (single-flight); a trigger
// arriving while a cycle is in flight is rejected with
// ErrSyncInProgress rather than queued.
//
// Upload pushes unsynced local rows in fixed-size batches, tolerating
// per-batch failures: a failed batch is logged and left unsynced for
// the next cycle, and the rest of the table continues. Download pulls
// remote deltas since the tenant's checkpoint and merges them in
// ascending updated_at order so last-write-wins stays deterministic.
//
// Merge detects a conflict whenever the local row still has unsynced
// changes: both sides modified it since the last sync. The conflict is
// resolved last-write-wins on updated_at (local survives only when
// strictly newer; ties go to the remote, the convergence point all
// devices eventually agree on), and both snapshots are appended to the
// audit log before the winner is applied.
//
// The checkpoint advances to the cycle's start time only when both
// phases complete cleanly. A partial cycle withholds it, so the next
// cycle re-covers the same window; merge is idempotent against those
// replays.
package sync
