package schema

// Conflict winners. Ties on updated_at resolve to the remote value,
// since remote is the convergence point all devices eventually agree on.
const (
	WinnerLocal  = "local"
	WinnerRemote = "remote"
)

// ActionConflictResolved is the only action the conflict log records.
const ActionConflictResolved = "conflict_resolved"

// ConflictLogEntry is the audit trail of one resolved write-write
// conflict. Entries are append-only; the only mutation ever applied is
// flipping Acknowledged once the application has surfaced the conflict.
type ConflictLogEntry struct {
	ID       int64  `json:"id"`
	TenantID string `json:"tenant_id"`
	Table    string `json:"table_name"`
	RecordID string `json:"record_id"`
	Action   string `json:"action"`

	LocalSnapshot  *Record `json:"local"`
	RemoteSnapshot *Record `json:"remote"`
	Winner         string  `json:"winner"`

	ResolvedAt   int64 `json:"resolved_at"`
	Acknowledged bool  `json:"acknowledged"`
}
