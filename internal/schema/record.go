package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// Managed table names. The replica store, sync engine, and remote
// endpoint all operate over exactly this set.
const (
	TableContacts     = "contacts"
	TableProducts     = "products"
	TableTransactions = "transactions"
	TablePayments     = "payments"
)

// Tables returns the managed table names in sync order.
func Tables() []string {
	return []string{TableContacts, TableProducts, TableTransactions, TablePayments}
}

// requiredFields maps each table to the business fields a create must carry.
var requiredFields = map[string][]string{
	TableContacts:     {"name"},
	TableProducts:     {"name"},
	TableTransactions: {"contact_id", "amount"},
	TablePayments:     {"transaction_id", "amount"},
}

// KnownTable reports whether name is one of the managed tables.
func KnownTable(name string) bool {
	_, ok := requiredFields[name]
	return ok
}

// metadataKeys are the envelope keys; they are stripped from business
// fields on unmarshal and may never be set through a create payload or
// update patch.
var metadataKeys = map[string]bool{
	"id":                true,
	"tenant_id":         true,
	"created_by":        true,
	"supervisor_id":     true,
	"created_at":        true,
	"updated_at":        true,
	"synced":            true,
	"conflict_resolved": true,
}

// MetadataKey reports whether key belongs to the record envelope.
func MetadataKey(key string) bool {
	return metadataKeys[key]
}

// Record is one row of a managed table.
//
// Timestamps are wall-clock milliseconds at the originating device.
// UpdatedAt orders conflicting writes under last-write-wins; clock skew
// between devices is a known limitation of that ordering.
type Record struct {
	ID           string
	TenantID     string
	CreatedBy    string
	SupervisorID string // owner's supervisor at creation time, fast-path hint only

	CreatedAt int64
	UpdatedAt int64

	Synced           bool
	ConflictResolved bool

	// Fields holds the table-specific business columns.
	Fields map[string]any
}

// NowMillis returns the current wall-clock time in milliseconds, the
// unit used for CreatedAt/UpdatedAt.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Validate checks the envelope plus the table's required business fields.
func (r *Record) Validate(table string) error {
	if !KnownTable(table) {
		return &ValidationError{Table: table, Field: "table", Reason: "unknown table"}
	}
	if r.ID == "" {
		return &ValidationError{Table: table, Field: "id", Reason: "required"}
	}
	if r.TenantID == "" {
		return &ValidationError{Table: table, Field: "tenant_id", Reason: "required"}
	}
	if r.CreatedBy == "" {
		return &ValidationError{Table: table, Field: "created_by", Reason: "required"}
	}
	for _, f := range requiredFields[table] {
		if v, ok := r.Fields[f]; !ok || v == nil || v == "" {
			return &ValidationError{Table: table, Field: f, Reason: "required"}
		}
	}
	return nil
}

// Clone returns a deep copy. The sync engine snapshots records into the
// conflict log and must not alias live field maps.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Fields != nil {
		cp.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			cp.Fields[k] = v
		}
	}
	return &cp
}

// MarshalJSON flattens the envelope and business fields into one object.
func (r *Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+8)
	for k, v := range r.Fields {
		if !metadataKeys[k] {
			flat[k] = v
		}
	}
	flat["id"] = r.ID
	flat["tenant_id"] = r.TenantID
	flat["created_by"] = r.CreatedBy
	if r.SupervisorID != "" {
		flat["supervisor_id"] = r.SupervisorID
	}
	flat["created_at"] = r.CreatedAt
	flat["updated_at"] = r.UpdatedAt
	flat["synced"] = r.Synced
	if r.ConflictResolved {
		flat["conflict_resolved"] = true
	}
	return json.Marshal(flat)
}

// UnmarshalJSON splits a flat row back into envelope and business fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*r = Record{Fields: make(map[string]any)}
	for k, v := range flat {
		switch k {
		case "id":
			r.ID, _ = v.(string)
		case "tenant_id":
			r.TenantID, _ = v.(string)
		case "created_by":
			r.CreatedBy, _ = v.(string)
		case "supervisor_id":
			r.SupervisorID, _ = v.(string)
		case "created_at":
			r.CreatedAt = toMillis(v)
		case "updated_at":
			r.UpdatedAt = toMillis(v)
		case "synced":
			r.Synced, _ = v.(bool)
		case "conflict_resolved":
			r.ConflictResolved, _ = v.(bool)
		default:
			r.Fields[k] = v
		}
	}
	if r.ID == "" {
		return fmt.Errorf("record has no id")
	}
	return nil
}

// toMillis tolerates both JSON numbers and stringified integers, which
// some remote stores emit for bigint columns.
func toMillis(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		var i int64
		_, _ = fmt.Sscan(n, &i)
		return i
	default:
		return 0
	}
}
