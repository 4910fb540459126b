package schema

import (
	"encoding/json"
	"errors"
	"testing"
)

func validRecord() *Record {
	return &Record{
		ID:        "rec-1",
		TenantID:  "tenant-1",
		CreatedBy: "user-1",
		CreatedAt: 1000,
		UpdatedAt: 1000,
		Fields:    map[string]any{"name": "Ana"},
	}
}

// TestValidate_Success tests a well-formed contact record
func TestValidate_Success(t *testing.T) {
	rec := validRecord()
	if err := rec.Validate(TableContacts); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
}

// TestValidate_MissingRequiredField tests the per-table required fields
func TestValidate_MissingRequiredField(t *testing.T) {
	tests := []struct {
		table  string
		fields map[string]any
		want   string // field expected in the error
	}{
		{TableContacts, map[string]any{}, "name"},
		{TableProducts, map[string]any{}, "name"},
		{TableTransactions, map[string]any{"contact_id": "c-1"}, "amount"},
		{TablePayments, map[string]any{"amount": 10.0}, "transaction_id"},
	}

	for _, tt := range tests {
		rec := validRecord()
		rec.Fields = tt.fields
		err := rec.Validate(tt.table)
		if err == nil {
			t.Errorf("Validate(%s) succeeded, want error on %q", tt.table, tt.want)
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Validate(%s) error = %T, want *ValidationError", tt.table, err)
			continue
		}
		if ve.Field != tt.want {
			t.Errorf("Validate(%s) failed on field %q, want %q", tt.table, ve.Field, tt.want)
		}
	}
}

// TestValidate_UnknownTable tests that unmanaged tables are rejected
func TestValidate_UnknownTable(t *testing.T) {
	rec := validRecord()
	if err := rec.Validate("secrets"); err == nil {
		t.Error("Validate() accepted unknown table")
	}
}

// TestValidate_MissingEnvelope tests envelope requirements
func TestValidate_MissingEnvelope(t *testing.T) {
	rec := validRecord()
	rec.TenantID = ""
	if err := rec.Validate(TableContacts); err == nil {
		t.Error("Validate() accepted record without tenant_id")
	}
}

// TestMarshal_Flattens tests that business fields and envelope share
// one flat JSON object on the wire
func TestMarshal_Flattens(t *testing.T) {
	rec := validRecord()
	rec.SupervisorID = "sup-1"
	rec.Synced = true

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Unmarshal of wire form failed: %v", err)
	}

	if flat["name"] != "Ana" {
		t.Errorf("business field name = %v, want Ana", flat["name"])
	}
	if flat["tenant_id"] != "tenant-1" {
		t.Errorf("tenant_id = %v, want tenant-1", flat["tenant_id"])
	}
	if flat["supervisor_id"] != "sup-1" {
		t.Errorf("supervisor_id = %v, want sup-1", flat["supervisor_id"])
	}
	if _, present := flat["fields"]; present {
		t.Error("wire form leaked a nested fields object")
	}
}

// TestUnmarshal_SplitsEnvelope tests that a flat remote row splits back
// into envelope and business fields
func TestUnmarshal_SplitsEnvelope(t *testing.T) {
	wire := `{
		"id": "rec-9", "tenant_id": "t-2", "created_by": "u-2",
		"created_at": 500, "updated_at": 900, "synced": true,
		"name": "Luz", "document": "42"
	}`

	var rec Record
	if err := json.Unmarshal([]byte(wire), &rec); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}

	if rec.ID != "rec-9" || rec.TenantID != "t-2" || rec.CreatedBy != "u-2" {
		t.Errorf("envelope = %q/%q/%q, want rec-9/t-2/u-2", rec.ID, rec.TenantID, rec.CreatedBy)
	}
	if rec.UpdatedAt != 900 {
		t.Errorf("UpdatedAt = %d, want 900", rec.UpdatedAt)
	}
	if !rec.Synced {
		t.Error("Synced = false, want true")
	}
	if rec.Fields["name"] != "Luz" || rec.Fields["document"] != "42" {
		t.Errorf("business fields = %v, want name/document", rec.Fields)
	}
	if _, leaked := rec.Fields["tenant_id"]; leaked {
		t.Error("envelope key leaked into business fields")
	}
}

// TestUnmarshal_NoID tests rejection of rows without an id
func TestUnmarshal_NoID(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(`{"name":"x"}`), &rec); err == nil {
		t.Error("Unmarshal() accepted a row with no id")
	}
}

// TestClone_Independent tests that clones don't alias field maps
func TestClone_Independent(t *testing.T) {
	rec := validRecord()
	cp := rec.Clone()
	cp.Fields["name"] = "changed"

	if rec.Fields["name"] != "Ana" {
		t.Error("Clone() aliases the original field map")
	}
}
