package scope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"testing"

	"github.com/credisync/credisync/internal/hierarchy"
	"github.com/credisync/credisync/internal/identity"
	"github.com/credisync/credisync/internal/schema"
)

// staticDirectory answers supervisor lookups from a fixed map.
type staticDirectory struct {
	supervisors map[string]string
}

func (d *staticDirectory) Supervisor(_ context.Context, userID string) (string, error) {
	return d.supervisors[userID], nil
}

func (d *staticDirectory) DirectReports(_ context.Context, _ string) ([]hierarchy.Member, error) {
	return nil, nil
}

func newResolver(supervisors map[string]string) *Resolver {
	dir := &staticDirectory{supervisors: supervisors}
	return New(hierarchy.New(dir, log.New(io.Discard, "", 0)))
}

func record(tenant, creator string) *schema.Record {
	return &schema.Record{
		ID:        "rec",
		TenantID:  tenant,
		CreatedBy: creator,
		Fields:    map[string]any{},
	}
}

// TestScopeFor_InvalidRole tests fail-closed resolution
func TestScopeFor_InvalidRole(t *testing.T) {
	s := newResolver(nil)
	p := &identity.Principal{UserID: "u", TenantID: "t", Role: "wizard"}

	_, err := s.ScopeFor(p)
	if err == nil {
		t.Fatal("ScopeFor() accepted unrecognized role")
	}
	var ire *InvalidRoleError
	if !errors.As(err, &ire) {
		t.Fatalf("ScopeFor() error = %T, want *InvalidRoleError", err)
	}
	if ire.Role != "wizard" {
		t.Errorf("InvalidRoleError.Role = %q, want wizard", ire.Role)
	}
}

// TestScopeFor_OwnProperty is a property test: for individual
// contributors the predicate admits a record iff tenant and creator
// both match, over random principal/record pairs.
func TestScopeFor_OwnProperty(t *testing.T) {
	s := newResolver(nil)
	rng := rand.New(rand.NewSource(1))
	ctx := context.Background()

	tenants := []string{"t-0", "t-1", "t-2"}
	users := []string{"u-0", "u-1", "u-2", "u-3"}
	roles := []string{identity.RoleUser, identity.RoleCobrador}

	for i := 0; i < 500; i++ {
		p := &identity.Principal{
			UserID:   users[rng.Intn(len(users))],
			TenantID: tenants[rng.Intn(len(tenants))],
			Role:     roles[rng.Intn(len(roles))],
		}
		rec := record(tenants[rng.Intn(len(tenants))], users[rng.Intn(len(users))])

		pred, err := s.ScopeFor(p)
		if err != nil {
			t.Fatalf("ScopeFor() failed: %v", err)
		}

		want := rec.TenantID == p.TenantID && rec.CreatedBy == p.UserID
		if got := pred(ctx, rec); got != want {
			t.Fatalf("own predicate (%+v vs %+v) = %v, want %v", p, rec, got, want)
		}
	}
}

// TestScopeFor_Team tests each admission path of team scope
func TestScopeFor_Team(t *testing.T) {
	s := newResolver(map[string]string{
		"worker":   "lead",
		"lead":     "sup-1",
		"stranger": "other-sup",
	})
	p := &identity.Principal{UserID: "sup-1", TenantID: "t-1", Role: identity.RoleSupervisor}
	pred, err := s.ScopeFor(p)
	if err != nil {
		t.Fatalf("ScopeFor() failed: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name string
		rec  *schema.Record
		want bool
	}{
		{"own record", record("t-1", "sup-1"), true},
		{"denormalized supervisor hint", func() *schema.Record {
			r := record("t-1", "somebody")
			r.SupervisorID = "sup-1"
			return r
		}(), true},
		{"hierarchy membership", record("t-1", "worker"), true},
		{"outside the team", record("t-1", "stranger"), false},
		{"other tenant", record("t-2", "worker"), false},
	}

	for _, tt := range tests {
		if got := pred(ctx, tt.rec); got != tt.want {
			t.Errorf("%s: predicate = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestScopeFor_TenantAndGlobal tests the two admin scopes
func TestScopeFor_TenantAndGlobal(t *testing.T) {
	s := newResolver(nil)
	ctx := context.Background()

	admin := &identity.Principal{UserID: "a", TenantID: "t-1", Role: identity.RoleAdmin}
	adminPred, err := s.ScopeFor(admin)
	if err != nil {
		t.Fatalf("ScopeFor(admin) failed: %v", err)
	}
	if !adminPred(ctx, record("t-1", "anyone")) {
		t.Error("admin predicate rejected same-tenant record")
	}
	if adminPred(ctx, record("t-2", "anyone")) {
		t.Error("admin predicate admitted cross-tenant record")
	}

	super := &identity.Principal{UserID: "s", TenantID: "t-1", Role: identity.RoleSuperadmin}
	superPred, err := s.ScopeFor(super)
	if err != nil {
		t.Fatalf("ScopeFor(superadmin) failed: %v", err)
	}
	if !superPred(ctx, record("t-2", "anyone")) {
		t.Error("superadmin predicate rejected cross-tenant record")
	}
}

// TestKindFor_ClosedMapping tests the role→kind table stays closed
func TestKindFor_ClosedMapping(t *testing.T) {
	s := newResolver(nil)

	tests := []struct {
		role string
		want Kind
	}{
		{identity.RoleUser, KindOwn},
		{identity.RoleCobrador, KindOwn},
		{identity.RoleSupervisor, KindTeam},
		{identity.RoleManager, KindTeam},
		{identity.RoleAdmin, KindTenant},
		{identity.RoleSuperadmin, KindGlobal},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			kind, err := s.KindFor(&identity.Principal{Role: tt.role})
			if err != nil {
				t.Fatalf("KindFor(%s) failed: %v", tt.role, err)
			}
			if kind != tt.want {
				t.Errorf("KindFor(%s) = %v, want %v", tt.role, kind, tt.want)
			}
		})
	}

	for _, invalid := range []string{"", "root", "ADMIN"} {
		if _, err := s.KindFor(&identity.Principal{Role: invalid}); err == nil {
			t.Errorf("KindFor(%q) succeeded, want InvalidRoleError", invalid)
		}
	}
}

// ExampleResolver_ScopeFor shows resolving and applying a predicate.
func ExampleResolver_ScopeFor() {
	s := newResolver(nil)
	p := &identity.Principal{UserID: "u-1", TenantID: "t-1", Role: identity.RoleUser}

	pred, _ := s.ScopeFor(p)
	mine := record("t-1", "u-1")
	theirs := record("t-1", "u-2")

	fmt.Println(pred(context.Background(), mine), pred(context.Background(), theirs))
	// Output: true false
}
