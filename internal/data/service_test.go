package data

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/credisync/credisync/internal/hierarchy"
	"github.com/credisync/credisync/internal/identity"
	"github.com/credisync/credisync/internal/replica"
	"github.com/credisync/credisync/internal/schema"
	"github.com/credisync/credisync/internal/scope"
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

func testService(t *testing.T, supervisors map[string]string) *Service {
	t.Helper()
	store, err := replica.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	dir := &staticDirectory{supervisors: supervisors}
	resolver := scope.New(hierarchy.New(dir, log.New(io.Discard, "", 0)))
	return New(store, resolver)
}

func principal(userID, tenantID, role string) *identity.Principal {
	return &identity.Principal{UserID: userID, TenantID: tenantID, Role: role}
}

// TestList_FiltersByRole tests that reads honor scope per role class
func TestList_FiltersByRole(t *testing.T) {
	svc := testService(t, map[string]string{"worker": "sup-1"})
	ctx := context.Background()

	seed := []struct {
		user string
		name string
	}{
		{"sup-1", "mine"},
		{"worker", "team"},
		{"outsider", "theirs"},
	}
	for _, s := range seed {
		p := principal(s.user, "t-1", identity.RoleUser)
		if _, err := svc.Create(ctx, p, schema.TableContacts, map[string]any{"name": s.name}); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	tests := []struct {
		name string
		p    *identity.Principal
		want int
	}{
		{"individual sees own", principal("worker", "t-1", identity.RoleUser), 1},
		{"supervisor sees own plus team", principal("sup-1", "t-1", identity.RoleSupervisor), 2},
		{"admin sees tenant", principal("root", "t-1", identity.RoleAdmin), 3},
		{"superadmin sees all", principal("root", "other", identity.RoleSuperadmin), 3},
		{"other tenant sees nothing", principal("worker", "t-2", identity.RoleUser), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := svc.List(context.Background(), tt.p, schema.TableContacts)
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if len(rows) != tt.want {
				t.Errorf("List() = %d rows, want %d", len(rows), tt.want)
			}
		})
	}
}

// TestList_InvalidRole tests that reads fail closed on unknown roles
func TestList_InvalidRole(t *testing.T) {
	svc := testService(t, nil)

	_, err := svc.List(context.Background(), principal("u", "t-1", "intern"), schema.TableContacts)
	var ire *scope.InvalidRoleError
	if !errors.As(err, &ire) {
		t.Errorf("List() error = %v, want *InvalidRoleError", err)
	}
}

// TestGet_OutOfScope tests that an out-of-scope id is denied, not hidden
func TestGet_OutOfScope(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	owner := principal("owner", "t-1", identity.RoleUser)
	rec, err := svc.Create(ctx, owner, schema.TableContacts, map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	other := principal("other", "t-1", identity.RoleUser)
	if _, err := svc.Get(ctx, other, schema.TableContacts, rec.ID); !errors.Is(err, schema.ErrPermissionDenied) {
		t.Errorf("Get() error = %v, want ErrPermissionDenied", err)
	}

	if _, err := svc.Get(ctx, owner, schema.TableContacts, rec.ID); err != nil {
		t.Errorf("owner Get() failed: %v", err)
	}
}

// TestDelete_Authorization tests the mutation guard
func TestDelete_Authorization(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	owner := principal("owner", "t-1", identity.RoleUser)
	rec, err := svc.Create(ctx, owner, schema.TableContacts, map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	stranger := principal("stranger", "t-1", identity.RoleUser)
	if err := svc.Delete(ctx, stranger, schema.TableContacts, rec.ID); !errors.Is(err, schema.ErrPermissionDenied) {
		t.Fatalf("stranger Delete() error = %v, want ErrPermissionDenied", err)
	}

	// The denied delete must not have removed anything.
	if _, err := svc.Get(ctx, owner, schema.TableContacts, rec.ID); err != nil {
		t.Fatalf("record vanished after denied delete: %v", err)
	}

	admin := principal("boss", "t-1", identity.RoleAdmin)
	if err := svc.Delete(ctx, admin, schema.TableContacts, rec.ID); err != nil {
		t.Errorf("admin Delete() failed: %v", err)
	}
}

// TestUpdate_Authorization tests that updates are scope-checked against
// the existing record
func TestUpdate_Authorization(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	owner := principal("owner", "t-1", identity.RoleUser)
	rec, err := svc.Create(ctx, owner, schema.TableContacts, map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	stranger := principal("stranger", "t-1", identity.RoleUser)
	_, err = svc.Update(ctx, stranger, schema.TableContacts, rec.ID, map[string]any{"name": "hijacked"})
	if !errors.Is(err, schema.ErrPermissionDenied) {
		t.Fatalf("stranger Update() error = %v, want ErrPermissionDenied", err)
	}

	got, err := svc.Get(ctx, owner, schema.TableContacts, rec.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Fields["name"] != "x" {
		t.Errorf("denied update still applied: %v", got.Fields["name"])
	}
}

// TestClearTenantData_AdminOnly tests the tenant wipe guard
func TestClearTenantData_AdminOnly(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	owner := principal("owner", "t-1", identity.RoleUser)
	if _, err := svc.Create(ctx, owner, schema.TableContacts, map[string]any{"name": "x"}); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if _, err := svc.ClearTenantData(ctx, owner); !errors.Is(err, schema.ErrPermissionDenied) {
		t.Fatalf("user ClearTenantData() error = %v, want ErrPermissionDenied", err)
	}

	admin := principal("boss", "t-1", identity.RoleAdmin)
	n, err := svc.ClearTenantData(ctx, admin)
	if err != nil {
		t.Fatalf("admin ClearTenantData() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("ClearTenantData() removed %d rows, want 1", n)
	}
}

// TestClearUserData tests self-service cleanup stays per-user
func TestClearUserData(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	owner := principal("owner", "t-1", identity.RoleUser)
	other := principal("other", "t-1", identity.RoleUser)
	for _, p := range []*identity.Principal{owner, owner, other} {
		if _, err := svc.Create(ctx, p, schema.TableContacts, map[string]any{"name": "x"}); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	n, err := svc.ClearUserData(ctx, owner)
	if err != nil {
		t.Fatalf("ClearUserData() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("ClearUserData() removed %d rows, want 2", n)
	}

	rows, err := svc.List(ctx, other, schema.TableContacts)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("other user's data affected: %d rows left", len(rows))
	}
}
