// Package scope computes, per principal, the subset of replica data an
// operation may touch.
//
// Roles map to a closed set of scope kinds. Adding a role means adding
// an entry to roleKinds; an unrecognized role never falls through to a
// default branch, it fails resolution and the caller must deny access.
package scope

import (
	"context"
	"fmt"

	"github.com/credisync/credisync/internal/hierarchy"
	"github.com/credisync/credisync/internal/identity"
	"github.com/credisync/credisync/internal/schema"
)

// Kind is the breadth of data a role may touch.
type Kind int

const (
	// KindOwn admits only records the principal created.
	KindOwn Kind = iota
	// KindTeam admits own records plus the supervised team's records.
	KindTeam
	// KindTenant admits every record in the principal's tenant.
	KindTenant
	// KindGlobal admits everything, across tenants.
	KindGlobal
)

// String returns a human-readable representation of the scope kind.
func (k Kind) String() string {
	switch k {
	case KindOwn:
		return "own"
	case KindTeam:
		return "team"
	case KindTenant:
		return "tenant"
	case KindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// roleKinds is the closed role→scope mapping.
var roleKinds = map[string]Kind{
	identity.RoleUser:       KindOwn,
	identity.RoleCobrador:   KindOwn,
	identity.RoleSupervisor: KindTeam,
	identity.RoleManager:    KindTeam,
	identity.RoleAdmin:      KindTenant,
	identity.RoleSuperadmin: KindGlobal,
}

// InvalidRoleError reports a role string with no scope mapping.
// Resolution fails closed; the caller must deny access.
type InvalidRoleError struct {
	Role string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role: %q", e.Role)
}

// Predicate is a boolean filter over records. It defines the maximal
// readable/writable subset for a principal and is applied on reads
// (filter) and on update/delete (authorize).
type Predicate func(ctx context.Context, r *schema.Record) bool

// Resolver builds scope predicates. Team scope consults the hierarchy
// resolver for authoritative membership.
type Resolver struct {
	hierarchy *hierarchy.Resolver
}

// New creates a Resolver.
func New(h *hierarchy.Resolver) *Resolver {
	return &Resolver{hierarchy: h}
}

// KindFor returns the scope kind for the principal's role.
func (s *Resolver) KindFor(p *identity.Principal) (Kind, error) {
	kind, ok := roleKinds[p.Role]
	if !ok {
		return 0, &InvalidRoleError{Role: p.Role}
	}
	return kind, nil
}

// ScopeFor returns the predicate local queries must satisfy for the
// principal. Every read path exposed to application code passes through
// here; there is no raw unscoped read path.
func (s *Resolver) ScopeFor(p *identity.Principal) (Predicate, error) {
	kind, err := s.KindFor(p)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindOwn:
		return func(_ context.Context, r *schema.Record) bool {
			return r.TenantID == p.TenantID && r.CreatedBy == p.UserID
		}, nil

	case KindTeam:
		return func(ctx context.Context, r *schema.Record) bool {
			if r.TenantID != p.TenantID {
				return false
			}
			if r.CreatedBy == p.UserID {
				return true
			}
			// Denormalized supervisor hint first; the hierarchy walk is
			// the authoritative (and slower) path.
			if r.SupervisorID == p.UserID {
				return true
			}
			return s.hierarchy.IsInTeam(ctx, r.CreatedBy, p.UserID)
		}, nil

	case KindTenant:
		return func(_ context.Context, r *schema.Record) bool {
			return r.TenantID == p.TenantID
		}, nil

	case KindGlobal:
		return func(_ context.Context, _ *schema.Record) bool {
			return true
		}, nil
	}

	return nil, &InvalidRoleError{Role: p.Role}
}
