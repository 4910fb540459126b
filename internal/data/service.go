// Package data is the application-facing surface of the replica.
//
// Every read and write issued by application code goes through Service,
// which resolves the caller's scope predicate and applies it: reads are
// filtered, updates and deletes are authorized. There is no raw
// unscoped path into the replica for application code; the sync engine
// has its own narrow store methods.
package data

import (
	"context"
	"fmt"

	"github.com/credisync/credisync/internal/identity"
	"github.com/credisync/credisync/internal/replica"
	"github.com/credisync/credisync/internal/schema"
	"github.com/credisync/credisync/internal/scope"
)

// Service ties the replica store to the access scope resolver.
type Service struct {
	store  *replica.Store
	scopes *scope.Resolver
}

// New creates a Service.
func New(store *replica.Store, scopes *scope.Resolver) *Service {
	return &Service{store: store, scopes: scopes}
}

// Create stores a new record on behalf of the principal. Ownership
// metadata comes from the principal, never from the payload.
func (s *Service) Create(ctx context.Context, p *identity.Principal, table string, payload map[string]any) (*schema.Record, error) {
	// Resolve the scope first so an unrecognized role is rejected even
	// on writes the predicate would not otherwise consult.
	if _, err := s.scopes.KindFor(p); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, table, payload, p)
}

// Get returns a single record if the principal's scope admits it.
// A record outside scope is reported as permission denied, not as
// absent; spoof-probing ids should not distinguish the two cheaply.
func (s *Service) Get(ctx context.Context, p *identity.Principal, table, id string) (*schema.Record, error) {
	pred, err := s.scopes.ScopeFor(p)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if !pred(ctx, rec) {
		return nil, schema.ErrPermissionDenied
	}
	return rec, nil
}

// List returns every record of a table the principal's scope admits.
//
// The replica query is narrowed by scope kind so the common cases ride
// an index: own scope scans (tbl, tenant, creator), team and tenant
// scopes scan (tbl, tenant), global scans the table. The predicate is
// then applied row by row; for team scope that is where hierarchy
// membership gets consulted.
func (s *Service) List(ctx context.Context, p *identity.Principal, table string) ([]*schema.Record, error) {
	kind, err := s.scopes.KindFor(p)
	if err != nil {
		return nil, err
	}
	pred, err := s.scopes.ScopeFor(p)
	if err != nil {
		return nil, err
	}

	var candidates []*schema.Record
	switch kind {
	case scope.KindOwn:
		candidates, err = s.store.ListByCreator(ctx, table, p.TenantID, p.UserID)
	case scope.KindTeam, scope.KindTenant:
		candidates, err = s.store.ListByTenant(ctx, table, p.TenantID)
	case scope.KindGlobal:
		candidates, err = s.store.ListAll(ctx, table)
	default:
		return nil, fmt.Errorf("unhandled scope kind %v", kind)
	}
	if err != nil {
		return nil, err
	}

	filtered := candidates[:0]
	for _, rec := range candidates {
		if pred(ctx, rec) {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// Update patches a record's business fields if the principal's scope
// admits the existing record. Ownership metadata is immutable.
func (s *Service) Update(ctx context.Context, p *identity.Principal, table, id string, patch map[string]any) (*schema.Record, error) {
	pred, err := s.scopes.ScopeFor(p)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if !pred(ctx, rec) {
		return nil, schema.ErrPermissionDenied
	}

	return s.store.Update(ctx, table, id, patch)
}

// Delete removes a record if the principal's scope admits it.
func (s *Service) Delete(ctx context.Context, p *identity.Principal, table, id string) error {
	pred, err := s.scopes.ScopeFor(p)
	if err != nil {
		return err
	}

	rec, err := s.store.Get(ctx, table, id)
	if err != nil {
		return err
	}
	if !pred(ctx, rec) {
		return schema.ErrPermissionDenied
	}

	return s.store.Delete(ctx, table, id)
}

// ClearUserData removes every record the principal created, across all
// managed tables. Intended for device handover and test resets.
func (s *Service) ClearUserData(ctx context.Context, p *identity.Principal) (int64, error) {
	if _, err := s.scopes.KindFor(p); err != nil {
		return 0, err
	}

	var removed int64
	for _, table := range schema.Tables() {
		n, err := s.store.DeleteByCreator(ctx, table, p.TenantID, p.UserID)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// ClearTenantData wipes every record of the principal's tenant.
// Restricted to tenant-admin scope and above.
func (s *Service) ClearTenantData(ctx context.Context, p *identity.Principal) (int64, error) {
	kind, err := s.scopes.KindFor(p)
	if err != nil {
		return 0, err
	}
	if kind != scope.KindTenant && kind != scope.KindGlobal {
		return 0, schema.ErrPermissionDenied
	}

	var removed int64
	for _, table := range schema.Tables() {
		n, err := s.store.DeleteByTenant(ctx, table, p.TenantID)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}
