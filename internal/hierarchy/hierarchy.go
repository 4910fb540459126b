// Package hierarchy resolves reporting-chain membership against the
// remote user directory.
//
// The supervisor graph lives on the server and may, through bad data,
// contain cycles or duplicate edges. Every walk therefore carries an
// explicit visited set and a depth cap; a cycle is treated as
// non-membership rather than looped on forever.
//
// Failure semantics are fail-closed: a directory lookup error (network,
// timeout) answers "not in team". A transient directory error must
// never grant broadened data access.
package hierarchy

import (
	"context"
	"log"
	"os"

	"github.com/credisync/credisync/internal/identity"
)

// MaxDepth bounds the upward supervisor walk. Real reporting chains are
// a handful of levels deep; anything past this is a data cycle.
const MaxDepth = 10

// Member is one user as known to the directory.
type Member struct {
	ID   string
	Role string
}

// Directory is the slice of the identity collaborator the resolver
// needs. Supervisor returns "" when the user has no supervisor.
type Directory interface {
	Supervisor(ctx context.Context, userID string) (string, error)
	DirectReports(ctx context.Context, supervisorID string) ([]Member, error)
}

// Resolver answers team-membership questions over a Directory.
type Resolver struct {
	dir    Directory
	logger *log.Logger
}

// New creates a Resolver. If logger is nil, a default logger writing to
// stderr is used.
func New(dir Directory, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(os.Stderr, "[hierarchy] ", log.LstdFlags)
	}
	return &Resolver{dir: dir, logger: logger}
}

// IsInTeam reports whether candidateUserID is anywhere in the reporting
// chain below supervisorID. The walk follows the candidate's supervisor
// chain upward until it matches, ends, or exceeds MaxDepth.
func (r *Resolver) IsInTeam(ctx context.Context, candidateUserID, supervisorID string) bool {
	if candidateUserID == "" || supervisorID == "" {
		return false
	}

	visited := make(map[string]bool)
	current := candidateUserID

	for depth := 0; depth < MaxDepth; depth++ {
		if visited[current] {
			// Supervisor cycle; treat as non-membership.
			return false
		}
		visited[current] = true

		sup, err := r.dir.Supervisor(ctx, current)
		if err != nil {
			r.logger.Printf("Warning: supervisor lookup failed for %s: %v (denying team membership)", current, err)
			return false
		}
		if sup == "" {
			return false
		}
		if sup == supervisorID {
			return true
		}
		current = sup
	}

	return false
}

// TeamMembers returns every user in the reporting tree under
// supervisorID, recursing into direct reports who are themselves
// supervisor-class. Duplicate edges are tolerated via the visited set.
// A directory failure on a subtree skips that subtree (fail-closed);
// partial results are still returned.
func (r *Resolver) TeamMembers(ctx context.Context, supervisorID string) []string {
	visited := map[string]bool{supervisorID: true}
	var members []string

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if depth >= MaxDepth {
			return
		}
		reports, err := r.dir.DirectReports(ctx, id)
		if err != nil {
			r.logger.Printf("Warning: direct reports lookup failed for %s: %v (skipping subtree)", id, err)
			return
		}
		for _, m := range reports {
			if visited[m.ID] {
				continue
			}
			visited[m.ID] = true
			members = append(members, m.ID)
			if supervisorClass(m.Role) {
				walk(m.ID, depth+1)
			}
		}
	}
	walk(supervisorID, 0)

	return members
}

func supervisorClass(role string) bool {
	return role == identity.RoleSupervisor || role == identity.RoleManager
}
