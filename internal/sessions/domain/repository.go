package domain

import (
	"context"

	"github.com/withglyph/glitch/internal/artifact"
)

// ListFilter provides filtering options for listing sessions.
type ListFilter struct {
	// State filters sessions by state. If empty, all states are included.
	State SessionState

	// Limit restricts the number of sessions returned. If 0, no limit is applied.
	Limit int
}

// SessionRepository defines the persistence interface for build sessions and
// the artifacts they produced.
type SessionRepository interface {
	// Save inserts the session or updates its state.
	Save(ctx context.Context, session *Session) error

	// SaveArtifacts stores the artifacts of a session, preserving their order.
	SaveArtifacts(ctx context.Context, sessionID string, artifacts []*artifact.Artifact) error

	// FindByID retrieves a session within a project.
	// Returns SessionNotFoundError if no matching session exists.
	FindByID(ctx context.Context, project, id string) (*Session, error)

	// Latest retrieves the newest completed session of a project.
	// Returns SessionNotFoundError if the project has none.
	Latest(ctx context.Context, project string) (*Session, error)

	// List retrieves sessions of a project, newest first.
	List(ctx context.Context, project string, filter ListFilter) ([]*Session, error)

	// Artifacts loads the artifacts of a session into a sealed registry.
	Artifacts(ctx context.Context, sessionID string) (*artifact.Registry, error)

	// Hashes returns artifact name to source hash for a session.
	Hashes(ctx context.Context, sessionID string) (map[string]uint64, error)

	// Prune deletes all but the newest keep sessions of a project and
	// returns how many were removed.
	Prune(ctx context.Context, project string, keep int) (int, error)
}
