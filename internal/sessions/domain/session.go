// Package domain provides the pure domain layer for build sessions.
//
// A build session is one extraction run over a project root. It records the
// artifacts that run produced so later runs can rewrite without re-extracting
// and report which artifacts were added, changed or removed.
package domain

import (
	"fmt"
	"time"
)

// SessionState represents the lifecycle state of a build session.
type SessionState string

const (
	// SessionStatePending indicates extraction has started.
	SessionStatePending SessionState = "pending"

	// SessionStateCompleted indicates every artifact of the run was stored.
	SessionStateCompleted SessionState = "completed"

	// SessionStateFailed indicates extraction failed; its artifacts are incomplete.
	SessionStateFailed SessionState = "failed"
)

// String returns the string representation of the state.
func (s SessionState) String() string {
	return string(s)
}

// IsValid returns true if the state is a known value.
func (s SessionState) IsValid() bool {
	switch s {
	case SessionStatePending, SessionStateCompleted, SessionStateFailed:
		return true
	}
	return false
}

// Session is one extraction run over a project.
type Session struct {
	id            string
	project       string
	state         SessionState
	artifactCount int
	createdAt     time.Time
	completedAt   *time.Time
}

// NewSession creates a pending session.
func NewSession(id, project string) *Session {
	return &Session{
		id:        id,
		project:   project,
		state:     SessionStatePending,
		createdAt: time.Now(),
	}
}

// ReconstituteSession creates a Session from stored data.
func ReconstituteSession(id, project string, state SessionState, artifactCount int, createdAt time.Time, completedAt *time.Time) *Session {
	return &Session{
		id:            id,
		project:       project,
		state:         state,
		artifactCount: artifactCount,
		createdAt:     createdAt,
		completedAt:   completedAt,
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) Project() string { return s.project }
func (s *Session) State() SessionState { return s.state }
func (s *Session) ArtifactCount() int { return s.artifactCount }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) CompletedAt() *time.Time { return s.completedAt }
func (s *Session) IsCompleted() bool { return s.state == SessionStateCompleted }

// Complete marks the session as holding count artifacts.
func (s *Session) Complete(count int) {
	now := time.Now()
	s.state = SessionStateCompleted
	s.artifactCount = count
	s.completedAt = &now
}

// Fail marks the session as failed.
func (s *Session) Fail() {
	now := time.Now()
	s.state = SessionStateFailed
	s.completedAt = &now
}

// SessionNotFoundError is returned when no session matches a lookup.
type SessionNotFoundError struct {
	ID      string
	Project string
}

func (e *SessionNotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("no completed session for project %q", e.Project)
	}
	return fmt.Sprintf("session %s not found in project %q", e.ID, e.Project)
}
