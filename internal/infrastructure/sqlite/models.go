package sqlite

import (
	"fmt"
	"strconv"
	"time"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/sessions/domain"
)

// SessionModel represents a row of the sessions table.
// Time values are Unix timestamps in nanoseconds so ordering is stable within
// one second.
type SessionModel struct {
	ID            string
	Project       string
	State         string
	ArtifactCount int
	CreatedAt     int64
	CompletedAt   *int64 // nullable
}

func toSessionModel(s *domain.Session) *SessionModel {
	m := &SessionModel{
		ID:            s.ID(),
		Project:       s.Project(),
		State:         string(s.State()),
		ArtifactCount: s.ArtifactCount(),
		CreatedAt:     s.CreatedAt().UnixNano(),
	}
	if s.CompletedAt() != nil {
		completedAt := s.CompletedAt().UnixNano()
		m.CompletedAt = &completedAt
	}
	return m
}

func (m *SessionModel) toDomain() *domain.Session {
	var completedAt *time.Time
	if m.CompletedAt != nil {
		t := time.Unix(0, *m.CompletedAt)
		completedAt = &t
	}
	return domain.ReconstituteSession(
		m.ID,
		m.Project,
		domain.SessionState(m.State),
		m.ArtifactCount,
		time.Unix(0, m.CreatedAt),
		completedAt,
	)
}

// ArtifactModel represents a row of the artifacts table.
type ArtifactModel struct {
	SessionID string
	Position  int
	Name      string
	Kind      string
	Origin    string
	FilePath  string
	Source    string
	Hash      string // hex, SQLite integers are signed
}

func toArtifactModel(sessionID string, position int, a *artifact.Artifact) *ArtifactModel {
	return &ArtifactModel{
		SessionID: sessionID,
		Position:  position,
		Name:      a.Name(),
		Kind:      string(a.Kind()),
		Origin:    string(a.Origin()),
		FilePath:  a.FilePath(),
		Source:    a.Source(),
		Hash:      formatHash(a.Hash()),
	}
}

func (m *ArtifactModel) toDomain() (*artifact.Artifact, error) {
	kind, err := artifact.ParseKind(m.Kind)
	if err != nil {
		return nil, err
	}
	a, err := artifact.NewBuilder(kind).
		Origin(artifact.Origin(m.Origin)).
		Name(m.Name).
		FilePath(m.FilePath).
		Source(m.Source).
		Build()
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", m.Name, err)
	}
	return a, nil
}

func formatHash(h uint64) string {
	return strconv.FormatUint(h, 16)
}

func parseHash(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}
