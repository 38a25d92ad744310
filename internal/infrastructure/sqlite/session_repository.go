package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/sessions/domain"
)

const sessionColumns = `id, project, state, artifact_count, created_at, completed_at`

// sessionRepository implements domain.SessionRepository using SQLite.
type sessionRepository struct {
	db *sql.DB
}

func newSessionRepository(db *sql.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

var _ domain.SessionRepository = (*sessionRepository)(nil)

func scanSession(scanner interface{ Scan(...any) error }) (*SessionModel, error) {
	var m SessionModel
	err := scanner.Scan(&m.ID, &m.Project, &m.State, &m.ArtifactCount, &m.CreatedAt, &m.CompletedAt)
	return &m, err
}

// Save inserts the session, or updates state, count and completion time when
// it already exists.
func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	m := toSessionModel(session)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			state = excluded.state,
			artifact_count = excluded.artifact_count,
			completed_at = excluded.completed_at`,
		m.ID, m.Project, m.State, m.ArtifactCount, m.CreatedAt, m.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SaveArtifacts replaces the artifacts stored for a session.
func (r *sessionRepository) SaveArtifacts(ctx context.Context, sessionID string, artifacts []*artifact.Artifact) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO artifacts (session_id, position, name, kind, origin, file_path, source, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare artifact insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, a := range artifacts {
		m := toArtifactModel(sessionID, i, a)
		if _, err := stmt.ExecContext(ctx, m.SessionID, m.Position, m.Name, m.Kind, m.Origin, m.FilePath, m.Source, m.Hash); err != nil {
			return fmt.Errorf("failed to insert artifact %s: %w", m.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit artifacts: %w", err)
	}
	return nil
}

// FindByID retrieves a session within a project.
func (r *sessionRepository) FindByID(ctx context.Context, project, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE project = ? AND id = ?`,
		project, id,
	)
	m, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.SessionNotFoundError{ID: id, Project: project}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return m.toDomain(), nil
}

// Latest retrieves the newest completed session of a project.
func (r *sessionRepository) Latest(ctx context.Context, project string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE project = ? AND state = ?
		 ORDER BY created_at DESC LIMIT 1`,
		project, string(domain.SessionStateCompleted),
	)
	m, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.SessionNotFoundError{Project: project}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest session: %w", err)
	}
	return m.toDomain(), nil
}

// List retrieves sessions of a project, newest first.
func (r *sessionRepository) List(ctx context.Context, project string, filter domain.ListFilter) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE project = ?`
	args := []any{project}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*domain.Session
	for rows.Next() {
		m, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, m.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// Artifacts loads the artifacts of a session into a sealed registry.
func (r *sessionRepository) Artifacts(ctx context.Context, sessionID string) (*artifact.Registry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, position, name, kind, origin, file_path, source, hash
		 FROM artifacts WHERE session_id = ? ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	reg := artifact.NewRegistry()
	for rows.Next() {
		var m ArtifactModel
		if err := rows.Scan(&m.SessionID, &m.Position, &m.Name, &m.Kind, &m.Origin, &m.FilePath, &m.Source, &m.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		a, err := m.toDomain()
		if err != nil {
			return nil, err
		}
		if err := reg.Add(a); err != nil {
			return nil, fmt.Errorf("failed to load artifact %s: %w", m.Name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifacts: %w", err)
	}
	reg.Seal()
	return reg, nil
}

// Hashes returns artifact name to source hash for a session.
func (r *sessionRepository) Hashes(ctx context.Context, sessionID string) (map[string]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, hash FROM artifacts WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hashes := make(map[string]uint64)
	for rows.Next() {
		var name, hex string
		if err := rows.Scan(&name, &hex); err != nil {
			return nil, fmt.Errorf("failed to scan hash: %w", err)
		}
		h, err := parseHash(hex)
		if err != nil {
			return nil, fmt.Errorf("invalid hash for %s: %w", name, err)
		}
		hashes[name] = h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hashes: %w", err)
	}
	return hashes, nil
}

// Prune deletes all but the newest keep sessions of a project. Artifacts go
// with their session through the foreign key cascade.
func (r *sessionRepository) Prune(ctx context.Context, project string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE project = ? AND id NOT IN (
			SELECT id FROM sessions WHERE project = ? ORDER BY created_at DESC LIMIT ?
		)`,
		project, project, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
