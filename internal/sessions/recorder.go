// Package sessions records extraction runs so later commands can reuse their
// artifacts and report what changed between runs.
package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/log"
	"github.com/withglyph/glitch/internal/sessions/domain"
)

// DefaultKeep is how many sessions per project survive pruning.
const DefaultKeep = 10

// Recorder stores extraction results for one project.
type Recorder struct {
	repo    domain.SessionRepository
	project string
	keep    int
}

// NewRecorder creates a recorder. keep <= 0 uses DefaultKeep.
func NewRecorder(repo domain.SessionRepository, project string, keep int) *Recorder {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Recorder{repo: repo, project: project, keep: keep}
}

// Record stores reg as a new completed session and returns it together with
// the changes since the previous completed session. The first session of a
// project reports every artifact as added.
func (r *Recorder) Record(ctx context.Context, reg *artifact.Registry) (*domain.Session, domain.Changes, error) {
	prev, err := r.previousHashes(ctx)
	if err != nil {
		return nil, domain.Changes{}, err
	}

	session := domain.NewSession(uuid.NewString(), r.project)
	if err := r.repo.Save(ctx, session); err != nil {
		return nil, domain.Changes{}, err
	}

	if err := r.repo.SaveArtifacts(ctx, session.ID(), reg.List()); err != nil {
		session.Fail()
		if saveErr := r.repo.Save(ctx, session); saveErr != nil {
			log.Warn(log.CatDB, "failed to mark session failed", "session", session.ID(), "error", saveErr)
		}
		return nil, domain.Changes{}, err
	}

	session.Complete(reg.Len())
	if err := r.repo.Save(ctx, session); err != nil {
		return nil, domain.Changes{}, err
	}

	next := make(map[string]uint64, reg.Len())
	for _, a := range reg.List() {
		next[a.Name()] = a.Hash()
	}
	changes := domain.Compare(prev, next)

	if n, err := r.repo.Prune(ctx, r.project, r.keep); err != nil {
		log.Warn(log.CatDB, "failed to prune sessions", "project", r.project, "error", err)
	} else if n > 0 {
		log.Debug(log.CatDB, "pruned sessions", "project", r.project, "count", n)
	}

	log.Info(log.CatDB, "session recorded",
		"session", session.ID(),
		"artifacts", reg.Len(),
		"added", len(changes.Added),
		"changed", len(changes.Changed),
		"removed", len(changes.Removed))
	return session, changes, nil
}

// Latest loads the artifacts of the newest completed session. ok is false
// when the project has none.
func (r *Recorder) Latest(ctx context.Context) (reg *artifact.Registry, session *domain.Session, ok bool, err error) {
	session, err = r.repo.Latest(ctx, r.project)
	var notFound *domain.SessionNotFoundError
	if errors.As(err, &notFound) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	reg, err = r.repo.Artifacts(ctx, session.ID())
	if err != nil {
		return nil, nil, false, fmt.Errorf("load session %s: %w", session.ID(), err)
	}
	return reg, session, true, nil
}

// History lists the recorded sessions, newest first.
func (r *Recorder) History(ctx context.Context, limit int) ([]*domain.Session, error) {
	return r.repo.List(ctx, r.project, domain.ListFilter{Limit: limit})
}

func (r *Recorder) previousHashes(ctx context.Context) (map[string]uint64, error) {
	latest, err := r.repo.Latest(ctx, r.project)
	var notFound *domain.SessionNotFoundError
	if errors.As(err, &notFound) {
		return map[string]uint64{}, nil
	}
	if err != nil {
		return nil, err
	}
	return r.repo.Hashes(ctx, latest.ID())
}
