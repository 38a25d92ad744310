package presentation

import (
	"strconv"
	"time"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/pipeline"
	"github.com/withglyph/glitch/internal/sessions/domain"
)

// ArtifactDTO represents an artifact for presentation.
type ArtifactDTO struct {
	Kind   string `json:"kind"`
	Origin string `json:"origin"`
	Name   string `json:"name"`
	File   string `json:"file"`
	Hash   string `json:"hash"`
	Source string `json:"source"`
}

// FromArtifact converts a domain artifact to a DTO.
func FromArtifact(a *artifact.Artifact) ArtifactDTO {
	return ArtifactDTO{
		Kind:   string(a.Kind()),
		Origin: string(a.Origin()),
		Name:   a.Name(),
		File:   a.FilePath(),
		Hash:   strconv.FormatUint(a.Hash(), 16),
		Source: a.Source(),
	}
}

// FromArtifacts converts artifacts to DTOs. The result is never nil.
func FromArtifacts(artifacts []*artifact.Artifact) []ArtifactDTO {
	dtos := make([]ArtifactDTO, len(artifacts))
	for i, a := range artifacts {
		dtos[i] = FromArtifact(a)
	}
	return dtos
}

// SessionDTO represents a build session.
type SessionDTO struct {
	ID            string     `json:"id"`
	State         string     `json:"state"`
	ArtifactCount int        `json:"artifact_count"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// FromSession converts a session to a DTO.
func FromSession(s *domain.Session) SessionDTO {
	return SessionDTO{
		ID:            s.ID(),
		State:         string(s.State()),
		ArtifactCount: s.ArtifactCount(),
		CreatedAt:     s.CreatedAt(),
		CompletedAt:   s.CompletedAt(),
	}
}

// SkippedDTO is a literal extraction ignored.
type SkippedDTO struct {
	File  string `json:"file"`
	Line  uint32 `json:"line"`
	Error string `json:"error"`
}

// ExtractSummaryDTO summarises an extraction run.
type ExtractSummaryDTO struct {
	Files     int          `json:"files"`
	Artifacts int          `json:"artifacts"`
	Session   string       `json:"session,omitempty"`
	Added     []string     `json:"added"`
	Changed   []string     `json:"changed"`
	Removed   []string     `json:"removed"`
	Skipped   []SkippedDTO `json:"skipped"`
}

// FileOutcome is the result of rewriting one file.
type FileOutcome string

const (
	OutcomeRewritten FileOutcome = "rewritten"
	OutcomeUnchanged FileOutcome = "unchanged"
	OutcomeSkipped   FileOutcome = "skipped"
	OutcomeFailed    FileOutcome = "failed"
)

// FileEventDTO describes one file of a rewrite run.
type FileEventDTO struct {
	Path    string      `json:"path"`
	Outcome FileOutcome `json:"outcome"`
	Cached  bool        `json:"cached,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RunSummaryDTO counts the outcomes of a rewrite run.
type RunSummaryDTO struct {
	Rewritten int           `json:"rewritten"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Cached    int           `json:"cached"`
	Duration  time.Duration `json:"duration_ns"`
}

// FromFileResult converts a pipeline file result to a DTO.
func FromFileResult(r pipeline.FileResult) FileEventDTO {
	dto := FileEventDTO{
		Path:    r.Path,
		Outcome: FileOutcome(r.Outcome),
		Cached:  r.Cached,
	}
	if r.Err != nil {
		dto.Error = r.Err.Error()
	}
	return dto
}

// FromReport summarises a pipeline report.
func FromReport(r *pipeline.Report) RunSummaryDTO {
	return RunSummaryDTO{
		Rewritten: r.Rewritten,
		Unchanged: r.Unchanged,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
		Cached:    r.Cached,
		Duration:  r.Duration,
	}
}
