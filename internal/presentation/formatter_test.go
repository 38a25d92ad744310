package presentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/pipeline"
	"github.com/withglyph/glitch/internal/sessions/domain"
	"github.com/withglyph/glitch/internal/testutil"
)

func TestFormatArtifacts(t *testing.T) {
	reg := testutil.NewBuilder(t).WithStandardArtifacts().Build()
	var buf bytes.Buffer

	require.NoError(t, NewFormatter(&buf).FormatArtifacts(FromArtifacts(reg.List())))

	var got []ArtifactDTO
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, reg.Len())
	require.Equal(t, "Home_Query", got[0].Name)
	require.Equal(t, "query", got[0].Kind)
	require.Equal(t, "automatic", got[0].Origin)
	require.Equal(t, "src/routes/+page.svelte", got[0].File)
	require.Equal(t, testutil.HomeQuery, got[0].Source)
	require.NotEmpty(t, got[0].Hash)
}

func TestFormatArtifacts_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatArtifacts(nil))
	require.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, NewFormatter(&buf).FormatArtifacts(FromArtifacts(artifact.NewRegistry().List())))
	require.Equal(t, "[]\n", buf.String())
}

func TestFormatExtractSummary(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(&buf).FormatExtractSummary(ExtractSummaryDTO{
		Files:     3,
		Artifacts: 2,
		Session:   "abc",
		Added:     []string{"A"},
		Changed:   []string{"B"},
		Removed:   []string{"C"},
		Skipped:   []SkippedDTO{{File: "x.ts", Line: 4, Error: "graphql definition has no name"}},
	})
	require.NoError(t, err)
	require.Equal(t,
		"extracted 2 artifacts from 3 files session abc\n"+
			"  + A\n"+
			"  ~ B\n"+
			"  - C\n"+
			"  skipped x.ts:4 graphql definition has no name\n",
		buf.String())
}

func TestFormatFileEvent(t *testing.T) {
	tests := []struct {
		event FileEventDTO
		want  string
	}{
		{FileEventDTO{Path: "a.ts", Outcome: OutcomeRewritten}, "rewritten a.ts\n"},
		{FileEventDTO{Path: "b.ts", Outcome: OutcomeUnchanged, Cached: true}, "unchanged b.ts (cached)\n"},
		{FileEventDTO{Path: "c.ts", Outcome: OutcomeSkipped}, "skipped   c.ts\n"},
		{FileEventDTO{Path: "d.ts", Outcome: OutcomeFailed, Error: "permission denied"}, "failed    d.ts permission denied\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.event.Outcome), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewFormatter(&buf).FormatFileEvent(tt.event))
			require.Equal(t, tt.want, buf.String())
		})
	}
}

func TestFormatRunSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatRunSummary(RunSummaryDTO{
		Rewritten: 2, Unchanged: 5, Failed: 1, Cached: 3, Duration: 1500 * time.Millisecond,
	}))
	require.Equal(t, "2 rewritten, 5 unchanged, 1 failed, 3 cached in 1.5s\n", buf.String())
}

func TestFormatDiff(t *testing.T) {
	var buf bytes.Buffer
	diff := UnifiedDiff("a.ts", "a\n", "b\n")
	require.NoError(t, NewFormatter(&buf).FormatDiff(diff))
	require.Equal(t, diff, buf.String())

	buf.Reset()
	require.NoError(t, NewFormatter(&buf).FormatDiff(""))
	require.Empty(t, buf.String())
}

func TestFromSession(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := domain.ReconstituteSession("id", "/app", domain.SessionStateCompleted, 4, created, &created)

	dto := FromSession(s)
	require.Equal(t, SessionDTO{ID: "id", State: "completed", ArtifactCount: 4, CreatedAt: created, CompletedAt: &created}, dto)
}

func TestFormatJSON_Error(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(&buf).FormatJSON(map[string]any{"bad": func() {}})
	require.Error(t, err)
}

func TestFromFileResult(t *testing.T) {
	dto := FromFileResult(pipeline.FileResult{Path: "a.ts", Outcome: pipeline.OutcomeFailed, Err: errors.New("boom")})
	require.Equal(t, FileEventDTO{Path: "a.ts", Outcome: OutcomeFailed, Error: "boom"}, dto)

	dto = FromFileResult(pipeline.FileResult{Path: "b.ts", Outcome: pipeline.OutcomeRewritten, Cached: true})
	require.Equal(t, FileEventDTO{Path: "b.ts", Outcome: OutcomeRewritten, Cached: true}, dto)
}

func TestFromReport(t *testing.T) {
	got := FromReport(&pipeline.Report{Rewritten: 2, Unchanged: 5, Skipped: 1, Cached: 3, Duration: time.Second})
	require.Equal(t, RunSummaryDTO{Rewritten: 2, Unchanged: 5, Skipped: 1, Cached: 3, Duration: time.Second}, got)
}
