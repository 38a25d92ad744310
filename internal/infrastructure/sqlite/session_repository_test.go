package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/sessions/domain"
	"github.com/withglyph/glitch/internal/testutil"
)

func setupTestRepo(t *testing.T) *sessionRepository {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newSessionRepository(db.conn)
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func completedSession(id, project string, offset time.Duration, count int) *domain.Session {
	created := baseTime.Add(offset)
	completed := created.Add(time.Second)
	return domain.ReconstituteSession(id, project, domain.SessionStateCompleted, count, created, &completed)
}

func TestSessionRepository_SaveAndFind(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s := domain.ReconstituteSession("s1", "/app", domain.SessionStatePending, 0, baseTime, nil)
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.FindByID(ctx, "/app", "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.ID())
	require.Equal(t, "/app", got.Project())
	require.Equal(t, domain.SessionStatePending, got.State())
	require.True(t, baseTime.Equal(got.CreatedAt()))
	require.Nil(t, got.CompletedAt())
}

func TestSessionRepository_SaveUpdates(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s := domain.ReconstituteSession("s1", "/app", domain.SessionStatePending, 0, baseTime, nil)
	require.NoError(t, repo.Save(ctx, s))

	s.Complete(7)
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.FindByID(ctx, "/app", "s1")
	require.NoError(t, err)
	require.Equal(t, domain.SessionStateCompleted, got.State())
	require.Equal(t, 7, got.ArtifactCount())
	require.NotNil(t, got.CompletedAt())
	require.True(t, baseTime.Equal(got.CreatedAt()), "created_at is not overwritten")
}

func TestSessionRepository_FindByID_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.FindByID(context.Background(), "/app", "missing")
	var notFound *domain.SessionNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "missing", notFound.ID)
}

func TestSessionRepository_Latest(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, completedSession("old", "/app", 0, 1)))
	require.NoError(t, repo.Save(ctx, completedSession("new", "/app", time.Minute, 2)))
	// Newer but never completed.
	require.NoError(t, repo.Save(ctx, domain.ReconstituteSession("running", "/app", domain.SessionStatePending, 0, baseTime.Add(time.Hour), nil)))
	require.NoError(t, repo.Save(ctx, completedSession("other", "/other", 2*time.Hour, 3)))

	got, err := repo.Latest(ctx, "/app")
	require.NoError(t, err)
	require.Equal(t, "new", got.ID())
}

func TestSessionRepository_Latest_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Latest(context.Background(), "/app")
	var notFound *domain.SessionNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "/app", notFound.Project)
}

func TestSessionRepository_List(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Save(ctx, completedSession(fmt.Sprintf("s%d", i), "/app", time.Duration(i)*time.Minute, i)))
	}
	require.NoError(t, repo.Save(ctx, domain.ReconstituteSession("failed", "/app", domain.SessionStateFailed, 0, baseTime.Add(time.Hour), nil)))

	all, err := repo.List(ctx, "/app", domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, "failed", all[0].ID())

	completed, err := repo.List(ctx, "/app", domain.ListFilter{State: domain.SessionStateCompleted, Limit: 2})
	require.NoError(t, err)
	require.Len(t, completed, 2)
	require.Equal(t, "s3", completed[0].ID())
	require.Equal(t, "s2", completed[1].ID())

	none, err := repo.List(ctx, "/elsewhere", domain.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSessionRepository_Artifacts(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	want := testutil.NewBuilder(t).WithStandardArtifacts().Build()
	require.NoError(t, repo.Save(ctx, completedSession("s1", "/app", 0, want.Len())))
	require.NoError(t, repo.SaveArtifacts(ctx, "s1", want.List()))

	got, err := repo.Artifacts(ctx, "s1")
	require.NoError(t, err)
	require.True(t, got.Sealed())
	require.Equal(t, want.Len(), got.Len())

	for i, w := range want.List() {
		g := got.List()[i]
		require.Equal(t, w.Name(), g.Name())
		require.Equal(t, w.Kind(), g.Kind())
		require.Equal(t, w.Origin(), g.Origin())
		require.Equal(t, w.FilePath(), g.FilePath())
		require.Equal(t, w.Source(), g.Source())
		require.Equal(t, w.Hash(), g.Hash())
	}

	hashes, err := repo.Hashes(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, hashes, want.Len())
	for _, w := range want.List() {
		require.Equal(t, w.Hash(), hashes[w.Name()])
	}
}

func TestSessionRepository_SaveArtifactsReplaces(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	a, err := artifact.NewBuilder(artifact.KindMutation).
		Origin(artifact.OriginManual).
		Name("Like_Mutation").
		FilePath("src/like.ts").
		Source(testutil.LikeMutation).
		Build()
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, completedSession("s1", "/app", 0, 1)))
	all := testutil.NewBuilder(t).WithStandardArtifacts().Build().List()
	require.NoError(t, repo.SaveArtifacts(ctx, "s1", all))
	require.NoError(t, repo.SaveArtifacts(ctx, "s1", []*artifact.Artifact{a}))

	got, err := repo.Artifacts(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
}

func TestSessionRepository_SaveArtifacts_UnknownSession(t *testing.T) {
	repo := setupTestRepo(t)
	all := testutil.NewBuilder(t).WithStandardArtifacts().Build().List()

	err := repo.SaveArtifacts(context.Background(), "ghost", all)
	require.Error(t, err, "foreign key rejects artifacts without a session")
}

func TestSessionRepository_Prune(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		require.NoError(t, repo.Save(ctx, completedSession(id, "/app", time.Duration(i)*time.Minute, 0)))
	}
	require.NoError(t, repo.Save(ctx, completedSession("keep-me", "/other", 0, 0)))
	all := testutil.NewBuilder(t).WithStandardArtifacts().Build().List()
	require.NoError(t, repo.SaveArtifacts(ctx, "s0", all))

	n, err := repo.Prune(ctx, "/app", 2)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	left, err := repo.List(ctx, "/app", domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, left, 2)
	require.Equal(t, "s4", left[0].ID())
	require.Equal(t, "s3", left[1].ID())

	hashes, err := repo.Hashes(ctx, "s0")
	require.NoError(t, err)
	require.Empty(t, hashes, "artifacts cascade with their session")

	_, err = repo.FindByID(ctx, "/other", "keep-me")
	require.NoError(t, err)
}

func TestSessionRepository_ProjectIsolation(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	next := 0

	rapid.Check(t, func(rt *rapid.T) {
		projects := []string{"/a", "/b", "/c"}
		n := rapid.IntRange(1, 8).Draw(rt, "sessions")
		created := make(map[string]string, n)
		for i := 0; i < n; i++ {
			next++
			id := fmt.Sprintf("p%d", next)
			project := rapid.SampledFrom(projects).Draw(rt, "project")
			require.NoError(rt, repo.Save(ctx, completedSession(id, project, time.Duration(next)*time.Second, 0)))
			created[id] = project
		}

		for id, project := range created {
			for _, other := range projects {
				_, err := repo.FindByID(ctx, other, id)
				if other == project {
					require.NoError(rt, err)
				} else {
					require.Error(rt, err)
				}
			}
		}
	})
}
