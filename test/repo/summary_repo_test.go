package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ctxloom/ctxloom/internal/model"
	appErr "github.com/ctxloom/ctxloom/internal/pkg/errors"
	"github.com/ctxloom/ctxloom/internal/pkg/timeutil"
	"github.com/ctxloom/ctxloom/internal/repo"
	"github.com/ctxloom/ctxloom/test/testutil"
)

func newSummary(projectID, path string, level model.SummaryLevel, content string) *model.Summary {
	return &model.Summary{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Path:       path,
		Level:      level,
		Content:    content,
		TokenCount: 10,
		Ctime:      timeutil.NowUnix(),
	}
}

func TestSummaryRepoReplaceForPath(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	summaries := repo.NewSummaryRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()

	first := newSummary(projectID, "a.go", model.SummaryLevelFile, "first pass")
	require.NoError(t, summaries.ReplaceForPath(ctx, first))

	second := newSummary(projectID, "a.go", model.SummaryLevelFile, "second pass")
	require.NoError(t, summaries.ReplaceForPath(ctx, second))

	// the old row is gone, the fresh one is returned per path
	_, err := summaries.GetByID(ctx, first.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	got, err := summaries.ListFileSummaries(ctx, projectID, []string{"a.go"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "second pass", got[0].Content)
}

func TestSummaryRepoGetProjectSummary(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	summaries := repo.NewSummaryRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()

	_, err := summaries.GetProjectSummary(ctx, projectID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	old := newSummary(projectID, "project", model.SummaryLevelProject, "old")
	old.Ctime = timeutil.NowUnix() - 100
	require.NoError(t, summaries.Insert(ctx, old))
	fresh := newSummary(projectID, "project", model.SummaryLevelProject, "fresh")
	require.NoError(t, summaries.Insert(ctx, fresh))

	got, err := summaries.GetProjectSummary(ctx, projectID)
	require.NoError(t, err)
	require.Equal(t, "fresh", got.Content)
}

func TestSummaryRepoListFileSummariesScopedToPaths(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	summaries := repo.NewSummaryRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()

	require.NoError(t, summaries.Insert(ctx, newSummary(projectID, "a.go", model.SummaryLevelFile, "a")))
	require.NoError(t, summaries.Insert(ctx, newSummary(projectID, "b.go", model.SummaryLevelFile, "b")))
	require.NoError(t, summaries.Insert(ctx, newSummary(projectID, "c.go", model.SummaryLevelFile, "c")))

	got, err := summaries.ListFileSummaries(ctx, projectID, []string{"a.go", "c.go"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = summaries.ListFileSummaries(ctx, projectID, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSummaryRepoDeleteByProject(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	summaries := repo.NewSummaryRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()

	require.NoError(t, summaries.Insert(ctx, newSummary(projectID, "a.go", model.SummaryLevelFile, "a")))
	require.NoError(t, summaries.Insert(ctx, newSummary(projectID, "project", model.SummaryLevelProject, "p")))

	deleted, err := summaries.DeleteByProject(ctx, projectID)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)
}
