package repo_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ctxloom/ctxloom/internal/model"
	appErr "github.com/ctxloom/ctxloom/internal/pkg/errors"
	"github.com/ctxloom/ctxloom/internal/pkg/timeutil"
	"github.com/ctxloom/ctxloom/internal/repo"
	"github.com/ctxloom/ctxloom/test/testutil"
)

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func newChunk(projectID, path string, offset int, content string) *model.Chunk {
	return &model.Chunk{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Path:        path,
		Offset:      offset,
		TokenCount:  10,
		ContentHash: contentHash(content),
		Kind:        model.ChunkKindCode,
		Language:    "go",
		Ctime:       timeutil.NowUnix(),
	}
}

func TestChunkRepoInsertOrFetchDedup(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()

	first := newChunk(projectID, "a.go", 0, "shared content "+projectID)
	got, created, err := chunks.InsertOrFetch(ctx, first)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, first.ID, got.ID)

	// same content from a different path dedups to the first row
	second := newChunk(projectID, "b.go", 0, "shared content "+projectID)
	got, created, err = chunks.InsertOrFetch(ctx, second)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, "a.go", got.Path)

	count, err := chunks.CountByProject(ctx, projectID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestChunkRepoGetByID(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()

	c := newChunk(projectID, "x.go", 0, "unique "+uuid.NewString())
	_, _, err := chunks.InsertOrFetch(ctx, c)
	require.NoError(t, err)

	fetched, err := chunks.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.ContentHash, fetched.ContentHash)

	_, err = chunks.GetByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestChunkRepoListRecentByPaths(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()

	for i, path := range []string{"a.go", "a.go", "b.go", "c.go"} {
		c := newChunk(projectID, path, i*100, uuid.NewString())
		_, _, err := chunks.InsertOrFetch(ctx, c)
		require.NoError(t, err)
	}
	// binary chunks never appear in the hot window
	bin := newChunk(projectID, "a.go", 0, uuid.NewString())
	bin.Kind = model.ChunkKindBinary
	_, _, err := chunks.InsertOrFetch(ctx, bin)
	require.NoError(t, err)

	got, err := chunks.ListRecentByPaths(ctx, projectID, []string{"a.go", "b.go"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, c := range got {
		require.NotEqual(t, model.ChunkKindBinary, c.Kind)
		require.Contains(t, []string{"a.go", "b.go"}, c.Path)
	}

	got, err = chunks.ListRecentByPaths(ctx, projectID, nil, 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestChunkRepoDeleteByProject(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := chunks.InsertOrFetch(ctx, newChunk(projectID, "a.go", i*100, uuid.NewString()))
		require.NoError(t, err)
	}
	ids, err := chunks.ListIDsByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	deleted, err := chunks.DeleteByProject(ctx, projectID)
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted)

	count, err := chunks.CountByProject(ctx, projectID)
	require.NoError(t, err)
	require.Zero(t, count)
}
