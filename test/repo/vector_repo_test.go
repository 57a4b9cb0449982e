package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ctxloom/ctxloom/internal/model"
	"github.com/ctxloom/ctxloom/internal/pkg/timeutil"
	"github.com/ctxloom/ctxloom/internal/repo"
	"github.com/ctxloom/ctxloom/test/testutil"
)

// unitVector builds a 768-dim vector with a single 1.0 component so
// cosine similarity between distinct axes is exactly 0.
func unitVector(axis int) []float32 {
	v := make([]float32, 768)
	v[axis] = 1
	return v
}

func TestVectorRepoSearchChunks(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(db)
	vectors := repo.NewVectorRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()
	now := timeutil.NowUnix()

	near := newChunk(projectID, "near.go", 0, uuid.NewString())
	far := newChunk(projectID, "far.go", 0, uuid.NewString())
	for _, c := range []*model.Chunk{near, far} {
		_, _, err := chunks.InsertOrFetch(ctx, c)
		require.NoError(t, err)
	}
	require.NoError(t, vectors.SaveChunkEmbedding(ctx, near.ID, projectID, near.Kind, unitVector(0), now))
	require.NoError(t, vectors.SaveChunkEmbedding(ctx, far.ID, projectID, far.Kind, unitVector(1), now))

	matches, err := vectors.SearchChunks(ctx, projectID, unitVector(0), 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, near.ID, matches[0].Chunk.ID)
	require.InDelta(t, 1.0, matches[0].Score, 0.001)
	require.InDelta(t, 0.0, matches[1].Score, 0.001)
}

func TestVectorRepoUpsertEmbedding(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(db)
	vectors := repo.NewVectorRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()
	now := timeutil.NowUnix()

	c := newChunk(projectID, "a.go", 0, uuid.NewString())
	_, _, err := chunks.InsertOrFetch(ctx, c)
	require.NoError(t, err)

	has, err := vectors.HasChunkEmbedding(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, vectors.SaveChunkEmbedding(ctx, c.ID, projectID, c.Kind, unitVector(2), now))
	// second save replaces, never duplicates
	require.NoError(t, vectors.SaveChunkEmbedding(ctx, c.ID, projectID, c.Kind, unitVector(3), now))

	has, err = vectors.HasChunkEmbedding(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, has)

	matches, err := vectors.SearchChunks(ctx, projectID, unitVector(3), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.InDelta(t, 1.0, matches[0].Score, 0.001)
}

func TestVectorRepoDeleteByProject(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(db)
	vectors := repo.NewVectorRepo(db)
	projectID := uuid.NewString()
	ctx := context.Background()

	c := newChunk(projectID, "a.go", 0, uuid.NewString())
	_, _, err := chunks.InsertOrFetch(ctx, c)
	require.NoError(t, err)
	require.NoError(t, vectors.SaveChunkEmbedding(ctx, c.ID, projectID, c.Kind, unitVector(0), timeutil.NowUnix()))

	require.NoError(t, vectors.DeleteByProject(ctx, projectID))

	matches, err := vectors.SearchChunks(ctx, projectID, unitVector(0), 10)
	require.NoError(t, err)
	require.Empty(t, matches)
}
