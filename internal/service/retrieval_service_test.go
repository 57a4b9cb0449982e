package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctxloom/ctxloom/internal/model"
)

func TestRankCandidatesHotBeforeScore(t *testing.T) {
	cands := []model.Candidate{
		{ID: "cold-high", Score: 0.95},
		{ID: "hot-low", Score: 0.4, IsHotPath: true},
		{ID: "cold-mid", Score: 0.7},
	}
	rankCandidates(cands)
	require.Equal(t, "hot-low", cands[0].ID)
	require.Equal(t, "cold-high", cands[1].ID)
	require.Equal(t, "cold-mid", cands[2].ID)
}

func TestRankCandidatesRecencyBreaksTies(t *testing.T) {
	cands := []model.Candidate{
		{ID: "old", Score: 0.5, Ctime: 100},
		{ID: "new", Score: 0.5, Ctime: 200},
	}
	rankCandidates(cands)
	require.Equal(t, "new", cands[0].ID)
	require.Equal(t, "old", cands[1].ID)
}

func TestRankCandidatesStable(t *testing.T) {
	cands := []model.Candidate{
		{ID: "a", Score: 0.5, Ctime: 100},
		{ID: "b", Score: 0.5, Ctime: 100},
	}
	rankCandidates(cands)
	require.Equal(t, "a", cands[0].ID)
	require.Equal(t, "b", cands[1].ID)
}

func TestChunksToCandidates(t *testing.T) {
	chunks := []model.Chunk{
		{ID: "c1", Path: "a.go", TokenCount: 10, Ctime: 5, Kind: model.ChunkKindCode},
	}
	out := chunksToCandidates(chunks, true)
	require.Len(t, out, 1)
	require.True(t, out[0].IsHotPath)
	require.Equal(t, "c1", out[0].ID)
	require.Equal(t, 10, out[0].TokenCount)
}
