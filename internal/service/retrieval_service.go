package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ctxloom/ctxloom/internal/config"
	"github.com/ctxloom/ctxloom/internal/model"
	appErr "github.com/ctxloom/ctxloom/internal/pkg/errors"
	"github.com/ctxloom/ctxloom/internal/repo"
)

// RetrievalService ranks stored chunks against a query embedding and
// serves the similarity-blind hot-window and conversation streams.
type RetrievalService struct {
	chunks  *repo.ChunkRepo
	vectors *repo.VectorRepo
	cfg     config.RetrievalConfig
}

func NewRetrievalService(chunks *repo.ChunkRepo, vectors *repo.VectorRepo, cfg config.RetrievalConfig) *RetrievalService {
	return &RetrievalService{chunks: chunks, vectors: vectors, cfg: cfg}
}

// Retrieve returns ranked candidates for the query embedding: cosine
// top-K scoped to the project, binary chunks excluded, scores below the
// relevance floor dropped. Hot-path candidates sort before everything
// else regardless of score.
func (s *RetrievalService) Retrieve(ctx context.Context, projectID string, queryEmbedding []float32, hotPaths []string) ([]model.Candidate, error) {
	matches, err := s.vectors.SearchChunks(ctx, projectID, queryEmbedding, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", appErr.ErrStoreUnavailable, err)
	}
	hot := make(map[string]struct{}, len(hotPaths))
	for _, p := range hotPaths {
		hot[p] = struct{}{}
	}
	var candidates []model.Candidate
	for _, m := range matches {
		if m.Score < s.cfg.MinScore {
			continue
		}
		_, isHot := hot[m.Chunk.Path]
		candidates = append(candidates, model.Candidate{
			ID:         m.Chunk.ID,
			Path:       m.Chunk.Path,
			Kind:       m.Chunk.Kind,
			TokenCount: m.Chunk.TokenCount,
			Score:      m.Score,
			Ctime:      m.Chunk.Ctime,
			IsHotPath:  isHot,
		})
	}
	rankCandidates(candidates)
	logutil.GetLogger(ctx).Debug("retrieval completed",
		zap.String("project_id", projectID),
		zap.Int("matches", len(matches)),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// HotWindow returns the most recent chunks for explicitly open files
// regardless of similarity; a file the user is editing is always
// relevant even if textually dissimilar to the prompt.
func (s *RetrievalService) HotWindow(ctx context.Context, projectID string, hotPaths []string) ([]model.Candidate, error) {
	if len(hotPaths) == 0 {
		return nil, nil
	}
	chunks, err := s.chunks.ListRecentByPaths(ctx, projectID, hotPaths, s.cfg.HotWindowSize)
	if err != nil {
		return nil, fmt.Errorf("%w: hot window: %v", appErr.ErrStoreUnavailable, err)
	}
	return chunksToCandidates(chunks, true), nil
}

// Conversation returns the most recent conversational chunks by recency
// only.
func (s *RetrievalService) Conversation(ctx context.Context, projectID string, maxMessages int) ([]model.Candidate, error) {
	if maxMessages <= 0 || maxMessages > s.cfg.ConversationSize {
		maxMessages = s.cfg.ConversationSize
	}
	chunks, err := s.chunks.ListRecentByKind(ctx, projectID, model.ChunkKindConversation, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("%w: conversation: %v", appErr.ErrStoreUnavailable, err)
	}
	return chunksToCandidates(chunks, false), nil
}

func chunksToCandidates(chunks []model.Chunk, hot bool) []model.Candidate {
	out := make([]model.Candidate, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, model.Candidate{
			ID:         c.ID,
			Path:       c.Path,
			Kind:       c.Kind,
			TokenCount: c.TokenCount,
			Ctime:      c.Ctime,
			IsHotPath:  hot,
		})
	}
	return out
}

// rankCandidates orders candidates in place: hot-path first, then by
// similarity score descending, then by recency descending.
func rankCandidates(candidates []model.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.IsHotPath != b.IsHotPath {
			return a.IsHotPath
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Ctime > b.Ctime
	})
}
