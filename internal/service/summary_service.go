package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ctxloom/ctxloom/internal/ai"
	"github.com/ctxloom/ctxloom/internal/blobstore"
	"github.com/ctxloom/ctxloom/internal/model"
	appErr "github.com/ctxloom/ctxloom/internal/pkg/errors"
	"github.com/ctxloom/ctxloom/internal/pkg/timeutil"
	"github.com/ctxloom/ctxloom/internal/repo"
	"github.com/ctxloom/ctxloom/internal/summarize"
)

const embedTaskDocument = "RETRIEVAL_DOCUMENT"

// SummaryService builds and persists file- and project-level summaries.
// Summaries are regenerated wholesale when a path's chunk set changes;
// they are not deduplicated since they are expected unique per
// (path, level).
type SummaryService struct {
	chunks     *repo.ChunkRepo
	summaries  *repo.SummaryRepo
	vectors    *repo.VectorRepo
	blobs      blobstore.Store
	summarizer *summarize.Summarizer
	embedder   ai.IEmbedder
}

func NewSummaryService(chunks *repo.ChunkRepo, summaries *repo.SummaryRepo, vectors *repo.VectorRepo,
	blobs blobstore.Store, summarizer *summarize.Summarizer, embedder ai.IEmbedder) *SummaryService {
	return &SummaryService{
		chunks:     chunks,
		summaries:  summaries,
		vectors:    vectors,
		blobs:      blobs,
		summarizer: summarizer,
		embedder:   embedder,
	}
}

// SummarizeFile aggregates every chunk sharing the path and persists a
// file-level summary covering them.
func (s *SummaryService) SummarizeFile(ctx context.Context, projectID, path string) (*model.Summary, error) {
	if projectID == "" || path == "" {
		return nil, appErr.ErrInvalid
	}
	chunks, err := s.chunks.ListByProjectPath(ctx, projectID, path)
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %v", appErr.ErrStoreUnavailable, err)
	}
	text := s.aggregateChunkText(ctx, chunks)
	if text == "" {
		return nil, appErr.ErrNotFound
	}
	draft := s.summarizer.Summarize(ctx, text, model.SummaryLevelFile)
	draft.ProjectID = projectID
	draft.Path = path
	return s.persist(ctx, draft)
}

// SummarizeProject condenses the project's file summaries (falling back
// to raw chunk text when none exist yet) into one project-level summary
// under the synthetic path "project".
func (s *SummaryService) SummarizeProject(ctx context.Context, projectID string) (*model.Summary, error) {
	if projectID == "" {
		return nil, appErr.ErrInvalid
	}
	ids, err := s.summaries.ListIDsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: list summaries: %v", appErr.ErrStoreUnavailable, err)
	}
	var parts []string
	for _, id := range ids {
		summary, err := s.summaries.GetByID(ctx, id)
		if err != nil || summary.Level != model.SummaryLevelFile {
			continue
		}
		parts = append(parts, summary.Path+": "+summary.Content)
	}
	text := strings.Join(parts, "\n")
	if text == "" {
		return nil, appErr.ErrNotFound
	}
	draft := s.summarizer.Summarize(ctx, text, model.SummaryLevelProject)
	draft.ProjectID = projectID
	draft.Path = "project"
	return s.persist(ctx, draft)
}

func (s *SummaryService) aggregateChunkText(ctx context.Context, chunks []model.Chunk) string {
	var parts []string
	for _, c := range chunks {
		if c.Kind == model.ChunkKindBinary {
			continue
		}
		data, err := s.blobs.Get(ctx, blobstore.ChunkKey(c.ID))
		if err != nil {
			logutil.GetLogger(ctx).Warn("chunk blob missing during summarization",
				zap.String("chunk_id", c.ID), zap.Error(err))
			continue
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n")
}

func (s *SummaryService) persist(ctx context.Context, draft model.SummaryDraft) (*model.Summary, error) {
	summary := &model.Summary{
		ID:         uuid.NewString(),
		ProjectID:  draft.ProjectID,
		Path:       draft.Path,
		Level:      draft.Level,
		Content:    draft.Content,
		TokenCount: draft.TokenCount,
		Ctime:      timeutil.NowUnix(),
	}
	if err := s.summaries.ReplaceForPath(ctx, summary); err != nil {
		return nil, fmt.Errorf("%w: save summary: %v", appErr.ErrStoreUnavailable, err)
	}
	if err := s.blobs.Put(ctx, blobstore.SummaryKey(summary.ID), []byte(summary.Content)); err != nil {
		return nil, fmt.Errorf("%w: save summary blob: %v", appErr.ErrStoreUnavailable, err)
	}
	emb, err := s.embedder.Embed(ctx, summary.Content, embedTaskDocument)
	if err == nil && !ai.IsZeroVector(emb) {
		if err := s.vectors.SaveSummaryEmbedding(ctx, summary.ID, summary.ProjectID, emb, summary.Ctime); err != nil {
			logutil.GetLogger(ctx).Warn("failed to save summary embedding",
				zap.String("summary_id", summary.ID), zap.Error(err))
		}
	}
	logutil.GetLogger(ctx).Info("summary persisted",
		zap.String("project_id", summary.ProjectID),
		zap.String("path", summary.Path),
		zap.String("level", string(summary.Level)),
		zap.Int("token_count", summary.TokenCount))
	return summary, nil
}
