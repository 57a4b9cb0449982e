package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ctxloom/ctxloom/internal/ai"
	"github.com/ctxloom/ctxloom/internal/blobstore"
	"github.com/ctxloom/ctxloom/internal/cachestore"
	"github.com/ctxloom/ctxloom/internal/chunker"
	"github.com/ctxloom/ctxloom/internal/model"
	appErr "github.com/ctxloom/ctxloom/internal/pkg/errors"
	"github.com/ctxloom/ctxloom/internal/pkg/timeutil"
	"github.com/ctxloom/ctxloom/internal/repo"
	"github.com/ctxloom/ctxloom/internal/token"
)

// PathConversation and PathLogs are the synthetic paths for non-file
// artifacts.
const (
	PathConversation = "conversation"
	PathLogs         = "logs"
)

type IngestResult struct {
	Chunks      []model.Chunk `json:"chunks"`
	NewChunks   int           `json:"new_chunks"`
	Summaries   int           `json:"summaries"`
	TotalTokens int           `json:"total_tokens"`
	Language    string        `json:"language"`
}

// IngestService turns raw artifacts into persisted, deduplicated,
// embedded chunks, then kicks off best-effort summarization.
type IngestService struct {
	chunks     *repo.ChunkRepo
	vectors    *repo.VectorRepo
	sessions   *repo.SessionRepo
	summaries  *repo.SummaryRepo
	blobs      blobstore.Store
	cache      cachestore.Store
	embedder   ai.IEmbedder
	tok        *token.Tokenizer
	builder    *chunker.Chunker
	summarySvc *SummaryService
}

func NewIngestService(chunks *repo.ChunkRepo, vectors *repo.VectorRepo, sessions *repo.SessionRepo,
	summaries *repo.SummaryRepo, blobs blobstore.Store, cache cachestore.Store,
	embedder ai.IEmbedder, tok *token.Tokenizer, builder *chunker.Chunker, summarySvc *SummaryService) *IngestService {
	return &IngestService{
		chunks:     chunks,
		vectors:    vectors,
		sessions:   sessions,
		summaries:  summaries,
		blobs:      blobs,
		cache:      cache,
		embedder:   embedder,
		tok:        tok,
		builder:    builder,
		summarySvc: summarySvc,
	}
}

// Ingest runs the full pipeline for one artifact: normalize, detect,
// window, dedup-persist, embed, then fire-and-forget summarization.
// Binary or oversized content short-circuits to a single zero-token
// placeholder with no embedding.
func (s *IngestService) Ingest(ctx context.Context, projectID, path string, raw []byte, kindHint model.ChunkKind) (*IngestResult, error) {
	if projectID == "" || path == "" || len(raw) == 0 {
		return nil, appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(zap.String("project_id", projectID), zap.String("path", path))

	text := token.Normalize(raw)
	if len(raw) > s.builder.MaxRawBytes() || token.IsBinary(text) {
		placeholder := s.builder.BinaryPlaceholder(projectID, path)
		chunk, created, err := s.persistDraft(ctx, placeholder)
		if err != nil {
			return nil, err
		}
		logger.Info("binary artifact recorded as placeholder", zap.Bool("created", created))
		s.invalidateAssemblyCache(ctx, projectID)
		return &IngestResult{
			Chunks:   []model.Chunk{*chunk},
			Language: token.LanguageBinary,
		}, nil
	}

	language := token.DetectLanguage(path)
	kind := kindHint
	if !kind.Valid() {
		kind = inferKind(path)
	}
	seq := s.tok.Tokenize(text)
	drafts := s.builder.Build(ctx, seq, projectID, path, language, kind)

	result := &IngestResult{Language: language, TotalTokens: seq.Len()}
	for _, draft := range drafts {
		chunk, created, err := s.persistDraft(ctx, draft)
		if err != nil {
			return nil, err
		}
		if created {
			result.NewChunks++
		}
		result.Chunks = append(result.Chunks, *chunk)
	}
	logger.Info("artifact ingested",
		zap.Int("total_tokens", result.TotalTokens),
		zap.Int("chunks", len(result.Chunks)),
		zap.Int("new_chunks", result.NewChunks),
		zap.String("language", language))

	s.invalidateAssemblyCache(ctx, projectID)

	if kind != model.ChunkKindConversation && result.NewChunks > 0 {
		// Summaries lag ingestion; assembly degrades gracefully while
		// they catch up.
		go s.summarizeAsync(projectID, path)
		result.Summaries = 1
	}
	return result, nil
}

// IngestConversation records one conversation turn under the synthetic
// conversation path.
func (s *IngestService) IngestConversation(ctx context.Context, projectID, message string) (*IngestResult, error) {
	if message == "" {
		return nil, appErr.ErrInvalid
	}
	return s.Ingest(ctx, projectID, PathConversation, []byte(message), model.ChunkKindConversation)
}

// persistDraft is the dedup and persistence layer. The content hash is
// computed over the normalized chunk text; an existing hash anywhere in
// the store wins and nothing new is written. Metadata, blob and
// embedding writes are not transactional: re-running for the same draft
// repairs whichever piece is missing without duplicating the row.
func (s *IngestService) persistDraft(ctx context.Context, draft model.ChunkDraft) (*model.Chunk, bool, error) {
	hash := sha256.Sum256([]byte(draft.Content))
	contentHash := hex.EncodeToString(hash[:])

	candidate := &model.Chunk{
		ID:          uuid.NewString(),
		ProjectID:   draft.ProjectID,
		Path:        draft.Path,
		Offset:      draft.Offset,
		TokenCount:  draft.TokenCount,
		ContentHash: contentHash,
		Kind:        draft.Kind,
		Language:    draft.Language,
		Ctime:       timeutil.NowUnix(),
	}
	chunk, created, err := s.chunks.InsertOrFetch(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("%w: persist chunk: %v", appErr.ErrStoreUnavailable, err)
	}

	blobKey := blobstore.ChunkKey(chunk.ID)
	if created {
		if err := s.blobs.Put(ctx, blobKey, []byte(draft.Content)); err != nil {
			return nil, false, fmt.Errorf("%w: persist blob: %v", appErr.ErrStoreUnavailable, err)
		}
	} else {
		// Dedup hit, possibly from a crashed earlier run: repair a
		// missing blob, otherwise leave everything untouched.
		if _, err := s.blobs.Get(ctx, blobKey); appErr.IsNotFound(err) {
			if err := s.blobs.Put(ctx, blobKey, []byte(draft.Content)); err != nil {
				return nil, false, fmt.Errorf("%w: repair blob: %v", appErr.ErrStoreUnavailable, err)
			}
		}
	}

	if chunk.Kind != model.ChunkKindBinary {
		if err := s.ensureEmbedding(ctx, chunk, draft.Content, created); err != nil {
			return nil, false, err
		}
	}
	chunk.Content = draft.Content
	return chunk, created, nil
}

func (s *IngestService) ensureEmbedding(ctx context.Context, chunk *model.Chunk, content string, created bool) error {
	if !created {
		has, err := s.vectors.HasChunkEmbedding(ctx, chunk.ID)
		if err == nil && has {
			return nil
		}
	}
	emb, err := s.embedder.Embed(ctx, content, embedTaskDocument)
	if err != nil {
		// The safe wrapper already degraded to a zero vector; anything
		// surfacing here is unexpected but still not fatal to ingest.
		logutil.GetLogger(ctx).Warn("embedding failed", zap.String("chunk_id", chunk.ID), zap.Error(err))
		return nil
	}
	if err := s.vectors.SaveChunkEmbedding(ctx, chunk.ID, chunk.ProjectID, chunk.Kind, emb, chunk.Ctime); err != nil {
		return fmt.Errorf("%w: persist embedding: %v", appErr.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *IngestService) summarizeAsync(projectID, path string) {
	ctx := context.Background()
	if _, err := s.summarySvc.SummarizeFile(ctx, projectID, path); err != nil {
		logutil.GetLogger(ctx).Warn("async file summary failed",
			zap.String("project_id", projectID), zap.String("path", path), zap.Error(err))
	}
}

func (s *IngestService) invalidateAssemblyCache(ctx context.Context, projectID string) {
	removed := s.cache.DeletePrefix(ctx, assemblyCachePrefix(projectID))
	if removed > 0 {
		logutil.GetLogger(ctx).Debug("assembly cache invalidated",
			zap.String("project_id", projectID), zap.Int("entries", removed))
	}
}

// PurgeProject cascades a project-wide delete across metadata rows,
// embeddings, blobs and cache entries.
func (s *IngestService) PurgeProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(zap.String("project_id", projectID))

	chunkIDs, err := s.chunks.ListIDsByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("%w: list chunks: %v", appErr.ErrStoreUnavailable, err)
	}
	summaryIDs, err := s.summaries.ListIDsByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("%w: list summaries: %v", appErr.ErrStoreUnavailable, err)
	}
	for _, id := range chunkIDs {
		if err := s.blobs.Delete(ctx, blobstore.ChunkKey(id)); err != nil {
			logger.Warn("failed to delete chunk blob", zap.String("chunk_id", id), zap.Error(err))
		}
	}
	for _, id := range summaryIDs {
		if err := s.blobs.Delete(ctx, blobstore.SummaryKey(id)); err != nil {
			logger.Warn("failed to delete summary blob", zap.String("summary_id", id), zap.Error(err))
		}
	}
	if err := s.vectors.DeleteByProject(ctx, projectID); err != nil {
		return fmt.Errorf("%w: delete embeddings: %v", appErr.ErrStoreUnavailable, err)
	}
	if _, err := s.chunks.DeleteByProject(ctx, projectID); err != nil {
		return fmt.Errorf("%w: delete chunks: %v", appErr.ErrStoreUnavailable, err)
	}
	if _, err := s.summaries.DeleteByProject(ctx, projectID); err != nil {
		return fmt.Errorf("%w: delete summaries: %v", appErr.ErrStoreUnavailable, err)
	}
	if _, err := s.sessions.DeleteByProject(ctx, projectID); err != nil {
		return fmt.Errorf("%w: delete sessions: %v", appErr.ErrStoreUnavailable, err)
	}
	s.invalidateAssemblyCache(ctx, projectID)
	logger.Info("project purged", zap.Int("chunks", len(chunkIDs)), zap.Int("summaries", len(summaryIDs)))
	return nil
}

func inferKind(path string) model.ChunkKind {
	switch path {
	case PathConversation:
		return model.ChunkKindConversation
	case PathLogs:
		return model.ChunkKindLog
	}
	return model.ChunkKindCode
}
