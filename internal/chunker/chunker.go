package chunker

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ctxloom/ctxloom/internal/config"
	"github.com/ctxloom/ctxloom/internal/model"
	"github.com/ctxloom/ctxloom/internal/token"
)

// Chunker slices a token sequence into fixed-size overlapping windows
// tied to one (project, path). Window boundaries are a function of the
// configured sizes only, which keeps content hashes stable across runs.
type Chunker struct {
	maxTokens      int
	overlapTokens  int
	minChunkTokens int
	maxRawBytes    int
}

func New(cfg config.ChunkingConfig) *Chunker {
	return &Chunker{
		maxTokens:      cfg.MaxTokens,
		overlapTokens:  cfg.OverlapTokens,
		minChunkTokens: cfg.MinChunkTokens,
		maxRawBytes:    cfg.MaxRawBytes,
	}
}

func (c *Chunker) MaxRawBytes() int {
	return c.maxRawBytes
}

// Build windows the sequence starting at offset 0, taking maxTokens per
// chunk and advancing by maxTokens-overlapTokens, so consecutive chunks
// share an overlapTokens-sized prefix. A trailing window shorter than
// minChunkTokens is dropped, not persisted: the tail of a file stays
// visible only through its file-level summary. Known information loss,
// kept because window boundaries are load-bearing for dedup.
func (c *Chunker) Build(ctx context.Context, seq *token.Sequence, projectID, path, language string, kind model.ChunkKind) []model.ChunkDraft {
	logger := logutil.GetLogger(ctx).With(zap.String("project_id", projectID), zap.String("path", path))
	total := seq.Len()
	stride := c.maxTokens - c.overlapTokens
	var drafts []model.ChunkDraft
	for offset := 0; offset < total; offset += stride {
		end := offset + c.maxTokens
		if end > total {
			end = total
		}
		size := end - offset
		if size < c.minChunkTokens && offset > 0 {
			logger.Debug("trailing window below floor, dropped",
				zap.Int("offset", offset), zap.Int("size", size))
			break
		}
		drafts = append(drafts, model.ChunkDraft{
			ProjectID:  projectID,
			Path:       path,
			Offset:     offset,
			TokenCount: size,
			Kind:       kind,
			Language:   language,
			Content:    seq.Slice(offset, end),
		})
		if end == total {
			break
		}
	}
	logger.Debug("windowing completed", zap.Int("total_tokens", total), zap.Int("chunks", len(drafts)))
	return drafts
}

// BinaryPlaceholder records a binary or oversized artifact as a single
// zero-token placeholder that bypasses chunking and embedding.
func (c *Chunker) BinaryPlaceholder(projectID, path string) model.ChunkDraft {
	return model.ChunkDraft{
		ProjectID:  projectID,
		Path:       path,
		Offset:     0,
		TokenCount: 0,
		Kind:       model.ChunkKindBinary,
		Language:   token.LanguageBinary,
		Content:    "(binary content omitted: " + path + ")",
	}
}
