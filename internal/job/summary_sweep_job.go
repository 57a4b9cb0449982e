package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ctxloom/ctxloom/internal/repo"
	"github.com/ctxloom/ctxloom/internal/service"
)

// SummarySweepJob regenerates file summaries for paths whose chunk set
// changed since the summary was written. It backs up the fire-and-forget
// summarization done at ingest time.
type SummarySweepJob struct {
	chunks    *repo.ChunkRepo
	summaries *service.SummaryService
	batch     int
}

func NewSummarySweepJob(chunks *repo.ChunkRepo, summaries *service.SummaryService, batch int) *SummarySweepJob {
	return &SummarySweepJob{chunks: chunks, summaries: summaries, batch: batch}
}

func (j *SummarySweepJob) Name() string {
	return "summary_sweep"
}

func (j *SummarySweepJob) Run(ctx context.Context) error {
	stale, err := j.chunks.ListStaleSummaryPaths(ctx, j.batch)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	refreshed := 0
	projects := make(map[string]struct{})
	for _, chunk := range stale {
		if _, err := j.summaries.SummarizeFile(ctx, chunk.ProjectID, chunk.Path); err != nil {
			logger.Warn("summary sweep: file failed",
				zap.String("project_id", chunk.ProjectID), zap.String("path", chunk.Path), zap.Error(err))
			continue
		}
		refreshed++
		projects[chunk.ProjectID] = struct{}{}
	}
	for projectID := range projects {
		if _, err := j.summaries.SummarizeProject(ctx, projectID); err != nil {
			logger.Warn("summary sweep: project failed", zap.String("project_id", projectID), zap.Error(err))
		}
	}
	if refreshed > 0 {
		logger.Info("summary sweep completed", zap.Int("refreshed", refreshed))
	}
	return nil
}
