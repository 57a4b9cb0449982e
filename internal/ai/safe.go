package ai

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// safeEmbedder makes embedding best-effort: any failure or timeout of
// the wrapped embedder yields a zero vector of the configured dimension
// instead of an error. Embeddings are ranking input, never
// correctness-critical, so callers must not see embedding failures.
type safeEmbedder struct {
	next    IEmbedder
	dim     int
	timeout time.Duration
}

func WrapSafeEmbedder(next IEmbedder, dim int, timeout time.Duration) IEmbedder {
	return &safeEmbedder{next: next, dim: dim, timeout: timeout}
}

func (s *safeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if s.next == nil {
		return make([]float32, s.dim), nil
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.next.Embed(ctx, text, taskType)
	if err != nil {
		logutil.GetLogger(ctx).Warn("embedding degraded to zero vector",
			zap.String("task_type", taskType), zap.Error(err))
		return make([]float32, s.dim), nil
	}
	if len(res) != s.dim {
		logutil.GetLogger(ctx).Warn("embedding dimension mismatch, using zero vector",
			zap.Int("got", len(res)), zap.Int("want", s.dim))
		return make([]float32, s.dim), nil
	}
	return res, nil
}

func (s *safeEmbedder) ModelName() string {
	if s.next == nil {
		return "none"
	}
	return s.next.ModelName()
}

// IsZeroVector reports whether every component is zero, i.e. the
// degraded embedding placeholder.
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
