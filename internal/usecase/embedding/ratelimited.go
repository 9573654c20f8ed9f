// Package embedding holds embedder decorators applied at the composition root.
package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verity-rag/verity/internal/domain"
)

// RateLimitedEmbedder throttles outbound embedding calls with a token
// bucket. The provider enforces its own limits with 429s; waiting here is
// cheaper than surfacing those as per-request failures. Retrying stays the
// caller's policy.
type RateLimitedEmbedder struct {
	inner   domain.Embedder
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimitedEmbedder wraps an embedder with an rps/burst token bucket.
func NewRateLimitedEmbedder(inner domain.Embedder, rps float64, burst int, logger *zap.Logger) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Embed waits for a token, then delegates to the inner embedder.
func (e *RateLimitedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		e.logger.Warn("embedding rate limit wait aborted", zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return e.inner.Embed(ctx, text)
}
