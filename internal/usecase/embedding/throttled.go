package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// ThrottledEmbedder keeps the request rate under a token bucket shared by all callers.
type ThrottledEmbedder struct {
	inner   domain.Embedder
	limiter *rate.Limiter
}

// NewThrottledEmbedder allows rps requests per second with the given burst.
// rps <= 0 disables throttling.
func NewThrottledEmbedder(inner domain.Embedder, rps float64, burst int) *ThrottledEmbedder {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &ThrottledEmbedder{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

// Embed waits for a token, then delegates. A cancelled ctx aborts the wait.
func (t *ThrottledEmbedder) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embedding rate limiter: %w", err)
	}
	return t.inner.Embed(ctx, texts)
}
