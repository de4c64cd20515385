package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/retry"
)

// RetryingEmbedder retries transient provider failures under a bounded policy.
type RetryingEmbedder struct {
	inner  domain.Embedder
	policy retry.Policy
}

// NewRetryingEmbedder wraps inner. The policy predicate is replaced: only
// domain.ErrTransient is retried, so protocol and rejection errors fail fast.
func NewRetryingEmbedder(inner domain.Embedder, policy retry.Policy, logger *zap.Logger) *RetryingEmbedder {
	policy = policy.WithRetryable(domain.IsTransient)
	if logger != nil {
		policy = policy.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		})
	}
	return &RetryingEmbedder{inner: inner, policy: policy}
}

// Embed implements domain.Embedder. A transient error left after the last attempt
// becomes domain.ErrServiceUnavailable wrapping the cause.
func (r *RetryingEmbedder) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	res, err := retry.DoValue(ctx, r.policy, func(ctx context.Context) (domain.EmbeddingResult, error) {
		return r.inner.Embed(ctx, texts)
	})
	if err != nil {
		return domain.EmbeddingResult{}, exhausted(ctx, err)
	}
	return res, nil
}

// exhausted marks a still-transient failure as the service being unavailable.
func exhausted(ctx context.Context, err error) error {
	if ctx.Err() == nil && domain.IsTransient(err) && !errors.Is(err, domain.ErrServiceUnavailable) {
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	return err
}
