// Package answer generates a grounded answer from retrieved chunks.
package answer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/retry"
)

// Service calls the chat model with a bounded context prompt.
type Service struct {
	chat   domain.ChatModel
	cfg    Config
	policy retry.Policy
	logger *zap.Logger
}

// New creates an answerer. The zero Retry policy behaves like retry.DefaultPolicy.
func New(chat domain.ChatModel, cfg Config, logger *zap.Logger) *Service {
	cfg = cfg.withDefaults()
	policy := cfg.Retry.WithRetryable(domain.IsTransient).
		WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logger.Warn("Retrying answer generation",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		})
	return &Service{chat: chat, cfg: cfg, policy: policy, logger: logger}
}

// Answer returns a record with VerdictUnknown and the sources actually sent to the model.
// Zero hits still reach the model with an empty context.
func (s *Service) Answer(ctx context.Context, query string, hits []domain.Hit) (domain.AnswerRecord, error) {
	msgs, sources, err := buildPrompt(s.cfg.SystemPrompt, query, hits, s.cfg.MaxPromptTokens)
	if err != nil {
		return domain.AnswerRecord{}, domain.AtStage(domain.StageAnswered, err)
	}
	if dropped := len(hits) - len(sources); dropped > 0 {
		s.logger.Debug("Dropped context chunks over prompt budget",
			zap.Int("included", len(sources)),
			zap.Int("dropped", dropped),
			zap.Int("max_prompt_tokens", s.cfg.MaxPromptTokens),
		)
	}

	res, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) (domain.Completion, error) {
		return s.chat.Complete(ctx, msgs)
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.AnswerRecord{}, domain.AtStage(domain.StageAnswered, err)
		}
		return domain.AnswerRecord{}, domain.AtStage(domain.StageAnswered,
			fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err))
	}
	if res.Text == "" {
		return domain.AnswerRecord{}, domain.AtStage(domain.StageAnswered,
			fmt.Errorf("%w: empty completion", domain.ErrGenerationFailed))
	}

	return domain.AnswerRecord{
		Query:   query,
		Answer:  res.Text,
		Sources: sources,
		Verdict: domain.VerdictUnknown,
	}, nil
}
