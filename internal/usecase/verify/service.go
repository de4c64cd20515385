// Package verify asks the language model whether an answer addresses its question.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/retry"
)

const promptTemplate = "Question: %s\nAnswer: %s\n\n" +
	"Verify if the answer correctly and completely addresses the question.\n" +
	"Respond with ONLY 'Yes' if the answer is correct and complete, or 'No' if it's incorrect or incomplete.\n" +
	"Your response should be a single word: Yes or No."

// Service runs the single-word verification prompt.
type Service struct {
	chat   domain.ChatModel
	policy retry.Policy
	logger *zap.Logger
}

// New creates a verifier. The zero policy behaves like retry.DefaultPolicy.
func New(chat domain.ChatModel, policy retry.Policy, logger *zap.Logger) *Service {
	policy = policy.WithRetryable(domain.IsTransient).
		WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logger.Warn("Retrying answer verification",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		})
	return &Service{chat: chat, policy: policy, logger: logger}
}

// Verify returns Confirmed for exactly "Yes", Rejected for exactly "No" and Unknown
// for anything else. Only surrounding whitespace is ignored.
func (s *Service) Verify(ctx context.Context, query, answer string) (domain.Verdict, error) {
	msgs := []domain.ChatMessage{{Role: domain.RoleUser, Content: fmt.Sprintf(promptTemplate, query, answer)}}

	res, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) (domain.Completion, error) {
		return s.chat.Complete(ctx, msgs)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.AtStage(domain.StageVerified, err)
		}
		return "", domain.AtStage(domain.StageVerified, fmt.Errorf("%w: verify: %w", domain.ErrGenerationFailed, err))
	}

	verdict := ParseVerdict(res.Text)
	if verdict == domain.VerdictUnknown {
		s.logger.Info("Verifier reply is not a single Yes or No", zap.String("reply", truncate(res.Text, 64)))
	}
	return verdict, nil
}

// ParseVerdict maps a verifier reply to a verdict.
func ParseVerdict(reply string) domain.Verdict {
	switch strings.TrimSpace(reply) {
	case "Yes":
		return domain.VerdictConfirmed
	case "No":
		return domain.VerdictRejected
	default:
		return domain.VerdictUnknown
	}
}

// truncate keeps at most n bytes of s without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
