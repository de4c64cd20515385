package openai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/metrics"
)

// ChatConfig holds the chat completion settings.
type ChatConfig struct {
	Config
	Temperature float64
	MaxTokens   int
}

// ChatModel is a chat completion client for the OpenAI-compatible API.
type ChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	purpose     string
	logger      *zap.Logger
}

var (
	_ domain.ChatModel     = (*ChatModel)(nil)
	_ domain.HealthChecker = (*ChatModel)(nil)
)

// NewChatModel creates a chat completion client.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	// go-openai drops a zero temperature on the wire, which the API reads as 1
	temp := float32(cfg.Temperature)
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}
	return &ChatModel{
		client:      newClient(&cfg.Config),
		model:       cfg.Model,
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		purpose:     "answer",
		logger:      logger,
	}
}

// WithPurpose returns a copy whose metrics carry the given purpose label.
func (c *ChatModel) WithPurpose(purpose string) *ChatModel {
	cp := *c
	cp.purpose = purpose
	return &cp
}

// Complete sends the ordered messages and returns the first choice.
// An empty choice list is a protocol error.
func (c *ChatModel) Complete(ctx context.Context, msgs []domain.ChatMessage) (domain.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, len(msgs)),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	for i, m := range msgs {
		req.Messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	callCtx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(callCtx, req)
	duration := time.Since(start)

	if err == nil && len(resp.Choices) == 0 {
		err = fmt.Errorf("chat completion: %w: no choices", domain.ErrProtocol)
	} else if err != nil {
		err = classify(ctx, "chat completion", err)
	}
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, c.purpose, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.model, errorType(err)).Inc()
		return domain.Completion{}, err
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.model, c.purpose, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.model, c.purpose).Observe(duration.Seconds())
	metrics.LLMTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	domain.UsageFromContext(ctx).AddCompletion(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	c.logger.Debug("Chat completion",
		zap.String("purpose", c.purpose),
		zap.Int("messages", len(msgs)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", duration),
	)

	return domain.Completion{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *ChatModel) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.client, c.timeout)
}
