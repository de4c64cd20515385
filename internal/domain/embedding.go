package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
// Implementations return exactly one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (EmbeddingResult, error)
}

// HealthChecker verifies remote provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the vectors and token usage through the decorator chain.
type EmbeddingResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// CheckEmbeddings rejects results that do not line up with the request.
// dims <= 0 skips the dimension check.
func CheckEmbeddings(res EmbeddingResult, want, dims int) error {
	if len(res.Vectors) != want {
		return fmt.Errorf("%w: requested %d embeddings, got %d", ErrProtocol, want, len(res.Vectors))
	}
	for i, v := range res.Vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty embedding at index %d", ErrProtocol, i)
		}
		if dims > 0 && len(v) != dims {
			return fmt.Errorf("embedding %d: %w", i, NewDimensionMismatch(dims, len(v)))
		}
	}
	return nil
}

// EmbedOne embeds a single text through a batch embedder.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	res, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if err := CheckEmbeddings(res, 1, 0); err != nil {
		return nil, err
	}
	return res.Vectors[0], nil
}
