package main

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/config"
	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/retry"
)

// recordingEmbedder returns a fixed vector per text and remembers every text it saw.
type recordingEmbedder struct {
	inner domain.Embedder

	mu   sync.Mutex
	seen []string
}

func (r *recordingEmbedder) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	r.mu.Lock()
	r.seen = append(r.seen, texts...)
	r.mu.Unlock()
	if r.inner != nil {
		return r.inner.Embed(ctx, texts)
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{1, 0}
	}
	return domain.EmbeddingResult{Vectors: vecs, TotalTokens: len(texts)}, nil
}

func (r *recordingEmbedder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestChainEmbedders_QueryBypassesCache(t *testing.T) {
	base := &recordingEmbedder{}
	var cached *recordingEmbedder
	cache := func(inner domain.Embedder) domain.Embedder {
		cached = &recordingEmbedder{inner: inner}
		return cached
	}

	chains := chainEmbedders(base, config.EmbeddingConfig{Model: "m"}, cache,
		retry.Policy{MaxAttempts: 1}, zap.NewNop())
	require.NotNil(t, cached)

	ctx := context.Background()
	_, err := chains.query.Embed(ctx, []string{"what was the invoice total?"})
	require.NoError(t, err)
	_, err = chains.ingest.Embed(ctx, []string{"Invoice total: 420 EUR"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Invoice total: 420 EUR"}, cached.texts())
	assert.Equal(t, []string{"what was the invoice total?", "Invoice total: 420 EUR"}, base.texts())
}

func TestChainEmbedders_NoCache(t *testing.T) {
	base := &recordingEmbedder{}
	chains := chainEmbedders(base, config.EmbeddingConfig{Model: "m"}, nil,
		retry.Policy{MaxAttempts: 1}, zap.NewNop())

	res, err := chains.ingest.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, res.Vectors, 2)
	assert.Equal(t, []string{"a", "b"}, base.texts())
}
