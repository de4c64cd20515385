// Package retrieve finds the chunks closest to a query.
package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Service embeds a query and searches the vector store.
type Service struct {
	embed      domain.Embedder
	store      Searcher
	defaultTop int
}

// New creates a retriever. defaultTopK <= 0 falls back to domain.DefaultTopK.
func New(embed domain.Embedder, store Searcher, defaultTopK int) *Service {
	if defaultTopK <= 0 {
		defaultTopK = domain.DefaultTopK
	}
	return &Service{embed: embed, store: store, defaultTop: defaultTopK}
}

// Retrieve returns up to k hits by ascending distance. k <= 0 uses the default.
// Embedding failures are tagged StageEmbedded, store failures StageRetrieved.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.AtStage(domain.StageReceived, fmt.Errorf("%w: empty query", domain.ErrInvalidInput))
	}
	if k <= 0 {
		k = s.defaultTop
	}

	res, err := s.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, domain.AtStage(domain.StageEmbedded, fmt.Errorf("embed query: %w", err))
	}
	if len(res.Vectors) != 1 {
		return nil, domain.AtStage(domain.StageEmbedded,
			fmt.Errorf("%w: expected 1 query embedding, got %d", domain.ErrProtocol, len(res.Vectors)))
	}

	hits, err := s.store.Query(ctx, res.Vectors[0], k)
	if err != nil {
		return nil, domain.AtStage(domain.StageRetrieved, fmt.Errorf("search chunks: %w", err))
	}
	return hits, nil
}
