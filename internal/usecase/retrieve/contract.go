package retrieve

import (
	"context"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Searcher runs nearest-neighbour queries over stored chunks.
type Searcher interface {
	Query(ctx context.Context, vec []float32, k int) ([]domain.Hit, error)
}
