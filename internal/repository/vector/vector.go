// Package vector persists chunk embeddings and answers nearest-neighbour queries.
//
// Every collection is pinned to one VectorSpace (model, dimensions, metric) on first use.
// Opening it with a different space fails with domain.ErrConfiguration.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/mailrag/internal/db"
	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Store is the vector store contract shared by all backends.
type Store interface {
	// Upsert is idempotent by chunk id. Re-upserting keeps the original insertion order.
	Upsert(ctx context.Context, records []domain.Record) error
	// Query returns up to k hits by ascending cosine distance, ties by insertion order.
	Query(ctx context.Context, vec []float32, k int) ([]domain.Hit, error)
	Count(ctx context.Context) (int, error)
	Space() domain.VectorSpace
}

// Config selects the collection and the vector space it must have.
type Config struct {
	Collection         string
	Space              domain.VectorSpace
	HNSWM              int
	HNSWEFConstruction int
	// HNSWEFRuntime is the query-time candidate list size. Larger values trade
	// latency for recall; 0 keeps the backend default.
	HNSWEFRuntime      int
}

func (c Config) validate() error {
	if !db.IsValidIdentifier(c.Collection) {
		return fmt.Errorf("%w: invalid collection name %q", domain.ErrConfiguration, c.Collection)
	}
	if c.Space.Dimensions <= 0 {
		return fmt.Errorf("%w: vector dimensions must be positive, got %d", domain.ErrConfiguration, c.Space.Dimensions)
	}
	if c.Space.Metric != domain.MetricCosine {
		return fmt.Errorf("%w: unsupported metric %q, only %q is allowed",
			domain.ErrConfiguration, c.Space.Metric, domain.MetricCosine)
	}
	return nil
}

// checkSpace compares the configured space with the one stored for the collection.
func checkSpace(collection string, want, stored domain.VectorSpace) error {
	if want.Dimensions != stored.Dimensions || want.Metric != stored.Metric || want.Model != stored.Model {
		return fmt.Errorf("%w: collection %q was created for %s/%d/%s, configured %s/%d/%s",
			domain.ErrConfiguration, collection,
			stored.Model, stored.Dimensions, stored.Metric,
			want.Model, want.Dimensions, want.Metric)
	}
	return nil
}

func validateRecords(space domain.VectorSpace, records []domain.Record) error {
	for i := range records {
		r := &records[i]
		if r.Chunk.ID == "" {
			return fmt.Errorf("%w: record %d has no chunk id", domain.ErrInvalidInput, i)
		}
		if len(r.Vector) != space.Dimensions {
			return fmt.Errorf("record %s: %w", r.Chunk.ID, domain.NewDimensionMismatch(space.Dimensions, len(r.Vector)))
		}
		if r.Metric != "" && r.Metric != space.Metric {
			return fmt.Errorf("%w: record %s has metric %q, collection uses %q",
				domain.ErrConfiguration, r.Chunk.ID, r.Metric, space.Metric)
		}
	}
	return nil
}

func validateQuery(space domain.VectorSpace, vec []float32, k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	if len(vec) != space.Dimensions {
		return domain.NewDimensionMismatch(space.Dimensions, len(vec))
	}
	return nil
}

func storageErr(op string, err error) error {
	if db.IsUnavailable(err) {
		return fmt.Errorf("%w: vector %s: %w", domain.ErrStorageUnavailable, op, err)
	}
	return fmt.Errorf("vector %s: %w", op, err)
}

type rankedHit struct {
	hit domain.Hit
	seq int64
}

// rank sorts by (distance, seq) and keeps the first k.
func rank(hits []rankedHit, k int) []domain.Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].hit.Distance != hits[j].hit.Distance {
			return hits[i].hit.Distance < hits[j].hit.Distance
		}
		return hits[i].seq < hits[j].seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]domain.Hit, len(hits))
	for i := range hits {
		out[i] = hits[i].hit
	}
	return out
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
