package ingest

import (
	"context"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Ledger tracks which messages are already ingested, per owner.
type Ledger interface {
	Has(ctx context.Context, owner, messageID string) (bool, error)
	Filter(ctx context.Context, owner string, ids []string) (map[string]bool, error)
	Record(ctx context.Context, owner string, ids []string) (int, error)
	Count(ctx context.Context, owner string) (int, error)
}

// Chunker splits a message into ordered chunks.
type Chunker interface {
	Chunks(msg domain.Message) []domain.Chunk
}

// VectorWriter persists embedded chunks.
type VectorWriter interface {
	Upsert(ctx context.Context, records []domain.Record) error
}
