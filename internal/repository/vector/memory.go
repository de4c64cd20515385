package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

type memEntry struct {
	chunk  domain.Chunk
	vector []float32
	seq    int64
}

// Memory is a brute-force in-process store. Readers take a read lock, so they
// see either the whole batch of a concurrent Upsert or none of it.
type Memory struct {
	space domain.VectorSpace

	mu      sync.RWMutex
	entries map[string]*memEntry
	nextSeq int64
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store for the given space.
func NewMemory(space domain.VectorSpace) (*Memory, error) {
	cfg := Config{Collection: "memory", Space: space}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Memory{space: space, entries: make(map[string]*memEntry)}, nil
}

// Space returns the vector space of the store.
func (m *Memory) Space() domain.VectorSpace { return m.space }

// Upsert validates the whole batch before writing any of it.
func (m *Memory) Upsert(_ context.Context, records []domain.Record) error {
	if err := validateRecords(m.space, records); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range records {
		r := &records[i]
		vec := append([]float32(nil), r.Vector...)
		if e, ok := m.entries[r.Chunk.ID]; ok {
			e.chunk = r.Chunk
			e.vector = vec
			continue
		}
		m.nextSeq++
		m.entries[r.Chunk.ID] = &memEntry{chunk: r.Chunk, vector: vec, seq: m.nextSeq}
	}
	return nil
}

// Query scans every entry.
func (m *Memory) Query(_ context.Context, vec []float32, k int) ([]domain.Hit, error) {
	if err := validateQuery(m.space, vec, k); err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	m.mu.RLock()
	hits := make([]rankedHit, 0, len(m.entries))
	for _, e := range m.entries {
		hits = append(hits, rankedHit{
			hit: domain.Hit{Chunk: e.chunk, Distance: CosineDistance(vec, e.vector)},
			seq: e.seq,
		})
	}
	m.mu.RUnlock()

	return rank(hits, k), nil
}

// Count returns the number of stored chunks.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}
