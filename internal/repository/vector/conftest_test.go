package vector

import (
	"context"
	"strings"
	"sync"

	"github.com/kailas-cloud/mailrag/internal/db"
	redisdb "github.com/kailas-cloud/mailrag/internal/db/redis"
	"github.com/kailas-cloud/mailrag/internal/domain"
)

// fakeRedis implements redisStore over plain maps and answers KNN by brute force.
type fakeRedis struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	counter map[string]int64
	indexes map[string]*db.IndexDefinition

	searchErr error
	// reverse makes SearchKNN return candidates in reverse key order
	reverse bool
	lastKNN db.KNNQuery
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		hashes:  make(map[string]map[string]string),
		counter: make(map[string]int64),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

func (f *fakeRedis) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		h := f.hashes[it.Key]
		if h == nil {
			h = make(map[string]string)
			f.hashes[it.Key] = h
		}
		for k, v := range it.Fields {
			h[k] = v
		}
	}
	return nil
}

func (f *fakeRedis) HSetNX(_ context.Context, key, field, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.hashes[key]
	if h == nil {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	if _, ok := h[field]; ok {
		return false, nil
	}
	h[field] = value
	return true, nil
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRedis) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.hashes[key]
	return ok, nil
}

func (f *fakeRedis) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter[key] += val
	return f.counter[key], nil
}

func (f *fakeRedis) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	f.indexes[def.Name] = def
	return nil
}

func (f *fakeRedis) IndexExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indexes[name]
	return ok, nil
}

func (f *fakeRedis) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKNN = *q
	def := f.indexes[q.IndexName]
	if def == nil {
		return nil, db.ErrIndexNotFound
	}
	prefix := def.Prefixes[0]

	var entries []db.SearchEntry
	for key, h := range f.hashes {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		vec, err := redisdb.BytesToVector(h[fieldVector])
		if err != nil {
			return nil, err
		}
		fields := make(map[string]string, len(q.ReturnFields))
		for _, name := range q.ReturnFields {
			if v, ok := h[name]; ok {
				fields[name] = v
			}
		}
		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  CosineDistance(q.Vector, vec),
			Fields: fields,
		})
	}
	// a real index returns candidates in no particular order among ties
	sortEntries(entries, f.reverse)
	if len(entries) > q.K {
		entries = entries[:q.K]
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func (f *fakeRedis) SearchCount(_ context.Context, index, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def := f.indexes[index]
	if def == nil {
		return 0, db.ErrIndexNotFound
	}
	n := 0
	for key := range f.hashes {
		if strings.HasPrefix(key, def.Prefixes[0]) {
			n++
		}
	}
	return n, nil
}

func sortEntries(entries []db.SearchEntry, reverse bool) {
	less := func(a, b db.SearchEntry) bool {
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if reverse {
			return a.Key > b.Key
		}
		return a.Key < b.Key
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(entries[j], entries[j-1]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func testSpace(dims int) domain.VectorSpace {
	return domain.VectorSpace{Model: "test-model", Dimensions: dims, Metric: domain.MetricCosine}
}

func record(owner, msgID string, ordinal int, vec ...float32) domain.Record {
	return domain.Record{
		Chunk: domain.Chunk{
			ID:      domain.ChunkID(owner, msgID, ordinal),
			Source:  domain.SourceRef{Owner: owner, MessageID: msgID, From: "alice@example.com", Subject: "hello"},
			Ordinal: ordinal,
			Text:    msgID + " chunk",
		},
		Vector: vec,
		Metric: domain.MetricCosine,
	}
}
