package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/mailrag/internal/db"
	redisdb "github.com/kailas-cloud/mailrag/internal/db/redis"
	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Hash field names of a stored chunk.
const (
	fieldOwner      = "owner"
	fieldMessageID  = "message_id"
	fieldOrdinal    = "ordinal"
	fieldFrom       = "from"
	fieldSubject    = "subject"
	fieldReceivedAt = "received_at"
	fieldText       = "text"
	fieldMetric     = "metric"
	fieldSeq        = "seq"
	fieldVector     = "vector"
	fieldChunkID    = "chunk_id"
)

var returnFields = []string{
	fieldChunkID, fieldOwner, fieldMessageID, fieldOrdinal, fieldFrom,
	fieldSubject, fieldReceivedAt, fieldText, fieldSeq,
}

// redisStore is the consumer interface for the Redis vector store (ISP).
type redisStore interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HSetNX(ctx context.Context, key, field, value string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Redis stores chunks as hashes under an HNSW COSINE index.
type Redis struct {
	store redisStore
	cfg   Config
}

var _ Store = (*Redis)(nil)

// NewRedis pins the collection space and creates the index when missing.
func NewRedis(ctx context.Context, s redisStore, cfg Config) (*Redis, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r := &Redis{store: s, cfg: cfg}
	if err := r.ensureSpace(ctx); err != nil {
		return nil, err
	}
	if err := r.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Redis) base() string { return domain.KeyPrefix + r.cfg.Collection }
func (r *Redis) indexName() string { return r.base() + ":idx" }
func (r *Redis) chunkPrefix() string { return r.base() + ":chunk:" }
func (r *Redis) metaKey() string { return r.base() + ":meta" }
func (r *Redis) seqKey() string { return r.base() + ":seq" }

// Space returns the pinned vector space.
func (r *Redis) Space() domain.VectorSpace { return r.cfg.Space }

// ensureSpace writes each meta field only if absent, then compares what is stored.
// Two processes racing on first boot agree on whichever wrote first.
func (r *Redis) ensureSpace(ctx context.Context) error {
	want := r.cfg.Space
	for field, value := range map[string]string{
		"model":      want.Model,
		"dimensions": strconv.Itoa(want.Dimensions),
		"metric":     want.Metric,
	} {
		if _, err := r.store.HSetNX(ctx, r.metaKey(), field, value); err != nil {
			return storageErr("ensure space", err)
		}
	}

	meta, err := r.store.HGetAll(ctx, r.metaKey())
	if err != nil {
		return storageErr("ensure space", err)
	}
	dims, err := strconv.Atoi(meta["dimensions"])
	if err != nil {
		return fmt.Errorf("%w: corrupt meta for %q: %w", domain.ErrConfiguration, r.cfg.Collection, err)
	}
	return checkSpace(r.cfg.Collection, want, domain.VectorSpace{
		Model:      meta["model"],
		Dimensions: dims,
		Metric:     meta["metric"],
	})
}

func (r *Redis) ensureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return storageErr("ensure index", err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(r.indexName()).
		Prefix(r.chunkPrefix()).
		Tag(fieldOwner).
		Numeric(fieldSeq).
		VectorHNSW(fieldVector, r.cfg.Space.Dimensions, db.DistanceCosine, r.cfg.HNSWM, r.cfg.HNSWEFConstruction).
		Build()
	if err != nil {
		return fmt.Errorf("%w: index definition: %w", domain.ErrConfiguration, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return storageErr("create index", err)
	}
	return nil
}

// Upsert assigns an insertion sequence to chunks seen for the first time, then writes
// every hash in one pipelined round-trip. Each HSET is atomic, so a reader never
// observes a partially written vector.
func (r *Redis) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(r.cfg.Space, records); err != nil {
		return err
	}

	items := make([]db.HashSetItem, len(records))
	for i := range records {
		key := r.chunkPrefix() + records[i].Chunk.ID
		if err := r.assignSeq(ctx, key); err != nil {
			return err
		}
		items[i] = db.HashSetItem{Key: key, Fields: r.fields(&records[i])}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return storageErr("upsert", err)
	}
	return nil
}

func (r *Redis) assignSeq(ctx context.Context, key string) error {
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return storageErr("upsert", err)
	}
	if exists {
		return nil
	}
	seq, err := r.store.IncrBy(ctx, r.seqKey(), 1)
	if err != nil {
		return storageErr("upsert", err)
	}
	// HSETNX keeps the first sequence if another writer got there in between
	if _, err := r.store.HSetNX(ctx, key, fieldSeq, strconv.FormatInt(seq, 10)); err != nil {
		return storageErr("upsert", err)
	}
	return nil
}

func (r *Redis) fields(rec *domain.Record) map[string]string {
	c := rec.Chunk
	f := map[string]string{
		fieldChunkID:   c.ID,
		fieldOwner:     c.Source.Owner,
		fieldMessageID: c.Source.MessageID,
		fieldOrdinal:   strconv.Itoa(c.Ordinal),
		fieldFrom:      c.Source.From,
		fieldSubject:   c.Source.Subject,
		fieldText:      c.Text,
		fieldMetric:    r.cfg.Space.Metric,
		fieldVector:    redisdb.VectorToBytes(rec.Vector),
	}
	if !c.Source.ReceivedAt.IsZero() {
		f[fieldReceivedAt] = c.Source.ReceivedAt.UTC().Format(time.RFC3339Nano)
	}
	return f
}

// Query runs an HNSW KNN search and re-ranks the candidates by (distance, seq).
// The search is approximate: recall grows with HNSWEFRuntime. Equal distances
// straddling the k-th position are resolved by the index, not by seq.
func (r *Redis) Query(ctx context.Context, vec []float32, k int) ([]domain.Hit, error) {
	if err := validateQuery(r.cfg.Space, vec, k); err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       vec,
		K:            k,
		EFRuntime:    r.cfg.HNSWEFRuntime,
		ReturnFields: returnFields,
		RawScores:    true,
	})
	if err != nil {
		return nil, storageErr("query", err)
	}

	hits := make([]rankedHit, 0, len(res.Entries))
	for _, e := range res.Entries {
		hit, seq, err := r.parseEntry(e)
		if err != nil {
			return nil, fmt.Errorf("vector query: %w", err)
		}
		hits = append(hits, rankedHit{hit: hit, seq: seq})
	}
	return rank(hits, k), nil
}

func (r *Redis) parseEntry(e db.SearchEntry) (domain.Hit, int64, error) {
	f := e.Fields
	id := f[fieldChunkID]
	if id == "" {
		id = strings.TrimPrefix(e.Key, r.chunkPrefix())
	}
	ordinal, err := strconv.Atoi(f[fieldOrdinal])
	if err != nil {
		return domain.Hit{}, 0, fmt.Errorf("%w: chunk %s: bad ordinal %q", domain.ErrProtocol, id, f[fieldOrdinal])
	}
	seq, err := strconv.ParseInt(f[fieldSeq], 10, 64)
	if err != nil {
		return domain.Hit{}, 0, fmt.Errorf("%w: chunk %s: bad seq %q", domain.ErrProtocol, id, f[fieldSeq])
	}

	var receivedAt time.Time
	if s := f[fieldReceivedAt]; s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			receivedAt = t
		}
	}

	return domain.Hit{
		Chunk: domain.Chunk{
			ID: id,
			Source: domain.SourceRef{
				Owner:      f[fieldOwner],
				MessageID:  f[fieldMessageID],
				From:       f[fieldFrom],
				Subject:    f[fieldSubject],
				ReceivedAt: receivedAt,
			},
			Ordinal: ordinal,
			Text:    f[fieldText],
		},
		Distance: e.Score,
	}, seq, nil
}

// Count returns the number of indexed chunks.
func (r *Redis) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}
