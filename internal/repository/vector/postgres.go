package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/mailrag/internal/db"
	"github.com/kailas-cloud/mailrag/internal/db/postgres"
	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Postgres stores chunks in a pgvector table with an HNSW vector_cosine_ops index.
type Postgres struct {
	db    *postgres.DB
	cfg   Config
	table string
}

var _ Store = (*Postgres)(nil)

// NewPostgres migrates the chunk table and pins the collection space.
func NewPostgres(ctx context.Context, d *postgres.DB, cfg Config) (*Postgres, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := &Postgres{db: d, cfg: cfg, table: postgres.TableName(cfg.Collection)}

	if err := d.MigrateChunks(ctx, postgres.ChunkSchema{
		Table:          p.table,
		Dimensions:     cfg.Space.Dimensions,
		Metric:         cfg.Space.Metric,
		M:              cfg.HNSWM,
		EFConstruction: cfg.HNSWEFConstruction,
	}); err != nil {
		return nil, storageErr("migrate", err)
	}
	if err := p.ensureSpace(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Space returns the pinned vector space.
func (p *Postgres) Space() domain.VectorSpace { return p.cfg.Space }

func (p *Postgres) ensureSpace(ctx context.Context) error {
	want := p.cfg.Space
	_, err := p.db.SQL().ExecContext(ctx,
		`INSERT INTO mailrag_collections (name, model, dimensions, metric)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO NOTHING`,
		p.cfg.Collection, want.Model, want.Dimensions, want.Metric,
	)
	if err != nil {
		return storageErr("ensure space", postgres.OpErr(db.OpExec, err))
	}

	var stored domain.VectorSpace
	err = p.db.SQL().QueryRowContext(ctx,
		`SELECT model, dimensions, metric FROM mailrag_collections WHERE name = $1`,
		p.cfg.Collection,
	).Scan(&stored.Model, &stored.Dimensions, &stored.Metric)
	if err != nil {
		return storageErr("ensure space", postgres.OpErr(db.OpQuery, err))
	}
	return checkSpace(p.cfg.Collection, want, stored)
}

// Upsert writes the batch in one transaction. Conflicting ids are updated in place
// and keep their original seq.
func (p *Postgres) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(p.cfg.Space, records); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, owner, message_id, ordinal, sender, subject, received_at, body, metric, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			message_id = EXCLUDED.message_id,
			ordinal = EXCLUDED.ordinal,
			sender = EXCLUDED.sender,
			subject = EXCLUDED.subject,
			received_at = EXCLUDED.received_at,
			body = EXCLUDED.body,
			metric = EXCLUDED.metric,
			embedding = EXCLUDED.embedding`, p.table)

	err := p.db.InTx(ctx, nil, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return postgres.OpErr(db.OpExec, err)
		}
		defer stmt.Close()

		for i := range records {
			r := &records[i]
			src := r.Chunk.Source
			var receivedAt sql.NullTime
			if !src.ReceivedAt.IsZero() {
				receivedAt = sql.NullTime{Time: src.ReceivedAt, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				r.Chunk.ID, src.Owner, src.MessageID, r.Chunk.Ordinal,
				src.From, src.Subject, receivedAt, r.Chunk.Text,
				p.cfg.Space.Metric, pgvector.NewVector(r.Vector),
			); err != nil {
				return postgres.OpErr(db.OpExec, fmt.Errorf("chunk %s: %w", r.Chunk.ID, err))
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("upsert", err)
	}
	return nil
}

// maxPreallocHits caps the result capacity reserved up front for a caller-supplied k.
const maxPreallocHits = 64

// maxEFSearch is the largest hnsw.ef_search pgvector accepts.
const maxEFSearch = 1000

// efSearch returns the candidate list size for a top-k query. pgvector's HNSW scan
// yields at most ef_search rows, so it is never set below k.
func (p *Postgres) efSearch(k int) int {
	return min(max(p.cfg.HNSWEFRuntime, k), maxEFSearch)
}

// Query orders by cosine distance then seq, which makes ties deterministic.
// The HNSW scan is approximate and returns at most 1000 rows.
func (p *Postgres) Query(ctx context.Context, vec []float32, k int) ([]domain.Hit, error) {
	if err := validateQuery(p.cfg.Space, vec, k); err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	var hits []domain.Hit
	err := p.db.InTx(ctx, &sql.TxOptions{ReadOnly: true}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", p.efSearch(k))); err != nil {
			return postgres.OpErr(db.OpExec, err)
		}
		rows, err := tx.QueryContext(ctx, fmt.Sprintf(
			`SELECT id, owner, message_id, ordinal, sender, subject, received_at, body,
			        embedding <=> $1 AS distance
			 FROM %s
			 ORDER BY distance, seq
			 LIMIT $2`, p.table),
			pgvector.NewVector(vec), k,
		)
		if err != nil {
			return postgres.OpErr(db.OpQuery, err)
		}
		defer rows.Close()

		hits, err = scanHits(rows, min(k, maxPreallocHits))
		return err
	})
	if err != nil {
		return nil, storageErr("query", err)
	}
	return hits, nil
}

func scanHits(rows *sql.Rows, capacity int) ([]domain.Hit, error) {
	hits := make([]domain.Hit, 0, capacity)
	for rows.Next() {
		var (
			h          domain.Hit
			receivedAt sql.NullTime
		)
		if err := rows.Scan(
			&h.Chunk.ID, &h.Chunk.Source.Owner, &h.Chunk.Source.MessageID, &h.Chunk.Ordinal,
			&h.Chunk.Source.From, &h.Chunk.Source.Subject, &receivedAt, &h.Chunk.Text,
			&h.Distance,
		); err != nil {
			return nil, postgres.OpErr(db.OpQuery, err)
		}
		if receivedAt.Valid {
			h.Chunk.Source.ReceivedAt = receivedAt.Time
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.OpErr(db.OpQuery, err)
	}
	return hits, nil
}

// Count returns the number of stored chunks.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.SQL().QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, p.table)).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, storageErr("count", postgres.OpErr(db.OpQuery, err))
	}
	return n, nil
}
