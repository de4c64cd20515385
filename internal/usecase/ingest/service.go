// Package ingest runs the write path: dedup, chunk, embed, store, record.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
	domingest "github.com/kailas-cloud/mailrag/internal/domain/ingest"
	"github.com/kailas-cloud/mailrag/internal/metrics"
)

// Config sizes the embedding fan-out.
type Config struct {
	// BatchSize is the number of chunk texts per embedding request.
	BatchSize int
	// Workers bounds concurrent embedding requests across all ingests.
	Workers int
}

// Defaults for Config.
const (
	DefaultBatchSize = 64
	DefaultWorkers   = 4
)

// Service ingests messages. One writer per owner at a time; owners proceed in parallel.
type Service struct {
	ledger  Ledger
	chunker Chunker
	embed   domain.Embedder
	store   VectorWriter
	cfg     Config
	pool    *ants.Pool
	locks   *ownerLocks
	logger  *zap.Logger
}

// New creates the ingest service and its worker pool. Call Close to release the pool.
func New(
	ledger Ledger, chunker Chunker, embed domain.Embedder, store VectorWriter,
	cfg Config, logger *zap.Logger,
) (*Service, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	pool, err := ants.NewPool(cfg.Workers,
		ants.WithExpiryDuration(30*time.Second),
		ants.WithPanicHandler(func(p any) {
			logger.Error("Embedding worker panic recovered", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding pool: %w", domain.ErrConfiguration, err)
	}

	return &Service{
		ledger:  ledger,
		chunker: chunker,
		embed:   embed,
		store:   store,
		cfg:     cfg,
		pool:    pool,
		locks:   newOwnerLocks(),
		logger:  logger,
	}, nil
}

// Close releases the worker pool, waiting up to timeout for running batches.
func (s *Service) Close(timeout time.Duration) error {
	if err := s.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("release embedding pool: %w", err)
	}
	return nil
}

// Seen reports whether the message is already recorded for owner.
func (s *Service) Seen(ctx context.Context, owner, messageID string) (bool, error) {
	if owner == "" || messageID == "" {
		return false, fmt.Errorf("%w: owner and message id are required", domain.ErrInvalidInput)
	}
	ok, err := s.ledger.Has(ctx, owner, messageID)
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return ok, nil
}

// Count returns the number of recorded messages for owner.
func (s *Service) Count(ctx context.Context, owner string) (int, error) {
	if owner == "" {
		return 0, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	n, err := s.ledger.Count(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("ledger count: %w", err)
	}
	return n, nil
}

// ownerBatch is the slice of an ingest call belonging to one owner.
type ownerBatch struct {
	owner string
	// pos maps each message back to its position in the caller's slice
	pos  []int
	msgs []domain.Message
}

// Ingest processes msgs and reports one result per input message, in input order.
// A failure of one message never stops the others.
func (s *Service) Ingest(ctx context.Context, msgs []domain.Message) domingest.Report {
	results := make([]domingest.Result, len(msgs))
	batches := s.group(msgs, results)

	var wg sync.WaitGroup
	for _, b := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ingestOwner(ctx, b, results)
		}()
	}
	wg.Wait()

	report := domingest.NewReport(results)
	metrics.IngestMessagesTotal.WithLabelValues(string(domingest.OutcomeProcessed)).Add(float64(report.Processed))
	metrics.IngestMessagesTotal.WithLabelValues(string(domingest.OutcomeSkipped)).Add(float64(report.Skipped))
	metrics.IngestMessagesTotal.WithLabelValues(string(domingest.OutcomeFailed)).Add(float64(report.Failed))

	s.logger.Info("Ingest completed",
		zap.Int("messages", len(msgs)),
		zap.Int("owners", len(batches)),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report
}

// group splits msgs by owner keeping input order. A repeated id within the call is skipped.
func (s *Service) group(msgs []domain.Message, results []domingest.Result) []*ownerBatch {
	var order []*ownerBatch
	byOwner := make(map[string]*ownerBatch)
	seen := make(map[[2]string]bool)

	for i, m := range msgs {
		key := [2]string{m.Owner(), m.ID()}
		if seen[key] {
			results[i] = domingest.NewSkipped(m.Owner(), m.ID())
			continue
		}
		seen[key] = true

		b, ok := byOwner[m.Owner()]
		if !ok {
			b = &ownerBatch{owner: m.Owner()}
			byOwner[m.Owner()] = b
			order = append(order, b)
		}
		b.pos = append(b.pos, i)
		b.msgs = append(b.msgs, m)
	}
	return order
}

func (s *Service) ingestOwner(ctx context.Context, b *ownerBatch, results []domingest.Result) {
	unlock := s.locks.lock(b.owner)
	defer unlock()

	log := s.logger.With(zap.String("owner", b.owner))

	ids := make([]string, len(b.msgs))
	for i, m := range b.msgs {
		ids[i] = m.ID()
	}

	known, err := s.ledger.Filter(ctx, b.owner, ids)
	if err != nil {
		// fail closed: an unreadable ledger must not lead to duplicates
		log.Error("Ledger filter failed", zap.Error(err))
		for i, m := range b.msgs {
			results[b.pos[i]] = domingest.NewFailed(b.owner, m.ID(), fmt.Errorf("ledger filter: %w", err))
		}
		return
	}

	var processed []string
	chunkCounts := make(map[string]int)
	var processedPos []int

	for i, m := range b.msgs {
		if known[m.ID()] {
			results[b.pos[i]] = domingest.NewSkipped(b.owner, m.ID())
			continue
		}
		n, err := s.ingestMessage(ctx, m)
		if err != nil {
			log.Warn("Message ingest failed", zap.String("message_id", m.ID()), zap.Error(err))
			results[b.pos[i]] = domingest.NewFailed(b.owner, m.ID(), err)
			continue
		}
		processed = append(processed, m.ID())
		processedPos = append(processedPos, b.pos[i])
		chunkCounts[m.ID()] = n
	}

	if len(processed) == 0 {
		return
	}

	if _, err := s.ledger.Record(ctx, b.owner, processed); err != nil {
		// vectors are idempotent: a later run re-upserts them harmlessly
		log.Error("Ledger record failed", zap.Int("messages", len(processed)), zap.Error(err))
		for j, id := range processed {
			results[processedPos[j]] = domingest.NewFailed(b.owner, id, fmt.Errorf("ledger record: %w", err))
		}
		return
	}
	for j, id := range processed {
		results[processedPos[j]] = domingest.NewProcessed(b.owner, id, chunkCounts[id])
	}
}

// ingestMessage chunks, embeds and stores one message and returns its chunk count.
func (s *Service) ingestMessage(ctx context.Context, m domain.Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	chunks := s.chunker.Chunks(m)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: message produced no chunks", domain.ErrInvalidInput)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedChunks(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	records := make([]domain.Record, len(chunks))
	for i, c := range chunks {
		records[i] = domain.Record{Chunk: c, Vector: vectors[i], Metric: domain.MetricCosine}
	}
	if err := s.store.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	metrics.IngestChunksTotal.Add(float64(len(chunks)))
	return len(chunks), nil
}
