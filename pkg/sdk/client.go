package mailrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/chunker"
	"github.com/kailas-cloud/mailrag/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/mailrag/internal/db/redis"
	"github.com/kailas-cloud/mailrag/internal/domain"
	domingest "github.com/kailas-cloud/mailrag/internal/domain/ingest"
	"github.com/kailas-cloud/mailrag/internal/metrics"
	"github.com/kailas-cloud/mailrag/internal/repository/ledger"
	"github.com/kailas-cloud/mailrag/internal/repository/vector"
	"github.com/kailas-cloud/mailrag/internal/retry"
	answeruc "github.com/kailas-cloud/mailrag/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/mailrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/mailrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/mailrag/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/mailrag/internal/usecase/query"
	retrieveuc "github.com/kailas-cloud/mailrag/internal/usecase/retrieve"
	verifyuc "github.com/kailas-cloud/mailrag/internal/usecase/verify"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCollection       = "emails"
	releaseTimeout          = 10 * time.Second
)

// Internal interfaces, swapped for mocks in tests.
type ingestUseCase interface {
	Ingest(ctx context.Context, msgs []domain.Message) domingest.Report
	Seen(ctx context.Context, owner, messageID string) (bool, error)
	Count(ctx context.Context, owner string) (int, error)
}

type queryUseCase interface {
	SubmitTopK(ctx context.Context, text string, k int) (domain.AnswerRecord, error)
}

// Client is the mailrag SDK entry point.
type Client struct {
	ingestSvc ingestUseCase
	querySvc  queryUseCase
	healthSvc healthUseCase
	obs       *observer
	closers   []func()
}

// New creates a Client and connects to the storage backend.
// The provided context is used for the initial readiness check and migrations.
func New(ctx context.Context, opts ...Option) (_ *Client, err error) {
	cfg := &clientConfig{
		driver:           driverMemory,
		collection:       defaultCollection,
		vectorDimensions: domain.DefaultVectorSpace().Dimensions,
		chunkSize:        domain.DefaultChunkSize,
		chunkOverlap:     domain.DefaultChunkOverlap,
		topK:             domain.DefaultTopK,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("mailrag: embedder required (use WithEmbedder)")
	}
	if cfg.chat == nil {
		return nil, errors.New("mailrag: chat model required (use WithChatModel)")
	}
	if cfg.model == "" {
		return nil, errors.New("mailrag: embedding model name required")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	if cfg.metricsReg != nil {
		metrics.RegisterWith(cfg.metricsReg)
	}

	c := &Client{obs: obs}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()
	if err := c.wire(ctx, cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) wire(ctx context.Context, cfg *clientConfig) error {
	space := domain.VectorSpace{
		Model:      cfg.model,
		Dimensions: cfg.vectorDimensions,
		Metric:     domain.MetricCosine,
	}
	led, store, storage, err := c.openStorage(ctx, cfg, space)
	if err != nil {
		return err
	}

	nop := zap.NewNop()
	policy := retry.DefaultPolicy()

	ch, err := chunker.New(cfg.chunkSize, cfg.chunkOverlap)
	if err != nil {
		return fmt.Errorf("mailrag: %w", err)
	}

	var emb domain.Embedder = &embedderAdapter{inner: cfg.embedder}
	emb = embeddinguc.NewRetryingEmbedder(emb, policy, nop)

	ingest, err := ingestuc.New(led, ch, emb, store, ingestuc.Config{Workers: cfg.workers}, nop)
	if err != nil {
		return fmt.Errorf("mailrag: %w", err)
	}
	c.closers = append(c.closers, func() { _ = ingest.Close(releaseTimeout) })

	chat := &chatAdapter{inner: cfg.chat}
	answerer := answeruc.New(chat, answeruc.Config{
		SystemPrompt:    cfg.systemPrompt,
		MaxPromptTokens: domain.DefaultMaxPromptTokens,
		Retry:           policy,
	}, nop)
	var verifier queryuc.Verifier
	if cfg.verify {
		verifier = verifyuc.New(chat, policy, nop)
	}

	c.ingestSvc = ingest
	c.querySvc = queryuc.New(retrieveuc.New(emb, store, cfg.topK), answerer, verifier, cfg.topK, nop)
	c.healthSvc = healthuc.New(storage, nil, nil)
	return nil
}

func (c *Client) openStorage(
	ctx context.Context, cfg *clientConfig, space domain.VectorSpace,
) (ledger.Ledger, vector.Store, healthuc.Pinger, error) {
	vc := vector.Config{Collection: cfg.collection, Space: space}

	switch cfg.driver {
	case driverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mailrag: create redis store: %w", err)
		}
		c.closers = append(c.closers, s.Close)
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return nil, nil, nil, fmt.Errorf("mailrag: database not ready: %w", err)
		}
		store, err := vector.NewRedis(ctx, s, vc)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mailrag: %w", err)
		}
		return retryLedger(ledger.NewRedis(s)), store, s, nil

	case driverPostgres:
		d, err := postgres.Open(postgres.Config{DSN: cfg.dsn})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mailrag: open postgres: %w", err)
		}
		c.closers = append(c.closers, d.Close)
		if err := d.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return nil, nil, nil, fmt.Errorf("mailrag: database not ready: %w", err)
		}
		led, err := ledger.NewPostgres(ctx, d)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mailrag: %w", err)
		}
		store, err := vector.NewPostgres(ctx, d, vc)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mailrag: %w", err)
		}
		return retryLedger(led), store, d, nil

	case driverMemory:
		store, err := vector.NewMemory(space)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mailrag: %w", err)
		}
		return ledger.NewMemory(), store, nil, nil

	default:
		return nil, nil, nil, fmt.Errorf("mailrag: unknown driver %q", cfg.driver)
	}
}

// retryLedger retries storage blips and SET/tx conflicts before a message is failed.
func retryLedger(l ledger.Ledger) ledger.Ledger {
	return ledger.WithRetry(l, retry.DefaultPolicy())
}

// Close releases all resources.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Ingest chunks, embeds and stores the messages the owner's ledger does not know yet.
// Invalid messages fail individually. The returned error is non-nil only when
// every message failed.
func (c *Client) Ingest(ctx context.Context, msgs []Message) (report IngestReport, err error) {
	start := time.Now()
	defer func() {
		c.obs.ingested(report)
		c.obs.observe("ingest", start, err,
			slog.Int("processed", report.Processed),
			slog.Int("skipped", report.Skipped),
			slog.Int("failed", report.Failed),
		)
	}()

	results := make([]domingest.Result, len(msgs))
	valid := make([]domain.Message, 0, len(msgs))
	pos := make([]int, 0, len(msgs))
	for i, m := range msgs {
		dm, merr := domain.NewMessage(m.Owner, m.ID, m.From, m.Subject, m.ReceivedAt, m.Body)
		if merr != nil {
			results[i] = domingest.NewFailed(m.Owner, m.ID, merr)
			continue
		}
		valid = append(valid, dm)
		pos = append(pos, i)
	}
	if len(valid) > 0 {
		rep := c.ingestSvc.Ingest(ctx, valid)
		for j, res := range rep.Results {
			results[pos[j]] = res
		}
	}

	report = toIngestReport(domingest.NewReport(results))
	if len(msgs) > 0 && report.Failed == len(msgs) {
		return report, fmt.Errorf("ingest: all %d messages failed: %w", len(msgs), report.Results[0].Err)
	}
	return report, nil
}

// Query answers a question over the ingested mail with the configured top-k.
func (c *Client) Query(ctx context.Context, question string) (Answer, error) {
	return c.QueryTopK(ctx, question, 0)
}

// QueryTopK answers a question using k retrieved chunks. k <= 0 uses the configured default.
func (c *Client) QueryTopK(ctx context.Context, question string, k int) (_ Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, err) }()

	rec, err := c.querySvc.SubmitTopK(ctx, question, k)
	if err != nil {
		return Answer{}, fmt.Errorf("query: %w", err)
	}
	return toAnswer(rec), nil
}

// Seen reports whether the message was already ingested for owner.
func (c *Client) Seen(ctx context.Context, owner, messageID string) (_ bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("seen", start, err) }()

	ok, err := c.ingestSvc.Seen(ctx, owner, messageID)
	if err != nil {
		return false, fmt.Errorf("seen: %w", err)
	}
	return ok, nil
}

// Count returns how many messages were ingested for owner.
func (c *Client) Count(ctx context.Context, owner string) (_ int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("count", start, err) }()

	n, err := c.ingestSvc.Count(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
