package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/chunker"
	"github.com/kailas-cloud/mailrag/internal/config"
	"github.com/kailas-cloud/mailrag/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/mailrag/internal/db/redis"
	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/metrics"
	"github.com/kailas-cloud/mailrag/internal/repository/embcache"
	"github.com/kailas-cloud/mailrag/internal/repository/ledger"
	"github.com/kailas-cloud/mailrag/internal/repository/vector"
	"github.com/kailas-cloud/mailrag/internal/retry"
	openaiTransport "github.com/kailas-cloud/mailrag/internal/transport/openai"
	answeruc "github.com/kailas-cloud/mailrag/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/mailrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/mailrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/mailrag/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/mailrag/internal/usecase/query"
	retrieveuc "github.com/kailas-cloud/mailrag/internal/usecase/retrieve"
	verifyuc "github.com/kailas-cloud/mailrag/internal/usecase/verify"
)

const (
	providerName    = "openai"
	embedCacheTTL   = 30 * 24 * time.Hour
	poolReleaseWait = 10 * time.Second
)

// app is the composition root shared by every command.
type app struct {
	ingest  *ingestuc.Service
	query   *queryuc.Service
	health  *healthuc.Service
	logger  *zap.Logger
	closers []func()
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func wire(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// Register domain metrics explicitly (no init())
	metrics.Register()

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
		MaxDelay:    cfg.RetryMaxDelay(),
	}

	var pingers healthuc.Pingers

	var rs *dbRedis.Store
	if len(cfg.Redis.Addrs) > 0 && (cfg.Ledger.Driver == config.DriverRedis ||
		cfg.Vector.Driver == config.DriverRedis || cfg.Embedding.Cache) {
		rs, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: redis: %w", domain.ErrConfiguration, err)
		}
		a.closers = append(a.closers, rs.Close)
		if err := rs.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		pingers = append(pingers, rs)
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))
	}

	var pg *postgres.DB
	if cfg.Ledger.Driver == config.DriverPostgres || cfg.Vector.Driver == config.DriverPostgres {
		pg, err = postgres.Open(postgres.Config{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: postgres: %w", domain.ErrConfiguration, err)
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.WaitForReady(ctx, time.Duration(cfg.Postgres.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("postgres not ready: %w", err)
		}
		pingers = append(pingers, pg)
		logger.Info("Connected to postgres")
	}

	led, err := buildLedger(ctx, cfg, rs, pg, policy)
	if err != nil {
		return nil, err
	}
	store, err := buildVectorStore(ctx, cfg, rs, pg)
	if err != nil {
		return nil, err
	}

	embedders, base := buildEmbedder(cfg, rs, store.Space(), policy, logger)
	chat := openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
		Config: openaiTransport.Config{
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Provider: providerName,
			Timeout:  time.Duration(cfg.LLM.TimeoutSec) * time.Second,
			Logger:   logger,
		},
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	logger.Info("Providers configured",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("llm_model", cfg.LLM.Model),
	)

	ch, err := chunker.New(cfg.Chunking.MaxSize, cfg.Chunking.Overlap)
	if err != nil {
		return nil, fmt.Errorf("%w: chunker: %w", domain.ErrConfiguration, err)
	}

	a.ingest, err = ingestuc.New(led, ch, embedders.ingest, store, ingestuc.Config{
		BatchSize: cfg.Embedding.BatchSize,
		Workers:   cfg.Embedding.Workers,
	}, logger.Named("ingest"))
	if err != nil {
		return nil, err
	}
	ingest := a.ingest
	a.closers = append(a.closers, func() {
		if err := ingest.Close(poolReleaseWait); err != nil {
			logger.Warn("Embedding pool release timed out", zap.Error(err))
		}
	})

	retriever := retrieveuc.New(embedders.query, store, cfg.Retrieval.TopK)
	answerer := answeruc.New(chat, answeruc.Config{
		SystemPrompt:    cfg.LLM.SystemPrompt,
		MaxPromptTokens: cfg.LLM.MaxPromptTokens,
		Retry:           policy,
	}, logger.Named("answer"))

	// nil interface, not a typed nil, disables verification
	var verifier queryuc.Verifier
	if cfg.Verify.Enabled {
		verifier = verifyuc.New(chat.WithPurpose("verify"), policy, logger.Named("verify"))
	}
	a.query = queryuc.New(retriever, answerer, verifier, cfg.Retrieval.TopK, logger.Named("query"))

	var storage healthuc.Pinger
	if len(pingers) > 0 {
		storage = pingers
	}
	a.health = healthuc.New(storage, base, chat)
	return a, nil
}

func buildLedger(
	ctx context.Context, cfg config.Config, rs *dbRedis.Store, pg *postgres.DB, policy retry.Policy,
) (ledger.Ledger, error) {
	var l ledger.Ledger
	switch cfg.Ledger.Driver {
	case config.DriverRedis:
		l = ledger.NewRedis(rs)
	case config.DriverPostgres:
		p, err := ledger.NewPostgres(ctx, pg)
		if err != nil {
			return nil, err
		}
		l = p
	default:
		l = ledger.NewMemory()
	}
	return ledger.WithRetry(l, policy), nil
}

func buildVectorStore(ctx context.Context, cfg config.Config, rs *dbRedis.Store, pg *postgres.DB) (vector.Store, error) {
	vc := vector.Config{
		Collection: cfg.Vector.Collection,
		Space: domain.VectorSpace{
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Vector.Dimensions,
			Metric:     cfg.Vector.Metric,
		},
		HNSWM:              cfg.Vector.HNSWM,
		HNSWEFConstruction: cfg.Vector.HNSWEFConstruct,
		HNSWEFRuntime:      cfg.Vector.HNSWEFRuntime,
	}
	switch cfg.Vector.Driver {
	case config.DriverRedis:
		return vector.NewRedis(ctx, rs, vc)
	case config.DriverPostgres:
		return vector.NewPostgres(ctx, pg, vc)
	default:
		return vector.NewMemory(vc.Space)
	}
}

// embedderChains holds the ingest and query embedders. Both share one throttle
// and one retry layer; only the ingest chain reads and fills the cache.
type embedderChains struct {
	ingest domain.Embedder
	query  domain.Embedder
}

// buildEmbedder assembles the decorator chains over the OpenAI provider:
//
//	ingest: Instrumented(Cached(Retrying(Throttled(openai))))
//	query:  Instrumented(Retrying(Throttled(openai)))
//
// It also returns the bare provider for health checks.
func buildEmbedder(
	cfg config.Config,
	rs *dbRedis.Store,
	space domain.VectorSpace,
	policy retry.Policy,
	logger *zap.Logger,
) (embedderChains, *openaiTransport.Embedder) {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   providerName,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	var cache func(domain.Embedder) domain.Embedder
	if cfg.Embedding.Cache && rs != nil {
		cache = func(inner domain.Embedder) domain.Embedder {
			return embcache.New(inner, rs, space, logger,
				embcache.WithTTL(embedCacheTTL),
				embcache.WithMetrics(metrics.EmbeddingCacheTotal),
			)
		}
	}
	return chainEmbedders(base, cfg.Embedding, cache, policy, logger), base
}

// chainEmbedders wraps base for both paths. A nil cache leaves the ingest chain uncached.
func chainEmbedders(
	base domain.Embedder,
	cfg config.EmbeddingConfig,
	cache func(domain.Embedder) domain.Embedder,
	policy retry.Policy,
	logger *zap.Logger,
) embedderChains {
	var shared domain.Embedder = embeddinguc.NewThrottledEmbedder(base, cfg.RequestsPerSecond, cfg.Burst)
	shared = embeddinguc.NewRetryingEmbedder(shared, policy, logger)

	ingest := shared
	if cache != nil {
		ingest = cache(shared)
	}
	return embedderChains{
		ingest: embeddinguc.NewInstrumentedEmbedder(ingest, providerName, cfg.Model, logger),
		query:  embeddinguc.NewInstrumentedEmbedder(shared, providerName, cfg.Model, logger),
	}
}
