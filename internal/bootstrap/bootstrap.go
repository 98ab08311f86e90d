package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
	"github.com/kirillkom/legal-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/cache/redis"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/extractor/actjson"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/search/elastic"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue  ports.MessageQueue
	Runs   ports.IngestRunReader
	Traces ports.QueryTraceReader

	IngestUC  ports.CorpusIngestor
	ProcessUC ports.CorpusProcessor
	QueryUC   *usecase.QueryUseCase

	closeFn func()
}

// SearchStack is the index side of the system: the Elasticsearch client,
// the embedding model and the corpus loader. The indexer CLI uses it
// without Postgres or NATS.
type SearchStack struct {
	Executor *resilience.Executor
	Ollama   *ollama.Client
	Embedder *ollama.Embedder
	Index    *elastic.Client
	Parser   *actjson.Parser
	Loader   *usecase.DocumentLoader
}

func NewSearchStack(cfg config.Config) (*SearchStack, error) {
	executor := resilience.NewExecutor(ResilienceConfig(cfg))

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)

	index, err := elastic.New(elastic.Config{
		Addresses:  cfg.ElasticURLs,
		Username:   cfg.ElasticUsername,
		Password:   cfg.ElasticPassword,
		Index:      cfg.ElasticIndex,
		VectorDims: cfg.ElasticVectorDims,
	}, embedder, executor)
	if err != nil {
		return nil, fmt.Errorf("init elasticsearch: %w", err)
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	return &SearchStack{
		Executor: executor,
		Ollama:   ollamaClient,
		Embedder: embedder,
		Index:    index,
		Parser:   actjson.NewParser(chunker, cfg.ClauseSplitThreshold),
		Loader:   usecase.NewDocumentLoader(embedder, index, cfg.EmbedBatchSize, cfg.LoadWorkers),
	}, nil
}

// NewQueryStack builds the answer chain on top of a search stack. A nil
// cache or trace store disables that step.
func NewQueryStack(cfg config.Config, stack *SearchStack, cache ports.DecompositionCache, traces ports.QueryTraceStore) (*usecase.QueryUseCase, error) {
	profile, err := config.LoadRetrievalProfile(cfg.RetrievalProfilePath)
	if err != nil {
		return nil, err
	}
	caps, fusion := RetrievalTuning(cfg, profile)

	retrieval := usecase.NewRetrievalUseCase(stack.Index, caps, fusion)
	compressor := usecase.NewContextCompressor(stack.Embedder, cfg.RAGRedundancyThreshold, cfg.RAGContextMaxDocs)
	return usecase.NewQueryUseCase(
		ollama.NewDecomposer(stack.Ollama),
		cache,
		retrieval,
		compressor,
		ollama.NewGenerator(stack.Ollama),
		traces,
		usecase.QueryOptions{
			UseCompression: cfg.RAGUseCompression,
			RoundTimeout:   time.Duration(cfg.RAGRoundTimeoutSeconds) * time.Second,
		},
	), nil
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	runs := postgres.NewIngestRunRepository(db)
	traces := postgres.NewQueryTraceRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	stack, err := NewSearchStack(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: stack.Executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var cache ports.DecompositionCache
	var redisCache *redis.DecompositionCache
	if cfg.RedisAddr != "" {
		redisCache = redis.New(redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      time.Duration(cfg.DecompositionCacheTTLSeconds) * time.Second,
		})
		if err := redisCache.Ping(ctx); err != nil {
			slog.Warn("decomposition_cache_unavailable", "addr", cfg.RedisAddr, "error", err.Error())
		}
		cache = redisCache
	}

	queryUC, err := NewQueryStack(cfg, stack, cache, traces)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	return &App{
		Config: cfg,
		Queue:  queue,
		Runs:   runs,
		Traces: traces,

		IngestUC:  usecase.NewIngestCorpusUseCase(runs, storage, queue),
		ProcessUC: usecase.NewProcessCorpusUseCase(runs, storage, stack.Parser, stack.Loader),
		QueryUC:   queryUC,

		closeFn: closer(queue, db, redisCache),
	}, nil
}

func closer(queue *nats.Queue, db *sql.DB, cache *redis.DecompositionCache) func() {
	return func() {
		queue.Close()
		if cache != nil {
			_ = cache.Close()
		}
		_ = db.Close()
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = time.Duration(cfg.ResilienceRetryInitialBackoffMS) * time.Millisecond
	out.RetryMaxBackoff = time.Duration(cfg.ResilienceRetryMaxBackoffMS) * time.Millisecond
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	if cfg.ResilienceBreakerFailureRatio > 0 {
		out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	}
	if cfg.ResilienceBreakerOpenSeconds > 0 {
		out.BreakerOpenTimeout = time.Duration(cfg.ResilienceBreakerOpenSeconds) * time.Second
	}
	return out
}

// RetrievalTuning layers the retrieval profile over the built-in defaults.
// RAG_RRF_K applies when the profile leaves rrf_k unset.
func RetrievalTuning(cfg config.Config, profile config.RetrievalProfile) (usecase.StrategyCaps, usecase.FusionConfig) {
	caps := usecase.DefaultStrategyCaps()
	if v := profile.StrategyCaps[usecase.StrategyLexical]; v > 0 {
		caps.Lexical = v
	}
	if v := profile.StrategyCaps[usecase.StrategyArticle]; v > 0 {
		caps.Article = v
	}
	if v := profile.StrategyCaps[usecase.StrategySection]; v > 0 {
		caps.Section = v
	}
	if v := profile.StrategyCaps[usecase.StrategySemantic]; v > 0 {
		caps.Semantic = v
	}

	fusion := usecase.DefaultFusionConfig()
	if cfg.RAGRRFK > 0 {
		fusion.K = cfg.RAGRRFK
	}
	if profile.RRFK > 0 {
		fusion.K = profile.RRFK
	}
	for name, w := range profile.FusionWeights {
		fusion.Weights[name] = w
	}
	for name, c := range profile.FusionCaps {
		fusion.Caps[name] = c
	}
	return caps, fusion
}
