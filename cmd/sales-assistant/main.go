package main

// @title           Sales Assistant Knowledge API
// @version         1.0
// @description     Ingests sales literature into a concept base and generates cited sales recommendations.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/Rikshjoeriks/sales-assistant/docs"
	"github.com/Rikshjoeriks/sales-assistant/internal/adapters/driven/ai"
	"github.com/Rikshjoeriks/sales-assistant/internal/adapters/driven/memory"
	"github.com/Rikshjoeriks/sales-assistant/internal/adapters/driven/postgres"
	postgresqueue "github.com/Rikshjoeriks/sales-assistant/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/Rikshjoeriks/sales-assistant/internal/adapters/driven/queue/redis"
	redisadapter "github.com/Rikshjoeriks/sales-assistant/internal/adapters/driven/redis"
	"github.com/Rikshjoeriks/sales-assistant/internal/adapters/driving/http"
	"github.com/Rikshjoeriks/sales-assistant/internal/chunking"
	"github.com/Rikshjoeriks/sales-assistant/internal/config"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/services"
	"github.com/Rikshjoeriks/sales-assistant/internal/extraction"
	"github.com/Rikshjoeriks/sales-assistant/internal/runtime"
	"github.com/Rikshjoeriks/sales-assistant/internal/worker"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("sales-assistant failed", "error", err)
		os.Exit(1)
	}
}

// backends holds the driven adapters chosen by configuration
type backends struct {
	sources         driven.SourceStore
	concepts        driven.ConceptStore
	contexts        driven.ContextStore
	recommendations driven.RecommendationStore
	index           driven.VectorIndex
	queue           driven.TaskQueue
	lock            driven.DistributedLock

	checks  map[string]http.Pinger
	closers []func() error
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func run() error {
	// RUN_MODE can be overridden by the first argument
	if len(os.Args) > 1 {
		os.Setenv("RUN_MODE", os.Args[1])
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	docs.SwaggerInfo.Version = version
	logger.Info("sales-assistant starting", "version", version, "mode", cfg.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	// ===== AI services =====
	runtimeConfig := domain.NewRuntimeConfig(cfg.Storage.Backend, cfg.Storage.VectorIndex)
	aiServices := runtime.NewServices(runtimeConfig, cfg.Storage.VectorDimensions)
	defer aiServices.Close()

	factory := ai.NewFactory(logger)
	embedder, err := factory.CreateEmbeddingService(&cfg.Embedding)
	if err != nil {
		return fmt.Errorf("create embedding service: %w", err)
	}
	if err := aiServices.ValidateAndSetEmbedding(ctx, embedder, cfg.Embedding.Strategy); err != nil {
		return fmt.Errorf("embedding service: %w", err)
	}

	completer, err := factory.CreateCompletionService(&cfg.LLM)
	if err != nil {
		return fmt.Errorf("create completion service: %w", err)
	}
	if completer == nil {
		logger.Warn("no completion provider configured, recommendations are disabled")
	} else if err := aiServices.ValidateAndSetCompletion(ctx, completer); err != nil {
		logger.Warn("completion provider ping failed", "model", completer.Model(), "error", err)
		// The failed ping closed completer. A fresh client is installed
		// anyway; the completion client retries per request.
		if completer, err = factory.CreateCompletionService(&cfg.LLM); err != nil {
			return fmt.Errorf("create completion service: %w", err)
		}
		aiServices.SetCompletionService(completer)
	}

	logger.Info("runtime config",
		"storage", runtimeConfig.StorageBackend,
		"vector_index", runtimeConfig.VectorBackend,
		"queue", cfg.Storage.Queue,
		"lock", cfg.Storage.Lock,
		"embedding_strategy", runtimeConfig.EmbeddingStrategy(),
		"completion", runtimeConfig.CompletionAvailable())

	// ===== Text pipeline =====
	chunkCfg := chunking.DefaultConfig()
	chunkCfg.TargetSize = cfg.Chunking.Size
	chunkCfg.Overlap = cfg.Chunking.Overlap
	chunker, err := chunking.NewChunker(chunkCfg)
	if err != nil {
		return fmt.Errorf("create chunker: %w", err)
	}
	rules, err := extraction.LoadRuleset(cfg.Extraction.RulesFile)
	if err != nil {
		return fmt.Errorf("load extraction rules: %w", err)
	}

	// ===== Core services =====
	ingestion := services.NewIngestionOrchestrator(services.IngestionConfig{
		SourceStore:      b.sources,
		ConceptStore:     b.concepts,
		Index:            b.index,
		Lock:             b.lock,
		Chunker:          chunker,
		Extractor:        extraction.NewExtractor(rules),
		Services:         aiServices,
		Queue:            b.queue,
		Normaliser:       chunking.NewWhitespaceNormalizer(),
		Filter:           extraction.NewDeduplicator(cfg.Extraction.DedupeMinLength),
		EmbedBatchSize:   cfg.Ingestion.EmbedBatchSize,
		EmbedConcurrency: cfg.Ingestion.EmbedConcurrency,
		LockTTL:          cfg.Ingestion.LockTTL,
		LockWait:         cfg.Ingestion.LockWait,
		Logger:           logger.With("component", "ingestion"),
	})

	retrieval := services.NewRetrievalService(services.RetrievalConfig{
		ConceptStore:   b.concepts,
		SourceStore:    b.sources,
		Index:          b.index,
		Services:       aiServices,
		ConflictPolicy: cfg.Retrieval.ConflictPolicy,
		MinScore:       cfg.Retrieval.MinScore,
		Logger:         logger.With("component", "retrieval"),
	})

	denylist := cfg.Synthesis.Denylist
	if denylist == nil {
		denylist = services.DefaultDenylist
	}
	completionOpts := cfg.CompletionOptions()
	synthesis := services.NewSynthesisService(services.SynthesisConfig{
		ContextStore:        b.contexts,
		RecommendationStore: b.recommendations,
		Retrieval:           retrieval,
		PromptBuilder:       services.NewPromptBuilder(),
		Completion: services.NewCompletionClient(services.CompletionClientConfig{
			Services:          aiServices,
			MaxAttempts:       cfg.Completion.MaxAttempts,
			BaseDelay:         cfg.Completion.BaseDelay,
			MaxDelay:          cfg.Completion.MaxDelay,
			CallTimeout:       cfg.Completion.CallTimeout,
			RequestsPerSecond: cfg.Completion.RequestsPerSecond,
			Burst:             cfg.Completion.Burst,
			Logger:            logger.With("component", "completion"),
		}),
		Guardrails:          services.NewGuardrails(denylist),
		MinDescriptionWords: cfg.Synthesis.MinDescriptionWords,
		CompletionOptions:   &completionOpts,
		Logger:              logger.With("component", "synthesis"),
	})

	// ===== Run =====
	ingestWorker := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      b.queue,
		Ingester:       ingestion,
		Logger:         logger.With("component", "worker"),
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: cfg.Worker.DequeueTimeout,
	})

	switch cfg.Mode {
	case config.ModeAPI:
		return runAPI(ctx, cfg, logger, ingestion, retrieval, synthesis, b.checks)

	case config.ModeWorker:
		return runWorker(ctx, logger, ingestWorker)

	default: // config.ModeAll
		b.checks["worker"] = ingestWorker
		errCh := make(chan error, 1)
		go func() { errCh <- runWorker(ctx, logger, ingestWorker) }()
		apiErr := runAPI(ctx, cfg, logger, ingestion, retrieval, synthesis, b.checks)
		stop()
		if werr := <-errCh; apiErr == nil {
			apiErr = werr
		}
		return apiErr
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{checks: map[string]http.Pinger{}}
	st := cfg.Storage

	// ===== PostgreSQL =====
	var db *postgres.DB
	if st.Backend == config.BackendPostgres || st.Queue == config.BackendPostgres || st.Lock == config.BackendPostgres {
		logger.Info("connecting to PostgreSQL")
		pgCfg := postgres.DefaultConfig(st.DatabaseURL)
		if st.MaxOpenConns > 0 {
			pgCfg.MaxOpenConns = st.MaxOpenConns
		}
		if st.MaxIdleConns > 0 {
			pgCfg.MaxIdleConns = st.MaxIdleConns
		}
		if st.ConnMaxLifetime > 0 {
			pgCfg.ConnMaxLifetime = st.ConnMaxLifetime
		}
		if st.ConnMaxIdleTime > 0 {
			pgCfg.ConnMaxIdleTime = st.ConnMaxIdleTime
		}
		var err error
		db, err = postgres.Connect(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		if err := db.InitSchema(ctx); err != nil {
			b.close()
			return nil, err
		}
		b.checks["database"] = db
	}

	// ===== Redis (optional) =====
	var redisClient *redis.Client
	if st.RedisURL != "" {
		logger.Info("connecting to Redis")
		opts, err := redis.ParseURL(st.RedisURL)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		b.closers = append(b.closers, redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	// ===== Stores =====
	if st.Backend == config.BackendPostgres {
		b.sources = postgres.NewSourceStore(db)
		b.concepts = postgres.NewConceptStore(db)
		b.contexts = postgres.NewContextStore(db)
		b.recommendations = postgres.NewRecommendationStore(db)
	} else {
		b.sources = memory.NewSourceStore()
		b.concepts = memory.NewConceptStore()
		b.contexts = memory.NewContextStore()
		b.recommendations = memory.NewRecommendationStore()
	}

	if st.VectorIndex == config.BackendPostgres {
		if err := db.VerifyDimensions(ctx, st.VectorDimensions); err != nil {
			b.close()
			return nil, err
		}
		b.index = postgres.NewVectorIndex(db, st.VectorDimensions)
	} else {
		b.index = memory.NewVectorIndex(st.VectorDimensions)
	}

	// ===== Task queue =====
	switch st.Queue {
	case config.BackendRedis:
		hostname, _ := os.Hostname()
		q, err := redisqueue.NewQueue(ctx, redisClient, st.RedisPrefix, fmt.Sprintf("worker-%s-%d", hostname, os.Getpid()))
		if err != nil {
			b.close()
			return nil, fmt.Errorf("create task queue: %w", err)
		}
		b.queue = q
	case config.BackendPostgres:
		b.queue = postgresqueue.NewQueue(db.DB)
	default:
		b.queue = memory.NewTaskQueue()
	}
	b.closers = append(b.closers, b.queue.Close)
	b.checks["queue"] = b.queue

	// ===== Distributed lock =====
	switch st.Lock {
	case config.BackendRedis:
		b.lock = redisadapter.NewLock(redisClient, st.RedisPrefix+"lock:")
	case config.BackendPostgres:
		b.lock = postgres.NewAdvisoryLock(db)
	default:
		b.lock = memory.NewLock()
	}
	b.checks["lock"] = b.lock

	return b, nil
}

func runAPI(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	ingestion *services.IngestionOrchestrator,
	retrieval *services.RetrievalService,
	synthesis *services.SynthesisService,
	checks map[string]http.Pinger,
) error {
	server := http.NewServer(http.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		Version:        version,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         logger.With("component", "http"),
	}, ingestion, retrieval, synthesis, checks)

	return server.Start(ctx)
}

// runWorker processes ingest tasks until ctx is cancelled
func runWorker(ctx context.Context, logger *slog.Logger, w *worker.Worker) error {
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	<-ctx.Done()

	logger.Info("stopping worker")
	w.Stop()
	return nil
}
