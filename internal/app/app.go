// Package app arma el grafo de dependencias compartido por el servidor HTTP y los CLIs.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"guidance-llm/internal/config"
	"guidance-llm/internal/db"
	"guidance-llm/internal/engine"
	"guidance-llm/internal/llm"
	"guidance-llm/internal/repository"
	"guidance-llm/internal/service"
)

type Options struct {
	// InlineTasks ejecuta las tareas de fondo de forma sincronica (CLIs).
	InlineTasks bool
	// SkipSchema no aplica el esquema embebido al arrancar.
	SkipSchema bool
}

// App contiene los componentes ya cableados.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Registry *prometheus.Registry
	Metrics  *service.Metrics

	Interactions *repository.PgInteractionRepository
	Profiles     *repository.PgProfileRepository
	Templates    *repository.PgTemplateRepository
	Knowledge    *repository.PgKnowledgeRepository
	Modules      *repository.PgModuleRepository

	Cache       service.ResponseCache
	Limiter     service.UserRateLimiter
	Tokens      *service.FeedbackTokenService
	Guidance    *service.GuidanceService
	Recovery    *service.RecoveryChain
	Feedback    *service.FeedbackService
	Personality *service.PersonalityService
	Optimizer   *service.Optimizer

	memCache *service.MemoryResponseCache
	queue    *service.TaskQueue
}

// New conecta Postgres (y Redis si esta configurado) y construye todos los servicios.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if !opts.SkipSchema {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	a := &App{
		Config:       cfg,
		Logger:       logger,
		Pool:         pool,
		Registry:     prometheus.NewRegistry(),
		Interactions: repository.NewPgInteractionRepository(pool),
		Profiles:     repository.NewPgProfileRepository(pool),
		Templates:    repository.NewPgTemplateRepository(pool),
		Knowledge:    repository.NewPgKnowledgeRepository(pool),
		Modules:      repository.NewPgModuleRepository(pool),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = service.NewMetrics(a.Registry)

	if err := SeedTemplates(ctx, a.Templates, logger); err != nil {
		logger.Warn("seed templates failed", zap.Error(err))
	}

	tokenStore := service.NewMemoryFeedbackTokenStore(nil)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(ctxPing).Err()
		cancel()
		if err != nil {
			logger.Warn("redis ping failed, using in-memory cache and token store", zap.Error(err))
			_ = client.Close()
		} else {
			a.Redis = client
			a.Cache = service.NewRedisResponseCache(client, nil, logger)
			tokenStore = service.NewRedisFeedbackTokenStore(client)
			if cfg.GuidanceRateLimitPerMinute > 0 {
				a.Limiter = service.NewRedisRateLimiter(client, time.Minute, cfg.GuidanceRateLimitPerMinute)
			}
		}
	}
	if a.Cache == nil {
		a.memCache = service.NewMemoryResponseCache(nil)
		a.Cache = a.memCache
	}
	if a.Limiter == nil && cfg.GuidanceRateLimitPerMinute > 0 {
		a.Limiter = service.NewMemoryRateLimiter(time.Minute, cfg.GuidanceRateLimitPerMinute)
	}
	a.Tokens = service.NewFeedbackTokenService(cfg.FeedbackTokenSecret, cfg.FeedbackTokenTTL(), tokenStore, nil)

	var tasks service.TaskRunner
	if opts.InlineTasks {
		tasks = service.NewInlineRunner(cfg.TaskMaxAttempts, logger)
	} else {
		a.queue = service.NewTaskQueue(service.TaskQueueOptions{
			Workers:     cfg.TaskWorkers,
			Size:        cfg.TaskQueueSize,
			MaxAttempts: cfg.TaskMaxAttempts,
			Logger:      logger,
			Metrics:     a.Metrics,
		})
		tasks = a.queue
	}

	primary := llm.NewHTTPClient(llm.ClientOptions{
		BaseURL:           cfg.LLMBaseURL,
		APIKey:            cfg.LLMAPIKey,
		Model:             cfg.LLMModel,
		EmbedModel:        cfg.LLMEmbedModel,
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
		Logger:            logger,
	})
	fallback := primary.WithModel(cfg.LLMFallbackModel)
	var alternative llm.Provider
	if cfg.AltEmbedBaseURL != "" {
		alternative = llm.NewHTTPClient(llm.ClientOptions{
			BaseURL:           cfg.AltEmbedBaseURL,
			APIKey:            cfg.AltEmbedAPIKey,
			EmbedModel:        cfg.LLMEmbedModel,
			RequestsPerSecond: cfg.LLMRequestsPerSecond,
			Logger:            logger,
		})
	}
	embeddings := llm.NewEmbeddingChain(primary, alternative, logger)

	engines := []engine.Engine{
		engine.NewVectorEngine(a.Knowledge),
		engine.NewKnowledgeGraphEngine(a.Knowledge),
		engine.NewModuleAnalysisEngine(a.Modules),
		engine.NewGenerativeEngine(primary),
		engine.NewMissionSimulationEngine(primary),
	}

	personality := service.NewPersonalityEngine(
		service.NewTemplateSelector(a.Templates, logger),
		service.NewToneTransformer(nil),
	)

	a.Guidance = service.NewGuidanceService(service.GuidanceDeps{
		Cache:        a.Cache,
		Interactions: a.Interactions,
		Profiles:     a.Profiles,
		UserState:    service.NewUserStateAnalyzer(a.Interactions, logger),
		History:      service.NewHistoryLoader(a.Interactions, logger),
		Analyzer:     service.NewQueryAnalyzer(primary, embeddings, logger),
		Engines:      service.NewEngineRunner(engines, cfg.EngineTimeout(), cfg.StrictEngineJoin, logger, a.Metrics),
		Personality:  personality,
		Modules:      service.NewModuleSuggester(a.Modules, logger),
		Tokens:       a.Tokens,
		Tasks:        tasks,
		Hooks:        []service.NamedHook{service.AnalyticsLogHook(logger), service.TemplateUsageHook(a.Metrics)},
		Metrics:      a.Metrics,
		Logger:       logger,
	}, service.GuidanceOptions{
		CacheTTL:                 cfg.CacheTTL(),
		CacheConfidenceThreshold: cfg.CacheConfidenceThreshold,
	})

	a.Recovery = service.NewRecoveryChain(service.RecoveryDeps{
		Primary:      a.Guidance,
		Fallback:     fallback,
		Knowledge:    a.Knowledge,
		Interactions: a.Interactions,
		Tokens:       a.Tokens,
		Tasks:        tasks,
		Metrics:      a.Metrics,
		Logger:       logger,
	})

	a.Feedback = service.NewFeedbackService(a.Interactions, a.Tokens, nil, a.Metrics, logger)
	a.Personality = service.NewPersonalityService(a.Profiles, nil, logger)
	a.Optimizer = service.NewOptimizer(a.Interactions, a.Templates, a.Profiles, nil, a.Metrics, logger)
	return a, nil
}

// Start arranca los workers de fondo y el barrido de la cache en memoria.
func (a *App) Start() {
	if a.queue != nil {
		a.queue.Start()
	}
	if a.memCache != nil {
		a.memCache.StartSweeper(a.Config.CacheSweepInterval())
	}
}

// Close drena la cola y libera conexiones.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.queue != nil {
		if err := a.queue.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("task queue: %w", err))
		}
	}
	if a.memCache != nil {
		a.memCache.StopSweeper()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	a.Pool.Close()
	return errors.Join(errs...)
}
