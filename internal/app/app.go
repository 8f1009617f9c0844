package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sikiCompany/catalog-api/internal/cache"
	"github.com/sikiCompany/catalog-api/internal/config"
	"github.com/sikiCompany/catalog-api/internal/event"
	handler "github.com/sikiCompany/catalog-api/internal/handler/http"
	"github.com/sikiCompany/catalog-api/internal/repository/postgres"
	"github.com/sikiCompany/catalog-api/internal/search"
	esengine "github.com/sikiCompany/catalog-api/internal/search/elasticsearch"
	"github.com/sikiCompany/catalog-api/internal/search/memory"
	"github.com/sikiCompany/catalog-api/internal/service"
	"github.com/sikiCompany/catalog-api/internal/storage/local"
	"github.com/sikiCompany/catalog-api/internal/worker"
	"github.com/sikiCompany/catalog-api/pkg/database"
	"github.com/sikiCompany/catalog-api/pkg/health"
	pkgkafka "github.com/sikiCompany/catalog-api/pkg/kafka"
	"github.com/sikiCompany/catalog-api/pkg/tracing"
)

// App wires together all dependencies and runs the catalog API: the HTTP
// server and the index sync worker share one process.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	redis      *redis.Client
	producer   *pkgkafka.Producer
	dlq        *pkgkafka.DLQProducer
	indexer    *worker.Indexer
	searchSvc  *service.SearchService
	httpServer *http.Server

	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	// Tracing.
	if cfg.OTELEnabled {
		tcfg := tracing.DefaultConfig("catalog-api")
		tcfg.Enabled = true
		tcfg.Environment = cfg.Environment
		tcfg.OTLPEndpoint = cfg.OTELEndpoint
		tcfg.SampleRate = cfg.OTELSampleRate
		shutdown, err := tracing.InitTracer(ctx, tcfg)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		a.tracerShutdown = shutdown
	}

	// PostgreSQL.
	pool, err := database.NewPostgresPool(ctx, cfg.PostgresConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
		a.close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}
	prometheus.MustRegister(database.NewPoolStatsCollector(pool, cfg.PostgresDB))

	// Redis.
	redisClient, err := database.NewRedisClient(ctx, cfg.RedisConfig())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = redisClient

	// Elasticsearch, with the in-memory engine as a development fallback.
	var eng search.Engine
	esEng, err := esengine.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
	if err != nil {
		if cfg.Environment != "development" {
			a.close()
			return nil, fmt.Errorf("init elasticsearch: %w", err)
		}
		logger.Warn("elasticsearch unavailable, using in-memory search engine",
			slog.String("error", err.Error()),
		)
		eng = memory.New()
	} else {
		eng = esEng
		logger.Info("elasticsearch engine initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
	}

	// Kafka.
	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)

	// Image storage.
	images, err := local.New(cfg.ImageDir, cfg.ImageBaseURL)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init image store: %w", err)
	}

	// Services.
	repo := postgres.NewProductRepository(pool)
	responseCache := cache.New(redisClient, logger)
	events := event.NewProducer(a.producer, logger)

	catalogService := service.NewCatalogService(repo, responseCache, events, images, logger)
	searchService := service.NewSearchService(eng, repo, responseCache, logger)
	a.searchSvc = searchService

	// Index sync worker.
	a.indexer = worker.NewIndexer(cfg.KafkaBrokers, repo, eng, a.dlq, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", responseCache.Ping)
	healthHandler.Register("kafka", a.producer.Ping)
	// The search engine is deliberately absent: the API stays ready while
	// search is degraded.

	// HTTP server.
	router := handler.NewRouter(catalogService, searchService, healthHandler, logger)
	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and the index sync worker, blocking until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		if err := a.indexer.Run(ctx); err != nil {
			errCh <- fmt.Errorf("index sync worker: %w", err)
		}
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Reindex rebuilds the search index from the database and returns. Used by
// the -reindex flag instead of serving traffic.
func (a *App) Reindex(ctx context.Context) error {
	defer a.close()
	defer func() { _ = a.producer.Close(); _ = a.dlq.Close() }()

	return a.searchSvc.Reindex(ctx)
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.indexer.Close(); err != nil {
		a.logger.Error("indexer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.producer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.dlq.Close(); err != nil {
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	a.close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// close releases storage connections. Safe on partially initialized apps.
func (a *App) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
