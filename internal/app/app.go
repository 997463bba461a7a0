// Package app wires the enrichment service together and manages its
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/enrichment/internal/api"
	"github.com/jonesrussell/north-cloud/enrichment/internal/cache"
	"github.com/jonesrussell/north-cloud/enrichment/internal/catalog"
	"github.com/jonesrussell/north-cloud/enrichment/internal/config"
	"github.com/jonesrussell/north-cloud/enrichment/internal/database"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/metrics"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider/apollo"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider/clearbit"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider/hunter"
	"github.com/jonesrussell/north-cloud/enrichment/internal/queue"
	"github.com/jonesrussell/north-cloud/enrichment/internal/service"
	"github.com/jonesrussell/north-cloud/enrichment/internal/sse"
	"github.com/jonesrussell/north-cloud/enrichment/internal/waterfall"
	"github.com/jonesrussell/north-cloud/enrichment/internal/worker"
)

const (
	shutdownTimeout     = 10 * time.Second
	gaugeSampleInterval = 15 * time.Second
)

// App holds the wired service components.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	metrics *metrics.Metrics

	db       *sqlx.DB
	streams  *queue.StreamsClient
	broker   sse.Broker
	producer *queue.Producer
	consumer *queue.Consumer
	pool     *worker.Pool
	server   *http.Server
}

// New builds the full service from configuration.
func New(cfg *config.Config, log logger.Logger) (*App, error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	streams, err := queue.NewStreamsClient(queue.StreamsConfig{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	cat, err := catalog.New(cfg.Providers)
	if err != nil {
		db.Close()
		streams.Close()
		return nil, fmt.Errorf("provider catalog: %w", err)
	}

	jobRepo := database.NewJobRepository(db)
	credRepo := database.NewCredentialRepository(db)
	responseCache := cache.New(streams.Client(), cfg.Redis.Prefix)

	registry := provider.NewRegistry()
	for id, ctor := range map[string]provider.Constructor{
		hunter.ProviderID:   hunter.New,
		clearbit.ProviderID: clearbit.New,
		apollo.ProviderID:   apollo.New,
	} {
		if err := registry.Register(id, ctor); err != nil {
			db.Close()
			streams.Close()
			return nil, fmt.Errorf("register provider: %w", err)
		}
	}

	m := metrics.New()

	factory := provider.NewFactory(registry, cat, provider.Deps{
		Credentials: credRepo,
		Cache:       responseCache,
		Logger:      log,
		Metrics:     m,
	}, log)
	// Credential changes drop the cached client so the next call
	// re-authenticates with the new secret.
	factory.WatchCredentials(credRepo)

	broker := sse.NewBroker(log)

	orchestrator := waterfall.NewOrchestrator(factory, log)

	producer := queue.NewProducer(streams, 0)
	svc := service.New(jobRepo, producer, factory, orchestrator, cat, log, service.Config{
		MaxBatch: cfg.Workers.MaxBatchSize,
		Metrics:  m,
	})

	hostname, _ := os.Hostname()
	consumer, err := queue.NewConsumer(streams, queue.ConsumerConfig{
		ConsumerID: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	})
	if err != nil {
		db.Close()
		streams.Close()
		return nil, fmt.Errorf("queue consumer: %w", err)
	}

	processor := worker.NewProcessor(jobRepo, factory, broker, m, log, cfg.Workers.PersistEvery)
	pool := worker.NewPool(consumer, processor, log, m, cfg.Workers.Concurrency)

	router := api.NewRouter(svc, credRepo, cat, broker, db, streams.Client(), log, cfg.Debug)
	server := router.NewServer(cfg.Server.Address)

	return &App{
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		db:       db,
		streams:  streams,
		broker:   broker,
		producer: producer,
		consumer: consumer,
		pool:     pool,
		server:   server,
	}, nil
}

// Run starts everything and blocks until ctx is cancelled, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.consumer.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize consumer groups: %w", err)
	}
	if err := a.broker.Start(ctx); err != nil {
		return fmt.Errorf("start SSE broker: %w", err)
	}
	if err := a.pool.Start(ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}
	go a.sampleGauges(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", logger.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.shutdown()
		return fmt.Errorf("http server: %w", err)
	}

	a.shutdown()
	return nil
}

// sampleGauges periodically refreshes the gauges that reflect external
// state: stream depth per priority and connected SSE clients.
func (a *App) sampleGauges(ctx context.Context) {
	ticker := time.NewTicker(gaugeSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, priority := range queue.AllPriorities() {
			depth, err := a.producer.QueueDepth(ctx, priority)
			if err != nil {
				continue
			}
			a.metrics.QueueDepth.WithLabelValues(priority.String()).Set(float64(depth))
		}
		a.metrics.SSEClients.Set(float64(a.broker.ClientCount()))
	}
}

func (a *App) shutdown() {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http server shutdown", logger.Error(err))
	}

	a.pool.Stop()
	if err := a.broker.Stop(); err != nil {
		a.logger.Warn("broker shutdown", logger.Error(err))
	}
	if err := a.streams.Close(); err != nil {
		a.logger.Warn("redis close", logger.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close", logger.Error(err))
	}

	_ = a.logger.Sync()
}
