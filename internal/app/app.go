// Package app initializes and holds the long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/leadgenhq/leadgen-engine/internal/api"
	"github.com/leadgenhq/leadgen-engine/internal/broadcast"
	"github.com/leadgenhq/leadgen-engine/internal/broadcast/sinks"
	"github.com/leadgenhq/leadgen-engine/internal/clock/system"
	"github.com/leadgenhq/leadgen-engine/internal/config"
	"github.com/leadgenhq/leadgen-engine/internal/extract"
	"github.com/leadgenhq/leadgen-engine/internal/id/uuid"
	"github.com/leadgenhq/leadgen-engine/internal/leads"
	"github.com/leadgenhq/leadgen-engine/internal/logging"
	"github.com/leadgenhq/leadgen-engine/internal/pipeline"
	"github.com/leadgenhq/leadgen-engine/internal/queue"
	"github.com/leadgenhq/leadgen-engine/internal/storage"
	"github.com/leadgenhq/leadgen-engine/internal/storage/gcs"
	"github.com/leadgenhq/leadgen-engine/internal/storage/local"
	"github.com/leadgenhq/leadgen-engine/internal/storage/memory"
	"github.com/leadgenhq/leadgen-engine/internal/storage/postgres"
)

// App holds all the shared, long-lived services. It is initialized once at
// startup and fails fast if any critical service cannot be constructed.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Projects     leads.ProjectStore
	Leads        leads.LeadStore
	Hub          *broadcast.Hub
	WS           *api.WSHub
	Queue        *queue.Service
	Orchestrator *pipeline.Orchestrator
	Canceller    *pipeline.Canceller
	Server       *api.Server

	registry  *prometheus.Registry
	pool      *pgxpool.Pool
	gcsClient *gcsclient.Client
	extractor leads.Extractor
}

// New builds the full service graph from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.initStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	snapshots, err := a.initSnapshots(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initExtractor(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initHub(ctx); err != nil {
		a.Close()
		return nil, err
	}

	clk := system.New()
	sleeper := system.NewSleeper()
	idGen := uuid.NewUUIDGenerator()

	batcher := pipeline.NewBatcher(pipeline.BatcherConfig{
		BatchSize:  cfg.Enrich.BatchSize,
		BatchDelay: cfg.BatchDelay(),
	}, a.extractor, a.Hub, sleeper, clk, logger)

	a.Orchestrator = pipeline.NewOrchestrator(a.Projects, a.Leads, a.extractor,
		batcher, a.Hub, snapshots, clk, logger)

	a.Queue = queue.NewService(queue.Config{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		Queue:     cfg.Queue.Name,
		Retention: cfg.QueueRetention(),
	}, logger)

	a.Canceller = pipeline.NewCanceller(a.Projects, a.Queue, a.Hub, clk, logger)

	a.Server = api.NewServer(a.Projects, a.Leads, a.Queue, a.Canceller,
		idGen, clk, a.WS, a.registry, cfg, logger)

	logger.Info("application services initialized")
	return a, nil
}

func (a *App) initStores(ctx context.Context) error {
	if a.Config.DB.DSN == "" {
		a.Logger.Info("using in-memory stores")
		a.Projects = memory.NewProjectStore()
		a.Leads = memory.NewLeadStore()
		return nil
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:      a.Config.DB.DSN,
		MaxConns: int32(a.Config.DB.MaxConns),
	})
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	projects, err := postgres.NewProjectStore(pool)
	if err != nil {
		return fmt.Errorf("init project store: %w", err)
	}
	store, err := postgres.NewLeadStore(pool)
	if err != nil {
		return fmt.Errorf("init lead store: %w", err)
	}
	a.Logger.Info("connected to postgres")
	a.Projects = projects
	a.Leads = store
	return nil
}

func (a *App) initSnapshots(ctx context.Context) (storage.SnapshotStore, error) {
	switch {
	case a.Config.Snapshots.GCSBucket != "":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		store, err := gcs.New(client, gcs.Config{Bucket: a.Config.Snapshots.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs snapshots: %w", err)
		}
		a.Logger.Info("archiving snapshots to GCS",
			zap.String("bucket", a.Config.Snapshots.GCSBucket))
		return store, nil
	case a.Config.Snapshots.LocalDir != "":
		store, err := local.New(local.Config{BaseDir: a.Config.Snapshots.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local snapshots: %w", err)
		}
		a.Logger.Info("archiving snapshots locally",
			zap.String("dir", a.Config.Snapshots.LocalDir))
		return store, nil
	default:
		return storage.NoOpSnapshotStore{}, nil
	}
}

func (a *App) initExtractor() error {
	if !a.Config.Extractor.Enabled {
		a.Logger.Info("extractor disabled, using no-op extractor")
		a.extractor = extract.NoOp{}
		return nil
	}

	maps, err := extract.NewMapsExtractor(extract.MapsConfig{
		UserAgent:   a.Config.Extractor.UserAgent,
		NavTimeout:  time.Duration(a.Config.Extractor.NavTimeoutSeconds) * time.Second,
		ScrollDelay: time.Duration(a.Config.Extractor.ScrollDelaySeconds) * time.Second,
		MaxScrolls:  a.Config.Extractor.MaxScrolls,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("init maps extractor: %w", err)
	}
	enricher := extract.NewWebsiteEnricher(extract.WebsiteConfig{
		UserAgent:    a.Config.Extractor.UserAgent,
		Timeout:      time.Duration(a.Config.Enrich.TimeoutSeconds) * time.Second,
		ProbeTimeout: time.Duration(a.Config.Enrich.ProbeTimeoutSeconds) * time.Second,
		DomainQPS:    a.Config.Enrich.DomainQPS,
	}, a.Logger)
	a.extractor = extract.NewAdapter(maps, enricher)
	return nil
}

func (a *App) initHub(ctx context.Context) error {
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	a.WS = api.NewWSHub(a.Logger)

	sinkList := []broadcast.Sink{
		sinks.NewLogSink(a.Logger),
		promSink,
		a.WS,
	}
	if a.Config.PubSub.ProjectID != "" {
		ps, err := sinks.NewPubSubSink(ctx, a.Config.PubSub.ProjectID, a.Config.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("init pubsub sink: %w", err)
		}
		a.Logger.Info("publishing terminal events to pubsub",
			zap.String("topic", a.Config.PubSub.TopicName))
		sinkList = append(sinkList, ps)
	}

	a.Hub = broadcast.NewHub(broadcast.Config{
		BaseContext: ctx,
		Logger:      a.Logger,
	}, sinkList...)
	return nil
}

// Run starts the HTTP server and the queue worker, blocking until ctx ends or
// either component fails. Shutdown is graceful: admission stops first, then
// the in-flight job drains, then the event hub flushes.
func (a *App) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		a.Logger.Info("http server listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := a.Queue.Start(a.Orchestrator); err != nil {
			errCh <- fmt.Errorf("queue worker: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.Logger.Error("component failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("http shutdown failed", zap.Error(err))
	}
	a.Queue.Shutdown()
	if err := a.Hub.Close(shutdownCtx); err != nil {
		a.Logger.Warn("hub close failed", zap.Error(err))
	}
	return runErr
}

// Close releases connections and flushes the logger. Safe to call on a
// partially constructed App.
func (a *App) Close() {
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			a.Logger.Warn("queue close failed", zap.Error(err))
		}
	}
	if closer, ok := a.extractor.(interface{ Close(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := closer.Close(ctx); err != nil {
			a.Logger.Warn("extractor close failed", zap.Error(err))
		}
		cancel()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
