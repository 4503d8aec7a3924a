// Package server builds the application graph from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/adapters"
	"github.com/JakeFAU/news-crawler/internal/api"
	"github.com/JakeFAU/news-crawler/internal/clock/system"
	"github.com/JakeFAU/news-crawler/internal/config"
	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/dispatcher"
	"github.com/JakeFAU/news-crawler/internal/fetcher/archive"
	collyfetcher "github.com/JakeFAU/news-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/news-crawler/internal/htmldoc"
	"github.com/JakeFAU/news-crawler/internal/id/uuid"
	"github.com/JakeFAU/news-crawler/internal/indexer"
	"github.com/JakeFAU/news-crawler/internal/indexer/elasticsearch"
	"github.com/JakeFAU/news-crawler/internal/logging"
	"github.com/JakeFAU/news-crawler/internal/metrics"
	"github.com/JakeFAU/news-crawler/internal/orchestrator"
	gcppublisher "github.com/JakeFAU/news-crawler/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/news-crawler/internal/queue/memory"
	"github.com/JakeFAU/news-crawler/internal/registry"
	"github.com/JakeFAU/news-crawler/internal/scheduler"
	gcsstorage "github.com/JakeFAU/news-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/news-crawler/internal/storage/local"
	memoryStorage "github.com/JakeFAU/news-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/news-crawler/internal/storage/postgres"
	"github.com/JakeFAU/news-crawler/internal/telemetry"
	"github.com/JakeFAU/news-crawler/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// jobStore is what the orchestrator writes and the API reads.
type jobStore interface {
	crawler.JobStore
	crawler.JobLister
}

// stores groups the persistence backends selected by storage.backend.
type stores struct {
	sources   crawler.SourceStore
	campaigns crawler.CampaignStore
	articles  crawler.ArticleStore
	jobs      jobStore
}

// App contains the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	clock  crawler.Clock
	stores stores
	checks map[string]api.Check

	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	queue        *queueMemory.Queue
	dispatch     *dispatcher.Dispatcher
	scheduler    *scheduler.Scheduler
	apiServer    *api.Server

	indexer      *indexer.Indexer
	indexSignals *indexer.ChannelQueue
	subscriber   *gcppublisher.Subscriber

	pg              *pgstore.Store
	storage         *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	tracerShutdown  func(context.Context) error
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("snapshots", cfg.Snapshot.Enabled),
		zap.Bool("index", cfg.Index.Enabled),
	)
	return &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		checks: make(map[string]api.Check),
	}, nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	if err := app.build(ctx); err != nil {
		app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{ServiceName: logging.ServiceName})
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracerShutdown = shutdown
	metrics.Init()

	a.logger.Info("building application dependencies")
	if err := a.setupStores(ctx); err != nil {
		return err
	}
	fetcher, err := a.setupFetcher(ctx)
	if err != nil {
		return err
	}
	a.registry = a.setupRegistry(fetcher)

	index, err := a.setupIndex(ctx)
	if err != nil {
		return err
	}

	a.orchestrator = orchestrator.New(orchestrator.Deps{
		Sources:  a.stores.sources,
		Articles: a.stores.articles,
		Jobs:     a.stores.jobs,
		Index:    index,
		Resolver: a.registry,
		IDs:      uuid.NewUUIDGenerator(),
		Clock:    a.clock,
	}, a.logger)

	a.queue = queueMemory.NewQueue(a.cfg.Crawler.QueueDepth)
	a.dispatch = a.setupDispatcher()

	if a.cfg.Crawler.SchedulerEnabled {
		a.scheduler = scheduler.New(
			a.cfg.Crawler.Schedule,
			a.stores.sources,
			a.stores.campaigns,
			a.dispatch,
			a.clock,
			a.logger,
		)
	}

	a.apiServer = api.NewServer(api.Deps{
		Jobs:      a.stores.jobs,
		Sources:   a.stores.sources,
		Articles:  a.stores.articles,
		Submitter: a.dispatch,
		Checks:    a.checks,
	}, *a.cfg, a.logger.Named("api"))
	return nil
}

func (a *App) setupStores(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case config.BackendPostgres:
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:             a.cfg.DB.DSN,
			MaxConns:        a.cfg.DB.MaxConns,
			MinConns:        a.cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(a.cfg.DB.ConnLifetimeSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("postgres store init failed: %w", err)
		}
		a.pg = store
		if a.cfg.DB.Migrate {
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("postgres migrate failed: %w", err)
			}
			a.logger.Info("postgres schema applied")
		}
		if err := seedCatalog(ctx, store, a.cfg.Sources, a.cfg.Campaigns); err != nil {
			return err
		}
		a.stores = stores{sources: store, campaigns: store, articles: store, jobs: store}
		a.checks["postgres"] = store.Ping
		a.logger.Info("using postgres storage backend",
			zap.Int("sources", len(a.cfg.Sources)),
			zap.Int("campaigns", len(a.cfg.Campaigns)),
		)
	default:
		catalog := memoryStorage.NewCatalog(a.cfg.Sources, a.cfg.Campaigns)
		a.stores = stores{
			sources:   catalog,
			campaigns: catalog,
			articles:  memoryStorage.NewArticleStore(nil),
			jobs:      memoryStorage.NewJobStore(),
		}
		a.logger.Info("using in-memory storage backend",
			zap.Int("sources", len(a.cfg.Sources)),
			zap.Int("campaigns", len(a.cfg.Campaigns)),
		)
	}
	return nil
}

type catalogWriter interface {
	UpsertSource(ctx context.Context, src crawler.Source) error
	UpsertCampaign(ctx context.Context, c crawler.Campaign) error
}

// seedCatalog writes configured sources and campaigns so config stays the
// source of truth for the catalog.
func seedCatalog(ctx context.Context, w catalogWriter, sources []crawler.Source, campaigns []crawler.Campaign) error {
	for _, src := range sources {
		if err := w.UpsertSource(ctx, src); err != nil {
			return fmt.Errorf("seed source %s: %w", src.ID, err)
		}
	}
	for _, c := range campaigns {
		if err := w.UpsertCampaign(ctx, c); err != nil {
			return fmt.Errorf("seed campaign %s: %w", c.ID, err)
		}
	}
	return nil
}

func (a *App) setupFetcher(ctx context.Context) (crawler.Fetcher, error) {
	var fetcher crawler.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:    a.cfg.Crawler.UserAgent,
		Timeout:      a.cfg.HTTP.Timeout(),
		MaxBodyBytes: a.cfg.HTTP.MaxBodyBytes,
	})
	a.logger.Info("using colly fetcher", zap.String("user_agent", a.cfg.Crawler.UserAgent))
	if !a.cfg.Snapshot.Enabled {
		return fetcher, nil
	}
	blobs, err := a.setupSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	return archive.New(fetcher, blobs, a.cfg.Snapshot.Prefix, a.logger), nil
}

func (a *App) setupSnapshots(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Snapshot.Backend {
	case config.BackendGCS:
		var err error
		a.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobs, err := gcsstorage.New(a.storage, gcsstorage.Config{Bucket: a.cfg.Snapshot.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.checks["gcs"] = blobs.Check
		a.logger.Info("using GCS snapshot backend", zap.String("bucket", a.cfg.Snapshot.GCSBucket))
		return blobs, nil
	case config.BackendLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Snapshot.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local snapshot backend", zap.String("path", a.cfg.Snapshot.LocalDir))
		return blobs, nil
	default:
		a.logger.Info("using in-memory snapshot backend")
		return memoryStorage.NewBlobStore(), nil
	}
}

// setupRegistry registers the built-in site profiles, any configured
// profiles, and the feed, API and generic adapters.
func (a *App) setupRegistry(fetcher crawler.Fetcher) *registry.Registry {
	deps := adapters.Deps{
		Fetcher: fetcher,
		Parser: htmldoc.New(
			htmldoc.WithLogger(a.logger.Named("htmldoc")),
			htmldoc.WithSelectionHook(func(b htmldoc.Backend, size int) {
				metrics.ObserveParse(string(b), size)
			}),
		),
		Logger: a.logger,
	}
	worklist := adapters.NewWorkList(adapters.WorkListConfig{
		Limit: a.cfg.Crawler.DetailLimit,
		Delay: a.cfg.Crawler.DetailDelay(),
	}, a.logger.Named("worklist"))

	reg := registry.New(
		adapters.NewSiteScraper(adapters.BBCProfile(), deps, worklist),
		adapters.NewSiteScraper(adapters.CNNProfile(), deps, worklist),
	)
	for _, p := range a.cfg.Profiles {
		reg.Register(adapters.NewSiteScraper(p, deps, worklist))
	}
	reg.Register(adapters.NewFeedReader(deps))
	reg.Register(adapters.NewAPIReader(deps))
	reg.Register(adapters.NewGenericScraper(deps))

	names := make([]string, 0, len(reg.Adapters()))
	for _, ad := range reg.Adapters() {
		names = append(names, ad.Name())
	}
	a.logger.Info("adapters registered", zap.Strings("adapters", names))
	return reg
}

// setupIndex returns the queue the orchestrator signals, or nil when indexing
// is disabled.
func (a *App) setupIndex(ctx context.Context) (crawler.IndexQueue, error) {
	if !a.cfg.Index.Enabled {
		a.logger.Info("search indexing disabled")
		return nil, nil
	}
	es, err := elasticsearch.New(elasticsearch.Config{
		Addresses: a.cfg.Elasticsearch.Addresses,
		Username:  a.cfg.Elasticsearch.Username,
		Password:  a.cfg.Elasticsearch.Password,
		Index:     a.cfg.Elasticsearch.Index,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch init failed: %w", err)
	}
	a.checks["elasticsearch"] = es.Ping
	a.indexer = indexer.New(
		a.stores.articles,
		a.stores.sources,
		a.stores.campaigns,
		es,
		a.clock,
		indexer.Config{Attempts: a.cfg.Index.Attempts, Backoff: a.cfg.Index.Backoff()},
		a.logger,
	)

	if a.cfg.Index.Transport == config.TransportPubSub {
		a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		a.pubsubPublisher = gcppublisher.New(a.pubsubClient)
		a.subscriber = gcppublisher.NewSubscriber(a.pubsubClient, a.cfg.PubSub.Subscription)
		a.logger.Info("index signals via Pub/Sub",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.TopicName),
			zap.String("subscription", a.cfg.PubSub.Subscription),
		)
		return indexer.NewPublisherQueue(a.pubsubPublisher, a.cfg.PubSub.TopicName), nil
	}

	a.indexSignals = indexer.NewChannelQueue(a.cfg.Index.Buffer)
	a.logger.Info("index signals via in-process channel", zap.Int("buffer", a.cfg.Index.Buffer))
	return a.indexSignals, nil
}

func (a *App) setupDispatcher() *dispatcher.Dispatcher {
	retry := worker.RetryPolicy{
		MaxAttempts: a.cfg.Crawler.MaxAttempts,
		Backoff:     a.cfg.Crawler.RetryBackoff(),
	}
	a.logger.Info("worker config",
		zap.Int("workers", a.cfg.Crawler.Workers),
		zap.Int("queue_depth", a.cfg.Crawler.QueueDepth),
		zap.Int("max_attempts", retry.MaxAttempts),
		zap.Duration("retry_backoff", retry.Backoff),
	)
	workers := make([]*worker.Worker, 0, a.cfg.Crawler.Workers)
	for i := 0; i < a.cfg.Crawler.Workers; i++ {
		workers = append(workers, worker.New(
			a.queue,
			a.orchestrator,
			retry,
			a.logger.With(zap.Int("index", i)),
		))
	}
	return dispatcher.New(a.queue, workers, a.clock)
}

// Handler exposes the API for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the workers, scheduler, indexer and HTTP server, and blocks
// until the context is canceled or SIGINT/SIGTERM arrives. The caller still
// owns Close.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()
	a.startIndexer(ctx, &wg)

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("scheduler start failed: %w", err)
		}
		a.logger.Info("scheduler started", zap.String("schedule", a.cfg.Crawler.Schedule))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.queue.Close()
	wg.Wait()
	a.logger.Info("workers stopped")
	return nil
}

// Crawl runs one crawl of sourceID synchronously, without the queue or
// retries. Signals on the channel transport are indexed before returning;
// Pub/Sub signals stay on the subscription for a serving indexer.
func (a *App) Crawl(ctx context.Context, campaignID, sourceID string) (crawler.CrawlJob, error) {
	job, err := a.orchestrator.Run(ctx, campaignID, sourceID)
	a.drainIndex(ctx)
	return job, err
}

func (a *App) startIndexer(ctx context.Context, wg *sync.WaitGroup) {
	switch {
	case a.indexSignals != nil:
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.logger.Info("indexer started", zap.String("transport", config.TransportChannel))
			a.indexer.Run(ctx, a.indexSignals.Signals())
		}()
	case a.subscriber != nil:
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.logger.Info("indexer started", zap.String("transport", config.TransportPubSub))
			if err := a.subscriber.Receive(ctx, a.indexer.Handle); err != nil {
				a.logger.Error("index subscription failed", zap.Error(err))
			}
		}()
	}
}

// drainIndex indexes every signal already buffered on the channel transport.
func (a *App) drainIndex(ctx context.Context) {
	if a.indexSignals == nil {
		return
	}
	signals := a.indexSignals.Signals()
	for {
		select {
		case id := <-signals:
			if err := a.indexer.Index(ctx, id); err != nil {
				a.logger.Error("index article failed", zap.String("article_id", id), zap.Error(err))
			}
		default:
			return
		}
	}
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) {
	a.closeInfrastructure()
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pg != nil {
		a.pg.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if err := logging.Sync(a.logger); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}
