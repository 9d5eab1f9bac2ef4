// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/homescan/listing-crawler/internal/api"
	"github.com/homescan/listing-crawler/internal/clock/system"
	"github.com/homescan/listing-crawler/internal/config"
	"github.com/homescan/listing-crawler/internal/crawl"
	"github.com/homescan/listing-crawler/internal/dispatcher"
	"github.com/homescan/listing-crawler/internal/extract"
	collyfetcher "github.com/homescan/listing-crawler/internal/fetcher/colly"
	"github.com/homescan/listing-crawler/internal/fetcher/fallback"
	headlessfetcher "github.com/homescan/listing-crawler/internal/fetcher/headless"
	"github.com/homescan/listing-crawler/internal/headless/detector"
	"github.com/homescan/listing-crawler/internal/id/uuid"
	"github.com/homescan/listing-crawler/internal/listing"
	"github.com/homescan/listing-crawler/internal/logging"
	"github.com/homescan/listing-crawler/internal/metrics"
	"github.com/homescan/listing-crawler/internal/progress"
	memorypublisher "github.com/homescan/listing-crawler/internal/publisher/memory"
	gcppublisher "github.com/homescan/listing-crawler/internal/publisher/pubsub"
	queueMemory "github.com/homescan/listing-crawler/internal/queue/memory"
	gcsstorage "github.com/homescan/listing-crawler/internal/storage/gcs"
	localstorage "github.com/homescan/listing-crawler/internal/storage/local"
	memoryStorage "github.com/homescan/listing-crawler/internal/storage/memory"
	pgstore "github.com/homescan/listing-crawler/internal/storage/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg             config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	dispatch        *dispatcher.Dispatcher
	queue           *queueMemory.Queue
	jobs            *progress.Store
	pubsubPublisher *gcppublisher.Publisher
	recordStore     listing.RecordStore
	headless        *headlessfetcher.Fetcher
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies")

	clock := system.New()
	ids := uuid.NewUUIDGenerator()

	a.jobs = progress.New(progress.Config{
		Retention:  cfg.ProgressRetention(),
		MaxEntries: cfg.Progress.MaxEntries,
	})
	a.queue = queueMemory.NewQueue(cfg.Runner.QueueDepth)

	if err := a.setupRecordStore(ctx, clock, ids); err != nil {
		return nil, err
	}
	blobStore, err := a.setupStorage(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}
	fetcher, err := a.setupFetcher()
	if err != nil {
		return nil, err
	}

	runner := crawl.New(
		fetcher,
		extract.New(logger.Named("extract")),
		a.recordStore,
		a.jobs,
		blobStore,
		publisher,
		clock,
		logger.Named("crawl"),
		crawl.Config{
			BatchSize:         cfg.Crawler.BatchSize,
			PageDelay:         cfg.PageDelay(),
			DefaultMaxRecords: cfg.Crawler.MaxRecordsDefault,
			ArchivePrefix:     cfg.Storage.Prefix,
			Topic:             cfg.Publisher.Topic,
		},
	)
	a.dispatch = dispatcher.New(a.queue, runner, cfg.Runner.Concurrency, logger.Named("dispatcher"))
	a.apiServer = api.NewServer(a.jobs, a.queue, ids, clock, logger.Named("api"), cfg)

	return a, nil
}

func (a *App) setupRecordStore(ctx context.Context, clock listing.Clock, ids listing.IDGenerator) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no database DSN configured, using in-memory record store")
		a.recordStore = memoryStorage.NewRecordStore(ids, clock)
		return nil
	}
	store, err := pgstore.NewRecordStore(ctx, pgstore.RecordStoreConfig{
		DSN:           a.cfg.DB.DSN,
		RunsTable:     a.cfg.DB.RunsTable,
		ListingsTable: a.cfg.DB.ListingsTable,
		MaxConns:      int32(a.cfg.DB.MaxConns),
	}, ids, clock)
	if err != nil {
		return fmt.Errorf("record store init failed: %w", err)
	}
	a.logger.Info("postgres record store initialized",
		zap.String("runs_table", a.cfg.DB.RunsTable),
		zap.String("listings_table", a.cfg.DB.ListingsTable),
	)
	a.recordStore = store
	return nil
}

func (a *App) setupStorage(ctx context.Context) (listing.BlobStore, error) {
	switch a.cfg.Storage.Provider {
	case "gcs":
		store, err := gcsstorage.Dial(ctx, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS page archive", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	case "local":
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local page archive", zap.String("dir", a.cfg.Storage.LocalDir))
		return store, nil
	case "memory":
		a.logger.Info("using in-memory page archive")
		return memoryStorage.NewBlobStore(), nil
	default:
		a.logger.Info("page archiving disabled")
		return nil, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (listing.Publisher, error) {
	switch a.cfg.Publisher.Provider {
	case "pubsub":
		pub, err := gcppublisher.Dial(ctx, a.cfg.Publisher.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.Publisher.ProjectID),
			zap.String("topic", a.cfg.Publisher.Topic),
		)
		a.pubsubPublisher = pub
		return pub, nil
	case "memory":
		a.logger.Info("using in-memory publisher")
		return memorypublisher.New(), nil
	default:
		a.logger.Info("run-completion publishing disabled")
		return nil, nil
	}
}

func (a *App) setupFetcher() (listing.PageFetcher, error) {
	primary := collyfetcher.New(collyfetcher.Config{
		BaseURL:       a.cfg.Crawler.BaseURL,
		UserAgent:     a.cfg.Crawler.UserAgent,
		RespectRobots: a.cfg.Crawler.RespectRobots,
		Timeout:       a.cfg.FetchTimeout(),
	})
	if !a.cfg.Headless.Enabled {
		// No headless budget: a shell page promotes into the noop fetcher's
		// error and aborts the run visibly instead of extracting zero records
		// and masquerading as source exhaustion.
		a.logger.Info("using colly fetcher", zap.String("user_agent", a.cfg.Crawler.UserAgent))
		return fallback.New(primary, headlessfetcher.NewNoop(), detector.NewHeuristic(), a.logger.Named("fallback")), nil
	}

	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		BaseURL:           a.cfg.Crawler.BaseURL,
		UserAgent:         a.cfg.Crawler.UserAgent,
		MaxParallel:       a.cfg.Headless.MaxParallel,
		NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	a.headless = headless
	a.logger.Info("using colly fetcher with headless promotion",
		zap.Int("max_parallel", a.cfg.Headless.MaxParallel),
	)
	return fallback.New(primary, headless, detector.NewHeuristic(), a.logger.Named("fallback")), nil
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Runner.Concurrency))
		a.dispatch.Run(ctx)
	}()

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	a.Close()
	return nil
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.queue.Close()
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsubPublisher != nil {
		if err := a.pubsubPublisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	}
	if closer, ok := a.recordStore.(interface{ Close() }); ok {
		closer.Close()
	}
	_ = a.logger.Sync()
	a.logger.Info("shutdown complete")
}
