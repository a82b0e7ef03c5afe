// Package app builds the long-lived services of the scraper from configuration
// and runs targets end-to-end.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamedb-scraper/internal/api"
	"github.com/JakeFAU/gamedb-scraper/internal/clock/system"
	"github.com/JakeFAU/gamedb-scraper/internal/config"
	"github.com/JakeFAU/gamedb-scraper/internal/extract"
	"github.com/JakeFAU/gamedb-scraper/internal/fetcher"
	collyfetcher "github.com/JakeFAU/gamedb-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/gamedb-scraper/internal/gate"
	"github.com/JakeFAU/gamedb-scraper/internal/hash/sha256"
	"github.com/JakeFAU/gamedb-scraper/internal/id/uuid"
	"github.com/JakeFAU/gamedb-scraper/internal/pipeline"
	"github.com/JakeFAU/gamedb-scraper/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/gamedb-scraper/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/gamedb-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
	"github.com/JakeFAU/gamedb-scraper/internal/sink"
	"github.com/JakeFAU/gamedb-scraper/internal/storage"
	"github.com/JakeFAU/gamedb-scraper/internal/storage/freshness"
	"github.com/JakeFAU/gamedb-scraper/internal/storage/gcs"
	"github.com/JakeFAU/gamedb-scraper/internal/storage/local"
	"github.com/JakeFAU/gamedb-scraper/internal/storage/memory"
	"github.com/JakeFAU/gamedb-scraper/internal/storage/postgres"
)

// Overrides adjust a single run without touching the loaded configuration.
// Zero values keep the configured setting.
type Overrides struct {
	Workers int
	LastID  int
	Offline bool
	// DryRun keeps pages, archives and notifications in memory; only the
	// TSV outputs touch disk.
	DryRun bool
}

// dryRunTopic receives summaries of dry runs when no topic is configured.
const dryRunTopic = "dry-run"

// Option customizes App construction.
type Option func(*App)

// WithClock replaces the system clock.
func WithClock(clock scraper.Clock) Option {
	return func(a *App) { a.clock = clock }
}

// WithClient replaces the colly HTTP client.
func WithClient(client fetcher.Client) Option {
	return func(a *App) { a.client = client }
}

// WithBlobStore archives outputs to store instead of the configured bucket.
func WithBlobStore(store scraper.BlobStore) Option {
	return func(a *App) { a.blobs = store }
}

// WithPublisher sends run summaries through pub instead of Pub/Sub.
func WithPublisher(pub scraper.Publisher) Option {
	return func(a *App) { a.publisher = pub }
}

// App holds the shared services of the process. One gate and one limiter
// pace every target run by this App, since they share one upstream site.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     scraper.Clock
	ids       *uuid.Generator
	hasher    *sha256.Hasher
	client    fetcher.Client
	gate      *gate.Gate
	limiter   *ratelimit.Limiter
	blobs     scraper.BlobStore
	publisher scraper.Publisher
	closers   []io.Closer

	dryBlobs     *memory.BlobStore
	dryPublisher *memorypublisher.Publisher
}

// New validates cfg and connects the optional archive and notification
// backends. It fails fast when a configured backend is unreachable.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		ids:    uuid.NewGenerator(),
		hasher: sha256.New(),

		dryBlobs:     memory.NewBlobStore(),
		dryPublisher: memorypublisher.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.client == nil {
		a.client = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Scraper.UserAgent,
			Timeout:   cfg.HTTP.Timeout,
		})
	}
	a.gate = gate.New(gate.Config{Backoff: cfg.Gate.Backoff, MaxRetries: cfg.Gate.MaxRetries}, logger)
	a.limiter = ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Scraper.RequestsPerSecond,
		Burst:             cfg.Scraper.Burst,
	})

	if cfg.Scraper.DryRun {
		logger.Info("dry run: archive and notifications stay in memory")
		return a, nil
	}
	if a.blobs == nil && cfg.GCS.Bucket != "" {
		client, err := gcs.NewClient(ctx, cfg.GCS.Bucket, logger)
		if err != nil {
			return nil, err
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCS.Bucket})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		logger.Info("archiving outputs to gcs", zap.String("bucket", cfg.GCS.Bucket))
		a.blobs = store
		a.closers = append(a.closers, store)
	}
	if a.publisher == nil && cfg.PubSub.Topic != "" {
		client, err := pubsubpublisher.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.Close()
			return nil, err
		}
		pub := pubsubpublisher.New(client)
		logger.Info("publishing run summaries", zap.String("topic", cfg.PubSub.Topic))
		a.publisher = pub
		a.closers = append(a.closers, pub)
	}
	return a, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Scrape runs the named target to completion, then archives its outputs and
// publishes the summary when those backends are configured.
func (a *App) Scrape(ctx context.Context, targetName string, ov Overrides) (scraper.RunSummary, error) {
	target, err := a.cfg.Target(targetName)
	if err != nil {
		return scraper.RunSummary{}, err
	}
	if ov.LastID > 0 {
		target.LastID = ov.LastID
	}
	workers := a.cfg.Scraper.Workers
	if ov.Workers > 0 {
		workers = ov.Workers
	}
	offline := a.cfg.Scraper.Offline || ov.Offline
	dryRun := a.cfg.Scraper.DryRun || ov.DryRun

	runID, err := a.ids.NewRunID()
	if err != nil {
		return scraper.RunSummary{}, err
	}
	logger := a.logger.With(zap.String("run_id", runID), zap.String("target", target.Name))
	if dryRun {
		logger = logger.With(zap.Bool("dry_run", true))
	}

	f, extractor, err := a.buildStages(target, offline, dryRun, logger)
	if err != nil {
		return scraper.RunSummary{}, err
	}
	tsv, out, err := a.buildSinks(ctx, target, runID, extractor.Header(), logger)
	if err != nil {
		return scraper.RunSummary{}, err
	}

	runner, err := pipeline.NewRunner(target, f, extractor, out, a.clock, pipeline.Config{
		Workers:       workers,
		ProgressEvery: a.cfg.Scraper.ProgressEvery,
	}, logger)
	if err != nil {
		_ = out.Close()
		return scraper.RunSummary{}, err
	}

	stopStatus := a.startStatusServer(ctx, runner, logger)
	summary, runErr := runner.Run(ctx)
	stopStatus()
	if closeErr := out.Close(); closeErr != nil {
		runErr = errors.Join(runErr, fmt.Errorf("close outputs: %w", closeErr))
	}
	summary.RunID = runID
	summary.Outputs = tsv.Paths()
	if runErr != nil {
		return summary, runErr
	}
	if summary.Checksums, err = a.hasher.Files(summary.Outputs); err != nil {
		return summary, fmt.Errorf("checksum outputs: %w", err)
	}

	if err := a.archive(ctx, &summary, dryRun, logger); err != nil {
		return summary, err
	}
	if err := a.publish(ctx, summary, dryRun, logger); err != nil {
		return summary, err
	}
	return summary, nil
}

func (a *App) buildStages(
	target scraper.Target,
	offline, dryRun bool,
	logger *zap.Logger,
) (*fetcher.Fetcher, scraper.Extractor, error) {
	loc, err := a.cfg.Cache.LoadLocation()
	if err != nil {
		return nil, nil, err
	}
	checker, err := freshness.New(a.clock, loc, a.cfg.Cache.MarkerFormat)
	if err != nil {
		return nil, nil, err
	}
	var cache scraper.Cache
	if dryRun {
		cache = memory.NewArtifactCache(checker)
	} else {
		disk, err := local.NewArtifactCache(local.Config{BaseDir: a.cfg.Cache.Dir}, target, checker, logger)
		if err != nil {
			return nil, nil, err
		}
		cache = disk
	}
	f, err := fetcher.New(target, fetcher.Config{
		BaseURL: a.cfg.Scraper.BaseURL,
		Offline: offline,
	}, cache, a.client, a.gate, a.limiter, logger)
	if err != nil {
		return nil, nil, err
	}
	extractor, err := extract.ForTarget(target)
	if err != nil {
		return nil, nil, err
	}
	return f, extractor, nil
}

func (a *App) buildSinks(
	ctx context.Context,
	target scraper.Target,
	runID string,
	header []string,
	logger *zap.Logger,
) (*sink.TSV, scraper.Sink, error) {
	tsv, err := sink.NewTSV(a.cfg.Output.Dir, target, header)
	if err != nil {
		return nil, nil, err
	}
	if a.cfg.Postgres.DSN == "" {
		return tsv, tsv, nil
	}
	store, err := postgres.NewRecordStore(ctx, postgres.Config{
		DSN:   a.cfg.Postgres.DSN,
		Table: a.cfg.Postgres.Table,
	}, target.Name, runID)
	if err != nil {
		_ = tsv.Close()
		return nil, nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = tsv.Close()
		_ = store.Close()
		return nil, nil, err
	}
	logger.Info("mirroring records to postgres", zap.String("table", a.cfg.Postgres.Table))
	return tsv, sink.Multi{tsv, store}, nil
}

func (a *App) startStatusServer(ctx context.Context, runner *pipeline.Runner, logger *zap.Logger) func() {
	if a.cfg.Metrics.ListenAddr == "" {
		return func() {}
	}
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	server := api.NewServer(runner, logger)
	go func() {
		defer close(done)
		if err := server.ListenAndServe(srvCtx, a.cfg.Metrics.ListenAddr); err != nil {
			logger.Warn("status server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (a *App) archive(ctx context.Context, summary *scraper.RunSummary, dryRun bool, logger *zap.Logger) error {
	store := a.blobs
	if dryRun {
		store = a.dryBlobs
	}
	if store == nil {
		return nil
	}
	archiver, err := storage.NewArchiver(store, a.cfg.GCS.Prefix, logger)
	if err != nil {
		return err
	}
	uris, err := archiver.Archive(ctx, summary.RunID, summary.Outputs)
	if err != nil {
		return err
	}
	summary.Outputs = uris
	return nil
}

func (a *App) publish(ctx context.Context, summary scraper.RunSummary, dryRun bool, logger *zap.Logger) error {
	pub, topic := a.publisher, a.cfg.PubSub.Topic
	if dryRun {
		pub = a.dryPublisher
		if topic == "" {
			topic = dryRunTopic
		}
	}
	if pub == nil || topic == "" {
		return nil
	}
	msgID, err := pub.Publish(ctx, topic, summary)
	if err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	logger.Info("run summary published", zap.String("topic", topic), zap.String("message_id", msgID))
	return nil
}

// DryRunMessages returns the summaries published by dry runs.
func (a *App) DryRunMessages() []memorypublisher.Message {
	return a.dryPublisher.Messages()
}

// Close releases every backend client. Errors are logged.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close backend", zap.Error(err))
		}
	}
	a.closers = nil
}
