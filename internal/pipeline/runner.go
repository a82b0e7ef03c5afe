package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/gamedb-scraper/internal/dispatcher"
	"github.com/JakeFAU/gamedb-scraper/internal/id/sequence"
	"github.com/JakeFAU/gamedb-scraper/internal/promise"
	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
	"github.com/JakeFAU/gamedb-scraper/internal/worker"
)

// Config sizes one run.
type Config struct {
	Workers       int
	ProgressEvery int
}

// Runner executes one target end-to-end: N workers feed the board while the
// consumer drains it in order.
type Runner struct {
	target    scraper.Target
	fetcher   scraper.Fetcher
	extractor scraper.Extractor
	sink      scraper.Sink
	clock     scraper.Clock
	cfg       Config
	logger    *zap.Logger

	mu       sync.RWMutex
	consumer *Consumer
}

// NewRunner validates its inputs and builds a Runner.
func NewRunner(
	target scraper.Target,
	f scraper.Fetcher,
	extractor scraper.Extractor,
	sink scraper.Sink,
	clock scraper.Clock,
	cfg Config,
	logger *zap.Logger,
) (*Runner, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if f == nil || extractor == nil || sink == nil {
		return nil, fmt.Errorf("fetcher, extractor and sink are required")
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		target:    target,
		fetcher:   f,
		extractor: extractor,
		sink:      sink,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Run blocks until every record is written or the first fatal error. The
// sink is not closed.
func (r *Runner) Run(ctx context.Context) (scraper.RunSummary, error) {
	board := promise.New[scraper.Record](r.target.LastID)
	ids := sequence.New()

	workers := make([]dispatcher.Runner, 0, r.cfg.Workers)
	for i := 0; i < r.cfg.Workers; i++ {
		workers = append(workers, worker.New(i, r.target, ids, r.fetcher, r.extractor, board, r.logger))
	}
	pool := dispatcher.New(workers, r.logger)
	consumer := NewConsumer(r.target, board, r.sink, r.cfg.ProgressEvery, r.clock, r.logger)

	r.mu.Lock()
	r.consumer = consumer
	r.mu.Unlock()

	r.logger.Info("run starting",
		zap.String("target", r.target.Name),
		zap.Int("workers", r.cfg.Workers),
		zap.Int("last_id", r.target.LastID),
	)

	var summary scraper.RunSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		var err error
		summary, err = consumer.Run(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return summary, fmt.Errorf("run %s: %w", r.target.Name, err)
	}
	return summary, nil
}

// Snapshot reports progress of the current run, if one has started.
func (r *Runner) Snapshot() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.consumer == nil {
		return Snapshot{}, false
	}
	return r.consumer.Snapshot(), true
}
