// Package worker implements the fetch-and-extract loop run by each pool member.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamedb-scraper/internal/fetcher"
	"github.com/JakeFAU/gamedb-scraper/internal/gate"
	"github.com/JakeFAU/gamedb-scraper/internal/metrics"
	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// Allocator hands out IDs, each exactly once.
type Allocator interface {
	Next() int
}

// Board receives each record under its ID.
type Board interface {
	Resolve(id int, record scraper.Record) error
}

// Worker claims IDs until the target's last ID is passed.
type Worker struct {
	index     int
	target    scraper.Target
	ids       Allocator
	fetcher   scraper.Fetcher
	extractor scraper.Extractor
	board     Board
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	index int,
	target scraper.Target,
	ids Allocator,
	f scraper.Fetcher,
	extractor scraper.Extractor,
	board Board,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		index:     index,
		target:    target,
		ids:       ids,
		fetcher:   f,
		extractor: extractor,
		board:     board,
		logger:    logger.Named("worker").With(zap.Int("index", index)),
	}
}

// Run blocks until the ID space is exhausted, ctx is done, or a fatal error
// occurs. Per-ID failures become records and never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := w.ids.Next()
		if id > w.target.LastID {
			w.logger.Debug("id space exhausted", zap.Int("last_id", w.target.LastID))
			return nil
		}

		record, err := w.process(ctx, id)
		if err != nil {
			return err
		}
		if err := w.board.Resolve(id, record); err != nil {
			return fmt.Errorf("publish id %d: %w", id, err)
		}
	}
}

func (w *Worker) process(ctx context.Context, id int) (scraper.Record, error) {
	artifact, err := w.fetcher.FetchOrRead(ctx, id)
	if err != nil {
		if fatal(ctx, err) {
			return scraper.Record{}, fmt.Errorf("worker %d: id %d: %w", w.index, id, err)
		}
		w.logger.Warn("fetch failed", zap.Int("id", id), zap.Error(err))
		return scraper.Excluded(id, "", "fetch failed: "+err.Error()), nil
	}
	return w.extractor.Extract(id, artifact.Content), nil
}

func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, gate.ErrRecoveryExhausted) ||
		errors.Is(err, fetcher.ErrCacheWrite)
}
