// Package pipeline joins the worker pool with the ordered consumer.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamedb-scraper/internal/clock/system"
	"github.com/JakeFAU/gamedb-scraper/internal/metrics"
	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// DefaultProgressEvery is how often, in IDs, progress is logged.
const DefaultProgressEvery = 100

// Source yields records by ID.
type Source interface {
	Await(ctx context.Context, id int) (scraper.Record, error)
	Release(id int)
}

// Snapshot is a point-in-time view of consumer progress.
type Snapshot struct {
	Target       string        `json:"target"`
	LastID       int           `json:"last_id"`
	Position     int           `json:"position"`
	Available    int           `json:"available"`
	NotAvailable int           `json:"not_available"`
	Percent      float64       `json:"percent"`
	Elapsed      time.Duration `json:"elapsed"`
	Done         bool          `json:"done"`
}

// Consumer writes records strictly in ID order.
type Consumer struct {
	target        scraper.Target
	source        Source
	sink          scraper.Sink
	progressEvery int
	clock         scraper.Clock
	logger        *zap.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	started  time.Time
}

// NewConsumer constructs a Consumer. progressEvery <= 0 uses DefaultProgressEvery.
func NewConsumer(
	target scraper.Target,
	source Source,
	sink scraper.Sink,
	progressEvery int,
	clock scraper.Clock,
	logger *zap.Logger,
) *Consumer {
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}
	if clock == nil {
		clock = system.Clock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		target:        target,
		source:        source,
		sink:          sink,
		progressEvery: progressEvery,
		clock:         clock,
		logger:        logger.Named("consumer"),
		snapshot:      Snapshot{Target: target.Name, LastID: target.LastID},
	}
}

// Run awaits IDs 1..LastID in order and writes each record to the sink.
func (c *Consumer) Run(ctx context.Context) (scraper.RunSummary, error) {
	started := c.clock.Now()
	c.mu.Lock()
	c.started = started
	c.mu.Unlock()

	summary := scraper.RunSummary{
		Target:    c.target.Name,
		Entity:    c.target.Entity,
		Expansion: c.target.Expansion,
		LastID:    c.target.LastID,
		StartedAt: started,
	}
	c.logger.Info("consuming", zap.String("target", c.target.Name), zap.Int("last_id", c.target.LastID))

	batchStart := started
	for id := 1; id <= c.target.LastID; id++ {
		record, err := c.source.Await(ctx, id)
		if err != nil {
			return summary, fmt.Errorf("await id %d: %w", id, err)
		}
		if record.ID != id {
			return summary, fmt.Errorf("slot %d holds record for id %d", id, record.ID)
		}
		if err := c.sink.Write(ctx, record); err != nil {
			return summary, fmt.Errorf("write id %d: %w", id, err)
		}
		c.source.Release(id)

		summary.Processed++
		if record.Available() {
			summary.Available++
		} else {
			summary.NotAvailable++
		}
		metrics.ObserveRecord(c.target.Name, record.Available())
		metrics.SetConsumerPosition(c.target.Name, id)
		c.update(summary, id, false)

		if id%c.progressEvery == 0 || id == c.target.LastID {
			now := c.clock.Now()
			c.logger.Info("progress",
				zap.Int("id", id),
				zap.Int("last_id", c.target.LastID),
				zap.String("percent", fmt.Sprintf("%.2f%%", percent(id, c.target.LastID))),
				zap.Duration("batch_elapsed", now.Sub(batchStart)),
			)
			batchStart = now
		}
	}

	summary.Elapsed = c.clock.Now().Sub(started)
	c.update(summary, c.target.LastID, true)
	c.logger.Info("all records consumed",
		zap.String("target", c.target.Name),
		zap.Int("processed", summary.Processed),
		zap.Int("available", summary.Available),
		zap.Int("not_available", summary.NotAvailable),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func (c *Consumer) update(summary scraper.RunSummary, position int, done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.Position = position
	c.snapshot.Available = summary.Available
	c.snapshot.NotAvailable = summary.NotAvailable
	c.snapshot.Percent = percent(position, c.target.LastID)
	c.snapshot.Done = done
}

// Snapshot reports current progress.
func (c *Consumer) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.snapshot
	if !c.started.IsZero() {
		s.Elapsed = c.clock.Now().Sub(c.started)
	}
	return s
}

func percent(id, last int) float64 {
	if last <= 0 {
		return 0
	}
	return float64(id) * 100 / float64(last)
}
