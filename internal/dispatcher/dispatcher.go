// Package dispatcher runs the worker pool.
package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner is one pool member.
type Runner interface {
	Run(ctx context.Context) error
}

// Dispatcher starts every worker and waits for all of them.
type Dispatcher struct {
	workers []Runner
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(workers []Runner, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{workers: workers, logger: logger}
}

// Run blocks until every worker has returned. The first worker error cancels
// the others and is returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	if len(d.workers) == 0 {
		return fmt.Errorf("no workers configured")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range d.workers {
		w := w
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		d.logger.Error("worker pool stopped", zap.Error(err))
		return err
	}
	d.logger.Debug("worker pool finished", zap.Int("workers", len(d.workers)))
	return nil
}
