// Package gate coordinates recovery from upstream rate limiting.
//
// The gate is either open or blocked. The first caller to observe a block
// becomes the only recoverer: it backs off, retries its own request until it
// succeeds, then reopens the gate. Every other caller that hits the block, or
// that arrives while the gate is blocked, waits for the reopen and replays its
// request. The lock is never held across a request or a backoff sleep.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamedb-scraper/internal/metrics"
)

// DefaultBackoff is the pause between recovery attempts.
const DefaultBackoff = 60 * time.Second

// ErrRecoveryExhausted is returned once the recoverer runs out of retries.
// The gate stays failed: every later Wait and Do returns it.
var ErrRecoveryExhausted = errors.New("rate limit recovery exhausted")

// Attempt performs one request. blocked reports an upstream rate-limit
// response; err reports a transport failure.
type Attempt func(ctx context.Context) (blocked bool, err error)

// Config tunes recovery.
type Config struct {
	Backoff time.Duration `mapstructure:"backoff"`
	// MaxRetries bounds recovery attempts; zero retries forever.
	MaxRetries int `mapstructure:"max_retries"`
}

type pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Gate is safe for concurrent use.
type Gate struct {
	cfg    Config
	logger *zap.Logger
	pause  pauser

	mu       sync.Mutex
	blocked  bool
	released chan struct{}
	failure  error
}

// New constructs an open gate.
func New(cfg Config, logger *zap.Logger) *Gate {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{cfg: cfg, logger: logger, pause: timerPauser{}}
}

// Blocked reports whether recovery is in progress.
func (g *Gate) Blocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked
}

// Wait returns once the gate is open, the gate has failed, or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if g.failure != nil {
			err := g.failure
			g.mu.Unlock()
			return err
		}
		if !g.blocked {
			g.mu.Unlock()
			return nil
		}
		released := g.released
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-released:
		}
	}
}

// Do runs attempt through the gate until it is not blocked. The attempt that
// finally succeeds is the one whose result the caller should use.
func (g *Gate) Do(ctx context.Context, attempt Attempt) error {
	for {
		if err := g.Wait(ctx); err != nil {
			return err
		}
		blocked, err := attempt(ctx)
		if err != nil {
			return err
		}
		if !blocked {
			return nil
		}
		if g.claim() {
			return g.recover(ctx, attempt)
		}
	}
}

// claim moves the gate from open to blocked and reports whether the caller
// won the transition.
func (g *Gate) claim() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.blocked || g.failure != nil {
		return false
	}
	g.blocked = true
	g.released = make(chan struct{})
	metrics.ObserveGateBlocked()
	return true
}

func (g *Gate) recover(ctx context.Context, attempt Attempt) error {
	g.logger.Warn("rate limited; pausing all workers", zap.Duration("backoff", g.cfg.Backoff))
	for tries := 1; ; tries++ {
		if g.cfg.MaxRetries > 0 && tries > g.cfg.MaxRetries {
			g.fail(ErrRecoveryExhausted)
			return fmt.Errorf("after %d retries: %w", g.cfg.MaxRetries, ErrRecoveryExhausted)
		}
		if err := g.pause.Pause(ctx, g.cfg.Backoff); err != nil {
			g.open()
			return err
		}
		metrics.ObserveRecoveryAttempt()
		blocked, err := attempt(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			g.open()
			return ctx.Err()
		case err != nil:
			g.logger.Warn("recovery request failed", zap.Int("try", tries), zap.Error(err))
		case blocked:
			g.logger.Warn("still rate limited", zap.Int("try", tries))
		default:
			g.logger.Info("rate limit lifted; resuming", zap.Int("tries", tries))
			g.open()
			return nil
		}
	}
}

func (g *Gate) open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.blocked {
		return
	}
	g.blocked = false
	close(g.released)
	g.released = nil
	metrics.ObserveGateOpened()
}

func (g *Gate) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failure = err
	if g.blocked {
		g.blocked = false
		close(g.released)
		g.released = nil
	}
	metrics.ObserveGateOpened()
}
