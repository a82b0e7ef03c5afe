package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPauser returns immediately and records how many pauses ran and
// how many overlapped.
type countingPauser struct {
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	hold    time.Duration
}

func (p *countingPauser) Pause(ctx context.Context, _ time.Duration) error {
	p.calls.Add(1)
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		cur := p.maxSeen.Load()
		if n <= cur || p.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	if p.hold > 0 {
		time.Sleep(p.hold)
	}
	return ctx.Err()
}

// chanPauser blocks until the test releases it.
type chanPauser struct {
	entered chan struct{}
	release chan struct{}
}

func (p *chanPauser) Pause(ctx context.Context, _ time.Duration) error {
	p.entered <- struct{}{}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.release:
		return nil
	}
}

func TestDoOpenGate(t *testing.T) {
	t.Parallel()

	g := New(Config{}, nil)
	calls := 0
	err := g.Do(context.Background(), func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, g.Blocked())
}

func TestDoReturnsTransportError(t *testing.T) {
	t.Parallel()

	g := New(Config{}, nil)
	boom := errors.New("connection reset")
	err := g.Do(context.Background(), func(context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, g.Blocked())
}

func TestSingleRecovererUnderContention(t *testing.T) {
	t.Parallel()

	pauser := &countingPauser{hold: 5 * time.Millisecond}
	g := New(Config{Backoff: time.Millisecond}, nil)
	g.pause = pauser

	var serverBlocked atomic.Bool
	serverBlocked.Store(true)
	var blockedCalls atomic.Int32
	attempt := func(context.Context) (bool, error) {
		if serverBlocked.Load() {
			// Lift the block after a few rejected requests.
			if blockedCalls.Add(1) >= 12 {
				serverBlocked.Store(false)
			}
			return true, nil
		}
		return false, nil
	}

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = g.Do(context.Background(), attempt)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.False(t, g.Blocked())
	assert.Equal(t, int32(1), pauser.maxSeen.Load(), "only one recoverer may back off at a time")
	assert.GreaterOrEqual(t, pauser.calls.Load(), int32(1))
}

func TestWaitersHoldUntilRelease(t *testing.T) {
	t.Parallel()

	pauser := &chanPauser{entered: make(chan struct{}, 1), release: make(chan struct{})}
	g := New(Config{}, nil)
	g.pause = pauser

	var recovererCalls atomic.Int32
	recovererDone := make(chan error, 1)
	go func() {
		recovererDone <- g.Do(context.Background(), func(context.Context) (bool, error) {
			return recovererCalls.Add(1) == 1, nil
		})
	}()

	<-pauser.entered
	require.True(t, g.Blocked())

	var waiterCalls atomic.Int32
	waiterDone := make(chan error, 1)
	go func() {
		waiterDone <- g.Do(context.Background(), func(context.Context) (bool, error) {
			waiterCalls.Add(1)
			return false, nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, waiterCalls.Load(), "waiter must not issue requests while the gate is blocked")

	close(pauser.release)
	require.NoError(t, <-recovererDone)
	require.NoError(t, <-waiterDone)
	assert.Equal(t, int32(2), recovererCalls.Load())
	assert.Equal(t, int32(1), waiterCalls.Load())
	assert.False(t, g.Blocked())
}

func TestReblockElectsNewRecoverer(t *testing.T) {
	t.Parallel()

	pauser := &countingPauser{}
	g := New(Config{}, nil)
	g.pause = pauser

	// Each Do sees one block followed by a successful retry.
	script := []bool{true, false, true, false}
	var mu sync.Mutex
	i := 0
	err := g.Do(context.Background(), func(context.Context) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		blocked := script[i]
		i++
		return blocked, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, i)
	assert.Equal(t, int32(1), pauser.calls.Load())

	// A later block elects a new recoverer.
	err = g.Do(context.Background(), func(context.Context) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		blocked := script[i]
		i++
		return blocked, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, i)
	assert.Equal(t, int32(2), pauser.calls.Load())
}

func TestRecoveryCountsTransportErrorsAsRetries(t *testing.T) {
	t.Parallel()

	pauser := &countingPauser{}
	g := New(Config{MaxRetries: 5}, nil)
	g.pause = pauser

	calls := 0
	err := g.Do(context.Background(), func(context.Context) (bool, error) {
		calls++
		switch calls {
		case 1:
			return true, nil
		case 2:
			return false, errors.New("timeout")
		default:
			return false, nil
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int32(2), pauser.calls.Load())
}

func TestRecoveryExhaustedIsSticky(t *testing.T) {
	t.Parallel()

	pauser := &countingPauser{}
	g := New(Config{MaxRetries: 3}, nil)
	g.pause = pauser

	err := g.Do(context.Background(), func(context.Context) (bool, error) {
		return true, nil
	})
	require.ErrorIs(t, err, ErrRecoveryExhausted)
	assert.Equal(t, int32(3), pauser.calls.Load())
	assert.False(t, g.Blocked())

	assert.ErrorIs(t, g.Wait(context.Background()), ErrRecoveryExhausted)
	called := false
	err = g.Do(context.Background(), func(context.Context) (bool, error) {
		called = true
		return false, nil
	})
	assert.ErrorIs(t, err, ErrRecoveryExhausted)
	assert.False(t, called)
}

func TestRecoveryHonorsContext(t *testing.T) {
	t.Parallel()

	g := New(Config{Backoff: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- g.Do(ctx, func(context.Context) (bool, error) { return true, nil })
	}()

	require.Eventually(t, g.Blocked, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("recoverer did not observe cancellation")
	}
	assert.False(t, g.Blocked())
	assert.NoError(t, g.Wait(context.Background()))
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	pauser := &chanPauser{entered: make(chan struct{}, 1), release: make(chan struct{})}
	g := New(Config{}, nil)
	g.pause = pauser

	var calls atomic.Int32
	go func() {
		_ = g.Do(context.Background(), func(context.Context) (bool, error) {
			return calls.Add(1) == 1, nil
		})
	}()
	<-pauser.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Wait(ctx), context.DeadlineExceeded)
	close(pauser.release)
}
