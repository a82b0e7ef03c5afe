// Package promise provides a fixed board of single-assignment slots keyed by
// dense IDs, letting out-of-order producers feed an in-order consumer.
package promise

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownSlot is returned for IDs outside 1..N.
	ErrUnknownSlot = errors.New("unknown slot")
	// ErrAlreadyResolved is returned when a slot is resolved twice.
	ErrAlreadyResolved = errors.New("slot already resolved")
)

type slot[T any] struct {
	done  chan struct{}
	value T
}

// Board holds one slot per ID in 1..N. Each slot is resolved at most once
// and may be awaited by any number of goroutines.
type Board[T any] struct {
	slots []slot[T]
	// resolved holds one token per slot; sending it claims the slot.
	resolved []chan struct{}
}

// New creates all N slots up front.
func New[T any](n int) *Board[T] {
	if n < 0 {
		n = 0
	}
	b := &Board[T]{
		slots:    make([]slot[T], n),
		resolved: make([]chan struct{}, n),
	}
	for i := range b.slots {
		b.slots[i].done = make(chan struct{})
		b.resolved[i] = make(chan struct{}, 1)
	}
	return b
}

// Len returns N.
func (b *Board[T]) Len() int {
	return len(b.slots)
}

func (b *Board[T]) index(id int) (int, error) {
	if id < 1 || id > len(b.slots) {
		return 0, fmt.Errorf("%w: %d (board holds 1..%d)", ErrUnknownSlot, id, len(b.slots))
	}
	return id - 1, nil
}

// Resolve stores v for id and wakes its waiters.
func (b *Board[T]) Resolve(id int, v T) error {
	i, err := b.index(id)
	if err != nil {
		return err
	}
	select {
	case b.resolved[i] <- struct{}{}:
	default:
		return fmt.Errorf("%w: %d", ErrAlreadyResolved, id)
	}
	b.slots[i].value = v
	close(b.slots[i].done)
	return nil
}

// Await blocks until id is resolved or ctx is done.
func (b *Board[T]) Await(ctx context.Context, id int) (T, error) {
	var zero T
	i, err := b.index(id)
	if err != nil {
		return zero, err
	}
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-b.slots[i].done:
		return b.slots[i].value, nil
	}
}

// Release drops the stored value of a resolved slot so it can be collected.
// Only the slot's single consumer may call it, after its Await returns.
// Awaiting a released slot returns the zero value.
func (b *Board[T]) Release(id int) {
	i, err := b.index(id)
	if err != nil {
		return
	}
	select {
	case <-b.slots[i].done:
		var zero T
		b.slots[i].value = zero
	default:
	}
}
