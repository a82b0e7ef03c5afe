// Package sequence hands out dense, monotonically increasing integer IDs.
package sequence

import "sync/atomic"

// Allocator returns each positive integer exactly once, starting at 1. It
// enforces no upper bound; callers compare against their last ID and stop.
type Allocator struct {
	current atomic.Int64
}

// New returns an allocator whose first Next call yields 1.
func New() *Allocator {
	return &Allocator{}
}

// Next claims the next unallocated ID. It is safe for concurrent use.
func (a *Allocator) Next() int {
	return int(a.current.Add(1))
}

// Last returns the most recently allocated ID, or 0 if none.
func (a *Allocator) Last() int {
	return int(a.current.Load())
}
