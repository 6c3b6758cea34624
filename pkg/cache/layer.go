// The range sum service talks to its cache through Layer so the same service can run with caching disabled. That is
// how the naive path is measured against the cached path, and how the binary runs when the cache is turned off.

package cache

import "fmt"

// Layer is a store of range sums with overlap invalidation.
type Layer interface {
	// Get returns the sum for key and whether it was found.
	Get(key RangeKey) (int64, bool)
	// Peek is Get without touching recency.
	Peek(key RangeKey) (int64, bool)
	// Put stores the sum for key. It returns true if another entry was evicted to make room.
	Put(key RangeKey, sum int64) (bool, error)
	// Remove deletes key and reports whether it was present.
	Remove(key RangeKey) bool
	// InvalidateCovering removes every key whose range contains index and returns how many were removed.
	InvalidateCovering(index int) int
	Size() int     // Number of resident entries.
	Capacity() int // Maximum number of resident entries.
	Purge()        // Removes all entries.
}

// View is the read-only part of a Layer. None of its methods change the contents or the recency order.
type View interface {
	Peek(key RangeKey) (int64, bool)
	Size() int
	Capacity() int
}

// NoOp is a cache layer that doesn't store any items.
// It is used when cache is disabled.
type NoOp struct{} // Implements Layer.

var _ Layer = NoOp{}

// Get always misses.
func (NoOp) Get(RangeKey) (int64, bool) {
	return 0, false
}

// Peek always misses.
func (NoOp) Peek(RangeKey) (int64, bool) {
	return 0, false
}

// Put validates the key and drops the sum.
func (NoOp) Put(key RangeKey, _ int64) (bool, error) {
	if !key.Valid() {
		return false, fmt.Errorf("%w: %s", ErrInvalidRange, key)
	}
	return false, nil
}

// Remove never finds anything to remove.
func (NoOp) Remove(RangeKey) bool {
	return false
}

// InvalidateCovering never finds anything to remove.
func (NoOp) InvalidateCovering(int) int {
	return 0
}

func (NoOp) Size() int     { return 0 }
func (NoOp) Capacity() int { return 0 }
func (NoOp) Purge()        {}
