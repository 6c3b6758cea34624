package port

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nobletooth/rangesum/pkg/rangesum"
)

// RangeSumBackend binds one array to one range sum service for the Redis port. Connections are served concurrently
// while neither the array nor the service is thread-safe, so every operation holds the same mutex over both; a query
// can never interleave with an update to the same array.
type RangeSumBackend struct {
	mux     sync.Mutex
	array   []int64
	service *rangesum.Service
}

// NewRangeSumBackend takes ownership of `array`; callers must not touch it afterwards.
func NewRangeSumBackend(array []int64, service *rangesum.Service) (*RangeSumBackend, error) {
	if service == nil {
		return nil, errors.New("expected a non-nil range sum service")
	}
	if len(array) == 0 {
		return nil, errors.New("expected a non-empty array")
	}
	return &RangeSumBackend{array: array, service: service}, nil
}

// Sum returns the sum of array[left..right].
func (b *RangeSumBackend) Sum(left, right int) (int64, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.service.QueryRange(b.array, left, right)
}

// Set writes array[index] and invalidates the cached sums covering it.
func (b *RangeSumBackend) Set(index int, value int64) error {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.service.Update(b.array, index, value)
}

// Get returns array[index].
func (b *RangeSumBackend) Get(index int) (int64, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	if index < 0 || index >= len(b.array) {
		return 0, fmt.Errorf("%w: index %d, array length %d", rangesum.ErrOutOfBounds, index, len(b.array))
	}
	return b.array[index], nil
}

// Len returns the array length.
func (b *RangeSumBackend) Len() int {
	b.mux.Lock()
	defer b.mux.Unlock()
	return len(b.array)
}

// CacheInfo returns the number of cached sums and the cache capacity.
func (b *RangeSumBackend) CacheInfo() (size, capacity int) {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.service.Cache().Size(), b.service.Cache().Capacity()
}
