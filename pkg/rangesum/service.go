// Package rangesum answers range sum queries over a caller owned array through a range cache, and keeps the cache
// correct when the array changes.
//
// The array is borrowed for the duration of each call and never retained; the cache only ever holds range keys and
// sums. A Service owns its cache layer for its whole lifetime. Service isn't safe for concurrent use: concurrent
// callers must serialize queries and updates on the array and service as one unit (see the port package).

package rangesum

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nobletooth/rangesum/pkg/cache"
	"github.com/nobletooth/rangesum/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrOutOfBounds  = errors.New("index out of bounds")
	ErrInvalidRange = cache.ErrInvalidRange

	lookupsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "range_sum_lookups_total",
		Help: "Total number of range sum cache lookups.",
	}, []string{"status" /* hit | miss */})
	updatesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "range_sum_updates_total",
		Help: "Total number of array updates by whether the invalidation scan ran.",
	}, []string{"scan" /* full | skipped */})
)

// Options tune a Service.
type Options struct {
	// CoverageFilter enables a bloom filter of every index covered by a cached range. Updates to indices the filter
	// has never seen skip the invalidation scan.
	CoverageFilter bool
	// ExpectedIndices sizes the coverage filter; the array length is a good value.
	ExpectedIndices uint
	// FalsePositiveRate of the coverage filter. A false positive only costs an unnecessary scan.
	FalsePositiveRate float64
}

// Service computes range sums with caching and invalidates cached sums on updates.
type Service struct {
	layer    cache.Layer
	coverage *coverageFilter // Nil unless Options.CoverageFilter is set.
}

// NewService creates a service that owns `layer`.
func NewService(layer cache.Layer, opts Options) (*Service, error) {
	if layer == nil {
		return nil, errors.New("expected a non-nil cache layer")
	}
	s := &Service{layer: layer}
	if opts.CoverageFilter {
		coverage, err := newCoverageFilter(opts.ExpectedIndices, opts.FalsePositiveRate)
		if err != nil {
			return nil, fmt.Errorf("failed to create coverage filter: %w", err)
		}
		s.coverage = coverage
	}
	return s, nil
}

// cacheView hides the mutating half of the layer. Writes that bypass the service would never reach the coverage
// filter and could survive an update.
type cacheView struct {
	layer cache.Layer
}

func (v cacheView) Peek(key cache.RangeKey) (int64, bool) { return v.layer.Peek(key) }
func (v cacheView) Size() int                             { return v.layer.Size() }
func (v cacheView) Capacity() int                         { return v.layer.Capacity() }

// Cache returns a read-only view of the layer owned by the service.
func (s *Service) Cache() cache.View {
	return cacheView{layer: s.layer}
}

// QueryRange returns the sum of array[left..right], both bounds inclusive.
// A cached sum is returned as is; otherwise the sum is computed from the array and cached.
func (s *Service) QueryRange(array []int64, left, right int) (int64, error) {
	key := cache.RangeKey{Left: left, Right: right}
	if left > right {
		return 0, fmt.Errorf("%w: %s", ErrInvalidRange, key)
	}
	if left < 0 || right >= len(array) {
		return 0, fmt.Errorf("%w: range %s, array length %d", ErrOutOfBounds, key, len(array))
	}

	if sum, found := s.layer.Get(key); found {
		lookupsMetric.WithLabelValues("hit").Inc()
		return sum, nil
	}
	lookupsMetric.WithLabelValues("miss").Inc()

	sum := SumRange(array, left, right)
	if _, err := s.layer.Put(key, sum); err != nil {
		// The key was validated above, so the layer has no reason to reject it.
		utils.RaiseInvariant("rangesum", "put_rejected", "Cache rejected a validated range.",
			"key", key, "error", err)
		return sum, nil
	}
	if s.coverage != nil {
		s.coverage.add(key)
	}
	return sum, nil
}

// Update sets array[index] to value and removes every cached sum whose range covers index before returning, so no
// later query can observe a stale sum.
func (s *Service) Update(array []int64, index int, value int64) error {
	if index < 0 || index >= len(array) {
		return fmt.Errorf("%w: index %d, array length %d", ErrOutOfBounds, index, len(array))
	}
	array[index] = value

	if s.coverage != nil && !s.coverage.mayCover(index) {
		updatesMetric.WithLabelValues("skipped").Inc()
		return nil
	}
	updatesMetric.WithLabelValues("full").Inc()
	if removed := s.layer.InvalidateCovering(index); removed > 0 {
		slog.Debug("Array update invalidated cached sums.", "index", index, "removed", removed)
	}
	if s.coverage != nil && s.layer.Size() == 0 {
		s.coverage.reset()
	}
	return nil
}

// Reset drops every cached sum.
func (s *Service) Reset() {
	s.layer.Purge()
	if s.coverage != nil {
		s.coverage.reset()
	}
}

// SumRange is the uncached computation of array[left..right]. Bounds must already be validated.
func SumRange(array []int64, left, right int) int64 {
	var sum int64
	for _, value := range array[left : right+1] {
		sum += value
	}
	return sum
}
