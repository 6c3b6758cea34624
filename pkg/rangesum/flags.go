// Caching is enabled by default; users may disable it, resize it, or turn on the optional invalidation accelerators.

package rangesum

import (
	"flag"
	"fmt"
	"log/slog"

	"github.com/nobletooth/rangesum/pkg/cache"
)

var (
	cacheEnabled  = flag.Bool("enable_range_cache", true, "Enable the range sum cache.")
	cacheCapacity = flag.Int("range_cache_capacity", 1000,
		"The maximum number of range sums to keep in the cache.")
	cacheIntervalIndex = flag.Bool("range_cache_interval_index", false,
		"Keep cached ranges sorted by bounds so invalidation visits fewer entries.")
	coverageFilterEnabled = flag.Bool("enable_coverage_filter", false,
		"Skip invalidation scans for indices no cached range has covered, using a bloom filter.")
	coverageFilterIndices = flag.Uint("coverage_filter_expected_indices", 100_000,
		"Number of distinct array indices the coverage filter is sized for.")
	coverageFilterFalsePositiveRate = flag.Float64("coverage_filter_false_positive_rate", 0.01,
		"Target false positive rate of the coverage filter.")
)

// NewServiceFromFlags builds a service according to the configured flags. A disabled cache yields a service that
// computes every query from the array.
func NewServiceFromFlags() (*Service, error) {
	var layer cache.Layer = cache.NoOp{}
	if *cacheEnabled {
		rangeCache, err := cache.NewRangeCache(*cacheCapacity, cache.Options{IntervalIndex: *cacheIntervalIndex})
		if err != nil {
			return nil, fmt.Errorf("failed to create range cache: %w", err)
		}
		layer = rangeCache
	}
	slog.Debug("Range sum service configured.", "cacheEnabled", *cacheEnabled, "capacity", layer.Capacity(),
		"intervalIndex", *cacheIntervalIndex, "coverageFilter", *coverageFilterEnabled)
	return NewService(layer, Options{
		CoverageFilter:    *coverageFilterEnabled && *cacheEnabled,
		ExpectedIndices:   *coverageFilterIndices,
		FalsePositiveRate: *coverageFilterFalsePositiveRate,
	})
}
