// The coverage filter answers "could any cached range contain this index?" without scanning the cache. Every index
// of every range put into the cache is added to a bloom filter. Bloom filters have no false negatives, so when the
// filter says an index was never covered, no cached entry can cover it and invalidation can be skipped.
// Entries leaving the cache can't be removed from the filter; it only over-approximates, and it is cleared whenever
// the cache becomes empty.

package rangesum

import (
	"encoding/binary"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/nobletooth/rangesum/pkg/cache"
)

type coverageFilter struct {
	filter *bloom.BloomFilter
	buf    [8]byte
}

func newCoverageFilter(expectedIndices uint, falsePositiveRate float64) (*coverageFilter, error) {
	if expectedIndices == 0 {
		return nil, fmt.Errorf("expected a positive number of indices, got %d", expectedIndices)
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		return nil, fmt.Errorf("false positive rate must be in (0, 1), got %v", falsePositiveRate)
	}
	return &coverageFilter{filter: bloom.NewWithEstimates(expectedIndices, falsePositiveRate)}, nil
}

func (cf *coverageFilter) encode(index int) []byte {
	binary.LittleEndian.PutUint64(cf.buf[:], uint64(index))
	return cf.buf[:]
}

// add marks every index of `key` as covered. Costs O(key.Len()), the same order as computing the sum.
func (cf *coverageFilter) add(key cache.RangeKey) {
	for index := key.Left; index <= key.Right; index++ {
		cf.filter.Add(cf.encode(index))
	}
}

// mayCover returns false only if no range added since the last reset covers `index`.
func (cf *coverageFilter) mayCover(index int) bool {
	return cf.filter.Test(cf.encode(index))
}

func (cf *coverageFilter) reset() {
	cf.filter.ClearAll()
}
