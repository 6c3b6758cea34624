package cache

import (
	"math/rand/v2"
	"testing"

	"github.com/nobletooth/rangesum/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache builds a cache or fails the test.
func newTestCache(t *testing.T, capacity int, opts Options) *RangeCache {
	t.Helper()
	rc, err := NewRangeCache(capacity, opts)
	require.NoError(t, err)
	return rc
}

// bothVariants runs `test` against a plain cache and one with an interval index.
func bothVariants(t *testing.T, test func(t *testing.T, opts Options)) {
	t.Run("plain", func(t *testing.T) { test(t, Options{}) })
	t.Run("interval_index", func(t *testing.T) { test(t, Options{IntervalIndex: true}) })
}

func TestNewRangeCache(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		rc, err := NewRangeCache(capacity, Options{})
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.Nil(t, rc)
	}
	rc := newTestCache(t, 3, Options{})
	assert.Equal(t, 3, rc.Capacity())
	assert.Zero(t, rc.Size())
	assert.Empty(t, rc.Keys())
}

func TestRangeCache_PutAndGet(t *testing.T) {
	bothVariants(t, func(t *testing.T, opts Options) {
		rc := newTestCache(t, 4, opts)

		_, found := rc.Get(RangeKey{Left: 1, Right: 3})
		assert.False(t, found, "Empty cache should miss")

		evicted, err := rc.Put(RangeKey{Left: 1, Right: 3}, 9)
		require.NoError(t, err)
		assert.False(t, evicted)
		sum, found := rc.Get(RangeKey{Left: 1, Right: 3})
		assert.True(t, found)
		assert.Equal(t, int64(9), sum)

		// Sums that a sentinel based design would confuse with a miss are ordinary values here.
		for _, special := range []int64{-1, 0} {
			_, err = rc.Put(RangeKey{Left: 0, Right: 0}, special)
			require.NoError(t, err)
			sum, found = rc.Get(RangeKey{Left: 0, Right: 0})
			assert.True(t, found, "A stored %d must be a hit", special)
			assert.Equal(t, special, sum)
		}
	})
}

func TestRangeCache_PutInvalidRange(t *testing.T) {
	bothVariants(t, func(t *testing.T, opts Options) {
		rc := newTestCache(t, 2, opts)
		_, err := rc.Put(RangeKey{Left: 0, Right: 1}, 5)
		require.NoError(t, err)

		for _, key := range []RangeKey{{Left: 3, Right: 2}, {Left: -1, Right: 4}} {
			evicted, err := rc.Put(key, 1)
			assert.ErrorIs(t, err, ErrInvalidRange)
			assert.False(t, evicted)
		}
		assert.Equal(t, []RangeKey{{Left: 0, Right: 1}}, rc.Keys(), "Rejected puts must not change the cache")
	})
}

func TestRangeCache_Overwrite(t *testing.T) {
	bothVariants(t, func(t *testing.T, opts Options) {
		rc := newTestCache(t, 2, opts)
		_, _ = rc.Put(RangeKey{Left: 0, Right: 1}, 1)
		_, _ = rc.Put(RangeKey{Left: 2, Right: 3}, 2)

		evicted, err := rc.Put(RangeKey{Left: 0, Right: 1}, 100)
		require.NoError(t, err)
		assert.False(t, evicted, "Overwriting must not evict")
		assert.Equal(t, 2, rc.Size())
		assert.Equal(t, []RangeKey{{Left: 0, Right: 1}, {Left: 2, Right: 3}}, rc.Keys(), "Overwrite promotes")
		sum, _ := rc.Peek(RangeKey{Left: 0, Right: 1})
		assert.Equal(t, int64(100), sum)
	})
}

func TestRangeCache_Eviction(t *testing.T) {
	keys := []RangeKey{{Left: 0, Right: 0}, {Left: 0, Right: 1}, {Left: 0, Right: 2}, {Left: 0, Right: 3}}

	bothVariants(t, func(t *testing.T, opts Options) {
		t.Run("evicts_least_recent", func(t *testing.T) {
			rc := newTestCache(t, 3, opts)
			for i, key := range keys[:3] {
				evicted, err := rc.Put(key, int64(i))
				require.NoError(t, err)
				assert.False(t, evicted)
			}
			evicted, err := rc.Put(keys[3], 3)
			require.NoError(t, err)
			assert.True(t, evicted)
			_, found := rc.Get(keys[0])
			assert.False(t, found, "First key should have been evicted")
			for _, key := range keys[1:] {
				_, found = rc.Get(key)
				assert.True(t, found, "Key %s should still be cached", key)
			}
		})

		t.Run("get_refreshes_recency", func(t *testing.T) {
			rc := newTestCache(t, 3, opts)
			for i, key := range keys[:3] {
				_, _ = rc.Put(key, int64(i))
			}
			_, found := rc.Get(keys[0])
			require.True(t, found)
			_, _ = rc.Put(keys[3], 3)

			_, found = rc.Peek(keys[1])
			assert.False(t, found, "Second key should have been evicted")
			_, found = rc.Peek(keys[0])
			assert.True(t, found, "Touched key should survive")
			assert.Equal(t, []RangeKey{keys[3], keys[0], keys[2]}, rc.Keys())
		})

		t.Run("peek_keeps_recency", func(t *testing.T) {
			rc := newTestCache(t, 2, opts)
			_, _ = rc.Put(keys[0], 0)
			_, _ = rc.Put(keys[1], 1)
			_, found := rc.Peek(keys[0])
			require.True(t, found)
			_, _ = rc.Put(keys[2], 2)
			_, found = rc.Peek(keys[0])
			assert.False(t, found, "Peek must not protect an entry from eviction")
		})
	})
}

func TestRangeCache_OnEvict(t *testing.T) {
	var evictedKeys []RangeKey
	var evictedSums []int64
	rc := newTestCache(t, 1, Options{OnEvict: func(key RangeKey, sum int64) {
		evictedKeys = append(evictedKeys, key)
		evictedSums = append(evictedSums, sum)
	}})
	evictionsBefore := utils.CounterValue(evictionsMetric)

	_, _ = rc.Put(RangeKey{Left: 0, Right: 4}, 10)
	_, _ = rc.Put(RangeKey{Left: 1, Right: 2}, 20)
	assert.Equal(t, []RangeKey{{Left: 0, Right: 4}}, evictedKeys)
	assert.Equal(t, []int64{10}, evictedSums)
	assert.Equal(t, 1.0, utils.CounterValue(evictionsMetric)-evictionsBefore)

	// Removal, invalidation and purge are not evictions.
	rc.InvalidateCovering(1)
	_, _ = rc.Put(RangeKey{Left: 3, Right: 3}, 30)
	rc.Remove(RangeKey{Left: 3, Right: 3})
	_, _ = rc.Put(RangeKey{Left: 4, Right: 4}, 40)
	rc.Purge()
	assert.Len(t, evictedKeys, 1)
}

func TestRangeCache_Remove(t *testing.T) {
	bothVariants(t, func(t *testing.T, opts Options) {
		rc := newTestCache(t, 3, opts)
		_, _ = rc.Put(RangeKey{Left: 0, Right: 1}, 1)
		_, _ = rc.Put(RangeKey{Left: 1, Right: 2}, 2)

		assert.True(t, rc.Remove(RangeKey{Left: 0, Right: 1}))
		assert.False(t, rc.Remove(RangeKey{Left: 0, Right: 1}), "Second removal finds nothing")
		assert.False(t, rc.Remove(RangeKey{Left: 5, Right: 6}))
		assert.Equal(t, []RangeKey{{Left: 1, Right: 2}}, rc.Keys())
	})
}

func TestRangeCache_InvalidateCovering(t *testing.T) {
	bothVariants(t, func(t *testing.T, opts Options) {
		rc := newTestCache(t, 10, opts)
		entries := map[RangeKey]int64{
			{Left: 0, Right: 1}: 1,
			{Left: 1, Right: 3}: 2,
			{Left: 2, Right: 2}: 3,
			{Left: 3, Right: 5}: 4,
			{Left: 0, Right: 9}: 5,
			{Left: 6, Right: 8}: 6,
		}
		// Insert in a fixed order so the recency order is known.
		order := []RangeKey{{Left: 0, Right: 1}, {Left: 1, Right: 3}, {Left: 2, Right: 2}, {Left: 3, Right: 5},
			{Left: 0, Right: 9}, {Left: 6, Right: 8}}
		for _, key := range order {
			_, err := rc.Put(key, entries[key])
			require.NoError(t, err)
		}
		invalidationsBefore := utils.CounterValue(invalidationsMetric)

		removed := rc.InvalidateCovering(2)
		assert.Equal(t, 3, removed)
		assert.Equal(t, 3.0, utils.CounterValue(invalidationsMetric)-invalidationsBefore)
		for key, sum := range entries {
			got, found := rc.Peek(key)
			if key.Covers(2) {
				assert.False(t, found, "Key %s covers the index and must be gone", key)
			} else {
				assert.True(t, found, "Key %s doesn't cover the index and must survive", key)
				assert.Equal(t, sum, got)
			}
		}
		// Survivors keep their relative order, most recent first.
		assert.Equal(t, []RangeKey{{Left: 6, Right: 8}, {Left: 3, Right: 5}, {Left: 0, Right: 1}}, rc.Keys())

		t.Run("idempotent", func(t *testing.T) {
			keysBefore := rc.Keys()
			assert.Zero(t, rc.InvalidateCovering(2))
			assert.Equal(t, keysBefore, rc.Keys())
		})

		t.Run("uncovered_index", func(t *testing.T) {
			assert.Zero(t, rc.InvalidateCovering(100))
			assert.Equal(t, 3, rc.Size())
		})
	})
}

func TestRangeCache_Purge(t *testing.T) {
	bothVariants(t, func(t *testing.T, opts Options) {
		rc := newTestCache(t, 3, opts)
		_, _ = rc.Put(RangeKey{Left: 0, Right: 1}, 1)
		_, _ = rc.Put(RangeKey{Left: 1, Right: 2}, 2)
		rc.Purge()
		assert.Zero(t, rc.Size())
		assert.Empty(t, rc.Keys())
		_, found := rc.Get(RangeKey{Left: 0, Right: 1})
		assert.False(t, found)

		// The cache is fully usable after a purge.
		_, _ = rc.Put(RangeKey{Left: 4, Right: 4}, 4)
		assert.Equal(t, 1, rc.Size())
		assert.Equal(t, 1, rc.InvalidateCovering(4))
	})
}

// TestRangeCache_RandomizedAgainstIndexedVariant drives a plain cache and an interval indexed cache with the same
// random operations; both must stay within capacity and hold identical contents in identical order.
func TestRangeCache_RandomizedAgainstIndexedVariant(t *testing.T) {
	const capacity, span, steps = 16, 40, 5_000
	rnd := rand.New(rand.NewPCG(7, 11))
	plain := newTestCache(t, capacity, Options{})
	indexed := newTestCache(t, capacity, Options{IntervalIndex: true})

	for step := range steps {
		left := rnd.IntN(span)
		key := RangeKey{Left: left, Right: left + rnd.IntN(span-left)}
		switch op := rnd.IntN(10); {
		case op < 5:
			sum := rnd.Int64N(200) - 100
			plainEvicted, plainErr := plain.Put(key, sum)
			indexedEvicted, indexedErr := indexed.Put(key, sum)
			require.NoError(t, plainErr)
			require.NoError(t, indexedErr)
			require.Equal(t, plainEvicted, indexedEvicted, "step %d", step)
			got, found := plain.Peek(key)
			require.True(t, found)
			require.Equal(t, sum, got)
		case op < 8:
			plainSum, plainFound := plain.Get(key)
			indexedSum, indexedFound := indexed.Get(key)
			require.Equal(t, plainFound, indexedFound, "step %d", step)
			require.Equal(t, plainSum, indexedSum, "step %d", step)
		default:
			index := rnd.IntN(span)
			require.Equal(t, plain.InvalidateCovering(index), indexed.InvalidateCovering(index), "step %d", step)
			for _, key := range plain.Keys() {
				require.False(t, key.Covers(index), "step %d: %s survived invalidation of %d", step, key, index)
			}
		}
		require.LessOrEqual(t, plain.Size(), plain.Capacity())
		require.Equal(t, plain.Keys(), indexed.Keys(), "step %d", step)
	}
}
