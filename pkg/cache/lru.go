// RangeCache is a bounded LRU cache of range sums. A map gives O(1) lookup from a range key to its node in a doubly
// linked recency list; Get and Put splice the touched node to the front and eviction pops the back node together with
// its map entry.
//
// Invalidation is different: which entries go away is decided by range overlap with a mutated index, something the
// recency list knows nothing about. InvalidateCovering is therefore a scan over resident entries, O(Size()) per call,
// and is the dominant cost of an update. Options.IntervalIndex narrows the scan to keys starting at or before the
// mutated index.

package cache

import (
	"fmt"
	"log/slog"

	"github.com/nobletooth/rangesum/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evictionsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "range_cache_evictions_total",
		Help: "Total number of entries evicted from range caches because of capacity.",
	})
	invalidationsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "range_cache_invalidated_entries_total",
		Help: "Total number of entries removed from range caches because their range covered a mutated index.",
	})
)

// Options tune a RangeCache. The zero value is a plain LRU.
type Options struct {
	// IntervalIndex keeps resident keys sorted by their bounds so invalidation visits fewer entries.
	IntervalIndex bool
	// OnEvict is called when an entry is evicted to make room for a new key. It isn't called for entries dropped by
	// Remove, InvalidateCovering or Purge. It must not call back into the cache.
	OnEvict func(key RangeKey, sum int64)
}

type rangeEntry struct {
	key RangeKey
	sum int64
}

// RangeCache maps range keys to precomputed sums with a fixed capacity and least-recently-used eviction.
// It stores keys and sums only; it never computes sums and never sees the array they came from.
// Not safe for concurrent use: callers sharing a cache must serialize access to it together with the array.
type RangeCache struct {
	capacity  int
	index     map[RangeKey]*linkedListNode[rangeEntry]
	recency   linkedList[rangeEntry] // Front is the most recently used entry.
	intervals *intervalIndex         // Nil unless Options.IntervalIndex is set.
	onEvict   func(RangeKey, int64)
}

var _ Layer = (*RangeCache)(nil)

// NewRangeCache creates an empty cache holding at most `capacity` entries.
func NewRangeCache(capacity int, opts Options) (*RangeCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	rc := &RangeCache{
		capacity: capacity,
		index:    make(map[RangeKey]*linkedListNode[rangeEntry], capacity),
		onEvict:  opts.OnEvict,
	}
	if opts.IntervalIndex {
		rc.intervals = newIntervalIndex()
	}
	return rc, nil
}

// Get returns the sum stored for `key` and promotes the entry to most recently used.
// The boolean is false on a miss; a miss is not an error.
func (rc *RangeCache) Get(key RangeKey) (int64, bool /*found*/) {
	node, found := rc.index[key]
	if !found {
		return 0, false
	}
	rc.recency.MoveToFront(node)
	return node.Value.sum, true
}

// Peek returns the sum stored for `key` without touching the recency order.
func (rc *RangeCache) Peek(key RangeKey) (int64, bool /*found*/) {
	node, found := rc.index[key]
	if !found {
		return 0, false
	}
	return node.Value.sum, true
}

// Put stores `sum` for `key` and makes it the most recently used entry. Overwriting a resident key keeps the entry
// count. Inserting a new key into a full cache evicts the least recently used entry first and reports it.
// Invalid keys are rejected with ErrInvalidRange and leave the cache untouched.
func (rc *RangeCache) Put(key RangeKey, sum int64) ( /*evicted*/ bool, error) {
	if !key.Valid() {
		return false, fmt.Errorf("%w: %s", ErrInvalidRange, key)
	}

	if node, found := rc.index[key]; found {
		node.Value.sum = sum
		rc.recency.MoveToFront(node)
		return false, nil
	}

	evicted := false
	if rc.recency.Len() >= rc.capacity {
		evicted = rc.evictOldest()
	}
	rc.index[key] = rc.recency.PushFront(rangeEntry{key: key, sum: sum})
	if rc.intervals != nil {
		rc.intervals.insert(key)
	}
	rc.checkConsistency()
	return evicted, nil
}

// evictOldest drops the least recently used entry. Returns false if there was nothing to drop.
func (rc *RangeCache) evictOldest() bool {
	oldest := rc.recency.Back()
	if oldest == nil {
		utils.RaiseInvariant("cache", "evict_from_empty_list", "Cache is full but its recency list is empty.",
			"capacity", rc.capacity, "indexed", len(rc.index))
		return false
	}
	entry := oldest.Value
	rc.unlink(oldest)
	evictionsMetric.Inc()
	if rc.onEvict != nil {
		rc.onEvict(entry.key, entry.sum)
	}
	return true
}

// unlink removes `node` from every structure of the cache.
func (rc *RangeCache) unlink(node *linkedListNode[rangeEntry]) {
	rc.recency.Remove(node)
	delete(rc.index, node.Value.key)
	if rc.intervals != nil {
		rc.intervals.remove(node.Value.key)
	}
}

// Remove deletes the entry for `key`. Returns true if an entry was removed.
func (rc *RangeCache) Remove(key RangeKey) bool {
	node, found := rc.index[key]
	if !found {
		return false
	}
	rc.unlink(node)
	return true
}

// InvalidateCovering removes every entry whose range satisfies Left <= index <= Right and returns how many were
// removed. Survivors keep their relative recency order. Calling it again with the same index removes nothing.
//
// Cost: O(Size()) without an interval index; with one, O(log n + m) where m is the number of keys with Left <= index.
func (rc *RangeCache) InvalidateCovering(index int) int {
	removed := 0
	if rc.intervals != nil {
		for _, key := range rc.intervals.covering(index) {
			if node, found := rc.index[key]; found {
				rc.unlink(node)
				removed++
			} else {
				utils.RaiseInvariant("cache", "interval_index_orphan", "Interval index holds a key that isn't cached.",
					"key", key)
				rc.intervals.remove(key)
			}
		}
	} else {
		for node := rc.recency.Front(); node != nil; {
			next := node.Next()
			if node.Value.key.Covers(index) {
				rc.unlink(node)
				removed++
			}
			node = next
		}
	}
	if removed > 0 {
		invalidationsMetric.Add(float64(removed))
		slog.Debug("Invalidated cached ranges.", "index", index, "removed", removed, "remaining", rc.Size())
	}
	rc.checkConsistency()
	return removed
}

// Size returns the number of resident entries.
func (rc *RangeCache) Size() int {
	return len(rc.index)
}

// Capacity returns the maximum number of resident entries.
func (rc *RangeCache) Capacity() int {
	return rc.capacity
}

// Keys returns the resident keys from the most to the least recently used.
func (rc *RangeCache) Keys() []RangeKey {
	keys := make([]RangeKey, 0, rc.recency.Len())
	for node := rc.recency.Front(); node != nil; node = node.Next() {
		keys = append(keys, node.Value.key)
	}
	return keys
}

// Purge removes every entry.
func (rc *RangeCache) Purge() {
	clear(rc.index)
	rc.recency = linkedList[rangeEntry]{}
	if rc.intervals != nil {
		rc.intervals.clear()
	}
}

// checkConsistency makes sure the lookup map, the recency list and the interval index agree on the entry count.
func (rc *RangeCache) checkConsistency() {
	if len(rc.index) != rc.recency.Len() {
		utils.RaiseInvariant("cache", "index_recency_mismatch", "Lookup map and recency list disagree on size.",
			"indexed", len(rc.index), "listed", rc.recency.Len())
	}
	if rc.intervals != nil && rc.intervals.len() != len(rc.index) {
		utils.RaiseInvariant("cache", "interval_index_mismatch", "Interval index and lookup map disagree on size.",
			"indexed", len(rc.index), "intervals", rc.intervals.len())
	}
	if len(rc.index) > rc.capacity {
		utils.RaiseInvariant("cache", "capacity_exceeded", "Cache holds more entries than its capacity.",
			"size", len(rc.index), "capacity", rc.capacity)
	}
}
