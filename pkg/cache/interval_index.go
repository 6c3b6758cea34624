// The interval index is an optional secondary structure on top of the LRU. Invalidation has to find every key that
// covers a mutated index, which the recency list can't answer without visiting all of its nodes. Keeping the resident
// keys sorted by their left bound lets invalidation stop at the first key that starts after the mutated index, so
// the visited set shrinks to the keys with Left <= index.

package cache

import "github.com/tidwall/btree"

// intervalIndex keeps resident keys ordered by (Left, Right). Not thread-safe; guarded by its RangeCache's owner.
type intervalIndex struct {
	tree *btree.BTreeG[RangeKey]
}

func newIntervalIndex() *intervalIndex {
	return &intervalIndex{
		tree: btree.NewBTreeGOptions(func(a, b RangeKey) bool { return compareRangeKeys(a, b) < 0 },
			btree.Options{NoLocks: true}),
	}
}

func (ii *intervalIndex) insert(key RangeKey) {
	ii.tree.Set(key)
}

func (ii *intervalIndex) remove(key RangeKey) {
	ii.tree.Delete(key)
}

func (ii *intervalIndex) len() int {
	return ii.tree.Len()
}

func (ii *intervalIndex) clear() {
	ii.tree.Clear()
}

// covering returns every indexed key with Left <= index <= Right, in (Left, Right) order.
func (ii *intervalIndex) covering(index int) []RangeKey {
	var keys []RangeKey
	ii.tree.Scan(func(key RangeKey) bool {
		if key.Left > index { // Every following key starts after index.
			return false
		}
		if key.Right >= index {
			keys = append(keys, key)
		}
		return true
	})
	return keys
}
