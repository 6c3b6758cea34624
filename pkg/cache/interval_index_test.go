package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalIndex_Covering(t *testing.T) {
	ii := newIntervalIndex()
	for _, key := range []RangeKey{{0, 0}, {0, 4}, {1, 3}, {2, 2}, {3, 9}, {5, 6}} {
		ii.insert(key)
	}
	assert.Equal(t, 6, ii.len())

	assert.Equal(t, []RangeKey{{0, 0}, {0, 4}}, ii.covering(0))
	assert.Equal(t, []RangeKey{{0, 4}, {1, 3}, {2, 2}}, ii.covering(2))
	assert.Equal(t, []RangeKey{{3, 9}, {5, 6}}, ii.covering(5))
	assert.Empty(t, ii.covering(10))

	ii.remove(RangeKey{Left: 1, Right: 3})
	assert.Equal(t, []RangeKey{{0, 4}, {2, 2}}, ii.covering(2))

	ii.clear()
	assert.Zero(t, ii.len())
	assert.Empty(t, ii.covering(2))
}
