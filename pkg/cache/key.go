package cache

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange    = errors.New("invalid range")
	ErrInvalidCapacity = errors.New("invalid cache capacity")
)

// RangeKey identifies a contiguous range [Left, Right] of the array; both bounds are inclusive.
// Two keys are equal iff both bounds match, so RangeKey can be used directly as a map key.
type RangeKey struct {
	Left, Right int
}

// Valid reports whether the key satisfies 0 <= Left <= Right.
func (k RangeKey) Valid() bool {
	return k.Left >= 0 && k.Left <= k.Right
}

// Covers reports whether `index` falls inside the range.
func (k RangeKey) Covers(index int) bool {
	return k.Left <= index && index <= k.Right
}

// Len returns the number of elements in the range.
func (k RangeKey) Len() int {
	return k.Right - k.Left + 1
}

func (k RangeKey) String() string {
	return fmt.Sprintf("[%d, %d]", k.Left, k.Right)
}

// compareRangeKeys orders keys by Left and then by Right.
func compareRangeKeys(a, b RangeKey) int {
	switch {
	case a.Left < b.Left:
		return -1
	case a.Left > b.Left:
		return 1
	case a.Right < b.Right:
		return -1
	case a.Right > b.Right:
		return 1
	default:
		return 0
	}
}
