// Package workload generates, replays and persists synthetic range sum workloads. The generated traffic is skewed
// the way real dashboards are: most queries hit a small pool of hot ranges, a few are random, and a small share of
// operations are point updates that force invalidation.

package workload

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrInvalidParams = errors.New("invalid workload parameters")

// OpKind tells range queries and updates apart.
type OpKind uint8

const (
	OpRange OpKind = iota
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpRange:
		return "range"
	case OpUpdate:
		return "update"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// Op is one workload operation. For OpRange, A and B are the inclusive left and right bounds. For OpUpdate, A is the
// index and B the new value.
type Op struct {
	Kind OpKind `msgpack:"k" cbor:"k"`
	A    int    `msgpack:"a" cbor:"a"`
	B    int64  `msgpack:"b" cbor:"b"`
}

// RangeOp builds a query of array[left..right].
func RangeOp(left, right int) Op {
	return Op{Kind: OpRange, A: left, B: int64(right)}
}

// UpdateOp builds an update of array[index] to value.
func UpdateOp(index int, value int64) Op {
	return Op{Kind: OpUpdate, A: index, B: value}
}

// Params describe a generated workload.
type Params struct {
	ArraySize  int     // Length of the array the workload runs against.
	QueryCount int     // Number of operations, updates included.
	HotPool    int     // Number of distinct hot ranges.
	PHot       float64 // Share of range queries drawn from the hot pool.
	PUpdate    float64 // Share of operations that are updates.
	MinValue   int64   // Smallest value written by an update.
	MaxValue   int64   // Largest value written by an update.
}

// DefaultParams returns 50k operations over a 100k element array: 3% updates and 95% of queries on 30 hot ranges.
func DefaultParams() Params {
	return Params{
		ArraySize:  100_000,
		QueryCount: 50_000,
		HotPool:    30,
		PHot:       0.95,
		PUpdate:    0.03,
		MinValue:   1,
		MaxValue:   100,
	}
}

// Validate reports the first inconsistent parameter.
func (p Params) Validate() error {
	switch {
	case p.ArraySize <= 0:
		return fmt.Errorf("%w: array size %d", ErrInvalidParams, p.ArraySize)
	case p.QueryCount < 0:
		return fmt.Errorf("%w: query count %d", ErrInvalidParams, p.QueryCount)
	case p.HotPool <= 0:
		return fmt.Errorf("%w: hot pool %d", ErrInvalidParams, p.HotPool)
	case p.PHot < 0 || p.PHot > 1:
		return fmt.Errorf("%w: hot probability %v", ErrInvalidParams, p.PHot)
	case p.PUpdate < 0 || p.PUpdate > 1:
		return fmt.Errorf("%w: update probability %v", ErrInvalidParams, p.PUpdate)
	case p.MinValue > p.MaxValue:
		return fmt.Errorf("%w: value bounds [%d, %d]", ErrInvalidParams, p.MinValue, p.MaxValue)
	}
	return nil
}

// intBetween returns a uniform integer in [lo, hi]. Only used for array indices, so hi-lo+1 never overflows.
func intBetween(rnd *rand.Rand, lo, hi int) int {
	return lo + rnd.IntN(hi-lo+1)
}

// int64Between returns a uniform integer in [lo, hi]. The width is computed in uint64 so any bounds work, including
// the full int64 range whose width wraps to zero.
func int64Between(rnd *rand.Rand, lo, hi int64) int64 {
	width := uint64(hi) - uint64(lo) + 1
	if width == 0 {
		return int64(rnd.Uint64())
	}
	return int64(uint64(lo) + rnd.Uint64N(width))
}

// Generate draws a workload. Hot ranges start in the first half of the array and end in the second half, so every
// hot range covers the middle element and updates there invalidate the whole hot pool.
func Generate(rnd *rand.Rand, p Params) ([]Op, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.ArraySize
	hot := make([]Op, p.HotPool)
	for i := range hot {
		hot[i] = RangeOp(intBetween(rnd, 0, n/2), intBetween(rnd, n/2, n-1))
	}

	ops := make([]Op, 0, p.QueryCount)
	for range p.QueryCount {
		switch {
		case rnd.Float64() < p.PUpdate:
			ops = append(ops, UpdateOp(intBetween(rnd, 0, n-1), int64Between(rnd, p.MinValue, p.MaxValue)))
		case rnd.Float64() < p.PHot:
			ops = append(ops, hot[rnd.IntN(len(hot))])
		default:
			left := intBetween(rnd, 0, n-1)
			ops = append(ops, RangeOp(left, intBetween(rnd, left, n-1)))
		}
	}
	return ops, nil
}

// RandomArray returns `n` uniform values in [lo, hi].
func RandomArray(rnd *rand.Rand, n int, lo, hi int64) []int64 {
	array := make([]int64, n)
	for i := range array {
		array[i] = int64Between(rnd, lo, hi)
	}
	return array
}
