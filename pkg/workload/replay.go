package workload

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/nobletooth/rangesum/pkg/rangesum"
)

// Result summarizes one replay.
type Result struct {
	Queries int
	Updates int
	Elapsed time.Duration
	// Digest is an xxhash of every query result in order. Replays of the same workload over equal arrays must agree
	// on it whatever the cache configuration.
	Digest uint64
}

// replayCheckInterval is how many ops run between two context checks.
const replayCheckInterval = 1024

// Replay runs `ops` in order through `service` against `array`, which it mutates. It stops at the first failing op,
// or soon after `ctx` is cancelled.
func Replay(ctx context.Context, service *rangesum.Service, array []int64, ops []Op) (Result, error) {
	var result Result
	digest := xxhash.New()
	var buf [8]byte
	start := time.Now()
	for i, op := range ops {
		if i%replayCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return result, fmt.Errorf("replay stopped at op %d: %w", i, err)
			}
		}
		switch op.Kind {
		case OpRange:
			sum, err := service.QueryRange(array, op.A, int(op.B))
			if err != nil {
				return result, fmt.Errorf("op %d (%s [%d, %d]): %w", i, op.Kind, op.A, op.B, err)
			}
			binary.LittleEndian.PutUint64(buf[:], uint64(sum))
			_, _ = digest.Write(buf[:])
			result.Queries++
		case OpUpdate:
			if err := service.Update(array, op.A, op.B); err != nil {
				return result, fmt.Errorf("op %d (%s %d=%d): %w", i, op.Kind, op.A, op.B, err)
			}
			result.Updates++
		default:
			return result, fmt.Errorf("op %d: unknown kind %s", i, op.Kind)
		}
	}
	result.Elapsed = time.Since(start)
	result.Digest = digest.Sum64()
	return result, nil
}
