package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/nobletooth/rangesum/pkg/cache"
	"github.com/nobletooth/rangesum/pkg/rangesum"
	"github.com/nobletooth/rangesum/pkg/workload"
)

var (
	arraySize   = flag.Int("array_size", 100_000, "Length of the generated array.")
	queryCount  = flag.Int("query_count", 50_000, "Number of generated operations, updates included.")
	hotPool     = flag.Int("hot_pool", 30, "Number of distinct hot ranges in the generated workload.")
	pHot        = flag.Float64("p_hot", 0.95, "Share of generated range queries hitting the hot pool.")
	pUpdate     = flag.Float64("p_update", 0.03, "Share of generated operations that are updates.")
	seed        = flag.Uint64("seed", 0, "Seed of the workload generator; 0 picks one from the clock.")
	workloadIn  = flag.String("workload_in", "", "Replay this workload file (.msgpack/.cbor) instead of generating one.")
	workloadOut = flag.String("workload_out", "", "Save the generated workload to this file (.msgpack/.cbor).")
)

var errDigestMismatch = errors.New("cached results differ from naive results")

// benchReport is the outcome of one benchmark run.
type benchReport struct {
	naive, cached workload.Result
	speedup       float64
}

// newRand returns the generator seeded by --seed, or by the clock.
func newRand() *rand.Rand {
	s := *seed
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	slog.Info("Workload seed.", "seed", s)
	return rand.New(rand.NewPCG(s, s))
}

// loadOrGenerateWorkload reads --workload_in, or generates a workload from flags and saves it to --workload_out.
func loadOrGenerateWorkload() (workload.File, error) {
	if *workloadIn != "" {
		file, err := workload.Load(*workloadIn)
		if err != nil {
			return workload.File{}, fmt.Errorf("failed to load workload: %w", err)
		}
		slog.Info("Loaded workload.", "path", *workloadIn, "arraySize", len(file.Array), "ops", len(file.Ops))
		return file, nil
	}

	params := workload.DefaultParams()
	params.ArraySize, params.QueryCount, params.HotPool = *arraySize, *queryCount, *hotPool
	params.PHot, params.PUpdate = *pHot, *pUpdate
	rnd := newRand()
	if err := params.Validate(); err != nil {
		return workload.File{}, err
	}
	file := workload.File{Array: workload.RandomArray(rnd, params.ArraySize, params.MinValue, params.MaxValue)}
	ops, err := workload.Generate(rnd, params)
	if err != nil {
		return workload.File{}, fmt.Errorf("failed to generate workload: %w", err)
	}
	file.Ops = ops

	if *workloadOut != "" {
		if err := workload.Save(*workloadOut, file); err != nil {
			return workload.File{}, fmt.Errorf("failed to save workload: %w", err)
		}
		slog.Info("Saved workload.", "path", *workloadOut)
	}
	return file, nil
}

// runBench replays one workload through the naive path and the configured cache, checks that both agree and logs
// the timings.
func runBench(ctx context.Context) (benchReport, error) {
	file, err := loadOrGenerateWorkload()
	if err != nil {
		return benchReport{}, err
	}

	naiveService, err := rangesum.NewService(cache.NoOp{}, rangesum.Options{})
	if err != nil {
		return benchReport{}, err
	}
	cachedService, err := rangesum.NewServiceFromFlags()
	if err != nil {
		return benchReport{}, err
	}

	var report benchReport
	if report.naive, err = workload.Replay(ctx, naiveService, slices.Clone(file.Array), file.Ops); err != nil {
		return benchReport{}, fmt.Errorf("naive replay failed: %w", err)
	}
	if report.cached, err = workload.Replay(ctx, cachedService, slices.Clone(file.Array), file.Ops); err != nil {
		return benchReport{}, fmt.Errorf("cached replay failed: %w", err)
	}
	if report.naive.Digest != report.cached.Digest {
		return report, fmt.Errorf("%w: naive digest %x, cached digest %x", errDigestMismatch,
			report.naive.Digest, report.cached.Digest)
	}

	if report.cached.Elapsed > 0 {
		report.speedup = report.naive.Elapsed.Seconds() / report.cached.Elapsed.Seconds()
	}
	slog.Info("Benchmark finished.",
		"queries", report.naive.Queries, "updates", report.naive.Updates,
		"naive", report.naive.Elapsed, "cached", report.cached.Elapsed,
		"speedup", fmt.Sprintf("x%.2f", report.speedup),
		"cachedSums", cachedService.Cache().Size(), "capacity", cachedService.Cache().Capacity())
	return report, nil
}
