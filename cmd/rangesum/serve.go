package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nobletooth/rangesum/pkg/port"
	"github.com/nobletooth/rangesum/pkg/rangesum"
	"github.com/nobletooth/rangesum/pkg/workload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricsAddress = flag.String("metrics_address", "",
	"The ip:port to expose prometheus metrics on; empty disables the metrics endpoint.")

const metricsShutdownTimeout = 5 * time.Second

// shutdownMetrics gives in-flight scrapes `timeout` to finish and logs when they don't.
func shutdownMetrics(server *http.Server, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down the metrics server.", "address", server.Addr, "error", err)
		return err
	}
	return nil
}

// serveMetrics exposes the default prometheus registry until `ctx` is cancelled.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = shutdownMetrics(server, metricsShutdownTimeout)
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped.", "address", addr, "error", err)
		}
	}()
}

// runServe serves a generated (or loaded) array over the Redis protocol.
func runServe(ctx context.Context) error {
	var array []int64
	if *workloadIn != "" {
		file, err := workload.Load(*workloadIn)
		if err != nil {
			return fmt.Errorf("failed to load workload: %w", err)
		}
		array = file.Array
	} else {
		if *arraySize <= 0 {
			return fmt.Errorf("expected a positive --array_size, got %d", *arraySize)
		}
		array = workload.RandomArray(newRand(), *arraySize, 1, 100)
	}

	service, err := rangesum.NewServiceFromFlags()
	if err != nil {
		return err
	}
	backend, err := port.NewRangeSumBackend(array, service)
	if err != nil {
		return err
	}
	if *metricsAddress != "" {
		serveMetrics(ctx, *metricsAddress)
	}
	return port.RunRedisServer(ctx, backend)
}
