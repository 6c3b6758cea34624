// Runs the range sum cache either as a benchmark of cached against naive range sums, or as a Redis-protocol server.

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nobletooth/rangesum/pkg/config"
	"github.com/nobletooth/rangesum/pkg/utils"
)

var (
	printVersion = flag.Bool("print_version", false, "Print the version and exit.")
	mode         = flag.String("mode", "bench", "What to run: bench/serve")
)

func main() {
	config.InitFlags()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Rangesum build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)

	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling context.", "signal", sig)
		cancel()
	}()

	var err error
	switch *mode {
	case "bench":
		_, err = runBench(ctx)
	case "serve":
		err = runServe(ctx)
	default:
		slog.Error("Unknown mode.", "mode", *mode)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("Rangesum stopped.", "mode", *mode, "err", err)
		os.Exit(1)
	}
}
