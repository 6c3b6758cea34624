// Build information for the rangesum binary. Version, Commit and BuildTime are set through -ldflags at build time,
// e.g. -X github.com/nobletooth/rangesum/pkg/utils.Version=v0.3.1.
// CAUTION: This file shouldn't be removed or else the build flags wouldn't have a target.

package utils

import (
	"log/slog"
	"strconv"
	"time"
)

const unknownBuildValue = "unknown"

var (
	TestMode   string // Should be "true" when building test binaries.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  time.Time
)

func init() {
	StartTime = time.Now()

	// If build info is not set, make that clear.
	if Version == "" {
		Version = unknownBuildValue
	}
	if Commit == "" {
		Commit = unknownBuildValue
	}
	if BuildTime == "" {
		BuildTime = unknownBuildValue
	}
	if len(TestMode) > 0 {
		if isTestMode, err := strconv.ParseBool(TestMode); err == nil {
			IsTestMode = isTestMode
		} else {
			slog.Warn("Failed to parse TestMode build flag, defaulting to false.", "error", err)
		}
	}
}

// Uptime returns how long the process has been running.
func Uptime() time.Duration {
	return time.Since(StartTime)
}
