package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/types/dynamicpb"
)

var configFilePath = flag.String("config_file", "", "Path to a .txtpb configuration file; empty disables it.")

// InitFlags parses the command line and then applies the config file given by -config_file.
// Flags given on the command line take precedence over the config file.
func InitFlags() {
	flag.Parse()

	if *configFilePath == "" {
		slog.Info("Config file not specified. Skipping config initialization.")
		return
	}

	commandLineFlags := make(map[string]struct{})
	flag.Visit(func(f *flag.Flag) { commandLineFlags[f.Name] = struct{}{} })

	err := applyConfigFile(*configFilePath, commandLineFlags)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file does not exist.", "path", *configFilePath, "error", err)
		return
	}
	if err != nil { // Fall back to the flag values.
		slog.Error("Failed to apply config file.", "path", *configFilePath, "error", err)
		return
	}
}

// LoadConfigFile sets every flag written in the .txtpb file at `path`.
func LoadConfigFile(path string) error {
	return applyConfigFile(path, nil /*skippedFlags*/)
}

// applyConfigFile sets the flags written in the config file at `path`, except those in `skippedFlags`.
// Either every written flag is set or, on error, none are.
func applyConfigFile(path string, skippedFlags map[string]struct{}) error {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	descriptor, err := buildConfigDescriptor()
	if err != nil {
		return err
	}
	conf := dynamicpb.NewMessage(descriptor)
	if err := prototext.Unmarshal(configBytes, conf); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	configFlags, err := collectConfigFlags(conf)
	if err != nil {
		return fmt.Errorf("failed to collect flags: %w", err)
	}

	// Previous values of the flags set so far, restored if a later flag rejects its value.
	previous := make(map[string]string, len(configFlags))
	for _, flagName := range slices.Sorted(maps.Keys(configFlags)) {
		if _, skipped := skippedFlags[flagName]; skipped {
			slog.Debug("Flag set on the command line, ignoring config file value.", "flag", flagName)
			continue
		}
		oldValue := flag.Lookup(flagName).Value.String()
		if setErr := flag.Set(flagName, configFlags[flagName]); setErr != nil {
			restoreFlags(previous)
			return fmt.Errorf("failed to set flag %s: %w", flagName, setErr)
		}
		previous[flagName] = oldValue
	}
	slog.Debug("Config file applied.", "path", path, "flags", len(configFlags))
	return nil
}

// restoreFlags sets every flag in `values` back to its recorded value.
func restoreFlags(values map[string]string) {
	for flagName, value := range values {
		if err := flag.Set(flagName, value); err != nil {
			slog.Error("Failed to restore flag.", "flag", flagName, "value", value, "error", err)
		}
	}
}
