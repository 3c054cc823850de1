// Biometric station - fingerprint capture service
//
// This is the main entry point for the capture station. It drives one USB
// fingerprint sensor, scores every frame it captures, and publishes images
// and quality verdicts over WebSocket, MQTT and InfluxDB.
//
// Subcommands:
//   - serve: run the station
//   - score: score a raw frame file offline
//   - prune: drop old capture log rows
//   - version: print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns the configuration file path.
// Uses BIOMETRIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BIOMETRIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
