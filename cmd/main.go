package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"riego-dashboard/internal/config"
	"riego-dashboard/internal/logging"
)

const (
	appName = "riego-dashboard"
	// Default version is "dev" if not set with -ldflags "-X main.version=..."
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:          appName,
	Short:        "Live dashboard for the irrigation sensor node",
	Version:      version,
	SilenceUsage: true,
	// Without a subcommand the dashboard is served, as the node expects.
	RunE: runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogger loads the environment configuration and installs the default
// logger. Config errors go to stderr because no logger exists yet.
func setupLogger() (config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return config.Config{}, err
	}
	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)
	return cfg, nil
}
