// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/AleutianAI/kequality/cmd/kequality/config"
	"github.com/AleutianAI/kequality/pkg/logging"
	"github.com/AleutianAI/kequality/pkg/telemetry"
	"github.com/AleutianAI/kequality/services/kingdom"
	"github.com/AleutianAI/kequality/services/kingdom/ingest"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const serviceName = "kequality"

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// Persistent
	configPath string
	logLevel   string
	logFormat  string

	// Set by PersistentPreRunE for the running command
	appConfig         *config.KequalityConfig
	appLogger         *logging.Logger
	shutdownTelemetry func(context.Context) error
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "kequality",
	Short: "Find cities equidistant from every marked city",
	Long: `kequality reads a kingdom of N cities joined by N-1 roads, some of them
closed, and answers queries of the form "how many cities are the same
distance from every one of these k cities, where travelers starting from
all of them first meet".

Configuration is read from --config, or ~/.kequality/kequality.yaml when it
exists. Flags override the file.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setupRuntime,
	PersistentPostRunE: teardownRuntime,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format: auto, text, json (overrides config)")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

// setupRuntime loads config and starts logging and telemetry.
func setupRuntime(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   level,
		Format:  format,
		LogDir:  cfg.Logging.Dir,
		Service: serviceName,
		Output:  cmd.ErrOrStderr(),
	})

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = serviceName
	tcfg.TraceExporter = cfg.Telemetry.Traces
	tcfg.MetricExporter = cfg.Telemetry.Metrics
	tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tcfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	tcfg.Writer = cmd.ErrOrStderr()

	shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		logger.Close()
		return fmt.Errorf("init telemetry: %w", err)
	}

	appConfig = cfg
	appLogger = logger.With("run_id", uuid.NewString(), "command", cmd.Name())
	shutdownTelemetry = shutdown
	return nil
}

func teardownRuntime(_ *cobra.Command, _ []string) error {
	var err error
	if shutdownTelemetry != nil {
		err = shutdownTelemetry(context.Background())
		shutdownTelemetry = nil
	}
	if appLogger != nil {
		if closeErr := appLogger.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// openInput opens path, or stdin for "" and "-".
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// buildKingdom turns a decoded kingdom section into a frozen forest.
func buildKingdom(ctx context.Context, k *ingest.Kingdom) (*kingdom.Forest, error) {
	return ingest.BuildForest(ctx, k, ingest.BuildOptions{
		Reorder: appConfig.Ingest.ReorderRoads,
		Logger:  appLogger.Slog(),
	})
}

// newResolver builds a resolver from the solver config section.
func newResolver(forest *kingdom.Forest) (*kingdom.Resolver, error) {
	pairing, err := kingdom.ParsePairing(appConfig.Solver.Pairing)
	if err != nil {
		return nil, err
	}
	return kingdom.NewResolver(forest,
		kingdom.WithPairing(pairing),
		kingdom.WithCache(appConfig.Solver.CacheSize),
		kingdom.WithLogger(appLogger.Slog()),
	)
}

// workerCount resolves the configured worker count; 0 means one per CPU.
func workerCount() int {
	if appConfig.Solver.Workers > 0 {
		return appConfig.Solver.Workers
	}
	return runtime.NumCPU()
}
