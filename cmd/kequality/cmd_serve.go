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
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/kequality/services/kingdom/api"
	"github.com/AleutianAI/kequality/services/kingdom/ingest"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	serveInput string
	serveAddr  string
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queries over HTTP",
	Long: `Load a kingdom once and answer queries over HTTP until interrupted.

Only the kingdom section of the input is read; any queries after it are
ignored.

Endpoints:
  POST /v1/kingdom/solve        {"cities": [..]}
  POST /v1/kingdom/solve/batch  {"queries": [[..], ..]}
  GET  /v1/kingdom/cities/:id
  GET  /v1/kingdom/stats
  GET  /v1/kingdom/health
  GET  /metrics

Examples:
  kequality serve --input kingdom.txt
  kequality serve --input kingdom.txt --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveInput, "input", "i", "",
		"Kingdom file (default stdin)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (overrides server.address)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false,
		"Enable gin debug mode")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	in, err := openInput(cmd, serveInput)
	if err != nil {
		return err
	}
	k, err := ingest.NewDecoder(in, appConfig.Limits.IngestLimits()).DecodeKingdom()
	in.Close()
	if err != nil {
		return fmt.Errorf("decode kingdom: %w", err)
	}

	forest, err := buildKingdom(ctx, k)
	if err != nil {
		return fmt.Errorf("build kingdom: %w", err)
	}
	resolver, err := newResolver(forest)
	if err != nil {
		return err
	}

	handlers := api.NewHandlers(resolver, api.Options{
		Limits:  appConfig.Limits.IngestLimits(),
		Workers: workerCount(),
		Logger:  appLogger.Slog(),
	})

	addr := appConfig.Server.Address
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handlers, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("Starting kequality server", "address", addr, "cities", forest.CityCount())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down kequality server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
