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
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/AleutianOntology/services/ontology"
	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/pipeline"
	"github.com/AleutianAI/AleutianOntology/services/ontology/telemetry"
)

// shutdownTimeout bounds graceful HTTP shutdown and telemetry flush.
const shutdownTimeout = 10 * time.Second

var (
	servePort         int
	serveDebug        bool
	serveFromSnapshot bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the graph at /v1/ontology",
	Long: `Starts the read-only HTTP API. The graph is built in the background
after the listener starts; /v1/ontology/health reports graph_loaded once it
is published. With --from-snapshot the latest saved snapshot for the
configured catalog is published instead of building.

Prometheus metrics are served at /metrics.

Environment:
  ONTOLOGY_TRACES_EXPORTER   otlp, stdout or none (default none)
  ONTOLOGY_METRICS_EXPORTER  prometheus, stdout or none (default prometheus)
  OTEL_EXPORTER_OTLP_ENDPOINT`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable gin debug mode")
	serveCmd.Flags().BoolVar(&serveFromSnapshot, "from-snapshot", false, "Publish the latest snapshot instead of building")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := pipelineCfg
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveDebug {
		cfg.Server.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	svcOpts := []ontology.ServiceOption{ontology.WithServiceLogger(slog.Default())}
	var mgr *graph.SnapshotManager
	if cfg.SnapshotDir != "" {
		var closeDB func()
		mgr, closeDB, err = openSnapshots(cfg.SnapshotDir)
		if err != nil {
			return err
		}
		defer closeDB()
		svcOpts = append(svcOpts, ontology.WithSnapshotManager(mgr))
	} else if serveFromSnapshot {
		return errNoSnapshotDir
	}
	svc := ontology.NewService(svcOpts...)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           ontology.NewRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting ontology server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	go publishInitialGraph(ctx, svc, cfg, mgr)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down ontology server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// publishInitialGraph publishes the latest snapshot or a fresh build.
// Failures are logged; the server keeps answering health checks with
// graph_loaded=false.
func publishInitialGraph(ctx context.Context, svc *ontology.Service, cfg config.PipelineConfig, mgr *graph.SnapshotManager) {
	root := pipeline.CatalogRoot(cfg)
	if serveFromSnapshot {
		meta, err := svc.PublishLatestSnapshot(ctx, root)
		if err != nil {
			slog.Error("failed to publish snapshot", slog.String("catalog_root", root), slog.Any("error", err))
			return
		}
		slog.Info("published snapshot",
			slog.String("snapshot_id", meta.SnapshotID),
			slog.Int("nodes", meta.NodeCount),
			slog.Int("edges", meta.EdgeCount),
		)
		return
	}

	opts := []pipeline.Option{pipeline.WithLogger(slog.Default())}
	if mgr != nil {
		opts = append(opts, pipeline.WithSnapshots(mgr, "serve"))
	}
	p, err := pipeline.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to create pipeline", slog.Any("error", err))
		return
	}
	run, err := svc.BuildAndPublish(ctx, p)
	if run == nil {
		slog.Error("initial build failed", slog.Any("error", err))
		return
	}
	if err != nil {
		slog.Warn("graph published but snapshot was not saved", slog.Any("error", err))
	}
	slog.Info("published graph",
		slog.String("run_id", run.ID),
		slog.Int("nodes", run.Graph.NodeCount()),
		slog.Int("edges", run.Graph.EdgeCount()),
	)
}
