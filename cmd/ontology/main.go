// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command ontology builds, exports and serves the API ontology graph.
//
// The graph is fused from two record directories: API reference records
// (YAML, one class per file) and UML diagram records (JSON, one diagram per
// file). See test/fixtures/sample-catalog for the layout.
//
// Usage:
//
//	ontology build --api-dir records/api --uml-dir records/uml
//	ontology build --config ontology.yaml --json
//	ontology export --format json,graphml --output out/
//	ontology serve --port 8090
//	ontology snapshot list
//	ontology snapshot diff <base-id> <target-id>
//
// Configuration is read from --config (default ontology.yaml, optional),
// then ONTOLOGY_* environment variables, then command-line flags.
//
// Example requests against a running server:
//
//	curl http://localhost:8090/v1/ontology/health
//	curl 'http://localhost:8090/v1/ontology/nodes?domain=Connectivity' | jq
//	curl 'http://localhost:8090/v1/ontology/search?q=InstTerm' | jq
//	curl -o ontology.graphml http://localhost:8090/v1/ontology/export/graphml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
)

// Global flags shared by every command.
var (
	configPath     string
	logFormat      string
	logLevel       string
	apiDirFlag     string
	umlDirFlag     string
	snapshotDirArg string
	workersFlag    int

	// pipelineCfg is resolved once in PersistentPreRunE.
	pipelineCfg config.PipelineConfig
)

var rootCmd = &cobra.Command{
	Use:   "ontology",
	Short: "Fuse API reference and UML records into an ontology graph",
	Long: `Builds a typed ontology graph from API reference records and UML
diagram records, exports it, and serves it over a read-only HTTP API.

Subcommands:
  build     - Run the pipeline and print the summary report
  export    - Write the graph as json, graphml or cypher files
  serve     - Serve the graph at /v1/ontology
  snapshot  - List, show, diff and delete saved graph snapshots`,
	SilenceUsage:      true,
	PersistentPreRunE: setupCommand,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "ontology.yaml", "Pipeline config file (optional)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.StringVar(&apiDirFlag, "api-dir", "", "API record directory (overrides config)")
	pf.StringVar(&umlDirFlag, "uml-dir", "", "UML diagram record directory (overrides config)")
	pf.StringVar(&snapshotDirArg, "snapshot-dir", "", "BadgerDB snapshot directory (overrides config)")
	pf.IntVar(&workersFlag, "workers", 0, "Fusion worker count (overrides config; 0 keeps config)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupCommand installs the default logger and resolves the config.
func setupCommand(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(cmd.ErrOrStderr(), logFormat, logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg, err := resolveConfig(cmd, configPath)
	if err != nil {
		return err
	}
	pipelineCfg = cfg
	return nil
}

// newLogger creates a slog logger writing to w.
//
// Inputs:
//
//	w - Destination, normally stderr.
//	format - "text" or "json".
//	level - "debug", "info", "warn" or "error".
//
// Outputs:
//
//	*slog.Logger - The configured logger.
//	error - Non-nil for an unknown format or level.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: want text or json", format)
	}
}

// resolveConfig loads the config file and applies command-line overrides.
// Flags only override when explicitly set.
func resolveConfig(cmd *cobra.Command, path string) (config.PipelineConfig, error) {
	cfg, err := config.LoadPipelineConfig(path)
	if err != nil {
		return config.PipelineConfig{}, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("api-dir") {
		cfg.APIDir = apiDirFlag
	}
	if flags.Changed("uml-dir") {
		cfg.UMLDir = umlDirFlag
	}
	if flags.Changed("snapshot-dir") {
		cfg.SnapshotDir = snapshotDirArg
	}
	if flags.Changed("workers") {
		cfg.Workers = workersFlag
	}
	return cfg, nil
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// errNoSnapshotDir is returned by commands that need the snapshot store.
var errNoSnapshotDir = errors.New("snapshot directory not configured: set --snapshot-dir, snapshot_dir or ONTOLOGY_SNAPSHOT_DIR")

// openSnapshots opens the snapshot store under dir.
//
// Outputs:
//
//	*graph.SnapshotManager - The manager.
//	func() - Closes the database. Always non-nil.
//	error - errNoSnapshotDir for an empty dir, or the open error.
func openSnapshots(dir string) (*graph.SnapshotManager, func(), error) {
	noop := func() {}
	if dir == "" {
		return nil, noop, errNoSnapshotDir
	}
	db, err := graph.OpenSnapshotDB(dir)
	if err != nil {
		return nil, noop, fmt.Errorf("opening snapshot store %s: %w", dir, err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Warn("failed to close snapshot store", slog.String("dir", dir), slog.Any("error", err))
		}
	}
	mgr, err := graph.NewSnapshotManager(db, slog.Default())
	if err != nil {
		closeDB()
		return nil, noop, err
	}
	return mgr, closeDB, nil
}

// splitFormats parses a comma-separated format list, dropping blanks.
func splitFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(strings.ToLower(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
