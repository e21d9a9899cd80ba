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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/export"
	"github.com/AleutianAI/AleutianOntology/services/ontology/fusion"
	"github.com/AleutianAI/AleutianOntology/services/ontology/pipeline"
)

var (
	buildJSON          bool
	buildLabel         string
	buildNoSnapshot    bool
	buildExportFormats string
	buildOutputDir     string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the pipeline and print the summary report",
	Long: `Loads both record directories, fuses them into merged symbols, infers
relationship statements, classifies every symbol and builds the graph.

The graph is saved as a snapshot when a snapshot directory is configured,
and written to disk when --export is given.

Examples:
  ontology build --api-dir records/api --uml-dir records/uml
  ontology build --json > report.json
  ontology build --export json,graphml --output out/ --label nightly`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print the report as JSON")
	buildCmd.Flags().StringVar(&buildLabel, "label", "", "Label stored with the snapshot")
	buildCmd.Flags().BoolVar(&buildNoSnapshot, "no-snapshot", false, "Do not save a snapshot even if a snapshot directory is configured")
	buildCmd.Flags().StringVar(&buildExportFormats, "export", "", "Comma-separated export formats to write after the build")
	buildCmd.Flags().StringVar(&buildOutputDir, "output", "", "Export directory (overrides config)")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := pipelineCfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := []pipeline.Option{pipeline.WithLogger(slog.Default())}
	if cfg.SnapshotDir != "" && !buildNoSnapshot {
		mgr, closeDB, err := openSnapshots(cfg.SnapshotDir)
		if err != nil {
			return err
		}
		defer closeDB()
		opts = append(opts, pipeline.WithSnapshots(mgr, buildLabel))
	}
	if !buildJSON && isTerminal(cmd.ErrOrStderr()) {
		opts = append(opts, pipeline.WithFusionProgress(progressPrinter(cmd)))
	}

	p, err := pipeline.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	run, err := p.Run(ctx)
	if run == nil {
		return err
	}
	if err != nil {
		slog.Warn("graph built but snapshot was not saved", slog.Any("error", err))
	}

	if buildJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(run.Report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
	} else {
		renderReport(cmd.OutOrStdout(), run.Report)
	}

	formats := splitFormats(buildExportFormats)
	if len(formats) == 0 {
		return nil
	}
	paths, err := export.DefaultRegistry().WriteFiles(run.Graph.ToSerializable(), outputDir(cfg, buildOutputDir), exportBasename, formats)
	for _, path := range paths {
		slog.Info("wrote export", slog.String("path", path))
	}
	return err
}

// outputDir returns the flag value when set, else the configured directory.
func outputDir(cfg config.PipelineConfig, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.Export.OutputDir
}

// progressPrinter rewrites one stderr line as fusion progresses.
func progressPrinter(cmd *cobra.Command) fusion.ProgressFunc {
	w := cmd.ErrOrStderr()
	return func(p fusion.Progress) {
		if p.Processed == p.Total {
			fmt.Fprintf(w, "\rfused %d/%d symbols\n", p.Processed, p.Total)
			return
		}
		if p.Processed%100 == 0 {
			fmt.Fprintf(w, "\rfused %d/%d symbols", p.Processed, p.Total)
		}
	}
}
