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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianOntology/services/ontology/export"
	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/pipeline"
)

// exportBasename is the file name stem of every export file.
const exportBasename = "ontology"

var (
	exportFormats    string
	exportOutputDir  string
	exportSnapshotID string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the graph as json, graphml or cypher files",
	Long: `Builds the graph from the configured record directories, or loads a
saved snapshot with --snapshot, and writes one file per format.

Formats:
  json     - node-link graph JSON
  graphml  - GraphML for graph tools
  cypher   - Cypher import script for a property-graph database

Examples:
  ontology export --format json,graphml --output out/
  ontology export --snapshot 3f2a9c01d4e5b6a7 --format cypher`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormats, "format", "", "Comma-separated formats (default from config)")
	exportCmd.Flags().StringVar(&exportOutputDir, "output", "", "Output directory (default from config)")
	exportCmd.Flags().StringVar(&exportSnapshotID, "snapshot", "", "Export a saved snapshot instead of building")
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := pipelineCfg
	formats := splitFormats(exportFormats)
	if len(formats) == 0 {
		formats = cfg.Export.Formats
	}
	registry := export.DefaultRegistry()
	for _, f := range formats {
		if _, err := registry.Get(f); err != nil {
			return err
		}
	}

	var g *graph.Graph
	if exportSnapshotID != "" {
		mgr, closeDB, err := openSnapshots(cfg.SnapshotDir)
		if err != nil {
			return err
		}
		defer closeDB()
		g, _, err = mgr.Load(ctx, exportSnapshotID)
		if err != nil {
			return err
		}
	} else {
		if err := cfg.Validate(); err != nil {
			return err
		}
		p, err := pipeline.New(ctx, cfg, pipeline.WithLogger(slog.Default()))
		if err != nil {
			return err
		}
		run, err := p.Run(ctx)
		if err != nil {
			return err
		}
		g = run.Graph
	}

	paths, err := registry.WriteFiles(g.ToSerializable(), outputDir(cfg, exportOutputDir), exportBasename, formats)
	for _, path := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return err
}
