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
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/pipeline"
)

var (
	snapshotJSON  bool
	snapshotLimit int
	snapshotAll   bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "List, show, diff and delete saved graph snapshots",
	Long: `Commands for the BadgerDB snapshot store under the configured
snapshot directory.

Subcommands:
  list    - List snapshots of the configured catalog (or all with --all)
  show    - Print one snapshot's metadata and graph statistics
  diff    - Compare two snapshots
  delete  - Delete a snapshot

Examples:
  ontology snapshot list --all
  ontology snapshot show 3f2a9c01d4e5b6a7
  ontology snapshot diff 3f2a9c01d4e5b6a7 9b1c0d2e3f4a5b6c --json`,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotList,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show SNAPSHOT_ID",
	Short: "Print one snapshot's metadata and graph statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotShow,
}

var snapshotDiffCmd = &cobra.Command{
	Use:   "diff BASE_ID TARGET_ID",
	Short: "Compare two snapshots",
	Args:  cobra.ExactArgs(2),
	RunE:  runSnapshotDiff,
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete SNAPSHOT_ID",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotDelete,
}

func init() {
	snapshotCmd.PersistentFlags().BoolVar(&snapshotJSON, "json", false, "Output JSON")
	snapshotListCmd.Flags().IntVar(&snapshotLimit, "limit", graph.DefaultSnapshotListLimit, "Maximum snapshots to list")
	snapshotListCmd.Flags().BoolVar(&snapshotAll, "all", false, "List snapshots of every catalog")

	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotDiffCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
}

func runSnapshotList(cmd *cobra.Command, _ []string) error {
	mgr, closeDB, err := openSnapshots(pipelineCfg.SnapshotDir)
	if err != nil {
		return err
	}
	defer closeDB()

	catalogHash := ""
	if !snapshotAll {
		if pipelineCfg.APIDir == "" || pipelineCfg.UMLDir == "" {
			return fmt.Errorf("api and uml directories are needed to select a catalog; use --all to list every snapshot")
		}
		catalogHash = graph.CatalogHash(pipeline.CatalogRoot(pipelineCfg))
	}

	snapshots, err := mgr.List(commandContext(cmd), catalogHash, snapshotLimit)
	if err != nil {
		return err
	}
	if snapshotJSON {
		return writeJSON(cmd.OutOrStdout(), snapshots)
	}
	renderSnapshots(cmd.OutOrStdout(), snapshots)
	return nil
}

// snapshotDetail is the output of snapshot show.
type snapshotDetail struct {
	Metadata *graph.SnapshotMetadata `json:"metadata"`
	Stats    graph.GraphStats        `json:"stats"`
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	mgr, closeDB, err := openSnapshots(pipelineCfg.SnapshotDir)
	if err != nil {
		return err
	}
	defer closeDB()

	g, meta, err := mgr.Load(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	detail := snapshotDetail{Metadata: meta, Stats: g.Stats()}
	if snapshotJSON {
		return writeJSON(cmd.OutOrStdout(), detail)
	}

	w := cmd.OutOrStdout()
	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render("Snapshot "+meta.SnapshotID))
	fmt.Fprintf(w, "  catalog:   %s\n", meta.CatalogRoot)
	if meta.Label != "" {
		fmt.Fprintf(w, "  label:     %s\n", meta.Label)
	}
	fmt.Fprintf(w, "  created:   %s\n", formatMilli(meta.CreatedAtMilli))
	fmt.Fprintf(w, "  built:     %s\n", formatMilli(meta.BuiltAtMilli))
	fmt.Fprintf(w, "  hash:      %s\n", meta.GraphHash)
	fmt.Fprintf(w, "  size:      %d bytes compressed\n", meta.CompressedSize)
	renderGraphStats(w, detail.Stats)
	return nil
}

func runSnapshotDiff(cmd *cobra.Command, args []string) error {
	mgr, closeDB, err := openSnapshots(pipelineCfg.SnapshotDir)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx := commandContext(cmd)
	base, _, err := mgr.Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading base: %w", err)
	}
	target, _, err := mgr.Load(ctx, args[1])
	if err != nil {
		return fmt.Errorf("loading target: %w", err)
	}
	diff, err := graph.DiffSnapshots(base, target, args[0], args[1])
	if err != nil {
		return err
	}
	if snapshotJSON {
		return writeJSON(cmd.OutOrStdout(), diff)
	}
	renderDiff(cmd.OutOrStdout(), diff)
	return nil
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	mgr, closeDB, err := openSnapshots(pipelineCfg.SnapshotDir)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := mgr.Delete(commandContext(cmd), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatMilli formats Unix milliseconds as RFC 3339 UTC.
func formatMilli(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
