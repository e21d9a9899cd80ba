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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/pipeline"
)

func fixtureDirs(t *testing.T) (apiDir, umlDir string) {
	t.Helper()
	root, err := filepath.Abs(filepath.Join("..", "..", "test", "fixtures", "sample-catalog"))
	require.NoError(t, err)
	return filepath.Join(root, "api"), filepath.Join(root, "uml")
}

// resetFlags restores every flag to its default so commands can run
// repeatedly in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	_, err := rootCmd.ExecuteC()
	return out.String(), err
}

func catalogArgs(t *testing.T) []string {
	apiDir, umlDir := fixtureDirs(t)
	return []string{"--api-dir", apiDir, "--uml-dir", umlDir}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		wantErr bool
	}{
		{"text info", "text", "info", false},
		{"json debug", "JSON", "debug", false},
		{"warn", "text", "WARN", false},
		{"bad format", "xml", "info", true},
		{"bad level", "text", "loud", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(&bytes.Buffer{}, tt.format, tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestSplitFormats(t *testing.T) {
	assert.Equal(t, []string{"json", "graphml"}, splitFormats(" JSON, ,graphml "))
	assert.Nil(t, splitFormats(""))
}

func TestBuild_JSONReport(t *testing.T) {
	out, err := execute(t, append(catalogArgs(t), "build", "--json")...)
	require.NoError(t, err)

	var report pipeline.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 3, report.Symbols)
	assert.Equal(t, 3, report.APIRecords)
	assert.Equal(t, 1, report.Diagrams)
	assert.Equal(t, []string{"oaRoute"}, report.MissingSources)
	assert.Empty(t, report.SnapshotID)
}

func TestBuild_RequiresDirectories(t *testing.T) {
	t.Setenv("ONTOLOGY_API_DIR", "")
	t.Setenv("ONTOLOGY_UML_DIR", "")
	_, err := execute(t, "build")
	assert.Error(t, err)
}

func TestBuild_SummaryAndExport(t *testing.T) {
	outDir := t.TempDir()
	out, err := execute(t, append(catalogArgs(t), "build", "--export", "json,cypher", "--output", outDir)...)
	require.NoError(t, err)

	assert.Contains(t, out, "Ontology build")
	assert.Contains(t, out, "Missing sources (1)")
	assert.Contains(t, out, "- oaRoute")
	assert.NotContains(t, out, "\x1b[", "no ANSI codes when stdout is not a terminal")

	for _, name := range []string{"ontology.json", "ontology.cypher"} {
		info, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size())
	}
}

func TestExport_Formats(t *testing.T) {
	outDir := t.TempDir()
	out, err := execute(t, append(catalogArgs(t), "export", "--format", "graphml", "--output", outDir)...)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "ontology.graphml"), strings.TrimSpace(out))

	data, err := os.ReadFile(filepath.Join(outDir, "ontology.graphml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "oaInstTerm")

	_, err = execute(t, append(catalogArgs(t), "export", "--format", "dot", "--output", outDir)...)
	assert.Error(t, err)
}

func TestSnapshotCommands(t *testing.T) {
	snapDir := t.TempDir()
	args := append(catalogArgs(t), "--snapshot-dir", snapDir)

	_, err := execute(t, append(args, "build", "--json", "--label", "first")...)
	require.NoError(t, err)

	out, err := execute(t, append(args, "snapshot", "list", "--json")...)
	require.NoError(t, err)
	var list []*graph.SnapshotMetadata
	require.NoError(t, json.Unmarshal([]byte(out), &list), out)
	require.Len(t, list, 1)
	id := list[0].SnapshotID
	assert.Equal(t, "first", list[0].Label)
	assert.Equal(t, 3, list[0].NodeCount)

	out, err = execute(t, append(args, "snapshot", "show", id)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Snapshot "+id)
	assert.Contains(t, out, "label:     first")

	out, err = execute(t, append(args, "snapshot", "diff", id, id, "--json")...)
	require.NoError(t, err)
	var diff graph.SnapshotDiff
	require.NoError(t, json.Unmarshal([]byte(out), &diff), out)
	assert.Zero(t, diff.Summary.TotalChanges)

	exportDir := t.TempDir()
	_, err = execute(t, append(args, "export", "--snapshot", id, "--format", "json", "--output", exportDir)...)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(exportDir, "ontology.json"))

	_, err = execute(t, append(args, "snapshot", "delete", id)...)
	require.NoError(t, err)

	out, err = execute(t, append(args, "snapshot", "list", "--all")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No snapshots.")

	_, err = execute(t, append(args, "snapshot", "show", id)...)
	assert.ErrorIs(t, err, graph.ErrSnapshotNotFound)
}

func TestSnapshot_NoDirectory(t *testing.T) {
	t.Setenv("ONTOLOGY_SNAPSHOT_DIR", "")
	_, err := execute(t, "snapshot", "list", "--all")
	assert.ErrorIs(t, err, errNoSnapshotDir)
}

func TestRenderDiff(t *testing.T) {
	var buf bytes.Buffer
	renderDiff(&buf, &graph.SnapshotDiff{
		BaseSnapshotID:   "a",
		TargetSnapshotID: "b",
		NodesAdded:       []string{"oaRoute"},
		NodesModified:    []graph.NodeDiff{{NodeID: "oaNet", ChangeType: "reclassified"}},
		Summary:          graph.DiffSummary{TotalChanges: 2, DomainsAffected: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "Diff a -> b")
	assert.Contains(t, out, "2 changes, 1 domains affected")
	assert.Contains(t, out, "+ oaRoute")
	assert.Contains(t, out, "~ oaNet (reclassified)")
	assert.NotContains(t, out, "Edges added")
}
