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
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/pipeline"
)

// Palette shared with the rest of the Aleutian CLIs.
var (
	colorTealBright  = lipgloss.Color("#2CD7C7")
	colorTealPrimary = lipgloss.Color("#20B9B4")
	colorTealDeep    = lipgloss.Color("#16858E")
	colorWarning     = lipgloss.Color("#F4D03F")
	colorSlate       = lipgloss.Color("#2C4A54")
)

// styles holds the lipgloss styles for one output stream.
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	box     lipgloss.Style
}

// newStyles returns colored styles when w is a terminal and unstyled ones
// otherwise, so piped output stays plain text.
func newStyles(w io.Writer) styles {
	if !isTerminal(w) {
		plain := lipgloss.NewStyle()
		return styles{title: plain, section: plain, label: plain, warn: plain, muted: plain, box: plain}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorTealBright),
		section: lipgloss.NewStyle().Bold(true).Foreground(colorTealPrimary),
		label:   lipgloss.NewStyle().Foreground(colorSlate),
		warn:    lipgloss.NewStyle().Foreground(colorWarning),
		muted:   lipgloss.NewStyle().Foreground(colorSlate),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorTealDeep).
			Padding(0, 1),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// renderReport writes the human-readable pipeline summary.
//
// Problem lists are capped at maxListed entries each; the JSON report
// (build --json) always carries the full lists.
func renderReport(w io.Writer, r *pipeline.Report) {
	st := newStyles(w)
	var b strings.Builder

	fmt.Fprintln(&b, st.title.Render("Ontology build "+r.RunID))
	row := func(label string, value any) {
		fmt.Fprintf(&b, "  %s %v\n", st.label.Render(fmt.Sprintf("%-22s", label+":")), value)
	}

	fmt.Fprintln(&b, st.section.Render("Inputs"))
	row("Catalog", r.CatalogRoot)
	row("API records", r.APIRecords)
	row("UML diagrams", r.Diagrams)
	row("Duration", fmt.Sprintf("%dms", r.DurationMilli))

	fmt.Fprintln(&b, st.section.Render("Coverage"))
	row("Symbols", r.Symbols)
	row("API only", r.APIOnly)
	row("UML only", r.UMLOnly)
	row("Both sources", r.Both)
	row("With description", r.WithDescription)
	row("Avg methods/symbol", fmt.Sprintf("%.2f", r.AverageMethods))
	row("Method collisions", r.MethodCollisions)

	fmt.Fprintln(&b, st.section.Render("Statements"))
	row("Total", r.Statements)
	for _, rule := range sortedKeys(r.StatementsByRule) {
		row("  "+rule, r.StatementsByRule[rule])
	}
	row("Dangling", r.DanglingEdges)
	row("Invalid", r.InvalidStatements)

	fmt.Fprintln(&b, st.section.Render("Classification"))
	row("Direct", r.DirectlyClassified)
	row("Propagated", r.Propagated)
	row("Unclassified", r.Unclassified)

	fmt.Fprintln(&b, st.section.Render("Graph"))
	writeGraphStats(&b, st, r.Graph)
	if r.SnapshotID != "" {
		row("Snapshot", r.SnapshotID)
	}

	problems := []struct {
		label string
		items []string
	}{
		{"Missing sources", r.MissingSources},
		{"Malformed records", r.MalformedRecords},
		{"Dangling edges", r.Dangling},
		{"Inheritance cycles", r.Cycles},
	}
	for _, p := range problems {
		if len(p.items) == 0 {
			continue
		}
		fmt.Fprintln(&b, st.warn.Render(fmt.Sprintf("%s (%d)", p.label, len(p.items))))
		writeList(&b, st, p.items)
	}
	if n := len(r.Shadowings); n > 0 {
		fmt.Fprintln(&b, st.warn.Render(fmt.Sprintf("Shadowed attributes (%d)", n)))
		items := make([]string, n)
		for i, s := range r.Shadowings {
			items[i] = fmt.Sprintf("%s.%s", s.Symbol, s.Attribute)
		}
		writeList(&b, st, items)
	}

	fmt.Fprintln(w, st.box.Render(strings.TrimRight(b.String(), "\n")))
}

// maxListed caps each problem list in the text summary.
const maxListed = 10

func writeList(b *strings.Builder, st styles, items []string) {
	for i, item := range items {
		if i == maxListed {
			fmt.Fprintf(b, "  %s\n", st.muted.Render(fmt.Sprintf("... and %d more", len(items)-maxListed)))
			return
		}
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

// writeGraphStats writes node and edge counts with their breakdowns.
func writeGraphStats(b *strings.Builder, st styles, s graph.GraphStats) {
	row := func(label string, value any) {
		fmt.Fprintf(b, "  %s %v\n", st.label.Render(fmt.Sprintf("%-22s", label+":")), value)
	}
	row("Nodes", s.NodeCount)
	for _, d := range sortedKeys(s.NodesByDomain) {
		row("  "+string(d), s.NodesByDomain[d])
	}
	row("Edges", s.EdgeCount)
	for _, t := range sortedKeys(s.EdgesByType) {
		row("  "+string(t), s.EdgesByType[t])
	}
	for _, p := range sortedKeys(s.EdgesByProvenance) {
		row("  provenance "+string(p), s.EdgesByProvenance[p])
	}
	if len(s.MostConnected) > 0 {
		top := make([]string, 0, len(s.MostConnected))
		for _, nd := range s.MostConnected {
			top = append(top, fmt.Sprintf("%s(%d)", nd.ID, nd.Degree))
		}
		row("Most connected", strings.Join(top, " "))
	}
}

// renderSnapshots writes one line per snapshot, newest first.
func renderSnapshots(w io.Writer, snapshots []*graph.SnapshotMetadata) {
	st := newStyles(w)
	if len(snapshots) == 0 {
		fmt.Fprintln(w, st.muted.Render("No snapshots."))
		return
	}
	fmt.Fprintln(w, st.section.Render(fmt.Sprintf("%-18s %-25s %7s %7s  %s", "ID", "CREATED", "NODES", "EDGES", "LABEL / CATALOG")))
	for _, m := range snapshots {
		label := m.CatalogRoot
		if m.Label != "" {
			label = m.Label + " / " + m.CatalogRoot
		}
		fmt.Fprintf(w, "%-18s %-25s %7d %7d  %s\n",
			m.SnapshotID, formatMilli(m.CreatedAtMilli), m.NodeCount, m.EdgeCount, label)
	}
}

// renderDiff writes a snapshot diff summary followed by the changed keys.
func renderDiff(w io.Writer, d *graph.SnapshotDiff) {
	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("Diff %s -> %s", d.BaseSnapshotID, d.TargetSnapshotID)))
	fmt.Fprintf(w, "%d changes, %d domains affected, change ratio %.3f\n",
		d.Summary.TotalChanges, d.Summary.DomainsAffected, d.Summary.ChangeRatio)

	section := func(title, sign string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintln(w, st.section.Render(fmt.Sprintf("%s (%d)", title, len(items))))
		for _, item := range items {
			fmt.Fprintf(w, "  %s %s\n", sign, item)
		}
	}
	section("Nodes added", "+", d.NodesAdded)
	section("Nodes removed", "-", d.NodesRemoved)
	modified := make([]string, len(d.NodesModified))
	for i, nd := range d.NodesModified {
		modified[i] = nd.NodeID + " (" + nd.ChangeType + ")"
	}
	section("Nodes modified", "~", modified)
	section("Edges added", "+", d.EdgesAdded)
	section("Edges removed", "-", d.EdgesRemoved)
	section("Edges changed", "~", d.EdgesChanged)
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// renderGraphStats writes graph statistics to w.
func renderGraphStats(w io.Writer, s graph.GraphStats) {
	var b strings.Builder
	writeGraphStats(&b, newStyles(w), s)
	fmt.Fprint(w, b.String())
}
