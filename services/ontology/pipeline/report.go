// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"log/slog"

	"github.com/AleutianAI/AleutianOntology/services/ontology/classify"
	"github.com/AleutianAI/AleutianOntology/services/ontology/fusion"
	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/inference"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/AleutianAI/AleutianOntology/services/ontology/source"
)

// Report summarizes one pipeline run.
//
// Every non-fatal problem of the run is listed here: missing sources,
// malformed records, dangling statements, inheritance cycles and attribute
// shadowings.
type Report struct {
	RunID          string `json:"run_id"`
	CatalogRoot    string `json:"catalog_root"`
	StartedAtMilli int64  `json:"started_at_milli"`
	DurationMilli  int64  `json:"duration_ms"`

	// Inputs.
	APIRecords int `json:"api_records"`
	Diagrams   int `json:"diagrams"`

	// Source coverage of the merged symbols.
	Symbols             int                      `json:"symbols"`
	APIOnly             int                      `json:"api_only"`
	UMLOnly             int                      `json:"uml_only"`
	Both                int                      `json:"both"`
	WithDescription     int                      `json:"with_description"`
	AverageMethods      float64                  `json:"average_methods"`
	MethodsByProvenance map[model.Provenance]int `json:"methods_by_provenance"`
	MethodCollisions    int                      `json:"method_collisions"`

	// Statements.
	Statements        int            `json:"statements"`
	StatementsByRule  map[string]int `json:"statements_by_rule"`
	DanglingEdges     int            `json:"dangling_edges"`
	InvalidStatements int            `json:"invalid_statements"`

	// Classification.
	DirectlyClassified int `json:"directly_classified"`
	Propagated         int `json:"propagated"`
	Unclassified       int `json:"unclassified"`

	// Problems.
	MissingSources   []string                 `json:"missing_sources,omitempty"`
	MalformedRecords []string                 `json:"malformed_records,omitempty"`
	Dangling         []string                 `json:"dangling,omitempty"`
	Cycles           []string                 `json:"cycles,omitempty"`
	Shadowings       []fusion.SymbolShadowing `json:"shadowings,omitempty"`

	// Graph is the statistics of the built graph.
	Graph graph.GraphStats `json:"graph"`

	// SnapshotID is set when the graph was persisted.
	SnapshotID string `json:"snapshot_id,omitempty"`
}

// newReport assembles the report from the stage outputs.
func newReport(
	runID, root string,
	load *source.LoadResult,
	fused *fusion.Result,
	inferred *inference.Result,
	classified *classify.Result,
	built *graph.BuildResult,
) *Report {
	r := &Report{
		RunID:               runID,
		CatalogRoot:         root,
		MethodsByProvenance: make(map[model.Provenance]int),
		MethodCollisions:    fused.MethodCollisions,
		Statements:          len(inferred.Statements),
		StatementsByRule:    inferred.ByRule,
		DanglingEdges:       built.Stats.DanglingDropped,
		InvalidStatements:   built.Stats.InvalidDropped,
		DirectlyClassified:  classified.Direct,
		Propagated:          classified.Propagated,
		Unclassified:        classified.Unclassified,
		MissingSources:      fused.Missing,
		Cycles:              classified.Cycles,
		Shadowings:          fused.Shadowings,
		Graph:               built.Graph.Stats(),
	}

	if load != nil {
		r.APIRecords = load.APIRecords
		r.Diagrams = load.Diagrams
		for _, e := range load.Errors {
			r.MalformedRecords = append(r.MalformedRecords, e.Error())
		}
	}

	methods := 0
	for _, sym := range fused.Symbols.All() {
		r.Symbols++
		switch {
		case sym.Sources.HasAPI && sym.Sources.HasUML():
			r.Both++
		case sym.Sources.HasAPI:
			r.APIOnly++
		default:
			r.UMLOnly++
		}
		if sym.Description != "" {
			r.WithDescription++
		}
		for prov, n := range sym.CountMethods() {
			r.MethodsByProvenance[prov] += n
			methods += n
		}
	}
	if r.Symbols > 0 {
		r.AverageMethods = float64(methods) / float64(r.Symbols)
	}

	for _, e := range built.EdgeErrors {
		r.Dangling = append(r.Dangling, e.Error())
	}
	return r
}

// LogValue implements slog.LogValuer with the headline counts.
func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", r.RunID),
		slog.Int("symbols", r.Symbols),
		slog.Int("api_only", r.APIOnly),
		slog.Int("uml_only", r.UMLOnly),
		slog.Int("both", r.Both),
		slog.Int("nodes", r.Graph.NodeCount),
		slog.Int("edges", r.Graph.EdgeCount),
		slog.Int("missing_sources", len(r.MissingSources)),
		slog.Int("malformed_records", len(r.MalformedRecords)),
		slog.Int("dangling_edges", r.DanglingEdges),
		slog.Int("cycles", len(r.Cycles)),
		slog.Int("shadowings", len(r.Shadowings)),
		slog.Int64("duration_ms", r.DurationMilli),
	)
}
