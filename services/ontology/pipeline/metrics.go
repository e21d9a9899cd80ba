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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Pipeline Runs
// =============================================================================

var (
	// runsTotal counts pipeline runs by outcome.
	// Labels: status (success, cancelled, failed)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ontology",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total pipeline runs by outcome",
	}, []string{"status"})

	// stageSeconds measures each stage.
	// Labels: stage (load, fuse, infer, classify, build, snapshot)
	stageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ontology",
		Subsystem: "pipeline",
		Name:      "stage_seconds",
		Help:      "Wall time of each pipeline stage",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"stage"})

	// symbolsFused counts merged symbols by source coverage.
	// Labels: coverage (api_only, uml_only, both)
	symbolsFused = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ontology",
		Subsystem: "pipeline",
		Name:      "symbols_fused_total",
		Help:      "Merged symbols by source coverage",
	}, []string{"coverage"})

	// problemsTotal counts non-fatal per-item problems.
	// Labels: kind (missing_source, malformed_record, dangling_edge, cycle, shadowing)
	problemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ontology",
		Subsystem: "pipeline",
		Name:      "problems_total",
		Help:      "Non-fatal problems reported by pipeline runs",
	}, []string{"kind"})

	// edgesTotal counts graph edges by provenance tag.
	// Labels: provenance (api, uml, api_inferred, pattern)
	edgesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ontology",
		Subsystem: "pipeline",
		Name:      "edges_total",
		Help:      "Graph edges by provenance tag",
	}, []string{"provenance"})
)

// Problem kinds used as metric labels.
const (
	problemMissingSource   = "missing_source"
	problemMalformedRecord = "malformed_record"
	problemDanglingEdge    = "dangling_edge"
	problemCycle           = "cycle"
	problemShadowing       = "shadowing"
)

// recordReportMetrics publishes the counts of a finished report.
func recordReportMetrics(r *Report) {
	symbolsFused.WithLabelValues("api_only").Add(float64(r.APIOnly))
	symbolsFused.WithLabelValues("uml_only").Add(float64(r.UMLOnly))
	symbolsFused.WithLabelValues("both").Add(float64(r.Both))

	problemsTotal.WithLabelValues(problemMissingSource).Add(float64(len(r.MissingSources)))
	problemsTotal.WithLabelValues(problemMalformedRecord).Add(float64(len(r.MalformedRecords)))
	problemsTotal.WithLabelValues(problemDanglingEdge).Add(float64(r.DanglingEdges))
	problemsTotal.WithLabelValues(problemCycle).Add(float64(len(r.Cycles)))
	problemsTotal.WithLabelValues(problemShadowing).Add(float64(len(r.Shadowings)))

	for prov, n := range r.Graph.EdgesByProvenance {
		edgesTotal.WithLabelValues(string(prov)).Add(float64(n))
	}
}
