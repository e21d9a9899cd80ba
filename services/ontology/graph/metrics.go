// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("ontology.graph")
	meter  = otel.Meter("ontology.graph")
)

// Metrics for graph building and snapshot operations.
var (
	buildLatency    metric.Float64Histogram
	buildTotal      metric.Int64Counter
	nodesCreated    metric.Int64Counter
	edgesCreated    metric.Int64Counter
	danglingDropped metric.Int64Counter
	snapshotLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"ontology_graph_build_duration_seconds",
			metric.WithDescription("Duration of ontology graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"ontology_graph_build_total",
			metric.WithDescription("Total number of ontology graph builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesCreated, err = meter.Int64Counter(
			"ontology_graph_nodes_created_total",
			metric.WithDescription("Nodes created across all builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesCreated, err = meter.Int64Counter(
			"ontology_graph_edges_created_total",
			metric.WithDescription("Distinct edges created across all builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		danglingDropped, err = meter.Int64Counter(
			"ontology_graph_dangling_dropped_total",
			metric.WithDescription("Statements dropped because an endpoint is not a node"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		snapshotLatency, err = meter.Float64Histogram(
			"ontology_graph_snapshot_duration_seconds",
			metric.WithDescription("Duration of snapshot store operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a build operation.
func recordBuildMetrics(ctx context.Context, duration time.Duration, stats BuildStats, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		nodesCreated.Add(ctx, int64(stats.NodesCreated))
		edgesCreated.Add(ctx, int64(stats.EdgesCreated))
		danglingDropped.Add(ctx, int64(stats.DanglingDropped))
	}
}

// recordSnapshotMetrics records the latency of one snapshot store call.
func recordSnapshotMetrics(ctx context.Context, op string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	snapshotLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", success),
	))
}

// startBuildSpan creates a span for a build operation.
func startBuildSpan(ctx context.Context, symbolCount, statementCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "graph.Builder.Build",
		trace.WithAttributes(
			attribute.Int("graph.symbol_count", symbolCount),
			attribute.Int("graph.statement_count", statementCount),
		),
	)
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, stats BuildStats, incomplete bool) {
	span.SetAttributes(
		attribute.Int("graph.nodes_created", stats.NodesCreated),
		attribute.Int("graph.edges_created", stats.EdgesCreated),
		attribute.Int("graph.edges_merged", stats.EdgesMerged),
		attribute.Int("graph.dangling_dropped", stats.DanglingDropped),
		attribute.Bool("graph.incomplete", incomplete),
	)
	if incomplete {
		span.SetStatus(codes.Error, "build incomplete")
	}
}
