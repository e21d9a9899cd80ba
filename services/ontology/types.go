// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ontology serves a built API ontology graph over a read-only HTTP
// API.
//
// The stage packages under services/ontology produce the graph; this package
// holds the published graph and its read index, and exposes them under
// /v1/ontology.
package ontology

import (
	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/index"
	"github.com/AleutianAI/AleutianOntology/services/ontology/pipeline"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	GraphLoaded bool   `json:"graph_loaded"`
	NodeCount   int    `json:"node_count"`
	EdgeCount   int    `json:"edge_count"`
	UptimeMilli int64  `json:"uptime_ms"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	CatalogRoot string           `json:"catalog_root"`
	GraphHash   string           `json:"graph_hash"`
	Stats       graph.GraphStats `json:"stats"`
}

// NodeSummary is one node in list responses.
type NodeSummary struct {
	ID     string               `json:"id"`
	Symbol *graph.SymbolSummary `json:"symbol"`
	Degree int                  `json:"degree"`
}

// NodesResponse is returned by GET /nodes.
type NodesResponse struct {
	Nodes  []NodeSummary `json:"nodes"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// NodeResponse is returned by GET /nodes/:name.
type NodeResponse struct {
	Node     NodeSummary              `json:"node"`
	Outgoing []graph.SerializableEdge `json:"outgoing"`
	Incoming []graph.SerializableEdge `json:"incoming"`
}

// EdgesResponse is returned by GET /edges.
type EdgesResponse struct {
	Edges  []graph.SerializableEdge `json:"edges"`
	Total  int                      `json:"total"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

// SearchResponse is returned by GET /search.
type SearchResponse struct {
	Query string            `json:"query"`
	Hits  []index.SearchHit `json:"hits"`
}

// ReportResponse is returned by GET /report.
type ReportResponse struct {
	Report *pipeline.Report `json:"report"`
}

// ListSnapshotsResponse is returned by GET /snapshots.
type ListSnapshotsResponse struct {
	Snapshots []*graph.SnapshotMetadata `json:"snapshots"`
}

// LoadSnapshotResponse is returned by GET /snapshots/:id.
type LoadSnapshotResponse struct {
	Metadata  *graph.SnapshotMetadata `json:"metadata"`
	NodeCount int                     `json:"node_count"`
	EdgeCount int                     `json:"edge_count"`
	GraphHash string                  `json:"graph_hash"`
}

// SnapshotDiffResponse is returned by GET /snapshots/diff.
type SnapshotDiffResponse struct {
	Diff *graph.SnapshotDiff `json:"diff"`
}
