// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the ontology graph: one node per fused symbol, one
// edge per distinct (source, target, type) relationship.
//
// # Ownership Model
//
// Nodes hold a pointer to a SymbolSummary built by the Builder. The graph
// does not copy summaries; they MUST NOT be mutated after AddNode.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. It is designed for:
//   - Single-writer access during build phase (AddNode, AddEdge calls)
//   - Read-only access after Freeze() is called
//
// After Freeze(), the graph can be safely read from multiple goroutines.
//
// # Lifecycle
//
//  1. Create with NewGraph(catalogRoot), or use Builder.Build
//  2. Add nodes, then edges
//  3. Call Freeze() to finalize
//  4. Query with GetNode(), NodesByDomain(), Stats(), etc.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding a node whose name is taken.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrInvalidNode is returned for a nil summary or an empty name.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdgeType is returned when a relationship carries a type
	// outside the closed relation vocabulary.
	ErrInvalidEdgeType = errors.New("invalid edge type")

	// ErrMaxNodesExceeded is returned when the graph is at node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the graph is at edge capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrSnapshotNotFound is returned when a snapshot ID or latest pointer
	// does not exist in the store.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
