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
	"fmt"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
)

// EdgeError represents a statement that could not become an edge.
type EdgeError struct {
	// Source is the statement's source symbol.
	Source string

	// Target is the statement's target symbol.
	Target string

	// Type is the statement's relation type.
	Type model.RelationType

	// Provenance is the producer of the statement.
	Provenance model.Provenance

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e EdgeError) Error() string {
	return fmt.Sprintf("edge %s -[%s]-> %s (%s): %v", e.Source, e.Type, e.Target, e.Provenance, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e EdgeError) Unwrap() error {
	return e.Err
}

// BuildStats contains statistics about a build operation.
type BuildStats struct {
	// NodesCreated is the number of nodes added to the graph.
	NodesCreated int

	// EdgesCreated is the number of distinct edges added to the graph.
	EdgesCreated int

	// EdgesMerged is the number of statements folded into an existing edge.
	EdgesMerged int

	// DanglingDropped is the number of statements dropped because an
	// endpoint is not a node.
	DanglingDropped int

	// InvalidDropped is the number of statements dropped for any other
	// reason, such as an unknown relation type.
	InvalidDropped int

	// DurationMilli is the total build time in milliseconds.
	// NOTE: For fast builds (< 1ms), this rounds to 0. Use DurationMicro for precision.
	DurationMilli int64

	// DurationMicro is the total build time in microseconds.
	DurationMicro int64
}

// BuildResult contains the result of a graph build operation.
//
// Builds are resilient: a statement that cannot become an edge is recorded
// in EdgeErrors and the build continues.
type BuildResult struct {
	// Graph is the constructed graph. Frozen unless Incomplete.
	Graph *Graph

	// EdgeErrors contains every dropped statement.
	EdgeErrors []EdgeError

	// Stats contains build statistics.
	Stats BuildStats

	// Incomplete is true if the build was cancelled via context. The graph
	// then holds partial results and is not frozen.
	Incomplete bool
}

// HasErrors returns true if any statement was dropped.
func (r *BuildResult) HasErrors() bool {
	return len(r.EdgeErrors) > 0
}
