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

// GraphSchemaVersion is the version of the serialization schema.
// Increment when the serialization format changes in a breaking way.
const GraphSchemaVersion = "1.0"

// SerializableGraph is the JSON-serializable representation of a Graph.
//
// Description:
//
//	Contains all data needed to reconstruct a Graph from JSON. Nodes and
//	edges are sorted by key for deterministic output, enabling reliable
//	diffing and content hashing. Exporters read this form.
//
// Thread Safety: SerializableGraph is a value type with no internal state.
type SerializableGraph struct {
	// SchemaVersion identifies the serialization format version.
	SchemaVersion string `json:"schema_version"`

	// CatalogRoot identifies the input catalog.
	CatalogRoot string `json:"catalog_root"`

	// BuiltAtMilli is the Unix timestamp in milliseconds when the graph was frozen.
	BuiltAtMilli int64 `json:"built_at_milli"`

	// GraphHash is the deterministic hash of the graph structure.
	GraphHash string `json:"graph_hash"`

	// Nodes contains all nodes in the graph, sorted by ID.
	Nodes []SerializableNode `json:"nodes"`

	// Edges contains all edges in the graph, sorted by key.
	Edges []SerializableEdge `json:"edges"`
}

// SerializableNode is the JSON-serializable representation of a Node.
type SerializableNode struct {
	// ID is the unique node identifier (the symbol name).
	ID string `json:"id"`

	// Symbol is the node payload.
	Symbol *SymbolSummary `json:"symbol"`
}

// SerializableEdge is the JSON-serializable representation of an Edge.
type SerializableEdge struct {
	Source      string             `json:"source"`
	Target      string             `json:"target"`
	Type        model.RelationType `json:"type"`
	Provenance  []model.Provenance `json:"provenance"`
	Member      string             `json:"member,omitempty"`
	Description string             `json:"description,omitempty"`
	Weight      float64            `json:"weight,omitempty"`
}

// NewSerializableEdge copies e into its serializable form.
func NewSerializableEdge(e *Edge) SerializableEdge {
	return SerializableEdge{
		Source:      e.Source,
		Target:      e.Target,
		Type:        e.Type,
		Provenance:  append([]model.Provenance(nil), e.Provenance...),
		Member:      e.Member,
		Description: e.Description,
		Weight:      e.Weight,
	}
}

// ToSerializable converts a Graph to its JSON-serializable representation.
//
// Outputs:
//
//	*SerializableGraph - The serializable representation. Never nil.
//
// Complexity:
//
//	O(V log V + E log E).
//
// Thread Safety:
//
//	Safe for concurrent use on frozen graphs.
func (g *Graph) ToSerializable() *SerializableGraph {
	if g == nil {
		return &SerializableGraph{
			SchemaVersion: GraphSchemaVersion,
			Nodes:         []SerializableNode{},
			Edges:         []SerializableEdge{},
		}
	}

	sorted := g.Nodes()
	nodes := make([]SerializableNode, 0, len(sorted))
	for _, n := range sorted {
		nodes = append(nodes, SerializableNode{ID: n.ID, Symbol: n.Symbol})
	}

	edgeList := append([]*Edge(nil), g.edges...)
	sortEdges(edgeList)
	edges := make([]SerializableEdge, 0, len(edgeList))
	for _, e := range edgeList {
		edges = append(edges, NewSerializableEdge(e))
	}

	return &SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		CatalogRoot:   g.CatalogRoot,
		BuiltAtMilli:  g.BuiltAtMilli,
		GraphHash:     g.Hash(),
		Nodes:         nodes,
		Edges:         edges,
	}
}

// FromSerializable reconstructs a Graph from its serializable representation.
//
// Description:
//
//	Creates a new Graph in building state and replays AddNode and the edge
//	merge for each entry so every secondary index is rebuilt through the
//	normal construction path, then freezes it and restores BuiltAtMilli.
//
// Inputs:
//
//	sg - The serializable graph to reconstruct. Must not be nil.
//	opts - Optional GraphOption values.
//
// Outputs:
//
//	*Graph - The reconstructed graph in read-only state.
//	error - Non-nil if sg is nil, has an unsupported schema version, a
//	        node has a nil symbol, or an edge references a missing node.
func FromSerializable(sg *SerializableGraph, opts ...GraphOption) (*Graph, error) {
	if sg == nil {
		return nil, fmt.Errorf("serializable graph must not be nil")
	}
	if sg.SchemaVersion != GraphSchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %q (expected %q)", sg.SchemaVersion, GraphSchemaVersion)
	}

	g := NewGraph(sg.CatalogRoot, opts...)

	for i, sn := range sg.Nodes {
		if sn.Symbol == nil {
			return nil, fmt.Errorf("node at index %d has nil symbol (id=%s)", i, sn.ID)
		}
		if _, err := g.AddNode(sn.Symbol); err != nil {
			return nil, fmt.Errorf("adding node %s: %w", sn.ID, err)
		}
	}

	for i, se := range sg.Edges {
		key := model.EdgeKey{Source: se.Source, Target: se.Target, Type: se.Type}
		if _, _, err := g.mergeEdge(key, se.Provenance, se.Member, se.Description, se.Weight); err != nil {
			return nil, fmt.Errorf("adding edge %d (%s): %w", i, key, err)
		}
	}

	g.Freeze()
	g.BuiltAtMilli = sg.BuiltAtMilli
	return g, nil
}
