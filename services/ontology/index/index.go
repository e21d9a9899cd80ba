// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index provides read-side lookups over a frozen ontology graph.
package index

import (
	"errors"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
)

// DefaultLimit caps query results when the caller passes no limit.
const DefaultLimit = 100

// ErrGraphNotFrozen is returned when indexing a graph still being built.
var ErrGraphNotFrozen = errors.New("graph must be frozen before indexing")

// Query filters nodes. Empty fields match everything.
type Query struct {
	Domain  model.Domain
	Concept string
	Module  string

	// Prefix matches the start of the symbol name, case-sensitively.
	Prefix string

	// Limit caps the result count. Zero or negative means DefaultLimit.
	Limit int

	// Offset skips that many matches, for paging.
	Offset int
}

// EdgeQuery filters edges. Empty fields match everything.
type EdgeQuery struct {
	Type       model.RelationType
	Provenance model.Provenance
	Source     string
	Target     string
	Limit      int
	Offset     int
}

// NodeView is a node with its incident edges.
type NodeView struct {
	Node     *graph.Node
	Outgoing []*graph.Edge
	Incoming []*graph.Edge
}

// Index answers name, domain, module and prefix queries over a graph.
//
// Description:
//
//	Keeps the node names in sorted order so prefix queries are a binary
//	search, and delegates domain, module and type lookups to the graph's
//	secondary indexes.
//
// Thread Safety:
//
//	Immutable after construction; safe for concurrent use.
type Index struct {
	g     *graph.Graph
	names []string
}

// New indexes a frozen graph.
//
// Outputs:
//
//	*Index - The index.
//	error - ErrGraphNotFrozen if g is nil or still building.
func New(g *graph.Graph) (*Index, error) {
	if g == nil || !g.IsFrozen() {
		return nil, ErrGraphNotFrozen
	}
	nodes := g.Nodes()
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.ID
	}
	return &Index{g: g, names: names}, nil
}

// Graph returns the indexed graph.
func (idx *Index) Graph() *graph.Graph {
	return idx.g
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int {
	return len(idx.names)
}

// Get returns the node with the given name and its incident edges.
func (idx *Index) Get(name string) (*NodeView, bool) {
	n, ok := idx.g.GetNode(name)
	if !ok {
		return nil, false
	}
	return &NodeView{Node: n, Outgoing: n.Outgoing, Incoming: n.Incoming}, true
}

// WithPrefix returns the names starting with prefix, in order.
func (idx *Index) WithPrefix(prefix string) []string {
	start := sort.SearchStrings(idx.names, prefix)
	end := start
	for end < len(idx.names) && strings.HasPrefix(idx.names[end], prefix) {
		end++
	}
	return idx.names[start:end]
}

// Nodes returns the nodes matching q, sorted by name, and the total match
// count before paging.
func (idx *Index) Nodes(q Query) ([]*graph.Node, int) {
	candidates := idx.candidates(q)

	var matched []*graph.Node
	for _, n := range candidates {
		s := n.Symbol
		if q.Domain != "" && s.Domain != q.Domain {
			continue
		}
		if q.Concept != "" && s.Concept != q.Concept {
			continue
		}
		if q.Module != "" && s.Module != q.Module {
			continue
		}
		if q.Prefix != "" && !strings.HasPrefix(n.ID, q.Prefix) {
			continue
		}
		matched = append(matched, n)
	}
	return page(matched, q.Offset, q.Limit), len(matched)
}

// candidates picks the smallest precomputed set that can satisfy q.
func (idx *Index) candidates(q Query) []*graph.Node {
	switch {
	case q.Prefix != "":
		names := idx.WithPrefix(q.Prefix)
		out := make([]*graph.Node, 0, len(names))
		for _, name := range names {
			n, _ := idx.g.GetNode(name)
			out = append(out, n)
		}
		return out
	case q.Domain != "":
		return idx.g.NodesByDomain(q.Domain)
	case q.Module != "":
		return idx.g.NodesByModule(q.Module)
	default:
		return idx.g.Nodes()
	}
}

// Edges returns the edges matching q in key order, and the total match
// count before paging.
func (idx *Index) Edges(q EdgeQuery) ([]*graph.Edge, int) {
	var candidates []*graph.Edge
	switch {
	case q.Source != "":
		if n, ok := idx.g.GetNode(q.Source); ok {
			candidates = n.Outgoing
		}
	case q.Target != "":
		if n, ok := idx.g.GetNode(q.Target); ok {
			candidates = n.Incoming
		}
	case q.Type != "":
		candidates = idx.g.EdgesByType(q.Type)
	default:
		candidates = idx.g.Edges()
	}

	var matched []*graph.Edge
	for _, e := range candidates {
		if q.Type != "" && e.Type != q.Type {
			continue
		}
		if q.Provenance != "" && !e.HasProvenance(q.Provenance) {
			continue
		}
		if q.Source != "" && e.Source != q.Source {
			continue
		}
		if q.Target != "" && e.Target != q.Target {
			continue
		}
		matched = append(matched, e)
	}
	return page(matched, q.Offset, q.Limit), len(matched)
}

func page[T any](items []T, offset, limit int) []T {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	if limit > len(items)-offset {
		return items[offset:]
	}
	return items[offset : offset+limit]
}
