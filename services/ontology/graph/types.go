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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
)

// Default configuration values.
const (
	// DefaultMaxNodes is the default maximum number of nodes a graph can hold.
	DefaultMaxNodes = 1_000_000

	// DefaultMaxEdges is the default maximum number of edges a graph can hold.
	DefaultMaxEdges = 10_000_000

	// MostConnectedLimit is how many nodes Stats ranks by degree.
	MostConnectedLimit = 10
)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting AddNode/AddEdge calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON output.
func (s GraphState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *GraphState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "building":
		*s = GraphStateBuilding
	case "readonly":
		*s = GraphStateReadOnly
	default:
		return fmt.Errorf("unknown graph state %q", text)
	}
	return nil
}

// WeightPolicy decides the weight of an edge when a second statement with
// the same (source, target, type) arrives.
type WeightPolicy func(existing, incoming float64) float64

// MaxWeight keeps the larger of the two weights.
func MaxWeight(existing, incoming float64) float64 {
	if incoming > existing {
		return incoming
	}
	return existing
}

// SymbolSummary is the node payload: the parts of a merged symbol the graph
// and its exports carry.
type SymbolSummary struct {
	Name              string       `json:"name"`
	Description       string       `json:"description,omitempty"`
	Module            string       `json:"module"`
	Domain            model.Domain `json:"domain"`
	Concept           string       `json:"concept"`
	Propagated        bool         `json:"propagated,omitempty"`
	MethodCount       int          `json:"method_count"`
	AttributeCount    int          `json:"attribute_count"`
	RelationshipCount int          `json:"relationship_count"`
	APIMethodCount    int          `json:"api_method_count"`
	UMLMethodCount    int          `json:"uml_method_count"`
	BothMethodCount   int          `json:"both_method_count"`
	HasAPI            bool         `json:"has_api"`
	UMLDiagrams       []string     `json:"uml_diagrams,omitempty"`
}

// Classification returns the (domain, concept) pair of the summary.
func (s *SymbolSummary) Classification() model.Classification {
	return model.Classification{Domain: s.Domain, Concept: s.Concept, Propagated: s.Propagated}
}

// Edge is a directed, typed relationship between two nodes.
//
// Exactly one Edge exists per (Source, Target, Type). Statements that
// collide on that key are folded into it: Provenance accumulates, Weight
// follows the graph's WeightPolicy and Member/Description keep the first
// non-empty value.
type Edge struct {
	// Source is the ID of the source node.
	Source string

	// Target is the ID of the target node.
	Target string

	// Type is the relation type.
	Type model.RelationType

	// Provenance lists every producer of the edge, sorted and unique.
	Provenance []model.Provenance

	// Member is the attribute or role name, if any statement gave one.
	Member string

	// Description is free text from the first statement that had one.
	Description string

	// Weight is the edge weight; zero when no statement set one.
	Weight float64
}

// Key returns the (source, target, type) key of the edge.
func (e *Edge) Key() model.EdgeKey {
	return model.EdgeKey{Source: e.Source, Target: e.Target, Type: e.Type}
}

// HasProvenance reports whether p produced the edge.
func (e *Edge) HasProvenance(p model.Provenance) bool {
	for _, have := range e.Provenance {
		if have == p {
			return true
		}
	}
	return false
}

func (e *Edge) addProvenance(provs ...model.Provenance) {
	for _, p := range provs {
		if p == "" || e.HasProvenance(p) {
			continue
		}
		e.Provenance = append(e.Provenance, p)
	}
	sort.Slice(e.Provenance, func(i, j int) bool { return e.Provenance[i] < e.Provenance[j] })
}

// Node represents one symbol in the ontology graph.
//
// The Symbol pointer is NOT owned by the Node and MUST NOT be mutated after
// the Node is added to a Graph.
type Node struct {
	// ID is the unique identifier, the symbol name.
	ID string

	// Symbol is the summary the builder produced for the symbol.
	Symbol *SymbolSummary

	// Outgoing contains edges where this node is the source.
	Outgoing []*Edge

	// Incoming contains edges where this node is the target.
	Incoming []*Edge
}

// Degree returns the number of incident edges.
func (n *Node) Degree() int {
	return len(n.Outgoing) + len(n.Incoming)
}

// GraphOptions configures Graph behavior and limits.
type GraphOptions struct {
	// MaxNodes is the maximum number of nodes the graph can hold.
	MaxNodes int

	// MaxEdges is the maximum number of edges the graph can hold.
	MaxEdges int

	// WeightPolicy folds weights of colliding statements. Default: MaxWeight.
	WeightPolicy WeightPolicy
}

// DefaultGraphOptions returns sensible defaults for graph configuration.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		MaxNodes:     DefaultMaxNodes,
		MaxEdges:     DefaultMaxEdges,
		WeightPolicy: MaxWeight,
	}
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithMaxNodes sets the maximum number of nodes the graph can hold.
func WithMaxNodes(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum number of edges the graph can hold.
func WithMaxEdges(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxEdges = n
	}
}

// WithWeightPolicy sets how colliding statements fold their weights.
func WithWeightPolicy(p WeightPolicy) GraphOption {
	return func(o *GraphOptions) {
		if p != nil {
			o.WeightPolicy = p
		}
	}
}

// Graph is the ontology graph for one input catalog.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building. It is designed
//	for single-writer access during build, then read-only after Freeze().
//	After Freeze() is called, the graph can be safely read from multiple
//	goroutines, but no further modifications are allowed.
type Graph struct {
	// CatalogRoot identifies the input catalog the graph was built from,
	// usually the API record directory.
	CatalogRoot string

	nodes     map[string]*Node
	edges     []*Edge
	edgeIndex map[model.EdgeKey]*Edge

	// Secondary indexes. Writes during build only, reads after Freeze().
	nodesByDomain map[model.Domain][]*Node
	nodesByModule map[string][]*Node
	edgesByType   map[model.RelationType][]*Edge

	state   GraphState
	options GraphOptions

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze() was called.
	// Zero if the graph has not been frozen.
	BuiltAtMilli int64
}

// NewGraph creates a new empty graph for the given catalog root.
//
// Description:
//
//	Creates a graph in the Building state, ready to accept AddNode and
//	AddEdge calls. The graph must be frozen with Freeze() before querying.
//
// Inputs:
//
//	catalogRoot - Identifier of the input catalog.
//	opts - Optional configuration options.
func NewGraph(catalogRoot string, opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Graph{
		CatalogRoot:   catalogRoot,
		nodes:         make(map[string]*Node),
		edges:         make([]*Edge, 0),
		edgeIndex:     make(map[model.EdgeKey]*Edge),
		nodesByDomain: make(map[model.Domain][]*Node),
		nodesByModule: make(map[string][]*Node),
		edgesByType:   make(map[model.RelationType][]*Edge),
		state:         GraphStateBuilding,
		options:       options,
	}
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// Freeze transitions the graph to read-only mode.
//
// Description:
//
//	Sorts edges and per-node adjacency by key so that every read is
//	deterministic, then sets BuiltAtMilli. After calling Freeze(), AddNode
//	and AddEdge return ErrGraphFrozen. Freezing twice is a no-op.
func (g *Graph) Freeze() {
	if g.state == GraphStateReadOnly {
		return
	}
	sortEdges(g.edges)
	for _, n := range g.nodes {
		sortEdges(n.Outgoing)
		sortEdges(n.Incoming)
	}
	for _, es := range g.edgesByType {
		sortEdges(es)
	}
	for _, ns := range g.nodesByDomain {
		sortNodes(ns)
	}
	for _, ns := range g.nodesByModule {
		sortNodes(ns)
	}

	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AddNode adds a symbol summary as a node in the graph.
//
// Inputs:
//
//	summary - The node payload. Must not be nil and must carry a name.
//
// Outputs:
//
//	*Node - The created node.
//	error - Non-nil if the graph is frozen, at capacity, or summary is invalid.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidNode - Summary is nil or unnamed
//	ErrDuplicateNode - Node with same name already exists
//	ErrMaxNodesExceeded - Graph is at node capacity
func (g *Graph) AddNode(summary *SymbolSummary) (*Node, error) {
	if g.state == GraphStateReadOnly {
		return nil, ErrGraphFrozen
	}
	if summary == nil {
		return nil, fmt.Errorf("%w: summary is nil", ErrInvalidNode)
	}
	if summary.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidNode)
	}
	if len(g.nodes) >= g.options.MaxNodes {
		return nil, ErrMaxNodesExceeded
	}
	if _, exists := g.nodes[summary.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, summary.Name)
	}

	node := &Node{
		ID:       summary.Name,
		Symbol:   summary,
		Outgoing: make([]*Edge, 0),
		Incoming: make([]*Edge, 0),
	}
	g.nodes[node.ID] = node
	g.nodesByDomain[summary.Domain] = append(g.nodesByDomain[summary.Domain], node)
	g.nodesByModule[summary.Module] = append(g.nodesByModule[summary.Module], node)
	return node, nil
}

// GetNode retrieves a node by its ID (the symbol name).
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// AddEdge folds a relationship statement into the graph.
//
// Description:
//
//	Creates the edge for rel's (source, target, type) key, or merges rel
//	into the existing edge with that key. Merging adds rel's provenance,
//	applies the weight policy, and fills Member and Description when the
//	existing edge has none.
//
// Outputs:
//
//	*Edge - The created or merged edge.
//	bool - True if rel was merged into an existing edge.
//	error - Non-nil if the graph is frozen, at capacity, the type is
//	        unknown, or an endpoint is not a node.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidEdgeType - rel.Type is outside the vocabulary
//	ErrNodeNotFound - Source or target node doesn't exist
//	ErrMaxEdgesExceeded - Graph is at edge capacity
func (g *Graph) AddEdge(rel model.Relationship) (*Edge, bool, error) {
	return g.mergeEdge(rel.Key(), []model.Provenance{rel.Provenance}, rel.Member, rel.Description, rel.Weight)
}

func (g *Graph) mergeEdge(key model.EdgeKey, provs []model.Provenance, member, description string, weight float64) (*Edge, bool, error) {
	if g.state == GraphStateReadOnly {
		return nil, false, ErrGraphFrozen
	}
	if !key.Type.IsValid() {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidEdgeType, key.Type)
	}
	fromNode, ok := g.nodes[key.Source]
	if !ok {
		return nil, false, fmt.Errorf("%w: source %s", ErrNodeNotFound, key.Source)
	}
	toNode, ok := g.nodes[key.Target]
	if !ok {
		return nil, false, fmt.Errorf("%w: target %s", ErrNodeNotFound, key.Target)
	}

	if existing, ok := g.edgeIndex[key]; ok {
		existing.addProvenance(provs...)
		existing.Weight = g.options.WeightPolicy(existing.Weight, weight)
		if existing.Member == "" {
			existing.Member = member
		}
		if existing.Description == "" {
			existing.Description = description
		}
		return existing, true, nil
	}

	if len(g.edges) >= g.options.MaxEdges {
		return nil, false, ErrMaxEdgesExceeded
	}

	edge := &Edge{
		Source:      key.Source,
		Target:      key.Target,
		Type:        key.Type,
		Member:      member,
		Description: description,
		Weight:      weight,
	}
	edge.addProvenance(provs...)

	g.edges = append(g.edges, edge)
	g.edgeIndex[key] = edge
	fromNode.Outgoing = append(fromNode.Outgoing, edge)
	toNode.Incoming = append(toNode.Incoming, edge)
	g.edgesByType[key.Type] = append(g.edgesByType[key.Type], edge)
	return edge, false, nil
}

// GetEdge returns the edge with the given key.
func (g *Graph) GetEdge(key model.EdgeKey) (*Edge, bool) {
	e, ok := g.edgeIndex[key]
	return e, ok
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sortNodes(out)
	return out
}

// Edges returns all edges. Sorted by key once the graph is frozen.
//
// The returned slice must not be modified.
func (g *Graph) Edges() []*Edge {
	return g.edges
}

// NodesByDomain returns the nodes classified into domain.
//
// The returned slice must not be modified.
func (g *Graph) NodesByDomain(domain model.Domain) []*Node {
	return g.nodesByDomain[domain]
}

// NodesByModule returns the nodes whose API record came from module.
//
// The returned slice must not be modified.
func (g *Graph) NodesByModule(module string) []*Node {
	return g.nodesByModule[module]
}

// EdgesByType returns the edges of relation type t.
//
// The returned slice must not be modified.
func (g *Graph) EdgesByType(t model.RelationType) []*Edge {
	return g.edgesByType[t]
}

// NodeDegree pairs a node ID with its edge count.
type NodeDegree struct {
	ID     string `json:"id"`
	Degree int    `json:"degree"`
}

// GraphStats contains statistics about the graph.
//
// Thread Safety: GraphStats is a value type with no internal state.
type GraphStats struct {
	NodeCount         int                        `json:"node_count"`
	EdgeCount         int                        `json:"edge_count"`
	EdgesByType       map[model.RelationType]int `json:"edges_by_type"`
	EdgesByProvenance map[model.Provenance]int   `json:"edges_by_provenance"`
	NodesByDomain     map[model.Domain]int       `json:"nodes_by_domain"`

	// MostConnected ranks up to MostConnectedLimit nodes by degree,
	// ties broken by ID.
	MostConnected []NodeDegree `json:"most_connected"`

	State        GraphState `json:"state"`
	BuiltAtMilli int64      `json:"built_at_milli"`
}

// Stats returns statistics about the graph.
//
// Description:
//
//	Counts edges by type and by provenance (an edge with two producers
//	counts once for each), nodes by domain, and ranks the most connected
//	nodes.
//
// Complexity:
//
//	O(V log V + E).
//
// Thread Safety:
//
//	Safe for concurrent use on frozen graphs. Not safe during building.
func (g *Graph) Stats() GraphStats {
	stats := GraphStats{
		NodeCount:         len(g.nodes),
		EdgeCount:         len(g.edges),
		EdgesByType:       make(map[model.RelationType]int),
		EdgesByProvenance: make(map[model.Provenance]int),
		NodesByDomain:     make(map[model.Domain]int),
		State:             g.state,
		BuiltAtMilli:      g.BuiltAtMilli,
	}
	for t, es := range g.edgesByType {
		if len(es) > 0 {
			stats.EdgesByType[t] = len(es)
		}
	}
	for d, ns := range g.nodesByDomain {
		if len(ns) > 0 {
			stats.NodesByDomain[d] = len(ns)
		}
	}
	for _, e := range g.edges {
		for _, p := range e.Provenance {
			stats.EdgesByProvenance[p]++
		}
	}

	degrees := make([]NodeDegree, 0, len(g.nodes))
	for id, n := range g.nodes {
		if d := n.Degree(); d > 0 {
			degrees = append(degrees, NodeDegree{ID: id, Degree: d})
		}
	}
	sort.Slice(degrees, func(i, j int) bool {
		if degrees[i].Degree != degrees[j].Degree {
			return degrees[i].Degree > degrees[j].Degree
		}
		return degrees[i].ID < degrees[j].ID
	})
	if len(degrees) > MostConnectedLimit {
		degrees = degrees[:MostConnectedLimit]
	}
	stats.MostConnected = degrees
	return stats
}

// Hash returns a deterministic hash of the graph structure.
//
// Description:
//
//	Hashes node IDs with their classification and every edge with its
//	provenance and weight, in sorted order. Two builds from identical
//	inputs hash equal; BuiltAtMilli and descriptions do not participate.
func (g *Graph) Hash() string {
	h := sha256.New()
	for _, n := range g.Nodes() {
		fmt.Fprintf(h, "n|%s|%s|%s\n", n.ID, n.Symbol.Domain, n.Symbol.Concept)
	}
	edges := append([]*Edge(nil), g.edges...)
	sortEdges(edges)
	for _, e := range edges {
		provs := make([]string, len(e.Provenance))
		for i, p := range e.Provenance {
			provs[i] = string(p)
		}
		fmt.Fprintf(h, "e|%s|%s|%s|%s|%s\n", e.Source, e.Target, e.Type,
			strings.Join(provs, ","), strconv.FormatFloat(e.Weight, 'g', -1, 64))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortEdges(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Type < b.Type
	})
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}
