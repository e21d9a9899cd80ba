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
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
)

// DefaultDescriptionLimit is the default maximum node description length
// in runes, suffix included.
const DefaultDescriptionLimit = 200

// truncationSuffix marks a shortened description.
const truncationSuffix = "..."

// ProgressPhase indicates which phase of building is in progress.
type ProgressPhase int

const (
	// ProgressPhaseNodes indicates symbols are being added as nodes.
	ProgressPhaseNodes ProgressPhase = iota

	// ProgressPhaseEdges indicates statements are being folded into edges.
	ProgressPhaseEdges

	// ProgressPhaseFinalizing indicates the graph is being frozen.
	ProgressPhaseFinalizing
)

// String returns the string representation of the ProgressPhase.
func (p ProgressPhase) String() string {
	switch p {
	case ProgressPhaseNodes:
		return "nodes"
	case ProgressPhaseEdges:
		return "edges"
	case ProgressPhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// BuildProgress contains progress information during a build.
type BuildProgress struct {
	// Phase is the current build phase.
	Phase ProgressPhase

	// Total is the number of items in the current phase.
	Total int

	// Processed is the number of items handled so far.
	Processed int

	// NodesCreated is the number of nodes created so far.
	NodesCreated int

	// EdgesCreated is the number of edges created so far.
	EdgesCreated int
}

// ProgressFunc is a callback function for build progress updates.
type ProgressFunc func(progress BuildProgress)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// CatalogRoot is recorded on the built graph.
	CatalogRoot string

	// DescriptionLimit caps node descriptions in runes. Zero or negative
	// disables truncation. Default: 200
	DescriptionLimit int

	// ProgressCallback is called once per phase. May be nil.
	ProgressCallback ProgressFunc

	// WeightPolicy folds the weights of colliding statements.
	// Default: MaxWeight
	WeightPolicy WeightPolicy

	// MaxNodes is the maximum number of nodes (passed to Graph).
	MaxNodes int

	// MaxEdges is the maximum number of edges (passed to Graph).
	MaxEdges int

	// Logger receives build diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		DescriptionLimit: DefaultDescriptionLimit,
		WeightPolicy:     MaxWeight,
		MaxNodes:         DefaultMaxNodes,
		MaxEdges:         DefaultMaxEdges,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithCatalogRoot sets the catalog identifier recorded on the graph.
func WithCatalogRoot(root string) BuilderOption {
	return func(o *BuilderOptions) {
		o.CatalogRoot = root
	}
}

// WithDescriptionLimit sets the node description cap in runes.
func WithDescriptionLimit(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.DescriptionLimit = n
	}
}

// WithProgressCallback sets the progress callback function.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressCallback = fn
	}
}

// WithBuilderWeightPolicy sets how colliding statements fold their weights.
func WithBuilderWeightPolicy(p WeightPolicy) BuilderOption {
	return func(o *BuilderOptions) {
		if p != nil {
			o.WeightPolicy = p
		}
	}
}

// WithBuilderMaxNodes sets the maximum number of nodes.
func WithBuilderMaxNodes(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxNodes = n
	}
}

// WithBuilderMaxEdges sets the maximum number of edges.
func WithBuilderMaxEdges(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxEdges = n
	}
}

// WithLogger sets the builder's logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = l
	}
}

// Builder assembles the ontology graph from merged symbols, their
// classifications and relationship statements.
//
// The builder is stateless and can be reused across multiple builds.
// Each Build() call creates a new graph.
//
// Thread Safety:
//
//	Builder is safe for concurrent use. Each Build() call operates
//	independently with its own internal state.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a new Builder with the given options.
//
// Example:
//
//	builder := NewBuilder(
//	    WithCatalogRoot("/data/api"),
//	    WithDescriptionLimit(120),
//	)
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Builder{options: options}
}

// Build constructs a frozen graph.
//
// Description:
//
//	Adds one node per symbol carrying its classification and counts, then
//	folds every statement into an edge. Statements whose endpoints are not
//	both nodes are dropped, counted in Stats.DanglingDropped and listed in
//	EdgeErrors wrapping model.ErrDanglingRelationship. Statements sharing a
//	(source, target, type) key become one edge whose provenance is the union
//	of theirs.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	symbols - The complete merged symbol set. Must not be nil.
//	classifications - Pair per symbol name. A missing entry gets the fallback.
//	statements - Declared and inferred relationships, in any order.
//
// Outputs:
//
//	*BuildResult - The graph and statistics. On cancellation the result is
//	               marked Incomplete and its graph is not frozen.
//	error - Non-nil only for invalid arguments.
//
// Build Phases:
//
//  1. NODES: one node per symbol
//  2. EDGES: fold statements
//  3. FINALIZE: freeze the graph
func (b *Builder) Build(ctx context.Context, symbols *model.SymbolSet, classifications map[string]model.Classification, statements []model.Relationship) (*BuildResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if symbols == nil {
		return nil, fmt.Errorf("symbols must not be nil")
	}

	ctx, span := startBuildSpan(ctx, symbols.Len(), len(statements))
	defer span.End()
	start := time.Now()

	result := &BuildResult{
		Graph: NewGraph(b.options.CatalogRoot,
			WithMaxNodes(b.options.MaxNodes),
			WithMaxEdges(b.options.MaxEdges),
			WithWeightPolicy(b.options.WeightPolicy),
		),
		EdgeErrors: make([]EdgeError, 0),
	}

	finish := func(incomplete bool) (*BuildResult, error) {
		duration := time.Since(start)
		result.Incomplete = incomplete
		result.Stats.DurationMilli = duration.Milliseconds()
		result.Stats.DurationMicro = duration.Microseconds()
		setBuildSpanResult(span, result.Stats, incomplete)
		recordBuildMetrics(ctx, duration, result.Stats, !incomplete)
		return result, nil
	}

	if err := b.nodesPhase(ctx, result, symbols, classifications); err != nil {
		b.options.Logger.Warn("graph build cancelled", slog.String("phase", ProgressPhaseNodes.String()))
		return finish(true)
	}
	if err := b.edgesPhase(ctx, result, statements); err != nil {
		b.options.Logger.Warn("graph build cancelled", slog.String("phase", ProgressPhaseEdges.String()))
		return finish(true)
	}

	result.Graph.Freeze()
	b.reportProgress(result, ProgressPhaseFinalizing, 1, 1)

	b.options.Logger.Info("graph built",
		slog.Int("nodes", result.Stats.NodesCreated),
		slog.Int("edges", result.Stats.EdgesCreated),
		slog.Int("merged", result.Stats.EdgesMerged),
		slog.Int("dangling_dropped", result.Stats.DanglingDropped),
		slog.Int("invalid_dropped", result.Stats.InvalidDropped),
	)
	return finish(false)
}

func (b *Builder) nodesPhase(ctx context.Context, result *BuildResult, symbols *model.SymbolSet, classifications map[string]model.Classification) error {
	all := symbols.All()
	for _, sym := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		cl, ok := classifications[sym.Name]
		if !ok || cl.Domain == "" {
			cl = model.Fallback()
		}
		if _, err := result.Graph.AddNode(b.summarize(sym, cl)); err != nil {
			b.options.Logger.Warn("node skipped",
				slog.String("symbol", sym.Name),
				slog.Any("error", err),
			)
			continue
		}
		result.Stats.NodesCreated++
	}
	b.reportProgress(result, ProgressPhaseNodes, len(all), len(all))
	return nil
}

func (b *Builder) edgesPhase(ctx context.Context, result *BuildResult, statements []model.Relationship) error {
	for _, rel := range statements {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, merged, err := result.Graph.AddEdge(rel)
		switch {
		case err == nil && merged:
			result.Stats.EdgesMerged++
		case err == nil:
			result.Stats.EdgesCreated++
		case errors.Is(err, ErrNodeNotFound):
			result.Stats.DanglingDropped++
			result.EdgeErrors = append(result.EdgeErrors, edgeError(rel, fmt.Errorf("%w: %v", model.ErrDanglingRelationship, err)))
			b.options.Logger.Debug("dangling relationship dropped",
				slog.String("edge", rel.Key().String()),
				slog.String("provenance", string(rel.Provenance)),
			)
		default:
			result.Stats.InvalidDropped++
			result.EdgeErrors = append(result.EdgeErrors, edgeError(rel, err))
			b.options.Logger.Warn("relationship dropped",
				slog.String("edge", rel.Key().String()),
				slog.Any("error", err),
			)
		}
	}
	b.reportProgress(result, ProgressPhaseEdges, len(statements), len(statements))
	return nil
}

func edgeError(rel model.Relationship, err error) EdgeError {
	return EdgeError{
		Source:     rel.Source,
		Target:     rel.Target,
		Type:       rel.Type,
		Provenance: rel.Provenance,
		Err:        err,
	}
}

// summarize projects a merged symbol onto its node payload.
func (b *Builder) summarize(sym *model.MergedSymbol, cl model.Classification) *SymbolSummary {
	counts := sym.CountMethods()
	var diagrams []string
	if len(sym.Sources.UMLDiagrams) > 0 {
		diagrams = append([]string(nil), sym.Sources.UMLDiagrams...)
	}
	return &SymbolSummary{
		Name:              sym.Name,
		Description:       TruncateDescription(sym.Description, b.options.DescriptionLimit),
		Module:            sym.Module,
		Domain:            cl.Domain,
		Concept:           cl.Concept,
		Propagated:        cl.Propagated,
		MethodCount:       len(sym.Methods),
		AttributeCount:    len(sym.Attributes),
		RelationshipCount: len(sym.Relationships),
		APIMethodCount:    counts[model.ProvenanceAPI],
		UMLMethodCount:    counts[model.ProvenanceUML],
		BothMethodCount:   counts[model.ProvenanceBoth],
		HasAPI:            sym.Sources.HasAPI,
		UMLDiagrams:       diagrams,
	}
}

// reportProgress calls the progress callback if configured.
func (b *Builder) reportProgress(result *BuildResult, phase ProgressPhase, total, processed int) {
	if b.options.ProgressCallback == nil {
		return
	}
	b.options.ProgressCallback(BuildProgress{
		Phase:        phase,
		Total:        total,
		Processed:    processed,
		NodesCreated: result.Stats.NodesCreated,
		EdgesCreated: result.Stats.EdgesCreated,
	})
}

// TruncateDescription shortens s to at most limit runes, ending in "..."
// when anything was cut. A limit of zero or less returns s unchanged.
func TruncateDescription(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - len(truncationSuffix)
	if keep <= 0 {
		return truncationSuffix[:limit]
	}
	runes := []rune(s)
	return string(runes[:keep]) + truncationSuffix
}
