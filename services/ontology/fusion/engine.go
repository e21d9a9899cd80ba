// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fusion merges the API and UML records of every symbol into one
// MergedSymbol.
//
// # Fan-Out
//
// Per-symbol fusion is independent, so FuseAll runs it on a bounded worker
// pool. Each worker writes only its own result slot. The symbol set is
// published after every worker has returned; a cancelled run publishes
// nothing.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/merge"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/AleutianAI/AleutianOntology/services/ontology/normalize"
	"github.com/AleutianAI/AleutianOntology/services/ontology/source"
)

var tracer = otel.Tracer("ontology.fusion")

// Catalog is the record lookup the engine reads from. *source.Catalog
// implements it.
type Catalog interface {
	// APIRecord returns the API record for name, if any.
	APIRecord(name string) (*source.APIRecord, bool)

	// UMLView returns what the diagrams say about name.
	UMLView(name string) source.UMLView

	// Names returns the candidate symbol universe, sorted.
	Names() []string
}

// Progress is reported after each fused symbol.
type Progress struct {
	Total     int
	Processed int
}

// ProgressFunc receives fusion progress. Called from worker goroutines.
type ProgressFunc func(Progress)

// EngineOptions configures an Engine.
type EngineOptions struct {
	// WorkerCount bounds the fan-out. Default: runtime.NumCPU().
	WorkerCount int

	// Logger receives per-symbol warnings. Default: slog.Default().
	Logger *slog.Logger

	// ProgressCallback may be nil.
	ProgressCallback ProgressFunc
}

// EngineOption is a functional option for configuring Engine.
type EngineOption func(*EngineOptions)

// WithWorkerCount sets the number of parallel workers.
func WithWorkerCount(n int) EngineOption {
	return func(o *EngineOptions) {
		o.WorkerCount = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(o *EngineOptions) {
		o.Logger = l
	}
}

// WithProgressCallback sets the progress callback.
func WithProgressCallback(fn ProgressFunc) EngineOption {
	return func(o *EngineOptions) {
		o.ProgressCallback = fn
	}
}

// Engine is the cross-source fusion engine.
//
// Thread Safety: Safe for concurrent use. FuseSymbol holds no shared
// mutable state.
type Engine struct {
	vocab      *config.Vocabulary
	normalizer *normalize.Normalizer
	attributes *merge.AttributeInferrer
	options    EngineOptions
}

// NewEngine creates a fusion engine.
//
// Inputs:
//
//	vocab - Relationship vocabulary (UML label mapping, accessor rules). Must not be nil.
//	normalizer - Description cleaner. Must not be nil.
//	opts - Functional options.
//
// Example:
//
//	engine := fusion.NewEngine(vocab, normalizer, fusion.WithWorkerCount(8))
func NewEngine(vocab *config.Vocabulary, normalizer *normalize.Normalizer, opts ...EngineOption) *Engine {
	options := EngineOptions{WorkerCount: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.WorkerCount <= 0 {
		options.WorkerCount = runtime.NumCPU()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Engine{
		vocab:      vocab,
		normalizer: normalizer,
		attributes: merge.NewAttributeInferrer(vocab),
		options:    options,
	}
}

// SymbolShadowing is a merge.Shadowing tagged with its symbol.
type SymbolShadowing struct {
	Symbol string `json:"symbol"`
	merge.Shadowing
}

// fused is the per-symbol output of one worker.
type fused struct {
	symbol     *model.MergedSymbol
	shadowings []merge.Shadowing
	collisions int
}

// FuseSymbol merges every record of one symbol.
//
// Description:
//
//	Loads the API record and the UML view, merges methods with the
//	APIWins policy, infers attributes, cleans the description and copies
//	the UML relationship statements mentioning the symbol.
//
// Outputs:
//
//	*model.MergedSymbol - The merged symbol. Nil when there is no data.
//	bool - False when neither source has a record for name. This is the
//	expected outcome for names seen only as relationship endpoints.
func (e *Engine) FuseSymbol(name string, catalog Catalog) (*model.MergedSymbol, bool) {
	f, ok := e.fuse(name, catalog)
	if !ok {
		return nil, false
	}
	return f.symbol, true
}

func (e *Engine) fuse(name string, catalog Catalog) (fused, bool) {
	api, hasAPI := catalog.APIRecord(name)
	view := catalog.UMLView(name)
	if !hasAPI && !view.Found() {
		return fused{}, false
	}

	sym := model.NewMergedSymbol(name)
	sym.Sources = model.SymbolSources{HasAPI: hasAPI, UMLDiagrams: view.Diagrams}

	methods := merge.NewMethodSet(merge.APIWins, e.normalizer.Text)
	var declared []model.AttributeStub

	if hasAPI {
		sym.Description = e.normalizer.Text(api.Description)
		if api.Module != "" {
			sym.Module = api.Module
		}
		for _, parent := range api.Inheritance {
			if parent = strings.TrimSpace(parent); parent != "" && parent != name {
				sym.Inheritance = append(sym.Inheritance, parent)
			}
		}
		if len(api.Enumerations) > 0 {
			sym.Enumerations = api.Enumerations
		}
		methods.AddAll(api.Methods, model.SourceAPI)
	}

	if view.Class != nil {
		if sym.Description == "" {
			sym.Description = e.normalizer.Text(view.Class.Description)
		}
		methods.AddAll(view.Class.Methods, model.SourceUML)
		for _, a := range view.Class.Attributes {
			a.Description = e.normalizer.Text(a.Description)
			declared = append(declared, a)
		}
	}

	sym.Methods = methods.Map()
	attrs, shadowings := e.attributes.Infer(declared, sym.SortedMethods())
	sym.Attributes = attrs
	sym.Relationships = e.umlStatements(view.Relationships)

	return fused{symbol: sym, shadowings: shadowings, collisions: methods.Collisions()}, true
}

// umlStatements maps diagram connectors onto relation types, reversing
// statements the vocabulary marks as drawn against the ontology direction,
// and drops repeats of (source, target, type).
func (e *Engine) umlStatements(rels []source.UMLRelationship) []model.Relationship {
	if len(rels) == 0 {
		return nil
	}
	out := make([]model.Relationship, 0, len(rels))
	seen := make(map[model.EdgeKey]bool, len(rels))
	for _, r := range rels {
		relType, reverse := e.vocab.RelationFor(r.Type)
		from, to := r.Source, r.Target
		if reverse {
			from, to = to, from
		}
		stmt := model.Relationship{
			Source:      from,
			Target:      to,
			Type:        relType,
			Member:      r.Member,
			Description: e.normalizer.Text(r.Description),
			Provenance:  model.ProvenanceUML,
		}
		if seen[stmt.Key()] {
			continue
		}
		seen[stmt.Key()] = true
		out = append(out, stmt)
	}
	return out
}

// Result is the published output of FuseAll.
type Result struct {
	// Symbols is the complete merged symbol set.
	Symbols *model.SymbolSet

	// Missing lists names that had neither an API nor a UML record.
	Missing []string

	// Shadowings lists declared attributes shadowing accessor-implied types.
	Shadowings []SymbolShadowing

	// MethodCollisions counts methods present in both sources.
	MethodCollisions int

	// DurationMilli is the wall time of the fan-out.
	DurationMilli int64
}

// FuseAll fuses every candidate name in the catalog.
//
// Description:
//
//	Runs FuseSymbol over catalog.Names() on a bounded worker pool. Names
//	without data are collected in Result.Missing. The symbol set is built
//	only after every worker has finished.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	catalog - The loaded records.
//
// Outputs:
//
//	*Result - The published symbol set and per-run counts. Nil on error.
//	error - Non-nil only if ctx is cancelled.
func (e *Engine) FuseAll(ctx context.Context, catalog Catalog) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("FuseAll: ctx must not be nil")
	}
	ctx, span := tracer.Start(ctx, "fusion.FuseAll")
	defer span.End()

	start := time.Now()
	names := catalog.Names()
	slots := make([]fused, len(names))
	found := make([]bool, len(names))

	var processed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.options.WorkerCount)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i], found[i] = e.fuse(name, catalog)
			n := processed.Add(1)
			if e.options.ProgressCallback != nil {
				e.options.ProgressCallback(Progress{Total: len(names), Processed: int(n)})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fusion cancelled: %w", err)
	}

	result := &Result{}
	symbols := make([]*model.MergedSymbol, 0, len(names))
	for i, name := range names {
		if !found[i] {
			result.Missing = append(result.Missing, name)
			e.options.Logger.Debug("no record for symbol",
				slog.String("symbol", name),
				slog.String("error", model.ErrMissingSource.Error()),
			)
			continue
		}
		f := slots[i]
		symbols = append(symbols, f.symbol)
		result.MethodCollisions += f.collisions
		for _, s := range f.shadowings {
			e.options.Logger.Warn("declared attribute shadows accessor type",
				slog.String("symbol", name),
				slog.String("attribute", s.Attribute),
				slog.String("declared_type", s.DeclaredType),
				slog.String("inferred_type", s.InferredType),
				slog.String("method", s.Method),
			)
			result.Shadowings = append(result.Shadowings, SymbolShadowing{Symbol: name, Shadowing: s})
		}
	}
	result.Symbols = model.NewSymbolSet(symbols)
	result.DurationMilli = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.Int("fusion.candidates", len(names)),
		attribute.Int("fusion.symbols", result.Symbols.Len()),
		attribute.Int("fusion.missing", len(result.Missing)),
		attribute.Int("fusion.shadowings", len(result.Shadowings)),
	)
	e.options.Logger.Info("fusion complete",
		slog.Int("candidates", len(names)),
		slog.Int("symbols", result.Symbols.Len()),
		slog.Int("missing", len(result.Missing)),
		slog.Int("method_collisions", result.MethodCollisions),
		slog.Int64("duration_ms", result.DurationMilli),
	)

	return result, nil
}
