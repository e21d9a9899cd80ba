// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify assigns every symbol a (domain, concept) pair.
//
// Classification is a first-match keyword scan over an ordered taxonomy,
// followed by a propagation pass that lets unclassified symbols inherit the
// pair of their nearest classified ancestor.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
)

var tracer = otel.Tracer("ontology.classify")

// Classifier maps symbol names to classifications.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Classifier struct {
	taxonomy *config.Taxonomy
}

// NewClassifier creates a classifier over taxonomy.
func NewClassifier(taxonomy *config.Taxonomy) *Classifier {
	return &Classifier{taxonomy: taxonomy}
}

// Classify returns the first (domain, concept) whose keyword is contained in
// the base name of name, or the ("Other", "Unknown") fallback.
//
// Domains are scanned in taxonomy order and concepts in list order, so the
// table order decides ties: "oaInstTerm" contains both "Term" and
// "InstTerm" and resolves to "Term", which is listed first.
func (c *Classifier) Classify(name string) model.Classification {
	base := c.taxonomy.BaseName(name)
	for _, d := range c.taxonomy.Domains {
		for _, concept := range d.Concepts {
			if strings.Contains(base, concept) {
				return model.Classification{Domain: d.Domain, Concept: concept}
			}
		}
	}
	return model.Fallback()
}

// Result is the outcome of ClassifyAll.
type Result struct {
	// Classifications holds one entry per symbol. Never missing a symbol.
	Classifications map[string]model.Classification

	// Direct counts symbols matched by keyword.
	Direct int

	// Propagated counts symbols that inherited an ancestor's pair.
	Propagated int

	// Unclassified counts symbols left at the fallback.
	Unclassified int

	// Cycles lists inheritance back edges as "child -> parent", sorted.
	Cycles []string
}

// ClassifyAll classifies every symbol and propagates along inheritance.
//
// Inputs:
//
//	ctx - Context for tracing.
//	symbols - The complete symbol set.
//
// Outputs:
//
//	*Result - Never nil. Every symbol has a classification.
func (c *Classifier) ClassifyAll(ctx context.Context, symbols *model.SymbolSet) *Result {
	_, span := tracer.Start(ctx, "classify.ClassifyAll")
	defer span.End()

	direct := make(map[string]model.Classification, symbols.Len())
	for _, sym := range symbols.All() {
		direct[sym.Name] = c.Classify(sym.Name)
	}

	parents := Parents(symbols)
	result := c.Propagate(symbols.Names(), parents, direct)

	span.SetAttributes(
		attribute.Int("classify.direct", result.Direct),
		attribute.Int("classify.propagated", result.Propagated),
		attribute.Int("classify.unclassified", result.Unclassified),
		attribute.Int("classify.cycles", len(result.Cycles)),
	)
	for _, cyc := range result.Cycles {
		slog.Warn("inheritance cycle",
			slog.String("edge", cyc),
			slog.String("error", model.ErrClassificationCycle.Error()),
		)
	}
	slog.Info("classification complete",
		slog.Int("direct", result.Direct),
		slog.Int("propagated", result.Propagated),
		slog.Int("unclassified", result.Unclassified),
	)
	return result
}

// Parents returns the parent list of every symbol: API inheritance first,
// then SPECIALIZES statements the symbol is the source of, without repeats.
func Parents(symbols *model.SymbolSet) map[string][]string {
	out := make(map[string][]string, symbols.Len())
	for _, sym := range symbols.All() {
		seen := make(map[string]bool)
		var ps []string
		add := func(p string) {
			if p != "" && !seen[p] {
				seen[p] = true
				ps = append(ps, p)
			}
		}
		for _, p := range sym.Inheritance {
			add(p)
		}
		for _, r := range sym.Relationships {
			if r.Type == model.RelSpecializes && r.Source == sym.Name {
				add(r.Target)
			}
		}
		if len(ps) > 0 {
			out[sym.Name] = ps
		}
	}
	return out
}

// Propagate fills unclassified names from their nearest classified ancestor.
//
// Description:
//
//	For each unclassified name, walks ancestors breadth-first in parent
//	order and takes the first classified one. Ancestors that are not in
//	direct are classified by keyword. Each ancestor is visited at most once
//	per walk, so malformed input with inheritance cycles terminates.
//	Names left without a classified ancestor get the fallback.
//
// Inputs:
//
//	names - Symbols to classify, in output order.
//	parents - Parent lists by name.
//	direct - Keyword classification of each name.
//
// Outputs:
//
//	*Result - Classifications for every name, plus counts and detected cycles.
func (c *Classifier) Propagate(names []string, parents map[string][]string, direct map[string]model.Classification) *Result {
	result := &Result{
		Classifications: make(map[string]model.Classification, len(names)),
		Cycles:          findCycles(names, parents),
	}

	classOf := func(name string) model.Classification {
		if cl, ok := direct[name]; ok {
			return cl
		}
		return c.Classify(name)
	}

	for _, name := range names {
		cl := classOf(name)
		if !cl.IsUnclassified() {
			result.Classifications[name] = cl
			result.Direct++
			continue
		}

		inherited, ok := nearestClassified(name, parents, classOf)
		if ok {
			inherited.Propagated = true
			result.Classifications[name] = inherited
			result.Propagated++
			continue
		}
		result.Classifications[name] = model.Fallback()
		result.Unclassified++
	}
	return result
}

func nearestClassified(name string, parents map[string][]string, classOf func(string) model.Classification) (model.Classification, bool) {
	visited := map[string]bool{name: true}
	queue := append([]string(nil), parents[name]...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if visited[p] {
			continue
		}
		visited[p] = true
		if cl := classOf(p); !cl.IsUnclassified() {
			return model.Classification{Domain: cl.Domain, Concept: cl.Concept}, true
		}
		queue = append(queue, parents[p]...)
	}
	return model.Classification{}, false
}

// findCycles returns the back edges of the inheritance graph found by a
// depth-first walk from every name in order.
func findCycles(names []string, parents map[string][]string) []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	var cycles []string

	var visit func(n string)
	visit = func(n string) {
		color[n] = grey
		for _, p := range parents[n] {
			switch color[p] {
			case grey:
				cycles = append(cycles, fmt.Sprintf("%s -> %s", n, p))
			case white:
				visit(p)
			}
		}
		color[n] = black
	}

	for _, n := range names {
		if color[n] == white {
			visit(n)
		}
	}
	sort.Strings(cycles)
	return cycles
}
