// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inference assembles the relationship statements of a complete
// symbol set: the ones the sources declare and the ones implied by method
// shapes.
//
// # Rule Families
//
//	declared     API inheritance (SPECIALIZES) and UML connectors
//	accessors    get<X> returning a known symbol -> CONTAINS_ONE / CONTAINS_MANY
//	patterns     weighted domain rules from the vocabulary pattern table
//	factories    create() returning a known symbol -> CREATES
//	dependencies const X& / const X* parameters -> DEPENDS_ON
//
// Inference needs the full symbol universe to resolve targets, so it runs
// only after fusion has published the symbol set. Output order is a pure
// function of the input: symbols by name, methods by key, rules in table
// order.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/merge"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
)

var tracer = otel.Tracer("ontology.inference")

// Rule family names used in Result.ByRule.
const (
	RuleDeclared     = "declared"
	RuleAccessors    = "accessors"
	RulePatterns     = "patterns"
	RuleFactories    = "factories"
	RuleDependencies = "dependencies"
)

var (
	// templateRe splits "oaCollection<oaTerm, oaNet>" into wrapper and first argument.
	templateRe = regexp.MustCompile(`^(?:const\s+)?([\w:]+)\s*<\s*([\w:]+)`)

	// constParamRe finds "const oaNet &" and "const oaNet *" parameters.
	constParamRe = regexp.MustCompile(`const\s+(\w+)\s*[&*]`)
)

type compiledPattern struct {
	rule   config.PatternRule
	source *regexp.Regexp
	method *regexp.Regexp
	target *regexp.Regexp
}

// Engine derives relationship statements.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Engine struct {
	vocab      *config.Vocabulary
	taxonomy   *config.Taxonomy
	toggles    config.InferenceConfig
	accessors  *merge.AttributeInferrer
	patterns   []compiledPattern
	wrappers   map[string]bool
	factories  map[string]bool
	ignoredDep map[string]bool
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine builds an inference engine from the rule tables.
//
// Inputs:
//
//	vocab - Relationship vocabulary. Must not be nil.
//	taxonomy - Supplies the strip tokens used to compute base names for
//	pattern rules. Must not be nil.
//	toggles - Enabled rule families. Declared statements are always produced.
//
// Outputs:
//
//	*Engine - Ready to use.
//	error - Non-nil if a pattern rule does not compile.
func NewEngine(vocab *config.Vocabulary, taxonomy *config.Taxonomy, toggles config.InferenceConfig, opts ...Option) (*Engine, error) {
	e := &Engine{
		vocab:      vocab,
		taxonomy:   taxonomy,
		toggles:    toggles,
		accessors:  merge.NewAttributeInferrer(vocab),
		wrappers:   toSet(vocab.CollectionWrappers),
		factories:  toSet(vocab.FactoryMethods),
		ignoredDep: toSet(vocab.IgnoredDependencyTypes),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for i, r := range vocab.PatternRules {
		cp := compiledPattern{rule: r}
		var err error
		if cp.source, err = regexp.Compile(r.Source); err != nil {
			return nil, fmt.Errorf("pattern_rule[%d] source: %w", i, err)
		}
		if cp.method, err = regexp.Compile(r.Method); err != nil {
			return nil, fmt.Errorf("pattern_rule[%d] method: %w", i, err)
		}
		if r.Target != "" {
			if cp.target, err = regexp.Compile(r.Target); err != nil {
				return nil, fmt.Errorf("pattern_rule[%d] target: %w", i, err)
			}
		}
		e.patterns = append(e.patterns, cp)
	}
	return e, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

// Result holds every statement of a run.
type Result struct {
	// Statements are declared first (symbol order), then inferred (symbol
	// order, rule family order within a symbol).
	Statements []model.Relationship

	// ByRule counts statements per rule family.
	ByRule map[string]int
}

// Infer produces the declared and inferred statements for a symbol set.
//
// Description:
//
//	Collects declared statements from every symbol, dropping exact repeats
//	(a UML connector is listed on both of its endpoints). Then runs the
//	enabled rule families over each symbol in name order.
//
// Inputs:
//
//	ctx - Context for tracing.
//	symbols - The complete, published symbol set.
//
// Outputs:
//
//	*Result - Never nil.
func (e *Engine) Infer(ctx context.Context, symbols *model.SymbolSet) *Result {
	_, span := tracer.Start(ctx, "inference.Infer")
	defer span.End()

	result := &Result{ByRule: make(map[string]int)}

	type stmtKey struct {
		edge   model.EdgeKey
		member string
		prov   model.Provenance
	}
	seen := make(map[stmtKey]bool)
	members := make(map[string]map[string]bool)

	emit := func(rule string, r model.Relationship) {
		k := stmtKey{edge: r.Key(), member: r.Member, prov: r.Provenance}
		if seen[k] {
			return
		}
		seen[k] = true
		result.Statements = append(result.Statements, r)
		result.ByRule[rule]++
	}

	for _, sym := range symbols.All() {
		for _, r := range e.Declared(sym) {
			emit(RuleDeclared, r)
			if r.Member != "" {
				if members[r.Source] == nil {
					members[r.Source] = make(map[string]bool)
				}
				members[r.Source][r.Member] = true
			}
		}
	}

	for _, sym := range symbols.All() {
		declared := members[sym.Name]
		if e.toggles.Accessors {
			for _, r := range e.InferAccessors(sym, symbols, declared) {
				emit(RuleAccessors, r)
			}
		}
		if e.toggles.Patterns {
			for _, r := range e.InferPatterns(sym, symbols, declared) {
				emit(RulePatterns, r)
			}
		}
		if e.toggles.Factories {
			for _, r := range e.InferFactories(sym, symbols) {
				emit(RuleFactories, r)
			}
		}
		if e.toggles.Dependencies {
			for _, r := range e.InferDependencies(sym, symbols) {
				emit(RuleDependencies, r)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("inference.statements", len(result.Statements)),
		attribute.Int("inference.declared", result.ByRule[RuleDeclared]),
		attribute.Int("inference.accessors", result.ByRule[RuleAccessors]),
		attribute.Int("inference.patterns", result.ByRule[RulePatterns]),
	)
	e.logger.Info("relationship inference complete",
		slog.Int("statements", len(result.Statements)),
		slog.Int("declared", result.ByRule[RuleDeclared]),
		slog.Int("accessors", result.ByRule[RuleAccessors]),
		slog.Int("patterns", result.ByRule[RulePatterns]),
		slog.Int("factories", result.ByRule[RuleFactories]),
		slog.Int("dependencies", result.ByRule[RuleDependencies]),
	)
	return result
}

// Declared returns the statements the sources state for sym: one
// SPECIALIZES per API parent, then the UML statements already attached.
func (e *Engine) Declared(sym *model.MergedSymbol) []model.Relationship {
	out := make([]model.Relationship, 0, len(sym.Inheritance)+len(sym.Relationships))
	for _, parent := range sym.Inheritance {
		out = append(out, model.Relationship{
			Source:      sym.Name,
			Target:      parent,
			Type:        model.RelSpecializes,
			Description: fmt.Sprintf("%s inherits from %s", sym.Name, parent),
			Provenance:  model.ProvenanceAPI,
			Weight:      e.vocab.SpecializesWeight,
		})
	}
	out = append(out, sym.Relationships...)
	return out
}

// getterTarget resolves a getter to the symbol it returns.
type getterTarget struct {
	method     *model.Method
	suffix     string
	target     string
	collection bool
}

// getters lists the getters of sym whose return type resolves to a known
// symbol, in method key order.
func (e *Engine) getters(sym *model.MergedSymbol, known *model.SymbolSet) []getterTarget {
	var out []getterTarget
	for _, m := range sym.SortedMethods() {
		kind, suffix, ok := e.accessors.Match(m.Name)
		if !ok || kind != config.AccessorGetter {
			continue
		}
		target, collection, ok := e.ResolveType(m.ReturnType)
		if !ok || !known.Has(target) {
			continue
		}
		out = append(out, getterTarget{method: m, suffix: suffix, target: target, collection: collection})
	}
	return out
}

// ResolveType extracts the symbol a return type refers to.
//
// Description:
//
//	"oaCollection<oaTerm, oaNet>" resolves to oaTerm as a collection when
//	the wrapper is in the vocabulary. "oaNet *", "const oaNet &" resolve to
//	oaNet. A plain value type without a pointer or reference marker does
//	not resolve.
//
// Outputs:
//
//	string - The referenced type name.
//	bool - True when the type is a collection.
//	bool - False when nothing resolved.
func (e *Engine) ResolveType(returnType string) (string, bool, bool) {
	rt := strings.TrimSpace(returnType)
	if rt == "" {
		return "", false, false
	}
	if m := templateRe.FindStringSubmatch(rt); m != nil {
		if e.wrappers[m[1]] {
			return m[2], true, true
		}
		return "", false, false
	}
	if !strings.ContainsAny(rt, "*&") {
		return "", false, false
	}
	rt = strings.TrimPrefix(rt, "const ")
	rt = strings.TrimRight(rt, "*& ")
	if rt == "" || strings.ContainsAny(rt, " <>,") {
		return "", false, false
	}
	return rt, false, true
}

// isPlural reports whether an accessor name reads as plural ("getTerms",
// not "getAddress").
func isPlural(name string) bool {
	return strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss")
}

// InferAccessors derives containment statements from getters.
//
// Description:
//
//	A getter whose return type resolves to a known symbol yields
//	CONTAINS_MANY when the type is a collection or the name is plural,
//	CONTAINS_ONE otherwise. The member is the lower-camel suffix. Members
//	already covered by a declared statement from sym are skipped.
//
// Inputs:
//
//	sym - The owning symbol.
//	known - The symbol universe used to resolve targets.
//	declaredMembers - Members of declared statements whose source is sym. May be nil.
func (e *Engine) InferAccessors(sym *model.MergedSymbol, known *model.SymbolSet, declaredMembers map[string]bool) []model.Relationship {
	var out []model.Relationship
	for _, g := range e.getters(sym, known) {
		member := model.MemberName(g.suffix)
		if declaredMembers[member] {
			continue
		}
		relType := model.RelContainsOne
		if g.collection || isPlural(g.method.Name) {
			relType = model.RelContainsMany
		}
		out = append(out, model.Relationship{
			Source:      sym.Name,
			Target:      g.target,
			Type:        relType,
			Member:      member,
			Description: "Inferred from method " + g.method.Name,
			Provenance:  model.ProvenanceAPIInferred,
			Via:         g.method.Name,
		})
	}
	return out
}

// InferPatterns applies the vocabulary pattern table to single-object
// getters. Source and target regexes are searched in base names and the
// method regex in the method name, so "(Inst|Array)" matches "ScalarInst".
// Rules that need a whole-name match spell out ^ and $. The first matching
// rule wins per getter.
func (e *Engine) InferPatterns(sym *model.MergedSymbol, known *model.SymbolSet, declaredMembers map[string]bool) []model.Relationship {
	if len(e.patterns) == 0 {
		return nil
	}
	sourceBase := e.taxonomy.BaseName(sym.Name)

	var out []model.Relationship
	for _, g := range e.getters(sym, known) {
		if g.collection {
			continue
		}
		member := model.MemberName(g.suffix)
		if declaredMembers[member] {
			continue
		}
		targetBase := e.taxonomy.BaseName(g.target)
		for _, p := range e.patterns {
			if !p.source.MatchString(sourceBase) || !p.method.MatchString(g.method.Name) {
				continue
			}
			if p.target != nil && !p.target.MatchString(targetBase) {
				continue
			}
			out = append(out, model.Relationship{
				Source:      sym.Name,
				Target:      g.target,
				Type:        p.rule.Type,
				Member:      member,
				Description: fmt.Sprintf("Pattern %s.%s -> %s", p.rule.Source, p.rule.Method, p.rule.Type),
				Provenance:  model.ProvenancePattern,
				Weight:      p.rule.Weight,
				Via:         g.method.Name,
			})
			break
		}
	}
	return out
}

// InferFactories emits CREATES for factory methods returning another known
// symbol.
func (e *Engine) InferFactories(sym *model.MergedSymbol, known *model.SymbolSet) []model.Relationship {
	var out []model.Relationship
	seen := make(map[string]bool)
	for _, m := range sym.SortedMethods() {
		if !e.factories[m.Name] {
			continue
		}
		target, _, ok := e.ResolveType(m.ReturnType)
		if !ok {
			target = strings.TrimSpace(strings.TrimPrefix(m.ReturnType, "const "))
		}
		if target == sym.Name || !known.Has(target) || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, model.Relationship{
			Source:      sym.Name,
			Target:      target,
			Type:        model.RelCreates,
			Description: "Inferred from method " + m.Name,
			Provenance:  model.ProvenanceAPIInferred,
			Via:         m.Name,
		})
	}
	return out
}

// InferDependencies emits DEPENDS_ON for const reference or pointer
// parameters naming another known symbol. Value types listed in the
// vocabulary are ignored. One statement per target.
func (e *Engine) InferDependencies(sym *model.MergedSymbol, known *model.SymbolSet) []model.Relationship {
	var out []model.Relationship
	seen := make(map[string]bool)
	for _, m := range sym.SortedMethods() {
		for _, match := range constParamRe.FindAllStringSubmatch(m.Signature, -1) {
			target := match[1]
			if target == sym.Name || e.ignoredDep[target] || seen[target] || !known.Has(target) {
				continue
			}
			seen[target] = true
			out = append(out, model.Relationship{
				Source:      sym.Name,
				Target:      target,
				Type:        model.RelDependsOn,
				Description: "Parameter of method " + m.Name,
				Provenance:  model.ProvenanceAPIInferred,
				Via:         m.Name,
			})
		}
	}
	return out
}
