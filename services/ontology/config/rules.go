// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the rule tables and pipeline settings of the ontology
// service.
//
// Rule tables (domain taxonomy, relationship vocabulary, scrub patterns) are
// first-class data: they ship embedded as YAML, can be replaced by a file on
// disk, and are passed explicitly into the classifier, normalizer and
// inference engine so tests can substitute alternate tables.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// MaxYAMLFileSize is the maximum accepted rule table size (1MB).
const MaxYAMLFileSize = 1024 * 1024

var configTracer = otel.Tracer("ontology.config")

// =============================================================================
// Embedded Rule Tables
// =============================================================================

//go:embed taxonomy.yaml
var defaultTaxonomyYAML []byte

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// =============================================================================
// Validation
// =============================================================================

// rulesValidate validates rule tables and pipeline settings.
// Initialized in init() with the custom tags below.
var rulesValidate *validator.Validate

func init() {
	rulesValidate = validator.New()

	// relationtype: value belongs to the closed relation vocabulary.
	_ = rulesValidate.RegisterValidation("relationtype", func(fl validator.FieldLevel) bool {
		return model.RelationType(fl.Field().String()).IsValid()
	})

	// regexp: value compiles as a Go regular expression.
	_ = rulesValidate.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
}

// =============================================================================
// Taxonomy
// =============================================================================

// Taxonomy is the ordered domain keyword table used by the classifier.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Taxonomy struct {
	// StripTokens are leading name tokens removed before matching.
	StripTokens []string `yaml:"strip_tokens"`

	// Domains are tried in order; the first concept contained in the
	// stripped name wins.
	Domains []DomainRule `yaml:"domains" validate:"required,min=1,dive"`
}

// DomainRule lists the concept keywords of one domain, in match order.
type DomainRule struct {
	Domain   model.Domain `yaml:"domain" validate:"required"`
	Concepts []string     `yaml:"concepts" validate:"required,min=1,dive,required"`
}

var (
	cachedTaxonomy *Taxonomy
	taxonomyOnce   sync.Once
	taxonomyErr    error
)

// DefaultTaxonomy loads and caches the embedded taxonomy.
//
// # Outputs
//
//   - *Taxonomy: The embedded table. Never nil on success.
//   - error: Non-nil if the embedded YAML is invalid.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func DefaultTaxonomy() (*Taxonomy, error) {
	taxonomyOnce.Do(func() {
		cachedTaxonomy, taxonomyErr = ParseTaxonomy(defaultTaxonomyYAML)
		if taxonomyErr == nil {
			slog.Info("domain taxonomy loaded",
				slog.Int("domain_count", len(cachedTaxonomy.Domains)),
			)
		}
	})
	return cachedTaxonomy, taxonomyErr
}

// ParseTaxonomy parses and validates a taxonomy document.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("ParseTaxonomy: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("ParseTaxonomy: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing taxonomy: %w", err)
	}
	if err := rulesValidate.Struct(&t); err != nil {
		return nil, fmt.Errorf("validating taxonomy: %w", err)
	}
	return &t, nil
}

// LoadTaxonomy returns the taxonomy at path, or the embedded default when
// path is empty.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy %s: %w", path, err)
	}
	return ParseTaxonomy(data)
}

// BaseName strips leading StripTokens from name. A token is removed only
// when an uppercase letter follows it; stripping repeats until no token
// applies.
//
//	"oaModNet"     -> "Net"
//	"oaModule"     -> "Module"
//	"oaOccurrence" -> "Occurrence"
func (t *Taxonomy) BaseName(name string) string {
	for {
		stripped := false
		for _, tok := range t.StripTokens {
			if len(name) > len(tok) && strings.HasPrefix(name, tok) && unicode.IsUpper(rune(name[len(tok)])) {
				name = name[len(tok):]
				stripped = true
				break
			}
		}
		if !stripped {
			return name
		}
	}
}

// =============================================================================
// Vocabulary
// =============================================================================

// AccessorKind classifies an accessor prefix.
type AccessorKind string

const (
	AccessorGetter    AccessorKind = "getter"
	AccessorSetter    AccessorKind = "setter"
	AccessorPredicate AccessorKind = "predicate"
)

// Vocabulary holds relationship vocabulary and text-cleanup rules.
//
// Description:
//
//	Every list is ordered and evaluated first-match-wins. The vocabulary is
//	consumed by the normalizer (ScrubRules), the fusion engine (UMLRelations,
//	Accessors) and the inference engine (everything else).
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Vocabulary struct {
	UMLRelations           []UMLRelation      `yaml:"uml_relations" validate:"dive"`
	DefaultRelation        model.RelationType `yaml:"default_relation" validate:"required,relationtype"`
	SpecializesWeight      float64            `yaml:"specializes_weight" validate:"gte=0"`
	ScrubRules             []ScrubRule        `yaml:"scrub_rules" validate:"dive"`
	Accessors              []AccessorRule     `yaml:"accessors" validate:"required,min=1,dive"`
	BooleanType            string             `yaml:"boolean_type" validate:"required"`
	VoidTypes              []string           `yaml:"void_types"`
	CollectionWrappers     []string           `yaml:"collection_wrappers"`
	FactoryMethods         []string           `yaml:"factory_methods"`
	IgnoredDependencyTypes []string           `yaml:"ignored_dependency_types"`
	PatternRules           []PatternRule      `yaml:"pattern_rules" validate:"dive"`
}

// UMLRelation maps one UML relationship label onto a relation type.
type UMLRelation struct {
	UML     string             `yaml:"uml" validate:"required"`
	Type    model.RelationType `yaml:"type" validate:"required,relationtype"`
	Reverse bool               `yaml:"reverse"`
}

// ScrubRule removes one documentation-tool artifact from descriptions.
type ScrubRule struct {
	Name        string `yaml:"name" validate:"required"`
	Pattern     string `yaml:"pattern" validate:"required,regexp"`
	Replacement string `yaml:"replacement"`
}

// AccessorRule recognizes methods named <Prefix><Upper>...
type AccessorRule struct {
	Prefix string       `yaml:"prefix" validate:"required"`
	Kind   AccessorKind `yaml:"kind" validate:"required,oneof=getter setter predicate"`
}

// PatternRule derives a weighted relationship from a domain naming pattern.
//
// Source and Target are searched in symbol base names and Method in the
// method name. They are not anchored unless the expression says so.
// An empty Target accepts any resolved target.
type PatternRule struct {
	Source string             `yaml:"source" validate:"required,regexp"`
	Method string             `yaml:"method" validate:"required,regexp"`
	Target string             `yaml:"target" validate:"omitempty,regexp"`
	Type   model.RelationType `yaml:"type" validate:"required,relationtype"`
	Weight float64            `yaml:"weight" validate:"gt=0"`
}

// RelationFor maps a UML label to its relation type.
//
// Outputs:
//
//	model.RelationType - The mapped type, or DefaultRelation for unknown labels.
//	bool - True when the statement direction must be reversed.
func (v *Vocabulary) RelationFor(label string) (model.RelationType, bool) {
	for _, r := range v.UMLRelations {
		if r.UML == label {
			return r.Type, r.Reverse
		}
	}
	return v.DefaultRelation, false
}

// AccessorsOfKind returns the prefixes of the given kind, in table order.
func (v *Vocabulary) AccessorsOfKind(kind AccessorKind) []string {
	var out []string
	for _, a := range v.Accessors {
		if a.Kind == kind {
			out = append(out, a.Prefix)
		}
	}
	return out
}

var (
	vocabularyMu      sync.RWMutex
	vocabularyOnce    sync.Once
	cachedVocabulary  *Vocabulary
	vocabularyLoadErr error
)

// GetVocabulary returns the cached embedded vocabulary.
//
// Description:
//
//	Loads the embedded vocabulary on first call and caches it for subsequent
//	calls. Uses sync.Once for thread-safe initialization.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//
// Outputs:
//
//	*Vocabulary - The loaded vocabulary. Never nil on success.
//	error - Non-nil if loading or validation failed.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func GetVocabulary(ctx context.Context) (*Vocabulary, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetVocabulary: ctx must not be nil")
	}

	vocabularyMu.RLock()
	if cachedVocabulary != nil || vocabularyLoadErr != nil {
		v, err := cachedVocabulary, vocabularyLoadErr
		vocabularyMu.RUnlock()
		return v, err
	}
	vocabularyMu.RUnlock()

	vocabularyMu.Lock()
	defer vocabularyMu.Unlock()

	vocabularyOnce.Do(func() {
		cachedVocabulary, vocabularyLoadErr = ParseVocabulary(ctx, defaultVocabularyYAML)
	})

	return cachedVocabulary, vocabularyLoadErr
}

// ResetVocabulary clears the cached vocabulary so tests can reload it.
//
// Thread Safety: Safe for concurrent use.
func ResetVocabulary() {
	vocabularyMu.Lock()
	defer vocabularyMu.Unlock()
	cachedVocabulary = nil
	vocabularyLoadErr = nil
	vocabularyOnce = sync.Once{}
}

// ParseVocabulary parses and validates a vocabulary document.
//
// Description:
//
//	Parses the YAML, applies defaults for missing fields and validates every
//	rule (known relation types, compilable regexes, accessor kinds).
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes.
//
// Outputs:
//
//	*Vocabulary - The validated vocabulary.
//	error - Non-nil if parsing or validation fails.
func ParseVocabulary(ctx context.Context, data []byte) (*Vocabulary, error) {
	_, span := configTracer.Start(ctx, "config.ParseVocabulary")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("ParseVocabulary: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("ParseVocabulary: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("ParseVocabulary: parsing YAML: %w", err)
	}

	if v.DefaultRelation == "" {
		v.DefaultRelation = model.RelRelatedTo
	}
	if len(v.VoidTypes) == 0 {
		v.VoidTypes = []string{"void"}
	}

	if err := rulesValidate.Struct(&v); err != nil {
		return nil, fmt.Errorf("ParseVocabulary: validation: %w", err)
	}

	span.SetAttributes(
		attribute.Int("uml_relations", len(v.UMLRelations)),
		attribute.Int("scrub_rules", len(v.ScrubRules)),
		attribute.Int("pattern_rules", len(v.PatternRules)),
	)

	slog.Info("relationship vocabulary loaded",
		slog.Int("uml_relations", len(v.UMLRelations)),
		slog.Int("scrub_rules", len(v.ScrubRules)),
		slog.Int("pattern_rules", len(v.PatternRules)),
	)

	return &v, nil
}

// LoadVocabulary returns the vocabulary at path, or the embedded default
// when path is empty.
func LoadVocabulary(ctx context.Context, path string) (*Vocabulary, error) {
	if path == "" {
		return GetVocabulary(ctx)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}
	return ParseVocabulary(ctx, data)
}
