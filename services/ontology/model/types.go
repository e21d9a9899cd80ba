// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the typed entities shared by every ontology stage.
//
// The fusion pipeline moves data strictly leaf-to-root:
//
//	raw records -> normalized records -> MergedSymbol -> Relationship -> graph
//
// Every stage speaks in the types declared here. Enumerations are string
// typed so that rule tables loaded from YAML and exported documents can use
// the same literal values.
//
// # Ownership Model
//
// A MergedSymbol is owned by the fusion stage until the symbol set is
// published. After publication, symbols MUST NOT be mutated; the graph and
// the read index store pointers to them.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Source identifies which upstream producer a raw record came from.
type Source string

const (
	// SourceAPI is the per-symbol API reference producer.
	SourceAPI Source = "api"

	// SourceUML is the UML diagram producer.
	SourceUML Source = "uml"
)

// Provenance records which source(s) produced a fact.
type Provenance string

const (
	// ProvenanceAPI marks a fact stated by the API reference.
	ProvenanceAPI Provenance = "api"

	// ProvenanceUML marks a fact stated by a UML diagram.
	ProvenanceUML Provenance = "uml"

	// ProvenanceBoth marks a method present in both sources.
	ProvenanceBoth Provenance = "both"

	// ProvenanceAPIInferred marks a relationship derived from API method shapes.
	ProvenanceAPIInferred Provenance = "api_inferred"

	// ProvenancePattern marks a relationship produced by a domain pattern rule.
	ProvenancePattern Provenance = "pattern"
)

// IsValid reports whether p is a known provenance value.
func (p Provenance) IsValid() bool {
	switch p {
	case ProvenanceAPI, ProvenanceUML, ProvenanceBoth, ProvenanceAPIInferred, ProvenancePattern:
		return true
	}
	return false
}

// RelationType is the closed vocabulary of ontology edge types.
type RelationType string

const (
	RelSpecializes        RelationType = "SPECIALIZES"
	RelContainsOne        RelationType = "CONTAINS_ONE"
	RelContainsMany       RelationType = "CONTAINS_MANY"
	RelReferences         RelationType = "REFERENCES"
	RelAssociatedWith     RelationType = "ASSOCIATED_WITH"
	RelAssociatedWithMany RelationType = "ASSOCIATED_WITH_MANY"
	RelComposedOf         RelationType = "COMPOSED_OF"
	RelUses               RelationType = "USES"
	RelDependsOn          RelationType = "DEPENDS_ON"
	RelCreates            RelationType = "CREATES"
	RelRelatedTo          RelationType = "RELATED_TO"
)

// AllRelationTypes lists every RelationType in declaration order.
var AllRelationTypes = []RelationType{
	RelSpecializes,
	RelContainsOne,
	RelContainsMany,
	RelReferences,
	RelAssociatedWith,
	RelAssociatedWithMany,
	RelComposedOf,
	RelUses,
	RelDependsOn,
	RelCreates,
	RelRelatedTo,
}

// IsValid reports whether t belongs to the closed vocabulary.
func (t RelationType) IsValid() bool {
	for _, known := range AllRelationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseRelationType converts a string into a RelationType.
//
// Returns an error wrapping ErrUnknownRelationType for values outside the
// vocabulary.
func ParseRelationType(s string) (RelationType, error) {
	t := RelationType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRelationType, s)
	}
	return t, nil
}

// Domain is a coarse engineering-domain category.
type Domain string

const (
	DomainPhysical     Domain = "Physical"
	DomainConnectivity Domain = "Connectivity"
	DomainHierarchy    Domain = "Hierarchy"
	DomainLayout       Domain = "Layout"
	DomainDevice       Domain = "Device"
	DomainOther        Domain = "Other"
)

// UnknownConcept is the concept assigned when no keyword matches.
const UnknownConcept = "Unknown"

// UnknownModule is the module tag of symbols without an API record.
const UnknownModule = "unknown"

// UnknownType is the attribute type used when only a setter was observed.
const UnknownType = "unknown"

// Classification is a (domain, concept) pair.
type Classification struct {
	// Domain is the coarse category.
	Domain Domain `json:"domain"`

	// Concept is the first keyword that matched the symbol name.
	Concept string `json:"concept"`

	// Propagated is true when the pair was inherited from an ancestor.
	Propagated bool `json:"propagated,omitempty"`
}

// Fallback returns the classification used when nothing matches.
func Fallback() Classification {
	return Classification{Domain: DomainOther, Concept: UnknownConcept}
}

// IsUnclassified reports whether c carries no keyword match.
func (c Classification) IsUnclassified() bool {
	return c.Domain == "" || (c.Domain == DomainOther && c.Concept == UnknownConcept)
}

// MethodKey is the uniqueness key of a method within one symbol.
type MethodKey struct {
	Name      string
	Signature string
}

// NewMethodKey builds a key, synthesizing "name()" for an empty signature.
func NewMethodKey(name, signature string) MethodKey {
	if signature == "" {
		signature = name + "()"
	}
	return MethodKey{Name: name, Signature: signature}
}

// String returns the "name|signature" form of the key.
func (k MethodKey) String() string {
	return k.Name + "|" + k.Signature
}

// MethodStub is one method as stated by a single source.
type MethodStub struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	ReturnType  string   `yaml:"return_type" json:"return_type"`
	Signature   string   `yaml:"signature" json:"signature"`
	Parameters  []string `yaml:"parameters" json:"parameters"`
	IsStatic    bool     `yaml:"is_static" json:"is_static"`
	Description string   `yaml:"description" json:"description"`
}

// AttributeStub is an attribute declared by a UML class box.
type AttributeStub struct {
	Name        string `yaml:"name" json:"name" validate:"required"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description" json:"description"`
}

// UnmarshalJSON accepts either an object or a bare attribute name.
func (a *AttributeStub) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*a = AttributeStub{Name: name}
		return nil
	}
	type plain AttributeStub
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = AttributeStub(p)
	return nil
}

// Method is one merged method entry.
type Method struct {
	Name        string     `json:"name"`
	ReturnType  string     `json:"return_type,omitempty"`
	Signature   string     `json:"signature"`
	Parameters  []string   `json:"parameters,omitempty"`
	IsStatic    bool       `json:"is_static,omitempty"`
	Description string     `json:"description,omitempty"`
	Provenance  Provenance `json:"provenance"`
}

// Key returns the uniqueness key of m.
func (m *Method) Key() MethodKey {
	return NewMethodKey(m.Name, m.Signature)
}

// Attribute is a declared or inferred symbol attribute.
type Attribute struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Inferred    bool   `json:"inferred"`
	HasGetter   bool   `json:"has_getter"`
	HasSetter   bool   `json:"has_setter"`
}

// HasKnownType reports whether the attribute type is not the setter default.
func (a *Attribute) HasKnownType() bool {
	return a.Type != "" && a.Type != UnknownType
}

// Relationship is a directed, typed edge candidate between two symbols.
type Relationship struct {
	Source      string       `json:"source"`
	Target      string       `json:"target"`
	Type        RelationType `json:"type"`
	Member      string       `json:"member,omitempty"`
	Description string       `json:"description,omitempty"`
	Provenance  Provenance   `json:"provenance"`
	Weight      float64      `json:"weight,omitempty"`

	// Via is the method that produced an inferred relationship.
	Via string `json:"via,omitempty"`
}

// EdgeKey is the deduplication key of a relationship.
type EdgeKey struct {
	Source string
	Target string
	Type   RelationType
}

// Key returns the (source, target, type) key of r.
func (r Relationship) Key() EdgeKey {
	return EdgeKey{Source: r.Source, Target: r.Target, Type: r.Type}
}

// String renders the key as "source-[TYPE]->target".
func (k EdgeKey) String() string {
	return fmt.Sprintf("%s-[%s]->%s", k.Source, k.Type, k.Target)
}

// SortRelationships orders relationships by source, target, type, member,
// provenance. The sort is stable so equal entries keep insertion order.
func SortRelationships(rels []Relationship) {
	sort.SliceStable(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Member != b.Member {
			return a.Member < b.Member
		}
		return a.Provenance < b.Provenance
	})
}
