// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"encoding/json"
	"sort"
)

// SymbolSources records which producers contributed to a MergedSymbol.
type SymbolSources struct {
	// HasAPI is true when an API record existed for the symbol.
	HasAPI bool `json:"has_api"`

	// UMLDiagrams lists the diagrams that contributed class info or
	// relationships, sorted.
	UMLDiagrams []string `json:"has_uml"`
}

// HasUML reports whether any diagram contributed to the symbol.
func (s SymbolSources) HasUML() bool {
	return len(s.UMLDiagrams) > 0
}

// MergedSymbol is the fused, canonical representation of one symbol.
//
// Invariants:
//   - Exists only if at least one raw source held a record for Name.
//   - Methods and Attributes never hold duplicate keys (map keyed).
//   - Inheritance and Enumerations come from the API record only.
type MergedSymbol struct {
	Name          string
	Description   string
	Module        string
	Inheritance   []string
	Methods       map[MethodKey]*Method
	Attributes    map[string]*Attribute
	Relationships []Relationship
	Enumerations  map[string][]string
	Sources       SymbolSources
}

// NewMergedSymbol returns an empty symbol with initialized maps.
func NewMergedSymbol(name string) *MergedSymbol {
	return &MergedSymbol{
		Name:       name,
		Module:     UnknownModule,
		Methods:    make(map[MethodKey]*Method),
		Attributes: make(map[string]*Attribute),
	}
}

// SortedMethods returns methods ordered by name, then signature.
func (s *MergedSymbol) SortedMethods() []*Method {
	out := make([]*Method, 0, len(s.Methods))
	for _, m := range s.Methods {
		out = append(out, m)
	}
	SortMethods(out)
	return out
}

// SortedAttributes returns attributes ordered by name.
func (s *MergedSymbol) SortedAttributes() []*Attribute {
	out := make([]*Attribute, 0, len(s.Attributes))
	for _, a := range s.Attributes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CountMethods returns the number of methods carrying each provenance.
func (s *MergedSymbol) CountMethods() map[Provenance]int {
	counts := make(map[Provenance]int, 3)
	for _, m := range s.Methods {
		counts[m.Provenance]++
	}
	return counts
}

// SortMethods orders methods by name, then signature.
func SortMethods(methods []*Method) {
	sort.Slice(methods, func(i, j int) bool {
		if methods[i].Name != methods[j].Name {
			return methods[i].Name < methods[j].Name
		}
		return methods[i].Signature < methods[j].Signature
	})
}

// symbolJSON is the wire form of MergedSymbol. Maps keyed by struct values
// cannot be encoded directly, so methods and attributes travel as sorted
// slices.
type symbolJSON struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Module        string              `json:"module"`
	Inheritance   []string            `json:"inheritance"`
	Methods       []*Method           `json:"methods"`
	Attributes    []*Attribute        `json:"attributes"`
	Relationships []Relationship      `json:"relationships"`
	Enumerations  map[string][]string `json:"enumerations,omitempty"`
	Sources       SymbolSources       `json:"sources"`
}

// MarshalJSON encodes the symbol with deterministic member ordering.
func (s *MergedSymbol) MarshalJSON() ([]byte, error) {
	inheritance := s.Inheritance
	if inheritance == nil {
		inheritance = []string{}
	}
	rels := s.Relationships
	if rels == nil {
		rels = []Relationship{}
	}
	return json.Marshal(symbolJSON{
		Name:          s.Name,
		Description:   s.Description,
		Module:        s.Module,
		Inheritance:   inheritance,
		Methods:       s.SortedMethods(),
		Attributes:    s.SortedAttributes(),
		Relationships: rels,
		Enumerations:  s.Enumerations,
		Sources:       s.Sources,
	})
}

// UnmarshalJSON rebuilds the keyed maps from the wire form.
func (s *MergedSymbol) UnmarshalJSON(data []byte) error {
	var w symbolJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = MergedSymbol{
		Name:          w.Name,
		Description:   w.Description,
		Module:        w.Module,
		Inheritance:   w.Inheritance,
		Methods:       make(map[MethodKey]*Method, len(w.Methods)),
		Attributes:    make(map[string]*Attribute, len(w.Attributes)),
		Relationships: w.Relationships,
		Enumerations:  w.Enumerations,
		Sources:       w.Sources,
	}
	for _, m := range w.Methods {
		s.Methods[m.Key()] = m
	}
	for _, a := range w.Attributes {
		s.Attributes[a.Name] = a
	}
	return nil
}
