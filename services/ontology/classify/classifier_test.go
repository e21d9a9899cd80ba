// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"context"
	"testing"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	tax, err := config.DefaultTaxonomy()
	require.NoError(t, err)
	return NewClassifier(tax)
}

func TestClassify(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name    string
		domain  model.Domain
		concept string
	}{
		{"oaNet", model.DomainConnectivity, "Net"},
		{"oaInstTerm", model.DomainConnectivity, "Term"},
		{"oaBlock", model.DomainPhysical, "Block"},
		{"oaDesign", model.DomainPhysical, "Design"},
		{"oaModNet", model.DomainConnectivity, "Net"},
		{"oaModule", model.DomainHierarchy, "Module"},
		{"oaScalarInst", model.DomainHierarchy, "Inst"},
		{"oaRow", model.DomainLayout, "Row"},
		{"oaResistor", model.DomainDevice, "Resistor"},
		{"oaLib", model.DomainOther, model.UnknownConcept},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.name)
			assert.Equal(t, tt.domain, got.Domain)
			assert.Equal(t, tt.concept, got.Concept)
			assert.False(t, got.Propagated)
		})
	}
}

func TestClassify_SwappableTaxonomy(t *testing.T) {
	tax, err := config.ParseTaxonomy([]byte("domains:\n  - domain: Device\n    concepts: [Lib]\n"))
	require.NoError(t, err)
	c := NewClassifier(tax)

	assert.Equal(t, model.Classification{Domain: model.DomainDevice, Concept: "Lib"}, c.Classify("oaLib"))
	assert.Equal(t, model.Fallback(), c.Classify("oaNet"))
}

func TestPropagate(t *testing.T) {
	c := newTestClassifier(t)

	names := []string{"oaLib", "oaLibDef", "oaObject", "oaThing"}
	parents := map[string][]string{
		"oaLibDef": {"oaObject", "oaLib"},
		"oaLib":    {"oaNetwork"},
		"oaThing":  {"oaObject"},
	}
	direct := map[string]model.Classification{
		"oaLib":    model.Fallback(),
		"oaLibDef": model.Fallback(),
		"oaObject": model.Fallback(),
		"oaThing":  model.Fallback(),
	}

	result := c.Propagate(names, parents, direct)

	lib := result.Classifications["oaLib"]
	assert.Equal(t, model.DomainConnectivity, lib.Domain, "an ancestor outside the set is classified by name")
	assert.True(t, lib.Propagated)

	libDef := result.Classifications["oaLibDef"]
	assert.Equal(t, "Net", libDef.Concept, "nearest classified ancestor, breadth first")

	assert.Equal(t, model.Fallback(), result.Classifications["oaThing"])
	assert.Equal(t, 2, result.Propagated)
	assert.Equal(t, 2, result.Unclassified)
	assert.Empty(t, result.Cycles)
}

func TestPropagate_CycleTerminates(t *testing.T) {
	c := newTestClassifier(t)

	names := []string{"oaA", "oaB", "oaC"}
	parents := map[string][]string{
		"oaA": {"oaB"},
		"oaB": {"oaC"},
		"oaC": {"oaA"},
	}
	result := c.Propagate(names, parents, map[string]model.Classification{})

	require.Len(t, result.Classifications, 3)
	for _, name := range names {
		assert.Equal(t, model.Fallback(), result.Classifications[name])
	}
	assert.Equal(t, []string{"oaC -> oaA"}, result.Cycles)
}

func TestClassifyAll_Completeness(t *testing.T) {
	c := newTestClassifier(t)

	derived := model.NewMergedSymbol("oaLibDefList")
	derived.Inheritance = []string{"oaBlockObject"}
	umlChild := model.NewMergedSymbol("oaAppObject")
	umlChild.Relationships = []model.Relationship{
		{Source: "oaAppObject", Target: "oaLibDefList", Type: model.RelSpecializes, Provenance: model.ProvenanceUML},
	}
	plain := model.NewMergedSymbol("oaProp")

	set := model.NewSymbolSet([]*model.MergedSymbol{derived, umlChild, plain})
	result := c.ClassifyAll(context.Background(), set)

	for _, name := range set.Names() {
		cl, ok := result.Classifications[name]
		require.True(t, ok, name)
		assert.NotEmpty(t, cl.Domain, name)
		assert.NotEmpty(t, cl.Concept, name)
	}
	assert.Equal(t, model.Classification{Domain: model.DomainPhysical, Concept: "Block", Propagated: true}, result.Classifications["oaLibDefList"])
	assert.Equal(t, "Block", result.Classifications["oaAppObject"].Concept, "UML SPECIALIZES counts as a parent")
	assert.Equal(t, model.Fallback(), result.Classifications["oaProp"])
}
