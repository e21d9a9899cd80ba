// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fusion

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/AleutianAI/AleutianOntology/services/ontology/normalize"
	"github.com/AleutianAI/AleutianOntology/services/ontology/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	vocab, err := config.GetVocabulary(context.Background())
	require.NoError(t, err)
	n, err := normalize.New(vocab.ScrubRules)
	require.NoError(t, err)
	return NewEngine(vocab, n, opts...)
}

func testCatalog() *source.Catalog {
	records := []*source.APIRecord{
		{
			Name:        "oaNet",
			Module:      "design",
			Description: "The  oaNet class. Copyright 2002 Cadence Design Systems, Inc.",
			Inheritance: []string{"oaBlockObject", " "},
			Methods: []model.MethodStub{
				{Name: "getName", ReturnType: "oaString"},
				{Name: "getTerms", ReturnType: "oaCollection<oaTerm, oaNet>"},
				{Name: "setWidth", Signature: "setWidth(oaUInt4 w)"},
			},
		},
		{
			Name:   "oaInstTerm",
			Module: "design",
			Methods: []model.MethodStub{
				{Name: "getInst", ReturnType: "oaInst*"},
			},
		},
	}
	diagrams := []*source.UMLDiagram{
		{
			Diagram: "connectivity",
			Classes: map[string]source.UMLClass{
				"oaNet": {
					Methods: []model.MethodStub{
						{Name: "getName", ReturnType: "oaString", Description: "Returns the name."},
					},
					Attributes: []model.AttributeStub{{Name: "width", Type: "oaUInt4"}},
				},
				"oaTerm":     {},
				"oaInstTerm": {},
			},
			Relationships: []source.UMLRelationship{
				{Source: "oaTerm", Target: "oaInstTerm", Type: "inheritance"},
				{Source: "oaNet", Target: "oaTerm", Type: "aggregation-many", Member: "terms"},
				{Source: "oaNet", Target: "oaTerm", Type: "aggregation-many", Member: "terms"},
				{Source: "oaNet", Target: "oaRoute", Type: "mystery"},
			},
		},
	}
	return source.NewCatalog(records, diagrams)
}

func TestFuseSymbol_MergesBothSources(t *testing.T) {
	e := newTestEngine(t)
	sym, ok := e.FuseSymbol("oaNet", testCatalog())
	require.True(t, ok)

	assert.Equal(t, "The oaNet class.", sym.Description)
	assert.Equal(t, "design", sym.Module)
	assert.Equal(t, []string{"oaBlockObject"}, sym.Inheritance)
	assert.True(t, sym.Sources.HasAPI)
	assert.Equal(t, []string{"connectivity"}, sym.Sources.UMLDiagrams)

	// getName from both sources collapses to one entry.
	name := sym.Methods[model.NewMethodKey("getName", "")]
	require.NotNil(t, name)
	assert.Equal(t, model.ProvenanceBoth, name.Provenance)
	assert.Equal(t, "Returns the name.", name.Description)
	assert.Len(t, sym.Methods, 3)

	width := sym.Attributes["width"]
	require.NotNil(t, width)
	assert.False(t, width.Inferred)
	assert.True(t, width.HasSetter)
	assert.Contains(t, sym.Attributes, "terms")

	require.Len(t, sym.Relationships, 2, "duplicate statements collapse")
	assert.Equal(t, model.RelContainsMany, sym.Relationships[0].Type)
	assert.Equal(t, "terms", sym.Relationships[0].Member)
	assert.Equal(t, model.RelRelatedTo, sym.Relationships[1].Type, "unknown labels use the default relation")
	for _, r := range sym.Relationships {
		assert.Equal(t, model.ProvenanceUML, r.Provenance)
	}
}

func TestFuseSymbol_UMLOnly(t *testing.T) {
	// Present only in a diagram.
	e := newTestEngine(t)
	sym, ok := e.FuseSymbol("oaTerm", testCatalog())
	require.True(t, ok)

	assert.False(t, sym.Sources.HasAPI)
	assert.NotEmpty(t, sym.Sources.UMLDiagrams)
	assert.Equal(t, "", sym.Description)
	assert.Equal(t, model.UnknownModule, sym.Module)
	assert.Empty(t, sym.Inheritance)
}

func TestFuseSymbol_InheritanceIsReversed(t *testing.T) {
	e := newTestEngine(t)
	sym, ok := e.FuseSymbol("oaInstTerm", testCatalog())
	require.True(t, ok)

	require.Len(t, sym.Relationships, 1)
	r := sym.Relationships[0]
	assert.Equal(t, "oaInstTerm", r.Source)
	assert.Equal(t, "oaTerm", r.Target)
	assert.Equal(t, model.RelSpecializes, r.Type)
}

func TestFuseSymbol_NoData(t *testing.T) {
	e := newTestEngine(t)
	sym, ok := e.FuseSymbol("oaRoute", testCatalog())
	assert.False(t, ok)
	assert.Nil(t, sym)
}

func TestFuseAll(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t,
		WithWorkerCount(4),
		WithProgressCallback(func(Progress) { calls.Add(1) }),
	)

	result, err := e.FuseAll(context.Background(), testCatalog())
	require.NoError(t, err)

	assert.Equal(t, []string{"oaInstTerm", "oaNet", "oaTerm"}, result.Symbols.Names())
	assert.Equal(t, []string{"oaRoute"}, result.Missing)
	assert.Equal(t, 1, result.MethodCollisions)
	assert.Empty(t, result.Shadowings)
	assert.Equal(t, int64(4), calls.Load())

	for _, sym := range result.Symbols.All() {
		seen := make(map[model.MethodKey]bool)
		for _, m := range sym.SortedMethods() {
			assert.False(t, seen[m.Key()], "duplicate method %s on %s", m.Key(), sym.Name)
			seen[m.Key()] = true
		}
	}
}

func TestFuseAll_DeterministicAcrossWorkerCounts(t *testing.T) {
	single, err := newTestEngine(t, WithWorkerCount(1)).FuseAll(context.Background(), testCatalog())
	require.NoError(t, err)
	many, err := newTestEngine(t, WithWorkerCount(16)).FuseAll(context.Background(), testCatalog())
	require.NoError(t, err)

	assert.Equal(t, single.Symbols.All(), many.Symbols.All())
	assert.Equal(t, single.Missing, many.Missing)
}

func TestFuseAll_Shadowing(t *testing.T) {
	catalog := source.NewCatalog(
		[]*source.APIRecord{{Name: "oaRect", Methods: []model.MethodStub{{Name: "getBBox", ReturnType: "oaBox"}}}},
		[]*source.UMLDiagram{{
			Diagram: "shapes",
			Classes: map[string]source.UMLClass{
				"oaRect": {Attributes: []model.AttributeStub{{Name: "bBox", Type: "oaPointArray"}}},
			},
		}},
	)
	result, err := newTestEngine(t).FuseAll(context.Background(), catalog)
	require.NoError(t, err)

	require.Len(t, result.Shadowings, 1)
	assert.Equal(t, "oaRect", result.Shadowings[0].Symbol)
	assert.Equal(t, "oaPointArray", result.Shadowings[0].DeclaredType)

	sym, _ := result.Symbols.Get("oaRect")
	assert.Equal(t, "oaPointArray", sym.Attributes["bBox"].Type)
}

func TestFuseAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestEngine(t).FuseAll(ctx, testCatalog())
	assert.Error(t, err)
	assert.Nil(t, result, "a cancelled run publishes nothing")
}
