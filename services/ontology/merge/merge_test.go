// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package merge

import (
	"context"
	"testing"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(methods []*model.Method) []model.MethodKey {
	keys := make([]model.MethodKey, len(methods))
	for i, m := range methods {
		keys[i] = m.Key()
	}
	return keys
}

func TestMergeMethods_CollisionTaggedBoth(t *testing.T) {
	api := []model.MethodStub{{Name: "getName", ReturnType: "oaString"}}
	uml := []model.MethodStub{{Name: "getName", ReturnType: "oaString", Description: "Returns the name."}}

	merged := MergeMethods(api, uml)

	require.Len(t, merged, 1)
	m := merged[0]
	assert.Equal(t, model.ProvenanceBoth, m.Provenance)
	assert.Equal(t, "getName()", m.Signature)
	assert.Equal(t, "oaString", m.ReturnType)
	assert.Equal(t, "Returns the name.", m.Description, "UML fills an empty API description")
}

func TestMergeMethods_APIWins(t *testing.T) {
	api := []model.MethodStub{{Name: "getBox", ReturnType: "oaBox*", Description: "API text", IsStatic: true}}
	uml := []model.MethodStub{{Name: "getBox", ReturnType: "oaRect", Description: "UML text"}}

	merged := MergeMethods(api, uml)
	require.Len(t, merged, 1)
	assert.Equal(t, "oaBox *", merged[0].ReturnType)
	assert.Equal(t, "API text", merged[0].Description)
	assert.True(t, merged[0].IsStatic)
}

func TestMergeMethods_OrderSwap(t *testing.T) {
	api := []model.MethodStub{
		{Name: "getNet", ReturnType: "oaNet *", Signature: "getNet() const", Description: "API net"},
		{Name: "getName", ReturnType: "oaString"},
		{Name: "destroy"},
	}
	uml := []model.MethodStub{
		{Name: "getNet", ReturnType: "oaNet", Signature: "getNet()  const", Description: "UML net"},
		{Name: "getName", ReturnType: "oaString", Description: "UML name"},
		{Name: "isGlobal", ReturnType: "oaBoolean"},
	}

	forward := NewMethodSet(APIWins, nil)
	forward.AddAll(api, model.SourceAPI)
	forward.AddAll(uml, model.SourceUML)

	reversed := NewMethodSet(APIWins, nil)
	reversed.AddAll(uml, model.SourceUML)
	reversed.AddAll(api, model.SourceAPI)

	a, b := forward.Sorted(), reversed.Sorted()
	assert.Equal(t, keysOf(a), keysOf(b), "key set is independent of scan order")
	assert.Equal(t, a, b, "collision values resolve to the API value in both orders")

	for _, m := range a {
		if m.Name == "getNet" {
			assert.Equal(t, "oaNet *", m.ReturnType)
			assert.Equal(t, "API net", m.Description)
			assert.Equal(t, model.ProvenanceBoth, m.Provenance)
		}
	}
	assert.Equal(t, 2, forward.Collisions())
	assert.Equal(t, 2, reversed.Collisions())
}

func TestMethodSet_NoDuplicateKeys(t *testing.T) {
	set := NewMethodSet(nil, nil)
	assert.True(t, set.Add(model.MethodStub{Name: "getTerms", Signature: "getTerms( )"}, model.SourceAPI))
	assert.False(t, set.Add(model.MethodStub{Name: "getTerms", Signature: "getTerms()"}, model.SourceAPI))
	assert.False(t, set.Add(model.MethodStub{Name: "getTerms"}, model.SourceAPI), "empty signature synthesizes name()")
	assert.True(t, set.Add(model.MethodStub{Name: "getTerms", Signature: "getTerms(oaTermType type)"}, model.SourceAPI))
	assert.False(t, set.Add(model.MethodStub{Name: "   "}, model.SourceAPI))

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 0, set.Collisions(), "same-source repeats are not collisions")
	for _, m := range set.Map() {
		assert.Equal(t, model.ProvenanceAPI, m.Provenance)
	}
}

func TestMethodSet_CleansDescriptions(t *testing.T) {
	set := NewMethodSet(APIWins, func(s string) string { return "clean:" + s })
	set.Add(model.MethodStub{Name: "getName", Description: "raw"}, model.SourceUML)
	assert.Equal(t, "clean:raw", set.Sorted()[0].Description)
	assert.Equal(t, model.ProvenanceUML, set.Sorted()[0].Provenance)
}

func newInferrer(t *testing.T) *AttributeInferrer {
	t.Helper()
	vocab, err := config.GetVocabulary(context.Background())
	require.NoError(t, err)
	return NewAttributeInferrer(vocab)
}

func TestAttributeInferrer_Match(t *testing.T) {
	ai := newInferrer(t)

	tests := []struct {
		name   string
		kind   config.AccessorKind
		suffix string
		ok     bool
	}{
		{"getTerms", config.AccessorGetter, "Terms", true},
		{"setWidth", config.AccessorSetter, "Width", true},
		{"isGlobal", config.AccessorPredicate, "Global", true},
		{"hasDefault", config.AccessorPredicate, "Default", true},
		{"get", "", "", false},
		{"getter", "", "", false},
		{"getX", "", "", false},
		{"isA", "", "", false},
		{"getXY", config.AccessorGetter, "XY", true},
		{"issue", "", "", false},
		{"create", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, suffix, ok := ai.Match(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.suffix, suffix)
		})
	}
}

func TestAttributeInferrer_Infer(t *testing.T) {
	ai := newInferrer(t)

	methods := []*model.Method{
		{Name: "getWidth", Signature: "getWidth()", ReturnType: "oaUInt4"},
		{Name: "setWidth", Signature: "setWidth(oaUInt4 w)"},
		{Name: "isGlobal", Signature: "isGlobal()", ReturnType: "oaBoolean"},
		{Name: "getOrigin", Signature: "getOrigin(oaPoint &p)", ReturnType: "void"},
		{Name: "setLabel", Signature: "setLabel(oaString &l)"},
		{Name: "destroy", Signature: "destroy()"},
	}

	attrs, shadowings := ai.Infer(nil, methods)
	assert.Empty(t, shadowings)
	assert.Len(t, attrs, 3)

	width := attrs["width"]
	require.NotNil(t, width)
	assert.Equal(t, "oaUInt4", width.Type)
	assert.True(t, width.HasGetter)
	assert.True(t, width.HasSetter)
	assert.True(t, width.Inferred)
	assert.Equal(t, "Inferred from getter method getWidth", width.Description)

	global := attrs["global"]
	require.NotNil(t, global)
	assert.Equal(t, "oaBoolean", global.Type)
	assert.True(t, global.HasGetter)

	label := attrs["label"]
	require.NotNil(t, label)
	assert.Equal(t, model.UnknownType, label.Type)
	assert.True(t, label.HasSetter)
	assert.False(t, label.HasGetter)

	assert.NotContains(t, attrs, "origin", "void getters imply nothing")
}

func TestAttributeInferrer_Monotonic(t *testing.T) {
	ai := newInferrer(t)
	getter := &model.Method{Name: "getLayer", Signature: "getLayer()", ReturnType: "oaLayerNum"}
	setter := &model.Method{Name: "setLayer", Signature: "setLayer(oaLayerNum n)"}

	for _, order := range [][]*model.Method{{getter, setter}, {setter, getter}} {
		attrs, _ := ai.Infer(nil, order)
		layer := attrs["layer"]
		require.NotNil(t, layer)
		assert.Equal(t, "oaLayerNum", layer.Type, "a known type is never reverted to unknown")
		assert.True(t, layer.HasGetter)
		assert.True(t, layer.HasSetter)
	}
}

func TestAttributeInferrer_DeclaredPrecedence(t *testing.T) {
	ai := newInferrer(t)
	declared := []model.AttributeStub{
		{Name: "width", Type: "int", Description: "declared width"},
		{Name: "name"},
	}
	methods := []*model.Method{
		{Name: "getWidth", Signature: "getWidth()", ReturnType: "oaUInt4"},
		{Name: "setWidth", Signature: "setWidth(oaUInt4 w)"},
		{Name: "getName", Signature: "getName()", ReturnType: "oaString"},
	}

	attrs, shadowings := ai.Infer(declared, methods)

	width := attrs["width"]
	assert.Equal(t, "int", width.Type, "declared type wins")
	assert.Equal(t, "declared width", width.Description)
	assert.False(t, width.Inferred)
	assert.True(t, width.HasGetter)
	assert.True(t, width.HasSetter)

	name := attrs["name"]
	assert.Equal(t, "oaString", name.Type, "an untyped declaration is filled")
	assert.False(t, name.Inferred)

	require.Len(t, shadowings, 1)
	assert.Equal(t, Shadowing{Attribute: "width", DeclaredType: "int", InferredType: "oaUInt4", Method: "getWidth"}, shadowings[0])
	assert.Contains(t, shadowings[0].String(), "getWidth")
}
