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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Terms", "terms"},
		{"InstTerms", "instTerms"},
		{"ID", "id"},
		{"DBUnits", "dbUnits"},
		{"X", "x"},
		{"name", "name"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MemberName(tt.in))
		})
	}
}

func TestNewMethodKey_SynthesizesSignature(t *testing.T) {
	assert.Equal(t, MethodKey{Name: "getName", Signature: "getName()"}, NewMethodKey("getName", ""))
	assert.Equal(t, "getName|getName(oaString &name)", NewMethodKey("getName", "getName(oaString &name)").String())
}

func TestParseRelationType(t *testing.T) {
	rt, err := ParseRelationType("CONTAINS_MANY")
	require.NoError(t, err)
	assert.Equal(t, RelContainsMany, rt)

	_, err = ParseRelationType("CONNECTS_TO")
	assert.True(t, errors.Is(err, ErrUnknownRelationType))
}

func TestClassification_IsUnclassified(t *testing.T) {
	assert.True(t, Classification{}.IsUnclassified())
	assert.True(t, Fallback().IsUnclassified())
	assert.False(t, Classification{Domain: DomainConnectivity, Concept: "Net"}.IsUnclassified())
}

func TestMergedSymbol_JSONKeepsKeyedMaps(t *testing.T) {
	sym := NewMergedSymbol("oaNet")
	sym.Methods[NewMethodKey("getTerms", "")] = &Method{Name: "getTerms", Signature: "getTerms()", Provenance: ProvenanceAPI}
	sym.Methods[NewMethodKey("getName", "")] = &Method{Name: "getName", Signature: "getName()", Provenance: ProvenanceBoth}
	sym.Attributes["terms"] = &Attribute{Name: "terms", Type: "oaCollection<oaTerm>", Inferred: true, HasGetter: true}
	sym.Sources = SymbolSources{HasAPI: true}

	data, err := json.Marshal(sym)
	require.NoError(t, err)

	var wire struct {
		Methods []Method `json:"methods"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))
	require.Len(t, wire.Methods, 2)
	assert.Equal(t, "getName", wire.Methods[0].Name, "methods are name sorted on the wire")

	var back MergedSymbol
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Len(t, back.Methods, 2)
	assert.Contains(t, back.Methods, NewMethodKey("getTerms", ""))
	assert.Equal(t, "oaCollection<oaTerm>", back.Attributes["terms"].Type)
	assert.Equal(t, UnknownModule, back.Module)
}

func TestSortRelationships(t *testing.T) {
	rels := []Relationship{
		{Source: "oaNet", Target: "oaTerm", Type: RelContainsMany},
		{Source: "oaBlock", Target: "oaNet", Type: RelContainsMany},
		{Source: "oaNet", Target: "oaTerm", Type: RelAssociatedWith},
	}
	SortRelationships(rels)
	assert.Equal(t, "oaBlock", rels[0].Source)
	assert.Equal(t, RelAssociatedWith, rels[1].Type)
	assert.Equal(t, RelContainsMany, rels[2].Type)
}
