// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

import (
	"context"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	vocab, err := config.GetVocabulary(context.Background())
	require.NoError(t, err)
	n, err := New(vocab.ScrubRules)
	require.NoError(t, err)
	return n
}

func TestType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"oaNet*", "oaNet *"},
		{"oaNet *", "oaNet *"},
		{"oaNet  *", "oaNet *"},
		{"const oaString&", "const oaString &"},
		{"oaTerm**", "oaTerm **"},
		{"oaCollection< oaTerm , oaNet >", "oaCollection<oaTerm, oaNet>"},
		{"  oaUInt4\t", "oaUInt4"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Type(tt.in))
		})
	}
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "getName(oaString &name) const", Signature("getName( oaString&name )  const"))
	assert.Equal(t, "getTerms()", Signature("getTerms()"))
	assert.Equal(t, "create(oaBlock *block, const oaName &name)", Signature("create(oaBlock* block,const oaName & name)"))
}

func TestText(t *testing.T) {
	n := newDefaultNormalizer(t)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "The  oaNet\n\tclass   represents", "The oaNet class represents"},
		{"decodes entities", "oaCollection&lt;oaTerm&gt; of A &amp; B", "oaCollection<oaTerm> of A & B"},
		{"double encoded entity", "x &amp;lt; y", "x < y"},
		{"strips headings", "A net. Member Function Documentation Return to top of page", "A net."},
		{"strips copyright", "A net. Copyright 2002-2010 Cadence Design Systems, Inc. All Rights Reserved.", "A net."},
		{"strips generator footer", "A term. The documentation for this class was generated from the following file:", "A term."},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Text(tt.in))
		})
	}
}

func TestIdempotence(t *testing.T) {
	n := newDefaultNormalizer(t)

	inputs := []string{
		"oaNet*",
		"oaCollection< oaTerm >*",
		"const  oaString &  name",
		"a &amp;amp;lt; b",
		"Member Function DocumentationMember Function Documentation  text",
		"getName( oaString&name ) const",
		"  lots \n of\t\tspace  ",
	}
	for _, in := range inputs {
		once := n.Text(in)
		assert.Equal(t, once, n.Text(once), "Text(%q)", in)

		typed := Type(in)
		assert.Equal(t, typed, Type(typed), "Type(%q)", in)

		sig := Signature(in)
		assert.Equal(t, sig, Signature(sig), "Signature(%q)", in)
	}
}

func TestNew(t *testing.T) {
	_, err := New([]config.ScrubRule{{Name: "bad", Pattern: "(unclosed"}})
	assert.Error(t, err)

	n, err := New([]config.ScrubRule{
		{Name: "first", Pattern: "AAA"},
		{Name: "second", Pattern: "BBB", Replacement: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, n.RuleNames())
	assert.Equal(t, "x b", n.Text("x AAABBB"))
}

func TestText_ScrubsToFixpoint(t *testing.T) {
	// Removing the inner match exposes an outer one.
	n, err := New([]config.ScrubRule{{Name: "tag", Pattern: "<x>"}})
	require.NoError(t, err)
	assert.Equal(t, "kept", n.Text("kept <<x>x>"))
}

func TestText_DeeplyNestedEntity(t *testing.T) {
	n := newDefaultNormalizer(t)

	in := "a &" + strings.Repeat("amp;", 20) + "lt; b"
	once := n.Text(in)
	assert.Equal(t, "a < b", once)
	assert.Equal(t, once, n.Text(once))
}

func TestText_GrowingRuleStops(t *testing.T) {
	// A replacement that lengthens its match never reaches a fixpoint.
	n, err := New([]config.ScrubRule{{Name: "grow", Pattern: "x", Replacement: "xx"}})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 1<<maxPasses), n.Text("x"))
}
