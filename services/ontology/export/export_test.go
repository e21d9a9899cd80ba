// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph(t *testing.T) *graph.SerializableGraph {
	t.Helper()
	g := graph.NewGraph("/catalog")
	for _, s := range []*graph.SymbolSummary{
		{Name: "oaNet", Domain: model.DomainConnectivity, Concept: "Net", Module: "design", Description: "Say \"hi\"\nthen C:\\path", MethodCount: 3},
		{Name: "oaTerm", Domain: model.DomainConnectivity, Concept: "Term", Module: "design"},
		{Name: "oaVector<T>", Domain: model.DomainOther, Concept: model.UnknownConcept, Module: "base"},
		{Name: "oaVector-T-", Domain: model.DomainOther, Concept: model.UnknownConcept, Module: "base"},
	} {
		_, err := g.AddNode(s)
		require.NoError(t, err)
	}
	for _, r := range []model.Relationship{
		{Source: "oaNet", Target: "oaTerm", Type: model.RelContainsMany, Member: "terms", Provenance: model.ProvenanceUML},
		{Source: "oaNet", Target: "oaTerm", Type: model.RelContainsMany, Provenance: model.ProvenanceAPIInferred, Weight: 1},
		{Source: "oaVector<T>", Target: "oaNet", Type: model.RelUses, Provenance: model.ProvenanceUML},
	} {
		_, _, err := g.AddEdge(r)
		require.NoError(t, err)
	}
	g.Freeze()
	return g.ToSerializable()
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"cypher", "graphml", "json"}, r.Formats())

	e, err := r.Get("GraphML")
	require.NoError(t, err)
	assert.Equal(t, ".graphml", e.Extension())

	_, err = r.Get("dot")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONExporter{}.Export(&buf, testGraph(t)))

	var doc JSONDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.True(t, doc.Directed)
	require.Len(t, doc.Nodes, 4)
	require.Len(t, doc.Links, 2)
	assert.Equal(t, "oaNet", doc.Nodes[0].ID)
	assert.Equal(t, "Connectivity", doc.Nodes[0].Domain)
	assert.Equal(t, []string{"api_inferred", "uml"}, doc.Links[0].Provenance)
	assert.Equal(t, "terms", doc.Links[0].Member)
}

func TestGraphMLExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, GraphMLExporter{}.Export(&buf, testGraph(t)))
	assert.True(t, strings.HasPrefix(buf.String(), "<?xml"))

	var doc graphMLDoc
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Graph.Nodes, 4)

	ids := make([]string, 0, 4)
	for _, n := range doc.Graph.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"oaNet", "oaTerm", "oaVector_T_", "oaVector_T__2"}, ids, "unsafe characters are replaced and collisions suffixed")

	require.Len(t, doc.Graph.Edges, 2)
	uses := doc.Graph.Edges[1]
	assert.Equal(t, "oaVector_T__2", uses.Source, "oaVector-T- sorts first and keeps the unsuffixed id")
	assert.Equal(t, "oaNet", uses.Target)

	// Descriptions survive XML escaping.
	var desc string
	for _, d := range doc.Graph.Nodes[0].Data {
		if d.Key == "n_description" {
			desc = d.Value
		}
	}
	assert.Equal(t, "Say \"hi\"\nthen C:\\path", desc)
}

func TestCypherExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CypherExporter{}.Export(&buf, testGraph(t)))
	script := buf.String()

	assert.Contains(t, script, "CREATE CONSTRAINT class_name")
	assert.Contains(t, script, `CREATE (:Class {name: "oaNet", domain: "Connectivity", concept: "Net", description: "Say \"hi\"\nthen C:\\path", module: "design", method_count: 3`)
	assert.Contains(t, script, `MATCH (a:Class {name: "oaNet"}), (b:Class {name: "oaTerm"}) CREATE (a)-[:CONTAINS_MANY {provenance: ["api_inferred", "uml"], weight: 1, member: "terms"}]->(b);`)
	assert.Equal(t, 4, strings.Count(script, "CREATE (:Class"))
	assert.Equal(t, 2, strings.Count(script, "MATCH (a:Class"))
}

func TestQuoteCypher(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", `"plain"`},
		{`a"b`, `"a\"b"`},
		{`a\b`, `"a\\b"`},
		{"a\nb", `"a\nb"`},
		{`\"`, `"\\\""`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteCypher(tt.in))
	}
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r := DefaultRegistry()

	paths, err := r.WriteFiles(testGraph(t), dir, "ontology", []string{"json", "cypher"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "ontology.json"), filepath.Join(dir, "ontology.cypher")}, paths)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	_, err = r.WriteFiles(testGraph(t), filepath.Join(t.TempDir(), "none"), "x", []string{"json", "dot"})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
