// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"encoding/json"
	"testing"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSerializable_NilGraph(t *testing.T) {
	var g *Graph
	sg := g.ToSerializable()
	require.NotNil(t, sg)
	assert.Equal(t, GraphSchemaVersion, sg.SchemaVersion)
	assert.Empty(t, sg.Nodes)
	assert.Empty(t, sg.Edges)
}

func TestToSerializable_SortedAndHashed(t *testing.T) {
	g := buildTestGraph(t, "/catalog")
	sg := g.ToSerializable()

	require.Len(t, sg.Nodes, 3)
	assert.Equal(t, "oaBlock", sg.Nodes[0].ID)
	assert.Equal(t, "oaTerm", sg.Nodes[2].ID)
	require.Len(t, sg.Edges, 2)
	assert.Equal(t, "oaBlock", sg.Edges[0].Target)
	assert.Equal(t, g.Hash(), sg.GraphHash)
	assert.Equal(t, "/catalog", sg.CatalogRoot)
}

func TestFromSerializable_RoundTripThroughJSON(t *testing.T) {
	g := buildTestGraph(t, "/catalog")

	data, err := json.Marshal(g.ToSerializable())
	require.NoError(t, err)
	var sg SerializableGraph
	require.NoError(t, json.Unmarshal(data, &sg))

	restored, err := FromSerializable(&sg)
	require.NoError(t, err)

	assert.True(t, restored.IsFrozen())
	assert.Equal(t, g.BuiltAtMilli, restored.BuiltAtMilli)
	assert.Equal(t, g.Hash(), restored.Hash())
	assert.Equal(t, g.Stats().EdgesByProvenance, restored.Stats().EdgesByProvenance)
	assert.Len(t, restored.NodesByDomain(model.DomainConnectivity), 2)

	e, ok := restored.GetEdge(model.EdgeKey{Source: "oaNet", Target: "oaTerm", Type: model.RelContainsMany})
	require.True(t, ok)
	assert.Equal(t, "terms", e.Member)
}

func TestFromSerializable_Errors(t *testing.T) {
	_, err := FromSerializable(nil)
	assert.Error(t, err)

	_, err = FromSerializable(&SerializableGraph{SchemaVersion: "0.1"})
	assert.Error(t, err)

	_, err = FromSerializable(&SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		Nodes:         []SerializableNode{{ID: "oaNet"}},
	})
	assert.Error(t, err, "nil symbol")

	_, err = FromSerializable(&SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		Nodes:         []SerializableNode{{ID: "oaNet", Symbol: summary("oaNet", model.DomainConnectivity, "Net")}},
		Edges:         []SerializableEdge{{Source: "oaNet", Target: "oaRoute", Type: model.RelReferences}},
	})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}
