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
	"testing"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffSnapshots_Identical(t *testing.T) {
	g := buildTestGraph(t, "/catalog")
	diff, err := DiffSnapshots(g, g, "a", "b")
	require.NoError(t, err)

	assert.Empty(t, diff.NodesAdded)
	assert.Empty(t, diff.NodesRemoved)
	assert.Empty(t, diff.NodesModified)
	assert.Empty(t, diff.EdgesAdded)
	assert.Empty(t, diff.EdgesChanged)
	assert.Zero(t, diff.Summary.TotalChanges)
	assert.Zero(t, diff.Summary.ChangeRatio)
}

func TestDiffSnapshots_Changes(t *testing.T) {
	base := buildTestGraph(t, "/catalog")

	target := NewGraph("/catalog")
	_, _ = target.AddNode(summary("oaBlock", model.DomainPhysical, "Block"))
	_, _ = target.AddNode(summary("oaNet", model.DomainOther, model.UnknownConcept))
	_, _ = target.AddNode(summary("oaInst", model.DomainHierarchy, "Inst"))
	_, _, _ = target.AddEdge(model.Relationship{Source: "oaNet", Target: "oaBlock", Type: model.RelReferences, Provenance: model.ProvenanceAPIInferred, Weight: 1})
	_, _, _ = target.AddEdge(model.Relationship{Source: "oaNet", Target: "oaBlock", Type: model.RelReferences, Provenance: model.ProvenancePattern, Weight: 5})
	_, _, _ = target.AddEdge(model.Relationship{Source: "oaInst", Target: "oaBlock", Type: model.RelReferences, Provenance: model.ProvenancePattern, Weight: 5})
	target.Freeze()

	diff, err := DiffSnapshots(base, target, "a", "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"oaInst"}, diff.NodesAdded)
	assert.Equal(t, []string{"oaTerm"}, diff.NodesRemoved)
	require.Len(t, diff.NodesModified, 1)
	assert.Equal(t, "oaNet", diff.NodesModified[0].NodeID)
	assert.Equal(t, ChangeReclassified, diff.NodesModified[0].ChangeType)
	assert.Equal(t, model.DomainConnectivity, diff.NodesModified[0].From.Domain)

	assert.Equal(t, []string{"oaInst-[REFERENCES]->oaBlock"}, diff.EdgesAdded)
	assert.Equal(t, []string{"oaNet-[CONTAINS_MANY]->oaTerm"}, diff.EdgesRemoved)
	assert.Equal(t, []string{"oaNet-[REFERENCES]->oaBlock"}, diff.EdgesChanged)

	assert.Equal(t, 6, diff.Summary.TotalChanges)
	assert.Equal(t, 1.0, diff.Summary.ChangeRatio)
	assert.Equal(t, 3, diff.Summary.DomainsAffected)
}

func TestDiffSnapshots_Nil(t *testing.T) {
	g := buildTestGraph(t, "/catalog")
	_, err := DiffSnapshots(nil, g, "", "")
	assert.Error(t, err)
	_, err = DiffSnapshots(g, nil, "", "")
	assert.Error(t, err)
}
