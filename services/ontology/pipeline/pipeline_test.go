// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/AleutianAI/AleutianOntology/services/ontology/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureConfig points a default config at test/fixtures/sample-catalog.
func fixtureConfig(t *testing.T) config.PipelineConfig {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	root := filepath.Join(filepath.Dir(file), "..", "..", "..", "test", "fixtures", "sample-catalog")

	cfg := config.DefaultPipelineConfig()
	cfg.APIDir = filepath.Join(root, "api")
	cfg.UMLDir = filepath.Join(root, "uml")
	return cfg
}

func runFixture(t *testing.T, opts ...Option) *Run {
	t.Helper()
	p, err := New(context.Background(), fixtureConfig(t), opts...)
	require.NoError(t, err)
	run, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	return run
}

func TestRun_AccessorEdgeFromCollectionGetter(t *testing.T) {
	run := runFixture(t)

	net, ok := run.Symbols.Get("oaNet")
	require.True(t, ok)
	assert.True(t, net.Sources.HasAPI)
	assert.False(t, net.Sources.HasUML())
	assert.Equal(t, map[model.Provenance]int{model.ProvenanceAPI: 1}, net.CountMethods())

	e, ok := run.Graph.GetEdge(model.EdgeKey{Source: "oaNet", Target: "oaTerm", Type: model.RelContainsMany})
	require.True(t, ok)
	assert.Equal(t, "terms", e.Member)
	assert.Equal(t, []model.Provenance{model.ProvenanceAPIInferred}, e.Provenance)

	assert.Equal(t, model.DomainConnectivity, run.Classifications["oaNet"].Domain)
}

func TestRun_SingleSpecializesEdgeFromBothSources(t *testing.T) {
	run := runFixture(t)

	instTerm, ok := run.Symbols.Get("oaInstTerm")
	require.True(t, ok)
	assert.Equal(t, []string{"oaTerm"}, instTerm.Inheritance)

	specializes := run.Graph.EdgesByType(model.RelSpecializes)
	require.Len(t, specializes, 1)
	assert.Equal(t, "oaInstTerm", specializes[0].Source)
	assert.Equal(t, "oaTerm", specializes[0].Target)
	assert.Equal(t, []model.Provenance{model.ProvenanceAPI, model.ProvenanceUML}, specializes[0].Provenance)
}

func TestRun_Report(t *testing.T) {
	run := runFixture(t)
	r := run.Report
	require.NotNil(t, r)

	assert.Equal(t, run.ID, r.RunID)
	assert.Equal(t, 3, r.APIRecords)
	assert.Equal(t, 1, r.Diagrams)
	assert.Equal(t, 3, r.Symbols)
	assert.Equal(t, 1, r.APIOnly)
	assert.Equal(t, 0, r.UMLOnly)
	assert.Equal(t, 2, r.Both)
	assert.Equal(t, 3, r.WithDescription)
	assert.InDelta(t, 1.0, r.AverageMethods, 1e-9)

	assert.Equal(t, []string{"oaRoute"}, r.MissingSources)
	require.Len(t, r.MalformedRecords, 1)
	assert.Contains(t, r.MalformedRecords[0], "classoaBroken.yaml")
	assert.Equal(t, 1, r.DanglingEdges)
	require.Len(t, r.Dangling, 1)
	assert.Contains(t, r.Dangling[0], "oaRoute")
	assert.Empty(t, r.Cycles)

	assert.Equal(t, 3, r.Graph.NodeCount)
	assert.Equal(t, 2, r.Graph.EdgeCount)
	assert.Equal(t, 3, r.Graph.NodesByDomain[model.DomainConnectivity])
	assert.Equal(t, 1, r.Graph.EdgesByProvenance[model.ProvenanceAPIInferred])
	assert.Empty(t, r.SnapshotID)
}

func TestRun_ClassificationCompleteness(t *testing.T) {
	run := runFixture(t)
	for _, name := range run.Symbols.Names() {
		cl, ok := run.Classifications[name]
		require.True(t, ok, name)
		assert.NotEmpty(t, cl.Domain, name)
		assert.NotEmpty(t, cl.Concept, name)
	}
}

func TestRun_Deterministic(t *testing.T) {
	first := runFixture(t)
	second := runFixture(t)
	assert.Equal(t, first.Graph.Hash(), second.Graph.Hash())
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRun_SavesSnapshot(t *testing.T) {
	db, err := graph.OpenSnapshotDB("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mgr, err := graph.NewSnapshotManager(db, slog.Default())
	require.NoError(t, err)

	run := runFixture(t, WithSnapshots(mgr, "nightly"))
	require.NotNil(t, run.Snapshot)
	assert.Equal(t, run.Snapshot.SnapshotID, run.Report.SnapshotID)
	assert.Equal(t, "nightly", run.Snapshot.Label)

	loaded, _, err := mgr.LoadLatest(context.Background(), graph.CatalogHash(run.Graph.CatalogRoot))
	require.NoError(t, err)
	assert.Equal(t, run.Graph.Hash(), loaded.Hash())
}

func TestRun_MissingDirectory(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.APIDir = filepath.Join(t.TempDir(), "absent")
	p, err := New(context.Background(), cfg)
	require.NoError(t, err)

	run, err := p.Run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, run)
}

func TestRunCatalog_Cancelled(t *testing.T) {
	p, err := New(context.Background(), fixtureConfig(t))
	require.NoError(t, err)

	catalog := source.NewCatalog([]*source.APIRecord{{Name: "oaNet"}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := p.RunCatalog(ctx, catalog, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, run)
}

func TestCatalogRoot(t *testing.T) {
	cfg := config.PipelineConfig{APIDir: "/data/catalog/api", UMLDir: "/data/catalog/uml/"}
	assert.Equal(t, "/data/catalog", CatalogRoot(cfg))

	cfg = config.PipelineConfig{APIDir: "/a/api", UMLDir: "/b/uml"}
	assert.Equal(t, "/a/api+/b/uml", CatalogRoot(cfg))
}
