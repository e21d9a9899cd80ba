// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
)

func savedStore(t *testing.T) (*dgbadger.DB, *graph.SnapshotMetadata) {
	t.Helper()
	db, err := graph.OpenSnapshotDB("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	g := graph.NewGraph("/catalog")
	for _, name := range []string{"oaNet", "oaTerm"} {
		_, err := g.AddNode(&graph.SymbolSummary{Name: name, Domain: model.DomainConnectivity, Concept: "Net"})
		require.NoError(t, err)
	}
	_, _, err = g.AddEdge(model.Relationship{Source: "oaNet", Target: "oaTerm", Type: model.RelContainsMany, Provenance: model.ProvenanceUML})
	require.NoError(t, err)
	g.Freeze()

	mgr, err := graph.NewSnapshotManager(db, slog.Default())
	require.NoError(t, err)
	meta, err := mgr.Save(context.Background(), g, "nightly")
	require.NoError(t, err)
	return db, meta
}

func setKey(t *testing.T, db *dgbadger.DB, key string, value []byte) {
	t.Helper()
	require.NoError(t, db.Update(func(txn *dgbadger.Txn) error {
		return txn.Set([]byte(key), value)
	}))
}

func TestInspect_Healthy(t *testing.T) {
	db, meta := savedStore(t)

	d, err := inspect(db, true)
	require.NoError(t, err)
	require.Len(t, d.snapshots, 1)

	e := d.snapshots[0]
	assert.Equal(t, meta.SnapshotID, e.snapshotID)
	assert.Equal(t, meta.CatalogHash, e.catalogHash)
	assert.True(t, e.isLatest)
	assert.True(t, e.indexed)
	assert.True(t, e.hashOK)
	assert.Equal(t, 2, e.nodeCount)
	assert.Equal(t, 1, e.edgeCount)
	assert.Empty(t, e.problems(true))
	assert.Zero(t, d.failures())

	var buf bytes.Buffer
	printDump(&buf, d, "mem")
	assert.Contains(t, buf.String(), "Status:      OK")
	assert.Contains(t, buf.String(), "(latest)")
	assert.Contains(t, buf.String(), "Label:       nightly")
}

func TestInspect_DetectsCorruption(t *testing.T) {
	db, meta := savedStore(t)

	setKey(t, db, keyPrefixSnap+meta.CatalogHash+":"+meta.SnapshotID+keySuffixData, []byte("not gzip"))
	setKey(t, db, keyPrefixIndex+"deadbeefdeadbeef", []byte(meta.CatalogHash))
	setKey(t, db, keyPrefixSnap+"0000000000000000"+keySuffixLatest, []byte("feedfacefeedface"))
	setKey(t, db, keyPrefixSnap+"stray", []byte("x"))

	d, err := inspect(db, true)
	require.NoError(t, err)
	require.Len(t, d.snapshots, 1)

	problems := d.snapshots[0].problems(true)
	assert.Contains(t, problems, "content hash mismatch")
	assert.Len(t, problems, 3, "hash, size and decode")
	assert.Equal(t, []string{"deadbeefdeadbeef"}, d.orphanIndex)
	assert.Equal(t, map[string]string{"0000000000000000": "feedfacefeedface"}, d.danglingLatest)
	assert.Equal(t, []string{keyPrefixSnap + "stray"}, d.unknownKeys)
	assert.Equal(t, 3, d.failures())
}

func TestInspect_Empty(t *testing.T) {
	db, err := graph.OpenSnapshotDB("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	d, err := inspect(db, true)
	require.NoError(t, err)
	assert.Empty(t, d.snapshots)

	var buf bytes.Buffer
	printDump(&buf, d, "mem")
	assert.Contains(t, buf.String(), "No snapshots found.")
}

func TestSplitSnapshotKey(t *testing.T) {
	h, id, ok := splitSnapshotKey("abc:def")
	assert.True(t, ok)
	assert.Equal(t, "abc", h)
	assert.Equal(t, "def", id)

	_, _, ok = splitSnapshotKey("abc")
	assert.False(t, ok)
	_, _, ok = splitSnapshotKey("abc:def:ghi")
	assert.False(t, ok)
}
