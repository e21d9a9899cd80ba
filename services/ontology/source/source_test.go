// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	apiDir := filepath.Join(root, "api")
	umlDir := filepath.Join(root, "uml")

	writeFile(t, filepath.Join(apiDir, "design", "classoaNet.yaml"), `
name: oaNet
description: A net.
inheritance: [oaBlockObject]
methods:
  - name: getTerms
    return_type: oaCollection<oaTerm, oaNet>
    signature: getTerms() const
`)
	writeFile(t, filepath.Join(apiDir, "base", "structoaPoint.yaml"), "description: A point.\n")
	writeFile(t, filepath.Join(apiDir, "base", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(apiDir, "base", "classoaBad.yaml"), "methods: [ {return_type: int} ]\n")
	writeFile(t, filepath.Join(apiDir, "base", "classoaBroken.yaml"), "name: [unterminated\n")

	writeFile(t, filepath.Join(umlDir, "net_imagemap.json"), `{
  "classes": {
    "oaNet": {"position": {"x": 1, "y": 2, "width": 3, "height": 4}, "methods": [{"name": "getName", "return_type": "oaString"}], "attributes": ["name"]},
    "oaTerm": {"methods": []}
  },
  "relationships": [
    {"source": "oaNet", "target": "oaTerm", "type": "aggregation-many", "member": "terms"},
    {"source": "oaTerm", "target": "oaPin", "type": "association"}
  ]
}`)
	writeFile(t, filepath.Join(umlDir, "broken.json"), "{not json")
	writeFile(t, filepath.Join(umlDir, "norel.json"), `{"diagram": "norel", "relationships": [{"source": "a"}]}`)

	catalog, result, err := Load(context.Background(), apiDir, umlDir)
	require.NoError(t, err)

	assert.Equal(t, 2, result.APIRecords)
	assert.Equal(t, 1, result.Diagrams)
	require.Len(t, result.Errors, 4)
	for _, e := range result.Errors {
		assert.True(t, errors.Is(e, model.ErrMalformedRecord), "%v", e)
	}

	net, ok := catalog.APIRecord("oaNet")
	require.True(t, ok)
	assert.Equal(t, "design", net.Module)
	assert.Equal(t, []string{"oaBlockObject"}, net.Inheritance)
	require.Len(t, net.Methods, 1)
	assert.Equal(t, "oaCollection<oaTerm, oaNet>", net.Methods[0].ReturnType)

	point, ok := catalog.APIRecord("oaPoint")
	require.True(t, ok, "name defaults to the file name")
	assert.Equal(t, "base", point.Module)

	view := catalog.UMLView("oaNet")
	require.True(t, view.Found())
	assert.Equal(t, "net", view.ClassDiagram, "diagram name defaults to the file stem")
	assert.Equal(t, 3.0, view.Class.Position.Width)
	assert.Equal(t, []model.AttributeStub{{Name: "name"}}, view.Class.Attributes)
	assert.Len(t, view.Relationships, 1)

	assert.Equal(t, []string{"oaNet", "oaPin", "oaPoint", "oaTerm"}, catalog.Names())
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, _, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent"), t.TempDir())
	assert.Error(t, err)
}

func TestCatalog_UMLView(t *testing.T) {
	a := &UMLDiagram{
		Diagram: "b_second",
		Classes: map[string]UMLClass{"oaTerm": {Href: "second"}},
		Relationships: []UMLRelationship{
			{Source: "oaTerm", Target: "oaInstTerm", Type: "inheritance"},
			{Source: "oaNet", Target: "oaTerm", Type: "aggregation-many"},
		},
	}
	b := &UMLDiagram{
		Diagram: "a_first",
		Classes: map[string]UMLClass{"oaTerm": {Href: "first"}},
		Relationships: []UMLRelationship{
			{Source: "oaTerm", Target: "oaInstTerm", Type: "inheritance"},
		},
	}
	c := &UMLDiagram{
		Diagram:       "c_unrelated",
		Classes:       map[string]UMLClass{"oaNet": {}},
		Relationships: []UMLRelationship{{Source: "oaTerm", Target: "oaNet", Type: "usage"}},
	}
	catalog := NewCatalog(nil, []*UMLDiagram{a, b, c})

	view := catalog.UMLView("oaTerm")
	require.NotNil(t, view.Class)
	assert.Equal(t, "first", view.Class.Href, "first diagram in sorted order supplies class info")
	assert.Equal(t, []string{"a_first", "b_second"}, view.Diagrams)
	assert.Len(t, view.Relationships, 2, "duplicates across diagrams collapse; diagrams without the class are ignored")

	missing := catalog.UMLView("oaShape")
	assert.False(t, missing.Found())
	assert.Empty(t, missing.Diagrams)
}

func TestAPISymbolName(t *testing.T) {
	tests := []struct {
		file string
		name string
		ok   bool
	}{
		{"classoaNet.yaml", "oaNet", true},
		{"structoaPoint.yaml", "oaPoint", true},
		{"class.yaml", "", false},
		{"classoaNet.json", "", false},
		{"oaNet.yaml", "", false},
	}
	for _, tt := range tests {
		name, ok := apiSymbolName(tt.file)
		assert.Equal(t, tt.ok, ok, tt.file)
		assert.Equal(t, tt.name, name, tt.file)
	}
}

func TestLoadUMLDir_Nested(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.json"), `{"classes": {"oaTop": {}}}`)
	writeFile(t, filepath.Join(dir, "design", "net_imagemap.json"), `{"classes": {"oaNet": {}}}`)
	writeFile(t, filepath.Join(dir, "design", "deep", "term.json"), `{"classes": {"oaTerm": {}}}`)
	writeFile(t, filepath.Join(dir, "design", "readme.md"), "ignored")

	diagrams, errs, err := LoadUMLDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, diagrams, 3)

	names := make([]string, 0, len(diagrams))
	for _, d := range diagrams {
		names = append(names, d.Diagram)
	}
	assert.Equal(t, []string{"term", "net", "top"}, names, "path order, nested directories included")
}

func TestLoadUMLDir_Missing(t *testing.T) {
	_, _, err := LoadUMLDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
