// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTaxonomy(t *testing.T) {
	tax, err := DefaultTaxonomy()
	require.NoError(t, err)

	t.Run("domain order is preserved", func(t *testing.T) {
		var order []model.Domain
		for _, d := range tax.Domains {
			order = append(order, d.Domain)
		}
		assert.Equal(t, []model.Domain{
			model.DomainPhysical,
			model.DomainConnectivity,
			model.DomainHierarchy,
			model.DomainLayout,
			model.DomainDevice,
		}, order)
	})

	t.Run("connectivity lists Net before Term", func(t *testing.T) {
		assert.Equal(t, []string{"Net", "Term", "InstTerm", "Conn", "Route", "Guide", "Pin"}, tax.Domains[1].Concepts)
	})

	t.Run("strip tokens", func(t *testing.T) {
		assert.Equal(t, []string{"oa", "Mod", "Occ"}, tax.StripTokens)
	})
}

func TestParseTaxonomy_Invalid(t *testing.T) {
	_, err := ParseTaxonomy(nil)
	assert.Error(t, err)

	_, err = ParseTaxonomy([]byte("domains: []\n"))
	assert.Error(t, err, "an empty domain list must fail validation")

	_, err = ParseTaxonomy([]byte("domains:\n  - domain: Physical\n    concepts: []\n"))
	assert.Error(t, err, "a domain without concepts must fail validation")
}

func TestGetVocabulary(t *testing.T) {
	ResetVocabulary()
	t.Cleanup(ResetVocabulary)

	v, err := GetVocabulary(context.Background())
	require.NoError(t, err)

	again, err := GetVocabulary(context.Background())
	require.NoError(t, err)
	assert.Same(t, v, again, "vocabulary is cached")

	t.Run("inheritance reverses", func(t *testing.T) {
		rt, reverse := v.RelationFor("inheritance")
		assert.Equal(t, model.RelSpecializes, rt)
		assert.True(t, reverse)
	})

	t.Run("unknown label falls back", func(t *testing.T) {
		rt, reverse := v.RelationFor("dependency-arrow")
		assert.Equal(t, model.RelRelatedTo, rt)
		assert.False(t, reverse)
	})

	t.Run("accessor kinds", func(t *testing.T) {
		assert.Equal(t, []string{"get"}, v.AccessorsOfKind(AccessorGetter))
		assert.Equal(t, []string{"is", "has"}, v.AccessorsOfKind(AccessorPredicate))
	})

	t.Run("tables are populated", func(t *testing.T) {
		assert.NotEmpty(t, v.ScrubRules)
		assert.NotEmpty(t, v.PatternRules)
		assert.Contains(t, v.CollectionWrappers, "oaCollection")
		assert.Equal(t, "oaBoolean", v.BooleanType)
		assert.Equal(t, 2.0, v.SpecializesWeight)
	})
}

func TestGetVocabulary_NilContext(t *testing.T) {
	//nolint:staticcheck // exercising the nil guard
	_, err := GetVocabulary(nil)
	assert.Error(t, err)
}

func TestParseVocabulary_Validation(t *testing.T) {
	ctx := context.Background()
	base := "accessors:\n  - prefix: get\n    kind: getter\nboolean_type: bool\n"

	t.Run("minimal document gets defaults", func(t *testing.T) {
		v, err := ParseVocabulary(ctx, []byte(base))
		require.NoError(t, err)
		assert.Equal(t, model.RelRelatedTo, v.DefaultRelation)
		assert.Equal(t, []string{"void"}, v.VoidTypes)
	})

	t.Run("unknown relation type", func(t *testing.T) {
		doc := base + "uml_relations:\n  - uml: inheritance\n    type: INHERITS\n"
		_, err := ParseVocabulary(ctx, []byte(doc))
		assert.Error(t, err)
	})

	t.Run("bad regex", func(t *testing.T) {
		doc := base + "scrub_rules:\n  - name: broken\n    pattern: '(unclosed'\n"
		_, err := ParseVocabulary(ctx, []byte(doc))
		assert.Error(t, err)
	})

	t.Run("bad accessor kind", func(t *testing.T) {
		doc := "accessors:\n  - prefix: get\n    kind: fetcher\nboolean_type: bool\n"
		_, err := ParseVocabulary(ctx, []byte(doc))
		assert.Error(t, err)
	})

	t.Run("pattern weight must be positive", func(t *testing.T) {
		doc := base + "pattern_rules:\n  - source: Net\n    method: getTerm\n    type: REFERENCES\n    weight: 0\n"
		_, err := ParseVocabulary(ctx, []byte(doc))
		assert.Error(t, err)
	})
}

func TestLoadPipelineConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadPipelineConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultDescriptionLimit, cfg.DescriptionLimit)
	assert.True(t, cfg.Inference.Accessors)
	assert.Equal(t, []string{"json"}, cfg.Export.Formats)
}

func TestLoadPipelineConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	doc := `api_dir: /data/api
uml_dir: /data/uml
workers: 2
inference:
  accessors: true
  patterns: false
export:
  formats: [graphml, cypher]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	t.Setenv("ONTOLOGY_UML_DIR", "/override/uml")
	t.Setenv("ONTOLOGY_WORKERS", "8")

	cfg, err := LoadPipelineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/api", cfg.APIDir)
	assert.Equal(t, "/override/uml", cfg.UMLDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.False(t, cfg.Inference.Patterns)
	assert.Equal(t, []string{"graphml", "cypher"}, cfg.Export.Formats)
	assert.NoError(t, cfg.Validate())
}

func TestLoadPipelineConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("workers: [not, a, number]\n"), 0o644))

	_, err := LoadPipelineConfig(path)
	assert.Error(t, err)

	t.Setenv("ONTOLOGY_WORKERS", "many")
	_, err = LoadPipelineConfig("")
	assert.Error(t, err)
}

func TestPipelineConfig_Validate(t *testing.T) {
	cfg := DefaultPipelineConfig()
	assert.Error(t, cfg.Validate(), "api_dir and uml_dir are required")

	cfg.APIDir, cfg.UMLDir = "api", "uml"
	assert.NoError(t, cfg.Validate())

	cfg.Export.Formats = []string{"dot"}
	assert.Error(t, cfg.Validate())

	cfg.Export.Formats = nil
	cfg.Workers = -1
	assert.Error(t, cfg.Validate())
	assert.Equal(t, DefaultWorkers, cfg.EffectiveWorkers())
}

func TestTaxonomy_BaseName(t *testing.T) {
	tax, err := DefaultTaxonomy()
	require.NoError(t, err)

	tests := map[string]string{
		"oaNet":         "Net",
		"oaModNet":      "Net",
		"oaOccInstTerm": "InstTerm",
		"oaModule":      "Module",
		"oaOccurrence":  "Occurrence",
		"oa":            "oa",
		"Modifier":      "Modifier",
	}
	for in, want := range tests {
		assert.Equal(t, want, tax.BaseName(in), in)
	}
}
