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
	"encoding/json"
	"io"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
)

// JSONDocument is the node-link graph document.
type JSONDocument struct {
	Directed   bool         `json:"directed"`
	Multigraph bool         `json:"multigraph"`
	Graph      JSONMeta     `json:"graph"`
	Nodes      []NodeRecord `json:"nodes"`
	Links      []LinkRecord `json:"links"`
}

// JSONMeta carries graph-level attributes.
type JSONMeta struct {
	CatalogRoot  string `json:"catalog_root,omitempty"`
	GraphHash    string `json:"graph_hash"`
	BuiltAtMilli int64  `json:"built_at_milli"`
	Schema       string `json:"schema_version"`
}

// JSONExporter writes the node-link JSON document.
type JSONExporter struct{}

func (JSONExporter) Format() string      { return "json" }
func (JSONExporter) Extension() string   { return ".json" }
func (JSONExporter) ContentType() string { return "application/json" }

// Export writes g as an indented node-link document.
func (JSONExporter) Export(w io.Writer, g *graph.SerializableGraph) error {
	doc := JSONDocument{
		Directed: true,
		Graph: JSONMeta{
			CatalogRoot:  g.CatalogRoot,
			GraphHash:    g.GraphHash,
			BuiltAtMilli: g.BuiltAtMilli,
			Schema:       g.SchemaVersion,
		},
		Nodes: nodeRecords(g),
		Links: linkRecords(g),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
