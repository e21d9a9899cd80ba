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
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
)

const graphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// graphMLKey declares one data attribute.
type graphMLKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type graphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphMLData `xml:"data"`
}

type graphMLEdge struct {
	ID     string        `xml:"id,attr"`
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphMLData `xml:"data"`
}

type graphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr"`
	Keys    []graphMLKey `xml:"key"`
	Graph   graphMLGraph `xml:"graph"`
}

// Data keys. Node keys are n*, edge keys e*.
var graphMLKeys = []graphMLKey{
	{ID: "n_name", For: "node", AttrName: "name", AttrType: "string"},
	{ID: "n_domain", For: "node", AttrName: "domain", AttrType: "string"},
	{ID: "n_concept", For: "node", AttrName: "concept", AttrType: "string"},
	{ID: "n_description", For: "node", AttrName: "description", AttrType: "string"},
	{ID: "n_module", For: "node", AttrName: "module", AttrType: "string"},
	{ID: "n_methods", For: "node", AttrName: "method_count", AttrType: "int"},
	{ID: "n_attributes", For: "node", AttrName: "attribute_count", AttrType: "int"},
	{ID: "n_relationships", For: "node", AttrName: "relationship_count", AttrType: "int"},
	{ID: "e_type", For: "edge", AttrName: "type", AttrType: "string"},
	{ID: "e_provenance", For: "edge", AttrName: "provenance", AttrType: "string"},
	{ID: "e_member", For: "edge", AttrName: "member", AttrType: "string"},
	{ID: "e_weight", For: "edge", AttrName: "weight", AttrType: "double"},
	{ID: "e_description", For: "edge", AttrName: "description", AttrType: "string"},
}

// GraphMLExporter writes GraphML.
//
// Node ids are the symbol names with every character outside
// [A-Za-z0-9_] replaced by "_"; the original name is kept in the name key.
type GraphMLExporter struct{}

func (GraphMLExporter) Format() string      { return "graphml" }
func (GraphMLExporter) Extension() string   { return ".graphml" }
func (GraphMLExporter) ContentType() string { return "application/xml" }

// Export writes g as a GraphML document.
func (GraphMLExporter) Export(w io.Writer, g *graph.SerializableGraph) error {
	ids := newIDSanitizer()
	doc := graphMLDoc{
		Xmlns: graphMLNamespace,
		Keys:  graphMLKeys,
		Graph: graphMLGraph{ID: "ontology", EdgeDefault: "directed"},
	}

	for _, n := range nodeRecords(g) {
		node := graphMLNode{ID: ids.id(n.ID)}
		node.Data = appendData(node.Data, "n_name", n.Name)
		node.Data = appendData(node.Data, "n_domain", n.Domain)
		node.Data = appendData(node.Data, "n_concept", n.Concept)
		node.Data = appendData(node.Data, "n_description", n.Description)
		node.Data = appendData(node.Data, "n_module", n.Module)
		node.Data = appendData(node.Data, "n_methods", strconv.Itoa(n.MethodCount))
		node.Data = appendData(node.Data, "n_attributes", strconv.Itoa(n.AttributeCount))
		node.Data = appendData(node.Data, "n_relationships", strconv.Itoa(n.RelationshipCount))
		doc.Graph.Nodes = append(doc.Graph.Nodes, node)
	}

	for i, l := range linkRecords(g) {
		edge := graphMLEdge{
			ID:     fmt.Sprintf("e%d", i),
			Source: ids.id(l.Source),
			Target: ids.id(l.Target),
		}
		edge.Data = appendData(edge.Data, "e_type", l.Type)
		edge.Data = appendData(edge.Data, "e_provenance", strings.Join(l.Provenance, ","))
		edge.Data = appendData(edge.Data, "e_member", l.Member)
		edge.Data = appendData(edge.Data, "e_weight", strconv.FormatFloat(l.Weight, 'g', -1, 64))
		edge.Data = appendData(edge.Data, "e_description", l.Description)
		doc.Graph.Edges = append(doc.Graph.Edges, edge)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding graphml: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func appendData(data []graphMLData, key, value string) []graphMLData {
	if value == "" {
		return data
	}
	return append(data, graphMLData{Key: key, Value: value})
}

// idSanitizer maps names to unique XML-safe ids. Two names that sanitize
// to the same id get numeric suffixes in first-seen order.
type idSanitizer struct {
	byName map[string]string
	taken  map[string]bool
}

func newIDSanitizer() *idSanitizer {
	return &idSanitizer{byName: make(map[string]string), taken: make(map[string]bool)}
}

func (s *idSanitizer) id(name string) string {
	if id, ok := s.byName[name]; ok {
		return id
	}
	base := SanitizeID(name)
	id := base
	for n := 2; s.taken[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	s.byName[name] = id
	s.taken[id] = true
	return id
}

// SanitizeID replaces every character outside [A-Za-z0-9_] with "_".
func SanitizeID(name string) string {
	return unsafeIDChars.ReplaceAllString(name, "_")
}
