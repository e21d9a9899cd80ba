// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export renders a serialized ontology graph into interchange
// formats: a graph-JSON document, GraphML, and a Neo4j Cypher import script.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
)

// ErrUnknownFormat is returned when no exporter is registered for a format.
var ErrUnknownFormat = errors.New("unknown export format")

// Exporter writes a graph in one format.
type Exporter interface {
	// Format is the registry key, e.g. "graphml".
	Format() string

	// Extension is the file extension including the dot.
	Extension() string

	// ContentType is the MIME type served over HTTP.
	ContentType() string

	// Export writes g to w.
	Export(w io.Writer, g *graph.SerializableGraph) error
}

// Registry maps format names to exporters.
//
// Thread Safety: Safe for concurrent use. Register should only be called
// during setup.
type Registry struct {
	mu        sync.RWMutex
	exporters map[string]Exporter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{exporters: make(map[string]Exporter)}
}

// DefaultRegistry returns a registry holding the json, graphml and cypher
// exporters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(JSONExporter{})
	r.Register(GraphMLExporter{})
	r.Register(CypherExporter{})
	return r
}

// Register adds or replaces the exporter for e.Format().
func (r *Registry) Register(e Exporter) {
	if e == nil || e.Format() == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[e.Format()] = e
}

// Get returns the exporter for format, case-insensitively.
//
// Outputs:
//
//	Exporter - The exporter.
//	error - Wraps ErrUnknownFormat if none is registered.
func (r *Registry) Get(format string) (Exporter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exporters[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return e, nil
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.exporters))
	for f := range r.exporters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// WriteFiles exports g once per format into dir as <basename><ext>.
//
// Description:
//
//	Creates dir if needed. Every format is resolved before any file is
//	written, so an unknown format writes nothing.
//
// Outputs:
//
//	[]string - Paths written, in format order.
//	error - Non-nil on an unknown format or the first write failure.
func (r *Registry) WriteFiles(g *graph.SerializableGraph, dir, basename string, formats []string) ([]string, error) {
	exporters := make([]Exporter, 0, len(formats))
	for _, f := range formats {
		e, err := r.Get(f)
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, e)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	paths := make([]string, 0, len(exporters))
	for _, e := range exporters {
		path := filepath.Join(dir, basename+e.Extension())
		if err := writeFile(path, e, g); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, e Exporter, g *graph.SerializableGraph) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	if err := e.Export(f, g); err != nil {
		return fmt.Errorf("exporting %s: %w", e.Format(), err)
	}
	return nil
}

// NodeRecord is the flat node row shared by every format.
type NodeRecord struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Domain            string `json:"domain"`
	Concept           string `json:"concept"`
	Description       string `json:"description"`
	Module            string `json:"module"`
	MethodCount       int    `json:"method_count"`
	AttributeCount    int    `json:"attribute_count"`
	RelationshipCount int    `json:"relationship_count"`
	APIMethodCount    int    `json:"api_method_count"`
	UMLMethodCount    int    `json:"uml_method_count"`
}

// LinkRecord is the flat edge row shared by every format.
type LinkRecord struct {
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Type        string   `json:"type"`
	Provenance  []string `json:"provenance"`
	Member      string   `json:"member,omitempty"`
	Weight      float64  `json:"weight"`
	Description string   `json:"description,omitempty"`
}

func nodeRecords(g *graph.SerializableGraph) []NodeRecord {
	out := make([]NodeRecord, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		s := n.Symbol
		if s == nil {
			continue
		}
		out = append(out, NodeRecord{
			ID:                n.ID,
			Name:              s.Name,
			Domain:            string(s.Domain),
			Concept:           s.Concept,
			Description:       s.Description,
			Module:            s.Module,
			MethodCount:       s.MethodCount,
			AttributeCount:    s.AttributeCount,
			RelationshipCount: s.RelationshipCount,
			APIMethodCount:    s.APIMethodCount,
			UMLMethodCount:    s.UMLMethodCount,
		})
	}
	return out
}

func linkRecords(g *graph.SerializableGraph) []LinkRecord {
	out := make([]LinkRecord, 0, len(g.Edges))
	for _, e := range g.Edges {
		provs := make([]string, len(e.Provenance))
		for i, p := range e.Provenance {
			provs[i] = string(p)
		}
		out = append(out, LinkRecord{
			Source:      e.Source,
			Target:      e.Target,
			Type:        string(e.Type),
			Provenance:  provs,
			Member:      e.Member,
			Weight:      e.Weight,
			Description: e.Description,
		})
	}
	return out
}
