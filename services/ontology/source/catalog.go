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
	"sort"
)

// UMLView is everything the diagrams say about one symbol.
type UMLView struct {
	// Class is the class box from the first diagram (in sorted diagram
	// order) whose class table holds the name. Nil if none does.
	Class *UMLClass

	// ClassDiagram names the diagram Class came from.
	ClassDiagram string

	// Relationships mentioning the symbol, collected from every diagram
	// whose class table holds the name, in diagram order. Unique by
	// (source, target, type).
	Relationships []UMLRelationship

	// Diagrams lists every diagram that contributed, sorted.
	Diagrams []string
}

// Found reports whether any diagram mentions the symbol.
func (v UMLView) Found() bool {
	return v.Class != nil
}

// Catalog is the immutable set of loaded records.
//
// Thread Safety: Immutable after NewCatalog; safe for concurrent reads.
type Catalog struct {
	api      map[string]*APIRecord
	diagrams []*UMLDiagram
}

// NewCatalog indexes API records by name and sorts diagrams by name.
//
// When two API records share a name the first one wins.
func NewCatalog(records []*APIRecord, diagrams []*UMLDiagram) *Catalog {
	c := &Catalog{
		api:      make(map[string]*APIRecord, len(records)),
		diagrams: append([]*UMLDiagram(nil), diagrams...),
	}
	for _, r := range records {
		if r == nil {
			continue
		}
		if _, dup := c.api[r.Name]; !dup {
			c.api[r.Name] = r
		}
	}
	sort.SliceStable(c.diagrams, func(i, j int) bool {
		return c.diagrams[i].Diagram < c.diagrams[j].Diagram
	})
	return c
}

// APIRecord returns the API record for name.
func (c *Catalog) APIRecord(name string) (*APIRecord, bool) {
	r, ok := c.api[name]
	return r, ok
}

// UMLView collects the diagram information for name.
func (c *Catalog) UMLView(name string) UMLView {
	var view UMLView
	type relKey struct{ source, target, typ string }
	seen := make(map[relKey]bool)

	for _, d := range c.diagrams {
		class, ok := d.Classes[name]
		if !ok {
			continue
		}
		contributed := false
		if view.Class == nil {
			cl := class
			view.Class = &cl
			view.ClassDiagram = d.Diagram
			contributed = true
		}
		for _, rel := range d.Relationships {
			if !rel.Mentions(name) {
				continue
			}
			k := relKey{rel.Source, rel.Target, rel.Type}
			if seen[k] {
				continue
			}
			seen[k] = true
			view.Relationships = append(view.Relationships, rel)
			contributed = true
		}
		if contributed {
			view.Diagrams = append(view.Diagrams, d.Diagram)
		}
	}
	sort.Strings(view.Diagrams)
	return view
}

// Names returns the candidate symbol universe: API names, UML class names
// and relationship endpoints, sorted and unique.
//
// Endpoints that appear only in relationships have no record of their own;
// the fusion stage reports them as missing sources.
func (c *Catalog) Names() []string {
	set := make(map[string]struct{}, len(c.api))
	for name := range c.api {
		set[name] = struct{}{}
	}
	for _, d := range c.diagrams {
		for name := range d.Classes {
			set[name] = struct{}{}
		}
		for _, rel := range d.Relationships {
			set[rel.Source] = struct{}{}
			set[rel.Target] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// APICount returns the number of API records.
func (c *Catalog) APICount() int {
	return len(c.api)
}

// Diagrams returns the loaded diagrams in name order.
func (c *Catalog) Diagrams() []*UMLDiagram {
	return c.diagrams
}
