// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source loads the structured records produced by the API page
// scraper and the UML diagram reader.
//
// Two producers feed the fusion stage:
//
//	<api_dir>/<module>/class<Name>.yaml   one APIRecord per symbol
//	<api_dir>/<module>/struct<Name>.yaml
//	<uml_dir>/**/<diagram>.json           one UMLDiagram per diagram
//
// A file that fails to parse or validate is skipped and reported as a
// RecordError; it never aborts the load.
package source

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
)

// recordValidate validates decoded records.
var recordValidate = validator.New()

// APIRecord is one symbol page from the API reference.
type APIRecord struct {
	// Name is the join key. Defaults to the name encoded in the file name.
	Name         string              `yaml:"name" json:"name" validate:"required"`
	Description  string              `yaml:"description" json:"description"`
	Inheritance  []string            `yaml:"inheritance" json:"inheritance"`
	Methods      []model.MethodStub  `yaml:"methods" json:"methods" validate:"dive"`
	Enumerations map[string][]string `yaml:"enumerations" json:"enumerations"`

	// Module is the directory the record was found in. Not read from the file.
	Module string `yaml:"-" json:"module"`

	// Path is the file the record was loaded from.
	Path string `yaml:"-" json:"-"`
}

// Position is the bounding box of a class on its diagram.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// UMLClass is one class box on a diagram.
type UMLClass struct {
	Position    Position              `json:"position"`
	Href        string                `json:"href"`
	Description string                `json:"description,omitempty"`
	Methods     []model.MethodStub    `json:"methods" validate:"dive"`
	Attributes  []model.AttributeStub `json:"attributes" validate:"dive"`
}

// UMLRelationship is one connector read from a diagram.
type UMLRelationship struct {
	Source      string `json:"source" validate:"required"`
	Target      string `json:"target" validate:"required"`
	Type        string `json:"type" validate:"required"`
	Member      string `json:"member,omitempty"`
	Description string `json:"description,omitempty"`
}

// UMLDiagram is the output of the diagram reader for one diagram.
type UMLDiagram struct {
	Diagram       string              `json:"diagram" validate:"required"`
	Title         string              `json:"title"`
	Classes       map[string]UMLClass `json:"classes" validate:"dive"`
	Relationships []UMLRelationship   `json:"relationships" validate:"dive"`

	// Path is the file the diagram was loaded from.
	Path string `json:"-"`
}

// Mentions reports whether the relationship has name as an endpoint.
func (r UMLRelationship) Mentions(name string) bool {
	return r.Source == name || r.Target == name
}

// RecordError is a MalformedRecord: one input file that could not be used.
type RecordError struct {
	// Path is the offending file.
	Path string `json:"path"`

	// Source is the producer the file belongs to.
	Source model.Source `json:"source"`

	// Err is the parse or validation failure.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e RecordError) Error() string {
	return fmt.Sprintf("%s record %s: %v", e.Source, e.Path, e.Err)
}

// Unwrap returns the underlying error chain. Every RecordError matches
// model.ErrMalformedRecord.
func (e RecordError) Unwrap() []error {
	return []error{model.ErrMalformedRecord, e.Err}
}
