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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
)

var tracer = otel.Tracer("ontology.source")

// MaxRecordFileSize bounds a single input file (8MB).
const MaxRecordFileSize = 8 * 1024 * 1024

// API record file name prefixes. The symbol name follows the prefix.
var apiFilePrefixes = []string{"class", "struct"}

// LoadResult summarizes one load.
type LoadResult struct {
	// APIRecords is the number of API records loaded.
	APIRecords int `json:"api_records"`

	// Diagrams is the number of UML diagrams loaded.
	Diagrams int `json:"diagrams"`

	// Errors lists every skipped file.
	Errors []RecordError `json:"errors,omitempty"`

	// DurationMilli is the wall time of the load.
	DurationMilli int64 `json:"duration_ms"`
}

// Load reads both record directories into a Catalog.
//
// Description:
//
//	Reads every API record under apiDir and every diagram under umlDir.
//	Files that fail to parse or validate are skipped and listed in
//	LoadResult.Errors. Only an unreadable directory or a cancelled context
//	fails the load.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	apiDir - Root of the API record tree.
//	umlDir - Directory of diagram JSON files.
//
// Outputs:
//
//	*Catalog - The loaded records. Nil on error.
//	*LoadResult - Counts and per-file errors. Nil on error.
//	error - Non-nil if a directory cannot be read or ctx is done.
func Load(ctx context.Context, apiDir, umlDir string) (*Catalog, *LoadResult, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("source.Load: ctx must not be nil")
	}
	ctx, span := tracer.Start(ctx, "source.Load")
	defer span.End()

	start := time.Now()
	result := &LoadResult{}

	records, recErrs, err := LoadAPIDir(ctx, apiDir)
	if err != nil {
		return nil, nil, err
	}
	result.Errors = append(result.Errors, recErrs...)

	diagrams, diagErrs, err := LoadUMLDir(ctx, umlDir)
	if err != nil {
		return nil, nil, err
	}
	result.Errors = append(result.Errors, diagErrs...)

	result.APIRecords = len(records)
	result.Diagrams = len(diagrams)
	result.DurationMilli = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.Int("source.api_records", result.APIRecords),
		attribute.Int("source.diagrams", result.Diagrams),
		attribute.Int("source.errors", len(result.Errors)),
	)
	slog.Info("records loaded",
		slog.String("api_dir", apiDir),
		slog.String("uml_dir", umlDir),
		slog.Int("api_records", result.APIRecords),
		slog.Int("diagrams", result.Diagrams),
		slog.Int("malformed", len(result.Errors)),
	)

	return NewCatalog(records, diagrams), result, nil
}

// LoadAPIDir reads <dir>/<module>/class<Name>.yaml and struct<Name>.yaml.
//
// Outputs:
//
//	[]*APIRecord - Loaded records in path order.
//	[]RecordError - Files that were skipped.
//	error - Non-nil if dir cannot be read or ctx is done.
func LoadAPIDir(ctx context.Context, dir string) ([]*APIRecord, []RecordError, error) {
	modules, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading api dir %s: %w", dir, err)
	}

	var records []*APIRecord
	var errs []RecordError
	for _, mod := range modules {
		if !mod.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		moduleDir := filepath.Join(dir, mod.Name())
		entries, err := os.ReadDir(moduleDir)
		if err != nil {
			errs = append(errs, RecordError{Path: moduleDir, Source: model.SourceAPI, Err: err})
			continue
		}
		for _, e := range entries {
			name, ok := apiSymbolName(e.Name())
			if e.IsDir() || !ok {
				continue
			}
			path := filepath.Join(moduleDir, e.Name())
			rec, err := ParseAPIRecord(path, name, mod.Name())
			if err != nil {
				slog.Warn("skipping malformed api record",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				errs = append(errs, RecordError{Path: path, Source: model.SourceAPI, Err: err})
				continue
			}
			records = append(records, rec)
		}
	}
	return records, errs, nil
}

// apiSymbolName extracts "oaNet" from "classoaNet.yaml".
func apiSymbolName(file string) (string, bool) {
	if !strings.HasSuffix(file, ".yaml") {
		return "", false
	}
	base := strings.TrimSuffix(file, ".yaml")
	for _, prefix := range apiFilePrefixes {
		if strings.HasPrefix(base, prefix) && len(base) > len(prefix) {
			return base[len(prefix):], true
		}
	}
	return "", false
}

// ParseAPIRecord reads one API record file.
//
// Inputs:
//
//	path - The YAML file.
//	name - Symbol name from the file name. Used when the record omits one.
//	module - The module directory name.
func ParseAPIRecord(path, name, module string) (*APIRecord, error) {
	data, err := readBounded(path)
	if err != nil {
		return nil, err
	}
	var rec APIRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if rec.Name == "" {
		rec.Name = name
	}
	if err := recordValidate.Struct(&rec); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	rec.Module = module
	rec.Path = path
	return &rec, nil
}

// LoadUMLDir reads every *.json diagram under dir, including nested
// directories, in path order.
func LoadUMLDir(ctx context.Context, dir string) ([]*UMLDiagram, []RecordError, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, nil, fmt.Errorf("reading uml dir %s: %w", dir, err)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.json", doublestar.WithFilesOnly())
	if err != nil {
		return nil, nil, fmt.Errorf("globbing uml dir %s: %w", dir, err)
	}
	sort.Strings(matches)

	var diagrams []*UMLDiagram
	var errs []RecordError
	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		d, err := ParseUMLDiagram(path)
		if err != nil {
			slog.Warn("skipping malformed uml diagram",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			errs = append(errs, RecordError{Path: path, Source: model.SourceUML, Err: err})
			continue
		}
		diagrams = append(diagrams, d)
	}
	return diagrams, errs, nil
}

// ParseUMLDiagram reads one diagram file. A missing diagram name defaults to
// the file name without its extension and "_imagemap" suffix.
func ParseUMLDiagram(path string) (*UMLDiagram, error) {
	data, err := readBounded(path)
	if err != nil {
		return nil, err
	}
	var d UMLDiagram
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}
	if d.Diagram == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		d.Diagram = strings.TrimSuffix(base, "_imagemap")
	}
	if err := recordValidate.Struct(&d); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	d.Path = path
	return &d, nil
}

func readBounded(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxRecordFileSize {
		return nil, fmt.Errorf("file exceeds maximum size (%d > %d)", info.Size(), MaxRecordFileSize)
	}
	return os.ReadFile(path)
}
