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
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the file name looked up when no path is given.
const DefaultConfigFile = "ontology.yaml"

// Defaults for PipelineConfig.
const (
	DefaultWorkers          = 4
	DefaultDescriptionLimit = 200
	DefaultPort             = 8080
)

// PipelineConfig holds the settings of one fusion run and its outer surfaces.
//
// Description:
//
//	Loaded from an optional ontology.yaml. All fields have defaults from
//	DefaultPipelineConfig; a missing file is not an error. Environment
//	variables override file values (see applyEnvOverrides).
//
// Thread Safety: Safe for concurrent reads after construction.
type PipelineConfig struct {
	// APIDir holds <module>/class<Name>.yaml API records.
	APIDir string `yaml:"api_dir" validate:"required"`

	// UMLDir holds per-diagram UML JSON records.
	UMLDir string `yaml:"uml_dir" validate:"required"`

	// SnapshotDir is the BadgerDB directory for graph snapshots.
	// Empty disables persistence.
	SnapshotDir string `yaml:"snapshot_dir"`

	// Workers bounds the fusion fan-out. Zero means DefaultWorkers.
	Workers int `yaml:"workers" validate:"gte=0,lte=256"`

	// DescriptionLimit truncates node descriptions. Zero disables truncation.
	DescriptionLimit int `yaml:"description_limit" validate:"gte=0"`

	// TaxonomyFile replaces the embedded taxonomy when set.
	TaxonomyFile string `yaml:"taxonomy_file"`

	// VocabularyFile replaces the embedded vocabulary when set.
	VocabularyFile string `yaml:"vocabulary_file"`

	// Inference toggles the relationship inference rule families.
	Inference InferenceConfig `yaml:"inference"`

	// Export configures the exporters run after a build.
	Export ExportConfig `yaml:"export"`

	// Server configures the read-only HTTP API.
	Server ServerConfig `yaml:"server"`
}

// InferenceConfig toggles rule families of the inference engine.
type InferenceConfig struct {
	Accessors    bool `yaml:"accessors"`
	Patterns     bool `yaml:"patterns"`
	Factories    bool `yaml:"factories"`
	Dependencies bool `yaml:"dependencies"`
}

// ExportConfig selects exporters and their output directory.
type ExportConfig struct {
	Formats   []string `yaml:"formats" validate:"dive,oneof=json graphml cypher"`
	OutputDir string   `yaml:"output_dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port  int  `yaml:"port" validate:"gte=0,lte=65535"`
	Debug bool `yaml:"debug"`
}

// DefaultPipelineConfig returns a config with every rule family enabled.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Workers:          DefaultWorkers,
		DescriptionLimit: DefaultDescriptionLimit,
		Inference: InferenceConfig{
			Accessors:    true,
			Patterns:     true,
			Factories:    true,
			Dependencies: true,
		},
		Export: ExportConfig{
			Formats:   []string{"json"},
			OutputDir: "output",
		},
		Server: ServerConfig{Port: DefaultPort},
	}
}

// LoadPipelineConfig reads the pipeline config file.
//
// Description:
//
//	Loads .env (if present) into the process environment, reads the YAML
//	file at path over the defaults, then applies environment overrides.
//	If path is empty or the file does not exist, the defaults are used with
//	no error. Only returns an error if the file exists but cannot be read
//	or parsed, or an override has an invalid value.
//
// Inputs:
//
//	path - Config file path. May be empty.
//
// Outputs:
//
//	PipelineConfig - The merged config. Not yet validated; call Validate
//	after applying command-line flags.
//	error - Non-nil on unreadable or invalid input.
//
// Thread Safety: Not safe for concurrent use (mutates process environment
// via godotenv on first call).
func LoadPipelineConfig(path string) (PipelineConfig, error) {
	_ = godotenv.Load()

	cfg := DefaultPipelineConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return PipelineConfig{}, fmt.Errorf("parsing %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return PipelineConfig{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return PipelineConfig{}, err
	}
	return cfg, nil
}

// applyEnvOverrides applies ONTOLOGY_* environment variables to cfg.
func applyEnvOverrides(cfg *PipelineConfig) error {
	if v := os.Getenv("ONTOLOGY_API_DIR"); v != "" {
		cfg.APIDir = v
	}
	if v := os.Getenv("ONTOLOGY_UML_DIR"); v != "" {
		cfg.UMLDir = v
	}
	if v := os.Getenv("ONTOLOGY_SNAPSHOT_DIR"); v != "" {
		cfg.SnapshotDir = v
	}
	if v := os.Getenv("ONTOLOGY_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ONTOLOGY_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	return nil
}

// Validate checks the config against its struct tags.
func (c PipelineConfig) Validate() error {
	if err := rulesValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	return nil
}

// EffectiveWorkers returns Workers, or DefaultWorkers when unset.
func (c PipelineConfig) EffectiveWorkers() int {
	if c.Workers <= 0 {
		return DefaultWorkers
	}
	return c.Workers
}
