// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs the fusion stages in order and reports on the run.
//
// Stages run strictly in sequence:
//
//	load -> fuse -> infer -> classify -> build -> snapshot (optional)
//
// Only the fuse stage fans out. Per-item problems never fail a run; they are
// collected in the Report. A run fails only when input directories cannot be
// read, the context is cancelled, or a configured snapshot cannot be saved.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianOntology/services/ontology/classify"
	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/fusion"
	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/inference"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/AleutianAI/AleutianOntology/services/ontology/normalize"
	"github.com/AleutianAI/AleutianOntology/services/ontology/source"
)

var tracer = otel.Tracer("ontology.pipeline")

// Stage names used in spans and metrics.
const (
	StageLoad     = "load"
	StageFuse     = "fuse"
	StageInfer    = "infer"
	StageClassify = "classify"
	StageBuild    = "build"
	StageSnapshot = "snapshot"
)

// ErrIncompleteBuild is returned when the graph build was interrupted.
var ErrIncompleteBuild = errors.New("graph build incomplete")

// Options configures a Pipeline.
type Options struct {
	// Logger receives stage diagnostics. Default: slog.Default()
	Logger *slog.Logger

	// Snapshots persists the built graph when set.
	Snapshots *graph.SnapshotManager

	// SnapshotLabel is recorded on saved snapshots.
	SnapshotLabel string

	// FusionProgress is forwarded to the fusion engine.
	FusionProgress fusion.ProgressFunc
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Options)

// WithLogger sets the pipeline logger. Stages log through it too.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithSnapshots saves every successful build to mgr under label.
func WithSnapshots(mgr *graph.SnapshotManager, label string) Option {
	return func(o *Options) {
		o.Snapshots = mgr
		o.SnapshotLabel = label
	}
}

// WithFusionProgress sets the fusion progress callback.
func WithFusionProgress(fn fusion.ProgressFunc) Option {
	return func(o *Options) {
		o.FusionProgress = fn
	}
}

// Pipeline wires the stage engines for one configuration.
//
// Thread Safety:
//
//	Safe for concurrent Run calls. Every engine is immutable after New.
type Pipeline struct {
	cfg        config.PipelineConfig
	options    Options
	fuser      *fusion.Engine
	inferrer   *inference.Engine
	classifier *classify.Classifier
	builder    *graph.Builder
}

// New builds the stage engines for cfg.
//
// Description:
//
//	Loads the vocabulary and taxonomy (from the configured files, or the
//	embedded defaults) and constructs the normalizer, fusion engine,
//	inference engine, classifier and graph builder.
//
// Inputs:
//
//	ctx - Context for rule table loading.
//	cfg - Pipeline configuration. Directories are only read by Run.
//	opts - Functional options.
//
// Outputs:
//
//	*Pipeline - Ready to run.
//	error - Non-nil if a rule table cannot be loaded or compiled.
func New(ctx context.Context, cfg config.PipelineConfig, opts ...Option) (*Pipeline, error) {
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	vocab, err := loadVocabulary(ctx, cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}
	taxonomy, err := loadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return nil, err
	}
	normalizer, err := normalize.New(vocab.ScrubRules)
	if err != nil {
		return nil, fmt.Errorf("compiling scrub rules: %w", err)
	}
	inferrer, err := inference.NewEngine(vocab, taxonomy, cfg.Inference, inference.WithLogger(options.Logger))
	if err != nil {
		return nil, fmt.Errorf("compiling inference rules: %w", err)
	}

	fusionOpts := []fusion.EngineOption{
		fusion.WithWorkerCount(cfg.EffectiveWorkers()),
		fusion.WithLogger(options.Logger),
	}
	if options.FusionProgress != nil {
		fusionOpts = append(fusionOpts, fusion.WithProgressCallback(options.FusionProgress))
	}

	return &Pipeline{
		cfg:        cfg,
		options:    options,
		fuser:      fusion.NewEngine(vocab, normalizer, fusionOpts...),
		inferrer:   inferrer,
		classifier: classify.NewClassifier(taxonomy),
		builder: graph.NewBuilder(
			graph.WithCatalogRoot(CatalogRoot(cfg)),
			graph.WithDescriptionLimit(cfg.DescriptionLimit),
			graph.WithLogger(options.Logger),
		),
	}, nil
}

func loadVocabulary(ctx context.Context, path string) (*config.Vocabulary, error) {
	if path == "" {
		return config.GetVocabulary(ctx)
	}
	return config.LoadVocabulary(ctx, path)
}

func loadTaxonomy(path string) (*config.Taxonomy, error) {
	if path == "" {
		return config.DefaultTaxonomy()
	}
	return config.LoadTaxonomy(path)
}

// CatalogRoot identifies the catalog a configuration reads. Snapshots are
// grouped by it.
//
// It is the shared parent of the two record directories, or both cleaned
// paths joined by "+" when they do not share one.
func CatalogRoot(cfg config.PipelineConfig) string {
	api := filepath.Clean(cfg.APIDir)
	uml := filepath.Clean(cfg.UMLDir)
	if filepath.Dir(api) == filepath.Dir(uml) {
		return filepath.Dir(api)
	}
	return api + "+" + uml
}

// Run is the output of one pipeline run.
type Run struct {
	// ID identifies the run in logs and reports.
	ID string

	Symbols         *model.SymbolSet
	Classifications map[string]model.Classification
	Statements      []model.Relationship

	// Graph is the frozen ontology graph.
	Graph *graph.Graph

	Report *Report

	// Snapshot is set when the graph was persisted.
	Snapshot *graph.SnapshotMetadata
}

// Run loads the configured record directories and runs every stage.
//
// Outputs:
//
//	*Run - The run output. Nil unless the graph was built.
//	error - Non-nil if a directory cannot be read, ctx is cancelled, or the
//	        snapshot save fails. A failed save still returns the Run.
func (p *Pipeline) Run(ctx context.Context) (*Run, error) {
	if ctx == nil {
		return nil, fmt.Errorf("pipeline.Run: ctx must not be nil")
	}
	start := time.Now()
	catalog, load, err := source.Load(ctx, p.cfg.APIDir, p.cfg.UMLDir)
	observeStage(StageLoad, start)
	if err != nil {
		runsTotal.WithLabelValues(outcome(ctx)).Inc()
		return nil, fmt.Errorf("loading records: %w", err)
	}
	return p.RunCatalog(ctx, catalog, load)
}

// RunCatalog runs every stage after load over an already loaded catalog.
//
// Description:
//
//	Fuses the catalog, infers statements over the published symbol set,
//	classifies every symbol, builds and freezes the graph, and saves a
//	snapshot when configured. load may be nil when the catalog was not
//	read from disk.
//
// Outputs:
//
//	*Run - The run output. Nil unless the graph was built.
//	error - Non-nil if ctx is cancelled or the snapshot save fails.
func (p *Pipeline) RunCatalog(ctx context.Context, catalog *source.Catalog, load *source.LoadResult) (*Run, error) {
	if ctx == nil {
		return nil, fmt.Errorf("pipeline.RunCatalog: ctx must not be nil")
	}
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	started := time.Now()
	run := &Run{ID: uuid.NewString()}
	logger := p.options.Logger.With(slog.String("run_id", run.ID))
	span.SetAttributes(attribute.String("pipeline.run_id", run.ID))

	fail := func(stage string, err error) (*Run, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		runsTotal.WithLabelValues(outcome(ctx)).Inc()
		logger.Error("pipeline stage failed", slog.String("stage", stage), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	t := time.Now()
	fused, err := p.fuser.FuseAll(ctx, catalog)
	observeStage(StageFuse, t)
	if err != nil {
		return fail(StageFuse, err)
	}
	run.Symbols = fused.Symbols

	t = time.Now()
	inferred := p.inferrer.Infer(ctx, fused.Symbols)
	observeStage(StageInfer, t)
	run.Statements = inferred.Statements

	t = time.Now()
	classified := p.classifier.ClassifyAll(ctx, fused.Symbols)
	observeStage(StageClassify, t)
	run.Classifications = classified.Classifications

	t = time.Now()
	built, err := p.builder.Build(ctx, fused.Symbols, classified.Classifications, inferred.Statements)
	observeStage(StageBuild, t)
	if err != nil {
		return fail(StageBuild, err)
	}
	if built.Incomplete {
		cause := ErrIncompleteBuild
		if ctxErr := ctx.Err(); ctxErr != nil {
			cause = fmt.Errorf("%w: %w", ErrIncompleteBuild, ctxErr)
		}
		return fail(StageBuild, cause)
	}
	run.Graph = built.Graph

	report := newReport(run.ID, CatalogRoot(p.cfg), load, fused, inferred, classified, built)
	report.StartedAtMilli = started.UnixMilli()
	run.Report = report

	var saveErr error
	if p.options.Snapshots != nil {
		t = time.Now()
		meta, err := p.options.Snapshots.Save(ctx, run.Graph, p.options.SnapshotLabel)
		observeStage(StageSnapshot, t)
		if err != nil {
			saveErr = fmt.Errorf("%s: %w", StageSnapshot, err)
			span.RecordError(saveErr)
			logger.Error("snapshot save failed", slog.Any("error", err))
		} else {
			run.Snapshot = meta
			report.SnapshotID = meta.SnapshotID
		}
	}

	report.DurationMilli = time.Since(started).Milliseconds()
	recordReportMetrics(report)
	span.SetAttributes(
		attribute.Int("pipeline.symbols", report.Symbols),
		attribute.Int("pipeline.nodes", report.Graph.NodeCount),
		attribute.Int("pipeline.edges", report.Graph.EdgeCount),
	)

	if saveErr != nil {
		span.SetStatus(codes.Error, StageSnapshot)
		runsTotal.WithLabelValues("failed").Inc()
		return run, saveErr
	}
	runsTotal.WithLabelValues("success").Inc()
	logger.Info("pipeline run complete", slog.Any("report", report))
	return run, nil
}

func observeStage(stage string, start time.Time) {
	stageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// outcome labels a failed run.
func outcome(ctx context.Context) string {
	if ctx.Err() != nil {
		return "cancelled"
	}
	return "failed"
}
