// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ontology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianOntology/services/ontology/export"
	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/index"
	"github.com/AleutianAI/AleutianOntology/services/ontology/pipeline"
)

// ErrNoGraph is returned when nothing has been published yet.
var ErrNoGraph = errors.New("no graph published")

// Published is one graph generation served by the API.
type Published struct {
	Graph  *graph.Graph
	Index  *index.Index
	Report *pipeline.Report

	PublishedAtMilli int64
}

// ServiceOption is a functional option for configuring a Service.
type ServiceOption func(*Service)

// WithRegistry sets the exporters served by GET /export/:format.
func WithRegistry(r *export.Registry) ServiceOption {
	return func(s *Service) {
		s.registry = r
	}
}

// WithSnapshotManager enables the snapshot endpoints.
func WithSnapshotManager(m *graph.SnapshotManager) ServiceOption {
	return func(s *Service) {
		s.snapshots = m
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// Service holds the published graph generation.
//
// Description:
//
//	Handlers read the current generation; Publish swaps in a new one.
//	A generation is never mutated after publication, so a handler holding
//	one keeps a consistent view while a newer one is published.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Service struct {
	mu      sync.RWMutex
	current *Published

	registry  *export.Registry
	snapshots *graph.SnapshotManager
	logger    *slog.Logger
	startedAt time.Time
}

// NewService creates a service with nothing published.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{startedAt: time.Now()}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = export.DefaultRegistry()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Publish indexes g and makes it the served generation.
//
// Inputs:
//
//	g - A frozen graph.
//	report - The run report. May be nil for graphs loaded from snapshots.
//
// Outputs:
//
//	error - index.ErrGraphNotFrozen if g is nil or still building.
func (s *Service) Publish(g *graph.Graph, report *pipeline.Report) error {
	idx, err := index.New(g)
	if err != nil {
		return err
	}
	p := &Published{
		Graph:            g,
		Index:            idx,
		Report:           report,
		PublishedAtMilli: time.Now().UnixMilli(),
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	s.logger.Info("graph published",
		slog.String("catalog_root", g.CatalogRoot),
		slog.Int("nodes", g.NodeCount()),
		slog.Int("edges", g.EdgeCount()),
	)
	return nil
}

// Current returns the served generation, or ErrNoGraph.
func (s *Service) Current() (*Published, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoGraph
	}
	return s.current, nil
}

// BuildAndPublish runs p and publishes the resulting graph.
//
// Outputs:
//
//	*pipeline.Run - The run. Returned even if only the snapshot save failed,
//	                in which case the graph is still published.
//	error - The pipeline error, if any.
func (s *Service) BuildAndPublish(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Run, error) {
	run, err := p.Run(ctx)
	if run == nil {
		return nil, err
	}
	if pubErr := s.Publish(run.Graph, run.Report); pubErr != nil {
		return run, fmt.Errorf("publishing graph: %w", pubErr)
	}
	return run, err
}

// PublishLatestSnapshot loads the newest snapshot of catalogRoot and
// publishes it.
func (s *Service) PublishLatestSnapshot(ctx context.Context, catalogRoot string) (*graph.SnapshotMetadata, error) {
	if s.snapshots == nil {
		return nil, errSnapshotsDisabled
	}
	g, meta, err := s.snapshots.LoadLatest(ctx, graph.CatalogHash(catalogRoot))
	if err != nil {
		return nil, err
	}
	if err := s.Publish(g, nil); err != nil {
		return nil, err
	}
	return meta, nil
}

// Registry returns the exporter registry.
func (s *Service) Registry() *export.Registry {
	return s.registry
}

// Snapshots returns the snapshot manager, or nil when persistence is off.
func (s *Service) Snapshots() *graph.SnapshotManager {
	return s.snapshots
}

var errSnapshotsDisabled = errors.New("snapshot persistence not configured")
