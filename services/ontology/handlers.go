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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianOntology/services/ontology/export"
	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
	"github.com/AleutianAI/AleutianOntology/services/ontology/index"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/AleutianAI/AleutianOntology/services/ontology/telemetry"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeNoGraph           = "NO_GRAPH"
	CodeNoReport          = "NO_REPORT"
	CodeNodeNotFound      = "NODE_NOT_FOUND"
	CodeMissingParameter  = "MISSING_PARAMETER"
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeUnknownFormat     = "UNKNOWN_FORMAT"
	CodeSnapshotsDisabled = "SNAPSHOTS_NOT_AVAILABLE"
	CodeSnapshotNotFound  = "SNAPSHOT_NOT_FOUND"
	CodeInternal          = "INTERNAL_ERROR"
)

// Handlers serves the /v1/ontology endpoints.
//
// Thread Safety: Safe for concurrent use. Handlers only read the service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth handles GET /v1/ontology/health.
//
// Always 200. graph_loaded is false until a graph is published.
func (h *Handlers) HandleHealth(c *gin.Context) {
	getOrCreateRequestID(c)

	resp := HealthResponse{
		Status:      "healthy",
		Version:     ServiceVersion,
		UptimeMilli: time.Since(h.svc.startedAt).Milliseconds(),
	}
	if p, err := h.svc.Current(); err == nil {
		resp.GraphLoaded = true
		resp.NodeCount = p.Graph.NodeCount()
		resp.EdgeCount = p.Graph.EdgeCount()
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/ontology/stats.
//
// Response:
//
//	200 OK: StatsResponse
//	503 Service Unavailable: No graph published
func (h *Handlers) HandleStats(c *gin.Context) {
	p, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, StatsResponse{
		CatalogRoot: p.Graph.CatalogRoot,
		GraphHash:   p.Graph.Hash(),
		Stats:       p.Graph.Stats(),
	})
}

// HandleReport handles GET /v1/ontology/report.
//
// Response:
//
//	200 OK: ReportResponse
//	404 Not Found: The graph was loaded from a snapshot and has no report
//	503 Service Unavailable: No graph published
func (h *Handlers) HandleReport(c *gin.Context) {
	p, ok := h.current(c)
	if !ok {
		return
	}
	if p.Report == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no build report for the published graph",
			Code:  CodeNoReport,
		})
		return
	}
	c.JSON(http.StatusOK, ReportResponse{Report: p.Report})
}

// HandleNodes handles GET /v1/ontology/nodes.
//
// Description:
//
//	Lists nodes sorted by name, filtered by the optional query parameters.
//
// Query Parameters:
//
//	domain: Domain name, e.g. Connectivity (optional)
//	concept: Concept name, e.g. Net (optional)
//	module: Module name (optional)
//	prefix: Name prefix, case-sensitive (optional)
//	limit: Page size, default 100 (optional)
//	offset: Page start (optional)
//
// Response:
//
//	200 OK: NodesResponse
//	400 Bad Request: Invalid limit or offset
//	503 Service Unavailable: No graph published
func (h *Handlers) HandleNodes(c *gin.Context) {
	p, ok := h.current(c)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(c)
	if !ok {
		return
	}

	nodes, total := p.Index.Nodes(index.Query{
		Domain:  model.Domain(c.Query("domain")),
		Concept: c.Query("concept"),
		Module:  c.Query("module"),
		Prefix:  c.Query("prefix"),
		Limit:   limit,
		Offset:  offset,
	})

	resp := NodesResponse{
		Nodes:  make([]NodeSummary, 0, len(nodes)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, nodeSummary(n))
	}
	c.JSON(http.StatusOK, resp)
}

// HandleNode handles GET /v1/ontology/nodes/:name.
//
// Response:
//
//	200 OK: NodeResponse with incoming and outgoing edges
//	404 Not Found: No node with that name
//	503 Service Unavailable: No graph published
func (h *Handlers) HandleNode(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	p, ok := h.current(c)
	if !ok {
		return
	}

	name := c.Param("name")
	view, found := p.Index.Get(name)
	if !found {
		requestLogger(c, requestID, "HandleNode").Debug("node not found", slog.String("name", name))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "node not found: " + name,
			Code:  CodeNodeNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, NodeResponse{
		Node:     nodeSummary(view.Node),
		Outgoing: serializableEdges(view.Outgoing),
		Incoming: serializableEdges(view.Incoming),
	})
}

// HandleEdges handles GET /v1/ontology/edges.
//
// Query Parameters:
//
//	type: Relation type, e.g. CONTAINS_MANY (optional)
//	provenance: Producer tag, e.g. api_inferred (optional)
//	source, target: Endpoint names (optional)
//	limit, offset: Paging (optional)
//
// Response:
//
//	200 OK: EdgesResponse
//	400 Bad Request: Unknown type or provenance, invalid paging
//	503 Service Unavailable: No graph published
func (h *Handlers) HandleEdges(c *gin.Context) {
	p, ok := h.current(c)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(c)
	if !ok {
		return
	}

	q := index.EdgeQuery{
		Source: c.Query("source"),
		Target: c.Query("target"),
		Limit:  limit,
		Offset: offset,
	}
	if t := c.Query("type"); t != "" {
		rt, err := model.ParseRelationType(t)
		if err != nil {
			badParameter(c, err.Error())
			return
		}
		q.Type = rt
	}
	if prov := c.Query("provenance"); prov != "" {
		q.Provenance = model.Provenance(prov)
		if !q.Provenance.IsValid() {
			badParameter(c, "unknown provenance: "+prov)
			return
		}
	}

	edges, total := p.Index.Edges(q)
	c.JSON(http.StatusOK, EdgesResponse{
		Edges:  serializableEdges(edges),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// HandleSearch handles GET /v1/ontology/search?q=.
//
// Response:
//
//	200 OK: SearchResponse ranked best first
//	400 Bad Request: Missing q
//	503 Service Unavailable: No graph published
func (h *Handlers) HandleSearch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	p, ok := h.current(c)
	if !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "q parameter is required",
			Code:  CodeMissingParameter,
		})
		return
	}
	limit, _, ok := pageParams(c)
	if !ok {
		return
	}

	hits, err := p.Index.Search(c.Request.Context(), query, limit)
	if err != nil {
		requestLogger(c, requestID, "HandleSearch").Warn("search aborted", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: CodeInternal})
		return
	}
	if hits == nil {
		hits = []index.SearchHit{}
	}
	c.JSON(http.StatusOK, SearchResponse{Query: query, Hits: hits})
}

// HandleExport handles GET /v1/ontology/export/:format.
//
// Description:
//
//	Streams the published graph in the requested format with a
//	Content-Disposition attachment header.
//
// Response:
//
//	200 OK: The exported document
//	404 Not Found: Unknown format
//	503 Service Unavailable: No graph published
func (h *Handlers) HandleExport(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleExport")

	p, ok := h.current(c)
	if !ok {
		return
	}

	exp, err := h.svc.Registry().Get(c.Param("format"))
	if errors.Is(err, export.ErrUnknownFormat) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeUnknownFormat})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal})
		return
	}

	sg := p.Graph.ToSerializable()
	logger.Info("exporting graph",
		slog.String("format", exp.Format()),
		slog.Int("nodes", len(sg.Nodes)),
		slog.Int("edges", len(sg.Edges)),
	)

	c.Header("Content-Disposition", "attachment; filename=ontology"+exp.Extension())
	c.Header("Content-Type", exp.ContentType())
	c.Status(http.StatusOK)
	if err := exp.Export(c.Writer, sg); err != nil {
		// Headers are already sent.
		logger.Error("export failed", slog.Any("error", err))
	}
}

// HandleListSnapshots handles GET /v1/ontology/snapshots.
//
// Query Parameters:
//
//	catalog_root: Filter by catalog root (optional)
//	limit: Maximum results, default 100 (optional)
//
// Response:
//
//	200 OK: ListSnapshotsResponse, newest first
//	503 Service Unavailable: Snapshot persistence not configured
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	mgr, ok := h.snapshots(c)
	if !ok {
		return
	}
	limit, _, ok := pageParams(c)
	if !ok {
		return
	}

	catalogHash := ""
	if root := c.Query("catalog_root"); root != "" {
		catalogHash = graph.CatalogHash(root)
	}

	snapshots, err := mgr.List(c.Request.Context(), catalogHash, limit)
	if err != nil {
		requestLogger(c, requestID, "HandleListSnapshots").Error("failed to list snapshots", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list snapshots: " + err.Error(),
			Code:  CodeInternal,
		})
		return
	}
	if snapshots == nil {
		snapshots = []*graph.SnapshotMetadata{}
	}
	c.JSON(http.StatusOK, ListSnapshotsResponse{Snapshots: snapshots})
}

// HandleLoadSnapshot handles GET /v1/ontology/snapshots/:id.
//
// Response:
//
//	200 OK: LoadSnapshotResponse
//	404 Not Found: Snapshot not found
//	503 Service Unavailable: Snapshot persistence not configured
func (h *Handlers) HandleLoadSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	mgr, ok := h.snapshots(c)
	if !ok {
		return
	}

	id := c.Param("id")
	g, meta, err := mgr.Load(c.Request.Context(), id)
	if err != nil {
		snapshotError(c, requestID, "HandleLoadSnapshot", err)
		return
	}
	c.JSON(http.StatusOK, LoadSnapshotResponse{
		Metadata:  meta,
		NodeCount: g.NodeCount(),
		EdgeCount: g.EdgeCount(),
		GraphHash: g.Hash(),
	})
}

// HandleDiffSnapshots handles GET /v1/ontology/snapshots/diff.
//
// Query Parameters:
//
//	base: Base snapshot ID (required)
//	target: Target snapshot ID (required)
//
// Response:
//
//	200 OK: SnapshotDiffResponse
//	400 Bad Request: Missing base or target
//	404 Not Found: A snapshot was not found
//	503 Service Unavailable: Snapshot persistence not configured
func (h *Handlers) HandleDiffSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	mgr, ok := h.snapshots(c)
	if !ok {
		return
	}

	baseID, targetID := c.Query("base"), c.Query("target")
	if baseID == "" || targetID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "both 'base' and 'target' parameters are required",
			Code:  CodeMissingParameter,
		})
		return
	}

	base, _, err := mgr.Load(c.Request.Context(), baseID)
	if err != nil {
		snapshotError(c, requestID, "HandleDiffSnapshots", err)
		return
	}
	target, _, err := mgr.Load(c.Request.Context(), targetID)
	if err != nil {
		snapshotError(c, requestID, "HandleDiffSnapshots", err)
		return
	}

	diff, err := graph.DiffSnapshots(base, target, baseID, targetID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal})
		return
	}
	c.JSON(http.StatusOK, SnapshotDiffResponse{Diff: diff})
}

// current writes 503 and returns false when nothing is published.
func (h *Handlers) current(c *gin.Context) (*Published, bool) {
	p, err := h.svc.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "no graph published",
			Code:  CodeNoGraph,
		})
		return nil, false
	}
	return p, true
}

// snapshots writes 503 and returns false when persistence is off.
func (h *Handlers) snapshots(c *gin.Context) (*graph.SnapshotManager, bool) {
	mgr := h.svc.Snapshots()
	if mgr == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: errSnapshotsDisabled.Error(),
			Code:  CodeSnapshotsDisabled,
		})
		return nil, false
	}
	return mgr, true
}

func snapshotError(c *gin.Context, requestID, handler string, err error) {
	if errors.Is(err, graph.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeSnapshotNotFound})
		return
	}
	requestLogger(c, requestID, handler).Error("snapshot load failed", slog.Any("error", err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal})
}

// pageParams parses limit and offset. Writes 400 and returns false on a
// malformed value.
func pageParams(c *gin.Context) (limit, offset int, ok bool) {
	limit = index.DefaultLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			badParameter(c, "limit must be a positive integer")
			return 0, 0, false
		}
		limit = n
	}
	if s := c.Query("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			badParameter(c, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func badParameter(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeInvalidParameter})
}

func nodeSummary(n *graph.Node) NodeSummary {
	return NodeSummary{ID: n.ID, Symbol: n.Symbol, Degree: n.Degree()}
}

func serializableEdges(edges []*graph.Edge) []graph.SerializableEdge {
	out := make([]graph.SerializableEdge, 0, len(edges))
	for _, e := range edges {
		out = append(out, graph.NewSerializableEdge(e))
	}
	return out
}

const requestIDKey = "request_id"

// getOrCreateRequestID returns the request ID of c, taking it from the
// X-Request-ID header or generating one on first use, and echoes it back.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	c.Set(requestIDKey, requestID)
	return requestID
}

func requestLogger(c *gin.Context, requestID, handler string) *slog.Logger {
	logger := slog.With(slog.String("request_id", requestID), slog.String("handler", handler))
	return telemetry.LoggerWithTrace(c.Request.Context(), logger)
}

