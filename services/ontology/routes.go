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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ServiceName names the HTTP server in traces.
const ServiceName = "ontology-service"

// RegisterRoutes registers the /v1/ontology routes on rg.
//
// Endpoints:
//
//	GET /v1/ontology/health - Health check
//	GET /v1/ontology/stats - Graph statistics
//	GET /v1/ontology/report - Build report of the published graph
//	GET /v1/ontology/nodes - List nodes (domain, concept, module, prefix, limit, offset)
//	GET /v1/ontology/nodes/:name - Node with incoming and outgoing edges
//	GET /v1/ontology/edges - List edges (type, provenance, source, target, limit, offset)
//	GET /v1/ontology/search - Ranked name search (q, limit)
//	GET /v1/ontology/export/:format - Export as json, graphml or cypher
//	GET /v1/ontology/snapshots - List snapshots (catalog_root, limit)
//	GET /v1/ontology/snapshots/diff - Compare two snapshots (base, target)
//	GET /v1/ontology/snapshots/:id - Snapshot metadata and counts
//
// Example:
//
//	v1 := router.Group("/v1")
//	ontology.RegisterRoutes(v1, ontology.NewHandlers(svc))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	o := rg.Group("/ontology")
	o.Use(RequestID())
	{
		o.GET("/health", handlers.HandleHealth)
		o.GET("/stats", handlers.HandleStats)
		o.GET("/report", handlers.HandleReport)

		o.GET("/nodes", handlers.HandleNodes)
		o.GET("/nodes/:name", handlers.HandleNode)
		o.GET("/edges", handlers.HandleEdges)
		o.GET("/search", handlers.HandleSearch)

		o.GET("/export/:format", handlers.HandleExport)

		// diff must be registered before the :id wildcard
		o.GET("/snapshots", handlers.HandleListSnapshots)
		o.GET("/snapshots/diff", handlers.HandleDiffSnapshots)
		o.GET("/snapshots/:id", handlers.HandleLoadSnapshot)
	}
}

// RequestID ensures every response carries an X-Request-ID header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		getOrCreateRequestID(c)
		c.Next()
	}
}

// NewRouter builds the full HTTP engine: recovery, otelgin tracing, the
// ontology routes and the Prometheus /metrics endpoint.
func NewRouter(svc *Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))

	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}
