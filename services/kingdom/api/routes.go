// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/AleutianAI/kequality/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers the /v1/kingdom/* endpoints.
//
// Endpoints:
//
//	POST /v1/kingdom/solve - Answer one query with its meeting point
//	POST /v1/kingdom/solve/batch - Answer many queries in order
//	GET  /v1/kingdom/cities/:id - Describe one city
//	GET  /v1/kingdom/stats - Forest and cache statistics
//	GET  /v1/kingdom/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	k := rg.Group("/kingdom")
	{
		k.POST("/solve", handlers.HandleSolve)
		k.POST("/solve/batch", handlers.HandleSolveBatch)
		k.GET("/cities/:id", handlers.HandleCity)
		k.GET("/stats", handlers.HandleStats)
		k.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds the full engine: recovery, tracing, /metrics and /v1.
func NewRouter(handlers *Handlers, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}
