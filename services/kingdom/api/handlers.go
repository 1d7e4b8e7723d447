// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves a frozen kingdom over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AleutianAI/kequality/pkg/telemetry"
	"github.com/AleutianAI/kequality/services/kingdom"
	"github.com/AleutianAI/kequality/services/kingdom/ingest"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers holds the HTTP handlers for the kingdom endpoints.
//
// Thread Safety: Safe for concurrent use; the resolver is read-only.
type Handlers struct {
	resolver *kingdom.Resolver
	limits   ingest.Limits
	workers  int
	logger   *slog.Logger
}

// Options configures Handlers.
type Options struct {
	// Limits bound the size of request bodies. Zero fields are unlimited.
	Limits ingest.Limits

	// Workers is the batch concurrency. Values <= 1 solve sequentially.
	Workers int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewHandlers creates handlers over a resolver.
func NewHandlers(resolver *kingdom.Resolver, opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		resolver: resolver,
		limits:   opts.Limits,
		workers:  opts.Workers,
		logger:   logger,
	}
}

// HandleSolve handles POST /v1/kingdom/solve.
//
// Request Body:
//
//	SolveRequest
//
// Response:
//
//	200 OK: kingdom.Verdict
//	400 Bad Request: Malformed body, unknown city or oversized query
//	503 Service Unavailable: Request cancelled
func (h *Handlers) HandleSolve(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.requestLogger(c, requestID, "HandleSolve")

	var req SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "Invalid request body",
			Code:      "INVALID_REQUEST",
			RequestID: requestID,
		})
		return
	}
	if err := h.checkQuerySize(req.Cities); err != nil {
		logger.Warn("Query rejected", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Code:      "QUERY_TOO_LARGE",
			RequestID: requestID,
		})
		return
	}

	verdict, err := h.resolver.Explain(c.Request.Context(), req.Cities)
	if err != nil {
		h.writeSolveError(c, logger, requestID, err)
		return
	}

	logger.Debug("Query solved",
		"cities", len(req.Cities),
		"answer", verdict.Answer,
		"rejection", verdict.Rejection.String())
	c.JSON(http.StatusOK, verdict)
}

// HandleSolveBatch handles POST /v1/kingdom/solve/batch.
//
// Response:
//
//	200 OK: BatchResponse
//	400 Bad Request: Malformed body, unknown city or oversized batch
//	503 Service Unavailable: Request cancelled
func (h *Handlers) HandleSolveBatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.requestLogger(c, requestID, "HandleSolveBatch")

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "Invalid request body",
			Code:      "INVALID_REQUEST",
			RequestID: requestID,
		})
		return
	}

	if h.limits.MaxQueries > 0 && len(req.Queries) > h.limits.MaxQueries {
		err := fmt.Errorf("%w: %d queries (max %d)", ingest.ErrLimitExceeded, len(req.Queries), h.limits.MaxQueries)
		logger.Warn("Batch rejected", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Code:      "BATCH_TOO_LARGE",
			RequestID: requestID,
		})
		return
	}
	for i, q := range req.Queries {
		if err := h.checkQuerySize(q); err != nil {
			logger.Warn("Batch rejected", "query", i+1, "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:     fmt.Sprintf("query %d: %v", i+1, err),
				Code:      "QUERY_TOO_LARGE",
				RequestID: requestID,
			})
			return
		}
	}

	answers, err := h.resolver.SolveBatch(c.Request.Context(), req.Queries, h.workers)
	if err != nil {
		h.writeSolveError(c, logger, requestID, err)
		return
	}

	logger.Info("Batch solved", "queries", len(req.Queries))
	c.JSON(http.StatusOK, BatchResponse{Answers: answers})
}

// HandleCity handles GET /v1/kingdom/cities/:id.
//
// Response:
//
//	200 OK: CityResponse
//	400 Bad Request: id is not an integer
//	404 Not Found: id is outside the kingdom
func (h *Handlers) HandleCity(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "city id must be an integer",
			Code:      "INVALID_PARAMETER",
			RequestID: requestID,
		})
		return
	}

	forest := h.resolver.Forest()
	city := kingdom.CityID(id)
	if !forest.Contains(city) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     fmt.Sprintf("city %d: %v", id, kingdom.ErrCityOutOfRange),
			Code:      "CITY_NOT_FOUND",
			RequestID: requestID,
		})
		return
	}

	tree := forest.TreeID(city)
	c.JSON(http.StatusOK, CityResponse{
		ID:          city,
		Tree:        tree,
		Parent:      forest.Parent(city),
		Depth:       forest.Depth(city),
		SubtreeSize: forest.SubtreeSize(city),
		TreeSize:    forest.TreeSize(tree),
		Neighbors:   forest.Neighbors(city),
	})
}

// HandleStats handles GET /v1/kingdom/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, StatsResponse{
		Forest:  h.resolver.Forest().Stats(),
		Cache:   h.resolver.CacheStats(),
		Pairing: h.resolver.Pairing().String(),
	})
}

// HandleHealth handles GET /v1/kingdom/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Cities:  h.resolver.Forest().CityCount(),
	})
}

func (h *Handlers) checkQuerySize(q []kingdom.CityID) error {
	if h.limits.MaxQuerySize > 0 && len(q) > h.limits.MaxQuerySize {
		return fmt.Errorf("%w: %d cities (max %d)", ingest.ErrLimitExceeded, len(q), h.limits.MaxQuerySize)
	}
	return nil
}

// writeSolveError maps resolver errors to status codes.
func (h *Handlers) writeSolveError(c *gin.Context, logger *slog.Logger, requestID string, err error) {
	statusCode := http.StatusInternalServerError
	errCode := "SOLVE_FAILED"

	switch {
	case errors.Is(err, kingdom.ErrEmptyQuery):
		statusCode = http.StatusBadRequest
		errCode = "EMPTY_QUERY"
	case errors.Is(err, kingdom.ErrCityOutOfRange):
		statusCode = http.StatusBadRequest
		errCode = "CITY_OUT_OF_RANGE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		statusCode = http.StatusServiceUnavailable
		errCode = "CANCELLED"
	}

	if statusCode == http.StatusInternalServerError {
		logger.Error("Solve failed", "error", err)
	} else {
		logger.Warn("Solve rejected", "error", err, "code", errCode)
	}
	c.JSON(statusCode, ErrorResponse{
		Error:     err.Error(),
		Code:      errCode,
		RequestID: requestID,
	})
}

// requestLogger tags entries with the request and, when tracing, the trace id.
func (h *Handlers) requestLogger(c *gin.Context, requestID, handler string) *slog.Logger {
	logger := h.logger.With("request_id", requestID, "handler", handler)
	if traceID := telemetry.TraceID(c.Request.Context()); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}
	return logger
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
