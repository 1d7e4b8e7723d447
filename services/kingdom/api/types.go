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
	"github.com/AleutianAI/kequality/services/kingdom"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// SolveRequest is the request body for POST /v1/kingdom/solve.
type SolveRequest struct {
	// Cities are the marked cities. Must be non-empty.
	Cities []kingdom.CityID `json:"cities" binding:"required,min=1"`
}

// BatchRequest is the request body for POST /v1/kingdom/solve/batch.
type BatchRequest struct {
	// Queries are answered independently and in order.
	Queries [][]kingdom.CityID `json:"queries" binding:"required,min=1"`
}

// BatchResponse is the response for POST /v1/kingdom/solve/batch.
type BatchResponse struct {
	// Answers[i] is the answer to Queries[i].
	Answers []int `json:"answers"`
}

// CityResponse is the response for GET /v1/kingdom/cities/:id.
type CityResponse struct {
	ID          kingdom.CityID   `json:"id"`
	Tree        kingdom.CityID   `json:"tree"`
	Parent      kingdom.CityID   `json:"parent,omitempty"`
	Depth       int              `json:"depth"`
	SubtreeSize int              `json:"subtree_size"`
	TreeSize    int              `json:"tree_size"`
	Neighbors   []kingdom.CityID `json:"neighbors"`
}

// StatsResponse is the response for GET /v1/kingdom/stats.
type StatsResponse struct {
	Forest  kingdom.ForestStats `json:"forest"`
	Cache   kingdom.CacheStats  `json:"cache"`
	Pairing string              `json:"pairing"`
}

// HealthResponse is the response for GET /v1/kingdom/health.
type HealthResponse struct {
	// Status is always "healthy" once the server is listening.
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`

	// Cities is the number of cities loaded.
	Cities int `json:"cities"`
}

// ErrorResponse is returned for all failed requests.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// RequestID echoes the X-Request-ID header.
	RequestID string `json:"request_id,omitempty"`
}
