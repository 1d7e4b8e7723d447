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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/kequality/services/kingdom"
	"github.com/AleutianAI/kequality/services/kingdom/ingest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// verdictBody mirrors kingdom.Verdict with the rejection as its label.
type verdictBody struct {
	Answer  int `json:"answer"`
	Meeting *struct {
		Node     int   `json:"node"`
		Traveled int   `json:"traveled"`
		Excluded []int `json:"excluded"`
	} `json:"meeting_point"`
	Rejection string `json:"rejection"`
}

// newTestResolver builds the 11-city kingdom: tree 1..9 and chain 10-11.
//
//	    1
//	  / | \
//	 2  3  4
//	/ \     \
//	5  6     7
//	/ \
//	8  9
func newTestResolver(t *testing.T) *kingdom.Resolver {
	t.Helper()
	f, err := kingdom.NewForest(11)
	require.NoError(t, err)
	for _, r := range [][2]kingdom.CityID{
		{1, 2}, {1, 3}, {1, 4}, {2, 5}, {2, 6}, {4, 7}, {5, 8}, {5, 9}, {10, 11},
	} {
		require.NoError(t, f.Link(r[0], r[1]))
	}
	require.NoError(t, f.Freeze(context.Background()))

	resolver, err := kingdom.NewResolver(f, kingdom.WithPairing(kingdom.PairingAnchored), kingdom.WithCache(16))
	require.NoError(t, err)
	return resolver
}

func setupTestRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	return NewRouter(NewHandlers(newTestResolver(t), opts), "kequality-test")
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(t, Options{})

	w := doRequest(router, http.MethodGet, "/v1/kingdom/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Equal(t, 11, resp.Cities)
}

func TestHandlers_HandleSolve(t *testing.T) {
	router := setupTestRouter(t, Options{})

	w := doRequest(router, http.MethodPost, "/v1/kingdom/solve", `{"cities":[8,9]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp verdictBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Answer)
	assert.Equal(t, "none", resp.Rejection)
	require.NotNil(t, resp.Meeting)
	assert.Equal(t, 5, resp.Meeting.Node)
	assert.Equal(t, 1, resp.Meeting.Traveled)
	assert.Equal(t, []int{8, 9}, resp.Meeting.Excluded)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandlers_HandleSolve_Rejected(t *testing.T) {
	router := setupTestRouter(t, Options{})

	w := doRequest(router, http.MethodPost, "/v1/kingdom/solve", `{"cities":[1,10]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp verdictBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Answer)
	assert.Equal(t, "different_trees", resp.Rejection)
	assert.Nil(t, resp.Meeting)
}

func TestHandlers_HandleSolve_Errors(t *testing.T) {
	router := setupTestRouter(t, Options{Limits: ingest.Limits{MaxQuerySize: 3}})

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"cities":`, "INVALID_REQUEST"},
		{"missing cities", `{}`, "INVALID_REQUEST"},
		{"empty cities", `{"cities":[]}`, "INVALID_REQUEST"},
		{"unknown city", `{"cities":[1,12]}`, "CITY_OUT_OF_RANGE"},
		{"zero city", `{"cities":[0]}`, "CITY_OUT_OF_RANGE"},
		{"too many cities", `{"cities":[1,2,3,4]}`, "QUERY_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/v1/kingdom/solve", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestHandlers_RequestIDEchoed(t *testing.T) {
	router := setupTestRouter(t, Options{})

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/v1/kingdom/health", ""},
		{http.MethodGet, "/v1/kingdom/stats", ""},
		{http.MethodGet, "/v1/kingdom/cities/3", ""},
		{http.MethodPost, "/v1/kingdom/solve", `{"cities":[8,9]}`},
		{http.MethodPost, "/v1/kingdom/solve/batch", `{"queries":[[3,4]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Request-ID", "req-42")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
		})
	}
}

func TestHandlers_RequestIDGenerated(t *testing.T) {
	router := setupTestRouter(t, Options{})

	for _, path := range []string{"/v1/kingdom/health", "/v1/kingdom/stats"} {
		w := doRequest(router, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, w.Header().Get("X-Request-ID"), 36, path)
	}
}

func TestHandlers_HandleSolveBatch(t *testing.T) {
	for _, workers := range []int{0, 4} {
		router := setupTestRouter(t, Options{Workers: workers})

		body := `{"queries":[[8,9],[1,10],[3,4],[8,9,3]]}`
		w := doRequest(router, http.MethodPost, "/v1/kingdom/solve/batch", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp BatchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []int{7, 0, 6, 2}, resp.Answers, "workers=%d", workers)
	}
}

func TestHandlers_HandleSolveBatch_Errors(t *testing.T) {
	router := setupTestRouter(t, Options{Limits: ingest.Limits{MaxQueries: 2, MaxQuerySize: 2}})

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"empty batch", `{"queries":[]}`, "INVALID_REQUEST"},
		{"too many queries", `{"queries":[[1],[2],[3]]}`, "BATCH_TOO_LARGE"},
		{"query too large", `{"queries":[[1],[1,2,3]]}`, "QUERY_TOO_LARGE"},
		{"empty query", `{"queries":[[1],[]]}`, "EMPTY_QUERY"},
		{"unknown city", `{"queries":[[99]]}`, "CITY_OUT_OF_RANGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/v1/kingdom/solve/batch", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestHandlers_HandleCity(t *testing.T) {
	router := setupTestRouter(t, Options{})

	w := doRequest(router, http.MethodGet, "/v1/kingdom/cities/5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp CityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, kingdom.CityID(5), resp.ID)
	assert.Equal(t, kingdom.CityID(1), resp.Tree)
	assert.Equal(t, kingdom.CityID(2), resp.Parent)
	assert.Equal(t, 2, resp.Depth)
	assert.Equal(t, 3, resp.SubtreeSize)
	assert.Equal(t, 9, resp.TreeSize)
	assert.ElementsMatch(t, []kingdom.CityID{2, 8, 9}, resp.Neighbors)

	w = doRequest(router, http.MethodGet, "/v1/kingdom/cities/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/v1/kingdom/cities/12", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_HandleStats(t *testing.T) {
	router := setupTestRouter(t, Options{})

	// Same canonical query twice: one miss then one hit.
	doRequest(router, http.MethodPost, "/v1/kingdom/solve", `{"cities":[8,9]}`)
	doRequest(router, http.MethodPost, "/v1/kingdom/solve", `{"cities":[9,8,8]}`)

	w := doRequest(router, http.MethodGet, "/v1/kingdom/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 11, resp.Forest.CityCount)
	assert.Equal(t, 2, resp.Forest.TreeCount)
	assert.True(t, resp.Forest.Frozen)
	assert.Equal(t, "anchored", resp.Pairing)
	assert.Equal(t, int64(1), resp.Cache.Hits)
	assert.Equal(t, int64(1), resp.Cache.Misses)
}

func TestNewRouter_Metrics(t *testing.T) {
	router := setupTestRouter(t, Options{})
	doRequest(router, http.MethodPost, "/v1/kingdom/solve", `{"cities":[3,4]}`)

	w := doRequest(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "kequality_solve_total"), "metrics output missing solve counter")
}
