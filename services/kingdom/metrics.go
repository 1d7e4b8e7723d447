// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kingdom

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ==============================================================================
// Prometheus query metrics
// ==============================================================================

var (
	// solveTotal counts solves by outcome.
	// Labels: "accepted", one label per Rejection, "invalid", "canceled"
	solveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kequality_solve_total",
		Help: "Total k-equality queries by outcome",
	}, []string{"outcome"})

	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kequality_solve_duration_seconds",
		Help:    "Time to answer a single query",
		Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1},
	})

	querySize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kequality_query_size",
		Help:    "Number of cities per query",
		Buckets: []float64{1, 2, 5, 10, 100, 1000, 10000, 100000},
	})

	pairsEvaluated = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kequality_pairs_evaluated",
		Help:    "Pairwise meeting points folded per query",
		Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kequality_cache_lookups_total",
		Help: "Answer cache lookups by result",
	}, []string{"result"})
)

// classifySolveError categorizes errors for metric labels.
func classifySolveError(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "invalid"
	}
}

// ==============================================================================
// OTel build metrics
// ==============================================================================

var (
	meter = otel.Meter("aleutian.kingdom")

	freezeLatency metric.Float64Histogram
	freezeTotal   metric.Int64Counter
	forestCities  metric.Int64Histogram
	forestTrees   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the OTel instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		freezeLatency, err = meter.Float64Histogram(
			"kingdom_freeze_duration_seconds",
			metric.WithDescription("Duration of forest freeze operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		freezeTotal, err = meter.Int64Counter(
			"kingdom_freeze_total",
			metric.WithDescription("Total number of forest freezes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		forestCities, err = meter.Int64Histogram(
			"kingdom_forest_cities",
			metric.WithDescription("Number of cities per frozen forest"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		forestTrees, err = meter.Int64Histogram(
			"kingdom_forest_trees",
			metric.WithDescription("Number of trees per frozen forest"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordFreezeMetrics records metrics for a completed freeze.
func recordFreezeMetrics(ctx context.Context, stats ForestStats) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Int("lifting_levels", stats.LiftingLevels))
	freezeLatency.Record(ctx, stats.FreezeDuration.Seconds(), attrs)
	freezeTotal.Add(ctx, 1, attrs)
	forestCities.Record(ctx, int64(stats.CityCount))
	forestTrees.Record(ctx, int64(stats.TreeCount))
}

// ==============================================================================
// Tracer
// ==============================================================================

var (
	tracerOnce    sync.Once
	kingdomTracer trace.Tracer
)

// getTracer returns the OTel tracer, initializing it lazily so a provider
// installed after package init is still picked up.
func getTracer() trace.Tracer {
	tracerOnce.Do(func() {
		kingdomTracer = otel.Tracer("aleutian.kingdom")
	})
	return kingdomTracer
}
