// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/kequality/services/kingdom"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracerOnce   sync.Once
	ingestTracer trace.Tracer
)

func getTracer() trace.Tracer {
	tracerOnce.Do(func() {
		ingestTracer = otel.Tracer("aleutian.kingdom.ingest")
	})
	return ingestTracer
}

// BuildOptions controls how a forest is built from decoded roads.
type BuildOptions struct {
	// Reorder plans open roads parent first before linking. When false roads
	// are linked in file order and must already satisfy the ordering contract.
	Reorder bool

	// Logger receives build progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// BuildForest links the open roads of k into a frozen forest.
//
// Description:
//
//	Closed roads are never linked. With Reorder set, PlanRoads validates the
//	road set and orders it so Link never sees a road out of order. The
//	resulting forest is frozen and ready for a kingdom.Resolver.
//
// Inputs:
//   - ctx: Context for cancellation, checked between linking and freezing.
//   - k: The decoded kingdom section.
//   - opts: Build options.
//
// Outputs:
//   - *kingdom.Forest: Frozen forest.
//   - error: Planning, linking or freeze failures.
func BuildForest(ctx context.Context, k *Kingdom, opts BuildOptions) (*kingdom.Forest, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, span := getTracer().Start(ctx, "ingest.BuildForest",
		trace.WithAttributes(
			attribute.Int("city_count", k.CityCount),
			attribute.Int("road_count", len(k.Roads)),
			attribute.Bool("reorder", opts.Reorder),
		),
	)
	defer span.End()

	start := time.Now()
	fail := func(msg string, err error) (*kingdom.Forest, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return nil, err
	}

	var plan [][2]kingdom.CityID
	if opts.Reorder {
		var err error
		plan, err = PlanRoads(k.CityCount, k.Roads)
		if err != nil {
			return fail("plan roads failed", fmt.Errorf("plan roads: %w", err))
		}
	} else {
		plan = fileOrder(k.Roads)
	}

	forest, err := kingdom.NewForest(k.CityCount)
	if err != nil {
		return fail("create forest failed", err)
	}
	for i, road := range plan {
		if err := forest.Link(road[0], road[1]); err != nil {
			return fail("link failed", fmt.Errorf("link road %d (%d-%d): %w", i+1, road[0], road[1], err))
		}
	}

	if err := ctx.Err(); err != nil {
		return fail("build cancelled", err)
	}
	if err := forest.Freeze(ctx); err != nil {
		return fail("freeze failed", err)
	}

	logger.Info("Kingdom built",
		slog.Int("cities", k.CityCount),
		slog.Int("open_roads", len(plan)),
		slog.Int("closed_roads", len(k.Roads)-len(plan)),
		slog.Bool("reordered", opts.Reorder),
		slog.Duration("duration", time.Since(start)))

	span.SetAttributes(attribute.Int("open_roads", len(plan)))
	return forest, nil
}
