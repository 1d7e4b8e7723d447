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
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// SolveBatch answers many queries, keeping answers in input order.
//
// Description:
//
//	With workers <= 1 the queries run sequentially on the caller's goroutine.
//	Otherwise they fan out over an errgroup limited to workers goroutines.
//	Each goroutine writes only its own slot of the result slice. The first
//	failing query cancels the rest.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - queries: Queries to answer.
//   - workers: Maximum concurrent queries.
//
// Outputs:
//   - []int: answers[i] is the answer to queries[i].
//   - error: The first query error, wrapped with its position.
//
// Thread Safety: Safe for concurrent use.
func (r *Resolver) SolveBatch(ctx context.Context, queries [][]CityID, workers int) ([]int, error) {
	verdicts, err := r.ExplainBatch(ctx, queries, workers)
	if err != nil {
		return nil, err
	}
	answers := make([]int, len(verdicts))
	for i, v := range verdicts {
		answers[i] = v.Answer
	}
	return answers, nil
}

// ExplainBatch is SolveBatch returning full verdicts.
func (r *Resolver) ExplainBatch(ctx context.Context, queries [][]CityID, workers int) ([]Verdict, error) {
	start := time.Now()

	ctx, span := getTracer().Start(ctx, "kingdom.Resolver.SolveBatch",
		trace.WithAttributes(
			attribute.Int("query_count", len(queries)),
			attribute.Int("workers", workers),
		),
	)
	defer span.End()

	verdicts := make([]Verdict, len(queries))

	if workers <= 1 {
		for i, q := range queries {
			v, err := r.Explain(ctx, q)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "batch query failed")
				return nil, fmt.Errorf("query %d: %w", i+1, err)
			}
			verdicts[i] = v
		}
	} else {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, q := range queries {
			g.Go(func() error {
				v, err := r.Explain(gCtx, q)
				if err != nil {
					return fmt.Errorf("query %d: %w", i+1, err)
				}
				verdicts[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "batch query failed")
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int64("duration_us", time.Since(start).Microseconds()))
	return verdicts, nil
}
