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
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ==============================================================================
// Pairing strategies
// ==============================================================================

// Pairing selects which pairs of marked cities are folded into the meeting point.
type Pairing int

const (
	// PairingAll folds every unordered pair of marked cities. O(k²) pairs.
	PairingAll Pairing = iota

	// PairingAnchored folds only pairs (q0, qj). Being equidistant from q0 and
	// from every qj already makes a city equidistant from all of them, so the
	// answer matches PairingAll with O(k) pairs.
	PairingAnchored
)

// String returns the config name of the strategy.
func (p Pairing) String() string {
	switch p {
	case PairingAll:
		return "all"
	case PairingAnchored:
		return "anchored"
	default:
		return fmt.Sprintf("pairing(%d)", int(p))
	}
}

// ParsePairing converts a config name into a Pairing.
func ParsePairing(name string) (Pairing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all":
		return PairingAll, nil
	case "anchored":
		return PairingAnchored, nil
	default:
		return PairingAll, fmt.Errorf("unknown pairing %q (want all or anchored)", name)
	}
}

// ==============================================================================
// Resolver
// ==============================================================================

// Verdict is the full result of a query.
type Verdict struct {
	// Answer is the number of cities equidistant from every marked city.
	Answer int `json:"answer"`

	// Meeting is where the travelers first coincide. Nil when rejected.
	// Shared with the answer cache; treat as read-only.
	Meeting *MeetingPoint `json:"meeting_point,omitempty"`

	// Rejection is RejectNone unless Answer is 0 because no meeting exists.
	Rejection Rejection `json:"rejection"`
}

// Resolver answers k-equality queries over a frozen forest.
//
// Thread Safety: Safe for concurrent use.
type Resolver struct {
	forest  *Forest
	pairing Pairing
	cache   *answerCache
	logger  *slog.Logger
}

type resolverOptions struct {
	pairing   Pairing
	cacheSize int
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverOptions)

// WithPairing sets the pair enumeration strategy. Default PairingAll.
func WithPairing(p Pairing) ResolverOption {
	return func(o *resolverOptions) {
		o.pairing = p
	}
}

// WithCache enables an LRU answer cache holding up to size queries.
// A size of 0 disables caching.
func WithCache(size int) ResolverOption {
	return func(o *resolverOptions) {
		o.cacheSize = size
	}
}

// WithLogger sets the logger used for rejection diagnostics.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(o *resolverOptions) {
		o.logger = logger
	}
}

// NewResolver creates a resolver over a frozen forest.
//
// Inputs:
//   - forest: Must be non-nil and frozen.
//   - opts: Optional configuration.
//
// Outputs:
//   - *Resolver: The resolver.
//   - error: ErrForestNotFrozen if forest is nil or still linking, or an
//     error for an invalid pairing or cache size.
func NewResolver(forest *Forest, opts ...ResolverOption) (*Resolver, error) {
	if forest == nil || !forest.IsFrozen() {
		return nil, ErrForestNotFrozen
	}

	o := resolverOptions{pairing: PairingAll}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pairing != PairingAll && o.pairing != PairingAnchored {
		return nil, fmt.Errorf("invalid pairing %d", int(o.pairing))
	}
	if o.cacheSize < 0 {
		return nil, fmt.Errorf("cache size must be >= 0, got %d", o.cacheSize)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r := &Resolver{
		forest:  forest,
		pairing: o.pairing,
		logger:  o.logger,
	}
	if o.cacheSize > 0 {
		cache, err := newAnswerCache(o.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create answer cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Forest returns the forest this resolver queries.
func (r *Resolver) Forest() *Forest {
	return r.forest
}

// Pairing returns the configured pair enumeration strategy.
func (r *Resolver) Pairing() Pairing {
	return r.pairing
}

// CacheStats returns answer cache statistics. Zero value when caching is off.
func (r *Resolver) CacheStats() CacheStats {
	if r.cache == nil {
		return CacheStats{}
	}
	return r.cache.stats()
}

// Solve returns the number of cities equidistant from every city in query.
//
// Inputs:
//   - ctx: Context for cancellation, checked between pairs.
//   - query: Marked cities. Order and duplicates do not affect the answer.
//
// Outputs:
//   - int: The answer. 0 when the travelers cannot meet.
//   - error: ErrEmptyQuery, ErrCityOutOfRange, or the context error.
//
// Thread Safety: Safe for concurrent use.
func (r *Resolver) Solve(ctx context.Context, query []CityID) (int, error) {
	v, err := r.Explain(ctx, query)
	if err != nil {
		return 0, err
	}
	return v.Answer, nil
}

// Explain answers a query and reports where the travelers meet or why they cannot.
//
// Description:
//
//	A single marked city is equidistant from nothing else, so every city in
//	its tree qualifies. Otherwise all cities must share a tree. Each pair of
//	marked cities yields a pairwise meeting point, and the points are folded
//	one at a time, stopping at the first rejection. The answer is the size of
//	the region around the final meeting city that no excluded step cuts off.
//
// Inputs:
//   - ctx: Context for cancellation, checked between pairs.
//   - query: Marked cities.
//
// Outputs:
//   - Verdict: Answer, meeting point, and rejection reason.
//   - error: Non-nil only for invalid input or cancellation.
//
// Thread Safety: Safe for concurrent use.
func (r *Resolver) Explain(ctx context.Context, query []CityID) (Verdict, error) {
	start := time.Now()

	ctx, span := getTracer().Start(ctx, "kingdom.Resolver.Explain",
		trace.WithAttributes(
			attribute.Int("query_size", len(query)),
			attribute.String("pairing", r.pairing.String()),
		),
	)
	defer span.End()

	v, pairs, err := r.explain(ctx, query)
	solveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		solveTotal.WithLabelValues(classifySolveError(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return Verdict{}, err
	}

	querySize.Observe(float64(len(query)))
	if pairs >= 0 {
		pairsEvaluated.Observe(float64(pairs))
	}
	if v.Rejection == RejectNone {
		solveTotal.WithLabelValues("accepted").Inc()
	} else {
		solveTotal.WithLabelValues(v.Rejection.String()).Inc()
		r.logger.Debug("Query rejected",
			slog.String("rejection", v.Rejection.String()),
			slog.Int("query_size", len(query)),
			slog.Int("pairs", pairs))
	}

	span.SetAttributes(
		attribute.Int("answer", v.Answer),
		attribute.String("rejection", v.Rejection.String()),
		attribute.Int("pairs", pairs),
	)
	return v, nil
}

// explain runs the query. pairs is -1 on a cache hit.
func (r *Resolver) explain(ctx context.Context, query []CityID) (Verdict, int, error) {
	if len(query) == 0 {
		return Verdict{}, 0, ErrEmptyQuery
	}
	if err := ctx.Err(); err != nil {
		return Verdict{}, 0, err
	}

	idx := make([]int32, len(query))
	for i, c := range query {
		v, err := r.forest.index(c)
		if err != nil {
			return Verdict{}, 0, fmt.Errorf("query position %d: %w", i, err)
		}
		idx[i] = v
	}

	var key string
	if r.cache != nil {
		key = canonicalKey(idx)
		if v, ok := r.cache.get(key); ok {
			return v, -1, nil
		}
	}

	out, pairs, err := r.fold(ctx, idx)
	if err != nil {
		return Verdict{}, pairs, err
	}

	v := Verdict{Rejection: out.rejected}
	if out.ok() {
		v.Answer = regionSize(r.forest, out.point)
		v.Meeting = out.point.public()
	}

	if r.cache != nil {
		r.cache.add(key, v)
	}
	return v, pairs, nil
}

// fold reduces the pairwise meeting points of idx into one.
func (r *Resolver) fold(ctx context.Context, idx []int32) (outcome, int, error) {
	f := r.forest
	tree := f.treeID[idx[0]]
	for _, v := range idx[1:] {
		if f.treeID[v] != tree {
			return reject(RejectDifferentTrees), 0, nil
		}
	}

	cur := outcome{point: meeting{node: idx[0]}}
	pairs := 0
	seeded := false

	step := func(a, b int32) (bool, error) {
		if pairs%256 == 0 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}
		pairs++

		next := pairMeeting(f, a, b)
		if !next.ok() {
			cur = next
			return false, nil
		}
		if !seeded {
			cur, seeded = next, true
			return true, nil
		}
		cur = merge(f, cur.point, next.point)
		return cur.ok(), nil
	}

	switch r.pairing {
	case PairingAnchored:
		for j := 1; j < len(idx); j++ {
			cont, err := step(idx[0], idx[j])
			if err != nil {
				return outcome{}, pairs, err
			}
			if !cont {
				return cur, pairs, nil
			}
		}
	default:
		for i := 0; i < len(idx); i++ {
			for j := i + 1; j < len(idx); j++ {
				cont, err := step(idx[i], idx[j])
				if err != nil {
					return outcome{}, pairs, err
				}
				if !cont {
					return cur, pairs, nil
				}
			}
		}
	}
	return cur, pairs, nil
}
