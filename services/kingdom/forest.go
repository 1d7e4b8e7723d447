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
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CityID identifies a city in the external, 1-based numbering.
type CityID int

// Forest is an arena of cities linked into rooted trees.
//
// Description:
//
//	Every city starts as its own singleton tree. Link attaches a fresh city
//	below a city that is already placed, so tree ids and depths are written
//	exactly once and never change. Freeze builds the binary-lifting table and
//	subtree sizes used by the resolver.
//
// Invariants:
//   - parent[root] == -1, depth[root] == 0, treeID[root] == root
//   - depth[v] == depth[parent[v]] + 1 for every non-root v
//   - treeID[v] == treeID[parent[v]] for every non-root v
//   - after Freeze: up[0][v] == parent[v] (root maps to itself)
//   - after Freeze: subSize[v] == 1 + sum of subSize over children
//
// Thread Safety:
//
//	Single writer while linking. Read-only and safe for concurrent use after
//	Freeze. The tree size memo is guarded by its own mutex.
type Forest struct {
	// Arena (one slot per city, 0-based)
	parent []int32
	depth  []int32
	treeID []int32
	adj    [][]int32

	// Built by Freeze
	up      [][]int32 // up[k][v] = 2^k-th ancestor of v (roots map to themselves)
	subSize []int32   // subSize[v] = number of cities in v's subtree
	frozen  bool

	// Metadata
	cityCount  int
	linkCount  int
	maxDepth   int32
	freezeTime time.Duration

	// Memoised tree sizes keyed by tree id
	sizeMu    sync.Mutex
	treeSizes map[int32]int
}

// ForestStats contains statistics about a forest.
type ForestStats struct {
	CityCount      int           `json:"city_count"`
	LinkCount      int           `json:"link_count"`
	TreeCount      int           `json:"tree_count"`
	LargestTree    int           `json:"largest_tree"`
	MaxDepth       int           `json:"max_depth"`
	LiftingLevels  int           `json:"lifting_levels"`
	Frozen         bool          `json:"frozen"`
	FreezeDuration time.Duration `json:"freeze_duration_ns"`
}

// NewForest allocates cityCount singleton trees.
//
// Description:
//
//	Cities are numbered 1..cityCount. Each one starts as the root of its own
//	tree: depth 0, no parent, tree id equal to its own index.
//
// Inputs:
//   - cityCount: Number of cities. Must be >= 1.
//
// Outputs:
//   - *Forest: The forest. Never nil on success.
//   - error: ErrInvalidCityCount if cityCount < 1.
func NewForest(cityCount int) (*Forest, error) {
	if cityCount < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCityCount, cityCount)
	}

	// Single allocation for the three scalar arrays
	all := make([]int32, 3*cityCount)
	f := &Forest{
		parent:    all[0*cityCount : 1*cityCount],
		depth:     all[1*cityCount : 2*cityCount],
		treeID:    all[2*cityCount : 3*cityCount],
		adj:       make([][]int32, cityCount),
		cityCount: cityCount,
		treeSizes: make(map[int32]int),
	}
	for i := 0; i < cityCount; i++ {
		f.parent[i] = -1
		f.treeID[i] = int32(i)
	}
	return f, nil
}

// Link connects two cities with an open road.
//
// Description:
//
//	Attaches the city that is not yet placed in a tree below the one that is.
//	When neither city has any road yet, b becomes a child of a. The new child
//	inherits the tree id of its parent and gets depth parent+1.
//
// Inputs:
//   - a, b: City ids in [1, CityCount()].
//
// Outputs:
//   - error: Non-nil when the road breaks the parent-first contract:
//     ErrCityOutOfRange, ErrSelfLoop, ErrCycle, ErrUnorderedRoad, or
//     ErrForestFrozen after Freeze().
//
// Thread Safety: NOT safe for concurrent use.
func (f *Forest) Link(a, b CityID) error {
	if f.frozen {
		return ErrForestFrozen
	}
	ai, err := f.index(a)
	if err != nil {
		return err
	}
	bi, err := f.index(b)
	if err != nil {
		return err
	}
	if ai == bi {
		return fmt.Errorf("%w: city %d", ErrSelfLoop, a)
	}

	aPlaced, bPlaced := f.placed(ai), f.placed(bi)
	switch {
	case aPlaced && bPlaced:
		if f.treeID[ai] == f.treeID[bi] {
			return fmt.Errorf("%w: road %d-%d", ErrCycle, a, b)
		}
		return fmt.Errorf("%w: road %d-%d", ErrUnorderedRoad, a, b)
	case bPlaced:
		ai, bi = bi, ai
	}

	f.attach(ai, bi)
	return nil
}

// attach makes child a new leaf below p.
func (f *Forest) attach(p, child int32) {
	f.parent[child] = p
	f.depth[child] = f.depth[p] + 1
	f.treeID[child] = f.treeID[p]
	f.adj[p] = append(f.adj[p], child)
	f.adj[child] = append(f.adj[child], p)
	f.linkCount++
	if f.depth[child] > f.maxDepth {
		f.maxDepth = f.depth[child]
	}

	f.sizeMu.Lock()
	delete(f.treeSizes, f.treeID[p])
	f.sizeMu.Unlock()
}

// placed reports whether v already has a road.
func (f *Forest) placed(v int32) bool {
	return len(f.adj[v]) > 0
}

// index converts an external city id into an arena slot.
func (f *Forest) index(c CityID) (int32, error) {
	if c < 1 || int(c) > f.cityCount {
		return -1, fmt.Errorf("%w: %d not in [1, %d]", ErrCityOutOfRange, c, f.cityCount)
	}
	return int32(c - 1), nil
}

// Freeze finalises the forest for querying.
//
// Description:
//
//	Builds the binary-lifting ancestor table level by level and accumulates
//	subtree sizes by sweeping cities from the deepest level up. After Freeze
//	the forest rejects further links and all read methods are safe for
//	concurrent use. Calling Freeze twice is a no-op.
//
// Algorithm:
//
//	Time:  O(V log H) where H = maximum depth
//	Space: O(V log H) for the ancestor table
//
// Inputs:
//   - ctx: Context for cancellation. Checked once per lifting level and
//     periodically during the size sweep.
//
// Outputs:
//   - error: Non-nil if the context is cancelled.
//
// Thread Safety: NOT safe for concurrent use.
func (f *Forest) Freeze(ctx context.Context) error {
	if f.frozen {
		return nil
	}

	ctx, span := getTracer().Start(ctx, "kingdom.Forest.Freeze",
		trace.WithAttributes(
			attribute.Int("city_count", f.cityCount),
			attribute.Int("link_count", f.linkCount),
		),
	)
	defer span.End()

	start := time.Now()

	span.AddEvent("building_lifting_table")
	up, err := buildLiftingTable(ctx, f.parent, f.maxDepth)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lifting table failed")
		return fmt.Errorf("freeze forest: %w", err)
	}

	span.AddEvent("computing_subtree_sizes")
	subSize, err := f.computeSubtreeSizes(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subtree sizes failed")
		return fmt.Errorf("freeze forest: %w", err)
	}

	f.up = up
	f.subSize = subSize
	f.frozen = true
	f.freezeTime = time.Since(start)

	stats := f.Stats()
	span.SetAttributes(
		attribute.Int("tree_count", stats.TreeCount),
		attribute.Int("max_depth", stats.MaxDepth),
		attribute.Int("lifting_levels", stats.LiftingLevels),
	)
	recordFreezeMetrics(ctx, stats)

	slog.Info("Forest frozen",
		slog.Int("cities", stats.CityCount),
		slog.Int("roads", stats.LinkCount),
		slog.Int("trees", stats.TreeCount),
		slog.Int("max_depth", stats.MaxDepth),
		slog.Duration("duration", f.freezeTime))

	span.SetStatus(codes.Ok, "forest frozen")
	return nil
}

// computeSubtreeSizes sums subtree sizes from the deepest cities upward.
func (f *Forest) computeSubtreeSizes(ctx context.Context) ([]int32, error) {
	// Counting sort by depth so that children are processed before parents
	buckets := make([]int32, f.maxDepth+2)
	for _, d := range f.depth {
		buckets[d+1]++
	}
	for d := 1; d < len(buckets); d++ {
		buckets[d] += buckets[d-1]
	}
	order := make([]int32, f.cityCount)
	for v, d := range f.depth {
		order[buckets[d]] = int32(v)
		buckets[d]++
	}

	subSize := make([]int32, f.cityCount)
	for i := f.cityCount - 1; i >= 0; i-- {
		if i%4096 == 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("subtree size accumulation: %w", ctx.Err())
			default:
			}
		}
		v := order[i]
		subSize[v]++
		if p := f.parent[v]; p >= 0 {
			subSize[p] += subSize[v]
		}
	}
	return subSize, nil
}

// IsFrozen reports whether Freeze has completed.
func (f *Forest) IsFrozen() bool {
	return f.frozen
}

// CityCount returns the number of cities in the forest.
func (f *Forest) CityCount() int {
	return f.cityCount
}

// Contains reports whether c is a valid city id.
func (f *Forest) Contains(c CityID) bool {
	return c >= 1 && int(c) <= f.cityCount
}

// Depth returns the distance from c to its tree's root, or -1 if c is invalid.
func (f *Forest) Depth(c CityID) int {
	v, err := f.index(c)
	if err != nil {
		return -1
	}
	return int(f.depth[v])
}

// TreeID returns the id of the tree containing c (its root city), or 0 if c is invalid.
func (f *Forest) TreeID(c CityID) CityID {
	v, err := f.index(c)
	if err != nil {
		return 0
	}
	return CityID(f.treeID[v] + 1)
}

// Parent returns the parent of c, or 0 if c is a root or invalid.
func (f *Forest) Parent(c CityID) CityID {
	v, err := f.index(c)
	if err != nil {
		return 0
	}
	return CityID(f.parent[v] + 1)
}

// Neighbors returns the cities directly connected to c by an open road.
func (f *Forest) Neighbors(c CityID) []CityID {
	v, err := f.index(c)
	if err != nil {
		return nil
	}
	out := make([]CityID, len(f.adj[v]))
	for i, u := range f.adj[v] {
		out[i] = CityID(u + 1)
	}
	return out
}

// SameTree reports whether a and b belong to the same tree.
func (f *Forest) SameTree(a, b CityID) bool {
	ai, err := f.index(a)
	if err != nil {
		return false
	}
	bi, err := f.index(b)
	if err != nil {
		return false
	}
	return f.treeID[ai] == f.treeID[bi]
}

// TreeSize returns the number of cities in the tree identified by tree.
//
// Description:
//
//	Sizes are memoised per tree id and computed on first request. Before
//	Freeze the size is counted by scanning every city; after Freeze it is
//	read from the root's subtree size.
//
// Inputs:
//   - tree: A tree id as returned by TreeID.
//
// Outputs:
//   - int: Number of cities in the tree. 0 if tree is not a valid root.
//
// Thread Safety: Safe for concurrent use after Freeze.
func (f *Forest) TreeSize(tree CityID) int {
	root, err := f.index(tree)
	if err != nil || f.treeID[root] != root {
		return 0
	}
	return f.treeSize(root)
}

// treeSize returns the memoised size of the tree rooted at root.
func (f *Forest) treeSize(root int32) int {
	f.sizeMu.Lock()
	defer f.sizeMu.Unlock()

	if size, ok := f.treeSizes[root]; ok {
		return size
	}

	var size int
	if f.frozen {
		size = int(f.subSize[root])
	} else {
		for _, id := range f.treeID {
			if id == root {
				size++
			}
		}
	}
	f.treeSizes[root] = size
	return size
}

// SubtreeSize returns the number of cities in the subtree rooted at c.
//
// Returns 0 before Freeze or for invalid ids.
func (f *Forest) SubtreeSize(c CityID) int {
	v, err := f.index(c)
	if err != nil || !f.frozen {
		return 0
	}
	return int(f.subSize[v])
}

// Ancestor returns the k-th ancestor of c.
//
// Outputs:
//   - CityID: The ancestor, or 0 if k exceeds the depth of c.
//   - error: ErrForestNotFrozen before Freeze, ErrCityOutOfRange for invalid ids.
func (f *Forest) Ancestor(c CityID, k int) (CityID, error) {
	v, err := f.frozenIndex(c)
	if err != nil {
		return 0, err
	}
	if k < 0 || k > int(f.depth[v]) {
		return 0, nil
	}
	return CityID(f.ancestor(v, int32(k)) + 1), nil
}

// LCA returns the lowest common ancestor of a and b.
//
// Outputs:
//   - CityID: The ancestor. 0 when a and b are in different trees.
//   - error: ErrForestNotFrozen before Freeze, ErrCityOutOfRange for invalid ids.
func (f *Forest) LCA(a, b CityID) (CityID, error) {
	ai, err := f.frozenIndex(a)
	if err != nil {
		return 0, err
	}
	bi, err := f.frozenIndex(b)
	if err != nil {
		return 0, err
	}
	if f.treeID[ai] != f.treeID[bi] {
		return 0, nil
	}
	return CityID(f.lca(ai, bi) + 1), nil
}

// Distance returns the number of roads between a and b, or -1 when they are
// in different trees.
func (f *Forest) Distance(a, b CityID) (int, error) {
	ai, err := f.frozenIndex(a)
	if err != nil {
		return 0, err
	}
	bi, err := f.frozenIndex(b)
	if err != nil {
		return 0, err
	}
	if f.treeID[ai] != f.treeID[bi] {
		return -1, nil
	}
	return int(f.distance(ai, bi)), nil
}

// PathNode returns the k-th city on the path from a to b (k == 0 is a).
//
// Returns 0 when the cities are in different trees or k is beyond the path.
func (f *Forest) PathNode(a, b CityID, k int) (CityID, error) {
	ai, err := f.frozenIndex(a)
	if err != nil {
		return 0, err
	}
	bi, err := f.frozenIndex(b)
	if err != nil {
		return 0, err
	}
	if f.treeID[ai] != f.treeID[bi] || k < 0 || k > int(f.distance(ai, bi)) {
		return 0, nil
	}
	return CityID(f.pathNode(ai, bi, int32(k)) + 1), nil
}

// frozenIndex validates c and requires a frozen forest.
func (f *Forest) frozenIndex(c CityID) (int32, error) {
	if !f.frozen {
		return -1, ErrForestNotFrozen
	}
	return f.index(c)
}

// Stats returns statistics about the forest.
//
// Thread Safety: Safe for concurrent use after Freeze (read-only).
func (f *Forest) Stats() ForestStats {
	sizes := make(map[int32]int)
	for _, id := range f.treeID {
		sizes[id]++
	}
	largest := 0
	for _, size := range sizes {
		if size > largest {
			largest = size
		}
	}
	return ForestStats{
		CityCount:      f.cityCount,
		LinkCount:      f.linkCount,
		TreeCount:      len(sizes),
		LargestTree:    largest,
		MaxDepth:       int(f.maxDepth),
		LiftingLevels:  len(f.up),
		Frozen:         f.frozen,
		FreezeDuration: f.freezeTime,
	}
}
