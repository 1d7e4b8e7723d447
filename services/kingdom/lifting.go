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
	"math/bits"
)

// buildLiftingTable builds the sparse ancestor table for a parent array.
//
// Description:
//
//	up[0][v] is the parent of v (roots map to themselves) and
//	up[k][v] = up[k-1][up[k-1][v]]. Levels are filled one at a time so each
//	level only reads the one below it. The number of levels is the bit length
//	of the maximum depth, so every jump k <= maxDepth is expressible.
//
// Algorithm:
//
//	Time:  O(V log H)
//	Space: O(V log H)
//
// Inputs:
//   - ctx: Context for cancellation, checked once per level.
//   - parent: parent[v], -1 for roots.
//   - maxDepth: Largest depth in the forest.
//
// Outputs:
//   - [][]int32: The table. Always has at least one level.
//   - error: Non-nil if the context is cancelled.
func buildLiftingTable(ctx context.Context, parent []int32, maxDepth int32) ([][]int32, error) {
	levels := bits.Len32(uint32(maxDepth))
	if levels == 0 {
		levels = 1
	}

	n := len(parent)
	up := make([][]int32, levels)
	up[0] = make([]int32, n)
	for v, p := range parent {
		if p < 0 {
			up[0][v] = int32(v)
		} else {
			up[0][v] = p
		}
	}

	for k := 1; k < levels; k++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lifting level %d: %w", k, ctx.Err())
		default:
		}

		prev := up[k-1]
		level := make([]int32, n)
		for v := range level {
			level[v] = prev[prev[v]]
		}
		up[k] = level
	}

	return up, nil
}

// ancestor returns the k-th ancestor of v. Caller guarantees 0 <= k <= depth[v].
func (f *Forest) ancestor(v, k int32) int32 {
	for j := 0; k > 0; j++ {
		if k&1 == 1 {
			v = f.up[j][v]
		}
		k >>= 1
	}
	return v
}

// lca returns the lowest common ancestor of u and v. Caller guarantees both
// are in the same tree.
func (f *Forest) lca(u, v int32) int32 {
	if f.depth[u] < f.depth[v] {
		u, v = v, u
	}
	u = f.ancestor(u, f.depth[u]-f.depth[v])
	if u == v {
		return u
	}
	for k := len(f.up) - 1; k >= 0; k-- {
		if f.up[k][u] != f.up[k][v] {
			u = f.up[k][u]
			v = f.up[k][v]
		}
	}
	return f.up[0][u]
}

// distance returns the number of roads between u and v in the same tree.
func (f *Forest) distance(u, v int32) int32 {
	l := f.lca(u, v)
	return f.depth[u] + f.depth[v] - 2*f.depth[l]
}

// pathNode returns the k-th city on the path from u to v, 0 <= k <= distance(u, v).
func (f *Forest) pathNode(u, v, k int32) int32 {
	l := f.lca(u, v)
	up := f.depth[u] - f.depth[l]
	if k <= up {
		return f.ancestor(u, k)
	}
	down := f.depth[v] - f.depth[l]
	return f.ancestor(v, up+down-k)
}

// stepToward returns the neighbour of u on the path to v. Caller guarantees u != v.
func (f *Forest) stepToward(u, v int32) int32 {
	return f.pathNode(u, v, 1)
}
