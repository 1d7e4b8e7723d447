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
	"fmt"

	"github.com/AleutianAI/kequality/services/kingdom"
)

// PlanRoads orders the open roads so every road attaches a fresh city below
// one that is already placed.
//
// Description:
//
//	Forest.Link requires roads parent before child. Input files list roads
//	in any order, so the planner first rejects self loops and cycles with a
//	union-find pass, then walks each component breadth first from its
//	lowest-numbered city and emits (parent, child) pairs in visit order.
//
// Algorithm:
//
//	Time:  O(N + R α(N))
//	Space: O(N + R)
//
// Inputs:
//   - cityCount: Number of cities.
//   - roads: Decoded roads. Closed roads are skipped.
//
// Outputs:
//   - [][2]kingdom.CityID: Open roads as (parent, child), safe to link in order.
//   - error: kingdom.ErrSelfLoop, kingdom.ErrCycle or kingdom.ErrCityOutOfRange,
//     wrapped in a *ParseError when the road has a line number.
func PlanRoads(cityCount int, roads []Road) ([][2]kingdom.CityID, error) {
	uf := newUnionFind(cityCount)
	adj := make([][]int32, cityCount)
	open := 0

	for i, r := range roads {
		if !r.Open {
			continue
		}
		if r.A < 1 || int(r.A) > cityCount || r.B < 1 || int(r.B) > cityCount {
			return nil, roadError(r, i+1,
				fmt.Errorf("%w: %d-%d not in [1, %d]", kingdom.ErrCityOutOfRange, r.A, r.B, cityCount))
		}
		if r.A == r.B {
			return nil, roadError(r, i+1, fmt.Errorf("%w: city %d", kingdom.ErrSelfLoop, r.A))
		}

		a, b := int32(r.A-1), int32(r.B-1)
		if !uf.merge(a, b) {
			return nil, roadError(r, i+1, fmt.Errorf("%w: road %d-%d", kingdom.ErrCycle, r.A, r.B))
		}
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
		open++
	}

	plan := make([][2]kingdom.CityID, 0, open)
	visited := make([]bool, cityCount)
	queue := make([]int32, 0, 64)

	for root := range adj {
		if visited[root] || len(adj[root]) == 0 {
			continue
		}
		visited[root] = true
		queue = append(queue[:0], int32(root))
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, u := range adj[v] {
				if visited[u] {
					continue
				}
				visited[u] = true
				plan = append(plan, [2]kingdom.CityID{kingdom.CityID(v + 1), kingdom.CityID(u + 1)})
				queue = append(queue, u)
			}
		}
	}
	return plan, nil
}

// fileOrder returns the open roads in input order.
func fileOrder(roads []Road) [][2]kingdom.CityID {
	plan := make([][2]kingdom.CityID, 0, len(roads))
	for _, r := range roads {
		if r.Open {
			plan = append(plan, [2]kingdom.CityID{r.A, r.B})
		}
	}
	return plan
}

// roadError labels err with the road's 1-based position.
func roadError(r Road, pos int, err error) error {
	field := fmt.Sprintf("road %d", pos)
	if r.Line > 0 {
		return &ParseError{Line: r.Line, Field: field, Err: err}
	}
	return fmt.Errorf("%s: %w", field, err)
}
