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
	"fmt"
	"sort"
)

// ==============================================================================
// Rejections
// ==============================================================================

// Rejection explains why a query has no common meeting point.
//
// A rejection is a valid outcome (answer 0), not an error.
type Rejection int

const (
	// RejectNone means the travelers can meet.
	RejectNone Rejection = iota

	// RejectDifferentTrees means two marked cities are in different trees.
	RejectDifferentTrees

	// RejectOddParity means two marked cities are an odd number of roads apart.
	RejectOddParity

	// RejectTimingConflict means two pairs meet at the same city after
	// different travel times.
	RejectTimingConflict

	// RejectUnreconcilable means no city on the path between two candidate
	// meeting points balances both travel times.
	RejectUnreconcilable

	// RejectBackwardStep means reconciling two candidates would send a
	// traveler back down a branch it already came from.
	RejectBackwardStep
)

// String returns the metric/JSON label of the rejection.
func (r Rejection) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectDifferentTrees:
		return "different_trees"
	case RejectOddParity:
		return "odd_parity"
	case RejectTimingConflict:
		return "timing_conflict"
	case RejectUnreconcilable:
		return "unreconcilable"
	case RejectBackwardStep:
		return "backward_step"
	default:
		return fmt.Sprintf("rejection(%d)", int(r))
	}
}

// MarshalText encodes the rejection as its label.
func (r Rejection) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ==============================================================================
// Meeting points
// ==============================================================================

// MeetingPoint is where a group of travelers coincide.
//
// Excluded lists the neighbours of Node that lie back along a path some
// traveler already walked. Cities behind them are closer to one traveler
// than to the others.
type MeetingPoint struct {
	Node     CityID   `json:"node"`
	Traveled int      `json:"traveled"`
	Excluded []CityID `json:"excluded,omitempty"`
}

// meeting is the arena-index form of MeetingPoint.
type meeting struct {
	node     int32
	traveled int32
	excluded []int32 // sorted, unique, every entry a neighbour of node
}

// outcome is either a meeting point or a rejection.
type outcome struct {
	point    meeting
	rejected Rejection
}

func reject(r Rejection) outcome {
	return outcome{rejected: r}
}

func (o outcome) ok() bool {
	return o.rejected == RejectNone
}

// public converts m into the external, 1-based form.
func (m meeting) public() *MeetingPoint {
	mp := &MeetingPoint{
		Node:     CityID(m.node + 1),
		Traveled: int(m.traveled),
	}
	if len(m.excluded) > 0 {
		mp.Excluded = make([]CityID, len(m.excluded))
		for i, e := range m.excluded {
			mp.Excluded[i] = CityID(e + 1)
		}
	}
	return mp
}

// pairMeeting computes where travelers from a and b meet.
//
// Description:
//
//	The two travelers meet halfway along the path between them. The halfway
//	city is an ancestor of the deeper endpoint, so it is found with a single
//	k-th ancestor jump. Its two neighbours on the path become the excluded
//	steps. An odd depth sum means an odd distance, so no halfway city exists.
//
// Inputs:
//   - f: Frozen forest.
//   - a, b: Arena indices in the same tree.
//
// Outputs:
//   - outcome: The pairwise meeting point or RejectOddParity.
func pairMeeting(f *Forest, a, b int32) outcome {
	da, db := f.depth[a], f.depth[b]
	if (da+db)%2 != 0 {
		return reject(RejectOddParity)
	}
	if da < db {
		a, b = b, a
		da, db = db, da
	}

	l := f.lca(a, b)
	half := (da + db - 2*f.depth[l]) / 2
	m := f.ancestor(a, half)

	point := meeting{node: m, traveled: half}
	if half > 0 {
		towardA := f.ancestor(a, half-1)
		var towardB int32
		if m == l {
			towardB = f.ancestor(b, half-1)
		} else {
			towardB = f.parent[m]
		}
		point.excluded = addStep(addStep(nil, towardA), towardB)
	}
	return outcome{point: point}
}

// merge folds a new pairwise meeting point into the running one.
//
// Description:
//
//	Every city equidistant from all travelers seen so far lies in the
//	component of cur.node left after cutting cur.excluded, at distance
//	cur.traveled + d from each traveler. Two such constraints agree only at
//	the city x roads from cur.node along the path to next.node where
//	cur.traveled + x == next.traveled + (L - x). That index must be an
//	integer in [0, L], and reaching it must not leave either candidate
//	through one of its excluded steps.
//
// Inputs:
//   - f: Frozen forest.
//   - cur: Running meeting point.
//   - next: New pairwise meeting point in the same tree.
//
// Outputs:
//   - outcome: The reconciled meeting point or the rejection that prevents it.
func merge(f *Forest, cur, next meeting) outcome {
	if cur.node == next.node {
		if cur.traveled != next.traveled {
			return reject(RejectTimingConflict)
		}
		return outcome{point: meeting{
			node:     cur.node,
			traveled: cur.traveled,
			excluded: unionSteps(cur.excluded, next.excluded),
		}}
	}

	pathLen := f.distance(cur.node, next.node)
	imbalance := pathLen + next.traveled - cur.traveled
	if imbalance < 0 || imbalance%2 != 0 || imbalance > 2*pathLen {
		return reject(RejectUnreconcilable)
	}
	x := imbalance / 2

	if x > 0 && hasStep(cur.excluded, f.stepToward(cur.node, next.node)) {
		return reject(RejectBackwardStep)
	}
	if x < pathLen && hasStep(next.excluded, f.stepToward(next.node, cur.node)) {
		return reject(RejectBackwardStep)
	}

	var excluded []int32
	if x > 0 {
		excluded = addStep(excluded, f.pathNode(cur.node, next.node, x-1))
	} else {
		excluded = unionSteps(excluded, cur.excluded)
	}
	if x < pathLen {
		excluded = addStep(excluded, f.pathNode(cur.node, next.node, x+1))
	} else {
		excluded = unionSteps(excluded, next.excluded)
	}

	return outcome{point: meeting{
		node:     f.pathNode(cur.node, next.node, x),
		traveled: cur.traveled + x,
		excluded: excluded,
	}}
}

// regionSize counts the cities equidistant from every traveler.
//
// Description:
//
//	The region is the meeting city's tree minus every branch hanging off an
//	excluded step. A child step removes its subtree; the parent step removes
//	everything outside the meeting city's own subtree.
func regionSize(f *Forest, m meeting) int {
	treeSize := f.treeSize(f.treeID[m.node])
	size := treeSize
	for _, e := range m.excluded {
		if f.parent[e] == m.node {
			size -= int(f.subSize[e])
		} else {
			size -= treeSize - int(f.subSize[m.node])
		}
	}
	return size
}

// ==============================================================================
// Excluded-step sets (small sorted slices)
// ==============================================================================

func hasStep(set []int32, v int32) bool {
	i := sort.Search(len(set), func(i int) bool { return set[i] >= v })
	return i < len(set) && set[i] == v
}

func addStep(set []int32, v int32) []int32 {
	i := sort.Search(len(set), func(i int) bool { return set[i] >= v })
	if i < len(set) && set[i] == v {
		return set
	}
	out := make([]int32, 0, len(set)+1)
	out = append(out, set[:i]...)
	out = append(out, v)
	return append(out, set[i:]...)
}

func unionSteps(a, b []int32) []int32 {
	out := make([]int32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
