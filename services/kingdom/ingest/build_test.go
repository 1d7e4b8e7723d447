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
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/AleutianAI/kequality/services/kingdom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(a, b kingdom.CityID) Road {
	return Road{A: a, B: b, Open: true}
}

// TestUnionFind verifies merges and representatives.
func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)

	assert.True(t, uf.merge(1, 3))
	assert.True(t, uf.merge(0, 2))
	assert.Equal(t, uf.find(1), uf.find(3))
	assert.NotEqual(t, uf.find(0), uf.find(1))

	assert.True(t, uf.merge(2, 1))
	assert.False(t, uf.merge(3, 0), "already joined")
	assert.Equal(t, uf.find(0), uf.find(3))
	assert.NotEqual(t, uf.find(0), uf.find(4))
}

// TestPlanRoads_ParentFirst verifies every planned road attaches a fresh child.
func TestPlanRoads_ParentFirst(t *testing.T) {
	// 2-3 joins two trees that file order has already started.
	roads := []Road{open(1, 2), open(3, 4), open(2, 3), {A: 4, B: 5, Open: false}, open(6, 5)}
	plan, err := PlanRoads(6, roads)
	require.NoError(t, err)
	assert.Equal(t, [][2]kingdom.CityID{{1, 2}, {2, 3}, {3, 4}, {5, 6}}, plan)

	placed := map[kingdom.CityID]bool{}
	for _, road := range plan {
		assert.False(t, placed[road[1]], "child %d placed twice", road[1])
		placed[road[0]] = true
		placed[road[1]] = true
	}

	// Linking in planned order succeeds where file order would not
	_, err = BuildForest(context.Background(), &Kingdom{CityCount: 6, Roads: roads}, BuildOptions{Reorder: true})
	require.NoError(t, err)
	_, err = BuildForest(context.Background(), &Kingdom{CityCount: 6, Roads: roads}, BuildOptions{Reorder: false})
	assert.ErrorIs(t, err, kingdom.ErrUnorderedRoad)
}

// TestPlanRoads_Rejects verifies invalid road sets fail before linking.
func TestPlanRoads_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		roads []Road
		want  error
	}{
		{"cycle", []Road{open(1, 2), open(2, 3), open(3, 1)}, kingdom.ErrCycle},
		{"duplicate road", []Road{open(1, 2), open(2, 1)}, kingdom.ErrCycle},
		{"self loop", []Road{open(2, 2)}, kingdom.ErrSelfLoop},
		{"out of range", []Road{open(1, 7)}, kingdom.ErrCityOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanRoads(3, tt.roads)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Closed roads never count toward cycles
	_, err := PlanRoads(3, []Road{open(1, 2), open(2, 3), {A: 3, B: 1}})
	assert.NoError(t, err)
}

// TestPlanRoads_LineNumbers verifies decoded roads report their input line.
func TestPlanRoads_LineNumbers(t *testing.T) {
	_, err := PlanRoads(3, []Road{{A: 1, B: 2, Open: true, Line: 2}, {A: 2, B: 1, Open: true, Line: 3}})
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, "road 2", perr.Field)

	// Roads built in memory carry no line, so the position prefixes the message
	_, err = PlanRoads(4, []Road{open(1, 2), open(3, 4), open(4, 4)})
	assert.ErrorIs(t, err, kingdom.ErrSelfLoop)
	assert.EqualError(t, err, "road 3: road connects a city to itself: city 4")
}

// TestBuildForest_EndToEnd verifies decode, build and solve on the sample input.
func TestBuildForest_EndToEnd(t *testing.T) {
	in, err := NewDecoder(strings.NewReader(sampleInput), DefaultLimits()).Decode()
	require.NoError(t, err)

	forest, err := BuildForest(context.Background(), in.Kingdom, BuildOptions{Reorder: true})
	require.NoError(t, err)
	assert.True(t, forest.IsFrozen())
	assert.Equal(t, 2, forest.Stats().TreeCount, "3-4 is closed")

	r, err := kingdom.NewResolver(forest)
	require.NoError(t, err)
	answers, err := r.SolveBatch(context.Background(), in.Queries, 1)
	require.NoError(t, err)

	// {1,3} meet at 2 in the 1-2-3 tree; {4} counts 4-5; {1,3,5} spans two trees
	assert.Equal(t, []int{1, 2, 0}, answers)
}

// TestBuildForest_Cancelled verifies cancellation before freeze.
func TestBuildForest_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildForest(ctx, &Kingdom{CityCount: 2, Roads: []Road{open(1, 2)}}, BuildOptions{Reorder: true})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestAnswerWriter verifies plain and explained output lines.
func TestAnswerWriter(t *testing.T) {
	var out bytes.Buffer
	w := NewAnswerWriter(&out)

	require.NoError(t, w.WriteAnswer(3))
	require.NoError(t, w.WriteAnswer(0))
	require.NoError(t, w.WriteVerdict(kingdom.Verdict{
		Answer:  1,
		Meeting: &kingdom.MeetingPoint{Node: 2, Traveled: 1, Excluded: []kingdom.CityID{1, 3}},
	}))
	require.NoError(t, w.WriteVerdict(kingdom.Verdict{
		Answer:  9,
		Meeting: &kingdom.MeetingPoint{Node: 4},
	}))
	require.NoError(t, w.WriteVerdict(kingdom.Verdict{Rejection: kingdom.RejectOddParity}))
	assert.Empty(t, out.String(), "buffered until flush")

	require.NoError(t, w.Flush())
	assert.Equal(t, "3\n0\n1\t2\t1\t1,3\tnone\n9\t4\t0\t-\tnone\n0\t-\t-\t-\todd_parity\n", out.String())
}
