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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildForest links roads in order and freezes the forest.
func buildForest(t *testing.T, cityCount int, roads [][2]CityID) *Forest {
	t.Helper()
	f, err := NewForest(cityCount)
	require.NoError(t, err)
	for _, r := range roads {
		require.NoError(t, f.Link(r[0], r[1]), "link %d-%d", r[0], r[1])
	}
	require.NoError(t, f.Freeze(context.Background()))
	return f
}

// createSampleTree builds:
//
//	        1
//	       /|\
//	      2 3 4
//	     /|    \
//	    5 6     7
//	   /|
//	  8 9
//
// plus the disjoint chain 10-11.
func createSampleTree(t *testing.T) *Forest {
	return buildForest(t, 11, [][2]CityID{
		{1, 2}, {1, 3}, {1, 4},
		{2, 5}, {2, 6},
		{4, 7},
		{5, 8}, {5, 9},
		{10, 11},
	})
}

// createChain builds the path 1-2-...-n.
func createChain(t *testing.T, n int) *Forest {
	roads := make([][2]CityID, 0, n-1)
	for i := 1; i < n; i++ {
		roads = append(roads, [2]CityID{CityID(i), CityID(i + 1)})
	}
	return buildForest(t, n, roads)
}

// TestNewForest_InvalidCount verifies construction rejects empty kingdoms.
func TestNewForest_InvalidCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		f, err := NewForest(n)
		assert.Nil(t, f)
		assert.ErrorIs(t, err, ErrInvalidCityCount)
	}
}

// TestNewForest_Singletons verifies every city starts as its own root.
func TestNewForest_Singletons(t *testing.T) {
	f, err := NewForest(3)
	require.NoError(t, err)

	for c := CityID(1); c <= 3; c++ {
		assert.Equal(t, 0, f.Depth(c))
		assert.Equal(t, c, f.TreeID(c))
		assert.Equal(t, CityID(0), f.Parent(c))
		assert.Equal(t, 1, f.TreeSize(c))
		assert.Empty(t, f.Neighbors(c))
	}
	assert.False(t, f.IsFrozen())
	assert.Equal(t, 3, f.CityCount())
}

// TestForest_Link_Fresh verifies b attaches below a when neither is placed.
func TestForest_Link_Fresh(t *testing.T) {
	f, err := NewForest(2)
	require.NoError(t, err)
	require.NoError(t, f.Link(1, 2))

	assert.Equal(t, 0, f.Depth(1))
	assert.Equal(t, 1, f.Depth(2))
	assert.Equal(t, CityID(1), f.Parent(2))
	assert.Equal(t, CityID(1), f.TreeID(2))
	assert.ElementsMatch(t, []CityID{2}, f.Neighbors(1))
	assert.ElementsMatch(t, []CityID{1}, f.Neighbors(2))
}

// TestForest_Link_AttachesUnplacedEnd verifies the unplaced city becomes the child
// regardless of argument order.
func TestForest_Link_AttachesUnplacedEnd(t *testing.T) {
	f, err := NewForest(4)
	require.NoError(t, err)
	require.NoError(t, f.Link(1, 2))
	require.NoError(t, f.Link(3, 2)) // 2 placed, 3 fresh
	require.NoError(t, f.Link(1, 4))

	assert.Equal(t, CityID(2), f.Parent(3))
	assert.Equal(t, 2, f.Depth(3))
	assert.Equal(t, CityID(1), f.TreeID(3))
	assert.Equal(t, 4, f.TreeSize(1))
}

// TestForest_Link_ContractViolations verifies fail-fast errors.
func TestForest_Link_ContractViolations(t *testing.T) {
	f, err := NewForest(5)
	require.NoError(t, err)
	require.NoError(t, f.Link(1, 2))
	require.NoError(t, f.Link(2, 3))
	require.NoError(t, f.Link(4, 5))

	tests := []struct {
		name string
		a, b CityID
		want error
	}{
		{"zero id", 0, 1, ErrCityOutOfRange},
		{"id above count", 1, 6, ErrCityOutOfRange},
		{"self loop", 2, 2, ErrSelfLoop},
		{"cycle", 1, 3, ErrCycle},
		{"joins two trees", 3, 4, ErrUnorderedRoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, f.Link(tt.a, tt.b), tt.want)
		})
	}
}

// TestForest_Link_AfterFreeze verifies a frozen forest rejects links.
func TestForest_Link_AfterFreeze(t *testing.T) {
	f := buildForest(t, 3, [][2]CityID{{1, 2}})
	assert.ErrorIs(t, f.Link(2, 3), ErrForestFrozen)
}

// TestForest_Freeze_Idempotent verifies a second freeze is a no-op.
func TestForest_Freeze_Idempotent(t *testing.T) {
	f := createChain(t, 4)
	levels := f.Stats().LiftingLevels
	require.NoError(t, f.Freeze(context.Background()))
	assert.Equal(t, levels, f.Stats().LiftingLevels)
}

// TestForest_Freeze_Cancelled verifies freeze honours a cancelled context.
func TestForest_Freeze_Cancelled(t *testing.T) {
	f, err := NewForest(64)
	require.NoError(t, err)
	for i := 1; i < 64; i++ {
		require.NoError(t, f.Link(CityID(i), CityID(i+1)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = f.Freeze(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.IsFrozen())
}

// TestForest_TreeSize verifies memoised sizes before and after freeze.
func TestForest_TreeSize(t *testing.T) {
	f, err := NewForest(5)
	require.NoError(t, err)
	require.NoError(t, f.Link(1, 2))
	assert.Equal(t, 2, f.TreeSize(1))

	// Linking invalidates the memo for the grown tree
	require.NoError(t, f.Link(2, 3))
	assert.Equal(t, 3, f.TreeSize(1))

	require.NoError(t, f.Freeze(context.Background()))
	assert.Equal(t, 3, f.TreeSize(1))
	assert.Equal(t, 1, f.TreeSize(4))
	assert.Equal(t, 0, f.TreeSize(2), "non-root is not a tree id")
	assert.Equal(t, 0, f.TreeSize(99))
}

// TestForest_SubtreeSize verifies sizes from the depth sweep.
func TestForest_SubtreeSize(t *testing.T) {
	f := createSampleTree(t)

	expected := map[CityID]int{
		1: 9, 2: 5, 3: 1, 4: 2, 5: 3, 6: 1, 7: 1, 8: 1, 9: 1, 10: 2, 11: 1,
	}
	for c, want := range expected {
		assert.Equal(t, want, f.SubtreeSize(c), "city %d", c)
	}
	assert.Equal(t, 0, f.SubtreeSize(12))
}

// TestForest_SubtreeSize_BeforeFreeze verifies sizes are unavailable while linking.
func TestForest_SubtreeSize_BeforeFreeze(t *testing.T) {
	f, err := NewForest(2)
	require.NoError(t, err)
	require.NoError(t, f.Link(1, 2))
	assert.Equal(t, 0, f.SubtreeSize(1))
}

// TestForest_Queries_RequireFreeze verifies ancestor queries before freeze.
func TestForest_Queries_RequireFreeze(t *testing.T) {
	f, err := NewForest(2)
	require.NoError(t, err)

	_, err = f.Ancestor(1, 0)
	assert.ErrorIs(t, err, ErrForestNotFrozen)
	_, err = f.LCA(1, 2)
	assert.ErrorIs(t, err, ErrForestNotFrozen)
	_, err = f.Distance(1, 2)
	assert.ErrorIs(t, err, ErrForestNotFrozen)
	_, err = f.PathNode(1, 2, 0)
	assert.ErrorIs(t, err, ErrForestNotFrozen)
}

// TestForest_Stats verifies forest statistics.
func TestForest_Stats(t *testing.T) {
	f := createSampleTree(t)
	stats := f.Stats()

	assert.Equal(t, 11, stats.CityCount)
	assert.Equal(t, 9, stats.LinkCount)
	assert.Equal(t, 2, stats.TreeCount)
	assert.Equal(t, 9, stats.LargestTree)
	assert.Equal(t, 3, stats.MaxDepth)
	assert.Equal(t, 2, stats.LiftingLevels)
	assert.True(t, stats.Frozen)
}

// TestForest_SameTree verifies tree membership checks.
func TestForest_SameTree(t *testing.T) {
	f := createSampleTree(t)

	assert.True(t, f.SameTree(8, 7))
	assert.False(t, f.SameTree(8, 11))
	assert.False(t, f.SameTree(8, 0))
	assert.True(t, f.Contains(11))
	assert.False(t, f.Contains(12))
}
