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

// TestSolveBatch_Order verifies answers come back in input order for any worker count.
func TestSolveBatch_Order(t *testing.T) {
	r := newTestResolver(t, createSampleTree(t), WithCache(4))
	queries := [][]CityID{
		{8, 9},
		{1, 2},
		{3, 4},
		{10},
		{8, 11},
		{6, 6},
	}
	want := []int{7, 0, 6, 2, 0, 9}

	for _, workers := range []int{0, 1, 3, 16} {
		got, err := r.SolveBatch(context.Background(), queries, workers)
		require.NoError(t, err, "workers=%d", workers)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

// TestSolveBatch_Error verifies the failing query position is reported.
func TestSolveBatch_Error(t *testing.T) {
	r := newTestResolver(t, createSampleTree(t))
	queries := [][]CityID{{1}, {2}, {99}}

	for _, workers := range []int{1, 4} {
		got, err := r.SolveBatch(context.Background(), queries, workers)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrCityOutOfRange)
		assert.Contains(t, err.Error(), "query 3")
	}
}

// TestExplainBatch_Verdicts verifies full verdicts are returned.
func TestExplainBatch_Verdicts(t *testing.T) {
	r := newTestResolver(t, createChain(t, 5), WithPairing(PairingAnchored))

	verdicts, err := r.ExplainBatch(context.Background(), [][]CityID{{1, 5}, {1, 2}}, 2)
	require.NoError(t, err)
	require.Len(t, verdicts, 2)

	require.NotNil(t, verdicts[0].Meeting)
	assert.Equal(t, CityID(3), verdicts[0].Meeting.Node)
	assert.Equal(t, 2, verdicts[0].Meeting.Traveled)
	assert.Equal(t, RejectOddParity, verdicts[1].Rejection)
}

// TestSolveBatch_Empty verifies an empty batch is not an error.
func TestSolveBatch_Empty(t *testing.T) {
	r := newTestResolver(t, createChain(t, 2))
	got, err := r.SolveBatch(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}
