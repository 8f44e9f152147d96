// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fairness

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounts is an in-memory GroupCounts backed by fixed tallies.
type fakeCounts struct {
	total    map[string]int
	approved map[string]int
	err      error
}

func (f *fakeCounts) CountByGroup(_ context.Context, group string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.total[group], nil
}

func (f *fakeCounts) CountApprovedByGroup(_ context.Context, group string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.approved[group], nil
}

// TestDisparateImpact verifies the ratio over known tallies.
func TestDisparateImpact(t *testing.T) {
	tests := []struct {
		name   string
		counts fakeCounts
		want   float64
	}{
		{
			name: "equal rates",
			counts: fakeCounts{
				total:    map[string]int{"A": 10, "B": 20},
				approved: map[string]int{"A": 5, "B": 10},
			},
			want: 1.0,
		},
		{
			name: "unprivileged at four fifths",
			counts: fakeCounts{
				total:    map[string]int{"A": 100, "B": 100},
				approved: map[string]int{"A": 50, "B": 40},
			},
			want: 0.8,
		},
		{
			name: "unprivileged favored",
			counts: fakeCounts{
				total:    map[string]int{"A": 10, "B": 10},
				approved: map[string]int{"A": 2, "B": 4},
			},
			want: 2.0,
		},
		{
			name: "empty unprivileged group",
			counts: fakeCounts{
				total:    map[string]int{"A": 10},
				approved: map[string]int{"A": 5},
			},
			want: 0,
		},
		{
			name: "zero privileged rate",
			counts: fakeCounts{
				total:    map[string]int{"A": 10, "B": 10},
				approved: map[string]int{"B": 5},
			},
			want: 0,
		},
		{
			name:   "no data at all",
			counts: fakeCounts{},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DisparateImpact(context.Background(), &tt.counts, "A", "B")
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

// TestDisparateImpact_StoreError verifies count failures propagate.
func TestDisparateImpact_StoreError(t *testing.T) {
	counts := &fakeCounts{err: errors.New("disk on fire")}

	_, err := DisparateImpact(context.Background(), counts, "A", "B")
	assert.ErrorContains(t, err, "disk on fire")
}

// TestDisparateImpact_Inverse verifies the symmetry property on random
// synthetic tallies: ratio(A,B) * ratio(B,A) == 1 whenever both rates
// are nonzero.
func TestDisparateImpact_Inverse(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		totalA := 1 + rng.Intn(200)
		totalB := 1 + rng.Intn(200)
		counts := &fakeCounts{
			total: map[string]int{"A": totalA, "B": totalB},
			approved: map[string]int{
				"A": 1 + rng.Intn(totalA),
				"B": 1 + rng.Intn(totalB),
			},
		}

		forward, err := DisparateImpact(ctx, counts, "A", "B")
		require.NoError(t, err)
		backward, err := DisparateImpact(ctx, counts, "B", "A")
		require.NoError(t, err)

		assert.InDelta(t, 1.0, forward*backward, 1e-9)
	}
}
