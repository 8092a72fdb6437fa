// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pmatch

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

func testConfig() Config {
	return Config{QueryTimeout: 0, Seed: 17}
}

// allKeys enumerates every relative state over n variables of range r.
func allKeys(n, r int) []task.State {
	keys := []task.State{{}}
	for i := 0; i < n; i++ {
		var next []task.State
		for _, k := range keys {
			for v := -1; v < r; v++ {
				s := append(k.Clone(), v)
				next = append(next, s)
			}
		}
		keys = next
	}
	return keys
}

func TestIndex_PutGet(t *testing.T) {
	ix := New[int]([]int{2, 3, 2}, testConfig())

	isNew, err := ix.Put(task.State{0, -1, 1}, 5)
	require.NoError(t, err)
	assert.True(t, isNew)
	isNew, err = ix.Put(task.State{0, 2, 1}, 6)
	require.NoError(t, err)
	assert.True(t, isNew)
	isNew, err = ix.Put(task.State{0, -1, 1}, 7)
	require.NoError(t, err)
	assert.False(t, isNew, "overwrite is not new")
	assert.Equal(t, 2, ix.Len())

	v, ok := ix.Get(task.State{0, -1, 1})
	require.True(t, ok)
	assert.Equal(t, 7, v)
	v, ok = ix.Get(task.State{0, 2, 1})
	require.True(t, ok)
	assert.Equal(t, 6, v)

	_, ok = ix.Get(task.State{0, 1, 1})
	assert.False(t, ok)
	_, ok = ix.Get(task.State{0, 1})
	assert.False(t, ok)
	assert.Equal(t, int64(2), ix.Stats().Promotions, "root and the shared 0 branch")
}

func TestIndex_PutCopiesKey(t *testing.T) {
	ix := New[int]([]int{2, 2}, testConfig())
	key := task.State{1, 0}
	_, err := ix.Put(key, 1)
	require.NoError(t, err)
	key[0] = 0
	_, ok := ix.Get(task.State{1, 0})
	assert.True(t, ok)
}

func TestIndex_PutRejectsMalformed(t *testing.T) {
	ix := New[int]([]int{2, 2}, testConfig())
	_, err := ix.Put(task.State{0}, 1)
	assert.ErrorIs(t, err, ErrKeyLength)
	_, err = ix.Put(task.State{0, 2}, 1)
	assert.ErrorIs(t, err, ErrValueRange)
	_, err = ix.Put(task.State{-2, 0}, 1)
	assert.ErrorIs(t, err, ErrValueRange)
	assert.Equal(t, 0, ix.Len())
}

func TestIndex_MatchingAgreesWithBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ranges := []int{3, 2, 4, 2, 3}
	ix := New[int](ranges, testConfig())

	var stored []task.State
	for i := 0; i < 300; i++ {
		k := make(task.State, len(ranges))
		for j, r := range ranges {
			if rng.IntN(3) == 0 {
				k[j] = task.Unspecified
			} else {
				k[j] = rng.IntN(r)
			}
		}
		isNew, err := ix.Put(k, i)
		require.NoError(t, err)
		if isNew {
			stored = append(stored, k)
		}
	}
	require.Equal(t, len(stored), ix.Len())

	for trial := 0; trial < 200; trial++ {
		probe := make(task.State, len(ranges))
		for j, r := range ranges {
			probe[j] = rng.IntN(r)
			if trial%4 == 0 && j == 1 {
				probe[j] = task.Unspecified
			}
		}

		want := make(map[string]bool)
		for _, k := range stored {
			if k.Generalizes(probe) {
				want[k.Key()] = true
			}
		}

		assert.Equal(t, len(want) > 0, ix.ContainsMatching(probe), "probe %v", probe)

		all, complete := ix.Matching(probe, 0)
		require.True(t, complete)
		got := make(map[string]bool)
		for _, m := range all {
			got[m.Key.Key()] = true
			assert.True(t, m.Key.Generalizes(probe))
		}
		assert.Equal(t, want, got, "probe %v", probe)

		limited, _ := ix.Matching(probe, 2)
		assert.LessOrEqual(t, len(limited), 2)
		for _, m := range limited {
			assert.True(t, want[m.Key.Key()])
		}
	}
}

func TestIndex_ExhaustiveSmallDomain(t *testing.T) {
	ix := New[string]([]int{2, 2, 2}, testConfig())
	for _, k := range allKeys(3, 2) {
		_, err := ix.Put(k, k.Key())
		require.NoError(t, err)
	}
	assert.Equal(t, 27, ix.Len())

	// Each position of a ground probe is matched by the wildcard and by
	// its own value.
	matches, complete := ix.Matching(task.State{1, 0, 1}, 0)
	require.True(t, complete)
	assert.Len(t, matches, 8)

	// A probe wildcard is only matched by a stored wildcard.
	matches, _ = ix.Matching(task.State{1, -1, 1}, 0)
	assert.Len(t, matches, 4)
	for _, m := range matches {
		assert.Equal(t, task.Unspecified, m.Key[1])
		v, ok := ix.Get(m.Key)
		require.True(t, ok)
		assert.Equal(t, m.Key.Key(), v)
	}
}

func TestIndex_AllAndClear(t *testing.T) {
	ix := New[int]([]int{3, 3}, testConfig())
	for i, k := range allKeys(2, 3) {
		_, err := ix.Put(k, i)
		require.NoError(t, err)
	}
	seen := make(map[string]int)
	for k, v := range ix.All() {
		seen[k.Key()] = v
	}
	assert.Len(t, seen, 16)

	count := 0
	for range ix.All() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)

	ix.Clear()
	assert.Equal(t, 0, ix.Len())
	assert.False(t, ix.ContainsMatching(task.State{0, 0}))
	assert.Equal(t, 1, ix.Stats().Nodes)
}

func TestIndex_QueryTimeout(t *testing.T) {
	ix := New[int]([]int{2, 2, 2, 2, 2, 2}, Config{QueryTimeout: time.Millisecond, Seed: 3})
	for i, k := range allKeys(6, 2) {
		_, err := ix.Put(k, i)
		require.NoError(t, err)
	}

	clock := time.Unix(0, 0)
	ix.now = func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	}

	matches, complete := ix.Matching(task.State{0, 0, 0, 0, 0, 0}, 0)
	assert.False(t, complete)
	assert.Less(t, len(matches), 64, "2^6 keys match; the cutoff must truncate")
	for _, m := range matches {
		assert.True(t, m.Key.Generalizes(task.State{0, 0, 0, 0, 0, 0}))
	}
	assert.Equal(t, int64(1), ix.Stats().TruncatedQueries)

	ix.now = time.Now
	ix.config.QueryTimeout = time.Minute
	matches, complete = ix.Matching(task.State{0, 0, 0, 0, 0, 0}, 0)
	assert.True(t, complete)
	assert.Len(t, matches, 64)
}

func TestIndex_RandomizedOrderStillComplete(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		ix := New[int]([]int{2, 2}, Config{Seed: seed})
		for i, k := range allKeys(2, 2) {
			_, err := ix.Put(k, i)
			require.NoError(t, err)
		}
		for i := 0; i < 10; i++ {
			m, complete := ix.Matching(task.State{1, 1}, 0)
			require.True(t, complete)
			assert.Len(t, m, 4)
		}
	}
}
