// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlanner/services/planner/pmatch"
	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task/tasktest"
)

func newTestStore(t *testing.T) *ResultStore {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewResultStore(db)
	require.NoError(t, err)
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func toyEnumeration(t *testing.T) (*task.Task, *search.EnumerationResult) {
	t.Helper()
	tk := tasktest.Toy()
	cfg := search.DefaultEnumeratorConfig()
	cfg.Index = pmatch.Config{Seed: 5}
	e, err := search.NewEnumerator(tk, cfg, quietLogger())
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	return tk, res
}

func TestResultStore_Enumeration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tk, res := toyEnumeration(t)

	require.NoError(t, s.SaveEnumeration(ctx, res))

	loaded, err := s.LoadEnumeration(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.Entries, loaded.Entries)
	assert.Equal(t, res.Status, loaded.Status)
	assert.Equal(t, res.Complete, loaded.Complete)
	assert.Equal(t, res.InitialDistance, loaded.InitialDistance)
	assert.Nil(t, loaded.Index(), "index is rebuilt by the caller")

	require.NoError(t, loaded.Rebuild(tk, pmatch.Config{Seed: 1}))
	g, ok := loaded.Distance(tk.Initial)
	require.True(t, ok)
	assert.Equal(t, res.InitialDistance, g)

	meta, err := s.Meta(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, KindEnumeration, meta.Kind)
	assert.Equal(t, len(res.Entries), meta.Count)
	assert.Equal(t, "toy", meta.Task)
}

func TestResultStore_Solution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := &search.Result{
		SessionID: "sol-1",
		Task:      "toy",
		Algorithm: search.AlgorithmAStar,
		Status:    search.StatusSolutionFound,
		Plan:      []search.Step{{Index: 2, Name: "reset-a", Cost: 1}, {Index: 0, Name: "set-c", Cost: 1}},
		Cost:      2,
		Expanded:  3,
		Elapsed:   time.Millisecond,
	}
	require.NoError(t, s.SaveSolution(ctx, res))

	loaded, err := s.LoadSolution(ctx, "sol-1")
	require.NoError(t, err)
	assert.Equal(t, res, loaded)

	_, err = s.LoadEnumeration(ctx, "sol-1")
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestResultStore_Samples(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	samples := make([]search.Sample, 25)
	for i := range samples {
		samples[i] = search.Sample{State: task.State{i % 3, 1}, Distance: float64(i), Source: search.SourceGoalWalk}
	}
	samples[7].Distance = math.Inf(1)

	require.NoError(t, s.SaveSamples(ctx, "smp-1", "grid", search.SourceGoalWalk, "enum-1", samples))

	loaded, err := s.LoadSamples(ctx, "smp-1")
	require.NoError(t, err)
	assert.Equal(t, samples, loaded, "order and dead ends survive")

	meta, err := s.Meta(ctx, "smp-1")
	require.NoError(t, err)
	assert.Equal(t, KindSamples, meta.Kind)
	assert.Equal(t, "enum-1", meta.Parent)
	assert.Equal(t, 25, meta.Count)
}

func TestResultStore_ListAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	clock := time.Unix(1_000, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveSamples(ctx, id, "toy", search.SourceRelative, "", []search.Sample{{State: task.State{0}}}))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	require.NoError(t, s.Delete(ctx, "b"))
	_, err = s.Meta(ctx, "b")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.LoadSamples(ctx, "b")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrSessionNotFound)

	rest, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestResultStore_Validation(t *testing.T) {
	_, err := NewResultStore(nil)
	assert.ErrorIs(t, err, ErrNilDB)

	s := newTestStore(t)
	assert.Error(t, s.SaveSolution(context.Background(), nil))
	assert.Error(t, s.SaveEnumeration(context.Background(), &search.EnumerationResult{}))
	assert.Error(t, s.SaveSamples(context.Background(), "", "toy", "", "", nil))
}
