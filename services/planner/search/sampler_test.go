// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlanner/services/planner/pq"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task/tasktest"
)

func samplerConfig(n int) SamplerConfig {
	cfg := DefaultSamplerConfig()
	cfg.Samples = n
	cfg.MaxWalkLength = 6
	cfg.TimeLimit = 0
	cfg.Seed = 99
	cfg.Connector = ConnectorConfig{MaxNodes: 10_000}
	return cfg
}

func newTestSampler(t *testing.T, tk *task.Task, region *EnumerationResult, cfg SamplerConfig) *Sampler {
	t.Helper()
	s, err := NewSampler(tk, region, nil, cfg, quietLogger())
	require.NoError(t, err)
	return s
}

// trueDistance solves from s with uniform-cost search.
func trueDistance(t *testing.T, tk *task.Task, s task.State) (int, bool) {
	t.Helper()
	e := newTestEngine(t, tk, nil, func(c *EngineConfig) { c.Algorithm = AlgorithmUniformCost })
	res, err := e.Solve(context.Background(), s)
	require.NoError(t, err)
	return res.Cost, res.Status == StatusSolutionFound
}

func collect(seq func(func(Sample) bool)) []Sample {
	var out []Sample
	for s := range seq {
		out = append(out, s)
	}
	return out
}

func TestSampler_GroundSamplesAreExact(t *testing.T) {
	tk := tasktest.Toy()
	region := enumerate(t, tk, enumConfig(pq.KindBinary))
	s := newTestSampler(t, tk, region, samplerConfig(40))

	seq, err := s.GroundSamples(context.Background())
	require.NoError(t, err)
	samples := collect(seq)
	require.Len(t, samples, 40)

	for _, sm := range samples {
		require.True(t, sm.State.IsGround(), "%v", sm.State)
		assert.Equal(t, SourceRelative, sm.Source)
		assert.True(t, sm.SurelyCorrect)
		want, ok := trueDistance(t, tk, sm.State)
		require.True(t, ok)
		assert.Equal(t, float64(want), sm.Distance, "%v", sm.State)
	}
}

func TestSampler_ParentDistanceIsUpperBound(t *testing.T) {
	tk := tasktest.Toy()
	region := enumerate(t, tk, enumConfig(pq.KindBinary))
	cfg := samplerConfig(40)
	cfg.ParentDistance = true
	s := newTestSampler(t, tk, region, cfg)

	seq, err := s.GroundSamples(context.Background())
	require.NoError(t, err)
	for _, sm := range collect(seq) {
		assert.False(t, sm.SurelyCorrect)
		want, ok := trueDistance(t, tk, sm.State)
		require.True(t, ok)
		assert.GreaterOrEqual(t, sm.Distance, float64(want))
	}
}

func TestSampler_GroundSamplesKeepRigidValues(t *testing.T) {
	tk := tasktest.Grid(3, 3)
	region := enumerate(t, tk, enumConfig(pq.KindBinary))
	s := newTestSampler(t, tk, region, samplerConfig(30))

	seq, err := s.GroundSamples(context.Background())
	require.NoError(t, err)
	for _, sm := range collect(seq) {
		assert.Equal(t, tk.Initial[2], sm.State[2], "terrain is rigid")
	}
}

func TestSampler_GroundSamplesNeedRegion(t *testing.T) {
	s := newTestSampler(t, tasktest.Toy(), nil, samplerConfig(5))
	_, err := s.GroundSamples(context.Background())
	assert.ErrorIs(t, err, ErrNoRegion)
}

func TestSampler_GoalWalksOnCompleteRegion(t *testing.T) {
	tk := tasktest.Toy()
	region := enumerate(t, tk, enumConfig(pq.KindBinary))
	s := newTestSampler(t, tk, region, samplerConfig(30))

	samples := collect(s.FromGoalWalks(context.Background()))
	require.Len(t, samples, 30)
	for _, sm := range samples {
		assert.Equal(t, SourceGoalWalk, sm.Source)
		assert.True(t, sm.SurelyCorrect)
		want, ok := trueDistance(t, tk, sm.State)
		require.True(t, ok)
		assert.Equal(t, float64(want), sm.Distance, "%v", sm.State)
	}
	assert.GreaterOrEqual(t, s.ShorteningCoefficient(), 0.0)
	assert.LessOrEqual(t, s.ShorteningCoefficient(), 1.0, "true distance never exceeds walk cost")
}

func TestSampler_GoalWalksConnectBeyondBoundedRegion(t *testing.T) {
	tk := tasktest.Chain(8)
	cfg := enumConfig(pq.KindBinary)
	cfg.Budget.MaxNodes = 3
	region := enumerate(t, tk, cfg)
	require.Equal(t, StatusMemoryLimitExceeded, region.Status)

	sc := samplerConfig(25)
	sc.MaxWalkLength = 8
	s := newTestSampler(t, tk, region, sc)
	for _, sm := range collect(s.FromGoalWalks(context.Background())) {
		assert.False(t, sm.SurelyCorrect, "region is partial")
		assert.Equal(t, float64(8-sm.State[0]), sm.Distance)
	}
	assert.Equal(t, 1.0, s.ShorteningCoefficient(), "walks on a chain are shortest paths")
}

func TestSampler_InitialWalks(t *testing.T) {
	tk := tasktest.Toy()
	region := enumerate(t, tk, enumConfig(pq.KindBinary))
	s := newTestSampler(t, tk, region, samplerConfig(20))

	samples := collect(s.FromInitialWalks(context.Background()))
	require.Len(t, samples, 20)
	for _, sm := range samples {
		assert.Equal(t, SourceInitialWalk, sm.Source)
		assert.True(t, sm.SurelyCorrect)
		want, ok := trueDistance(t, tk, sm.State)
		require.True(t, ok)
		assert.Equal(t, float64(want), sm.Distance)
	}
}

func TestSampler_FallbacksWithoutRegion(t *testing.T) {
	tk := tasktest.Chain(5)
	s := newTestSampler(t, tk, nil, samplerConfig(10))

	for _, sm := range collect(s.FromInitialWalks(context.Background())) {
		assert.False(t, sm.SurelyCorrect)
		if sm.State[0] == 5 {
			assert.Equal(t, 0.0, sm.Distance)
		} else {
			assert.Equal(t, 1.0, sm.Distance, "goal-count fallback")
		}
	}
	for _, sm := range collect(s.FromGoalWalks(context.Background())) {
		assert.False(t, sm.SurelyCorrect)
		assert.Equal(t, float64(5-sm.State[0]), sm.Distance, "walk cost times the default coefficient")
	}
}

func TestSampler_StreamTimeLimit(t *testing.T) {
	tk := tasktest.Toy()
	cfg := samplerConfig(50)
	cfg.TimeLimit = time.Millisecond
	s := newTestSampler(t, tk, nil, cfg)
	clock := time.Unix(0, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	assert.Empty(t, collect(s.FromInitialWalks(context.Background())))
}

func TestSampler_EarlyBreak(t *testing.T) {
	tk := tasktest.Toy()
	s := newTestSampler(t, tk, nil, samplerConfig(50))
	n := 0
	for range s.FromInitialWalks(context.Background()) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestConnector(t *testing.T) {
	tk := tasktest.Chain(8)
	cfg := enumConfig(pq.KindBinary)
	cfg.Budget.MaxNodes = 3
	region := enumerate(t, tk, cfg)

	c, err := NewConnector(tk, region, ConnectorConfig{})
	require.NoError(t, err)
	conn := c.Connect(task.State{0})
	assert.True(t, conn.Found)
	assert.True(t, conn.Exact)
	assert.Equal(t, 8, conn.Distance)

	conn = c.Connect(task.State{7})
	assert.True(t, conn.Found)
	assert.Equal(t, 1, conn.Distance)
	assert.Equal(t, int64(1), conn.Expanded)

	c, err = NewConnector(tk, region, ConnectorConfig{MaxNodes: 1})
	require.NoError(t, err)
	conn = c.Connect(task.State{0})
	assert.False(t, conn.Found)
	assert.False(t, conn.Exact)
	assert.False(t, conn.DeadEnd)

	_, err = NewConnector(tk, nil, ConnectorConfig{})
	assert.ErrorIs(t, err, ErrNoRegion)
}

func TestConnector_DeadEnd(t *testing.T) {
	tk := tasktest.Unsolvable()
	region := enumerate(t, tk, enumConfig(pq.KindBinary))
	c, err := NewConnector(tk, region, DefaultConnectorConfig())
	require.NoError(t, err)
	conn := c.Connect(tk.Initial)
	assert.False(t, conn.Found)
	assert.True(t, conn.DeadEnd)
	assert.True(t, conn.Exact)
}

func TestSample_JSONDeadEnd(t *testing.T) {
	in := []Sample{
		{State: task.State{1, 0}, Distance: 3, SurelyCorrect: true, Source: SourceGoalWalk},
		{State: task.State{0, 0}, Distance: math.Inf(1), SurelyCorrect: true, Source: SourceInitialWalk},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"distance":null,"dead_end":true`)

	var out []Sample
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
	assert.True(t, out[1].DeadEnd())
	assert.False(t, out[0].DeadEnd())
}
