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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlanner/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlanner/services/planner/pq"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task/tasktest"
)

func newTestFF(t *testing.T, tk *task.Task) heuristic.Heuristic {
	t.Helper()
	cfg := heuristic.DefaultFFConfig()
	cfg.Timeout = 0
	h, err := heuristic.NewFF(tk, cfg)
	require.NoError(t, err)
	return h
}

func newTestEngine(t *testing.T, tk *task.Task, h heuristic.Heuristic, mutate func(*EngineConfig)) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.Budget = BudgetConfig{}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(tk, h, cfg, quietLogger())
	require.NoError(t, err)
	return e
}

// replay applies the plan from start and returns the final state.
func replay(t *testing.T, tk *task.Task, start task.State, plan []Step) task.State {
	t.Helper()
	s := start.Clone()
	for _, step := range plan {
		op := tk.Operators[step.Index]
		require.True(t, op.Applicable(s), "%s not applicable in %v", op.Name, s)
		s = op.Apply(s)
	}
	return s
}

func TestEngine_ToyAStar(t *testing.T) {
	tk := tasktest.Toy()
	e := newTestEngine(t, tk, newTestFF(t, tk), nil)

	res, err := e.Solve(context.Background(), tk.Initial)
	require.NoError(t, err)
	assert.Equal(t, StatusSolutionFound, res.Status)
	assert.Equal(t, 2, res.Cost)
	require.Len(t, res.Plan, 2)
	assert.Equal(t, "reset-a", res.Plan[0].Name)
	assert.Equal(t, "set-c", res.Plan[1].Name)
	assert.True(t, tk.IsGoal(replay(t, tk, tk.Initial, res.Plan)))
	assert.NotEmpty(t, res.SessionID)
}

func TestEngine_UniformCostAcrossQueues(t *testing.T) {
	tk := tasktest.Grid(4, 3)
	for _, kind := range pq.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			e := newTestEngine(t, tk, nil, func(c *EngineConfig) {
				c.Algorithm = AlgorithmUniformCost
				c.Queue = kind
			})
			res, err := e.Solve(context.Background(), tk.Initial)
			require.NoError(t, err)
			require.Equal(t, StatusSolutionFound, res.Status)
			assert.Equal(t, 5, res.Cost)
			assert.Len(t, res.Plan, 5)
			assert.True(t, tk.IsGoal(replay(t, tk, tk.Initial, res.Plan)))
		})
	}
}

func TestEngine_Algorithms(t *testing.T) {
	tk := tasktest.Grid(5, 5)
	for _, alg := range Algorithms() {
		t.Run(string(alg), func(t *testing.T) {
			e := newTestEngine(t, tk, newTestFF(t, tk), func(c *EngineConfig) {
				c.Algorithm = alg
				c.Queue = pq.KindFibonacci
			})
			res, err := e.Solve(context.Background(), tk.Initial)
			require.NoError(t, err)
			require.Equal(t, StatusSolutionFound, res.Status)
			assert.True(t, tk.IsGoal(replay(t, tk, tk.Initial, res.Plan)))
			assert.Equal(t, 8, res.Cost, "FF is exact on an open grid")
			assert.Equal(t, alg, res.Algorithm)
		})
	}
}

func TestEngine_GreedyExpandsLessThanUniformCost(t *testing.T) {
	tk := tasktest.Grid(6, 6)
	greedy := newTestEngine(t, tk, newTestFF(t, tk), func(c *EngineConfig) { c.Algorithm = AlgorithmGreedy })
	ucs := newTestEngine(t, tk, nil, func(c *EngineConfig) { c.Algorithm = AlgorithmUniformCost })

	g, err := greedy.Solve(context.Background(), tk.Initial)
	require.NoError(t, err)
	u, err := ucs.Solve(context.Background(), tk.Initial)
	require.NoError(t, err)
	assert.Equal(t, u.Cost, g.Cost)
	assert.Equal(t, int64(11), g.Expanded, "one expansion per step plus the goal")
	assert.Less(t, g.Expanded, u.Expanded)
}

func TestEngine_GoalAtStart(t *testing.T) {
	tk := tasktest.Toy()
	e := newTestEngine(t, tk, newTestFF(t, tk), nil)
	res, err := e.Solve(context.Background(), task.State{0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, StatusSolutionFound, res.Status)
	assert.Empty(t, res.Plan)
	assert.Equal(t, 0, res.Cost)
}

func TestEngine_DeadEndPrunedAtStart(t *testing.T) {
	tk := tasktest.Unsolvable()
	e := newTestEngine(t, tk, newTestFF(t, tk), nil)
	res, err := e.Solve(context.Background(), tk.Initial)
	require.NoError(t, err)
	assert.Equal(t, StatusNoSolutionExist, res.Status)
	assert.Equal(t, int64(1), res.Pruned)
	assert.Equal(t, int64(0), res.Expanded)
}

func TestEngine_ExhaustsWithoutHeuristic(t *testing.T) {
	tk := tasktest.Unsolvable()
	e := newTestEngine(t, tk, nil, func(c *EngineConfig) { c.Algorithm = AlgorithmUniformCost })
	res, err := e.Solve(context.Background(), tk.Initial)
	require.NoError(t, err)
	assert.Equal(t, StatusNoSolutionExist, res.Status)
	assert.Equal(t, int64(2), res.Expanded)
}

func TestEngine_MemoryLimit(t *testing.T) {
	tk := tasktest.Grid(4, 4)
	e := newTestEngine(t, tk, nil, func(c *EngineConfig) {
		c.Algorithm = AlgorithmUniformCost
		c.Budget.MaxNodes = 1
	})
	res, err := e.Solve(context.Background(), tk.Initial)
	require.NoError(t, err)
	assert.Equal(t, StatusMemoryLimitExceeded, res.Status)
	assert.Equal(t, "nodes", res.ExhaustedBy)
	assert.Empty(t, res.Plan)
}

func TestEngine_TimeLimit(t *testing.T) {
	tk := tasktest.Grid(4, 4)
	e := newTestEngine(t, tk, newTestFF(t, tk), func(c *EngineConfig) { c.Budget.TimeLimit = time.Millisecond })
	clock := time.Unix(0, 0)
	e.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	res, err := e.Solve(context.Background(), tk.Initial)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeLimitExceeded, res.Status)
}

func TestEngine_InvalidStart(t *testing.T) {
	tk := tasktest.Toy()
	e := newTestEngine(t, tk, newTestFF(t, tk), nil)

	_, err := e.Solve(context.Background(), task.State{0, -1, 0})
	assert.ErrorIs(t, err, ErrInvalidStart)
	_, err = e.Solve(context.Background(), task.State{0})
	assert.ErrorIs(t, err, ErrInvalidStart)
}

func TestNewEngine_Validation(t *testing.T) {
	tk := tasktest.Toy()
	h := newTestFF(t, tk)

	_, err := NewEngine(nil, h, DefaultEngineConfig(), nil)
	assert.ErrorIs(t, err, ErrNilTask)

	_, err = NewEngine(tk, nil, DefaultEngineConfig(), nil)
	assert.ErrorIs(t, err, ErrNilHeuristic)

	cfg := DefaultEngineConfig()
	cfg.Algorithm = "ida"
	_, err = NewEngine(tk, h, cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	cfg = DefaultEngineConfig()
	cfg.Weight = 0.5
	_, err = NewEngine(tk, h, cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultEngineConfig()
	cfg.Queue = "skew"
	_, err = NewEngine(tk, h, cfg, nil)
	assert.ErrorIs(t, err, pq.ErrUnknownKind)

	e, err := NewEngine(tk, h, EngineConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmAStar, e.Config().Algorithm)
	assert.Equal(t, 2.0, e.Config().Weight)
	assert.Equal(t, pq.KindBinary, e.Config().Queue)
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" Weighted-AStar ")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmWeightedAStar, a)

	_, err = ParseAlgorithm("beam")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestOperationError(t *testing.T) {
	err := opError("engine", "Solve", ErrInvalidStart)
	assert.Equal(t, "engine.Solve: invalid start state", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidStart))
}

func TestStatus_Bounded(t *testing.T) {
	for _, s := range Statuses() {
		want := s == StatusTimeLimitExceeded || s == StatusMemoryLimitExceeded
		assert.Equal(t, want, s.Bounded(), string(s))
	}
	assert.Equal(t, StatusTimeLimitExceeded, statusFor(ErrTimeLimitExceeded))
	assert.Equal(t, StatusMemoryLimitExceeded, statusFor(ErrNodeLimitExceeded))
}
