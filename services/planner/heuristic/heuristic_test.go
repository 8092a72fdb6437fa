// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package heuristic

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task/tasktest"
)

func newFF(t *testing.T, tk *task.Task, mutate func(*FFConfig)) *FF {
	t.Helper()
	cfg := DefaultFFConfig()
	cfg.Timeout = 0
	if mutate != nil {
		mutate(&cfg)
	}
	h, err := NewFF(tk, cfg)
	require.NoError(t, err)
	return h
}

func TestFF_GoalStateIsZero(t *testing.T) {
	tk := tasktest.Toy()
	h := newFF(t, tk, nil)
	assert.Equal(t, 0.0, h.Evaluate(task.State{0, 0, 1}))
	assert.Equal(t, 0.0, h.Evaluate(tk.GoalState()), "relative goal state")
}

func TestFF_RelaxedPlanOnToy(t *testing.T) {
	tk := tasktest.Toy()
	h := newFF(t, tk, nil)
	assert.Equal(t, 2.0, h.Evaluate(tk.Initial))

	// From [*,0,0] the relaxed plan is set-b, flip-a, reset-a, set-c.
	assert.Equal(t, 4.0, h.Evaluate(task.State{-1, 0, 0}))

	costed := newFF(t, tk, func(c *FFConfig) { c.UseCosts = true })
	assert.Equal(t, 5.0, costed.Evaluate(task.State{-1, 0, 0}))
	assert.Equal(t, int64(2), h.Stats().Evaluations)
}

func TestFF_SupportSum(t *testing.T) {
	tk := tasktest.Toy()
	h := newFF(t, tk, func(c *FFConfig) { c.Mode = ModeSupportSum })
	assert.Equal(t, 2.0, h.Evaluate(tk.Initial))
	assert.Equal(t, 0.0, h.Evaluate(task.State{1, 1, 1}))
}

func TestFF_Chain(t *testing.T) {
	tk := tasktest.Chain(10)
	h := newFF(t, tk, nil)
	for k := 0; k <= 10; k++ {
		assert.Equal(t, float64(10-k), h.Evaluate(task.State{k}), "counter %d", k)
	}
}

func TestFF_DeadEnd(t *testing.T) {
	tk := tasktest.Unsolvable()
	h := newFF(t, tk, nil)
	v := h.Evaluate(tk.Initial)
	assert.True(t, math.IsInf(v, 1), "got %v", v)
	assert.Equal(t, int64(1), h.Stats().DeadEnds)
}

func TestFF_LayerCutoffIsDeadEnd(t *testing.T) {
	tk := tasktest.Chain(10)
	h := newFF(t, tk, func(c *FFConfig) { c.MaxLayers = 3 })
	assert.True(t, math.IsInf(h.Evaluate(tk.Initial), 1))
	assert.Equal(t, 3.0, h.Evaluate(task.State{7}), "within the cutoff")
	assert.Equal(t, int64(1), h.Stats().Cutoffs)
}

func TestFF_Timeout(t *testing.T) {
	tk := tasktest.Toy()
	h := newFF(t, tk, func(c *FFConfig) { c.Timeout = time.Millisecond })
	clock := time.Unix(0, 0)
	h.now = func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	}
	assert.True(t, math.IsInf(h.Evaluate(tk.Initial), 1))
	assert.Equal(t, int64(1), h.Stats().Cutoffs)
}

func TestFF_ConditionalEffects(t *testing.T) {
	tk, err := task.New("button",
		[]task.Variable{{Name: "armed", Range: 2}, {Name: "fired", Range: 2}},
		[]*task.Operator{
			{
				Name:    "press",
				Cost:    1,
				Effects: []task.Effect{{Fact: task.Fact{Var: 1, Value: 1}, Conditions: []task.Fact{{Var: 0, Value: 1}}}},
			},
			{
				Name:    "arm",
				Cost:    3,
				Effects: []task.Effect{{Fact: task.Fact{Var: 0, Value: 1}}},
			},
		},
		task.State{0, 0}, []task.Fact{{Var: 1, Value: 1}})
	require.NoError(t, err)

	h := newFF(t, tk, nil)
	assert.Equal(t, 2.0, h.Evaluate(tk.Initial))
	assert.Equal(t, 1.0, h.Evaluate(task.State{1, 0}))

	costed := newFF(t, tk, func(c *FFConfig) { c.UseCosts = true })
	assert.Equal(t, 4.0, costed.Evaluate(tk.Initial))
}

func TestFF_SharedSupporterCountedOnce(t *testing.T) {
	tk, err := task.New("pair",
		[]task.Variable{{Name: "x", Range: 2}, {Name: "y", Range: 2}},
		[]*task.Operator{{
			Name: "both",
			Cost: 1,
			Effects: []task.Effect{
				{Fact: task.Fact{Var: 0, Value: 1}},
				{Fact: task.Fact{Var: 1, Value: 1}},
			},
		}},
		task.State{0, 0}, []task.Fact{{Var: 0, Value: 1}, {Var: 1, Value: 1}})
	require.NoError(t, err)

	h := newFF(t, tk, nil)
	assert.Equal(t, 1.0, h.Evaluate(tk.Initial))
}

func TestFF_HintIsSingleUse(t *testing.T) {
	tk := tasktest.Toy()
	h := newFF(t, tk, nil)
	h.SetHint(42)
	assert.Equal(t, 42.0, h.Evaluate(tk.Initial))
	assert.Equal(t, 2.0, h.Evaluate(tk.Initial))
	assert.Equal(t, int64(1), h.Stats().Hinted)
	assert.Equal(t, int64(1), h.Stats().Evaluations)
}

func TestNewFF_InvalidConfig(t *testing.T) {
	tk := tasktest.Toy()
	_, err := NewFF(tk, FFConfig{MaxLayers: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewFF(tk, FFConfig{Mode: "max"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	h, err := NewFF(tk, FFConfig{})
	require.NoError(t, err)
	assert.Equal(t, ModeRelaxedPlan, h.Config().Mode)
	assert.Equal(t, 1000, h.Config().MaxLayers)
}

func TestGoalCountAndBlind(t *testing.T) {
	tk := tasktest.Grid(3, 3)
	gc := NewGoalCount(tk)
	assert.Equal(t, 2.0, gc.Evaluate(tk.Initial))
	assert.Equal(t, 1.0, gc.Evaluate(task.State{2, 0, 1}))
	assert.Equal(t, 0.0, gc.Evaluate(task.State{2, 2, 1}))

	b := &Blind{}
	assert.Equal(t, 0.0, b.Evaluate(tk.Initial))
	b.SetHint(3)
	assert.Equal(t, 3.0, b.Evaluate(tk.Initial))
	assert.Equal(t, 0.0, b.Evaluate(tk.Initial))
}

func TestNew_ByName(t *testing.T) {
	tk := tasktest.Toy()
	for _, name := range Names() {
		h, err := New(name, tk, DefaultFFConfig())
		require.NoError(t, err, name)
		assert.Equal(t, name, h.Name())
	}
	h, err := New(" FF ", tk, DefaultFFConfig())
	require.NoError(t, err)
	assert.Equal(t, NameFF, h.Name())

	_, err = New("lmcut", tk, DefaultFFConfig())
	assert.ErrorIs(t, err, ErrUnknownHeuristic)
}
