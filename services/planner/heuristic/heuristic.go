// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package heuristic provides goal-distance estimators for search.
//
// Description:
//
//	A Heuristic maps a state to an estimated cost-to-goal; +Inf marks a
//	provable dead end. Estimators are recomputed from scratch on every
//	call and keep no cache across states. The only override is an
//	explicit single-use hint set by the caller for the next call.
package heuristic

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

// Package-level error definitions.
var (
	ErrUnknownHeuristic = errors.New("unknown heuristic")
	ErrInvalidConfig    = errors.New("invalid heuristic config")
)

// Inf is the dead-end value.
var Inf = math.Inf(1)

// Heuristic estimates the cost from a state to the goal.
type Heuristic interface {
	// Name returns the registered name of the estimator.
	Name() string

	// Evaluate returns the estimate for s, or +Inf for a dead end.
	Evaluate(s task.State) float64
}

// Hinted is implemented by heuristics that accept a precomputed value for
// their next evaluation.
type Hinted interface {
	Heuristic

	// SetHint makes the next Evaluate return v without computing. The hint
	// is consumed by that call.
	SetHint(v float64)
}

// Names of the built-in heuristics.
const (
	NameBlind     = "blind"
	NameGoalCount = "goal-count"
	NameFF        = "ff"
)

// Names lists the built-in heuristics.
func Names() []string {
	return []string{NameBlind, NameGoalCount, NameFF}
}

// New constructs a heuristic by name.
//
// Inputs:
//   - name: One of Names(), case-insensitive.
//   - t: The task to estimate for. Must not be nil.
//   - config: FF configuration; ignored by the other heuristics.
//
// Outputs:
//   - Hinted: The heuristic.
//   - error: ErrUnknownHeuristic or ErrInvalidConfig.
func New(name string, t *task.Task, config FFConfig) (Hinted, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameBlind:
		return &Blind{}, nil
	case NameGoalCount:
		return NewGoalCount(t), nil
	case NameFF:
		ff, err := NewFF(t, config)
		if err != nil {
			return nil, err
		}
		return ff, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownHeuristic, name)
}

// hintSlot holds a single-use override value.
type hintSlot struct {
	value float64
	set   bool
}

// SetHint stores v for the next evaluation.
func (h *hintSlot) SetHint(v float64) {
	h.value = v
	h.set = true
}

// take returns and clears the hint.
func (h *hintSlot) take() (float64, bool) {
	if !h.set {
		return 0, false
	}
	h.set = false
	return h.value, true
}

// Blind returns 0 everywhere. With it, best-first search degrades to
// uniform-cost search.
type Blind struct {
	hintSlot
}

func (*Blind) Name() string { return NameBlind }

func (b *Blind) Evaluate(task.State) float64 {
	if v, ok := b.take(); ok {
		return v
	}
	return 0
}

// GoalCount returns the number of goal facts not holding in the state.
type GoalCount struct {
	hintSlot
	goal []task.Fact
}

// NewGoalCount creates a goal-count heuristic for t.
func NewGoalCount(t *task.Task) *GoalCount {
	return &GoalCount{goal: t.Goal}
}

func (*GoalCount) Name() string { return NameGoalCount }

func (g *GoalCount) Evaluate(s task.State) float64 {
	if v, ok := g.take(); ok {
		return v
	}
	n := 0
	for _, f := range g.goal {
		if !s.Holds(f) {
			n++
		}
	}
	return float64(n)
}
