// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package task holds the already-grounded planning problem model.
//
// Description:
//
//	A Task is a set of multi-valued variables, operators with
//	(conditional) effects, a ground initial state and a goal given as
//	facts. It is immutable once built and is the only object search
//	sessions share.
package task

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// Variable is a multi-valued state variable with domain [0, Range).
type Variable struct {
	Name  string `json:"name" yaml:"name"`
	Range int    `json:"range" yaml:"range"`

	// Values optionally names each domain value.
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// ValueName returns the configured name of a value or its number.
func (v Variable) ValueName(value int) string {
	if value == Unspecified {
		return "*"
	}
	if value >= 0 && value < len(v.Values) && v.Values[value] != "" {
		return v.Values[value]
	}
	return fmt.Sprintf("%d", value)
}

// Task is an already-grounded planning problem.
//
// Thread Safety: Immutable after New returns; safe for concurrent use by
// any number of search sessions.
type Task struct {
	Name      string
	Variables []Variable
	Operators []*Operator
	Initial   State
	Goal      []Fact

	rigid     []bool
	achievers [][]int
}

// New validates the parts and precomputes rigid variables and the
// per-variable achiever index.
//
// Inputs:
//   - name: Label used in logs and stored results.
//   - vars: Variable definitions. Must be non-empty.
//   - ops: Operators. Index fields are overwritten with their position.
//   - initial: The ground initial state.
//   - goal: Goal facts.
//
// Outputs:
//   - *Task: The built task.
//   - error: Wraps ErrInvalidTask when any part is malformed.
func New(name string, vars []Variable, ops []*Operator, initial State, goal []Fact) (*Task, error) {
	t := &Task{
		Name:      name,
		Variables: vars,
		Operators: ops,
		Initial:   initial,
		Goal:      goal,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	t.rigid = make([]bool, len(vars))
	for i := range t.rigid {
		t.rigid[i] = true
	}
	t.achievers = make([][]int, len(vars))
	for i, op := range ops {
		op.Index = i
		seen := make(map[int]bool, len(op.Effects))
		for _, e := range op.Effects {
			t.rigid[e.Var] = false
			if !seen[e.Var] {
				seen[e.Var] = true
				t.achievers[e.Var] = append(t.achievers[e.Var], i)
			}
		}
	}
	return t, nil
}

// Validate checks ranges, variable references and costs.
func (t *Task) Validate() error {
	if len(t.Variables) == 0 {
		return fmt.Errorf("%w: no variables", ErrInvalidTask)
	}
	for i, v := range t.Variables {
		if v.Range <= 0 {
			return fmt.Errorf("%w: variable %d (%s) has range %d", ErrInvalidTask, i, v.Name, v.Range)
		}
		if len(v.Values) > 0 && len(v.Values) != v.Range {
			return fmt.Errorf("%w: variable %d (%s) names %d values for range %d",
				ErrInvalidTask, i, v.Name, len(v.Values), v.Range)
		}
	}

	if len(t.Initial) != len(t.Variables) {
		return fmt.Errorf("%w: initial state has %d values for %d variables",
			ErrInvalidTask, len(t.Initial), len(t.Variables))
	}
	for i, val := range t.Initial {
		if val < 0 || val >= t.Variables[i].Range {
			return fmt.Errorf("%w: initial value %d out of range for variable %d", ErrInvalidTask, val, i)
		}
	}

	if len(t.Goal) == 0 {
		return fmt.Errorf("%w: empty goal", ErrInvalidTask)
	}
	if err := t.checkFacts("goal", t.Goal); err != nil {
		return err
	}

	for i, op := range t.Operators {
		if op == nil {
			return fmt.Errorf("%w: operator %d is nil", ErrInvalidTask, i)
		}
		if op.Cost < 0 {
			return fmt.Errorf("%w: operator %q has negative cost %d", ErrInvalidTask, op.Name, op.Cost)
		}
		if len(op.Effects) == 0 {
			return fmt.Errorf("%w: operator %q has no effects", ErrInvalidTask, op.Name)
		}
		if err := t.checkFacts("precondition of "+op.Name, op.Preconditions); err != nil {
			return err
		}
		for _, e := range op.Effects {
			if err := t.checkFacts("effect of "+op.Name, []Fact{e.Fact}); err != nil {
				return err
			}
			if err := t.checkFacts("effect condition of "+op.Name, e.Conditions); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Task) checkFacts(what string, facts []Fact) error {
	for _, f := range facts {
		if f.Var < 0 || f.Var >= len(t.Variables) {
			return fmt.Errorf("%w: %s references unknown variable %d", ErrInvalidTask, what, f.Var)
		}
		if f.Value < 0 || f.Value >= t.Variables[f.Var].Range {
			return fmt.Errorf("%w: %s value %d out of range for variable %d",
				ErrInvalidTask, what, f.Value, f.Var)
		}
	}
	return nil
}

// NumVars returns the number of variables.
func (t *Task) NumVars() int {
	return len(t.Variables)
}

// Ranges returns the domain range of every variable.
func (t *Task) Ranges() []int {
	out := make([]int, len(t.Variables))
	for i, v := range t.Variables {
		out[i] = v.Range
	}
	return out
}

// IsRigid reports whether no operator ever writes variable v.
func (t *Task) IsRigid(v int) bool {
	return t.rigid[v]
}

// Achievers returns the indices of operators with an effect on v.
//
// The returned slice is shared; callers must not modify it.
func (t *Task) Achievers(v int) []int {
	return t.achievers[v]
}

// GoalState returns the goal as a relative state, wildcards elsewhere.
func (t *Task) GoalState() State {
	s := make(State, len(t.Variables))
	for i := range s {
		s[i] = Unspecified
	}
	for _, f := range t.Goal {
		s[f.Var] = f.Value
	}
	return s
}

// IsGoal reports whether every goal fact holds in s.
func (t *Task) IsGoal(s State) bool {
	return s.Satisfies(t.Goal)
}

// Instantiate returns a ground state represented by rel.
//
// Description:
//
//	Each wildcard receives the initial value when its variable is rigid,
//	or a uniformly random in-range value otherwise.
//
// Inputs:
//   - rel: A relative state.
//   - rng: Random source owned by the caller.
//
// Outputs:
//   - State: A fresh ground state generalized by rel.
func (t *Task) Instantiate(rel State, rng *rand.Rand) State {
	out := rel.Clone()
	for i, v := range out {
		if v != Unspecified {
			continue
		}
		if t.rigid[i] {
			out[i] = t.Initial[i]
			continue
		}
		out[i] = rng.IntN(t.Variables[i].Range)
	}
	return out
}

// Successors calls fn for every operator applicable in the ground state s.
// Iteration stops when fn returns false.
func (t *Task) Successors(s State, fn func(op *Operator, next State) bool) {
	for _, op := range t.Operators {
		if !op.Applicable(s) {
			continue
		}
		if !fn(op, op.Apply(s)) {
			return
		}
	}
}

// Predecessors calls fn for every operator that regresses target.
// Iteration stops when fn returns false.
//
// Only operators with an effect on a concrete position of target are
// tried.
func (t *Task) Predecessors(target State, fn func(op *Operator, pred State) bool) {
	tried := make(map[int]bool)
	for v, val := range target {
		if val == Unspecified {
			continue
		}
		for _, idx := range t.achievers[v] {
			if tried[idx] {
				continue
			}
			tried[idx] = true
			op := t.Operators[idx]
			pred, ok := op.Regress(target)
			if !ok {
				continue
			}
			if !fn(op, pred) {
				return
			}
		}
	}
}

// ErrInvalidTask is wrapped by every validation failure.
var ErrInvalidTask = errors.New("invalid task")
