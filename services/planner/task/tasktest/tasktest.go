// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tasktest provides small planning tasks for tests.
package tasktest

import (
	"fmt"

	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

// ToyYAML is a three-variable task with four operators.
//
// Optimal goal distances (backward, relative states):
//
//	[*,*,1] 0   [0,*,0] 1   [1,*,0] 2   [*,1,0] 3   [*,0,0] 5
//
// The initial state [1,0,0] is two steps from the goal.
const ToyYAML = `
name: toy
variables:
  - {name: a, range: 2}
  - {name: b, range: 2}
  - {name: c, range: 2, values: [off, on]}
operators:
  - name: set-c
    preconditions: [{var: 0, value: 0}, {var: 2, value: 0}]
    effects: [{var: 2, value: 1}]
  - name: reset-a
    preconditions: [{var: 0, value: 1}]
    effects: [{var: 0, value: 0}]
  - name: set-b
    cost: 2
    preconditions: [{var: 1, value: 0}]
    effects: [{var: 1, value: 1}]
  - name: flip-a
    preconditions: [{var: 1, value: 1}]
    effects: [{var: 0, value: 1}]
initial: [1, 0, 0]
goal: [{var: 2, value: 1}]
`

// Toy builds the task described by ToyYAML.
func Toy() *task.Task {
	t, err := task.Parse([]byte(ToyYAML))
	if err != nil {
		panic(err)
	}
	return t
}

// Chain builds a task with one counter variable of range n+1 that can only
// be incremented. The goal is value n from initial 0, so distances are
// exact: value k is n-k steps away.
func Chain(n int) *task.Task {
	ops := make([]*task.Operator, n)
	for i := 0; i < n; i++ {
		ops[i] = &task.Operator{
			Name:          fmt.Sprintf("inc-%d", i),
			Cost:          1,
			Preconditions: []task.Fact{{Var: 0, Value: i}},
			Effects:       []task.Effect{{Fact: task.Fact{Var: 0, Value: i + 1}}},
		}
	}
	t, err := task.New(fmt.Sprintf("chain-%d", n),
		[]task.Variable{{Name: "counter", Range: n + 1}},
		ops, task.State{0}, []task.Fact{{Var: 0, Value: n}})
	if err != nil {
		panic(err)
	}
	return t
}

// Unsolvable builds a task whose goal value is never written by any
// operator and differs from the initial value.
func Unsolvable() *task.Task {
	t, err := task.New("unsolvable",
		[]task.Variable{{Name: "x", Range: 2}, {Name: "y", Range: 3}},
		[]*task.Operator{{
			Name:          "cycle-y",
			Cost:          1,
			Preconditions: []task.Fact{{Var: 1, Value: 0}},
			Effects:       []task.Effect{{Fact: task.Fact{Var: 1, Value: 1}}},
		}},
		task.State{0, 0}, []task.Fact{{Var: 0, Value: 1}})
	if err != nil {
		panic(err)
	}
	return t
}

// Grid builds a width x height grid walk with a rigid "terrain" variable.
// The agent starts at (0,0) and must reach (width-1, height-1).
func Grid(width, height int) *task.Task {
	vars := []task.Variable{
		{Name: "x", Range: width},
		{Name: "y", Range: height},
		{Name: "terrain", Range: 2},
	}
	var ops []*task.Operator
	for x := 0; x < width; x++ {
		if x+1 < width {
			ops = append(ops, move(fmt.Sprintf("right-%d", x), 0, x, x+1))
			ops = append(ops, move(fmt.Sprintf("left-%d", x+1), 0, x+1, x))
		}
	}
	for y := 0; y < height; y++ {
		if y+1 < height {
			ops = append(ops, move(fmt.Sprintf("down-%d", y), 1, y, y+1))
			ops = append(ops, move(fmt.Sprintf("up-%d", y+1), 1, y+1, y))
		}
	}
	t, err := task.New(fmt.Sprintf("grid-%dx%d", width, height), vars, ops,
		task.State{0, 0, 1},
		[]task.Fact{{Var: 0, Value: width - 1}, {Var: 1, Value: height - 1}})
	if err != nil {
		panic(err)
	}
	return t
}

func move(name string, v, from, to int) *task.Operator {
	return &task.Operator{
		Name:          name,
		Cost:          1,
		Preconditions: []task.Fact{{Var: v, Value: from}},
		Effects:       []task.Effect{{Fact: task.Fact{Var: v, Value: to}}},
	}
}
