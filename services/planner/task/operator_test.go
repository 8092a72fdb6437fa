// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eff(v, val int, conds ...Fact) Effect {
	return Effect{Fact: Fact{Var: v, Value: val}, Conditions: conds}
}

func TestOperator_ApplyAndApplicable(t *testing.T) {
	op := &Operator{
		Name:          "move",
		Cost:          1,
		Preconditions: []Fact{{Var: 0, Value: 0}},
		Effects: []Effect{
			eff(0, 1),
			eff(1, 2, Fact{Var: 2, Value: 1}),
		},
	}

	s := State{0, 0, 0}
	require.True(t, op.Applicable(s))
	next := op.Apply(s)
	assert.Equal(t, State{1, 0, 0}, next, "conditional effect must not fire")
	assert.Equal(t, State{0, 0, 0}, s, "Apply must not mutate its input")

	s = State{0, 0, 1}
	assert.Equal(t, State{1, 2, 1}, op.Apply(s))

	assert.False(t, op.Applicable(State{1, 0, 0}))
	assert.False(t, op.Applicable(State{-1, 0, 0}))
}

func TestOperator_RegressToyExample(t *testing.T) {
	op := &Operator{
		Name:          "set-c",
		Cost:          1,
		Preconditions: []Fact{{Var: 0, Value: 0}, {Var: 2, Value: 0}},
		Effects:       []Effect{eff(2, 1)},
	}
	pred, ok := op.Regress(State{-1, -1, 1})
	require.True(t, ok)
	assert.Equal(t, State{0, -1, 0}, pred)
}

func TestOperator_Regress(t *testing.T) {
	tests := []struct {
		name   string
		op     *Operator
		target State
		want   State
		ok     bool
	}{
		{
			name:   "irrelevant",
			op:     &Operator{Effects: []Effect{eff(0, 1)}},
			target: State{-1, 1},
			ok:     false,
		},
		{
			name:   "effect contradicts target",
			op:     &Operator{Effects: []Effect{eff(0, 1), eff(1, 0)}},
			target: State{1, 1},
			ok:     false,
		},
		{
			name: "precondition contradicts surviving value",
			op: &Operator{
				Preconditions: []Fact{{Var: 1, Value: 0}},
				Effects:       []Effect{eff(0, 1)},
			},
			target: State{1, 1},
			ok:     false,
		},
		{
			name: "precondition on achieved variable",
			op: &Operator{
				Preconditions: []Fact{{Var: 0, Value: 0}},
				Effects:       []Effect{eff(0, 1)},
			},
			target: State{1, -1},
			want:   State{0, -1},
			ok:     true,
		},
		{
			name: "unused effect on wildcard",
			op: &Operator{
				Effects: []Effect{eff(0, 1), eff(1, 1)},
			},
			target: State{1, -1},
			want:   State{-1, -1},
			ok:     true,
		},
		{
			name: "used conditional effect adds its conditions",
			op: &Operator{
				Effects: []Effect{eff(0, 1, Fact{Var: 1, Value: 2})},
			},
			target: State{1, -1},
			want:   State{-1, 2},
			ok:     true,
		},
		{
			name: "contradicting conditional effect",
			op: &Operator{
				Effects: []Effect{eff(0, 1), eff(1, 0, Fact{Var: 0, Value: 0})},
			},
			target: State{1, 1},
			ok:     false,
		},
		{
			name: "condition conflicts with precondition",
			op: &Operator{
				Preconditions: []Fact{{Var: 1, Value: 0}},
				Effects:       []Effect{eff(0, 1, Fact{Var: 1, Value: 1})},
			},
			target: State{1, -1},
			ok:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.target.Clone()
			got, ok := tt.op.Regress(tt.target)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
			assert.Equal(t, target, tt.target, "Regress must not mutate target")
		})
	}
}

// Regression is sound: every ground instance of the predecessor reaches a
// state generalized by the target.
func TestOperator_RegressSoundness(t *testing.T) {
	op := &Operator{
		Preconditions: []Fact{{Var: 0, Value: 0}},
		Effects:       []Effect{eff(1, 1), eff(2, 1, Fact{Var: 0, Value: 0})},
	}
	target := State{-1, 1, 1}
	pred, ok := op.Regress(target)
	require.True(t, ok)

	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for c := 0; c < 2; c++ {
				g := State{a, b, c}
				if !pred.Generalizes(g) {
					continue
				}
				require.True(t, op.Applicable(g), "state %v", g)
				assert.True(t, target.Generalizes(op.Apply(g)), "state %v", g)
			}
		}
	}
}
