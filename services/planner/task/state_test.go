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

func TestState_Generalizes(t *testing.T) {
	tests := []struct {
		name  string
		s     State
		other State
		want  bool
	}{
		{"all wildcards", State{-1, -1, -1}, State{0, 1, 0}, true},
		{"concrete match", State{0, -1, 1}, State{0, 1, 1}, true},
		{"concrete mismatch", State{0, -1, 1}, State{1, 1, 1}, false},
		{"wildcard in probe", State{0, -1, 1}, State{-1, 0, 1}, false},
		{"wildcard in both", State{-1, -1, 1}, State{-1, 0, 1}, true},
		{"length mismatch", State{0}, State{0, 0}, false},
		{"self", State{2, -1, 0}, State{2, -1, 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Generalizes(tt.other); got != tt.want {
				t.Errorf("%v.Generalizes(%v) = %v, want %v", tt.s, tt.other, got, tt.want)
			}
		})
	}
}

func TestState_GroundAndWildcards(t *testing.T) {
	assert.True(t, State{0, 1, 2}.IsGround())
	assert.False(t, State{0, -1, 2}.IsGround())
	assert.Equal(t, 2, State{-1, 0, -1}.Wildcards())
	assert.Equal(t, 0, State{}.Wildcards())
}

func TestState_CloneIsIndependent(t *testing.T) {
	s := State{1, 2, 3}
	c := s.Clone()
	c[0] = 9
	assert.Equal(t, 1, s[0])
	assert.True(t, s.Equal(State{1, 2, 3}))
	assert.False(t, s.Equal(c))
}

func TestState_KeyRoundTrip(t *testing.T) {
	states := []State{
		{},
		{0},
		{-1, -1},
		{0, -1, 1},
		{35, 36, 1000, -1},
	}
	seen := make(map[string]bool)
	for _, s := range states {
		key := s.Key()
		assert.False(t, seen[key], "duplicate key %q", key)
		seen[key] = true

		back, err := ParseKey(key)
		require.NoError(t, err)
		assert.True(t, s.Equal(back), "ParseKey(%q) = %v, want %v", key, back, s)
	}
	assert.Equal(t, "0.*.1", State{0, -1, 1}.Key())
}

func TestParseKey_Invalid(t *testing.T) {
	_, err := ParseKey("0.?.1")
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "[0,-1,1]", State{0, -1, 1}.String())
	assert.Equal(t, "[]", State{}.String())
	assert.Equal(t, "2=1", Fact{Var: 2, Value: 1}.String())
}

func TestState_Satisfies(t *testing.T) {
	s := State{0, -1, 1}
	assert.True(t, s.Satisfies([]Fact{{Var: 0, Value: 0}, {Var: 2, Value: 1}}))
	assert.False(t, s.Satisfies([]Fact{{Var: 1, Value: 0}}), "wildcard must not satisfy")
	assert.False(t, s.Holds(Fact{Var: 5, Value: 0}), "out of range variable")
	assert.True(t, s.Satisfies(nil))
}
