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
	"strconv"
	"strings"
)

// Unspecified marks a wildcard position in a relative state.
const Unspecified = -1

// State is a multi-valued state vector, one value per variable.
//
// Description:
//
//	A ground state holds a concrete value in every position. A relative
//	state may hold Unspecified in any position, meaning "any value here";
//	it stands for the set of ground states obtained by assigning every
//	wildcard. States are immutable by convention: operations that produce
//	a new state always return a fresh slice.
//
// Thread Safety: Safe for concurrent reads.
type State []int

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	copy(out, s)
	return out
}

// IsGround reports whether no position is a wildcard.
func (s State) IsGround() bool {
	for _, v := range s {
		if v == Unspecified {
			return false
		}
	}
	return true
}

// Wildcards returns the number of Unspecified positions.
func (s State) Wildcards() int {
	n := 0
	for _, v := range s {
		if v == Unspecified {
			n++
		}
	}
	return n
}

// Equal reports positional equality, wildcards included.
func (s State) Equal(other State) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Generalizes reports whether every concrete position of s equals the
// corresponding position of other.
//
// Description:
//
//	A relative state generalizes every ground state it represents, and
//	every relative state whose concrete positions are a superset of its
//	own. A wildcard in other only matches a wildcard in s.
//
// Inputs:
//   - other: The probe state. Must have the same length as s.
//
// Outputs:
//   - bool: True if s generalizes other.
func (s State) Generalizes(other State) bool {
	if len(s) != len(other) {
		return false
	}
	for i, v := range s {
		if v != Unspecified && v != other[i] {
			return false
		}
	}
	return true
}

// Holds reports whether the fact is true in the state.
func (s State) Holds(f Fact) bool {
	return f.Var >= 0 && f.Var < len(s) && s[f.Var] == f.Value
}

// Satisfies reports whether all facts hold.
func (s State) Satisfies(facts []Fact) bool {
	for _, f := range facts {
		if !s.Holds(f) {
			return false
		}
	}
	return true
}

// Key returns a compact string usable as a map key.
//
// Values are written as base-36 numbers separated by '.', with '*' for
// wildcards. Two states have the same key iff they are Equal.
func (s State) Key() string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i, v := range s {
		if i > 0 {
			b.WriteByte('.')
		}
		if v == Unspecified {
			b.WriteByte('*')
			continue
		}
		b.WriteString(strconv.FormatInt(int64(v), 36))
	}
	return b.String()
}

// ParseKey is the inverse of State.Key.
func ParseKey(key string) (State, error) {
	if key == "" {
		return State{}, nil
	}
	parts := strings.Split(key, ".")
	out := make(State, len(parts))
	for i, p := range parts {
		if p == "*" {
			out[i] = Unspecified
			continue
		}
		v, err := strconv.ParseInt(p, 36, 64)
		if err != nil {
			return nil, err
		}
		out[i] = int(v)
	}
	return out, nil
}

// String renders the state as [0,-1,1].
func (s State) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	b.WriteByte(']')
	return b.String()
}

// Fact is a (variable, value) assignment.
type Fact struct {
	Var   int `json:"var" yaml:"var"`
	Value int `json:"value" yaml:"value"`
}

// String renders the fact as v=val.
func (f Fact) String() string {
	return strconv.Itoa(f.Var) + "=" + strconv.Itoa(f.Value)
}
