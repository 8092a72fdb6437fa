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

// DefaultOperatorCost is used when a task file omits the cost.
const DefaultOperatorCost = 1

// Effect writes Value into Var, optionally guarded by side conditions.
type Effect struct {
	Fact `yaml:",inline"`

	// Conditions must all hold in the state the operator is applied to for
	// the effect to fire. Empty means unconditional.
	Conditions []Fact `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// IsConditional reports whether the effect has side conditions.
func (e Effect) IsConditional() bool {
	return len(e.Conditions) > 0
}

// Operator transforms states forward (Apply) or backward (Regress).
//
// Thread Safety: Immutable after the owning Task is built; safe for
// concurrent use.
type Operator struct {
	// Index is the position of the operator in Task.Operators.
	Index int `json:"-" yaml:"-"`

	// Name is a human-readable label.
	Name string `json:"name" yaml:"name"`

	// Cost is the non-negative integer cost of applying the operator.
	Cost int `json:"cost" yaml:"cost"`

	// Preconditions must all hold for the operator to apply.
	Preconditions []Fact `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`

	// Effects are written when the operator applies.
	Effects []Effect `json:"effects" yaml:"effects"`
}

// Applicable reports whether all preconditions hold in s.
//
// A wildcard never satisfies a precondition.
func (o *Operator) Applicable(s State) bool {
	return s.Satisfies(o.Preconditions)
}

// Apply returns the successor of s.
//
// Description:
//
//	Conditional effects fire when their conditions hold in s (the state
//	before application). The caller is responsible for checking
//	Applicable first; Apply does not re-check preconditions.
//
// Inputs:
//   - s: The state the operator is applied to.
//
// Outputs:
//   - State: A fresh successor state.
func (o *Operator) Apply(s State) State {
	next := s.Clone()
	for _, e := range o.Effects {
		if e.IsConditional() && !s.Satisfies(e.Conditions) {
			continue
		}
		next[e.Var] = e.Value
	}
	return next
}

// Regress computes the predecessor relative state of target.
//
// Description:
//
//	The operator is relevant when at least one effect writes a value that
//	target requires. It is consistent when no effect writes a value that
//	contradicts a concrete target position and every precondition agrees
//	with the target positions that survive regression.
//
//	The predecessor starts as target, clears every position the operator
//	achieves, then imposes the preconditions. A conditional effect used to
//	achieve a target position adds its conditions as further
//	preconditions. A conditional effect that contradicts the target makes
//	the operator inapplicable backward, even though the effect might not
//	fire; this keeps regression sound without branching.
//
// Inputs:
//   - target: The (relative) state that must hold after the operator.
//
// Outputs:
//   - State: The predecessor relative state.
//   - bool: False if the operator is irrelevant or inconsistent.
func (o *Operator) Regress(target State) (State, bool) {
	pred := target.Clone()
	achieves := false
	var conditions []Fact

	for _, e := range o.Effects {
		tv := target[e.Var]
		if tv == Unspecified {
			continue
		}
		if tv != e.Value {
			return nil, false
		}
		achieves = true
		pred[e.Var] = Unspecified
		conditions = append(conditions, e.Conditions...)
	}
	if !achieves {
		return nil, false
	}

	if !impose(pred, o.Preconditions) || !impose(pred, conditions) {
		return nil, false
	}
	return pred, true
}

// impose writes facts into s, failing on a contradicting concrete value.
func impose(s State, facts []Fact) bool {
	for _, f := range facts {
		cur := s[f.Var]
		if cur != Unspecified && cur != f.Value {
			return false
		}
		s[f.Var] = f.Value
	}
	return true
}

// String returns the operator name.
func (o *Operator) String() string {
	return o.Name
}
