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
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of an already-grounded task.
//
// Description:
//
//	Documents are accepted as YAML or JSON. Operator cost defaults to
//	DefaultOperatorCost when omitted.
type Document struct {
	Name      string        `json:"name" yaml:"name"`
	Variables []Variable    `json:"variables" yaml:"variables"`
	Operators []OperatorDoc `json:"operators" yaml:"operators"`
	Initial   []int         `json:"initial" yaml:"initial"`
	Goal      []Fact        `json:"goal" yaml:"goal"`
}

// OperatorDoc is an operator as written in a task document.
type OperatorDoc struct {
	Name          string   `json:"name" yaml:"name"`
	Cost          *int     `json:"cost,omitempty" yaml:"cost,omitempty"`
	Preconditions []Fact   `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`
	Effects       []Effect `json:"effects" yaml:"effects"`
}

// Load reads and builds a task from a YAML or JSON file.
func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", path, err)
	}
	return t, nil
}

// Parse builds a task from YAML or JSON bytes.
func Parse(data []byte) (*Task, error) {
	var doc Document

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, &doc); err != nil {
		if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil {
			return nil, fmt.Errorf("%w: parse (tried YAML and JSON): YAML error: %v, JSON error: %v",
				ErrInvalidTask, err, jsonErr)
		}
	}
	return doc.Build()
}

// Build converts the document into a validated Task.
func (d Document) Build() (*Task, error) {
	ops := make([]*Operator, len(d.Operators))
	for i, od := range d.Operators {
		cost := DefaultOperatorCost
		if od.Cost != nil {
			cost = *od.Cost
		}
		name := od.Name
		if name == "" {
			name = fmt.Sprintf("op%d", i)
		}
		ops[i] = &Operator{
			Name:          name,
			Cost:          cost,
			Preconditions: od.Preconditions,
			Effects:       od.Effects,
		}
	}
	return New(d.Name, d.Variables, ops, State(d.Initial), d.Goal)
}

// ToDocument returns the serialisable form of t.
func (t *Task) ToDocument() Document {
	ops := make([]OperatorDoc, len(t.Operators))
	for i, op := range t.Operators {
		cost := op.Cost
		ops[i] = OperatorDoc{
			Name:          op.Name,
			Cost:          &cost,
			Preconditions: op.Preconditions,
			Effects:       op.Effects,
		}
	}
	return Document{
		Name:      t.Name,
		Variables: t.Variables,
		Operators: ops,
		Initial:   []int(t.Initial.Clone()),
		Goal:      t.Goal,
	}
}
