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
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/pq"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

// ConnectorConfig bounds a single connection search.
type ConnectorConfig struct {
	// TimeLimit is the wall-clock limit per Connect call.
	TimeLimit time.Duration `json:"time_limit" yaml:"time_limit" validate:"gte=0"`

	// MaxNodes caps open plus closed states per Connect call.
	MaxNodes int `json:"max_nodes" yaml:"max_nodes" validate:"gte=0"`
}

// DefaultConnectorConfig returns short limits suited to per-sample use.
func DefaultConnectorConfig() ConnectorConfig {
	return ConnectorConfig{
		TimeLimit: 50 * time.Millisecond,
		MaxNodes:  10_000,
	}
}

// Connection is the outcome of Connector.Connect.
type Connection struct {
	// Distance is the best start-to-goal cost found through the explored
	// region. Meaningful only when Found.
	Distance int `json:"distance"`

	// Found reports whether any path into the explored region was found.
	Found bool `json:"found"`

	// Exact reports that Distance is the true distance relative to the
	// region: the search stopped on its distance bound or exhausted the
	// reachable space.
	Exact bool `json:"exact"`

	// DeadEnd reports that the reachable space was exhausted without
	// touching the region.
	DeadEnd bool `json:"dead_end"`

	Expanded int64 `json:"expanded"`
}

type connNode struct {
	state  task.State
	d      int
	closed bool
}

// Connector runs bounded forward Dijkstra from ground states into the
// region covered by an enumeration result.
//
// Thread Safety: Not safe for concurrent use.
type Connector struct {
	task   *task.Task
	region *EnumerationResult
	config ConnectorConfig
	now    func() time.Time
}

// NewConnector creates a connector over region.
func NewConnector(t *task.Task, region *EnumerationResult, config ConnectorConfig) (*Connector, error) {
	if t == nil {
		return nil, ErrNilTask
	}
	if region == nil {
		return nil, ErrNoRegion
	}
	return &Connector{task: t, region: region, config: config, now: time.Now}, nil
}

// Connect searches forward from start until it can prove the shortest
// path into the region.
//
// Description:
//
//	States are removed in order of forward cost d. A removed state covered
//	by a closed entry of the region yields the candidate d + g and is not
//	expanded further. The search stops exactly when the next d is no
//	smaller than the best candidate, since every other path has at least
//	that cost. Hitting the time limit or node cap returns the best
//	candidate so far, not exact.
func (c *Connector) Connect(start task.State) Connection {
	var out Connection
	budget := newBudgetWithClock(BudgetConfig{TimeLimit: c.config.TimeLimit, MaxNodes: c.config.MaxNodes}, c.now)
	open := pq.NewDary[*connNode](2)
	seen := make(map[string]*connNode)
	closed := 0

	// A rejected key ends the search without an exact answer.
	var rejected error
	push := func(d int, n *connNode) bool {
		if err := open.Insert(float64(d), n); err != nil {
			rejected = err
			return false
		}
		return true
	}

	root := &connNode{state: start.Clone()}
	seen[root.state.Key()] = root
	push(0, root)

	for {
		if rejected != nil {
			break
		}
		if open.Len() == 0 {
			out.Exact = true
			out.DeadEnd = !out.Found
			break
		}
		if out.Found && open.MinKey() >= float64(out.Distance) {
			out.Exact = true
			break
		}
		if budget.Check(open.Len(), closed) != nil {
			break
		}

		n := open.RemoveMin()
		if n.closed {
			continue
		}
		n.closed = true
		closed++
		budget.RecordExpansion()

		if g, ok := c.region.Distance(n.state); ok {
			if !out.Found || n.d+g < out.Distance {
				out.Distance, out.Found = n.d+g, true
			}
			continue
		}

		c.task.Successors(n.state, func(op *task.Operator, next task.State) bool {
			d := n.d + op.Cost
			key := next.Key()
			if known, ok := seen[key]; ok {
				if known.closed || known.d <= d {
					return true
				}
				known.d = d
				return push(d, known)
			}
			child := &connNode{state: next, d: d}
			seen[key] = child
			return push(d, child)
		})
	}
	out.Expanded = budget.Expanded()
	return out
}
