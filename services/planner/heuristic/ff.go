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
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

// Mode selects how the FF value is extracted from the planning graph.
type Mode string

const (
	// ModeRelaxedPlan counts (or sums the cost of) the actions of an
	// extracted relaxed plan, each action once.
	ModeRelaxedPlan Mode = "relaxed-plan"

	// ModeSupportSum sums the sizes of the support sets met while chaining
	// back from the goal.
	ModeSupportSum Mode = "support-sum"
)

// FFConfig configures the FF heuristic.
type FFConfig struct {
	// MaxLayers is the hard cutoff on fact layers. Reaching it is treated
	// as a dead end.
	MaxLayers int `json:"max_layers" yaml:"max_layers" validate:"gte=0"`

	// UseCosts sums operator costs instead of counting actions.
	UseCosts bool `json:"use_costs" yaml:"use_costs"`

	// Mode selects the extraction.
	Mode Mode `json:"mode" yaml:"mode" validate:"omitempty,oneof=relaxed-plan support-sum"`

	// Timeout bounds a single evaluation. Zero disables the bound.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultFFConfig returns the default FF configuration.
func DefaultFFConfig() FFConfig {
	return FFConfig{
		MaxLayers: 1000,
		UseCosts:  false,
		Mode:      ModeRelaxedPlan,
		Timeout:   time.Second,
	}
}

// Stats counts FF evaluations by outcome.
type Stats struct {
	Evaluations int64 `json:"evaluations"`
	Hinted      int64 `json:"hinted"`
	DeadEnds    int64 `json:"dead_ends"`
	Cutoffs     int64 `json:"cutoffs"`
}

// -----------------------------------------------------------------------------
// Compiled task
// -----------------------------------------------------------------------------

type ffEffect struct {
	fact  int32
	conds []int32
}

type ffOp struct {
	cost    float64
	pre     []int32
	effects []ffEffect
}

// FF is the relaxed-planning-graph heuristic.
//
// Description:
//
//	From the evaluated state, fact layer 0 holds the concrete facts of the
//	state; wildcard positions contribute none. Action layer k holds every
//	operator whose preconditions are all in fact layer k, and fact layer
//	k+1 adds their effects (conditional effects once their conditions are
//	in layer k). Deletes are ignored. For every fact first reached in
//	layer k+1 the support map records the layer-k actions producing it.
//
//	Construction stops when the goal holds in the latest layer (success),
//	when a layer adds nothing (dead end), or when MaxLayers or Timeout is
//	hit (cutoff, also reported as a dead end). The value is then extracted
//	backward from the goal facts.
//
// Thread Safety: Not safe for concurrent use; the hint and statistics are
// per instance. Build one per search session.
type FF struct {
	hintSlot
	config  FFConfig
	goal    []int32
	ops     []ffOp
	offsets []int32
	nFacts  int
	stats   Stats
	now     func() time.Time
}

// NewFF compiles t into fact indices for fast graph construction.
func NewFF(t *task.Task, config FFConfig) (*FF, error) {
	if config.MaxLayers < 0 {
		return nil, fmt.Errorf("%w: max_layers %d", ErrInvalidConfig, config.MaxLayers)
	}
	if config.MaxLayers == 0 {
		config.MaxLayers = DefaultFFConfig().MaxLayers
	}
	switch config.Mode {
	case "":
		config.Mode = ModeRelaxedPlan
	case ModeRelaxedPlan, ModeSupportSum:
	default:
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidConfig, config.Mode)
	}

	h := &FF{config: config, now: time.Now}
	h.offsets = make([]int32, t.NumVars())
	n := int32(0)
	for i, v := range t.Variables {
		h.offsets[i] = n
		n += int32(v.Range)
	}
	h.nFacts = int(n)

	h.goal = h.factIDs(t.Goal)
	h.ops = make([]ffOp, len(t.Operators))
	for i, op := range t.Operators {
		c := ffOp{cost: float64(op.Cost), pre: h.factIDs(op.Preconditions)}
		for _, e := range op.Effects {
			c.effects = append(c.effects, ffEffect{fact: h.factID(e.Fact), conds: h.factIDs(e.Conditions)})
		}
		h.ops[i] = c
	}
	return h, nil
}

func (h *FF) factID(f task.Fact) int32 {
	return h.offsets[f.Var] + int32(f.Value)
}

func (h *FF) factIDs(facts []task.Fact) []int32 {
	out := make([]int32, len(facts))
	for i, f := range facts {
		out[i] = h.factID(f)
	}
	return out
}

func (*FF) Name() string { return NameFF }

// Config returns the effective configuration.
func (h *FF) Config() FFConfig {
	return h.config
}

// Stats returns the evaluation counters.
func (h *FF) Stats() Stats {
	return h.stats
}

// Evaluate builds the relaxed planning graph from s and extracts the
// heuristic value. A pending hint is returned instead and consumed.
func (h *FF) Evaluate(s task.State) float64 {
	if v, ok := h.take(); ok {
		h.stats.Hinted++
		return v
	}
	h.stats.Evaluations++

	g, outcome := h.build(s)
	switch outcome {
	case graphDeadEnd:
		h.stats.DeadEnds++
		return Inf
	case graphCutoff:
		h.stats.Cutoffs++
		return Inf
	}
	if g.top == 0 {
		return 0
	}
	if h.config.Mode == ModeSupportSum {
		return h.supportSum(g)
	}
	return h.relaxedPlan(g)
}

// -----------------------------------------------------------------------------
// Graph construction
// -----------------------------------------------------------------------------

type graphOutcome int

const (
	graphReached graphOutcome = iota
	graphDeadEnd
	graphCutoff
)

// planningGraph is the relaxed planning graph of one evaluation.
type planningGraph struct {
	// factLayer is the first layer containing each fact, -1 if unreached.
	factLayer []int32

	// opLayer is the first action layer containing each operator.
	opLayer []int32

	// support[k] maps each fact first reached in layer k to the operators
	// of action layer k-1 producing it. support[0] is nil.
	support []map[int32][]int32

	// top is the layer in which the goal holds.
	top int
}

func (g *planningGraph) reachedBy(facts []int32, k int) bool {
	for _, f := range facts {
		if l := g.factLayer[f]; l < 0 || int(l) > k {
			return false
		}
	}
	return true
}

func (h *FF) build(s task.State) (*planningGraph, graphOutcome) {
	var deadline time.Time
	if h.config.Timeout > 0 {
		deadline = h.now().Add(h.config.Timeout)
	}

	g := &planningGraph{
		factLayer: make([]int32, h.nFacts),
		opLayer:   make([]int32, len(h.ops)),
		support:   []map[int32][]int32{nil},
	}
	for i := range g.factLayer {
		g.factLayer[i] = -1
	}
	for i := range g.opLayer {
		g.opLayer[i] = -1
	}
	for v, val := range s {
		if val != task.Unspecified {
			g.factLayer[h.offsets[v]+int32(val)] = 0
		}
	}

	for k := 0; ; k++ {
		if g.reachedBy(h.goal, k) {
			g.top = k
			return g, graphReached
		}
		if k >= h.config.MaxLayers {
			return g, graphCutoff
		}
		if !deadline.IsZero() && h.now().After(deadline) {
			return g, graphCutoff
		}

		added := make(map[int32][]int32)
		for oi := range h.ops {
			op := &h.ops[oi]
			if g.opLayer[oi] < 0 {
				if !g.reachedBy(op.pre, k) {
					continue
				}
				g.opLayer[oi] = int32(k)
			}
			for _, e := range op.effects {
				if l := g.factLayer[e.fact]; l >= 0 && int(l) <= k {
					continue
				}
				if !g.reachedBy(e.conds, k) {
					continue
				}
				g.factLayer[e.fact] = int32(k + 1)
				if sup := added[e.fact]; len(sup) == 0 || sup[len(sup)-1] != int32(oi) {
					added[e.fact] = append(sup, int32(oi))
				}
			}
		}
		if len(added) == 0 {
			return g, graphDeadEnd
		}
		g.support = append(g.support, added)
	}
}

// -----------------------------------------------------------------------------
// Extraction
// -----------------------------------------------------------------------------

// supporter picks the producer of fact f at layer k with the smallest
// difficulty (sum of the layers of its preconditions and of the achieving
// effect's conditions), ties to the lower operator index. It returns the
// operator and the achieving effect.
func (h *FF) supporter(g *planningGraph, f int32, k int) (int32, *ffEffect) {
	best, bestDiff := int32(-1), int64(-1)
	var bestEff *ffEffect
	for _, oi := range g.support[k][f] {
		op := &h.ops[oi]
		for ei := range op.effects {
			e := &op.effects[ei]
			if e.fact != f || !g.reachedBy(e.conds, k-1) {
				continue
			}
			diff := int64(0)
			for _, p := range op.pre {
				diff += int64(g.factLayer[p])
			}
			for _, c := range e.conds {
				diff += int64(g.factLayer[c])
			}
			if bestDiff < 0 || diff < bestDiff || (diff == bestDiff && oi < best) {
				best, bestDiff, bestEff = oi, diff, e
			}
		}
	}
	return best, bestEff
}

// agenda schedules subgoals by the layer they first appear in.
type agenda struct {
	g      *planningGraph
	queued []bool
	at     [][]int32
}

func newAgenda(g *planningGraph, nFacts int, goal []int32) *agenda {
	a := &agenda{g: g, queued: make([]bool, nFacts), at: make([][]int32, g.top+1)}
	a.push(goal)
	return a
}

// push queues facts not in layer 0 and not queued before.
func (a *agenda) push(facts []int32) {
	for _, f := range facts {
		l := a.g.factLayer[f]
		if l <= 0 || a.queued[f] {
			continue
		}
		a.queued[f] = true
		a.at[l] = append(a.at[l], f)
	}
}

// relaxedPlan collects supporters top-down, each operator counted once.
// Selecting an operator marks every fact it first makes true in that
// layer as achieved, so sibling subgoals are not supported twice.
func (h *FF) relaxedPlan(g *planningGraph) float64 {
	a := newAgenda(g, h.nFacts, h.goal)
	selected := make([]bool, len(h.ops))
	achieved := make([]bool, h.nFacts)
	total := 0.0

	for k := g.top; k >= 1; k-- {
		for _, f := range a.at[k] {
			if achieved[f] {
				continue
			}
			oi, eff := h.supporter(g, f, k)
			if oi < 0 {
				continue
			}
			op := &h.ops[oi]
			if !selected[oi] {
				selected[oi] = true
				if h.config.UseCosts {
					total += op.cost
				} else {
					total++
				}
			}
			for _, e := range op.effects {
				if int(g.factLayer[e.fact]) == k && g.reachedBy(e.conds, k-1) {
					achieved[e.fact] = true
				}
			}
			a.push(op.pre)
			a.push(eff.conds)
		}
	}
	return total
}

// supportSum chains back like relaxedPlan but adds the size of each
// subgoal's support set. UseCosts weights each supporter by its cost.
func (h *FF) supportSum(g *planningGraph) float64 {
	a := newAgenda(g, h.nFacts, h.goal)
	total := 0.0

	for k := g.top; k >= 1; k-- {
		for _, f := range a.at[k] {
			sup := g.support[k][f]
			if h.config.UseCosts {
				for _, oi := range sup {
					total += h.ops[oi].cost
				}
			} else {
				total += float64(len(sup))
			}
			oi, eff := h.supporter(g, f, k)
			if oi < 0 {
				continue
			}
			a.push(h.ops[oi].pre)
			a.push(eff.conds)
		}
	}
	return total
}
