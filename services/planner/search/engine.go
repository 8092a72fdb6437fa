// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search implements bounded best-first search over planning tasks.
//
// Description:
//
//	Engine runs forward best-first search from a ground state to the goal.
//	Enumerator runs uniform-cost search backward from the goal over
//	relative states and returns the table of goal distances. Connector and
//	Sampler turn a bounded enumeration into approximate distance samples.
//
//	Every session owns its queue, g-table, index and budget; none of them
//	are shared. The task is the only shared object and is read-only.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPlanner/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlanner/services/planner/pq"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

// Algorithm names a forward search strategy.
type Algorithm string

const (
	// AlgorithmAStar orders by g + h.
	AlgorithmAStar Algorithm = "astar"

	// AlgorithmWeightedAStar orders by g + w*h.
	AlgorithmWeightedAStar Algorithm = "weighted-astar"

	// AlgorithmGreedy orders by h alone.
	AlgorithmGreedy Algorithm = "greedy"

	// AlgorithmUniformCost orders by g alone and never calls the heuristic.
	AlgorithmUniformCost Algorithm = "uniform-cost"
)

// Algorithms lists the forward strategies.
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmAStar, AlgorithmWeightedAStar, AlgorithmGreedy, AlgorithmUniformCost}
}

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if slices.Contains(Algorithms(), a) {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// EngineConfig configures forward search.
type EngineConfig struct {
	// Algorithm selects the node ordering.
	Algorithm Algorithm `json:"algorithm" yaml:"algorithm" validate:"omitempty,oneof=astar weighted-astar greedy uniform-cost"`

	// Weight multiplies h for weighted A*. Must be at least 1.
	Weight float64 `json:"weight" yaml:"weight" validate:"gte=0"`

	// Queue selects the open-list implementation.
	Queue pq.Kind `json:"queue" yaml:"queue"`

	// QueueOptions tunes the open list.
	QueueOptions pq.Options `json:"queue_options" yaml:"queue_options"`

	// Budget bounds the session.
	Budget BudgetConfig `json:"budget" yaml:"budget"`

	// ProgressInterval spaces debug progress logs.
	ProgressInterval time.Duration `json:"progress_interval" yaml:"progress_interval"`
}

// DefaultEngineConfig returns A* over a binary heap with default limits.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Algorithm:        AlgorithmAStar,
		Weight:           2,
		Queue:            pq.KindBinary,
		QueueOptions:     pq.DefaultOptions(),
		Budget:           DefaultBudgetConfig(),
		ProgressInterval: 5 * time.Second,
	}
}

// Step is one operator application of a plan.
type Step struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Cost  int    `json:"cost"`
}

// Result is the outcome of a forward search session.
type Result struct {
	SessionID   string        `json:"session_id"`
	Task        string        `json:"task"`
	Algorithm   Algorithm     `json:"algorithm"`
	Status      Status        `json:"status"`
	Plan        []Step        `json:"plan,omitempty"`
	Cost        int           `json:"cost"`
	Expanded    int64         `json:"expanded"`
	Generated   int64         `json:"generated"`
	Pruned      int64         `json:"pruned"`
	Elapsed     time.Duration `json:"elapsed"`
	ExhaustedBy string        `json:"exhausted_by,omitempty"`
}

// node is a g-table record of forward search. Queue entries point at
// nodes, so tightening g is visible to every queued copy.
type node struct {
	state  task.State
	g      int
	h      float64
	closed bool
	parent *node
	op     *task.Operator
}

// Engine runs forward best-first search.
//
// Thread Safety: Solve may be called repeatedly but not concurrently; the
// heuristic instance is stateful. Use one Engine per goroutine.
type Engine struct {
	task   *task.Task
	h      heuristic.Heuristic
	config EngineConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a forward search engine.
//
// Inputs:
//   - t: The task. Must not be nil.
//   - h: The heuristic. May be nil only for uniform-cost search.
//   - config: Engine configuration. Zero fields take defaults.
//   - logger: Logger; nil uses slog.Default().
//
// Outputs:
//   - *Engine: The engine.
//   - error: ErrNilTask, ErrNilHeuristic, ErrUnknownAlgorithm,
//     ErrInvalidConfig or pq.ErrUnknownKind.
func NewEngine(t *task.Task, h heuristic.Heuristic, config EngineConfig, logger *slog.Logger) (*Engine, error) {
	if t == nil {
		return nil, ErrNilTask
	}
	def := DefaultEngineConfig()
	if config.Algorithm == "" {
		config.Algorithm = def.Algorithm
	}
	if _, err := ParseAlgorithm(string(config.Algorithm)); err != nil {
		return nil, err
	}
	if config.Weight == 0 {
		config.Weight = def.Weight
	}
	if config.Weight < 1 {
		return nil, fmt.Errorf("%w: weight %v below 1", ErrInvalidConfig, config.Weight)
	}
	if config.Queue == "" {
		config.Queue = def.Queue
	}
	if _, err := pq.ParseKind(string(config.Queue)); err != nil {
		return nil, err
	}
	if config.Budget.TimeLimit < 0 || config.Budget.MaxNodes < 0 {
		return nil, fmt.Errorf("%w: negative budget", ErrInvalidConfig)
	}
	if h == nil && config.Algorithm != AlgorithmUniformCost {
		return nil, ErrNilHeuristic
	}
	return &Engine{
		task:   t,
		h:      h,
		config: config,
		logger: componentLogger(logger, "search.engine"),
		now:    time.Now,
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig {
	return e.config
}

func (e *Engine) priority(n *node) float64 {
	switch e.config.Algorithm {
	case AlgorithmUniformCost:
		return float64(n.g)
	case AlgorithmGreedy:
		return n.h
	case AlgorithmWeightedAStar:
		return float64(n.g) + e.config.Weight*n.h
	}
	return float64(n.g) + n.h
}

func (e *Engine) estimate(s task.State) float64 {
	if e.config.Algorithm == AlgorithmUniformCost {
		return 0
	}
	return e.h.Evaluate(s)
}

// Solve searches from start to a state satisfying the goal.
//
// Description:
//
//	The heuristic is evaluated once per generated state; states valued
//	+Inf are pruned. The goal test runs when a state is expanded. A closed
//	state is never reopened. A shorter path to an open state tightens its
//	g and re-queues it, through Change on queues that support it and as a
//	duplicate entry otherwise; stale entries are skipped on removal.
//
// Inputs:
//   - ctx: Parent context for the session span. Not used for cancellation;
//     lower the budget instead.
//   - start: A ground state of the task.
//
// Outputs:
//   - *Result: The result; Plan is set for StatusSolutionFound.
//   - error: ErrInvalidStart, or an OperationError for a queue failure
//     other than capacity exhaustion.
func (e *Engine) Solve(ctx context.Context, start task.State) (*Result, error) {
	if err := checkGround(e.task, start); err != nil {
		return nil, opError("engine", "Solve", err)
	}

	res := &Result{
		SessionID: uuid.NewString(),
		Task:      e.task.Name,
		Algorithm: e.config.Algorithm,
		Status:    StatusInProgress,
	}
	ctx, span := startSessionSpan(ctx, "planner.search.solve", res.SessionID, e.task.Name, e.config.Budget)
	logger := LoggerWithTrace(ctx, e.logger).With(slog.String("session_id", res.SessionID))
	budget := newBudgetWithClock(e.config.Budget, e.now)
	prog := newProgress(logger, e.config.ProgressInterval)

	open, err := pq.New[*node](e.config.Queue, pq.WithOptions(e.config.QueueOptions))
	if err != nil {
		endSessionSpan(span, res.Status, 0, 0, err)
		return nil, opError("engine", "Solve", err)
	}
	table := make(map[string]*node)
	closed := 0

	finish := func(status Status, runErr error) (*Result, error) {
		res.Status = status
		res.Expanded = budget.Expanded()
		res.Elapsed = budget.Elapsed()
		res.ExhaustedBy = budget.ExhaustedBy()
		endSessionSpan(span, status, res.Expanded, res.Generated, runErr)
		recordSessionMetrics(ctx, "solve", status, res.Elapsed, res.Expanded, 0)
		if runErr != nil {
			logger.ErrorContext(ctx, "search failed", slog.String("error", runErr.Error()))
			return nil, runErr
		}
		logger.InfoContext(ctx, "search finished",
			slog.String("status", string(status)),
			slog.Int64("expanded", res.Expanded),
			slog.Int64("generated", res.Generated),
			slog.Int("cost", res.Cost),
			slog.Duration("elapsed", res.Elapsed),
		)
		return res, nil
	}

	push := func(n *node, update bool) error {
		key := e.priority(n)
		if update && e.config.Queue.SupportsUpdate() {
			if err := open.Change(n, key); err == nil {
				return nil
			}
		}
		return open.Insert(key, n)
	}
	// queueFailure converts a capacity error to memory exhaustion.
	queueFailure := func(err error) (*Result, error) {
		if errors.Is(err, pq.ErrCapacityExceeded) {
			budget.Exhaust("queue", err)
			return finish(StatusMemoryLimitExceeded, nil)
		}
		return finish(StatusInProgress, opError("engine", "Solve", err))
	}

	root := &node{state: start.Clone(), h: e.estimate(start)}
	if math.IsInf(root.h, 1) {
		res.Pruned++
		return finish(StatusNoSolutionExist, nil)
	}
	table[root.state.Key()] = root
	if err := push(root, false); err != nil {
		return queueFailure(err)
	}

	for {
		if open.Len() == 0 {
			return finish(StatusNoSolutionExist, nil)
		}
		if err := budget.Check(open.Len(), closed); err != nil {
			return finish(statusFor(err), nil)
		}

		n := open.RemoveMin()
		if n.closed {
			continue
		}
		n.closed = true
		closed++
		budget.RecordExpansion()

		if e.task.IsGoal(n.state) {
			res.Plan, res.Cost = extractPlan(n)
			return finish(StatusSolutionFound, nil)
		}

		var pushErr error
		e.task.Successors(n.state, func(op *task.Operator, next task.State) bool {
			res.Generated++
			cand := n.g + op.Cost
			key := next.Key()
			if known, ok := table[key]; ok {
				if known.closed || known.g <= cand {
					return true
				}
				known.g, known.parent, known.op = cand, n, op
				if e.config.Algorithm == AlgorithmGreedy {
					return true
				}
				pushErr = push(known, true)
				return pushErr == nil
			}
			h := e.estimate(next)
			if math.IsInf(h, 1) {
				res.Pruned++
				return true
			}
			child := &node{state: next, g: cand, h: h, parent: n, op: op}
			table[key] = child
			pushErr = push(child, false)
			return pushErr == nil
		})
		if pushErr != nil {
			return queueFailure(pushErr)
		}

		prog.log(ctx, "search progress",
			slog.Int64("expanded", budget.Expanded()),
			slog.Int("open", open.Len()),
			slog.Int("g", n.g),
		)
	}
}

// extractPlan follows parent links back to the start.
func extractPlan(goal *node) ([]Step, int) {
	var plan []Step
	for n := goal; n.parent != nil; n = n.parent {
		plan = append(plan, Step{Index: n.op.Index, Name: n.op.Name, Cost: n.op.Cost})
	}
	slices.Reverse(plan)
	return plan, goal.g
}

// checkGround validates a ground start state against t.
func checkGround(t *task.Task, s task.State) error {
	if len(s) != t.NumVars() {
		return fmt.Errorf("%w: %d values for %d variables", ErrInvalidStart, len(s), t.NumVars())
	}
	for i, v := range s {
		if v < 0 || v >= t.Variables[i].Range {
			return fmt.Errorf("%w: variable %d value %d", ErrInvalidStart, i, v)
		}
	}
	return nil
}

// checkRelative validates a relative state against t.
func checkRelative(t *task.Task, s task.State) error {
	if len(s) != t.NumVars() {
		return fmt.Errorf("%w: %d values for %d variables", ErrInvalidStart, len(s), t.NumVars())
	}
	for i, v := range s {
		if v != task.Unspecified && (v < 0 || v >= t.Variables[i].Range) {
			return fmt.Errorf("%w: variable %d value %d", ErrInvalidStart, i, v)
		}
	}
	return nil
}
