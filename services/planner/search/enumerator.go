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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPlanner/services/planner/pmatch"
	"github.com/AleutianAI/AleutianPlanner/services/planner/pq"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

// EnumeratorConfig configures backward enumeration.
type EnumeratorConfig struct {
	// Queue selects the open-list implementation. Keys are g-values and
	// non-decreasing, so the radix heap is valid here.
	Queue pq.Kind `json:"queue" yaml:"queue"`

	// QueueOptions tunes the open list.
	QueueOptions pq.Options `json:"queue_options" yaml:"queue_options"`

	// Budget bounds the session.
	Budget BudgetConfig `json:"budget" yaml:"budget"`

	// Index configures the partial-match index.
	Index pmatch.Config `json:"index" yaml:"index"`

	// DisableSubsumption turns off the subsumption check on generated
	// predecessors. Results stay exact; the table grows.
	DisableSubsumption bool `json:"disable_subsumption" yaml:"disable_subsumption"`

	// ProgressInterval spaces debug progress logs.
	ProgressInterval time.Duration `json:"progress_interval" yaml:"progress_interval"`
}

// DefaultEnumeratorConfig returns defaults for backward enumeration.
func DefaultEnumeratorConfig() EnumeratorConfig {
	return EnumeratorConfig{
		Queue:            pq.KindBinary,
		QueueOptions:     pq.DefaultOptions(),
		Budget:           DefaultBudgetConfig(),
		Index:            pmatch.DefaultConfig(),
		ProgressInterval: 5 * time.Second,
	}
}

// Entry is a g-table record: a relative state and its distance to the
// goal. G is exact once Closed.
type Entry struct {
	State  task.State `json:"state"`
	G      int        `json:"g"`
	Closed bool       `json:"closed"`
}

// EnumerationResult is the outcome of a backward enumeration session.
//
// Description:
//
//	Entries lists every discovered relative state in discovery order. When
//	Complete is true the closed entries are the exact goal distances of
//	every state backward-reachable from the start. A bounded session keeps
//	its partial table.
//
// Thread Safety: Not safe for concurrent use; lookups run index queries
// that mutate query statistics.
type EnumerationResult struct {
	SessionID   string        `json:"session_id"`
	Task        string        `json:"task"`
	Status      Status        `json:"status"`
	Complete    bool          `json:"complete"`
	Elapsed     time.Duration `json:"elapsed"`
	Expanded    int64         `json:"expanded"`
	Generated   int64         `json:"generated"`
	Subsumed    int64         `json:"subsumed"`
	ExhaustedBy string        `json:"exhausted_by,omitempty"`

	// InitialDistance is the goal distance of the task's initial state,
	// -1 when no closed entry covers it.
	InitialDistance int `json:"initial_distance"`

	Entries []Entry `json:"entries"`

	index  *pmatch.Index[*Entry]
	radius int
}

// Index returns the partial-match index over the entries. Values point at
// the live records.
func (r *EnumerationResult) Index() *pmatch.Index[*Entry] {
	return r.index
}

// Radius returns the largest closed g-value.
func (r *EnumerationResult) Radius() int {
	return r.radius
}

// Distance returns the smallest g over closed entries generalizing s.
//
// Outputs:
//   - int: The distance.
//   - bool: False when no closed entry covers s.
func (r *EnumerationResult) Distance(s task.State) (int, bool) {
	g, ok, _ := r.lookup(s)
	return g, ok
}

// lookup is Distance plus whether the index query ran to completion.
func (r *EnumerationResult) lookup(s task.State) (int, bool, bool) {
	if r == nil || r.index == nil {
		return 0, false, false
	}
	best, found := 0, false
	complete := r.index.Visit(s, func(_ task.State, e *Entry) bool {
		if e.Closed && (!found || e.G < best) {
			best, found = e.G, true
		}
		return true
	})
	return best, found, complete
}

// Rebuild restores the index and radius of a result whose Entries were
// decoded from storage. Entries must be relative states of t.
func (r *EnumerationResult) Rebuild(t *task.Task, config pmatch.Config) error {
	if t == nil {
		return ErrNilTask
	}
	r.index = pmatch.New[*Entry](t.Ranges(), config)
	r.radius = 0
	for i := range r.Entries {
		e := &r.Entries[i]
		if err := checkRelative(t, e.State); err != nil {
			return opError("enumerator", "Rebuild", fmt.Errorf("entry %d: %w", i, err))
		}
		if _, err := r.index.Put(e.State, e); err != nil {
			return opError("enumerator", "Rebuild", err)
		}
		if e.Closed && e.G > r.radius {
			r.radius = e.G
		}
	}
	return nil
}

// closedEntries returns pointers to the closed entries of Entries.
func (r *EnumerationResult) closedEntries() []*Entry {
	var out []*Entry
	for i := range r.Entries {
		if r.Entries[i].Closed {
			out = append(out, &r.Entries[i])
		}
	}
	return out
}

// Enumerator runs bounded uniform-cost search backward from the goal.
//
// Thread Safety: Run may be called repeatedly but not concurrently.
type Enumerator struct {
	task   *task.Task
	config EnumeratorConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewEnumerator creates a backward enumerator.
//
// Inputs:
//   - t: The task. Must not be nil.
//   - config: Configuration. Zero fields take defaults.
//   - logger: Logger; nil uses slog.Default().
//
// Outputs:
//   - *Enumerator: The enumerator.
//   - error: ErrNilTask, ErrInvalidConfig or pq.ErrUnknownKind.
func NewEnumerator(t *task.Task, config EnumeratorConfig, logger *slog.Logger) (*Enumerator, error) {
	if t == nil {
		return nil, ErrNilTask
	}
	if config.Queue == "" {
		config.Queue = DefaultEnumeratorConfig().Queue
	}
	if _, err := pq.ParseKind(string(config.Queue)); err != nil {
		return nil, err
	}
	if config.Budget.TimeLimit < 0 || config.Budget.MaxNodes < 0 || config.Index.QueryTimeout < 0 {
		return nil, fmt.Errorf("%w: negative limit", ErrInvalidConfig)
	}
	return &Enumerator{
		task:   t,
		config: config,
		logger: componentLogger(logger, "search.enumerator"),
		now:    time.Now,
	}, nil
}

// Run enumerates backward from the goal state of the task.
func (e *Enumerator) Run(ctx context.Context) (*EnumerationResult, error) {
	return e.RunFrom(ctx, e.task.GoalState())
}

// RunFrom enumerates backward from start.
//
// Description:
//
//	Standard bounded uniform-cost search over relative states:
//
//	 1. start enters the table and the queue with g=0.
//	 2. Each iteration stops with NoSolutionExist/SolutionFound when the
//	    queue is empty, TimeLimitExceeded when time is up, and
//	    MemoryLimitExceeded when open plus closed exceeds MaxNodes.
//	 3. A removed entry that is already closed is stale and skipped.
//	 4. The entry is closed and regressed through every relevant operator.
//	    A predecessor is skipped when a stored state generalizing it has
//	    g no larger than the candidate (subsumed), queued when new, and
//	    re-queued when the candidate tightens an open entry.
//
//	On exhaustion the status is SolutionFound when a closed entry covers
//	the initial state, NoSolutionExist otherwise.
//
// Inputs:
//   - ctx: Parent context for the session span. Not used for cancellation.
//   - start: The relative state to enumerate from.
//
// Outputs:
//   - *EnumerationResult: The result, also for bounded sessions.
//   - error: ErrInvalidStart, or an OperationError for a queue or index
//     failure other than capacity exhaustion.
func (e *Enumerator) RunFrom(ctx context.Context, start task.State) (*EnumerationResult, error) {
	if err := checkRelative(e.task, start); err != nil {
		return nil, opError("enumerator", "Run", err)
	}

	res := &EnumerationResult{
		SessionID:       uuid.NewString(),
		Task:            e.task.Name,
		Status:          StatusInProgress,
		InitialDistance: -1,
		index:           pmatch.New[*Entry](e.task.Ranges(), e.config.Index),
	}
	ctx, span := startSessionSpan(ctx, "planner.search.enumerate", res.SessionID, e.task.Name, e.config.Budget)
	logger := LoggerWithTrace(ctx, e.logger).With(slog.String("session_id", res.SessionID))
	budget := newBudgetWithClock(e.config.Budget, e.now)
	prog := newProgress(logger, e.config.ProgressInterval)

	open, err := pq.New[*Entry](e.config.Queue, pq.WithOptions(e.config.QueueOptions))
	if err != nil {
		endSessionSpan(span, res.Status, 0, 0, err)
		return nil, opError("enumerator", "Run", err)
	}
	table := make(map[string]*Entry)
	var order []*Entry
	closed := 0

	finish := func(status Status, runErr error) (*EnumerationResult, error) {
		res.Status = status
		res.Expanded = budget.Expanded()
		res.Elapsed = budget.Elapsed()
		res.ExhaustedBy = budget.ExhaustedBy()
		res.Entries = make([]Entry, len(order))
		for i, rec := range order {
			res.Entries[i] = *rec
		}
		// Re-point the index at the snapshot so Entries and Index agree.
		res.index.Clear()
		for i := range res.Entries {
			if _, err := res.index.Put(res.Entries[i].State, &res.Entries[i]); err != nil && runErr == nil {
				runErr = opError("enumerator", "Run", err)
			}
		}
		endSessionSpan(span, status, res.Expanded, res.Generated, runErr)
		recordSessionMetrics(ctx, "enumerate", status, res.Elapsed, res.Expanded, res.Subsumed)
		if runErr != nil {
			logger.ErrorContext(ctx, "enumeration failed", slog.String("error", runErr.Error()))
			return nil, runErr
		}
		if g, ok := res.Distance(e.task.Initial); ok {
			res.InitialDistance = g
		}
		logger.InfoContext(ctx, "enumeration finished",
			slog.String("status", string(status)),
			slog.Bool("complete", res.Complete),
			slog.Int("entries", len(res.Entries)),
			slog.Int64("expanded", res.Expanded),
			slog.Int64("subsumed", res.Subsumed),
			slog.Int("initial_distance", res.InitialDistance),
			slog.Duration("elapsed", res.Elapsed),
		)
		return res, nil
	}

	push := func(rec *Entry, update bool) error {
		if update && e.config.Queue.SupportsUpdate() {
			if err := open.Change(rec, float64(rec.G)); err == nil {
				return nil
			}
		}
		return open.Insert(float64(rec.G), rec)
	}
	queueFailure := func(err error) (*EnumerationResult, error) {
		if errors.Is(err, pq.ErrCapacityExceeded) {
			budget.Exhaust("queue", err)
			return finish(StatusMemoryLimitExceeded, nil)
		}
		return finish(StatusInProgress, opError("enumerator", "Run", err))
	}

	root := &Entry{State: start.Clone()}
	table[root.State.Key()] = root
	order = append(order, root)
	if _, err := res.index.Put(root.State, root); err != nil {
		return finish(StatusInProgress, opError("enumerator", "Run", err))
	}
	if err := push(root, false); err != nil {
		return queueFailure(err)
	}

	for {
		if open.Len() == 0 {
			res.Complete = true
			covered := false
			res.index.Visit(e.task.Initial, func(_ task.State, rec *Entry) bool {
				covered = rec.Closed
				return !covered
			})
			if covered {
				return finish(StatusSolutionFound, nil)
			}
			return finish(StatusNoSolutionExist, nil)
		}
		if err := budget.Check(open.Len(), closed); err != nil {
			return finish(statusFor(err), nil)
		}

		cur := open.RemoveMin()
		if cur.Closed {
			continue
		}
		cur.Closed = true
		closed++
		if cur.G > res.radius {
			res.radius = cur.G
		}
		budget.RecordExpansion()

		var stepErr error
		e.task.Predecessors(cur.State, func(op *task.Operator, pred task.State) bool {
			res.Generated++
			cand := cur.G + op.Cost
			key := pred.Key()
			if known, ok := table[key]; ok {
				if known.Closed || known.G <= cand {
					return true
				}
				known.G = cand
				stepErr = push(known, true)
				return stepErr == nil
			}
			if !e.config.DisableSubsumption && e.subsumed(res.index, pred, cand) {
				res.Subsumed++
				return true
			}
			rec := &Entry{State: pred, G: cand}
			if stepErr = push(rec, false); stepErr != nil {
				return false
			}
			table[key] = rec
			order = append(order, rec)
			_, stepErr = res.index.Put(pred, rec)
			return stepErr == nil
		})
		if stepErr != nil {
			return queueFailure(stepErr)
		}

		prog.log(ctx, "enumeration progress",
			slog.Int64("expanded", budget.Expanded()),
			slog.Int("open", open.Len()),
			slog.Int("table", len(table)),
			slog.Int("g", cur.G),
		)
	}
}

// subsumed reports whether a stored state generalizing s has g <= cand.
// A timed-out query answers false, which only costs table space.
func (e *Enumerator) subsumed(ix *pmatch.Index[*Entry], s task.State, cand int) bool {
	found := false
	ix.Visit(s, func(_ task.State, rec *Entry) bool {
		found = rec.G <= cand
		return !found
	})
	return found
}
