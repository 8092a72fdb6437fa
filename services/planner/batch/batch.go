// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package batch runs many independent search jobs concurrently.
//
// Search components are single-session and not safe for concurrent use, so
// every job builds its own heuristic, queue, table and index. Jobs share
// nothing but the logger.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPlanner/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

var (
	// ErrNoJobs is returned when Run is called with an empty job list.
	ErrNoJobs = errors.New("no jobs to run")

	// ErrUnknownJobKind is returned for a job kind other than solve or enumerate.
	ErrUnknownJobKind = errors.New("unknown job kind")

	// ErrSkipped marks jobs that never started because a fail-fast batch
	// was already failing.
	ErrSkipped = errors.New("job skipped")
)

// JobKind selects what a job runs.
type JobKind string

const (
	KindSolve     JobKind = "solve"
	KindEnumerate JobKind = "enumerate"
)

// Config configures a Runner.
type Config struct {
	// MaxConcurrency caps jobs running at once.
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency" validate:"gte=1"`

	// FailFast stops starting new jobs after the first failure and makes
	// Run return that failure. Running jobs finish; search sessions are
	// bounded by their own budgets.
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`
}

// DefaultConfig returns four workers without fail-fast.
func DefaultConfig() Config {
	return Config{MaxConcurrency: 4}
}

// Job is one unit of work.
type Job struct {
	// ID labels the job in results and logs.
	ID string

	Kind JobKind
	Task *task.Task

	// Start overrides the start state: the task's initial state for solve,
	// the goal state for enumerate.
	Start task.State

	// Heuristic names the forward heuristic (solve only).
	Heuristic string
	FF        heuristic.FFConfig

	Engine     search.EngineConfig
	Enumerator search.EnumeratorConfig
}

// JobResult is the outcome of one job. Exactly one of Solution,
// Enumeration and Err is set.
type JobResult struct {
	ID          string
	Kind        JobKind
	Solution    *search.Result
	Enumeration *search.EnumerationResult
	Err         error
	Elapsed     time.Duration
}

// Status returns the session status, or "" for failed jobs.
func (r JobResult) Status() search.Status {
	switch {
	case r.Solution != nil:
		return r.Solution.Status
	case r.Enumeration != nil:
		return r.Enumeration.Status
	}
	return ""
}

// Runner executes jobs on a bounded errgroup.
//
// Thread Safety: Safe for concurrent use; each Run call has its own group.
type Runner struct {
	config Config
	logger *slog.Logger
}

// NewRunner creates a Runner. MaxConcurrency below 1 is raised to 1.
func NewRunner(config Config, logger *slog.Logger) *Runner {
	if config.MaxConcurrency < 1 {
		config.MaxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{config: config, logger: logger.With(slog.String("component", "batch"))}
}

// Run executes every job and returns their results in job order.
//
// Description:
//
//	Jobs run with at most MaxConcurrency in flight. Without FailFast a
//	failing job only sets its own JobResult.Err and Run returns nil. With
//	FailFast, jobs not yet started after the first failure are marked
//	ErrSkipped and Run returns the first failure.
//
// Inputs:
//   - ctx: Cancelling ctx skips jobs that have not started.
//   - jobs: The jobs. Must not be empty.
//
// Outputs:
//   - []JobResult: One result per job, same order.
//   - error: ErrNoJobs, or the first failure under FailFast.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]JobResult, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	start := time.Now()
	results := make([]JobResult, len(jobs))

	var g *errgroup.Group
	gCtx := ctx
	if r.config.FailFast {
		g, gCtx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	g.SetLimit(r.config.MaxConcurrency)

	for i := range jobs {
		job := jobs[i]
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				results[i] = JobResult{ID: job.ID, Kind: job.Kind, Err: fmt.Errorf("%w: %w", ErrSkipped, err)}
				return nil
			}
			res := r.runJob(gCtx, job)
			results[i] = res
			if res.Err != nil && r.config.FailFast {
				return fmt.Errorf("job %s: %w", job.ID, res.Err)
			}
			return nil
		})
	}
	err := g.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.logger.InfoContext(ctx, "batch finished",
		slog.Int("jobs", len(jobs)),
		slog.Int("failed", failed),
		slog.Int("max_concurrency", r.config.MaxConcurrency),
		slog.Duration("elapsed", time.Since(start)),
	)
	return results, err
}

func (r *Runner) runJob(ctx context.Context, job Job) JobResult {
	start := time.Now()
	out := JobResult{ID: job.ID, Kind: job.Kind}
	logger := r.logger.With(slog.String("job", job.ID))

	switch job.Kind {
	case KindSolve:
		out.Solution, out.Err = solve(ctx, job, logger)
	case KindEnumerate:
		out.Enumeration, out.Err = enumerate(ctx, job, logger)
	default:
		out.Err = fmt.Errorf("%w: %q", ErrUnknownJobKind, job.Kind)
	}
	out.Elapsed = time.Since(start)
	if out.Err != nil {
		// A failed job keeps no partial output.
		out.Solution, out.Enumeration = nil, nil
		logger.WarnContext(ctx, "job failed", slog.String("error", out.Err.Error()))
	}
	return out
}

func solve(ctx context.Context, job Job, logger *slog.Logger) (*search.Result, error) {
	if job.Task == nil {
		return nil, search.ErrNilTask
	}
	var h heuristic.Heuristic
	if job.Engine.Algorithm != search.AlgorithmUniformCost {
		name := job.Heuristic
		if name == "" {
			name = heuristic.NameFF
		}
		hh, err := heuristic.New(name, job.Task, job.FF)
		if err != nil {
			return nil, err
		}
		h = hh
	}
	e, err := search.NewEngine(job.Task, h, job.Engine, logger)
	if err != nil {
		return nil, err
	}
	start := job.Start
	if start == nil {
		start = job.Task.Initial
	}
	return e.Solve(ctx, start)
}

func enumerate(ctx context.Context, job Job, logger *slog.Logger) (*search.EnumerationResult, error) {
	if job.Task == nil {
		return nil, search.ErrNilTask
	}
	e, err := search.NewEnumerator(job.Task, job.Enumerator, logger)
	if err != nil {
		return nil, err
	}
	if job.Start == nil {
		return e.Run(ctx)
	}
	return e.RunFrom(ctx, job.Start)
}
