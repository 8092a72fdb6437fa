// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPlanner/services/planner"
	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
)

func newSolveCmd(st *cliState) *cobra.Command {
	var (
		req    planner.SolveRequest
		limits limitFlags
		start  string
	)
	cmd := &cobra.Command{
		Use:   "solve TASK_FILE",
		Short: "Find a plan with forward best-first search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			req.Task = doc
			if req.Start, err = parseState(start); err != nil {
				return err
			}
			req.Limits = limits.limits()

			svc, done, err := st.openService()
			if err != nil {
				return err
			}
			defer done()

			resp, err := svc.Solve(cmd.Context(), req)
			if err != nil {
				return err
			}
			if st.jsonOut {
				return st.printJSON(resp)
			}
			st.printer.Solution(resp.Result)
			if resp.HeuristicStats != nil {
				st.printer.Field("heuristic_evaluations", resp.HeuristicStats.Evaluations)
				st.printer.Field("heuristic_dead_ends", resp.HeuristicStats.DeadEnds)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Algorithm, "algorithm", "", "astar, weighted-astar, greedy or uniform-cost")
	f.Float64Var(&req.Weight, "weight", 0, "Heuristic weight for weighted-astar")
	f.StringVar(&req.Heuristic, "heuristic", "", "blind, goal-count or ff")
	f.StringVar(&start, "start", "", "Comma-separated start state (default: the task's initial state)")
	f.BoolVar(&req.Store, "store", false, "Persist the result")
	limits.register(f, "", "search")
	return cmd
}

func newEnumerateCmd(st *cliState) *cobra.Command {
	var (
		req    planner.EnumerateRequest
		limits limitFlags
		start  string
	)
	cmd := &cobra.Command{
		Use:   "enumerate TASK_FILE",
		Short: "Enumerate goal distances with backward uniform-cost search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			req.Task = doc
			if req.Start, err = parseState(start); err != nil {
				return err
			}
			req.Limits = limits.limits()
			req.IncludeEntries = req.IncludeEntries || st.jsonOut

			svc, done, err := st.openService()
			if err != nil {
				return err
			}
			defer done()

			resp, err := svc.Enumerate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if st.jsonOut {
				return st.printJSON(resp)
			}
			st.printer.Enumeration(resp.EnumerationResult)
			if req.IncludeEntries {
				rows := make([][]string, len(resp.Entries))
				for i, e := range resp.Entries {
					rows[i] = []string{e.State.String(), fmt.Sprint(e.G), fmt.Sprint(e.Closed)}
				}
				st.printer.Table([]string{"state", "g", "closed"}, rows)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&start, "start", "", "Comma-separated relative root state, -1 for wildcards (default: the goal)")
	f.BoolVar(&req.DisableSubsumption, "no-subsumption", false, "Keep predecessors covered by a cheaper general entry")
	f.BoolVar(&req.IncludeEntries, "entries", false, "Print the distance table")
	f.BoolVar(&req.Store, "store", false, "Persist the result")
	limits.register(f, "", "enumeration")
	return cmd
}

func newSampleCmd(st *cliState) *cobra.Command {
	var (
		req    planner.SampleRequest
		region limitFlags
	)
	cmd := &cobra.Command{
		Use:   "sample TASK_FILE",
		Short: "Draw states labelled with goal distances",
		Long: `sample draws states with goal-distance labels. Sources:

  goal-walk     random backward walks from goal states
  initial-walk  random forward walks from the initial state
  relative      ground instances of enumerated relative states

Samples are scored against an enumeration: a stored session given by
--region-session, a fresh one bounded by the --region-* flags, or none
with --no-region.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			req.Task = doc
			req.Region = region.limits()

			svc, done, err := st.openService()
			if err != nil {
				return err
			}
			defer done()

			resp, err := svc.Sample(cmd.Context(), req)
			if err != nil {
				return err
			}
			if st.jsonOut {
				return st.printJSON(resp)
			}
			st.printer.Samples(resp.Samples, resp.ShorteningCoefficient)
			if resp.Stored {
				st.printer.Success("stored as " + resp.SessionID)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Source, "source", search.SourceGoalWalk, "goal-walk, initial-walk or relative")
	f.IntVar(&req.Samples, "samples", 0, "Number of samples (0 uses the config)")
	f.IntVar(&req.MaxWalkLength, "max-walk-length", 0, "Longest random walk (0 uses the config)")
	f.Uint64Var(&req.Seed, "seed", 0, "Random seed (0 picks one)")
	f.BoolVar(&req.ParentDistance, "parent-distance", false, "Label relative samples with their parent entry's distance")
	f.StringVar(&req.Heuristic, "heuristic", "", "Heuristic for initial-walk endpoints outside the region")
	f.StringVar(&req.RegionSession, "region-session", "", "Stored enumeration session to sample from")
	f.BoolVar(&req.NoRegion, "no-region", false, "Sample without an enumeration")
	f.BoolVar(&req.Store, "store", false, "Persist the samples (and a fresh enumeration)")
	region.register(f, "region-", "enumeration")
	return cmd
}

func newBatchCmd(st *cliState) *cobra.Command {
	var (
		kind   string
		job    planner.BatchJob
		limits limitFlags
		req    planner.BatchRequest
	)
	cmd := &cobra.Command{
		Use:   "batch TASK_FILE...",
		Short: "Run one session per task file concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Jobs = make([]planner.BatchJob, 0, len(args))
			for _, path := range args {
				doc, err := loadDocument(path)
				if err != nil {
					return err
				}
				j := job
				j.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				j.Kind = kind
				j.Task = doc
				j.Limits = limits.limits()
				req.Jobs = append(req.Jobs, j)
			}

			svc, done, err := st.openService()
			if err != nil {
				return err
			}
			defer done()

			resp, err := svc.Batch(cmd.Context(), req)
			if err != nil {
				return err
			}
			if st.jsonOut {
				return st.printJSON(resp)
			}
			rows := make([][]string, len(resp.Results))
			for i, r := range resp.Results {
				rows[i] = []string{r.ID, r.Kind, string(r.Status), batchValue(r), fmt.Sprintf("%dms", r.ElapsedMs), r.Error}
			}
			st.printer.Table([]string{"job", "kind", "status", "value", "elapsed", "error"}, rows)
			if resp.Failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", resp.Failed, len(resp.Results))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "kind", "solve", "solve or enumerate")
	f.StringVar(&job.Algorithm, "algorithm", "", "astar, weighted-astar, greedy or uniform-cost")
	f.Float64Var(&job.Weight, "weight", 0, "Heuristic weight for weighted-astar")
	f.StringVar(&job.Heuristic, "heuristic", "", "blind, goal-count or ff")
	f.BoolVar(&req.FailFast, "fail-fast", false, "Stop starting jobs after the first failure")
	f.BoolVar(&req.Store, "store", false, "Persist every result")
	limits.register(f, "", "session")
	return cmd
}

// batchValue is the plan cost of a solve or the initial distance of an
// enumeration.
func batchValue(r planner.BatchJobResult) string {
	switch {
	case r.Solution != nil && r.Solution.Status == search.StatusSolutionFound:
		return fmt.Sprint(r.Solution.Cost)
	case r.Enumeration != nil && r.Enumeration.InitialDistance >= 0:
		return fmt.Sprint(r.Enumeration.InitialDistance)
	}
	return "-"
}
