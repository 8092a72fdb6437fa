// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPlanner/services/planner/batch"
	"github.com/AleutianAI/AleutianPlanner/services/planner/config"
	"github.com/AleutianAI/AleutianPlanner/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlanner/services/planner/pq"
	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
	"github.com/AleutianAI/AleutianPlanner/services/planner/storage/badger"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
	"github.com/AleutianAI/AleutianPlanner/services/planner/telemetry"
)

// ServiceVersion is the planner service version.
const ServiceVersion = "0.1.0"

// Operation labels used in request metrics.
const (
	opSolve     = "solve"
	opEnumerate = "enumerate"
	opSample    = "sample"
	opBatch     = "batch"
)

// Service runs planning sessions on behalf of the HTTP API and the CLI.
//
// Description:
//
//	Every request builds its task from the submitted document, derives its
//	session configuration from the service configuration plus the request
//	overrides, and runs one session. Time limits are capped by the
//	configured request timeout. Results are persisted when the request asks
//	for it and a result store is attached.
//
// Thread Safety: Safe for concurrent use. Sessions share no mutable state.
type Service struct {
	config  config.Config
	store   *badger.ResultStore
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewService creates a Service.
//
// Inputs:
//   - cfg: The validated service configuration.
//   - store: The result store. Nil disables persistence.
//   - metrics: Service metrics. Nil disables recording.
//   - logger: Base logger. Nil uses slog.Default().
//
// Outputs:
//   - *Service: The service.
func NewService(cfg config.Config, store *badger.ResultStore, metrics *telemetry.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:  cfg,
		store:   store,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "planner")),
	}
}

// Config returns the service configuration.
func (s *Service) Config() config.Config {
	return s.config
}

// StorageEnabled reports whether a result store is attached.
func (s *Service) StorageEnabled() bool {
	return s.store != nil
}

func (s *Service) requireStore() error {
	if s.store == nil {
		return ErrStorageDisabled
	}
	return nil
}

// capTime bounds a session time limit by the request timeout.
func (s *Service) capTime(limit time.Duration) time.Duration {
	ceiling := s.config.Server.RequestTimeout
	if ceiling > 0 && (limit == 0 || limit > ceiling) {
		return ceiling
	}
	return limit
}

func (s *Service) budget(base search.BudgetConfig, l Limits) search.BudgetConfig {
	out := base
	if l.TimeLimitMS > 0 {
		out.TimeLimit = time.Duration(l.TimeLimitMS) * time.Millisecond
	}
	if l.MaxNodes > 0 {
		out.MaxNodes = l.MaxNodes
	}
	out.TimeLimit = s.capTime(out.TimeLimit)
	return out
}

func (s *Service) engineConfig(algorithm string, weight float64, l Limits) (search.EngineConfig, error) {
	cfg := s.config.Search
	if algorithm != "" {
		a, err := search.ParseAlgorithm(algorithm)
		if err != nil {
			return cfg, err
		}
		cfg.Algorithm = a
	}
	if weight > 0 {
		cfg.Weight = weight
	}
	if l.Queue != "" {
		k, err := pq.ParseKind(l.Queue)
		if err != nil {
			return cfg, err
		}
		cfg.Queue = k
	}
	if cfg.Queue == pq.KindRadix &&
		(cfg.Algorithm == search.AlgorithmGreedy || cfg.Algorithm == search.AlgorithmWeightedAStar) {
		return cfg, fmt.Errorf("%w: radix queue needs monotone keys, not %s", search.ErrInvalidConfig, cfg.Algorithm)
	}
	cfg.Budget = s.budget(cfg.Budget, l)
	return cfg, nil
}

func (s *Service) enumeratorConfig(l Limits, disableSubsumption bool) (search.EnumeratorConfig, error) {
	cfg := s.config.Enumeration
	if l.Queue != "" {
		k, err := pq.ParseKind(l.Queue)
		if err != nil {
			return cfg, err
		}
		cfg.Queue = k
	}
	if disableSubsumption {
		cfg.DisableSubsumption = true
	}
	cfg.Budget = s.budget(cfg.Budget, l)
	return cfg, nil
}

func (s *Service) heuristicName(name string) string {
	if name == "" {
		return s.config.Heuristic.Name
	}
	return name
}

// recordFF records FF counters when h is FF and returns them.
func (s *Service) recordFF(ctx context.Context, h heuristic.Heuristic) *heuristic.Stats {
	ff, ok := h.(*heuristic.FF)
	if !ok {
		return nil
	}
	st := ff.Stats()
	s.metrics.RecordHeuristic(ctx, heuristic.NameFF, st.Evaluations, st.DeadEnds)
	return &st
}

// Solve runs one forward search session.
//
// Description:
//
//	Uniform-cost search runs without a heuristic; every other algorithm
//	builds the requested heuristic, defaulting to the configured one.
//	Bounded outcomes are results, not errors.
//
// Inputs:
//   - ctx: Carries the request span.
//   - req: The solve request.
//
// Outputs:
//   - *SolveResponse: The session result.
//   - error: task.ErrInvalidTask, search or heuristic configuration
//     errors, search.ErrInvalidStart, ErrStorageDisabled, or a storage
//     failure.
func (s *Service) Solve(ctx context.Context, req SolveRequest) (*SolveResponse, error) {
	resp, err := s.solve(ctx, req)
	if err != nil {
		s.metrics.RecordRequest(ctx, opSolve, "error", 0)
		return nil, err
	}
	s.metrics.RecordRequest(ctx, opSolve, string(resp.Status), resp.Expanded)
	return resp, nil
}

func (s *Service) solve(ctx context.Context, req SolveRequest) (*SolveResponse, error) {
	if req.Store {
		if err := s.requireStore(); err != nil {
			return nil, err
		}
	}
	t, err := req.Task.Build()
	if err != nil {
		return nil, err
	}
	cfg, err := s.engineConfig(req.Algorithm, req.Weight, req.Limits)
	if err != nil {
		return nil, err
	}

	resp := &SolveResponse{}
	var h heuristic.Heuristic
	if cfg.Algorithm != search.AlgorithmUniformCost {
		hh, err := heuristic.New(s.heuristicName(req.Heuristic), t, s.config.Heuristic.FF)
		if err != nil {
			return nil, err
		}
		h = hh
		resp.Heuristic = hh.Name()
	}

	e, err := search.NewEngine(t, h, cfg, s.logger)
	if err != nil {
		return nil, err
	}
	start := task.State(req.Start)
	if start == nil {
		start = t.Initial
	}
	res, err := e.Solve(ctx, start)
	if err != nil {
		return nil, err
	}
	resp.Result = res
	resp.HeuristicStats = s.recordFF(ctx, h)

	if req.Store {
		if err := s.store.SaveSolution(ctx, res); err != nil {
			return nil, fmt.Errorf("store solution: %w", err)
		}
		s.metrics.RecordStored(ctx, string(badger.KindSolution))
		resp.Stored = true
	}

	telemetry.LoggerWithTrace(ctx, s.logger).InfoContext(ctx, "solve finished",
		slog.String("session_id", res.SessionID),
		slog.String("task", res.Task),
		slog.String("status", string(res.Status)),
		slog.Int("cost", res.Cost),
		slog.Int64("expanded", res.Expanded),
	)
	return resp, nil
}

// Enumerate runs one backward enumeration session.
//
// Inputs:
//   - ctx: Carries the request span.
//   - req: The enumerate request. Start, when set, is a relative state
//     using -1 for wildcards.
//
// Outputs:
//   - *EnumerateResponse: The session result. Entries are omitted unless
//     requested.
//   - error: task.ErrInvalidTask, configuration errors,
//     search.ErrInvalidStart, ErrStorageDisabled, or a storage failure.
func (s *Service) Enumerate(ctx context.Context, req EnumerateRequest) (*EnumerateResponse, error) {
	resp, err := s.enumerate(ctx, req)
	if err != nil {
		s.metrics.RecordRequest(ctx, opEnumerate, "error", 0)
		return nil, err
	}
	s.metrics.RecordRequest(ctx, opEnumerate, string(resp.Status), resp.Expanded)
	return resp, nil
}

func (s *Service) enumerate(ctx context.Context, req EnumerateRequest) (*EnumerateResponse, error) {
	if req.Store {
		if err := s.requireStore(); err != nil {
			return nil, err
		}
	}
	t, err := req.Task.Build()
	if err != nil {
		return nil, err
	}
	cfg, err := s.enumeratorConfig(req.Limits, req.DisableSubsumption)
	if err != nil {
		return nil, err
	}
	res, err := s.runEnumeration(ctx, t, cfg, task.State(req.Start))
	if err != nil {
		return nil, err
	}

	resp := &EnumerateResponse{
		EnumerationResult: res,
		EntryCount:        len(res.Entries),
		Radius:            res.Radius(),
	}
	if req.Store {
		if err := s.store.SaveEnumeration(ctx, res); err != nil {
			return nil, fmt.Errorf("store enumeration: %w", err)
		}
		s.metrics.RecordStored(ctx, string(badger.KindEnumeration))
		resp.Stored = true
	}
	if !req.IncludeEntries {
		resp.EnumerationResult = withoutEntries(res)
	}
	return resp, nil
}

func (s *Service) runEnumeration(ctx context.Context, t *task.Task, cfg search.EnumeratorConfig, start task.State) (*search.EnumerationResult, error) {
	e, err := search.NewEnumerator(t, cfg, s.logger)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return e.Run(ctx)
	}
	return e.RunFrom(ctx, start)
}

// withoutEntries returns a shallow copy of res with the table dropped.
func withoutEntries(res *search.EnumerationResult) *search.EnumerationResult {
	if res == nil {
		return nil
	}
	cp := *res
	cp.Entries = nil
	return &cp
}

var sampleSources = []string{search.SourceGoalWalk, search.SourceInitialWalk, search.SourceRelative}

// Sample draws one stream of distance samples.
//
// Description:
//
//	The region the samples are scored against is a stored enumeration
//	named by RegionSession, a fresh enumeration bounded by Region, or
//	nothing when NoRegion is set. Relative samples need a region.
//
// Inputs:
//   - ctx: Carries the request span. Cancellation ends the stream early.
//   - req: The sample request.
//
// Outputs:
//   - *SampleResponse: The samples in stream order.
//   - error: ErrUnknownSource, ErrTooManySamples, ErrInvalidRequest,
//     ErrTaskMismatch, badger.ErrSessionNotFound, badger.ErrKindMismatch,
//     search.ErrNoRegion, or the errors of Enumerate.
func (s *Service) Sample(ctx context.Context, req SampleRequest) (*SampleResponse, error) {
	resp, err := s.sample(ctx, req)
	if err != nil {
		s.metrics.RecordRequest(ctx, opSample, "error", 0)
		return nil, err
	}
	s.metrics.RecordRequest(ctx, opSample, "ok", 0)
	s.metrics.RecordSamples(ctx, resp.Source, len(resp.Samples))
	return resp, nil
}

func (s *Service) sample(ctx context.Context, req SampleRequest) (*SampleResponse, error) {
	if !slices.Contains(sampleSources, req.Source) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, req.Source)
	}
	if req.Samples > s.config.Server.MaxSamples {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySamples, req.Samples, s.config.Server.MaxSamples)
	}
	if req.NoRegion && req.RegionSession != "" {
		return nil, fmt.Errorf("%w: no_region conflicts with region_session", ErrInvalidRequest)
	}
	if req.Store || req.RegionSession != "" {
		if err := s.requireStore(); err != nil {
			return nil, err
		}
	}
	t, err := req.Task.Build()
	if err != nil {
		return nil, err
	}

	region, err := s.sampleRegion(ctx, t, req)
	if err != nil {
		return nil, err
	}

	cfg := s.config.Sampling
	if req.Samples > 0 {
		cfg.Samples = req.Samples
	}
	if cfg.Samples > s.config.Server.MaxSamples {
		cfg.Samples = s.config.Server.MaxSamples
	}
	if req.MaxWalkLength > 0 {
		cfg.MaxWalkLength = req.MaxWalkLength
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	if req.ParentDistance {
		cfg.ParentDistance = true
	}
	cfg.TimeLimit = s.capTime(cfg.TimeLimit)

	var h heuristic.Heuristic
	if req.Heuristic != "" {
		hh, err := heuristic.New(req.Heuristic, t, s.config.Heuristic.FF)
		if err != nil {
			return nil, err
		}
		h = hh
	}
	sampler, err := search.NewSampler(t, region, h, cfg, s.logger)
	if err != nil {
		return nil, err
	}

	var seq iter.Seq[search.Sample]
	switch req.Source {
	case search.SourceGoalWalk:
		seq = sampler.FromGoalWalks(ctx)
	case search.SourceInitialWalk:
		seq = sampler.FromInitialWalks(ctx)
	case search.SourceRelative:
		if seq, err = sampler.GroundSamples(ctx); err != nil {
			return nil, err
		}
	}
	samples := make([]search.Sample, 0, cfg.Samples)
	for sm := range seq {
		samples = append(samples, sm)
	}
	s.recordFF(ctx, h)

	resp := &SampleResponse{
		SessionID:             uuid.NewString(),
		Task:                  t.Name,
		Source:                req.Source,
		Samples:               samples,
		ShorteningCoefficient: sampler.ShorteningCoefficient(),
	}
	if region != nil {
		resp.RegionSession = region.SessionID
		resp.RegionComplete = region.Complete
	}
	if req.Store {
		if err := s.store.SaveSamples(ctx, resp.SessionID, t.Name, req.Source, resp.RegionSession, samples); err != nil {
			return nil, fmt.Errorf("store samples: %w", err)
		}
		s.metrics.RecordStored(ctx, string(badger.KindSamples))
		resp.Stored = true
	}

	telemetry.LoggerWithTrace(ctx, s.logger).InfoContext(ctx, "sampling finished",
		slog.String("session_id", resp.SessionID),
		slog.String("source", req.Source),
		slog.Int("samples", len(samples)),
		slog.String("region_session", resp.RegionSession),
	)
	return resp, nil
}

// sampleRegion resolves the enumeration a sample stream is scored
// against. An inline enumeration is stored alongside the samples when
// the request stores its result.
func (s *Service) sampleRegion(ctx context.Context, t *task.Task, req SampleRequest) (*search.EnumerationResult, error) {
	switch {
	case req.NoRegion:
		return nil, nil
	case req.RegionSession != "":
		region, err := s.store.LoadEnumeration(ctx, req.RegionSession)
		if err != nil {
			return nil, err
		}
		if region.Task != t.Name {
			return nil, fmt.Errorf("%w: session %s is for task %q", ErrTaskMismatch, req.RegionSession, region.Task)
		}
		if err := region.Rebuild(t, s.config.Enumeration.Index); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTaskMismatch, err)
		}
		return region, nil
	}

	cfg, err := s.enumeratorConfig(req.Region, false)
	if err != nil {
		return nil, err
	}
	region, err := s.runEnumeration(ctx, t, cfg, nil)
	if err != nil {
		return nil, err
	}
	if req.Store {
		if err := s.store.SaveEnumeration(ctx, region); err != nil {
			return nil, fmt.Errorf("store enumeration: %w", err)
		}
		s.metrics.RecordStored(ctx, string(badger.KindEnumeration))
	}
	return region, nil
}

// Batch runs several sessions on the batch runner.
//
// Description:
//
//	Every job is built before any runs, so a malformed job fails the whole
//	request. Once running, failures are reported per job. Enumeration
//	tables are omitted from the response.
//
// Inputs:
//   - ctx: Cancelling ctx skips jobs that have not started.
//   - req: The batch request.
//
// Outputs:
//   - *BatchResponse: One result per job, in request order.
//   - error: Build or configuration errors, ErrStorageDisabled, or a
//     storage failure.
func (s *Service) Batch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	resp, err := s.batch(ctx, req)
	if err != nil {
		s.metrics.RecordRequest(ctx, opBatch, "error", 0)
		return nil, err
	}
	return resp, nil
}

func (s *Service) batch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if len(req.Jobs) == 0 {
		return nil, batch.ErrNoJobs
	}
	if req.Store {
		if err := s.requireStore(); err != nil {
			return nil, err
		}
	}

	jobs := make([]batch.Job, len(req.Jobs))
	for i, bj := range req.Jobs {
		job, err := s.batchJob(i, bj)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		jobs[i] = job
	}

	cfg := s.config.Batch
	cfg.FailFast = cfg.FailFast || req.FailFast
	results, err := batch.NewRunner(cfg, s.logger).Run(ctx, jobs)
	if results == nil {
		return nil, err
	}

	resp := &BatchResponse{Results: make([]BatchJobResult, len(results))}
	for i, r := range results {
		out := BatchJobResult{
			ID:        r.ID,
			Kind:      string(r.Kind),
			Status:    r.Status(),
			Solution:  r.Solution,
			ElapsedMs: r.Elapsed.Milliseconds(),
		}
		var expanded int64
		switch {
		case r.Err != nil:
			out.Error = r.Err.Error()
			resp.Failed++
		case r.Solution != nil:
			expanded = r.Solution.Expanded
			if req.Store {
				if err := s.store.SaveSolution(ctx, r.Solution); err != nil {
					return nil, fmt.Errorf("store solution %s: %w", r.ID, err)
				}
				s.metrics.RecordStored(ctx, string(badger.KindSolution))
				resp.Stored++
			}
		case r.Enumeration != nil:
			expanded = r.Enumeration.Expanded
			if req.Store {
				if err := s.store.SaveEnumeration(ctx, r.Enumeration); err != nil {
					return nil, fmt.Errorf("store enumeration %s: %w", r.ID, err)
				}
				s.metrics.RecordStored(ctx, string(badger.KindEnumeration))
				resp.Stored++
			}
			out.Enumeration = withoutEntries(r.Enumeration)
		}
		status := string(out.Status)
		if r.Err != nil {
			status = "error"
		}
		s.metrics.RecordRequest(ctx, string(r.Kind), status, expanded)
		resp.Results[i] = out
	}
	return resp, nil
}

func (s *Service) batchJob(i int, bj BatchJob) (batch.Job, error) {
	t, err := bj.Task.Build()
	if err != nil {
		return batch.Job{}, err
	}
	job := batch.Job{
		ID:    bj.ID,
		Kind:  batch.JobKind(bj.Kind),
		Task:  t,
		Start: task.State(bj.Start),
	}
	if job.ID == "" {
		job.ID = strconv.Itoa(i)
	}
	switch job.Kind {
	case batch.KindSolve:
		job.Heuristic = s.heuristicName(bj.Heuristic)
		job.FF = s.config.Heuristic.FF
		job.Engine, err = s.engineConfig(bj.Algorithm, bj.Weight, bj.Limits)
	case batch.KindEnumerate:
		job.Enumerator, err = s.enumeratorConfig(bj.Limits, false)
	default:
		err = fmt.Errorf("%w: %q", batch.ErrUnknownJobKind, bj.Kind)
	}
	return job, err
}

// Session loads a stored session with its body.
//
// Outputs:
//   - *SessionResponse: The metadata and the stored result.
//   - error: ErrStorageDisabled, badger.ErrSessionNotFound, or a storage
//     failure.
func (s *Service) Session(ctx context.Context, id string) (*SessionResponse, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	meta, err := s.store.Meta(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &SessionResponse{Meta: meta}
	switch meta.Kind {
	case badger.KindSolution:
		resp.Solution, err = s.store.LoadSolution(ctx, id)
	case badger.KindEnumeration:
		resp.Enumeration, err = s.store.LoadEnumeration(ctx, id)
	case badger.KindSamples:
		resp.Samples, err = s.store.LoadSamples(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Sessions lists stored sessions, newest first.
func (s *Service) Sessions(ctx context.Context, limit int) (*SessionsResponse, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	metas, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if metas == nil {
		metas = []badger.SessionMeta{}
	}
	return &SessionsResponse{Sessions: metas}, nil
}

// DeleteSession removes a stored session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Queues describes the available queues, algorithms and heuristics.
func (s *Service) Queues() QueuesResponse {
	kinds := pq.Kinds()
	resp := QueuesResponse{
		Queues:     make([]QueueInfo, len(kinds)),
		Heuristics: heuristic.Names(),
	}
	for i, k := range kinds {
		resp.Queues[i] = QueueInfo{
			Name:           string(k),
			SupportsUpdate: k.SupportsUpdate(),
			MonotoneOnly:   k == pq.KindRadix,
		}
	}
	for _, a := range search.Algorithms() {
		resp.Algorithms = append(resp.Algorithms, string(a))
	}
	return resp
}
