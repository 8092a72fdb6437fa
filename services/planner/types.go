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
	"github.com/AleutianAI/AleutianPlanner/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
	"github.com/AleutianAI/AleutianPlanner/services/planner/storage/badger"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

// Limits shared by every search request. Zero fields use the server
// configuration.
type Limits struct {
	// TimeLimitMS is the wall-clock budget in milliseconds.
	TimeLimitMS int64 `json:"time_limit_ms,omitempty" binding:"gte=0"`

	// MaxNodes caps open plus closed states.
	MaxNodes int `json:"max_nodes,omitempty" binding:"gte=0"`

	// Queue selects the open-list implementation.
	Queue string `json:"queue,omitempty"`
}

// SolveRequest is the request body for POST /v1/planner/solve.
type SolveRequest struct {
	// Task is the grounded task to solve.
	Task task.Document `json:"task" binding:"required"`

	// Start overrides the task's initial state.
	Start []int `json:"start,omitempty"`

	// Algorithm is astar, weighted-astar, greedy or uniform-cost.
	Algorithm string `json:"algorithm,omitempty"`

	// Weight is the weighted-astar factor.
	Weight float64 `json:"weight,omitempty" binding:"gte=0"`

	// Heuristic is blind, goal-count or ff.
	Heuristic string `json:"heuristic,omitempty"`

	Limits

	// Store persists the result under its session ID.
	Store bool `json:"store,omitempty"`
}

// SolveResponse is the response for POST /v1/planner/solve.
type SolveResponse struct {
	*search.Result

	// Heuristic is the heuristic used, empty for uniform-cost search.
	Heuristic string `json:"heuristic,omitempty"`

	// HeuristicStats are FF evaluation counters when FF was used.
	HeuristicStats *heuristic.Stats `json:"heuristic_stats,omitempty"`

	Stored bool `json:"stored"`
}

// EnumerateRequest is the request body for POST /v1/planner/enumerate.
type EnumerateRequest struct {
	Task task.Document `json:"task" binding:"required"`

	// Start overrides the goal as the root relative state. -1 is a wildcard.
	Start []int `json:"start,omitempty"`

	Limits

	// DisableSubsumption turns off the subsumption check.
	DisableSubsumption bool `json:"disable_subsumption,omitempty"`

	// IncludeEntries returns the table in the response.
	IncludeEntries bool `json:"include_entries,omitempty"`

	Store bool `json:"store,omitempty"`
}

// EnumerateResponse is the response for POST /v1/planner/enumerate.
type EnumerateResponse struct {
	*search.EnumerationResult

	// EntryCount is the table size, reported even when entries are omitted.
	EntryCount int `json:"entry_count"`

	// Radius is the largest closed g-value.
	Radius int `json:"radius"`

	Stored bool `json:"stored"`
}

// SampleRequest is the request body for POST /v1/planner/sample.
type SampleRequest struct {
	Task task.Document `json:"task" binding:"required"`

	// Source is goal-walk, initial-walk or relative.
	Source string `json:"source" binding:"required"`

	// Samples is the number of samples.
	Samples int `json:"samples,omitempty" binding:"gte=0"`

	// MaxWalkLength bounds random walks.
	MaxWalkLength int `json:"max_walk_length,omitempty" binding:"gte=0"`

	// Seed makes the stream reproducible. Zero picks a time-based seed.
	Seed uint64 `json:"seed,omitempty"`

	// Heuristic scores initial-walk endpoints the region cannot reach.
	// Empty uses goal counting.
	Heuristic string `json:"heuristic,omitempty"`

	// ParentDistance reports the parent entry's g for relative samples.
	ParentDistance bool `json:"parent_distance,omitempty"`

	// RegionSession names a stored enumeration to sample from. When empty
	// an enumeration bounded by Region runs first, unless NoRegion is set.
	RegionSession string `json:"region_session,omitempty"`

	// Region bounds the inline enumeration.
	Region Limits `json:"region,omitempty"`

	// NoRegion samples without an enumeration; distances fall back to the
	// heuristic or the shortening coefficient.
	NoRegion bool `json:"no_region,omitempty"`

	Store bool `json:"store,omitempty"`
}

// SampleResponse is the response for POST /v1/planner/sample.
type SampleResponse struct {
	SessionID string `json:"session_id"`
	Task      string `json:"task"`
	Source    string `json:"source"`

	// RegionSession is the enumeration the samples were scored against.
	RegionSession string `json:"region_session,omitempty"`

	// RegionComplete reports whether that enumeration was exhaustive.
	RegionComplete bool `json:"region_complete"`

	Samples []search.Sample `json:"samples"`

	// ShorteningCoefficient is the final estimate of true distance over
	// walk cost.
	ShorteningCoefficient float64 `json:"shortening_coefficient"`

	Stored bool `json:"stored"`
}

// BatchJob is one job of a batch request.
type BatchJob struct {
	// ID labels the job; defaults to its position.
	ID string `json:"id,omitempty"`

	// Kind is solve or enumerate.
	Kind string `json:"kind" binding:"required,oneof=solve enumerate"`

	Task task.Document `json:"task" binding:"required"`

	Start     []int   `json:"start,omitempty"`
	Algorithm string  `json:"algorithm,omitempty"`
	Weight    float64 `json:"weight,omitempty" binding:"gte=0"`
	Heuristic string  `json:"heuristic,omitempty"`

	Limits
}

// BatchRequest is the request body for POST /v1/planner/batch.
type BatchRequest struct {
	Jobs []BatchJob `json:"jobs" binding:"required,min=1,dive"`

	// FailFast stops starting jobs after the first failure.
	FailFast bool `json:"fail_fast,omitempty"`

	Store bool `json:"store,omitempty"`
}

// BatchJobResult is the outcome of one batch job.
type BatchJobResult struct {
	ID          string                    `json:"id"`
	Kind        string                    `json:"kind"`
	Status      search.Status             `json:"status,omitempty"`
	Solution    *search.Result            `json:"solution,omitempty"`
	Enumeration *search.EnumerationResult `json:"enumeration,omitempty"`
	Error       string                    `json:"error,omitempty"`
	ElapsedMs   int64                     `json:"elapsed_ms"`
}

// BatchResponse is the response for POST /v1/planner/batch.
type BatchResponse struct {
	Results []BatchJobResult `json:"results"`
	Failed  int              `json:"failed"`
	Stored  int              `json:"stored"`
}

// SessionResponse is the response for GET /v1/planner/sessions/:id.
type SessionResponse struct {
	Meta        badger.SessionMeta        `json:"meta"`
	Solution    *search.Result            `json:"solution,omitempty"`
	Enumeration *search.EnumerationResult `json:"enumeration,omitempty"`
	Samples     []search.Sample           `json:"samples,omitempty"`
}

// SessionsResponse is the response for GET /v1/planner/sessions.
type SessionsResponse struct {
	Sessions []badger.SessionMeta `json:"sessions"`
}

// QueueInfo describes one priority-queue implementation.
type QueueInfo struct {
	Name           string `json:"name"`
	SupportsUpdate bool   `json:"supports_update"`
	MonotoneOnly   bool   `json:"monotone_only"`
}

// QueuesResponse is the response for GET /v1/planner/queues.
type QueuesResponse struct {
	Queues     []QueueInfo `json:"queues"`
	Algorithms []string    `json:"algorithms"`
	Heuristics []string    `json:"heuristics"`
}

// HealthResponse is the response for GET /v1/planner/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Storage bool   `json:"storage"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context.
	Details string `json:"details,omitempty"`
}
