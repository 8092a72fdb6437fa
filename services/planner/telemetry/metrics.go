// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the service-level instruments of the planner.
//
// Description:
//
//	Per-session search metrics (expansions, subsumption, samples) are
//	recorded inside the search package. Metrics covers what only the
//	service sees: HTTP traffic, requests per operation and outcome,
//	heuristic evaluations and stored results.
//	All metrics use the "planner_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks in-flight HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// --- Planner Metrics ---

	// RequestsTotal counts planner operations by operation and status.
	RequestsTotal metric.Int64Counter

	// ExpandedStates records expanded states per request.
	ExpandedStates metric.Int64Histogram

	// HeuristicEvaluations counts heuristic evaluations by heuristic name.
	HeuristicEvaluations metric.Int64Counter

	// DeadEnds counts states a heuristic reported unsolvable.
	DeadEnds metric.Int64Counter

	// SamplesEmitted counts samples returned to clients by source.
	SamplesEmitted metric.Int64Counter

	// StoredResults counts results written to the result store by kind.
	StoredResults metric.Int64Counter
}

// NewMetrics creates a Metrics instance with every instrument registered.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance.
//	error - Non-nil if an instrument could not be created.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- HTTP Metrics ---
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"planner_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"planner_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"planner_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	// --- Planner Metrics ---
	m.RequestsTotal, err = meter.Int64Counter(
		"planner_requests_total",
		metric.WithDescription("Planner operations by operation and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create requests_total: %w", err)
	}

	m.ExpandedStates, err = meter.Int64Histogram(
		"planner_request_expanded_states",
		metric.WithDescription("States expanded per planner request"),
		metric.WithUnit("{state}"),
		metric.WithExplicitBucketBoundaries(10, 100, 1_000, 10_000, 100_000, 1_000_000),
	)
	if err != nil {
		return nil, fmt.Errorf("create expanded_states: %w", err)
	}

	m.HeuristicEvaluations, err = meter.Int64Counter(
		"planner_heuristic_evaluations_total",
		metric.WithDescription("Heuristic evaluations by heuristic"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create heuristic_evaluations_total: %w", err)
	}

	m.DeadEnds, err = meter.Int64Counter(
		"planner_heuristic_dead_ends_total",
		metric.WithDescription("States reported unsolvable by a heuristic"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create heuristic_dead_ends_total: %w", err)
	}

	m.SamplesEmitted, err = meter.Int64Counter(
		"planner_samples_emitted_total",
		metric.WithDescription("Samples returned to clients by source"),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create samples_emitted_total: %w", err)
	}

	m.StoredResults, err = meter.Int64Counter(
		"planner_stored_results_total",
		metric.WithDescription("Results written to the result store by kind"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stored_results_total: %w", err)
	}

	return m, nil
}

// RecordRequest records one planner operation and the states it expanded.
//
// Safe to call on a nil *Metrics.
func (m *Metrics) RecordRequest(ctx context.Context, operation, status string, expanded int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.RequestsTotal.Add(ctx, 1, attrs)
	m.ExpandedStates.Record(ctx, expanded, attrs)
}

// RecordHeuristic records heuristic evaluation totals for one request.
//
// Safe to call on a nil *Metrics.
func (m *Metrics) RecordHeuristic(ctx context.Context, name string, evaluations, deadEnds int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("heuristic", name))
	m.HeuristicEvaluations.Add(ctx, evaluations, attrs)
	if deadEnds > 0 {
		m.DeadEnds.Add(ctx, deadEnds, attrs)
	}
}

// RecordSamples records samples handed to a client.
//
// Safe to call on a nil *Metrics.
func (m *Metrics) RecordSamples(ctx context.Context, source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SamplesEmitted.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source", source)))
}

// RecordStored records a result persisted to the store.
//
// Safe to call on a nil *Metrics.
func (m *Metrics) RecordStored(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.StoredResults.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
