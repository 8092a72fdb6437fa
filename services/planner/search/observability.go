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
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Package-level tracer and meter for search sessions.
var (
	tracer = otel.Tracer("aleutian.planner.search")
	meter  = otel.Meter("aleutian.planner.search")
)

// Metrics for search sessions.
var (
	sessionsTotal   metric.Int64Counter
	sessionDuration metric.Float64Histogram
	expandedStates  metric.Int64Histogram
	subsumedStates  metric.Int64Counter
	samplesEmitted  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		sessionsTotal, err = meter.Int64Counter(
			"planner_search_sessions_total",
			metric.WithDescription("Total number of search sessions by kind and status"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sessionDuration, err = meter.Float64Histogram(
			"planner_search_session_duration_seconds",
			metric.WithDescription("Duration of search sessions"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		expandedStates, err = meter.Int64Histogram(
			"planner_search_expanded_states",
			metric.WithDescription("Number of states expanded per session"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		subsumedStates, err = meter.Int64Counter(
			"planner_search_subsumed_states_total",
			metric.WithDescription("Predecessors skipped because a stored state subsumes them"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		samplesEmitted, err = meter.Int64Counter(
			"planner_search_samples_total",
			metric.WithDescription("Samples emitted by source and exactness"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordSessionMetrics records metrics for a finished session.
func recordSessionMetrics(ctx context.Context, kind string, status Status, duration time.Duration, expanded, subsumed int64) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", string(status)),
	)
	sessionsTotal.Add(ctx, 1, attrs)
	sessionDuration.Record(ctx, duration.Seconds(), attrs)
	expandedStates.Record(ctx, expanded, metric.WithAttributes(attribute.String("kind", kind)))
	if subsumed > 0 {
		subsumedStates.Add(ctx, subsumed)
	}
}

// recordSampleMetric counts one emitted sample.
func recordSampleMetric(ctx context.Context, source string, exact bool) {
	if err := initMetrics(); err != nil {
		return
	}
	samplesEmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("exact", exact),
	))
}

// startSessionSpan creates a span for a search session.
func startSessionSpan(ctx context.Context, name, sessionID, taskName string, budget BudgetConfig) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("planner.session_id", sessionID),
			attribute.String("planner.task", taskName),
			attribute.Int("planner.budget.max_nodes", budget.MaxNodes),
			attribute.String("planner.budget.time_limit", budget.TimeLimit.String()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// endSessionSpan sets the result attributes on a session span and ends it.
func endSessionSpan(span trace.Span, status Status, expanded, generated int64, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(
		attribute.String("planner.result.status", string(status)),
		attribute.Int64("planner.result.expanded", expanded),
		attribute.Int64("planner.result.generated", generated),
	)
	span.End()
}

// progress emits at most one progress record per interval.
type progress struct {
	logger *slog.Logger
	every  rate.Sometimes
}

func newProgress(logger *slog.Logger, interval time.Duration) *progress {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &progress{logger: logger, every: rate.Sometimes{First: 1, Interval: interval}}
}

// log records a progress line if the interval has passed.
func (p *progress) log(ctx context.Context, msg string, attrs ...slog.Attr) {
	p.every.Do(func() {
		p.logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
	})
}

// LoggerWithTrace returns a logger with trace context fields added.
//
// Inputs:
//   - ctx: Context that may contain trace information.
//   - logger: Base logger.
//
// Outputs:
//   - *slog.Logger: Logger with trace_id and span_id if available.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}

func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", component))
}
