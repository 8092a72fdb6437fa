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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// ErrUnknownLogFormat is returned by ParseFormat for anything but text or json.
var ErrUnknownLogFormat = errors.New("unknown log format")

// ParseLevel maps a level name (debug, info, warn, error) to a slog.Level.
//
// Unknown names map to info and return an error so callers can warn.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", name, err)
	}
	return level, nil
}

// ParseFormat normalizes a handler format name.
func ParseFormat(name string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(name)); f {
	case "", "text":
		return "text", nil
	case "json":
		return "json", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownLogFormat, name)
	}
}

// NewLogger builds a slog.Logger writing to w.
//
// Description:
//
//	format selects slog.NewJSONHandler ("json") or slog.NewTextHandler
//	(anything else). Invalid level names fall back to info.
//
// Inputs:
//
//	w - Destination for log records.
//	level - Level name, e.g. "debug".
//	format - "text" or "json".
//
// Outputs:
//
//	*slog.Logger - Logger tagged with service=aleutian-planner.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if f, _ := ParseFormat(format); f == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", "aleutian-planner"))
}

// LoggerWithTrace returns a logger with trace_id and span_id when ctx carries
// a valid span.
//
// Inputs:
//   - ctx: Context that may contain trace information. May be nil.
//   - logger: Base logger.
//
// Outputs:
//   - *slog.Logger: Logger with trace_id and span_id if available.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}
