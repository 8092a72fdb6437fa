// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing, metrics and slog logging for
// the planner service and CLI.
//
// Search packages use otel.Tracer and otel.Meter directly; this package only
// installs the providers behind them and exposes the Prometheus handler.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
//	logger := telemetry.NewLogger(os.Stderr, "info", "json")
//
// # Exporters
//
//   - Traces: otlp (gRPC), stdout, or none.
//   - Metrics: prometheus (served by MetricsHandler), stdout, or none.
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
