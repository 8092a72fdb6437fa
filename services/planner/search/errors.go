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

import "errors"

// Package-level error definitions.
var (
	// ErrTimeLimitExceeded is returned by Budget.Check once the wall-clock
	// limit is reached.
	ErrTimeLimitExceeded = errors.New("time limit exceeded")

	// ErrNodeLimitExceeded is returned by Budget.Check once open plus
	// closed states exceed the node ceiling.
	ErrNodeLimitExceeded = errors.New("node limit exceeded")

	// ErrNilTask is returned when a component is built without a task.
	ErrNilTask = errors.New("task must not be nil")

	// ErrNilHeuristic is returned when a heuristic-guided algorithm is
	// configured without a heuristic.
	ErrNilHeuristic = errors.New("heuristic must not be nil")

	// ErrUnknownAlgorithm is returned for an unrecognised algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown search algorithm")

	// ErrInvalidConfig is returned for out-of-range configuration values.
	ErrInvalidConfig = errors.New("invalid search config")

	// ErrInvalidStart is returned when a start state does not fit the task.
	ErrInvalidStart = errors.New("invalid start state")

	// ErrNoRegion is returned when sampling needs an enumeration result
	// and none was given.
	ErrNoRegion = errors.New("enumeration result required")
)

// OperationError wraps a failure with the component and operation that
// produced it.
type OperationError struct {
	Component string
	Operation string
	Err       error
}

func (e *OperationError) Error() string {
	return e.Component + "." + e.Operation + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func opError(component, operation string, err error) error {
	return &OperationError{Component: component, Operation: operation, Err: err}
}
