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

// Status is the termination status of a search session.
type Status string

const (
	// StatusSolutionFound means the session reached its target: a goal
	// state (forward) or a stored state covering the initial state
	// (enumeration).
	StatusSolutionFound Status = "SolutionFound"

	// StatusNoSolutionExist means the reachable space was exhausted
	// without reaching the target.
	StatusNoSolutionExist Status = "NoSolutionExist"

	// StatusTimeLimitExceeded means the wall-clock limit stopped the
	// session. Partial results are retained.
	StatusTimeLimitExceeded Status = "TimeLimitExceeded"

	// StatusMemoryLimitExceeded means the node ceiling or a queue's
	// capacity stopped the session. Partial results are retained.
	StatusMemoryLimitExceeded Status = "MemoryLimitExceeded"

	// StatusInProgress is the status of a session that has not
	// terminated.
	StatusInProgress Status = "InProgress"
)

// Statuses lists every status.
func Statuses() []Status {
	return []Status{
		StatusSolutionFound,
		StatusNoSolutionExist,
		StatusTimeLimitExceeded,
		StatusMemoryLimitExceeded,
		StatusInProgress,
	}
}

// Bounded reports whether the session was stopped by a limit rather than
// by reaching a conclusion.
func (s Status) Bounded() bool {
	return s == StatusTimeLimitExceeded || s == StatusMemoryLimitExceeded
}

// statusFor maps a budget error to the terminal status.
func statusFor(err error) Status {
	if errors.Is(err, ErrTimeLimitExceeded) {
		return StatusTimeLimitExceeded
	}
	return StatusMemoryLimitExceeded
}
