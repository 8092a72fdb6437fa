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

import "errors"

// Sentinel errors for the planner service.
var (
	// ErrStorageDisabled indicates a request needs the result store but
	// storage is not configured.
	ErrStorageDisabled = errors.New("result storage is disabled")

	// ErrTooManySamples indicates a sample request above the server cap.
	ErrTooManySamples = errors.New("too many samples requested")

	// ErrUnknownSource indicates an unsupported sample source.
	ErrUnknownSource = errors.New("unknown sample source")

	// ErrTaskMismatch indicates a stored region belongs to another task.
	ErrTaskMismatch = errors.New("stored region belongs to a different task")

	// ErrInvalidRequest indicates request fields that cannot be combined.
	ErrInvalidRequest = errors.New("invalid request")
)
