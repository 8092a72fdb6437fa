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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPlanner/services/planner/batch"
	"github.com/AleutianAI/AleutianPlanner/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlanner/services/planner/pq"
	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
	"github.com/AleutianAI/AleutianPlanner/services/planner/storage/badger"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
	"github.com/AleutianAI/AleutianPlanner/services/planner/telemetry"
)

// Handlers contains the HTTP handlers for the planner.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// HandleHealth handles GET /v1/planner/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Storage: h.svc.StorageEnabled(),
	})
}

// HandleQueues handles GET /v1/planner/queues.
func (h *Handlers) HandleQueues(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Queues())
}

// HandleSolve handles POST /v1/planner/solve.
//
// Description:
//
//	Runs one forward search session. A bounded session (time or memory
//	limit) is a 200 response carrying that status.
//
// Request Body:
//
//	SolveRequest
//
// Response:
//
//	200 OK: SolveResponse
//	400 Bad Request: Malformed body, task, start state or configuration
//	503 Service Unavailable: store requested with storage disabled
//	500 Internal Server Error: Storage failure
func (h *Handlers) HandleSolve(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSolve")

	var req SolveRequest
	if !h.bind(c, logger, &req) {
		return
	}
	resp, err := h.svc.Solve(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, "Solve failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleEnumerate handles POST /v1/planner/enumerate.
//
// Request Body:
//
//	EnumerateRequest
//
// Response:
//
//	200 OK: EnumerateResponse
//	400 Bad Request: Malformed body, task, start state or configuration
//	503 Service Unavailable: store requested with storage disabled
func (h *Handlers) HandleEnumerate(c *gin.Context) {
	logger := h.requestLogger(c, "HandleEnumerate")

	var req EnumerateRequest
	if !h.bind(c, logger, &req) {
		return
	}
	resp, err := h.svc.Enumerate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, "Enumerate failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSample handles POST /v1/planner/sample.
//
// Request Body:
//
//	SampleRequest
//
// Response:
//
//	200 OK: SampleResponse
//	400 Bad Request: Malformed body, unknown source or too many samples
//	404 Not Found: region_session does not exist
//	409 Conflict: region_session is not an enumeration of this task
//	503 Service Unavailable: storage disabled
func (h *Handlers) HandleSample(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSample")

	var req SampleRequest
	if !h.bind(c, logger, &req) {
		return
	}
	resp, err := h.svc.Sample(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, "Sample failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleBatch handles POST /v1/planner/batch.
//
// Request Body:
//
//	BatchRequest
//
// Response:
//
//	200 OK: BatchResponse, with per-job errors
//	400 Bad Request: Malformed body or a job that cannot be built
func (h *Handlers) HandleBatch(c *gin.Context) {
	logger := h.requestLogger(c, "HandleBatch")

	var req BatchRequest
	if !h.bind(c, logger, &req) {
		return
	}
	resp, err := h.svc.Batch(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, "Batch failed", err)
		return
	}
	logger.Info("Batch finished", "jobs", len(resp.Results), "failed", resp.Failed)
	c.JSON(http.StatusOK, resp)
}

// HandleListSessions handles GET /v1/planner/sessions.
//
// Query Parameters:
//
//	limit - Maximum number of sessions (optional, default all)
func (h *Handlers) HandleListSessions(c *gin.Context) {
	logger := h.requestLogger(c, "HandleListSessions")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a non-negative integer",
				Code:  "INVALID_REQUEST",
			})
			return
		}
		limit = n
	}
	resp, err := h.svc.Sessions(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, logger, "List sessions failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleGetSession handles GET /v1/planner/sessions/:id.
func (h *Handlers) HandleGetSession(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGetSession")

	resp, err := h.svc.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, logger, "Get session failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDeleteSession handles DELETE /v1/planner/sessions/:id.
func (h *Handlers) HandleDeleteSession(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDeleteSession")

	id := c.Param("id")
	if err := h.svc.DeleteSession(c.Request.Context(), id); err != nil {
		h.fail(c, logger, "Delete session failed", err)
		return
	}
	logger.Info("Session deleted", "session_id", id)
	c.Status(http.StatusNoContent)
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	requestID := getOrCreateRequestID(c)
	logger := telemetry.LoggerWithTrace(c.Request.Context(), h.logger)
	return logger.With("request_id", requestID, "handler", handler)
}

// bind decodes the JSON body and writes a 400 on failure.
func (h *Handlers) bind(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return false
	}
	return true
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, msg string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, "error", err)
	} else {
		logger.Warn(msg, "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

// errorStatus maps a service error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, task.ErrInvalidTask):
		return http.StatusBadRequest, "INVALID_TASK"
	case errors.Is(err, search.ErrInvalidStart):
		return http.StatusBadRequest, "INVALID_START"
	case errors.Is(err, search.ErrNoRegion):
		return http.StatusBadRequest, "REGION_REQUIRED"
	case errors.Is(err, ErrUnknownSource),
		errors.Is(err, ErrTooManySamples),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, batch.ErrNoJobs),
		errors.Is(err, batch.ErrUnknownJobKind):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, pq.ErrUnknownKind),
		errors.Is(err, search.ErrUnknownAlgorithm),
		errors.Is(err, search.ErrInvalidConfig),
		errors.Is(err, heuristic.ErrUnknownHeuristic),
		errors.Is(err, heuristic.ErrInvalidConfig):
		return http.StatusBadRequest, "INVALID_CONFIG"
	case errors.Is(err, badger.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, badger.ErrKindMismatch):
		return http.StatusConflict, "SESSION_KIND_MISMATCH"
	case errors.Is(err, ErrTaskMismatch):
		return http.StatusConflict, "TASK_MISMATCH"
	case errors.Is(err, ErrStorageDisabled):
		return http.StatusServiceUnavailable, "STORAGE_DISABLED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// getOrCreateRequestID gets the request ID from context or headers, or
// creates a new one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header("X-Request-ID", requestID)
	return requestID
}

// RequestIDMiddleware assigns every request an ID before logging runs.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		getOrCreateRequestID(c)
		c.Next()
	}
}

// BodyLimitMiddleware caps request bodies at limit bytes.
func BodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
