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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
	"github.com/AleutianAI/AleutianPlanner/services/planner/storage/badger"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	cfg := testConfig()
	if withStore {
		cfg.Storage.Enabled = true
		cfg.Storage.Badger = badger.InMemoryConfig()
	}
	s, err := New(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, false)
	w := do(t, s, http.MethodGet, "/v1/planner/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.False(t, resp.Storage)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/v1/planner/queues", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, decode[QueuesResponse](t, w).Queues)
}

func TestHandleSolve(t *testing.T) {
	s := newTestServer(t, false)
	w := do(t, s, http.MethodPost, "/v1/planner/solve", SolveRequest{Task: toyDoc()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[SolveResponse](t, w)
	require.NotNil(t, resp.Result)
	assert.Equal(t, search.StatusSolutionFound, resp.Status)
	assert.Equal(t, 2, resp.Cost)
	require.Len(t, resp.Plan, 2)
	assert.Equal(t, "reset-a", resp.Plan[0].Name)
}

func TestHandleSolve_Errors(t *testing.T) {
	s := newTestServer(t, false)

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed json", "{not json", http.StatusBadRequest, "INVALID_REQUEST"},
		{"negative limit", SolveRequest{Task: toyDoc(), Limits: Limits{MaxNodes: -1}}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid task", SolveRequest{Task: task.Document{Name: "empty"}}, http.StatusBadRequest, "INVALID_TASK"},
		{"bad start", SolveRequest{Task: toyDoc(), Start: []int{5, 5, 5}}, http.StatusBadRequest, "INVALID_START"},
		{"unknown queue", SolveRequest{Task: toyDoc(), Limits: Limits{Queue: "pairing"}}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"storage disabled", SolveRequest{Task: toyDoc(), Store: true}, http.StatusServiceUnavailable, "STORAGE_DISABLED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/v1/planner/solve", tc.body)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestHandleEnumerate(t *testing.T) {
	s := newTestServer(t, false)
	w := do(t, s, http.MethodPost, "/v1/planner/enumerate", EnumerateRequest{Task: toyDoc(), IncludeEntries: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[EnumerateResponse](t, w)
	require.NotNil(t, resp.EnumerationResult)
	assert.Equal(t, 2, resp.InitialDistance)
	assert.Equal(t, 5, resp.EntryCount)
	assert.Len(t, resp.Entries, 5)
}

func TestHandleSample(t *testing.T) {
	s := newTestServer(t, false)

	w := do(t, s, http.MethodPost, "/v1/planner/sample", SampleRequest{Task: toyDoc(), Source: "initial-walk", Samples: 4, Seed: 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[SampleResponse](t, w).Samples, 4)

	w = do(t, s, http.MethodPost, "/v1/planner/sample", SampleRequest{Task: toyDoc()})
	assert.Equal(t, http.StatusBadRequest, w.Code, "source is required")

	w = do(t, s, http.MethodPost, "/v1/planner/sample", SampleRequest{Task: toyDoc(), Source: "relative", NoRegion: true})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "REGION_REQUIRED", decode[ErrorResponse](t, w).Code)
}

func TestHandleBatch(t *testing.T) {
	s := newTestServer(t, false)

	w := do(t, s, http.MethodPost, "/v1/planner/batch", BatchRequest{Jobs: []BatchJob{
		{Kind: "solve", Task: toyDoc()},
		{Kind: "enumerate", Task: toyDoc()},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[BatchResponse](t, w)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, search.StatusSolutionFound, resp.Results[0].Status)
	assert.Equal(t, search.StatusSolutionFound, resp.Results[1].Status)
	assert.Zero(t, resp.Failed)

	w = do(t, s, http.MethodPost, "/v1/planner/batch", BatchRequest{Jobs: []BatchJob{{Kind: "walk", Task: toyDoc()}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/v1/planner/batch", BatchRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSessions_Lifecycle(t *testing.T) {
	s := newTestServer(t, true)

	w := do(t, s, http.MethodPost, "/v1/planner/solve", SolveRequest{Task: toyDoc(), Store: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	solved := decode[SolveResponse](t, w)
	require.True(t, solved.Stored)

	w = do(t, s, http.MethodGet, "/v1/planner/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[SessionsResponse](t, w)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, solved.SessionID, list.Sessions[0].ID)

	path := fmt.Sprintf("/v1/planner/sessions/%s", solved.SessionID)
	w = do(t, s, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sess := decode[SessionResponse](t, w)
	require.NotNil(t, sess.Solution)
	assert.Equal(t, 2, sess.Solution.Cost)

	w = do(t, s, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[ErrorResponse](t, w).Code)

	w = do(t, s, http.MethodGet, "/v1/planner/sessions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSessions_StorageDisabled(t *testing.T) {
	s := newTestServer(t, false)
	w := do(t, s, http.MethodGet, "/v1/planner/sessions", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "STORAGE_DISABLED", decode[ErrorResponse](t, w).Code)
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 16
	s, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer s.Close()

	w := do(t, s, http.MethodPost, "/v1/planner/solve", SolveRequest{Task: toyDoc()})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrap: %w", badger.ErrKindMismatch), http.StatusConflict, "SESSION_KIND_MISMATCH"},
		{ErrTaskMismatch, http.StatusConflict, "TASK_MISMATCH"},
		{ErrTooManySamples, http.StatusBadRequest, "INVALID_REQUEST"},
		{search.ErrUnknownAlgorithm, http.StatusBadRequest, "INVALID_CONFIG"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	s, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_StorageEnabled(t *testing.T) {
	s := newTestServer(t, true)
	assert.True(t, s.Service().StorageEnabled())
	w := do(t, s, http.MethodGet, "/v1/planner/health", nil)
	assert.True(t, strings.Contains(w.Body.String(), `"storage":true`))
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
