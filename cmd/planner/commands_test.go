// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlanner/services/planner/task/tasktest"
)

func writeToy(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(tasktest.ToyYAML), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("PLANNER_CONFIG", "")
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(append([]string{"--output", "machine", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestSolveCommand(t *testing.T) {
	path := writeToy(t, "toy.yaml")
	out, _, err := run(t, "solve", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: toy: SolutionFound")
	assert.Contains(t, out, "cost\t2")
	assert.Contains(t, out, "1\treset-a\t1")
	assert.Contains(t, out, "heuristic_evaluations\t")
}

func TestSolveCommand_Errors(t *testing.T) {
	path := writeToy(t, "toy.yaml")

	_, _, err := run(t, "solve", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, _, err = run(t, "solve", "--start", "1,x,0", path)
	assert.Error(t, err)

	_, _, err = run(t, "solve", "--queue", "pairing", path)
	assert.Error(t, err)

	_, _, err = run(t, "--log-level", "loud", "solve", path)
	assert.Error(t, err)
}

func TestEnumerateCommand_JSON(t *testing.T) {
	path := writeToy(t, "toy.yaml")
	out, _, err := run(t, "--json", "enumerate", path)
	require.NoError(t, err)

	var resp struct {
		InitialDistance int `json:"initial_distance"`
		EntryCount      int `json:"entry_count"`
		Entries         []struct {
			G int `json:"g"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, 2, resp.InitialDistance)
	assert.Equal(t, 5, resp.EntryCount)
	assert.Len(t, resp.Entries, 5)
}

func TestSampleCommand(t *testing.T) {
	path := writeToy(t, "toy.yaml")
	out, _, err := run(t, "sample", "--source", "initial-walk", "--samples", "3", "--seed", "7", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, out)
	for _, l := range lines {
		assert.True(t, strings.HasSuffix(l, "\tinitial-walk"), l)
	}

	_, _, err = run(t, "sample", "--source", "relative", "--no-region", path)
	assert.Error(t, err)
}

func TestBatchCommand(t *testing.T) {
	a := writeToy(t, "a.yaml")
	b := writeToy(t, "b.yaml")
	out, _, err := run(t, "batch", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "a\tsolve\tSolutionFound\t2\t")
	assert.Contains(t, out, "b\tsolve\tSolutionFound\t2\t")

	out, _, err = run(t, "batch", "--kind", "enumerate", a)
	require.NoError(t, err)
	assert.Contains(t, out, "a\tenumerate\tSolutionFound\t2\t")
}

func TestQueuesCommand(t *testing.T) {
	out, _, err := run(t, "queues")
	require.NoError(t, err)
	assert.Contains(t, out, "radix\t")
	assert.Contains(t, out, "algorithms\t")
}

func TestSessionsCommands(t *testing.T) {
	t.Setenv("PLANNER_STORAGE_ENABLED", "true")
	t.Setenv("PLANNER_STORAGE_PATH", t.TempDir())
	path := writeToy(t, "toy.yaml")

	out, _, err := run(t, "--json", "solve", "--store", path)
	require.NoError(t, err)
	var solved struct {
		SessionID string `json:"session_id"`
		Stored    bool   `json:"stored"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &solved), out)
	require.True(t, solved.Stored)

	out, _, err = run(t, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, solved.SessionID+"\tsolution\ttoy\t")

	out, _, err = run(t, "sessions", "show", solved.SessionID)
	require.NoError(t, err)
	assert.Contains(t, out, "cost\t2")

	out, _, err = run(t, "sessions", "delete", solved.SessionID)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: deleted")

	_, _, err = run(t, "sessions", "show", solved.SessionID)
	assert.Error(t, err)
}

func TestSessionsCommand_StorageDisabled(t *testing.T) {
	t.Setenv("PLANNER_STORAGE_ENABLED", "false")
	_, _, err := run(t, "sessions", "list")
	assert.Error(t, err)
}

func TestParseState(t *testing.T) {
	s, err := parseState(" 1, 0,-1 ")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, -1}, s)

	s, err = parseState("")
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = parseState("1,,2")
	assert.Error(t, err)
}
