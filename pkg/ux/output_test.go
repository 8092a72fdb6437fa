// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

func newTestPrinter(level Level) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewPrinter(&out, &errOut, level), &out, &errOut
}

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow} {
		got := icon.Render()
		if !strings.Contains(got, string(icon)) {
			t.Errorf("Render(%q) = %q, want it to contain the icon", icon, got)
		}
	}
	if IconBullet.Render() != string(IconBullet) {
		t.Error("expected unstyled bullet")
	}
}

// =============================================================================
// Level Tests
// =============================================================================

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"machine":   LevelMachine,
		" Minimal ": LevelMinimal,
		"rich":      LevelRich,
		"":          LevelRich,
		"sparkly":   LevelRich,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectLevel_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if got := DetectLevel(f); got != LevelMachine {
		t.Errorf("DetectLevel(file) = %q, want machine", got)
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinter_MachineOutput(t *testing.T) {
	p, out, errOut := newTestPrinter(LevelMachine)
	p.Title("ignored")
	p.Success("done")
	p.Field("cost", 3)
	p.Warning("careful")
	p.Error("broken")

	if got, want := out.String(), "OK: done\ncost\t3\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if got, want := errOut.String(), "WARN: careful\nERROR: broken\n"; got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
	if p.Level() != LevelMachine {
		t.Errorf("Level() = %q", p.Level())
	}
}

func TestPrinter_MinimalOutput(t *testing.T) {
	p, out, _ := newTestPrinter(LevelMinimal)
	p.Success("done")
	p.Box("Plan", "two steps")
	if !strings.Contains(out.String(), "✓ done") {
		t.Errorf("missing success line: %q", out.String())
	}
	if !strings.Contains(out.String(), "Plan: two steps") {
		t.Errorf("minimal box should be plain: %q", out.String())
	}
}

func TestPrinter_ProgressBar(t *testing.T) {
	p, _, _ := newTestPrinter(LevelMachine)
	if got := p.ProgressBar(3, 10, 20); got != "3/10" {
		t.Errorf("machine ProgressBar = %q", got)
	}
	p, _, _ = newTestPrinter(LevelMinimal)
	got := p.ProgressBar(5, 10, 10)
	if !strings.Contains(got, "█████░░░░░") || !strings.Contains(got, "50%") {
		t.Errorf("minimal ProgressBar = %q", got)
	}
	if got := p.ProgressBar(20, 10, 4); !strings.Contains(got, "100%") {
		t.Errorf("overfull ProgressBar = %q", got)
	}
}

func TestPrinter_Table(t *testing.T) {
	p, out, _ := newTestPrinter(LevelMachine)
	p.Table([]string{"a", "b"}, [][]string{{"1", "2"}, {"3", "4"}})
	if got, want := out.String(), "1\t2\n3\t4\n"; got != want {
		t.Errorf("machine table = %q, want %q", got, want)
	}

	p, out, _ = newTestPrinter(LevelRich)
	p.Table([]string{"operator"}, [][]string{{"reset-a"}})
	if !strings.Contains(out.String(), "reset-a") || !strings.Contains(out.String(), "operator") {
		t.Errorf("rich table missing cells: %q", out.String())
	}
}

// =============================================================================
// Render Tests
// =============================================================================

func TestPrinter_Solution(t *testing.T) {
	p, out, _ := newTestPrinter(LevelMachine)
	p.Solution(&search.Result{
		SessionID: "s1",
		Task:      "toy",
		Algorithm: search.AlgorithmAStar,
		Status:    search.StatusSolutionFound,
		Cost:      2,
		Plan:      []search.Step{{Index: 0, Name: "reset-a", Cost: 1}, {Index: 1, Name: "set-c", Cost: 1}},
	})
	got := out.String()
	for _, want := range []string{"OK: toy: SolutionFound", "cost\t2", "1\treset-a\t1", "2\tset-c\t1"} {
		if !strings.Contains(got, want) {
			t.Errorf("solution output missing %q:\n%s", want, got)
		}
	}
}

func TestPrinter_BoundedSolutionWarns(t *testing.T) {
	p, out, errOut := newTestPrinter(LevelMachine)
	p.Solution(&search.Result{Task: "grid", Status: search.StatusTimeLimitExceeded, ExhaustedBy: "time"})
	if !strings.HasPrefix(errOut.String(), "WARN: grid:") {
		t.Errorf("stderr = %q", errOut.String())
	}
	if strings.Contains(out.String(), "cost") {
		t.Errorf("cost printed for unsolved session: %q", out.String())
	}
}

func TestPrinter_Enumeration(t *testing.T) {
	p, out, _ := newTestPrinter(LevelMachine)
	p.Enumeration(&search.EnumerationResult{
		Task:            "chain",
		Status:          search.StatusNoSolutionExist,
		InitialDistance: -1,
	})
	if !strings.Contains(out.String(), "initial_distance\tunknown") {
		t.Errorf("enumeration output = %q", out.String())
	}
}

func TestPrinter_Samples(t *testing.T) {
	p, out, _ := newTestPrinter(LevelMachine)
	p.Samples([]search.Sample{
		{State: task.State{1, 0}, Distance: 3, SurelyCorrect: true, Source: search.SourceGoalWalk},
		{State: task.State{0, 0}, Distance: math.Inf(1), Source: search.SourceInitialWalk},
	}, 0.5)
	got := out.String()
	if !strings.Contains(got, "[1,0]\t3\ttrue\tgoal-walk") {
		t.Errorf("missing exact sample row: %q", got)
	}
	if !strings.Contains(got, "[0,0]\tdead-end\tfalse\tinitial-walk") {
		t.Errorf("missing dead-end row: %q", got)
	}
}
