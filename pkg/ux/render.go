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
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
)

// statusIcon maps a session status to an icon.
func statusIcon(s search.Status) Icon {
	switch {
	case s == search.StatusSolutionFound:
		return IconSuccess
	case s.Bounded():
		return IconWarning
	}
	return IconError
}

func (p *Printer) status(s search.Status, text string) {
	switch statusIcon(s) {
	case IconSuccess:
		p.Success(text)
	case IconWarning:
		p.Warning(text)
	default:
		p.Error(text)
	}
}

// Table prints rows under headers.
func (p *Printer) Table(headers []string, rows [][]string) {
	if p.level == LevelMachine {
		for _, r := range rows {
			fmt.Fprintln(p.out, strings.Join(r, "\t"))
		}
		return
	}
	t := table.New().Headers(headers...).Rows(rows...)
	if p.level == LevelRich {
		t = t.Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(ColorTealDeep)).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return Styles.Highlight.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
	} else {
		t = t.Border(lipgloss.NormalBorder())
	}
	fmt.Fprintln(p.out, t.Render())
}

// Solution prints a forward search result.
func (p *Printer) Solution(res *search.Result) {
	p.status(res.Status, fmt.Sprintf("%s: %s", res.Task, res.Status))
	p.Field("session", res.SessionID)
	p.Field("algorithm", res.Algorithm)
	if res.Status == search.StatusSolutionFound {
		p.Field("cost", res.Cost)
		p.Field("length", len(res.Plan))
	}
	p.Field("expanded", res.Expanded)
	p.Field("generated", res.Generated)
	p.Field("pruned", res.Pruned)
	p.Field("elapsed", res.Elapsed)
	if res.ExhaustedBy != "" {
		p.Field("exhausted_by", res.ExhaustedBy)
	}
	if len(res.Plan) == 0 {
		return
	}
	rows := make([][]string, len(res.Plan))
	for i, step := range res.Plan {
		rows[i] = []string{fmt.Sprint(i + 1), step.Name, fmt.Sprint(step.Cost)}
	}
	p.Table([]string{"#", "operator", "cost"}, rows)
}

// Enumeration prints a backward enumeration result.
func (p *Printer) Enumeration(res *search.EnumerationResult) {
	p.status(res.Status, fmt.Sprintf("%s: %s", res.Task, res.Status))
	p.Field("session", res.SessionID)
	p.Field("complete", res.Complete)
	p.Field("entries", len(res.Entries))
	p.Field("radius", res.Radius())
	if res.InitialDistance >= 0 {
		p.Field("initial_distance", res.InitialDistance)
	} else {
		p.Field("initial_distance", "unknown")
	}
	p.Field("expanded", res.Expanded)
	p.Field("subsumed", res.Subsumed)
	p.Field("elapsed", res.Elapsed)
	if res.ExhaustedBy != "" {
		p.Field("exhausted_by", res.ExhaustedBy)
	}
}

// Samples prints a sample stream as a table.
func (p *Printer) Samples(samples []search.Sample, coefficient float64) {
	rows := make([][]string, len(samples))
	exact := 0
	for i, sm := range samples {
		dist := fmt.Sprintf("%g", sm.Distance)
		if sm.DeadEnd() {
			dist = "dead-end"
		}
		if sm.SurelyCorrect {
			exact++
		}
		rows[i] = []string{sm.State.String(), dist, fmt.Sprint(sm.SurelyCorrect), sm.Source}
	}
	p.Table([]string{"state", "distance", "exact", "source"}, rows)
	if p.level != LevelMachine {
		p.Field("samples", fmt.Sprintf("%d (%d exact)", len(samples), exact))
		p.Field("shortening_coefficient", fmt.Sprintf("%.3f", coefficient))
	}
}
