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

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianPlanner/services/planner/pq"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBudget_NodeLimit(t *testing.T) {
	b := NewBudget(BudgetConfig{MaxNodes: 3})
	assert.NoError(t, b.Check(2, 1))
	assert.ErrorIs(t, b.Check(2, 2), ErrNodeLimitExceeded)
	assert.True(t, b.Exhausted())
	assert.Equal(t, "nodes", b.ExhaustedBy())

	// Exhaustion is sticky.
	assert.ErrorIs(t, b.Check(0, 0), ErrNodeLimitExceeded)
}

func TestBudget_TimeLimit(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	b := newBudgetWithClock(BudgetConfig{TimeLimit: time.Second}, clock.now)

	assert.NoError(t, b.Check(1, 0))
	assert.Equal(t, time.Second, b.Remaining())

	clock.advance(400 * time.Millisecond)
	assert.False(t, b.TimeUp())
	assert.Equal(t, 600*time.Millisecond, b.Remaining())

	clock.advance(600 * time.Millisecond)
	assert.True(t, b.TimeUp())
	assert.ErrorIs(t, b.Check(1, 0), ErrTimeLimitExceeded)
	assert.Equal(t, "time", b.ExhaustedBy())
	assert.Equal(t, time.Duration(0), b.Remaining())
}

func TestBudget_TimeCheckedBeforeNodes(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBudgetWithClock(BudgetConfig{TimeLimit: time.Second, MaxNodes: 1}, clock.now)
	clock.advance(time.Hour)
	assert.ErrorIs(t, b.Check(10, 10), ErrTimeLimitExceeded)
}

func TestBudget_Unlimited(t *testing.T) {
	b := NewBudget(BudgetConfig{})
	assert.NoError(t, b.Check(1<<30, 1<<30))
	assert.Equal(t, time.Duration(0), b.Remaining())
	assert.False(t, b.Exhausted())
}

func TestBudget_Exhaust(t *testing.T) {
	b := NewBudget(BudgetConfig{})
	b.Exhaust("queue", pq.ErrCapacityExceeded)
	assert.ErrorIs(t, b.Check(0, 0), pq.ErrCapacityExceeded)
	assert.Equal(t, "queue", b.ExhaustedBy())

	b.Exhaust("other", ErrTimeLimitExceeded)
	assert.Equal(t, "queue", b.ExhaustedBy(), "first reason wins")
}

func TestBudget_Expansions(t *testing.T) {
	b := NewBudget(DefaultBudgetConfig())
	for i := 0; i < 5; i++ {
		b.RecordExpansion()
	}
	assert.Equal(t, int64(5), b.Expanded())
	assert.Equal(t, DefaultBudgetConfig(), b.Config())
	assert.True(t, strings.HasPrefix(b.String(), "Budget{expanded=5"))

	b.Exhaust("nodes", ErrNodeLimitExceeded)
	assert.Contains(t, b.String(), "[EXHAUSTED by nodes]")
}
