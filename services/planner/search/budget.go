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
	"fmt"
	"time"
)

// BudgetConfig contains the limits of one search session.
type BudgetConfig struct {
	// TimeLimit is the wall-clock limit. Zero disables it.
	TimeLimit time.Duration `json:"time_limit" yaml:"time_limit" validate:"gte=0"`

	// MaxNodes caps open plus closed states. Zero disables it.
	MaxNodes int `json:"max_nodes" yaml:"max_nodes" validate:"gte=0"`
}

// DefaultBudgetConfig returns sensible defaults.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		TimeLimit: 30 * time.Second,
		MaxNodes:  2_000_000,
	}
}

// Budget tracks resource consumption during one search session.
//
// Description:
//
//	The budget is checked once per loop iteration. The first limit hit is
//	remembered and reported by ExhaustedBy; later checks keep returning the
//	same error.
//
// Thread Safety: Not safe for concurrent use. Each session owns its budget.
type Budget struct {
	config      BudgetConfig
	now         func() time.Time
	startTime   time.Time
	expanded    int64
	exhausted   error
	exhaustedBy string
}

// NewBudget creates a budget whose clock starts now.
//
// Inputs:
//   - config: Budget limits.
//
// Outputs:
//   - *Budget: Budget tracker, ready to use.
func NewBudget(config BudgetConfig) *Budget {
	return newBudgetWithClock(config, time.Now)
}

func newBudgetWithClock(config BudgetConfig, now func() time.Time) *Budget {
	if now == nil {
		now = time.Now
	}
	return &Budget{
		config:    config,
		now:       now,
		startTime: now(),
	}
}

// Config returns the budget configuration.
func (b *Budget) Config() BudgetConfig {
	return b.config
}

// RecordExpansion records one expanded state.
func (b *Budget) RecordExpansion() int64 {
	b.expanded++
	return b.expanded
}

// Expanded returns the number of expanded states.
func (b *Budget) Expanded() int64 {
	return b.expanded
}

// Elapsed returns the time since the budget was created.
func (b *Budget) Elapsed() time.Duration {
	return b.now().Sub(b.startTime)
}

// TimeUp reports whether the time limit has passed, without touching the
// node accounting.
func (b *Budget) TimeUp() bool {
	return b.config.TimeLimit > 0 && b.Elapsed() >= b.config.TimeLimit
}

// Check tests the limits against the current open and closed counts.
//
// Inputs:
//   - open: States in the open queue, stale entries included.
//   - closed: Expanded states.
//
// Outputs:
//   - error: ErrTimeLimitExceeded or ErrNodeLimitExceeded once a limit is
//     hit, nil otherwise.
func (b *Budget) Check(open, closed int) error {
	if b.exhausted != nil {
		return b.exhausted
	}
	if b.TimeUp() {
		b.exhausted = ErrTimeLimitExceeded
		b.exhaustedBy = "time"
		return b.exhausted
	}
	if b.config.MaxNodes > 0 && open+closed > b.config.MaxNodes {
		b.exhausted = ErrNodeLimitExceeded
		b.exhaustedBy = "nodes"
		return b.exhausted
	}
	return nil
}

// Exhaust marks the budget exhausted by an external limit such as a
// queue's capacity ceiling.
func (b *Budget) Exhaust(reason string, err error) {
	if b.exhausted != nil {
		return
	}
	b.exhausted = err
	b.exhaustedBy = reason
}

// Exhausted reports whether a limit has been hit.
func (b *Budget) Exhausted() bool {
	return b.exhausted != nil
}

// ExhaustedBy returns which limit caused exhaustion (empty if none).
func (b *Budget) ExhaustedBy() string {
	return b.exhaustedBy
}

// Remaining returns the remaining time, or zero when unlimited or spent.
func (b *Budget) Remaining() time.Duration {
	if b.config.TimeLimit <= 0 {
		return 0
	}
	left := b.config.TimeLimit - b.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}

// String returns a human-readable budget status.
func (b *Budget) String() string {
	exhaustedStatus := ""
	if b.Exhausted() {
		exhaustedStatus = fmt.Sprintf(" [EXHAUSTED by %s]", b.ExhaustedBy())
	}
	return fmt.Sprintf("Budget{expanded=%d, nodes<=%d, time=%v/%v}%s",
		b.expanded, b.config.MaxNodes,
		b.Elapsed().Round(time.Millisecond), b.config.TimeLimit,
		exhaustedStatus)
}
