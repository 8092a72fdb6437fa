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
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianPlanner/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

// Sample sources.
const (
	SourceGoalWalk    = "goal-walk"
	SourceInitialWalk = "initial-walk"
	SourceRelative    = "relative"
)

// Sample is a ground state with a goal-distance estimate.
type Sample struct {
	State         task.State `json:"state"`
	Distance      float64    `json:"distance"`
	SurelyCorrect bool       `json:"surely_correct"`
	Source        string     `json:"source"`
}

// sampleJSON is the wire form of Sample. JSON has no infinity, so a
// dead-end distance travels as a null distance with dead_end set.
type sampleJSON struct {
	State         task.State `json:"state"`
	Distance      *float64   `json:"distance"`
	DeadEnd       bool       `json:"dead_end,omitempty"`
	SurelyCorrect bool       `json:"surely_correct"`
	Source        string     `json:"source"`
}

// DeadEnd reports whether the sample's state cannot reach the goal.
func (s Sample) DeadEnd() bool {
	return math.IsInf(s.Distance, 1)
}

// MarshalJSON implements json.Marshaler.
func (s Sample) MarshalJSON() ([]byte, error) {
	out := sampleJSON{State: s.State, SurelyCorrect: s.SurelyCorrect, Source: s.Source}
	if s.DeadEnd() {
		out.DeadEnd = true
	} else {
		d := s.Distance
		out.Distance = &d
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var in sampleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Sample{State: in.State, SurelyCorrect: in.SurelyCorrect, Source: in.Source}
	switch {
	case in.DeadEnd:
		s.Distance = math.Inf(1)
	case in.Distance != nil:
		s.Distance = *in.Distance
	}
	return nil
}

// SamplerConfig configures the sample streams.
type SamplerConfig struct {
	// Samples is the number of samples per stream.
	Samples int `json:"samples" yaml:"samples" validate:"gte=0"`

	// MaxWalkLength bounds each random walk; walk lengths are drawn
	// uniformly from [1, MaxWalkLength].
	MaxWalkLength int `json:"max_walk_length" yaml:"max_walk_length" validate:"gte=0"`

	// TimeLimit bounds a whole stream. Zero disables it.
	TimeLimit time.Duration `json:"time_limit" yaml:"time_limit" validate:"gte=0"`

	// Seed drives the walks. Zero picks a time-based seed.
	Seed uint64 `json:"seed" yaml:"seed"`

	// ParentDistance makes ground samples report the g of the entry they
	// were drawn from instead of the minimum over every covering entry.
	ParentDistance bool `json:"parent_distance" yaml:"parent_distance"`

	// Connector bounds the per-sample connection search.
	Connector ConnectorConfig `json:"connector" yaml:"connector"`
}

// DefaultSamplerConfig returns defaults for sampling.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Samples:       100,
		MaxWalkLength: 50,
		TimeLimit:     10 * time.Second,
		Connector:     DefaultConnectorConfig(),
	}
}

// Sampler turns an enumeration result into distance samples.
//
// Description:
//
//	FromGoalWalks walks backward from goal states, FromInitialWalks walks
//	forward from the initial state, and GroundSamples instantiates stored
//	relative states. Walk endpoints are scored through the region when it
//	covers them, otherwise through the Connector. When neither connects,
//	goal walks fall back to the walk cost scaled by the shortening
//	coefficient and initial walks fall back to the heuristic.
//
//	The shortening coefficient is the running ratio of true distance over
//	walk cost across goal walks whose true distance became known. It is
//	1.0 until the first such walk.
//
// Thread Safety: Not safe for concurrent use. Streams share the random
// source and the coefficient; consume one stream at a time.
type Sampler struct {
	task      *task.Task
	region    *EnumerationResult
	h         heuristic.Heuristic
	config    SamplerConfig
	rng       *rand.Rand
	connector *Connector
	logger    *slog.Logger
	now       func() time.Time

	trueSum float64
	walkSum float64
}

// NewSampler creates a sampler.
//
// Inputs:
//   - t: The task. Must not be nil.
//   - region: A finished enumeration. Required by GroundSamples and used
//     for scoring; walks without a region score by fallback only.
//   - h: Fallback for initial walks; nil uses goal-count.
//   - config: Configuration. Zero fields take defaults.
//   - logger: Logger; nil uses slog.Default().
func NewSampler(t *task.Task, region *EnumerationResult, h heuristic.Heuristic, config SamplerConfig, logger *slog.Logger) (*Sampler, error) {
	if t == nil {
		return nil, ErrNilTask
	}
	def := DefaultSamplerConfig()
	if config.Samples == 0 {
		config.Samples = def.Samples
	}
	if config.MaxWalkLength == 0 {
		config.MaxWalkLength = def.MaxWalkLength
	}
	if config.Connector == (ConnectorConfig{}) {
		config.Connector = def.Connector
	}
	if config.Samples < 0 || config.MaxWalkLength < 0 || config.TimeLimit < 0 {
		return nil, fmt.Errorf("%w: negative sampler limit", ErrInvalidConfig)
	}
	if h == nil {
		h = heuristic.NewGoalCount(t)
	}
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s := &Sampler{
		task:   t,
		region: region,
		h:      h,
		config: config,
		rng:    rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)),
		logger: componentLogger(logger, "search.sampler"),
		now:    time.Now,
	}
	if region != nil {
		s.connector = &Connector{task: t, region: region, config: config.Connector, now: s.now}
	}
	return s, nil
}

// ShorteningCoefficient returns the running ratio of true distance over
// walk cost.
func (s *Sampler) ShorteningCoefficient() float64 {
	if s.walkSum == 0 {
		return 1
	}
	return s.trueSum / s.walkSum
}

func (s *Sampler) observe(trueDist, walkCost int) {
	if walkCost <= 0 {
		return
	}
	s.trueSum += float64(trueDist)
	s.walkSum += float64(walkCost)
}

// walkLength draws a walk length from [1, MaxWalkLength].
func (s *Sampler) walkLength() int {
	return 1 + s.rng.IntN(s.config.MaxWalkLength)
}

// stream wraps a per-sample generator with span, budget and metrics.
func (s *Sampler) stream(ctx context.Context, source string, next func(budget *Budget) Sample) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		sessionID := uuid.NewString()
		ctx, span := startSessionSpan(ctx, "planner.search.sample", sessionID, s.task.Name,
			BudgetConfig{TimeLimit: s.config.TimeLimit})
		logger := LoggerWithTrace(ctx, s.logger).With(
			slog.String("session_id", sessionID),
			slog.String("source", source),
		)
		budget := newBudgetWithClock(BudgetConfig{TimeLimit: s.config.TimeLimit}, s.now)
		emitted, exact := int64(0), int64(0)
		status := StatusSolutionFound

		for emitted < int64(s.config.Samples) {
			if budget.TimeUp() {
				status = StatusTimeLimitExceeded
				break
			}
			sample := next(budget)
			emitted++
			if sample.SurelyCorrect {
				exact++
			}
			recordSampleMetric(ctx, source, sample.SurelyCorrect)
			if !yield(sample) {
				status = StatusInProgress
				break
			}
		}

		span.SetAttributes(
			attribute.Int64("planner.result.samples", emitted),
			attribute.Int64("planner.result.exact_samples", exact),
			attribute.Float64("planner.result.shortening", s.ShorteningCoefficient()),
		)
		endSessionSpan(span, status, 0, emitted, nil)
		logger.InfoContext(ctx, "sampling finished",
			slog.String("status", string(status)),
			slog.Int64("samples", emitted),
			slog.Int64("exact", exact),
			slog.Float64("shortening", s.ShorteningCoefficient()),
			slog.Duration("elapsed", budget.Elapsed()),
		)
	}
}

// FromGoalWalks streams samples from random backward walks that start at
// goal states: ground instances of the zero-g closed entries of the
// region, or of the goal state when no region is set.
func (s *Sampler) FromGoalWalks(ctx context.Context) iter.Seq[Sample] {
	starts := s.zeroEntries()
	return s.stream(ctx, SourceGoalWalk, func(budget *Budget) Sample {
		cur := s.task.Instantiate(starts[s.rng.IntN(len(starts))], s.rng)
		length := s.walkLength()
		cost := 0
		for step := 0; step < length && !budget.TimeUp(); step++ {
			prev, op, ok := s.backwardStep(cur)
			if !ok {
				break
			}
			cur = prev
			cost += op.Cost
		}
		return s.score(cur, cost, SourceGoalWalk)
	})
}

// FromInitialWalks streams samples from random forward walks that start
// at the initial state.
func (s *Sampler) FromInitialWalks(ctx context.Context) iter.Seq[Sample] {
	return s.stream(ctx, SourceInitialWalk, func(budget *Budget) Sample {
		cur := s.task.Initial.Clone()
		length := s.walkLength()
		for step := 0; step < length && !budget.TimeUp(); step++ {
			next, ok := s.forwardStep(cur)
			if !ok {
				break
			}
			cur = next
		}
		return s.score(cur, 0, SourceInitialWalk)
	})
}

// GroundSamples streams ground instances of closed relative entries.
//
// Description:
//
//	Each sample picks a closed entry uniformly and fills its wildcards
//	with Task.Instantiate. Its distance is the minimum g over every closed
//	entry that generalizes the ground state, or the picked entry's g when
//	ParentDistance is set (an upper bound, never marked surely correct).
func (s *Sampler) GroundSamples(ctx context.Context) (iter.Seq[Sample], error) {
	if s.region == nil {
		return nil, ErrNoRegion
	}
	closed := s.region.closedEntries()
	if len(closed) == 0 {
		return func(func(Sample) bool) {}, nil
	}
	return s.stream(ctx, SourceRelative, func(*Budget) Sample {
		e := closed[s.rng.IntN(len(closed))]
		ground := s.task.Instantiate(e.State, s.rng)
		if s.config.ParentDistance {
			return Sample{State: ground, Distance: float64(e.G), Source: SourceRelative}
		}
		g, ok, complete := s.region.lookup(ground)
		if !ok {
			g, complete = e.G, false
		}
		return Sample{
			State:         ground,
			Distance:      float64(g),
			SurelyCorrect: complete && s.region.Complete,
			Source:        SourceRelative,
		}
	}), nil
}

func (s *Sampler) zeroEntries() []task.State {
	var out []task.State
	if s.region != nil {
		for _, e := range s.region.closedEntries() {
			if e.G == 0 {
				out = append(out, e.State)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, s.task.GoalState())
	}
	return out
}

// backwardStep picks a random operator that leads into cur and returns a
// ground predecessor. Regression gives a relative predecessor; it is
// instantiated and kept only if applying the operator reproduces cur.
func (s *Sampler) backwardStep(cur task.State) (task.State, *task.Operator, bool) {
	type move struct {
		op   *task.Operator
		prev task.State
	}
	var moves []move
	s.task.Predecessors(cur, func(op *task.Operator, pred task.State) bool {
		prev := s.task.Instantiate(pred, s.rng)
		if op.Applicable(prev) && op.Apply(prev).Equal(cur) {
			moves = append(moves, move{op: op, prev: prev})
		}
		return true
	})
	if len(moves) == 0 {
		return nil, nil, false
	}
	m := moves[s.rng.IntN(len(moves))]
	return m.prev, m.op, true
}

func (s *Sampler) forwardStep(cur task.State) (task.State, bool) {
	var succ []task.State
	s.task.Successors(cur, func(_ *task.Operator, next task.State) bool {
		succ = append(succ, next)
		return true
	})
	if len(succ) == 0 {
		return nil, false
	}
	return succ[s.rng.IntN(len(succ))], true
}

// score turns a walk endpoint into a sample. walkCost is the accumulated
// cost of a goal walk and 0 for initial walks.
func (s *Sampler) score(end task.State, walkCost int, source string) Sample {
	out := Sample{State: end, Source: source}
	complete := s.region != nil && s.region.Complete

	if g, ok, queryComplete := s.region.lookup(end); ok {
		out.Distance = float64(g)
		out.SurelyCorrect = complete && queryComplete
		if source == SourceGoalWalk {
			s.observe(g, walkCost)
		}
		return out
	}

	if s.connector != nil {
		conn := s.connector.Connect(end)
		switch {
		case conn.Found:
			out.Distance = float64(conn.Distance)
			out.SurelyCorrect = conn.Exact && complete
			if source == SourceGoalWalk {
				s.observe(conn.Distance, walkCost)
			}
			return out
		case conn.DeadEnd && complete:
			out.Distance = math.Inf(1)
			out.SurelyCorrect = true
			return out
		}
	}

	if source == SourceGoalWalk {
		out.Distance = s.ShorteningCoefficient() * float64(walkCost)
		return out
	}
	out.Distance = s.h.Evaluate(end)
	return out
}
