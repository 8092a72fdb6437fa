// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pmatch indexes relative states for partial-match queries.
//
// Description:
//
//	An Index is a trie keyed by variable position. Each internal node fans
//	out over the wildcard and every domain value of one variable. A subtree
//	holding a single key is kept as a leaf slot and promoted to an internal
//	node only when a second key arrives. Matching queries answer "which
//	stored keys generalize this probe" and stop at a wall-clock cutoff,
//	returning partial results rather than blocking.
package pmatch

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/task"
)

var (
	// ErrKeyLength is returned when a key does not have one value per
	// variable.
	ErrKeyLength = errors.New("key length does not match variable count")

	// ErrValueRange is returned for a key value outside its domain.
	ErrValueRange = errors.New("key value out of domain range")
)

// deadlineStride is the number of visited nodes between clock reads.
const deadlineStride = 64

// Config configures an Index.
type Config struct {
	// QueryTimeout bounds every matching query. Zero disables the bound.
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout"`

	// Seed drives the randomized branch order. Zero picks a time-based
	// seed.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the default index configuration.
func DefaultConfig() Config {
	return Config{
		QueryTimeout: 100 * time.Millisecond,
	}
}

// Match is a stored key that generalizes a probe, with its value. Key is
// shared with the index and must not be modified.
type Match[V any] struct {
	Key   task.State
	Value V
}

// Stats describes the index shape and query behaviour.
type Stats struct {
	Entries          int   `json:"entries"`
	Nodes            int   `json:"nodes"`
	Promotions       int64 `json:"promotions"`
	Queries          int64 `json:"queries"`
	TruncatedQueries int64 `json:"truncated_queries"`
}

type entry[V any] struct {
	key   task.State
	value V
}

type trieNode[V any] struct {
	internal bool
	leaf     *entry[V]
	wild     *trieNode[V]
	kids     []*trieNode[V]
}

// Index maps relative states to values.
//
// Thread Safety: Not safe for concurrent use. An index belongs to one
// enumeration session.
type Index[V any] struct {
	ranges []int
	config Config
	root   *trieNode[V]
	size   int
	nodes  int
	rng    *rand.Rand
	now    func() time.Time
	stats  Stats
}

// New creates an empty index over variables with the given domain ranges.
//
// Inputs:
//   - ranges: Domain range of each variable. Not retained.
//   - config: Query timeout and seed.
//
// Outputs:
//   - *Index[V]: The empty index.
func New[V any](ranges []int, config Config) *Index[V] {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	r := make([]int, len(ranges))
	copy(r, ranges)
	return &Index[V]{
		ranges: r,
		config: config,
		root:   &trieNode[V]{},
		nodes:  1,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:    time.Now,
	}
}

// Len returns the number of stored keys.
func (ix *Index[V]) Len() int {
	return ix.size
}

// Clear removes every key.
func (ix *Index[V]) Clear() {
	ix.root = &trieNode[V]{}
	ix.size = 0
	ix.nodes = 1
	ix.stats = Stats{}
}

// Stats returns a snapshot of the index statistics.
func (ix *Index[V]) Stats() Stats {
	s := ix.stats
	s.Entries = ix.size
	s.Nodes = ix.nodes
	return s
}

func (ix *Index[V]) check(key task.State) error {
	if len(key) != len(ix.ranges) {
		return fmt.Errorf("%w: got %d, want %d", ErrKeyLength, len(key), len(ix.ranges))
	}
	for i, v := range key {
		if v != task.Unspecified && (v < 0 || v >= ix.ranges[i]) {
			return fmt.Errorf("%w: variable %d value %d (range %d)", ErrValueRange, i, v, ix.ranges[i])
		}
	}
	return nil
}

// Put stores value under key, replacing any previous value.
//
// Outputs:
//   - bool: True if key was not stored before.
//   - error: ErrKeyLength or ErrValueRange for malformed keys.
func (ix *Index[V]) Put(key task.State, value V) (bool, error) {
	if err := ix.check(key); err != nil {
		return false, err
	}
	e := &entry[V]{key: key.Clone(), value: value}
	n := ix.root
	for depth := 0; ; depth++ {
		if !n.internal {
			switch {
			case n.leaf == nil:
				n.leaf = e
				ix.size++
				return true, nil
			case n.leaf.key.Equal(key):
				n.leaf.value = value
				return false, nil
			case depth == len(ix.ranges):
				// Unreachable: two keys reaching full depth are equal.
				n.leaf = e
				return false, nil
			}
			ix.promote(n, depth)
		}
		n = ix.child(n, key[depth])
	}
}

// promote turns a leaf slot into an internal node, pushing its entry one
// level down.
func (ix *Index[V]) promote(n *trieNode[V], depth int) {
	old := n.leaf
	n.leaf = nil
	n.internal = true
	n.kids = make([]*trieNode[V], ix.ranges[depth])
	c := ix.child(n, old.key[depth])
	c.leaf = old
	ix.stats.Promotions++
}

// child returns the child for value v, creating it if needed.
func (ix *Index[V]) child(n *trieNode[V], v int) *trieNode[V] {
	slot := &n.wild
	if v != task.Unspecified {
		slot = &n.kids[v]
	}
	if *slot == nil {
		*slot = &trieNode[V]{}
		ix.nodes++
	}
	return *slot
}

// Get returns the value stored under exactly key.
func (ix *Index[V]) Get(key task.State) (V, bool) {
	var zero V
	if len(key) != len(ix.ranges) {
		return zero, false
	}
	n := ix.root
	for depth := 0; n != nil; depth++ {
		if !n.internal {
			if n.leaf != nil && n.leaf.key.Equal(key) {
				return n.leaf.value, true
			}
			return zero, false
		}
		v := key[depth]
		if v == task.Unspecified {
			n = n.wild
		} else if v >= 0 && v < len(n.kids) {
			n = n.kids[v]
		} else {
			return zero, false
		}
	}
	return zero, false
}

// Visit calls fn for stored keys that generalize probe until fn returns
// false, the trie is exhausted or the query timeout expires.
//
// Description:
//
//	At each level the wildcard branch and the branch of the probe's value
//	are both explored, in an order randomized per call. A wildcard in the
//	probe only follows the wildcard branch.
//
// Outputs:
//   - bool: False if the timeout cut the traversal short.
func (ix *Index[V]) Visit(probe task.State, fn func(key task.State, value V) bool) bool {
	ix.stats.Queries++
	if len(probe) != len(ix.ranges) {
		return true
	}
	q := query[V]{
		probe:     probe,
		fn:        fn,
		wildFirst: ix.rng.IntN(2) == 0,
		now:       ix.now,
	}
	if ix.config.QueryTimeout > 0 {
		q.deadline = ix.now().Add(ix.config.QueryTimeout)
	}
	q.walk(ix.root, 0)
	if q.timedOut {
		ix.stats.TruncatedQueries++
	}
	return !q.timedOut
}

// ContainsMatching reports whether any stored key generalizes probe.
// A timed-out query reports false.
func (ix *Index[V]) ContainsMatching(probe task.State) bool {
	found := false
	ix.Visit(probe, func(task.State, V) bool {
		found = true
		return false
	})
	return found
}

// Matching returns up to limit stored keys that generalize probe. A
// non-positive limit means no limit.
//
// Outputs:
//   - []Match[V]: The matches found.
//   - bool: False if the timeout truncated the result.
func (ix *Index[V]) Matching(probe task.State, limit int) ([]Match[V], bool) {
	var out []Match[V]
	complete := ix.Visit(probe, func(key task.State, value V) bool {
		out = append(out, Match[V]{Key: key, Value: value})
		return limit <= 0 || len(out) < limit
	})
	return out, complete
}

// All iterates every stored entry. It is not time-bounded.
func (ix *Index[V]) All() iter.Seq2[task.State, V] {
	return func(yield func(task.State, V) bool) {
		stack := []*trieNode[V]{ix.root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !n.internal {
				if n.leaf != nil && !yield(n.leaf.key, n.leaf.value) {
					return
				}
				continue
			}
			for i := len(n.kids) - 1; i >= 0; i-- {
				if n.kids[i] != nil {
					stack = append(stack, n.kids[i])
				}
			}
			if n.wild != nil {
				stack = append(stack, n.wild)
			}
		}
	}
}

type query[V any] struct {
	probe     task.State
	fn        func(task.State, V) bool
	wildFirst bool
	deadline  time.Time
	now       func() time.Time
	visited   int
	timedOut  bool
}

// walk returns false once the traversal must stop.
func (q *query[V]) walk(n *trieNode[V], depth int) bool {
	if n == nil {
		return true
	}
	q.visited++
	if !q.deadline.IsZero() && q.visited%deadlineStride == 0 && q.now().After(q.deadline) {
		q.timedOut = true
		return false
	}
	if !n.internal {
		if n.leaf != nil && n.leaf.key.Generalizes(q.probe) {
			if !q.fn(n.leaf.key, n.leaf.value) {
				return false
			}
		}
		return true
	}

	v := q.probe[depth]
	if v == task.Unspecified {
		return q.walk(n.wild, depth+1)
	}
	var concrete *trieNode[V]
	if v >= 0 && v < len(n.kids) {
		concrete = n.kids[v]
	}
	first, second := n.wild, concrete
	if !q.wildFirst {
		first, second = second, first
	}
	return q.walk(first, depth+1) && q.walk(second, depth+1)
}
