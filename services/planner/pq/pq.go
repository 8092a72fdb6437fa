// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pq provides interchangeable min-priority queues.
//
// Description:
//
//	Every implementation satisfies Queue and is selected at construction
//	time by Kind. Keys are float64 and ordered ascending; equal keys are
//	dequeued in insertion order using a per-queue sequence counter.
//
//	Queues are not safe for concurrent use. A search session owns its
//	queue exclusively.
package pq

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

var (
	// ErrEmpty is the panic value of Min, MinKey and RemoveMin on an
	// empty queue.
	ErrEmpty = errors.New("priority queue is empty")

	// ErrUnsupported is returned by operations an implementation cannot
	// perform efficiently.
	ErrUnsupported = errors.New("operation not supported by this queue")

	// ErrNotFound is returned by Remove and Change for an absent value.
	ErrNotFound = errors.New("value not in queue")

	// ErrCapacityExceeded is returned when a bounded queue cannot grow.
	ErrCapacityExceeded = errors.New("priority queue capacity exceeded")

	// ErrInvalidKey is returned for NaN keys and, where noted, other keys
	// an implementation cannot order.
	ErrInvalidKey = errors.New("invalid priority key")

	// ErrNonMonotoneKey is returned by the radix heap for keys below the
	// last removed minimum.
	ErrNonMonotoneKey = errors.New("key below last removed minimum")

	// ErrUnknownKind is returned by ParseKind and New.
	ErrUnknownKind = errors.New("unknown priority queue kind")
)

// Entry is a (key, value) pair held by a queue.
type Entry[T any] struct {
	Key   float64 `json:"key"`
	Value T       `json:"value"`
}

// Queue is a min-priority queue keyed by float64.
//
// Ordering is by key ascending, ties by insertion order. A value may be
// inserted more than once; each insertion is a separate entry.
type Queue[T comparable] interface {
	// Insert adds an entry.
	Insert(key float64, value T) error

	// MinKey returns the smallest key. Panics with ErrEmpty when empty.
	MinKey() float64

	// Min returns the value with the smallest key. Panics with ErrEmpty
	// when empty.
	Min() T

	// RemoveMin removes and returns the value with the smallest key.
	// Panics with ErrEmpty when empty.
	RemoveMin() T

	// Remove deletes the most recently inserted entry holding value.
	Remove(value T) error

	// Change sets the key of the most recently inserted entry holding
	// value.
	Change(value T, newKey float64) error

	// Len returns the number of entries.
	Len() int

	// Clear removes all entries and resets the queue to its initial state.
	Clear()

	// Elements returns every entry in unspecified order.
	Elements() ([]Entry[T], error)
}

// Kind names a queue implementation.
type Kind string

const (
	KindBinary        Kind = "binary"
	KindTernary       Kind = "ternary"
	KindLeftist       Kind = "leftist"
	KindBinomial      Kind = "binomial"
	KindFibonacci     Kind = "fibonacci"
	KindFibonacciLite Kind = "fibonacci-lite"
	KindRadix         Kind = "radix"
	KindBucket        Kind = "bucket"
	KindTreeSet       Kind = "treeset"
	KindBTree         Kind = "btree"
)

var allKinds = []Kind{
	KindBinary,
	KindTernary,
	KindLeftist,
	KindBinomial,
	KindFibonacci,
	KindFibonacciLite,
	KindRadix,
	KindBucket,
	KindTreeSet,
	KindBTree,
}

// Kinds returns every available implementation.
func Kinds() []Kind {
	return slices.Clone(allKinds)
}

// ParseKind resolves a case-insensitive kind name.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if slices.Contains(allKinds, k) {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// SupportsUpdate reports whether the kind implements Remove and Change.
func (k Kind) SupportsUpdate() bool {
	switch k {
	case KindFibonacci, KindTreeSet, KindBTree:
		return true
	}
	return false
}

// Options tunes implementations that take parameters.
type Options struct {
	// BucketCapacity is the initial bucket count of the bucket heap.
	BucketCapacity int `json:"bucket_capacity" yaml:"bucket_capacity" validate:"gte=0"`

	// BucketCeiling is the bucket count past which the bucket heap fails
	// with ErrCapacityExceeded.
	BucketCeiling int `json:"bucket_ceiling" yaml:"bucket_ceiling" validate:"gte=0"`

	// BTreeDegree is the degree of the btree queue.
	BTreeDegree int `json:"btree_degree" yaml:"btree_degree" validate:"gte=0"`
}

// DefaultOptions returns the defaults used by New.
func DefaultOptions() Options {
	return Options{
		BucketCapacity: 64,
		BucketCeiling:  1 << 22,
		BTreeDegree:    32,
	}
}

// Option modifies Options.
type Option func(*Options)

// WithBucketCapacity sets the initial bucket count.
func WithBucketCapacity(n int) Option {
	return func(o *Options) { o.BucketCapacity = n }
}

// WithBucketCeiling sets the maximum bucket count.
func WithBucketCeiling(n int) Option {
	return func(o *Options) { o.BucketCeiling = n }
}

// WithBTreeDegree sets the btree degree.
func WithBTreeDegree(n int) Option {
	return func(o *Options) { o.BTreeDegree = n }
}

// WithOptions copies the non-zero fields of o.
func WithOptions(o Options) Option {
	return func(dst *Options) {
		if o.BucketCapacity > 0 {
			dst.BucketCapacity = o.BucketCapacity
		}
		if o.BucketCeiling > 0 {
			dst.BucketCeiling = o.BucketCeiling
		}
		if o.BTreeDegree > 0 {
			dst.BTreeDegree = o.BTreeDegree
		}
	}
}

// New constructs a queue of the given kind.
//
// Inputs:
//   - kind: The implementation to build.
//   - opts: Optional tuning.
//
// Outputs:
//   - Queue[T]: An empty queue.
//   - error: ErrUnknownKind for an unrecognised kind.
func New[T comparable](kind Kind, opts ...Option) (Queue[T], error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	switch kind {
	case KindBinary:
		return NewDary[T](2), nil
	case KindTernary:
		return NewDary[T](3), nil
	case KindLeftist:
		return NewLeftist[T](), nil
	case KindBinomial:
		return NewBinomial[T](), nil
	case KindFibonacci:
		return NewFibonacci[T](), nil
	case KindFibonacciLite:
		return NewFibonacciLite[T](), nil
	case KindRadix:
		return NewRadix[T](), nil
	case KindBucket:
		return NewBucket[T](o.BucketCapacity, o.BucketCeiling), nil
	case KindTreeSet:
		return NewTreeSet[T](), nil
	case KindBTree:
		return NewBTree[T](o.BTreeDegree), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// item is the ordered record shared by the implementations.
type item[T any] struct {
	key   float64
	seq   uint64
	value T
}

func (a item[T]) less(b item[T]) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.seq < b.seq
}

func checkKey(key float64) error {
	if math.IsNaN(key) {
		return fmt.Errorf("%w: NaN", ErrInvalidKey)
	}
	return nil
}

func mustNotBeEmpty(n int) {
	if n == 0 {
		panic(ErrEmpty)
	}
}

// handles tracks the entry ids holding each value, newest last.
type handles[T comparable, ID comparable] map[T][]ID

func (h handles[T, ID]) add(v T, id ID) {
	h[v] = append(h[v], id)
}

// latest returns the newest id for v.
func (h handles[T, ID]) latest(v T) (ID, bool) {
	ids := h[v]
	if len(ids) == 0 {
		var zero ID
		return zero, false
	}
	return ids[len(ids)-1], true
}

func (h handles[T, ID]) remove(v T, id ID) {
	ids := h[v]
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(h, v)
		return
	}
	h[v] = ids
}

func (h handles[T, ID]) replace(v T, old, id ID) {
	ids := h[v]
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == old {
			ids[i] = id
			return
		}
	}
}
