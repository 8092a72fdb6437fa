// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pq

import (
	"fmt"
	"math"
	"slices"
)

// maxBucketKey bounds |key| so that floor(key) fits an int64 comfortably.
const maxBucketKey = float64(1 << 62)

// Bucket is a bucket queue over floor(key), hashed modulo the capacity.
//
// Description:
//
//	Invariant: every entry's floor lies in [base, base+capacity), so each
//	bucket holds entries of exactly one floor value, kept sorted by
//	(key, seq). When an insert would widen the spread past the capacity,
//	the array doubles (moving whole buckets) until it fits; growing past
//	the ceiling fails with ErrCapacityExceeded and leaves the queue
//	unchanged.
//
// Thread Safety: Not safe for concurrent use.
type Bucket[T comparable] struct {
	buckets  [][]item[T]
	initial  int
	ceiling  int
	base     int64
	maxFloor int64
	size     int
	seq      uint64
}

// NewBucket creates a bucket queue with the given initial capacity and
// ceiling (both in buckets). Non-positive values take the defaults.
func NewBucket[T comparable](capacity, ceiling int) *Bucket[T] {
	d := DefaultOptions()
	if capacity <= 0 {
		capacity = d.BucketCapacity
	}
	if ceiling <= 0 {
		ceiling = d.BucketCeiling
	}
	if capacity > ceiling {
		capacity = ceiling
	}
	return &Bucket[T]{
		buckets: make([][]item[T], capacity),
		initial: capacity,
		ceiling: ceiling,
	}
}

// Capacity returns the current number of buckets.
func (h *Bucket[T]) Capacity() int {
	return len(h.buckets)
}

// Insert adds an entry, growing the bucket array if needed.
func (h *Bucket[T]) Insert(key float64, value T) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if math.Abs(key) > maxBucketKey {
		return fmt.Errorf("%w: %v outside bucket range", ErrInvalidKey, key)
	}
	f := int64(math.Floor(key))

	lo, hi := f, f
	if h.size > 0 {
		lo, hi = min(h.base, f), max(h.maxFloor, f)
		if hi-lo >= int64(len(h.buckets)) {
			// base and maxFloor are only bounds after removals.
			h.base, h.maxFloor = h.exactFloors()
			lo, hi = min(h.base, f), max(h.maxFloor, f)
		}
		if err := h.ensureSpread(hi - lo + 1); err != nil {
			return err
		}
	}
	h.base, h.maxFloor = lo, hi

	it := item[T]{key: key, seq: h.seq, value: value}
	h.seq++
	idx := h.index(f)
	b := h.buckets[idx]
	pos, _ := slices.BinarySearchFunc(b, it, compareItems[T])
	h.buckets[idx] = slices.Insert(b, pos, it)
	h.size++
	return nil
}

func (h *Bucket[T]) MinKey() float64 {
	return h.front().key
}

func (h *Bucket[T]) Min() T {
	return h.front().value
}

func (h *Bucket[T]) RemoveMin() T {
	it := h.front()
	idx := h.index(h.base)
	b := h.buckets[idx]
	var zero item[T]
	b[0] = zero
	if len(b) == 1 {
		h.buckets[idx] = nil
	} else {
		h.buckets[idx] = b[1:]
	}
	h.size--
	return it.value
}

func (h *Bucket[T]) Remove(T) error {
	return ErrUnsupported
}

func (h *Bucket[T]) Change(T, float64) error {
	return ErrUnsupported
}

func (h *Bucket[T]) Len() int {
	return h.size
}

// Clear empties the queue and shrinks it back to the initial capacity.
func (h *Bucket[T]) Clear() {
	h.buckets = make([][]item[T], h.initial)
	h.base = 0
	h.maxFloor = 0
	h.size = 0
	h.seq = 0
}

func (h *Bucket[T]) Elements() ([]Entry[T], error) {
	out := make([]Entry[T], 0, h.size)
	for _, b := range h.buckets {
		for _, it := range b {
			out = append(out, Entry[T]{Key: it.key, Value: it.value})
		}
	}
	return out, nil
}

func (h *Bucket[T]) index(f int64) int {
	c := int64(len(h.buckets))
	return int(((f % c) + c) % c)
}

// front advances base to the first non-empty bucket and returns its head.
func (h *Bucket[T]) front() item[T] {
	mustNotBeEmpty(h.size)
	for len(h.buckets[h.index(h.base)]) == 0 {
		h.base++
	}
	return h.buckets[h.index(h.base)][0]
}

// exactFloors returns the smallest and largest floors held.
func (h *Bucket[T]) exactFloors() (int64, int64) {
	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	for _, b := range h.buckets {
		if len(b) > 0 {
			f := int64(math.Floor(b[0].key))
			lo, hi = min(lo, f), max(hi, f)
		}
	}
	return lo, hi
}

// ensureSpread doubles the array until spread floors fit.
func (h *Bucket[T]) ensureSpread(spread int64) error {
	c := len(h.buckets)
	for int64(c) < spread {
		if c*2 > h.ceiling {
			return fmt.Errorf("%w: key spread %d exceeds bucket ceiling %d", ErrCapacityExceeded, spread, h.ceiling)
		}
		c *= 2
	}
	if c == len(h.buckets) {
		return nil
	}

	grown := make([][]item[T], c)
	nc := int64(c)
	for _, b := range h.buckets {
		if len(b) == 0 {
			continue
		}
		f := int64(math.Floor(b[0].key))
		grown[((f%nc)+nc)%nc] = b
	}
	h.buckets = grown
	return nil
}

func compareItems[T any](a, b item[T]) int {
	switch {
	case a.less(b):
		return -1
	case b.less(a):
		return 1
	}
	return 0
}
