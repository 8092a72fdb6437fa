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
	"math/bits"
	"slices"
)

// Radix is a monotone radix heap.
//
// Description:
//
//	Keys must be non-negative and no key may be inserted below the last
//	removed minimum. For non-negative floats the IEEE-754 bit pattern is
//	ordered like the value, so bucket i holds the entries whose bit
//	pattern first differs from the last removed key at bit i-1. When
//	bucket 0 runs dry, the first non-empty bucket is redistributed around
//	its minimum, which moves every entry to a strictly lower bucket.
//
// Thread Safety: Not safe for concurrent use.
type Radix[T comparable] struct {
	buckets [65][]item[T]
	size    int
	seq     uint64
	last    uint64
}

// NewRadix creates an empty radix heap.
func NewRadix[T comparable]() *Radix[T] {
	return &Radix[T]{}
}

// Insert adds an entry. Returns ErrInvalidKey for negative or NaN keys and
// ErrNonMonotoneKey for keys below the last removed minimum.
func (h *Radix[T]) Insert(key float64, value T) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if key < 0 {
		return fmt.Errorf("%w: negative key %v", ErrInvalidKey, key)
	}
	if key == 0 {
		key = 0 // fold -0
	}
	kb := math.Float64bits(key)
	if kb < h.last {
		return fmt.Errorf("%w: %v < %v", ErrNonMonotoneKey, key, math.Float64frombits(h.last))
	}
	it := item[T]{key: key, seq: h.seq, value: value}
	h.seq++
	b := h.bucketOf(kb)
	h.buckets[b] = append(h.buckets[b], it)
	h.size++
	return nil
}

func (h *Radix[T]) MinKey() float64 {
	return h.peek().key
}

func (h *Radix[T]) Min() T {
	return h.peek().value
}

// RemoveMin pops the front of bucket 0, refilling it first if needed.
func (h *Radix[T]) RemoveMin() T {
	mustNotBeEmpty(h.size)
	if len(h.buckets[0]) == 0 {
		h.redistribute()
	}
	b0 := h.buckets[0]
	top := b0[0]
	var zero item[T]
	b0[0] = zero
	h.buckets[0] = b0[1:]
	if len(h.buckets[0]) == 0 {
		h.buckets[0] = nil
	}
	h.size--
	return top.value
}

func (h *Radix[T]) Remove(T) error {
	return ErrUnsupported
}

func (h *Radix[T]) Change(T, float64) error {
	return ErrUnsupported
}

func (h *Radix[T]) Len() int {
	return h.size
}

func (h *Radix[T]) Clear() {
	for i := range h.buckets {
		h.buckets[i] = nil
	}
	h.size = 0
	h.seq = 0
	h.last = 0
}

func (h *Radix[T]) Elements() ([]Entry[T], error) {
	out := make([]Entry[T], 0, h.size)
	for _, b := range h.buckets {
		for _, it := range b {
			out = append(out, Entry[T]{Key: it.key, Value: it.value})
		}
	}
	return out, nil
}

func (h *Radix[T]) bucketOf(kb uint64) int {
	return bits.Len64(kb ^ h.last)
}

// peek returns the minimum without moving entries between buckets, so
// that peeking never raises the monotonicity floor.
func (h *Radix[T]) peek() item[T] {
	mustNotBeEmpty(h.size)
	if len(h.buckets[0]) > 0 {
		return h.buckets[0][0]
	}
	b := h.firstNonEmpty()
	return minItem(h.buckets[b])
}

func (h *Radix[T]) firstNonEmpty() int {
	for i := 1; i < len(h.buckets); i++ {
		if len(h.buckets[i]) > 0 {
			return i
		}
	}
	panic(ErrEmpty)
}

// redistribute moves the first non-empty bucket down around its minimum.
// Entries landing in bucket 0 all share the new minimum key and are
// ordered by sequence number.
func (h *Radix[T]) redistribute() {
	b := h.firstNonEmpty()
	items := h.buckets[b]
	h.buckets[b] = nil
	h.last = math.Float64bits(minItem(items).key)
	for _, it := range items {
		nb := h.bucketOf(math.Float64bits(it.key))
		h.buckets[nb] = append(h.buckets[nb], it)
	}
	slices.SortFunc(h.buckets[0], func(a, b item[T]) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
}

func minItem[T any](items []item[T]) item[T] {
	best := items[0]
	for _, it := range items[1:] {
		if it.less(best) {
			best = it
		}
	}
	return best
}
