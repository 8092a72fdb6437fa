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

// Dary is an array-backed d-ary heap. d=2 is the binary heap and d=3 the
// ternary heap.
//
// Parent of i is (i-1)/d; children are d*i+1 .. d*i+d.
type Dary[T comparable] struct {
	d     int
	items []item[T]
	seq   uint64
}

// NewDary creates a d-ary heap. d below 2 is raised to 2.
func NewDary[T comparable](d int) *Dary[T] {
	if d < 2 {
		d = 2
	}
	return &Dary[T]{d: d}
}

// Insert adds an entry in O(log_d n).
func (h *Dary[T]) Insert(key float64, value T) error {
	if err := checkKey(key); err != nil {
		return err
	}
	h.items = append(h.items, item[T]{key: key, seq: h.seq, value: value})
	h.seq++
	h.siftUp(len(h.items) - 1)
	return nil
}

func (h *Dary[T]) MinKey() float64 {
	mustNotBeEmpty(len(h.items))
	return h.items[0].key
}

func (h *Dary[T]) Min() T {
	mustNotBeEmpty(len(h.items))
	return h.items[0].value
}

// RemoveMin removes the root and sifts the last element down.
func (h *Dary[T]) RemoveMin() T {
	mustNotBeEmpty(len(h.items))
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	var zero item[T]
	h.items[last] = zero
	h.items = h.items[:last]
	if last > 0 {
		h.siftDown(0)
	}
	return top.value
}

func (h *Dary[T]) Remove(T) error {
	return ErrUnsupported
}

func (h *Dary[T]) Change(T, float64) error {
	return ErrUnsupported
}

func (h *Dary[T]) Len() int {
	return len(h.items)
}

func (h *Dary[T]) Clear() {
	h.items = nil
	h.seq = 0
}

func (h *Dary[T]) Elements() ([]Entry[T], error) {
	out := make([]Entry[T], len(h.items))
	for i, it := range h.items {
		out[i] = Entry[T]{Key: it.key, Value: it.value}
	}
	return out, nil
}

func (h *Dary[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / h.d
		if !h.items[i].less(h.items[parent]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *Dary[T]) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		first := h.d*i + 1
		for c := first; c < first+h.d && c < n; c++ {
			if h.items[c].less(h.items[smallest]) {
				smallest = c
			}
		}
		if smallest == i {
			return
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
