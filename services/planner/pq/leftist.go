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

// Leftist is a leftist heap. Insert merges a singleton; RemoveMin merges
// the two subtrees of the root. Both are O(log n).
//
// Invariant: rank(left) >= rank(right) at every node, where rank is the
// length of the right spine.
type Leftist[T comparable] struct {
	a    arena[T]
	root int32
	size int
	seq  uint64
}

// NewLeftist creates an empty leftist heap.
func NewLeftist[T comparable]() *Leftist[T] {
	return &Leftist[T]{root: nilNode}
}

func (h *Leftist[T]) Insert(key float64, value T) error {
	if err := checkKey(key); err != nil {
		return err
	}
	idx := h.a.alloc(item[T]{key: key, seq: h.seq, value: value})
	h.a.at(idx).rank = 1
	h.seq++
	h.root = h.merge(h.root, idx)
	h.size++
	return nil
}

func (h *Leftist[T]) MinKey() float64 {
	mustNotBeEmpty(h.size)
	return h.a.at(h.root).key
}

func (h *Leftist[T]) Min() T {
	mustNotBeEmpty(h.size)
	return h.a.at(h.root).value
}

func (h *Leftist[T]) RemoveMin() T {
	mustNotBeEmpty(h.size)
	r := h.a.at(h.root)
	value := r.value
	old := h.root
	h.root = h.merge(r.left, r.right)
	h.a.release(old)
	h.size--
	return value
}

func (h *Leftist[T]) Remove(T) error {
	return ErrUnsupported
}

func (h *Leftist[T]) Change(T, float64) error {
	return ErrUnsupported
}

func (h *Leftist[T]) Len() int {
	return h.size
}

func (h *Leftist[T]) Clear() {
	h.a.reset()
	h.root = nilNode
	h.size = 0
	h.seq = 0
}

func (h *Leftist[T]) Elements() ([]Entry[T], error) {
	return h.a.entries(), nil
}

func (h *Leftist[T]) rank(idx int32) int32 {
	if idx == nilNode {
		return 0
	}
	return h.a.at(idx).rank
}

// merge melds two heaps along their right spines.
func (h *Leftist[T]) merge(x, y int32) int32 {
	if x == nilNode {
		return y
	}
	if y == nilNode {
		return x
	}
	if h.a.less(y, x) {
		x, y = y, x
	}
	right := h.merge(h.a.at(x).right, y)
	n := h.a.at(x)
	n.right = right
	if h.rank(n.left) < h.rank(n.right) {
		n.left, n.right = n.right, n.left
	}
	n.rank = h.rank(n.right) + 1
	return x
}
