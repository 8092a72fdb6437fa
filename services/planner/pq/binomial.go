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

// Binomial is a binomial heap: a root list of heap-ordered binomial trees
// with strictly increasing order, linked through the right field.
//
// Union works like binary addition: equal-order trees are linked pairwise
// and at most one carried tree exists per order.
type Binomial[T comparable] struct {
	a    arena[T]
	head int32
	size int
	seq  uint64
}

// NewBinomial creates an empty binomial heap.
func NewBinomial[T comparable]() *Binomial[T] {
	return &Binomial[T]{head: nilNode}
}

func (h *Binomial[T]) Insert(key float64, value T) error {
	if err := checkKey(key); err != nil {
		return err
	}
	idx := h.a.alloc(item[T]{key: key, seq: h.seq, value: value})
	h.seq++
	h.head = h.union(h.head, idx)
	h.size++
	return nil
}

func (h *Binomial[T]) MinKey() float64 {
	mustNotBeEmpty(h.size)
	m, _ := h.minRoot()
	return h.a.at(m).key
}

func (h *Binomial[T]) Min() T {
	mustNotBeEmpty(h.size)
	m, _ := h.minRoot()
	return h.a.at(m).value
}

// RemoveMin detaches the minimum root and unions its reversed child list
// back into the root list.
func (h *Binomial[T]) RemoveMin() T {
	mustNotBeEmpty(h.size)
	m, prev := h.minRoot()
	mn := h.a.at(m)
	value := mn.value

	if prev == nilNode {
		h.head = mn.right
	} else {
		h.a.at(prev).right = mn.right
	}

	// Children are stored highest order first.
	rev := nilNode
	for c := mn.child; c != nilNode; {
		cn := h.a.at(c)
		next := cn.right
		cn.parent = nilNode
		cn.right = rev
		rev = c
		c = next
	}

	h.a.release(m)
	h.head = h.union(h.head, rev)
	h.size--
	return value
}

func (h *Binomial[T]) Remove(T) error {
	return ErrUnsupported
}

func (h *Binomial[T]) Change(T, float64) error {
	return ErrUnsupported
}

func (h *Binomial[T]) Len() int {
	return h.size
}

func (h *Binomial[T]) Clear() {
	h.a.reset()
	h.head = nilNode
	h.size = 0
	h.seq = 0
}

func (h *Binomial[T]) Elements() ([]Entry[T], error) {
	return h.a.entries(), nil
}

// minRoot scans the root list and returns the minimum and its predecessor.
func (h *Binomial[T]) minRoot() (int32, int32) {
	best, bestPrev := h.head, nilNode
	prev := h.head
	for x := h.a.at(h.head).right; x != nilNode; x = h.a.at(x).right {
		if h.a.less(x, best) {
			best, bestPrev = x, prev
		}
		prev = x
	}
	return best, bestPrev
}

// link makes child the first child of parent. Both have equal order.
func (h *Binomial[T]) link(child, parent int32) {
	c, p := h.a.at(child), h.a.at(parent)
	c.parent = parent
	c.right = p.child
	p.child = child
	p.rank++
}

// mergeLists interleaves two root lists by ascending order.
func (h *Binomial[T]) mergeLists(x, y int32) int32 {
	head, tail := nilNode, nilNode
	appendRoot := func(idx int32) {
		if tail == nilNode {
			head = idx
		} else {
			h.a.at(tail).right = idx
		}
		tail = idx
	}
	for x != nilNode && y != nilNode {
		if h.a.at(x).rank <= h.a.at(y).rank {
			next := h.a.at(x).right
			appendRoot(x)
			x = next
		} else {
			next := h.a.at(y).right
			appendRoot(y)
			y = next
		}
	}
	rest := x
	if rest == nilNode {
		rest = y
	}
	if tail == nilNode {
		return rest
	}
	h.a.at(tail).right = rest
	return head
}

// union merges two root lists and combines equal orders.
func (h *Binomial[T]) union(x, y int32) int32 {
	head := h.mergeLists(x, y)
	if head == nilNode {
		return nilNode
	}
	prev, cur := nilNode, head
	next := h.a.at(cur).right
	for next != nilNode {
		cn, nn := h.a.at(cur), h.a.at(next)
		switch {
		case cn.rank != nn.rank || (nn.right != nilNode && h.a.at(nn.right).rank == cn.rank):
			prev, cur = cur, next
		case !h.a.less(next, cur):
			cn.right = nn.right
			h.link(next, cur)
		default:
			if prev == nilNode {
				head = next
			} else {
				h.a.at(prev).right = next
			}
			h.link(cur, next)
			cur = next
		}
		next = h.a.at(cur).right
	}
	return head
}
