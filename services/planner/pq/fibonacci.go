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

import "math"

// phi is the golden ratio; the maximum degree after consolidation is
// bounded by log_phi(n).
var phi = (1 + math.Sqrt(5)) / 2

// Fibonacci is a Fibonacci heap with index-based circular sibling rings.
//
// Description:
//
//	Insert adds a singleton tree to the root ring in O(1). RemoveMin
//	promotes the children of the minimum and consolidates the root ring
//	lazily, linking trees of equal degree. The full variant keeps a
//	value index and supports Change and Remove with mark-and-cascading-cut.
//	The lite variant skips the index and marks and reports ErrUnsupported
//	for Change and Remove.
//
// Thread Safety: Not safe for concurrent use.
type Fibonacci[T comparable] struct {
	a       arena[T]
	min     int32
	size    int
	seq     uint64
	lite    bool
	handles handles[T, int32]
}

// NewFibonacci creates a Fibonacci heap supporting Change and Remove.
func NewFibonacci[T comparable]() *Fibonacci[T] {
	return &Fibonacci[T]{min: nilNode, handles: make(handles[T, int32])}
}

// NewFibonacciLite creates a Fibonacci heap without decrease-key support.
func NewFibonacciLite[T comparable]() *Fibonacci[T] {
	return &Fibonacci[T]{min: nilNode, lite: true}
}

func (h *Fibonacci[T]) Insert(key float64, value T) error {
	if err := checkKey(key); err != nil {
		return err
	}
	h.insertItem(item[T]{key: key, seq: h.seq, value: value})
	h.seq++
	return nil
}

func (h *Fibonacci[T]) insertItem(it item[T]) int32 {
	idx := h.a.alloc(it)
	n := h.a.at(idx)
	n.left, n.right = idx, idx
	h.addRoot(idx)
	if !h.lite {
		h.handles.add(it.value, idx)
	}
	h.size++
	return idx
}

func (h *Fibonacci[T]) MinKey() float64 {
	mustNotBeEmpty(h.size)
	return h.a.at(h.min).key
}

func (h *Fibonacci[T]) Min() T {
	mustNotBeEmpty(h.size)
	return h.a.at(h.min).value
}

// RemoveMin promotes the children of the minimum to roots and
// consolidates.
func (h *Fibonacci[T]) RemoveMin() T {
	mustNotBeEmpty(h.size)
	z := h.min
	zn := h.a.at(z)
	value := zn.value

	if c := zn.child; c != nilNode {
		children := h.ring(c)
		for _, x := range children {
			xn := h.a.at(x)
			xn.parent = nilNode
			xn.mark = false
			xn.left, xn.right = x, x
			h.spliceRoot(x)
		}
		h.a.at(z).child = nilNode
	}

	zn = h.a.at(z)
	if zn.right == z {
		h.min = nilNode
	} else {
		h.min = zn.right
		h.unlink(z)
	}

	if !h.lite {
		h.handles.remove(value, z)
	}
	h.a.release(z)
	h.size--
	if h.min != nilNode {
		h.consolidate()
	}
	return value
}

// Remove deletes the newest entry holding value.
func (h *Fibonacci[T]) Remove(value T) error {
	if h.lite {
		return ErrUnsupported
	}
	x, ok := h.handles.latest(value)
	if !ok {
		return ErrNotFound
	}
	h.removeNode(x)
	return nil
}

// Change sets the key of the newest entry holding value. Decreases use
// cut and cascading cut; increases remove and reinsert the entry with
// its original insertion order.
func (h *Fibonacci[T]) Change(value T, newKey float64) error {
	if h.lite {
		return ErrUnsupported
	}
	if err := checkKey(newKey); err != nil {
		return err
	}
	x, ok := h.handles.latest(value)
	if !ok {
		return ErrNotFound
	}
	xn := h.a.at(x)
	switch {
	case newKey < xn.key:
		h.decrease(x, newKey)
	case newKey > xn.key:
		seq := xn.seq
		h.removeNode(x)
		h.insertItem(item[T]{key: newKey, seq: seq, value: value})
	}
	return nil
}

func (h *Fibonacci[T]) Len() int {
	return h.size
}

func (h *Fibonacci[T]) Clear() {
	h.a.reset()
	h.min = nilNode
	h.size = 0
	h.seq = 0
	if !h.lite {
		h.handles = make(handles[T, int32])
	}
}

func (h *Fibonacci[T]) Elements() ([]Entry[T], error) {
	return h.a.entries(), nil
}

// addRoot splices a self-ringed node into the root ring and updates min.
func (h *Fibonacci[T]) addRoot(x int32) {
	if h.min == nilNode {
		h.min = x
		return
	}
	h.spliceRoot(x)
	if h.a.less(x, h.min) {
		h.min = x
	}
}

// spliceRoot inserts x to the right of min without touching min.
func (h *Fibonacci[T]) spliceRoot(x int32) {
	m := h.a.at(h.min)
	r := m.right
	xn := h.a.at(x)
	xn.left, xn.right = h.min, r
	h.a.at(r).left = x
	m.right = x
}

// unlink removes x from whatever ring it is in.
func (h *Fibonacci[T]) unlink(x int32) {
	xn := h.a.at(x)
	h.a.at(xn.left).right = xn.right
	h.a.at(xn.right).left = xn.left
	xn.left, xn.right = x, x
}

// ring lists the members of the ring containing start.
func (h *Fibonacci[T]) ring(start int32) []int32 {
	out := []int32{start}
	for x := h.a.at(start).right; x != start; x = h.a.at(x).right {
		out = append(out, x)
	}
	return out
}

// consolidate links roots of equal degree until all degrees differ, then
// rebuilds the root ring and min.
func (h *Fibonacci[T]) consolidate() {
	maxDegree := int(math.Floor(math.Log(float64(h.size))/math.Log(phi))) + 2
	buckets := make([]int32, maxDegree)
	for i := range buckets {
		buckets[i] = nilNode
	}

	for _, w := range h.ring(h.min) {
		x := w
		d := int(h.a.at(x).rank)
		for d < len(buckets) && buckets[d] != nilNode {
			y := buckets[d]
			if h.a.less(y, x) {
				x, y = y, x
			}
			h.link(y, x)
			buckets[d] = nilNode
			d++
		}
		for d >= len(buckets) {
			buckets = append(buckets, nilNode)
		}
		buckets[d] = x
	}

	h.min = nilNode
	for _, x := range buckets {
		if x == nilNode {
			continue
		}
		xn := h.a.at(x)
		xn.left, xn.right = x, x
		h.addRoot(x)
	}
}

// link makes y a child of x.
func (h *Fibonacci[T]) link(y, x int32) {
	yn := h.a.at(y)
	yn.parent = x
	yn.mark = false
	xn := h.a.at(x)
	if xn.child == nilNode {
		yn.left, yn.right = y, y
		xn.child = y
	} else {
		c := xn.child
		cn := h.a.at(c)
		r := cn.right
		yn.left, yn.right = c, r
		h.a.at(r).left = y
		cn.right = y
	}
	xn.rank++
}

func (h *Fibonacci[T]) decrease(x int32, key float64) {
	h.a.at(x).key = key
	if p := h.a.at(x).parent; p != nilNode && h.a.less(x, p) {
		h.cut(x, p)
		h.cascadingCut(p)
	}
	if h.a.less(x, h.min) {
		h.min = x
	}
}

// cut moves x from the child ring of p to the root ring.
func (h *Fibonacci[T]) cut(x, p int32) {
	pn := h.a.at(p)
	xn := h.a.at(x)
	if xn.right == x {
		pn.child = nilNode
	} else {
		if pn.child == x {
			pn.child = xn.right
		}
		h.unlink(x)
	}
	pn.rank--
	xn = h.a.at(x)
	xn.parent = nilNode
	xn.mark = false
	xn.left, xn.right = x, x
	h.spliceRoot(x)
}

func (h *Fibonacci[T]) cascadingCut(y int32) {
	for {
		yn := h.a.at(y)
		z := yn.parent
		if z == nilNode {
			return
		}
		if !yn.mark {
			yn.mark = true
			return
		}
		h.cut(y, z)
		y = z
	}
}

// removeNode cuts x to the root ring, forces it to be the minimum and
// removes it.
func (h *Fibonacci[T]) removeNode(x int32) {
	if p := h.a.at(x).parent; p != nilNode {
		h.cut(x, p)
		h.cascadingCut(p)
	}
	h.min = x
	h.RemoveMin()
}
