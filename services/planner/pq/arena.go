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

// nilNode marks an absent link.
const nilNode int32 = -1

// node is a tree node of the mergeable heaps.
//
// The link fields are interpreted per heap:
//
//	leftist:   left/right are the two children, rank is the null-path length
//	binomial:  child is the first child, right the next sibling, rank the order
//	fibonacci: child is any child, left/right form the sibling ring,
//	           rank is the degree
type node[T any] struct {
	item[T]
	parent int32
	child  int32
	left   int32
	right  int32
	rank   int32
	mark   bool
	live   bool
}

// arena stores nodes addressed by index with a free list.
type arena[T any] struct {
	nodes []node[T]
	free  []int32
}

func (a *arena[T]) alloc(it item[T]) int32 {
	n := node[T]{
		item:   it,
		parent: nilNode,
		child:  nilNode,
		left:   nilNode,
		right:  nilNode,
		live:   true,
	}
	if k := len(a.free); k > 0 {
		idx := a.free[k-1]
		a.free = a.free[:k-1]
		a.nodes[idx] = n
		return idx
	}
	a.nodes = append(a.nodes, n)
	return int32(len(a.nodes) - 1)
}

func (a *arena[T]) release(idx int32) {
	var zero node[T]
	a.nodes[idx] = zero
	a.free = append(a.free, idx)
}

func (a *arena[T]) at(idx int32) *node[T] {
	return &a.nodes[idx]
}

func (a *arena[T]) less(x, y int32) bool {
	return a.nodes[x].less(a.nodes[y].item)
}

func (a *arena[T]) reset() {
	a.nodes = nil
	a.free = nil
}

// entries returns every live node as an Entry.
func (a *arena[T]) entries() []Entry[T] {
	out := make([]Entry[T], 0, len(a.nodes)-len(a.free))
	for i := range a.nodes {
		if a.nodes[i].live {
			out = append(out, Entry[T]{Key: a.nodes[i].key, Value: a.nodes[i].value})
		}
	}
	return out
}
