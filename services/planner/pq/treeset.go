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
	"github.com/emirpasic/gods/trees/redblacktree"
)

// TreeSet is an ordered set of (key, seq, value) entries in a red-black
// tree. The sequence number makes every entry distinct, so the tree never
// collapses equal keys.
type TreeSet[T comparable] struct {
	tree    *redblacktree.Tree
	handles handles[T, item[T]]
	seq     uint64
}

// NewTreeSet creates an empty red-black tree queue.
func NewTreeSet[T comparable]() *TreeSet[T] {
	return &TreeSet[T]{
		tree:    redblacktree.NewWith(treeComparator[T]),
		handles: make(handles[T, item[T]]),
	}
}

func treeComparator[T comparable](a, b interface{}) int {
	return compareItems(a.(item[T]), b.(item[T]))
}

func (q *TreeSet[T]) Insert(key float64, value T) error {
	if err := checkKey(key); err != nil {
		return err
	}
	it := item[T]{key: key, seq: q.seq, value: value}
	q.seq++
	q.tree.Put(it, nil)
	q.handles.add(value, it)
	return nil
}

func (q *TreeSet[T]) first() item[T] {
	mustNotBeEmpty(q.tree.Size())
	return q.tree.Left().Key.(item[T])
}

func (q *TreeSet[T]) MinKey() float64 {
	return q.first().key
}

func (q *TreeSet[T]) Min() T {
	return q.first().value
}

func (q *TreeSet[T]) RemoveMin() T {
	it := q.first()
	q.tree.Remove(it)
	q.handles.remove(it.value, it)
	return it.value
}

func (q *TreeSet[T]) Remove(value T) error {
	it, ok := q.handles.latest(value)
	if !ok {
		return ErrNotFound
	}
	q.tree.Remove(it)
	q.handles.remove(value, it)
	return nil
}

// Change re-keys the entry in place of its old position; its sequence
// number is kept.
func (q *TreeSet[T]) Change(value T, newKey float64) error {
	if err := checkKey(newKey); err != nil {
		return err
	}
	old, ok := q.handles.latest(value)
	if !ok {
		return ErrNotFound
	}
	q.tree.Remove(old)
	it := item[T]{key: newKey, seq: old.seq, value: value}
	q.tree.Put(it, nil)
	q.handles.replace(value, old, it)
	return nil
}

func (q *TreeSet[T]) Len() int {
	return q.tree.Size()
}

func (q *TreeSet[T]) Clear() {
	q.tree.Clear()
	q.handles = make(handles[T, item[T]])
	q.seq = 0
}

func (q *TreeSet[T]) Elements() ([]Entry[T], error) {
	out := make([]Entry[T], 0, q.tree.Size())
	it := q.tree.Iterator()
	for it.Next() {
		e := it.Key().(item[T])
		out = append(out, Entry[T]{Key: e.key, Value: e.value})
	}
	return out, nil
}
