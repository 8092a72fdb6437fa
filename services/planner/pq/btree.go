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
	"github.com/google/btree"
)

// BTree is an ordered set of (key, seq, value) entries in an in-memory
// B-tree.
type BTree[T comparable] struct {
	tree    *btree.BTreeG[item[T]]
	handles handles[T, item[T]]
	seq     uint64
}

// NewBTree creates an empty B-tree queue. degree below 2 takes the
// default.
func NewBTree[T comparable](degree int) *BTree[T] {
	if degree < 2 {
		degree = DefaultOptions().BTreeDegree
	}
	return &BTree[T]{
		tree:    btree.NewG[item[T]](degree, item[T].less),
		handles: make(handles[T, item[T]]),
	}
}

func (q *BTree[T]) Insert(key float64, value T) error {
	if err := checkKey(key); err != nil {
		return err
	}
	it := item[T]{key: key, seq: q.seq, value: value}
	q.seq++
	q.tree.ReplaceOrInsert(it)
	q.handles.add(value, it)
	return nil
}

func (q *BTree[T]) first() item[T] {
	it, ok := q.tree.Min()
	if !ok {
		panic(ErrEmpty)
	}
	return it
}

func (q *BTree[T]) MinKey() float64 {
	return q.first().key
}

func (q *BTree[T]) Min() T {
	return q.first().value
}

func (q *BTree[T]) RemoveMin() T {
	it, ok := q.tree.DeleteMin()
	if !ok {
		panic(ErrEmpty)
	}
	q.handles.remove(it.value, it)
	return it.value
}

func (q *BTree[T]) Remove(value T) error {
	it, ok := q.handles.latest(value)
	if !ok {
		return ErrNotFound
	}
	q.tree.Delete(it)
	q.handles.remove(value, it)
	return nil
}

func (q *BTree[T]) Change(value T, newKey float64) error {
	if err := checkKey(newKey); err != nil {
		return err
	}
	old, ok := q.handles.latest(value)
	if !ok {
		return ErrNotFound
	}
	q.tree.Delete(old)
	it := item[T]{key: newKey, seq: old.seq, value: value}
	q.tree.ReplaceOrInsert(it)
	q.handles.replace(value, old, it)
	return nil
}

func (q *BTree[T]) Len() int {
	return q.tree.Len()
}

func (q *BTree[T]) Clear() {
	q.tree.Clear(false)
	q.handles = make(handles[T, item[T]])
	q.seq = 0
}

func (q *BTree[T]) Elements() ([]Entry[T], error) {
	out := make([]Entry[T], 0, q.tree.Len())
	q.tree.Ascend(func(it item[T]) bool {
		out = append(out, Entry[T]{Key: it.key, Value: it.value})
		return true
	})
	return out, nil
}
