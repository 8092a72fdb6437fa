// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
)

// Kind names the result stored under a session.
type Kind string

const (
	KindSolution    Kind = "solution"
	KindEnumeration Kind = "enumeration"
	KindSamples     Kind = "samples"
)

// SessionMeta summarizes a stored session.
type SessionMeta struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	Task      string        `json:"task"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Expanded  int64         `json:"expanded"`

	// Count is the number of plan steps, table entries or samples.
	Count int `json:"count"`

	// Source is the sample source for KindSamples sessions.
	Source string `json:"source,omitempty"`

	// Parent is the enumeration session a sample stream was drawn from.
	Parent string `json:"parent,omitempty"`
}

// Key layout:
//
//	meta/<id>             SessionMeta
//	body/<id>             solution, or enumeration header without entries
//	entry/<id>/<seq>      one search.Entry
//	sample/<id>/<seq>     one search.Sample
const (
	prefixMeta   = "meta/"
	prefixBody   = "body/"
	prefixEntry  = "entry/"
	prefixSample = "sample/"
)

func metaKey(id string) []byte { return []byte(prefixMeta + id) }
func bodyKey(id string) []byte { return []byte(prefixBody + id) }

func itemPrefix(prefix, id string) []byte { return []byte(prefix + id + "/") }

func itemKey(prefix, id string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", prefix, id, seq))
}

// ResultStore persists search outputs keyed by session ID.
//
// Description:
//
//	Small records (metadata, plans, enumeration headers) are written in a
//	single transaction. Tables and sample streams can be large, so their
//	items go through a badger.WriteBatch and the metadata is written last:
//	a session is visible only once every item is stored.
//
// Thread Safety: Safe for concurrent use.
type ResultStore struct {
	db  *DB
	ttl time.Duration
	now func() time.Time
}

// NewResultStore creates a store over db using db's ResultTTL.
func NewResultStore(db *DB) (*ResultStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	return &ResultStore{db: db, ttl: db.Config().ResultTTL, now: time.Now}, nil
}

func (s *ResultStore) entry(key, value []byte) *badger.Entry {
	e := badger.NewEntry(key, value)
	if s.ttl > 0 {
		e = e.WithTTL(s.ttl)
	}
	return e
}

func (s *ResultStore) putJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.SetEntry(s.entry(key, data))
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// writeItems stores items under prefix/id through a WriteBatch.
func writeItems[T any](s *ResultStore, prefix, id string, items []T) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("marshal item %d: %w", i, err)
		}
		if err := wb.SetEntry(s.entry(itemKey(prefix, id, i), data)); err != nil {
			return fmt.Errorf("write item %d: %w", i, err)
		}
	}
	return wb.Flush()
}

// readItems decodes every item under prefix/id in key order.
func readItems[T any](txn *badger.Txn, prefix, id string) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = itemPrefix(prefix, id)
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []T
	for it.Rewind(); it.Valid(); it.Next() {
		var v T
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// SaveSolution stores a forward search result.
func (s *ResultStore) SaveSolution(ctx context.Context, res *search.Result) error {
	if res == nil || res.SessionID == "" {
		return errors.New("result with a session ID is required")
	}
	meta := SessionMeta{
		ID:        res.SessionID,
		Kind:      KindSolution,
		Task:      res.Task,
		Status:    string(res.Status),
		CreatedAt: s.now().UTC(),
		Elapsed:   res.Elapsed,
		Expanded:  res.Expanded,
		Count:     len(res.Plan),
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := s.putJSON(txn, bodyKey(res.SessionID), res); err != nil {
			return err
		}
		return s.putJSON(txn, metaKey(res.SessionID), meta)
	})
}

// LoadSolution loads a forward search result.
func (s *ResultStore) LoadSolution(ctx context.Context, id string) (*search.Result, error) {
	var res search.Result
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		if _, err := s.metaOfKind(txn, id, KindSolution); err != nil {
			return err
		}
		return getJSON(txn, bodyKey(id), &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SaveEnumeration stores an enumeration result and its table.
func (s *ResultStore) SaveEnumeration(ctx context.Context, res *search.EnumerationResult) error {
	if res == nil || res.SessionID == "" {
		return errors.New("enumeration with a session ID is required")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if err := writeItems(s, prefixEntry, res.SessionID, res.Entries); err != nil {
		return fmt.Errorf("save entries: %w", err)
	}

	header := *res
	header.Entries = nil
	meta := SessionMeta{
		ID:        res.SessionID,
		Kind:      KindEnumeration,
		Task:      res.Task,
		Status:    string(res.Status),
		CreatedAt: s.now().UTC(),
		Elapsed:   res.Elapsed,
		Expanded:  res.Expanded,
		Count:     len(res.Entries),
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := s.putJSON(txn, bodyKey(res.SessionID), header); err != nil {
			return err
		}
		return s.putJSON(txn, metaKey(res.SessionID), meta)
	})
}

// LoadEnumeration loads an enumeration result with its table.
//
// The returned result has no index; call Rebuild with the task before
// running lookups or sampling on it.
func (s *ResultStore) LoadEnumeration(ctx context.Context, id string) (*search.EnumerationResult, error) {
	var res search.EnumerationResult
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		if _, err := s.metaOfKind(txn, id, KindEnumeration); err != nil {
			return err
		}
		if err := getJSON(txn, bodyKey(id), &res); err != nil {
			return err
		}
		entries, err := readItems[search.Entry](txn, prefixEntry, id)
		if err != nil {
			return err
		}
		res.Entries = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SaveSamples stores a sample stream under sessionID.
//
// Inputs:
//   - sessionID: Identifier of the stream.
//   - taskName: Task the samples belong to.
//   - source: Sample source, e.g. search.SourceGoalWalk.
//   - parent: Enumeration session the samples were drawn from, if any.
//   - samples: The samples, stored in order.
func (s *ResultStore) SaveSamples(ctx context.Context, sessionID, taskName, source, parent string, samples []search.Sample) error {
	if sessionID == "" {
		return errors.New("session ID is required")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if err := writeItems(s, prefixSample, sessionID, samples); err != nil {
		return fmt.Errorf("save samples: %w", err)
	}
	meta := SessionMeta{
		ID:        sessionID,
		Kind:      KindSamples,
		Task:      taskName,
		Status:    string(search.StatusSolutionFound),
		CreatedAt: s.now().UTC(),
		Count:     len(samples),
		Source:    source,
		Parent:    parent,
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return s.putJSON(txn, metaKey(sessionID), meta)
	})
}

// LoadSamples loads a stored sample stream in its original order.
func (s *ResultStore) LoadSamples(ctx context.Context, id string) ([]search.Sample, error) {
	var out []search.Sample
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		if _, err := s.metaOfKind(txn, id, KindSamples); err != nil {
			return err
		}
		var err error
		out, err = readItems[search.Sample](txn, prefixSample, id)
		return err
	})
	return out, err
}

// Meta returns the metadata of a stored session.
func (s *ResultStore) Meta(ctx context.Context, id string) (SessionMeta, error) {
	var meta SessionMeta
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		meta, err = s.metaOfKind(txn, id, "")
		return err
	})
	return meta, err
}

// List returns stored sessions, newest first, at most limit of them
// (limit <= 0 returns all).
func (s *ResultStore) List(ctx context.Context, limit int) ([]SessionMeta, error) {
	var out []SessionMeta
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixMeta)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var m SessionMeta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a session and everything stored under it.
func (s *ResultStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Meta(ctx, id); err != nil {
		return err
	}
	if err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Delete(metaKey(id)); err != nil {
			return err
		}
		return txn.Delete(bodyKey(id))
	}); err != nil {
		return err
	}
	return s.deleteItems(ctx, itemPrefix(prefixEntry, id), itemPrefix(prefixSample, id))
}

// deleteItems removes every key under the given prefixes.
func (s *ResultStore) deleteItems(ctx context.Context, prefixes ...[]byte) error {
	var keys [][]byte
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		for _, p := range prefixes {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = p
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return wb.Flush()
}

// metaOfKind loads metadata and checks its kind; an empty want accepts any.
func (s *ResultStore) metaOfKind(txn *badger.Txn, id string, want Kind) (SessionMeta, error) {
	var meta SessionMeta
	if err := getJSON(txn, metaKey(id), &meta); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return meta, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return meta, err
	}
	if want != "" && meta.Kind != want {
		return meta, fmt.Errorf("%w: %s is %s, not %s", ErrKindMismatch, id, meta.Kind, want)
	}
	return meta, nil
}
