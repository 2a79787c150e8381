/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package storage

import (
	"context"

	"github.com/Vinod798751/anoma/kvdb"
	"github.com/Vinod798751/anoma/noun"
	"github.com/Vinod798751/anoma/utils/log"
)

// Entry is one (key, value) pair of a keyspace read. Keys are denamespaced.
type Entry struct {
	Key  noun.Noun
	Term noun.Noun
}

// Get returns the current value of key: the qualified row at the key's
// latest version, or Absent when the key was never written or its latest
// version is a tombstone. Reads that fail transactionally also return
// Absent.
func (s *Storage) Get(ctx context.Context, key noun.Noun) (Value, error) {
	var v Value
	nskey, nskeyBytes := s.nskey(key)
	err := s.mgr.Transaction(ctx, func(ctx context.Context, tx kvdb.Tx) error {
		version, ok, err := s.readOrderTx(tx, nskeyBytes)
		if err != nil || !ok {
			return err
		}
		v, err = s.readQualifiedCached(tx, qualifiedKey(version, nskey))
		return err
	})
	if err != nil {
		log.WithFields(s.logFields()).WithError(err).Debug("get failed, returning absent")
		return Absent, err
	}
	return v, nil
}

// ReadOrder returns the latest version of key, with ok false when the key
// has no order row.
func (s *Storage) ReadOrder(ctx context.Context, key noun.Noun) (version uint64, ok bool, err error) {
	_, nskeyBytes := s.nskey(key)
	err = s.mgr.Transaction(ctx, func(ctx context.Context, tx kvdb.Tx) (terr error) {
		version, ok, terr = s.readOrderTx(tx, nskeyBytes)
		return
	})
	return
}

// ReadAtOrder returns the value stored at an explicit version of key,
// regardless of the key's current version. Qualified rows are immutable
// once written, so results for existing rows (tombstones included) are
// served from and stored into the row cache.
func (s *Storage) ReadAtOrder(ctx context.Context, key noun.Noun, version uint64) (Value, error) {
	nskey, _ := s.nskey(key)
	qkeyBytes := qualifiedKey(version, nskey)
	if cached, ok := s.cache.Get(string(qkeyBytes)); ok {
		return cached.(Value), nil
	}
	var v Value
	err := s.mgr.Transaction(ctx, func(ctx context.Context, tx kvdb.Tx) (terr error) {
		v, terr = s.readQualifiedCached(tx, qkeyBytes)
		return
	})
	if err != nil {
		return Absent, err
	}
	return v, nil
}

// readQualifiedCached reads a qualified row through the immutable-row cache.
// Only rows that exist are cached: a missing row may appear later at that
// same coordinate.
func (s *Storage) readQualifiedCached(tx kvdb.Tx, qkeyBytes []byte) (Value, error) {
	ck := string(qkeyBytes)
	if cached, ok := s.cache.Get(ck); ok {
		return cached.(Value), nil
	}
	v, ok, err := s.readQualifiedTx(tx, qkeyBytes)
	if err != nil {
		return Absent, err
	}
	if !ok {
		return Absent, nil
	}
	s.cache.Add(ck, v)
	return v, nil
}

// GetKeyspace returns the current values of every key whose namespaced form
// begins element-wise with the namespace followed by prefix. The result is
// all-or-nothing: when any matched key reads Absent (missing or tombstoned),
// the whole call returns ok false, since a partially absent working set
// signals an inconsistency the caller is not prepared to handle.
func (s *Storage) GetKeyspace(ctx context.Context, prefix []noun.Noun) (entries []Entry, ok bool, err error) {
	elems := make([]noun.Noun, 0, len(s.cfg.Namespace)+len(prefix))
	for _, el := range s.cfg.Namespace {
		elems = append(elems, noun.Atom(el))
	}
	elems = append(elems, prefix...)
	scanPrefix := noun.EncodePrefix(elems)

	ok = true
	err = s.mgr.Transaction(ctx, func(ctx context.Context, tx kvdb.Tx) error {
		rows, terr := tx.SelectPrefix(s.cfg.Tables.Order, scanPrefix)
		if terr != nil {
			return terr
		}
		for _, row := range rows {
			nskey, derr := noun.Decode(row.Key)
			if derr != nil {
				return derr
			}
			version, derr := decodeOrder(row.Value)
			if derr != nil {
				return derr
			}
			v, derr := s.readQualifiedCached(tx, qualifiedKey(version, nskey))
			if derr != nil {
				return derr
			}
			if !v.Present {
				ok = false
				entries = nil
				return nil
			}
			key, derr := s.cfg.Namespace.Strip(nskey)
			if derr != nil {
				return derr
			}
			entries = append(entries, Entry{Key: key, Term: v.Term})
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return
}
