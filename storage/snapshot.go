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

	uuid "github.com/satori/go.uuid"

	"github.com/Vinod798751/anoma/kvdb"
	"github.com/Vinod798751/anoma/noun"
)

// OrderEntry is one (namespaced key, version) pair of a snapshot.
type OrderEntry struct {
	Key     noun.Noun
	Version uint64
}

// Snapshot is a consistent view of the order table at one transaction's
// commit point. Values are not copied: a snapshot read resolves the
// versioned coordinate against the current qualified table, which is safe
// because qualified rows are immutable once written.
type Snapshot struct {
	ID      uuid.UUID
	Entries []OrderEntry
}

// SnapshotOrder captures the whole order table under one transaction.
func (s *Storage) SnapshotOrder(ctx context.Context) (snap *Snapshot, err error) {
	snap = &Snapshot{ID: uuid.NewV4()}
	err = s.mgr.Transaction(ctx, func(ctx context.Context, tx kvdb.Tx) error {
		rows, terr := tx.SelectPrefix(s.cfg.Tables.Order, nil)
		if terr != nil {
			return terr
		}
		snap.Entries = make([]OrderEntry, 0, len(rows))
		for _, row := range rows {
			key, derr := noun.Decode(row.Key)
			if derr != nil {
				return derr
			}
			version, derr := decodeOrder(row.Value)
			if derr != nil {
				return derr
			}
			snap.Entries = append(snap.Entries, OrderEntry{Key: key, Version: version})
		}
		return nil
	})
	if err != nil {
		snap = nil
	}
	return
}

// InSnapshot returns the version key had when snap was taken, with ok false
// when the key is not in the snapshot. The lookup namespaces key first.
func (s *Storage) InSnapshot(snap *Snapshot, key noun.Noun) (version uint64, ok bool) {
	nskey := s.cfg.Namespace.Apply(key)
	for _, e := range snap.Entries {
		if e.Key.Equal(nskey) {
			return e.Version, true
		}
	}
	return 0, false
}

// GetAtSnapshot reads the value key had at snapshot time: the qualified row
// at the snapshotted version. The result never changes for the lifetime of
// snap.
func (s *Storage) GetAtSnapshot(ctx context.Context, snap *Snapshot, key noun.Noun) (Value, error) {
	version, ok := s.InSnapshot(snap, key)
	if !ok {
		return Absent, nil
	}
	return s.ReadAtOrder(ctx, key, version)
}

// PutSnapshot captures a snapshot and stores it under key as an ordinary
// versioned put.
func (s *Storage) PutSnapshot(ctx context.Context, key noun.Noun) error {
	snap, err := s.SnapshotOrder(ctx)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, snap.ToNoun())
}

// ToNoun renders the snapshot as a proper list of [key | version] pairs, so
// it can be stored as a value.
func (snap *Snapshot) ToNoun() noun.Noun {
	elems := make([]noun.Noun, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		elems = append(elems, noun.Cell{
			Head: e.Key,
			Tail: noun.Uint64Atom(e.Version),
		})
	}
	return noun.List(elems...)
}

// SnapshotFromNoun parses a stored snapshot back into entries.
func SnapshotFromNoun(n noun.Noun) (snap *Snapshot, err error) {
	snap = &Snapshot{ID: uuid.NewV4()}
	for {
		c, ok := n.(noun.Cell)
		if !ok {
			return
		}
		e, ok := c.Head.(noun.Cell)
		if !ok {
			err = noun.ErrCodec
			snap = nil
			return
		}
		va, ok := e.Tail.(noun.Atom)
		if !ok {
			err = noun.ErrCodec
			snap = nil
			return
		}
		var version uint64
		if version, err = noun.AtomUint64(va); err != nil {
			snap = nil
			return
		}
		snap.Entries = append(snap.Entries, OrderEntry{Key: e.Head, Version: version})
		n = c.Tail
	}
}
