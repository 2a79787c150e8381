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

// Package storage implements the versioned, namespaced key-value engine.
//
// Every key carries a monotonically increasing version counter. The order
// table maps each namespaced key to its latest version; the qualified table
// stores every written value at its own (version, key) coordinate, so
// history is retained forever and logical deletion is a new version holding
// a tombstone. Readers query the current value, a value at a specific
// version, or block until a (key, version) pair is written. A snapshot
// captures the whole order map under one transaction; since qualified rows
// are immutable once written, snapshot reads stay stable regardless of
// subsequent writes.
package storage

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/Vinod798751/anoma/commitment"
	"github.com/Vinod798751/anoma/kvdb"
	"github.com/Vinod798751/anoma/noun"
	"github.com/Vinod798751/anoma/utils/log"
)

// qualifiedCacheSize bounds the immutable qualified-row cache.
const qualifiedCacheSize = 4096

// TableSet names the three physical tables of one storage.
type TableSet struct {
	Order       string
	Qualified   string
	Commitments string
}

// DefaultTables returns the conventional table names under prefix.
func DefaultTables(prefix string) TableSet {
	return TableSet{
		Order:       prefix + "_ordering",
		Qualified:   prefix + "_qualified",
		Commitments: prefix + "_commitments",
	}
}

// Config configures a storage handle. Multiple handles with distinct
// namespaces may point at the same tables; the namespace prefix is the only
// isolation between them.
type Config struct {
	Tables    TableSet
	Namespace noun.Namespace
	// Topic, when non-nil, receives an Event per write and per table drop.
	Topic Topic
}

// Storage is a handle on the versioned key-value engine. It owns no state
// exclusively; everything lives in the shared tables of the manager.
type Storage struct {
	mgr   kvdb.Manager
	cfg   Config
	cache *lru.Cache // encoded qualified key -> Value, immutable rows only
	tree  *commitment.Tree
}

// New builds a storage handle over mgr, idempotently ensures the three
// tables exist and instantiates the commitment tree over the commitments
// table.
func New(ctx context.Context, mgr kvdb.Manager, cfg Config) (s *Storage, err error) {
	cache, err := lru.New(qualifiedCacheSize)
	if err != nil {
		return
	}
	s = &Storage{mgr: mgr, cfg: cfg, cache: cache}
	if err = s.Setup(ctx); err != nil {
		s = nil
		return
	}
	if s.tree, err = commitment.NewTree(ctx, mgr, cfg.Tables.Commitments); err != nil {
		err = errors.WithMessage(err, "open commitment tree")
		s = nil
	}
	return
}

// Manager returns the underlying table manager.
func (s *Storage) Manager() kvdb.Manager {
	return s.mgr
}

// Commitments returns the accumulator bound to the commitments table.
func (s *Storage) Commitments() *commitment.Tree {
	return s.tree
}

// nskey namespaces key and returns it with its encoding.
func (s *Storage) nskey(key noun.Noun) (noun.Noun, []byte) {
	n := s.cfg.Namespace.Apply(key)
	return n, noun.Encode(n)
}

// qualifiedKey returns the encoded [version, nskey | 0] coordinate.
func qualifiedKey(version uint64, nskey noun.Noun) []byte {
	return noun.Encode(noun.Qualified(version, nskey))
}

// readOrderTx reads the current version of an encoded namespaced key inside
// tx. Version 0 means no row.
func (s *Storage) readOrderTx(tx kvdb.Tx, nskeyBytes []byte) (version uint64, ok bool, err error) {
	raw, ok, err := tx.Read(s.cfg.Tables.Order, nskeyBytes)
	if err != nil || !ok {
		return
	}
	version, err = decodeOrder(raw)
	return
}

// readQualifiedTx reads the value at an encoded qualified key inside tx.
func (s *Storage) readQualifiedTx(tx kvdb.Tx, qkeyBytes []byte) (v Value, ok bool, err error) {
	raw, ok, err := tx.Read(s.cfg.Tables.Qualified, qkeyBytes)
	if err != nil || !ok {
		return
	}
	v, err = decodeValue(raw)
	return
}

// publish emits ev on the configured topic, if any.
func (s *Storage) publish(ev Event) {
	if s.cfg.Topic == nil {
		return
	}
	s.cfg.Topic.Cast(ev)
}

// logFields returns common log fields for this handle.
func (s *Storage) logFields() log.Fields {
	return log.Fields{
		"order":     s.cfg.Tables.Order,
		"qualified": s.cfg.Tables.Qualified,
	}
}
