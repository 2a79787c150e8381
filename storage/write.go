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

// Put writes value as the next version of key: it reads the current version
// inside a transaction, bumps it, and publishes both the order row and the
// qualified row atomically. The transaction outcome is published on the
// topic; conflicts are not retried here.
func (s *Storage) Put(ctx context.Context, key noun.Noun, value noun.Noun) error {
	err := s.putValue(ctx, key, Present(value))
	s.publish(Event{Op: OpPut, Key: key, Value: Present(value), Err: err})
	return err
}

// Delete writes the tombstone as the next version of key. The key's history
// stays intact; Get returns Absent until a later Put.
func (s *Storage) Delete(ctx context.Context, key noun.Noun) error {
	err := s.putValue(ctx, key, Absent)
	s.publish(Event{Op: OpPut, Key: key, Value: Absent, Err: err})
	return err
}

func (s *Storage) putValue(ctx context.Context, key noun.Noun, v Value) error {
	nskey, nskeyBytes := s.nskey(key)
	return s.mgr.Transaction(ctx, func(ctx context.Context, tx kvdb.Tx) error {
		cur, _, err := s.readOrderTx(tx, nskeyBytes)
		if err != nil {
			return err
		}
		return s.writeBothTx(tx, nskey, nskeyBytes, cur+1, v)
	})
}

// WriteAtOrder forces value at a specific version of key, bypassing the
// read-then-increment step. It is meant for replays; passing a version at or
// below the key's current one breaks the monotonicity of the order table,
// and callers are responsible for strictly increasing versions.
func (s *Storage) WriteAtOrder(ctx context.Context, key noun.Noun, value noun.Noun, version uint64) error {
	nskey, nskeyBytes := s.nskey(key)
	err := s.mgr.Transaction(ctx, func(ctx context.Context, tx kvdb.Tx) error {
		return s.writeBothTx(tx, nskey, nskeyBytes, version, Present(value))
	})
	s.publish(Event{Op: OpWrite, Key: key, Value: Present(value), Version: version, Err: err})
	return err
}

// writeBothTx publishes the (order, qualified) row pair for version under
// one transaction. Every committed write goes through here.
func (s *Storage) writeBothTx(tx kvdb.Tx, nskey noun.Noun, nskeyBytes []byte, version uint64, v Value) error {
	orderBytes, err := encodeOrder(version)
	if err != nil {
		return err
	}
	valueBytes, err := encodeValue(v)
	if err != nil {
		return err
	}
	if err = tx.Write(s.cfg.Tables.Order, nskeyBytes, orderBytes); err != nil {
		return err
	}
	if err = tx.Write(s.cfg.Tables.Qualified, qualifiedKey(version, nskey), valueBytes); err != nil {
		return err
	}
	log.WithFields(s.logFields()).WithFields(log.Fields{
		"key":     nskey.String(),
		"version": version,
	}).Debug("wrote versioned row pair")
	return nil
}
