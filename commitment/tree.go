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

// Package commitment implements the append-only cryptographic accumulator
// backed by the commitments table: a binary merkle tree of fixed depth 32
// whose interior digest is SHA-256 over the concatenation of the two
// children. Unoccupied leaf slots count as the zero digest.
package commitment

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/Vinod798751/anoma/crypto/hash"
	"github.com/Vinod798751/anoma/kvdb"
	"github.com/Vinod798751/anoma/utils"
)

const (
	// Depth is the height of the accumulator.
	Depth = 32
	// Arity is the branching factor.
	Arity = 2
)

// ErrFull indicates the accumulator has no free leaf slot left.
var ErrFull = errors.New("commitment tree full")

// emptyAt[i] is the digest of a complete empty subtree of height i.
var emptyAt [Depth + 1]hash.Hash

func init() {
	for i := 1; i <= Depth; i++ {
		emptyAt[i] = hash.Concat(emptyAt[i-1], emptyAt[i-1])
	}
}

type leafPayload struct {
	Digest []byte
}

// Tree is the accumulator handle. The persistent state is the sequence of
// leaf rows (index, digest); the frontier of full left subtrees is held in
// memory and rebuilt from the rows on open.
type Tree struct {
	mgr   kvdb.Manager
	table string

	mu       sync.Mutex
	count    uint64
	frontier [Depth + 1]hash.Hash
}

// NewTree opens the accumulator over table, replaying any persisted leaves.
func NewTree(ctx context.Context, mgr kvdb.Manager, table string) (t *Tree, err error) {
	t = &Tree{mgr: mgr, table: table}
	err = mgr.Transaction(ctx, func(ctx context.Context, tx kvdb.Tx) error {
		rows, serr := tx.SelectPrefix(table, nil)
		if serr != nil {
			return serr
		}
		for _, row := range rows {
			var payload leafPayload
			if derr := utils.DecodeMsgPack(row.Value, &payload); derr != nil {
				return errors.Wrapf(derr, "decode leaf %x", row.Key)
			}
			var leaf hash.Hash
			if herr := leaf.SetBytes(payload.Digest); herr != nil {
				return herr
			}
			t.push(leaf)
		}
		return nil
	})
	if err != nil {
		t = nil
	}
	return
}

// Add appends leaf at the next free index, persists its row and returns the
// index.
func (t *Tree) Add(ctx context.Context, leaf hash.Hash) (index uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count>>Depth != 0 {
		err = ErrFull
		return
	}
	index = t.count

	var key [8]byte
	binary.BigEndian.PutUint64(key[:], index)
	buf, err := utils.EncodeMsgPack(&leafPayload{Digest: leaf.AsBytes()})
	if err != nil {
		return
	}
	err = t.mgr.Transaction(ctx, func(ctx context.Context, tx kvdb.Tx) error {
		return tx.Write(t.table, key[:], buf.Bytes())
	})
	if err != nil {
		return
	}
	t.push(leaf)
	return
}

// push merges leaf into the frontier. Caller holds the lock except during
// replay.
func (t *Tree) push(leaf hash.Hash) {
	h := leaf
	idx := t.count
	for level := 0; level <= Depth; level++ {
		if idx&1 == 0 {
			t.frontier[level] = h
			break
		}
		h = hash.Concat(t.frontier[level], h)
		idx >>= 1
	}
	t.count++
}

// Count returns the number of accumulated leaves.
func (t *Tree) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Root folds the frontier against empty-subtree digests into the depth-32
// root.
func (t *Tree) Root() hash.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 1<<Depth {
		return t.frontier[Depth]
	}
	h := emptyAt[0]
	idx := t.count
	for level := 0; level < Depth; level++ {
		if idx&1 == 1 {
			h = hash.Concat(t.frontier[level], h)
		} else {
			h = hash.Concat(h, emptyAt[level])
		}
		idx >>= 1
	}
	return h
}
