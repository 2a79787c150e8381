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

// Package boltdb provides a bbolt-backed table manager: one bucket per
// table, prefix selects as cursor seeks. It implements the same contract as
// the sqlite backend and is the lighter choice for single-file embedded
// deployments.
package boltdb

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/Vinod798751/anoma/kvdb"
)

// Bolt is the bbolt-backed kvdb.Manager.
type Bolt struct {
	db  *bolt.DB
	hub *kvdb.Hub

	mu     sync.Mutex
	closed bool
}

// New opens a bbolt-backed table manager at path.
func New(path string) (m *Bolt, err error) {
	var db *bolt.DB
	if db, err = bolt.Open(path, 0600, &bolt.Options{Timeout: 10 * time.Second}); err != nil {
		err = errors.Wrapf(err, "open bolt %q", path)
		return
	}
	m = &Bolt{db: db, hub: kvdb.NewHub()}
	return
}

// CreateTable implements kvdb.Manager.
func (m *Bolt) CreateTable(ctx context.Context, name string) (err error) {
	err = m.db.Update(func(tx *bolt.Tx) error {
		_, cerr := tx.CreateBucketIfNotExists([]byte(name))
		return cerr
	})
	return errors.Wrapf(err, "create table %s", name)
}

// DeleteTable implements kvdb.Manager.
func (m *Bolt) DeleteTable(ctx context.Context, name string) (err error) {
	err = m.db.Update(func(tx *bolt.Tx) error {
		derr := tx.DeleteBucket([]byte(name))
		if derr == bolt.ErrBucketNotFound {
			return nil
		}
		return derr
	})
	return errors.Wrapf(err, "delete table %s", name)
}

// Transaction implements kvdb.Manager.
func (m *Bolt) Transaction(ctx context.Context, fn func(ctx context.Context, tx kvdb.Tx) error) (err error) {
	if cur, ok := kvdb.TxFromContext(ctx); ok {
		return fn(ctx, cur)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return kvdb.ErrClosed
	}

	var (
		t     = &boltTx{}
		fnErr error
	)
	err = m.db.Update(func(raw *bolt.Tx) error {
		t.tx = raw
		fnErr = fn(kvdb.WithTx(ctx, t), t)
		return fnErr
	})
	if err != nil {
		// The body's own error rolls back and propagates unchanged; a
		// begin/commit failure is an abort.
		if err != fnErr {
			err = errors.Wrap(kvdb.ErrTxAborted, err.Error())
		}
		return
	}
	m.hub.Publish(t.pending)
	return
}

// Subscribe implements kvdb.Manager.
func (m *Bolt) Subscribe(table string) (*kvdb.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, kvdb.ErrClosed
	}
	return m.hub.Subscribe(table), nil
}

// Close implements kvdb.Manager.
func (m *Bolt) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	m.hub.CloseAll()
	return m.db.Close()
}

type boltTx struct {
	tx      *bolt.Tx
	pending []kvdb.WriteEvent
}

func (t *boltTx) bucket(table string) (*bolt.Bucket, error) {
	b := t.tx.Bucket([]byte(table))
	if b == nil {
		return nil, errors.Wrap(kvdb.ErrNoSuchTable, table)
	}
	return b, nil
}

// Read implements kvdb.Tx.
func (t *boltTx) Read(table string, key []byte) (value []byte, ok bool, err error) {
	var b *bolt.Bucket
	if b, err = t.bucket(table); err != nil {
		return
	}
	if v := b.Get(key); v != nil {
		value = append([]byte(nil), v...)
		ok = true
	}
	return
}

// Write implements kvdb.Tx.
func (t *boltTx) Write(table string, key, value []byte) (err error) {
	var b *bolt.Bucket
	if b, err = t.bucket(table); err != nil {
		return
	}
	if err = b.Put(key, value); err != nil {
		err = errors.Wrapf(err, "write %s", table)
		return
	}
	t.pending = append(t.pending, kvdb.WriteEvent{
		Table: table,
		Row: kvdb.Row{
			Key:   append([]byte(nil), key...),
			Value: append([]byte(nil), value...),
		},
	})
	return
}

// SelectPrefix implements kvdb.Tx.
func (t *boltTx) SelectPrefix(table string, prefix []byte) (rows []kvdb.Row, err error) {
	var b *bolt.Bucket
	if b, err = t.bucket(table); err != nil {
		return
	}
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		rows = append(rows, kvdb.Row{
			Key:   append([]byte(nil), k...),
			Value: append([]byte(nil), v...),
		})
	}
	return
}
