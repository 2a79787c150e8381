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

// Package kvdb defines the transactional table manager consumed by the
// storage engine: named binary key-value tables with transactions, prefix
// selects and per-table write subscriptions.
package kvdb

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrTxAborted indicates the transaction failed to commit and rolled
	// back. The underlying driver error is attached as the cause.
	ErrTxAborted = errors.New("transaction aborted")
	// ErrNoSuchTable indicates an access to a table that does not exist.
	ErrNoSuchTable = errors.New("no such table")
	// ErrClosed indicates the manager has been closed.
	ErrClosed = errors.New("table manager closed")
)

// Row is one table row.
type Row struct {
	Key   []byte
	Value []byte
}

// WriteEvent is delivered to subscribers after a transaction containing the
// write commits.
type WriteEvent struct {
	Table string
	Row   Row
}

// Tx is a transaction handle. Reads observe writes made earlier in the same
// transaction.
type Tx interface {
	// Read returns the row value at key, if any.
	Read(table string, key []byte) (value []byte, ok bool, err error)
	// Write sets the row at key.
	Write(table string, key, value []byte) error
	// SelectPrefix returns all rows whose key begins with prefix, in key
	// order. The empty prefix selects the whole table.
	SelectPrefix(table string, prefix []byte) ([]Row, error)
}

// Manager is a transactional table store with write subscriptions.
type Manager interface {
	// CreateTable ensures table name exists. Creating an existing table is
	// not an error.
	CreateTable(ctx context.Context, name string) error
	// DeleteTable drops table name and its rows. Dropping a missing table
	// is not an error.
	DeleteTable(ctx context.Context, name string) error
	// Transaction runs fn inside a transaction and commits it unless fn
	// returns an error. When the context already carries a transaction of
	// this manager, fn joins it and the outer call owns the commit.
	// Commit failures surface as ErrTxAborted.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Subscribe opens a write-event stream on table. Every row written by
	// a committing transaction is delivered exactly once per subscriber,
	// in commit order.
	Subscribe(table string) (*Subscription, error)
	// Close releases the backing store. Open subscriptions are cancelled.
	Close() error
}

type txContextKey struct{}

// TxFromContext extracts a transaction previously injected by a manager.
func TxFromContext(ctx context.Context) (Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(Tx)
	return tx, ok
}

// WithTx injects tx so that nested Transaction calls join it.
func WithTx(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}
