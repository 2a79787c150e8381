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

package kvdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	// Register go-sqlite3 engine.
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the sqlite3-backed Manager. Each table maps to one relation
// `(key BLOB PRIMARY KEY, value BLOB)`; prefix selects run as range scans on
// the primary key.
//
// go-sqlite3 only guarantees safety for concurrent readers, so all
// transactions serialize through a single mutex. See the package note in
// github.com/mattn/go-sqlite3 issue 148.
type SQLite struct {
	dsn string
	db  *sql.DB
	hub *Hub

	mu     sync.Mutex
	closed bool
}

// NewSQLite opens a sqlite3-backed table manager on the given DSN. Use
// MemoryDSN().Format() for a private in-memory manager.
func NewSQLite(dsn string) (m *SQLite, err error) {
	var db *sql.DB
	if db, err = sql.Open("sqlite3", dsn); err != nil {
		err = errors.Wrapf(err, "open sqlite3 %q", dsn)
		return
	}
	// A single connection keeps transactions and temporary states attached
	// to one sqlite handle.
	db.SetMaxOpenConns(1)
	m = &SQLite{dsn: dsn, db: db, hub: NewHub()}
	return
}

// CreateTable implements Manager.
func (m *SQLite) CreateTable(ctx context.Context, name string) (err error) {
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS `%s` (`key` BLOB PRIMARY KEY, `value` BLOB)", name)
	if _, err = m.db.ExecContext(ctx, stmt); err != nil {
		err = errors.Wrapf(err, "create table %s", name)
	}
	return
}

// DeleteTable implements Manager.
func (m *SQLite) DeleteTable(ctx context.Context, name string) (err error) {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS `%s`", name)
	if _, err = m.db.ExecContext(ctx, stmt); err != nil {
		err = errors.Wrapf(err, "delete table %s", name)
	}
	return
}

// Transaction implements Manager.
func (m *SQLite) Transaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	if cur, ok := TxFromContext(ctx); ok {
		return fn(ctx, cur)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	var raw *sql.Tx
	if raw, err = m.db.BeginTx(ctx, nil); err != nil {
		return errors.Wrap(ErrTxAborted, err.Error())
	}

	t := &sqliteTx{tx: raw}
	if err = fn(WithTx(ctx, t), t); err != nil {
		raw.Rollback()
		return
	}
	if err = raw.Commit(); err != nil {
		return errors.Wrap(ErrTxAborted, err.Error())
	}
	m.hub.Publish(t.pending)
	return
}

// Subscribe implements Manager.
func (m *SQLite) Subscribe(table string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.hub.Subscribe(table), nil
}

// Close implements Manager.
func (m *SQLite) Close() error {
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

type sqliteTx struct {
	tx      *sql.Tx
	pending []WriteEvent
}

// Read implements Tx.
func (t *sqliteTx) Read(table string, key []byte) (value []byte, ok bool, err error) {
	stmt := fmt.Sprintf("SELECT `value` FROM `%s` WHERE `key` = ?", table)
	err = t.tx.QueryRow(stmt, key).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		err = nil
	case err != nil:
		err = errors.Wrapf(err, "read %s", table)
	default:
		ok = true
	}
	return
}

// Write implements Tx.
func (t *sqliteTx) Write(table string, key, value []byte) (err error) {
	stmt := fmt.Sprintf("INSERT OR REPLACE INTO `%s` (`key`, `value`) VALUES (?, ?)", table)
	if _, err = t.tx.Exec(stmt, key, value); err != nil {
		err = errors.Wrapf(err, "write %s", table)
		return
	}
	t.pending = append(t.pending, WriteEvent{
		Table: table,
		Row:   Row{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)},
	})
	return
}

// SelectPrefix implements Tx.
func (t *sqliteTx) SelectPrefix(table string, prefix []byte) (rows []Row, err error) {
	var (
		rs   *sql.Rows
		stmt string
		args []interface{}
	)
	if upper, bounded := prefixSuccessor(prefix); len(prefix) == 0 {
		stmt = fmt.Sprintf("SELECT `key`, `value` FROM `%s` ORDER BY `key`", table)
	} else if bounded {
		stmt = fmt.Sprintf(
			"SELECT `key`, `value` FROM `%s` WHERE `key` >= ? AND `key` < ? ORDER BY `key`", table)
		args = []interface{}{prefix, upper}
	} else {
		stmt = fmt.Sprintf(
			"SELECT `key`, `value` FROM `%s` WHERE `key` >= ? ORDER BY `key`", table)
		args = []interface{}{prefix}
	}
	if rs, err = t.tx.Query(stmt, args...); err != nil {
		err = errors.Wrapf(err, "select %s", table)
		return
	}
	defer rs.Close()
	for rs.Next() {
		var row Row
		if err = rs.Scan(&row.Key, &row.Value); err != nil {
			err = errors.Wrapf(err, "select %s", table)
			return
		}
		rows = append(rows, row)
	}
	if err = rs.Err(); err != nil {
		err = errors.Wrapf(err, "select %s", table)
	}
	return
}

// prefixSuccessor returns the smallest byte string greater than every string
// with the given prefix. bounded is false when no such string exists (the
// prefix is empty or all 0xff).
func prefixSuccessor(prefix []byte) (upper []byte, bounded bool) {
	upper = append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			upper = upper[:i+1]
			bounded = true
			return
		}
	}
	return nil, false
}
