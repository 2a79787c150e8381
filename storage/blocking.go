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
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/Vinod798751/anoma/kvdb"
	"github.com/Vinod798751/anoma/noun"
	"github.com/Vinod798751/anoma/utils/log"
)

// BlockingRead returns the value at the explicit qualified key
// [version, key | 0], blocking until that exact version is written if it
// has not been yet.
//
// The subscription on the qualified table is opened before the transactional
// read. A write committing before the subscription is observed by the read;
// a write committing after it produces an event the waiter receives. No
// wakeup can be lost between the two.
//
// The wait has no timeout of its own; cancel ctx to abandon it. The
// subscription is torn down on every return path.
func (s *Storage) BlockingRead(ctx context.Context, qkey noun.Noun) (Value, error) {
	version, _, tail, err := noun.SplitQualified(qkey)
	if err != nil {
		return Absent, errors.Wrap(ErrBadShape, err.Error())
	}
	if t, ok := tail.(noun.Atom); !ok || !t.IsZero() {
		return Absent, ErrBadShape
	}
	if version.IsZero() {
		return Absent, ErrBadVersion
	}

	nsq, err := s.cfg.Namespace.ApplyQualified(qkey)
	if err != nil {
		return Absent, errors.Wrap(ErrBadShape, err.Error())
	}
	qkeyBytes := noun.Encode(nsq)

	// Subscribe first: only then is the transactional read allowed to
	// conclude the row is not there yet.
	sub, err := s.mgr.Subscribe(s.cfg.Tables.Qualified)
	if err != nil {
		return Absent, err
	}
	defer sub.Cancel()

	var (
		v     Value
		found bool
	)
	err = s.mgr.Transaction(ctx, func(ctx context.Context, tx kvdb.Tx) (terr error) {
		v, found, terr = s.readQualifiedTx(tx, qkeyBytes)
		return
	})
	if err != nil {
		return Absent, err
	}
	if found {
		return v, nil
	}

	log.WithFields(s.logFields()).WithField("qkey", nsq.String()).
		Debug("blocking read awaiting write")
	for {
		select {
		case ev, open := <-sub.C():
			if !open {
				return Absent, kvdb.ErrClosed
			}
			if !bytes.Equal(ev.Row.Key, qkeyBytes) {
				continue
			}
			return decodeValue(ev.Row.Value)
		case <-ctx.Done():
			return Absent, ctx.Err()
		}
	}
}
