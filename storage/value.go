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
	"github.com/Vinod798751/anoma/noun"
	"github.com/Vinod798751/anoma/utils"
)

// Value is a read result: either a present term or the absence sentinel.
// Absence covers both never-written keys and tombstoned ones.
type Value struct {
	Present bool
	Term    noun.Noun
}

// Absent is the absence sentinel value.
var Absent = Value{}

// Present wraps term as a present value.
func Present(term noun.Noun) Value {
	return Value{Present: true, Term: term}
}

// orderPayload is the persisted form of an order-table row value.
type orderPayload struct {
	Version uint64
}

// valuePayload is the persisted form of a qualified-table row value. The
// tombstone sets Absent and leaves Term empty, so it cannot collide with any
// user term: user terms always persist through Term with Absent unset.
type valuePayload struct {
	Absent bool
	Term   []byte
}

func encodeOrder(version uint64) ([]byte, error) {
	buf, err := utils.EncodeMsgPack(&orderPayload{Version: version})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeOrder(data []byte) (version uint64, err error) {
	var payload orderPayload
	if err = utils.DecodeMsgPack(data, &payload); err != nil {
		return
	}
	version = payload.Version
	return
}

func encodeValue(v Value) ([]byte, error) {
	payload := &valuePayload{Absent: !v.Present}
	if v.Present {
		payload.Term = noun.Encode(v.Term)
	}
	buf, err := utils.EncodeMsgPack(payload)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeValue(data []byte) (v Value, err error) {
	var payload valuePayload
	if err = utils.DecodeMsgPack(data, &payload); err != nil {
		return
	}
	if payload.Absent {
		v = Absent
		return
	}
	var term noun.Noun
	if term, err = noun.Decode(payload.Term); err != nil {
		return
	}
	v = Present(term)
	return
}
