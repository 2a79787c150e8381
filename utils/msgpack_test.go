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

package utils

import (
	"testing"
)

type testPayload struct {
	Version uint64
	Absent  bool
	Term    []byte
}

func TestMsgPackRoundTrip(t *testing.T) {
	in := &testPayload{Version: 42, Absent: true, Term: []byte{0x00, 0x01}}
	buf, err := EncodeMsgPack(in)
	if err != nil {
		t.Fatalf("error occurred: %v", err)
	}
	var out testPayload
	if err = DecodeMsgPack(buf.Bytes(), &out); err != nil {
		t.Fatalf("error occurred: %v", err)
	}
	if out.Version != in.Version || out.Absent != in.Absent || string(out.Term) != string(in.Term) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestMsgPackDecodeGarbage(t *testing.T) {
	var out testPayload
	if err := DecodeMsgPack([]byte{0xc1}, &out); err == nil {
		t.Fatal("unexpected result: returned nil while expecting an error")
	}
}
