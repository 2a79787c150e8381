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

package noun

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Canonical binary encoding of nouns, used as the physical key format of the
// storage tables. The encoding is injective, so byte equality of encodings
// coincides with structural equality of terms, and it is prefix-preserving
// per list element: enc([e | rest]) = cellTag ++ enc(e) ++ enc(rest). Scans
// constrained element-wise on a list prefix therefore reduce to byte-prefix
// range scans.
const (
	atomTag byte = 0x00
	cellTag byte = 0x01
)

var (
	// ErrCodec indicates a malformed or trailing-garbage encoding.
	ErrCodec = errors.New("malformed noun encoding")
)

// Encode returns the canonical encoding of n.
func Encode(n Noun) []byte {
	var buf bytes.Buffer
	encodeTo(&buf, n)
	return buf.Bytes()
}

func encodeTo(buf *bytes.Buffer, n Noun) {
	switch t := n.(type) {
	case Atom:
		var lbuf [binary.MaxVarintLen64]byte
		buf.WriteByte(atomTag)
		buf.Write(lbuf[:binary.PutUvarint(lbuf[:], uint64(len(t)))])
		buf.Write(t)
	case Cell:
		buf.WriteByte(cellTag)
		encodeTo(buf, t.Head)
		encodeTo(buf, t.Tail)
	}
}

// Decode parses a canonical encoding back into a noun. The whole input must
// be consumed.
func Decode(data []byte) (n Noun, err error) {
	var rest []byte
	if n, rest, err = decodeFrom(data); err != nil {
		return
	}
	if len(rest) != 0 {
		err = errors.Wrapf(ErrCodec, "%d trailing bytes", len(rest))
		n = nil
	}
	return
}

func decodeFrom(data []byte) (n Noun, rest []byte, err error) {
	if len(data) == 0 {
		err = errors.Wrap(ErrCodec, "empty input")
		return
	}
	switch data[0] {
	case atomTag:
		l, sz := binary.Uvarint(data[1:])
		if sz <= 0 || uint64(len(data)-1-sz) < l {
			err = errors.Wrap(ErrCodec, "truncated atom")
			return
		}
		body := data[1+sz : 1+sz+int(l)]
		n = Atom(append([]byte(nil), body...))
		rest = data[1+sz+int(l):]
	case cellTag:
		var head, tail Noun
		if head, rest, err = decodeFrom(data[1:]); err != nil {
			return
		}
		if tail, rest, err = decodeFrom(rest); err != nil {
			return
		}
		n = Cell{Head: head, Tail: tail}
	default:
		err = errors.Wrapf(ErrCodec, "unknown tag 0x%02x", data[0])
	}
	return
}

// EncodePrefix returns the byte prefix shared by the encodings of all terms
// that are lists beginning element-wise with elems. It is the concatenation
// of cellTag ++ enc(elem) per element, with no terminating tail.
func EncodePrefix(elems []Noun) []byte {
	var buf bytes.Buffer
	for _, e := range elems {
		buf.WriteByte(cellTag)
		encodeTo(&buf, e)
	}
	return buf.Bytes()
}
