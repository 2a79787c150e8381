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

// Package noun implements the opaque term format used for storage keys and
// values: a tagged sum of binary atoms and head/tail cells. Lists are cells
// chained through the tail; a list may be improper, i.e. terminate in a
// non-zero atom. The zero atom doubles as the proper-list terminator.
package noun

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Noun is a term: either an Atom or a Cell.
type Noun interface {
	// Equal reports structural equality with other.
	Equal(other Noun) bool
	fmt.Stringer
	isNoun()
}

// Atom is a binary atom. Numeric atoms use the minimal big-endian encoding,
// so the zero atom is the empty byte string.
type Atom []byte

// Cell is a head/tail pair.
type Cell struct {
	Head Noun
	Tail Noun
}

// Zero is the zero atom. It terminates proper lists and appears as the
// sentinel tail of qualified keys.
var Zero = Atom(nil)

func (Atom) isNoun() {}
func (Cell) isNoun() {}

// Equal implements Noun.
func (a Atom) Equal(other Noun) bool {
	o, ok := other.(Atom)
	return ok && bytes.Equal(a, o)
}

// Equal implements Noun.
func (c Cell) Equal(other Noun) bool {
	o, ok := other.(Cell)
	return ok && c.Head.Equal(o.Head) && c.Tail.Equal(o.Tail)
}

// IsZero reports whether a is the zero atom. Leading zero bytes are not
// minimal, so only the empty atom is zero.
func (a Atom) IsZero() bool {
	return len(a) == 0
}

func (a Atom) String() string {
	if a.IsZero() {
		return "0"
	}
	if isPrintable(a) {
		return fmt.Sprintf("%q", string(a))
	}
	return fmt.Sprintf("0x%x", []byte(a))
}

func (c Cell) String() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	var cur Noun = c
	for {
		cc, ok := cur.(Cell)
		if !ok {
			break
		}
		buf.WriteString(cc.Head.String())
		cur = cc.Tail
		if _, ok = cur.(Cell); ok {
			buf.WriteByte(' ')
		}
	}
	if a, ok := cur.(Atom); ok && !a.IsZero() {
		buf.WriteString(" | ")
		buf.WriteString(a.String())
	}
	buf.WriteByte(']')
	return buf.String()
}

func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return len(b) > 0
}

// Uint64Atom returns the minimal big-endian atom of v.
func Uint64Atom(v uint64) Atom {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	i := 0
	for i < 8 && buf[i] == 0 {
		i++
	}
	return Atom(append([]byte(nil), buf[i:]...))
}

// AtomUint64 parses a minimal big-endian atom into a uint64.
func AtomUint64(a Atom) (v uint64, err error) {
	if len(a) > 8 {
		err = fmt.Errorf("atom exceeds 8 bytes: %d", len(a))
		return
	}
	if len(a) > 0 && a[0] == 0 {
		err = fmt.Errorf("atom is not minimal big-endian")
		return
	}
	for _, b := range a {
		v = v<<8 | uint64(b)
	}
	return
}

// List builds a proper list of elems terminated by the zero atom.
func List(elems ...Noun) Noun {
	var n Noun = Zero
	for i := len(elems) - 1; i >= 0; i-- {
		n = Cell{Head: elems[i], Tail: n}
	}
	return n
}
