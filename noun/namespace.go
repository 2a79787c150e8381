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

	"github.com/pkg/errors"
)

// Namespace is an ordered list of binaries prepended to logical keys to form
// their physical table keys. Distinct namespaces multiplex independent
// logical storages into the same physical tables.
type Namespace [][]byte

// ErrNamespace indicates a key that does not carry the expected prefix.
var ErrNamespace = errors.New("key outside namespace")

// Apply prepends the namespace elements to key. The empty namespace returns
// key unchanged; improper-list tails of key are preserved.
func (ns Namespace) Apply(key Noun) Noun {
	n := key
	for i := len(ns) - 1; i >= 0; i-- {
		n = Cell{Head: Atom(ns[i]), Tail: n}
	}
	return n
}

// Strip removes the namespace prefix from nskey. It fails with ErrNamespace
// unless every prefix element matches in order.
func (ns Namespace) Strip(nskey Noun) (key Noun, err error) {
	key = nskey
	for i, el := range ns {
		c, ok := key.(Cell)
		if !ok {
			err = errors.Wrapf(ErrNamespace, "element %d: not a cell", i)
			return
		}
		a, ok := c.Head.(Atom)
		if !ok || !bytes.Equal(a, el) {
			err = errors.Wrapf(ErrNamespace, "element %d mismatch", i)
			return
		}
		key = c.Tail
	}
	return
}

// ApplyQualified namespaces the key element of a qualified key
// [version, key | tail], leaving the version head and the improper tail
// untouched.
func (ns Namespace) ApplyQualified(qkey Noun) (Noun, error) {
	v, key, tail, err := SplitQualified(qkey)
	if err != nil {
		return nil, err
	}
	return Cell{Head: v, Tail: Cell{Head: ns.Apply(key), Tail: tail}}, nil
}

// StripQualified denamespaces the key element of a qualified key.
func (ns Namespace) StripQualified(qkey Noun) (Noun, error) {
	v, nskey, tail, err := SplitQualified(qkey)
	if err != nil {
		return nil, err
	}
	key, err := ns.Strip(nskey)
	if err != nil {
		return nil, err
	}
	return Cell{Head: v, Tail: Cell{Head: key, Tail: tail}}, nil
}

// SplitQualified destructures [version, key | tail] into its three parts.
// The version must be an atom.
func SplitQualified(qkey Noun) (version Atom, key, tail Noun, err error) {
	outer, ok := qkey.(Cell)
	if !ok {
		err = errors.Wrap(ErrCodec, "qualified key is not a cell")
		return
	}
	if version, ok = outer.Head.(Atom); !ok {
		err = errors.Wrap(ErrCodec, "qualified key version is not an atom")
		return
	}
	inner, ok := outer.Tail.(Cell)
	if !ok {
		err = errors.Wrap(ErrCodec, "qualified key tail is not a cell")
		return
	}
	key = inner.Head
	tail = inner.Tail
	return
}

// Qualified builds the qualified key [version, key | 0].
func Qualified(version uint64, key Noun) Noun {
	return Cell{
		Head: Uint64Atom(version),
		Tail: Cell{Head: key, Tail: Zero},
	}
}
