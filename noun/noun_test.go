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
	"testing"
)

func TestAtomEquality(t *testing.T) {
	if !Atom("x").Equal(Atom("x")) {
		t.Fatal("equal atoms reported unequal")
	}
	if Atom("x").Equal(Atom("y")) {
		t.Fatal("unequal atoms reported equal")
	}
	if Atom("x").Equal(Cell{Head: Atom("x"), Tail: Zero}) {
		t.Fatal("atom equal to cell")
	}
}

func TestCellEquality(t *testing.T) {
	a := List(Atom("a"), Atom("b"))
	b := List(Atom("a"), Atom("b"))
	c := List(Atom("a"), Atom("c"))
	if !a.Equal(b) {
		t.Fatal("equal lists reported unequal")
	}
	if a.Equal(c) {
		t.Fatal("unequal lists reported equal")
	}
}

func TestImproperList(t *testing.T) {
	// [a, b | tail]
	n := Cell{Head: Atom("a"), Tail: Cell{Head: Atom("b"), Tail: Atom("tail")}}
	if n.String() != `["a" "b" | "tail"]` {
		t.Fatalf("unexpected rendering: %s", n.String())
	}
}

func TestUint64Atom(t *testing.T) {
	cases := []uint64{0, 1, 255, 256, 1<<32 - 1, 1 << 32, 1<<64 - 1}
	for _, v := range cases {
		a := Uint64Atom(v)
		got, err := AtomUint64(a)
		if err != nil {
			t.Fatalf("%d: %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d != %d", got, v)
		}
	}
	if !Uint64Atom(0).IsZero() {
		t.Fatal("zero atom is not zero")
	}
	if _, err := AtomUint64(Atom{0x00, 0x01}); err == nil {
		t.Fatal("non-minimal atom accepted")
	}
}
