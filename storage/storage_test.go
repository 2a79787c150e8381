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
	"context"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Vinod798751/anoma/kvdb"
	"github.com/Vinod798751/anoma/noun"
)

// collectTopic records published events for inspection.
type collectTopic struct {
	mu     sync.Mutex
	events []Event
}

func (c *collectTopic) Cast(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collectTopic) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func newTestStorage(t *testing.T, ns noun.Namespace, topic Topic) (*Storage, kvdb.Manager) {
	ctx := context.Background()
	mgr, err := kvdb.NewSQLite(kvdb.MemoryDSN().Format())
	if err != nil {
		t.Fatalf("error occurred: %v", err)
	}
	st, err := New(ctx, mgr, Config{
		Tables:    DefaultTables("anoma"),
		Namespace: ns,
		Topic:     topic,
	})
	if err != nil {
		t.Fatalf("error occurred: %v", err)
	}
	return st, mgr
}

func TestPutGet(t *testing.T) {
	Convey("Given an empty storage with an empty namespace", t, func() {
		var ctx = context.Background()
		st, mgr := newTestStorage(t, nil, nil)
		Reset(func() { mgr.Close() })

		Convey("A put should be observable through get at version 1", func() {
			err := st.Put(ctx, noun.Atom("x"), noun.Uint64Atom(42))
			So(err, ShouldBeNil)

			v, err := st.Get(ctx, noun.Atom("x"))
			So(err, ShouldBeNil)
			So(v.Present, ShouldBeTrue)
			So(v.Term.Equal(noun.Uint64Atom(42)), ShouldBeTrue)

			version, ok, err := st.ReadOrder(ctx, noun.Atom("x"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(version, ShouldEqual, 1)
		})

		Convey("An unwritten key should read absent", func() {
			v, err := st.Get(ctx, noun.Atom("nope"))
			So(err, ShouldBeNil)
			So(v.Present, ShouldBeFalse)

			_, ok, err := st.ReadOrder(ctx, noun.Atom("nope"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("Repeated puts should bump the version and retain history", func() {
			for i := uint64(1); i <= 3; i++ {
				So(st.Put(ctx, noun.Atom("x"), noun.Uint64Atom(i)), ShouldBeNil)
			}

			v, err := st.Get(ctx, noun.Atom("x"))
			So(err, ShouldBeNil)
			So(v.Term.Equal(noun.Uint64Atom(3)), ShouldBeTrue)

			version, ok, err := st.ReadOrder(ctx, noun.Atom("x"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(version, ShouldEqual, 3)

			// The intermediate row still holds the second write.
			mid, err := st.ReadAtOrder(ctx, noun.Atom("x"), 2)
			So(err, ShouldBeNil)
			So(mid.Present, ShouldBeTrue)
			So(mid.Term.Equal(noun.Uint64Atom(2)), ShouldBeTrue)

			// And a version beyond the current one has no row.
			beyond, err := st.ReadAtOrder(ctx, noun.Atom("x"), 4)
			So(err, ShouldBeNil)
			So(beyond.Present, ShouldBeFalse)
		})

		Convey("Delete should tombstone the key and advance its version", func() {
			So(st.Put(ctx, noun.Atom("x"), noun.Uint64Atom(7)), ShouldBeNil)
			So(st.Delete(ctx, noun.Atom("x")), ShouldBeNil)

			v, err := st.Get(ctx, noun.Atom("x"))
			So(err, ShouldBeNil)
			So(v.Present, ShouldBeFalse)

			version, ok, err := st.ReadOrder(ctx, noun.Atom("x"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(version, ShouldEqual, 2)

			// History below the tombstone is intact.
			old, err := st.ReadAtOrder(ctx, noun.Atom("x"), 1)
			So(err, ShouldBeNil)
			So(old.Present, ShouldBeTrue)
			So(old.Term.Equal(noun.Uint64Atom(7)), ShouldBeTrue)
		})

		Convey("WriteAtOrder should force an explicit version", func() {
			err := st.WriteAtOrder(ctx, noun.Atom("x"), noun.Atom("replayed"), 5)
			So(err, ShouldBeNil)

			version, ok, err := st.ReadOrder(ctx, noun.Atom("x"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(version, ShouldEqual, 5)

			v, err := st.ReadAtOrder(ctx, noun.Atom("x"), 5)
			So(err, ShouldBeNil)
			So(v.Present, ShouldBeTrue)
			So(v.Term.Equal(noun.Atom("replayed")), ShouldBeTrue)
		})
	})
}

func TestGetKeyspace(t *testing.T) {
	Convey("Given a storage with list keys under a common prefix", t, func() {
		var ctx = context.Background()
		st, mgr := newTestStorage(t, nil, nil)
		Reset(func() { mgr.Close() })

		keyA1 := noun.List(noun.Atom("a"), noun.Atom("1"))
		keyA2 := noun.List(noun.Atom("a"), noun.Atom("2"))
		keyB := noun.List(noun.Atom("b"), noun.Atom("1"))

		So(st.Put(ctx, keyA1, noun.Uint64Atom(10)), ShouldBeNil)
		So(st.Put(ctx, keyA2, noun.Uint64Atom(20)), ShouldBeNil)
		So(st.Put(ctx, keyB, noun.Uint64Atom(30)), ShouldBeNil)

		Convey("The prefix scan should return exactly the matching keys", func() {
			entries, ok, err := st.GetKeyspace(ctx, []noun.Noun{noun.Atom("a")})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].Key.Equal(keyA1), ShouldBeTrue)
			So(entries[0].Term.Equal(noun.Uint64Atom(10)), ShouldBeTrue)
			So(entries[1].Key.Equal(keyA2), ShouldBeTrue)
		})

		Convey("A tombstone under the prefix should absent the whole call", func() {
			So(st.Delete(ctx, keyA1), ShouldBeNil)

			entries, ok, err := st.GetKeyspace(ctx, []noun.Noun{noun.Atom("a")})
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(entries, ShouldBeNil)

			// The sibling prefix is unaffected.
			entries, ok, err = st.GetKeyspace(ctx, []noun.Noun{noun.Atom("b")})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(len(entries), ShouldEqual, 1)
		})

		Convey("An empty match set should be ok and empty", func() {
			entries, ok, err := st.GetKeyspace(ctx, []noun.Noun{noun.Atom("zz")})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(len(entries), ShouldEqual, 0)
		})
	})
}

func TestSnapshot(t *testing.T) {
	Convey("Given a storage with one written key", t, func() {
		var ctx = context.Background()
		st, mgr := newTestStorage(t, nil, nil)
		Reset(func() { mgr.Close() })

		So(st.Put(ctx, noun.Atom("k"), noun.Atom("v1")), ShouldBeNil)

		Convey("A snapshot should pin the version map", func() {
			snap, err := st.SnapshotOrder(ctx)
			So(err, ShouldBeNil)
			So(len(snap.Entries), ShouldEqual, 1)

			version, ok := st.InSnapshot(snap, noun.Atom("k"))
			So(ok, ShouldBeTrue)
			So(version, ShouldEqual, 1)

			_, ok = st.InSnapshot(snap, noun.Atom("other"))
			So(ok, ShouldBeFalse)

			Convey("Snapshot reads should survive later writes", func() {
				So(st.Put(ctx, noun.Atom("k"), noun.Atom("v2")), ShouldBeNil)

				v, err := st.GetAtSnapshot(ctx, snap, noun.Atom("k"))
				So(err, ShouldBeNil)
				So(v.Present, ShouldBeTrue)
				So(v.Term.Equal(noun.Atom("v1")), ShouldBeTrue)

				cur, err := st.Get(ctx, noun.Atom("k"))
				So(err, ShouldBeNil)
				So(cur.Term.Equal(noun.Atom("v2")), ShouldBeTrue)
			})
		})

		Convey("PutSnapshot should store a parseable snapshot term", func() {
			So(st.PutSnapshot(ctx, noun.Atom("snap")), ShouldBeNil)

			v, err := st.Get(ctx, noun.Atom("snap"))
			So(err, ShouldBeNil)
			So(v.Present, ShouldBeTrue)

			snap, err := SnapshotFromNoun(v.Term)
			So(err, ShouldBeNil)
			So(len(snap.Entries), ShouldEqual, 1)
			So(snap.Entries[0].Key.Equal(noun.Atom("k")), ShouldBeTrue)
			So(snap.Entries[0].Version, ShouldEqual, 1)
		})
	})
}

func TestNamespaceIsolation(t *testing.T) {
	Convey("Given two handles with distinct namespaces over shared tables", t, func() {
		var ctx = context.Background()
		mgr, err := kvdb.NewSQLite(kvdb.MemoryDSN().Format())
		So(err, ShouldBeNil)
		Reset(func() { mgr.Close() })

		tables := DefaultTables("anoma")
		a, err := New(ctx, mgr, Config{Tables: tables, Namespace: noun.Namespace{[]byte("A")}})
		So(err, ShouldBeNil)
		b, err := New(ctx, mgr, Config{Tables: tables, Namespace: noun.Namespace{[]byte("B")}})
		So(err, ShouldBeNil)

		Convey("Writes under one namespace should not leak into the other", func() {
			So(a.Put(ctx, noun.Atom("k"), noun.Uint64Atom(1)), ShouldBeNil)
			So(b.Put(ctx, noun.Atom("k"), noun.Uint64Atom(2)), ShouldBeNil)

			va, err := a.Get(ctx, noun.Atom("k"))
			So(err, ShouldBeNil)
			So(va.Term.Equal(noun.Uint64Atom(1)), ShouldBeTrue)

			vb, err := b.Get(ctx, noun.Atom("k"))
			So(err, ShouldBeNil)
			So(vb.Term.Equal(noun.Uint64Atom(2)), ShouldBeTrue)
		})

		Convey("Keyspace scans should be namespace-bounded", func() {
			So(a.Put(ctx, noun.List(noun.Atom("p"), noun.Atom("1")), noun.Uint64Atom(1)), ShouldBeNil)
			So(b.Put(ctx, noun.List(noun.Atom("p"), noun.Atom("1")), noun.Uint64Atom(2)), ShouldBeNil)

			entries, ok, err := a.GetKeyspace(ctx, []noun.Noun{noun.Atom("p")})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(len(entries), ShouldEqual, 1)
			So(entries[0].Term.Equal(noun.Uint64Atom(1)), ShouldBeTrue)
		})
	})
}

func TestLifecycle(t *testing.T) {
	Convey("Given a storage with a topic attached", t, func() {
		var ctx = context.Background()
		topic := &collectTopic{}
		st, mgr := newTestStorage(t, nil, topic)
		Reset(func() { mgr.Close() })

		Convey("Setup should be idempotent", func() {
			So(st.Setup(ctx), ShouldBeNil)
			So(st.Setup(ctx), ShouldBeNil)
		})

		Convey("EnsureNew should leave empty tables behind", func() {
			So(st.Put(ctx, noun.Atom("x"), noun.Uint64Atom(1)), ShouldBeNil)
			So(st.EnsureNew(ctx), ShouldBeNil)

			v, err := st.Get(ctx, noun.Atom("x"))
			So(err, ShouldBeNil)
			So(v.Present, ShouldBeFalse)

			// Version counting restarts from scratch.
			So(st.Put(ctx, noun.Atom("x"), noun.Uint64Atom(9)), ShouldBeNil)
			version, ok, err := st.ReadOrder(ctx, noun.Atom("x"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(version, ShouldEqual, 1)
		})

		Convey("Remove should publish one deletion event per table", func() {
			So(st.Remove(ctx), ShouldBeNil)

			var ops []EventOp
			for _, ev := range topic.all() {
				ops = append(ops, ev.Op)
				So(ev.Err, ShouldBeNil)
			}
			So(ops, ShouldContain, OpDeleteQualified)
			So(ops, ShouldContain, OpDeleteOrdering)
			So(ops, ShouldContain, OpDeleteCommitments)
		})

		Convey("Writes should publish their outcome", func() {
			So(st.Put(ctx, noun.Atom("x"), noun.Uint64Atom(1)), ShouldBeNil)
			So(st.WriteAtOrder(ctx, noun.Atom("x"), noun.Uint64Atom(2), 9), ShouldBeNil)

			events := topic.all()
			So(len(events), ShouldEqual, 2)
			So(events[0].Op, ShouldEqual, OpPut)
			So(events[0].Err, ShouldBeNil)
			So(events[1].Op, ShouldEqual, OpWrite)
			So(events[1].Version, ShouldEqual, 9)
		})
	})
}
