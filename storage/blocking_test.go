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
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/pkg/errors"

	"github.com/Vinod798751/anoma/noun"
)

func TestBlockingReadImmediate(t *testing.T) {
	defer leaktest.Check(t)()

	ctx := context.Background()
	st, mgr := newTestStorage(t, nil, nil)
	defer mgr.Close()

	if err := st.Put(ctx, noun.Atom("y"), noun.Atom("hello")); err != nil {
		t.Fatalf("error occurred: %v", err)
	}

	// The row exists, so the read returns without waiting.
	v, err := st.BlockingRead(ctx, noun.Qualified(1, noun.Atom("y")))
	if err != nil {
		t.Fatalf("error occurred: %v", err)
	}
	if !v.Present || !v.Term.Equal(noun.Atom("hello")) {
		t.Fatalf("unexpected result: %+v", v)
	}
}

func TestBlockingReadWaits(t *testing.T) {
	defer leaktest.Check(t)()

	ctx := context.Background()
	st, mgr := newTestStorage(t, nil, nil)
	defer mgr.Close()

	done := make(chan Value, 1)
	go func() {
		v, err := st.BlockingRead(ctx, noun.Qualified(1, noun.Atom("y")))
		if err != nil {
			t.Errorf("error occurred: %v", err)
		}
		done <- v
	}()

	// Let the reader subscribe and find nothing, then satisfy it.
	time.Sleep(50 * time.Millisecond)
	if err := st.Put(ctx, noun.Atom("y"), noun.Atom("hello")); err != nil {
		t.Fatalf("error occurred: %v", err)
	}

	select {
	case v := <-done:
		if !v.Present || !v.Term.Equal(noun.Atom("hello")) {
			t.Fatalf("unexpected result: %+v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocking read did not wake up")
	}
}

func TestBlockingReadTargetsExactVersion(t *testing.T) {
	defer leaktest.Check(t)()

	ctx := context.Background()
	st, mgr := newTestStorage(t, nil, nil)
	defer mgr.Close()

	done := make(chan Value, 1)
	go func() {
		// Wait for version 2 specifically.
		v, err := st.BlockingRead(ctx, noun.Qualified(2, noun.Atom("y")))
		if err != nil {
			t.Errorf("error occurred: %v", err)
		}
		done <- v
	}()

	time.Sleep(50 * time.Millisecond)
	// Version 1 must not wake the waiter; version 2 must.
	if err := st.Put(ctx, noun.Atom("y"), noun.Atom("first")); err != nil {
		t.Fatalf("error occurred: %v", err)
	}
	select {
	case v := <-done:
		t.Fatalf("woke up on the wrong version: %+v", v)
	case <-time.After(100 * time.Millisecond):
	}
	if err := st.Put(ctx, noun.Atom("y"), noun.Atom("second")); err != nil {
		t.Fatalf("error occurred: %v", err)
	}
	select {
	case v := <-done:
		if !v.Present || !v.Term.Equal(noun.Atom("second")) {
			t.Fatalf("unexpected result: %+v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocking read did not wake up")
	}
}

func TestBlockingReadRejections(t *testing.T) {
	defer leaktest.Check(t)()

	ctx := context.Background()
	st, mgr := newTestStorage(t, nil, nil)
	defer mgr.Close()

	// Version 0 is never written.
	_, err := st.BlockingRead(ctx, noun.Qualified(0, noun.Atom("z")))
	if errors.Cause(err) != ErrBadVersion {
		t.Fatalf("unexpected result: %v", err)
	}

	// Not a [version, key | 0] shape.
	for _, qkey := range []noun.Noun{
		noun.Atom("flat"),
		noun.Cell{Head: noun.Atom("k"), Tail: noun.Atom("t")},
		noun.Cell{
			Head: noun.Uint64Atom(1),
			Tail: noun.Cell{Head: noun.Atom("k"), Tail: noun.Atom("not-zero")},
		},
	} {
		if _, err = st.BlockingRead(ctx, qkey); errors.Cause(err) != ErrBadShape {
			t.Fatalf("%s: unexpected result: %v", qkey, err)
		}
	}
}

func TestBlockingReadCancellation(t *testing.T) {
	defer leaktest.Check(t)()

	st, mgr := newTestStorage(t, nil, nil)
	defer mgr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := st.BlockingRead(ctx, noun.Qualified(1, noun.Atom("never")))
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if errors.Cause(err) != context.Canceled {
			t.Fatalf("unexpected result: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled read did not return")
	}
}

func TestBlockingReadNamespaced(t *testing.T) {
	defer leaktest.Check(t)()

	ctx := context.Background()
	st, mgr := newTestStorage(t, noun.Namespace{[]byte("NS")}, nil)
	defer mgr.Close()

	done := make(chan Value, 1)
	go func() {
		// The caller passes the logical key; namespacing happens inside.
		v, err := st.BlockingRead(ctx, noun.Qualified(1, noun.Atom("k")))
		if err != nil {
			t.Errorf("error occurred: %v", err)
		}
		done <- v
	}()

	time.Sleep(50 * time.Millisecond)
	if err := st.Put(ctx, noun.Atom("k"), noun.Atom("v")); err != nil {
		t.Fatalf("error occurred: %v", err)
	}

	select {
	case v := <-done:
		if !v.Present || !v.Term.Equal(noun.Atom("v")) {
			t.Fatalf("unexpected result: %+v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocking read did not wake up")
	}
}
