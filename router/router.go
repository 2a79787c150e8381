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

// Package router provides in-process request routing to named actors. Each
// actor owns one goroutine draining one FIFO mailbox, so calls and casts to
// the same address serialize in arrival order: a call issued after a cast
// observes the cast's effects.
package router

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/Vinod798751/anoma/utils/log"
)

var (
	// ErrNoSuchActor indicates a message to an unregistered address.
	ErrNoSuchActor = errors.New("no actor at address")
	// ErrStopped indicates the router or the target mailbox has stopped.
	ErrStopped = errors.New("router stopped")
	// ErrAddressTaken indicates a Register on an occupied address.
	ErrAddressTaken = errors.New("address already registered")
)

// Actor handles messages delivered through a mailbox. HandleCall produces a
// reply for synchronous requests; HandleCast consumes one-way messages.
type Actor interface {
	HandleCall(ctx context.Context, msg interface{}) (interface{}, error)
	HandleCast(msg interface{})
}

type envelope struct {
	ctx   context.Context
	msg   interface{}
	reply chan result // nil for casts
}

type result struct {
	value interface{}
	err   error
}

type mailbox struct {
	actor Actor
	in    chan envelope
	done  chan struct{}
}

func (mb *mailbox) run() {
	defer close(mb.done)
	for env := range mb.in {
		if env.reply == nil {
			mb.actor.HandleCast(env.msg)
			continue
		}
		value, err := mb.actor.HandleCall(env.ctx, env.msg)
		env.reply <- result{value: value, err: err}
	}
}

// Router dispatches calls and casts to registered actors by address.
type Router struct {
	mu      sync.Mutex
	actors  map[string]*mailbox
	stopped bool
}

// New returns an empty router.
func New() *Router {
	return &Router{actors: make(map[string]*mailbox)}
}

// Register starts a mailbox for actor at addr.
func (r *Router) Register(addr string, actor Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	if _, ok := r.actors[addr]; ok {
		return errors.Wrap(ErrAddressTaken, addr)
	}
	mb := &mailbox{
		actor: actor,
		in:    make(chan envelope, 64),
		done:  make(chan struct{}),
	}
	r.actors[addr] = mb
	go mb.run()
	log.WithField("addr", addr).Debug("actor registered")
	return nil
}

func (r *Router) lookup(addr string) (*mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, ErrStopped
	}
	mb, ok := r.actors[addr]
	if !ok {
		return nil, errors.Wrap(ErrNoSuchActor, addr)
	}
	return mb, nil
}

// Call sends msg to addr and waits for the reply.
func (r *Router) Call(ctx context.Context, addr string, msg interface{}) (interface{}, error) {
	mb, err := r.lookup(addr)
	if err != nil {
		return nil, err
	}
	reply := make(chan result, 1)
	select {
	case mb.in <- envelope{ctx: ctx, msg: msg, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cast sends msg to addr without waiting. Delivery order with respect to
// other messages to the same address is preserved.
func (r *Router) Cast(addr string, msg interface{}) error {
	mb, err := r.lookup(addr)
	if err != nil {
		return err
	}
	mb.in <- envelope{ctx: context.Background(), msg: msg}
	return nil
}

// Stop closes every mailbox and waits for the actors to drain.
func (r *Router) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	actors := r.actors
	r.actors = nil
	r.mu.Unlock()

	for _, mb := range actors {
		close(mb.in)
	}
	for _, mb := range actors {
		<-mb.done
	}
}
