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

package kvdb

import (
	"sync"
)

// Subscription is a per-caller stream of committed writes on one table.
// Events queue without bound on the subscriber side, so a committing
// transaction never blocks on a slow consumer and a consumer that
// subscribed before a commit never misses that commit's events.
type Subscription struct {
	table string
	hub   *Hub

	mu     sync.Mutex
	queue  []WriteEvent
	wake   chan struct{}
	closed bool

	ch   chan WriteEvent
	done chan struct{}
}

// C returns the event channel. It is closed when the subscription is
// cancelled.
func (s *Subscription) C() <-chan WriteEvent {
	return s.ch
}

// Table returns the subscribed table name.
func (s *Subscription) Table() string {
	return s.table
}

// Cancel detaches the subscription and closes its channel. Queued but
// unclaimed events are discarded. Cancel is idempotent.
func (s *Subscription) Cancel() {
	s.hub.remove(s)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
}

func (s *Subscription) push(evs []WriteEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, evs...)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.mu.Unlock()
}

// pump drains the queue into the channel, preserving order.
func (s *Subscription) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range pending {
			select {
			case s.ch <- ev:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

// Hub fans committed writes out to table subscribers. Both backends embed
// one.
type Hub struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]*Subscription)}
}

// Subscribe attaches a new subscription to table and starts its pump.
func (h *Hub) Subscribe(table string) *Subscription {
	s := &Subscription{
		table: table,
		hub:   h,
		wake:  make(chan struct{}, 1),
		ch:    make(chan WriteEvent),
		done:  make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[table] = append(h.subs[table], s)
	h.mu.Unlock()
	go s.pump()
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[s.table]
	for i, cur := range list {
		if cur == s {
			h.subs[s.table] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Publish delivers one committed transaction's writes. Events for a table
// reach all current subscribers of that table in commit order.
func (h *Hub) Publish(evs []WriteEvent) {
	if len(evs) == 0 {
		return
	}
	h.mu.Lock()
	targets := make(map[*Subscription][]WriteEvent)
	for _, ev := range evs {
		for _, s := range h.subs[ev.Table] {
			targets[s] = append(targets[s], ev)
		}
	}
	h.mu.Unlock()
	for s, list := range targets {
		s.push(list)
	}
}

// CloseAll cancels every subscription, e.g. on manager close.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []*Subscription
	for _, list := range h.subs {
		all = append(all, list...)
	}
	h.subs = make(map[string][]*Subscription)
	h.mu.Unlock()
	for _, s := range all {
		s.mu.Lock()
		if !s.closed {
			s.closed = true
			close(s.done)
		}
		s.mu.Unlock()
	}
}
