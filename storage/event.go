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
	"github.com/Vinod798751/anoma/chainbus"
	"github.com/Vinod798751/anoma/noun"
)

// EventOp tags a published storage event.
type EventOp string

// Event operation tags.
const (
	OpPut               EventOp = "put"
	OpWrite             EventOp = "write"
	OpDeleteQualified   EventOp = "delete_qualified"
	OpDeleteOrdering    EventOp = "delete_ordering"
	OpDeleteCommitments EventOp = "delete_commitments"
)

// Event is published on the configured topic after every write and after
// each table drop of Remove; Setup publishes nothing. Err carries the
// outcome: nil for committed, the abort cause otherwise.
type Event struct {
	Op      EventOp
	Key     noun.Noun
	Value   Value
	Version uint64
	Err     error
}

// Topic is the injected publish sink. Delivery is fire-and-forget.
type Topic interface {
	Cast(ev Event)
}

// BusTopic publishes events on a chainbus topic.
type BusTopic struct {
	bus   chainbus.Bus
	topic string
}

// NewBusTopic binds topic name on bus.
func NewBusTopic(bus chainbus.Bus, topic string) *BusTopic {
	return &BusTopic{bus: bus, topic: topic}
}

// Cast implements Topic.
func (t *BusTopic) Cast(ev Event) {
	t.bus.Publish(t.topic, ev)
}
