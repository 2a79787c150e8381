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

	"github.com/pkg/errors"

	"github.com/Vinod798751/anoma/noun"
	"github.com/Vinod798751/anoma/router"
	"github.com/Vinod798751/anoma/utils/log"
)

// Request messages accepted by the storage facade. Calls await a reply;
// casts are fire-and-forget.
type (
	// StateReq asks for the storage handle (call).
	StateReq struct{}
	// GetReq reads the current value of Key (call).
	GetReq struct{ Key noun.Noun }
	// GetKeyspaceReq reads every key under Prefix (call).
	GetKeyspaceReq struct{ Prefix []noun.Noun }
	// ReadOrderReq reads the latest version of Key (call).
	ReadOrderReq struct{ Key noun.Noun }
	// ReadAtOrderReq reads the value of Key at Version (call).
	ReadAtOrderReq struct {
		Key     noun.Noun
		Version uint64
	}
	// SnapshotOrderReq captures a snapshot of the order table (call).
	SnapshotOrderReq struct{}
	// SetupReq ensures the tables exist (cast).
	SetupReq struct{}
	// RemoveReq drops the tables (cast).
	RemoveReq struct{}
	// EnsureNewReq drops then recreates the tables (cast).
	EnsureNewReq struct{}
	// PutReq writes Value as the next version of Key (cast).
	PutReq struct {
		Key   noun.Noun
		Value noun.Noun
	}
	// DeleteKeyReq writes the tombstone as the next version of Key (cast).
	DeleteKeyReq struct{ Key noun.Noun }
	// WriteAtOrderReq forces Value at Version of Key (cast).
	WriteAtOrderReq struct {
		Key     noun.Noun
		Value   noun.Noun
		Version uint64
	}
	// PutSnapshotReq stores a fresh snapshot under Key (cast).
	PutSnapshotReq struct{ Key noun.Noun }
)

// VersionReply answers ReadOrderReq.
type VersionReply struct {
	Version uint64
	OK      bool
}

// KeyspaceReply answers GetKeyspaceReq. OK false reports the all-or-nothing
// absence.
type KeyspaceReply struct {
	Entries []Entry
	OK      bool
}

// Server is the storage facade actor: one mailbox serializes every request
// against one handle, so a call issued after a cast observes the cast's
// effects. Blocking reads do not go through the mailbox — they would wedge
// it for an unbounded time — and instead run directly against the table
// manager.
type Server struct {
	st *Storage
}

// NewServer wraps st as a facade actor.
func NewServer(st *Storage) *Server {
	return &Server{st: st}
}

// Serve registers the facade at addr on r.
func (srv *Server) Serve(r *router.Router, addr string) error {
	return r.Register(addr, srv)
}

// HandleCall implements router.Actor.
func (srv *Server) HandleCall(ctx context.Context, msg interface{}) (interface{}, error) {
	switch req := msg.(type) {
	case StateReq:
		return srv.st, nil
	case GetReq:
		v, err := srv.st.Get(ctx, req.Key)
		if err != nil {
			// Conservative: a read that fails transactionally is absent.
			return Absent, nil
		}
		return v, nil
	case GetKeyspaceReq:
		entries, ok, err := srv.st.GetKeyspace(ctx, req.Prefix)
		if err != nil {
			return KeyspaceReply{OK: false}, nil
		}
		return KeyspaceReply{Entries: entries, OK: ok}, nil
	case ReadOrderReq:
		version, ok, err := srv.st.ReadOrder(ctx, req.Key)
		if err != nil {
			return nil, err
		}
		return VersionReply{Version: version, OK: ok}, nil
	case ReadAtOrderReq:
		return srv.st.ReadAtOrder(ctx, req.Key, req.Version)
	case SnapshotOrderReq:
		return srv.st.SnapshotOrder(ctx)
	default:
		return nil, errors.Wrapf(ErrUnknownOp, "%T", msg)
	}
}

// HandleCast implements router.Actor. Cast outcomes never reach the caller:
// writes and table drops report theirs on the publish topic, and every
// failure is logged.
func (srv *Server) HandleCast(msg interface{}) {
	ctx := context.Background()
	var err error
	switch req := msg.(type) {
	case SetupReq:
		err = srv.st.Setup(ctx)
	case RemoveReq:
		err = srv.st.Remove(ctx)
	case EnsureNewReq:
		err = srv.st.EnsureNew(ctx)
	case PutReq:
		err = srv.st.Put(ctx, req.Key, req.Value)
	case DeleteKeyReq:
		err = srv.st.Delete(ctx, req.Key)
	case WriteAtOrderReq:
		err = srv.st.WriteAtOrder(ctx, req.Key, req.Value, req.Version)
	case PutSnapshotReq:
		err = srv.st.PutSnapshot(ctx, req.Key)
	default:
		err = errors.Wrapf(ErrUnknownOp, "%T", msg)
	}
	if err != nil {
		log.WithFields(srv.st.logFields()).WithError(err).
			Warnf("storage cast %T failed", msg)
	}
}

// BlockingRead resolves the storage handle through a synchronous state call
// on r, then waits on the table manager directly, outside the facade
// mailbox.
func BlockingRead(ctx context.Context, r *router.Router, addr string, qkey noun.Noun) (Value, error) {
	reply, err := r.Call(ctx, addr, StateReq{})
	if err != nil {
		return Absent, err
	}
	st, ok := reply.(*Storage)
	if !ok {
		return Absent, errors.Wrap(ErrUnknownOp, "state call returned no handle")
	}
	return st.BlockingRead(ctx, qkey)
}
