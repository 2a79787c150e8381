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

	"github.com/Vinod798751/anoma/utils/log"
)

// Setup creates the three tables. Creations are independent: a failure on
// one does not stop the others, and creating an existing table succeeds, so
// Setup is idempotent. The returned error is the first failure, if any.
func (s *Storage) Setup(ctx context.Context) (err error) {
	for _, name := range []string{
		s.cfg.Tables.Order,
		s.cfg.Tables.Qualified,
		s.cfg.Tables.Commitments,
	} {
		if cerr := s.mgr.CreateTable(ctx, name); cerr != nil {
			log.WithField("table", name).WithError(cerr).Error("create table failed")
			if err == nil {
				err = cerr
			}
		}
	}
	return
}

// Remove drops the three tables and publishes a deletion event per table
// with its outcome. Dropping a missing table succeeds.
func (s *Storage) Remove(ctx context.Context) (err error) {
	drops := []struct {
		name string
		op   EventOp
	}{
		{s.cfg.Tables.Qualified, OpDeleteQualified},
		{s.cfg.Tables.Order, OpDeleteOrdering},
		{s.cfg.Tables.Commitments, OpDeleteCommitments},
	}
	for _, d := range drops {
		derr := s.mgr.DeleteTable(ctx, d.name)
		if derr != nil {
			log.WithField("table", d.name).WithError(derr).Error("delete table failed")
			if err == nil {
				err = derr
			}
		}
		s.publish(Event{Op: d.op, Err: derr})
	}
	s.cache.Purge()
	return
}

// EnsureNew drops and recreates the tables, leaving them empty. Idempotent.
func (s *Storage) EnsureNew(ctx context.Context) error {
	if err := s.Remove(ctx); err != nil {
		return err
	}
	return s.Setup(ctx)
}
