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
	"errors"
)

var (
	// ErrBadVersion indicates a blocking read for version 0, which is never
	// a written version.
	ErrBadVersion = errors.New("version 0 is never written")
	// ErrBadShape indicates a blocking read whose key is not of the
	// [version, key | 0] form.
	ErrBadShape = errors.New("malformed qualified key")
	// ErrUnknownOp indicates a facade message of an unhandled type.
	ErrUnknownOp = errors.New("unknown storage operation")
)
