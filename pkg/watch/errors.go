// MountWatch Core
// Copyright (c) 2026 The MountWatch Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of MountWatch Core.
//
// MountWatch Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// MountWatch Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with MountWatch Core.  If not, see <http://www.gnu.org/licenses/>.

package watch

import (
	"errors"
	"fmt"
)

// Run-time failure kinds. Each fatal loop error wraps exactly one of these,
// so callers can tell what broke with errors.Is after Stop or Join returns.
// None of them is retried: a watch whose observation channel is broken
// stops rather than silently missing events.
var (
	// ErrTableRead marks a failed read or parse of the mount table. The
	// chain still carries the underlying cause, including the
	// *mounts.ParseError for a malformed line.
	ErrTableRead = errors.New("failed to read mount table")
	// ErrTimer marks a failure to create or arm the coalescing timer.
	ErrTimer = errors.New("failed to operate coalescing timer")
	// ErrPoll marks a failure of the blocking wait for kernel events.
	// Interrupted waits are retried and never produce this.
	ErrPoll = errors.New("failed to wait for mount table events")
)

// SetupError wraps any failure during watcher construction: opening the
// mount table, creating the notification mechanism, or registering the
// table descriptor with it. When New returns one, no watch was started.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("failed to set up mount watch: %v", e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// PanicError carries a panic recovered from the handler so it surfaces as
// the watch's termination error instead of crashing the process.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("mount watch handler panicked: %v", e.Value)
}
