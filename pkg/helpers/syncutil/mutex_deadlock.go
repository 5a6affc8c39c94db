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

//go:build deadlock

// Package syncutil provides the mutexes used for long-held locks, with
// deadlock detection switchable in via the deadlock build tag during
// development.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockEnabled reports whether the deadlock detector build is active.
const DeadlockEnabled = true

func init() {
	deadlock.Opts.DeadlockTimeout = 30 * time.Second
}

// A Mutex is a mutual exclusion lock.
type Mutex struct {
	deadlock.Mutex
}

// An RWMutex is a reader/writer mutual exclusion lock.
type RWMutex struct {
	deadlock.RWMutex
}
