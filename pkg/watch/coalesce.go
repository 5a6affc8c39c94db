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

import "time"

// InitialPolicy controls how CoalesceEvery treats the initial event of a
// watch, which reports the whole mount table at once.
type InitialPolicy int

const (
	// InitialCoalesce folds the initial event into the first coalescing
	// window like any other event.
	InitialCoalesce InitialPolicy = iota
	// InitialImmediate delivers the initial event to the handler right
	// away; only subsequent changes are coalesced.
	InitialImmediate
)

// CoalesceEvery wraps handler so it observes at most one event per delay
// window. Every event that is not already the summary of a window is
// answered with a Coalesce decision without invoking handler; window
// summaries, and under InitialImmediate the initial event, pass through
// and handler's own decision stands.
func CoalesceEvery(delay time.Duration, policy InitialPolicy, handler Handler) Handler {
	return func(ev Event) Control {
		if !ev.Coalesced && !(ev.Initial && policy == InitialImmediate) {
			return Coalesce(delay)
		}
		return handler(ev)
	}
}
