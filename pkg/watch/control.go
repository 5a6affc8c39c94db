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

// Package watch delivers mount table change events to a handler from a
// dedicated background goroutine. Change detection uses the kernel's
// priority readiness signal on /proc/mounts, so events arrive as mounts
// happen rather than on a polling schedule. The handler's return value
// steers delivery: keep going, stop the watch, or coalesce a burst of
// changes into one summary event after a delay.
package watch

import (
	"time"

	"github.com/MountWatchProject/mountwatch-core/pkg/mounts"
)

// Event describes one observed change to the mount table. Mounted holds
// entries that appeared since the last delivered event, Unmounted entries
// that disappeared; at least one of the two is always non-empty. Coalesced
// is set when the event summarizes a whole coalescing window. Initial is
// set on the first event of a watch, which reports the full table against
// an empty baseline.
type Event struct {
	Mounted   []mounts.Mount
	Unmounted []mounts.Mount
	Coalesced bool
	Initial   bool
}

// Handler receives events on the watch goroutine. It runs synchronously:
// blocking here delays detection of further changes and of a stop request.
// To stop the watch from inside the handler, return Stop.
type Handler func(Event) Control

type action int

const (
	actionContinue action = iota
	actionStop
	actionCoalesce
)

// Control is a handler's decision about how the watch proceeds. The zero
// value is Continue.
type Control struct {
	delay time.Duration
	act   action
}

var (
	// Continue resumes normal per-change delivery.
	Continue = Control{act: actionContinue}
	// Stop terminates the watch permanently.
	Stop = Control{act: actionStop}
)

// Coalesce suppresses change delivery for the given delay, then delivers a
// single event summarizing everything that changed since the event this
// decision answered, including changes made during the delay itself.
func Coalesce(delay time.Duration) Control {
	return Control{act: actionCoalesce, delay: delay}
}
