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

//go:build linux

package watch

import (
	"fmt"
	"time"

	"github.com/MountWatchProject/mountwatch-core/pkg/mounts"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// machine is the coalescing state machine. It owns the last known mount
// set, the coalescing flag, and the timer; the loop drives it exactly once
// per wake-up. Invariant: coalescing is true only while the timer exists
// and is armed, since both change together in startCoalescing.
type machine struct {
	source     tableSource
	handler    Handler
	poller     *poller
	timer      *coalesceTimer
	known      mounts.Set
	coalescing bool
}

func newMachine(source tableSource, handler Handler, p *poller) *machine {
	return &machine{
		source:  source,
		handler: handler,
		poller:  p,
		known:   mounts.Set{},
	}
}

// onTrigger handles one wake-up. timerExpired reports whether the
// coalescing timer is among what fired; initial marks the priming call
// made before the wait loop starts. The returned Control tells the loop
// whether to keep running; a non-nil error is fatal to the watch.
func (m *machine) onTrigger(timerExpired, initial bool) (Control, error) {
	coalesced := false
	if m.coalescing {
		if !timerExpired {
			// A change arriving while the timer is pending is absorbed
			// without reading the table; the post-expiry read picks up
			// its effect along with the rest of the window.
			log.Debug().Msg("mount change absorbed into coalescing window")
			return Continue, nil
		}
		m.timer.Drain()
		m.coalescing = false
		coalesced = true
	}

	text, err := m.source.ReadTable()
	if err != nil {
		return Continue, fmt.Errorf("%w: %w", ErrTableRead, err)
	}
	list, err := mounts.ParseTable(text)
	if err != nil {
		return Continue, fmt.Errorf("%w: %w", ErrTableRead, err)
	}
	current := mounts.NewSet(list)

	added, removed := mounts.Diff(m.known, current)
	if len(added) == 0 && len(removed) == 0 {
		// The table read is not atomic with the notification that
		// triggered it, so a wake-up can find nothing left to report.
		log.Warn().Msg("mount table notification but nothing changed")
		return Continue, nil
	}

	decision := m.handler(Event{
		Mounted:   added,
		Unmounted: removed,
		Coalesced: coalesced,
		Initial:   initial,
	})

	if decision.act == actionCoalesce {
		// The baseline stays at its pre-window value, so the diff after
		// the timer expires covers every change made during the window,
		// not just those after this decision.
		if err := m.startCoalescing(decision.delay); err != nil {
			return Continue, err
		}
		return decision, nil
	}

	m.known = current
	return decision, nil
}

// startCoalescing arms the timer for delay and sets the coalescing flag.
// The timerfd is created and registered with the poller on first use only.
func (m *machine) startCoalescing(delay time.Duration) error {
	if m.timer == nil {
		timer, err := newCoalesceTimer()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTimer, err)
		}
		if err := m.poller.add(timer.Fd(), unix.EPOLLIN); err != nil {
			_ = timer.Close()
			return fmt.Errorf("%w: %w", ErrTimer, err)
		}
		m.timer = timer
	}
	if err := m.timer.Arm(delay); err != nil {
		return fmt.Errorf("%w: %w", ErrTimer, err)
	}
	m.coalescing = true
	log.Debug().Dur("delay", delay).Msg("coalescing mount table changes")
	return nil
}

// timerFd returns the timer descriptor, or -1 before the timer exists.
func (m *machine) timerFd() int {
	if m.timer == nil {
		return -1
	}
	return m.timer.Fd()
}

// close releases the timer. The source and poller are owned by the loop.
func (m *machine) close() {
	if m.timer != nil {
		if err := m.timer.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close coalescing timer")
		}
	}
}
