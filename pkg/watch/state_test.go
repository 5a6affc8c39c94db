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
	"io"
	"testing"
	"time"

	"github.com/MountWatchProject/mountwatch-core/pkg/mounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource serves a fixed sequence of mount tables, one per read,
// repeating the last table once the script runs out. fd is what gets
// registered with epoll when the source is handed to a full watcher; the
// machine itself never touches it.
type scriptedSource struct {
	err    error
	tables []string
	reads  int
	fd     int
	closed bool
}

func (s *scriptedSource) ReadTable() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	i := s.reads
	if i >= len(s.tables) {
		i = len(s.tables) - 1
	}
	s.reads++
	return s.tables[i], nil
}

func (s *scriptedSource) Fd() int { return s.fd }

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

const tableBase = `sysfs /sys sysfs rw 0 0
proc /proc proc rw 0 0
tmpfs /run tmpfs rw 0 0
`

func newTestMachine(t *testing.T, src *scriptedSource, handler Handler) *machine {
	t.Helper()
	p, err := newPoller()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.close() })
	m := newMachine(src, handler, p)
	t.Cleanup(m.close)
	return m
}

func TestMachineInitialEventReportsFullTable(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{tables: []string{tableBase}}
	var events []Event
	m := newTestMachine(t, src, func(ev Event) Control {
		events = append(events, ev)
		return Continue
	})

	decision, err := m.onTrigger(false, true)
	require.NoError(t, err)
	assert.Equal(t, Continue, decision)

	require.Len(t, events, 1)
	ev := events[0]
	assert.True(t, ev.Initial)
	assert.False(t, ev.Coalesced)
	assert.Empty(t, ev.Unmounted)
	require.Len(t, ev.Mounted, 3, "initial event carries the whole table")
	assert.Equal(t, "/proc", ev.Mounted[0].MountPoint, "entries are sorted by canonical line")
	assert.Equal(t, "/sys", ev.Mounted[1].MountPoint)
	assert.Equal(t, "/run", ev.Mounted[2].MountPoint)
}

func TestMachineSwallowsTriggerWithNoChange(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{tables: []string{tableBase}}
	calls := 0
	m := newTestMachine(t, src, func(Event) Control {
		calls++
		return Continue
	})

	_, err := m.onTrigger(false, true)
	require.NoError(t, err)

	decision, err := m.onTrigger(false, false)
	require.NoError(t, err)
	assert.Equal(t, Continue, decision)
	assert.Equal(t, 1, calls, "an unchanged table must not produce a second event")
	assert.Equal(t, 2, src.reads, "the table is still reread to find that out")
}

func TestMachineDetectsUnmount(t *testing.T) {
	t.Parallel()

	withoutRun := `sysfs /sys sysfs rw 0 0
proc /proc proc rw 0 0
`
	src := &scriptedSource{tables: []string{tableBase, withoutRun}}
	var events []Event
	m := newTestMachine(t, src, func(ev Event) Control {
		events = append(events, ev)
		return Continue
	})

	_, err := m.onTrigger(false, true)
	require.NoError(t, err)
	_, err = m.onTrigger(false, false)
	require.NoError(t, err)

	require.Len(t, events, 2)
	ev := events[1]
	assert.False(t, ev.Initial)
	assert.False(t, ev.Coalesced)
	assert.Empty(t, ev.Mounted)
	require.Len(t, ev.Unmounted, 1)
	assert.Equal(t, "/run", ev.Unmounted[0].MountPoint)
}

func TestMachineCoalescingAbsorbsUntilExpiry(t *testing.T) {
	t.Parallel()

	withSda := tableBase + "/dev/sda1 /mnt/a ext4 rw 0 0\n"
	withSdb := tableBase + "/dev/sdb1 /mnt/b ext4 rw 0 0\n"
	src := &scriptedSource{tables: []string{tableBase, withSda, withSdb}}

	var events []Event
	m := newTestMachine(t, src, func(ev Event) Control {
		events = append(events, ev)
		if len(events) == 2 {
			// The delay is irrelevant here: expiry is simulated by the
			// timerExpired trigger argument, as the loop would pass it.
			return Coalesce(time.Hour)
		}
		return Continue
	})

	_, err := m.onTrigger(false, true)
	require.NoError(t, err)

	// First change opens the window.
	_, err = m.onTrigger(false, false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Len(t, events[1].Mounted, 1)
	assert.Equal(t, "/mnt/a", events[1].Mounted[0].MountPoint)
	assert.True(t, m.coalescing)

	// Changes during the window are absorbed without even reading.
	readsBefore := src.reads
	decision, err := m.onTrigger(false, false)
	require.NoError(t, err)
	assert.Equal(t, Continue, decision)
	assert.Len(t, events, 2, "no event may fire inside the window")
	assert.Equal(t, readsBefore, src.reads, "absorbed triggers must not read the table")

	// Expiry reads once and reports against the pre-window baseline: sda1
	// came and went entirely inside the window, so only sdb1 shows up.
	_, err = m.onTrigger(true, false)
	require.NoError(t, err)
	require.Len(t, events, 3)
	ev := events[2]
	assert.True(t, ev.Coalesced)
	assert.False(t, ev.Initial)
	require.Len(t, ev.Mounted, 1)
	assert.Equal(t, "/mnt/b", ev.Mounted[0].MountPoint)
	assert.Empty(t, ev.Unmounted)
	assert.False(t, m.coalescing)
}

func TestMachineCoalesceAgainKeepsOriginalBaseline(t *testing.T) {
	t.Parallel()

	one := tableBase + "/dev/sda1 /mnt/a ext4 rw 0 0\n"
	two := one + "/dev/sdb1 /mnt/b ext4 rw 0 0\n"
	three := two + "/dev/sdc1 /mnt/c ext4 rw 0 0\n"
	src := &scriptedSource{tables: []string{tableBase, one, two, three}}

	var events []Event
	m := newTestMachine(t, src, func(ev Event) Control {
		events = append(events, ev)
		if len(events) < 4 {
			return Coalesce(time.Hour)
		}
		return Continue
	})

	_, err := m.onTrigger(false, true)
	require.NoError(t, err)
	_, err = m.onTrigger(false, false)
	require.NoError(t, err)
	_, err = m.onTrigger(true, false)
	require.NoError(t, err)
	_, err = m.onTrigger(true, false)
	require.NoError(t, err)

	require.Len(t, events, 4)
	// A Coalesce answer to a window summary opens the next window without
	// moving the baseline, so each summary grows from the same origin.
	assert.Len(t, events[2].Mounted, 2)
	assert.Len(t, events[3].Mounted, 3)
}

func TestMachineStopReplacesBaseline(t *testing.T) {
	t.Parallel()

	withSda := tableBase + "/dev/sda1 /mnt/a ext4 rw 0 0\n"
	src := &scriptedSource{tables: []string{tableBase, withSda}}

	calls := 0
	m := newTestMachine(t, src, func(Event) Control {
		calls++
		if calls == 2 {
			return Stop
		}
		return Continue
	})

	_, err := m.onTrigger(false, true)
	require.NoError(t, err)
	decision, err := m.onTrigger(false, false)
	require.NoError(t, err)
	assert.Equal(t, Stop, decision, "the handler's Stop reaches the loop")

	// The baseline was still replaced: one more trigger on the same table
	// finds nothing to report.
	_, err = m.onTrigger(false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMachineTimerCreatedOnceAndRearmed(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{tables: []string{tableBase}}
	m := newTestMachine(t, src, func(Event) Control { return Continue })

	require.NoError(t, m.startCoalescing(time.Hour))
	fd := m.timerFd()
	require.GreaterOrEqual(t, fd, 0)

	require.NoError(t, m.startCoalescing(time.Minute))
	assert.Equal(t, fd, m.timerFd(), "re-arming must reuse the same timerfd")
	assert.True(t, m.coalescing)
}

func TestMachineReadFailureIsFatal(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{tables: []string{tableBase}}
	calls := 0
	m := newTestMachine(t, src, func(Event) Control {
		calls++
		return Continue
	})

	_, err := m.onTrigger(false, true)
	require.NoError(t, err)

	src.err = io.ErrUnexpectedEOF
	_, err = m.onTrigger(false, false)
	require.ErrorIs(t, err, ErrTableRead)
	assert.Equal(t, 1, calls, "no event on a failed read")
}

func TestMachineParseFailureCarriesLine(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{tables: []string{"sysfs /sys sysfs rw 0 0\nbroken line here\n"}}
	calls := 0
	m := newTestMachine(t, src, func(Event) Control {
		calls++
		return Continue
	})

	_, err := m.onTrigger(false, true)
	require.ErrorIs(t, err, ErrTableRead)
	var parseErr *mounts.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "broken line here", parseErr.Line)
	assert.Zero(t, calls, "a table that does not parse produces no event")
}
