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

package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/MountWatchProject/mountwatch-core/pkg/config"
	"github.com/MountWatchProject/mountwatch-core/pkg/mounts"
	"github.com/MountWatchProject/mountwatch-core/pkg/watch"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBusObject implements dbus.BusObject and records Notify calls.
type recordingBusObject struct {
	calls   [][]any
	methods []string
	nextID  uint32
	callErr error
}

func (r *recordingBusObject) Call(method string, _ dbus.Flags, args ...any) *dbus.Call {
	r.methods = append(r.methods, method)
	r.calls = append(r.calls, args)
	if r.callErr != nil {
		return &dbus.Call{Err: r.callErr}
	}
	r.nextID++
	return &dbus.Call{Body: []any{r.nextID}}
}

func (r *recordingBusObject) CallWithContext(_ context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call {
	return r.Call(method, flags, args...)
}

func (r *recordingBusObject) Go(method string, flags dbus.Flags, _ chan *dbus.Call, args ...any) *dbus.Call {
	return r.Call(method, flags, args...)
}

func (r *recordingBusObject) GoWithContext(_ context.Context, method string, flags dbus.Flags, _ chan *dbus.Call, args ...any) *dbus.Call {
	return r.Call(method, flags, args...)
}

func (*recordingBusObject) AddMatchSignal(_, _ string, _ ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (*recordingBusObject) RemoveMatchSignal(_, _ string, _ ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (*recordingBusObject) GetProperty(string) (dbus.Variant, error) {
	return dbus.Variant{}, nil
}

func (*recordingBusObject) StoreProperty(string, any) error { return nil }

func (*recordingBusObject) SetProperty(string, any) error { return nil }

func (*recordingBusObject) Destination() string { return notifyService }

func (*recordingBusObject) Path() dbus.ObjectPath { return dbus.ObjectPath(notifyPath) }

// recordingBus implements BusConnection around a single recording object.
type recordingBus struct {
	obj    *recordingBusObject
	closed bool
}

func (b *recordingBus) Object(string, dbus.ObjectPath) dbus.BusObject { return b.obj }

func (b *recordingBus) Close() error {
	b.closed = true
	return nil
}

func changeEvent() watch.Event {
	return watch.Event{
		Mounted: []mounts.Mount{{
			Spec:       "/dev/sda1",
			MountPoint: "/mnt/data",
			FSType:     "ext4",
			Options:    []string{"rw"},
		}},
		Unmounted: []mounts.Mount{{
			Spec:       "/dev/sdb1",
			MountPoint: "/mnt/backup",
			FSType:     "xfs",
			Options:    []string{"ro"},
		}},
	}
}

func TestSend_CallsNotify(t *testing.T) {
	t.Parallel()

	bus := &recordingBus{obj: &recordingBusObject{}}
	n, err := New(WithConnection(bus))
	require.NoError(t, err)

	err = n.Send(changeEvent())
	require.NoError(t, err)

	require.Len(t, bus.obj.methods, 1)
	assert.Equal(t, notifyInterface+".Notify", bus.obj.methods[0])

	args := bus.obj.calls[0]
	require.Len(t, args, 8)
	assert.Equal(t, config.AppName, args[0])
	assert.Equal(t, uint32(0), args[1], "first notification replaces nothing")
	assert.Equal(t, "1 mounted, 1 unmounted", args[3])
	assert.Equal(t, "+ /mnt/data (ext4)\n- /mnt/backup (xfs)", args[4])
}

func TestSend_ReplacesPreviousNotification(t *testing.T) {
	t.Parallel()

	bus := &recordingBus{obj: &recordingBusObject{}}
	n, err := New(WithConnection(bus))
	require.NoError(t, err)

	require.NoError(t, n.Send(changeEvent()))
	require.NoError(t, n.Send(changeEvent()))

	require.Len(t, bus.obj.calls, 2)
	assert.Equal(t, uint32(0), bus.obj.calls[0][1])
	assert.Equal(t, uint32(1), bus.obj.calls[1][1],
		"second notification should replace the id returned by the first")
}

func TestSend_BusError(t *testing.T) {
	t.Parallel()

	bus := &recordingBus{obj: &recordingBusObject{callErr: dbus.ErrMsgNoObject}}
	n, err := New(WithConnection(bus))
	require.NoError(t, err)

	err = n.Send(changeEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send notification")
}

func TestClose_ClosesConnection(t *testing.T) {
	t.Parallel()

	bus := &recordingBus{obj: &recordingBusObject{}}
	n, err := New(WithConnection(bus))
	require.NoError(t, err)

	require.NoError(t, n.Close())
	assert.True(t, bus.closed)
}

func TestSummaryText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		expected string
		event    watch.Event
	}{
		{
			name: "initial event counts the whole table",
			event: watch.Event{
				Initial: true,
				Mounted: make([]mounts.Mount, 12),
			},
			expected: "12 filesystems mounted",
		},
		{
			name: "mount only",
			event: watch.Event{
				Mounted: make([]mounts.Mount, 2),
			},
			expected: "2 mounted",
		},
		{
			name: "unmount only",
			event: watch.Event{
				Unmounted: make([]mounts.Mount, 1),
			},
			expected: "1 unmounted",
		},
		{
			name: "both directions",
			event: watch.Event{
				Mounted:   make([]mounts.Mount, 3),
				Unmounted: make([]mounts.Mount, 1),
			},
			expected: "3 mounted, 1 unmounted",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, summaryText(tt.event))
		})
	}
}

func TestBodyText_CapsLongEvents(t *testing.T) {
	t.Parallel()

	ev := watch.Event{}
	for i := 0; i < 9; i++ {
		ev.Mounted = append(ev.Mounted, mounts.Mount{
			MountPoint: "/mnt/disk" + string(rune('a'+i)),
			FSType:     "ext4",
		})
	}

	body := bodyText(ev)
	lines := strings.Split(body, "\n")

	assert.Len(t, lines, maxBodyLines+1, "capped body is the cap plus one summary line")
	assert.Contains(t, body, "+ /mnt/diska (ext4)")
	assert.Equal(t, "and 3 more", lines[len(lines)-1])
	assert.NotContains(t, body, "/mnt/diskh", "entries past the cap should not be listed")
}
