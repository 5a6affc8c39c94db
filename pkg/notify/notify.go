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

// Package notify raises desktop notifications for mount change events over
// the session bus.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/MountWatchProject/mountwatch-core/pkg/config"
	"github.com/MountWatchProject/mountwatch-core/pkg/watch"
	"github.com/godbus/dbus/v5"
)

const (
	notifyService   = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyInterface = "org.freedesktop.Notifications"
	notifyIcon      = "drive-harddisk"

	// maxBodyLines caps the notification body for large coalescing windows.
	maxBodyLines = 6
)

// BusConnection abstracts the godbus connection for testability
type BusConnection interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Close() error
}

type sessionBus struct {
	conn *dbus.Conn
}

func (b *sessionBus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return b.conn.Object(dest, path)
}

func (b *sessionBus) Close() error {
	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("failed to close session bus: %w", err)
	}
	return nil
}

// Notifier sends one desktop notification per mount change event. It is not
// safe for concurrent use; the watch loop invokes handlers one at a time.
type Notifier struct {
	conn   BusConnection
	lastID uint32
}

type Option func(*Notifier)

// WithConnection sets a custom bus connection (for testing)
func WithConnection(conn BusConnection) Option {
	return func(n *Notifier) {
		n.conn = conn
	}
}

func New(opts ...Option) (*Notifier, error) {
	n := &Notifier{}
	for _, opt := range opts {
		opt(n)
	}

	if n.conn == nil {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		n.conn = &sessionBus{conn: conn}
	}
	return n, nil
}

// Send raises a notification for the event. Each notification replaces the
// previous one so a burst of changes does not pile up on screen.
func (n *Notifier) Send(ev watch.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.NotifyTimeout)
	defer cancel()

	obj := n.conn.Object(notifyService, dbus.ObjectPath(notifyPath))
	call := obj.CallWithContext(ctx, notifyInterface+".Notify", 0,
		config.AppName,
		n.lastID,
		notifyIcon,
		summaryText(ev),
		bodyText(ev),
		[]string{},
		map[string]dbus.Variant{},
		int32(-1),
	)
	if call.Err != nil {
		return fmt.Errorf("failed to send notification: %w", call.Err)
	}

	if err := call.Store(&n.lastID); err != nil {
		return fmt.Errorf("failed to read notification id: %w", err)
	}
	return nil
}

func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

func summaryText(ev watch.Event) string {
	if ev.Initial {
		return fmt.Sprintf("%d filesystems mounted", len(ev.Mounted))
	}

	parts := make([]string, 0, 2)
	if n := len(ev.Mounted); n > 0 {
		parts = append(parts, fmt.Sprintf("%d mounted", n))
	}
	if n := len(ev.Unmounted); n > 0 {
		parts = append(parts, fmt.Sprintf("%d unmounted", n))
	}
	return strings.Join(parts, ", ")
}

func bodyText(ev watch.Event) string {
	lines := make([]string, 0, len(ev.Mounted)+len(ev.Unmounted))
	for _, m := range ev.Mounted {
		lines = append(lines, "+ "+m.MountPoint+" ("+m.FSType+")")
	}
	for _, m := range ev.Unmounted {
		lines = append(lines, "- "+m.MountPoint+" ("+m.FSType+")")
	}

	if len(lines) > maxBodyLines {
		extra := len(lines) - maxBodyLines
		lines = append(lines[:maxBodyLines], fmt.Sprintf("and %d more", extra))
	}
	return strings.Join(lines, "\n")
}
