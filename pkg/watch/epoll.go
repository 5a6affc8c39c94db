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

	"golang.org/x/sys/unix"
)

// poller multiplexes readiness of the mount table descriptor and the
// coalescing timer over one epoll instance. Registrations are
// edge-triggered: while a coalescing window swallows wake-ups without
// reading the table, a level-triggered descriptor would stay ready and
// spin the loop.
type poller struct {
	epfd int
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create epoll instance: %w", err)
	}
	return &poller{epfd: epfd}, nil
}

// add registers fd for the given readiness events, edge-triggered. The fd
// itself doubles as the identifying token in reported events.
func (p *poller) add(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("failed to register fd %d with epoll: %w", fd, err)
	}
	return nil
}

// wait blocks until readiness or timeout, filling events and returning how
// many fired; zero means the timeout elapsed. Interrupted waits are
// retried with the full timeout rather than reported.
func (p *poller) wait(events []unix.EpollEvent, timeout time.Duration) (int, error) {
	for {
		n, err := unix.EpollWait(p.epfd, events, int(timeout.Milliseconds()))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("epoll_wait failed: %w", err)
		}
		return n, nil
	}
}

func (p *poller) close() error {
	if err := unix.Close(p.epfd); err != nil {
		return fmt.Errorf("failed to close epoll instance: %w", err)
	}
	return nil
}
