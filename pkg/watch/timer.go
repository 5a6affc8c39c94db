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

// coalesceTimer wraps a one-shot kernel timer whose expiry is observed as
// descriptor readiness, alongside the mount table descriptor. The timerfd
// is created once per watch and re-armed across coalescing windows.
type coalesceTimer struct {
	fd int
}

func newCoalesceTimer() (*coalesceTimer, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create timerfd: %w", err)
	}
	return &coalesceTimer{fd: fd}, nil
}

// Arm schedules a single expiry after delay, replacing any pending expiry.
// A non-positive delay is clamped to the smallest future one: an all-zero
// timer value would disarm the timerfd instead of firing immediately.
func (t *coalesceTimer) Arm(delay time.Duration) error {
	if delay <= 0 {
		delay = time.Nanosecond
	}
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(delay.Nanoseconds())}
	if err := unix.TimerfdSettime(t.fd, 0, &spec, nil); err != nil {
		return fmt.Errorf("failed to arm timerfd: %w", err)
	}
	return nil
}

// Drain consumes the expiry count so the descriptor can signal again after
// the next arm. Reading an unexpired timer is a harmless EAGAIN.
func (t *coalesceTimer) Drain() {
	var buf [8]byte
	_, _ = unix.Read(t.fd, buf[:])
}

func (t *coalesceTimer) Fd() int {
	return t.fd
}

func (t *coalesceTimer) Close() error {
	if err := unix.Close(t.fd); err != nil {
		return fmt.Errorf("failed to close timerfd: %w", err)
	}
	return nil
}
