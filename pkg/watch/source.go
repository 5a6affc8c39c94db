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
	"io"
	"os"
)

// mountTablePath is the kernel's live mount table. Its descriptor raises a
// priority readiness event whenever the mount set changes.
const mountTablePath = "/proc/mounts"

// tableSource is where the watch reads the mount table from. Fd exposes
// the descriptor registered for change notifications; ReadTable returns
// the full current table text.
type tableSource interface {
	ReadTable() (string, error)
	Fd() int
	Close() error
}

// procMounts reads /proc/mounts, rewinding the shared descriptor before
// every read.
type procMounts struct {
	file *os.File
}

func openProcMounts() (*procMounts, error) {
	file, err := os.Open(mountTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", mountTablePath, err)
	}
	return &procMounts{file: file}, nil
}

func (p *procMounts) ReadTable() (string, error) {
	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to seek %s: %w", mountTablePath, err)
	}
	data, err := io.ReadAll(p.file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", mountTablePath, err)
	}
	return string(data), nil
}

func (p *procMounts) Fd() int {
	return int(p.file.Fd())
}

func (p *procMounts) Close() error {
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", mountTablePath, err)
	}
	return nil
}
