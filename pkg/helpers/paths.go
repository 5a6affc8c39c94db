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

package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MountWatchProject/mountwatch-core/pkg/config"
	"github.com/adrg/xdg"
)

// userDirCache caches the result of HasUserDir so the filesystem is only
// probed once. Safe for concurrent use.
var (
	userDirCache       string
	userDirCacheExists bool
	userDirOnce        sync.Once
)

// HasUserDir checks for a "user" directory next to the binary and returns
// its absolute path. When present it holds both config and data, making
// the install portable.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		exe, err := os.Executable()
		if err != nil {
			return
		}

		userDir := filepath.Join(filepath.Dir(exe), config.UserDir)
		info, err := os.Stat(userDir)
		if err != nil || !info.IsDir() {
			return
		}

		userDirCache = userDir
		userDirCacheExists = true
	})

	return userDirCache, userDirCacheExists
}

// ConfigDir returns the directory holding the config file, creating it on
// first use.
func ConfigDir() (string, error) {
	dir, ok := HasUserDir()
	if !ok {
		dir = filepath.Join(xdg.ConfigHome, config.AppName)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// DataDir returns the directory holding the journal and log files,
// creating it on first use.
func DataDir() (string, error) {
	dir, ok := HasUserDir()
	if !ok {
		dir = filepath.Join(xdg.DataHome, config.AppName)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}
