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

// Package journal persists mount change events to a local SQLite database
// so that changes which happened while nobody was looking can still be
// inspected later.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MountWatchProject/mountwatch-core/pkg/config"
	"github.com/MountWatchProject/mountwatch-core/pkg/helpers/syncutil"
	"github.com/MountWatchProject/mountwatch-core/pkg/watch"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotOpen = errors.New("journal is not connected")

const sqliteConnParams = "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"

const (
	ActionMount   = "mount"
	ActionUnmount = "unmount"
)

// Entry is one journaled mount change: a single mount or unmount that was
// part of a delivered event.
type Entry struct {
	Time       time.Time
	Action     string
	Spec       string
	MountPoint string
	FSType     string
	Options    string
	DBID       int64
	Coalesced  bool
	Initial    bool
}

type Journal struct {
	sql   *sql.DB
	clock clockwork.Clock
	ctx   context.Context
	mu    syncutil.Mutex
}

// Open opens (creating on first use) the journal database under dir.
func Open(ctx context.Context, dir string) (*Journal, error) {
	j := &Journal{
		sql:   nil,
		clock: clockwork.NewRealClock(),
		ctx:   ctx,
	}

	exists := true
	dbPath := filepath.Join(dir, config.JournalFile)
	if _, err := os.Stat(dbPath); err != nil {
		exists = false
		if mkdirErr := os.MkdirAll(filepath.Dir(dbPath), 0o750); mkdirErr != nil {
			return nil, fmt.Errorf("failed to create directory for journal: %w", mkdirErr)
		}
	}

	sqlInstance, err := sql.Open("sqlite3", dbPath+sqliteConnParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	j.sql = sqlInstance

	if !exists {
		if err := j.MigrateUp(); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (j *Journal) MigrateUp() error {
	if j.sql == nil {
		return ErrNotOpen
	}
	return sqlMigrateUp(j.sql)
}

// Record writes one journal row per mount and unmount in the event, all
// inside a single transaction stamped with the same time.
func (j *Journal) Record(ev watch.Event) error {
	if j.sql == nil {
		return ErrNotOpen
	}
	if len(ev.Mounted) == 0 && len(ev.Unmounted) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return sqlRecordEvent(j.ctx, j.sql, j.clock.Now(), ev)
}

// History returns up to limit journal entries, newest first.
func (j *Journal) History(limit int) ([]Entry, error) {
	if j.sql == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = 25
	}
	return sqlHistory(j.ctx, j.sql, limit)
}

// Prune deletes all but the newest keep entries and reports how many rows
// were removed. A non-positive keep is a no-op.
func (j *Journal) Prune(keep int) (int64, error) {
	if j.sql == nil {
		return 0, ErrNotOpen
	}
	if keep <= 0 {
		return 0, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return sqlPrune(j.ctx, j.sql, keep)
}

func (j *Journal) Close() error {
	if j.sql == nil {
		return nil
	}
	if err := j.sql.Close(); err != nil {
		return fmt.Errorf("failed to close journal database: %w", err)
	}
	return nil
}
