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

package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/MountWatchProject/mountwatch-core/pkg/helpers/syncutil"
	"github.com/MountWatchProject/mountwatch-core/pkg/mounts"
	"github.com/MountWatchProject/mountwatch-core/pkg/watch"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

// Queries go here to keep the interface clean

//go:embed migrations/*.sql
var migrationFiles embed.FS

// goose keeps its base filesystem and dialect in package globals, so
// migrations from concurrently opened journals must not interleave.
var migrationMutex syncutil.Mutex

// gooseZerologAdapter implements goose.Logger interface to redirect
// goose output to zerolog instead of stdout
type gooseZerologAdapter struct{}

func (*gooseZerologAdapter) Printf(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (*gooseZerologAdapter) Fatalf(format string, v ...any) {
	log.Fatal().Msgf(format, v...)
}

func sqlMigrateUp(db *sql.DB) error {
	migrationMutex.Lock()
	defer migrationMutex.Unlock()

	goose.SetLogger(&gooseZerologAdapter{})
	goose.SetBaseFS(migrationFiles)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("error setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("error running migrations up: %w", err)
	}
	return nil
}

func sqlRecordEvent(ctx context.Context, db *sql.DB, now time.Time, ev watch.Event) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin journal transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		insert into Events(
			Time, Action, Spec, MountPoint, FSType, Options, Coalesced, IsInitial
		) values (?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("failed to prepare event insert statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	insert := func(action string, m mounts.Mount) error {
		_, execErr := stmt.ExecContext(ctx,
			now.Unix(),
			action,
			m.Spec,
			m.MountPoint,
			m.FSType,
			strings.Join(m.Options, ","),
			ev.Coalesced,
			ev.Initial,
		)
		return execErr
	}

	for _, m := range ev.Mounted {
		if err := insert(ActionMount, m); err != nil {
			rollback(tx)
			return fmt.Errorf("failed to execute event insert: %w", err)
		}
	}
	for _, m := range ev.Unmounted {
		if err := insert(ActionUnmount, m); err != nil {
			rollback(tx)
			return fmt.Errorf("failed to execute event insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit journal transaction: %w", err)
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		log.Warn().Err(err).Msg("failed to roll back journal transaction")
	}
}

func sqlHistory(ctx context.Context, db *sql.DB, limit int) ([]Entry, error) {
	list := make([]Entry, 0, limit)

	q, err := db.PrepareContext(ctx, `
		select
		DBID, Time, Action, Spec, MountPoint, FSType, Options, Coalesced, IsInitial
		from Events
		order by DBID DESC
		limit ?;
	`)
	if err != nil {
		return list, fmt.Errorf("failed to prepare history query statement: %w", err)
	}
	defer func() {
		if closeErr := q.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	rows, err := q.QueryContext(ctx, limit)
	if err != nil {
		return list, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql rows")
		}
	}()

	for rows.Next() {
		row := Entry{}
		var timeInt int64
		scanErr := rows.Scan(
			&row.DBID,
			&timeInt,
			&row.Action,
			&row.Spec,
			&row.MountPoint,
			&row.FSType,
			&row.Options,
			&row.Coalesced,
			&row.Initial,
		)
		if scanErr != nil {
			return list, fmt.Errorf("failed to scan history row: %w", scanErr)
		}
		row.Time = time.Unix(timeInt, 0)
		list = append(list, row)
	}
	if err = rows.Err(); err != nil {
		return list, fmt.Errorf("error iterating history rows: %w", err)
	}
	return list, nil
}

func sqlPrune(ctx context.Context, db *sql.DB, keep int) (int64, error) {
	stmt, err := db.PrepareContext(ctx, `
		DELETE FROM Events WHERE DBID NOT IN (
			SELECT DBID FROM Events ORDER BY DBID DESC LIMIT ?
		);
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare prune statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	result, err := stmt.ExecContext(ctx, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to execute prune: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	// Vacuum to reclaim disk space after cleanup
	if rowsAffected > 0 {
		if err := sqlVacuum(ctx, db); err != nil {
			return rowsAffected, fmt.Errorf("prune succeeded but vacuum failed: %w", err)
		}
	}

	return rowsAffected, nil
}

func sqlVacuum(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `vacuum;`)
	if err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
