// Recoverd
// Copyright (c) 2025 The Recoverd Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Recoverd.
//
// Recoverd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Recoverd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Recoverd.  If not, see <http://www.gnu.org/licenses/>.

package historydb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/RecoverdProject/recoverd-core/pkg/database"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func sqlMigrateUp(db *sql.DB) error {
	if err := database.MigrateUp(db, migrationFiles, "migrations"); err != nil {
		return fmt.Errorf("failed to run history database migrations: %w", err)
	}
	return nil
}

func sqlVacuum(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "vacuum;")
	if err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

//nolint:gocritic // struct passed for DB insertion
func sqlAddRecovery(ctx context.Context, db *sql.DB, entry database.RecoveryRecord) error {
	stmt, err := db.PrepareContext(ctx, `
		insert into Recoveries(
			RecoveryID, ContextID, Device, RecoveryDir, StatusText,
			ErrorMessage, FilesRecovered, ExitCode, StartedAt, FinishedAt
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare recovery insert statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()
	_, err = stmt.ExecContext(ctx,
		entry.RecoveryID,
		entry.ContextID,
		entry.Device,
		entry.RecoveryDir,
		entry.StatusText,
		entry.ErrorMessage,
		entry.FilesRecovered,
		entry.ExitCode,
		entry.StartedAt.Unix(),
		entry.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to execute recovery insert: %w", err)
	}
	return nil
}

func sqlGetRecoveries(ctx context.Context, db *sql.DB, limit int) ([]database.RecoveryRecord, error) {
	list := make([]database.RecoveryRecord, 0, limit)

	rows, err := db.QueryContext(ctx, `
		select DBID, RecoveryID, ContextID, Device, RecoveryDir, StatusText,
			ErrorMessage, FilesRecovered, ExitCode, StartedAt, FinishedAt
		from Recoveries
		order by DBID desc
		limit ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recoveries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql rows")
		}
	}()

	for rows.Next() {
		var row database.RecoveryRecord
		var startedAt, finishedAt int64
		err = rows.Scan(
			&row.DBID,
			&row.RecoveryID,
			&row.ContextID,
			&row.Device,
			&row.RecoveryDir,
			&row.StatusText,
			&row.ErrorMessage,
			&row.FilesRecovered,
			&row.ExitCode,
			&startedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recovery row: %w", err)
		}
		row.StartedAt = time.Unix(startedAt, 0)
		row.FinishedAt = time.Unix(finishedAt, 0)
		list = append(list, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading recovery rows: %w", err)
	}

	return list, nil
}

func sqlCleanupRecoveries(ctx context.Context, db *sql.DB, retentionDays int) (int64, error) {
	cutoffTime := time.Now().AddDate(0, 0, -retentionDays).Unix()

	stmt, err := db.PrepareContext(ctx, `DELETE FROM Recoveries WHERE FinishedAt < ?;`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare recovery cleanup statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	result, err := stmt.ExecContext(ctx, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to execute recovery cleanup: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	// Reclaim disk space after deleting rows.
	if rowsAffected > 0 {
		if err := sqlVacuum(ctx, db); err != nil {
			return rowsAffected, fmt.Errorf("cleanup succeeded but vacuum failed: %w", err)
		}
	}

	return rowsAffected, nil
}
