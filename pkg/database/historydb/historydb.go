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

// Package historydb persists finished recovery sessions to sqlite so
// past runs survive a daemon restart.
package historydb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/RecoverdProject/recoverd-core/pkg/database"
	"github.com/RecoverdProject/recoverd-core/pkg/helpers"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNullSQL = errors.New("HistoryDB is not connected")

const sqliteConnParams = "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"

type HistoryDB struct {
	sql *sql.DB
	ctx context.Context
}

func OpenHistoryDB(ctx context.Context) (*HistoryDB, error) {
	db := &HistoryDB{sql: nil, ctx: ctx}
	err := db.Open()
	return db, err
}

func (db *HistoryDB) Open() error {
	dbPath := db.GetDBPath()
	if _, err := os.Stat(dbPath); err != nil {
		if mkdirErr := os.MkdirAll(filepath.Dir(dbPath), 0o750); mkdirErr != nil {
			return fmt.Errorf("failed to create directory for database: %w", mkdirErr)
		}
	}
	sqlInstance, err := sql.Open("sqlite3", dbPath+sqliteConnParams)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.sql = sqlInstance
	return db.MigrateUp()
}

func (db *HistoryDB) GetDBPath() string {
	return filepath.Join(helpers.DataDir(), config.HistoryDbFile)
}

func (db *HistoryDB) MigrateUp() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlMigrateUp(db.sql)
}

func (db *HistoryDB) AddRecovery(entry database.RecoveryRecord) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlAddRecovery(db.ctx, db.sql, entry)
}

func (db *HistoryDB) GetRecoveries(limit int) ([]database.RecoveryRecord, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlGetRecoveries(db.ctx, db.sql, limit)
}

func (db *HistoryDB) CleanupRecoveries(retentionDays int) (int64, error) {
	if db.sql == nil {
		return 0, ErrNullSQL
	}
	return sqlCleanupRecoveries(db.ctx, db.sql, retentionDays)
}

func (db *HistoryDB) Vacuum() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlVacuum(db.ctx, db.sql)
}

func (db *HistoryDB) Close() error {
	if db.sql == nil {
		return nil
	}
	err := db.sql.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SetSQLForTesting injects a sql.DB instance so tests can run against
// in-memory databases or sqlmock.
func (db *HistoryDB) SetSQLForTesting(ctx context.Context, sqlDB *sql.DB, migrate bool) error {
	db.sql = sqlDB
	db.ctx = ctx
	if migrate {
		return db.MigrateUp()
	}
	return nil
}
