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

package database

import "time"

// Database bundles the storage backends handed to API method handlers.
// The interface lives here so handlers don't import the concrete sqlite
// package.
type Database struct {
	HistoryDB HistoryDBI
}

// RecoveryRecord is one persisted finished recovery.
type RecoveryRecord struct {
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	RecoveryID     string    `json:"recoveryId"`
	ContextID      string    `json:"contextId"`
	Device         string    `json:"device"`
	RecoveryDir    string    `json:"recoveryDir"`
	StatusText     string    `json:"statusText"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	DBID           int64     `db:"DBID"                   json:"id"`
	FilesRecovered uint      `json:"filesRecovered"`
	ExitCode       int       `json:"exitCode"`
}

type HistoryDBI interface {
	AddRecovery(entry RecoveryRecord) error
	GetRecoveries(limit int) ([]RecoveryRecord, error)
	CleanupRecoveries(retentionDays int) (int64, error)
	Close() error
}
