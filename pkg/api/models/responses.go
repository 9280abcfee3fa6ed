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

package models

import (
	"time"

	"github.com/RecoverdProject/recoverd-core/pkg/engine"
)

// Every response carries Success and, on failure, ErrorMessage. Callers
// must check the flag even when the transport call itself succeeded.

type NewContextResponse struct {
	ContextID    string `json:"contextId,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Success      bool   `json:"success"`
}

type DeleteContextResponse struct {
	ErrorMessage string `json:"errorMessage,omitempty"`
	Success      bool   `json:"success"`
}

type AddImageResponse struct {
	Disk         *engine.Disk `json:"disk,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	Success      bool         `json:"success"`
}

type DisksResponse struct {
	Disks        []engine.Disk `json:"disks"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Success      bool          `json:"success"`
}

type PartitionsResponse struct {
	Partitions   []engine.Partition `json:"partitions"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	Success      bool               `json:"success"`
}

type ArchsResponse struct {
	Archs        []string `json:"archs"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	Success      bool     `json:"success"`
}

type SetArchResponse struct {
	Arch         string `json:"arch,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Success      bool   `json:"success"`
}

type FileOptsResponse struct {
	FileOptions  []engine.FileOption `json:"fileOptions"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	Success      bool                `json:"success"`
}

type SetOptionsResponse struct {
	ErrorMessage string `json:"errorMessage,omitempty"`
	Success      bool   `json:"success"`
}

type StartRecoveryResponse struct {
	RecoveryID   string `json:"recoveryId,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Success      bool   `json:"success"`
}

// RecoveryStatus is the poll snapshot for one session. StatusText stays
// human-readable; IsComplete is the terminal flag.
type RecoveryStatus struct {
	StatusText         string `json:"statusText"`
	ErrorMessage       string `json:"errorMessage,omitempty"`
	CurrentOffset      uint64 `json:"currentOffset"`
	TotalSize          uint64 `json:"totalSize"`
	FilesRecovered     uint   `json:"filesRecovered"`
	DirectoriesCreated uint   `json:"directoriesCreated"`
	IsComplete         bool   `json:"isComplete"`
}

type RecoveryStatusResponse struct {
	Status       *RecoveryStatus `json:"status,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Success      bool            `json:"success"`
}

type StopRecoveryResponse struct {
	ErrorMessage string `json:"errorMessage,omitempty"`
	Success      bool   `json:"success"`
}

type StatisticsResponse struct {
	Statistics   *engine.Statistics `json:"statistics,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	Success      bool               `json:"success"`
}

type HistoryEntry struct {
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	RecoveryID     string    `json:"recoveryId"`
	ContextID      string    `json:"contextId"`
	Device         string    `json:"device"`
	RecoveryDir    string    `json:"recoveryDir"`
	StatusText     string    `json:"statusText"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	FilesRecovered uint      `json:"filesRecovered"`
	ExitCode       int       `json:"exitCode"`
}

type HistoryResponse struct {
	Entries      []HistoryEntry `json:"entries"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Success      bool           `json:"success"`
}

type ShutdownResponse struct {
	Message        string `json:"message,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	ActiveSessions int    `json:"activeSessions"`
	Success        bool   `json:"success"`
}

type HeartbeatResponse struct {
	UptimeSeconds       uint64 `json:"uptimeSeconds"`
	ServiceUptimeSecs   uint64 `json:"serviceUptimeSeconds"`
	ActiveContextCount  int    `json:"activeContextCount"`
	ActiveRecoveryCount int    `json:"activeRecoveryCount"`
	ContextValid        *bool  `json:"contextValid,omitempty"`
	Alive               bool   `json:"alive"`
}

type VersionResponse struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Engine   string `json:"engine"`
}

// Notification payloads.

type RecoveryStartedParams struct {
	RecoveryID string `json:"recoveryId"`
	ContextID  string `json:"contextId"`
	Device     string `json:"device"`
}

type RecoveryCompletedParams struct {
	RecoveryID     string `json:"recoveryId"`
	StatusText     string `json:"statusText"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	FilesRecovered uint   `json:"filesRecovered"`
}

type RecoveryStoppedParams struct {
	RecoveryID string `json:"recoveryId"`
}
