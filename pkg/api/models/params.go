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

// RecoveryOptions is the carver configuration carried by recoveries.start
// and options.set. ParanoidMode ranges 0-2.
type RecoveryOptions struct {
	EnabledFileTypes   []string `json:"enabledFileTypes,omitempty"`
	DisabledFileTypes  []string `json:"disabledFileTypes,omitempty"`
	ParanoidMode       int      `json:"paranoidMode"        validate:"min=0,max=2"`
	Blocksize          uint     `json:"blocksize,omitempty"`
	KeepCorruptedFiles bool     `json:"keepCorruptedFiles"`
	EnableExt2Opt      bool     `json:"enableExt2Optimization"`
	ExpertMode         bool     `json:"expertMode"`
	LowMemoryMode      bool     `json:"lowMemoryMode"`
	VerboseOutput      bool     `json:"verboseOutput"`
	CarveFreeSpaceOnly bool     `json:"carveFreeSpaceOnly"`
}

type NewContextParams struct {
	Args    []string `json:"args,omitempty"`
	Device  string   `json:"device,omitempty"`
	LogMode int      `json:"logMode,omitempty"  validate:"min=0,max=2"`
	LogFile string   `json:"logFile,omitempty"`
}

type DeleteContextParams struct {
	ContextID string `json:"contextId" validate:"required"`
}

type AddImageParams struct {
	ContextID string `json:"contextId" validate:"required"`
	ImageFile string `json:"imageFile" validate:"required,abspath"`
}

type DisksParams struct {
	ContextID string `json:"contextId" validate:"required"`
}

type PartitionsParams struct {
	ContextID string `json:"contextId" validate:"required"`
	Device    string `json:"device"    validate:"required"`
}

type ArchsParams struct {
	ContextID string `json:"contextId" validate:"required"`
}

type SetArchParams struct {
	ContextID string `json:"contextId" validate:"required"`
	Arch      string `json:"arch"`
}

type FileOptsParams struct {
	ContextID string `json:"contextId" validate:"required"`
}

type SetOptionsParams struct {
	Options   RecoveryOptions `json:"options"`
	ContextID string          `json:"contextId" validate:"required"`
}

type StartRecoveryParams struct {
	Options RecoveryOptions `json:"options"`
	// PartitionOrder below zero means carve the whole disk.
	PartitionOrder int    `json:"partitionOrder"`
	ContextID      string `json:"contextId"             validate:"required"`
	Device         string `json:"device"                validate:"required,abspath"`
	RecoveryDir    string `json:"recoveryDir,omitempty" validate:"omitempty,abspath"`
}

type RecoveryStatusParams struct {
	RecoveryID string `json:"recoveryId" validate:"required"`
}

type StopRecoveryParams struct {
	RecoveryID string `json:"recoveryId" validate:"required"`
}

type StatisticsParams struct {
	ContextID string `json:"contextId" validate:"required"`
}

type HistoryParams struct {
	Limit int `json:"limit,omitempty" validate:"min=0,max=1000"`
}

type ShutdownParams struct {
	Reason string `json:"reason,omitempty"`
	Force  bool   `json:"force"`
}

type HeartbeatParams struct {
	ContextID string `json:"contextId,omitempty"`
}
