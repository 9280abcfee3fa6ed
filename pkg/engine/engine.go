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

// Package engine defines the boundary between the session manager and the
// underlying carving library. The production implementation binds to
// libphotorec, tests use a scripted mock, and builds without the library
// get a stub that refuses to start recoveries.
package engine

import "errors"

var ErrUnavailable = errors.New("recovery engine not available in this build")

// Disk describes a device or image file the engine can carve.
type Disk struct {
	Device      string `json:"device"`
	Description string `json:"description"`
	Model       string `json:"model,omitempty"`
	Serial      string `json:"serial,omitempty"`
	Size        uint64 `json:"size"`
	SectorSize  uint   `json:"sectorSize"`
}

// Partition describes a single entry in a disk's partition table.
type Partition struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	FSType   string `json:"fsType"`
	Order    int    `json:"order"`
	Offset   uint64 `json:"offset"`
	Size     uint64 `json:"size"`
	IsKnown  bool   `json:"isKnown"`
	Bootable bool   `json:"bootable"`
}

// FileOption is the per-format enable switch for the carver.
type FileOption struct {
	Extension   string `json:"extension"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// Options mirrors the carver's tunables. Paranoid ranges 0-2, the rest
// are plain switches.
type Options struct {
	Paranoid          int  `json:"paranoid"`
	KeepCorruptedFile bool `json:"keepCorruptedFile"`
	ModeExt2          bool `json:"modeExt2"`
	Expert            bool `json:"expert"`
	LowMem            bool `json:"lowMem"`
	Verbose           bool `json:"verbose"`
	Blocksize         uint `json:"blocksize"`
}

// FileTypeStat is the recovered/failed tally for one file format.
type FileTypeStat struct {
	Extension    string `json:"extension"`
	Recovered    uint   `json:"recovered"`
	NotRecovered uint   `json:"notRecovered"`
}

// Statistics is a point-in-time snapshot of a running or finished
// recovery, read without interrupting the carve.
type Statistics struct {
	Phase          string         `json:"phase"`
	Pass           uint           `json:"pass"`
	FilesRecovered uint           `json:"filesRecovered"`
	Offset         uint64         `json:"offset"`
	DirNum         uint           `json:"dirNum"`
	ByType         []FileTypeStat `json:"byType,omitempty"`
}

// Context is a single engine instance bound to one recovery context.
// It is not safe for concurrent use except for Abort and Statistics,
// which may be called while Run is in progress.
type Context interface {
	// ChangeDisk selects the target device or image and loads its
	// partition table.
	ChangeDisk(device string) (*Disk, error)

	// ChangeArch forces a partition table architecture; empty means
	// auto-detect. Returns the name of the selected architecture.
	ChangeArch(name string) (string, error)

	// ChangePart selects the partition to carve by its order number.
	// A negative order means whole disk.
	ChangePart(order int, modeExt2, carveFreeSpaceOnly bool) (*Partition, error)

	// ChangeOutputDir sets where recovered files are written.
	ChangeOutputDir(dir string) error

	// ChangeOptions applies the carver tunables.
	ChangeOptions(opts Options) error

	// ChangeFileOpts enables and disables formats by extension. Either
	// slice may be empty.
	ChangeFileOpts(enable, disable []string) error

	// ChangeAllFileOpts flips every format on or off at once.
	ChangeAllFileOpts(enable bool) error

	// FileOptions lists every supported format and its current state.
	FileOptions() ([]FileOption, error)

	// Disks lists the devices discovered at context init, plus any
	// images added since.
	Disks() ([]Disk, error)

	// AddImage makes a disk image file available as a carve target.
	AddImage(path string) (*Disk, error)

	// Partitions lists the partition table of the currently selected
	// disk.
	Partitions() ([]Partition, error)

	// Archs lists the supported partition table architectures.
	Archs() ([]string, error)

	// Run executes the recovery to completion or abort. It blocks and
	// returns the engine's exit code; nonzero means the carve finished
	// with errors.
	Run() (int, error)

	// Abort requests a running carve to stop at the next checkpoint.
	// Safe to call from any goroutine.
	Abort()

	// Statistics reads live progress counters.
	Statistics() (*Statistics, error)

	// Close releases all engine resources. The context is unusable
	// afterwards.
	Close() error
}

// InitParams is everything the engine needs to construct a context.
type InitParams struct {
	// Args is the argv the engine sees. Defaults to the program name
	// when empty.
	Args []string
	// OutputDir is the initial destination for recovered files.
	OutputDir string
	// Device optionally preselects a disk at init.
	Device string
	// LogMode is 0 for none, 1 for info, 2 for debug.
	LogMode int
	// LogFile is where the engine writes its own log.
	LogFile string
}

// Engine constructs contexts. Implementations must be safe for
// concurrent NewContext calls.
type Engine interface {
	NewContext(params InitParams) (Context, error)
	Version() string
}
