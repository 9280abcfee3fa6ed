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

package session

import (
	"strconv"
	"time"

	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/engine"
	"github.com/RecoverdProject/recoverd-core/pkg/helpers/syncutil"
)

// Session tracks one background recovery job. The worker goroutine is
// the sole writer of progress fields; a stop request only flips running
// and signals the engine. All mutable fields are guarded by mu.
type Session struct {
	startedAt  time.Time
	finishedAt time.Time

	engineCtx engine.Context
	done      chan struct{}

	id          string
	contextID   string
	device      string
	recoveryDir string

	statusText   string
	errorMessage string

	currentOffset      uint64
	totalSize          uint64
	filesRecovered     uint
	directoriesCreated uint
	exitCode           int

	mu        syncutil.Mutex
	running   bool
	completed bool
}

// ID returns the session's immutable identifier.
func (s *Session) ID() string {
	return s.id
}

// ContextID returns the ID of the context this session carves under.
func (s *Session) ContextID() string {
	return s.contextID
}

// Running reports whether the worker is still carving.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Snapshot copies the session's observable state under its lock.
func (s *Session) Snapshot() models.RecoveryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.RecoveryStatus{
		StatusText:         s.statusText,
		ErrorMessage:       s.errorMessage,
		CurrentOffset:      s.currentOffset,
		TotalSize:          s.totalSize,
		FilesRecovered:     s.filesRecovered,
		DirectoriesCreated: s.directoriesCreated,
		IsComplete:         s.completed,
	}
}

// setProgress is called by the worker at recovery checkpoints. The
// offset and counters never move backward so poll snapshots stay
// monotonic.
func (s *Session) setProgress(statusText string, offset uint64, filesRecovered uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusText = statusText
	if offset > s.currentOffset {
		s.currentOffset = offset
	}
	if filesRecovered > s.filesRecovered {
		s.filesRecovered = filesRecovered
	}
}

// refreshProgress folds a live statistics read into the poll fields
// while the worker is still carving. Counters only move forward, so a
// stale engine read never rolls progress back, and a session that
// turned terminal between the read and the lock keeps its final values.
func (s *Session) refreshProgress() {
	if !s.Running() {
		return
	}
	stats, err := s.engineCtx.Statistics()
	if err != nil || stats == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || !s.running {
		return
	}
	if stats.Offset > s.currentOffset {
		s.currentOffset = stats.Offset
	}
	if stats.FilesRecovered > s.filesRecovered {
		s.filesRecovered = stats.FilesRecovered
	}
	if stats.DirNum > s.directoriesCreated {
		s.directoriesCreated = stats.DirNum
	}
}

// setTotalSize records the carve target size once the worker knows it.
func (s *Session) setTotalSize(size uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalSize = size
}

// fail moves the session to its terminal error state. The status flip
// and the message are written in one critical section so readers never
// observe one without the other.
func (s *Session) fail(message string, finishedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorMessage = message
	s.statusText = "Completed with errors"
	s.completed = true
	s.running = false
	s.finishedAt = finishedAt
}

// complete moves the session to its terminal state after the engine run
// returned. Exit code zero is a clean finish.
func (s *Session) complete(exitCode int, stats *engine.Statistics, finishedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exitCode == 0 {
		s.statusText = "Completed successfully"
	} else {
		s.statusText = "Completed with errors"
		s.errorMessage = "Recovery process returned error code: " + strconv.Itoa(exitCode)
	}
	if stats != nil {
		s.filesRecovered = stats.FilesRecovered
		s.directoriesCreated = stats.DirNum
		if stats.Offset > s.currentOffset {
			s.currentOffset = stats.Offset
		}
	}
	s.exitCode = exitCode
	s.completed = true
	s.running = false
	s.finishedAt = finishedAt
}

// stopRequested flips the running flag ahead of the engine abort so
// pollers see the stop immediately. Reports false when the session was
// no longer running, in which case the caller must not abort or notify.
func (s *Session) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.running = false
	return true
}

func (s *Session) finished() (completed bool, finishedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed, s.finishedAt
}
