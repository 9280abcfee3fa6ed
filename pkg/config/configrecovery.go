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

package config

const DefaultOutputDir = "/var/lib/recoverd/output"

type Recovery struct {
	OutputDir            string `toml:"output_dir,omitempty"`
	MaxSessions          int    `toml:"max_sessions,omitempty"`
	SessionRetentionMins int    `toml:"session_retention_mins,omitempty"`
	HistoryRetentionDays int    `toml:"history_retention_days,omitempty"`
}

// OutputDir is the base directory used for recovered files when a session
// doesn't specify its own destination.
func (c *Instance) OutputDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Recovery.OutputDir == "" {
		return DefaultOutputDir
	}
	return c.vals.Recovery.OutputDir
}

func (c *Instance) SetOutputDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Recovery.OutputDir = dir
}

// MaxSessions is the number of recovery sessions allowed to run at once.
// Zero means unbounded.
func (c *Instance) MaxSessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Recovery.MaxSessions
}

func (c *Instance) SetMaxSessions(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Recovery.MaxSessions = n
}

// SessionRetentionMins is how long finished session records are kept in
// memory before the janitor removes them. Zero keeps them until their
// context is deleted.
func (c *Instance) SessionRetentionMins() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Recovery.SessionRetentionMins
}

func (c *Instance) SetSessionRetentionMins(mins int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Recovery.SessionRetentionMins = mins
}

// HistoryRetentionDays is how long completed recoveries are kept in the
// history database. Zero keeps them forever.
func (c *Instance) HistoryRetentionDays() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Recovery.HistoryRetentionDays
}
