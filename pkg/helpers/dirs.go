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

package helpers

import (
	"os"
	"path/filepath"

	"github.com/RecoverdProject/recoverd-core/pkg/config"
)

const (
	DataDirEnv   = "RECOVERD_DATA_DIR"
	ConfigDirEnv = "RECOVERD_CONFIG_DIR"
)

// DataDir returns the directory used for mutable state such as the history
// database and log files. Root services get a system path, everything else
// falls back to the user config dir so the daemon can run unprivileged.
func DataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	if os.Geteuid() == 0 {
		return filepath.Join("/var/lib", config.AppName)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", config.AppName)
	}
	return filepath.Join(dir, config.AppName)
}

// ConfigDir returns the directory searched for config.toml.
func ConfigDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir
	}
	if os.Geteuid() == 0 {
		return filepath.Join("/etc", config.AppName)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", config.AppName)
	}
	return filepath.Join(dir, config.AppName)
}

// EnsureDirectories creates the data and output directories the service
// expects to exist before it starts serving.
func EnsureDirectories(cfg *config.Instance) error {
	dirs := []string{DataDir(), cfg.OutputDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return nil
}
