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

import "time"

var AppVersion = "DEVELOPMENT"

const (
	AppName           = "recoverd"
	HistoryDbFile     = "history.db"
	LogFile           = "recoverd.log"
	CfgFile           = "config.toml"
	APIRequestTimeout = 30 * time.Second

	// ShutdownFlushDelay is how long the shutdown coordinator waits
	// before stopping the listener, so the in-flight RPC response can
	// be flushed to the caller.
	ShutdownFlushDelay = 100 * time.Millisecond
)
