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
	"encoding/json"

	"github.com/google/uuid"
)

const (
	NotificationRecoveryStarted   = "recovery.started"
	NotificationRecoveryCompleted = "recovery.completed"
	NotificationRecoveryStopped   = "recovery.stopped"
)

const (
	MethodContextsNew      = "contexts.new"
	MethodContextsDelete   = "contexts.delete"
	MethodContextsAddImage = "contexts.addimage"
	MethodDisks            = "disks"
	MethodDisksPartitions  = "disks.partitions"
	MethodArchs            = "archs"
	MethodArchsSet         = "archs.set"
	MethodFileOpts         = "fileopts"
	MethodOptionsSet       = "options.set"
	MethodRecoveriesStart  = "recoveries.start"
	MethodRecoveriesStatus = "recoveries.status"
	MethodRecoveriesStop   = "recoveries.stop"
	MethodRecoveriesStats  = "recoveries.stats"
	MethodRecoveriesList   = "recoveries.history"
	MethodShutdown         = "shutdown"
	MethodHeartbeat        = "heartbeat"
	MethodVersion          = "version"
)

type Notification struct {
	Params any    `json:"params,omitempty"`
	Method string `json:"method"`
}

type RequestObject struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uuid.UUID      `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ResponseObject struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      uuid.UUID    `json:"id"`
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ResponseErrorObject exists for sending errors, so we can omit result from
// the response, but so nil responses are still returned when using the main
// ResponseObject.
type ResponseErrorObject struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      uuid.UUID    `json:"id"`
	Error   *ErrorObject `json:"error"`
}
