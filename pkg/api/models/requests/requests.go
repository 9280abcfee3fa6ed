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

package requests

import (
	"encoding/json"

	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/RecoverdProject/recoverd-core/pkg/database"
	"github.com/RecoverdProject/recoverd-core/pkg/service/session"
	"github.com/google/uuid"
)

// RequestEnv is handed to every method handler with everything it may
// need to service one request.
type RequestEnv struct {
	Config   *config.Instance
	Sessions *session.Manager
	Database *database.Database
	// RequestShutdown schedules the service stop after the in-flight
	// response has been flushed. Set by the service bootstrap.
	RequestShutdown func()
	Params          json.RawMessage
	ID              uuid.UUID
	IsLocal         bool
}
