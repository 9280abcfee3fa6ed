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

package methods

import (
	"errors"
	"runtime"

	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/api/models/requests"
	"github.com/RecoverdProject/recoverd-core/pkg/api/validation"
	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/RecoverdProject/recoverd-core/pkg/service/session"
	"github.com/mackerelio/go-osstat/uptime"
	"github.com/rs/zerolog/log"
)

//nolint:gocritic // single-use parameter in API handler
func HandleShutdown(env requests.RequestEnv) (any, error) {
	var params models.ShutdownParams
	if len(env.Params) > 0 {
		if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
			return models.ShutdownResponse{ErrorMessage: err.Error()}, nil
		}
	}

	log.Info().
		Bool("force", params.Force).
		Str("reason", params.Reason).
		Msg("received shutdown request")

	active, err := env.Sessions.Shutdown(params.Force)
	if err != nil {
		var activeErr *session.ErrActiveSessions
		if errors.As(err, &activeErr) {
			return models.ShutdownResponse{
				ErrorMessage:   err.Error(),
				ActiveSessions: activeErr.Count,
			}, nil
		}
		return models.ShutdownResponse{ErrorMessage: err.Error()}, nil
	}

	if env.RequestShutdown != nil {
		// the actual stop is deferred so this response reaches the caller
		env.RequestShutdown()
	}

	return models.ShutdownResponse{
		Success:        true,
		Message:        "shutting down",
		ActiveSessions: active,
	}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleHeartbeat(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received heartbeat request")

	resp := models.HeartbeatResponse{
		Alive:               true,
		ServiceUptimeSecs:   uint64(env.Sessions.Uptime().Seconds()),
		ActiveContextCount:  env.Sessions.ContextCount(),
		ActiveRecoveryCount: env.Sessions.ActiveSessionCount(),
	}

	if hostUptime, err := uptime.Get(); err == nil {
		resp.UptimeSeconds = uint64(hostUptime.Seconds())
	} else {
		log.Debug().Err(err).Msg("failed to read host uptime")
	}

	if len(env.Params) > 0 {
		var params models.HeartbeatParams
		if err := validation.ValidateAndUnmarshal(env.Params, &params); err == nil &&
			params.ContextID != "" {
			valid := env.Sessions.ValidContext(params.ContextID)
			resp.ContextValid = &valid
		}
	}

	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleVersion(env requests.RequestEnv) (any, error) {
	return models.VersionResponse{
		Version:  config.AppVersion,
		Platform: runtime.GOOS,
		Engine:   env.Sessions.EngineVersion(),
	}, nil
}
