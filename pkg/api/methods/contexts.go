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

// Package methods implements the JSON-RPC method handlers. Failures are
// reported inside the result payload; a handler error is reserved for
// malformed requests that never reached the session layer.
package methods

import (
	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/api/models/requests"
	"github.com/RecoverdProject/recoverd-core/pkg/api/validation"
	"github.com/RecoverdProject/recoverd-core/pkg/engine"
	"github.com/rs/zerolog/log"
)

//nolint:gocritic // single-use parameter in API handler
func HandleContextsNew(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received new context request")

	var params models.NewContextParams
	if len(env.Params) > 0 {
		if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
			return models.NewContextResponse{ErrorMessage: err.Error()}, nil
		}
	}

	ctxID, err := env.Sessions.NewContext(engine.InitParams{
		Args:    params.Args,
		Device:  params.Device,
		LogMode: params.LogMode,
		LogFile: params.LogFile,
	})
	if err != nil {
		log.Error().Err(err).Msg("context initialization failed")
		return models.NewContextResponse{ErrorMessage: err.Error()}, nil
	}

	return models.NewContextResponse{Success: true, ContextID: ctxID}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleContextsDelete(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received delete context request")

	var params models.DeleteContextParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.DeleteContextResponse{ErrorMessage: err.Error()}, nil
	}

	if err := env.Sessions.DeleteContext(params.ContextID); err != nil {
		return models.DeleteContextResponse{ErrorMessage: err.Error()}, nil
	}

	return models.DeleteContextResponse{Success: true}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleContextsAddImage(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received add image request")

	var params models.AddImageParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.AddImageResponse{ErrorMessage: err.Error()}, nil
	}

	engCtx, err := env.Sessions.Context(params.ContextID)
	if err != nil {
		return models.AddImageResponse{ErrorMessage: err.Error()}, nil
	}

	disk, err := engCtx.AddImage(params.ImageFile)
	if err != nil {
		log.Error().Err(err).Str("image", params.ImageFile).Msg("add image failed")
		return models.AddImageResponse{ErrorMessage: err.Error()}, nil
	}

	return models.AddImageResponse{Success: true, Disk: disk}, nil
}
