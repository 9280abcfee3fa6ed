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
	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/api/models/requests"
	"github.com/RecoverdProject/recoverd-core/pkg/api/validation"
	"github.com/RecoverdProject/recoverd-core/pkg/service/session"
	"github.com/rs/zerolog/log"
)

const defaultHistoryLimit = 50

//nolint:gocritic // single-use parameter in API handler
func HandleRecoveriesStart(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received start recovery request")

	var params models.StartRecoveryParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.StartRecoveryResponse{ErrorMessage: err.Error()}, nil
	}

	recoveryID, err := env.Sessions.StartRecovery(session.StartParams{
		ContextID:      params.ContextID,
		Device:         params.Device,
		RecoveryDir:    params.RecoveryDir,
		Options:        engineOptions(params.Options),
		EnabledTypes:   params.Options.EnabledFileTypes,
		DisabledTypes:  params.Options.DisabledFileTypes,
		PartitionOrder: params.PartitionOrder,
		CarveFreeSpace: params.Options.CarveFreeSpaceOnly,
		ModeExt2:       params.Options.EnableExt2Opt,
	})
	if err != nil {
		log.Error().Err(err).Str("device", params.Device).Msg("start recovery refused")
		return models.StartRecoveryResponse{ErrorMessage: err.Error()}, nil
	}

	return models.StartRecoveryResponse{Success: true, RecoveryID: recoveryID}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleRecoveriesStatus(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received recovery status request")

	var params models.RecoveryStatusParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.RecoveryStatusResponse{ErrorMessage: err.Error()}, nil
	}

	status, err := env.Sessions.Status(params.RecoveryID)
	if err != nil {
		return models.RecoveryStatusResponse{ErrorMessage: err.Error()}, nil
	}

	return models.RecoveryStatusResponse{Success: true, Status: &status}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleRecoveriesStop(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received stop recovery request")

	var params models.StopRecoveryParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.StopRecoveryResponse{ErrorMessage: err.Error()}, nil
	}

	if err := env.Sessions.StopRecovery(params.RecoveryID); err != nil {
		return models.StopRecoveryResponse{ErrorMessage: err.Error()}, nil
	}

	return models.StopRecoveryResponse{Success: true}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleRecoveriesStats(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received statistics request")

	var params models.StatisticsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.StatisticsResponse{ErrorMessage: err.Error()}, nil
	}

	engCtx, err := env.Sessions.Context(params.ContextID)
	if err != nil {
		return models.StatisticsResponse{ErrorMessage: err.Error()}, nil
	}

	stats, err := engCtx.Statistics()
	if err != nil {
		return models.StatisticsResponse{ErrorMessage: err.Error()}, nil
	}

	return models.StatisticsResponse{Success: true, Statistics: stats}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleRecoveriesHistory(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received recovery history request")

	limit := defaultHistoryLimit
	if len(env.Params) > 0 {
		var params models.HistoryParams
		if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
			return models.HistoryResponse{ErrorMessage: err.Error()}, nil
		}
		if params.Limit > 0 {
			limit = params.Limit
		}
	}

	if env.Database == nil || env.Database.HistoryDB == nil {
		return models.HistoryResponse{ErrorMessage: "recovery history is not available"}, nil
	}

	records, err := env.Database.HistoryDB.GetRecoveries(limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read recovery history")
		return models.HistoryResponse{ErrorMessage: "failed to read recovery history"}, nil
	}

	entries := make([]models.HistoryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, models.HistoryEntry{
			StartedAt:      record.StartedAt,
			FinishedAt:     record.FinishedAt,
			RecoveryID:     record.RecoveryID,
			ContextID:      record.ContextID,
			Device:         record.Device,
			RecoveryDir:    record.RecoveryDir,
			StatusText:     record.StatusText,
			ErrorMessage:   record.ErrorMessage,
			FilesRecovered: record.FilesRecovered,
			ExitCode:       record.ExitCode,
		})
	}

	return models.HistoryResponse{Success: true, Entries: entries}, nil
}
