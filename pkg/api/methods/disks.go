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
	"github.com/RecoverdProject/recoverd-core/pkg/engine"
	"github.com/rs/zerolog/log"
)

//nolint:gocritic // single-use parameter in API handler
func HandleDisks(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received disks request")

	var params models.DisksParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.DisksResponse{ErrorMessage: err.Error()}, nil
	}

	engCtx, err := env.Sessions.Context(params.ContextID)
	if err != nil {
		return models.DisksResponse{ErrorMessage: err.Error()}, nil
	}

	disks, err := engCtx.Disks()
	if err != nil {
		return models.DisksResponse{ErrorMessage: err.Error()}, nil
	}
	if disks == nil {
		disks = []engine.Disk{}
	}

	return models.DisksResponse{Success: true, Disks: disks}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleDisksPartitions(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received partitions request")

	var params models.PartitionsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.PartitionsResponse{ErrorMessage: err.Error()}, nil
	}

	engCtx, err := env.Sessions.Context(params.ContextID)
	if err != nil {
		return models.PartitionsResponse{ErrorMessage: err.Error()}, nil
	}

	// selecting the disk loads its partition table
	if _, err := engCtx.ChangeDisk(params.Device); err != nil {
		return models.PartitionsResponse{ErrorMessage: err.Error()}, nil
	}

	parts, err := engCtx.Partitions()
	if err != nil {
		return models.PartitionsResponse{ErrorMessage: err.Error()}, nil
	}
	if parts == nil {
		parts = []engine.Partition{}
	}

	return models.PartitionsResponse{Success: true, Partitions: parts}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleArchs(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received archs request")

	var params models.ArchsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.ArchsResponse{ErrorMessage: err.Error()}, nil
	}

	engCtx, err := env.Sessions.Context(params.ContextID)
	if err != nil {
		return models.ArchsResponse{ErrorMessage: err.Error()}, nil
	}

	archs, err := engCtx.Archs()
	if err != nil {
		return models.ArchsResponse{ErrorMessage: err.Error()}, nil
	}
	if archs == nil {
		archs = []string{}
	}

	return models.ArchsResponse{Success: true, Archs: archs}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleArchsSet(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received set arch request")

	var params models.SetArchParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.SetArchResponse{ErrorMessage: err.Error()}, nil
	}

	engCtx, err := env.Sessions.Context(params.ContextID)
	if err != nil {
		return models.SetArchResponse{ErrorMessage: err.Error()}, nil
	}

	arch, err := engCtx.ChangeArch(params.Arch)
	if err != nil {
		return models.SetArchResponse{ErrorMessage: err.Error()}, nil
	}

	return models.SetArchResponse{Success: true, Arch: arch}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleFileOpts(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received file options request")

	var params models.FileOptsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.FileOptsResponse{ErrorMessage: err.Error()}, nil
	}

	engCtx, err := env.Sessions.Context(params.ContextID)
	if err != nil {
		return models.FileOptsResponse{ErrorMessage: err.Error()}, nil
	}

	opts, err := engCtx.FileOptions()
	if err != nil {
		return models.FileOptsResponse{ErrorMessage: err.Error()}, nil
	}
	if opts == nil {
		opts = []engine.FileOption{}
	}

	return models.FileOptsResponse{Success: true, FileOptions: opts}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleOptionsSet(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received set options request")

	var params models.SetOptionsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return models.SetOptionsResponse{ErrorMessage: err.Error()}, nil
	}

	engCtx, err := env.Sessions.Context(params.ContextID)
	if err != nil {
		return models.SetOptionsResponse{ErrorMessage: err.Error()}, nil
	}

	if err := engCtx.ChangeOptions(engineOptions(params.Options)); err != nil {
		return models.SetOptionsResponse{ErrorMessage: err.Error()}, nil
	}

	enabled := params.Options.EnabledFileTypes
	disabled := params.Options.DisabledFileTypes
	if len(enabled) > 0 || len(disabled) > 0 {
		if err := engCtx.ChangeFileOpts(enabled, disabled); err != nil {
			return models.SetOptionsResponse{ErrorMessage: err.Error()}, nil
		}
	}

	return models.SetOptionsResponse{Success: true}, nil
}

func engineOptions(opts models.RecoveryOptions) engine.Options {
	return engine.Options{
		Paranoid:          opts.ParanoidMode,
		KeepCorruptedFile: opts.KeepCorruptedFiles,
		ModeExt2:          opts.EnableExt2Opt,
		Expert:            opts.ExpertMode,
		LowMem:            opts.LowMemoryMode,
		Verbose:           opts.VerboseOutput,
		Blocksize:         opts.Blocksize,
	}
}
