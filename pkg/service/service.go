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

// Package service wires the daemon together: storage, session manager,
// notification broker and the API server, plus ordered teardown.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoverdProject/recoverd-core/pkg/api"
	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/RecoverdProject/recoverd-core/pkg/database"
	"github.com/RecoverdProject/recoverd-core/pkg/database/historydb"
	"github.com/RecoverdProject/recoverd-core/pkg/engine"
	"github.com/RecoverdProject/recoverd-core/pkg/helpers"
	"github.com/RecoverdProject/recoverd-core/pkg/service/broker"
	"github.com/RecoverdProject/recoverd-core/pkg/service/session"
	"github.com/rs/zerolog/log"
)

const stopTimeout = 5 * time.Second

func makeDatabase(ctx context.Context) (*database.Database, error) {
	log.Debug().Msg("opening history database")
	historyDB, err := historydb.OpenHistoryDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return &database.Database{HistoryDB: historyDB}, nil
}

func cleanupHistoryOnStartup(cfg *config.Instance, db *database.Database) {
	retentionDays := cfg.HistoryRetentionDays()
	if retentionDays <= 0 {
		log.Debug().Msg("history cleanup disabled (retention set to 0)")
		return
	}

	log.Info().Msgf("cleaning up recovery history older than %d days", retentionDays)
	rowsDeleted, err := db.HistoryDB.CleanupRecoveries(retentionDays)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("error cleaning up recovery history")
	case rowsDeleted > 0:
		log.Info().Msgf("deleted %d old recovery history entries", rowsDeleted)
	default:
		log.Debug().Msg("no old recovery history entries to clean up")
	}
}

// Start brings the daemon up and returns a stop function plus a done
// channel that closes once the service has fully torn down, whether
// via stop or a shutdown RPC.
func Start(
	cfg *config.Instance,
	eng engine.Engine,
) (stop func() error, done <-chan struct{}, err error) {
	log.Info().Msgf("version: %s", config.AppVersion)

	ctx, cancel := context.WithCancel(context.Background())

	if err := helpers.EnsureDirectories(cfg); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("error creating directories: %w", err)
	}

	db, err := makeDatabase(ctx)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	cleanupHistoryOnStartup(cfg, db)

	ns := make(chan models.Notification, 100)
	notifBroker := broker.NewBroker(ctx, ns)
	notifBroker.Start()

	sessions := session.NewManager(eng, cfg, db.HistoryDB, ns)
	sessions.StartJanitor(ctx)

	doneCh := make(chan struct{})
	var server *api.Server
	var cleanupOnce sync.Once

	cleanup := func() {
		cleanupOnce.Do(func() {
			log.Info().Msg("stopping service")

			if server != nil {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
				if err := server.Stop(stopCtx); err != nil {
					log.Warn().Err(err).Msg("error stopping API server")
				}
				stopCancel()
			}

			// forced drain covers signal-initiated stops; a shutdown
			// RPC has already drained by the time this runs
			if _, err := sessions.Shutdown(true); err != nil {
				log.Warn().Err(err).Msg("error draining recovery sessions")
			}
			sessions.Close()

			cancel()
			notifBroker.Stop()

			if err := db.HistoryDB.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing history database")
			}

			log.Info().Msg("service stopped")
			close(doneCh)
		})
	}

	// give the shutdown response time to reach the caller before the
	// listener goes away
	requestShutdown := func() {
		go func() {
			time.Sleep(config.ShutdownFlushDelay)
			cleanup()
		}()
	}

	log.Info().Msg("starting API service")
	apiNotifications, _ := notifBroker.Subscribe(100)
	server, err = api.Start(cfg, sessions, db, apiNotifications, requestShutdown)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error starting API server: %w", err)
	}

	log.Info().Msgf("engine: %s", sessions.EngineVersion())

	stop = func() error {
		cleanup()
		return nil
	}
	return stop, doneCh, nil
}
