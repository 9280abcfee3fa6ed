/*
Recoverd
Copyright (c) 2025 The Recoverd Project Contributors.

This file is part of Recoverd.

Recoverd is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Recoverd is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Recoverd.  If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoverdProject/recoverd-core/pkg/cli"
	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/RecoverdProject/recoverd-core/pkg/engine/photorec"
	"github.com/RecoverdProject/recoverd-core/pkg/service"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags()

	quiet := flag.Bool(
		"quiet",
		false,
		"log to file only, not stderr",
	)

	flags.Pre()

	var logWriters []io.Writer
	if !*quiet {
		logWriters = []io.Writer{os.Stderr}
	}

	cfg := cli.Setup(config.BaseDefaults, logWriters)

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	flags.Post(cfg)

	stopSvc, done, err := service.Start(cfg, photorec.NewEngine())
	if err != nil {
		log.Error().Msgf("error starting service: %s", err)
		return fmt.Errorf("error starting service: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		log.Info().Msgf("received %s, shutting down", sig)
		if err := stopSvc(); err != nil {
			log.Error().Msgf("error stopping service: %s", err)
			return fmt.Errorf("error stopping service: %w", err)
		}
	case <-done:
		// shutdown was requested over the API and has already
		// finished tearing down
	}

	return nil
}
