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

package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/RecoverdProject/recoverd-core/pkg/api/client"
	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/RecoverdProject/recoverd-core/pkg/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Flags struct {
	API     *string
	Version *bool
	Status  *bool
	Stop    *bool
	Force   *bool
	History *bool
}

// SetupFlags defines the common CLI flags. Add any custom flags before
// calling Pre.
func SetupFlags() *Flags {
	return &Flags{
		API: flag.String(
			"api",
			"",
			"send method and params to a running service and print response",
		),
		Version: flag.Bool(
			"version",
			false,
			"print version and exit",
		),
		Status: flag.Bool(
			"status",
			false,
			"query a running service and print its heartbeat",
		),
		Stop: flag.Bool(
			"stop",
			false,
			"ask a running service to shut down",
		),
		Force: flag.Bool(
			"force",
			false,
			"with -stop, shut down even while recoveries are active",
		),
		History: flag.Bool(
			"history",
			false,
			"print recorded recovery sessions from a running service",
		),
	}
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Pre runs flag parsing and actions any immediate flags that don't
// require environment setup.
func (f *Flags) Pre() {
	flag.Parse()

	if *f.Version {
		_, _ = fmt.Printf("Recoverd v%s (%s)\n", config.AppVersion, runtime.GOOS)
		os.Exit(0)
	}
}

func callAndPrint(cfg *config.Instance, method, params string) {
	resp, err := client.LocalClient(context.Background(), cfg, method, params)
	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("error calling API")
		_, _ = fmt.Fprintf(os.Stderr, "Error calling API: %v\n", err)
		os.Exit(1)
	}
	_, _ = fmt.Println(resp)
	os.Exit(0)
}

// Post actions all remaining common flags that require the environment to be
// set up. Logging is allowed.
func (f *Flags) Post(cfg *config.Instance) {
	switch {
	case isFlagPassed("api"):
		if *f.API == "" {
			_, _ = fmt.Fprint(os.Stderr, "Error: api flag requires a value\n")
			os.Exit(1)
		}

		ps := strings.SplitN(*f.API, ":", 2)
		method := ps[0]
		params := ""
		if len(ps) > 1 {
			params = ps[1]
		}

		callAndPrint(cfg, method, params)
	case *f.Status:
		callAndPrint(cfg, models.MethodHeartbeat, "")
	case *f.History:
		callAndPrint(cfg, models.MethodRecoveriesList, "")
	case *f.Stop:
		data, err := json.Marshal(&models.ShutdownParams{
			Force:  *f.Force,
			Reason: "cli",
		})
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error encoding params: %v\n", err)
			os.Exit(1)
		}

		callAndPrint(cfg, models.MethodShutdown, string(data))
	}
}

// Setup initializes logging and the user config. Returns a user config object.
//
//nolint:gocritic // config struct copied for immutability
func Setup(defaultConfig config.Values, writers []io.Writer) *config.Instance {
	err := helpers.InitLogging(helpers.DataDir(), writers)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig(helpers.ConfigDir(), defaultConfig)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return cfg
}
