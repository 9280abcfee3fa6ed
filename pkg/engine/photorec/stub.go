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

//go:build !photorec

// Package photorec binds the engine boundary to libphotorec. This build
// was compiled without the photorec tag, so every context creation
// reports the engine as unavailable.
package photorec

import (
	"github.com/RecoverdProject/recoverd-core/pkg/engine"
)

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (*Engine) Version() string {
	return "unavailable"
}

func (*Engine) NewContext(_ engine.InitParams) (engine.Context, error) {
	return nil, engine.ErrUnavailable
}
