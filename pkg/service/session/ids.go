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

package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	contextIDPrefix  = "ctx_"
	recoveryIDPrefix = "rec_"
	idRandomBytes    = 8
)

func newID(prefix string) string {
	buf := make([]byte, idRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("session: reading random bytes: %v", err))
	}
	return prefix + hex.EncodeToString(buf)
}

// NewContextID returns a fresh opaque context identifier.
func NewContextID() string {
	return newID(contextIDPrefix)
}

// NewRecoveryID returns a fresh opaque recovery session identifier.
func NewRecoveryID() string {
	return newID(recoveryIDPrefix)
}

// IsContextID reports whether s has the context identifier shape.
func IsContextID(s string) bool {
	return isID(s, contextIDPrefix)
}

// IsRecoveryID reports whether s has the recovery identifier shape.
func IsRecoveryID(s string) bool {
	return isID(s, recoveryIDPrefix)
}

func isID(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	rest := strings.TrimPrefix(s, prefix)
	if len(rest) != idRandomBytes*2 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil && strings.ToLower(rest) == rest
}
