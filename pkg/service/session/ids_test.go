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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDGeneration(t *testing.T) {
	t.Parallel()

	ctxID := NewContextID()
	assert.True(t, IsContextID(ctxID), "generated context id %q should validate", ctxID)
	assert.Len(t, ctxID, len("ctx_")+16)

	recID := NewRecoveryID()
	assert.True(t, IsRecoveryID(recID), "generated recovery id %q should validate", recID)
	assert.Len(t, recID, len("rec_")+16)

	// ids from different generators never validate against each other
	assert.False(t, IsRecoveryID(ctxID))
	assert.False(t, IsContextID(recID))
}

func TestIDUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewContextID()
		assert.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
	}
}

func TestIsContextID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "valid", input: "ctx_00112233aabbccdd", valid: true},
		{name: "empty", input: "", valid: false},
		{name: "wrong prefix", input: "rec_00112233aabbccdd", valid: false},
		{name: "too short", input: "ctx_0011", valid: false},
		{name: "too long", input: "ctx_00112233aabbccdd00", valid: false},
		{name: "not hex", input: "ctx_00112233aabbcczz", valid: false},
		{name: "uppercase hex", input: "ctx_00112233AABBCCDD", valid: false},
		{name: "prefix only", input: "ctx_", valid: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, IsContextID(tt.input))
		})
	}
}
