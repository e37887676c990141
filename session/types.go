// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package session implements the post-handshake session manager (C11):
// it owns the established AEAD keys for one peer, classifies the
// session's assurance level, and drives bootstrap-assisted recovery
// when a strict-PQC handshake cannot complete.
package session

import "time"

// AssuranceLevel classifies how a session's keys were established
// (spec §4.11).
type AssuranceLevel string

const (
	// AssurancePQCStrict is a session established directly under the
	// caller's original (PQC-requiring) policy.
	AssurancePQCStrict AssuranceLevel = "pqcStrict"
	// AssuranceBootstrapAssisted is a session established via the
	// one-time classic fallback handshake used to recover fresh peer
	// KEM keys before retrying the strict-PQC handshake.
	AssuranceBootstrapAssisted AssuranceLevel = "bootstrapAssisted"
)

// Config defines session lifecycle limits.
type Config struct {
	MaxAge      time.Duration
	IdleTimeout time.Duration
	MaxMessages int
}

func withDefaults(c Config) Config {
	if c.MaxAge == 0 {
		c.MaxAge = time.Hour
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 10 * time.Minute
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = 1000
	}
	return c
}

// Status summarizes the manager's current session population.
type Status struct {
	TotalSessions   int
	ActiveSessions  int
	ExpiredSessions int
}
