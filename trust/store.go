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

package trust

import "time"

// Store is the trust-store backend contract MemStore and trust/pgstore
// both satisfy, letting cmd/p2pcore/trust.go depend on the interface
// rather than a concrete backend (bootstrap still takes a *MemStore
// directly).
//
// Every method here is already the full surface MemStore exposes; no
// context.Context parameter is threaded through since the CLI that is
// this interface's only caller today is a short-lived, non-cancellable
// process (cmd/p2pcore/trust.go opens its backend with
// context.Background()).
type Store interface {
	Add(r *Record) error
	RegisterAlias(alias, deviceID string) error
	Revoke(tombstone *Record) error
	NewTombstone(deviceID string, revokedAt time.Time) (*Record, error)
	Get(deviceID string) (*Record, bool)
	Lookup(identifier string) (*Record, bool)
	Merge(remote *Record) *Record
	GC(now time.Time) int
	Len() int
	All() []*Record
}

var _ Store = (*MemStore)(nil)
