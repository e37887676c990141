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

package bootstrap

import (
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/trust"
)

// Resolver answers core/handshake's PeerKEMLookup for a specific peer
// alias, checking the trust store first and falling back to the
// bootstrap cache only when the trust store has no KEM entries for that
// peer (spec §4.9: "queried only as a secondary source").
type Resolver struct {
	Store *trust.MemStore
	Cache *Cache
	Alias string
}

// Lookup implements core/handshake.PeerKEMLookup.
func (r Resolver) Lookup(wireID suite.WireID) ([]byte, bool) {
	if rec, ok := r.Store.Get(r.Alias); ok && !rec.IsTombstone() {
		for _, k := range rec.KEMPublicKeys {
			if k.SuiteWireID == wireID {
				return k.PublicKey, true
			}
		}
		if len(rec.KEMPublicKeys) > 0 {
			return nil, false
		}
	}
	return r.Cache.ForSuite(r.Alias, wireID)
}
