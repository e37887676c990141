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

// Package bootstrap implements the peer-KEM bootstrap cache (C9): a
// pure in-memory mapping from any known alias of a peer to its
// advertised KEM public keys, fed by the pairingIdentityExchange
// application message and consulted only when the trust store has no
// KEM entries for that peer (spec §4.9).
package bootstrap

import (
	"sync"

	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/trust"
)

// Cache is the peer-KEM bootstrap cache. It holds no identity or
// signature material of its own — it is a volatile hint used to decide
// whether a rekey to PQC is possible, not a trust decision.
type Cache struct {
	mu      sync.RWMutex
	byAlias map[string][]trust.KEMPublicKeyInfo
}

// NewCache constructs an empty bootstrap cache.
func NewCache() *Cache {
	return &Cache{byAlias: make(map[string][]trust.KEMPublicKeyInfo)}
}

// Update records keys as the KEM public keys known for alias, replacing
// any previous entry. Called when a pairingIdentityExchange message is
// received for that peer.
func (c *Cache) Update(alias string, keys []trust.KEMPublicKeyInfo) {
	stored := make([]trust.KEMPublicKeyInfo, len(keys))
	for i, k := range keys {
		stored[i] = trust.KEMPublicKeyInfo{SuiteWireID: k.SuiteWireID, PublicKey: append([]byte(nil), k.PublicKey...)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byAlias[alias] = stored
}

// Lookup returns the KEM public keys known for alias, if any. Callers
// consult this only as a secondary source, after the trust store has
// been checked and found to have no KEM entries for the peer.
func (c *Cache) Lookup(alias string) ([]trust.KEMPublicKeyInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys, ok := c.byAlias[alias]
	if !ok {
		return nil, false
	}
	out := make([]trust.KEMPublicKeyInfo, len(keys))
	for i, k := range keys {
		out[i] = trust.KEMPublicKeyInfo{SuiteWireID: k.SuiteWireID, PublicKey: append([]byte(nil), k.PublicKey...)}
	}
	return out, true
}

// ForSuite narrows Lookup to the single KEM public key advertised for a
// specific suite, the shape core/handshake's PeerKEMLookup needs.
func (c *Cache) ForSuite(alias string, wireID suite.WireID) ([]byte, bool) {
	keys, ok := c.Lookup(alias)
	if !ok {
		return nil, false
	}
	for _, k := range keys {
		if k.SuiteWireID == wireID {
			return k.PublicKey, true
		}
	}
	return nil, false
}

// Delete removes any cached entry for alias, e.g. once the trust store
// has persisted fresh KEM keys for the peer and the bootstrap hint is
// no longer needed.
func (c *Cache) Delete(alias string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byAlias, alias)
}

// Len returns the number of aliases currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byAlias)
}
