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

// Package replay guards a responder against a duplicate handshake
// attempt being replayed within its validity window. It holds nothing
// but an insertion timestamp per handshake ID; it does not and cannot
// detect replay once an entry has expired.
package replay

import (
	"encoding/hex"
	"sync"
	"time"
)

// TTL is how long a registered handshake ID blocks a duplicate
// registration.
const TTL = 5 * time.Minute

// pruneInterval bounds how often RegisterIfNew does opportunistic
// cleanup of expired entries, so a busy responder does not walk its
// whole map on every single call.
const pruneInterval = 1 * time.Second

// Cache is a single serial context per spec §5: callers must not share
// one Cache across goroutines without external synchronization beyond
// what Cache itself provides (the internal mutex only protects the map,
// it does not make RegisterIfNew's TTL semantics meaningful under
// concurrent calls for the same ID racing each other).
type Cache struct {
	mu          sync.Mutex
	entries     map[string]time.Time
	lastPrune   time.Time
	now         func() time.Time
}

// NewCache returns an empty replay cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]time.Time), now: time.Now}
}

// RegisterIfNew is the cache's only write operation. It returns true and
// records id if id is not already present within TTL; it returns false
// if id was registered less than TTL ago, meaning the handshake must be
// rejected as a replay.
func (c *Cache) RegisterIfNew(id [32]byte) bool {
	key := hex.EncodeToString(id[:])
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastPrune) >= pruneInterval {
		c.prune(now)
		c.lastPrune = now
	}

	if insertedAt, ok := c.entries[key]; ok && now.Sub(insertedAt) < TTL {
		return false
	}
	c.entries[key] = now
	return true
}

// prune removes entries older than TTL. Caller must hold c.mu.
func (c *Cache) prune(now time.Time) {
	for k, t := range c.entries {
		if now.Sub(t) >= TTL {
			delete(c.entries, k)
		}
	}
}

// Len reports the current entry count, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
