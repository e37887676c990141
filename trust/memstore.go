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

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// tombstoneGCAfter is how long a revoke record survives before it is
// garbage-collected locally (spec §4.8: "revokedAt + 30d < now").
const tombstoneGCAfter = 30 * 24 * time.Hour

// strippablePrefixes are identifier prefixes the lookup candidate chain
// peels off in order while searching for a match (spec §4.8).
var strippablePrefixes = []string{"recent:", "id:", "mac:bonjour:", "fp:", "name:"}

// ErrTombstoned is returned by Add when a revoke record already exists
// for the given deviceId; key rotation requires a new deviceId rather
// than reusing a revoked one.
var ErrTombstoned = fmt.Errorf("trust: deviceId is tombstoned, use a new deviceId to re-add")

// ErrNotFound is returned when a lookup or revoke targets an unknown
// deviceId.
var ErrNotFound = fmt.Errorf("trust: record not found")

// MemStore is the in-memory trust store: one authoritative record per
// deviceId plus an alias index used to resolve peer identifiers (spec
// §5: trust-store writes are serialized, reads are concurrent snapshots
// — modeled here with a RWMutex and copy-on-read).
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	aliases map[string]string // alias -> deviceId
}

// NewMemStore constructs an empty trust store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]*Record),
		aliases: make(map[string]string),
	}
}

// Add persists a newly-signed "add" record for a deviceId not already
// tombstoned. A second Add for a live deviceId simply overwrites it
// (e.g. capability refresh) — only a tombstone blocks re-add.
func (s *MemStore) Add(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[r.DeviceID]; ok && existing.IsTombstone() {
		return ErrTombstoned
	}
	s.records[r.DeviceID] = r.clone()
	s.aliases[r.DeviceID] = r.DeviceID
	if len(r.PubKeyFingerprint) > 0 {
		s.aliases[hex.EncodeToString(r.PubKeyFingerprint)] = r.DeviceID
	}
	return nil
}

// RegisterAlias binds an additional identifier (a persistent id,
// display name, or normalized Bonjour name) to an already-known
// deviceId, for later resolution via Lookup.
func (s *MemStore) RegisterAlias(alias, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[deviceID]; !ok {
		return ErrNotFound
	}
	s.aliases[alias] = deviceID
	return nil
}

// Revoke replaces the live record for deviceId with a tombstone whose
// version is prevVersion+1. The caller supplies the signed tombstone
// record (built via NewTombstone + Sign) so MemStore never needs signing
// material itself.
func (s *MemStore) Revoke(tombstone *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.records[tombstone.DeviceID]
	if !ok {
		return ErrNotFound
	}
	if tombstone.Version != prev.Version+1 {
		return fmt.Errorf("trust: tombstone version %d does not follow previous version %d", tombstone.Version, prev.Version)
	}
	s.records[tombstone.DeviceID] = tombstone.clone()
	return nil
}

// NewTombstone builds an unsigned revoke record derived from the latest
// live record for deviceId; the caller signs it (trust.Sign) before
// passing it to Revoke.
func (s *MemStore) NewTombstone(deviceID string, revokedAt time.Time) (*Record, error) {
	s.mu.RLock()
	prev, ok := s.records[deviceID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	t := prev.clone()
	t.Type = TypeRevoke
	t.Version = prev.Version + 1
	t.UpdatedAt = revokedAt
	t.RevokedAt = &revokedAt
	t.Signature = nil
	return t, nil
}

// Get returns a copy of the live record for deviceId, including
// tombstones (callers that only want live peers should check
// IsTombstone themselves).
func (s *MemStore) Get(deviceID string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[deviceID]
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// Candidates expands a raw peer identifier into the ordered candidate
// chain spec §4.8 describes: the raw id, each known prefix stripped in
// turn, and a normalized Bonjour form when the stripped remainder looks
// like "<name>@<domain>".
func Candidates(identifier string) []string {
	out := []string{identifier}
	for _, prefix := range strippablePrefixes {
		if strings.HasPrefix(identifier, prefix) {
			stripped := strings.TrimPrefix(identifier, prefix)
			out = append(out, stripped)
			if strings.Contains(stripped, "@") {
				out = append(out, "bonjour:"+stripped)
			}
		}
	}
	return out
}

// Lookup resolves a peer identifier through the candidate chain,
// matching against registered aliases, fingerprint hex, and deviceIds
// directly. Per spec §4.8 a match requires exactly one distinct deviceId
// resolving across all Candidates; an identifier that resolves to more
// than one deviceId (or to none) is not a match.
func (s *MemStore) Lookup(identifier string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resolved := make(map[string]bool)
	for _, candidate := range Candidates(identifier) {
		if deviceID, ok := s.aliases[candidate]; ok {
			resolved[deviceID] = true
			continue
		}
		if _, ok := s.records[candidate]; ok {
			resolved[candidate] = true
		}
	}
	if len(resolved) != 1 {
		return nil, false
	}
	for deviceID := range resolved {
		r := s.records[deviceID]
		return r.clone(), true
	}
	return nil, false
}

// Merge applies last-writer-wins conflict resolution (spec §4.8) between
// the local record for remote.DeviceID (if any) and remote, keeping
// whichever one wins as the new local record. Returns the record that
// ended up stored.
func (s *MemStore) Merge(remote *Record) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, ok := s.records[remote.DeviceID]
	if !ok {
		s.records[remote.DeviceID] = remote.clone()
		s.aliases[remote.DeviceID] = remote.DeviceID
		return remote.clone()
	}

	winner := ResolveConflict(local, remote)
	s.records[remote.DeviceID] = winner.clone()
	return winner.clone()
}

// ResolveConflict implements spec §4.8's rule: if either side is a
// revoke, revoke wins; between two revokes, later updatedAt wins;
// otherwise later updatedAt wins outright (LWW).
func ResolveConflict(local, remote *Record) *Record {
	if local.IsTombstone() != remote.IsTombstone() {
		if local.IsTombstone() {
			return local
		}
		return remote
	}
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return remote
	}
	return local
}

// GC deletes tombstones older than tombstoneGCAfter relative to now,
// returning how many were removed (spec §4.8's tombstone GC).
func (s *MemStore) GC(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for deviceID, r := range s.records {
		revokedAt := r.UpdatedAt
		if r.RevokedAt != nil {
			revokedAt = *r.RevokedAt
		}
		if r.IsTombstone() && now.Sub(revokedAt) > tombstoneGCAfter {
			delete(s.records, deviceID)
			for alias, target := range s.aliases {
				if target == deviceID {
					delete(s.aliases, alias)
				}
			}
			removed++
		}
	}
	return removed
}

// Len returns the number of records currently held, live and tombstoned.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// All returns a snapshot copy of every record currently held, live and
// tombstoned, in no particular order. Used by callers that need to
// enumerate the store (persistence, CLI listing) rather than resolve a
// single peer.
func (s *MemStore) All() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.clone())
	}
	return out
}
