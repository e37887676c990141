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

// Package trust implements the local trust store (C8): signed,
// versioned records binding a peer device identity to its public keys,
// with last-writer-wins sync conflict resolution and tombstone GC.
package trust

import (
	"sort"
	"time"

	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/wire"
)

// Type distinguishes a live record from a tombstone.
type Type string

const (
	TypeAdd    Type = "add"
	TypeRevoke Type = "revoke"
)

// KEMPublicKeyInfo is one of a device's known long-term KEM public keys,
// the material the handshake's initiator encapsulates against for a PQC
// suite (core/handshake's PeerKEMLookup).
type KEMPublicKeyInfo struct {
	SuiteWireID suite.WireID
	PublicKey   []byte
}

// Record is one signed trust-store entry (spec §4.8).
type Record struct {
	DeviceID               string
	DeviceName             *string // user-facing label from pairingIdentityExchange; nil if never set
	PubKeyFingerprint      []byte
	PublicKey              []byte
	SecureEnclavePublicKey []byte // nil if the device has none
	KEMPublicKeys          []KEMPublicKeyInfo
	AttestationLevel       uint8
	Capabilities           []byte
	CreatedAt              time.Time
	UpdatedAt              time.Time
	RevokedAt              *time.Time // nil unless Type == TypeRevoke
	Version                uint64
	Type                   Type
	Signature              []byte
}

// sortedKEMKeys returns KEMPublicKeys sorted by wire ID, the order the
// deterministic encoding and the wire form both require.
func (r *Record) sortedKEMKeys() []KEMPublicKeyInfo {
	out := make([]KEMPublicKeyInfo, len(r.KEMPublicKeys))
	copy(out, r.KEMPublicKeys)
	sort.Slice(out, func(i, j int) bool { return out[i].SuiteWireID < out[j].SuiteWireID })
	return out
}

// SigningPreimage builds the deterministic encoding the record is signed
// over: deviceId, deviceName?, pubKeyFP, publicKey,
// secureEnclavePublicKey?, sorted kemPublicKeys, attestationLevel,
// capabilities, createdAt, updatedAt, revokedAt?, version,
// recordType-string (spec §4.8).
func (r *Record) SigningPreimage() []byte {
	w := wire.NewWriter(256)
	w.PutString(r.DeviceID)
	var deviceName []byte
	if r.DeviceName != nil {
		deviceName = []byte(*r.DeviceName)
	}
	w.PutOptionalBytes(deviceName, r.DeviceName != nil)
	w.PutBytes(r.PubKeyFingerprint)
	w.PutBytes(r.PublicKey)
	w.PutOptionalBytes(r.SecureEnclavePublicKey, r.SecureEnclavePublicKey != nil)

	kems := r.sortedKEMKeys()
	w.PutArrayHeader(len(kems))
	for _, k := range kems {
		w.PutU16(uint16(k.SuiteWireID))
		w.PutBytes(k.PublicKey)
	}

	w.PutU8(r.AttestationLevel)
	w.PutBytes(r.Capabilities)
	w.PutDate(r.CreatedAt.UnixMilli())
	w.PutDate(r.UpdatedAt.UnixMilli())
	w.PutBool(r.RevokedAt != nil)
	if r.RevokedAt != nil {
		w.PutDate(r.RevokedAt.UnixMilli())
	} else {
		w.PutDate(0)
	}
	w.PutU64(r.Version)
	w.PutString(string(r.Type))
	return w.Bytes()
}

// IsTombstone reports whether this record represents a revocation.
func (r *Record) IsTombstone() bool { return r.Type == TypeRevoke }

// clone returns a deep-enough copy safe to hand to a caller without
// risking it mutating the store's own copy-on-read state (spec §5:
// trust-store reads are concurrent snapshots).
func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.DeviceName != nil {
		name := *r.DeviceName
		out.DeviceName = &name
	}
	if r.RevokedAt != nil {
		revokedAt := *r.RevokedAt
		out.RevokedAt = &revokedAt
	}
	out.PubKeyFingerprint = append([]byte(nil), r.PubKeyFingerprint...)
	out.PublicKey = append([]byte(nil), r.PublicKey...)
	out.SecureEnclavePublicKey = append([]byte(nil), r.SecureEnclavePublicKey...)
	out.Capabilities = append([]byte(nil), r.Capabilities...)
	out.Signature = append([]byte(nil), r.Signature...)
	out.KEMPublicKeys = make([]KEMPublicKeyInfo, len(r.KEMPublicKeys))
	for i, k := range r.KEMPublicKeys {
		out.KEMPublicKeys[i] = KEMPublicKeyInfo{SuiteWireID: k.SuiteWireID, PublicKey: append([]byte(nil), k.PublicKey...)}
	}
	return &out
}
