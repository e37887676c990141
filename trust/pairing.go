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
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// PairingMetadata is the optional UI-facing device description carried
// alongside a pairingIdentityExchange (spec §6), surfaced to a human at
// pairing time so they can recognize the device on the other end.
type PairingMetadata struct {
	Model     string `json:"model,omitempty"`
	Platform  string `json:"platform,omitempty"`
	OSVersion string `json:"osVersion,omitempty"`
	Chip      string `json:"chip,omitempty"`
}

// PairingIdentityExchange is the post-handshake control-message payload
// (spec §4.11/§6): the sender's deviceId, its long-term KEM public keys,
// and optional deviceName/metadata. This is the only message kind a
// bootstrap-assisted session permits while its rekey gate is shut
// (session.Session.bootstrapControlOnly).
type PairingIdentityExchange struct {
	DeviceID      string             `json:"deviceId"`
	DeviceName    string             `json:"deviceName,omitempty"`
	KEMPublicKeys []KEMPublicKeyInfo `json:"kemPublicKeys"`
	Metadata      *PairingMetadata   `json:"metadata,omitempty"`
}

// pairingWireEntry mirrors KEMPublicKeyInfo with a JSON-friendly,
// base64-encoded public key under the camelCase keys "suiteWireId" and
// "publicKey" (KEMPublicKeyInfo has no JSON tags, so encoding it directly
// would emit its Go field names). Key ordering is not set here:
// MarshalDeterministic sorts keys afterwards via sortJSONObjectKeys.
type pairingWireEntry struct {
	SuiteWireID uint16 `json:"suiteWireId"`
	PublicKey   string `json:"publicKey"`
}

type pairingWire struct {
	DeviceID      string             `json:"deviceId"`
	DeviceName    string             `json:"deviceName,omitempty"`
	KEMPublicKeys []pairingWireEntry `json:"kemPublicKeys"`
	Metadata      *PairingMetadata   `json:"metadata,omitempty"`
}

// MarshalDeterministic encodes the exchange as JSON with object keys in
// sorted order (spec §4.11: "Schema is deterministic JSON with sorted
// keys"), so two encodings of an equal value are byte-identical.
func (p *PairingIdentityExchange) MarshalDeterministic() ([]byte, error) {
	kems := make([]KEMPublicKeyInfo, len(p.KEMPublicKeys))
	copy(kems, p.KEMPublicKeys)
	sort.Slice(kems, func(i, j int) bool { return kems[i].SuiteWireID < kems[j].SuiteWireID })

	wire := pairingWire{
		DeviceID:   p.DeviceID,
		DeviceName: p.DeviceName,
		Metadata:   p.Metadata,
	}
	wire.KEMPublicKeys = make([]pairingWireEntry, len(kems))
	for i, k := range kems {
		wire.KEMPublicKeys[i] = pairingWireEntry{
			SuiteWireID: uint16(k.SuiteWireID),
			PublicKey:   base64.StdEncoding.EncodeToString(k.PublicKey),
		}
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("trust: encoding pairingIdentityExchange: %w", err)
	}
	return sortJSONObjectKeys(raw)
}

// UnmarshalPairingIdentityExchange decodes a MarshalDeterministic payload.
func UnmarshalPairingIdentityExchange(data []byte) (*PairingIdentityExchange, error) {
	var wire pairingWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("trust: decoding pairingIdentityExchange: %w", err)
	}
	kems := make([]KEMPublicKeyInfo, len(wire.KEMPublicKeys))
	for i, e := range wire.KEMPublicKeys {
		pub, err := base64.StdEncoding.DecodeString(e.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("trust: decoding kemPublicKeys[%d]: %w", i, err)
		}
		kems[i] = KEMPublicKeyInfo{SuiteWireID: suiteWireIDFromUint16(e.SuiteWireID), PublicKey: pub}
	}
	return &PairingIdentityExchange{
		DeviceID:      wire.DeviceID,
		DeviceName:    wire.DeviceName,
		KEMPublicKeys: kems,
		Metadata:      wire.Metadata,
	}, nil
}

// sortJSONObjectKeys re-marshals a JSON document with every object's keys
// sorted lexicographically, by round-tripping through map[string]any
// (whose keys json.Marshal already emits in sorted order) at every
// nesting level. This gives encode(V) a single canonical byte form
// regardless of the originating struct's field order.
func sortJSONObjectKeys(data []byte) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
