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
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skybridge-core/p2pcore/suite"
)

func suiteWireIDFromUint16(v uint16) suite.WireID { return suite.WireID(v) }

func millisToTime(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// keychainService is the fixed service name every record is filed under
// (spec §6's "service com.<org>.p2p.trust").
const keychainService = "com.p2pcore.p2p.trust"

// KeychainEntry is the deterministic-JSON value a Record is serialized to
// before being handed to a CloudSync backend (spec §6's keychain layout).
// Dates are millisecond-epoch, matching Record.SigningPreimage's own
// encoding choice.
type KeychainEntry struct {
	DeviceID               string             `json:"deviceId"`
	DeviceName             *string            `json:"deviceName,omitempty"`
	PubKeyFingerprint      string             `json:"pubKeyFingerprint"` // hex
	PublicKey              string             `json:"publicKey"`        // base64
	SecureEnclavePublicKey string             `json:"secureEnclavePublicKey,omitempty"`
	KEMPublicKeys          []keychainKEMEntry `json:"kemPublicKeys"`
	AttestationLevel       uint8              `json:"attestationLevel"`
	Capabilities           string             `json:"capabilities,omitempty"` // base64
	CreatedAt              int64              `json:"createdAt"`
	UpdatedAt              int64              `json:"updatedAt"`
	RevokedAt              *int64             `json:"revokedAt,omitempty"`
	Version                uint64             `json:"version"`
	Type                   string             `json:"recordType"`
	Signature              string             `json:"signature"` // base64
	Synchronizable         bool               `json:"synchronizable"`
}

type keychainKEMEntry struct {
	SuiteWireID uint16 `json:"suiteWireId"`
	PublicKey   string `json:"publicKey"` // base64
}

// KeychainAccount returns the account name a given deviceId's record is
// filed under (spec §6: "account trust_record_<deviceId>").
func KeychainAccount(deviceID string) string {
	return "trust_record_" + deviceID
}

// SyncToKeychain serializes r to its deterministic keychain layout and
// writes it to sync at (keychainService, KeychainAccount(r.DeviceID)).
// Synchronizable is set iff sync.Available() (spec §6).
func SyncToKeychain(ctx context.Context, sync CloudSync, r *Record) error {
	if !sync.Available() {
		return fmt.Errorf("trust: cloud sync unavailable for deviceId %s", r.DeviceID)
	}
	entry := toKeychainEntry(r, sync.Available())
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("trust: encoding keychain entry: %w", err)
	}
	return sync.Put(ctx, keychainKey(r.DeviceID), data)
}

// FetchFromKeychain reads and decodes deviceId's entry back into a Record
// (the signature is preserved verbatim; callers should still run
// Verify before trusting it).
func FetchFromKeychain(ctx context.Context, sync CloudSync, deviceID string) (*Record, error) {
	data, err := sync.Get(ctx, keychainKey(deviceID))
	if err != nil {
		return nil, err
	}
	var entry KeychainEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("trust: decoding keychain entry: %w", err)
	}
	return fromKeychainEntry(&entry)
}

func keychainKey(deviceID string) string {
	return keychainService + "/" + KeychainAccount(deviceID)
}

func toKeychainEntry(r *Record, synchronizable bool) *KeychainEntry {
	kems := make([]keychainKEMEntry, len(r.KEMPublicKeys))
	for i, k := range r.sortedKEMKeys() {
		kems[i] = keychainKEMEntry{SuiteWireID: uint16(k.SuiteWireID), PublicKey: base64.StdEncoding.EncodeToString(k.PublicKey)}
	}
	entry := &KeychainEntry{
		DeviceID:          r.DeviceID,
		DeviceName:        r.DeviceName,
		PubKeyFingerprint: hex.EncodeToString(r.PubKeyFingerprint),
		PublicKey:         base64.StdEncoding.EncodeToString(r.PublicKey),
		KEMPublicKeys:     kems,
		AttestationLevel:  r.AttestationLevel,
		Capabilities:      base64.StdEncoding.EncodeToString(r.Capabilities),
		CreatedAt:         r.CreatedAt.UnixMilli(),
		UpdatedAt:         r.UpdatedAt.UnixMilli(),
		Version:           r.Version,
		Type:              string(r.Type),
		Signature:         base64.StdEncoding.EncodeToString(r.Signature),
		Synchronizable:    synchronizable,
	}
	if r.SecureEnclavePublicKey != nil {
		entry.SecureEnclavePublicKey = base64.StdEncoding.EncodeToString(r.SecureEnclavePublicKey)
	}
	if r.RevokedAt != nil {
		ms := r.RevokedAt.UnixMilli()
		entry.RevokedAt = &ms
	}
	return entry
}

func fromKeychainEntry(entry *KeychainEntry) (*Record, error) {
	pubKeyFP, err := hex.DecodeString(entry.PubKeyFingerprint)
	if err != nil {
		return nil, fmt.Errorf("trust: decoding pubKeyFingerprint: %w", err)
	}
	pubKey, err := base64.StdEncoding.DecodeString(entry.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("trust: decoding publicKey: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(entry.Signature)
	if err != nil {
		return nil, fmt.Errorf("trust: decoding signature: %w", err)
	}
	var caps []byte
	if entry.Capabilities != "" {
		caps, err = base64.StdEncoding.DecodeString(entry.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("trust: decoding capabilities: %w", err)
		}
	}
	var se []byte
	if entry.SecureEnclavePublicKey != "" {
		se, err = base64.StdEncoding.DecodeString(entry.SecureEnclavePublicKey)
		if err != nil {
			return nil, fmt.Errorf("trust: decoding secureEnclavePublicKey: %w", err)
		}
	}
	kems := make([]KEMPublicKeyInfo, len(entry.KEMPublicKeys))
	for i, k := range entry.KEMPublicKeys {
		kb, err := base64.StdEncoding.DecodeString(k.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("trust: decoding kemPublicKeys[%d]: %w", i, err)
		}
		kems[i] = KEMPublicKeyInfo{SuiteWireID: suiteWireIDFromUint16(k.SuiteWireID), PublicKey: kb}
	}
	r := &Record{
		DeviceID:               entry.DeviceID,
		DeviceName:             entry.DeviceName,
		PubKeyFingerprint:      pubKeyFP,
		PublicKey:              pubKey,
		SecureEnclavePublicKey: se,
		KEMPublicKeys:          kems,
		AttestationLevel:       entry.AttestationLevel,
		Capabilities:           caps,
		CreatedAt:              millisToTime(entry.CreatedAt),
		UpdatedAt:              millisToTime(entry.UpdatedAt),
		Version:                entry.Version,
		Type:                   Type(entry.Type),
		Signature:              sig,
	}
	if entry.RevokedAt != nil {
		t := millisToTime(*entry.RevokedAt)
		r.RevokedAt = &t
	}
	return r, nil
}
