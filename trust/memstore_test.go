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
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/crypto/provider/classicprov"
	"github.com/skybridge-core/p2pcore/suite"
)

func testProvider(t *testing.T) (sagecrypto.Provider, sagecrypto.SigningKeyHandle, []byte) {
	t.Helper()
	provider, err := classicprov.New(uint16(suite.X25519Ed25519))
	if err != nil {
		t.Fatalf("classicprov.New: %v", err)
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519 key generation: %v", err)
	}
	handle := sagecrypto.NewSoftwareSigningKeyHandle(sagecrypto.NewSecureBytesFrom(priv))
	return provider, handle, pub
}

func newSignedRecord(t *testing.T, provider sagecrypto.Provider, handle sagecrypto.SigningKeyHandle, deviceID string, now time.Time) *Record {
	t.Helper()
	r := &Record{
		DeviceID:          deviceID,
		PubKeyFingerprint: []byte{0x01, 0x02, 0x03, 0x04},
		PublicKey:         []byte("pubkey-bytes"),
		Capabilities:      []byte("caps"),
		AttestationLevel:  1,
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
		Type:              TypeAdd,
	}
	if err := Sign(provider, handle, r); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return r
}

func TestRecordSignVerifyRoundTrip(t *testing.T) {
	provider, handle, pub := testProvider(t)
	r := newSignedRecord(t, provider, handle, "device-1", time.Unix(1700000000, 0))
	if err := Verify(provider, pub, r); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestRecordVerifyRejectsTamperedField(t *testing.T) {
	provider, handle, pub := testProvider(t)
	r := newSignedRecord(t, provider, handle, "device-1", time.Unix(1700000000, 0))
	r.Capabilities = []byte("tampered")
	if err := Verify(provider, pub, r); err == nil {
		t.Fatal("expected verification failure after tampering with a signed field")
	}
}

func TestAddThenLookupByDeviceID(t *testing.T) {
	provider, handle, _ := testProvider(t)
	store := NewMemStore()
	r := newSignedRecord(t, provider, handle, "device-1", time.Unix(1700000000, 0))
	if err := store.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, ok := store.Lookup("device-1")
	if !ok {
		t.Fatal("expected lookup by raw deviceId to succeed")
	}
	if got.DeviceID != "device-1" {
		t.Fatalf("got deviceId %q, want device-1", got.DeviceID)
	}
}

func TestLookupResolvesStrippedPrefixAlias(t *testing.T) {
	provider, handle, _ := testProvider(t)
	store := NewMemStore()
	r := newSignedRecord(t, provider, handle, "device-1", time.Unix(1700000000, 0))
	if err := store.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.RegisterAlias("display-name", "device-1"); err != nil {
		t.Fatalf("RegisterAlias: %v", err)
	}
	got, ok := store.Lookup("name:display-name")
	if !ok {
		t.Fatal("expected lookup via stripped name: prefix to succeed")
	}
	if got.DeviceID != "device-1" {
		t.Fatalf("got deviceId %q, want device-1", got.DeviceID)
	}
}

func TestLookupFailsForUnknownIdentifier(t *testing.T) {
	store := NewMemStore()
	if _, ok := store.Lookup("nobody"); ok {
		t.Fatal("expected lookup of an unregistered identifier to fail")
	}
}

func TestAddBlockedAfterTombstone(t *testing.T) {
	provider, handle, _ := testProvider(t)
	store := NewMemStore()
	now := time.Unix(1700000000, 0)
	r := newSignedRecord(t, provider, handle, "device-1", now)
	if err := store.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tombstone, err := store.NewTombstone("device-1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("NewTombstone: %v", err)
	}
	if err := Sign(provider, handle, tombstone); err != nil {
		t.Fatalf("Sign tombstone: %v", err)
	}
	if err := store.Revoke(tombstone); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	reAdd := newSignedRecord(t, provider, handle, "device-1", now.Add(2*time.Hour))
	if err := store.Add(reAdd); err != ErrTombstoned {
		t.Fatalf("Add after tombstone: got %v, want ErrTombstoned", err)
	}
}

func TestMergeRevokeAlwaysWinsOverLiveRecord(t *testing.T) {
	provider, handle, _ := testProvider(t)
	store := NewMemStore()
	now := time.Unix(1700000000, 0)

	local := newSignedRecord(t, provider, handle, "device-1", now)
	if err := store.Add(local); err != nil {
		t.Fatalf("Add: %v", err)
	}

	remoteRevoke := local.clone()
	remoteRevoke.Type = TypeRevoke
	remoteRevoke.Version = 2
	remoteRevoke.UpdatedAt = now.Add(-time.Hour) // older, but a revoke still wins
	if err := Sign(provider, handle, remoteRevoke); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	winner := store.Merge(remoteRevoke)
	if !winner.IsTombstone() {
		t.Fatal("expected revoke to win over a live record regardless of updatedAt")
	}
}

func TestMergeLastWriterWinsBetweenTwoLiveRecords(t *testing.T) {
	provider, handle, _ := testProvider(t)
	store := NewMemStore()
	now := time.Unix(1700000000, 0)

	local := newSignedRecord(t, provider, handle, "device-1", now)
	if err := store.Add(local); err != nil {
		t.Fatalf("Add: %v", err)
	}

	remote := local.clone()
	remote.Capabilities = []byte("newer-caps")
	remote.UpdatedAt = now.Add(time.Hour)
	if err := Sign(provider, handle, remote); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	winner := store.Merge(remote)
	if string(winner.Capabilities) != "newer-caps" {
		t.Fatalf("expected the later-updatedAt record to win, got capabilities %q", winner.Capabilities)
	}
}

func TestGCRemovesOldTombstonesOnly(t *testing.T) {
	provider, handle, _ := testProvider(t)
	store := NewMemStore()
	now := time.Unix(1700000000, 0)

	live := newSignedRecord(t, provider, handle, "device-live", now)
	if err := store.Add(live); err != nil {
		t.Fatalf("Add live: %v", err)
	}

	tombstoned := newSignedRecord(t, provider, handle, "device-old", now)
	if err := store.Add(tombstoned); err != nil {
		t.Fatalf("Add tombstoned: %v", err)
	}
	oldTombstone, err := store.NewTombstone("device-old", now.Add(-31*24*time.Hour))
	if err != nil {
		t.Fatalf("NewTombstone: %v", err)
	}
	if err := Sign(provider, handle, oldTombstone); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := store.Revoke(oldTombstone); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	removed := store.GC(now)
	if removed != 1 {
		t.Fatalf("GC removed %d records, want 1", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d records after GC, want 1 (the live one)", store.Len())
	}
	if _, ok := store.Get("device-live"); !ok {
		t.Fatal("GC should not have removed the live record")
	}
}
