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
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/crypto/provider/classicprov"
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/trust"
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

func TestCacheUpdateThenLookup(t *testing.T) {
	c := NewCache()
	c.Update("peer-1", []trust.KEMPublicKeyInfo{
		{SuiteWireID: suite.MLKEM768MLDSA65, PublicKey: []byte("kem-pub")},
	})
	keys, ok := c.Lookup("peer-1")
	if !ok {
		t.Fatal("expected lookup to succeed after Update")
	}
	if len(keys) != 1 || string(keys[0].PublicKey) != "kem-pub" {
		t.Fatalf("unexpected keys: %+v", keys)
	}
}

func TestCacheLookupMissingAlias(t *testing.T) {
	c := NewCache()
	if _, ok := c.Lookup("nobody"); ok {
		t.Fatal("expected lookup of unknown alias to fail")
	}
}

func TestCacheForSuiteFiltersByWireID(t *testing.T) {
	c := NewCache()
	c.Update("peer-1", []trust.KEMPublicKeyInfo{
		{SuiteWireID: suite.MLKEM768MLDSA65, PublicKey: []byte("mlkem-pub")},
		{SuiteWireID: suite.XWingMLDSA65, PublicKey: []byte("xwing-pub")},
	})
	got, ok := c.ForSuite("peer-1", suite.XWingMLDSA65)
	if !ok {
		t.Fatal("expected ForSuite to find the matching entry")
	}
	if string(got) != "xwing-pub" {
		t.Fatalf("got %q, want xwing-pub", got)
	}
	if _, ok := c.ForSuite("peer-1", suite.P256ECDSA); ok {
		t.Fatal("expected ForSuite to fail for a suite with no cached key")
	}
}

func TestCacheUpdateReplacesPreviousEntry(t *testing.T) {
	c := NewCache()
	c.Update("peer-1", []trust.KEMPublicKeyInfo{{SuiteWireID: suite.MLKEM768MLDSA65, PublicKey: []byte("old")}})
	c.Update("peer-1", []trust.KEMPublicKeyInfo{{SuiteWireID: suite.MLKEM768MLDSA65, PublicKey: []byte("new")}})
	keys, _ := c.Lookup("peer-1")
	if len(keys) != 1 || string(keys[0].PublicKey) != "new" {
		t.Fatalf("expected Update to replace the cached entry, got %+v", keys)
	}
}

func TestCacheDeleteRemovesEntry(t *testing.T) {
	c := NewCache()
	c.Update("peer-1", []trust.KEMPublicKeyInfo{{SuiteWireID: suite.MLKEM768MLDSA65, PublicKey: []byte("k")}})
	c.Delete("peer-1")
	if _, ok := c.Lookup("peer-1"); ok {
		t.Fatal("expected entry to be gone after Delete")
	}
}

func TestResolverPrefersTrustStoreOverCache(t *testing.T) {
	store := trust.NewMemStore()
	provider, handle, _ := testProvider(t)
	now := time.Unix(1700000000, 0)
	rec := &trust.Record{
		DeviceID:          "peer-1",
		PubKeyFingerprint: []byte{0xaa},
		PublicKey:         []byte("identity-pub"),
		KEMPublicKeys: []trust.KEMPublicKeyInfo{
			{SuiteWireID: suite.MLKEM768MLDSA65, PublicKey: []byte("store-kem")},
		},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
		Type:      trust.TypeAdd,
	}
	if err := trust.Sign(provider, handle, rec); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := store.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cache := NewCache()
	cache.Update("peer-1", []trust.KEMPublicKeyInfo{{SuiteWireID: suite.MLKEM768MLDSA65, PublicKey: []byte("cache-kem")}})

	resolver := Resolver{Store: store, Cache: cache, Alias: "peer-1"}
	got, ok := resolver.Lookup(suite.MLKEM768MLDSA65)
	if !ok {
		t.Fatal("expected resolver lookup to succeed")
	}
	if string(got) != "store-kem" {
		t.Fatalf("expected trust store entry to win, got %q", got)
	}
}

func TestResolverFallsBackToCacheWhenStoreHasNoKEMEntries(t *testing.T) {
	store := trust.NewMemStore()
	provider, handle, _ := testProvider(t)
	now := time.Unix(1700000000, 0)
	rec := &trust.Record{
		DeviceID:          "peer-1",
		PubKeyFingerprint: []byte{0xaa},
		PublicKey:         []byte("identity-pub"),
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
		Type:              trust.TypeAdd,
	}
	if err := trust.Sign(provider, handle, rec); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := store.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cache := NewCache()
	cache.Update("peer-1", []trust.KEMPublicKeyInfo{{SuiteWireID: suite.MLKEM768MLDSA65, PublicKey: []byte("cache-kem")}})

	resolver := Resolver{Store: store, Cache: cache, Alias: "peer-1"}
	got, ok := resolver.Lookup(suite.MLKEM768MLDSA65)
	if !ok {
		t.Fatal("expected resolver to fall back to the bootstrap cache")
	}
	if string(got) != "cache-kem" {
		t.Fatalf("expected bootstrap cache entry, got %q", got)
	}
}

func TestResolverFailsWhenNeitherSourceHasTheSuite(t *testing.T) {
	store := trust.NewMemStore()
	resolver := Resolver{Store: store, Cache: NewCache(), Alias: "nobody"}
	if _, ok := resolver.Lookup(suite.MLKEM768MLDSA65); ok {
		t.Fatal("expected lookup to fail when neither source knows the peer")
	}
}
