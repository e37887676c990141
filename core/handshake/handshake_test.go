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

package handshake

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/crypto/provider/classicprov"
	"github.com/skybridge-core/p2pcore/replay"
	"github.com/skybridge-core/p2pcore/suite"
)

func classicProviderFor(wireID suite.WireID) (sagecrypto.Provider, error) {
	return classicprov.New(uint16(wireID))
}

func newEd25519Identity(t *testing.T) Identity {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519 key generation: %v", err)
	}
	return Identity{
		PublicKey:     pub,
		SigningHandle: sagecrypto.NewSoftwareSigningKeyHandle(sagecrypto.NewSecureBytesFrom(priv)),
	}
}

func noPeerKEM(suite.WireID) ([]byte, bool) { return nil, false }

func noOwnKEMPriv(suite.WireID) (*sagecrypto.SecureBytes, bool) { return nil, false }

func TestHandshakeRoundTripClassicSuite(t *testing.T) {
	initIdentity := newEd25519Identity(t)
	respIdentity := newEd25519Identity(t)

	policy := HandshakePolicy{MinimumTier: suite.TierClassic}

	initiator := NewInitiator(InitiatorConfig{
		ProtocolVersion: 1,
		OfferedSuites:   []suite.WireID{suite.X25519Ed25519},
		Policy:          policy,
		Capabilities:    []byte("initiator-caps"),
		Identity:        initIdentity,
		ProviderFor:     classicProviderFor,
		PeerKEM:         noPeerKEM,
		Rand:            rand.Reader,
	})

	replayCache := replay.NewCache()
	responder := NewResponder(ResponderConfig{
		ProtocolVersion: 1,
		LocalSuites:     map[suite.WireID]bool{suite.X25519Ed25519: true},
		Policy:          policy,
		Capabilities:    []byte("responder-caps"),
		Identity:        respIdentity,
		ProviderFor:     classicProviderFor,
		OwnKEMPriv:      noOwnKEMPriv,
		Replay:          replayCache,
		AEAD:            AEADAES256GCM,
		Rand:            rand.Reader,
	})

	msgA, err := initiator.BuildMessageA()
	if err != nil {
		t.Fatalf("BuildMessageA: %v", err)
	}
	wireA := msgA.Encode()
	decodedA, err := DecodeMessageA(wireA)
	if err != nil {
		t.Fatalf("DecodeMessageA: %v", err)
	}

	msgB, err := responder.ProcessMessageA(decodedA)
	if err != nil {
		t.Fatalf("ProcessMessageA: %v", err)
	}
	if responder.State() != StateSentB {
		t.Fatalf("responder state = %s, want sentB", responder.State())
	}
	wireB := msgB.Encode()
	decodedB, err := DecodeMessageB(wireB)
	if err != nil {
		t.Fatalf("DecodeMessageB: %v", err)
	}

	if err := initiator.ProcessMessageB(decodedB); err != nil {
		t.Fatalf("ProcessMessageB: %v", err)
	}
	if initiator.State() != StateVerified {
		t.Fatalf("initiator state = %s, want verified", initiator.State())
	}

	finI, err := initiator.BuildFinished()
	if err != nil {
		t.Fatalf("initiator BuildFinished: %v", err)
	}
	finR, err := responder.BuildFinished()
	if err != nil {
		t.Fatalf("responder BuildFinished: %v", err)
	}

	decodedFinR, err := DecodeFinished(finR.Encode())
	if err != nil {
		t.Fatalf("DecodeFinished(finR): %v", err)
	}
	decodedFinI, err := DecodeFinished(finI.Encode())
	if err != nil {
		t.Fatalf("DecodeFinished(finI): %v", err)
	}

	initiatorKeys, err := initiator.ProcessPeerFinished(decodedFinR)
	if err != nil {
		t.Fatalf("initiator ProcessPeerFinished: %v", err)
	}
	responderKeys, err := responder.ProcessPeerFinished(decodedFinI)
	if err != nil {
		t.Fatalf("responder ProcessPeerFinished: %v", err)
	}

	if initiator.State() != StateEstablished || responder.State() != StateEstablished {
		t.Fatalf("states = %s/%s, want established/established", initiator.State(), responder.State())
	}

	if !bytes.Equal(initiatorKeys.SendKey, responderKeys.ReceiveKey) {
		t.Error("initiator send key does not match responder receive key")
	}
	if !bytes.Equal(initiatorKeys.ReceiveKey, responderKeys.SendKey) {
		t.Error("initiator receive key does not match responder send key")
	}
	if !bytes.Equal(initiatorKeys.FinishedKey, responderKeys.FinishedKey) {
		t.Error("finished keys diverge between initiator and responder")
	}
	if initiator.HandshakeID() != responder.HandshakeID() {
		t.Error("handshake IDs diverge between initiator and responder")
	}
}

func TestResponderRejectsReplayedMessageA(t *testing.T) {
	initIdentity := newEd25519Identity(t)
	respIdentity := newEd25519Identity(t)
	policy := HandshakePolicy{MinimumTier: suite.TierClassic}

	initiator := NewInitiator(InitiatorConfig{
		ProtocolVersion: 1,
		OfferedSuites:   []suite.WireID{suite.X25519Ed25519},
		Policy:          policy,
		Capabilities:    []byte("caps"),
		Identity:        initIdentity,
		ProviderFor:     classicProviderFor,
		PeerKEM:         noPeerKEM,
		Rand:            rand.Reader,
	})
	msgA, err := initiator.BuildMessageA()
	if err != nil {
		t.Fatalf("BuildMessageA: %v", err)
	}

	sharedReplay := replay.NewCache()
	newResponder := func() *Responder {
		return NewResponder(ResponderConfig{
			ProtocolVersion: 1,
			LocalSuites:     map[suite.WireID]bool{suite.X25519Ed25519: true},
			Policy:          policy,
			Capabilities:    []byte("caps"),
			Identity:        respIdentity,
			ProviderFor:     classicProviderFor,
			OwnKEMPriv:      noOwnKEMPriv,
			Replay:          sharedReplay,
			AEAD:            AEADAES256GCM,
			Rand:            rand.Reader,
		})
	}

	if _, err := newResponder().ProcessMessageA(msgA); err != nil {
		t.Fatalf("first ProcessMessageA: %v", err)
	}

	replayed := newResponder()
	if _, err := replayed.ProcessMessageA(msgA); err == nil {
		t.Fatal("expected replay rejection on second ProcessMessageA with same handshake")
	}
	if replayed.State() != StateReplay {
		t.Fatalf("state = %s, want replay", replayed.State())
	}
}

func TestResponderRejectsTamperedSignature(t *testing.T) {
	initIdentity := newEd25519Identity(t)
	respIdentity := newEd25519Identity(t)
	policy := HandshakePolicy{MinimumTier: suite.TierClassic}

	initiator := NewInitiator(InitiatorConfig{
		ProtocolVersion: 1,
		OfferedSuites:   []suite.WireID{suite.X25519Ed25519},
		Policy:          policy,
		Capabilities:    []byte("caps"),
		Identity:        initIdentity,
		ProviderFor:     classicProviderFor,
		PeerKEM:         noPeerKEM,
		Rand:            rand.Reader,
	})
	msgA, err := initiator.BuildMessageA()
	if err != nil {
		t.Fatalf("BuildMessageA: %v", err)
	}
	msgA.Signature[0] ^= 0xFF

	responder := NewResponder(ResponderConfig{
		ProtocolVersion: 1,
		LocalSuites:     map[suite.WireID]bool{suite.X25519Ed25519: true},
		Policy:          policy,
		Capabilities:    []byte("caps"),
		Identity:        respIdentity,
		ProviderFor:     classicProviderFor,
		OwnKEMPriv:      noOwnKEMPriv,
		Replay:          replay.NewCache(),
		AEAD:            AEADAES256GCM,
		Rand:            rand.Reader,
	})

	if _, err := responder.ProcessMessageA(msgA); err == nil {
		t.Fatal("expected authentication failure for tampered signature")
	}
	if responder.State() != StateAuthFailed {
		t.Fatalf("state = %s, want authFailed", responder.State())
	}
}

func TestSuiteNegotiationFailsWithNoCommonSuite(t *testing.T) {
	initIdentity := newEd25519Identity(t)
	respIdentity := newEd25519Identity(t)
	policy := HandshakePolicy{MinimumTier: suite.TierClassic}

	initiator := NewInitiator(InitiatorConfig{
		ProtocolVersion: 1,
		OfferedSuites:   []suite.WireID{suite.X25519Ed25519},
		Policy:          policy,
		Capabilities:    []byte("caps"),
		Identity:        initIdentity,
		ProviderFor:     classicProviderFor,
		PeerKEM:         noPeerKEM,
		Rand:            rand.Reader,
	})
	msgA, err := initiator.BuildMessageA()
	if err != nil {
		t.Fatalf("BuildMessageA: %v", err)
	}

	responder := NewResponder(ResponderConfig{
		ProtocolVersion: 1,
		LocalSuites:     map[suite.WireID]bool{suite.P256ECDSA: true},
		Policy:          policy,
		Capabilities:    []byte("caps"),
		Identity:        respIdentity,
		ProviderFor:     classicProviderFor,
		OwnKEMPriv:      noOwnKEMPriv,
		Replay:          replay.NewCache(),
		AEAD:            AEADAES256GCM,
		Rand:            rand.Reader,
	})

	if _, err := responder.ProcessMessageA(msgA); err == nil {
		t.Fatal("expected suite negotiation failure")
	}
	if responder.State() != StateSuiteNegotiationFailed {
		t.Fatalf("state = %s, want suiteNegotiationFailed", responder.State())
	}
}
