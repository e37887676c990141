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
	"fmt"
	"io"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/replay"
	"github.com/skybridge-core/p2pcore/suite"
)

// ResponderConfig configures one Responder driver instance, one per
// inbound handshake attempt.
type ResponderConfig struct {
	ProtocolVersion uint8
	// LocalSuites is the responder's own supported-suite set, checked
	// against the initiator's offer during selection.
	LocalSuites  map[suite.WireID]bool
	Policy       HandshakePolicy
	Capabilities []byte
	Identity     Identity
	ProviderFor  ProviderFactory
	OwnKEMPriv   OwnKEMPrivateKey
	Replay       *replay.Cache
	AEAD         AEADAlgorithm
	Rand         io.Reader
}

// Responder drives the responder side: Idle → (on valid A) SentB → (on
// peer Finished & own Finished ack) Established.
type Responder struct {
	cfg   ResponderConfig
	state State

	msgABytes   []byte
	msgBBytes   []byte
	clientNonce [32]byte
	serverNonce [32]byte

	selectedSuite   suite.WireID
	initiatorPolicy HandshakePolicy
	sessionKeys     *SessionKeys
	handshakeID     [32]byte
	atFinishedHash  [32]byte
}

// NewResponder constructs a Responder ready to process MessageA.
func NewResponder(cfg ResponderConfig) *Responder {
	return &Responder{cfg: cfg, state: StateIdle}
}

// State reports the driver's current state.
func (r *Responder) State() State { return r.state }

// ProcessMessageA selects a suite, verifies the initiator's signature,
// completes the KEM/ECDH exchange, and builds the signed MessageB reply.
// A suite-negotiation failure leaves the driver in
// StateSuiteNegotiationFailed without ever sending MessageB, matching
// spec §4.6's "MessageB not sent" requirement.
func (r *Responder) ProcessMessageA(msg *MessageA) (*MessageB, error) {
	if r.state != StateIdle {
		return nil, fmt.Errorf("%w: ProcessMessageA called in state %s", ErrWrongState, r.state)
	}
	if msg.ProtocolVersion != r.cfg.ProtocolVersion {
		r.state = StateDowngrade
		return nil, fmt.Errorf("%w: protocol version %d != %d", ErrDowngrade, msg.ProtocolVersion, r.cfg.ProtocolVersion)
	}

	initiatorPolicy, err := DecodePolicy(msg.Policy)
	if err != nil {
		return nil, err
	}
	r.initiatorPolicy = initiatorPolicy

	shareByID := make(map[suite.WireID][]byte, len(msg.KeyShares))
	for _, ks := range msg.KeyShares {
		shareByID[ks.WireID] = ks.Share
	}

	requirePQC := r.cfg.Policy.RequirePQC || initiatorPolicy.RequirePQC
	selected, ok := r.selectSuite(msg.SupportedSuites, shareByID, requirePQC)
	if !ok {
		r.state = StateSuiteNegotiationFailed
		return nil, fmt.Errorf("%w", ErrSuiteNegotiationFailed)
	}
	r.selectedSuite = selected

	provider, err := r.cfg.ProviderFor(selected)
	if err != nil {
		return nil, fmt.Errorf("handshake: provider for suite 0x%04x: %w", uint16(selected), err)
	}

	if err := verifyWithIdentity(provider, msg.IdentityPubKey, msg.SignaturePreimage(), msg.Signature,
		seSigAPreimage(msg.SignaturePreimage()), msg.SESignature); err != nil {
		r.state = StateAuthFailed
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	r.clientNonce = msg.ClientNonce
	r.msgABytes = msg.Encode()

	responderShare, sharedSecret, err := r.completeExchange(provider, selected, shareByID[selected])
	if err != nil {
		r.state = StateAuthFailed
		return nil, err
	}

	serverNonce, err := randomNonce(r.cfg.Rand)
	if err != nil {
		return nil, fmt.Errorf("handshake: server nonce generation failed: %w", err)
	}
	r.serverNonce = serverNonce

	keys, err := deriveSessionKeys(sharedSecret.Bytes(), r.clientNonce[:], serverNonce[:], false)
	if err != nil {
		return nil, fmt.Errorf("handshake: key derivation failed: %w", err)
	}
	r.sessionKeys = keys
	r.handshakeID = computeHandshakeID(r.clientNonce, serverNonce, uint16(selected))

	if r.cfg.Replay != nil && !r.cfg.Replay.RegisterIfNew(r.handshakeID) {
		r.state = StateReplay
		return nil, fmt.Errorf("%w", ErrReplayDetected)
	}

	sealed, err := Seal(r.cfg.AEAD, selected, ContextHandshake, keys.SendKey, r.handshakeID[:], r.cfg.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("handshake: sealing encryptedPayload: %w", err)
	}

	reply := &MessageB{
		ProtocolVersion: r.cfg.ProtocolVersion,
		SelectedSuite:   selected,
		ResponderShare:  responderShare,
		ServerNonce:     serverNonce,
		Encrypted:       sealed,
		IdentityPubKey:  r.cfg.Identity.PublicKey,
	}

	in := checkpointInputs{
		protocolVersion: r.cfg.ProtocolVersion,
		selectedSuite:   selected,
		responderCaps:   r.cfg.Capabilities,
		initiatorCaps:   msg.Capabilities,
		policyBytes:     msg.Policy,
		msgABytes:       r.msgABytes,
	}
	transcriptHashAfterA := afterAHash(in)

	sigBInput := sigBPreimage(transcriptHashAfterA, reply)
	sig, seSig, err := signWithIdentity(provider, r.cfg.Identity, sigBInput, seSigBPreimage(sigBInput))
	if err != nil {
		return nil, fmt.Errorf("handshake: signing MessageB: %w", err)
	}
	reply.Signature = sig
	reply.SESignature = seSig

	r.msgBBytes = reply.Encode()
	in.msgBBytes = r.msgBBytes
	r.atFinishedHash = atFinishedHash(in)
	r.state = StateSentB
	return reply, nil
}

// selectSuite implements spec §4.6's responder suite-selection rule:
// iterate the initiator's offer in order, pick the first wire ID in
// both the responder's local set and the initiator's keyShares, meeting
// minimumTier, and PQC-group if requirePQC.
func (r *Responder) selectSuite(offered []suite.WireID, shareByID map[suite.WireID][]byte, requirePQC bool) (suite.WireID, bool) {
	for _, id := range offered {
		if !r.cfg.LocalSuites[id] {
			continue
		}
		if _, hasShare := shareByID[id]; !hasShare {
			continue
		}
		if !satisfiesMinimumTier(suite.ClassifyTier(id), r.cfg.Policy.MinimumTier) {
			continue
		}
		if requirePQC && !suite.IsPQCGroup(id) {
			continue
		}
		return id, true
	}
	return 0, false
}

// completeExchange finishes the KEM or ECDH exchange for the selected
// suite, returning the responderShare bytes to put on the wire (empty
// for PQC suites) and the derived shared secret.
func (r *Responder) completeExchange(provider sagecrypto.Provider, selected suite.WireID, initiatorShare []byte) ([]byte, *sagecrypto.SecureBytes, error) {
	if suite.ClassifyTier(selected) != suite.TierClassic {
		priv, ok := r.cfg.OwnKEMPriv(selected)
		if !ok {
			return nil, nil, fmt.Errorf("handshake: no long-term KEM private key for suite 0x%04x", uint16(selected))
		}
		shared, err := provider.KEMDecapsulate(initiatorShare, priv)
		if err != nil {
			return nil, nil, fmt.Errorf("handshake: decapsulate for suite 0x%04x: %w", uint16(selected), err)
		}
		return nil, shared, nil
	}

	kp, err := provider.GenerateKeyPair(sagecrypto.KeyUsageKeyExchange)
	if err != nil {
		return nil, nil, fmt.Errorf("handshake: ephemeral key generation for suite 0x%04x: %w", uint16(selected), err)
	}
	exporter, ok := kp.(interface{ PublicBytesKey() []byte })
	if !ok {
		return nil, nil, fmt.Errorf("handshake: suite 0x%04x key pair does not expose raw public bytes", uint16(selected))
	}
	privBytes, err := rawPrivateKeyBytes(kp)
	if err != nil {
		return nil, nil, err
	}
	shared, err := provider.KEMDecapsulate(initiatorShare, sagecrypto.NewSecureBytesFrom(privBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("handshake: ECDH for suite 0x%04x: %w", uint16(selected), err)
	}
	return exporter.PublicBytesKey(), shared, nil
}

// BuildFinished produces the responder's Finished message.
func (r *Responder) BuildFinished() (*Finished, error) {
	if r.state != StateSentB {
		return nil, fmt.Errorf("%w: BuildFinished called in state %s", ErrWrongState, r.state)
	}
	mac := computeFinishedMAC(r.sessionKeys.FinishedKey, r.atFinishedHash, DirectionResponderToInitiator)
	return &Finished{Direction: DirectionResponderToInitiator, MAC: mac}, nil
}

// ProcessPeerFinished verifies the initiator's Finished message and, on
// success, transitions to Established and returns the session keys.
func (r *Responder) ProcessPeerFinished(fin *Finished) (*SessionKeys, error) {
	if r.state != StateSentB {
		return nil, fmt.Errorf("%w: ProcessPeerFinished called in state %s", ErrWrongState, r.state)
	}
	if fin.Direction != DirectionInitiatorToResponder {
		r.state = StateAuthFailed
		return nil, fmt.Errorf("%w: unexpected Finished direction %d", ErrAuthFailed, fin.Direction)
	}
	if !verifyFinishedMAC(r.sessionKeys.FinishedKey, r.atFinishedHash, DirectionInitiatorToResponder, fin.MAC) {
		r.state = StateAuthFailed
		return nil, fmt.Errorf("%w: Finished MAC mismatch", ErrAuthFailed)
	}
	r.state = StateEstablished
	return r.sessionKeys, nil
}

// HandshakeID returns the replay-cache key for this attempt, valid once
// ProcessMessageA has succeeded.
func (r *Responder) HandshakeID() [32]byte { return r.handshakeID }
