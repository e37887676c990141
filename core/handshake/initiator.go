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
	"github.com/skybridge-core/p2pcore/suite"
)

// InitiatorConfig configures one Initiator driver instance, one per
// handshake attempt (spec §3 Lifecycle: a driver is not reused across
// attempts).
type InitiatorConfig struct {
	ProtocolVersion uint8
	// OfferedSuites is the priority-ordered list sent as
	// MessageA.supportedSuites.
	OfferedSuites []suite.WireID
	Policy        HandshakePolicy
	Capabilities  []byte
	Identity      Identity
	ProviderFor   ProviderFactory
	PeerKEM       PeerKEMLookup
	Rand          io.Reader
}

// Initiator drives the initiator side of the handshake: Idle → SentA →
// (on valid B) Verified → SentFinished → (on peer Finished) Established.
type Initiator struct {
	cfg   InitiatorConfig
	state State

	msgABytes   []byte
	clientNonce [32]byte

	// pendingShared holds the locally-derived shared secret for every
	// PQC suite the initiator already encapsulated against in
	// BuildMessageA, keyed by suite; classicEphemeral holds the
	// ephemeral private key generated for every classic suite offered.
	pendingShared    map[suite.WireID]*sagecrypto.SecureBytes
	classicEphemeral map[suite.WireID]*sagecrypto.SecureBytes

	selectedSuite suite.WireID
	sessionKeys   *SessionKeys
	handshakeID   [32]byte

	atFinishedHash [32]byte
}

// NewInitiator constructs an Initiator ready to build MessageA.
func NewInitiator(cfg InitiatorConfig) *Initiator {
	return &Initiator{
		cfg:              cfg,
		state:            StateIdle,
		pendingShared:    make(map[suite.WireID]*sagecrypto.SecureBytes),
		classicEphemeral: make(map[suite.WireID]*sagecrypto.SecureBytes),
	}
}

// State reports the driver's current state.
func (i *Initiator) State() State { return i.state }

// BuildMessageA constructs, signs, and returns the opening message.
// Suites the initiator cannot currently generate a usable key share for
// (a PQC suite whose peer KEM public key is unknown) are silently
// dropped from keyShares while remaining listed in supportedSuites, per
// spec §4.6's invariant that keyShares is a (not necessarily total)
// ordered subsequence.
func (i *Initiator) BuildMessageA() (*MessageA, error) {
	if i.state != StateIdle {
		return nil, fmt.Errorf("%w: BuildMessageA called in state %s", ErrWrongState, i.state)
	}

	nonce, err := randomNonce(i.cfg.Rand)
	if err != nil {
		return nil, fmt.Errorf("handshake: client nonce generation failed: %w", err)
	}
	i.clientNonce = nonce

	msg := &MessageA{
		ProtocolVersion: i.cfg.ProtocolVersion,
		SupportedSuites: i.cfg.OfferedSuites,
		ClientNonce:     nonce,
		Capabilities:    i.cfg.Capabilities,
		Policy:          i.cfg.Policy.Encode(),
		IdentityPubKey:  i.cfg.Identity.PublicKey,
	}

	for _, wireID := range i.cfg.OfferedSuites {
		share, err := i.buildKeyShare(wireID)
		if err != nil {
			return nil, err
		}
		if share == nil {
			continue
		}
		msg.KeyShares = append(msg.KeyShares, KeyShareEntry{WireID: wireID, Share: share})
	}
	if len(msg.KeyShares) == 0 {
		return nil, ErrNoUsableSuite
	}

	provider, err := i.cfg.ProviderFor(i.cfg.OfferedSuites[0])
	if err != nil {
		return nil, fmt.Errorf("handshake: provider for signing identity: %w", err)
	}
	sigAInput := msg.SignaturePreimage()
	sig, seSig, err := signWithIdentity(provider, i.cfg.Identity, sigAInput, seSigAPreimage(sigAInput))
	if err != nil {
		return nil, fmt.Errorf("handshake: signing MessageA: %w", err)
	}
	msg.Signature = sig
	msg.SESignature = seSig

	i.msgABytes = msg.Encode()
	i.state = StateSentA
	return msg, nil
}

// buildKeyShare produces MessageA's key-share entry for one offered
// suite: a KEM ciphertext for a PQC suite (requires a known peer KEM
// public key) or a fresh ephemeral public key for a classic suite. A nil
// return (with nil error) means this suite has no usable share yet and
// is omitted from keyShares.
func (i *Initiator) buildKeyShare(wireID suite.WireID) ([]byte, error) {
	if suite.ClassifyTier(wireID) == suite.TierClassic {
		provider, err := i.cfg.ProviderFor(wireID)
		if err != nil {
			return nil, fmt.Errorf("handshake: provider for suite 0x%04x: %w", uint16(wireID), err)
		}
		kp, err := provider.GenerateKeyPair(sagecrypto.KeyUsageKeyExchange)
		if err != nil {
			return nil, fmt.Errorf("handshake: ephemeral key generation for suite 0x%04x: %w", uint16(wireID), err)
		}
		exporter, ok := kp.(interface{ PublicBytesKey() []byte })
		if !ok {
			return nil, fmt.Errorf("handshake: suite 0x%04x key pair does not expose raw public bytes", uint16(wireID))
		}
		pubBytes := exporter.PublicBytesKey()
		privBytes, err := rawPrivateKeyBytes(kp)
		if err != nil {
			return nil, err
		}
		i.classicEphemeral[wireID] = sagecrypto.NewSecureBytesFrom(privBytes)
		return pubBytes, nil
	}

	// PQC suite: the key share is a KEM ciphertext encapsulated against
	// the peer's already-known long-term KEM public key.
	peerPub, ok := i.cfg.PeerKEM(wireID)
	if !ok {
		return nil, nil
	}
	provider, err := i.cfg.ProviderFor(wireID)
	if err != nil {
		return nil, fmt.Errorf("handshake: provider for suite 0x%04x: %w", uint16(wireID), err)
	}
	result, err := provider.KEMEncapsulate(peerPub)
	if err != nil {
		return nil, fmt.Errorf("handshake: encapsulate for suite 0x%04x: %w", uint16(wireID), err)
	}
	i.pendingShared[wireID] = result.SharedSecret
	return result.Encapsulated, nil
}

// ProcessMessageB verifies and consumes the responder's reply. On
// success the driver moves to Verified and the session keys (not yet
// safe to use for application data — Established requires both Finished
// messages) are available via SessionKeys().
func (i *Initiator) ProcessMessageB(msg *MessageB) error {
	if i.state != StateSentA {
		return fmt.Errorf("%w: ProcessMessageB called in state %s", ErrWrongState, i.state)
	}
	if msg.ProtocolVersion != i.cfg.ProtocolVersion {
		i.state = StateDowngrade
		return fmt.Errorf("%w: protocol version %d != %d", ErrDowngrade, msg.ProtocolVersion, i.cfg.ProtocolVersion)
	}

	if err := i.checkSelectedSuite(msg.SelectedSuite); err != nil {
		return err
	}
	i.selectedSuite = msg.SelectedSuite

	sharedSecret, err := i.deriveSharedSecret(msg)
	if err != nil {
		i.state = StateAuthFailed
		return err
	}

	keys, err := deriveSessionKeys(sharedSecret.Bytes(), i.clientNonce[:], msg.ServerNonce[:], true)
	if err != nil {
		return fmt.Errorf("handshake: key derivation failed: %w", err)
	}
	i.sessionKeys = keys
	i.handshakeID = computeHandshakeID(i.clientNonce, msg.ServerNonce, uint16(msg.SelectedSuite))

	peerCaps, err := msg.Encrypted.Open(keys.ReceiveKey, i.handshakeID[:])
	if err != nil {
		i.state = StateAuthFailed
		return fmt.Errorf("%w: encryptedPayload: %v", ErrAuthFailed, err)
	}

	in := checkpointInputs{
		protocolVersion: i.cfg.ProtocolVersion,
		selectedSuite:   i.selectedSuite,
		responderCaps:   peerCaps,
		initiatorCaps:   i.cfg.Capabilities,
		policyBytes:     i.cfg.Policy.Encode(),
		msgABytes:       i.msgABytes,
	}
	transcriptHashAfterA := afterAHash(in)

	provider, err := i.cfg.ProviderFor(i.selectedSuite)
	if err != nil {
		return fmt.Errorf("handshake: provider for verifying MessageB: %w", err)
	}
	sigBInput := sigBPreimage(transcriptHashAfterA, msg)
	if err := verifyWithIdentity(provider, msg.IdentityPubKey, sigBInput, msg.Signature, seSigBPreimage(sigBInput), msg.SESignature); err != nil {
		i.state = StateAuthFailed
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	in.msgBBytes = msg.Encode()
	i.atFinishedHash = atFinishedHash(in)
	i.state = StateVerified
	return nil
}

// checkSelectedSuite enforces that the responder chose a suite the
// initiator actually offered a usable key share for, and that a
// requirePQC policy was not downgraded.
func (i *Initiator) checkSelectedSuite(selected suite.WireID) error {
	if _, ok := i.pendingShared[selected]; !ok {
		if _, ok := i.classicEphemeral[selected]; !ok {
			i.state = StateDowngrade
			return fmt.Errorf("%w: selected suite 0x%04x has no corresponding key share", ErrDowngrade, uint16(selected))
		}
	}
	if i.cfg.Policy.RequirePQC && !suite.IsPQCGroup(selected) {
		i.state = StatePolicyViolation
		return fmt.Errorf("%w: requirePQC set but selected suite 0x%04x is not PQC-group", ErrPolicyViolation, uint16(selected))
	}
	return nil
}

func (i *Initiator) deriveSharedSecret(msg *MessageB) (*sagecrypto.SecureBytes, error) {
	if shared, ok := i.pendingShared[msg.SelectedSuite]; ok {
		return shared, nil
	}
	priv := i.classicEphemeral[msg.SelectedSuite]
	provider, err := i.cfg.ProviderFor(msg.SelectedSuite)
	if err != nil {
		return nil, fmt.Errorf("handshake: provider for suite 0x%04x: %w", uint16(msg.SelectedSuite), err)
	}
	return provider.KEMDecapsulate(msg.ResponderShare, priv)
}

// BuildFinished produces this side's Finished message, computed over
// the at-Finished transcript checkpoint fixed in ProcessMessageB.
func (i *Initiator) BuildFinished() (*Finished, error) {
	if i.state != StateVerified {
		return nil, fmt.Errorf("%w: BuildFinished called in state %s", ErrWrongState, i.state)
	}
	mac := computeFinishedMAC(i.sessionKeys.FinishedKey, i.atFinishedHash, DirectionInitiatorToResponder)
	i.state = StateSentFinished
	return &Finished{Direction: DirectionInitiatorToResponder, MAC: mac}, nil
}

// ProcessPeerFinished verifies the responder's Finished message and, on
// success, transitions to Established and returns the session keys.
func (i *Initiator) ProcessPeerFinished(fin *Finished) (*SessionKeys, error) {
	if i.state != StateSentFinished {
		return nil, fmt.Errorf("%w: ProcessPeerFinished called in state %s", ErrWrongState, i.state)
	}
	if fin.Direction != DirectionResponderToInitiator {
		i.state = StateAuthFailed
		return nil, fmt.Errorf("%w: unexpected Finished direction %d", ErrAuthFailed, fin.Direction)
	}
	if !verifyFinishedMAC(i.sessionKeys.FinishedKey, i.atFinishedHash, DirectionResponderToInitiator, fin.MAC) {
		i.state = StateAuthFailed
		return nil, fmt.Errorf("%w: Finished MAC mismatch", ErrAuthFailed)
	}
	i.state = StateEstablished
	return i.sessionKeys, nil
}

// HandshakeID returns the replay-cache key for this attempt, valid once
// ProcessMessageB has run.
func (i *Initiator) HandshakeID() [32]byte { return i.handshakeID }
