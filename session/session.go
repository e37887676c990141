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

package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/skybridge-core/p2pcore/core/handshake"
	"github.com/skybridge-core/p2pcore/wire"
)

// Session is one established post-handshake secure channel to a peer.
// Session keys are owned exclusively by the session for that peer and
// are never shared across peers (spec §5's shared-resource policy).
type Session struct {
	mu sync.Mutex

	id           string
	peerAlias    string
	handshakeID  [32]byte
	assurance    AssuranceLevel
	aead         handshake.AEADAlgorithm
	keys         *handshake.SessionKeys
	config       Config
	createdAt    time.Time
	lastUsedAt   time.Time
	messageCount int
	closed       bool

	// bootstrapControlOnly gates the rekey: while true, only the
	// pairingIdentityExchange control message may cross this session
	// (spec §4.11's "rekey gate").
	bootstrapControlOnly bool
}

// New constructs a Session around a completed handshake's derived keys.
func New(id, peerAlias string, handshakeID [32]byte, keys *handshake.SessionKeys, aead handshake.AEADAlgorithm, assurance AssuranceLevel, cfg Config) *Session {
	now := time.Now()
	return &Session{
		id:                    id,
		peerAlias:             peerAlias,
		handshakeID:           handshakeID,
		assurance:             assurance,
		aead:                  aead,
		keys:                  keys,
		config:                withDefaults(cfg),
		createdAt:             now,
		lastUsedAt:            now,
		bootstrapControlOnly: assurance == AssuranceBootstrapAssisted,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// PeerAlias returns the peer identifier this session was established for.
func (s *Session) PeerAlias() string { return s.peerAlias }

// Assurance returns the session's assurance classification.
func (s *Session) Assurance() AssuranceLevel { return s.assurance }

// HandshakeID returns the handshakeId the session's keys were bound to.
func (s *Session) HandshakeID() [32]byte { return s.handshakeID }

// CreatedAt returns when the session was established.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastUsedAt returns the last activity timestamp.
func (s *Session) LastUsedAt() time.Time { return s.lastUsedAt }

// MessageCount returns how many messages have been sealed or opened.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// IsBootstrapControlOnly reports whether the rekey gate is currently
// blocking non-control traffic on this session.
func (s *Session) IsBootstrapControlOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bootstrapControlOnly
}

// LiftControlOnlyGate opens the session to ordinary business traffic,
// called once the strict-PQC handshake that replaces a bootstrap
// session has completed.
func (s *Session) LiftControlOnlyGate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bootstrapControlOnly = false
}

// ErrBootstrapControlOnly is returned by Encrypt/Decrypt for any message
// kind other than pairingIdentityExchange while the rekey gate is shut.
var ErrBootstrapControlOnly = fmt.Errorf("session: bootstrapControlOnly")

// IsExpired reports whether the session has passed its absolute age,
// idle timeout, or message-count limit.
func (s *Session) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isExpiredLocked()
}

func (s *Session) isExpiredLocked() bool {
	if s.closed {
		return true
	}
	now := time.Now()
	if s.config.MaxAge > 0 && now.After(s.createdAt.Add(s.config.MaxAge)) {
		return true
	}
	if s.config.IdleTimeout > 0 && now.After(s.lastUsedAt.Add(s.config.IdleTimeout)) {
		return true
	}
	if s.config.MaxMessages > 0 && s.messageCount >= s.config.MaxMessages {
		return true
	}
	return false
}

// Encrypt seals plaintext for the peer, using this session's SendKey and
// the handshakeId as additional authenticated data. isControlMessage must
// be true only for the pairingIdentityExchange control message; any other
// kind is rejected while the rekey gate is shut.
func (s *Session) Encrypt(plaintext []byte, isControlMessage bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isExpiredLocked() {
		return nil, fmt.Errorf("session: expired")
	}
	if s.bootstrapControlOnly && !isControlMessage {
		return nil, ErrBootstrapControlOnly
	}

	// The session's negotiated suite isn't tracked here, only its
	// derived keys; the box's suiteWireId is left at 0 (informational
	// only - nothing cross-checks it against the handshake).
	box, err := handshake.Seal(s.aead, 0, handshake.ContextApplication, s.keys.SendKey, s.handshakeID[:], plaintext)
	if err != nil {
		return nil, err
	}
	s.lastUsedAt = time.Now()
	s.messageCount++
	return box.EncodeWithHeader(), nil
}

// Decrypt opens data produced by the peer's Encrypt.
func (s *Session) Decrypt(data []byte, isControlMessage bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isExpiredLocked() {
		return nil, fmt.Errorf("session: expired")
	}
	if s.bootstrapControlOnly && !isControlMessage {
		return nil, ErrBootstrapControlOnly
	}

	box, err := handshake.DecodeSealedBox(wire.NewReader(data), handshake.ContextApplication)
	if err != nil {
		return nil, err
	}
	plaintext, err := box.Open(s.keys.ReceiveKey, s.handshakeID[:])
	if err != nil {
		return nil, err
	}
	s.lastUsedAt = time.Now()
	s.messageCount++
	return plaintext, nil
}

// Close marks the session closed and zeroizes its AEAD keys in place
// (spec §5: "a cancelled handshake leaves no session key" — the same
// discipline applies to a closed session).
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	zero(s.keys.SendKey)
	zero(s.keys.ReceiveKey)
	zero(s.keys.FinishedKey)
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
