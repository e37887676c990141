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
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/skybridge-core/p2pcore/bootstrap"
	"github.com/skybridge-core/p2pcore/core/handshake"
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/trust"
)

// ExchangeIdentity performs the pairingIdentityExchange control message
// over a just-established bootstrap session and returns the peer's
// freshly confirmed KEM public keys. Callers supply this because the
// business-envelope wire shape for pairingIdentityExchange (spec §6)
// lives above this package, alongside the rest of the application
// message types.
type ExchangeIdentity func(bootstrapSession *Session) ([]trust.KEMPublicKeyInfo, error)

// RecoveryConfig bundles what RunInitiatorWithRecovery needs beyond a
// single handshake attempt: the original strict-PQC policy to retry
// with, and how to run the bootstrap pairing exchange once a classic
// fallback session is up.
type RecoveryConfig struct {
	PeerAlias     string
	Strict        handshake.InitiatorConfig
	AEAD          handshake.AEADAlgorithm
	SessionConfig Config
	Exchange      ExchangeIdentity
	Cache         *bootstrap.Cache
}

// shouldAttemptRecovery reports whether err is the class of failure spec
// §4.11 names as triggering bootstrap-assisted recovery: suite
// negotiation failure, or a timeout, while the caller's policy requires
// PQC.
func shouldAttemptRecovery(err error, requirePQC bool) bool {
	if !requirePQC {
		return false
	}
	if errors.Is(err, handshake.ErrSuiteNegotiationFailed) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// classicBootstrapPolicy derives the temporary classic-only policy used
// for the one-time bootstrap handshake, per spec §4.11: requirePQC is
// dropped, classic fallback is not itself re-offered as a further
// fallback, and the minimum tier is lowered to classic.
func classicBootstrapPolicy() handshake.HandshakePolicy {
	return handshake.HandshakePolicy{
		RequirePQC:           false,
		AllowClassicFallback: false,
		MinimumTier:          suite.TierClassic,
	}
}

// RunInitiatorWithRecovery drives a strict-PQC handshake over conn, and
// on a qualifying failure performs the bootstrap-assisted recovery flow
// (spec §4.11): a one-time classic handshake restricted to carrying
// pairingIdentityExchange, followed by a single retry of the original
// strict-PQC handshake once the peer's fresh KEM keys are confirmed.
// newConn is called to obtain a second connection for the retried
// strict handshake; many transports can reuse the same conn for both
// attempts, in which case newConn may simply return conn unchanged.
func RunInitiatorWithRecovery(conn frameConn, newConn func() (frameConn, error), cfg RecoveryConfig) (*Session, error) {
	keys, handshakeID, err := RunInitiatorHandshake(conn, cfg.Strict)
	if err == nil {
		return New(uuid.NewString(), cfg.PeerAlias, handshakeID, keys, cfg.AEAD, AssurancePQCStrict, cfg.SessionConfig), nil
	}
	if !shouldAttemptRecovery(err, cfg.Strict.Policy.RequirePQC) {
		return nil, fmt.Errorf("session: strict handshake failed: %w", err)
	}

	bootstrapCfg := cfg.Strict
	bootstrapCfg.Policy = classicBootstrapPolicy()
	bootstrapKeys, bootstrapHandshakeID, berr := RunInitiatorHandshake(conn, bootstrapCfg)
	if berr != nil {
		return nil, fmt.Errorf("session: bootstrap classic handshake failed after strict failure (%v): %w", err, berr)
	}
	bootstrapSession := New(uuid.NewString(), cfg.PeerAlias, bootstrapHandshakeID, bootstrapKeys, cfg.AEAD, AssuranceBootstrapAssisted, cfg.SessionConfig)

	if cfg.Exchange == nil {
		bootstrapSession.Close()
		return nil, fmt.Errorf("session: bootstrap recovery requires an ExchangeIdentity callback")
	}
	peerKeys, xerr := cfg.Exchange(bootstrapSession)
	if xerr != nil {
		bootstrapSession.Close()
		return nil, fmt.Errorf("session: bootstrap identity exchange failed: %w", xerr)
	}
	if cfg.Cache != nil {
		cfg.Cache.Update(cfg.PeerAlias, peerKeys)
	}

	retryConn := conn
	if newConn != nil {
		retryConn, err = newConn()
		if err != nil {
			bootstrapSession.Close()
			return nil, fmt.Errorf("session: opening connection for strict-PQC retry: %w", err)
		}
	}

	// Exactly one retry: if this also fails, recovery is exhausted and
	// the connection errors (spec §4.11, "no second bootstrap attempt").
	strictKeys, strictHandshakeID, serr := RunInitiatorHandshake(retryConn, cfg.Strict)
	if serr != nil {
		bootstrapSession.Close()
		return nil, fmt.Errorf("session: strict-PQC retry after bootstrap recovery failed: %w", serr)
	}

	strictSession := New(uuid.NewString(), cfg.PeerAlias, strictHandshakeID, strictKeys, cfg.AEAD, AssurancePQCStrict, cfg.SessionConfig)
	bootstrapSession.Close()
	return strictSession, nil
}
