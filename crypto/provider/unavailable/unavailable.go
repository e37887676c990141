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

// Package unavailable implements the sentinel crypto.Provider returned
// when requirePQC finds neither a native nor a library PQC backend
// (spec §4.3): every operation fails with ErrProviderUnavailable rather
// than silently downgrading to a classic suite.
package unavailable

import (
	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
)

// Provider always reports TierUnavailable and rejects every operation.
type Provider struct{}

// New always succeeds in constructing the sentinel; the failure this
// tier represents is semantic (no PQC backend), not constructional.
func New() *Provider { return &Provider{} }

func (p *Provider) Tier() sagecrypto.Tier { return sagecrypto.TierUnavailable }

func (p *Provider) GenerateKeyPair(usage sagecrypto.KeyUsage) (sagecrypto.KeyPair, error) {
	return nil, sagecrypto.ErrProviderUnavailable
}

func (p *Provider) KEMEncapsulate(recipientPub []byte) (sagecrypto.KEMResult, error) {
	return sagecrypto.KEMResult{}, sagecrypto.ErrProviderUnavailable
}

func (p *Provider) KEMDecapsulate(encapsulated []byte, priv *sagecrypto.SecureBytes) (*sagecrypto.SecureBytes, error) {
	return nil, sagecrypto.ErrProviderUnavailable
}

func (p *Provider) Sign(data []byte, handle sagecrypto.SigningKeyHandle) ([]byte, error) {
	return nil, sagecrypto.ErrProviderUnavailable
}

func (p *Provider) Verify(data, signature, pub []byte) error {
	return sagecrypto.ErrProviderUnavailable
}
