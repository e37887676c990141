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

// Package native implements the nativePQC-tier crypto.Provider for the
// pure- and hybrid-PQC suites (0x0001 X-Wing+ML-DSA-65, 0x0101
// ML-KEM-768+ML-DSA-65), backed directly by circl with no cgo/liboqs
// dependency.
package native

import (
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/kem/xwing"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/crypto/keys"
	"github.com/skybridge-core/p2pcore/suite"
)

// Provider is the native-PQC-tier implementation bound to one suite.
type Provider struct {
	suiteID suite.WireID
}

// New constructs a native-PQC provider for suiteWireID. Returns
// sagecrypto.ErrProviderUnavailable if the suite is not one of the
// hybrid/pure-PQC families this tier serves.
func New(suiteWireID uint16) (*Provider, error) {
	id := suite.WireID(suiteWireID)
	tier := suite.ClassifyTier(id)
	if tier != suite.TierHybridPQC && tier != suite.TierPurePQC {
		return nil, fmt.Errorf("%w: native provider does not serve suite 0x%04x", sagecrypto.ErrProviderUnavailable, suiteWireID)
	}
	if _, ok := suite.Lookup(id); !ok {
		return nil, fmt.Errorf("%w: unknown suite 0x%04x", sagecrypto.ErrProviderUnavailable, suiteWireID)
	}
	return &Provider{suiteID: id}, nil
}

// Tier reports TierNativePQC.
func (p *Provider) Tier() sagecrypto.Tier { return sagecrypto.TierNativePQC }

// GenerateKeyPair generates the suite's KEM or ML-DSA-65 signing key
// pair. Every PQC suite in the registry shares ML-DSA-65 as its
// signature algorithm, so KeyUsageSigning is suite-independent.
func (p *Provider) GenerateKeyPair(usage sagecrypto.KeyUsage) (sagecrypto.KeyPair, error) {
	if usage == sagecrypto.KeyUsageSigning {
		return keys.GenerateMLDSA65KeyPair()
	}
	switch p.suiteID {
	case suite.XWingMLDSA65:
		return keys.GenerateXWingKeyPair()
	case suite.MLKEM768MLDSA65:
		return keys.GenerateMLKEM768KeyPair()
	}
	return nil, fmt.Errorf("%w: unsupported suite 0x%04x", sagecrypto.ErrKeyGenerationFailed, p.suiteID)
}

// KEMEncapsulate runs the suite's KEM against a peer's marshaled public
// key, validating its length against the suite registry first.
func (p *Provider) KEMEncapsulate(recipientPub []byte) (sagecrypto.KEMResult, error) {
	if err := suite.ValidateKEMPubLen(p.suiteID, len(recipientPub)); err != nil {
		return sagecrypto.KEMResult{}, fmt.Errorf("%w: %v", sagecrypto.ErrInvalidKeyFormatErr, err)
	}

	var ct, ss []byte
	var err error
	switch p.suiteID {
	case suite.XWingMLDSA65:
		ct, ss, err = keys.XWingEncapsulate(recipientPub)
	case suite.MLKEM768MLDSA65:
		ct, ss, err = keys.MLKEM768Encapsulate(recipientPub)
	default:
		return sagecrypto.KEMResult{}, fmt.Errorf("native: unsupported suite 0x%04x", p.suiteID)
	}
	if err != nil {
		return sagecrypto.KEMResult{}, fmt.Errorf("%w: %v", sagecrypto.ErrKeyGenerationFailed, err)
	}
	return sagecrypto.KEMResult{
		Encapsulated: ct,
		SharedSecret: sagecrypto.NewSecureBytesFrom(ss),
	}, nil
}

// KEMDecapsulate recovers the shared secret from an encapsulated key.
// Unlike the classic tier, PQC private keys cannot be reconstructed
// from a fixed-width scalar: priv must carry the scheme's full
// marshaled private key bytes (as produced by the KeyPair this
// provider's GenerateKeyPair returned).
func (p *Provider) KEMDecapsulate(encapsulated []byte, priv *sagecrypto.SecureBytes) (*sagecrypto.SecureBytes, error) {
	if priv == nil {
		return nil, fmt.Errorf("%w: nil private key material", sagecrypto.ErrInvalidKeyFormatErr)
	}
	raw := priv.Bytes()

	var scheme kem.Scheme
	switch p.suiteID {
	case suite.XWingMLDSA65:
		scheme = xwing.Scheme()
	case suite.MLKEM768MLDSA65:
		scheme = mlkem768.Scheme()
	default:
		return nil, fmt.Errorf("native: unsupported suite 0x%04x", p.suiteID)
	}

	privKey, err := scheme.UnmarshalBinaryPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sagecrypto.ErrInvalidKeyFormatErr, err)
	}
	ss, err := scheme.Decapsulate(privKey, encapsulated)
	if err != nil {
		return nil, fmt.Errorf("native: decapsulate failed: %w", err)
	}
	return sagecrypto.NewSecureBytesFrom(ss), nil
}

// Sign produces an ML-DSA-65 signature. Secure Enclave refs are
// rejected per spec §4.3's requirement that ML-DSA-65 handles MUST NOT
// accept a secureEnclaveRef kind (no platform enclave implements a PQC
// signature scheme).
func (p *Provider) Sign(data []byte, handle sagecrypto.SigningKeyHandle) ([]byte, error) {
	switch handle.Kind {
	case sagecrypto.SigningKeyHandleCallback:
		return handle.Callback(data)

	case sagecrypto.SigningKeyHandleSecureEnclaveRef:
		return nil, fmt.Errorf("%w: ML-DSA-65 does not sign via Secure Enclave ref", sagecrypto.ErrUnsupportedKeyHandle)

	case sagecrypto.SigningKeyHandleSoftware:
		if handle.Software == nil {
			return nil, fmt.Errorf("%w: nil software key handle", sagecrypto.ErrInvalidKeyFormatErr)
		}
		privKey, err := mldsa65.Scheme().UnmarshalBinaryPrivateKey(handle.Software.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sagecrypto.ErrInvalidKeyFormatErr, err)
		}
		return mldsa65.Scheme().Sign(privKey, data, nil), nil

	default:
		return nil, fmt.Errorf("native: unrecognized signing key handle kind")
	}
}

// Verify checks an ML-DSA-65 signature against raw marshaled public
// key bytes.
func (p *Provider) Verify(data, signature, pub []byte) error {
	if err := suite.ValidateSigPubLen(p.suiteID, len(pub)); err != nil {
		return fmt.Errorf("%w: %v", sagecrypto.ErrInvalidKeyFormatErr, err)
	}
	pubKey, err := mldsa65.Scheme().UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return fmt.Errorf("%w: %v", sagecrypto.ErrInvalidKeyFormatErr, err)
	}
	if !mldsa65.Scheme().Verify(pubKey, data, signature, nil) {
		return fmt.Errorf("%w: ML-DSA-65 verification failed", sagecrypto.ErrInvalidSignatureFormat)
	}
	return nil
}
