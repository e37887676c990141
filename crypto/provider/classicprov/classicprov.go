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

// Package classicprov implements the classic-tier crypto.Provider for the
// 0x10xx wire-ID family: X25519+Ed25519 (0x1001) and P-256+ECDSA (0x1002).
// It never touches a PQC primitive and is always constructible, making it
// the terminal fallback in every provider-selection policy.
package classicprov

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"math/big"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/crypto/keys"
	"github.com/skybridge-core/p2pcore/suite"
)

// Provider is the classic-tier implementation bound to one suite.
type Provider struct {
	suiteID suite.WireID
}

// New constructs a classic-tier provider for suiteWireID. Returns
// sagecrypto.ErrProviderUnavailable if the suite is not one of the
// classic (0x10xx) family this tier serves.
func New(suiteWireID uint16) (*Provider, error) {
	id := suite.WireID(suiteWireID)
	if suite.ClassifyTier(id) != suite.TierClassic {
		return nil, fmt.Errorf("%w: classicprov does not serve suite 0x%04x", sagecrypto.ErrProviderUnavailable, suiteWireID)
	}
	if _, ok := suite.Lookup(id); !ok {
		return nil, fmt.Errorf("%w: unknown suite 0x%04x", sagecrypto.ErrProviderUnavailable, suiteWireID)
	}
	return &Provider{suiteID: id}, nil
}

// Tier reports TierClassic.
func (p *Provider) Tier() sagecrypto.Tier { return sagecrypto.TierClassic }

// GenerateKeyPair generates a KEM or signing key pair appropriate for
// this provider's suite and the requested usage.
func (p *Provider) GenerateKeyPair(usage sagecrypto.KeyUsage) (sagecrypto.KeyPair, error) {
	switch p.suiteID {
	case suite.X25519Ed25519:
		switch usage {
		case sagecrypto.KeyUsageKeyExchange:
			return keys.GenerateX25519KeyPair()
		case sagecrypto.KeyUsageSigning:
			return keys.GenerateEd25519KeyPair()
		}
	case suite.P256ECDSA:
		// P-256 serves both roles in this suite: the same curve is used
		// for ECDH key exchange and ECDSA signing (spec §4.2).
		return keys.GenerateP256KeyPair()
	}
	return nil, fmt.Errorf("%w: unsupported usage %q for suite 0x%04x", sagecrypto.ErrKeyGenerationFailed, usage, p.suiteID)
}

// p256FromRawD reconstructs an *ecdsa.PrivateKey from a raw 32-byte P-256
// scalar, recomputing the public point via keys.NewP256KeyPairFromPrivate.
func p256FromRawD(raw []byte) (*ecdsa.PrivateKey, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: P-256 private scalar must be 32 bytes, got %d", sagecrypto.ErrInvalidKeyFormatErr, len(raw))
	}
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: elliptic.P256()},
		D:         new(big.Int).SetBytes(raw),
	}
	priv.PublicKey.X, priv.PublicKey.Y = elliptic.P256().ScalarBaseMult(raw)
	return priv, nil
}

// x25519KEMInfo and x25519KEMExportCtx bind classicprov's X25519 KEM
// step to HPKE's Base-mode encapsulation (cloudflare/circl/hpke): both
// sides must derive the exporter secret with identical info/exportCtx.
var (
	x25519KEMInfo      = []byte("p2pcore-classicprov-x25519-kem")
	x25519KEMExportCtx = []byte("shared-secret")
)

const x25519KEMExportLen = 32

// KEMEncapsulate performs the suite's KEM step against recipientPub and
// returns the encapsulated value its peer needs to recover the same
// shared secret (classic suites carry this as their responder share,
// per spec §4.2).
func (p *Provider) KEMEncapsulate(recipientPub []byte) (sagecrypto.KEMResult, error) {
	if err := suite.ValidateKEMPubLen(p.suiteID, len(recipientPub)); err != nil {
		return sagecrypto.KEMResult{}, fmt.Errorf("%w: %v", sagecrypto.ErrInvalidKeyFormatErr, err)
	}

	switch p.suiteID {
	case suite.X25519Ed25519:
		peerPub, err := ecdh.X25519().NewPublicKey(recipientPub)
		if err != nil {
			return sagecrypto.KEMResult{}, fmt.Errorf("%w: %v", sagecrypto.ErrInvalidKeyFormatErr, err)
		}
		// HPKEDeriveSharedSecretToX25519Peer generates its own ephemeral
		// sender key internally; enc IS that ephemeral public key.
		enc, secret, err := keys.HPKEDeriveSharedSecretToX25519Peer(peerPub, x25519KEMInfo, x25519KEMExportCtx, x25519KEMExportLen)
		if err != nil {
			return sagecrypto.KEMResult{}, fmt.Errorf("classicprov: X25519 HPKE encapsulation: %w", err)
		}
		return sagecrypto.KEMResult{
			Encapsulated: enc,
			SharedSecret: sagecrypto.NewSecureBytesFrom(secret),
		}, nil

	case suite.P256ECDSA:
		eph, err := keys.GenerateP256KeyPair()
		if err != nil {
			return sagecrypto.KEMResult{}, fmt.Errorf("%w: %v", sagecrypto.ErrKeyGenerationFailed, err)
		}
		shared, pubBytes, err := p256ECDH(eph, recipientPub)
		if err != nil {
			return sagecrypto.KEMResult{}, fmt.Errorf("classicprov: P-256 shared secret: %w", err)
		}
		return sagecrypto.KEMResult{
			Encapsulated: pubBytes,
			SharedSecret: sagecrypto.NewSecureBytesFrom(shared),
		}, nil
	}
	return sagecrypto.KEMResult{}, fmt.Errorf("classicprov: unsupported suite 0x%04x", p.suiteID)
}

// p256KeyExporter is the subset of keys.p256KeyPair's exported methods
// KEMEncapsulate/KEMDecapsulate need; matched structurally since the
// concrete type is unexported in crypto/keys.
type p256KeyExporter interface {
	PublicBytesKey() []byte
	DeriveSharedSecret(peerPub []byte) ([]byte, error)
}

func p256ECDH(kp sagecrypto.KeyPair, peerPub []byte) (shared, pubBytes []byte, err error) {
	p256, ok := kp.(p256KeyExporter)
	if !ok {
		return nil, nil, fmt.Errorf("classicprov: key pair does not expose P-256 ECDH methods")
	}
	shared, err = p256.DeriveSharedSecret(peerPub)
	if err != nil {
		return nil, nil, err
	}
	return shared, p256.PublicBytesKey(), nil
}

// KEMDecapsulate recovers the shared secret given the peer's ephemeral
// public key (passed as encapsulated) and this side's own raw private
// scalar bytes.
func (p *Provider) KEMDecapsulate(encapsulated []byte, priv *sagecrypto.SecureBytes) (*sagecrypto.SecureBytes, error) {
	if priv == nil {
		return nil, fmt.Errorf("%w: nil private key material", sagecrypto.ErrInvalidKeyFormatErr)
	}
	raw := priv.Bytes()

	switch p.suiteID {
	case suite.X25519Ed25519:
		privKey, err := ecdh.X25519().NewPrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sagecrypto.ErrInvalidKeyFormatErr, err)
		}
		secret, err := keys.HPKEOpenSharedSecretWithX25519Priv(privKey, encapsulated, x25519KEMInfo, x25519KEMExportCtx, x25519KEMExportLen)
		if err != nil {
			return nil, fmt.Errorf("classicprov: X25519 HPKE decapsulate: %w", err)
		}
		return sagecrypto.NewSecureBytesFrom(secret), nil

	case suite.P256ECDSA:
		privKey, err := p256FromRawD(raw)
		if err != nil {
			return nil, err
		}
		kp, err := keys.NewP256KeyPairFromPrivate(privKey, "")
		if err != nil {
			return nil, err
		}
		shared, _, err := p256ECDH(kp, encapsulated)
		if err != nil {
			return nil, fmt.Errorf("classicprov: P-256 decapsulate: %w", err)
		}
		return sagecrypto.NewSecureBytesFrom(shared), nil
	}
	return nil, fmt.Errorf("classicprov: unsupported suite 0x%04x", p.suiteID)
}

// Sign signs data with the given handle. Software handles carry the raw
// private-key bytes (Ed25519: 64-byte seed+pub form; P-256: 32-byte
// scalar), dispatched by this provider's suite.
func (p *Provider) Sign(data []byte, handle sagecrypto.SigningKeyHandle) ([]byte, error) {
	switch handle.Kind {
	case sagecrypto.SigningKeyHandleCallback:
		return handle.Callback(data)

	case sagecrypto.SigningKeyHandleSecureEnclaveRef:
		return nil, fmt.Errorf("%w: classic software suites do not sign via Secure Enclave ref", sagecrypto.ErrUnsupportedKeyHandle)

	case sagecrypto.SigningKeyHandleSoftware:
		if handle.Software == nil {
			return nil, fmt.Errorf("%w: nil software key handle", sagecrypto.ErrInvalidKeyFormatErr)
		}
		raw := handle.Software.Bytes()
		switch p.suiteID {
		case suite.X25519Ed25519:
			if len(raw) != ed25519.PrivateKeySize {
				return nil, fmt.Errorf("%w: Ed25519 private key must be %d bytes, got %d",
					sagecrypto.ErrInvalidKeyFormatErr, ed25519.PrivateKeySize, len(raw))
			}
			kp, err := keys.NewEd25519KeyPair(ed25519.PrivateKey(raw), "")
			if err != nil {
				return nil, err
			}
			return kp.Sign(data)

		case suite.P256ECDSA:
			privKey, err := p256FromRawD(raw)
			if err != nil {
				return nil, err
			}
			kp, err := keys.NewP256KeyPairFromPrivate(privKey, "")
			if err != nil {
				return nil, err
			}
			return kp.Sign(data)
		}
		return nil, fmt.Errorf("classicprov: unsupported suite 0x%04x", p.suiteID)

	default:
		return nil, fmt.Errorf("classicprov: unrecognized signing key handle kind")
	}
}

// Verify checks a classic-tier signature against raw public key bytes.
func (p *Provider) Verify(data, signature, pub []byte) error {
	if err := suite.ValidateSigPubLen(p.suiteID, len(pub)); err != nil {
		return fmt.Errorf("%w: %v", sagecrypto.ErrInvalidKeyFormatErr, err)
	}

	switch p.suiteID {
	case suite.X25519Ed25519:
		kp, err := keys.NewEd25519KeyPairFromPublic(ed25519.PublicKey(pub), "")
		if err != nil {
			return fmt.Errorf("%w: %v", sagecrypto.ErrInvalidKeyFormatErr, err)
		}
		if err := kp.Verify(data, signature); err != nil {
			return fmt.Errorf("%w: %v", sagecrypto.ErrInvalidSignatureFormat, err)
		}
		return nil

	case suite.P256ECDSA:
		x, y := elliptic.Unmarshal(elliptic.P256(), pub)
		if x == nil {
			return fmt.Errorf("%w: could not parse P-256 public key", sagecrypto.ErrInvalidKeyFormatErr)
		}
		pubKey := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
		digest := sha256.Sum256(data)
		if !ecdsa.VerifyASN1(pubKey, digest[:], signature) {
			return fmt.Errorf("%w: ECDSA verification failed", sagecrypto.ErrInvalidSignatureFormat)
		}
		return nil
	}
	return fmt.Errorf("classicprov: unsupported suite 0x%04x", p.suiteID)
}
