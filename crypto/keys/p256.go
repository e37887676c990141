// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package keys

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
)

// p256KeyPair implements the classic-tier (0x10xx) P-256 suite: ECDSA for
// signing, ECDH for key agreement, both over the same NIST P-256 curve.
type p256KeyPair struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	id         string
}

// GenerateP256KeyPair generates a new P-256 key pair usable for both ECDSA
// signatures and ECDH key agreement.
func GenerateP256KeyPair() (sagecrypto.KeyPair, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate P-256 key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), privateKey.PublicKey.X, privateKey.PublicKey.Y)
	hash := sha256.Sum256(pubBytes)
	id := hex.EncodeToString(hash[:8])

	return &p256KeyPair{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		id:         id,
	}, nil
}

// PublicKey returns the public key
func (kp *p256KeyPair) PublicKey() crypto.PublicKey {
	return kp.publicKey
}

// PrivateKey returns the private key
func (kp *p256KeyPair) PrivateKey() crypto.PrivateKey {
	return kp.privateKey
}

// Type returns the key type
func (kp *p256KeyPair) Type() sagecrypto.KeyType {
	return sagecrypto.KeyTypeP256
}

// ID returns a unique identifier for this key pair
func (kp *p256KeyPair) ID() string {
	return kp.id
}

// Sign signs a message hash with ECDSA over P-256.
func (kp *p256KeyPair) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return ecdsa.SignASN1(rand.Reader, kp.privateKey, digest[:])
}

// Verify verifies an ASN.1 DER ECDSA signature.
func (kp *p256KeyPair) Verify(message, signature []byte) error {
	digest := sha256.Sum256(message)
	if !ecdsa.VerifyASN1(kp.publicKey, digest[:], signature) {
		return sagecrypto.ErrInvalidSignature
	}
	return nil
}

// PublicBytesKey returns the SEC1-uncompressed public key (65 bytes: a
// 0x04 prefix plus the 32-byte X and Y coordinates), matching the suite
// registry's 65-byte P-256 key length and the format crypto/ecdh's
// NewPublicKey requires.
func (kp *p256KeyPair) PublicBytesKey() []byte {
	return elliptic.Marshal(elliptic.P256(), kp.publicKey.X, kp.publicKey.Y)
}

// DeriveSharedSecret performs ECDH with a peer's SEC1-uncompressed P-256
// public key, returning SHA-256 of the raw shared X-coordinate.
func (kp *p256KeyPair) DeriveSharedSecret(peerPubBytes []byte) ([]byte, error) {
	ecdhPriv, err := kp.privateKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("p256: key not usable for ECDH: %w", err)
	}
	peerPub, err := ecdh.P256().NewPublicKey(peerPubBytes)
	if err != nil {
		return nil, fmt.Errorf("p256: invalid peer public key: %w", err)
	}
	shared, err := ecdhPriv.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("p256: ecdh failed: %w", err)
	}
	sum := sha256.Sum256(shared)
	return sum[:], nil
}
