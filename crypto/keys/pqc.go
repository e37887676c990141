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

package keys

import (
	"crypto"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/kem/xwing"
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// idFromPublicBytes derives the short key ID convention shared by every
// key type in this package: hex(sha256(pubBytes)[:8]).
func idFromPublicBytes(pub []byte) string {
	hash := sha256.Sum256(pub)
	return hex.EncodeToString(hash[:8])
}

// --- ML-KEM-768 (suite 0x0101's KEM half) -----------------------------

// mlkem768KeyPair is a pure-PQC KEM keypair. It does not support signing;
// Sign/Verify return the key-agreement sentinel errors, matching the
// convention established by X25519KeyPair.
type mlkem768KeyPair struct {
	public  kem.PublicKey
	private kem.PrivateKey
	id      string
}

// GenerateMLKEM768KeyPair generates a new ML-KEM-768 key pair.
func GenerateMLKEM768KeyPair() (sagecrypto.KeyPair, error) {
	pub, priv, err := mlkem768.Scheme().GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ML-KEM-768 key pair: %w", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ML-KEM-768 public key: %w", err)
	}
	return &mlkem768KeyPair{public: pub, private: priv, id: idFromPublicBytes(pubBytes)}, nil
}

func (kp *mlkem768KeyPair) PublicKey() crypto.PublicKey  { return kp.public }
func (kp *mlkem768KeyPair) PrivateKey() crypto.PrivateKey { return kp.private }
func (kp *mlkem768KeyPair) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeMLKEM768 }
func (kp *mlkem768KeyPair) ID() string                    { return kp.id }

func (kp *mlkem768KeyPair) Sign(message []byte) ([]byte, error) {
	return nil, sagecrypto.ErrSignNotSupported
}

func (kp *mlkem768KeyPair) Verify(message, signature []byte) error {
	return sagecrypto.ErrVerifyNotSupported
}

// PublicBytesKey returns the marshaled public key bytes (1184 bytes per
// the suite table).
func (kp *mlkem768KeyPair) PublicBytesKey() ([]byte, error) {
	return kp.public.MarshalBinary()
}

// MLKEM768Encapsulate runs the KEM against a peer's marshaled public key,
// returning the encapsulated key and shared secret. This is the
// encapsulator side of a MessageA key share.
func MLKEM768Encapsulate(peerPubBytes []byte) (encapsulated, sharedSecret []byte, err error) {
	scheme := mlkem768.Scheme()
	pub, err := scheme.UnmarshalBinaryPublicKey(peerPubBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse peer ML-KEM-768 public key: %w", err)
	}
	ct, ss, err := scheme.Encapsulate(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("ML-KEM-768 encapsulate failed: %w", err)
	}
	return ct, ss, nil
}

// Decapsulate recovers the shared secret from an encapsulated key using
// this key pair's private key.
func (kp *mlkem768KeyPair) Decapsulate(encapsulated []byte) ([]byte, error) {
	ss, err := mlkem768.Scheme().Decapsulate(kp.private, encapsulated)
	if err != nil {
		return nil, fmt.Errorf("ML-KEM-768 decapsulate failed: %w", err)
	}
	return ss, nil
}

// --- X-Wing (suite 0x0001's hybrid KEM half) --------------------------

// xwingKeyPair is a hybrid-PQC KEM keypair combining X25519 and ML-KEM-768
// behind circl's single X-Wing scheme. Like mlkem768KeyPair it is
// KEM-only and does not support signing.
type xwingKeyPair struct {
	public  kem.PublicKey
	private kem.PrivateKey
	id      string
}

// GenerateXWingKeyPair generates a new X-Wing key pair.
func GenerateXWingKeyPair() (sagecrypto.KeyPair, error) {
	pub, priv, err := xwing.Scheme().GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate X-Wing key pair: %w", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal X-Wing public key: %w", err)
	}
	return &xwingKeyPair{public: pub, private: priv, id: idFromPublicBytes(pubBytes)}, nil
}

func (kp *xwingKeyPair) PublicKey() crypto.PublicKey   { return kp.public }
func (kp *xwingKeyPair) PrivateKey() crypto.PrivateKey { return kp.private }
func (kp *xwingKeyPair) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeXWing }
func (kp *xwingKeyPair) ID() string                    { return kp.id }

func (kp *xwingKeyPair) Sign(message []byte) ([]byte, error) {
	return nil, sagecrypto.ErrSignNotSupported
}

func (kp *xwingKeyPair) Verify(message, signature []byte) error {
	return sagecrypto.ErrVerifyNotSupported
}

// PublicBytesKey returns the marshaled public key bytes (1216 bytes per
// the suite table).
func (kp *xwingKeyPair) PublicBytesKey() ([]byte, error) {
	return kp.public.MarshalBinary()
}

// XWingEncapsulate runs the hybrid KEM against a peer's marshaled public
// key, returning the encapsulated key (1120 bytes, the suite's A→B key
// share length) and shared secret.
func XWingEncapsulate(peerPubBytes []byte) (encapsulated, sharedSecret []byte, err error) {
	scheme := xwing.Scheme()
	pub, err := scheme.UnmarshalBinaryPublicKey(peerPubBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse peer X-Wing public key: %w", err)
	}
	ct, ss, err := scheme.Encapsulate(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("X-Wing encapsulate failed: %w", err)
	}
	return ct, ss, nil
}

// Decapsulate recovers the shared secret from an encapsulated key using
// this key pair's private key.
func (kp *xwingKeyPair) Decapsulate(encapsulated []byte) ([]byte, error) {
	ss, err := xwing.Scheme().Decapsulate(kp.private, encapsulated)
	if err != nil {
		return nil, fmt.Errorf("X-Wing decapsulate failed: %w", err)
	}
	return ss, nil
}

// --- ML-DSA-65 (both PQC suites' signature half) ----------------------

// mldsa65KeyPair is a pure-PQC signature keypair. It has no KEM role;
// callers needing a shared secret use the suite's paired KEM key instead.
type mldsa65KeyPair struct {
	public  sign.PublicKey
	private sign.PrivateKey
	id      string
}

// GenerateMLDSA65KeyPair generates a new ML-DSA-65 key pair.
func GenerateMLDSA65KeyPair() (sagecrypto.KeyPair, error) {
	pub, priv, err := mldsa65.Scheme().GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ML-DSA-65 key pair: %w", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ML-DSA-65 public key: %w", err)
	}
	return &mldsa65KeyPair{public: pub, private: priv, id: idFromPublicBytes(pubBytes)}, nil
}

func (kp *mldsa65KeyPair) PublicKey() crypto.PublicKey   { return kp.public }
func (kp *mldsa65KeyPair) PrivateKey() crypto.PrivateKey { return kp.private }
func (kp *mldsa65KeyPair) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeMLDSA65 }
func (kp *mldsa65KeyPair) ID() string                    { return kp.id }

// PublicBytesKey returns the marshaled public key bytes (1952 bytes per
// the suite table).
func (kp *mldsa65KeyPair) PublicBytesKey() ([]byte, error) {
	return kp.public.MarshalBinary()
}

// Sign produces an ML-DSA-65 signature over message using the default
// (deterministic, non-randomized, empty-context) signing mode.
func (kp *mldsa65KeyPair) Sign(message []byte) ([]byte, error) {
	return mldsa65.Scheme().Sign(kp.private, message, nil), nil
}

// Verify checks an ML-DSA-65 signature, returning sagecrypto.ErrInvalidSignature
// on mismatch per the crypto provider contract's "reject, don't just return
// false" convention for unparseable/invalid inputs.
func (kp *mldsa65KeyPair) Verify(message, signature []byte) error {
	if !mldsa65.Scheme().Verify(kp.public, message, signature, nil) {
		return sagecrypto.ErrInvalidSignature
	}
	return nil
}
