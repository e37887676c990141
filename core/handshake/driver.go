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
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/suite"
)

// ProviderFactory resolves a crypto.Provider bound to wireID. Both
// driver sides take one as a constructor dependency rather than calling
// crypto.SelectProvider themselves, so callers control tier-selection
// policy (native/liboqs/classic fallback) independently of the
// handshake's own per-suite, per-message logic.
type ProviderFactory func(wireID suite.WireID) (sagecrypto.Provider, error)

// PeerKEMLookup resolves a known peer's long-term KEM public key for a
// PQC suite, typically backed by the trust store (C8) or the bootstrap
// cache (C9). The initiator can only offer a PQC suite it can already
// encapsulate against, because the PQC "key share" it sends IS the KEM
// ciphertext (spec §4.2: key-share A→B lengths for 0x0001/0x0101 equal
// the suites' ciphertext sizes, not their public-key sizes) — unlike the
// classic suites, there's no second round trip to carry it.
type PeerKEMLookup func(wireID suite.WireID) (pubKey []byte, ok bool)

// OwnKEMPrivateKey resolves the responder's own long-term KEM private
// key for a PQC suite, the counterpart it decapsulates the initiator's
// ciphertext-as-key-share against.
type OwnKEMPrivateKey func(wireID suite.WireID) (priv *sagecrypto.SecureBytes, ok bool)

// Identity bundles the wire-form public key and signing material a
// handshake message is authenticated with.
type Identity struct {
	PublicKey     []byte
	SigningHandle sagecrypto.SigningKeyHandle
	// SEHandle, when non-nil, produces the optional Secure Enclave
	// co-signature (seSignature); nil means this party has none.
	SEHandle *sagecrypto.SigningKeyHandle
}

func randomNonce(r io.Reader) ([32]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	var n [32]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return n, err
	}
	return n, nil
}

// computeFinishedMAC implements finishedMAC = HMAC-SHA-256(finishedKey,
// transcriptHashAtFinished || directionByte).
func computeFinishedMAC(finishedKey []byte, transcriptHash [32]byte, direction Direction) [32]byte {
	mac := hmac.New(sha256.New, finishedKey)
	mac.Write(finishedMACInput(transcriptHash, direction))
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// verifyFinishedMAC checks a received Finished's MAC in constant time.
func verifyFinishedMAC(finishedKey []byte, transcriptHash [32]byte, direction Direction, got [32]byte) bool {
	want := computeFinishedMAC(finishedKey, transcriptHash, direction)
	return hmac.Equal(want[:], got[:])
}

// signWithIdentity signs preimage with identity's primary handle, and —
// if identity carries a Secure Enclave co-signer — also produces the
// seSignature over domain's SE preimage. Returns (sig, seSig, error).
func signWithIdentity(provider sagecrypto.Provider, identity Identity, preimage []byte, sePreimage []byte) ([]byte, []byte, error) {
	sig, err := provider.Sign(preimage, identity.SigningHandle)
	if err != nil {
		return nil, nil, err
	}
	if identity.SEHandle == nil {
		return sig, nil, nil
	}
	seSig, err := provider.Sign(sePreimage, *identity.SEHandle)
	if err != nil {
		return nil, nil, err
	}
	return sig, seSig, nil
}

// rawPrivateKeyBytes extracts the fixed-width raw scalar behind a
// classic-tier ephemeral key pair, the form classicprov's
// KEMEncapsulate/KEMDecapsulate expect for the priv argument: a 32-byte
// X25519 scalar or a left-padded 32-byte P-256 scalar.
func rawPrivateKeyBytes(kp sagecrypto.KeyPair) ([]byte, error) {
	switch priv := kp.PrivateKey().(type) {
	case *ecdh.PrivateKey:
		return priv.Bytes(), nil
	case *ecdsa.PrivateKey:
		out := make([]byte, 32)
		d := priv.D.Bytes()
		copy(out[32-len(d):], d)
		return out, nil
	default:
		return nil, fmt.Errorf("handshake: unsupported classic private key type %T", priv)
	}
}

// verifyWithIdentity verifies the primary signature and, if seSig is
// non-empty, the Secure Enclave co-signature too.
func verifyWithIdentity(provider sagecrypto.Provider, peerPub []byte, preimage, sig, sePreimage, seSig []byte) error {
	if err := provider.Verify(preimage, sig, peerPub); err != nil {
		return err
	}
	if len(seSig) > 0 {
		if err := provider.Verify(sePreimage, seSig, peerPub); err != nil {
			return err
		}
	}
	return nil
}
