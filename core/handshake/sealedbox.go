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
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/skybridge-core/p2pcore/crypto/keys"
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/wire"
)

// AEADAlgorithm identifies the cipher a version-1 sealed box is
// encrypted with, chosen per the negotiated profile.
type AEADAlgorithm uint8

const (
	AEADAES256GCM AEADAlgorithm = iota + 1
	AEADChaCha20Poly1305
)

// ErrUnknownAEAD is returned for an AEADAlgorithm byte this build does
// not recognize.
var ErrUnknownAEAD = errors.New("handshake: unknown AEAD algorithm")

// ErrSealedBoxInvalid covers every structural violation of the
// HPKESealedBox wire format: bad magic, an unrecognized version, or a
// length field outside invariant 10's bounds.
var ErrSealedBoxInvalid = errors.New("handshake: sealed box invalid")

// ErrSealOpenFailed is returned for a failed decrypt: bad key, tampered
// ciphertext, or mismatched aad. Never a partial plaintext.
var ErrSealOpenFailed = errors.New("handshake: sealed box open failed")

// SealContext selects which of invariant 10's two ciphertext-length
// ceilings a box is checked against: MessageB's encryptedPayload is
// capped tighter than post-handshake application traffic.
type SealContext uint8

const (
	ContextHandshake SealContext = iota
	ContextApplication
)

const (
	sealedBoxMagic = "HPKE"

	// SealedBoxVersionAEAD is the classic mode: the handshake already
	// performed the KEM step to derive key, so no encapsulated key
	// travels with the box; the payload is sealed with an explicit
	// random nonce and a separate tag.
	SealedBoxVersionAEAD uint8 = 1
	// SealedBoxVersionRawHPKE is the direct-to-recipient mode: enc
	// carries a fresh KEM encapsulation against the recipient's static
	// key and ct is HPKE's self-describing AEAD output (tag folded in,
	// no separate nonce - the HPKE context sequences it internally).
	SealedBoxVersionRawHPKE uint8 = 2

	maxEncLen                   = 4096
	maxCiphertextLenHandshake   = 64 * 1024
	maxCiphertextLenApplication = 256 * 1024

	aeadNonceLen = 12
	aeadTagLen   = 16

	// flagChaCha20Poly1305, set in a version-1 box's flags field,
	// selects ChaCha20-Poly1305 over the AES-256-GCM the bit implies
	// when unset. Both ciphers share nonceLen=12/tagLen=16, so the
	// length fields alone can't distinguish them.
	flagChaCha20Poly1305 uint16 = 0x0001

	// hpkeExportCtx and hpkeExportLen parameterize the exporter secret
	// derived alongside a version-2 box's KEM encapsulation. Both
	// SealToX25519Recipient and OpenFromX25519Sender discard the exported
	// secret; no function in this package returns it.
	hpkeExportCtx = "p2pcore-sealedbox-export"
	hpkeExportLen = 32
)

// SealedBox is the encrypted-payload container MessageB's
// encryptedPayload field carries, and the format session traffic is
// sealed under post-handshake (spec's HPKESealedBox, 17-byte header:
// magic || version || suiteWireId || flags || encLen || nonceLen ||
// tagLen || ctLen, followed by enc || nonce || ct || tag).
type SealedBox struct {
	Version         uint8
	SuiteWireID     suite.WireID
	Flags           uint16
	EncapsulatedKey []byte // KEM "enc"; empty for SealedBoxVersionAEAD
	Nonce           []byte // empty for SealedBoxVersionRawHPKE
	Ciphertext      []byte // tag excluded
	Tag             []byte // empty for SealedBoxVersionRawHPKE
}

func newAEAD(alg AEADAlgorithm, key []byte) (cipher.AEAD, error) {
	switch alg {
	case AEADAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("handshake: aes key setup: %w", err)
		}
		return cipher.NewGCM(block)
	case AEADChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAEAD, alg)
	}
}

func checkCiphertextLen(ctLen int, ctx SealContext) error {
	limit := maxCiphertextLenHandshake
	if ctx == ContextApplication {
		limit = maxCiphertextLenApplication
	}
	if ctLen < 0 || ctLen > limit {
		return fmt.Errorf("%w: ciphertext length %d exceeds %d-byte limit", ErrSealedBoxInvalid, ctLen, limit)
	}
	return nil
}

func checkEncLen(n int) error {
	if n > maxEncLen {
		return fmt.Errorf("%w: encLen %d exceeds %d-byte limit", ErrSealedBoxInvalid, n, maxEncLen)
	}
	return nil
}

func validateNonceTagLen(version uint8, nonceLen, tagLen int) error {
	switch version {
	case SealedBoxVersionAEAD:
		if nonceLen != aeadNonceLen || tagLen != aeadTagLen {
			return fmt.Errorf("%w: version 1 requires nonceLen=%d/tagLen=%d, got %d/%d",
				ErrSealedBoxInvalid, aeadNonceLen, aeadTagLen, nonceLen, tagLen)
		}
	case SealedBoxVersionRawHPKE:
		if nonceLen != 0 || tagLen != 0 {
			return fmt.Errorf("%w: version 2 requires nonceLen=0/tagLen=0, got %d/%d",
				ErrSealedBoxInvalid, nonceLen, tagLen)
		}
	default:
		return fmt.Errorf("%w: unrecognized version %d", ErrSealedBoxInvalid, version)
	}
	return nil
}

// Seal encrypts plaintext under key (which must be 32 bytes) using alg,
// producing a version-1 HPKESealedBox. aad is bound as additional
// authenticated data so the box cannot be relocated to a different
// handshake transcript; suiteWireID is carried for the peer's
// information, echoing the already-negotiated suite. ctx selects which
// ciphertext-length ceiling applies.
func Seal(alg AEADAlgorithm, suiteWireID suite.WireID, ctx SealContext, key, aad, plaintext []byte) (*SealedBox, error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aeadNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("handshake: nonce generation failed: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, aad)
	ctLen := len(sealed) - aeadTagLen
	if err := checkCiphertextLen(ctLen, ctx); err != nil {
		return nil, err
	}

	var flags uint16
	if alg == AEADChaCha20Poly1305 {
		flags = flagChaCha20Poly1305
	}

	return &SealedBox{
		Version:     SealedBoxVersionAEAD,
		SuiteWireID: suiteWireID,
		Flags:       flags,
		Nonce:       nonce,
		Ciphertext:  append([]byte(nil), sealed[:ctLen]...),
		Tag:         append([]byte(nil), sealed[ctLen:]...),
	}, nil
}

// Open decrypts a version-1 box under key, verifying aad.
func (b *SealedBox) Open(key, aad []byte) ([]byte, error) {
	if b.Version != SealedBoxVersionAEAD {
		return nil, fmt.Errorf("%w: Open requires a version-%d box, got version %d", ErrSealedBoxInvalid, SealedBoxVersionAEAD, b.Version)
	}
	alg := AEADAES256GCM
	if b.Flags&flagChaCha20Poly1305 != 0 {
		alg = AEADChaCha20Poly1305
	}
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	sealed := append(append([]byte(nil), b.Ciphertext...), b.Tag...)
	pt, err := aead.Open(nil, b.Nonce, sealed, aad)
	if err != nil {
		return nil, ErrSealOpenFailed
	}
	return pt, nil
}

// SealToX25519Recipient builds a version-2 (raw HPKE) sealed box: a
// fresh KEM encapsulation against recipientPub carries the payload
// directly, with no pre-shared symmetric key required. Used to seal a
// pairingIdentityExchange payload to a peer's long-term X25519 key
// before any session exists.
func SealToX25519Recipient(recipientPub *ecdh.PublicKey, suiteWireID suite.WireID, info, plaintext []byte, ctx SealContext) (*SealedBox, error) {
	packet, _, err := keys.HPKESealAndExportToX25519Peer(recipientPub, plaintext, info, []byte(hpkeExportCtx), hpkeExportLen)
	if err != nil {
		return nil, fmt.Errorf("handshake: hpke seal: %w", err)
	}
	const encLen = 32 // X25519 KEM enc length
	if len(packet) < encLen {
		return nil, fmt.Errorf("handshake: hpke packet shorter than encapsulated-key length")
	}
	enc := packet[:encLen]
	ct := packet[encLen:]
	if err := checkEncLen(len(enc)); err != nil {
		return nil, err
	}
	if err := checkCiphertextLen(len(ct), ctx); err != nil {
		return nil, err
	}
	return &SealedBox{
		Version:         SealedBoxVersionRawHPKE,
		SuiteWireID:     suiteWireID,
		EncapsulatedKey: append([]byte(nil), enc...),
		Ciphertext:      append([]byte(nil), ct...),
	}, nil
}

// OpenFromX25519Sender opens a version-2 box built by
// SealToX25519Recipient, given this side's matching private key. info
// MUST match the value the sender sealed with.
func OpenFromX25519Sender(b *SealedBox, recipientPriv *ecdh.PrivateKey, info []byte) ([]byte, error) {
	if b.Version != SealedBoxVersionRawHPKE {
		return nil, fmt.Errorf("%w: OpenFromX25519Sender requires a version-%d box, got version %d", ErrSealedBoxInvalid, SealedBoxVersionRawHPKE, b.Version)
	}
	packet := append(append([]byte(nil), b.EncapsulatedKey...), b.Ciphertext...)
	pt, _, err := keys.HPKEOpenAndExportWithX25519Priv(recipientPriv, packet, info, []byte(hpkeExportCtx), hpkeExportLen)
	if err != nil {
		return nil, ErrSealOpenFailed
	}
	return pt, nil
}

// Encode serializes the box as the wire's HPKESealedBox: magic(4) ||
// version(1) || suiteWireId(u16) || flags(u16) || encLen(u16) ||
// nonceLen(u8) || tagLen(u8) || ctLen(u32) || enc || nonce || ct || tag.
func (b *SealedBox) Encode(w *wire.Writer) {
	w.PutRaw([]byte(sealedBoxMagic))
	w.PutU8(b.Version)
	w.PutU16(uint16(b.SuiteWireID))
	w.PutU16(b.Flags)
	w.PutU16(uint16(len(b.EncapsulatedKey)))
	w.PutU8(uint8(len(b.Nonce)))
	w.PutU8(uint8(len(b.Tag)))
	w.PutU32(uint32(len(b.Ciphertext)))
	w.PutRaw(b.EncapsulatedKey)
	w.PutRaw(b.Nonce)
	w.PutRaw(b.Ciphertext)
	w.PutRaw(b.Tag)
}

// DecodeSealedBox reads a SealedBox written by Encode, rejecting bad
// magic, an unrecognized version, or any length field outside
// invariant 10's bounds. ctx picks which ciphertext-length ceiling
// applies to this parse.
func DecodeSealedBox(r *wire.Reader, ctx SealContext) (*SealedBox, error) {
	magic, err := r.GetRaw(len(sealedBoxMagic))
	if err != nil {
		return nil, fmt.Errorf("%w: magic: %v", ErrSealedBoxInvalid, err)
	}
	if string(magic) != sealedBoxMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrSealedBoxInvalid, magic)
	}
	version, err := r.GetU8()
	if err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrSealedBoxInvalid, err)
	}
	suiteID, err := r.GetU16()
	if err != nil {
		return nil, fmt.Errorf("%w: suiteWireId: %v", ErrSealedBoxInvalid, err)
	}
	flags, err := r.GetU16()
	if err != nil {
		return nil, fmt.Errorf("%w: flags: %v", ErrSealedBoxInvalid, err)
	}
	encLen, err := r.GetU16()
	if err != nil {
		return nil, fmt.Errorf("%w: encLen: %v", ErrSealedBoxInvalid, err)
	}
	if err := checkEncLen(int(encLen)); err != nil {
		return nil, err
	}
	nonceLen, err := r.GetU8()
	if err != nil {
		return nil, fmt.Errorf("%w: nonceLen: %v", ErrSealedBoxInvalid, err)
	}
	tagLen, err := r.GetU8()
	if err != nil {
		return nil, fmt.Errorf("%w: tagLen: %v", ErrSealedBoxInvalid, err)
	}
	if err := validateNonceTagLen(version, int(nonceLen), int(tagLen)); err != nil {
		return nil, err
	}
	ctLen, err := r.GetU32()
	if err != nil {
		return nil, fmt.Errorf("%w: ctLen: %v", ErrSealedBoxInvalid, err)
	}
	if err := checkCiphertextLen(int(ctLen), ctx); err != nil {
		return nil, err
	}

	enc, err := r.GetRaw(int(encLen))
	if err != nil {
		return nil, fmt.Errorf("%w: enc: %v", ErrSealedBoxInvalid, err)
	}
	nonce, err := r.GetRaw(int(nonceLen))
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrSealedBoxInvalid, err)
	}
	ct, err := r.GetRaw(int(ctLen))
	if err != nil {
		return nil, fmt.Errorf("%w: ct: %v", ErrSealedBoxInvalid, err)
	}
	tag, err := r.GetRaw(int(tagLen))
	if err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrSealedBoxInvalid, err)
	}

	return &SealedBox{
		Version:         version,
		SuiteWireID:     suite.WireID(suiteID),
		Flags:           flags,
		EncapsulatedKey: enc,
		Nonce:           nonce,
		Ciphertext:      ct,
		Tag:             tag,
	}, nil
}

// EncodeWithHeader returns the box's full wire encoding, the exact bytes
// sigB_input hashes under SHA-256 (spec §4.6).
func (b *SealedBox) EncodeWithHeader() []byte {
	w := wire.NewWriter(17 + len(b.EncapsulatedKey) + len(b.Nonce) + len(b.Ciphertext) + len(b.Tag))
	b.Encode(w)
	return w.Bytes()
}
