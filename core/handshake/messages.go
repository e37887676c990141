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

// Package handshake implements the two-message post-quantum-capable
// handshake protocol: MessageA (initiator to responder), MessageB
// (responder to initiator), and the fixed-size Finished confirmation
// each side sends once it has verified the other's authentication.
package handshake

import (
	"errors"
	"fmt"

	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/wire"
)

// ErrInvalidMessageFormat is the terminal error for any wire-decoding
// failure of a handshake message (spec §4.6: invalidMessageFormat).
var ErrInvalidMessageFormat = errors.New("handshake: invalid message format")

const nonceFieldLen = 32

// KeyShareEntry is one element of MessageA's keyShares array: one
// offered suite's key-share bytes, validated against the suite table's
// KeyShareABLen.
type KeyShareEntry struct {
	WireID suite.WireID
	Share  []byte
}

// MessageA is the initiator's opening message (spec §4.6).
type MessageA struct {
	ProtocolVersion uint8
	SupportedSuites []suite.WireID
	KeyShares       []KeyShareEntry
	ClientNonce     [nonceFieldLen]byte
	Capabilities    []byte
	Policy          []byte
	IdentityPubKey  []byte
	Signature       []byte
	SESignature     []byte
}

// encodeFields writes every field up to (but not including) signature
// and seSignature. Both the signed wire encoding and the sigA preimage
// are built from this shared core so they can never drift apart.
func (m *MessageA) encodeFields(w *wire.Writer) {
	w.PutU8(m.ProtocolVersion)

	w.PutArrayHeader(len(m.SupportedSuites))
	for _, id := range m.SupportedSuites {
		w.PutU16(uint16(id))
	}

	w.PutArrayHeader(len(m.KeyShares))
	for _, ks := range m.KeyShares {
		w.PutU16(uint16(ks.WireID))
		w.PutU16(uint16(len(ks.Share)))
		w.PutRaw(ks.Share)
	}

	w.PutRaw(m.ClientNonce[:])
	w.PutU16(uint16(len(m.Capabilities)))
	w.PutRaw(m.Capabilities)
	w.PutU16(uint16(len(m.Policy)))
	w.PutRaw(m.Policy)
	w.PutU16(uint16(len(m.IdentityPubKey)))
	w.PutRaw(m.IdentityPubKey)
}

// SignaturePreimage returns sigA_input: the "SkyBridge-A" domain prefix
// followed by MessageA with its signature fields omitted (spec §4.6).
func (m *MessageA) SignaturePreimage() []byte {
	w := wire.NewWriter(256)
	w.PutRaw([]byte("SkyBridge-A"))
	m.encodeFields(w)
	return w.Bytes()
}

// Encode serializes the complete, signed MessageA for the wire.
func (m *MessageA) Encode() []byte {
	w := wire.NewWriter(256)
	m.encodeFields(w)
	w.PutU16(uint16(len(m.Signature)))
	w.PutRaw(m.Signature)
	w.PutU16(uint16(len(m.SESignature)))
	w.PutRaw(m.SESignature)
	return w.Bytes()
}

// DecodeMessageA parses a wire-encoded MessageA, enforcing the
// keyShares-is-a-subsequence-of-supportedSuites invariant (spec §4.6
// invariant) and per-suite key-share length bounds.
func DecodeMessageA(data []byte) (*MessageA, error) {
	r := wire.NewReader(data)
	m := &MessageA{}

	var err error
	if m.ProtocolVersion, err = r.GetU8(); err != nil {
		return nil, fmt.Errorf("%w: protocolVersion: %v", ErrInvalidMessageFormat, err)
	}

	suiteCount, err := r.GetArrayCount()
	if err != nil {
		return nil, fmt.Errorf("%w: supportedSuites count: %v", ErrInvalidMessageFormat, err)
	}
	m.SupportedSuites = make([]suite.WireID, 0, suiteCount)
	for i := uint32(0); i < suiteCount; i++ {
		id, err := r.GetU16()
		if err != nil {
			return nil, fmt.Errorf("%w: supportedSuites[%d]: %v", ErrInvalidMessageFormat, i, err)
		}
		m.SupportedSuites = append(m.SupportedSuites, suite.WireID(id))
	}

	shareCount, err := r.GetArrayCount()
	if err != nil {
		return nil, fmt.Errorf("%w: keyShares count: %v", ErrInvalidMessageFormat, err)
	}
	m.KeyShares = make([]KeyShareEntry, 0, shareCount)
	for i := uint32(0); i < shareCount; i++ {
		id, err := r.GetU16()
		if err != nil {
			return nil, fmt.Errorf("%w: keyShares[%d] wireId: %v", ErrInvalidMessageFormat, i, err)
		}
		shareLen, err := r.GetU16()
		if err != nil {
			return nil, fmt.Errorf("%w: keyShares[%d] len: %v", ErrInvalidMessageFormat, i, err)
		}
		share, err := r.GetRaw(int(shareLen))
		if err != nil {
			return nil, fmt.Errorf("%w: keyShares[%d] bytes: %v", ErrInvalidMessageFormat, i, err)
		}
		m.KeyShares = append(m.KeyShares, KeyShareEntry{WireID: suite.WireID(id), Share: share})
	}
	if err := validateKeyShareSubsequence(m.SupportedSuites, m.KeyShares); err != nil {
		return nil, err
	}

	nonce, err := r.GetRaw(nonceFieldLen)
	if err != nil {
		return nil, fmt.Errorf("%w: clientNonce: %v", ErrInvalidMessageFormat, err)
	}
	copy(m.ClientNonce[:], nonce)

	if m.Capabilities, err = readU16Blob(r); err != nil {
		return nil, fmt.Errorf("%w: capabilities: %v", ErrInvalidMessageFormat, err)
	}
	if m.Policy, err = readU16Blob(r); err != nil {
		return nil, fmt.Errorf("%w: policy: %v", ErrInvalidMessageFormat, err)
	}
	if m.IdentityPubKey, err = readU16Blob(r); err != nil {
		return nil, fmt.Errorf("%w: identityPubKey: %v", ErrInvalidMessageFormat, err)
	}
	if m.Signature, err = readU16Blob(r); err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrInvalidMessageFormat, err)
	}
	if m.SESignature, err = readU16Blob(r); err != nil {
		return nil, fmt.Errorf("%w: seSignature: %v", ErrInvalidMessageFormat, err)
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessageFormat, err)
	}
	return m, nil
}

// validateKeyShareSubsequence enforces that keyShares preserves
// supportedSuites' relative order with no duplicates and no entries
// absent from supportedSuites, and that every share's length matches
// its suite's registered KeyShareABLen.
func validateKeyShareSubsequence(suites []suite.WireID, shares []KeyShareEntry) error {
	pos := make(map[suite.WireID]int, len(suites))
	for i, id := range suites {
		pos[id] = i
	}
	lastPos := -1
	seen := make(map[suite.WireID]bool, len(shares))
	for _, ks := range shares {
		idx, ok := pos[ks.WireID]
		if !ok {
			return fmt.Errorf("%w: key share for suite 0x%04x not in supportedSuites", ErrInvalidMessageFormat, uint16(ks.WireID))
		}
		if seen[ks.WireID] {
			return fmt.Errorf("%w: duplicate key share for suite 0x%04x", ErrInvalidMessageFormat, uint16(ks.WireID))
		}
		seen[ks.WireID] = true
		if idx <= lastPos {
			return fmt.Errorf("%w: key shares out of order relative to supportedSuites", ErrInvalidMessageFormat)
		}
		lastPos = idx
		if err := suite.ValidateKeyShareLen(ks.WireID, len(ks.Share)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMessageFormat, err)
		}
	}
	return nil
}

func readU16Blob(r *wire.Reader) ([]byte, error) {
	n, err := r.GetU16()
	if err != nil {
		return nil, err
	}
	return r.GetRaw(int(n))
}

// MessageB is the responder's reply (spec §4.6).
type MessageB struct {
	ProtocolVersion uint8
	SelectedSuite   suite.WireID
	ResponderShare  []byte
	ServerNonce     [nonceFieldLen]byte
	Encrypted       *SealedBox
	IdentityPubKey  []byte
	Signature       []byte
	SESignature     []byte
}

func (m *MessageB) encodeFields(w *wire.Writer) {
	w.PutU8(m.ProtocolVersion)
	w.PutU16(uint16(m.SelectedSuite))
	w.PutU16(uint16(len(m.ResponderShare)))
	w.PutRaw(m.ResponderShare)
	w.PutRaw(m.ServerNonce[:])
	m.Encrypted.Encode(w)
	w.PutU16(uint16(len(m.IdentityPubKey)))
	w.PutRaw(m.IdentityPubKey)
}

// Encode serializes the complete, signed MessageB for the wire.
func (m *MessageB) Encode() []byte {
	w := wire.NewWriter(256)
	m.encodeFields(w)
	w.PutU16(uint16(len(m.Signature)))
	w.PutRaw(m.Signature)
	w.PutU16(uint16(len(m.SESignature)))
	w.PutRaw(m.SESignature)
	return w.Bytes()
}

// DecodeMessageB parses a wire-encoded MessageB.
func DecodeMessageB(data []byte) (*MessageB, error) {
	r := wire.NewReader(data)
	m := &MessageB{}

	var err error
	if m.ProtocolVersion, err = r.GetU8(); err != nil {
		return nil, fmt.Errorf("%w: protocolVersion: %v", ErrInvalidMessageFormat, err)
	}
	suiteID, err := r.GetU16()
	if err != nil {
		return nil, fmt.Errorf("%w: selectedSuiteWireId: %v", ErrInvalidMessageFormat, err)
	}
	m.SelectedSuite = suite.WireID(suiteID)

	shareLen, err := r.GetU16()
	if err != nil {
		return nil, fmt.Errorf("%w: responderShareLen: %v", ErrInvalidMessageFormat, err)
	}
	if m.ResponderShare, err = r.GetRaw(int(shareLen)); err != nil {
		return nil, fmt.Errorf("%w: responderShare: %v", ErrInvalidMessageFormat, err)
	}
	if err := suite.ValidateResponderShareLen(m.SelectedSuite, len(m.ResponderShare)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessageFormat, err)
	}

	nonce, err := r.GetRaw(nonceFieldLen)
	if err != nil {
		return nil, fmt.Errorf("%w: serverNonce: %v", ErrInvalidMessageFormat, err)
	}
	copy(m.ServerNonce[:], nonce)

	if m.Encrypted, err = DecodeSealedBox(r, ContextHandshake); err != nil {
		return nil, fmt.Errorf("%w: encryptedPayload: %v", ErrInvalidMessageFormat, err)
	}
	if m.IdentityPubKey, err = readU16Blob(r); err != nil {
		return nil, fmt.Errorf("%w: identityPubKey: %v", ErrInvalidMessageFormat, err)
	}
	if m.Signature, err = readU16Blob(r); err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrInvalidMessageFormat, err)
	}
	if m.SESignature, err = readU16Blob(r); err != nil {
		return nil, fmt.Errorf("%w: seSignature: %v", ErrInvalidMessageFormat, err)
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessageFormat, err)
	}
	return m, nil
}

// Direction tags which party sent a Finished message.
type Direction uint8

const (
	DirectionResponderToInitiator Direction = 0x01
	DirectionInitiatorToResponder Direction = 0x02
)

const finishedMagic = "FIN1"
const finishedVersion = 0x01
const finishedLen = 4 + 1 + 1 + 32

// Finished is the fixed 38-byte confirmation message each side sends
// after verifying the other's authentication (spec §4.6).
type Finished struct {
	Direction Direction
	MAC       [32]byte
}

// Encode returns the fixed-size wire form: "FIN1" || version || direction || mac.
func (f *Finished) Encode() []byte {
	out := make([]byte, 0, finishedLen)
	out = append(out, []byte(finishedMagic)...)
	out = append(out, finishedVersion, byte(f.Direction))
	out = append(out, f.MAC[:]...)
	return out
}

// DecodeFinished parses a Finished message, rejecting anything that
// isn't exactly finishedLen bytes with the expected magic and version.
func DecodeFinished(data []byte) (*Finished, error) {
	if len(data) != finishedLen {
		return nil, fmt.Errorf("%w: finished: expected %d bytes, got %d", ErrInvalidMessageFormat, finishedLen, len(data))
	}
	if string(data[0:4]) != finishedMagic {
		return nil, fmt.Errorf("%w: finished: bad magic", ErrInvalidMessageFormat)
	}
	if data[4] != finishedVersion {
		return nil, fmt.Errorf("%w: finished: unsupported version %d", ErrInvalidMessageFormat, data[4])
	}
	f := &Finished{Direction: Direction(data[5])}
	copy(f.MAC[:], data[6:38])
	return f, nil
}
