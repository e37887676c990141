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

package pake

import (
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// ErrRandomGenerationFailed is returned when the system RNG fails while
// generating a nonce or ephemeral scalar; spec §4.7 forbids any
// weak-random fallback.
var ErrRandomGenerationFailed = errors.New("pake: randomGenerationFailed")

// ErrConfirmationFailed is returned when a confirmation MAC fails to
// verify.
var ErrConfirmationFailed = errors.New("pake: confirmation MAC verification failed")

const nonceLen = 32

// MessageA is what the initiator sends first.
type MessageA struct {
	DeviceID     string
	Capabilities []byte
	Nonce        [nonceLen]byte
	PA           []byte // SEC1-uncompressed P-256 point
}

// MessageB is the responder's reply.
type MessageB struct {
	DeviceID          string
	NegotiatedProfile []byte
	Nonce             [nonceLen]byte
	PB                []byte // SEC1-uncompressed P-256 point
	Confirm           [32]byte
}

// Confirmation is the initiator's final message, confirming it derived
// matching keys.
type Confirmation struct {
	MAC [32]byte
}

// Keys are the two symmetric outputs of a completed exchange.
type Keys struct {
	ConfirmKey []byte
	SessionKey []byte
}

// InitiatorSession holds the ephemeral state the initiator must keep
// between sending MessageA and processing MessageB.
type InitiatorSession struct {
	localID, peerID string
	w               *big.Int
	x               *big.Int
	msgA            *MessageA
}

// NewInitiatorSession stretches the pairing code into w, generates a
// fresh ephemeral scalar x, and builds MessageA: pA = w*M + X.
func NewInitiatorSession(localID, peerID, code string, capabilities []byte) (*InitiatorSession, *MessageA, error) {
	c := curve()
	w := StretchPassword(code, localID, peerID)

	x, err := randScalar(c)
	if err != nil {
		return nil, nil, ErrRandomGenerationFailed
	}
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, nil, ErrRandomGenerationFailed
	}

	X := scalarMultPoint(c, point{c.Params().Gx, c.Params().Gy}, x)
	pA := addPoints(c, scalarMultPoint(c, pointM, w), X)

	msgA := &MessageA{
		DeviceID:     localID,
		Capabilities: capabilities,
		Nonce:        nonce,
		PA:           marshalPoint(c, pA),
	}

	return &InitiatorSession{localID: localID, peerID: peerID, w: w, x: x, msgA: msgA}, msgA, nil
}

// ProcessMessageB derives the shared keys, verifies the responder's
// confirmation MAC in constant time, and returns the keys plus the
// initiator's own final Confirmation to send back.
func (s *InitiatorSession) ProcessMessageB(msgB *MessageB) (*Keys, *Confirmation, error) {
	c := curve()

	pB, err := unmarshalPoint(c, msgB.PB)
	if err != nil {
		return nil, nil, err
	}

	// Y = pB - w*N
	wN := scalarMultPoint(c, pointN, s.w)
	Y := addPoints(c, pB, negatePoint(c, wN))
	shared := scalarMultPoint(c, Y, s.x)

	keys, err := deriveKeys(shared, s.msgA.PA, msgB.PB, s.localID, s.peerID)
	if err != nil {
		return nil, nil, err
	}

	wantConfirm := confirmMAC(keys.ConfirmKey, "responder-confirm", s.msgA, msgB)
	if !hmac.Equal(wantConfirm, msgB.Confirm[:]) {
		return nil, nil, ErrConfirmationFailed
	}

	final := confirmMAC(keys.ConfirmKey, "initiator-confirm", s.msgA, msgB)
	var out Confirmation
	copy(out.MAC[:], final)
	return keys, &out, nil
}

// ResponderSession holds the ephemeral state the responder must keep
// between processing MessageA and verifying the initiator's final
// Confirmation.
type ResponderSession struct {
	localID, peerID string
	w               *big.Int
	y               *big.Int
	msgA            *MessageA
	msgB            *MessageB
	keys            *Keys
}

// NewResponderSession processes MessageA and builds MessageB: pB = w*N +
// Y, plus a confirmation MAC over the transcript so far.
func NewResponderSession(localID string, code string, negotiatedProfile []byte, msgA *MessageA) (*ResponderSession, *MessageB, error) {
	c := curve()
	peerID := msgA.DeviceID
	w := StretchPassword(code, peerID, localID)

	pA, err := unmarshalPoint(c, msgA.PA)
	if err != nil {
		return nil, nil, err
	}

	y, err := randScalar(c)
	if err != nil {
		return nil, nil, ErrRandomGenerationFailed
	}
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, nil, ErrRandomGenerationFailed
	}

	Y := scalarMultPoint(c, point{c.Params().Gx, c.Params().Gy}, y)
	pB := addPoints(c, scalarMultPoint(c, pointN, w), Y)

	// X = pA - w*M
	wM := scalarMultPoint(c, pointM, w)
	X := addPoints(c, pA, negatePoint(c, wM))
	shared := scalarMultPoint(c, X, y)

	pBBytes := marshalPoint(c, pB)
	keys, err := deriveKeys(shared, msgA.PA, pBBytes, peerID, localID)
	if err != nil {
		return nil, nil, err
	}

	msgB := &MessageB{
		DeviceID:          localID,
		NegotiatedProfile: negotiatedProfile,
		Nonce:             nonce,
		PB:                pBBytes,
	}
	copy(msgB.Confirm[:], confirmMAC(keys.ConfirmKey, "responder-confirm", msgA, msgB))

	return &ResponderSession{localID: localID, peerID: peerID, w: w, y: y, msgA: msgA, msgB: msgB, keys: keys}, msgB, nil
}

// Keys returns the keys derived while building MessageB. Use these only
// after VerifyFinalConfirmation succeeds.
func (s *ResponderSession) Keys() *Keys { return s.keys }

// VerifyFinalConfirmation checks the initiator's closing Confirmation in
// constant time.
func (s *ResponderSession) VerifyFinalConfirmation(final *Confirmation) error {
	want := confirmMAC(s.keys.ConfirmKey, "initiator-confirm", s.msgA, s.msgB)
	if !hmac.Equal(want, final.MAC[:]) {
		return ErrConfirmationFailed
	}
	return nil
}

// deriveKeys implements spec §4.7's key schedule: HKDF-SHA-256 over the
// ECDH output, salted with pA||pB, info "SPAKE2+ keys"||idA||idB.
func deriveKeys(shared point, pA, pB []byte, idA, idB string) (*Keys, error) {
	ikm := shared.x.Bytes()
	salt := append(append([]byte{}, pA...), pB...)
	info := append([]byte("SPAKE2+ keys"), []byte(idA+idB)...)

	prk := hkdf.Extract(sha256.New, ikm, salt)
	r := hkdf.Expand(sha256.New, prk, info)

	both := make([]byte, 64)
	if _, err := io.ReadFull(r, both); err != nil {
		return nil, fmt.Errorf("pake: HKDF-Expand failed: %w", err)
	}
	return &Keys{ConfirmKey: both[:32], SessionKey: both[32:]}, nil
}

func confirmMAC(key []byte, label string, msgA *MessageA, msgB *MessageB) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(label))
	mac.Write(msgA.PA)
	mac.Write(msgA.Nonce[:])
	mac.Write(msgB.PB)
	mac.Write(msgB.Nonce[:])
	return mac.Sum(nil)
}

// randScalar draws a uniform scalar in [1, N-1] for curve c.
func randScalar(c elliptic.Curve) (*big.Int, error) {
	n := c.Params().N
	k, err := rand.Int(rand.Reader, new(big.Int).Sub(n, big.NewInt(1)))
	if err != nil {
		return nil, err
	}
	return k.Add(k, big.NewInt(1)), nil
}
