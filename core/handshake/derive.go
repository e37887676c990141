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
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const sendKeyLen = 32

// SessionKeys holds the directional AEAD keys and the Finished MAC key
// derived from one completed handshake (spec §4.6's key schedule).
// SendKey/ReceiveKey are from the local party's perspective: the
// initiator's SendKey is the responder's ReceiveKey and vice versa.
type SessionKeys struct {
	SendKey     []byte
	ReceiveKey  []byte
	FinishedKey []byte
}

// deriveSessionKeys implements:
//
//	km = HKDF-Extract(salt = serverNonce||clientNonce, ikm = kemSharedSecret)
//	sendKey_initiator  = HKDF-Expand(km, "skybridge-control-v1||initiator", 32)
//	sendKey_responder  = HKDF-Expand(km, "skybridge-control-v1||responder", 32)
//	finishedKey        = HKDF-Expand(km, "skybridge-finished-v1", 32)
//
// isInitiator selects which derived key is this party's SendKey vs.
// ReceiveKey.
func deriveSessionKeys(kemSharedSecret, clientNonce, serverNonce []byte, isInitiator bool) (*SessionKeys, error) {
	salt := append(append([]byte{}, serverNonce...), clientNonce...)
	km := hkdf.Extract(sha256.New, kemSharedSecret, salt)

	initiatorKey, err := expand(km, "skybridge-control-v1||initiator", sendKeyLen)
	if err != nil {
		return nil, err
	}
	responderKey, err := expand(km, "skybridge-control-v1||responder", sendKeyLen)
	if err != nil {
		return nil, err
	}
	finishedKey, err := expand(km, "skybridge-finished-v1", sendKeyLen)
	if err != nil {
		return nil, err
	}

	keys := &SessionKeys{FinishedKey: finishedKey}
	if isInitiator {
		keys.SendKey, keys.ReceiveKey = initiatorKey, responderKey
	} else {
		keys.SendKey, keys.ReceiveKey = responderKey, initiatorKey
	}
	return keys, nil
}

func expand(prk []byte, info string, length int) ([]byte, error) {
	out := make([]byte, length)
	r := hkdf.Expand(sha256.New, prk, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("handshake: HKDF-Expand(%s) failed: %w", info, err)
	}
	return out, nil
}
