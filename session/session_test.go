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

package session

import (
	"bytes"
	"testing"
	"time"

	"github.com/skybridge-core/p2pcore/core/handshake"
)

func pairedKeys() (a, b *handshake.SessionKeys) {
	k1 := bytes.Repeat([]byte{0x11}, 32)
	k2 := bytes.Repeat([]byte{0x22}, 32)
	f := bytes.Repeat([]byte{0x33}, 32)
	a = &handshake.SessionKeys{SendKey: append([]byte{}, k1...), ReceiveKey: append([]byte{}, k2...), FinishedKey: append([]byte{}, f...)}
	b = &handshake.SessionKeys{SendKey: append([]byte{}, k2...), ReceiveKey: append([]byte{}, k1...), FinishedKey: append([]byte{}, f...)}
	return a, b
}

func TestSessionEncryptDecryptRoundTrip(t *testing.T) {
	var handshakeID [32]byte
	copy(handshakeID[:], []byte("test-handshake-id-0123456789"))

	initKeys, respKeys := pairedKeys()
	initiator := New("sess-1", "peer-a", handshakeID, initKeys, handshake.AEADAES256GCM, AssurancePQCStrict, Config{})
	responder := New("sess-1", "peer-b", handshakeID, respKeys, handshake.AEADAES256GCM, AssurancePQCStrict, Config{})

	ciphertext, err := initiator.Encrypt([]byte("hello responder"), false)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	plaintext, err := responder.Decrypt(ciphertext, false)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(plaintext) != "hello responder" {
		t.Fatalf("got %q", plaintext)
	}
	if initiator.MessageCount() != 1 {
		t.Fatalf("expected message count 1, got %d", initiator.MessageCount())
	}
}

func TestSessionBootstrapControlOnlyGateBlocksBusinessTraffic(t *testing.T) {
	var handshakeID [32]byte
	keys, _ := pairedKeys()
	sess := New("sess-1", "peer-a", handshakeID, keys, handshake.AEADAES256GCM, AssuranceBootstrapAssisted, Config{})

	if !sess.IsBootstrapControlOnly() {
		t.Fatal("expected a bootstrap-assisted session to start with the rekey gate shut")
	}
	if _, err := sess.Encrypt([]byte("business message"), false); err != ErrBootstrapControlOnly {
		t.Fatalf("expected ErrBootstrapControlOnly, got %v", err)
	}
	if _, err := sess.Encrypt([]byte("pairing identity exchange"), true); err != nil {
		t.Fatalf("expected control message to pass the gate, got %v", err)
	}

	sess.LiftControlOnlyGate()
	if sess.IsBootstrapControlOnly() {
		t.Fatal("expected gate to be open after LiftControlOnlyGate")
	}
	if _, err := sess.Encrypt([]byte("now allowed"), false); err != nil {
		t.Fatalf("expected business traffic after gate lift, got %v", err)
	}
}

func TestSessionIsExpiredByMaxAge(t *testing.T) {
	var handshakeID [32]byte
	keys, _ := pairedKeys()
	sess := New("sess-1", "peer-a", handshakeID, keys, handshake.AEADAES256GCM, AssurancePQCStrict, Config{MaxAge: time.Millisecond})
	time.Sleep(5 * time.Millisecond)
	if !sess.IsExpired() {
		t.Fatal("expected session to be expired past MaxAge")
	}
	if _, err := sess.Encrypt([]byte("too late"), false); err == nil {
		t.Fatal("expected Encrypt to fail on an expired session")
	}
}

func TestSessionIsExpiredByMessageCount(t *testing.T) {
	var handshakeID [32]byte
	initKeys, respKeys := pairedKeys()
	initiator := New("sess-1", "peer-a", handshakeID, initKeys, handshake.AEADAES256GCM, AssurancePQCStrict, Config{MaxMessages: 1})
	responder := New("sess-1", "peer-b", handshakeID, respKeys, handshake.AEADAES256GCM, AssurancePQCStrict, Config{})

	ct, err := initiator.Encrypt([]byte("first"), false)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := responder.Decrypt(ct, false); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !initiator.IsExpired() {
		t.Fatal("expected session to be expired after hitting MaxMessages")
	}
}

func TestSessionCloseZeroizesKeys(t *testing.T) {
	var handshakeID [32]byte
	keys, _ := pairedKeys()
	sess := New("sess-1", "peer-a", handshakeID, keys, handshake.AEADAES256GCM, AssurancePQCStrict, Config{})
	sess.Close()
	for _, b := range [][]byte{keys.SendKey, keys.ReceiveKey, keys.FinishedKey} {
		for _, v := range b {
			if v != 0 {
				t.Fatal("expected session keys to be zeroized on Close")
			}
		}
	}
	if !sess.IsExpired() {
		t.Fatal("expected a closed session to report expired")
	}
}
