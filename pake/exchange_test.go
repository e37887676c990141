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
	"bytes"
	"testing"
)

func TestExchangeRoundTripProducesMatchingKeys(t *testing.T) {
	initiator, msgA, err := NewInitiatorSession("device-a", "device-b", "123456", []byte("caps-a"))
	if err != nil {
		t.Fatalf("NewInitiatorSession: %v", err)
	}

	responder, msgB, err := NewResponderSession("device-b", "123456", []byte("profile"), msgA)
	if err != nil {
		t.Fatalf("NewResponderSession: %v", err)
	}

	initKeys, confirmation, err := initiator.ProcessMessageB(msgB)
	if err != nil {
		t.Fatalf("ProcessMessageB: %v", err)
	}

	if err := responder.VerifyFinalConfirmation(confirmation); err != nil {
		t.Fatalf("VerifyFinalConfirmation: %v", err)
	}

	respKeys := responder.Keys()
	if !bytes.Equal(initKeys.SessionKey, respKeys.SessionKey) {
		t.Fatal("initiator and responder derived different session keys")
	}
	if !bytes.Equal(initKeys.ConfirmKey, respKeys.ConfirmKey) {
		t.Fatal("initiator and responder derived different confirm keys")
	}
}

func TestExchangeFailsWithWrongCode(t *testing.T) {
	initiator, msgA, err := NewInitiatorSession("device-a", "device-b", "123456", nil)
	if err != nil {
		t.Fatalf("NewInitiatorSession: %v", err)
	}
	_, msgB, err := NewResponderSession("device-b", "654321", nil, msgA)
	if err != nil {
		t.Fatalf("NewResponderSession: %v", err)
	}
	if _, _, err := initiator.ProcessMessageB(msgB); err != ErrConfirmationFailed {
		t.Fatalf("ProcessMessageB with mismatched code: got %v, want ErrConfirmationFailed", err)
	}
}

func TestExchangeFailsWithTamperedPB(t *testing.T) {
	initiator, msgA, err := NewInitiatorSession("device-a", "device-b", "123456", nil)
	if err != nil {
		t.Fatalf("NewInitiatorSession: %v", err)
	}
	_, msgB, err := NewResponderSession("device-b", "123456", nil, msgA)
	if err != nil {
		t.Fatalf("NewResponderSession: %v", err)
	}
	msgB.Confirm[0] ^= 0xFF
	if _, _, err := initiator.ProcessMessageB(msgB); err != ErrConfirmationFailed {
		t.Fatalf("ProcessMessageB with tampered confirm: got %v, want ErrConfirmationFailed", err)
	}
}

func TestStretchPasswordIsOrderIndependent(t *testing.T) {
	w1 := StretchPassword("123456", "device-a", "device-b")
	w2 := StretchPassword("123456", "device-b", "device-a")
	if w1.Cmp(w2) != 0 {
		t.Fatal("StretchPassword should be independent of argument order (sorted join)")
	}
}

func TestStretchPasswordDiffersByCode(t *testing.T) {
	w1 := StretchPassword("123456", "device-a", "device-b")
	w2 := StretchPassword("654321", "device-a", "device-b")
	if w1.Cmp(w2) == 0 {
		t.Fatal("different codes should stretch to different scalars")
	}
}
