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
	"testing"
	"time"

	"github.com/skybridge-core/p2pcore/core/handshake"
)

func TestManagerInstallThenGet(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	keys, _ := pairedKeys()
	var handshakeID [32]byte
	sess := New("sess-1", "peer-a", handshakeID, keys, handshake.AEADAES256GCM, AssurancePQCStrict, Config{})
	m.Install(sess)

	got, ok := m.Get("sess-1")
	if !ok || got != sess {
		t.Fatal("expected Get to return the installed session")
	}
	byAlias, ok := m.GetByPeerAlias("peer-a")
	if !ok || byAlias != sess {
		t.Fatal("expected GetByPeerAlias to return the installed session")
	}
	if m.Count() != 1 {
		t.Fatalf("expected 1 tracked session, got %d", m.Count())
	}
}

func TestManagerInstallReplacesBootstrapSessionForSamePeer(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	keys1, _ := pairedKeys()
	var handshakeID1 [32]byte
	bootstrapSess := New("bootstrap-1", "peer-a", handshakeID1, keys1, handshake.AEADAES256GCM, AssuranceBootstrapAssisted, Config{})
	m.Install(bootstrapSess)

	keys2, _ := pairedKeys()
	var handshakeID2 [32]byte
	handshakeID2[0] = 0x01
	strictSess := New("strict-1", "peer-a", handshakeID2, keys2, handshake.AEADAES256GCM, AssurancePQCStrict, Config{})
	m.Install(strictSess)

	if m.Count() != 1 {
		t.Fatalf("expected the bootstrap session to be replaced, got %d tracked sessions", m.Count())
	}
	got, ok := m.GetByPeerAlias("peer-a")
	if !ok || got != strictSess {
		t.Fatal("expected the strict-PQC session to have replaced the bootstrap session")
	}
	if !bootstrapSess.IsExpired() {
		t.Fatal("expected the replaced bootstrap session to have been closed")
	}
}

func TestManagerRemoveClosesSession(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	keys, _ := pairedKeys()
	var handshakeID [32]byte
	sess := New("sess-1", "peer-a", handshakeID, keys, handshake.AEADAES256GCM, AssurancePQCStrict, Config{})
	m.Install(sess)
	m.Remove("sess-1")

	if _, ok := m.Get("sess-1"); ok {
		t.Fatal("expected session to be gone after Remove")
	}
	if !sess.IsExpired() {
		t.Fatal("expected Remove to close the session")
	}
}

func TestManagerGetEvictsExpiredSession(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	keys, _ := pairedKeys()
	var handshakeID [32]byte
	sess := New("sess-1", "peer-a", handshakeID, keys, handshake.AEADAES256GCM, AssurancePQCStrict, Config{MaxAge: time.Millisecond})
	m.Install(sess)
	time.Sleep(5 * time.Millisecond)

	if _, ok := m.Get("sess-1"); ok {
		t.Fatal("expected Get to evict an expired session")
	}
	if m.Count() != 0 {
		t.Fatalf("expected eviction to remove the session from the manager, got %d", m.Count())
	}
}

func TestManagerStatsReportsActiveAndExpired(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	keysA, _ := pairedKeys()
	var idA [32]byte
	active := New("active", "peer-a", idA, keysA, handshake.AEADAES256GCM, AssurancePQCStrict, Config{})
	m.Install(active)

	keysB, _ := pairedKeys()
	var idB [32]byte
	idB[0] = 1
	expired := New("expired", "peer-b", idB, keysB, handshake.AEADAES256GCM, AssurancePQCStrict, Config{MaxAge: time.Millisecond})
	m.Install(expired)
	time.Sleep(5 * time.Millisecond)

	stats := m.Stats()
	if stats.TotalSessions != 2 {
		t.Fatalf("expected 2 total sessions, got %d", stats.TotalSessions)
	}
	if stats.ActiveSessions != 1 || stats.ExpiredSessions != 1 {
		t.Fatalf("expected 1 active and 1 expired, got active=%d expired=%d", stats.ActiveSessions, stats.ExpiredSessions)
	}
}
