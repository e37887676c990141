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
	"fmt"

	"github.com/skybridge-core/p2pcore/core/handshake"
	"github.com/skybridge-core/p2pcore/transport"
)

// frameConn is the subset of transport.Conn the handshake runners need,
// so tests can substitute an in-memory pipe.
type frameConn interface {
	Send([]byte) error
	Recv() ([]byte, error)
}

var _ frameConn = (*transport.Conn)(nil)

// RunInitiatorHandshake drives the full initiator side of one handshake
// attempt over conn: BuildMessageA, send it, receive MessageB, process
// it, send Finished, receive and verify the peer's Finished (spec §3's
// Idle → SentA → Verified → SentFinished → Established path).
func RunInitiatorHandshake(conn frameConn, cfg handshake.InitiatorConfig) (*handshake.SessionKeys, [32]byte, error) {
	init := handshake.NewInitiator(cfg)

	msgA, err := init.BuildMessageA()
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: build messageA: %w", err)
	}
	if err := conn.Send(msgA.Encode()); err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: send messageA: %w", err)
	}

	bBytes, err := conn.Recv()
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: recv messageB: %w", err)
	}
	msgB, err := handshake.DecodeMessageB(bBytes)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: decode messageB: %w", err)
	}
	if err := init.ProcessMessageB(msgB); err != nil {
		return nil, [32]byte{}, err
	}

	fin, err := init.BuildFinished()
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: build finished: %w", err)
	}
	if err := conn.Send(fin.Encode()); err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: send finished: %w", err)
	}

	peerFinBytes, err := conn.Recv()
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: recv peer finished: %w", err)
	}
	peerFin, err := handshake.DecodeFinished(peerFinBytes)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: decode peer finished: %w", err)
	}
	keys, err := init.ProcessPeerFinished(peerFin)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return keys, init.HandshakeID(), nil
}

// RunResponderHandshake drives the full responder side of one handshake
// attempt over conn.
func RunResponderHandshake(conn frameConn, cfg handshake.ResponderConfig) (*handshake.SessionKeys, [32]byte, error) {
	resp := handshake.NewResponder(cfg)

	aBytes, err := conn.Recv()
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: recv messageA: %w", err)
	}
	msgA, err := handshake.DecodeMessageA(aBytes)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: decode messageA: %w", err)
	}
	msgB, err := resp.ProcessMessageA(msgA)
	if err != nil {
		return nil, [32]byte{}, err
	}
	if err := conn.Send(msgB.Encode()); err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: send messageB: %w", err)
	}

	// BuildFinished must run before ProcessPeerFinished: both require
	// StateSentB, and ProcessPeerFinished advances the driver to
	// Established.
	fin, err := resp.BuildFinished()
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: build finished: %w", err)
	}
	if err := conn.Send(fin.Encode()); err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: send finished: %w", err)
	}

	peerFinBytes, err := conn.Recv()
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: recv peer finished: %w", err)
	}
	peerFin, err := handshake.DecodeFinished(peerFinBytes)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("session: decode peer finished: %w", err)
	}
	keys, err := resp.ProcessPeerFinished(peerFin)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return keys, resp.HandshakeID(), nil
}
