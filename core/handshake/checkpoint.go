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
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/transcript"
)

// checkpointInputs collects everything both the initiator and the
// responder can independently reconstruct once MessageA (and, for the
// "at Finished" checkpoint, MessageB) have been exchanged. Both sides
// MUST feed identical values here for sigB verification and the
// Finished MACs to agree — see the canonical-role note below.
type checkpointInputs struct {
	protocolVersion uint8
	selectedSuite   suite.WireID
	responderCaps   []byte // responder's own capabilities (sealed into encryptedPayload)
	initiatorCaps   []byte // initiator's capabilities (MessageA.Capabilities, plaintext)
	policyBytes     []byte // MessageA.Policy, carried verbatim
	msgABytes       []byte
	msgBBytes       []byte // nil for the afterA checkpoint
}

// canonicalRole is the fixed role label baked into every handshake
// transcript checkpoint. Per spec §4.5 the role string is a domain
// separator distinguishing a reflected message from a genuine one; it
// does not need to vary by which party is currently computing the hash
// for both parties to arrive at the same digest, and fixing it is what
// makes transcriptHashAfterA/AtFinished reproducible by both sides in
// the first place (see DESIGN.md's resolution of this Open Question).
const canonicalRole = transcript.RoleResponder

// afterAHash computes transcriptHashAfterA: the checkpoint sigB is
// computed and verified against. Built once suite selection, both
// sides' capabilities, and the negotiated policy are all known.
func afterAHash(in checkpointInputs) [32]byte {
	b := transcript.NewBuilder(uint32(in.protocolVersion), canonicalRole)
	b.SetSuite(uint16(in.selectedSuite))
	b.SetLocalCapabilities(in.responderCaps)
	b.SetPeerCapabilities(in.initiatorCaps)
	b.SetPolicy(decodedPolicyOrZero(in.policyBytes).transcriptPolicy())
	_ = b.Append(transcript.TagHandshakeA, in.msgABytes)
	return b.Hash()
}

// atFinishedHash computes transcriptHashAtFinished: the checkpoint both
// Finished MACs are computed and verified against.
func atFinishedHash(in checkpointInputs) [32]byte {
	b := transcript.NewBuilder(uint32(in.protocolVersion), canonicalRole)
	b.SetSuite(uint16(in.selectedSuite))
	b.SetLocalCapabilities(in.responderCaps)
	b.SetPeerCapabilities(in.initiatorCaps)
	b.SetPolicy(decodedPolicyOrZero(in.policyBytes).transcriptPolicy())
	_ = b.Append(transcript.TagHandshakeA, in.msgABytes)
	_ = b.Append(transcript.TagHandshakeB, in.msgBBytes)
	return b.Hash()
}

// decodedPolicyOrZero tolerates an already-validated policy blob; both
// call sites only ever reach here after DecodePolicy succeeded once
// during message processing, so a decode failure here would indicate an
// internal inconsistency rather than a wire error.
func decodedPolicyOrZero(b []byte) HandshakePolicy {
	p, err := DecodePolicy(b)
	if err != nil {
		return HandshakePolicy{}
	}
	return p
}
