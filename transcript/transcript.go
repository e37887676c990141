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

// Package transcript builds the domain-separated transcript hash the
// handshake driver signs and MACs over. It accumulates TLV-tagged
// entries in append order and hashes them alongside the negotiated
// suite, role, and policy, so any mismatch between what was negotiated
// and what was signed invalidates the resulting hash.
package transcript

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

const domainSeparator = "SkyBridge-P2P-Transcript-v1"

// Role enters the transcript as a plain string to prevent a
// reflection attack (an attacker replaying the peer's own message back
// at it): initiator and responder hash to different transcripts even
// over identical message bytes.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// EntryTag identifies which handshake artifact a TLV entry carries.
// Only tags in this set are transcript-eligible; Builder.Append rejects
// any other tag with ErrEntryNotAllowed.
type EntryTag uint8

const (
	TagHandshakeA EntryTag = iota + 1
	TagHandshakeB
	TagHandshakeFinished
	TagPAKEA
	TagPAKEB
	TagPAKEConfirm
	TagCapabilities
	TagNegotiatedProfile
	TagVideoCodecConfig
)

var allowedTags = map[EntryTag]bool{
	TagHandshakeA:        true,
	TagHandshakeB:        true,
	TagHandshakeFinished: true,
	TagPAKEA:             true,
	TagPAKEB:             true,
	TagPAKEConfirm:       true,
	TagCapabilities:      true,
	TagNegotiatedProfile: true,
	TagVideoCodecConfig:  true,
}

// ErrEntryNotAllowed is returned by Append for any tag outside the
// transcript-eligible set (spec §4.5: "messageTypeNotAllowed").
var ErrEntryNotAllowed = errors.New("transcript: message type not allowed to enter transcript")

// Policy is the deterministic subset of handshake policy that enters
// the transcript: requirePQC, allowClassicFallback, minimumTier, and
// the Secure-Enclave proof-of-possession requirement.
type Policy struct {
	RequirePQC           bool
	AllowClassicFallback bool
	MinimumTier          string
	RequireSEPoP         bool
}

// det renders Policy into a fixed, order-stable byte encoding so two
// builders constructed from equal Policy values always hash the same
// bytes regardless of field assignment order in Go source.
func (p Policy) det() []byte {
	out := make([]byte, 0, 4+len(p.MinimumTier))
	out = append(out, boolByte(p.RequirePQC), boolByte(p.AllowClassicFallback), boolByte(p.RequireSEPoP))
	tier := []byte(p.MinimumTier)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(tier)))
	out = append(out, lenBuf[:]...)
	out = append(out, tier...)
	return out
}

func boolByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}

// Builder accumulates the ordered inputs to the transcript hash. It is
// not safe for concurrent use; the handshake driver that owns a
// Builder is itself a single serial context (spec §5), so no
// additional locking is added here.
type Builder struct {
	protocolVersion uint32
	role            Role

	suiteWireID   *uint16
	localCaps     []byte
	peerCaps      []byte
	policy        *Policy

	entries []byte
}

// NewBuilder starts a transcript for one handshake attempt, bound to a
// protocol version and a role.
func NewBuilder(protocolVersion uint32, role Role) *Builder {
	return &Builder{protocolVersion: protocolVersion, role: role}
}

// SetSuite records the negotiated suite wire ID. Until called, the
// suite field is omitted from the hash entirely (not zero-filled),
// matching spec §4.5's "— when set" entries.
func (b *Builder) SetSuite(wireID uint16) {
	b.suiteWireID = &wireID
}

// SetLocalCapabilities records this side's deterministic capability
// encoding.
func (b *Builder) SetLocalCapabilities(det []byte) {
	b.localCaps = det
}

// SetPeerCapabilities records the peer's deterministic capability
// encoding.
func (b *Builder) SetPeerCapabilities(det []byte) {
	b.peerCaps = det
}

// SetPolicy records the deterministic policy subset.
func (b *Builder) SetPolicy(p Policy) {
	b.policy = &p
}

// Append adds a TLV entry to the transcript: len32LE(1+len(value)) ||
// tag || value. Only transcript-eligible tags are accepted.
func (b *Builder) Append(tag EntryTag, value []byte) error {
	if !allowedTags[tag] {
		return fmt.Errorf("%w: tag %d", ErrEntryNotAllowed, tag)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(1+len(value)))
	b.entries = append(b.entries, lenBuf[:]...)
	b.entries = append(b.entries, byte(tag))
	b.entries = append(b.entries, value...)
	return nil
}

// Hash computes the current transcript hash over everything appended
// so far. It may be called repeatedly as the handshake progresses
// (e.g. once after MessageA, again after MessageB) — each call re-hashes
// the full accumulated state, it does not mutate it.
func (b *Builder) Hash() [32]byte {
	h := sha256.New()
	h.Write([]byte(domainSeparator))

	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], b.protocolVersion)
	h.Write(verBuf[:])

	h.Write([]byte(b.role))

	if b.suiteWireID != nil {
		var suiteBuf [2]byte
		binary.LittleEndian.PutUint16(suiteBuf[:], *b.suiteWireID)
		h.Write(suiteBuf[:])
	}
	if b.localCaps != nil {
		h.Write(b.localCaps)
	}
	if b.peerCaps != nil {
		h.Write(b.peerCaps)
	}
	if b.policy != nil {
		h.Write(b.policy.det())
	}
	h.Write(b.entries)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
