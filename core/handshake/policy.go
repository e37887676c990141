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
	"fmt"

	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/transcript"
	"github.com/skybridge-core/p2pcore/wire"
)

// HandshakePolicy is the deterministic policy MessageA.Policy carries
// and the transcript's policyDet is built from (spec §4.5/§4.6).
type HandshakePolicy struct {
	RequirePQC           bool
	AllowClassicFallback bool
	MinimumTier          suite.Tier
	RequireSEPoP         bool
}

// Encode produces the deterministic bytes carried on the wire as
// MessageA.Policy / MessageB's implied negotiated policy.
func (p HandshakePolicy) Encode() []byte {
	w := wire.NewWriter(8)
	w.PutBool(p.RequirePQC)
	w.PutBool(p.AllowClassicFallback)
	w.PutU8(uint8(p.MinimumTier))
	w.PutBool(p.RequireSEPoP)
	return w.Bytes()
}

// DecodePolicy parses bytes produced by Encode.
func DecodePolicy(data []byte) (HandshakePolicy, error) {
	r := wire.NewReader(data)
	var p HandshakePolicy
	var err error
	if p.RequirePQC, err = r.GetBool(); err != nil {
		return HandshakePolicy{}, fmt.Errorf("%w: policy.requirePQC: %v", ErrInvalidMessageFormat, err)
	}
	if p.AllowClassicFallback, err = r.GetBool(); err != nil {
		return HandshakePolicy{}, fmt.Errorf("%w: policy.allowClassicFallback: %v", ErrInvalidMessageFormat, err)
	}
	tier, err := r.GetU8()
	if err != nil {
		return HandshakePolicy{}, fmt.Errorf("%w: policy.minimumTier: %v", ErrInvalidMessageFormat, err)
	}
	p.MinimumTier = suite.Tier(tier)
	if p.RequireSEPoP, err = r.GetBool(); err != nil {
		return HandshakePolicy{}, fmt.Errorf("%w: policy.requireSEPoP: %v", ErrInvalidMessageFormat, err)
	}
	if err := r.Finish(); err != nil {
		return HandshakePolicy{}, fmt.Errorf("%w: %v", ErrInvalidMessageFormat, err)
	}
	return p, nil
}

// transcriptPolicy renders the HandshakePolicy into the transcript
// package's Policy shape.
func (p HandshakePolicy) transcriptPolicy() transcript.Policy {
	return transcript.Policy{
		RequirePQC:           p.RequirePQC,
		AllowClassicFallback: p.AllowClassicFallback,
		MinimumTier:          p.MinimumTier.String(),
		RequireSEPoP:         p.RequireSEPoP,
	}
}

// tierRank orders suite tiers by PQC strength for minimumTier
// enforcement: classic is weakest, hybrid-PQC strongest. Experimental
// and unknown tiers never satisfy a minimum and are rejected outright.
func tierRank(t suite.Tier) int {
	switch t {
	case suite.TierClassic:
		return 0
	case suite.TierPurePQC:
		return 1
	case suite.TierHybridPQC:
		return 2
	default:
		return -1
	}
}

// satisfiesMinimumTier reports whether candidate meets or exceeds min
// on the PQC-strength ranking.
func satisfiesMinimumTier(candidate, min suite.Tier) bool {
	cr, mr := tierRank(candidate), tierRank(min)
	if cr < 0 || mr < 0 {
		return false
	}
	return cr >= mr
}
