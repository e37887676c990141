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

// Package suite is the registry mapping handshake suite wire IDs to their
// (KEM, signature) algorithm pair and the authoritative byte lengths each
// side's provider implementation must enforce. Suites are immutable
// compile-time constants; unknown wire IDs are not a parse error — they
// are carried as Unknown so legacy code can still display a negotiated
// suite it does not itself support.
package suite

import "fmt"

// WireID identifies an algorithm suite on the wire. The high byte
// partitions suites into tier families: 0x00 hybrid-PQC, 0x01 pure-PQC,
// 0x10 classic, 0xF0 experimental.
type WireID uint16

const (
	XWingMLDSA65    WireID = 0x0001 // hybrid-PQC: X25519‖ML-KEM-768 + ML-DSA-65
	MLKEM768MLDSA65 WireID = 0x0101 // pure-PQC: ML-KEM-768 + ML-DSA-65
	X25519Ed25519   WireID = 0x1001 // classic: X25519 + Ed25519
	P256ECDSA       WireID = 0x1002 // classic: P-256 ECDH + P-256 ECDSA
)

// KEMAlgorithm names the key-encapsulation (or ECDH-as-KEM) primitive a
// suite uses.
type KEMAlgorithm string

const (
	KEMXWing    KEMAlgorithm = "X-Wing"
	KEMMLKEM768 KEMAlgorithm = "ML-KEM-768"
	KEMX25519   KEMAlgorithm = "X25519"
	KEMP256ECDH KEMAlgorithm = "P-256-ECDH"
)

// SigAlgorithm names the signature primitive a suite uses.
type SigAlgorithm string

const (
	SigMLDSA65   SigAlgorithm = "ML-DSA-65"
	SigEd25519   SigAlgorithm = "Ed25519"
	SigP256ECDSA SigAlgorithm = "P-256-ECDSA"
)

// Info is the authoritative per-suite algorithm and length table from
// spec §4.2. All lengths are byte counts. ResponderShareLen is 0 for the
// two PQC suites: the initiator's A→B key share is a KEM ciphertext that
// the responder decapsulates, and no KEM data travels B→A (see the Open
// Question this choice resolves, recorded in DESIGN.md).
type Info struct {
	WireID            WireID
	Name              string
	KEM               KEMAlgorithm
	Sig               SigAlgorithm
	KEMPubLen         int
	KEMPrivLen        int
	SigPubLen         int
	SigPrivLen        int
	KeyShareABLen     int
	ResponderShareLen int
}

// registry is the immutable wire-ID-to-Info table. Never mutated after
// init; callers must treat returned *Info values as read-only.
var registry = map[WireID]Info{
	XWingMLDSA65: {
		WireID: XWingMLDSA65, Name: "X-Wing+ML-DSA-65",
		KEM: KEMXWing, Sig: SigMLDSA65,
		KEMPubLen: 1216, KEMPrivLen: 2432,
		SigPubLen: 1952, SigPrivLen: 4032,
		KeyShareABLen: 1120, ResponderShareLen: 0,
	},
	MLKEM768MLDSA65: {
		WireID: MLKEM768MLDSA65, Name: "ML-KEM-768+ML-DSA-65",
		KEM: KEMMLKEM768, Sig: SigMLDSA65,
		KEMPubLen: 1184, KEMPrivLen: 96,
		SigPubLen: 1952, SigPrivLen: 64,
		KeyShareABLen: 1088, ResponderShareLen: 0,
	},
	X25519Ed25519: {
		WireID: X25519Ed25519, Name: "X25519+Ed25519",
		KEM: KEMX25519, Sig: SigEd25519,
		KEMPubLen: 32, KEMPrivLen: 32,
		SigPubLen: 32, SigPrivLen: 64,
		KeyShareABLen: 32, ResponderShareLen: 32,
	},
	P256ECDSA: {
		WireID: P256ECDSA, Name: "P-256+ECDSA",
		KEM: KEMP256ECDH, Sig: SigP256ECDSA,
		KEMPubLen: 65, KEMPrivLen: 32,
		SigPubLen: 65, SigPrivLen: 32,
		KeyShareABLen: 65, ResponderShareLen: 65,
	},
}

// KnownSuites lists every registered wire ID, in ascending order. Useful
// for building a default MessageA.supportedSuites offer list.
func KnownSuites() []WireID {
	return []WireID{XWingMLDSA65, MLKEM768MLDSA65, X25519Ed25519, P256ECDSA}
}

// Lookup returns the registered Info for id and true, or the zero value
// and false if id is not a known suite. A caller encountering false MUST
// still be able to carry the raw id forward via Unknown — this is not a
// parse error.
func Lookup(id WireID) (Info, bool) {
	info, ok := registry[id]
	return info, ok
}

// Unknown wraps an unrecognized wire ID for forward-compatible display
// and negotiation rejection without treating the ID itself as malformed.
type Unknown struct {
	ID WireID
}

func (u Unknown) String() string {
	return fmt.Sprintf("unknown(0x%04x)", uint16(u.ID))
}

// Tier classifies the wire-ID partition a suite belongs to.
type Tier int

const (
	TierUnknown Tier = iota
	TierHybridPQC
	TierPurePQC
	TierClassic
	TierExperimental
)

// String renders the tier name.
func (t Tier) String() string {
	switch t {
	case TierHybridPQC:
		return "hybridPQC"
	case TierPurePQC:
		return "purePQC"
	case TierClassic:
		return "classic"
	case TierExperimental:
		return "experimental"
	default:
		return "unknown"
	}
}

// ClassifyTier returns the tier family implied by id's high byte,
// regardless of whether id is a registered suite.
func ClassifyTier(id WireID) Tier {
	switch uint16(id) >> 8 {
	case 0x00:
		return TierHybridPQC
	case 0x01:
		return TierPurePQC
	case 0x10:
		return TierClassic
	case 0xF0:
		return TierExperimental
	default:
		return TierUnknown
	}
}

// IsPQCGroup reports whether id belongs to the hybrid-PQC (0x00xx) or
// pure-PQC (0x01xx) wire-ID partitions. This is the function named
// isPQCGroup in spec §4.2 and is the basis of the downgrade-resistance
// invariant (spec §8 invariant 3): any Established session reached under
// a requirePQC policy must have IsPQCGroup(selectedSuite) == true.
func IsPQCGroup(id WireID) bool {
	tier := ClassifyTier(id)
	return tier == TierHybridPQC || tier == TierPurePQC
}

// ValidateKeyShareLen checks a received key-share length (A→B direction)
// against the suite table, per spec §8 invariant 9.
func ValidateKeyShareLen(id WireID, gotLen int) error {
	info, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("suite: unknown wire id 0x%04x", uint16(id))
	}
	if gotLen != info.KeyShareABLen {
		return fmt.Errorf("suite: key share length %d does not match suite %s (want %d)",
			gotLen, info.Name, info.KeyShareABLen)
	}
	return nil
}

// ValidateResponderShareLen checks a received responder-share length
// (B→A direction) against the suite table, per spec §8 invariant 9.
func ValidateResponderShareLen(id WireID, gotLen int) error {
	info, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("suite: unknown wire id 0x%04x", uint16(id))
	}
	if gotLen != info.ResponderShareLen {
		return fmt.Errorf("suite: responder share length %d does not match suite %s (want %d)",
			gotLen, info.Name, info.ResponderShareLen)
	}
	return nil
}

// ValidateKEMPubLen checks a recipient KEM public key length against the
// suite table, used by the crypto provider's kemEncapsulate input check.
func ValidateKEMPubLen(id WireID, gotLen int) error {
	info, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("suite: unknown wire id 0x%04x", uint16(id))
	}
	if gotLen != info.KEMPubLen {
		return fmt.Errorf("suite: KEM public key length %d does not match suite %s (want %d)",
			gotLen, info.Name, info.KEMPubLen)
	}
	return nil
}

// ValidateSigPubLen checks a signature public key length against the
// suite table.
func ValidateSigPubLen(id WireID, gotLen int) error {
	info, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("suite: unknown wire id 0x%04x", uint16(id))
	}
	if gotLen != info.SigPubLen {
		return fmt.Errorf("suite: signature public key length %d does not match suite %s (want %d)",
			gotLen, info.Name, info.SigPubLen)
	}
	return nil
}

// PreferPQCOrder returns the suite list in the order a preferPQC policy
// prefers to offer/select: hybrid-PQC, then pure-PQC, then classic.
func PreferPQCOrder() []WireID {
	return []WireID{XWingMLDSA65, MLKEM768MLDSA65, X25519Ed25519, P256ECDSA}
}

// SelectSuite picks the highest-priority mutually-supported suite from
// offered (initiator's priority-ordered list) that also appears in
// accepted (responder's supported set), honoring requirePQC by excluding
// non-PQC-group candidates when set. Returns ok=false if no suite
// satisfies the policy.
func SelectSuite(offered []WireID, accepted map[WireID]bool, requirePQC bool) (WireID, bool) {
	for _, id := range offered {
		if !accepted[id] {
			continue
		}
		if requirePQC && !IsPQCGroup(id) {
			continue
		}
		return id, true
	}
	return 0, false
}
