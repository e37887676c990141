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

// Package pake implements the pairing PAKE service (C7): a SPAKE2+-style
// exchange over P-256 used to bootstrap trust between two devices from
// a short numeric code, plus the bounded-memory rate limiter guarding it
// against brute-force guessing.
package pake

import (
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// curve is the group SPAKE2+ operates over for this suite (spec §4.7).
func curve() elliptic.Curve { return elliptic.P256() }

// mHex and nHex are the RFC 9382 SEC1-compressed non-generator points M
// and N for the P-256 group.
const (
	mHex = "02886e2f97ace46e55ba9dd7242579f2993b64e16ef3dcab95afd497333d8fa12f"
	nHex = "03d8bbd6c639c62937b04d997f38c3770719c629d7014d49a24b4f98baa1292b49"
)

var pointM, pointN = mustDecodePoint(mHex), mustDecodePoint(nHex)

type point struct{ x, y *big.Int }

func mustDecodePoint(hexStr string) point {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		panic(fmt.Sprintf("pake: invalid fixed point constant: %v", err))
	}
	x, y := elliptic.UnmarshalCompressed(curve(), raw)
	if x == nil {
		panic("pake: failed to unmarshal fixed point constant")
	}
	return point{x: x, y: y}
}

// pbkdf2Iterations and saltPrefix implement spec §4.7's password
// stretching: "PBKDF2-HMAC-SHA-256 (100 000 iterations) over salt
// `SkyBridge-SPAKE2+-v1` || sort(localId, peerId).join(`|`)".
const (
	pbkdf2Iterations = 100000
	pbkdf2KeyLen     = 32
	saltPrefix       = "SkyBridge-SPAKE2+-v1"
)

// StretchPassword derives the password scalar w from a six-digit pairing
// code and the two participants' device ids. The salt is order-independent
// across the two parties (sorted join) so both sides compute the same w.
func StretchPassword(code, idA, idB string) *big.Int {
	salt := []byte(saltPrefix + sortedJoin(idA, idB))
	stretched := pbkdf2.Key([]byte(code), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	w := new(big.Int).SetBytes(stretched)
	n := curve().Params().N
	w.Mod(w, n)
	if w.Sign() == 0 {
		// A zero scalar would make w*M the point at infinity; fold it to 1
		// rather than ever using a degenerate password scalar.
		w.SetInt64(1)
	}
	return w
}

func sortedJoin(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// addPoints returns p1 + p2 on the curve.
func addPoints(c elliptic.Curve, p1, p2 point) point {
	x, y := c.Add(p1.x, p1.y, p2.x, p2.y)
	return point{x, y}
}

// scalarMultPoint returns k*p on the curve.
func scalarMultPoint(c elliptic.Curve, p point, k *big.Int) point {
	x, y := c.ScalarMult(p.x, p.y, k.Bytes())
	return point{x, y}
}

// negatePoint returns -p (same X, Y negated mod the field prime).
func negatePoint(c elliptic.Curve, p point) point {
	neg := new(big.Int).Sub(c.Params().P, p.y)
	neg.Mod(neg, c.Params().P)
	return point{x: p.x, y: neg}
}

// marshalPoint encodes p in SEC1-uncompressed form.
func marshalPoint(c elliptic.Curve, p point) []byte {
	return elliptic.Marshal(c, p.x, p.y)
}

// unmarshalPoint decodes a SEC1-uncompressed point, rejecting the point
// at infinity and points not on the curve.
func unmarshalPoint(c elliptic.Curve, data []byte) (point, error) {
	x, y := elliptic.Unmarshal(c, data)
	if x == nil {
		return point{}, fmt.Errorf("pake: invalid curve point")
	}
	return point{x, y}, nil
}
