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

	"github.com/skybridge-core/p2pcore/wire"
)

// sigBPreimage builds sigB_input:
//
//	"SkyBridge-B" || transcriptHashAfterA || selectedSuiteWireId ||
//	responderShareLen || responderShare || serverNonce ||
//	SHA-256(encryptedPayloadWithHeader) || identityPubKey
func sigBPreimage(transcriptHashAfterA [32]byte, m *MessageB) []byte {
	w := wire.NewWriter(256)
	w.PutRaw([]byte("SkyBridge-B"))
	w.PutRaw(transcriptHashAfterA[:])
	w.PutU16(uint16(m.SelectedSuite))
	w.PutU16(uint16(len(m.ResponderShare)))
	w.PutRaw(m.ResponderShare)
	w.PutRaw(m.ServerNonce[:])
	sealedHash := sha256.Sum256(m.Encrypted.EncodeWithHeader())
	w.PutRaw(sealedHash[:])
	w.PutRaw(m.IdentityPubKey)
	return w.Bytes()
}

// seSigPreimage builds seSigA_input/seSigB_input, each a domain label
// over SHA-256 of the corresponding base signature's own preimage.
func seSigPreimage(domain string, baseSigInput []byte) []byte {
	h := sha256.Sum256(baseSigInput)
	w := wire.NewWriter(len(domain) + 32)
	w.PutRaw([]byte(domain))
	w.PutRaw(h[:])
	return w.Bytes()
}

func seSigAPreimage(sigAInput []byte) []byte {
	return seSigPreimage("SkyBridge-SE-A", sigAInput)
}

func seSigBPreimage(sigBInput []byte) []byte {
	return seSigPreimage("SkyBridge-SE-B", sigBInput)
}

// computeHandshakeID implements handshakeId = SHA-256(clientNonce ||
// serverNonce || selectedSuiteWireId), the replay-cache key (spec §4.6).
func computeHandshakeID(clientNonce, serverNonce [32]byte, selectedSuite uint16) [32]byte {
	w := wire.NewWriter(68)
	w.PutRaw(clientNonce[:])
	w.PutRaw(serverNonce[:])
	w.PutU16(selectedSuite)
	return sha256.Sum256(w.Bytes())
}

// finishedMACInput is transcriptHashAtFinished || directionByte, the
// preimage HMAC-SHA-256 is computed over for a Finished message.
func finishedMACInput(transcriptHash [32]byte, direction Direction) []byte {
	out := make([]byte, 0, 33)
	out = append(out, transcriptHash[:]...)
	out = append(out, byte(direction))
	return out
}
