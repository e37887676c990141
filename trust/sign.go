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

package trust

import (
	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
)

// Sign computes and stores r.Signature, signing r's deterministic
// encoding with the local identity key (spec §4.8: "each record is
// signed with the local identity key").
func Sign(provider sagecrypto.Provider, handle sagecrypto.SigningKeyHandle, r *Record) error {
	sig, err := provider.Sign(r.SigningPreimage(), handle)
	if err != nil {
		return err
	}
	r.Signature = sig
	return nil
}

// Verify checks r.Signature against localIdentityPub, the local identity
// public key the record was signed under (this device's own key — trust
// records are self-signed by the device that maintains the store, not by
// the peer they describe).
func Verify(provider sagecrypto.Provider, localIdentityPub []byte, r *Record) error {
	return provider.Verify(r.SigningPreimage(), r.Signature, localIdentityPub)
}
