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

package main

import (
	"crypto/ecdh"
	"encoding/json"
	"fmt"

	"github.com/skybridge-core/p2pcore/core/handshake"
	"github.com/skybridge-core/p2pcore/crypto/keys"
	"github.com/skybridge-core/p2pcore/pake"
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/trust"
	"github.com/spf13/cobra"
)

var (
	pairInitiatorID string
	pairResponderID string
	pairCode        string
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Run a local two-party PAKE pairing demo",
	Long: `pair runs both sides of a SPAKE2+-style pairing exchange
in-process from a shared numeric code, the same way two devices would
bootstrap trust over a discovery-layer transport, and prints the
resulting session key once both confirmations verify.`,
	RunE: runPair,
}

func init() {
	rootCmd.AddCommand(pairCmd)
	pairCmd.Flags().StringVar(&pairInitiatorID, "initiator-id", "device-a", "initiator deviceId")
	pairCmd.Flags().StringVar(&pairResponderID, "responder-id", "device-b", "responder deviceId")
	pairCmd.Flags().StringVar(&pairCode, "code", "123456", "shared pairing code")

	pairCmd.AddCommand(pairIdentityExchangeCmd)
	pairIdentityExchangeCmd.Flags().StringVar(&pairXDeviceID, "device-id", "device-a", "sender deviceId carried in the exchange")
	pairIdentityExchangeCmd.Flags().StringVar(&pairXDeviceName, "device-name", "", "optional user-facing device label")
}

func runPair(cmd *cobra.Command, args []string) error {
	initSess, msgA, err := pake.NewInitiatorSession(pairInitiatorID, pairResponderID, pairCode, []byte("cli-initiator"))
	if err != nil {
		return fmt.Errorf("building messageA: %w", err)
	}

	respSess, msgB, err := pake.NewResponderSession(pairResponderID, pairCode, []byte("cli-negotiated"), msgA)
	if err != nil {
		return fmt.Errorf("processing messageA: %w", err)
	}

	initKeys, confirm, err := initSess.ProcessMessageB(msgB)
	if err != nil {
		return fmt.Errorf("processing messageB: %w", err)
	}

	if err := respSess.VerifyFinalConfirmation(confirm); err != nil {
		return fmt.Errorf("responder rejected initiator confirmation: %w", err)
	}

	fmt.Printf("pairing succeeded between %s and %s\n", pairInitiatorID, pairResponderID)
	fmt.Printf("session key:  %x\n", initKeys.SessionKey)
	fmt.Printf("keys match:   %v\n", string(initKeys.SessionKey) == string(respSess.Keys().SessionKey))
	return nil
}

var (
	pairXDeviceID   string
	pairXDeviceName string
)

var pairIdentityExchangeCmd = &cobra.Command{
	Use:   "identity-exchange",
	Short: "Run a local pairingIdentityExchange demo, sealed the way bootstrap-assisted recovery seals it",
	Long: `identity-exchange builds a pairingIdentityExchange payload (the
control message a bootstrap-assisted session permits while its rekey
gate is shut), seals it to a freshly generated recipient X25519 key
using the same HPKESealedBox construction core/handshake uses for
handshake payloads, then opens it back on the "recipient" side and
prints the decoded deviceId/KEM keys/metadata — exercising the whole
encode/seal/open/decode round trip in one process.`,
	RunE: runPairIdentityExchange,
}

func runPairIdentityExchange(cmd *cobra.Command, args []string) error {
	recipientKP, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return fmt.Errorf("generating recipient key: %w", err)
	}
	recipientPub, ok := recipientKP.PublicKey().(*ecdh.PublicKey)
	if !ok {
		return fmt.Errorf("pair: recipient key is not an X25519 public key")
	}
	recipientPriv, ok := recipientKP.PrivateKey().(*ecdh.PrivateKey)
	if !ok {
		return fmt.Errorf("pair: recipient key is not an X25519 private key")
	}

	kemKP, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return fmt.Errorf("generating sender KEM key: %w", err)
	}

	exchange := &trust.PairingIdentityExchange{
		DeviceID:   pairXDeviceID,
		DeviceName: pairXDeviceName,
		KEMPublicKeys: []trust.KEMPublicKeyInfo{
			{SuiteWireID: suite.X25519Ed25519, PublicKey: kemKP.PublicKey().(*ecdh.PublicKey).Bytes()},
		},
	}
	payload, err := exchange.MarshalDeterministic()
	if err != nil {
		return fmt.Errorf("encoding pairingIdentityExchange: %w", err)
	}

	sealed, err := handshake.SealToX25519Recipient(recipientPub, suite.X25519Ed25519, []byte("pairingIdentityExchange"), payload, handshake.ContextApplication)
	if err != nil {
		return fmt.Errorf("sealing pairingIdentityExchange: %w", err)
	}
	wireBytes := sealed.EncodeWithHeader()
	fmt.Printf("sealed pairingIdentityExchange: %d bytes\n", len(wireBytes))

	opened, err := handshake.OpenFromX25519Sender(sealed, recipientPriv, []byte("pairingIdentityExchange"))
	if err != nil {
		return fmt.Errorf("opening pairingIdentityExchange: %w", err)
	}
	decoded, err := trust.UnmarshalPairingIdentityExchange(opened)
	if err != nil {
		return fmt.Errorf("decoding pairingIdentityExchange: %w", err)
	}

	out, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
