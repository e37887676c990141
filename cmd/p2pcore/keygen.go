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
	"fmt"
	"os"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/crypto/rotation"
	_ "github.com/skybridge-core/p2pcore/internal/cryptoinit"
	"github.com/spf13/cobra"
)

var (
	keygenType   string
	keygenFormat string
	keygenOutput string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new key pair",
	Long: `Generate a new cryptographic key pair for use as a handshake identity
or KEM key.

Supported key types:
  - ed25519, x25519, p256: classic tier
  - ml-kem-768, ml-dsa-65, x-wing: PQC tier

Supported output formats:
  - jwk: JSON Web Key format
  - pem: PEM format (classic key types only)`,
	Example: `  # Generate an Ed25519 identity key as JWK
  p2pcore keygen --type ed25519 --format jwk

  # Generate an X-Wing KEM key and save to file
  p2pcore keygen --type x-wing --format jwk --output peer-kem.jwk`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVarP(&keygenType, "type", "t", "ed25519", "Key type (ed25519, x25519, p256, ml-kem-768, ml-dsa-65, x-wing)")
	keygenCmd.Flags().StringVarP(&keygenFormat, "format", "f", "jwk", "Output format (jwk, pem)")
	keygenCmd.Flags().StringVarP(&keygenOutput, "output", "o", "", "Output file (default: stdout)")
}

func keyTypeFromFlag(s string) (sagecrypto.KeyType, error) {
	switch s {
	case "ed25519":
		return sagecrypto.KeyTypeEd25519, nil
	case "x25519":
		return sagecrypto.KeyTypeX25519, nil
	case "p256":
		return sagecrypto.KeyTypeP256, nil
	case "ml-kem-768":
		return sagecrypto.KeyTypeMLKEM768, nil
	case "ml-dsa-65":
		return sagecrypto.KeyTypeMLDSA65, nil
	case "x-wing":
		return sagecrypto.KeyTypeXWing, nil
	default:
		return "", fmt.Errorf("unknown key type: %s", s)
	}
}

func runKeygen(cmd *cobra.Command, args []string) error {
	keyType, err := keyTypeFromFlag(keygenType)
	if err != nil {
		return err
	}

	var format sagecrypto.KeyFormat
	switch keygenFormat {
	case "jwk":
		format = sagecrypto.KeyFormatJWK
	case "pem":
		format = sagecrypto.KeyFormatPEM
	default:
		return fmt.Errorf("unknown output format: %s", keygenFormat)
	}

	mgr := sagecrypto.NewManager()
	keyPair, err := mgr.GenerateKeyPair(keyType)
	if err != nil {
		return fmt.Errorf("generating %s key pair: %w", keyType, err)
	}

	data, err := mgr.ExportKeyPair(keyPair, format)
	if err != nil {
		return fmt.Errorf("exporting key pair: %w", err)
	}

	if keygenOutput == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(keygenOutput, data, 0600)
}

var keygenRotateIdentity string

var keygenRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Replace the local identity key with a freshly generated one of the same type",
	Long: `rotate loads the local identity key, generates a new key pair of
the same type, writes it back over the identity file, and records the
rotation in an in-process history (one rotation per invocation, since
the CLI does not stay resident between runs).`,
	RunE: runKeygenRotate,
}

func init() {
	keygenCmd.AddCommand(keygenRotateCmd)
	keygenRotateCmd.Flags().StringVar(&keygenRotateIdentity, "identity", defaultIdentityPath(), "local identity key file (JWK) to rotate")
}

func runKeygenRotate(cmd *cobra.Command, args []string) error {
	mgr := sagecrypto.NewManager()

	data, err := os.ReadFile(keygenRotateIdentity)
	if err != nil {
		return fmt.Errorf("reading identity key: %w", err)
	}
	oldKeyPair, err := mgr.ImportKeyPair(data, sagecrypto.KeyFormatJWK)
	if err != nil {
		return fmt.Errorf("parsing identity key: %w", err)
	}

	const identityKeyID = "local-identity"
	storage := sagecrypto.NewMemoryKeyStorage()
	if err := storage.Store(identityKeyID, oldKeyPair); err != nil {
		return fmt.Errorf("staging identity key for rotation: %w", err)
	}

	rotator := rotation.NewKeyRotator(storage)
	newKeyPair, err := rotator.Rotate(identityKeyID)
	if err != nil {
		return fmt.Errorf("rotating identity key: %w", err)
	}

	newData, err := mgr.ExportKeyPair(newKeyPair, sagecrypto.KeyFormatJWK)
	if err != nil {
		return fmt.Errorf("exporting rotated identity key: %w", err)
	}
	if err := os.WriteFile(keygenRotateIdentity, newData, 0600); err != nil {
		return fmt.Errorf("writing rotated identity key: %w", err)
	}

	history, err := rotator.GetRotationHistory(identityKeyID)
	if err != nil {
		return err
	}
	fmt.Printf("rotated identity key: %s -> %s\n", oldKeyPair.ID(), newKeyPair.ID())
	for _, event := range history {
		fmt.Printf("  %s: %s -> %s (%s)\n", event.Timestamp.Format("2006-01-02T15:04:05Z07:00"), event.OldKeyID, event.NewKeyID, event.Reason)
	}
	return nil
}
