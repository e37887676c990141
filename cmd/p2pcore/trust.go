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
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/crypto/provider/classicprov"
	_ "github.com/skybridge-core/p2pcore/internal/cryptoinit"
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/skybridge-core/p2pcore/trust"
	"github.com/skybridge-core/p2pcore/trust/pgstore"
	"github.com/spf13/cobra"
)

var (
	trustStoreFile   string
	trustIdentity    string
	trustBackendKind string
	trustDSN         string
)

// trustBackend wraps whichever trust.Store the --trust-backend flag
// selects (memory, the JSON-file-backed default, or postgres) behind the
// same save/close lifecycle the CLI subcommands drive.
type trustBackend struct {
	store trust.Store
	save  func() error
	close func() error
}

func openTrustBackend() (*trustBackend, error) {
	switch trustBackendKind {
	case "", "memory":
		ms, err := loadStore(trustStoreFile)
		if err != nil {
			return nil, err
		}
		return &trustBackend{
			store: ms,
			save:  func() error { return saveStore(ms, trustStoreFile) },
			close: func() error { return nil },
		}, nil

	case "postgres":
		if trustDSN == "" {
			return nil, fmt.Errorf("trust: --trust-dsn is required when --trust-backend=postgres")
		}
		ps, err := pgstore.New(context.Background(), trustDSN, trustIdentity)
		if err != nil {
			return nil, err
		}
		return &trustBackend{
			store: ps,
			save:  func() error { return nil }, // pgstore writes are already durable per-call
			close: ps.Close,
		}, nil
	}
	return nil, fmt.Errorf("trust: unknown backend %q (want memory or postgres)", trustBackendKind)
}

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage the local trust store",
	Long: `trust manages a JSON-file-backed local trust store: adding peer
records signed by this device's own identity key, listing known peers,
and revoking a peer by writing a tombstone record.

The store is kept on disk between invocations since the CLI process
does not stay resident; each subcommand loads the store, applies one
change, and writes it back.`,
}

func init() {
	rootCmd.AddCommand(trustCmd)
	trustCmd.PersistentFlags().StringVar(&trustStoreFile, "store", defaultTrustStorePath(), "trust store JSON file (memory backend only)")
	trustCmd.PersistentFlags().StringVar(&trustIdentity, "identity", defaultIdentityPath(), "local identity key file (JWK, created on first use)")
	trustCmd.PersistentFlags().StringVar(&trustBackendKind, "trust-backend", "memory", "trust store backend: memory or postgres")
	trustCmd.PersistentFlags().StringVar(&trustDSN, "trust-dsn", "", "Postgres connection string (required when --trust-backend=postgres)")

	trustCmd.AddCommand(trustAddCmd)
	trustCmd.AddCommand(trustListCmd)
	trustCmd.AddCommand(trustRevokeCmd)

	trustAddCmd.Flags().StringVar(&trustAddAlias, "alias", "", "additional identifier to bind to this deviceId")
	trustAddCmd.Flags().StringVar(&trustAddPubKeyFile, "pubkey-file", "", "peer's Ed25519 public key, JWK format (required)")
	trustAddCmd.Flags().StringVar(&trustAddDeviceName, "device-name", "", "user-facing device label, as surfaced by pairingIdentityExchange")
	trustAddCmd.MarkFlagRequired("pubkey-file")
}

func defaultTrustStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".p2pcore/trust.json"
	}
	return filepath.Join(home, ".p2pcore", "trust.json")
}

func defaultIdentityPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".p2pcore/identity.jwk"
	}
	return filepath.Join(home, ".p2pcore", "identity.jwk")
}

// loadOrCreateIdentity returns this device's own signing identity,
// generating and persisting a new Ed25519 key pair on first use.
func loadOrCreateIdentity(path string) (sagecrypto.KeyPair, error) {
	mgr := sagecrypto.NewManager()

	if data, err := os.ReadFile(path); err == nil {
		return mgr.ImportKeyPair(data, sagecrypto.KeyFormatJWK)
	}

	kp, err := mgr.GenerateKeyPair(sagecrypto.KeyTypeEd25519)
	if err != nil {
		return nil, fmt.Errorf("generating identity key: %w", err)
	}
	data, err := mgr.ExportKeyPair(kp, sagecrypto.KeyFormatJWK)
	if err != nil {
		return nil, fmt.Errorf("exporting identity key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("writing identity key: %w", err)
	}
	return kp, nil
}

// identityKeyBytes extracts the raw Ed25519 key material loadOrCreateIdentity
// hands back behind the KeyPair interface.
func identityKeyBytes(kp sagecrypto.KeyPair) (priv ed25519.PrivateKey, pub ed25519.PublicKey, err error) {
	priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("trust: identity key is not Ed25519")
	}
	pub, err = publicKeyBytes(kp)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// publicKeyBytes extracts the raw Ed25519 public key, for key pairs
// imported verify-only (a peer's public key file never carries a
// private key).
func publicKeyBytes(kp sagecrypto.KeyPair) (ed25519.PublicKey, error) {
	pub, ok := kp.PublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("trust: key is not Ed25519")
	}
	return pub, nil
}

// loadStore reads the JSON-serialized record list from path into a fresh
// MemStore, merging each one (a missing file is an empty store).
func loadStore(path string) (*trust.MemStore, error) {
	store := trust.NewMemStore()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading trust store: %w", err)
	}

	var records []*trust.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing trust store: %w", err)
	}
	for _, r := range records {
		store.Merge(r)
	}
	return store, nil
}

// saveStore serializes every record in the store back to path.
func saveStore(store *trust.MemStore, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating trust store directory: %w", err)
	}
	data, err := json.MarshalIndent(store.All(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding trust store: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

var (
	trustAddAlias      string
	trustAddPubKeyFile string
	trustAddDeviceName string
)

var trustAddCmd = &cobra.Command{
	Use:   "add <deviceId>",
	Short: "Add or refresh a peer's trust record, signed with the local identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrustAdd,
}

func runTrustAdd(cmd *cobra.Command, args []string) error {
	deviceID := args[0]

	pubData, err := os.ReadFile(trustAddPubKeyFile)
	if err != nil {
		return fmt.Errorf("reading peer public key: %w", err)
	}
	mgr := sagecrypto.NewManager()
	peerPub, err := mgr.ImportKeyPair(pubData, sagecrypto.KeyFormatJWK)
	if err != nil {
		return fmt.Errorf("parsing peer public key: %w", err)
	}
	peerPubBytes, err := publicKeyBytes(peerPub)
	if err != nil {
		return err
	}
	fingerprint := sha256.Sum256(peerPubBytes)

	identity, err := loadOrCreateIdentity(trustIdentity)
	if err != nil {
		return err
	}
	priv, pub, err := identityKeyBytes(identity)
	if err != nil {
		return err
	}
	provider, err := classicprov.New(uint16(suite.X25519Ed25519))
	if err != nil {
		return fmt.Errorf("constructing signing provider: %w", err)
	}
	handle := sagecrypto.NewSoftwareSigningKeyHandle(sagecrypto.NewSecureBytesFrom([]byte(priv)))

	backend, err := openTrustBackend()
	if err != nil {
		return err
	}
	defer backend.close()
	store := backend.store

	now := time.Now().UTC()
	version := uint64(1)
	if existing, ok := store.Get(deviceID); ok {
		version = existing.Version + 1
	}

	record := &trust.Record{
		DeviceID:          deviceID,
		PubKeyFingerprint: fingerprint[:],
		PublicKey:         peerPubBytes,
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           version,
		Type:              trust.TypeAdd,
	}
	if trustAddDeviceName != "" {
		record.DeviceName = &trustAddDeviceName
	}
	if err := trust.Sign(provider, handle, record); err != nil {
		return fmt.Errorf("signing record: %w", err)
	}
	if err := trust.Verify(provider, pub, record); err != nil {
		return fmt.Errorf("signature failed self-verification: %w", err)
	}

	store.Merge(record)
	if trustAddAlias != "" {
		if err := store.RegisterAlias(trustAddAlias, deviceID); err != nil {
			return fmt.Errorf("registering alias: %w", err)
		}
	}
	if err := backend.save(); err != nil {
		return err
	}

	fmt.Printf("added %s (version %d, fingerprint %x)\n", deviceID, record.Version, fingerprint[:8])
	return nil
}

var trustListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known peer records",
	RunE:  runTrustList,
}

func runTrustList(cmd *cobra.Command, args []string) error {
	backend, err := openTrustBackend()
	if err != nil {
		return err
	}
	defer backend.close()
	records := backend.store.All()
	if len(records) == 0 {
		fmt.Println("trust store is empty")
		return nil
	}
	for _, r := range records {
		status := "live"
		if r.IsTombstone() {
			status = "revoked"
		}
		name := ""
		if r.DeviceName != nil {
			name = *r.DeviceName
		}
		fmt.Printf("%-32s  v%-4d  %-8s  fp=%x  %s\n", r.DeviceID, r.Version, status, r.PubKeyFingerprint[:8], name)
	}
	return nil
}

var trustRevokeCmd = &cobra.Command{
	Use:   "revoke <deviceId>",
	Short: "Revoke a peer by writing a signed tombstone record",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrustRevoke,
}

func runTrustRevoke(cmd *cobra.Command, args []string) error {
	deviceID := args[0]

	identity, err := loadOrCreateIdentity(trustIdentity)
	if err != nil {
		return err
	}
	priv, pub, err := identityKeyBytes(identity)
	if err != nil {
		return err
	}
	provider, err := classicprov.New(uint16(suite.X25519Ed25519))
	if err != nil {
		return fmt.Errorf("constructing signing provider: %w", err)
	}
	handle := sagecrypto.NewSoftwareSigningKeyHandle(sagecrypto.NewSecureBytesFrom([]byte(priv)))

	backend, err := openTrustBackend()
	if err != nil {
		return err
	}
	defer backend.close()
	store := backend.store

	tombstone, err := store.NewTombstone(deviceID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("building tombstone: %w", err)
	}
	if err := trust.Sign(provider, handle, tombstone); err != nil {
		return fmt.Errorf("signing tombstone: %w", err)
	}
	if err := trust.Verify(provider, pub, tombstone); err != nil {
		return fmt.Errorf("tombstone signature failed self-verification: %w", err)
	}
	if err := store.Revoke(tombstone); err != nil {
		return err
	}
	if err := backend.save(); err != nil {
		return err
	}

	fmt.Printf("revoked %s (version %d)\n", deviceID, tombstone.Version)
	return nil
}
