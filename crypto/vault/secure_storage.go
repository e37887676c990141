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

// Package vault implements passphrase-protected at-rest storage of raw
// key bytes: FileVault wraps each key with a passphrase-derived
// AES-256-GCM key before it touches disk. No package in this module
// opens a vault; config.KeyStoreConfig is not wired to it.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrKeyNotFound       = errors.New("vault: key not found")
	ErrInvalidPassphrase = errors.New("vault: invalid passphrase")
	ErrInvalidKeyID      = errors.New("vault: invalid key ID")
)

// SecureVault is the at-rest key storage surface the crypto.Manager's
// KeyStorage can wrap: keys go in encrypted under a passphrase and come
// back out as the raw bytes that went in.
type SecureVault interface {
	StoreEncrypted(keyID string, key []byte, passphrase string) error
	LoadDecrypted(keyID string, passphrase string) ([]byte, error)
	SetPermissions(keyID string, mode os.FileMode) error
	Delete(keyID string) error
	Exists(keyID string) bool
	ListKeys() []string
}

// EncryptedKeyData is the on-disk JSON envelope for one FileVault entry.
type EncryptedKeyData struct {
	Version    string    `json:"version"`
	KeyID      string    `json:"key_id"`
	Algorithm  string    `json:"algorithm"`
	Salt       string    `json:"salt"`
	IV         string    `json:"iv"`
	Ciphertext string    `json:"ciphertext"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FileVault implements SecureVault over the filesystem: one JSON file
// per keyID, PBKDF2-stretched passphrase, AES-256-GCM sealed contents.
type FileVault struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileVault opens (creating if needed) a vault rooted at basePath.
func NewFileVault(basePath string) (*FileVault, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("vault: creating vault directory: %w", err)
	}
	return &FileVault{basePath: basePath}, nil
}

// StoreEncrypted encrypts key under passphrase and writes it to keyID's file.
func (v *FileVault) StoreEncrypted(keyID string, key []byte, passphrase string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if keyID == "" {
		return ErrInvalidKeyID
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("vault: generating salt: %w", err)
	}
	derivedKey := pbkdf2.Key([]byte(passphrase), salt, 100000, 32, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return fmt.Errorf("vault: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("vault: creating GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("vault: generating nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, key, nil)

	now := time.Now()
	encData := EncryptedKeyData{
		Version:    "1.0",
		KeyID:      keyID,
		Algorithm:  "AES-256-GCM",
		Salt:       base64.StdEncoding.EncodeToString(salt),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	jsonData, err := json.MarshalIndent(encData, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: marshaling encrypted data: %w", err)
	}
	if err := os.WriteFile(v.getKeyPath(keyID), jsonData, 0600); err != nil {
		return fmt.Errorf("vault: writing encrypted key: %w", err)
	}
	return nil
}

// LoadDecrypted reads keyID's file and decrypts it under passphrase,
// returning ErrInvalidPassphrase on an authentication failure rather
// than leaking which step of decryption went wrong.
func (v *FileVault) LoadDecrypted(keyID string, passphrase string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if keyID == "" {
		return nil, ErrInvalidKeyID
	}

	jsonData, err := os.ReadFile(v.getKeyPath(keyID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("vault: reading encrypted key: %w", err)
	}

	var encData EncryptedKeyData
	if err := json.Unmarshal(jsonData, &encData); err != nil {
		return nil, fmt.Errorf("vault: unmarshaling encrypted data: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(encData.Salt)
	if err != nil {
		return nil, fmt.Errorf("vault: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(encData.IV)
	if err != nil {
		return nil, fmt.Errorf("vault: decoding IV: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encData.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("vault: decoding ciphertext: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(passphrase), salt, 100000, 32, sha256.New)
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("vault: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return plaintext, nil
}

// SetPermissions chmods keyID's underlying file.
func (v *FileVault) SetPermissions(keyID string, mode os.FileMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if keyID == "" {
		return ErrInvalidKeyID
	}
	if err := os.Chmod(v.getKeyPath(keyID), mode); err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("vault: setting permissions: %w", err)
	}
	return nil
}

// Delete removes keyID's file from the vault.
func (v *FileVault) Delete(keyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if keyID == "" {
		return ErrInvalidKeyID
	}
	if err := os.Remove(v.getKeyPath(keyID)); err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("vault: deleting key: %w", err)
	}
	return nil
}

// Exists reports whether keyID has a file in the vault.
func (v *FileVault) Exists(keyID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if keyID == "" {
		return false
	}
	_, err := os.Stat(v.getKeyPath(keyID))
	return err == nil
}

// ListKeys returns every keyID currently stored.
func (v *FileVault) ListKeys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var keys []string
	files, err := os.ReadDir(v.basePath)
	if err != nil {
		return keys
	}
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == ".json" {
			keys = append(keys, file.Name()[:len(file.Name())-len(".json")])
		}
	}
	return keys
}

// getKeyPath maps keyID to its file path, stripping any directory
// component to prevent path traversal out of basePath.
func (v *FileVault) getKeyPath(keyID string) string {
	safeKeyID := filepath.Base(keyID)
	return filepath.Join(v.basePath, safeKeyID+".json")
}

// MemoryVault implements SecureVault in memory; only the tests use it.
// Encryption is a simple XOR stream, not a security boundary, and
// nothing is kept past process exit.
type MemoryVault struct {
	keys map[string][]byte
	mu   sync.RWMutex
}

// NewMemoryVault constructs an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{keys: make(map[string][]byte)}
}

func xorWithPassphrase(data []byte, passphrase string) []byte {
	out := make([]byte, len(data))
	p := []byte(passphrase)
	for i := range data {
		out[i] = data[i] ^ p[i%len(p)]
	}
	return out
}

// StoreEncrypted stores key XOR-masked under passphrase.
func (m *MemoryVault) StoreEncrypted(keyID string, key []byte, passphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keyID == "" {
		return ErrInvalidKeyID
	}
	m.keys[keyID] = xorWithPassphrase(key, passphrase)
	return nil
}

// LoadDecrypted reverses StoreEncrypted's XOR mask.
func (m *MemoryVault) LoadDecrypted(keyID string, passphrase string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if keyID == "" {
		return nil, ErrInvalidKeyID
	}
	encrypted, exists := m.keys[keyID]
	if !exists {
		return nil, ErrKeyNotFound
	}
	return xorWithPassphrase(encrypted, passphrase), nil
}

// SetPermissions is a no-op for an in-memory vault beyond existence.
func (m *MemoryVault) SetPermissions(keyID string, mode os.FileMode) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.keys[keyID]; !exists {
		return ErrKeyNotFound
	}
	return nil
}

// Delete removes keyID from memory.
func (m *MemoryVault) Delete(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keyID == "" {
		return ErrInvalidKeyID
	}
	if _, exists := m.keys[keyID]; !exists {
		return ErrKeyNotFound
	}
	delete(m.keys, keyID)
	return nil
}

// Exists reports whether keyID is currently stored.
func (m *MemoryVault) Exists(keyID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.keys[keyID]
	return exists
}

// ListKeys returns every keyID currently stored.
func (m *MemoryVault) ListKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.keys))
	for keyID := range m.keys {
		keys = append(keys, keyID)
	}
	return keys
}
