package formats

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/crypto/keys"
)

// pemExporter implements KeyExporter for PEM format.
type pemExporter struct{}

// NewPEMExporter creates a new PEM exporter.
func NewPEMExporter() sagecrypto.KeyExporter {
	return &pemExporter{}
}

// Export exports the key pair's private key as a PEM block. Ed25519 keys
// are wrapped PKCS#8 ("PRIVATE KEY"); P-256 keys use SEC1
// ("EC PRIVATE KEY") to match the convention most EC tooling expects.
// Any other key type, X25519 included, returns ErrInvalidKeyType.
func (e *pemExporter) Export(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	switch keyPair.Type() {
	case sagecrypto.KeyTypeEd25519:
		privateKey, ok := keyPair.PrivateKey().(ed25519.PrivateKey)
		if !ok {
			return nil, errors.New("invalid Ed25519 private key type")
		}
		der, err := x509.MarshalPKCS8PrivateKey(privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal Ed25519 private key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil

	case sagecrypto.KeyTypeP256:
		privateKey, ok := keyPair.PrivateKey().(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.New("invalid P-256 private key type")
		}
		der, err := x509.MarshalECPrivateKey(privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal P-256 private key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil

	default:
		return nil, sagecrypto.ErrInvalidKeyType
	}
}

// ExportPublic exports only the public key as a PEM "PUBLIC KEY" block
// (SubjectPublicKeyInfo/PKIX), regardless of key type.
func (e *pemExporter) ExportPublic(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	switch keyPair.Type() {
	case sagecrypto.KeyTypeEd25519, sagecrypto.KeyTypeP256:
		der, err := x509.MarshalPKIXPublicKey(keyPair.PublicKey())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal public key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil

	default:
		return nil, sagecrypto.ErrInvalidKeyType
	}
}

// pemImporter implements KeyImporter for PEM format.
type pemImporter struct{}

// NewPEMImporter creates a new PEM importer.
func NewPEMImporter() sagecrypto.KeyImporter {
	return &pemImporter{}
}

// Import decodes the first PEM block in data and reconstructs a key pair.
// Trailing blocks (as in a multi-key PEM bundle) and leading comment lines
// outside the PEM markers are ignored, matching pem.Decode's own behavior.
func (i *pemImporter) Import(data []byte, format sagecrypto.KeyFormat) (sagecrypto.KeyPair, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS8 private key: %w", err)
		}
		switch k := key.(type) {
		case ed25519.PrivateKey:
			return keys.NewEd25519KeyPair(k, "")
		default:
			return nil, fmt.Errorf("unsupported PKCS8 key type: %T", key)
		}

	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EC private key: %w", err)
		}
		return keys.NewP256KeyPairFromPrivate(key, "")

	default:
		return nil, fmt.Errorf("unsupported PEM block type: %s", block.Type)
	}
}

// ImportPublic decodes a PEM "PUBLIC KEY" (PKIX) block into a crypto.PublicKey.
func (i *pemImporter) ImportPublic(data []byte, format sagecrypto.KeyFormat) (crypto.PublicKey, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("unsupported PEM block type: %s", block.Type)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, nil
}
