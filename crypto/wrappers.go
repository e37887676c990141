package crypto

// This file provides wrapper functions that will be implemented by a separate
// initialization package to avoid circular dependencies.

var (
	// generateEd25519KeyPair is the implementation function for Ed25519 key generation
	generateEd25519KeyPair func() (KeyPair, error)

	// generateX25519KeyPair is the implementation function for X25519 key generation
	generateX25519KeyPair func() (KeyPair, error)

	// generateP256KeyPair is the implementation function for P-256 key generation
	generateP256KeyPair func() (KeyPair, error)

	// generateMLKEM768KeyPair is the implementation function for ML-KEM-768 key generation
	generateMLKEM768KeyPair func() (KeyPair, error)

	// generateMLDSA65KeyPair is the implementation function for ML-DSA-65 key generation
	generateMLDSA65KeyPair func() (KeyPair, error)

	// generateXWingKeyPair is the implementation function for X-Wing key generation
	generateXWingKeyPair func() (KeyPair, error)

	// newMemoryKeyStorage is the implementation function for memory storage creation
	newMemoryKeyStorage func() KeyStorage

	// newJWKExporter is the implementation function for JWK exporter creation
	newJWKExporter func() KeyExporter

	// newPEMExporter is the implementation function for PEM exporter creation
	newPEMExporter func() KeyExporter

	// newJWKImporter is the implementation function for JWK importer creation
	newJWKImporter func() KeyImporter

	// newPEMImporter is the implementation function for PEM importer creation
	newPEMImporter func() KeyImporter
)

// SetKeyGenerators sets the key generation functions for the classic-tier key types.
func SetKeyGenerators(ed25519Gen, x25519Gen, p256Gen func() (KeyPair, error)) {
	generateEd25519KeyPair = ed25519Gen
	generateX25519KeyPair = x25519Gen
	generateP256KeyPair = p256Gen
}

// SetPQCKeyGenerators sets the key generation functions for the PQC-tier key types.
// A nil generator leaves the corresponding New*KeyPair function panicking with
// "not initialized"; nothing in this module recovers that panic.
// internal/cryptoinit always installs all three generators.
func SetPQCKeyGenerators(mlkem768Gen, mldsa65Gen, xwingGen func() (KeyPair, error)) {
	generateMLKEM768KeyPair = mlkem768Gen
	generateMLDSA65KeyPair = mldsa65Gen
	generateXWingKeyPair = xwingGen
}

// SetStorageConstructors sets the storage constructor functions
func SetStorageConstructors(memoryStorage func() KeyStorage) {
	newMemoryKeyStorage = memoryStorage
}

// SetFormatConstructors sets the format constructor functions
func SetFormatConstructors(jwkExp, pemExp func() KeyExporter, jwkImp, pemImp func() KeyImporter) {
	newJWKExporter = jwkExp
	newPEMExporter = pemExp
	newJWKImporter = jwkImp
	newPEMImporter = pemImp
}

// NewEd25519KeyPair generates a new Ed25519 key pair
func NewEd25519KeyPair() (KeyPair, error) {
	if generateEd25519KeyPair == nil {
		panic("Ed25519 key generator not initialized")
	}
	return generateEd25519KeyPair()
}

// NewX25519KeyPair generates a new X25519 key pair
func NewX25519KeyPair() (KeyPair, error) {
	if generateX25519KeyPair == nil {
		panic("X25519 key generator not initialized")
	}
	return generateX25519KeyPair()
}

// NewP256KeyPair generates a new P-256 key pair
func NewP256KeyPair() (KeyPair, error) {
	if generateP256KeyPair == nil {
		panic("P-256 key generator not initialized")
	}
	return generateP256KeyPair()
}

// NewMLKEM768KeyPair generates a new ML-KEM-768 key pair
func NewMLKEM768KeyPair() (KeyPair, error) {
	if generateMLKEM768KeyPair == nil {
		panic("ML-KEM-768 key generator not initialized")
	}
	return generateMLKEM768KeyPair()
}

// NewMLDSA65KeyPair generates a new ML-DSA-65 key pair
func NewMLDSA65KeyPair() (KeyPair, error) {
	if generateMLDSA65KeyPair == nil {
		panic("ML-DSA-65 key generator not initialized")
	}
	return generateMLDSA65KeyPair()
}

// NewXWingKeyPair generates a new X-Wing key pair
func NewXWingKeyPair() (KeyPair, error) {
	if generateXWingKeyPair == nil {
		panic("X-Wing key generator not initialized")
	}
	return generateXWingKeyPair()
}

// GenerateEd25519KeyPair is an alias for NewEd25519KeyPair
func GenerateEd25519KeyPair() (KeyPair, error) {
	return NewEd25519KeyPair()
}

// GenerateX25519KeyPair is an alias for NewX25519KeyPair
func GenerateX25519KeyPair() (KeyPair, error) {
	return NewX25519KeyPair()
}

// NewMemoryKeyStorage creates a new memory key storage
func NewMemoryKeyStorage() KeyStorage {
	if newMemoryKeyStorage == nil {
		panic("Memory key storage constructor not initialized")
	}
	return newMemoryKeyStorage()
}

// NewJWKExporter creates a new JWK exporter
func NewJWKExporter() KeyExporter {
	if newJWKExporter == nil {
		panic("JWK exporter constructor not initialized")
	}
	return newJWKExporter()
}

// NewPEMExporter creates a new PEM exporter
func NewPEMExporter() KeyExporter {
	if newPEMExporter == nil {
		panic("PEM exporter constructor not initialized")
	}
	return newPEMExporter()
}

// NewJWKImporter creates a new JWK importer
func NewJWKImporter() KeyImporter {
	if newJWKImporter == nil {
		panic("JWK importer constructor not initialized")
	}
	return newJWKImporter()
}

// NewPEMImporter creates a new PEM importer
func NewPEMImporter() KeyImporter {
	if newPEMImporter == nil {
		panic("PEM importer constructor not initialized")
	}
	return newPEMImporter()
}
