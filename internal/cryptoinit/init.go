// Package cryptoinit initializes the crypto package with implementations
// from subpackages to avoid circular dependencies.
package cryptoinit

import (
	"fmt"

	"github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/crypto/formats"
	"github.com/skybridge-core/p2pcore/crypto/keys"
	"github.com/skybridge-core/p2pcore/crypto/provider/classicprov"
	"github.com/skybridge-core/p2pcore/crypto/provider/native"
	"github.com/skybridge-core/p2pcore/crypto/provider/unavailable"
	"github.com/skybridge-core/p2pcore/crypto/storage"
)

func init() {
	// Register key generators
	crypto.SetKeyGenerators(
		func() (crypto.KeyPair, error) { return keys.GenerateEd25519KeyPair() },
		func() (crypto.KeyPair, error) { return keys.GenerateX25519KeyPair() },
		func() (crypto.KeyPair, error) { return keys.GenerateP256KeyPair() },
	)

	// Register PQC key generators. Unlike the classic-tier generators
	// above, these are backed by circl and are always available in this
	// build (no liboqs cgo build tag gate), so they are wired here rather
	// than from a separate provider-tier init().
	crypto.SetPQCKeyGenerators(
		func() (crypto.KeyPair, error) { return keys.GenerateMLKEM768KeyPair() },
		func() (crypto.KeyPair, error) { return keys.GenerateMLDSA65KeyPair() },
		func() (crypto.KeyPair, error) { return keys.GenerateXWingKeyPair() },
	)

	// Register storage constructors
	crypto.SetStorageConstructors(
		func() crypto.KeyStorage { return storage.NewMemoryKeyStorage() },
	)
	
	// Register format constructors
	crypto.SetFormatConstructors(
		func() crypto.KeyExporter { return formats.NewJWKExporter() },
		func() crypto.KeyExporter { return formats.NewPEMExporter() },
		func() crypto.KeyImporter { return formats.NewJWKImporter() },
		func() crypto.KeyImporter { return formats.NewPEMImporter() },
	)

	// Register the tier-dispatching provider factory. TierLibOQSPQC has
	// no implementation in this build (no cgo/liboqs backend is wired);
	// requesting it always reports ErrProviderUnavailable, which is the
	// correct behavior for a build that only ships the native-circl and
	// classic tiers.
	crypto.SetProviderFactory(func(tier crypto.Tier, suiteWireID uint16) (crypto.Provider, error) {
		switch tier {
		case crypto.TierNativePQC:
			return native.New(suiteWireID)
		case crypto.TierClassic:
			return classicprov.New(suiteWireID)
		case crypto.TierLibOQSPQC:
			return nil, fmt.Errorf("%w: liboqs backend not built into this binary", crypto.ErrProviderUnavailable)
		case crypto.TierUnavailable:
			return unavailable.New(), nil
		}
		return nil, fmt.Errorf("%w: unrecognized tier %q", crypto.ErrProviderUnavailable, tier)
	})
}