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

package crypto

import "errors"

// Tier classifies which backend produced a Provider instance. It is a
// property of the provider, not of a suite (a suite's KEM/Sig algorithms
// may be servable by more than one tier).
type Tier string

const (
	TierNativePQC   Tier = "nativePQC"
	TierLibOQSPQC   Tier = "liboqsPQC"
	TierClassic     Tier = "classic"
	TierUnavailable Tier = "unavailable"
)

// KeyUsage distinguishes the purpose a generated key pair is bound to.
type KeyUsage string

const (
	KeyUsageKeyExchange KeyUsage = "keyExchange"
	KeyUsageSigning     KeyUsage = "signing"
)

// Provider error kinds (spec §7's taxonomy, the crypto-facing subset).
var (
	ErrProviderUnavailable    = errors.New("crypto: provider unavailable for requested tier")
	ErrKeyGenerationFailed    = errors.New("crypto: key generation failed")
	ErrInvalidKeyFormatErr    = errors.New("crypto: invalid key format")
	ErrInvalidSignatureFormat = errors.New("crypto: invalid signature format")
	ErrSealedBoxInvalid       = errors.New("crypto: sealed box invalid")
	ErrUnsupportedKeyHandle   = errors.New("crypto: signing key handle not supported for this algorithm")
)

// SigningKeyHandleKind discriminates the SigningKeyHandle sum type.
type SigningKeyHandleKind int

const (
	SigningKeyHandleSoftware SigningKeyHandleKind = iota
	SigningKeyHandleSecureEnclaveRef
	SigningKeyHandleCallback
)

// SigningCallback signs data on behalf of an externally-owned key (e.g. a
// device identity manager collaborator), returning the raw signature.
type SigningCallback func(data []byte) ([]byte, error)

// SigningKeyHandle is the sum type spec §4.3 requires: a software key
// backed by SecureBytes, an opaque Secure Enclave reference, or a signing
// callback. Only one field is populated, selected by Kind.
type SigningKeyHandle struct {
	Kind SigningKeyHandleKind

	// Software holds the private key bytes when Kind == SigningKeyHandleSoftware.
	Software *SecureBytes

	// SecureEnclaveRef is an opaque platform reference when
	// Kind == SigningKeyHandleSecureEnclaveRef.
	SecureEnclaveRef any

	// Callback signs on the handle's behalf when Kind == SigningKeyHandleCallback.
	Callback SigningCallback
}

// NewSoftwareSigningKeyHandle wraps private key bytes as a software
// signing handle.
func NewSoftwareSigningKeyHandle(priv *SecureBytes) SigningKeyHandle {
	return SigningKeyHandle{Kind: SigningKeyHandleSoftware, Software: priv}
}

// NewSecureEnclaveSigningKeyHandle wraps an opaque platform key reference.
func NewSecureEnclaveSigningKeyHandle(ref any) SigningKeyHandle {
	return SigningKeyHandle{Kind: SigningKeyHandleSecureEnclaveRef, SecureEnclaveRef: ref}
}

// NewCallbackSigningKeyHandle wraps an external signing callback.
func NewCallbackSigningKeyHandle(fn SigningCallback) SigningKeyHandle {
	return SigningKeyHandle{Kind: SigningKeyHandleCallback, Callback: fn}
}

// KEMResult is the output of a KEM encapsulation: the bytes to send to
// the peer plus the locally-derived shared secret.
type KEMResult struct {
	Encapsulated []byte
	SharedSecret *SecureBytes
}

// Provider is the tier-tagged cryptographic operation surface spec §4.3
// requires: key generation, KEM encapsulate/decapsulate, sign/verify, and
// HPKE seal/open for post-handshake sealed boxes. Each Provider instance
// is bound to one suite wire ID for the lifetime of one session/handshake
// attempt; it is created per-session and discarded (spec §3 Lifecycle).
type Provider interface {
	// Tier reports which backend this instance came from, for telemetry.
	Tier() Tier

	// GenerateKeyPair creates a new key pair for the given usage, bound
	// to this provider's suite.
	GenerateKeyPair(usage KeyUsage) (KeyPair, error)

	// KEMEncapsulate runs the suite's KEM against a peer's raw public
	// key bytes, returning the encapsulated key and a SecureBytes shared
	// secret. Rejects mis-sized recipient keys with ErrInvalidKeyFormatErr.
	KEMEncapsulate(recipientPub []byte) (KEMResult, error)

	// KEMDecapsulate recovers the shared secret from an encapsulated key
	// using the given private key material.
	KEMDecapsulate(encapsulated []byte, priv *SecureBytes) (*SecureBytes, error)

	// Sign produces a signature over data using the given handle.
	// Ed25519 and ML-DSA-65 handles MUST reject a SecureEnclaveRef kind
	// with ErrUnsupportedKeyHandle.
	Sign(data []byte, handle SigningKeyHandle) ([]byte, error)

	// Verify checks a signature against a raw public key. Unparseable
	// signature or key bytes return ErrInvalidSignatureFormat /
	// ErrInvalidKeyFormatErr rather than a bare false.
	Verify(data, signature, pub []byte) error
}

// CapabilityProbe is the injectable environment interface spec §4.3
// requires for provider selection: probed exactly once per session.
type CapabilityProbe interface {
	CheckNativePQCAvailable() bool
	CheckLibraryPQCAvailable() bool
}

// SelectionPolicy is the pure input to provider selection: preferPQC,
// requirePQC, or classicOnly. It mirrors HandshakePolicy's tier
// preference without importing the handshake package (avoiding a
// crypto → core/handshake import cycle).
type SelectionPolicy int

const (
	PolicyPreferPQC SelectionPolicy = iota
	PolicyRequirePQC
	PolicyClassicOnly
)

// SelectionResult records the outcome of a provider-selection decision
// for telemetry: which tier was chosen, whether a fallback occurred from
// the most-preferred tier, and the raw probe results.
type SelectionResult struct {
	ChosenTier Tier
	FellBack   bool
	NativePQC  bool
	LibraryPQC bool
}

// providerFactory constructs a Provider for a given tier and suite. Set
// via SetProviderFactory from internal/cryptoinit to avoid a circular
// import between crypto and crypto/provider/*.
var providerFactory func(tier Tier, suiteWireID uint16) (Provider, error)

// SetProviderFactory installs the tier-dispatching constructor. Called
// once from internal/cryptoinit's init function.
func SetProviderFactory(fn func(tier Tier, suiteWireID uint16) (Provider, error)) {
	providerFactory = fn
}

// NewProvider constructs a Provider of the given tier for suiteWireID.
// Panics if SetProviderFactory was never called, matching the panic
// convention used by the other New*/Generate* wrapper indirections in
// this package (crypto/wrappers.go).
func NewProvider(tier Tier, suiteWireID uint16) (Provider, error) {
	if providerFactory == nil {
		panic("crypto: provider factory not initialized")
	}
	return providerFactory(tier, suiteWireID)
}

// SelectProvider implements the pure selection function from spec §4.3:
// preferPQC tries native then library then classic; requirePQC tries
// native then library then returns an UnavailableProvider; classicOnly
// goes straight to classic. Probe is invoked at most once per call for
// each tier it needs to check.
func SelectProvider(policy SelectionPolicy, suiteWireID uint16, probe CapabilityProbe) (Provider, SelectionResult, error) {
	nativeOK := probe.CheckNativePQCAvailable()
	libOK := probe.CheckLibraryPQCAvailable()
	result := SelectionResult{NativePQC: nativeOK, LibraryPQC: libOK}

	tryTier := func(tier Tier) (Provider, error) {
		return NewProvider(tier, suiteWireID)
	}

	switch policy {
	case PolicyClassicOnly:
		p, err := tryTier(TierClassic)
		result.ChosenTier = TierClassic
		return p, result, err

	case PolicyRequirePQC:
		if nativeOK {
			p, err := tryTier(TierNativePQC)
			if err == nil {
				result.ChosenTier = TierNativePQC
				return p, result, nil
			}
		}
		if libOK {
			p, err := tryTier(TierLibOQSPQC)
			if err == nil {
				result.ChosenTier = TierLibOQSPQC
				result.FellBack = nativeOK
				return p, result, nil
			}
		}
		p, err := tryTier(TierUnavailable)
		result.ChosenTier = TierUnavailable
		result.FellBack = true
		if err != nil {
			return p, result, err
		}
		return p, result, ErrProviderUnavailable

	default: // PolicyPreferPQC
		if nativeOK {
			if p, err := tryTier(TierNativePQC); err == nil {
				result.ChosenTier = TierNativePQC
				return p, result, nil
			}
		}
		if libOK {
			if p, err := tryTier(TierLibOQSPQC); err == nil {
				result.ChosenTier = TierLibOQSPQC
				result.FellBack = nativeOK
				return p, result, nil
			}
		}
		p, err := tryTier(TierClassic)
		result.ChosenTier = TierClassic
		result.FellBack = nativeOK || libOK
		return p, result, err
	}
}
