package classicprov

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"testing"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawP256Scalar left-pads an ECDSA P-256 private scalar to 32 bytes, the
// fixed width classicprov's raw-bytes KEMDecapsulate/Sign paths expect.
func rawP256Scalar(priv *ecdsa.PrivateKey) []byte {
	out := make([]byte, 32)
	d := priv.D.Bytes()
	copy(out[32-len(d):], d)
	return out
}

func TestNewRejectsNonClassicSuite(t *testing.T) {
	_, err := New(uint16(suite.MLKEM768MLDSA65))
	require.Error(t, err)
	assert.ErrorIs(t, err, sagecrypto.ErrProviderUnavailable)
}

func TestNewRejectsUnknownSuite(t *testing.T) {
	_, err := New(0xFFFF)
	require.Error(t, err)
}

func TestX25519KEMEncapsulateProducesExpectedLengths(t *testing.T) {
	p, err := New(uint16(suite.X25519Ed25519))
	require.NoError(t, err)

	recipient, err := p.GenerateKeyPair(sagecrypto.KeyUsageKeyExchange)
	require.NoError(t, err)
	recipientPub := recipient.(interface{ PublicBytesKey() []byte }).PublicBytesKey()

	result, err := p.KEMEncapsulate(recipientPub)
	require.NoError(t, err)
	assert.Equal(t, 32, len(result.Encapsulated))
	assert.Equal(t, 32, result.SharedSecret.Len())
}

func TestP256KEMEncapsulateProducesExpectedLengths(t *testing.T) {
	p, err := New(uint16(suite.P256ECDSA))
	require.NoError(t, err)

	recipient, err := p.GenerateKeyPair(sagecrypto.KeyUsageKeyExchange)
	require.NoError(t, err)
	recipientPub := recipient.(interface{ PublicBytesKey() []byte }).PublicBytesKey()

	result, err := p.KEMEncapsulate(recipientPub)
	require.NoError(t, err)
	assert.Equal(t, 65, len(result.Encapsulated))
	assert.Equal(t, 32, result.SharedSecret.Len())
}

func TestP256KEMFullAgreement(t *testing.T) {
	// Both sides must derive the same shared secret: recipient decapsulates
	// against the encapsulator's ephemeral public key.
	p, err := New(uint16(suite.P256ECDSA))
	require.NoError(t, err)

	recipientKP, err := p.GenerateKeyPair(sagecrypto.KeyUsageKeyExchange)
	require.NoError(t, err)
	recipientPub := recipientKP.(interface{ PublicBytesKey() []byte }).PublicBytesKey()

	result, err := p.KEMEncapsulate(recipientPub)
	require.NoError(t, err)

	ecdsaPriv, ok := recipientKP.PrivateKey().(*ecdsa.PrivateKey)
	require.True(t, ok)
	rawPriv := sagecrypto.NewSecureBytesFrom(rawP256Scalar(ecdsaPriv))

	recovered, err := p.KEMDecapsulate(result.Encapsulated, rawPriv)
	require.NoError(t, err)
	assert.Equal(t, result.SharedSecret.Bytes(), recovered.Bytes())
}

func TestX25519KEMFullAgreement(t *testing.T) {
	p, err := New(uint16(suite.X25519Ed25519))
	require.NoError(t, err)

	recipientKP, err := p.GenerateKeyPair(sagecrypto.KeyUsageKeyExchange)
	require.NoError(t, err)
	recipientPub := recipientKP.(interface{ PublicBytesKey() []byte }).PublicBytesKey()

	result, err := p.KEMEncapsulate(recipientPub)
	require.NoError(t, err)

	privKey, ok := recipientKP.PrivateKey().(interface{ Bytes() []byte })
	require.True(t, ok)
	rawPriv := sagecrypto.NewSecureBytesFrom(privKey.Bytes())

	recovered, err := p.KEMDecapsulate(result.Encapsulated, rawPriv)
	require.NoError(t, err)
	assert.Equal(t, result.SharedSecret.Bytes(), recovered.Bytes())
}

func TestEd25519SignVerifyRoundTrip(t *testing.T) {
	p, err := New(uint16(suite.X25519Ed25519))
	require.NoError(t, err)

	signer, err := p.GenerateKeyPair(sagecrypto.KeyUsageSigning)
	require.NoError(t, err)
	signerPub := signer.(interface{ PublicBytesKey() []byte }).PublicBytesKey()

	priv := signer.PrivateKey()
	edPriv, ok := priv.(interface{ Seed() []byte })
	_ = ok
	_ = edPriv

	sig, err := signer.Sign([]byte("transcript bytes"))
	require.NoError(t, err)

	err = p.Verify([]byte("transcript bytes"), sig, signerPub)
	assert.NoError(t, err)

	err = p.Verify([]byte("tampered"), sig, signerPub)
	assert.Error(t, err)
}

func TestP256SignVerifyRoundTrip(t *testing.T) {
	p, err := New(uint16(suite.P256ECDSA))
	require.NoError(t, err)

	signer, err := p.GenerateKeyPair(sagecrypto.KeyUsageSigning)
	require.NoError(t, err)
	signerPub := signer.(interface{ PublicBytesKey() []byte }).PublicBytesKey()

	sig, err := signer.Sign([]byte("transcript bytes"))
	require.NoError(t, err)

	err = p.Verify([]byte("transcript bytes"), sig, signerPub)
	assert.NoError(t, err)

	err = p.Verify([]byte("tampered"), sig, signerPub)
	assert.Error(t, err)
}

func TestSignRejectsSecureEnclaveHandle(t *testing.T) {
	p, err := New(uint16(suite.X25519Ed25519))
	require.NoError(t, err)

	handle := sagecrypto.NewSecureEnclaveSigningKeyHandle("opaque-ref")
	_, err = p.Sign([]byte("data"), handle)
	require.Error(t, err)
	assert.ErrorIs(t, err, sagecrypto.ErrUnsupportedKeyHandle)
}

func TestSignViaCallbackHandle(t *testing.T) {
	p, err := New(uint16(suite.P256ECDSA))
	require.NoError(t, err)

	called := false
	handle := sagecrypto.NewCallbackSigningKeyHandle(func(data []byte) ([]byte, error) {
		called = true
		return []byte("external-signature"), nil
	})

	sig, err := p.Sign([]byte("data"), handle)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []byte("external-signature"), sig)
}

func TestVerifyRejectsWrongLengthKey(t *testing.T) {
	p, err := New(uint16(suite.X25519Ed25519))
	require.NoError(t, err)

	err = p.Verify([]byte("data"), []byte("sig"), []byte("too-short"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sagecrypto.ErrInvalidKeyFormatErr)
}

func TestTierReportsClassic(t *testing.T) {
	p, err := New(uint16(suite.P256ECDSA))
	require.NoError(t, err)
	assert.Equal(t, sagecrypto.TierClassic, p.Tier())
}
