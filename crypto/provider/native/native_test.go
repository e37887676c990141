package native

import (
	"testing"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsClassicSuite(t *testing.T) {
	_, err := New(uint16(suite.X25519Ed25519))
	require.Error(t, err)
	assert.ErrorIs(t, err, sagecrypto.ErrProviderUnavailable)
}

func TestTierReportsNativePQC(t *testing.T) {
	p, err := New(uint16(suite.MLKEM768MLDSA65))
	require.NoError(t, err)
	assert.Equal(t, sagecrypto.TierNativePQC, p.Tier())
}

func TestMLKEM768EncapsulateProducesExpectedLengths(t *testing.T) {
	p, err := New(uint16(suite.MLKEM768MLDSA65))
	require.NoError(t, err)

	recipient, err := p.GenerateKeyPair(sagecrypto.KeyUsageKeyExchange)
	require.NoError(t, err)
	pubBytes, err := recipient.(interface {
		PublicBytesKey() ([]byte, error)
	}).PublicBytesKey()
	require.NoError(t, err)

	result, err := p.KEMEncapsulate(pubBytes)
	require.NoError(t, err)
	assert.Equal(t, 1088, len(result.Encapsulated))
	assert.True(t, result.SharedSecret.Len() > 0)
}

func TestMLKEM768FullAgreement(t *testing.T) {
	p, err := New(uint16(suite.MLKEM768MLDSA65))
	require.NoError(t, err)

	recipient, err := p.GenerateKeyPair(sagecrypto.KeyUsageKeyExchange)
	require.NoError(t, err)
	decap, ok := recipient.(interface {
		Decapsulate(encapsulated []byte) ([]byte, error)
	})
	require.True(t, ok)

	pubBytes, err := recipient.(interface {
		PublicBytesKey() ([]byte, error)
	}).PublicBytesKey()
	require.NoError(t, err)

	result, err := p.KEMEncapsulate(pubBytes)
	require.NoError(t, err)

	recovered, err := decap.Decapsulate(result.Encapsulated)
	require.NoError(t, err)
	assert.Equal(t, result.SharedSecret.Bytes(), recovered)
}

func TestXWingEncapsulateProducesExpectedLengths(t *testing.T) {
	p, err := New(uint16(suite.XWingMLDSA65))
	require.NoError(t, err)

	recipient, err := p.GenerateKeyPair(sagecrypto.KeyUsageKeyExchange)
	require.NoError(t, err)
	pubBytes, err := recipient.(interface {
		PublicBytesKey() ([]byte, error)
	}).PublicBytesKey()
	require.NoError(t, err)

	result, err := p.KEMEncapsulate(pubBytes)
	require.NoError(t, err)
	assert.Equal(t, 1120, len(result.Encapsulated))
}

func TestMLDSA65SignVerifyRoundTrip(t *testing.T) {
	p, err := New(uint16(suite.MLKEM768MLDSA65))
	require.NoError(t, err)

	signer, err := p.GenerateKeyPair(sagecrypto.KeyUsageSigning)
	require.NoError(t, err)
	pubBytes, err := signer.(interface {
		PublicBytesKey() ([]byte, error)
	}).PublicBytesKey()
	require.NoError(t, err)

	sig, err := signer.Sign([]byte("transcript"))
	require.NoError(t, err)

	err = p.Verify([]byte("transcript"), sig, pubBytes)
	assert.NoError(t, err)

	err = p.Verify([]byte("tampered"), sig, pubBytes)
	assert.Error(t, err)
}

func TestSignRejectsSecureEnclaveHandle(t *testing.T) {
	p, err := New(uint16(suite.XWingMLDSA65))
	require.NoError(t, err)

	handle := sagecrypto.NewSecureEnclaveSigningKeyHandle("opaque")
	_, err = p.Sign([]byte("data"), handle)
	require.Error(t, err)
	assert.ErrorIs(t, err, sagecrypto.ErrUnsupportedKeyHandle)
}

func TestVerifyRejectsWrongLengthKey(t *testing.T) {
	p, err := New(uint16(suite.MLKEM768MLDSA65))
	require.NoError(t, err)

	err = p.Verify([]byte("data"), []byte("sig"), []byte("short"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sagecrypto.ErrInvalidKeyFormatErr)
}
