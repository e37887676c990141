package unavailable

import (
	"testing"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/stretchr/testify/assert"
)

func TestTierReportsUnavailable(t *testing.T) {
	p := New()
	assert.Equal(t, sagecrypto.TierUnavailable, p.Tier())
}

func TestEveryOperationReturnsProviderUnavailable(t *testing.T) {
	p := New()

	_, err := p.GenerateKeyPair(sagecrypto.KeyUsageSigning)
	assert.ErrorIs(t, err, sagecrypto.ErrProviderUnavailable)

	_, err = p.KEMEncapsulate([]byte("pub"))
	assert.ErrorIs(t, err, sagecrypto.ErrProviderUnavailable)

	_, err = p.KEMDecapsulate([]byte("ct"), sagecrypto.NewSecureBytes(32))
	assert.ErrorIs(t, err, sagecrypto.ErrProviderUnavailable)

	_, err = p.Sign([]byte("data"), sagecrypto.NewCallbackSigningKeyHandle(func(d []byte) ([]byte, error) {
		return nil, nil
	}))
	assert.ErrorIs(t, err, sagecrypto.ErrProviderUnavailable)

	err = p.Verify([]byte("data"), []byte("sig"), []byte("pub"))
	assert.ErrorIs(t, err, sagecrypto.ErrProviderUnavailable)
}
